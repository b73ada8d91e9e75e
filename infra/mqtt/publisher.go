package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/infra/logger"
)

// ErrNoSchedule is returned when a run produced no commitment to publish.
var ErrNoSchedule = errors.New("mqtt: schedule has no commitment")

// GeneratorMessage is the retained payload of <prefix>/schedule/<generator>.
type GeneratorMessage struct {
	RunID      string    `json:"run_id"`
	Generator  string    `json:"generator"`
	Commitment []int     `json:"commitment"`
	Output     []float64 `json:"output"`
	Startups   int       `json:"startups"`
	Timestamp  int64     `json:"timestamp"`
}

// SummaryMessage is the retained payload of <prefix>/schedule.
type SummaryMessage struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Generators []string  `json:"generators"`
	Periods    int       `json:"periods"`
	TotalCost  float64   `json:"total_cost"`
	LowerBound float64   `json:"lower_bound"`
	Iterations int       `json:"iterations"`
	Cuts       int       `json:"cuts"`
	Converged  bool      `json:"converged"`
	Shedding   []float64 `json:"shedding"`
	Timestamp  int64     `json:"timestamp"`
}

// SchedulePublisher publishes finished schedules to an MQTT broker.
type SchedulePublisher struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger
}

// NewSchedulePublisher connects to the broker described by cfg.
func NewSchedulePublisher(cfg Config) (*SchedulePublisher, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	log := logger.New("mqtt_publisher")
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected to %s", cfg.Broker)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &SchedulePublisher{
		cli:        c,
		prefix:     cfg.TopicPrefix,
		qos:        cfg.QoS,
		retain:     cfg.retain(),
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
	}, nil
}

// GeneratorTopic returns the topic carrying one generator's schedule.
func (p *SchedulePublisher) GeneratorTopic(name string) string {
	return fmt.Sprintf("%s/schedule/%s", p.prefix, name)
}

// SummaryTopic returns the topic carrying the run summary.
func (p *SchedulePublisher) SummaryTopic() string {
	return p.prefix + "/schedule"
}

// Publish sends one message per generator followed by the summary.
func (p *SchedulePublisher) Publish(ctx context.Context, runID, mode string, data *model.ProblemData, s *model.Schedule) error {
	if s == nil || s.Commitment == nil {
		return ErrNoSchedule
	}
	now := time.Now().UnixMilli()
	for g, name := range data.Names() {
		msg := GeneratorMessage{
			RunID:      runID,
			Generator:  name,
			Commitment: s.Commitment[g],
			Startups:   s.Commitment.Startups(g),
			Timestamp:  now,
		}
		if s.Dispatch.Production != nil {
			msg.Output = s.Dispatch.Production[g]
		}
		if err := p.send(ctx, p.GeneratorTopic(name), msg); err != nil {
			return err
		}
	}
	sum := SummaryMessage{
		RunID:      runID,
		Mode:       mode,
		Generators: data.Names(),
		Periods:    data.T(),
		TotalCost:  finite(s.TotalCost),
		LowerBound: finite(s.LowerBound),
		Iterations: s.Iterations,
		Cuts:       s.Cuts,
		Converged:  s.Converged,
		Shedding:   s.Dispatch.Shedding,
		Timestamp:  now,
	}
	if err := p.send(ctx, p.SummaryTopic(), sum); err != nil {
		return err
	}
	p.logger.Infof("published schedule %s for %d generators", runID, data.G())
	return nil
}

func (p *SchedulePublisher) send(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			return nil
		}
		p.logger.Errorf("publish attempt %d on %s failed: %v", attempt+1, topic, publishErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("publish %s: %w", topic, publishErr)
}

// Close gracefully closes the MQTT connection.
func (p *SchedulePublisher) Close() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}

func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
