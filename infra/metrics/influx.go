package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/unitcommit/core/events"
	coremetrics "github.com/kilianp07/unitcommit/core/metrics"
	"github.com/kilianp07/unitcommit/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving solver points.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes decomposition progress to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordIteration writes one benders_iteration point.
func (s *InfluxSink) RecordIteration(ev events.IterationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("benders_iteration").
		AddTag("run_id", ev.RunID).
		AddTag("mode", ev.Mode).
		AddTag("state", ev.State).
		AddField("iteration", ev.Iteration).
		AddField("node", ev.Node).
		AddField("cuts", ev.Cuts).
		AddField("phi", round3(ev.MasterBound)).
		AddField("dispatch_cost", round3(ev.DispatchObjective)).
		AddField("master_ms", round3(ev.MasterDuration.Seconds()*1000)).
		AddField("dispatch_ms", round3(ev.DispatchDuration.Seconds()*1000)).
		SetTime(ev.Time)
	addFinite(p, "lower_bound", ev.LowerBound)
	addFinite(p, "upper_bound", ev.UpperBound)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordRun writes one solve_run point.
func (s *InfluxSink) RecordRun(ev events.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("solve_run").
		AddTag("run_id", ev.RunID).
		AddTag("mode", ev.Mode).
		AddTag("status", ev.Status).
		AddTag("converged", strconv.FormatBool(ev.Converged)).
		AddField("iterations", ev.Iterations).
		AddField("cuts", ev.Cuts).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	addFinite(p, "total_cost", ev.TotalCost)
	addFinite(p, "lower_bound", ev.LowerBound)
	addFinite(p, "upper_bound", ev.UpperBound)
	if ev.Err != nil {
		p.AddField("error", ev.Err.Error())
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// Close flushes and closes the client.
func (s *InfluxSink) Close() { s.client.Close() }

// addFinite skips infinite bounds, which line protocol cannot carry.
func addFinite(p *write.Point, field string, v float64) {
	if !math.IsInf(v, 0) && !math.IsNaN(v) {
		p.AddField(field, round3(v))
	}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
