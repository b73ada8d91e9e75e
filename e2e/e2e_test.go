package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/unitcommit/api"
	"github.com/kilianp07/unitcommit/api/solve"
	"github.com/kilianp07/unitcommit/app"
	"github.com/kilianp07/unitcommit/config"
	"github.com/kilianp07/unitcommit/core/factory"
	"github.com/kilianp07/unitcommit/core/journal"
	"github.com/kilianp07/unitcommit/infra/logger"
	"github.com/kilianp07/unitcommit/infra/mqtt"
	"github.com/kilianp07/unitcommit/scenario"
	"github.com/kilianp07/unitcommit/test/util"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

// writeJUnit writes the provided report to the given path.
func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

func e2eConfig(t *testing.T, influxURL, broker string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Logging = logger.Config{Level: "error", Format: "json"}
	cfg.Metrics.Sinks = []factory.ModuleConfig{
		{Type: "prometheus"},
		{Type: "influx", Conf: map[string]any{
			"url":    influxURL,
			"token":  util.InfluxToken,
			"org":    util.InfluxOrg,
			"bucket": util.InfluxBucket,
		}},
	}
	cfg.Journal = journal.Config{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "runs.db")}
	cfg.MQTT.Enabled = true
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "e2e"
	cfg.MQTT.TopicPrefix = "e2e"
	cfg.MQTT.QoS = 1
	cfg.API.Token = "e2e-token"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

// Test_E2E_SolveFlow runs a solve through the HTTP API against real
// InfluxDB and Mosquitto containers, then reads the outcome back from every
// sink: the Influx points, the retained MQTT summary, the Prometheus
// exposition and the run journal.
func Test_E2E_SolveFlow(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	started := time.Now()

	influxURL, stopInflux, err := util.StartInflux(ctx)
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	defer stopInflux()
	broker, stopBroker, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	defer stopBroker()
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", broker)

	cfg := e2eConfig(t, influxURL, broker)
	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer svc.Close()
	svc.Start(ctx)

	srv := httptest.NewServer(api.NewRouter(cfg.API, svc, svc.Journal(), prometheus.DefaultGatherer, logger.New("e2e")))
	defer srv.Close()
	waitCtx, waitCancel := context.WithTimeout(ctx, util.HealthTimeout)
	defer waitCancel()
	if err := util.WaitForHealth(waitCtx, srv.URL); err != nil {
		t.Fatalf("health: %v", err)
	}

	body, _ := json.Marshal(solve.Request{Mode: "iterative", Scenario: scenario.Default(), Verify: true})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/api/v1/solve", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+cfg.API.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("solve request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("solve status %d", resp.StatusCode)
	}
	var out struct {
		RunID    string `json:"run_id"`
		Status   string `json:"status"`
		Verified *bool  `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "converged" || out.Verified == nil || !*out.Verified {
		t.Fatalf("unexpected response: %+v", out)
	}

	// Influx: iteration and run points
	cli := NewInfluxClient(influxURL, util.InfluxOrg, util.InfluxBucket, util.InfluxToken)
	defer cli.Close()
	for _, m := range []string{"benders_iteration", "solve_run"} {
		deadline := time.Now().Add(10 * time.Second)
		for {
			n, err := cli.CountPoints(ctx, m, out.RunID)
			if err == nil && n > 0 {
				t.Logf("%s: %d values", m, n)
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("no %s points for run %s (last error %v)", m, out.RunID, err)
			}
			time.Sleep(200 * time.Millisecond)
		}
	}

	// MQTT: the retained summary reaches a late subscriber
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-sub"))
	if token := sub.Connect(); token.Wait() && token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	defer sub.Disconnect(250)
	msgCh := make(chan []byte, 1)
	token := sub.Subscribe(cfg.MQTT.TopicPrefix+"/schedule", 1, func(_ paho.Client, m paho.Message) {
		select {
		case msgCh <- m.Payload():
		default:
		}
	})
	if token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}
	select {
	case raw := <-msgCh:
		var sum mqtt.SummaryMessage
		if err := json.Unmarshal(raw, &sum); err != nil {
			t.Fatalf("decode summary: %v", err)
		}
		if sum.RunID != out.RunID || math.Abs(sum.TotalCost-479) > 1e-6 {
			t.Fatalf("unexpected summary: %+v", sum)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for retained summary")
	}

	// Prometheus exposition
	metricCtx, metricCancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer metricCancel()
	if err := util.WaitForMetric(metricCtx, srv.URL+"/metrics", `unitcommit_runs_total{mode="iterative",status="converged"}`); err != nil {
		t.Fatalf("metrics: %v", err)
	}

	// Journal
	recs, err := svc.History(ctx, journal.RunQuery{RunID: out.RunID})
	if err != nil || len(recs) != 1 {
		t.Fatalf("history: %v (%d records)", err, len(recs))
	}

	dir := t.TempDir()
	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: "Test_E2E_SolveFlow", Time: time.Since(started).Seconds()}}}
	if err := writeJUnit(filepath.Join(dir, "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
