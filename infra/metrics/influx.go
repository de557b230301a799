package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/fleetlink/driverd/core/metrics"
	"github.com/fleetlink/driverd/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `koanf:"url"`
	Token  string `koanf:"token"`
	Org    string `koanf:"org"`
	Bucket string `koanf:"bucket"`
}

// InfluxSink writes session events to an InfluxDB instance using the
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

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns
// a NopSink if the health check fails, so a down collector never blocks the
// session.
func NewInfluxSinkWithFallback(cfg InfluxConfig) metrics.MetricsSink {
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
		return metrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func (s *InfluxSink) RecordPoll(r metrics.PollResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("long_poll").
		AddTag("outcome", r.Outcome).
		AddField("status", r.Status).
		AddField("duration_ms", r.Duration.Milliseconds()).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordCursorReset(r metrics.CursorReset) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("cursor_reset").
		AddTag("reason", r.Reason).
		AddField("count", 1).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordIncident(r metrics.IncidentIngest) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("incident_ingest").
		AddTag("severity", r.Severity).
		AddTag("behavior", r.Behavior).
		AddTag("source", r.Source).
		AddField("incident_id", r.IncidentID).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func (s *InfluxSink) RecordAlertTransition(r metrics.AlertTransition) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("alert_transition").
		AddTag("transition", r.Transition).
		AddField("incident_id", r.IncidentID).
		SetTime(r.Time)
	return s.writeAPI.WritePoint(ctx, p)
}
