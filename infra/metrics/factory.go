package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetlink/driverd/core/metrics"
)

// Config selects and parameterizes the session's metrics sinks.
type Config struct {
	// Sinks names the enabled sinks: "nop", "prometheus", "influx".
	Sinks []string `koanf:"sinks"`
	// PromAddr is the listen address of the /metrics endpoint.
	PromAddr string       `koanf:"prom_addr"`
	Influx   InfluxConfig `koanf:"influx"`
}

// SetDefaults applies the default sink selection.
func (c *Config) SetDefaults() {
	if len(c.Sinks) == 0 {
		c.Sinks = []string{"prometheus"}
	}
	if c.PromAddr == "" {
		c.PromAddr = ":9099"
	}
}

// New builds the configured sink set. Multiple sinks are combined through a
// MultiSink; an unknown sink name is an error.
func New(cfg Config) (metrics.MetricsSink, error) {
	var sinks []metrics.MetricsSink
	for _, name := range cfg.Sinks {
		switch name {
		case "nop":
			sinks = append(sinks, metrics.NopSink{})
		case "prometheus":
			s, err := NewPromSink(prometheus.DefaultRegisterer)
			if err != nil {
				return nil, fmt.Errorf("prometheus sink: %w", err)
			}
			sinks = append(sinks, s)
		case "influx":
			sinks = append(sinks, NewInfluxSinkWithFallback(cfg.Influx))
		default:
			return nil, fmt.Errorf("unknown metrics sink %q", name)
		}
	}
	switch len(sinks) {
	case 0:
		return metrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
