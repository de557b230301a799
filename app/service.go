// Package app wires a full driver session: state container, pollers,
// metrics, notifier and the local UI API.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apifleet "github.com/fleetlink/driverd/api/fleet"
	"github.com/fleetlink/driverd/config"
	"github.com/fleetlink/driverd/core/cursor"
	"github.com/fleetlink/driverd/core/fleet"
	coremetrics "github.com/fleetlink/driverd/core/metrics"
	"github.com/fleetlink/driverd/core/messages"
	"github.com/fleetlink/driverd/infra/logger"
	"github.com/fleetlink/driverd/infra/metrics"
	"github.com/fleetlink/driverd/infra/notify"
	"github.com/fleetlink/driverd/infra/poll"
	"github.com/fleetlink/driverd/internal/eventbus"
)

// Service orchestrates one driver session.
type Service struct {
	Container *fleet.Container

	cfg      *config.Config
	log      logger.Logger
	bus      *eventbus.Bus
	msgs     *messages.MemoryStore
	sink     coremetrics.MetricsSink
	notifier *notify.MQTTNotifier
	events   *poll.EventPoller
	location *poll.LocationPoller
	api      *http.Server
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.Configure(cfg.Logging.Level, cfg.Logging.Pretty)
	log := logger.New("service")

	sink, err := metrics.New(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	bus := eventbus.New()
	msgs := messages.NewMemoryStore(bus)

	var notifier *notify.MQTTNotifier
	if cfg.Notify.Enabled {
		notifier, err = notify.NewMQTTNotifier(cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
	}

	container := fleet.New(fleet.Config{
		VehicleID:   cfg.Session.VehicleID,
		PlanID:      cfg.Session.PlanID,
		StartPaused: cfg.Session.StartPaused,
	}, logger.New("fleet"), sink, bus, msgs, notifierOrNil(notifier))

	store := cursor.NewFileStore(cfg.Session.StateDir, logger.New("cursor"))
	events := poll.NewEventPoller(poll.EventConfig{
		BaseURL:     cfg.Events.BaseURL,
		VehicleID:   cfg.Session.VehicleID,
		WaitSeconds: cfg.Events.WaitSeconds,
		Backoff:     time.Duration(cfg.Events.BackoffMS) * time.Millisecond,
	}, store, container, logger.New("event-poll"), sink)

	var location *poll.LocationPoller
	if !cfg.Location.Disabled {
		base := cfg.Location.BaseURL
		if base == "" {
			base = cfg.Events.BaseURL
		}
		location = poll.NewLocationPoller(poll.LocationConfig{
			BaseURL:   base,
			VehicleID: cfg.Session.VehicleID,
			Interval:  time.Duration(cfg.Location.IntervalMS) * time.Millisecond,
		}, container, logger.New("location-poll"))
	}

	mux := http.NewServeMux()
	apifleet.NewHandler(container, msgs, bus, logger.New("api")).Register(mux)

	return &Service{
		Container: container,
		cfg:       cfg,
		log:       log,
		bus:       bus,
		msgs:      msgs,
		sink:      sink,
		notifier:  notifier,
		events:    events,
		location:  location,
		api:       &http.Server{Addr: cfg.API.Addr, Handler: mux},
	}, nil
}

// notifierOrNil keeps the container's notifier interface nil when no
// notifier is configured, instead of a non-nil interface holding nil.
func notifierOrNil(n *notify.MQTTNotifier) fleet.Notifier {
	if n == nil {
		return nil
	}
	return n
}

// Run starts the session and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	go s.Container.RunDrain(ctx)
	go func() {
		if err := s.events.Start(ctx); err != nil {
			s.log.Errorf("event poller: %v", err)
		}
	}()
	if s.location != nil {
		go func() {
			if err := s.location.Start(ctx); err != nil {
				s.log.Errorf("location poller: %v", err)
			}
		}()
	}
	if promEnabled(s.cfg.Metrics) {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PromAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go func() {
		<-ctx.Done()
		// Release blocked watch requests before draining the server.
		s.bus.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.api.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()

	s.log.Infof("session started for vehicle %s, api on %s", s.cfg.Session.VehicleID, s.cfg.API.Addr)
	if err := s.api.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func promEnabled(cfg metrics.Config) bool {
	for _, s := range cfg.Sinks {
		if s == "prometheus" {
			return true
		}
	}
	return false
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.notifier != nil {
		s.notifier.Close()
	}
	s.bus.Close()
	return nil
}
