// Package app wires one fleet with its event log, metrics, MQTT destination
// and HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"k8s.io/utils/clock"

	apifleet "github.com/kilianp07/medfleet/api/fleet"
	"github.com/kilianp07/medfleet/config"
	"github.com/kilianp07/medfleet/core/events"
	"github.com/kilianp07/medfleet/core/fleet"
	coremetrics "github.com/kilianp07/medfleet/core/metrics"
	coremon "github.com/kilianp07/medfleet/core/monitoring"
	"github.com/kilianp07/medfleet/core/sink"
	"github.com/kilianp07/medfleet/infra/eventlog"
	"github.com/kilianp07/medfleet/infra/logger"
	"github.com/kilianp07/medfleet/infra/metrics"
	"github.com/kilianp07/medfleet/infra/monitoring"
	"github.com/kilianp07/medfleet/infra/mqtt"
	"github.com/kilianp07/medfleet/internal/eventbus"
)

// ShutdownTimeout bounds how long Close waits for queued deliveries.
const ShutdownTimeout = 10 * time.Second

// Options override collaborators, mainly for tests and the simulator.
type Options struct {
	Clock clock.WithTicker
	// Dest replaces the MQTT destination.
	Dest sink.Destination
}

// Service owns a fleet and its outer surfaces.
type Service struct {
	Fleet *fleet.Fleet

	cfg     *config.Config
	clk     clock.WithTicker
	bus     *eventbus.Bus
	logBus  *eventbus.TypedBus[events.LogEvent]
	sink    coremetrics.MetricsSink
	mqttDst *mqtt.Destination
	logFile io.Closer
	log     logger.Logger
}

// New builds a Service from the configuration.
func New(cfg *config.Config, opts Options) (*Service, error) {
	logger.SetDefaults(cfg.Logging.Level, cfg.Logging.Console)
	logFile, err := logger.SetFile(logger.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	built := false
	defer func() {
		if !built {
			_ = logFile.Close()
		}
	}()
	mon, err := monitoring.NewSentryMonitor(cfg.Monitoring)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)
	logg := logger.New("service")
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	s := &Service{
		cfg:     cfg,
		clk:     clk,
		bus:     eventbus.New(),
		logBus:  eventbus.NewTyped[events.LogEvent](),
		logFile: logFile,
		log:     logg,
	}

	msink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = msink

	dest := opts.Dest
	if dest == nil && cfg.MQTT.Enabled {
		d, err := mqtt.NewDestination(cfg.MQTT, logger.New("mqtt"))
		if err != nil {
			return nil, fmt.Errorf("mqtt destination: %w", err)
		}
		s.mqttDst = d
		dest = d
	}

	f, err := fleet.New(cfg.Fleet, cfg.Dispatch, fleet.Deps{
		Dest:   dest,
		Events: eventlog.New(logger.New("events"), s.logBus, clk),
		Log:    logger.New("fleet"),
		Bus:    s.bus,
		Clock:  clk,
	})
	if err != nil {
		if s.mqttDst != nil {
			_ = s.mqttDst.Close(context.Background())
		}
		return nil, fmt.Errorf("fleet: %w", err)
	}
	s.Fleet = f
	if s.mqttDst != nil {
		s.mqttDst.Attach(f)
	}
	built = true
	return s, nil
}

// LogEvents subscribes to the operator event log.
func (s *Service) LogEvents() (<-chan events.LogEvent, func()) {
	sub := s.logBus.Subscribe()
	return sub, func() { s.logBus.Unsubscribe(sub) }
}

// Run starts the metrics collector and the HTTP servers and blocks until
// ctx is canceled or a server fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	collected := metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics"))
	metrics.StartSummaryReporter(ctx, s.clk, s.cfg.Metrics.SummaryInterval, s.Fleet.Summary, s.sink, logger.New("metrics"))

	errCh := make(chan error, 2)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() { errCh <- metrics.StartPromServer(ctx, addr) }()
	}
	if addr := s.cfg.API.Addr; addr != "" {
		go func() { errCh <- s.serveAPI(ctx, addr) }()
	}
	s.log.Infof("fleet coordinator running with %d vehicles and %d stations",
		len(s.Fleet.Vehicles()), len(s.Fleet.Stations()))

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
		coremon.CaptureException(err, map[string]string{"component": "service"})
		cancel()
	}
	<-collected
	return err
}

func (s *Service) serveAPI(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	apifleet.Register(mux, s.Fleet, s.cfg.API.Token)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	s.log.Infof("serving fleet API on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Close drains the fleet, disconnects MQTT and closes the buses.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	var errs []error
	if err := s.Fleet.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("fleet: %w", err))
	}
	if s.mqttDst != nil {
		if err := s.mqttDst.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	s.bus.Close()
	s.logBus.Close()
	coremon.Flush(2 * time.Second)
	if err := s.logFile.Close(); err != nil {
		errs = append(errs, fmt.Errorf("log file: %w", err))
	}
	return errors.Join(errs...)
}
