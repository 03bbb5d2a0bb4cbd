// Package server provides an HTTP server for the cloudstats activity ledger.
//
// The server lets an out-of-process orchestrator deliver provisioning and
// launch events and its live node inventory over HTTP, and serves the
// resulting report as JSON and as a web page.
//
// # Endpoints
//
//   - GET / - Web UI report
//   - GET /health - Simple health check, returns "ok"
//   - GET /api/status - Ledger size and capacity, next sweep, build info
//   - GET /api/activities - All activities, oldest first
//   - GET /api/activities/{id} - One activity
//   - GET /api/activities/{id}/logs - Log lines captured for one activity
//   - POST /api/events/provisioning/{started,completed,failed} - Provisioning events
//   - POST /api/events/launch/{started,failed} - Launch events
//   - POST /api/events/online - A node came online
//   - POST /api/inventory - Replace the live node inventory
//   - POST /api/sweep - Run the completion sweep now
//   - GET /config - Returns current configuration as YAML
//   - POST /reload - Reloads configuration from disk
//   - GET /metrics - Prometheus metrics
//
// # Architecture
//
// The ledger, observers and completion sweep are created once from the
// configuration loaded by New. Reload swaps the configuration atomically;
// the cloud list and log level take effect immediately, other settings on
// the next restart.
//
// # Example
//
//	srv, err := server.New("/etc/cloudstats/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"

	"github.com/nomis52/cloudstats/config"
	"github.com/nomis52/cloudstats/host"
	"github.com/nomis52/cloudstats/ledger"
	"github.com/nomis52/cloudstats/logging"
	"github.com/nomis52/cloudstats/metrics"
	"github.com/nomis52/cloudstats/observer"
	"github.com/nomis52/cloudstats/server/cron"
	"github.com/nomis52/cloudstats/server/handlers"
)

//go:embed static
var staticFiles embed.FS

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Server is the HTTP server for the cloudstats report.
type Server struct {
	addr       string
	configPath string
	logger     *logging.Logger
	clock      clock.Clock
	config     atomic.Pointer[config.Config]

	ledger       *ledger.Ledger
	provisioning *observer.ProvisioningObserver
	launch       *observer.LaunchObserver
	detector     *observer.CompletionDetector
	inventory    *host.InventoryStore
	cronTrigger  *cron.CronTrigger
	scrape       *metrics.ScrapeRegistry
	push         *metrics.PushRegistry
	certLoader   *CertLoader

	mu         sync.Mutex
	httpServer *http.Server // protected by mu
	listenAddr net.Addr     // protected by mu
}

// Option configures a Server.
type Option func(*Server) error

// WithListenAddr overrides the listen address from the configuration.
func WithListenAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

// WithClock sets the clock used for activity timestamps and the sweep schedule.
func WithClock(c clock.Clock) Option {
	return func(s *Server) error {
		s.clock = c
		return nil
	}
}

// New creates a new Server with the given config path and options.
// It loads the configuration and initializes all dependencies.
func New(configPath string, opts ...Option) (*Server, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	s := &Server{
		addr:       cfg.Listener.Addr,
		configPath: configPath,
		logger:     logger,
		clock:      clock.WallClock,
		inventory:  host.NewInventoryStore(),
	}
	s.config.Store(cfg)

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := s.build(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// build creates the ledger and everything around it from cfg.
func (s *Server) build(cfg *config.Config) error {
	log := s.logger.Logger

	scrape, err := metrics.NewScrapeRegistry()
	if err != nil {
		return fmt.Errorf("creating metrics registry: %w", err)
	}
	s.scrape = scrape
	var registry metrics.Registry = scrape
	if cfg.Monitoring.PushURL != "" {
		s.push = metrics.NewPushRegistry(metrics.PushConfig{
			URL:      cfg.Monitoring.PushURL,
			Prefix:   cfg.Monitoring.MetricsPrefix,
			Job:      cfg.Monitoring.JobName,
			Instance: instanceName(),
			Interval: cfg.Monitoring.PushInterval,
			Logger:   log,
		})
		registry = metrics.Tee(scrape, s.push)
	}

	s.ledger, err = ledger.New(cfg.Ledger.Capacity,
		ledger.WithLogger(log),
		ledger.WithClock(s.clock),
		ledger.WithClouds(s),
		ledger.WithLogCollector(logging.NewLogCollector(cfg.Ledger.LogEntries)),
		ledger.WithMetricsRegistry(registry),
	)
	if err != nil {
		return err
	}

	s.provisioning = observer.NewProvisioningObserver(s.ledger, log)
	s.launch = observer.NewLaunchObserver(s.ledger, log)
	s.detector = observer.NewCompletionDetector(s.ledger, s.inventory, log)

	s.cronTrigger, err = cron.NewCronTrigger(cfg.Sweep.Schedule, s.detector, log, cron.WithClock(s.clock))
	if err != nil {
		return fmt.Errorf("creating sweep trigger: %w", err)
	}

	if cfg.Listener.TLSEnabled() {
		s.certLoader, err = NewCertLoader(cfg.Listener.CertFile, cfg.Listener.KeyFile, log, s.clock)
		if err != nil {
			return fmt.Errorf("loading tls certificate: %w", err)
		}
	}
	return nil
}

func instanceName() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger.Logger
}

// Reload reads the config from disk and applies the settings that can
// change at runtime.
func (s *Server) Reload() error {
	cfg, err := config.LoadConfig(s.configPath)
	if err != nil {
		return err
	}
	if err := s.logger.SetLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("setting log level: %w", err)
	}

	old := s.config.Swap(cfg)
	if old.Ledger != cfg.Ledger || old.Sweep != cfg.Sweep || old.Listener != cfg.Listener || old.Monitoring != cfg.Monitoring {
		s.logger.Warn("some configuration changes only take effect after a restart")
	}
	s.logger.Info("configuration loaded", "config_path", s.configPath, "clouds", cfg.Clouds)
	return nil
}

// Config returns the current configuration.
func (s *Server) Config() *config.Config {
	return s.config.Load()
}

// Clouds implements host.CloudLister using the current configuration.
func (s *Server) Clouds() []string {
	return append([]string(nil), s.Config().Clouds...)
}

// Ledger returns the server's ledger.
func (s *Server) Ledger() *ledger.Ledger {
	return s.ledger
}

// IsActive reports whether any cloud is configured.
func (s *Server) IsActive() bool {
	return s.ledger.IsActive()
}

// Capacity returns the ledger capacity.
func (s *Server) Capacity() int {
	return s.ledger.Capacity()
}

// Len returns the number of activities held.
func (s *Server) Len() int {
	return s.ledger.Len()
}

// NextSweep returns the time of the next scheduled sweep.
func (s *Server) NextSweep() *time.Time {
	if s.cronTrigger == nil {
		return nil
	}
	next := s.cronTrigger.NextRun()
	return &next
}

// Addr returns the address the server is listening on, or nil before Run
// has bound its listener.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs a graceful shutdown when the context is done. The sweep
// trigger and metrics pusher run for as long as the server does.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	httpServer := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	if s.certLoader != nil {
		httpServer.TLSConfig = s.certLoader.TLSConfig()
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.listenAddr = ln.Addr()
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	s.logger.Info("starting sweep trigger", "next_sweep", s.cronTrigger.NextRun())
	s.cronTrigger.Start(runCtx)
	if s.push != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.push.Run(runCtx)
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server",
			"addr", ln.Addr().String(),
			"tls", s.certLoader != nil,
			"config_path", s.configPath,
		)
		var err error
		if s.certLoader != nil {
			err = httpServer.ServeTLS(ln, "", "")
		} else {
			err = httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer shutdownCancel()
		runErr = httpServer.Shutdown(shutdownCtx)
	}

	cancel()
	wg.Wait()
	return runErr
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	log := s.logger.Logger

	// API endpoints
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.Handle("GET /api/status", handlers.NewAPIStatusHandler(s))
	mux.Handle("GET /api/activities", handlers.NewActivitiesHandler(s.ledger))
	mux.Handle("GET /api/activities/{id}", handlers.NewActivityHandler(s.ledger))
	mux.Handle("GET /api/activities/{id}/logs", handlers.NewActivityLogsHandler(s.ledger))
	mux.Handle("GET /config", handlers.NewConfigHandler(s))
	mux.Handle("POST /reload", handlers.NewReloadHandler(log, s))
	mux.Handle("GET /metrics", s.scrape.Handler())

	// Inbound events
	mux.Handle("POST /api/events/provisioning/started", handlers.NewProvisioningStartedHandler(log, s.provisioning))
	mux.Handle("POST /api/events/provisioning/completed", handlers.NewProvisioningCompletedHandler(log, s.provisioning))
	mux.Handle("POST /api/events/provisioning/failed", handlers.NewProvisioningFailedHandler(log, s.provisioning))
	mux.Handle("POST /api/events/launch/started", handlers.NewLaunchStartedHandler(log, s.launch))
	mux.Handle("POST /api/events/launch/failed", handlers.NewLaunchFailedHandler(log, s.launch))
	mux.Handle("POST /api/events/online", handlers.NewOnlineHandler(log, s.launch))
	mux.Handle("POST /api/inventory", handlers.NewInventoryHandler(log, s.inventory))
	mux.Handle("POST /api/sweep", handlers.NewSweepHandler(log, s.detector, s.inventory))

	// Static files (web UI)
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		s.logger.Error("failed to create static file system", "error", err)
		return
	}
	mux.Handle("GET /", http.FileServer(http.FS(staticFS)))
}
