// Package service assembles the tierd daemon: configuration, logging,
// telemetry, the tier store, the engine, the optional event publisher, and
// the HTTP server. It owns the process lifecycle, including configuration
// hot reload and periodic statistics persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/classify"
	"github.com/fyrsmithlabs/tierd/internal/config"
	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/engine"
	"github.com/fyrsmithlabs/tierd/internal/events"
	tierdhttp "github.com/fyrsmithlabs/tierd/internal/http"
	"github.com/fyrsmithlabs/tierd/internal/logging"
	"github.com/fyrsmithlabs/tierd/internal/stats"
	"github.com/fyrsmithlabs/tierd/internal/store"
	"github.com/fyrsmithlabs/tierd/internal/telemetry"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

// Service is the assembled daemon. The engine is held behind an atomic
// pointer so a configuration reload can swap in a rebuilt engine while the
// HTTP server keeps serving; the tracker and store live for the whole
// process so counters and documents survive reloads.
type Service struct {
	configPath string
	version    string

	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	store     store.Store
	cache     *store.CachedStore
	tracker   *stats.Tracker
	publisher *events.Publisher
	server    *tierdhttp.Server

	cfg    atomic.Pointer[config.Config]
	engine atomic.Pointer[engine.Engine]
}

// New loads configuration from configPath and assembles the daemon. Nothing
// is listening yet; call Run to start serving.
func New(ctx context.Context, configPath, version string) (*Service, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry, version, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	fs, err := store.NewFSStore(cfg.Store.Root)
	if err != nil {
		return nil, fmt.Errorf("init store at %s: %w", cfg.Store.Root, err)
	}

	var st store.Store = fs
	var cache *store.CachedStore
	if cfg.Store.CacheEntries > 0 {
		cache, err = store.NewCachedStore(fs, cfg.Store.CacheTTL, cfg.Store.CacheEntries)
		if err != nil {
			return nil, fmt.Errorf("init store cache: %w", err)
		}
		st = cache
	}

	tracker, err := stats.NewTracker(trackerConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("init stats tracker: %w", err)
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		publisher, err = events.Connect(cfg.Events.URL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("init events publisher: %w", err)
		}
	}

	eng, err := buildEngine(cfg, st, tracker, logger, publisher)
	if err != nil {
		if publisher != nil {
			publisher.Close()
		}
		return nil, fmt.Errorf("init engine: %w", err)
	}

	s := &Service{
		configPath: configPath,
		version:    version,
		logger:     logger,
		telemetry:  tel,
		store:      st,
		cache:      cache,
		tracker:    tracker,
		publisher:  publisher,
	}
	s.cfg.Store(cfg)
	s.engine.Store(eng)

	server, err := tierdhttp.NewServer(s, logger, serverConfig(cfg, version))
	if err != nil {
		if publisher != nil {
			publisher.Close()
		}
		return nil, fmt.Errorf("init http server: %w", err)
	}
	s.server = server

	return s, nil
}

// buildEngine constructs an engine over the shared store and tracker. Used
// both at startup and on reload.
func buildEngine(cfg *config.Config, st store.Store, tracker *stats.Tracker, logger *zap.Logger, publisher *events.Publisher) (*engine.Engine, error) {
	var opts []engine.Option
	if publisher != nil {
		opts = append(opts, engine.WithListener(publisher))
	}

	return engine.New(engine.Config{
		Mode:   cfg.Mode(),
		Policy: cfg.Policy(),
		Digest: digest.Config{
			Tier0Max: cfg.Digest.Tier0MaxChars,
			Tier1Max: cfg.Digest.Tier1MaxChars,
		},
		TokensPerByte: cfg.Cost.TokensPerByte,
	}, st, tracker, logger, opts...)
}

func trackerConfig(cfg *config.Config) stats.Config {
	return stats.Config{
		Capacity:     cfg.Stats.HistoryCapacity,
		CostPerToken: cfg.Cost.USDPerToken,
		Path:         cfg.Stats.Path,
		FlushEvery:   cfg.Stats.FlushEvery,
	}
}

func serverConfig(cfg *config.Config, version string) *tierdhttp.Config {
	return &tierdhttp.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		AuthToken:    cfg.Server.AuthToken,
		RateLimitRPS: cfg.Server.RateLimitRPS,
		Version:      version,
	}
}

// Run starts the HTTP server, the configuration watcher, and the periodic
// stats flush, then blocks until ctx is cancelled or the server fails.
// Shutdown is graceful: in-flight requests drain, statistics are flushed,
// and telemetry is stopped.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := s.cfg.Load()
	s.logger.Info("starting tierd",
		zap.String("version", s.version),
		zap.String("mode", string(s.Mode())),
		zap.String("config", s.configPath),
		zap.String("store_root", cfg.Store.Root),
		zap.Int("port", cfg.Server.Port),
	)

	if err := s.startConfigWatcher(ctx); err != nil {
		s.logger.Warn("config watcher unavailable, hot reload disabled", zap.Error(err))
	}

	go s.flushLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return s.shutdown()
	}
}

// shutdown drains the server and releases everything the service owns.
// Only a failed server drain is returned; everything later is best effort
// and logged.
func (s *Service) shutdown() error {
	cfg := s.cfg.Load()
	s.logger.Info("shutting down tierd")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	shutdownErr := s.server.Shutdown(ctx)
	if shutdownErr != nil {
		s.logger.Error("http server shutdown failed", zap.Error(shutdownErr))
	}

	if s.publisher != nil {
		s.publisher.Close()
	}

	if s.cache != nil {
		cs := s.cache.Stats()
		s.logger.Info("store cache",
			zap.Uint64("hits", cs.Hits),
			zap.Uint64("misses", cs.Misses),
			zap.Uint64("evictions", cs.Evictions),
			zap.Int("entries", cs.Entries),
		)
	}

	if err := s.tracker.Flush(); err != nil {
		s.logger.Warn("final stats flush failed", zap.Error(err))
	}

	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	if err := logging.Sync(s.logger); err != nil {
		fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", err)
	}

	if shutdownErr != nil {
		return fmt.Errorf("http server shutdown: %w", shutdownErr)
	}
	return nil
}

// Handler exposes the HTTP routing tree for tests.
func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger {
	return s.logger
}

// The methods below satisfy the HTTP Backend interface by delegating to
// the current engine.

func (s *Service) Answer(ctx context.Context, query, key string) (*engine.Answer, error) {
	return s.engine.Load().Answer(ctx, query, key)
}

func (s *Service) Summarize(ctx context.Context, text string) digest.Digest {
	return s.engine.Load().Summarize(ctx, text)
}

func (s *Service) Ingest(ctx context.Context, key, text string) (digest.Digest, error) {
	return s.engine.Load().Ingest(ctx, key, text)
}

func (s *Service) Classify(query string) classify.Result {
	return s.engine.Load().Classify(query)
}

func (s *Service) Dashboard() stats.Dashboard {
	return s.engine.Load().Dashboard()
}

func (s *Service) ListDocuments(ctx context.Context) ([]string, error) {
	return s.engine.Load().ListDocuments(ctx)
}

func (s *Service) ResetStats() error {
	return s.engine.Load().ResetStats()
}

func (s *Service) Mode() tier.Mode {
	return s.engine.Load().Mode()
}

// startConfigWatcher watches the configuration file for changes. Editors
// replace files rather than writing in place, so the parent directory is
// watched and events are filtered by name.
func (s *Service) startConfigWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(s.configPath)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		s.processConfigEvents(ctx, watcher)
	}()

	return nil
}
