package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/config"
)

// processConfigEvents reacts to writes of the configuration file until ctx
// is cancelled. A failed reload keeps the previous configuration serving.
func (s *Service) processConfigEvents(ctx context.Context, watcher *fsnotify.Watcher) {
	target := filepath.Clean(s.configPath)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Error("config reload failed, keeping previous configuration",
					zap.String("path", s.configPath),
					zap.Error(err),
				)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Reload re-reads the configuration file and swaps in an engine rebuilt
// with the new settings. The tracker and store are shared with the old
// engine, so counters and documents carry over. Settings outside the
// engine take effect on the next restart.
func (s *Service) Reload() error {
	cfg, err := config.LoadWithFile(s.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	eng, err := buildEngine(cfg, s.store, s.tracker, s.logger, s.publisher)
	if err != nil {
		return fmt.Errorf("rebuild engine: %w", err)
	}

	old := s.cfg.Load()
	s.cfg.Store(cfg)
	s.engine.Store(eng)

	s.logger.Info("configuration reloaded",
		zap.String("mode", cfg.Engine.Mode),
		zap.Float64("min_confidence", cfg.Engine.MinConfidence),
		zap.Int("tier0_max_chars", cfg.Digest.Tier0MaxChars),
		zap.Int("tier1_max_chars", cfg.Digest.Tier1MaxChars),
	)

	if restart := restartRequired(old, cfg); len(restart) > 0 {
		s.logger.Warn("some configuration changes take effect on restart",
			zap.Strings("sections", restart),
		)
	}
	return nil
}

// restartRequired names the changed sections a live engine swap cannot
// absorb.
func restartRequired(old, next *config.Config) []string {
	var sections []string
	if old.Store != next.Store {
		sections = append(sections, "store")
	}
	if old.Server != next.Server {
		sections = append(sections, "server")
	}
	if old.Logging != next.Logging {
		sections = append(sections, "logging")
	}
	if old.Telemetry != next.Telemetry {
		sections = append(sections, "telemetry")
	}
	if old.Events != next.Events {
		sections = append(sections, "events")
	}
	if old.Stats != next.Stats {
		sections = append(sections, "stats")
	}
	if old.Cost.USDPerToken != next.Cost.USDPerToken {
		sections = append(sections, "cost.usd_per_token")
	}
	return sections
}

// flushLoop persists the statistics on a timer so long-idle daemons do not
// lose counters between the count-based flushes.
func (s *Service) flushLoop(ctx context.Context) {
	interval := s.cfg.Load().Stats.FlushInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.tracker.Flush(); err != nil {
				s.logger.Warn("timed stats flush failed", zap.Error(err))
			}
		}
	}
}
