// Package daemon runs docpages as a long-lived service: a webhook endpoint
// feeds a run queue, a scheduler triggers periodic rebuilds, and finished runs
// are recorded to history, exported as metrics, and optionally published to
// NATS.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/docpages/internal/config"
	"git.home.luguber.info/inful/docpages/internal/history"
	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/metrics"
	"git.home.luguber.info/inful/docpages/internal/pipeline"
	"git.home.luguber.info/inful/docpages/internal/trigger"
)

const shutdownTimeout = 15 * time.Second

// Daemon wires the webhook server, run queue, scheduler, config watcher and
// run history into one long-running service.
type Daemon struct {
	configPath string

	mu   sync.RWMutex
	cfg  *config.Config
	pipe *pipeline.Pipeline

	queue     *RunQueue
	server    *Server
	scheduler *Scheduler
	watcher   *ConfigWatcher
	store     *history.Store
	events    *EventPublisher
	registry  *prom.Registry
	recorder  metrics.Recorder
}

// New assembles a daemon from a validated configuration. configPath enables
// hot reload; an empty path disables the config watcher.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	d := &Daemon{configPath: configPath, cfg: cfg, recorder: metrics.NoopRecorder{}}

	if cfg.Daemon.MetricsEnabled {
		d.registry = prom.NewRegistry()
		d.registry.MustRegister(collectors.NewGoCollector())
		d.recorder = metrics.NewPrometheusRecorder(d.registry)
	}

	store, err := history.Open(cfg.Daemon.HistoryDB)
	if err != nil {
		return nil, err
	}
	d.store = store

	if cfg.Daemon.NATS.Enabled {
		events, err := NewEventPublisher(cfg.Daemon.NATS)
		if err != nil {
			store.Close()
			return nil, err
		}
		d.events = events
	}

	d.pipe = pipeline.New(cfg).WithRecorder(d.recorder)
	d.queue = NewRunQueue(cfg.Daemon.QueueSize, cfg.Daemon.Workers, RunnerFunc(d.runBuild))
	d.queue.OnResult(d.handleResult)

	gate := trigger.NewGate(cfg.Trigger.Branches)
	d.server = NewServer(cfg.Daemon, gate, d.queue, d.store, d.registry)

	d.scheduler, err = NewScheduler(d.queue)
	if err != nil {
		d.closeResources()
		return nil, err
	}
	if cfg.Daemon.ScheduleInterval > 0 {
		if err := d.scheduler.SchedulePeriodicRun(cfg.Daemon.ScheduleInterval); err != nil {
			d.closeResources()
			return nil, err
		}
	}

	if configPath != "" {
		d.watcher, err = NewConfigWatcher(configPath, d.reloadConfig)
		if err != nil {
			d.closeResources()
			return nil, err
		}
	}

	return d, nil
}

// Run starts all components and blocks until ctx is canceled, then shuts down
// gracefully: the listener stops accepting, queued runs finish, and resources
// are released.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("Starting daemon", logfields.Repository(d.cfg.Repository.Name))

	d.queue.Start(ctx)
	d.scheduler.Start()
	if d.watcher != nil {
		if err := d.watcher.Start(ctx); err != nil {
			return err
		}
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- d.server.Start() }()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			d.shutdown()
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	d.shutdown()
	return nil
}

func (d *Daemon) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", logfields.Error(err))
	}
	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			slog.Error("Config watcher shutdown failed", logfields.Error(err))
		}
	}
	if err := d.scheduler.Stop(); err != nil {
		slog.Error("Scheduler shutdown failed", logfields.Error(err))
	}
	d.queue.Stop()
	d.closeResources()
	slog.Info("Daemon stopped")
}

func (d *Daemon) closeResources() {
	if d.events != nil {
		d.events.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Error("History store close failed", logfields.Error(err))
		}
	}
}

// runBuild executes a run against the current pipeline.
func (d *Daemon) runBuild(ctx context.Context, commit string) (*pipeline.Result, error) {
	d.mu.RLock()
	pipe := d.pipe
	d.mu.RUnlock()
	return pipe.Run(ctx, commit)
}

// handleResult records and broadcasts a finished run.
func (d *Daemon) handleResult(res *pipeline.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.store.Record(ctx, res); err != nil {
		slog.Error("Failed to record run history", logfields.RunID(res.RunID), logfields.Error(err))
	}
	if d.events != nil {
		if err := d.events.PublishRun(res); err != nil {
			slog.Error("Failed to publish run event", logfields.RunID(res.RunID), logfields.Error(err))
		}
	}
}

// reloadConfig applies a changed configuration. Listener and queue topology
// changes need a restart; everything feeding the pipeline and the branch gate
// takes effect immediately.
func (d *Daemon) reloadConfig(_ context.Context, newCfg *config.Config) error {
	d.mu.Lock()
	oldCfg := d.cfg
	d.cfg = newCfg
	d.pipe = pipeline.New(newCfg).WithRecorder(d.recorder)
	d.mu.Unlock()

	d.server.SetGate(trigger.NewGate(newCfg.Trigger.Branches))
	d.server.SetWebhookSecret(newCfg.Daemon.WebhookSecret)

	if newCfg.Daemon.WebhookPath != oldCfg.Daemon.WebhookPath {
		slog.Warn("Webhook path changed, restart required for it to take effect",
			slog.String("current", oldCfg.Daemon.WebhookPath),
			slog.String("configured", newCfg.Daemon.WebhookPath))
	}
	if newCfg.Daemon.Listen != oldCfg.Daemon.Listen {
		slog.Warn("Listen address changed, restart required for it to take effect",
			slog.String("current", oldCfg.Daemon.Listen),
			slog.String("configured", newCfg.Daemon.Listen))
	}
	if newCfg.Daemon.Workers != oldCfg.Daemon.Workers || newCfg.Daemon.QueueSize != oldCfg.Daemon.QueueSize {
		slog.Warn("Queue topology changed, restart required for it to take effect")
	}
	return nil
}
