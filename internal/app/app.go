// Package app assembles the relay: receiver, parser, pipeline, sinks,
// cleanup, and dashboard, wired per the loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wxwire/wxwire/internal/dashboard"
	"github.com/wxwire/wxwire/internal/geo"
	"github.com/wxwire/wxwire/internal/log"
	"github.com/wxwire/wxwire/internal/pipeline"
	"github.com/wxwire/wxwire/internal/receiver"
	"github.com/wxwire/wxwire/internal/sinks"
	consolesink "github.com/wxwire/wxwire/internal/sinks/console"
	dbsink "github.com/wxwire/wxwire/internal/sinks/db"
	mqttsink "github.com/wxwire/wxwire/internal/sinks/mqtt"
	"github.com/wxwire/wxwire/internal/stats"
	"github.com/wxwire/wxwire/internal/wxparser"
	"github.com/wxwire/wxwire/pkg/config"
)

// ErrNoSinks means the configuration enables nothing to deliver to.
var ErrNoSinks = errors.New("no sinks configured")

// App is the assembled relay.
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
	clock  clockwork.Clock
}

// New creates an application from loaded configuration.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{cfg: cfg, logger: logger, clock: clockwork.NewRealClock()}
}

// Run starts every component and blocks until a shutdown signal, the
// context ending, or a terminal receiver failure.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lookup, err := geo.NewLookup()
	if err != nil {
		return fmt.Errorf("load geo dataset: %w", err)
	}
	parser := wxparser.New(lookup)

	receiverStats := stats.NewReceiverStats()
	pipelineStats := stats.NewPipelineStats()
	cleanupStats := stats.NewCleanupStats()

	sinkList, dbSink, cleaner, err := a.buildSinks(pipelineStats, cleanupStats)
	if err != nil {
		return err
	}

	dedup := pipeline.NewDedupFilter(
		a.cfg.Dedup.WindowSize,
		time.Duration(a.cfg.Dedup.WindowSeconds)*time.Second,
		a.clock,
	)
	pipe := pipeline.New(pipeline.Options{
		Name:           "main",
		QueueSize:      a.cfg.Pipeline.MaxQueueSize,
		SinkQueue:      a.cfg.Pipeline.MaxQueueSize,
		Policy:         pipeline.PolicyFromConfig(a.cfg.Pipeline),
		DrainGrace:     time.Duration(a.cfg.Pipeline.ShutdownGraceSeconds * float64(time.Second)),
		ProcessTimeout: time.Duration(a.cfg.Pipeline.ProcessingTimeoutSeconds * float64(time.Second)),
		Clock:          a.clock,
		Logger:         a.logger,
		Stats:          pipelineStats,
	}, []pipeline.Filter{dedup}, nil, sinkList)

	manager := pipeline.NewManager(a.logger)
	if err := manager.Add(pipe); err != nil {
		return err
	}
	manager.Start(ctx)

	rcv := receiver.New(a.cfg.Receiver, receiverStats, a.clock, a.logger, receiver.Hooks{})

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return rcv.Run(gctx)
	})

	group.Go(func() error {
		return a.ingest(gctx, rcv, parser, manager, pipelineStats)
	})

	if a.cfg.Dashboard != nil {
		srv := dashboard.New(*a.cfg.Dashboard, receiverStats, pipelineStats, cleanupStats, dbSink, a.logger)
		group.Go(func() error {
			return srv.Start(gctx)
		})
	}

	if cleaner != nil {
		if err := cleaner.Start(gctx); err != nil {
			return err
		}
		defer cleaner.Stop()
	}

	log.Info("relay started")
	runErr := group.Wait()
	stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := manager.Stop(drainCtx); err != nil {
		a.logger.Errorw("pipeline drain incomplete", "error", err)
	}

	log.Info("shutdown complete")
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// ingest drains the receiver's wire messages through the parser into
// the pipeline manager, blocking on pipeline backpressure.
func (a *App) ingest(ctx context.Context, rcv *receiver.Receiver, parser *wxparser.Parser, manager *pipeline.Manager, ps *stats.PipelineStats) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-rcv.Messages():
			event, diags, err := parser.Parse(msg)
			if err != nil {
				ps.MarkErrored("parse")
				a.logger.Warnw("product dropped: unparseable",
					"cccc", msg.Cccc,
					"awips_id", msg.AwipsID,
					"stage", "parse",
					"detail", err)
				continue
			}
			for _, d := range diags {
				a.logger.Debugw("parse diagnostic",
					"event_id", event.EventID,
					"product_id", event.ProductID,
					"code", d.Code,
					"detail", d.Detail)
			}
			if err := manager.Submit(ctx, event); err != nil {
				if errors.Is(err, pipeline.ErrClosed) || errors.Is(err, context.Canceled) {
					return err
				}
				ps.MarkErrored("submit")
				a.logger.Errorw("pipeline submit failed", "event_id", event.EventID, "error", err)
			}
		}
	}
}

// buildSinks assembles the configured sinks and, when the DB sink has
// cleanup enabled, its cleaner.
func (a *App) buildSinks(pipelineStats *stats.PipelineStats, cleanupStats *stats.CleanupStats) ([]sinks.Sink, *dbsink.Sink, *dbsink.Cleaner, error) {
	var list []sinks.Sink
	var dbS *dbsink.Sink
	var cleaner *dbsink.Cleaner

	if a.cfg.Console != nil && a.cfg.Console.Enabled {
		list = append(list, consolesink.New(a.cfg.Console.Pretty, a.logger))
	}

	if a.cfg.MQTT != nil {
		m, err := mqttsink.New(*a.cfg.MQTT, a.clock, pipelineStats, a.logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mqtt sink: %w", err)
		}
		list = append(list, m)
	}

	if a.cfg.Database != nil {
		d, err := dbsink.New(*a.cfg.Database, a.logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("db sink: %w", err)
		}
		list = append(list, d)
		dbS = d

		if cu := a.cfg.Database.Cleanup; cu != nil && cu.Enabled != nil && *cu.Enabled {
			cleaner, err = dbsink.NewCleaner(d, *cu, a.clock, cleanupStats, a.logger)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("db cleaner: %w", err)
			}
		}
	}

	if len(list) == 0 {
		return nil, nil, nil, ErrNoSinks
	}
	return list, dbS, cleaner, nil
}
