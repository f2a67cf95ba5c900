// Package main provides the Routine scheduler daemon. It keeps trigger
// registrations synced with the store, fires due schedules and dispatches
// external events arriving over the redis queue or the external event topic.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/routinehq/routine/pkg/eventbus"
	"github.com/routinehq/routine/pkg/events"
	"github.com/routinehq/routine/pkg/models"
	"github.com/routinehq/routine/pkg/sources/redisqueue"
	"github.com/routinehq/routine/pkg/trigger"
)

type Scheduler struct {
	id          string
	activator   *trigger.Activator
	source      *redisqueue.Source
	externalBus eventbus.ExternalEventBus
	logger      *slog.Logger

	tickInterval   time.Duration
	resyncInterval time.Duration
}

// NewScheduler creates the scheduler daemon. The redis queue source and the
// external event bus may each be nil when that intake is not configured.
func NewScheduler(
	id string,
	activator *trigger.Activator,
	source *redisqueue.Source,
	externalBus eventbus.ExternalEventBus,
	tickInterval time.Duration,
	resyncInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		id:             id,
		activator:      activator,
		source:         source,
		externalBus:    externalBus,
		logger:         logger.With("module", "scheduler"),
		tickInterval:   tickInterval,
		resyncInterval: resyncInterval,
	}
}

// Start runs the scheduler until an interrupt or termination signal arrives.
// SIGHUP forces an immediate registration re-sync.
func (s *Scheduler) Start(ctx context.Context) error {
	sCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.InfoContext(ctx, "Starting scheduler")

	if s.source != nil {
		if err := s.source.Start(sCtx); err != nil {
			return err
		}

		defer func() {
			if err := s.source.Stop(context.WithoutCancel(sCtx)); err != nil {
				s.logger.Error("Failed to stop redis queue source", "error", err)
			}
		}()
	}

	if s.externalBus != nil {
		if err := s.subscribeExternalEvents(sCtx); err != nil {
			return err
		}
	}

	s.handleSignals(sCtx, cancel)

	return s.activator.Run(sCtx, s.tickInterval, s.resyncInterval)
}

// subscribeExternalEvents routes events from the external topic into the
// trigger manager, same fan-out as the redis queue intake.
func (s *Scheduler) subscribeExternalEvents(ctx context.Context) error {
	err := s.externalBus.HandleExternalEvents(func(ctx context.Context, event *events.ExternalEvent) error {
		occurredAt := time.Now().UTC()
		if event.OccurredAtUnix > 0 {
			occurredAt = time.Unix(event.OccurredAtUnix, 0).UTC()
		}

		matched := s.activator.Dispatch(ctx, models.TriggerEvent{
			ID:         event.ID,
			Type:       event.Kind,
			Text:       event.Text,
			Data:       event.Data,
			OccurredAt: occurredAt,
		})

		s.logger.InfoContext(ctx, "Dispatched external event",
			"event_id", event.ID, "kind", event.Kind, "matched", matched)

		return nil
	})
	if err != nil {
		return err
	}

	return s.externalBus.SubscribeToExternalEvents(ctx)
}

// handleSignals sets up signal handling for graceful shutdown and re-sync.
func (s *Scheduler) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for sig := range signals {
			s.logger.Info("Received signal", "signal", sig)

			switch sig {
			case syscall.SIGHUP:
				s.logger.Info("Re-syncing trigger registrations...")

				if err := s.activator.Sync(ctx); err != nil {
					s.logger.Error("Trigger re-sync failed", "error", err)
				}
			case syscall.SIGINT, syscall.SIGTERM:
				s.logger.Info("Shutting down gracefully...")
				cancel()

				return
			}
		}
	}()
}
