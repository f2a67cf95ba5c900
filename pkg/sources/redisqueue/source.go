// Package redisqueue consumes external trigger events from a redis list.
// Producers push JSON events; the source pops them and fans them out to the
// registered event triggers. It is the intake path for systems that cannot
// call the API directly.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/routinehq/routine/pkg/models"
)

// DefaultQueue is the list key consumed when none is configured.
const DefaultQueue = "routine:trigger:events"

const popTimeout = time.Second

// Dispatcher fans a trigger event out to matching workflows.
type Dispatcher interface {
	DispatchEvent(ctx context.Context, event models.TriggerEvent) int
}

// Source pops trigger events off a redis list and dispatches them. The
// client is owned by the caller and stays open after Stop.
type Source struct {
	client     redis.UniversalClient
	queue      string
	dispatcher Dispatcher
	logger     *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a redis queue source. An empty queue name falls back to
// DefaultQueue.
func New(client redis.UniversalClient, queue string, dispatcher Dispatcher, logger *slog.Logger) (*Source, error) {
	if client == nil {
		return nil, errors.New("redis queue source requires a client")
	}

	if dispatcher == nil {
		return nil, errors.New("redis queue source requires a dispatcher")
	}

	if queue == "" {
		queue = DefaultQueue
	}

	return &Source{
		client:     client,
		queue:      queue,
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
		logger:     logger.With("module", "redisqueue", "queue", queue),
	}, nil
}

// Start verifies the connection and begins consuming until Stop is called or
// the context ends.
func (s *Source) Start(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	s.wg.Add(1)

	go s.consume(ctx)

	s.logger.InfoContext(ctx, "Redis queue source started")

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Redis queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping redis queue consumer")

			return
		default:
			if err := s.processMessage(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Error processing queue message", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, popTimeout, s.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
			return nil
		}

		return fmt.Errorf("failed to pop from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	event := parseEvent(result[1])

	matched := s.dispatcher.DispatchEvent(ctx, event)

	s.logger.InfoContext(ctx, "Dispatched queue event",
		"event_id", event.ID,
		"event_type", event.Type,
		"matched", matched)

	return nil
}

// parseEvent decodes a queue message into a trigger event. A message that is
// not a JSON event still dispatches, as a bare queue.message with the raw
// payload as text.
func parseEvent(message string) models.TriggerEvent {
	var event models.TriggerEvent

	if err := json.Unmarshal([]byte(message), &event); err != nil || event.Type == "" {
		event = models.TriggerEvent{
			Type: "queue.message",
			Text: message,
		}
	}

	if event.ID == "" {
		event.ID = fmt.Sprintf("evt-%s", uuid.New().String()[:8])
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	return event
}

// Stop halts the consumer and waits for the in-flight pop to finish.
func (s *Source) Stop(ctx context.Context) error {
	close(s.stopCh)
	s.wg.Wait()

	s.logger.InfoContext(ctx, "Redis queue source stopped")

	return nil
}
