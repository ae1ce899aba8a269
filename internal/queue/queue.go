// Package queue implements the Task Queue (C8, spec.md §4.1): at-least-once
// delivery of task submissions to workers, progress visibility, and
// failure/retry semantics, backed by Redis. The four priority channels,
// atomic counters, and backpressure-aware submit/claim/drain shape follow
// codeNERD's internal/core/spawn_queue.go SpawnQueue — translated from
// in-process Go channels to Redis lists and sorted sets so queue state
// survives a worker process restart, which spec.md §4.1's "ticket
// re-delivered after a visibility timeout" requirement demands and an
// in-memory channel cannot provide.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prreview/internal/apperr"
	"prreview/internal/metrics"
	"prreview/internal/models"
)

// maxQueueDepth is the backpressure ceiling per priority lane: codeNERD's
// SpawnQueue rejects Submit once its bounded channel is full rather than
// blocking forever, and we give submitters the same observable signal
// (spec.md §6's 429, SPEC_FULL.md §13's "priority queue with backpressure").
const maxQueueDepth = 1000

// Outcome is the terminal disposition markTerminal records, per spec.md
// §4.1.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeRetry   Outcome = "retry"
)

var (
	// ErrQueueStopped is returned by Submit/Claim after Stop has been called.
	ErrQueueStopped = errors.New("queue: stopped")
	// ErrNoTicket means Claim found nothing ready within the wait window.
	ErrNoTicket = errors.New("queue: no ticket available")
)

// priorityOrder is the claim order: advisory per spec.md §9, highest first.
var priorityOrder = []models.Priority{
	models.PriorityUrgent, models.PriorityHigh, models.PriorityNormal, models.PriorityLow,
}

// visibilityTimeout is how long a claimed ticket may stay unacknowledged
// before it is considered abandoned and re-delivered, spec.md §4.1.
const visibilityTimeout = 10 * time.Minute

// Ticket is the queue-visible record behind a ticket id.
type Ticket struct {
	ID       string         `json:"id"`
	TaskID   string         `json:"task_id"`
	Priority models.Priority `json:"priority"`
	Payload  map[string]any `json:"payload,omitempty"`
	Progress int            `json:"progress"`
	Status   string         `json:"status"`
	Attempts int            `json:"attempts"`
}

// defaultRetryBaseDelay is the base backoff spec.md §4.7 names for a
// retried task, applied when New is given a non-positive delay.
const defaultRetryBaseDelay = 60 * time.Second

// Queue is the Redis-backed client used by both the submission API (to
// enqueue) and the Task Worker (to claim and report back).
type Queue struct {
	rdb            *redis.Client
	logger         *zap.Logger
	retryBaseDelay time.Duration
	stopped        atomic.Bool

	totalSubmitted atomic.Int64
	totalClaimed   atomic.Int64
	totalExpired   atomic.Int64
}

// New connects to brokerURL (a redis:// URL). retryBaseDelay is the backoff
// applied before a retried ticket is re-enqueued (spec.md §4.7); a
// non-positive value falls back to defaultRetryBaseDelay.
func New(brokerURL string, logger *zap.Logger, retryBaseDelay time.Duration) (*Queue, error) {
	opt, err := redis.ParseURL(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("queue: parsing broker url: %w", err)
	}
	if retryBaseDelay <= 0 {
		retryBaseDelay = defaultRetryBaseDelay
	}
	rdb := redis.NewClient(opt)
	return &Queue{rdb: rdb, logger: logger, retryBaseDelay: retryBaseDelay}, nil
}

func (q *Queue) queueKey(p models.Priority) string { return "prreview:queue:" + string(p) }
func (q *Queue) processingKey() string             { return "prreview:processing" }
func (q *Queue) retryScheduledKey() string         { return "prreview:retry-scheduled" }
func (q *Queue) ticketKey(id string) string        { return "prreview:ticket:" + id }

// Submit enqueues a task id with an opaque payload, returning a new
// queue-ticket id, per spec.md §4.1's submit(task_id, args) operation.
func (q *Queue) Submit(ctx context.Context, taskID string, priority models.Priority, payload map[string]any) (string, error) {
	if q.stopped.Load() {
		return "", ErrQueueStopped
	}
	depth, err := q.rdb.LLen(ctx, q.queueKey(priority)).Result()
	if err != nil {
		return "", fmt.Errorf("queue: checking depth: %w", err)
	}
	if depth >= maxQueueDepth {
		return "", apperr.New(apperr.KindRateLimited, fmt.Sprintf("%s priority queue is full", priority))
	}
	ticket := Ticket{
		ID:       uuid.NewString(),
		TaskID:   taskID,
		Priority: priority,
		Payload:  payload,
		Status:   "queued",
	}
	if err := q.saveTicket(ctx, &ticket); err != nil {
		return "", err
	}
	// Append at the tail; Claim pops from the head, so each lane is FIFO.
	if err := q.rdb.RPush(ctx, q.queueKey(priority), ticket.ID).Err(); err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	q.totalSubmitted.Add(1)
	return ticket.ID, nil
}

// Claim blocks (up to wait) until a ticket is available across all
// priority queues, checked high to low, or returns ErrNoTicket on timeout.
// The ticket moves into the processing set with a visibility deadline so a
// worker crash causes re-delivery, per spec.md §4.1.
func (q *Queue) Claim(ctx context.Context, wait time.Duration) (*Ticket, error) {
	if q.stopped.Load() {
		return nil, ErrQueueStopped
	}
	if err := q.reclaimExpired(ctx); err != nil && q.logger != nil {
		q.logger.Warn("queue: reclaim expired tickets failed", zap.Error(err))
	}
	if err := q.promoteDueRetries(ctx); err != nil && q.logger != nil {
		q.logger.Warn("queue: promoting scheduled retries failed", zap.Error(err))
	}

	keys := make([]string, len(priorityOrder))
	for i, p := range priorityOrder {
		keys[i] = q.queueKey(p)
	}
	res, err := q.rdb.BLPop(ctx, wait, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoTicket
	}
	if err != nil {
		return nil, fmt.Errorf("queue: claim: %w", err)
	}
	ticketID := res[1]

	deadline := float64(time.Now().Add(visibilityTimeout).Unix())
	if err := q.rdb.ZAdd(ctx, q.processingKey(), redis.Z{Score: deadline, Member: ticketID}).Err(); err != nil {
		return nil, fmt.Errorf("queue: mark processing: %w", err)
	}

	ticket, err := q.loadTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	ticket.Status = "processing"
	ticket.Attempts++
	if err := q.saveTicket(ctx, ticket); err != nil {
		return nil, err
	}
	q.totalClaimed.Add(1)
	return ticket, nil
}

// UpdateProgress writes the opaque small JSON payload for a ticket still in
// flight, per spec.md §4.1.
func (q *Queue) UpdateProgress(ctx context.Context, ticketID string, progress int, payload map[string]any) error {
	ticket, err := q.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	ticket.Progress = progress
	if payload != nil {
		ticket.Payload = payload
	}
	return q.saveTicket(ctx, ticket)
}

// MarkTerminal records the final disposition and acknowledges the ticket —
// late acknowledgement, only after the worker has written a terminal
// status (or scheduled a retry) to the Repository Store, per spec.md §4.1.
func (q *Queue) MarkTerminal(ctx context.Context, ticketID string, outcome Outcome, info string) error {
	if err := q.rdb.ZRem(ctx, q.processingKey(), ticketID).Err(); err != nil {
		return fmt.Errorf("queue: ack remove: %w", err)
	}
	ticket, err := q.loadTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	ticket.Status = string(outcome)

	switch outcome {
	case OutcomeRetry:
		// Schedule re-enqueue after the backoff delay rather than
		// re-enqueueing immediately; the worker already incremented
		// retry_count on the Task row in the Repository Store.
		// promoteDueRetries moves the ticket back into its priority queue
		// once the delay elapses.
		due := float64(time.Now().Add(q.retryBaseDelay).Unix())
		if err := q.rdb.ZAdd(ctx, q.retryScheduledKey(), redis.Z{Score: due, Member: ticket.ID}).Err(); err != nil {
			return fmt.Errorf("queue: schedule retry: %w", err)
		}
		ticket.Status = "retry_scheduled"
		return q.saveTicket(ctx, ticket)
	default:
		if err := q.saveTicket(ctx, ticket); err != nil {
			return err
		}
		return q.rdb.Expire(ctx, q.ticketKey(ticketID), time.Hour).Err()
	}
}

// reclaimExpired moves tickets whose visibility deadline has passed back
// into their priority queue, the re-delivery mechanism spec.md §4.1's
// "re-delivered after a visibility timeout" requires.
func (q *Queue) reclaimExpired(ctx context.Context) error {
	now := float64(time.Now().Unix())
	expired, err := q.rdb.ZRangeByScore(ctx, q.processingKey(), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return err
	}
	for _, ticketID := range expired {
		ticket, err := q.loadTicket(ctx, ticketID)
		if err != nil {
			_ = q.rdb.ZRem(ctx, q.processingKey(), ticketID).Err()
			continue
		}
		if err := q.rdb.ZRem(ctx, q.processingKey(), ticketID).Err(); err != nil {
			return err
		}
		if err := q.rdb.LPush(ctx, q.queueKey(ticket.Priority), ticketID).Err(); err != nil {
			return err
		}
		q.totalExpired.Add(1)
		metrics.QueueReclaimed.Inc()
		if q.logger != nil {
			q.logger.Warn("queue: reclaimed expired ticket", zap.String("ticket_id", ticketID), zap.String("task_id", ticket.TaskID))
		}
	}
	return nil
}

// promoteDueRetries moves tickets whose retry backoff has elapsed back
// into their priority queue, the delayed-re-enqueue half of spec.md §4.7's
// "60-second base delay" retry policy. It reuses the same ZAdd/
// ZRangeByScore-by-deadline shape reclaimExpired already uses for the
// visibility timeout.
func (q *Queue) promoteDueRetries(ctx context.Context) error {
	now := float64(time.Now().Unix())
	due, err := q.rdb.ZRangeByScore(ctx, q.retryScheduledKey(), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil {
		return err
	}
	for _, ticketID := range due {
		ticket, err := q.loadTicket(ctx, ticketID)
		if err != nil {
			_ = q.rdb.ZRem(ctx, q.retryScheduledKey(), ticketID).Err()
			continue
		}
		if err := q.rdb.ZRem(ctx, q.retryScheduledKey(), ticketID).Err(); err != nil {
			return err
		}
		if err := q.rdb.LPush(ctx, q.queueKey(ticket.Priority), ticketID).Err(); err != nil {
			return err
		}
		ticket.Status = "queued"
		if err := q.saveTicket(ctx, ticket); err != nil {
			return err
		}
		if q.logger != nil {
			q.logger.Debug("queue: promoted scheduled retry", zap.String("ticket_id", ticketID), zap.String("task_id", ticket.TaskID))
		}
	}
	return nil
}

func (q *Queue) saveTicket(ctx context.Context, t *Ticket) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("queue: marshal ticket: %w", err)
	}
	return q.rdb.Set(ctx, q.ticketKey(t.ID), data, 0).Err()
}

func (q *Queue) loadTicket(ctx context.Context, id string) (*Ticket, error) {
	data, err := q.rdb.Get(ctx, q.ticketKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("queue: ticket %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: load ticket: %w", err)
	}
	var t Ticket
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("queue: unmarshal ticket: %w", err)
	}
	return &t, nil
}

// Stop stops accepting new submissions/claims and closes the Redis client.
func (q *Queue) Stop() error {
	q.stopped.Store(true)
	return q.rdb.Close()
}
