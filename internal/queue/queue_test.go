package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prreview/internal/apperr"
	"prreview/internal/models"
)

// newTestQueue builds a Queue against an in-process miniredis server,
// grounded on kubernaut's test/integration/gateway suite's use of
// alicebob/miniredis for Redis-backed components that would otherwise need
// a live broker.
func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(srv.Close)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	return &Queue{rdb: rdb, logger: zap.NewNop()}
}

func TestSubmitAndClaimRoundTrip(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	ticketID, err := q.Submit(ctx, "task-1", models.PriorityHigh, map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	ticket, err := q.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if ticket.ID != ticketID {
		t.Fatalf("expected claimed ticket %s, got %s", ticketID, ticket.ID)
	}
	if ticket.TaskID != "task-1" {
		t.Fatalf("expected task_id task-1, got %s", ticket.TaskID)
	}
}

func TestClaimRespectsPriorityOrder(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	lowID, err := q.Submit(ctx, "low-task", models.PriorityLow, nil)
	if err != nil {
		t.Fatalf("submit low: %v", err)
	}
	urgentID, err := q.Submit(ctx, "urgent-task", models.PriorityUrgent, nil)
	if err != nil {
		t.Fatalf("submit urgent: %v", err)
	}

	first, err := q.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if first.ID != urgentID {
		t.Fatalf("expected urgent ticket claimed first, got %s (low was %s)", first.ID, lowID)
	}
}

func TestClaimNoTicketAvailable(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Claim(context.Background(), 10*time.Millisecond)
	if err != ErrNoTicket {
		t.Fatalf("expected ErrNoTicket, got %v", err)
	}
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < maxQueueDepth; i++ {
		if _, err := q.Submit(ctx, "task", models.PriorityNormal, nil); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	_, err := q.Submit(ctx, "overflow", models.PriorityNormal, nil)
	if err == nil {
		t.Fatalf("expected the queue to reject submission once full")
	}
	if !apperr.Is(err, apperr.KindRateLimited) {
		t.Fatalf("expected a rate_limited error, got %v", err)
	}
}

func TestMarkTerminalRetryReEnqueues(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	ticketID, err := q.Submit(ctx, "task-1", models.PriorityNormal, nil)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := q.Claim(ctx, time.Second); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := q.MarkTerminal(ctx, ticketID, OutcomeRetry, "transient failure"); err != nil {
		t.Fatalf("mark terminal retry: %v", err)
	}

	ticket, err := q.Claim(ctx, time.Second)
	if err != nil {
		t.Fatalf("expected the retried ticket to be re-claimable: %v", err)
	}
	if ticket.ID != ticketID {
		t.Fatalf("expected the same ticket id re-delivered, got %s", ticket.ID)
	}
}
