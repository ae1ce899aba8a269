// Package testsupport holds fakes and fixture builders shared across the
// repository's package tests, grounded on codeNERD's internal/testing
// package and internal/store/mocks_test.go: hand-written fakes next to
// table-style fixtures, rather than a mocking framework for every
// collaborator (go.uber.org/mock is reserved for interfaces wide enough
// that hand-rolling them would be error-prone; none of the worker's three
// collaborator interfaces are).
package testsupport

import (
	"context"
	"sync"
	"time"

	"prreview/internal/analyzer"
	"prreview/internal/codehost"
	"prreview/internal/queue"
)

// FakeCodeHost implements worker.CodeHostClient. Each method is backed by a
// function field so a test can script per-call behavior; a nil field
// returns a default with no error (an open PR with the requested number,
// otherwise the zero value), convenient for tests that only care about a
// subset of the surface.
type FakeCodeHost struct {
	mu sync.Mutex

	GetPullRequestFunc func(ctx context.Context, owner, name string, prNumber int) (*codehost.PRMeta, error)
	GetPRFilesFunc     func(ctx context.Context, owner, name string, prNumber int) ([]codehost.FileChange, error)
	GetFileContentFunc func(ctx context.Context, owner, name, path, ref string) (string, error)

	PullRequestCalls int
	FilesCalls       int
	ContentCalls     int
}

func (f *FakeCodeHost) GetPullRequest(ctx context.Context, owner, name string, prNumber int) (*codehost.PRMeta, error) {
	f.mu.Lock()
	f.PullRequestCalls++
	f.mu.Unlock()
	if f.GetPullRequestFunc != nil {
		return f.GetPullRequestFunc(ctx, owner, name, prNumber)
	}
	return &codehost.PRMeta{Number: prNumber, State: "open"}, nil
}

func (f *FakeCodeHost) GetPRFiles(ctx context.Context, owner, name string, prNumber int) ([]codehost.FileChange, error) {
	f.mu.Lock()
	f.FilesCalls++
	f.mu.Unlock()
	if f.GetPRFilesFunc != nil {
		return f.GetPRFilesFunc(ctx, owner, name, prNumber)
	}
	return nil, nil
}

func (f *FakeCodeHost) GetFileContent(ctx context.Context, owner, name, path, ref string) (string, error) {
	f.mu.Lock()
	f.ContentCalls++
	f.mu.Unlock()
	if f.GetFileContentFunc != nil {
		return f.GetFileContentFunc(ctx, owner, name, path, ref)
	}
	return "", nil
}

// FakeAnalyzer implements worker.FileAnalyzer.
type FakeAnalyzer struct {
	mu sync.Mutex

	AnalyzeFileFunc func(ctx context.Context, prAnalysisID string, file codehost.FileChange, content string) (*analyzer.Result, error)

	Calls int
}

func (f *FakeAnalyzer) AnalyzeFile(ctx context.Context, prAnalysisID string, file codehost.FileChange, content string) (*analyzer.Result, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()
	if f.AnalyzeFileFunc != nil {
		return f.AnalyzeFileFunc(ctx, prAnalysisID, file, content)
	}
	return &analyzer.Result{FileAnalysis: nil}, nil
}

// FakeQueue implements worker.TaskQueue, scripted with a fixed slice of
// tickets to hand out one per Claim call, then queue.ErrNoTicket.
type FakeQueue struct {
	mu      sync.Mutex
	tickets []*queue.Ticket
	next    int

	Terminal []TerminalCall
}

// TerminalCall records one MarkTerminal invocation for assertions.
type TerminalCall struct {
	TicketID string
	Outcome  queue.Outcome
	Info     string
}

// NewFakeQueue builds a FakeQueue that hands out tickets in order.
func NewFakeQueue(tickets ...*queue.Ticket) *FakeQueue {
	return &FakeQueue{tickets: tickets}
}

func (q *FakeQueue) Claim(ctx context.Context, wait time.Duration) (*queue.Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.tickets) {
		return nil, queue.ErrNoTicket
	}
	t := q.tickets[q.next]
	q.next++
	return t, nil
}

func (q *FakeQueue) MarkTerminal(ctx context.Context, ticketID string, outcome queue.Outcome, info string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Terminal = append(q.Terminal, TerminalCall{TicketID: ticketID, Outcome: outcome, Info: info})
	return nil
}
