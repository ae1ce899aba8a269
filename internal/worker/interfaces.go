package worker

import (
	"context"
	"time"

	"prreview/internal/analyzer"
	"prreview/internal/codehost"
	"prreview/internal/queue"
)

// CodeHostClient is the C2 surface the Task Worker drives. *codehost.Client
// satisfies it; tests substitute a fake from internal/testsupport so the
// state machine can be exercised without a live GitHub API.
type CodeHostClient interface {
	GetPullRequest(ctx context.Context, owner, name string, prNumber int) (*codehost.PRMeta, error)
	GetPRFiles(ctx context.Context, owner, name string, prNumber int) ([]codehost.FileChange, error)
	GetFileContent(ctx context.Context, owner, name, path, ref string) (string, error)
}

// FileAnalyzer is the C5 surface the Task Worker drives per file.
// *analyzer.Analyzer satisfies it.
type FileAnalyzer interface {
	AnalyzeFile(ctx context.Context, prAnalysisID string, file codehost.FileChange, content string) (*analyzer.Result, error)
}

// TaskQueue is the C8 surface the Task Worker drives. *queue.Queue
// satisfies it.
type TaskQueue interface {
	Claim(ctx context.Context, wait time.Duration) (*queue.Ticket, error)
	MarkTerminal(ctx context.Context, ticketID string, outcome queue.Outcome, info string) error
}
