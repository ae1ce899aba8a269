package testsupport

import (
	"time"

	"github.com/google/uuid"

	"prreview/internal/models"
)

// NewTask builds a pending Task ready for InsertTask, with sane defaults
// every test can override by field after calling.
func NewTask() *models.Task {
	now := time.Now().UTC()
	return &models.Task{
		ID:         uuid.NewString(),
		RepoURL:    "https://github.com/acme/widgets/pull/42",
		Owner:      "acme",
		Name:       "widgets",
		PRNumber:   42,
		Priority:   models.PriorityNormal,
		Status:     models.TaskPending,
		Progress:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: 3,
	}
}
