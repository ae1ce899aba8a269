package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"prreview/internal/apperr"
	"prreview/internal/codehost"
	"prreview/internal/models"
	"prreview/internal/store"
)

// submitAnalysis implements spec.md §6's submitAnalysis(repoURL, prNumber,
// token?, priority="normal", options?) → task_id, returning 202 Accepted.
func (s *Server) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, apperr.New(apperr.KindValidation, "malformed request body"))
		return
	}
	if req.Priority == "" {
		req.Priority = string(models.PriorityNormal)
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.Wrap(apperr.KindValidation, "invalid request", err))
		return
	}

	owner, name, err := codehost.ParseRepoURL(req.RepoURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, apperr.Wrap(apperr.KindValidation, "unrecognized repository url", err))
		return
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:         uuid.NewString(),
		RepoURL:    req.RepoURL,
		Owner:      owner,
		Name:       name,
		PRNumber:   req.PRNumber,
		Priority:   models.Priority(req.Priority),
		Status:     models.TaskPending,
		Progress:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: s.maxRetries,
		Config:     req.Options,
	}
	if err := s.store.InsertTask(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	ticketID, err := s.queue.Submit(r.Context(), task.ID, task.Priority, map[string]any{"pr_number": task.PRNumber})
	if err != nil {
		if apperr.Is(err, apperr.KindRateLimited) {
			writeError(w, http.StatusTooManyRequests, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.store.SetQueueTicket(r.Context(), task.ID, ticketID); err != nil {
		s.logger.Warn("httpapi: failed to record queue ticket", zap.String("task_id", task.ID), zap.Error(err))
	}

	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: task.ID})
}

// getStatus implements spec.md §6's getStatus(task_id).
func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := s.store.GetTask(r.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, apperr.New(apperr.KindNotFound, "task not found"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Progress:  task.Progress,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
		Stage:     stageForProgress(task.Status, task.Progress),
		Error:     task.ErrorMessage,
	})
}

// getResults implements spec.md §6's getResults(task_id) → {...} |
// NotCompleted. A task not yet in a terminal state returns 200 with only
// the status fields populated — the "NotCompleted" case.
func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := s.store.GetTask(r.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, apperr.New(apperr.KindNotFound, "task not found"))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if !task.Status.Terminal() {
		writeJSON(w, http.StatusOK, resultsResponse{TaskID: task.ID, Status: string(task.Status)})
		return
	}

	pr, err := s.store.GetPRAnalysisByTask(r.Context(), taskID)
	if errors.Is(err, store.ErrNotFound) {
		// Failed before a PRAnalysis was ever opened (e.g. fetch failure
		// exhausted retries, spec.md §8 scenario S4).
		writeJSON(w, http.StatusOK, resultsResponse{TaskID: task.ID, Status: string(task.Status)})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	files, err := s.store.ListFileAnalyses(r.Context(), pr.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	issues, err := s.store.ListIssuesByPR(r.Context(), pr.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	issuesByFile := make(map[string][]issueView)
	for _, iss := range issues {
		if iss.FileAnalysisID == nil {
			continue
		}
		issuesByFile[*iss.FileAnalysisID] = append(issuesByFile[*iss.FileAnalysisID], issueView{
			Type:        string(iss.IssueType),
			Severity:    string(iss.Severity),
			Line:        iss.Line,
			Title:       iss.Title,
			Description: iss.Description,
			Suggestion:  iss.Suggestion,
		})
	}

	fileResults := make([]fileResult, 0, len(files))
	for _, f := range files {
		fileResults = append(fileResults, fileResult{
			FilePath:            f.FilePath,
			Language:            f.Language,
			Complexity:          f.Complexity,
			Maintainability:     f.Maintainability,
			IssuesCount:         f.IssuesCount,
			CriticalIssuesCount: f.CriticalIssuesCount,
			Recommendations:     f.Recommendations,
			Issues:              issuesByFile[f.ID],
		})
	}

	writeJSON(w, http.StatusOK, resultsResponse{
		TaskID: task.ID,
		Status: string(task.Status),
		PRMetadata: &prMetadata{
			URL:        pr.PRURL,
			BaseBranch: pr.BaseBranch,
			HeadBranch: pr.HeadBranch,
			BaseSHA:    pr.BaseSHA,
			HeadSHA:    pr.HeadSHA,
		},
		Summary: &resultsSummary{
			QualityScore:         pr.QualityScore,
			MaintainabilityScore: pr.MaintainabilityScore,
			ComplexityScore:      pr.ComplexityScore,
			FilesAnalyzed:        pr.FilesAnalyzed,
			LinesAnalyzed:        pr.LinesAnalyzed,
			IssuesFound:          pr.IssuesFound,
			CriticalCount:        pr.CriticalCount,
			HighCount:            pr.HighCount,
			MediumCount:          pr.MediumCount,
			LowCount:             pr.LowCount,
			InfoCount:            pr.InfoCount,
			Text:                 pr.Summary,
			Recommendations:      pr.Recommendations,
		},
		Files: fileResults,
	})
}

// stageForProgress labels the worker stage a progress value falls in, per
// the table in spec.md §4.7 — a read-only convenience for status pollers,
// not persisted state.
func stageForProgress(status models.TaskStatus, progress int) string {
	if status.Terminal() {
		return string(status)
	}
	switch {
	case progress < 10:
		return "initializing"
	case progress < 30:
		return "fetching_pr_data"
	case progress < 85:
		return "analyzing_files"
	case progress < 95:
		return "generating_summary"
	default:
		return "saving_results"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		writeJSON(w, status, errorResponse{ErrorCode: string(appErr.Kind), Message: appErr.Message, Context: appErr.Context})
		return
	}
	writeJSON(w, status, errorResponse{ErrorCode: string(apperr.KindDatabase), Message: err.Error()})
}
