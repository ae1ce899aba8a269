package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"prreview/internal/queue"
	"prreview/internal/store"
)

// newTestServer wires a Server against a real in-memory SQLite store and a
// Queue backed by an in-process miniredis instance, so the router's three
// operations can be exercised end to end without any live infrastructure.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	redisSrv, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(redisSrv.Close)

	q, err := queue.New("redis://"+redisSrv.Addr(), zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("connecting queue: %v", err)
	}
	t.Cleanup(func() { q.Stop() })

	return New(st, q, zap.NewNop(), 3)
}

func TestSubmitAnalysisAccepted(t *testing.T) {
	s := newTestServer(t)
	body := `{"repo_url":"https://github.com/acme/widgets","pr_number":7}`
	req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp submitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.TaskID == "" {
		t.Fatalf("expected a non-empty task id")
	}
}

func TestSubmitAnalysisMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBufferString("not json"))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestSubmitAnalysisValidationFailure(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing repo_url/pr_number, got %d", rec.Code)
	}
}

func TestGetStatusNotFound(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/analyses/does-not-exist/status", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetStatusAfterSubmit(t *testing.T) {
	s := newTestServer(t)
	submitBody := `{"repo_url":"https://github.com/acme/widgets","pr_number":7}`
	submitReq := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBufferString(submitBody))
	submitRec := httptest.NewRecorder()
	s.Router().ServeHTTP(submitRec, submitReq)

	var submitResp submitResponse
	if err := json.Unmarshal(submitRec.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("decoding submit response: %v", err)
	}

	statusReq := httptest.NewRequest(http.MethodGet, "/analyses/"+submitResp.TaskID+"/status", nil)
	statusRec := httptest.NewRecorder()
	s.Router().ServeHTTP(statusRec, statusReq)

	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", statusRec.Code, statusRec.Body.String())
	}
	var status statusResponse
	if err := json.Unmarshal(statusRec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding status response: %v", err)
	}
	if status.Status != "pending" {
		t.Fatalf("expected a freshly submitted task to be pending, got %s", status.Status)
	}
}

func TestGetResultsNotCompletedReturnsStatusOnly(t *testing.T) {
	s := newTestServer(t)
	submitBody := `{"repo_url":"https://github.com/acme/widgets","pr_number":7}`
	submitReq := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBufferString(submitBody))
	submitRec := httptest.NewRecorder()
	s.Router().ServeHTTP(submitRec, submitReq)

	var submitResp submitResponse
	if err := json.Unmarshal(submitRec.Body.Bytes(), &submitResp); err != nil {
		t.Fatalf("decoding submit response: %v", err)
	}

	resultsReq := httptest.NewRequest(http.MethodGet, "/analyses/"+submitResp.TaskID+"/results", nil)
	resultsRec := httptest.NewRecorder()
	s.Router().ServeHTTP(resultsRec, resultsReq)

	if resultsRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resultsRec.Code, resultsRec.Body.String())
	}
	var results resultsResponse
	if err := json.Unmarshal(resultsRec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decoding results response: %v", err)
	}
	if results.Summary != nil {
		t.Fatalf("expected a pending task's results to omit the summary, got %+v", results.Summary)
	}
	if results.Status != "pending" {
		t.Fatalf("expected status=pending, got %s", results.Status)
	}
}
