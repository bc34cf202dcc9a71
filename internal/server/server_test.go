package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"collegecontent/internal/collegedb/collegedbtest"
	"collegecontent/internal/config"
	"collegecontent/internal/core"
	"collegecontent/internal/llm"
	"collegecontent/internal/pipeline"
	"collegecontent/internal/workflow"
)

type fakeCheck bool

func (f fakeCheck) TestConnection(context.Context) bool { return bool(f) }

func newTestServer(t *testing.T, gw *llm.MockGateway, checks map[string]Checker) *Server {
	t.Helper()
	store := collegedbtest.NewStore(t,
		collegedbtest.College(1, "Indian Institute of Technology Bombay", "Mumbai", "Maharashtra", 1958),
		collegedbtest.College(2, "Veermata Jijabai Technological Institute", "Mumbai", "Maharashtra", 1887),
	)
	orch, err := pipeline.NewBuilder().WithGateway(gw).WithStore(store).Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return New(orch, config.Server{}, checks)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, llm.NewMockGateway(), map[string]Checker{"database": fakeCheck(true), "llm": fakeCheck(true)})
	rec := do(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	s = newTestServer(t, llm.NewMockGateway(), map[string]Checker{"database": fakeCheck(false)})
	rec = do(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
	if got := decodeBody[HealthResponse](t, rec); got.Checks["database"] != "error" {
		t.Errorf("Expected database check error, got %+v", got)
	}
}

func TestContentTypesAndColleges(t *testing.T) {
	s := newTestServer(t, llm.NewMockGateway(), nil)

	rec := do(t, s, http.MethodGet, "/api/content-types", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"web_article"`) {
		t.Errorf("Unexpected content types response %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/colleges?q=bombay", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Indian Institute of Technology Bombay") {
		t.Errorf("Unexpected search response %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/colleges", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without q, got %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		kind core.ErrorKind
		want int
	}{
		{core.KindInvalidArgument, http.StatusBadRequest},
		{core.KindInputMalformed, http.StatusBadRequest},
		{core.KindNotFound, http.StatusNotFound},
		{core.KindNoResults, http.StatusNotFound},
		{core.KindStateOrder, http.StatusConflict},
		{core.KindSchemaMismatch, http.StatusInternalServerError},
		{core.KindDataUnavailable, http.StatusServiceUnavailable},
		{core.KindGenerationTimeout, http.StatusGatewayTimeout},
		{core.KindGenerationRejected, http.StatusUnprocessableEntity},
		{core.KindGenerationFailed, http.StatusBadGateway},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.kind); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestSessionFlow(t *testing.T) {
	gw := llm.NewMockGateway(
		"## Introduction\n- Mumbai\n## Admissions\n- JEE",
		"# Guide\n\n## Introduction\n\nMumbai.\n\n## Admissions\n\nJEE.\n",
	)
	s := newTestServer(t, gw, nil)

	rec := do(t, s, http.MethodPost, "/api/sessions", map[string]string{"content_type": "faq_page"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	id := decodeBody[workflow.Snapshot](t, rec).ID
	base := "/api/sessions/" + id

	rec = do(t, s, http.MethodPost, base+"/fetch", pipeline.FetchRequest{Request: "colleges in Mumbai"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Fetch: %d %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[FetchResponse](t, rec); got.SessionID != id || len(got.Result.Records) != 2 || got.Warning != nil {
		t.Errorf("Unexpected fetch response: %+v", got)
	}

	// Outline before a prompt is an ordering error
	rec = do(t, s, http.MethodPost, base+"/outline", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec); got.Kind != string(core.KindStateOrder) || got.Retryable {
		t.Errorf("Unexpected error body: %+v", got)
	}

	steps := []struct {
		method, path string
		body         any
	}{
		{http.MethodPost, "/prompt", map[string]string{"text": "FAQ about Mumbai engineering colleges"}},
		{http.MethodPost, "/outline", nil},
		{http.MethodPost, "/outline/approve", nil},
		{http.MethodPost, "/content", map[string]any{"keywords": []string{"iit bombay"}}},
	}
	for _, st := range steps {
		rec = do(t, s, st.method, base+st.path, st.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s %s: %d %s", st.method, st.path, rec.Code, rec.Body.String())
		}
	}
	fc := decodeBody[core.FinalContent](t, rec)
	if fc.ContentType != "faq_page" || !strings.Contains(fc.Markdown, "## Admissions") {
		t.Errorf("Unexpected content: %+v", fc)
	}

	rec = do(t, s, http.MethodGet, base, nil)
	if snap := decodeBody[workflow.Snapshot](t, rec); snap.Stage != workflow.ContentGenerated {
		t.Errorf("Expected content_generated, got %s", snap.Stage)
	}

	rec = do(t, s, http.MethodPost, base+"/restart", map[string]string{"stage": "outline_approved"})
	if snap := decodeBody[workflow.Snapshot](t, rec); rec.Code != http.StatusOK || snap.Stage != workflow.PromptDefined {
		t.Errorf("Expected restart to prompt_defined, got %d %s", rec.Code, snap.Stage)
	}

	rec = do(t, s, http.MethodPost, base+"/restart", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a stage, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	rec = do(t, s, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", rec.Code)
	}
}

func TestFetchNoResultsIsWarning(t *testing.T) {
	s := newTestServer(t, llm.NewMockGateway(), nil)
	rec := do(t, s, http.MethodPost, "/api/sessions/abc/fetch", pipeline.FetchRequest{Request: "colleges in Chennai"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[FetchResponse](t, rec)
	if got.SessionID != "abc" || got.Warning == nil || got.Warning.Kind != string(core.KindNoResults) {
		t.Errorf("Expected no-results warning, got %+v", got)
	}
}

func TestImportCSVMultipart(t *testing.T) {
	s := newTestServer(t, llm.NewMockGateway(), nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "colleges.csv")
	if err != nil {
		t.Fatalf("CreateFormFile error: %v", err)
	}
	fw.Write([]byte("ID,Name,City,State\n7,Test College,Nagpur,Maharashtra\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/up/csv?content_type=blog_post", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got := decodeBody[FetchResponse](t, rec)
	if len(got.Result.Records) != 1 || got.Result.Source != core.SourceCSV {
		t.Errorf("Unexpected import: %+v", got.Result)
	}
}

func TestGenerationErrorIsRetryable(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.Err = &core.Error{Kind: core.KindGenerationTimeout}
	s := newTestServer(t, gw, nil)

	do(t, s, http.MethodPost, "/api/sessions/x/fetch", pipeline.FetchRequest{Request: "colleges in Mumbai"})
	rec := do(t, s, http.MethodPost, "/api/sessions/x/topics", map[string]int{"count": 3})
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("Expected 504, got %d", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec); !got.Retryable {
		t.Errorf("Expected retryable error, got %+v", got)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	s := newTestServer(t, llm.NewMockGateway(), nil)
	rec := do(t, s, http.MethodPost, "/api/sessions", map[string]string{"contentType": "faq_page"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown field, got %d", rec.Code)
	}
}
