package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"collegecontent/internal/core"
	"collegecontent/internal/keywords"
	"collegecontent/internal/pipeline"
	"collegecontent/internal/workflow"
)

// FetchResponse is returned by the fetch and CSV routes. Warning is set when
// nothing matched; the session still moves on.
type FetchResponse struct {
	SessionID string           `json:"session_id"`
	Result    core.FetchResult `json:"result"`
	Warning   *ErrorResponse   `json:"warning,omitempty"`
}

type indexRequest struct {
	Index       int    `json:"index"`
	Instruction string `json:"instruction"`
}

type stageRequest struct {
	Stage *workflow.Stage `json:"stage"`
}

// stage decodes a stageRequest body; the stage is required
func (s *Server) stage(w http.ResponseWriter, r *http.Request) (workflow.Stage, bool) {
	var body stageRequest
	if !s.decode(w, r, &body) {
		return 0, false
	}
	if body.Stage == nil {
		s.respondError(w, core.Errorf(core.KindInvalidArgument, "server.stage", "stage is required (one of %v)", workflow.Stages))
		return 0, false
	}
	return *body.Stage, true
}

func sessionID(r *http.Request) string { return chi.URLParam(r, "id") }

// handleCreateSession handles POST /api/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContentType string `json:"content_type"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	snap, err := s.orch.NewSession(body.ContentType)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, snap)
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Session(sessionID(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

// handleDeleteSession handles DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.orch.EndSession(sessionID(r)) {
		s.respondError(w, core.Errorf(core.KindNotFound, "server.DeleteSession", "session %q not found", sessionID(r)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleFetch handles POST /api/sessions/{id}/fetch
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var body pipeline.FetchRequest
	if !s.decode(w, r, &body) {
		return
	}
	id, result, err := s.orch.FetchData(r.Context(), sessionID(r), body)
	s.respondFetch(w, id, result, err)
}

// handleImportCSV handles POST /api/sessions/{id}/csv. The file is either the
// raw body or the "file" part of a multipart form; content_type, request and
// enrich come from the query string.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			s.respondError(w, core.Wrap(core.KindInputMalformed, "server.ImportCSV", err))
			return
		}
		defer f.Close()
		src = f
	}

	q := r.URL.Query()
	enrich, _ := strconv.ParseBool(q.Get("enrich"))
	id, result, err := s.orch.ImportCSV(r.Context(), sessionID(r), src, pipeline.CSVRequest{
		Request:     q.Get("request"),
		ContentType: q.Get("content_type"),
		Enrich:      enrich,
	})
	s.respondFetch(w, id, result, err)
}

func (s *Server) respondFetch(w http.ResponseWriter, id string, result core.FetchResult, err error) {
	resp := FetchResponse{SessionID: id, Result: result}
	if err != nil {
		if !errors.Is(err, core.ErrNoResults) {
			s.respondError(w, err)
			return
		}
		resp.Warning = &ErrorResponse{Kind: string(core.KindNoResults), Message: err.Error()}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleTrends handles POST /api/sessions/{id}/trends
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	text, err := s.orch.LoadTrends(r.Context(), sessionID(r), body.Query)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"trends": text, "found": text != ""})
}

// handleKeywords handles PUT /api/sessions/{id}/keywords. Keywords come as
// a list or as free text separated by commas or newlines.
func (s *Server) handleKeywords(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keywords []string `json:"keywords"`
		Text     string   `json:"text"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	kws := append(body.Keywords, keywords.ParseManual(body.Text)...)
	out, err := s.orch.SetKeywords(sessionID(r), kws)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"keywords": out})
}

// handleGenerateTopics handles POST /api/sessions/{id}/topics
func (s *Server) handleGenerateTopics(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Count int `json:"count"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.GenerateTopics(r.Context(), sessionID(r), body.Count)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"topics": out})
}

// handleRefineTopic handles POST /api/sessions/{id}/topics/refine
func (s *Server) handleRefineTopic(w http.ResponseWriter, r *http.Request) {
	var body indexRequest
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.RefineTopic(r.Context(), sessionID(r), body.Index, body.Instruction)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleSelectTopic handles POST /api/sessions/{id}/topics/select
func (s *Server) handleSelectTopic(w http.ResponseWriter, r *http.Request) {
	var body pipeline.TopicChoice
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.SelectTopic(sessionID(r), body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleGeneratePrompts handles POST /api/sessions/{id}/prompts
func (s *Server) handleGeneratePrompts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Request string `json:"request"`
		Count   int    `json:"count"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.GeneratePrompts(r.Context(), sessionID(r), body.Request, body.Count)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"prompts": out})
}

// handleRefinePrompt handles POST /api/sessions/{id}/prompts/refine
func (s *Server) handleRefinePrompt(w http.ResponseWriter, r *http.Request) {
	var body indexRequest
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.RefinePrompt(r.Context(), sessionID(r), body.Index, body.Instruction)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleDefinePrompt handles POST /api/sessions/{id}/prompt
func (s *Server) handleDefinePrompt(w http.ResponseWriter, r *http.Request) {
	var body pipeline.PromptChoice
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.DefinePrompt(sessionID(r), body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleBuildOutline handles POST /api/sessions/{id}/outline
func (s *Server) handleBuildOutline(w http.ResponseWriter, r *http.Request) {
	out, err := s.orch.BuildOutline(r.Context(), sessionID(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleEditOutline handles PUT /api/sessions/{id}/outline
func (s *Server) handleEditOutline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.EditOutline(sessionID(r), body.Text)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleRefineOutline handles POST /api/sessions/{id}/outline/refine
func (s *Server) handleRefineOutline(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Feedback string `json:"feedback"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.RefineOutline(r.Context(), sessionID(r), body.Feedback)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleApproveOutline handles POST /api/sessions/{id}/outline/approve
func (s *Server) handleApproveOutline(w http.ResponseWriter, r *http.Request) {
	out, err := s.orch.ApproveOutline(sessionID(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleGenerateContent handles POST /api/sessions/{id}/content
func (s *Server) handleGenerateContent(w http.ResponseWriter, r *http.Request) {
	var body pipeline.ContentOptions
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.GenerateContent(r.Context(), sessionID(r), body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleEditContent handles PUT /api/sessions/{id}/content
func (s *Server) handleEditContent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Markdown string `json:"markdown"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.EditContent(sessionID(r), body.Markdown)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleRegenerateContent handles POST /api/sessions/{id}/content/regenerate
func (s *Server) handleRegenerateContent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Instructions string `json:"instructions"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.RegenerateContent(r.Context(), sessionID(r), body.Instructions)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleRegenerateSection handles POST /api/sessions/{id}/content/section
func (s *Server) handleRegenerateSection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Heading     string `json:"heading"`
		Instruction string `json:"instruction"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.RegenerateSection(r.Context(), sessionID(r), body.Heading, body.Instruction)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleEnhanceSEO handles POST /api/sessions/{id}/content/seo
func (s *Server) handleEnhanceSEO(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keywords []string `json:"keywords"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	out, err := s.orch.EnhanceSEO(r.Context(), sessionID(r), body.Keywords)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

// handleConfirm handles POST /api/sessions/{id}/confirm
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	stage, ok := s.stage(w, r)
	if !ok {
		return
	}
	snap, err := s.orch.Confirm(sessionID(r), stage)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

// handleRestart handles POST /api/sessions/{id}/restart
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	stage, ok := s.stage(w, r)
	if !ok {
		return
	}
	snap, err := s.orch.Restart(sessionID(r), stage)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}
