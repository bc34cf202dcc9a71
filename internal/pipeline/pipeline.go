// Package pipeline drives one content session through its stages. Each
// operation locks the session, checks the stage order through the workflow
// state, calls the stage component and records the artifact.
package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"collegecontent/internal/content"
	"collegecontent/internal/contenttypes"
	"collegecontent/internal/core"
	"collegecontent/internal/csvio"
	"collegecontent/internal/datafetch"
	"collegecontent/internal/keywords"
	"collegecontent/internal/logger"
	"collegecontent/internal/outline"
	"collegecontent/internal/topics"
	"collegecontent/internal/trends"
	"collegecontent/internal/workflow"
)

// Orchestrator owns the sessions and the stage components
type Orchestrator struct {
	sessions  *workflow.Manager
	extractor FilterExtractor
	fetcher   DataFetcher
	search    CollegeSearcher // Optional
	topics    TopicGenerator
	outlines  OutlineBuilder
	writer    ContentWriter
	trends    trends.Provider // Optional
	catalog   *contenttypes.Catalog

	config *Config
}

// Config holds orchestrator settings
type Config struct {
	DefaultContentType string
	TopicCount         int // 0 lets the topic stage use its own default
	PromptCount        int
	SearchLimit        int
	SessionTTL         time.Duration
}

// DefaultConfig returns the settings used when none are given
func DefaultConfig() *Config {
	return &Config{
		DefaultContentType: "web_article",
		SearchLimit:        20,
		SessionTTL:         workflow.DefaultSessionTTL,
	}
}

// FetchRequest starts (or restarts) a session from a free-text request.
// Filters, when set, bypass extraction.
type FetchRequest struct {
	Request     string          `json:"request"`
	ContentType string          `json:"content_type,omitempty"`
	Filters     *core.FilterSet `json:"filters,omitempty"`
}

// CSVRequest starts a session from an uploaded CSV file
type CSVRequest struct {
	Request     string
	ContentType string
	Enrich      bool // Replace rows the store also knows with its version
}

// TopicChoice selects a generated candidate by index or enters a custom topic
type TopicChoice struct {
	Index  *int   `json:"index,omitempty"`
	Custom string `json:"custom,omitempty"`
}

// PromptChoice defines the prompt from a generated variation, a preset or
// free text. Exactly one must be set.
type PromptChoice struct {
	Index  *int   `json:"index,omitempty"`
	Preset string `json:"preset,omitempty"`
	Text   string `json:"text,omitempty"`
}

// ContentOptions carries optional inputs of the content stage
type ContentOptions struct {
	Instructions string   `json:"instructions,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// Sessions exposes the session manager, e.g. to run its sweeper
func (o *Orchestrator) Sessions() *workflow.Manager { return o.sessions }

// Catalog returns the content type catalog
func (o *Orchestrator) Catalog() *contenttypes.Catalog { return o.catalog }

// NewSession creates an empty session for contentType (default when empty)
func (o *Orchestrator) NewSession(contentType string) (workflow.Snapshot, error) {
	ct, err := o.contentTypeID(contentType)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	if ct == "" {
		ct = o.config.DefaultContentType
	}
	sess := o.sessions.Create()
	_ = sess.Do(func(st *workflow.State) error {
		st.Scratch.ContentType = ct
		return nil
	})
	logger.Info("Session created", "session", sess.ID(), "content_type", ct)
	return sess.Snapshot(), nil
}

// Session returns a snapshot of a session
func (o *Orchestrator) Session(id string) (workflow.Snapshot, error) {
	sess, err := o.sessions.Get(id)
	if err != nil {
		return workflow.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// EndSession tears a session down. It reports whether the session existed.
func (o *Orchestrator) EndSession(id string) bool {
	ok := o.sessions.Delete(id)
	if ok {
		logger.Info("Session ended", "session", id)
	}
	return ok
}

// Extract runs the query filter extractor; it touches no session
func (o *Orchestrator) Extract(raw string) core.FilterSet {
	return o.extractor.Extract(raw)
}

// SearchColleges looks colleges up for pickers and the CLI
func (o *Orchestrator) SearchColleges(ctx context.Context, term string, limit int) ([]core.CollegeRecord, error) {
	if o.search == nil {
		return nil, core.Errorf(core.KindDataUnavailable, "pipeline.SearchColleges", "no data store configured")
	}
	if limit <= 0 {
		limit = o.config.SearchLimit
	}
	return o.search.SearchColleges(ctx, term, limit)
}

// FetchData runs the data fetch stage. An unknown or empty id creates the
// session, whose id is returned. An empty match is recorded as the
// DataFetched artifact and returned together with the NoResults error, so
// the session can continue with general topics.
func (o *Orchestrator) FetchData(ctx context.Context, id string, req FetchRequest) (string, core.FetchResult, error) {
	ctID, err := o.contentTypeID(req.ContentType)
	if err != nil {
		return "", core.FetchResult{}, err
	}
	if req.Filters == nil && strings.TrimSpace(req.Request) == "" {
		return "", core.FetchResult{}, core.Errorf(core.KindInvalidArgument, "pipeline.FetchData", "request is empty")
	}

	sess := o.sessions.GetOrCreate(id)
	var result core.FetchResult
	var noResults error
	err = o.do(sess, "fetch", func(st *workflow.State) error {
		filters := o.filters(req)
		var ferr error
		result, ferr = o.fetcher.Fetch(ctx, filters)
		if ferr != nil && !errors.Is(ferr, core.ErrNoResults) {
			return ferr
		}
		noResults = ferr
		return o.recordData(st, result, req.Request, ctID)
	})
	if err != nil {
		return sess.ID(), result, err
	}
	return sess.ID(), result, noResults
}

// ImportCSV runs the CSV-sourced data path: the uploaded rows become the
// DataFetched artifact.
func (o *Orchestrator) ImportCSV(ctx context.Context, id string, r io.Reader, req CSVRequest) (string, core.FetchResult, error) {
	ctID, err := o.contentTypeID(req.ContentType)
	if err != nil {
		return "", core.FetchResult{}, err
	}
	records, err := csvio.Import(r)
	if err != nil {
		return "", core.FetchResult{}, err
	}

	sess := o.sessions.GetOrCreate(id)
	var result core.FetchResult
	var noResults error
	err = o.do(sess, "csv", func(st *workflow.State) error {
		var ferr error
		result, ferr = o.fetcher.FromRecords(records, core.SourceCSV)
		if ferr != nil && !errors.Is(ferr, core.ErrNoResults) {
			return ferr
		}
		noResults = ferr
		if req.Enrich && noResults == nil {
			enriched, eerr := o.fetcher.Enrich(ctx, result)
			if eerr != nil {
				logger.Warn("CSV enrichment failed, keeping uploaded rows", "session", st.ID(), "error", eerr.Error())
			} else {
				result = enriched
			}
		}
		request := req.Request
		if request == "" {
			request = csvRequest(result.Records)
		}
		return o.recordData(st, result, request, ctID)
	})
	if err != nil {
		return sess.ID(), result, err
	}
	return sess.ID(), result, noResults
}

// LoadTrends looks up trend context for query (the session request when
// empty) and keeps it for the outline and content stages. Lookup failures
// leave the session without trends and are not returned.
func (o *Orchestrator) LoadTrends(ctx context.Context, id, query string) (string, error) {
	var text string
	err := o.run(id, "trends", func(st *workflow.State) error {
		q := strings.TrimSpace(query)
		if q == "" {
			q = trendQuery(st)
		}
		if q == "" {
			return core.Errorf(core.KindInvalidArgument, "pipeline.LoadTrends", "no query to look up")
		}
		text = trends.Lookup(ctx, o.trends, q)
		st.Scratch.Trends = text
		return nil
	})
	return text, err
}

// GenerateTopics proposes topic candidates from the fetched data
func (o *Orchestrator) GenerateTopics(ctx context.Context, id string, count int) ([]core.TopicCandidate, error) {
	if count <= 0 {
		count = o.config.TopicCount
	}
	var out []core.TopicCandidate
	err := o.run(id, "topics", func(st *workflow.State) error {
		data, err := st.Data()
		if err != nil {
			return err
		}
		out, err = o.topics.GenerateTopics(ctx, datafetch.SummaryText(data), o.contentType(st), count)
		if err != nil {
			return err
		}
		st.Scratch.Candidates = out
		return nil
	})
	return out, err
}

// RefineTopic rewrites one generated candidate in place
func (o *Orchestrator) RefineTopic(ctx context.Context, id string, index int, instruction string) (core.TopicCandidate, error) {
	var out core.TopicCandidate
	err := o.run(id, "topics.refine", func(st *workflow.State) error {
		if err := st.Require(workflow.DataFetched); err != nil {
			return err
		}
		if index < 0 || index >= len(st.Scratch.Candidates) {
			return core.Errorf(core.KindInvalidArgument, "pipeline.RefineTopic", "topic index %d out of range (%d candidates)", index, len(st.Scratch.Candidates))
		}
		var err error
		out, err = o.topics.RefineTopic(ctx, st.Scratch.Candidates[index], instruction)
		if err != nil {
			return err
		}
		st.Scratch.Candidates[index] = out
		return nil
	})
	return out, err
}

// SelectTopic records the TopicSelected artifact
func (o *Orchestrator) SelectTopic(id string, choice TopicChoice) (core.TopicCandidate, error) {
	const op = "pipeline.SelectTopic"
	var out core.TopicCandidate
	err := o.run(id, "topics.select", func(st *workflow.State) error {
		switch {
		case choice.Index != nil && choice.Custom != "":
			return core.Errorf(core.KindInvalidArgument, op, "choose a candidate or a custom topic, not both")
		case choice.Index != nil:
			i := *choice.Index
			if i < 0 || i >= len(st.Scratch.Candidates) {
				return core.Errorf(core.KindInvalidArgument, op, "topic index %d out of range (%d candidates)", i, len(st.Scratch.Candidates))
			}
			out = st.Scratch.Candidates[i]
		default:
			t, err := topics.CustomTopic(choice.Custom)
			if err != nil {
				return err
			}
			out = t
		}
		return st.Advance(workflow.TopicSelected, out)
	})
	return out, err
}

// GeneratePrompts proposes prompt variations. The request defaults to the
// session request, prefixed with the selected topic when there is one.
func (o *Orchestrator) GeneratePrompts(ctx context.Context, id, request string, count int) ([]core.PromptVariation, error) {
	if count <= 0 {
		count = o.config.PromptCount
	}
	var out []core.PromptVariation
	err := o.run(id, "prompts", func(st *workflow.State) error {
		data, err := st.Data()
		if err != nil {
			return err
		}
		req := strings.TrimSpace(request)
		if req == "" {
			req = st.Scratch.Request
		}
		if t := st.Artifacts().Topic; t != nil && !st.IsDirty(workflow.TopicSelected) {
			req = "Topic: " + t.Topic + "\nFocus: " + t.Focus + "\n\n" + req
		}
		out, err = o.topics.GeneratePrompts(ctx, req, datafetch.SummaryText(data), o.contentType(st), count)
		if err != nil {
			return err
		}
		st.Scratch.Variations = out
		return nil
	})
	return out, err
}

// RefinePrompt rewrites one generated variation in place
func (o *Orchestrator) RefinePrompt(ctx context.Context, id string, index int, instruction string) (core.PromptVariation, error) {
	var out core.PromptVariation
	err := o.run(id, "prompts.refine", func(st *workflow.State) error {
		if err := st.Require(workflow.DataFetched); err != nil {
			return err
		}
		if index < 0 || index >= len(st.Scratch.Variations) {
			return core.Errorf(core.KindInvalidArgument, "pipeline.RefinePrompt", "prompt index %d out of range (%d variations)", index, len(st.Scratch.Variations))
		}
		var err error
		out, err = o.topics.RefinePrompt(ctx, st.Scratch.Variations[index], instruction)
		if err != nil {
			return err
		}
		st.Scratch.Variations[index] = out
		return nil
	})
	return out, err
}

// DefinePrompt records the PromptDefined artifact. When no topic was
// selected the topic stage is recorded as skipped (prompt-first flow).
func (o *Orchestrator) DefinePrompt(id string, choice PromptChoice) (core.PromptDefinition, error) {
	const op = "pipeline.DefinePrompt"
	var def core.PromptDefinition
	err := o.run(id, "prompt", func(st *workflow.State) error {
		if err := st.Require(workflow.DataFetched); err != nil {
			return err
		}
		set := 0
		for _, ok := range []bool{choice.Index != nil, choice.Preset != "", strings.TrimSpace(choice.Text) != ""} {
			if ok {
				set++
			}
		}
		if set != 1 {
			return core.Errorf(core.KindInvalidArgument, op, "choose exactly one of a variation, a preset or prompt text")
		}

		topic := st.Artifacts().Topic
		switch {
		case choice.Index != nil:
			i := *choice.Index
			if i < 0 || i >= len(st.Scratch.Variations) {
				return core.Errorf(core.KindInvalidArgument, op, "prompt index %d out of range (%d variations)", i, len(st.Scratch.Variations))
			}
			v := st.Scratch.Variations[i]
			def = core.PromptDefinition{Text: v.Description, Variation: &v}
		case choice.Preset != "":
			p, ok := o.catalog.Preset(choice.Preset)
			if !ok {
				return core.Errorf(core.KindNotFound, op, "unknown prompt preset %q", choice.Preset)
			}
			subject := st.Scratch.Request
			if topic != nil {
				subject = topic.Topic
			}
			def = core.PromptDefinition{Text: p.Render(subject), Preset: p.ID}
		default:
			def = core.PromptDefinition{Text: strings.TrimSpace(choice.Text)}
		}

		if topic == nil && (!st.IsSkipped(workflow.TopicSelected) || st.IsDirty(workflow.TopicSelected)) {
			if err := st.Skip(workflow.TopicSelected); err != nil {
				return err
			}
		}
		return st.Advance(workflow.PromptDefined, def)
	})
	return def, err
}

// BuildOutline drafts an outline from the selection and the fetched data.
// The draft is not an artifact until ApproveOutline.
func (o *Orchestrator) BuildOutline(ctx context.Context, id string) (core.ContentOutline, error) {
	var out core.ContentOutline
	err := o.run(id, "outline", func(st *workflow.State) error {
		prompt, err := st.Prompt()
		if err != nil {
			return err
		}
		topic, err := st.Topic()
		if err != nil {
			return err
		}
		data, err := st.Data()
		if err != nil {
			return err
		}
		out, err = o.outlines.Build(ctx, outline.Request{
			Selection:   core.NewSelection(topic, prompt),
			ContentType: o.contentType(st),
			Records:     data.Records,
			Trends:      st.Scratch.Trends,
		})
		if err != nil {
			return err
		}
		st.Scratch.OutlineDraft = &out
		return nil
	})
	return out, err
}

// RefineOutline rewrites the draft according to feedback
func (o *Orchestrator) RefineOutline(ctx context.Context, id, feedback string) (core.ContentOutline, error) {
	var out core.ContentOutline
	err := o.run(id, "outline.refine", func(st *workflow.State) error {
		if err := st.Require(workflow.PromptDefined); err != nil {
			return err
		}
		draft := st.Scratch.OutlineDraft
		if draft == nil {
			return core.Errorf(core.KindStateOrder, "pipeline.RefineOutline", "no outline draft to refine")
		}
		var err error
		out, err = o.outlines.Refine(ctx, *draft, feedback)
		if err != nil {
			return err
		}
		st.Scratch.OutlineDraft = &out
		return nil
	})
	return out, err
}

// EditOutline replaces the outline with user text. Before approval it
// replaces the draft; after approval it records the edit as the approved
// outline, which dirties generated content.
func (o *Orchestrator) EditOutline(id, text string) (core.ContentOutline, error) {
	var out core.ContentOutline
	err := o.run(id, "outline.edit", func(st *workflow.State) error {
		if strings.TrimSpace(text) == "" {
			return core.Errorf(core.KindInvalidArgument, "pipeline.EditOutline", "outline text is empty")
		}
		if err := st.Require(workflow.PromptDefined); err != nil {
			return err
		}
		title, ctID := "", st.Scratch.ContentType
		switch {
		case st.Scratch.OutlineDraft != nil:
			title, ctID = st.Scratch.OutlineDraft.Title, st.Scratch.OutlineDraft.ContentType
		case st.Artifacts().Outline != nil:
			title, ctID = st.Artifacts().Outline.Title, st.Artifacts().Outline.ContentType
		}
		out = outline.FromText(title, ctID, text)
		st.Scratch.OutlineDraft = &out
		if st.Artifacts().Outline != nil {
			return st.Advance(workflow.OutlineApproved, out)
		}
		return nil
	})
	return out, err
}

// ApproveOutline records the current draft as the OutlineApproved artifact
func (o *Orchestrator) ApproveOutline(id string) (core.ContentOutline, error) {
	var out core.ContentOutline
	err := o.run(id, "outline.approve", func(st *workflow.State) error {
		if st.Scratch.OutlineDraft == nil {
			return core.Errorf(core.KindStateOrder, "pipeline.ApproveOutline", "no outline draft to approve")
		}
		out = *st.Scratch.OutlineDraft
		return st.Advance(workflow.OutlineApproved, out)
	})
	return out, err
}

// SetKeywords stores the SEO keywords used by the content and SEO stages
func (o *Orchestrator) SetKeywords(id string, kws []string) ([]string, error) {
	var out []string
	err := o.run(id, "keywords", func(st *workflow.State) error {
		out = keywords.Clean(kws)
		st.Scratch.Keywords = out
		return nil
	})
	return out, err
}

// GenerateContent renders the article from the approved outline
func (o *Orchestrator) GenerateContent(ctx context.Context, id string, opts ContentOptions) (core.FinalContent, error) {
	var out core.FinalContent
	err := o.run(id, "content", func(st *workflow.State) error {
		if len(opts.Keywords) > 0 {
			st.Scratch.Keywords = keywords.Clean(opts.Keywords)
		}
		req, err := o.contentRequest(st)
		if err != nil {
			return err
		}
		req.Instructions = opts.Instructions
		out, err = o.writer.Render(ctx, req)
		if err != nil {
			return err
		}
		return st.Advance(workflow.ContentGenerated, out)
	})
	return out, err
}

// RegenerateContent re-renders the whole article with extra instructions
func (o *Orchestrator) RegenerateContent(ctx context.Context, id, instructions string) (core.FinalContent, error) {
	var out core.FinalContent
	err := o.run(id, "content.regenerate", func(st *workflow.State) error {
		req, err := o.contentRequest(st)
		if err != nil {
			return err
		}
		out, err = o.writer.Regenerate(ctx, req, instructions)
		if err != nil {
			return err
		}
		return st.Advance(workflow.ContentGenerated, out)
	})
	return out, err
}

// RegenerateSection rewrites one section of clean generated content
func (o *Orchestrator) RegenerateSection(ctx context.Context, id, heading, instruction string) (core.FinalContent, error) {
	var out core.FinalContent
	err := o.run(id, "content.section", func(st *workflow.State) error {
		req, err := o.contentRequest(st)
		if err != nil {
			return err
		}
		current, err := st.Content()
		if err != nil {
			return err
		}
		out, err = o.writer.RegenerateSection(ctx, current, req, heading, instruction)
		if err != nil {
			return err
		}
		return st.Advance(workflow.ContentGenerated, out)
	})
	return out, err
}

// EnhanceSEO runs the SEO pass. Keywords default to the session keywords.
func (o *Orchestrator) EnhanceSEO(ctx context.Context, id string, kws []string) (core.FinalContent, error) {
	var out core.FinalContent
	err := o.run(id, "content.seo", func(st *workflow.State) error {
		if err := st.Require(workflow.OutlineApproved); err != nil {
			return err
		}
		current, err := st.Content()
		if err != nil {
			return err
		}
		if len(kws) == 0 {
			kws = st.Scratch.Keywords
		}
		out, err = o.writer.EnhanceSEO(ctx, current, kws)
		if err != nil {
			return err
		}
		return st.Advance(workflow.ContentGenerated, out)
	})
	return out, err
}

// EditContent replaces the article with user markdown
func (o *Orchestrator) EditContent(id, markdown string) (core.FinalContent, error) {
	var out core.FinalContent
	err := o.run(id, "content.edit", func(st *workflow.State) error {
		if err := st.Require(workflow.OutlineApproved); err != nil {
			return err
		}
		current := st.Artifacts().Content
		if current == nil {
			return core.Errorf(core.KindStateOrder, "pipeline.EditContent", "no content to edit")
		}
		var err error
		out, err = content.Edit(*current, markdown)
		if err != nil {
			return err
		}
		return st.Advance(workflow.ContentGenerated, out)
	})
	return out, err
}

// Confirm accepts a dirty artifact as still valid
func (o *Orchestrator) Confirm(id string, stage workflow.Stage) (workflow.Snapshot, error) {
	return o.transition(id, "confirm", func(st *workflow.State) error { return st.Confirm(stage) })
}

// Restart clears stage and everything after it
func (o *Orchestrator) Restart(id string, stage workflow.Stage) (workflow.Snapshot, error) {
	return o.transition(id, "restart", func(st *workflow.State) error { return st.Restart(stage) })
}

func (o *Orchestrator) transition(id, name string, fn func(*workflow.State) error) (workflow.Snapshot, error) {
	var snap workflow.Snapshot
	err := o.run(id, name, func(st *workflow.State) error {
		if err := fn(st); err != nil {
			return err
		}
		snap = st.Snapshot()
		return nil
	})
	return snap, err
}

// run executes fn under the lock of an existing session
func (o *Orchestrator) run(id, name string, fn func(*workflow.State) error) error {
	sess, err := o.sessions.Get(id)
	if err != nil {
		return err
	}
	return o.do(sess, name, fn)
}

func (o *Orchestrator) do(sess *workflow.Session, name string, fn func(*workflow.State) error) error {
	start := time.Now()
	logger.Debug("Stage started", "session", sess.ID(), "stage", name)

	err := sess.Do(fn)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("Stage failed",
			"session", sess.ID(),
			"stage", name,
			"kind", string(core.KindOf(err)),
			"retryable", core.IsRetryable(err),
			"error", err.Error(),
			"latency_ms", latency,
		)
		return err
	}
	logger.Info("Stage finished", "session", sess.ID(), "stage", name, "latency_ms", latency)
	return nil
}

func (o *Orchestrator) filters(req FetchRequest) core.FilterSet {
	if req.Filters != nil {
		return *req.Filters
	}
	return o.extractor.Extract(req.Request)
}

// recordData stores a fetch result. Candidates and variations came from the
// previous data and are dropped with it.
func (o *Orchestrator) recordData(st *workflow.State, result core.FetchResult, request, ctID string) error {
	if err := st.Advance(workflow.DataFetched, result); err != nil {
		return err
	}
	st.Scratch.Request = strings.TrimSpace(request)
	switch {
	case ctID != "":
		st.Scratch.ContentType = ctID
	case st.Scratch.ContentType == "":
		st.Scratch.ContentType = o.config.DefaultContentType
	}
	st.Scratch.Candidates = nil
	st.Scratch.Variations = nil
	return nil
}

func (o *Orchestrator) contentRequest(st *workflow.State) (content.Request, error) {
	ol, err := st.Outline()
	if err != nil {
		return content.Request{}, err
	}
	data, err := st.Data()
	if err != nil {
		return content.Request{}, err
	}
	return content.Request{
		Outline:     ol,
		Records:     data.Records,
		ContentType: o.contentType(st),
		Trends:      st.Scratch.Trends,
		Keywords:    st.Scratch.Keywords,
	}, nil
}

// contentTypeID validates a content type id. Empty stays empty so a
// session keeps the type it already has.
func (o *Orchestrator) contentTypeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", nil
	}
	ct, ok := o.catalog.Lookup(id)
	if !ok {
		return "", core.Errorf(core.KindNotFound, "pipeline.ContentType", "unknown content type %q (known: %s)", id, strings.Join(o.catalog.IDs(), ", "))
	}
	return ct.ID, nil
}

func (o *Orchestrator) contentType(st *workflow.State) core.ContentType {
	id := st.Scratch.ContentType
	if id == "" {
		id = o.config.DefaultContentType
	}
	return o.catalog.Resolve(id)
}

// trendQuery prefers the selected topic over the raw request
func trendQuery(st *workflow.State) string {
	if t := st.Artifacts().Topic; t != nil {
		return t.Topic
	}
	return st.Scratch.Request
}

// csvRequest names the uploaded colleges when the upload carried no request
func csvRequest(records []core.CollegeRecord) string {
	names := make([]string, 0, 3)
	for i, r := range records {
		if i == 3 {
			break
		}
		names = append(names, r.Name)
	}
	return strings.Join(names, ", ")
}
