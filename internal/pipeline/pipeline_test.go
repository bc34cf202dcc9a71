package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"collegecontent/internal/collegedb/collegedbtest"
	"collegecontent/internal/core"
	"collegecontent/internal/llm"
	"collegecontent/internal/trends"
	"collegecontent/internal/workflow"
)

const (
	topicsResponse = `1.
Topic: Indian Institute of Technology Bombay NIRF Rank 3 Admission Guide 2025
Focus: JEE Advanced cutoffs and fees in lakhs

2.
Topic: Veermata Jijabai Technological Institute Placements 2024
Focus: Placement trends`

	promptsResponse = `1.
Title: IIT Bombay Complete Guide
Angle: Data-driven
Description: Covers rankings, fees and placements.`

	outlineResponse = `## Introduction
- Why Mumbai
## Admissions
- JEE Advanced
## Conclusion
- Next steps`

	contentResponse = "# Mumbai Engineering Guide\n\n## Introduction\n\nMumbai hosts IIT Bombay.\n\n## Admissions\n\nThrough JEE Advanced.\n\n## Conclusion\n\nApply early.\n"
)

// scripted answers each stage by recognizing its prompt.
func scripted() *llm.MockGateway {
	gw := llm.NewMockGateway()
	gw.GenerateFunc = func(_ context.Context, req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "compelling topic ideas"):
			return topicsResponse, nil
		case strings.Contains(req.Prompt, "different content prompts"):
			return promptsResponse, nil
		case strings.Contains(req.Prompt, "Create a detailed content outline"):
			return outlineResponse, nil
		case strings.Contains(req.Prompt, "Rewrite one section"):
			return "JoSAA counselling follows JEE Advanced.", nil
		case strings.Contains(req.Prompt, "Suggest SEO improvements"):
			return "META_TITLE: Mumbai Engineering Colleges 2025\nMETA_DESCRIPTION: Fees and admissions.\nHEADINGS:\nAdmissions -> Admissions 2025", nil
		case strings.Contains(req.Prompt, "Write comprehensive content"):
			return contentResponse, nil
		}
		return "", nil
	}
	return gw
}

func newOrchestrator(t *testing.T, gw llm.Gateway) *Orchestrator {
	t.Helper()
	store := collegedbtest.NewStore(t,
		collegedbtest.College(1, "Indian Institute of Technology Bombay", "Mumbai", "Maharashtra", 1958),
		collegedbtest.College(2, "Veermata Jijabai Technological Institute", "Mumbai", "Maharashtra", 1887),
		collegedbtest.College(5, "College of Engineering Pune", "Pune", "Maharashtra", 1854),
	)
	o, err := NewBuilder().WithGateway(gw).WithStore(store).WithTrends(trends.NewMock()).Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	return o
}

func intp(i int) *int { return &i }

func TestFullRun(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, data, err := o.FetchData(ctx, "", FetchRequest{Request: "engineering colleges in Mumbai", ContentType: "blog_post"})
	if err != nil {
		t.Fatalf("FetchData error: %v", err)
	}
	if id == "" || len(data.Records) != 2 {
		t.Fatalf("Expected a session and 2 Mumbai records, got %q / %d", id, len(data.Records))
	}

	if text, err := o.LoadTrends(ctx, id, ""); err != nil || !strings.Contains(text, "Current Information for:") {
		t.Errorf("Expected trend context, got %q, %v", text, err)
	}

	cands, err := o.GenerateTopics(ctx, id, 4)
	if err != nil || len(cands) != 4 {
		t.Fatalf("GenerateTopics: %d candidates, err %v", len(cands), err)
	}
	topic, err := o.SelectTopic(id, TopicChoice{Index: intp(0)})
	if err != nil || topic != cands[0] {
		t.Fatalf("SelectTopic: %+v, %v", topic, err)
	}

	if _, err := o.DefinePrompt(id, PromptChoice{Preset: "comprehensive"}); err != nil {
		t.Fatalf("DefinePrompt error: %v", err)
	}

	draft, err := o.BuildOutline(ctx, id)
	if err != nil || len(draft.Sections) != 3 {
		t.Fatalf("BuildOutline: %+v, %v", draft, err)
	}
	if draft.Title != topic.Topic {
		t.Errorf("Expected outline titled after the topic, got %q", draft.Title)
	}
	if _, err := o.ApproveOutline(id); err != nil {
		t.Fatalf("ApproveOutline error: %v", err)
	}

	fc, err := o.GenerateContent(ctx, id, ContentOptions{Keywords: []string{"IIT Bombay fees", "iit bombay FEES"}})
	if err != nil {
		t.Fatalf("GenerateContent error: %v", err)
	}
	if len(fc.RecordIDs) != 2 || fc.ContentType != "blog_post" {
		t.Errorf("Unexpected content provenance: %+v", fc)
	}

	snap, _ := o.Session(id)
	if snap.Stage != workflow.ContentGenerated || len(snap.Dirty) != 0 {
		t.Errorf("Expected clean ContentGenerated, got %s dirty %v", snap.Stage, snap.Dirty)
	}
	if len(snap.Scratch.Keywords) != 1 {
		t.Errorf("Expected deduplicated keywords, got %v", snap.Scratch.Keywords)
	}

	sec, err := o.RegenerateSection(ctx, id, "Admissions", "mention JoSAA")
	if err != nil {
		t.Fatalf("RegenerateSection error: %v", err)
	}
	before, _, _ := strings.Cut(fc.Markdown, "Through JEE Advanced.")
	if !strings.HasPrefix(sec.Markdown, before) || !strings.HasSuffix(sec.Markdown, "## Conclusion\n\nApply early.\n") {
		t.Errorf("Expected other sections untouched:\n%s", sec.Markdown)
	}

	seo, err := o.EnhanceSEO(ctx, id, nil)
	if err != nil {
		t.Fatalf("EnhanceSEO error: %v", err)
	}
	if seo.SEO == nil || seo.SEO.MetaTitle != "Mumbai Engineering Colleges 2025" || !strings.Contains(seo.Markdown, "## Admissions 2025") {
		t.Errorf("Unexpected SEO result: %+v", seo)
	}
}

func TestPromptFirstSkipsTopic(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, _, err := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})
	if err != nil {
		t.Fatalf("FetchData error: %v", err)
	}
	vars, err := o.GeneratePrompts(ctx, id, "", 2)
	if err != nil || len(vars) != 2 {
		t.Fatalf("GeneratePrompts: %d, %v", len(vars), err)
	}
	def, err := o.DefinePrompt(id, PromptChoice{Index: intp(0)})
	if err != nil {
		t.Fatalf("DefinePrompt error: %v", err)
	}
	if def.Variation == nil || def.Variation.Title != "IIT Bombay Complete Guide" {
		t.Errorf("Expected variation recorded, got %+v", def)
	}

	snap, _ := o.Session(id)
	if snap.Stage != workflow.PromptDefined || len(snap.Skipped) != 1 || snap.Skipped[0] != workflow.TopicSelected {
		t.Errorf("Expected topic skipped, got stage %s skipped %v", snap.Stage, snap.Skipped)
	}

	o2, err := o.BuildOutline(ctx, id)
	if err != nil || o2.Title != "IIT Bombay Complete Guide" {
		t.Errorf("Expected outline from the variation, got %+v, %v", o2, err)
	}
}

func TestNoResultsContinues(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, data, err := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Chennai"})
	if !errors.Is(err, core.ErrNoResults) {
		t.Fatalf("Expected NoResults, got %v", err)
	}
	if !data.Empty() {
		t.Errorf("Expected empty result, got %d records", len(data.Records))
	}

	cands, err := o.GenerateTopics(ctx, id, 3)
	if err != nil || len(cands) != 3 {
		t.Errorf("Expected general topics after an empty fetch, got %d, %v", len(cands), err)
	}
}

func TestStageOrderErrors(t *testing.T) {
	ctx := context.Background()
	gw := scripted()
	o := newOrchestrator(t, gw)

	if _, err := o.GenerateTopics(ctx, "missing", 3); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected NotFound for unknown session, got %v", err)
	}

	snap, err := o.NewSession("")
	if err != nil {
		t.Fatalf("NewSession error: %v", err)
	}
	if _, err := o.BuildOutline(ctx, snap.ID); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrder before any data, got %v", err)
	}
	if _, err := o.ApproveOutline(snap.ID); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrder without a draft, got %v", err)
	}
	if gw.CallCount() != 0 {
		t.Errorf("Expected no model calls on rejected stages, got %d", gw.CallCount())
	}

	if _, err := o.NewSession("press_release"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected NotFound for unknown content type, got %v", err)
	}
}

func TestTopicImmutableUntilRestart(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, _, _ := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})
	if _, err := o.GenerateTopics(ctx, id, 2); err != nil {
		t.Fatalf("GenerateTopics error: %v", err)
	}
	if _, err := o.SelectTopic(id, TopicChoice{Index: intp(0)}); err != nil {
		t.Fatalf("SelectTopic error: %v", err)
	}
	if _, err := o.SelectTopic(id, TopicChoice{Index: intp(1)}); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrder on reselect, got %v", err)
	}

	if _, err := o.Restart(id, workflow.TopicSelected); err != nil {
		t.Fatalf("Restart error: %v", err)
	}
	got, err := o.SelectTopic(id, TopicChoice{Custom: "IIT Bombay hostel life"})
	if err != nil || got.Topic != "IIT Bombay hostel life" {
		t.Errorf("Expected custom topic after restart, got %+v, %v", got, err)
	}
}

func TestRefetchDirtiesLaterStages(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, _, _ := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})
	if _, err := o.DefinePrompt(id, PromptChoice{Text: "Write about Mumbai engineering"}); err != nil {
		t.Fatalf("DefinePrompt error: %v", err)
	}
	if _, _, err := o.FetchData(ctx, id, FetchRequest{Request: "colleges in Pune"}); err != nil {
		t.Fatalf("FetchData error: %v", err)
	}

	if _, err := o.BuildOutline(ctx, id); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrder on dirty prompt, got %v", err)
	}
	snap, _ := o.Session(id)
	if snap.Stage != workflow.DataFetched {
		t.Errorf("Expected current stage data_fetched, got %s", snap.Stage)
	}

	if _, err := o.Confirm(id, workflow.TopicSelected); err != nil {
		t.Fatalf("Confirm topic error: %v", err)
	}
	if _, err := o.Confirm(id, workflow.PromptDefined); err != nil {
		t.Fatalf("Confirm prompt error: %v", err)
	}
	if _, err := o.BuildOutline(ctx, id); err != nil {
		t.Errorf("Expected outline after confirming, got %v", err)
	}
}

func TestEditOutlineAfterApprovalDirtiesContent(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, _, _ := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})
	steps := []func() error{
		func() error { _, err := o.DefinePrompt(id, PromptChoice{Text: "Mumbai guide"}); return err },
		func() error { _, err := o.BuildOutline(ctx, id); return err },
		func() error { _, err := o.ApproveOutline(id); return err },
		func() error { _, err := o.GenerateContent(ctx, id, ContentOptions{}); return err },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("Step %d error: %v", i, err)
		}
	}

	edited, err := o.EditOutline(id, "## Only Section\n- one point")
	if err != nil {
		t.Fatalf("EditOutline error: %v", err)
	}
	if len(edited.Sections) != 1 {
		t.Errorf("Expected parsed edit, got %+v", edited)
	}

	snap, _ := o.Session(id)
	if len(snap.Dirty) != 1 || snap.Dirty[0] != workflow.ContentGenerated {
		t.Errorf("Expected content dirty, got %v", snap.Dirty)
	}
	if _, err := o.RegenerateSection(ctx, id, "Admissions", "x"); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrder on dirty content, got %v", err)
	}
	if _, err := o.RegenerateContent(ctx, id, "shorter"); err != nil {
		t.Errorf("Expected full regeneration to clear the dirty content, got %v", err)
	}
}

func TestEditContent(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, _, _ := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})
	if _, err := o.EditContent(id, "# x"); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrder before content exists, got %v", err)
	}

	_, _ = o.DefinePrompt(id, PromptChoice{Text: "Mumbai guide"})
	_, _ = o.BuildOutline(ctx, id)
	_, _ = o.ApproveOutline(id)
	if _, err := o.GenerateContent(ctx, id, ContentOptions{}); err != nil {
		t.Fatalf("GenerateContent error: %v", err)
	}

	fc, err := o.EditContent(id, "# Edited\n\nBody")
	if err != nil {
		t.Fatalf("EditContent error: %v", err)
	}
	if !fc.Edited || fc.Markdown != "# Edited\n\nBody" {
		t.Errorf("Unexpected edited content: %+v", fc)
	}
}

func TestImportCSV(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	csv := "ID,Name,City,State,Active\n1,IIT Bombay (CSV),Mumbai,Maharashtra,✅\n900,Unknown College,Nagpur,Maharashtra,Yes\n"
	id, data, err := o.ImportCSV(ctx, "", strings.NewReader(csv), CSVRequest{Enrich: true})
	if err != nil {
		t.Fatalf("ImportCSV error: %v", err)
	}
	if len(data.Records) != 2 || data.Source != core.SourceCSV {
		t.Fatalf("Unexpected result: %+v", data)
	}
	if data.Records[0].Name != "Indian Institute of Technology Bombay" || data.Records[1].Name != "Unknown College" {
		t.Errorf("Expected the known row enriched from the store, got %q / %q", data.Records[0].Name, data.Records[1].Name)
	}

	snap, _ := o.Session(id)
	if snap.Stage != workflow.DataFetched || !strings.Contains(snap.Scratch.Request, "Unknown College") {
		t.Errorf("Unexpected session after import: %s %q", snap.Stage, snap.Scratch.Request)
	}

	if _, _, err := o.ImportCSV(ctx, "", strings.NewReader("Name\nx\n"), CSVRequest{}); !errors.Is(err, core.ErrInputMalformed) {
		t.Errorf("Expected InputMalformed without an ID column, got %v", err)
	}
}

func TestDefinePromptValidation(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())
	id, _, _ := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})

	tests := []struct {
		name   string
		choice PromptChoice
		want   error
	}{
		{"nothing", PromptChoice{}, core.ErrInvalidArgument},
		{"two choices", PromptChoice{Text: "x", Preset: "comprehensive"}, core.ErrInvalidArgument},
		{"bad index", PromptChoice{Index: intp(3)}, core.ErrInvalidArgument},
		{"unknown preset", PromptChoice{Preset: "nope"}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := o.DefinePrompt(id, tt.choice); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	snap, _ := o.Session(id)
	if len(snap.Skipped) != 0 {
		t.Errorf("Expected rejected choices to leave the topic stage alone, got %v", snap.Skipped)
	}
}

func TestGatewayErrorsLeaveStateUnchanged(t *testing.T) {
	ctx := context.Background()
	gw := scripted()
	o := newOrchestrator(t, gw)
	id, _, _ := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})
	_, _ = o.DefinePrompt(id, PromptChoice{Text: "Mumbai guide"})

	gw.GenerateFunc = func(context.Context, llm.Request) (string, error) {
		return "", &core.Error{Kind: core.KindGenerationTimeout}
	}
	_, err := o.BuildOutline(ctx, id)
	if !errors.Is(err, core.ErrGenerationTimeout) || !core.IsRetryable(err) {
		t.Errorf("Expected retryable timeout, got %v", err)
	}
	snap, _ := o.Session(id)
	if snap.Stage != workflow.PromptDefined || snap.Scratch.OutlineDraft != nil {
		t.Errorf("Expected no draft after failure, got %s %+v", snap.Stage, snap.Scratch.OutlineDraft)
	}
}

func TestBuildRequiresGateway(t *testing.T) {
	if _, err := NewBuilder().Build(); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument without a gateway, got %v", err)
	}
}

func TestRedefiningPromptDropsOutlineDraft(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, _, _ := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})
	if _, err := o.SelectTopic(id, TopicChoice{Custom: "IIT Bombay admissions 2025"}); err != nil {
		t.Fatalf("SelectTopic error: %v", err)
	}
	if _, err := o.DefinePrompt(id, PromptChoice{Text: "Write an admissions guide"}); err != nil {
		t.Fatalf("DefinePrompt error: %v", err)
	}
	if _, err := o.BuildOutline(ctx, id); err != nil {
		t.Fatalf("BuildOutline error: %v", err)
	}
	if _, err := o.DefinePrompt(id, PromptChoice{Text: "Write a placements guide"}); err != nil {
		t.Fatalf("DefinePrompt error: %v", err)
	}

	if _, err := o.ApproveOutline(id); !errors.Is(err, core.ErrStateOrder) {
		t.Fatalf("Expected StateOrder approving a draft built for the old prompt, got %v", err)
	}
	snap, _ := o.Session(id)
	if snap.Stage != workflow.PromptDefined || snap.Scratch.OutlineDraft != nil {
		t.Errorf("Expected prompt_defined without a draft, got %s %+v", snap.Stage, snap.Scratch.OutlineDraft)
	}

	if _, err := o.BuildOutline(ctx, id); err != nil {
		t.Fatalf("BuildOutline error: %v", err)
	}
	if _, err := o.ApproveOutline(id); err != nil {
		t.Errorf("Expected approval of the rebuilt draft, got %v", err)
	}
}

func TestRefetchDropsOutlineDraft(t *testing.T) {
	ctx := context.Background()
	o := newOrchestrator(t, scripted())

	id, _, _ := o.FetchData(ctx, "", FetchRequest{Request: "colleges in Mumbai"})
	if _, err := o.DefinePrompt(id, PromptChoice{Text: "Mumbai guide"}); err != nil {
		t.Fatalf("DefinePrompt error: %v", err)
	}
	if _, err := o.BuildOutline(ctx, id); err != nil {
		t.Fatalf("BuildOutline error: %v", err)
	}
	if _, _, err := o.FetchData(ctx, id, FetchRequest{Request: "colleges in Pune"}); err != nil {
		t.Fatalf("FetchData error: %v", err)
	}
	if _, err := o.ApproveOutline(id); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrder after refetch, got %v", err)
	}
}
