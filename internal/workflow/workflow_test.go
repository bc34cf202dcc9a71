package workflow

import (
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"collegecontent/internal/core"
)

var (
	data    = core.FetchResult{Records: []core.CollegeRecord{{ID: 1, Name: "IIT Bombay", Active: true}}}
	topic   = core.TopicCandidate{Topic: "IIT Bombay Fees 2025", Focus: "fees"}
	prompt  = core.PromptDefinition{Text: "Write a fee guide"}
	outline = core.ContentOutline{Title: "Guide", Sections: []core.OutlineSection{{Heading: "Intro"}}}
	content = core.FinalContent{ID: "c1", Markdown: "# Guide"}
)

func complete(t *testing.T) *State {
	t.Helper()
	s := NewState("s1")
	steps := []struct {
		stage    Stage
		artifact any
	}{
		{DataFetched, data},
		{TopicSelected, topic},
		{PromptDefined, &prompt},
		{OutlineApproved, outline},
		{ContentGenerated, content},
	}
	for _, st := range steps {
		if err := s.Advance(st.stage, st.artifact); err != nil {
			t.Fatalf("Advance(%s) error: %v", st.stage, err)
		}
		if s.Current() != st.stage {
			t.Fatalf("Expected current %s, got %s", st.stage, s.Current())
		}
	}
	return s
}

func TestAdvanceInOrder(t *testing.T) {
	s := complete(t)
	if len(s.Dirty()) != 0 {
		t.Errorf("Expected nothing dirty, got %v", s.Dirty())
	}
	got, err := s.Content()
	if err != nil || got.ID != "c1" {
		t.Errorf("Expected content, got %+v, %v", got, err)
	}
}

func TestOutOfOrderFails(t *testing.T) {
	s := NewState("s1")
	if err := s.Advance(OutlineApproved, outline); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrderViolation, got %v", err)
	}
	_ = s.Advance(DataFetched, data)
	if err := s.Advance(PromptDefined, prompt); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrderViolation without topic, got %v", err)
	}
	if _, err := s.Topic(); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrderViolation reading missing topic, got %v", err)
	}
	if s.Current() != DataFetched {
		t.Errorf("Expected current data_fetched, got %s", s.Current())
	}
}

func TestAdvanceRejectsBadArtifacts(t *testing.T) {
	s := NewState("s1")
	if err := s.Advance(DataFetched, topic); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for wrong type, got %v", err)
	}
	if err := s.Advance(DataFetched, nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for nil, got %v", err)
	}
	var nilData *core.FetchResult
	if err := s.Advance(DataFetched, nilData); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for nil pointer, got %v", err)
	}
	if err := s.Advance(Idle, nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for idle, got %v", err)
	}
}

func TestRegenerationDirtiesLaterStages(t *testing.T) {
	s := complete(t)

	newOutline := outline
	newOutline.Title = "Guide v2"
	if err := s.Advance(OutlineApproved, newOutline); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if !reflect.DeepEqual(s.Dirty(), []Stage{ContentGenerated}) {
		t.Errorf("Expected content dirty, got %v", s.Dirty())
	}
	if s.Artifacts().Content == nil {
		t.Error("Expected dirty content retained")
	}
	if _, err := s.Content(); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected dirty content refused as input, got %v", err)
	}
	if s.Current() != OutlineApproved {
		t.Errorf("Expected current outline_approved, got %s", s.Current())
	}

	if err := s.Confirm(ContentGenerated); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if s.Current() != ContentGenerated || len(s.Dirty()) != 0 {
		t.Errorf("Expected clean terminal state, got %s dirty=%v", s.Current(), s.Dirty())
	}
}

func TestDirtyInputBlocksTransition(t *testing.T) {
	s := complete(t)
	if err := s.Advance(DataFetched, data); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	want := []Stage{TopicSelected, PromptDefined, OutlineApproved, ContentGenerated}
	if !reflect.DeepEqual(s.Dirty(), want) {
		t.Errorf("Expected %v dirty, got %v", want, s.Dirty())
	}

	if err := s.Advance(OutlineApproved, outline); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected dirty upstream to block, got %v", err)
	}
	if err := s.Confirm(PromptDefined); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected confirm blocked by dirty topic, got %v", err)
	}

	if err := s.Confirm(TopicSelected); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if err := s.Confirm(PromptDefined); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if err := s.Advance(OutlineApproved, outline); err != nil {
		t.Errorf("Expected transition after confirmation, got %v", err)
	}
}

func TestTopicIsImmutable(t *testing.T) {
	s := NewState("s1")
	_ = s.Advance(DataFetched, data)
	_ = s.Advance(TopicSelected, topic)

	other := core.TopicCandidate{Topic: "Other"}
	if err := s.Advance(TopicSelected, other); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrderViolation on second selection, got %v", err)
	}
	if err := s.Restart(TopicSelected); err != nil {
		t.Fatalf("Restart error: %v", err)
	}
	if err := s.Advance(TopicSelected, other); err != nil {
		t.Errorf("Expected selection after restart, got %v", err)
	}
}

func TestSkipTopic(t *testing.T) {
	s := NewState("s1")
	if err := s.Skip(TopicSelected); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected skip before data to fail, got %v", err)
	}
	_ = s.Advance(DataFetched, data)
	if err := s.Skip(TopicSelected); err != nil {
		t.Fatalf("Skip error: %v", err)
	}
	if err := s.Advance(PromptDefined, prompt); err != nil {
		t.Fatalf("Expected prompt after skipped topic, got %v", err)
	}
	tp, err := s.Topic()
	if err != nil || tp != nil {
		t.Errorf("Expected nil topic for skipped stage, got %v, %v", tp, err)
	}
	if !reflect.DeepEqual(s.Skipped(), []Stage{TopicSelected}) || s.Current() != PromptDefined {
		t.Errorf("Unexpected state: skipped=%v current=%s", s.Skipped(), s.Current())
	}
	if err := s.Skip(PromptDefined); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected only the topic stage skippable, got %v", err)
	}
	if err := s.Advance(TopicSelected, topic); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected settled skip to need a restart, got %v", err)
	}
}

func TestRestartIsIdempotentUnderReplay(t *testing.T) {
	s := complete(t)
	s.Scratch.OutlineDraft = &outline
	before := s.Snapshot()

	if err := s.Restart(PromptDefined); err != nil {
		t.Fatalf("Restart error: %v", err)
	}
	a := s.Artifacts()
	if a.Prompt != nil || a.Outline != nil || a.Content != nil || a.Topic == nil {
		t.Errorf("Expected prompt and later cleared, got %+v", a)
	}
	if s.Current() != TopicSelected || s.Scratch.OutlineDraft != nil {
		t.Errorf("Unexpected state after restart: %s", s.Current())
	}

	_ = s.Advance(PromptDefined, prompt)
	_ = s.Advance(OutlineApproved, outline)
	_ = s.Advance(ContentGenerated, content)
	after := s.Snapshot()
	if after.Stage != before.Stage || !reflect.DeepEqual(after.Artifacts, before.Artifacts) || !reflect.DeepEqual(after.Dirty, before.Dirty) {
		t.Errorf("Replay did not reach the same state:\n got: %+v\nwant: %+v", after, before)
	}

	if err := s.Restart(Idle); err != nil {
		t.Fatalf("Restart error: %v", err)
	}
	if s.Current() != Idle || s.Artifacts() != (Artifacts{}) {
		t.Errorf("Expected idle reset, got %+v", s.Snapshot())
	}
}

func TestConfirmErrors(t *testing.T) {
	s := NewState("s1")
	if err := s.Confirm(OutlineApproved); !errors.Is(err, core.ErrStateOrder) {
		t.Errorf("Expected StateOrderViolation, got %v", err)
	}
	if err := s.Confirm(Idle); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}

func TestStageJSON(t *testing.T) {
	b, err := json.Marshal(complete(t).Snapshot())
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var snap struct {
		Stage Stage `json:"stage"`
	}
	if err := json.Unmarshal(b, &snap); err != nil || snap.Stage != ContentGenerated {
		t.Errorf("Expected content_generated, got %v, %v", snap.Stage, err)
	}
	if _, err := ParseStage("Outline-Approved"); err != nil {
		t.Errorf("ParseStage error: %v", err)
	}
	if _, err := ParseStage("done"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}

func TestManager(t *testing.T) {
	m := NewManager(time.Hour)
	now := time.Now()
	m.now = func() time.Time { return now }

	a := m.Create()
	if got, err := m.Get(a.ID()); err != nil || got != a {
		t.Fatalf("Expected to get created session, got %v", err)
	}
	if _, err := m.Get("missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Expected NotFound, got %v", err)
	}
	b := m.GetOrCreate("named")
	if b.ID() != "named" || m.GetOrCreate("named") != b {
		t.Error("Expected create-on-first-use then reuse")
	}
	if m.GetOrCreate("").ID() == "" || m.Len() != 3 {
		t.Errorf("Expected a generated id and 3 sessions, got %d", m.Len())
	}

	now = now.Add(30 * time.Minute)
	_ = b.Do(func(*State) error { return nil })
	now = now.Add(45 * time.Minute)
	if removed := m.Sweep(); removed != 2 || m.Len() != 1 {
		t.Errorf("Expected 2 idle sessions removed, got %d (left %d)", removed, m.Len())
	}

	if !m.Delete("named") || m.Delete("named") {
		t.Error("Expected delete to report existence once")
	}
}

func TestSessionSerializesStages(t *testing.T) {
	s := NewManager(0).Create()
	var wg sync.WaitGroup
	active, maxActive := 0, 0
	var mu sync.Mutex
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Do(func(*State) error {
				mu.Lock()
				active++
				maxActive = max(maxActive, active)
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	if maxActive != 1 {
		t.Errorf("Expected one stage at a time, saw %d", maxActive)
	}
}

func TestRejectedArtifactKeepsExisting(t *testing.T) {
	s := NewState("s1")
	if err := s.Advance(DataFetched, data); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if err := s.Advance(DataFetched, "not a fetch result"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("Expected InvalidArgument, got %v", err)
	}
	if got, err := s.Data(); err != nil || len(got.Records) != 1 {
		t.Errorf("Expected the earlier data to survive, got %+v (%v)", got, err)
	}
	if s.Current() != DataFetched {
		t.Errorf("Expected current data_fetched, got %s", s.Current())
	}
}

func TestReplacingInputsDropsOutlineDraft(t *testing.T) {
	tests := []struct {
		name    string
		replace func(*State) error
	}{
		{"data", func(s *State) error { return s.Advance(DataFetched, data) }},
		{"prompt", func(s *State) error { return s.Advance(PromptDefined, core.PromptDefinition{Text: "Write a placement guide"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState("s1")
			for _, st := range []struct {
				stage    Stage
				artifact any
			}{{DataFetched, data}, {TopicSelected, topic}, {PromptDefined, prompt}} {
				if err := s.Advance(st.stage, st.artifact); err != nil {
					t.Fatalf("Advance(%s) error: %v", st.stage, err)
				}
			}
			draft := outline
			s.Scratch.OutlineDraft = &draft

			if err := tt.replace(s); err != nil {
				t.Fatalf("replace error: %v", err)
			}
			if s.Scratch.OutlineDraft != nil {
				t.Error("Expected the outline draft to be dropped")
			}
		})
	}

	// Editing an approved outline keeps the draft it records
	s := complete(t)
	draft := outline
	s.Scratch.OutlineDraft = &draft
	if err := s.Advance(OutlineApproved, draft); err != nil {
		t.Fatalf("Advance error: %v", err)
	}
	if s.Scratch.OutlineDraft == nil {
		t.Error("Expected the draft to survive re-approval")
	}
}

func TestLongStageIsNotSwept(t *testing.T) {
	m := NewManager(time.Hour)
	now := time.Now()
	m.now = func() time.Time { return now }

	s := m.Create()
	_ = s.Do(func(*State) error {
		now = now.Add(2 * time.Hour)
		return nil
	})
	if removed := m.Sweep(); removed != 0 || m.Len() != 1 {
		t.Errorf("Expected the session to count as used when its stage ends, removed %d", removed)
	}
}
