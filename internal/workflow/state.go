// Package workflow holds the per-session progress of a content run: which
// stages have produced artifacts, which of those are stale, and the scratch
// data a user picks from between stages.
//
// The stages run in a fixed order:
//
//	Idle → DataFetched → TopicSelected → PromptDefined → OutlineApproved → ContentGenerated
//
// Recording a stage's artifact requires every earlier stage to be present
// and clean. Recording it again marks every later artifact dirty; a dirty
// artifact is kept for inspection but cannot feed a later stage until it is
// confirmed or replaced.
package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"collegecontent/internal/core"
)

// Stage is a workflow state.
type Stage int

const (
	Idle Stage = iota
	DataFetched
	TopicSelected
	PromptDefined
	OutlineApproved
	ContentGenerated
)

var stageNames = [...]string{"idle", "data_fetched", "topic_selected", "prompt_defined", "outline_approved", "content_generated"}

// Stages lists every stage that carries an artifact, in order.
var Stages = []Stage{DataFetched, TopicSelected, PromptDefined, OutlineApproved, ContentGenerated}

func (s Stage) String() string {
	if s < Idle || s > ContentGenerated {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

func (s Stage) valid() bool { return s >= Idle && s <= ContentGenerated }

// MarshalText encodes the stage by name.
func (s Stage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts a stage name.
func (s *Stage) UnmarshalText(b []byte) error {
	v, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStage reads a stage name such as "outline_approved". Dashes and case
// are ignored.
func ParseStage(name string) (Stage, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for i, s := range stageNames {
		if s == n {
			return Stage(i), nil
		}
	}
	return Idle, core.Errorf(core.KindInvalidArgument, "workflow.ParseStage", "unknown stage %q", name)
}

// Artifacts holds one artifact per stage. A nil field has not been produced.
type Artifacts struct {
	Data    *core.FetchResult      `json:"data,omitempty"`
	Topic   *core.TopicCandidate   `json:"topic,omitempty"`
	Prompt  *core.PromptDefinition `json:"prompt,omitempty"`
	Outline *core.ContentOutline   `json:"outline,omitempty"`
	Content *core.FinalContent     `json:"content,omitempty"`
}

// Scratch is per-session working data that is not a stage artifact: the
// choices offered to the user and inputs shared by several stages.
type Scratch struct {
	Request      string                 `json:"request,omitempty"`
	ContentType  string                 `json:"content_type,omitempty"`
	Candidates   []core.TopicCandidate  `json:"candidates,omitempty"`
	Variations   []core.PromptVariation `json:"variations,omitempty"`
	OutlineDraft *core.ContentOutline   `json:"outline_draft,omitempty"`
	Trends       string                 `json:"trends,omitempty"`
	Keywords     []string               `json:"keywords,omitempty"`
}

// State is the workflow of one session. It is not safe for concurrent use;
// Session serializes access.
type State struct {
	id        string
	created   time.Time
	updated   time.Time
	artifacts Artifacts
	dirty     map[Stage]bool
	skipped   map[Stage]bool

	Scratch Scratch
}

// NewState returns an Idle state.
func NewState(id string) *State {
	now := time.Now().UTC()
	return &State{id: id, created: now, updated: now, dirty: map[Stage]bool{}, skipped: map[Stage]bool{}}
}

func (s *State) ID() string { return s.id }

// Current is the furthest stage reached through clean (or skipped) stages
// only.
func (s *State) Current() Stage {
	cur := Idle
	for _, st := range Stages {
		if !s.has(st) || s.dirty[st] {
			break
		}
		cur = st
	}
	return cur
}

// Advance records artifact as the output of stage. Every earlier stage must
// be present and clean. Later stages that hold an artifact become dirty.
//
// A clean selected topic cannot be replaced; restart from TopicSelected
// first.
func (s *State) Advance(stage Stage, artifact any) error {
	const op = "workflow.Advance"
	if stage == Idle || !stage.valid() {
		return core.Errorf(core.KindInvalidArgument, op, "cannot advance to %s", stage)
	}
	if err := s.requireBefore(op, stage); err != nil {
		return err
	}
	if stage == TopicSelected && s.has(TopicSelected) && !s.dirty[TopicSelected] {
		return core.Errorf(core.KindStateOrder, op, "the topic stage is already settled; restart from %s to choose another", TopicSelected)
	}
	if err := s.set(stage, artifact, false); err != nil {
		return err
	}
	delete(s.skipped, stage)
	s.settle(stage)
	return nil
}

// Skip records that stage was deliberately not run, e.g. choosing a prompt
// variation without picking a topic first. Only TopicSelected can be skipped.
func (s *State) Skip(stage Stage) error {
	const op = "workflow.Skip"
	if stage != TopicSelected {
		return core.Errorf(core.KindInvalidArgument, op, "%s cannot be skipped", stage)
	}
	if err := s.requireBefore(op, stage); err != nil {
		return err
	}
	if s.artifacts.Topic != nil && !s.dirty[stage] {
		return core.Errorf(core.KindStateOrder, op, "a topic is already selected; restart from %s to skip it", stage)
	}
	if s.skipped[stage] && !s.dirty[stage] {
		return nil
	}
	s.artifacts.Topic = nil
	s.skipped[stage] = true
	s.settle(stage)
	return nil
}

// Confirm accepts a dirty artifact as still valid for its current inputs.
// Confirming a clean stage is a no-op.
func (s *State) Confirm(stage Stage) error {
	const op = "workflow.Confirm"
	if stage == Idle || !stage.valid() {
		return core.Errorf(core.KindInvalidArgument, op, "cannot confirm %s", stage)
	}
	if !s.has(stage) {
		return core.Errorf(core.KindStateOrder, op, "%s has no artifact to confirm", stage)
	}
	if !s.dirty[stage] {
		return nil
	}
	if err := s.requireBefore(op, stage); err != nil {
		return err
	}
	delete(s.dirty, stage)
	s.touch()
	return nil
}

// Restart clears stage and everything after it. Restart(Idle) resets the
// session, scratch included.
func (s *State) Restart(stage Stage) error {
	if !stage.valid() {
		return core.Errorf(core.KindInvalidArgument, "workflow.Restart", "unknown stage %s", stage)
	}
	for _, st := range Stages {
		if st < stage {
			continue
		}
		_ = s.set(st, nil, true)
		delete(s.dirty, st)
		delete(s.skipped, st)
	}
	switch {
	case stage == Idle:
		s.Scratch = Scratch{}
	case stage <= DataFetched:
		s.Scratch.Candidates = nil
		s.Scratch.Variations = nil
		s.Scratch.OutlineDraft = nil
	case stage <= OutlineApproved:
		s.Scratch.OutlineDraft = nil
	}
	s.touch()
	return nil
}

// Require fails with StateOrderViolation unless stage is present (or
// skipped) and clean, i.e. usable as input.
func (s *State) Require(stage Stage) error {
	return s.require("workflow.Require", stage)
}

// Artifacts returns the recorded artifacts, dirty ones included.
func (s *State) Artifacts() Artifacts { return s.artifacts }

// Data returns the fetch result when it is usable as input.
func (s *State) Data() (core.FetchResult, error) {
	if err := s.require("workflow.Data", DataFetched); err != nil {
		return core.FetchResult{}, err
	}
	return *s.artifacts.Data, nil
}

// Topic returns the selected topic, or nil when the topic stage was skipped.
func (s *State) Topic() (*core.TopicCandidate, error) {
	if err := s.require("workflow.Topic", TopicSelected); err != nil {
		return nil, err
	}
	return s.artifacts.Topic, nil
}

// Prompt returns the prompt definition when usable as input.
func (s *State) Prompt() (core.PromptDefinition, error) {
	if err := s.require("workflow.Prompt", PromptDefined); err != nil {
		return core.PromptDefinition{}, err
	}
	return *s.artifacts.Prompt, nil
}

// Outline returns the approved outline when usable as input.
func (s *State) Outline() (core.ContentOutline, error) {
	if err := s.require("workflow.Outline", OutlineApproved); err != nil {
		return core.ContentOutline{}, err
	}
	return *s.artifacts.Outline, nil
}

// Content returns the generated content when usable.
func (s *State) Content() (core.FinalContent, error) {
	if err := s.require("workflow.Content", ContentGenerated); err != nil {
		return core.FinalContent{}, err
	}
	return *s.artifacts.Content, nil
}

func (s *State) IsDirty(stage Stage) bool   { return s.dirty[stage] }
func (s *State) IsSkipped(stage Stage) bool { return s.skipped[stage] }

// Dirty lists dirty stages in order.
func (s *State) Dirty() []Stage { return sorted(s.dirty) }

// Skipped lists skipped stages in order.
func (s *State) Skipped() []Stage { return sorted(s.skipped) }

// Snapshot is a read-only view of a state for callers outside the session
// lock.
type Snapshot struct {
	ID        string    `json:"id"`
	Stage     Stage     `json:"stage"`
	Dirty     []Stage   `json:"dirty"`
	Skipped   []Stage   `json:"skipped"`
	Artifacts Artifacts `json:"artifacts"`
	Scratch   Scratch   `json:"scratch"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot copies the state. Artifacts are shared pointers; they are never
// mutated in place, only replaced.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		ID:        s.id,
		Stage:     s.Current(),
		Dirty:     s.Dirty(),
		Skipped:   s.Skipped(),
		Artifacts: s.artifacts,
		Scratch:   s.Scratch,
		CreatedAt: s.created,
		UpdatedAt: s.updated,
	}
}

func (s *State) has(stage Stage) bool {
	if s.skipped[stage] {
		return true
	}
	switch stage {
	case DataFetched:
		return s.artifacts.Data != nil
	case TopicSelected:
		return s.artifacts.Topic != nil
	case PromptDefined:
		return s.artifacts.Prompt != nil
	case OutlineApproved:
		return s.artifacts.Outline != nil
	case ContentGenerated:
		return s.artifacts.Content != nil
	}
	return false
}

func (s *State) require(op string, stage Stage) error {
	switch {
	case !s.has(stage):
		return core.Errorf(core.KindStateOrder, op, "%s has not been reached", stage)
	case s.dirty[stage]:
		return core.Errorf(core.KindStateOrder, op, "%s is dirty; confirm or regenerate it first", stage)
	}
	return nil
}

func (s *State) requireBefore(op string, stage Stage) error {
	for _, st := range Stages {
		if st >= stage {
			break
		}
		if err := s.require(op, st); err != nil {
			return core.Errorf(core.KindStateOrder, op, "cannot record %s: %v", stage, err)
		}
	}
	return nil
}

// settle dirties every later stage that holds something. A draft outline
// was built from the inputs before OutlineApproved, so replacing any of
// them drops it.
func (s *State) settle(stage Stage) {
	delete(s.dirty, stage)
	if stage < OutlineApproved {
		s.Scratch.OutlineDraft = nil
	}
	for _, st := range Stages {
		if st > stage && s.has(st) {
			s.dirty[st] = true
		}
	}
	s.touch()
}

func (s *State) set(stage Stage, artifact any, clear bool) error {
	if !clear && isNil(artifact) {
		return core.Errorf(core.KindInvalidArgument, "workflow.Advance", "%s needs an artifact", stage)
	}
	ok := true
	switch stage {
	case DataFetched:
		ok = assign(&s.artifacts.Data, artifact)
	case TopicSelected:
		ok = assign(&s.artifacts.Topic, artifact)
	case PromptDefined:
		ok = assign(&s.artifacts.Prompt, artifact)
	case OutlineApproved:
		ok = assign(&s.artifacts.Outline, artifact)
	case ContentGenerated:
		ok = assign(&s.artifacts.Content, artifact)
	}
	if !ok {
		return core.Errorf(core.KindInvalidArgument, "workflow.Advance", "artifact %T does not belong to %s", artifact, stage)
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch x := v.(type) {
	case *core.FetchResult:
		return x == nil
	case *core.TopicCandidate:
		return x == nil
	case *core.PromptDefinition:
		return x == nil
	case *core.ContentOutline:
		return x == nil
	case *core.FinalContent:
		return x == nil
	}
	return false
}

// asPtr accepts T or *T and returns a private copy. nil clears.
func asPtr[T any](v any) (*T, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case T:
		return &x, true
	case *T:
		if x == nil {
			return nil, true
		}
		c := *x
		return &c, true
	}
	return nil, false
}

// assign stores v in dst only when it has the right type; a rejected
// artifact leaves dst untouched.
func assign[T any](dst **T, v any) bool {
	p, ok := asPtr[T](v)
	if ok {
		*dst = p
	}
	return ok
}

func (s *State) touch() { s.updated = time.Now().UTC() }

func sorted(m map[Stage]bool) []Stage {
	out := make([]Stage, 0, len(m))
	for st, v := range m {
		if v {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
