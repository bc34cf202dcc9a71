package topics

import (
	"context"
	"errors"
	"strings"
	"testing"

	"collegecontent/internal/config"
	"collegecontent/internal/contenttypes"
	"collegecontent/internal/core"
	"collegecontent/internal/llm"
)

const summary = `Found 2 college(s)
- Indian Institute of Technology Bombay in Mumbai, Maharashtra
- Veermata Jijabai Technological Institute in Mumbai, Maharashtra
States covered: 1, cities covered: 1, verified: 1`

const wellFormedTopics = `Here are your topics:

1.
Topic: Indian Institute of Technology Bombay NIRF Rank 3: BTech Admission Guide 2025
Focus: JEE Advanced cutoffs, seat matrix
and the fee of ₹2.3 lakhs per year.

2.
Topic: Veermata Jijabai Technological Institute Placements 2024 (₹9 LPA Average)
Focus: Placement trends and recruiters.

3.
Topic: Why Mumbai Is Great
Focus: A generic topic that should be rejected.
`

func webArticle(t *testing.T) core.ContentType {
	t.Helper()
	ct, ok := contenttypes.Default().Lookup("web_article")
	if !ok {
		t.Fatal("web_article missing from catalog")
	}
	return ct
}

func stages(requireSpecific bool) config.Stages {
	var s config.Stages
	s.Topics.RequireSpecific = requireSpecific
	return s
}

func TestParseTopics(t *testing.T) {
	got := ParseTopics(wellFormedTopics)
	if len(got) != 3 {
		t.Fatalf("Expected 3 topics, got %d: %+v", len(got), got)
	}
	if !strings.HasPrefix(got[0].Topic, "Indian Institute of Technology Bombay NIRF") {
		t.Errorf("Unexpected first topic: %q", got[0].Topic)
	}
	if got[0].Focus != "JEE Advanced cutoffs, seat matrix and the fee of ₹2.3 lakhs per year." {
		t.Errorf("Expected multi-line focus joined, got %q", got[0].Focus)
	}
}

func TestParseTopicsTolerantFormats(t *testing.T) {
	text := "**Topic:** IIT Bombay JEE Cutoff 2025\n**Focus:** cutoffs\n" +
		"1. Topic: NIT Trichy NIRF 9\nFocus: rankings\n" +
		"- topic 3: AIIMS Delhi MBBS Fees\n"
	got := ParseTopics(text)
	if len(got) != 3 {
		t.Fatalf("Expected 3 topics, got %d: %+v", len(got), got)
	}
	if got[2].Focus != "General overview of college information" {
		t.Errorf("Expected default focus, got %q", got[2].Focus)
	}
}

func TestParsePrompts(t *testing.T) {
	text := `1.
Title: IIT Bombay Complete Guide
Angle: Data-driven
Description: Covers rankings,
fees and placements.

2.
Title: Mumbai Engineering Showdown
Description: Compares two colleges.`

	got := ParsePrompts(text)
	if len(got) != 2 {
		t.Fatalf("Expected 2 prompts, got %d", len(got))
	}
	if got[0].Description != "Covers rankings, fees and placements." {
		t.Errorf("Unexpected description: %q", got[0].Description)
	}
	if got[1].Angle != "Standard approach" {
		t.Errorf("Expected default angle, got %q", got[1].Angle)
	}
}

func TestSpecificity(t *testing.T) {
	names := CollegeNames(summary)
	if len(names) != 2 {
		t.Fatalf("Expected 2 college names, got %v", names)
	}

	tests := []struct {
		topic string
		want  int
	}{
		{"Indian Institute of Technology Bombay NIRF Rank 3", 3},
		{"Veermata Jijabai Technological Institute Placements 2024", 2},
		{"Top 10 Colleges", 1},
		{"Why Mumbai Is Great", 0},
	}
	for _, tt := range tests {
		if got := Specificity(tt.topic, names); got != tt.want {
			t.Errorf("Specificity(%q) = %d, want %d", tt.topic, got, tt.want)
		}
	}
}

func TestPadTopicsExactCount(t *testing.T) {
	defaults := []core.TopicCandidate{{Topic: "A", Focus: "a"}, {Topic: "B", Focus: "b"}}
	parsed := []core.TopicCandidate{{Topic: "b", Focus: "dup"}, {Topic: "X", Focus: "x"}}

	got := PadTopics(parsed, defaults, 5)
	if len(got) != 5 {
		t.Fatalf("Expected 5 topics, got %d", len(got))
	}
	want := []string{"b", "X", "A", "College Insights Part 1", "College Insights Part 2"}
	for i, w := range want {
		if got[i].Topic != w {
			t.Errorf("Position %d: expected %q, got %q", i, w, got[i].Topic)
		}
	}

	if got := PadTopics(parsed, defaults, 1); len(got) != 1 {
		t.Errorf("Expected truncation to 1, got %d", len(got))
	}
	if got := PadTopics(nil, nil, 0); got != nil {
		t.Errorf("Expected nil for zero count, got %v", got)
	}
}

func TestGenerateTopicsAlwaysReturnsCount(t *testing.T) {
	ct := webArticle(t)
	responses := map[string]string{
		"well formed": wellFormedTopics,
		"empty":       "",
		"truncated":   "1.\nTopic: Indian Institute of Technology Bombay NIRF 3\nFoc",
		"malformed":   "I cannot help with that.\n\n```json\n{\"topics\": []}\n```",
		"oversized":   strings.Repeat("Topic: IIT Bombay 2025 JEE\nFocus: x\n", 40),
	}

	for name, resp := range responses {
		t.Run(name, func(t *testing.T) {
			for _, n := range []int{1, 5, 8, 12} {
				gw := llm.NewMockGateway(resp)
				g := New(gw, stages(true))

				got, err := g.GenerateTopics(context.Background(), summary, ct, n)
				if err != nil {
					t.Fatalf("GenerateTopics error: %v", err)
				}
				if len(got) != n {
					t.Fatalf("Expected %d topics, got %d", n, len(got))
				}
				for i, tc := range got {
					if tc.Topic == "" || tc.Focus == "" {
						t.Errorf("Topic %d malformed: %+v", i, tc)
					}
				}
			}
		})
	}
}

func TestGenerateTopicsFiltersGeneric(t *testing.T) {
	ct := webArticle(t)
	gw := llm.NewMockGateway(wellFormedTopics)
	g := New(gw, stages(true))

	got, err := g.GenerateTopics(context.Background(), summary, ct, 8)
	if err != nil {
		t.Fatalf("GenerateTopics error: %v", err)
	}
	for _, tc := range got {
		if tc.Topic == "Why Mumbai Is Great" {
			t.Error("Expected generic topic to be filtered")
		}
	}
	if got[2].Topic != ct.DefaultTopics[0].Topic {
		t.Errorf("Expected padding from content type defaults, got %q", got[2].Topic)
	}

	req := gw.LastRequest()
	if req.Temperature != DefaultTemperature || req.MaxTokens != DefaultMaxTokens {
		t.Errorf("Expected default sampling, got %v/%d", req.Temperature, req.MaxTokens)
	}
	if !strings.Contains(req.Prompt, "Indian Institute of Technology Bombay") {
		t.Error("Expected data summary in the prompt")
	}
}

func TestGenerateTopicsSurfacesGatewayErrors(t *testing.T) {
	gw := llm.NewMockGateway()
	gw.Err = &core.Error{Kind: core.KindGenerationTimeout}

	_, err := New(gw, stages(false)).GenerateTopics(context.Background(), summary, webArticle(t), 8)
	if !errors.Is(err, core.ErrGenerationTimeout) {
		t.Errorf("Expected GenerationTimeout, got %v", err)
	}
	if !core.IsRetryable(err) {
		t.Error("Expected timeout to be retryable")
	}
}

func TestGeneratePrompts(t *testing.T) {
	ct := webArticle(t)
	gw := llm.NewMockGateway("Title: Only One\nAngle: a\nDescription: d")

	got, err := New(gw, stages(false)).GeneratePrompts(context.Background(), "Write about IIT Bombay", summary, ct, 0)
	if err != nil {
		t.Fatalf("GeneratePrompts error: %v", err)
	}
	if len(got) != DefaultPromptCount {
		t.Fatalf("Expected %d prompts, got %d", DefaultPromptCount, len(got))
	}
	if got[0].Title != "Only One" || got[1] != ct.DefaultPrompts[0] {
		t.Errorf("Unexpected prompts: %+v", got[:2])
	}
	if !strings.Contains(gw.LastRequest().Prompt, "Original Request: Write about IIT Bombay") {
		t.Error("Expected request in prompt")
	}
}

func TestRefineTopic(t *testing.T) {
	orig := core.TopicCandidate{Topic: "IIT Bombay Fees", Focus: "fees"}

	gw := llm.NewMockGateway("Topic: IIT Bombay Fees 2025 in Lakhs\nFocus: detailed fee table")
	g := New(gw, stages(false))
	got, err := g.RefineTopic(context.Background(), orig, "add the year")
	if err != nil {
		t.Fatalf("RefineTopic error: %v", err)
	}
	if got.Topic != "IIT Bombay Fees 2025 in Lakhs" || got.Focus != "detailed fee table" {
		t.Errorf("Unexpected refined topic: %+v", got)
	}
	if !strings.Contains(gw.LastRequest().Prompt, "add the year") {
		t.Error("Expected instruction layered into the prompt")
	}

	got, err = New(llm.NewMockGateway("no structure here"), stages(false)).RefineTopic(context.Background(), orig, "x")
	if err != nil || got != orig {
		t.Errorf("Expected original on unparseable output, got %+v, %v", got, err)
	}

	if _, err := g.RefineTopic(context.Background(), orig, "  "); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument for empty instruction, got %v", err)
	}
}

func TestRefinePromptKeepsShape(t *testing.T) {
	orig := core.PromptVariation{Title: "T", Angle: "A", Description: "D"}
	gw := llm.NewMockGateway("Title: New Title")

	got, err := New(gw, stages(false)).RefinePrompt(context.Background(), orig, "punchier title")
	if err != nil {
		t.Fatalf("RefinePrompt error: %v", err)
	}
	if got.Title != "New Title" || got.Angle != "A" || got.Description != "D" {
		t.Errorf("Expected dropped fields kept, got %+v", got)
	}
}

func TestCustomTopic(t *testing.T) {
	got, err := CustomTopic("  IIT Bombay hostel life  ")
	if err != nil {
		t.Fatalf("CustomTopic error: %v", err)
	}
	if got.Topic != "IIT Bombay hostel life" || got.Focus != CustomTopicFocus {
		t.Errorf("Unexpected custom topic: %+v", got)
	}
	if _, err := CustomTopic(""); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}
