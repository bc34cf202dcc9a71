// Package topics generates topic candidates and prompt variations for a
// content request and refines a chosen one.
package topics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collegecontent/internal/config"
	"collegecontent/internal/core"
	"collegecontent/internal/llm"
	"collegecontent/internal/logger"
)

// Defaults used when the stage settings leave a value unset.
const (
	DefaultTopicCount  = 8
	DefaultPromptCount = 5
	DefaultTemperature = 0.8
	DefaultMaxTokens   = 2000

	CustomTopicFocus = "Custom user-defined topic"
)

// Generator runs the topic and prompt stages against a model gateway.
type Generator struct {
	gw      llm.Gateway
	topics  config.TopicStage
	prompts config.GenStage
	refine  config.GenStage
}

// New creates a generator with the given stage settings.
func New(gw llm.Gateway, stages config.Stages) *Generator {
	g := &Generator{gw: gw, topics: stages.Topics, prompts: stages.Prompts, refine: stages.Refine}
	fillDefaults(&g.topics.GenStage, DefaultTopicCount)
	fillDefaults(&g.prompts, DefaultPromptCount)
	if g.refine.Temperature == 0 {
		g.refine.Temperature = 0.7
	}
	return g
}

func fillDefaults(s *config.GenStage, count int) {
	if s.Count <= 0 {
		s.Count = count
	}
	if s.Temperature == 0 {
		s.Temperature = DefaultTemperature
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
}

// GenerateTopics asks the model for count topic ideas and always returns
// exactly count candidates. Unparseable or generic output is padded from the
// content type's defaults; only gateway failures are returned as errors.
func (g *Generator) GenerateTopics(ctx context.Context, dataSummary string, ct core.ContentType, count int) ([]core.TopicCandidate, error) {
	if count <= 0 {
		count = g.topics.Count
	}
	start := time.Now()

	text, err := g.gw.Generate(ctx, llm.Request{
		SystemPrompt: topicSystemPrompt(ct, count),
		Prompt:       topicPrompt(dataSummary, ct, count),
		Temperature:  g.topics.Temperature,
		MaxTokens:    g.topics.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	parsed := ParseTopics(text)
	kept := parsed
	if g.topics.RequireSpecific {
		kept = FilterSpecific(parsed, dataSummary)
	}
	out := PadTopics(kept, ct.DefaultTopics, count)

	logger.Info("Generated topic candidates",
		"content_type", ct.ID,
		"parsed", len(parsed),
		"specific", len(kept),
		"padded", count-min(len(kept), count),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// GeneratePrompts asks the model for count prompt variations of request and
// always returns exactly count variations.
func (g *Generator) GeneratePrompts(ctx context.Context, request, dataSummary string, ct core.ContentType, count int) ([]core.PromptVariation, error) {
	if count <= 0 {
		count = g.prompts.Count
	}
	start := time.Now()

	text, err := g.gw.Generate(ctx, llm.Request{
		SystemPrompt: promptSystemPrompt(ct, count),
		Prompt:       promptPrompt(request, dataSummary, ct, count),
		Temperature:  g.prompts.Temperature,
		MaxTokens:    g.prompts.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	parsed := ParsePrompts(text)
	out := PadPrompts(parsed, ct.DefaultPrompts, count)

	logger.Info("Generated prompt variations",
		"content_type", ct.ID,
		"parsed", len(parsed),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// RefineTopic rewrites t according to instruction. When the response
// cannot be parsed the original topic is returned unchanged.
func (g *Generator) RefineTopic(ctx context.Context, t core.TopicCandidate, instruction string) (core.TopicCandidate, error) {
	if strings.TrimSpace(instruction) == "" {
		return t, core.Errorf(core.KindInvalidArgument, "topics.RefineTopic", "refinement instruction is empty")
	}

	text, err := g.gw.Generate(ctx, llm.Request{
		SystemPrompt: "You are a content strategy expert. Refine the topic based on user input.",
		Prompt: fmt.Sprintf(`Refine this content topic based on user modifications:

Original Topic:
Topic: %s
Focus: %s

User Input/Modifications:
%s

Provide the refined topic in exactly this format:
Topic: [refined topic]
Focus: [refined focus]`, t.Topic, t.Focus, instruction),
		Temperature: g.refine.Temperature,
		MaxTokens:   g.refine.MaxTokens,
	})
	if err != nil {
		return t, err
	}

	refined := ParseTopics(text)
	if len(refined) == 0 {
		logger.Warn("Topic refinement unparseable, keeping original", "topic", t.Topic)
		return t, nil
	}
	return refined[0], nil
}

// RefinePrompt rewrites p according to instruction, keeping its shape.
func (g *Generator) RefinePrompt(ctx context.Context, p core.PromptVariation, instruction string) (core.PromptVariation, error) {
	if strings.TrimSpace(instruction) == "" {
		return p, core.Errorf(core.KindInvalidArgument, "topics.RefinePrompt", "refinement instruction is empty")
	}

	text, err := g.gw.Generate(ctx, llm.Request{
		SystemPrompt: "You are a content strategy expert. Refine the given prompt based on user feedback.",
		Prompt: fmt.Sprintf(`Refine this content prompt based on user modifications:

Original Prompt:
Title: %s
Angle: %s
Description: %s

User Modifications:
%s

Provide the refined prompt in exactly this format:
Title: [refined title]
Angle: [refined angle]
Description: [refined description]`, p.Title, p.Angle, p.Description, instruction),
		Temperature: g.refine.Temperature,
		MaxTokens:   g.refine.MaxTokens,
	})
	if err != nil {
		return p, err
	}

	refined := ParsePrompts(text)
	if len(refined) == 0 {
		logger.Warn("Prompt refinement unparseable, keeping original", "title", p.Title)
		return p, nil
	}
	out := refined[0]
	// Fields the model dropped keep their previous value.
	if out.Angle == "Standard approach" && p.Angle != "" {
		out.Angle = p.Angle
	}
	if out.Description == "No description provided" && p.Description != "" {
		out.Description = p.Description
	}
	return out, nil
}

// CustomTopic wraps user-entered text as a topic candidate.
func CustomTopic(text string) (core.TopicCandidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return core.TopicCandidate{}, core.Errorf(core.KindInvalidArgument, "topics.CustomTopic", "custom topic is empty")
	}
	return core.TopicCandidate{Topic: text, Focus: CustomTopicFocus}, nil
}

func topicSystemPrompt(ct core.ContentType, n int) string {
	return fmt.Sprintf(`You are an expert content strategist specializing in Indian higher education and college-related content.

Your task is to generate %d diverse and engaging topic ideas for content creation.

Each topic MUST:
1. Be SPECIFIC to the actual college(s) data provided (use actual college names, rankings, fees, programs)
2. Reference ACTUAL data points (NIRF ranks, NAAC grades, fees in lakhs, placement percentages, program names)
3. Use Indian context: Indian English, Indian students and parents, the Indian education system
4. Align with the content type: %s
5. Be SEO-friendly with college name plus a specific aspect
6. Be directly answerable using the provided data

Avoid generic topics such as "Complete Admission Guide" or "Campus Infrastructure Overview".

Tone: %s
Ideal Length: %s`, n, ct.Name, ct.Tone, ct.Length)
}

func topicPrompt(summary string, ct core.ContentType, n int) string {
	return fmt.Sprintf(`Based on the following college data, generate %d compelling topic ideas for %s content:

Available Data Summary:
%s

Each topic must include actual college names and at least one specific data point from the data above.
Cover a mix of programs, rankings, admissions, fees, placements, infrastructure and location.

IMPORTANT: Format each topic EXACTLY like this:

1.
Topic: [College Name + Specific Aspect with Data Point]
Focus: [Brief description mentioning specific details from data]

2.
Topic: [College Name + Specific Aspect with Data Point]
Focus: [Brief description mentioning specific details from data]

Generate all %d topics now:`, n, ct.ID, summary, n)
}

func promptSystemPrompt(ct core.ContentType, n int) string {
	return fmt.Sprintf(`You are a content strategy expert specializing in educational and college-related content.

Your task is to generate %d different content prompts based on a user's request.

Each prompt should be clear and specific, align with the content type, use the available data, have a unique angle, and engage students, parents and education seekers.

Content Type: %s
Typical Sections: %s
Ideal Length: %s
Tone: %s`, n, ct.Name, strings.Join(ct.Sections, ", "), ct.Length, ct.Tone)
}

func promptPrompt(request, summary string, ct core.ContentType, n int) string {
	return fmt.Sprintf(`Generate %d different content prompts for this request:

Original Request: %s
Content Type: %s

Available Data Summary:
%s

IMPORTANT: Format each prompt EXACTLY like this:

1.
Title: [A catchy, SEO-friendly title]
Angle: [The unique perspective or angle]
Description: [Brief description of what the content will cover]

Generate all %d prompts now:`, n, request, ct.ID, summary, n)
}
