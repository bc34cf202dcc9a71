// Package outline builds, parses and refines content outlines.
package outline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"collegecontent/internal/config"
	"collegecontent/internal/core"
	"collegecontent/internal/llm"
	"collegecontent/internal/logger"
)

const (
	DefaultTemperature    = 0.6
	DefaultMaxTokens      = 2000
	DefaultPreviewRecords = 5
)

// Request carries everything the outline call needs.
type Request struct {
	Selection   core.Selection
	ContentType core.ContentType
	Records     []core.CollegeRecord
	Trends      string // Optional trend context
}

// Builder runs the outline stage.
type Builder struct {
	gw    llm.Gateway
	stage config.OutlineStage
}

// New creates an outline builder.
func New(gw llm.Gateway, stage config.OutlineStage) *Builder {
	if stage.Temperature == 0 {
		stage.Temperature = DefaultTemperature
	}
	if stage.MaxTokens <= 0 {
		stage.MaxTokens = DefaultMaxTokens
	}
	if stage.PreviewRecords <= 0 {
		stage.PreviewRecords = DefaultPreviewRecords
	}
	return &Builder{gw: gw, stage: stage}
}

// Build asks the model for an outline. The response is kept as-is in Raw;
// the parsed sections are a best-effort structure and are not validated
// against the content type's typical sections.
func (b *Builder) Build(ctx context.Context, req Request) (core.ContentOutline, error) {
	if strings.TrimSpace(req.Selection.Title) == "" && strings.TrimSpace(req.Selection.Description) == "" {
		return core.ContentOutline{}, core.Errorf(core.KindInvalidArgument, "outline.Build", "selection has no title or description")
	}

	preview, err := Preview(req.Records, b.stage.PreviewRecords)
	if err != nil {
		return core.ContentOutline{}, err
	}

	start := time.Now()
	text, err := b.gw.Generate(ctx, llm.Request{
		SystemPrompt: systemPrompt(req.ContentType),
		Prompt:       buildPrompt(req, preview),
		Temperature:  b.stage.Temperature,
		MaxTokens:    b.stage.MaxTokens,
	})
	if err != nil {
		return core.ContentOutline{}, err
	}

	o := FromText(req.Selection.Title, req.ContentType.ID, text)
	logger.Info("Generated outline",
		"content_type", req.ContentType.ID,
		"sections", len(o.Sections),
		"preview_records", min(len(req.Records), b.stage.PreviewRecords),
		"with_trends", req.Trends != "",
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return o, nil
}

// Refine rewrites the outline according to feedback. Title and content type
// are kept.
func (b *Builder) Refine(ctx context.Context, o core.ContentOutline, feedback string) (core.ContentOutline, error) {
	if strings.TrimSpace(feedback) == "" {
		return o, core.Errorf(core.KindInvalidArgument, "outline.Refine", "feedback is empty")
	}

	text, err := b.gw.Generate(ctx, llm.Request{
		SystemPrompt: "You are a content strategist. Refine the content outline based on user feedback while maintaining structure and quality.",
		Prompt: fmt.Sprintf(`Refine this content outline based on user feedback:

Current Outline:
%s

User Feedback:
%s

Provide the refined outline with requested changes. Use "## " for section headings, "### " for sub-sections and "- " for key points.`, Text(o), feedback),
		Temperature: b.stage.Temperature,
		MaxTokens:   b.stage.MaxTokens,
	})
	if err != nil {
		return o, err
	}
	return FromText(o.Title, o.ContentType, text), nil
}

// FromText builds an outline from model output or a user edit.
func FromText(title, contentType, text string) core.ContentOutline {
	return core.ContentOutline{
		Title:       title,
		ContentType: contentType,
		Sections:    Parse(text),
		Raw:         text,
	}
}

// Text returns the outline form handed to the next model call: the
// rendered sections, or the raw text when nothing could be parsed.
func Text(o core.ContentOutline) string {
	if len(o.Sections) == 0 {
		return strings.TrimSpace(o.Raw)
	}
	return o.Text()
}

// Preview renders the first n records as indented JSON.
func Preview(records []core.CollegeRecord, n int) (string, error) {
	if len(records) == 0 {
		return "No college records available.", nil
	}
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", core.Wrap(core.KindSchemaMismatch, "outline.Preview", err)
	}
	return string(b), nil
}

// Summary renders a human-readable overview of the outline.
func Summary(o core.ContentOutline, ct core.ContentType) string {
	var sb strings.Builder
	title := o.Title
	if title == "" {
		title = "Content Outline"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "**Content Type:** %s\n\n", valueOr(ct.Name, o.ContentType))
	if ct.Length.MaxWords > 0 {
		fmt.Fprintf(&sb, "**Target Length:** %s\n", ct.Length)
	}
	if ct.Tone != "" {
		fmt.Fprintf(&sb, "**Tone:** %s\n\n", ct.Tone)
	}
	sb.WriteString("## Outline:\n\n")
	for i, s := range o.Sections {
		fmt.Fprintf(&sb, "%d. **%s**\n", i+1, s.Heading)
		for _, p := range s.Points {
			fmt.Fprintf(&sb, "   - %s\n", p)
		}
		for _, sub := range s.Subsections {
			fmt.Fprintf(&sb, "   - %s\n", sub.Heading)
			for _, p := range sub.Points {
				fmt.Fprintf(&sb, "     • %s\n", p)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func systemPrompt(ct core.ContentType) string {
	return fmt.Sprintf(`You are a content strategist creating detailed content outlines for Indian higher education content.

Create a comprehensive outline that:
1. Follows the %s format
2. Includes clear section headings
3. Lists key points for each section
4. Incorporates available data effectively
5. Maintains the tone: %s
6. Targets length: %s

Use Indian English (lakhs/crores), target Indian students and parents, and reference Indian exams and accreditation bodies (JEE, NEET, CAT, CLAT, UGC, AICTE, NAAC, NIRF).

ALWAYS use actual college names from the data provided. NEVER use placeholder names like "College X" or "College A".`, valueOr(ct.Name, ct.ID), ct.Tone, ct.Length)
}

func buildPrompt(req Request, preview string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a detailed content outline for this topic:\n\n")
	fmt.Fprintf(&sb, "Title: %s\nAngle: %s\nDescription: %s\n\n", req.Selection.Title, req.Selection.Angle, req.Selection.Description)
	fmt.Fprintf(&sb, "Content Type: %s\n", req.ContentType.ID)
	fmt.Fprintf(&sb, "Typical Sections: %s\n\n", strings.Join(req.ContentType.Sections, ", "))
	fmt.Fprintf(&sb, "Available Data:\n%s\n\n", preview)
	if t := strings.TrimSpace(req.Trends); t != "" {
		fmt.Fprintf(&sb, "Current Trends/Context:\n%s\n\n", t)
	}
	sb.WriteString(`IMPORTANT: Use ACTUAL college names from the "Available Data" section above.

Create a detailed outline with:
- Main sections as "## " headings (use actual college names in headings)
- Sub-sections as "### " headings
- Key points to cover in each section as "- " bullet points
- Where tables would be useful (fees, rankings, placements, comparisons)

Format the outline clearly with hierarchical structure.`)
	return sb.String()
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
