// Package content renders the final document from an approved outline and
// regenerates it wholesale, per section or for SEO.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"collegecontent/internal/config"
	"collegecontent/internal/core"
	"collegecontent/internal/keywords"
	"collegecontent/internal/llm"
	"collegecontent/internal/logger"
	"collegecontent/internal/outline"
)

const (
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 4000
	DefaultSectionMaxTokens = 2000
	DefaultSEOTemperature   = 0.6
)

// Request carries the inputs of a render call.
type Request struct {
	Outline      core.ContentOutline
	Records      []core.CollegeRecord // Full record set, not a preview
	ContentType  core.ContentType
	Trends       string
	Instructions string
	Keywords     []string
}

// Generator runs the content stage.
type Generator struct {
	gw    llm.Gateway
	stage config.ContentStage
	now   func() time.Time
}

// New creates a content generator.
func New(gw llm.Gateway, stage config.ContentStage) *Generator {
	if stage.Temperature == 0 {
		stage.Temperature = DefaultTemperature
	}
	if stage.MaxTokens <= 0 {
		stage.MaxTokens = DefaultMaxTokens
	}
	if stage.SectionMaxTokens <= 0 {
		stage.SectionMaxTokens = DefaultSectionMaxTokens
	}
	if stage.SEOTemperature == 0 {
		stage.SEOTemperature = DefaultSEOTemperature
	}
	return &Generator{gw: gw, stage: stage, now: time.Now}
}

// Render writes the full document. Generation failures are returned as-is
// so the caller can read their kind and retryable flag.
func (g *Generator) Render(ctx context.Context, req Request) (core.FinalContent, error) {
	if len(req.Outline.Sections) == 0 && strings.TrimSpace(req.Outline.Raw) == "" {
		return core.FinalContent{}, core.Errorf(core.KindInvalidArgument, "content.Render", "outline is empty")
	}
	data, err := recordData(req.Records)
	if err != nil {
		return core.FinalContent{}, err
	}

	start := time.Now()
	text, err := g.gw.Generate(ctx, llm.Request{
		SystemPrompt: systemPrompt(req.ContentType),
		Prompt:       renderPrompt(req, data),
		Temperature:  g.stage.Temperature,
		MaxTokens:    g.stage.MaxTokens,
	})
	if err != nil {
		return core.FinalContent{}, err
	}

	fc := g.finalize(req, cleanMarkdown(text))
	logger.Info("Generated content",
		"content_id", fc.ID,
		"content_type", fc.ContentType,
		"records", len(fc.RecordIDs),
		"chars", len(fc.Markdown),
		"with_trends", req.Trends != "",
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return fc, nil
}

// Regenerate renders the document again with instructions appended to the
// request's own. The result replaces the previous content wholesale.
func (g *Generator) Regenerate(ctx context.Context, req Request, instructions string) (core.FinalContent, error) {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return core.FinalContent{}, core.Errorf(core.KindInvalidArgument, "content.Regenerate", "regeneration instructions are empty")
	}
	if req.Instructions != "" {
		req.Instructions = strings.TrimSpace(req.Instructions) + "\n" + instructions
	} else {
		req.Instructions = instructions
	}
	return g.Render(ctx, req)
}

// RegenerateSection rewrites the body of the section titled heading. The
// heading line and every other byte of the document are left untouched.
func (g *Generator) RegenerateSection(ctx context.Context, fc core.FinalContent, req Request, heading, instruction string) (core.FinalContent, error) {
	sec, ok := FindSection(fc.Markdown, heading)
	if !ok {
		return fc, core.Errorf(core.KindInvalidArgument, "content.RegenerateSection",
			"no section %q (sections: %s)", heading, strings.Join(SectionNames(fc.Markdown), ", "))
	}
	data, err := recordData(req.Records)
	if err != nil {
		return fc, err
	}

	start := time.Now()
	text, err := g.gw.Generate(ctx, llm.Request{
		SystemPrompt: "You are an expert content writer. Generate detailed, informative content for a specific section of an Indian higher education article. Use actual college names from the data and never invent facts that are not in it.",
		Prompt:       sectionPrompt(sec, fc.Markdown, sectionOutline(req.Outline, sec.Text), data, req.Trends, instruction),
		Temperature:  g.stage.Temperature,
		MaxTokens:    g.stage.SectionMaxTokens,
	})
	if err != nil {
		return fc, err
	}

	body := stripLeadingHeading(cleanMarkdown(text))
	if body == "" {
		return fc, core.Errorf(core.KindInputMalformed, "content.RegenerateSection", "model returned an empty section")
	}

	out := fc
	out.Markdown = ReplaceBody(fc.Markdown, sec, body)
	out.GeneratedAt = g.now().UTC()
	out.Provider = string(g.gw.Provider())
	out.Model = g.gw.Model()
	out.Edited = false
	logger.Info("Regenerated content section",
		"content_id", fc.ID,
		"section", sec.Text,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// EnhanceSEO asks for a meta title, a meta description and heading
// rewrites, then applies the rewrites to heading text only. Section bodies
// keep their bytes, so no factual content changes.
func (g *Generator) EnhanceSEO(ctx context.Context, fc core.FinalContent, kws []string) (core.FinalContent, error) {
	if strings.TrimSpace(fc.Markdown) == "" {
		return fc, core.Errorf(core.KindInvalidArgument, "content.EnhanceSEO", "content is empty")
	}
	kws = keywords.Clean(kws)

	text, err := g.gw.Generate(ctx, llm.Request{
		SystemPrompt: "You are an SEO content specialist for Indian higher education content. Improve discoverability while keeping every fact unchanged.",
		Prompt:       seoPrompt(fc.Markdown, kws),
		Temperature:  g.stage.SEOTemperature,
		MaxTokens:    g.stage.SectionMaxTokens,
	})
	if err != nil {
		return fc, err
	}

	res := ParseSEO(text)
	md, renamed := RenameHeadings(fc.Markdown, res.Renames)

	meta := core.SEOMetadata{
		MetaTitle:       res.MetaTitle,
		MetaDescription: res.MetaDescription,
		Keywords:        kws,
	}
	if meta.MetaTitle == "" {
		meta.MetaTitle = documentTitle(md, fc.OutlineTitle)
	}
	if meta.MetaDescription == "" {
		meta.MetaDescription = firstParagraph(md, 160)
	}

	out := fc
	out.Markdown = md
	out.SEO = &meta
	logger.Info("Applied SEO pass",
		"content_id", fc.ID,
		"headings_renamed", renamed,
		"keywords", len(kws),
	)
	return out, nil
}

// Edit replaces the markdown with a user edit.
func Edit(fc core.FinalContent, markdown string) (core.FinalContent, error) {
	if strings.TrimSpace(markdown) == "" {
		return fc, core.Errorf(core.KindInvalidArgument, "content.Edit", "edited content is empty")
	}
	fc.Markdown = markdown
	fc.Edited = true
	return fc, nil
}

func (g *Generator) finalize(req Request, md string) core.FinalContent {
	ids := make([]int64, 0, len(req.Records))
	for _, r := range req.Records {
		ids = append(ids, r.ID)
	}
	return core.FinalContent{
		ID:           uuid.NewString(),
		Markdown:     md,
		OutlineTitle: req.Outline.Title,
		ContentType:  req.ContentType.ID,
		RecordIDs:    ids,
		Provider:     string(g.gw.Provider()),
		Model:        g.gw.Model(),
		GeneratedAt:  g.now().UTC(),
	}
}

// recordData renders the full record set for the prompt. Absent fields stay
// absent; nothing is filled in.
func recordData(records []core.CollegeRecord) (string, error) {
	if len(records) == 0 {
		return "No college records available. Do not invent college-specific facts.", nil
	}
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", core.Wrap(core.KindSchemaMismatch, "content.recordData", err)
	}
	return string(b), nil
}

func sectionOutline(o core.ContentOutline, heading string) string {
	want := normalizeHeading(heading)
	for _, s := range o.Sections {
		if normalizeHeading(s.Heading) != want {
			continue
		}
		return strings.TrimSpace(core.ContentOutline{Sections: []core.OutlineSection{s}}.Text())
	}
	return ""
}

// cleanMarkdown trims the response and removes a ```markdown fence wrapped
// around the whole document.
func cleanMarkdown(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	inner := strings.TrimSuffix(s, "```")
	if i := strings.IndexByte(inner, '\n'); i >= 0 {
		inner = inner[i+1:]
	} else {
		return s
	}
	return strings.TrimSpace(inner)
}

func stripLeadingHeading(s string) string {
	if !strings.HasPrefix(s, "#") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return ""
}

func documentTitle(md, fallback string) string {
	for _, h := range Headings(md) {
		if h.Level == 1 {
			return h.Text
		}
	}
	return fallback
}

// firstParagraph returns the first prose line of md, cut to max runes on a
// word boundary.
func firstParagraph(md string, max int) string {
	for _, line := range strings.Split(md, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.ContainsAny(line[:1], "#|-*>!`") {
			continue
		}
		line = strings.ReplaceAll(line, "**", "")
		r := []rune(line)
		if len(r) <= max {
			return line
		}
		cut := string(r[:max])
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
		return strings.TrimRight(cut, " ,.;:") + "..."
	}
	return ""
}

func systemPrompt(ct core.ContentType) string {
	return fmt.Sprintf(`You are an expert content writer specializing in Indian higher education and college-related content.

Your writing should follow the %s format, maintain a %s tone and target %s. Use proper markdown, include relevant data and statistics, and use SEO-friendly headings.

Indian context:
- Use Indian English and lakhs/crores for money, LPA for salaries
- Write for Indian students, parents and education seekers
- Reference Indian entrance exams (JEE Main/Advanced, NEET, CAT, CLAT, GATE) and bodies (UGC, AICTE, NAAC, NIRF) where relevant

Data usage:
- ALWAYS use ACTUAL college names from the provided data, verbatim
- NEVER use placeholder names like "College X" or "College A"
- A field missing from the data is unknown; never invent a value for it

Format:
- # for the main title (only once), ## for main sections, ### for subsections
- At most 2-3 short paragraphs per section; prefer bullets, numbered lists and tables
- Tables for rankings, fees, placements and comparisons`, valueOr(ct.Name, ct.ID), valueOr(ct.Tone, "informative"), ct.Length)
}

func renderPrompt(req Request, data string) string {
	var sb strings.Builder
	sb.WriteString("Write comprehensive content following this outline:\n\n")
	fmt.Fprintf(&sb, "# %s\n\n", valueOr(req.Outline.Title, "Content"))
	fmt.Fprintf(&sb, "Outline:\n%s\n\n", outline.Text(req.Outline))
	fmt.Fprintf(&sb, "Available Data to Incorporate:\n%s\n\n", data)
	if t := strings.TrimSpace(req.Trends); t != "" {
		fmt.Fprintf(&sb, "Current Context/Trends:\n%s\n\n", t)
	}
	if kw := keywords.FormatForPrompt(req.Keywords, 0); kw != "" {
		sb.WriteString(kw + "\n")
	}
	if in := strings.TrimSpace(req.Instructions); in != "" {
		fmt.Fprintf(&sb, "Additional Instructions:\n%s\n\n", in)
	}
	sb.WriteString(`Generate the complete content in markdown format.

CRITICAL RULES:
1. Use the actual college names from "Available Data to Incorporate" throughout, including comparisons and tables
2. Never use placeholder names
3. Use only facts present in the data or the trend context

Content:`)
	return sb.String()
}

func sectionPrompt(sec Section, doc, sectionOutline, data, trends, instruction string) string {
	var sb strings.Builder
	sb.WriteString("Rewrite one section of an existing article.\n\n")
	fmt.Fprintf(&sb, "Section Title: %s\n\n", sec.Text)
	if sectionOutline != "" {
		fmt.Fprintf(&sb, "Section Outline:\n%s\n\n", sectionOutline)
	}
	fmt.Fprintf(&sb, "Current Section Content:\n%s\n\n", strings.TrimSpace(sec.Body(doc)))
	fmt.Fprintf(&sb, "Available Data:\n%s\n\n", data)
	if t := strings.TrimSpace(trends); t != "" {
		fmt.Fprintf(&sb, "Context:\n%s\n\n", t)
	}
	if in := strings.TrimSpace(instruction); in != "" {
		fmt.Fprintf(&sb, "Instructions:\n%s\n\n", in)
	}
	sb.WriteString("Return only the new body of this section in markdown. Do not repeat the section heading. Sub-headings must be deeper than the section heading.")
	return sb.String()
}

func seoPrompt(doc string, kws []string) string {
	var sb strings.Builder
	sb.WriteString("Suggest SEO improvements for this content without changing any facts.\n\n")
	fmt.Fprintf(&sb, "Content:\n%s\n\n", doc)
	if kw := keywords.FormatForPrompt(kws, 0); kw != "" {
		sb.WriteString(kw + "\n")
	}
	sb.WriteString("Current Headings:\n")
	for _, h := range Headings(doc) {
		fmt.Fprintf(&sb, "- %s\n", h.Text)
	}
	sb.WriteString(`
Respond in exactly this format:
META_TITLE: [title under 60 characters]
META_DESCRIPTION: [description under 160 characters]
HEADINGS:
[current heading] -> [improved heading]

List only headings that should change. Keep college names and numbers in headings unchanged.`)
	return sb.String()
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
