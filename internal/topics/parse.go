package topics

import (
	"fmt"
	"regexp"
	"strings"

	"collegecontent/internal/core"
)

var (
	itemHeader    = regexp.MustCompile(`^(?:\d+[.)]?|prompt\s*\d*[.:]?|topic\s*\d+[.:]?)\s*$`)
	fieldPattern  = regexp.MustCompile(`(?i)^(topic|focus|title|angle|description)\s*\d*\s*:\s*(.*)$`)
	markupPrefix  = regexp.MustCompile(`^(?:[-*•]\s*|#+\s*|\d+[.)]\s+)`)
	collegeInLine = regexp.MustCompile(`-\s+([^(]+?)\s+(?:in|,|\()`)
	digits        = regexp.MustCompile(`\d+`)
)

// indianKeywords mark a topic as grounded in Indian admissions data.
var indianKeywords = []string{
	"nirf", "naac", "jee", "neet", "cat", "clat", "lakh", "crore",
	"lpa", "btech", "mba", "mbbs", "aicte", "ugc",
}

// block holds the labelled fields of one parsed item.
type block map[string]string

// parseBlocks splits model output into blocks of labelled fields. A block
// starts at a standalone number line or when a field repeats.
func parseBlocks(text string, first string) []block {
	var (
		blocks  []block
		current block
		last    string
	)
	flush := func() {
		if current != nil && current[first] != "" {
			blocks = append(blocks, current)
		}
		current, last = nil, ""
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if itemHeader.MatchString(strings.ToLower(line)) {
			flush()
			continue
		}

		cleaned := strings.ReplaceAll(line, "**", "")
		cleaned = strings.TrimSpace(markupPrefix.ReplaceAllString(cleaned, ""))
		if m := fieldPattern.FindStringSubmatch(cleaned); m != nil {
			key := strings.ToLower(m[1])
			value := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[2]), `"`))
			if current != nil && current[key] != "" {
				flush()
			}
			if current == nil {
				current = block{}
			}
			current[key] = value
			last = key
			continue
		}

		// Continuation of the previous field.
		if current != nil && last != "" && last != first {
			current[last] = strings.TrimSpace(current[last] + " " + line)
		}
	}
	flush()
	return blocks
}

// ParseTopics extracts topic candidates from "Topic:/Focus:" formatted
// text. Malformed input yields fewer (possibly zero) candidates.
func ParseTopics(text string) []core.TopicCandidate {
	var out []core.TopicCandidate
	for _, b := range parseBlocks(text, "topic") {
		focus := b["focus"]
		if focus == "" {
			focus = "General overview of college information"
		}
		out = append(out, core.TopicCandidate{Topic: b["topic"], Focus: focus})
	}
	return out
}

// ParsePrompts extracts prompt variations from "Title:/Angle:/Description:"
// formatted text.
func ParsePrompts(text string) []core.PromptVariation {
	var out []core.PromptVariation
	for i, b := range parseBlocks(text, "title") {
		p := core.PromptVariation{
			Title:       b["title"],
			Angle:       b["angle"],
			Description: b["description"],
		}
		if p.Title == "" {
			p.Title = fmt.Sprintf("Content Variation %d", i+1)
		}
		if p.Angle == "" {
			p.Angle = "Standard approach"
		}
		if p.Description == "" {
			p.Description = "No description provided"
		}
		out = append(out, p)
	}
	return out
}

// CollegeNames pulls "- Name in City, State" style names out of a data
// summary.
func CollegeNames(summary string) []string {
	var names []string
	for _, m := range collegeInLine.FindAllStringSubmatch(summary, -1) {
		name := strings.TrimSpace(m[1])
		if len(name) > 3 {
			names = append(names, name)
		}
	}
	return names
}

// Specificity scores a topic from 0 to 3: it names a listed college, it
// contains a number, it uses Indian admissions vocabulary.
func Specificity(topic string, collegeNames []string) int {
	lower := strings.ToLower(topic)
	score := 0
	for _, n := range collegeNames {
		if len(n) > 3 && strings.Contains(lower, strings.ToLower(n)) {
			score++
			break
		}
	}
	if digits.MatchString(topic) {
		score++
	}
	for _, kw := range indianKeywords {
		if strings.Contains(lower, kw) {
			score++
			break
		}
	}
	return score
}

// FilterSpecific keeps topics scoring at least two.
func FilterSpecific(topics []core.TopicCandidate, summary string) []core.TopicCandidate {
	names := CollegeNames(summary)
	var out []core.TopicCandidate
	for _, t := range topics {
		if Specificity(t.Topic, names) >= 2 {
			out = append(out, t)
		}
	}
	return out
}

// PadTopics returns exactly n topics: the parsed ones first, then unused
// defaults in order, then numbered placeholders.
func PadTopics(parsed, defaults []core.TopicCandidate, n int) []core.TopicCandidate {
	if n <= 0 {
		return nil
	}
	out := make([]core.TopicCandidate, 0, n)
	seen := make(map[string]bool)
	add := func(t core.TopicCandidate) {
		key := strings.ToLower(strings.TrimSpace(t.Topic))
		if len(out) >= n || key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, t)
	}
	for _, t := range parsed {
		add(t)
	}
	for _, t := range defaults {
		add(t)
	}
	for i := 1; len(out) < n; i++ {
		add(core.TopicCandidate{
			Topic: fmt.Sprintf("College Insights Part %d", i),
			Focus: "General overview of college information",
		})
	}
	return out
}

// PadPrompts returns exactly n prompt variations.
func PadPrompts(parsed, defaults []core.PromptVariation, n int) []core.PromptVariation {
	if n <= 0 {
		return nil
	}
	out := make([]core.PromptVariation, 0, n)
	seen := make(map[string]bool)
	add := func(p core.PromptVariation) {
		key := strings.ToLower(strings.TrimSpace(p.Title))
		if len(out) >= n || key == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, p)
	}
	for _, p := range parsed {
		add(p)
	}
	for _, p := range defaults {
		add(p)
	}
	for i := 1; len(out) < n; i++ {
		add(core.PromptVariation{
			Title:       fmt.Sprintf("Content Variation %d", i),
			Angle:       "Standard approach",
			Description: "A general overview built from the available college data",
		})
	}
	return out
}
