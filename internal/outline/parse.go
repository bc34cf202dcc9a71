package outline

import (
	"strings"
	"unicode"

	"collegecontent/internal/core"
)

// Parse turns outline text into sections. Recognized shapes:
//
//	## Heading / 1. Heading          top-level section
//	### Sub-heading / - Label:       sub-section
//	- point / * point / • point      key point (indented numbered lines too)
//
// Lines before the first section and unrecognized lines are ignored.
func Parse(text string) []core.OutlineSection {
	var (
		sections []core.OutlineSection
		sec      *core.OutlineSection
		sub      *core.OutlineSection
	)
	closeSub := func() {
		if sub != nil && sec != nil {
			sec.Subsections = append(sec.Subsections, *sub)
		}
		sub = nil
	}
	closeSection := func() {
		closeSub()
		if sec != nil {
			sections = append(sections, *sec)
		}
		sec = nil
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		indented := len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\t')
		line := strings.TrimSpace(strings.ReplaceAll(raw, "**", ""))
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "###"):
			if sec == nil {
				continue
			}
			closeSub()
			sub = &core.OutlineSection{Heading: strings.TrimSpace(strings.TrimLeft(line, "#"))}

		case strings.HasPrefix(line, "##") || (!indented && isNumbered(line)):
			closeSection()
			heading := sectionHeading(line)
			if heading == "" {
				continue
			}
			sec = &core.OutlineSection{Heading: heading}

		case isBullet(line):
			point := strings.TrimSpace(strings.TrimLeft(line, "-*• "))
			if point == "" || sec == nil {
				continue
			}
			if !indented && isLabel(point) {
				closeSub()
				sub = &core.OutlineSection{Heading: strings.TrimSuffix(point, ":")}
				continue
			}
			addPoint(sec, sub, point)

		case indented && isNumbered(line) && sec != nil:
			addPoint(sec, sub, strings.TrimSpace(strings.TrimLeft(line, "0123456789.) ")))
		}
	}
	closeSection()
	return sections
}

// sectionHeading strips "#" markers and a leading "N." list number.
func sectionHeading(line string) string {
	h := strings.TrimSpace(strings.TrimLeft(line, "#"))
	if isNumbered(h) {
		h = strings.TrimLeft(h, "0123456789")
		h = strings.TrimLeft(h, ".) ")
	}
	return strings.TrimSpace(h)
}

func addPoint(sec, sub *core.OutlineSection, point string) {
	if sub != nil {
		sub.Points = append(sub.Points, point)
		return
	}
	sec.Points = append(sec.Points, point)
}

// isNumbered reports a "1." or "12)" prefix within the first three bytes.
func isNumbered(line string) bool {
	if line == "" || !unicode.IsDigit(rune(line[0])) {
		return false
	}
	head := line
	if len(head) > 3 {
		head = head[:3]
	}
	return strings.ContainsAny(head, ".)")
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•")
}

// isLabel reports a capitalized bullet that introduces a group, e.g.
// "- Admission Process:".
func isLabel(point string) bool {
	r := []rune(point)
	return len(r) > 1 && unicode.IsUpper(r[0]) && strings.HasSuffix(point, ":")
}
