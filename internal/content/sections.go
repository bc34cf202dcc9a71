package content

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is a top-level markdown heading with byte offsets into the
// document it was read from.
type Heading struct {
	Text      string
	Level     int
	LineStart int // Start of the heading line
	TextStart int // Heading text, without markers
	TextEnd   int
	BodyStart int // First byte after the heading line (and setext underline)
}

// Section is the span owned by one heading: the heading line plus every
// byte up to the next heading of the same or a higher level.
type Section struct {
	Heading
	End int
}

// Body returns the section's bytes after its heading line.
func (s Section) Body(src string) string { return src[s.BodyStart:s.End] }

var mdParser = goldmark.New().Parser()

// Headings lists the document's top-level headings in order. Headings inside
// code blocks, lists and block quotes are not included.
func Headings(src string) []Heading {
	b := []byte(src)
	doc := mdParser.Parse(text.NewReader(b))

	var out []Heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		first := h.Lines().At(0)
		last := h.Lines().At(h.Lines().Len() - 1)

		textStart, textEnd := first.Start, last.Stop
		for textEnd > textStart && isSpace(b[textEnd-1]) {
			textEnd--
		}
		for textStart < textEnd && isSpace(b[textStart]) {
			textStart++
		}

		lineStart := bytes.LastIndexByte(b[:textStart], '\n') + 1
		bodyStart := lineEnd(b, textEnd)
		if !isATX(b[lineStart:]) {
			// Setext: skip the underline as well.
			bodyStart = lineEnd(b, bodyStart)
		}

		var sb strings.Builder
		for i := 0; i < h.Lines().Len(); i++ {
			seg := h.Lines().At(i)
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.Write(seg.Value(b))
		}
		out = append(out, Heading{
			Text:      strings.TrimSpace(sb.String()),
			Level:     h.Level,
			LineStart: lineStart,
			TextStart: textStart,
			TextEnd:   textEnd,
			BodyStart: bodyStart,
		})
	}
	return out
}

// SectionLevel picks the heading level that divides the document into
// sections: the smallest level present, ignoring a single H1 used as the
// document title.
func SectionLevel(hs []Heading) int {
	h1 := 0
	level := 0
	for _, h := range hs {
		if h.Level == 1 {
			h1++
		}
	}
	for _, h := range hs {
		if h.Level == 1 && h1 == 1 && len(hs) > 1 {
			continue
		}
		if level == 0 || h.Level < level {
			level = h.Level
		}
	}
	return level
}

// Sections splits src at its section-level headings. Text before the first
// section (title, introduction) belongs to no section.
func Sections(src string) []Section {
	hs := Headings(src)
	level := SectionLevel(hs)
	if level == 0 {
		return nil
	}

	var out []Section
	for i, h := range hs {
		if h.Level != level {
			continue
		}
		end := len(src)
		for _, next := range hs[i+1:] {
			if next.Level <= level {
				end = next.LineStart
				break
			}
		}
		out = append(out, Section{Heading: h, End: end})
	}
	return out
}

// FindSection returns the section whose heading matches name, ignoring case,
// inline emphasis and surrounding whitespace.
func FindSection(src, name string) (Section, bool) {
	want := normalizeHeading(name)
	for _, s := range Sections(src) {
		if normalizeHeading(s.Text) == want {
			return s, true
		}
	}
	return Section{}, false
}

// SectionNames lists the section headings of src.
func SectionNames(src string) []string {
	var out []string
	for _, s := range Sections(src) {
		out = append(out, s.Text)
	}
	return out
}

// ReplaceBody swaps the body of s for body. The heading line and every byte
// outside the section are kept as they were. The blank lines that separated
// the old body from its heading and from the next section are reused.
func ReplaceBody(src string, s Section, body string) string {
	old := src[s.BodyStart:s.End]
	lead := old[:len(old)-len(strings.TrimLeft(old, "\r\n"))]
	if lead == "" {
		lead = "\n"
	}
	trail := old[len(strings.TrimRight(old, " \t\r\n")):]
	if len(strings.TrimSpace(old)) == 0 {
		trail = ""
	}
	if !strings.Contains(trail, "\n") {
		if s.End < len(src) {
			trail = "\n\n"
		} else {
			trail = "\n"
		}
	}
	return src[:s.BodyStart] + lead + strings.TrimSpace(body) + trail + src[s.End:]
}

// RenameHeadings rewrites heading text according to renames (old heading to
// new heading, matched like FindSection). Only heading text changes; markers,
// bodies and everything else keep their bytes. It returns the new document
// and the number of headings rewritten.
func RenameHeadings(src string, renames map[string]string) (string, int) {
	if len(renames) == 0 {
		return src, 0
	}
	norm := make(map[string]string, len(renames))
	for from, to := range renames {
		if to = strings.TrimSpace(to); to != "" {
			norm[normalizeHeading(from)] = to
		}
	}

	var (
		sb    strings.Builder
		pos   int
		count int
	)
	for _, h := range Headings(src) {
		to, ok := norm[normalizeHeading(h.Text)]
		if !ok || to == h.Text || strings.Contains(src[h.TextStart:h.TextEnd], "\n") {
			continue
		}
		sb.WriteString(src[pos:h.TextStart])
		sb.WriteString(to)
		pos = h.TextEnd
		count++
	}
	sb.WriteString(src[pos:])
	return sb.String(), count
}

func normalizeHeading(s string) string {
	s = strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "#*_"))
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// lineEnd returns the offset just past the newline that ends the line
// containing off.
func lineEnd(b []byte, off int) int {
	if off >= len(b) {
		return len(b)
	}
	i := bytes.IndexByte(b[off:], '\n')
	if i < 0 {
		return len(b)
	}
	return off + i + 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isATX(line []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(line, " "), []byte("#"))
}
