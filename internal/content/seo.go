package content

import (
	"strings"
)

// SEOResult is the parsed response of the SEO pass.
type SEOResult struct {
	MetaTitle       string
	MetaDescription string
	Renames         map[string]string // Current heading to improved heading
}

// ParseSEO reads META_TITLE, META_DESCRIPTION and "old -> new" heading
// lines. Unknown lines are ignored.
func ParseSEO(text string) SEOResult {
	res := SEOResult{Renames: map[string]string{}}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if line == "" {
			continue
		}
		if v, ok := field(line, "META_TITLE", "Meta Title"); ok {
			res.MetaTitle = v
			continue
		}
		if v, ok := field(line, "META_DESCRIPTION", "Meta Description"); ok {
			res.MetaDescription = v
			continue
		}
		for _, arrow := range []string{"->", "→", "=>"} {
			from, to, ok := strings.Cut(line, arrow)
			if !ok {
				continue
			}
			from = unquote(strings.TrimLeft(strings.TrimSpace(from), "# "))
			to = unquote(strings.TrimLeft(strings.TrimSpace(to), "# "))
			if from != "" && to != "" && from != to {
				res.Renames[from] = to
			}
			break
		}
	}
	return res
}

func field(line string, names ...string) (string, bool) {
	for _, n := range names {
		if len(line) > len(n) && strings.EqualFold(line[:len(n)], n) && line[len(n)] == ':' {
			return unquote(strings.TrimSpace(line[len(n)+1:])), true
		}
	}
	return "", false
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '[' && s[len(s)-1] == ']') {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
