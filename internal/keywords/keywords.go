// Package keywords parses SEO target keyword lists from uploaded files and
// manual input.
package keywords

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

// MaxPromptKeywords bounds how many keywords are handed to the model.
const MaxPromptKeywords = 20

// PromptHeader introduces the keyword block in a prompt.
const PromptHeader = "Target Keywords (integrate naturally for SEO):"

// ParseCSV reads keywords from column of a CSV document with a header row.
// When column is empty or absent from the header, the first column is used.
func ParseCSV(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, core.Wrap(core.KindInputMalformed, "keywords.ParseCSV", err)
	}

	idx := 0
	for i, h := range header {
		if column != "" && strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), column) {
			idx = i
			break
		}
	}

	var out []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.Wrap(core.KindInputMalformed, "keywords.ParseCSV", err)
		}
		if idx < len(rec) {
			out = append(out, rec[idx])
		}
	}
	kws := Clean(out)
	logger.Debug("Parsed keywords from CSV", "rows", len(out), "keywords", len(kws))
	return kws, nil
}

// ParseText splits a plain text file on newlines. A single line holding
// commas is split on commas instead.
func ParseText(data []byte) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, core.Errorf(core.KindInputMalformed, "keywords.ParseText", "keyword file is not valid UTF-8")
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	parts := strings.Split(text, "\n")
	if len(parts) == 1 && strings.Contains(parts[0], ",") {
		parts = strings.Split(parts[0], ",")
	}
	return Clean(parts), nil
}

// ParseManual splits comma-separated input, falling back to newlines.
func ParseManual(text string) []string {
	if strings.Contains(text, ",") {
		return Clean(strings.Split(text, ","))
	}
	return Clean(strings.Split(text, "\n"))
}

// Clean trims entries, drops empties and removes case-insensitive duplicates,
// keeping the first spelling seen.
func Clean(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, k := range in {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key := strings.ToLower(k)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, k)
	}
	return out
}

// FormatForPrompt renders at most max keywords as a bulleted block. A
// non-positive max means MaxPromptKeywords.
func FormatForPrompt(kws []string, max int) string {
	if len(kws) == 0 {
		return ""
	}
	if max <= 0 {
		max = MaxPromptKeywords
	}
	if len(kws) > max {
		logger.Warn("Limiting keywords for prompt", "total", len(kws), "kept", max)
		kws = kws[:max]
	}
	var sb strings.Builder
	sb.WriteString(PromptHeader + "\n")
	for _, k := range kws {
		fmt.Fprintf(&sb, "- %s\n", k)
	}
	return sb.String()
}
