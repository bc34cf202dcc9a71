// Package query turns free-text content requests into college filter sets
// using fixed rules. It never calls a model and never performs I/O.
package query

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"collegecontent/internal/core"
)

const (
	DefaultCap = 50
	MaxCap     = 100

	// Longer inputs are truncated before matching.
	maxQueryRunes = 2000
)

// Cities is the reference gazetteer of city names.
var Cities = []string{
	"mumbai", "delhi", "bangalore", "chennai", "kolkata", "hyderabad",
	"pune", "ahmedabad", "jaipur", "lucknow", "kanpur", "nagpur",
	"indore", "thane", "bhopal", "visakhapatnam", "pimpri", "patna",
	"vadodara", "ghaziabad", "ludhiana", "agra", "nashik", "faridabad",
	"meerut", "rajkot", "kalyan", "vasai", "varanasi", "srinagar",
}

// States is the reference gazetteer of state and union territory names.
var States = []string{
	"maharashtra", "karnataka", "tamil nadu", "delhi", "west bengal",
	"telangana", "gujarat", "rajasthan", "uttar pradesh", "madhya pradesh",
	"bihar", "andhra pradesh", "kerala", "punjab", "haryana", "odisha",
	"jharkhand", "assam", "chhattisgarh", "uttarakhand", "himachal pradesh",
	"goa", "jammu and kashmir", "manipur", "meghalaya", "nagaland",
	"sikkim", "tripura", "arunachal pradesh", "mizoram",
}

var (
	idPattern      = regexp.MustCompile(`(?i)\b(?:college[\s_-]*)?ids?\s*[:#=]?\s*(\d{1,18}(?:\s*(?:,|&|\band\b)\s*\d{1,18})*)`)
	hashPattern    = regexp.MustCompile(`#(\d{2,18})\b`) // "#1" reads as a rank, not an id
	comparePattern = regexp.MustCompile(`(?i)\bcompare\s+(\d{1,18})\s+(?:and|with|vs\.?|&)\s+(\d{1,18})\b`)
	capPattern     = regexp.MustCompile(`(?i)\b(?:top|limit|first|best)\s+(\d{1,6})\b`)
	quotedPattern  = regexp.MustCompile(`["“]([^"”]{2,80})["”]`)
	digitsPattern  = regexp.MustCompile(`\d+`)
	wordPattern    = regexp.MustCompile(`[\p{L}][\p{L}\p{N}'&.-]*`)
)

var stopWords = toSet(
	"a", "an", "the", "and", "or", "of", "in", "on", "for", "to", "with", "about", "from", "by",
	"at", "is", "are", "was", "be", "me", "my", "i", "we", "our", "you", "your", "it", "its",
	"this", "that", "these", "those", "all", "any", "some", "please", "can", "could", "would",
	"should", "what", "which", "who", "how", "why", "where", "when", "near", "around", "vs",
)

var genericWords = toSet(
	"write", "create", "generate", "make", "give", "show", "list", "find", "get", "fetch", "need",
	"want", "article", "articles", "blog", "post", "page", "faq", "faqs", "content", "guide",
	"comparison", "compare", "overview", "details", "detail", "information", "info", "data",
	"college", "colleges", "university", "universities", "campus", "campuses", "education",
	"best", "top", "leading", "popular", "good", "limit", "first", "id", "ids", "india", "indian",
	"city", "state", "students", "student", "new", "latest",
)

// categoryRules maps domain tags to trigger words.
var categoryRules = []struct {
	tag      string
	triggers []string
}{
	{"engineering", []string{"engineering", "iit", "nit"}},
	{"medical", []string{"medical", "mbbs", "aiims"}},
	{"law", []string{"law", "nliu"}},
	{"management", []string{"management", "mba", "iim"}},
	{"ranking", []string{"ranking", "nirf"}},
	{"fees", []string{"fee", "cost", "tuition"}},
	{"admission", []string{"admission", "entrance"}},
}

// DefaultCategories is used when no category trigger is present.
var DefaultCategories = []string{"college", "education"}

// Extractor holds the cap policy and gazetteer.
type Extractor struct {
	DefaultCap int
	MaxCap     int
	Order      core.OrderKey

	cities []*regexp.Regexp
	states []*regexp.Regexp
}

// NewExtractor builds an extractor with the given cap policy. Non-positive
// values fall back to the package defaults.
func NewExtractor(defaultCap, maxCap int) *Extractor {
	if maxCap <= 0 {
		maxCap = MaxCap
	}
	if defaultCap <= 0 {
		defaultCap = DefaultCap
	}
	if defaultCap > maxCap {
		defaultCap = maxCap
	}
	return &Extractor{
		DefaultCap: defaultCap,
		MaxCap:     maxCap,
		Order:      core.OrderEstablishedDesc,
		cities:     compileNames(Cities),
		states:     compileNames(States),
	}
}

var defaultExtractor = NewExtractor(DefaultCap, MaxCap)

// Extract parses raw with the default cap policy.
func Extract(raw string) core.FilterSet {
	return defaultExtractor.Extract(raw)
}

// Extract derives a filter set from a free-text request. An explicit id wins;
// otherwise gazetteer matches set city and state; otherwise a keyword is
// taken from the remaining significant words. Empty or unrecognized input
// yields the fetch-all filter bounded by the default cap.
func (e *Extractor) Extract(raw string) core.FilterSet {
	text := normalize(raw)
	lower := strings.ToLower(text)

	f := core.FilterSet{
		Cap:        e.cap(text),
		Order:      e.Order,
		Categories: categories(lower),
	}

	if ids := explicitIDs(text); len(ids) == 1 {
		id := ids[0]
		f.ID = &id
		return f
	} else if len(ids) > 1 {
		f.IDs = ids
		f.Order = core.OrderID
		return f
	}

	f.City = firstMatch(e.cities, text)
	f.State = firstMatch(e.states, text)

	if q := quotedPattern.FindStringSubmatch(text); q != nil {
		f.Keyword = strings.TrimSpace(q[1])
	} else if f.City == "" && f.State == "" {
		f.Keyword = significantWord(text)
	}
	return f
}

func (e *Extractor) cap(text string) int {
	m := capPattern.FindStringSubmatch(text)
	if m == nil {
		return e.DefaultCap
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return e.DefaultCap
	}
	return max(1, min(n, e.MaxCap))
}

func normalize(raw string) string {
	s := strings.ToValidUTF8(raw, " ")
	if r := []rune(s); len(r) > maxQueryRunes {
		s = string(r[:maxQueryRunes])
	}
	return strings.TrimSpace(s)
}

func explicitIDs(text string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	add := func(s string) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 || seen[n] {
			return
		}
		seen[n] = true
		ids = append(ids, n)
	}

	for _, m := range idPattern.FindAllStringSubmatch(text, -1) {
		for _, d := range digitsPattern.FindAllString(m[1], -1) {
			add(d)
		}
	}
	for _, m := range hashPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range comparePattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
		add(m[2])
	}
	return ids
}

func compileNames(names []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(names))
	for i, n := range names {
		out[i] = regexp.MustCompile(`(?i)\b` + strings.ReplaceAll(regexp.QuoteMeta(n), " ", `\s+`) + `\b`)
	}
	return out
}

// firstMatch returns the title-cased name occurring earliest in text.
func firstMatch(patterns []*regexp.Regexp, text string) string {
	best, bestPos := "", -1
	for _, p := range patterns {
		loc := p.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestPos == -1 || loc[0] < bestPos {
			best, bestPos = text[loc[0]:loc[1]], loc[0]
		}
	}
	if best == "" {
		return ""
	}
	return titleCase(strings.Join(strings.Fields(best), " "))
}

func significantWord(text string) string {
	for _, w := range wordPattern.FindAllString(text, -1) {
		w = strings.Trim(strings.ToLower(w), "'.-&")
		if len([]rune(w)) < 3 || stopWords[w] || genericWords[w] {
			continue
		}
		return w
	}
	return ""
}

func categories(lower string) []string {
	words := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(lower, -1) {
		words[strings.Trim(w, "'.-&")] = true
	}

	var tags []string
	for _, rule := range categoryRules {
		for _, trig := range rule.triggers {
			if hasTrigger(words, trig) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	if len(tags) == 0 {
		return append([]string(nil), DefaultCategories...)
	}
	return tags
}

// hasTrigger matches a trigger as a word or a word prefix ("fees", "rankings").
func hasTrigger(words map[string]bool, trig string) bool {
	if words[trig] {
		return true
	}
	for w := range words {
		if strings.HasPrefix(w, trig) && len(w)-len(trig) <= 2 {
			return true
		}
	}
	return false
}

var lowerJoiners = toSet("and", "of", "the")

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if i > 0 && lowerJoiners[w] {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
