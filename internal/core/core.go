package core

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// LengthBand is the target word range for a content type.
type LengthBand struct {
	MinWords int `json:"min_words" yaml:"min_words"`
	MaxWords int `json:"max_words" yaml:"max_words"`
}

// String renders the band the way it is shown to the model, e.g. "1200-1800 words".
func (b LengthBand) String() string {
	switch {
	case b.MinWords > 0 && b.MaxWords > 0:
		return strconv.Itoa(b.MinWords) + "-" + strconv.Itoa(b.MaxWords) + " words"
	case b.MaxWords > 0:
		return "up to " + strconv.Itoa(b.MaxWords) + " words"
	case b.MinWords > 0:
		return "at least " + strconv.Itoa(b.MinWords) + " words"
	default:
		return "flexible length"
	}
}

// ContentType describes a document genre. Entries come from the embedded
// catalog and are never mutated after load.
type ContentType struct {
	ID             string            `json:"id" yaml:"id"`                           // Catalog identifier, e.g. "blog_post"
	Name           string            `json:"name" yaml:"name"`                       // Display name
	Description    string            `json:"description" yaml:"description"`         // One-line description
	Sections       []string          `json:"sections" yaml:"sections"`               // Typical section names, in order
	Length         LengthBand        `json:"length" yaml:"length"`                   // Target length band
	Tone           string            `json:"tone" yaml:"tone"`                       // Tone label
	DefaultTopics  []TopicCandidate  `json:"default_topics" yaml:"default_topics"`   // Padding list for the topic stage
	DefaultPrompts []PromptVariation `json:"default_prompts" yaml:"default_prompts"` // Padding list for the prompt stage
}

// PromptPreset is a canned content prompt with a {topic} placeholder.
type PromptPreset struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Template string `json:"template" yaml:"template"`
}

// Render substitutes the topic into the preset template.
func (p PromptPreset) Render(topic string) string {
	return strings.ReplaceAll(p.Template, "{topic}", topic)
}

// OrderKey selects the ordering of fetched records. Only values defined here
// ever reach query text.
type OrderKey string

const (
	OrderEstablishedDesc OrderKey = "established_desc" // Establishment year, newest first, nulls last
	OrderName            OrderKey = "name"
	OrderID              OrderKey = "id"
)

// FilterSet is the structured form of a free-text content request.
type FilterSet struct {
	ID         *int64   `json:"id,omitempty"`         // Exact college id; wins over every other field
	IDs        []int64  `json:"ids,omitempty"`        // Several ids for comparison content
	City       string   `json:"city,omitempty"`       // Case-insensitive equality
	State      string   `json:"state,omitempty"`      // Case-insensitive equality
	Keyword    string   `json:"keyword,omitempty"`    // Case-insensitive substring of the name
	Cap        int      `json:"cap"`                  // Result cap
	Order      OrderKey `json:"order"`                // Ordering key
	Categories []string `json:"categories,omitempty"` // Domain tags, informational only
	Fields     []string `json:"fields,omitempty"`     // Optional field-group projection
}

// Driver names what primarily selects rows for a FilterSet.
type Driver string

const (
	DriverID      Driver = "id"
	DriverIDs     Driver = "ids"
	DriverCity    Driver = "city"
	DriverState   Driver = "state"
	DriverKeyword Driver = "keyword"
	DriverAll     Driver = "all"
)

// Driver reports the primary driver. An explicit id takes precedence over
// everything else.
func (f FilterSet) Driver() Driver {
	switch {
	case f.ID != nil:
		return DriverID
	case len(f.IDs) > 0:
		return DriverIDs
	case f.City != "":
		return DriverCity
	case f.State != "":
		return DriverState
	case f.Keyword != "":
		return DriverKeyword
	default:
		return DriverAll
	}
}

// Ranking is one ranking entry of a college.
type Ranking struct {
	Body  string         `json:"body,omitempty"`
	Value *string        `json:"value,omitempty"`
	Year  *int           `json:"year,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// Accreditation is one accreditation entry of a college.
type Accreditation struct {
	Grade    *string        `json:"grade,omitempty"`
	Body     string         `json:"body,omitempty"`
	Validity *string        `json:"validity,omitempty"`
	Status   string         `json:"status,omitempty"`
	Code     string         `json:"code,omitempty"`
	PublicID string         `json:"public_id,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Degree is one degree programme offered by a college.
type Degree struct {
	Name     string         `json:"name,omitempty"`
	Duration *string        `json:"duration,omitempty"`
	Seats    *int           `json:"seats,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Facility is one infrastructure entry of a college.
type Facility struct {
	Name       string         `json:"facility_name,omitempty"`
	Category   string         `json:"category,omitempty"`
	Summary    string         `json:"summary,omitempty"`
	DataSource string         `json:"data_source,omitempty"`
	PublicID   string         `json:"public_id,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Record sources.
const (
	SourceDatabase = "database"
	SourceCSV      = "csv"
)

// CollegeRecord is one row of the flattened college view. Absent database
// values stay nil; nothing is invented to fill them.
type CollegeRecord struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	City             string          `json:"city"`
	State            string          `json:"state"`
	District         *string         `json:"district,omitempty"`
	EstablishedYear  *int            `json:"established_year,omitempty"`
	Active           bool            `json:"active"`
	Verified         bool            `json:"verified"`
	Website          *string         `json:"website,omitempty"`
	Fees             *string         `json:"fees,omitempty"`
	FacultyRatio     *string         `json:"faculty_ratio,omitempty"`
	Address          *string         `json:"address,omitempty"`
	AlternativeNames *string         `json:"alternative_names,omitempty"`
	Rankings         []Ranking       `json:"rankings,omitempty"`
	Accreditations   []Accreditation `json:"accreditations,omitempty"`
	Degrees          []Degree        `json:"degrees,omitempty"`
	Infrastructure   []Facility      `json:"infrastructure,omitempty"`
	NearbyPlaces     json.RawMessage `json:"nearby_places,omitempty"`
	Utilities        json.RawMessage `json:"utilities,omitempty"`
	Placements       json.RawMessage `json:"placements,omitempty"`
	Alumni           json.RawMessage `json:"alumni,omitempty"`
	ContactInfo      json.RawMessage `json:"contact_info,omitempty"`
	Source           string          `json:"source"`
}

// FetchSummary is the rollup returned with every fetch.
type FetchSummary struct {
	Count    int      `json:"count"`
	States   []string `json:"states"`
	Cities   []string `json:"cities"`
	Verified int      `json:"verified"`
}

// Summarize builds the rollup for a set of records.
func Summarize(records []CollegeRecord) FetchSummary {
	states := map[string]struct{}{}
	cities := map[string]struct{}{}
	s := FetchSummary{Count: len(records)}
	for _, r := range records {
		if r.State != "" {
			states[r.State] = struct{}{}
		}
		if r.City != "" {
			cities[r.City] = struct{}{}
		}
		if r.Verified {
			s.Verified++
		}
	}
	s.States = sortedKeys(states)
	s.Cities = sortedKeys(cities)
	return s
}

// FetchResult is the DataFetched artifact.
type FetchResult struct {
	Filters   FilterSet       `json:"filters"`
	Records   []CollegeRecord `json:"records"`
	Summary   FetchSummary    `json:"summary"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Empty reports whether the fetch matched nothing.
func (r FetchResult) Empty() bool { return len(r.Records) == 0 }

// RecordIDs returns the ids of the fetched records in order.
func (r FetchResult) RecordIDs() []int64 {
	ids := make([]int64, 0, len(r.Records))
	for _, rec := range r.Records {
		ids = append(ids, rec.ID)
	}
	return ids
}

// TopicCandidate is one framing proposed by the topic stage.
type TopicCandidate struct {
	Topic string `json:"topic" yaml:"topic"`
	Focus string `json:"focus" yaml:"focus"`
}

// PromptVariation is one framing proposed by the prompt stage.
type PromptVariation struct {
	Title       string `json:"title" yaml:"title"`
	Angle       string `json:"angle" yaml:"angle"`
	Description string `json:"description" yaml:"description"`
}

// PromptDefinition is the PromptDefined artifact. Variation is set when the
// prompt came from a generated variation rather than free text.
type PromptDefinition struct {
	Text      string           `json:"text"`
	Variation *PromptVariation `json:"variation,omitempty"`
	Preset    string           `json:"preset,omitempty"`
}

// Selection is the subject handed to the outline stage.
type Selection struct {
	Title       string `json:"title"`
	Angle       string `json:"angle"`
	Description string `json:"description"`
}

// NewSelection combines the selected topic (optional) and prompt into the
// outline stage's subject.
func NewSelection(topic *TopicCandidate, prompt PromptDefinition) Selection {
	var sel Selection
	if prompt.Variation != nil {
		sel = Selection{
			Title:       prompt.Variation.Title,
			Angle:       prompt.Variation.Angle,
			Description: prompt.Variation.Description,
		}
	}
	if topic != nil {
		sel.Title = topic.Topic
		if sel.Angle == "" {
			sel.Angle = topic.Focus
		}
	}
	if text := strings.TrimSpace(prompt.Text); text != "" {
		if sel.Description != "" {
			sel.Description += "\n\n"
		}
		sel.Description += text
	}
	if sel.Title == "" {
		sel.Title = firstLine(prompt.Text)
	}
	return sel
}

// OutlineSection is one top-level section of an outline.
type OutlineSection struct {
	Heading     string           `json:"heading"`
	Points      []string         `json:"points,omitempty"`
	Subsections []OutlineSection `json:"subsections,omitempty"`
}

// ContentOutline is the outline artifact.
type ContentOutline struct {
	Title       string           `json:"title"`
	ContentType string           `json:"content_type"`
	Sections    []OutlineSection `json:"sections"`
	Raw         string           `json:"raw"` // Model text as returned, kept for display
}

// Text renders the outline in the markdown form passed back to the model.
func (o ContentOutline) Text() string {
	var b strings.Builder
	for i, s := range o.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## " + s.Heading + "\n")
		for _, p := range s.Points {
			b.WriteString("- " + p + "\n")
		}
		for _, sub := range s.Subsections {
			b.WriteString("### " + sub.Heading + "\n")
			for _, p := range sub.Points {
				b.WriteString("- " + p + "\n")
			}
		}
	}
	return b.String()
}

// SEOMetadata is produced by the SEO enhancement pass.
type SEOMetadata struct {
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	Keywords        []string `json:"keywords,omitempty"`
}

// FinalContent is the ContentGenerated artifact.
type FinalContent struct {
	ID           string       `json:"id"`
	Markdown     string       `json:"markdown"`
	OutlineTitle string       `json:"outline_title"`
	ContentType  string       `json:"content_type"`
	RecordIDs    []int64      `json:"record_ids"` // Data snapshot the text was written from
	Provider     string       `json:"provider"`
	Model        string       `json:"model"`
	GeneratedAt  time.Time    `json:"generated_at"`
	Edited       bool         `json:"edited"`
	SEO          *SEOMetadata `json:"seo,omitempty"`
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
