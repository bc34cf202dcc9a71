// Package datafetch runs the data fetch stage: one bounded read query per
// filter set, decoded into college records with a rollup summary.
package datafetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collegecontent/internal/collegedb"
	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

// Stage fetches college records from the data store.
type Stage struct {
	store collegedb.Querier
	now   func() time.Time
}

// New creates a fetch stage over store.
func New(store collegedb.Querier) *Stage {
	return &Stage{store: store, now: time.Now}
}

// Fetch issues exactly one read query for f. When nothing matches it
// returns an empty result together with a NoResults error so the caller can
// treat the empty set as a valid state.
func (s *Stage) Fetch(ctx context.Context, f core.FilterSet) (core.FetchResult, error) {
	const op = "datafetch.Fetch"

	result := core.FetchResult{
		Filters:   f,
		Source:    core.SourceDatabase,
		FetchedAt: s.now().UTC(),
	}
	if s.store == nil {
		return result, core.Errorf(core.KindDataUnavailable, op, "no data store configured")
	}

	q, args, err := collegedb.BuildFetch(s.store.View(), s.store.Dialect(), f)
	if err != nil {
		return result, err
	}

	start := time.Now()
	rows, err := s.store.Query(ctx, q, args...)
	if err != nil {
		return result, err
	}
	records, err := collegedb.RecordsFromRows(rows)
	if err != nil {
		return result, err
	}
	records = activeOnly(records)

	result.Records = records
	result.Summary = core.Summarize(records)

	logger.Info("Fetched college records",
		"driver", f.Driver(),
		"count", len(records),
		"cap", f.Cap,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if len(records) == 0 {
		return result, core.Errorf(core.KindNoResults, op, "no active colleges match %s", describe(f))
	}
	return result, nil
}

// FromRecords wraps records that arrived through the CSV path. Inactive rows
// are dropped; an empty set carries a NoResults error like Fetch.
func (s *Stage) FromRecords(records []core.CollegeRecord, source string) (core.FetchResult, error) {
	records = activeOnly(records)
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	result := core.FetchResult{
		Filters:   core.FilterSet{IDs: ids, Cap: len(ids), Order: core.OrderID},
		Records:   records,
		Summary:   core.Summarize(records),
		Source:    source,
		FetchedAt: s.now().UTC(),
	}
	if len(records) == 0 {
		return result, core.Errorf(core.KindNoResults, "datafetch.FromRecords", "no active colleges in %s input", source)
	}
	return result, nil
}

// Enrich replaces every record that the store also knows with the store's
// version. Records are swapped wholesale and never merged field by field.
// Order and records unknown to the store are kept.
func (s *Stage) Enrich(ctx context.Context, result core.FetchResult) (core.FetchResult, error) {
	ids := result.RecordIDs()
	if len(ids) == 0 {
		return result, nil
	}
	fresh, err := s.Fetch(ctx, core.FilterSet{IDs: ids, Cap: len(ids), Order: core.OrderID})
	if err != nil && !errors.Is(err, core.ErrNoResults) {
		return result, err
	}

	byID := make(map[int64]core.CollegeRecord, len(fresh.Records))
	for _, r := range fresh.Records {
		byID[r.ID] = r
	}

	out := result
	out.Records = make([]core.CollegeRecord, len(result.Records))
	replaced := 0
	for i, r := range result.Records {
		if f, ok := byID[r.ID]; ok {
			out.Records[i] = f
			replaced++
			continue
		}
		out.Records[i] = r
	}
	out.Summary = core.Summarize(out.Records)

	logger.Info("Enriched college records from store", "records", len(out.Records), "replaced", replaced)
	return out, nil
}

func activeOnly(records []core.CollegeRecord) []core.CollegeRecord {
	out := records[:0:0]
	for _, r := range records {
		if !r.Active {
			logger.Warn("Dropping inactive college record", "college_id", r.ID)
			continue
		}
		out = append(out, r)
	}
	return out
}

func describe(f core.FilterSet) string {
	switch f.Driver() {
	case core.DriverID:
		return fmt.Sprintf("id %d", *f.ID)
	case core.DriverIDs:
		return fmt.Sprintf("ids %v", f.IDs)
	}
	var parts []string
	if f.City != "" {
		parts = append(parts, "city "+f.City)
	}
	if f.State != "" {
		parts = append(parts, "state "+f.State)
	}
	if f.Keyword != "" {
		parts = append(parts, fmt.Sprintf("keyword %q", f.Keyword))
	}
	if len(parts) == 0 {
		return "the request"
	}
	return strings.Join(parts, ", ")
}

// SummaryText renders the short data summary used in topic and prompt
// generation requests.
func SummaryText(result core.FetchResult) string {
	n := len(result.Records)
	if n == 0 {
		return "No college data available. Generate general topics."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d college(s)\n", n)
	for i, r := range result.Records {
		if i == 3 {
			break
		}
		fmt.Fprintf(&sb, "- %s in %s, %s\n", r.Name, valueOr(r.City, "Unknown city"), valueOr(r.State, "Unknown state"))
	}
	if n > 3 {
		fmt.Fprintf(&sb, "... and %d more\n", n-3)
	}
	fmt.Fprintf(&sb, "States covered: %d, cities covered: %d, verified: %d", len(result.Summary.States), len(result.Summary.Cities), result.Summary.Verified)
	return sb.String()
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
