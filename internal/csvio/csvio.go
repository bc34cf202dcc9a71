// Package csvio reads and writes the spreadsheet form of college records.
//
// The sheet carries one row per college with the columns
//
//	ID, Name, City, State, Active, Verified, Accreditations, Facilities, Website
//
// Accreditations and Facilities hold counts, not details. Import turns a
// count into numbered placeholder entries so the record keeps its shape;
// nothing else about them is known.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"collegecontent/internal/core"
)

// Columns is the export header, in order.
var Columns = []string{"ID", "Name", "City", "State", "Active", "Verified", "Accreditations", "Facilities", "Website"}

// FacilityCategories are cycled through when synthesizing facilities.
var FacilityCategories = []string{
	"Academic Spaces", "Laboratories", "Library", "Hostel Facilities",
	"Sports & Fitness", "IT Facilities", "Basic Services",
}

const (
	checkMark  = "✅"
	crossMark  = "❌"
	notAvail   = "N/A"
	dataSource = "CSV Import"

	// MaxPlaceholders caps the count a single Accreditations or Facilities
	// cell may carry.
	MaxPlaceholders = 1000
)

var truthy = map[string]bool{checkMark: true, "Yes": true, "yes": true, "True": true, "true": true, "1": true}

// Stats summarizes an imported sheet.
type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Verified int `json:"verified"`
	States   int `json:"states"`
}

// Import reads records from a sheet with a header row. ID and Name columns
// are required; other columns may be absent. A missing Active column means
// every row is active. Rows with an unparseable ID fail the import with the
// row number.
func Import(r io.Reader) ([]core.CollegeRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, core.Errorf(core.KindInputMalformed, "csvio.Import", "sheet is empty")
	}
	if err != nil {
		return nil, core.Wrap(core.KindInputMalformed, "csvio.Import", err)
	}
	cols := indexHeader(header)
	for _, req := range []string{"id", "name"} {
		if _, ok := cols[req]; !ok {
			return nil, core.Errorf(core.KindInputMalformed, "csvio.Import", "missing required column %q", req)
		}
	}

	var out []core.CollegeRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.Wrap(core.KindInputMalformed, "csvio.Import", err)
		}
		if blank(row) {
			continue
		}
		rec, err := parseRow(row, cols)
		if err != nil {
			return nil, core.Errorf(core.KindInputMalformed, "csvio.Import", "row %d: %v", line, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRow(row []string, cols map[string]int) (core.CollegeRecord, error) {
	get := func(name string) string {
		if i, ok := cols[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	id, err := strconv.ParseInt(strings.TrimSuffix(get("id"), ".0"), 10, 64)
	if err != nil {
		return core.CollegeRecord{}, fmt.Errorf("invalid ID %q", get("id"))
	}

	rec := core.CollegeRecord{
		ID:       id,
		Name:     fromNA(get("name")),
		City:     fromNA(get("city")),
		State:    fromNA(get("state")),
		Active:   true,
		Verified: truthy[get("verified")],
		Source:   core.SourceCSV,
	}
	if _, ok := cols["active"]; ok {
		rec.Active = truthy[get("active")]
	}
	if w := fromNA(get("website")); w != "" {
		rec.Website = &w
	}
	accreditations, err := count("Accreditations", get("accreditations"))
	if err != nil {
		return core.CollegeRecord{}, err
	}
	facilities, err := count("Facilities", get("facilities"))
	if err != nil {
		return core.CollegeRecord{}, err
	}
	rec.Accreditations = PlaceholderAccreditations(accreditations)
	rec.Infrastructure = PlaceholderFacilities(facilities)
	return rec, nil
}

// PlaceholderAccreditations returns n numbered accreditation entries, at
// most MaxPlaceholders.
func PlaceholderAccreditations(n int) []core.Accreditation {
	if n <= 0 {
		return nil
	}
	n = min(n, MaxPlaceholders)
	out := make([]core.Accreditation, n)
	for i := range out {
		k := i + 1
		out[i] = core.Accreditation{
			Body:     fmt.Sprintf("Accreditation #%d", k),
			Status:   "Available",
			Code:     fmt.Sprintf("acc_%d", k),
			PublicID: fmt.Sprintf("acc-%d", k),
		}
	}
	return out
}

// PlaceholderFacilities returns n numbered facilities, cycling through
// FacilityCategories. n is capped at MaxPlaceholders.
func PlaceholderFacilities(n int) []core.Facility {
	if n <= 0 {
		return nil
	}
	n = min(n, MaxPlaceholders)
	out := make([]core.Facility, n)
	for i := range out {
		k := i + 1
		out[i] = core.Facility{
			Name:       fmt.Sprintf("Facility #%d", k),
			Category:   FacilityCategories[i%len(FacilityCategories)],
			Summary:    fmt.Sprintf("Facility #%d - Description not available in CSV", k),
			DataSource: dataSource,
			PublicID:   fmt.Sprintf("infra-%d", k),
		}
	}
	return out
}

// Export writes records as a sheet. Sub-record lists are written as counts.
func Export(w io.Writer, records []core.CollegeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range records {
		website := notAvail
		if r.Website != nil && *r.Website != "" {
			website = *r.Website
		}
		row := []string{
			strconv.FormatInt(r.ID, 10),
			orNA(r.Name),
			orNA(r.City),
			orNA(r.State),
			mark(r.Active),
			mark(r.Verified),
			strconv.Itoa(len(r.Accreditations)),
			strconv.Itoa(len(r.Infrastructure)),
			website,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summarize counts active and verified rows and distinct states.
func Summarize(records []core.CollegeRecord) Stats {
	s := Stats{Total: len(records)}
	states := map[string]struct{}{}
	for _, r := range records {
		if r.Active {
			s.Active++
		}
		if r.Verified {
			s.Verified++
		}
		if r.State != "" {
			states[strings.ToLower(r.State)] = struct{}{}
		}
	}
	s.States = len(states)
	return s
}

// MissingColumns lists export columns absent from header, for diagnostics.
func MissingColumns(header []string) []string {
	cols := indexHeader(header)
	var out []string
	for _, c := range Columns {
		if _, ok := cols[strings.ToLower(c)]; !ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[h]; !dup {
			cols[h] = i
		}
	}
	return cols
}

// count parses a placeholder count. Text that is not a number, or is
// negative, counts as zero; a number above MaxPlaceholders is an error.
func count(column, s string) (int, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) || math.IsNaN(f) || f < 0 {
		return 0, nil
	}
	if f > MaxPlaceholders {
		return 0, fmt.Errorf("%s count %q exceeds %d", column, s, MaxPlaceholders)
	}
	return int(f), nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func mark(b bool) string {
	if b {
		return checkMark
	}
	return crossMark
}

// fromNA undoes orNA.
func fromNA(s string) string {
	if s == notAvail {
		return ""
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return notAvail
	}
	return s
}
