package collegedb

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"collegecontent/internal/core"
)

// Key aliases seen in the view's JSON sub-records. Anything not listed is
// kept in the sub-record's Extra map.
var (
	rankingBody  = []string{"body", "ranking_body", "ranking_agency", "agency", "source", "name"}
	rankingValue = []string{"value", "rank", "ranking", "position", "score"}
	rankingYear  = []string{"year", "ranking_year"}

	accGrade    = []string{"grade", "accreditation_grade"}
	accBody     = []string{"body", "accreditation_body", "agency", "name"}
	accValidity = []string{"validity", "valid_until", "valid_till", "validity_date"}
	accStatus   = []string{"status"}
	accCode     = []string{"code"}
	accPublicID = []string{"public_id"}

	degreeName     = []string{"name", "degree_name", "degree", "program"}
	degreeDuration = []string{"duration", "course_duration"}
	degreeSeats    = []string{"seats", "intake", "total_seats"}

	facilityName     = []string{"facility_name", "name"}
	facilityCategory = []string{"category", "facility_category"}
	facilitySummary  = []string{"summary", "description"}
	facilitySource   = []string{"data_source"}
	facilityPublicID = []string{"public_id"}
)

// RecordsFromRows decodes rows into college records.
func RecordsFromRows(rows []Row) ([]core.CollegeRecord, error) {
	out := make([]core.CollegeRecord, 0, len(rows))
	for i, r := range rows {
		rec, err := RecordFromRow(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// RecordFromRow decodes one row. A missing required column or a value of
// the wrong shape is a SchemaMismatch; a NULL value stays absent.
func RecordFromRow(r Row) (core.CollegeRecord, error) {
	const op = "collegedb.RecordFromRow"

	for _, col := range RequiredColumns {
		if _, ok := r.Get(col); !ok {
			return core.CollegeRecord{}, core.Errorf(core.KindSchemaMismatch, op, "column %q missing from row", col)
		}
	}

	m := r.Map()
	d := &decoder{row: m}

	rec := core.CollegeRecord{
		ID:               d.integer(ColID),
		Name:             d.str(ColName),
		City:             d.str(ColCity),
		State:            d.str(ColState),
		District:         d.strPtr(ColDistrict),
		EstablishedYear:  d.intPtr(ColEstablished),
		Active:           d.flag(ColActive),
		Verified:         d.flag(ColVerified),
		Website:          d.strPtr(ColWebsite),
		Fees:             d.strPtr(ColFees),
		FacultyRatio:     d.strPtr(ColFacultyRatio),
		Address:          d.strPtr(ColAddress),
		AlternativeNames: d.strPtr(ColAlternateNames),
		NearbyPlaces:     d.raw(ColNearbyPlaces),
		Utilities:        d.raw(ColUtilities),
		Placements:       d.raw(ColPlacements),
		Alumni:           d.raw(ColAlumni),
		ContactInfo:      d.raw(ColContactInfo),
		Source:           core.SourceDatabase,
	}

	for _, item := range d.list(ColRankings) {
		rec.Rankings = append(rec.Rankings, core.Ranking{
			Body:  takeString(item, rankingBody),
			Value: takeStringPtr(item, rankingValue),
			Year:  takeIntPtr(item, rankingYear),
			Extra: extra(item),
		})
	}
	for _, item := range d.list(ColAccreditations) {
		rec.Accreditations = append(rec.Accreditations, core.Accreditation{
			Grade:    takeStringPtr(item, accGrade),
			Body:     takeString(item, accBody),
			Validity: takeStringPtr(item, accValidity),
			Status:   takeString(item, accStatus),
			Code:     takeString(item, accCode),
			PublicID: takeString(item, accPublicID),
			Extra:    extra(item),
		})
	}
	for _, item := range d.list(ColDegrees) {
		rec.Degrees = append(rec.Degrees, core.Degree{
			Name:     takeString(item, degreeName),
			Duration: takeStringPtr(item, degreeDuration),
			Seats:    takeIntPtr(item, degreeSeats),
			Extra:    extra(item),
		})
	}
	for _, item := range d.list(ColInfrastructure) {
		rec.Infrastructure = append(rec.Infrastructure, core.Facility{
			Name:       takeString(item, facilityName),
			Category:   takeString(item, facilityCategory),
			Summary:    takeString(item, facilitySummary),
			DataSource: takeString(item, facilitySource),
			PublicID:   takeString(item, facilityPublicID),
			Extra:      extra(item),
		})
	}

	if d.err != nil {
		return core.CollegeRecord{}, core.Wrap(core.KindSchemaMismatch, op, d.err)
	}
	return rec, nil
}

// decoder converts driver values, remembering the first failure.
type decoder struct {
	row map[string]any
	err error
}

func (d *decoder) fail(col string, v any, want string) {
	if d.err == nil {
		d.err = fmt.Errorf("column %q: cannot use %T as %s", col, v, want)
	}
}

func (d *decoder) integer(col string) int64 {
	v := d.row[col]
	n, ok := toInt64(v)
	if !ok {
		d.fail(col, v, "integer")
	}
	return n
}

func (d *decoder) intPtr(col string) *int {
	v, present := d.row[col]
	if !present || v == nil {
		return nil
	}
	n, ok := toInt64(v)
	if !ok {
		d.fail(col, v, "integer")
		return nil
	}
	i := int(n)
	return &i
}

func (d *decoder) str(col string) string {
	if p := d.strPtr(col); p != nil {
		return *p
	}
	return ""
}

func (d *decoder) strPtr(col string) *string {
	v, present := d.row[col]
	if !present || v == nil {
		return nil
	}
	s, ok := toString(v)
	if !ok {
		d.fail(col, v, "text")
		return nil
	}
	return &s
}

func (d *decoder) flag(col string) bool {
	v := d.row[col]
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "t", "true", "1", "yes", "y":
			return true
		case "f", "false", "0", "no", "n", "":
			return false
		}
	}
	d.fail(col, v, "boolean")
	return false
}

func (d *decoder) raw(col string) json.RawMessage {
	v, present := d.row[col]
	if !present || v == nil {
		return nil
	}
	var b []byte
	switch t := v.(type) {
	case string:
		b = []byte(t)
	case []byte:
		b = t
	default:
		enc, err := json.Marshal(t)
		if err != nil {
			d.fail(col, v, "json")
			return nil
		}
		b = enc
	}
	if len(strings.TrimSpace(string(b))) == 0 || string(b) == "null" {
		return nil
	}
	if !json.Valid(b) {
		d.fail(col, v, "json")
		return nil
	}
	return json.RawMessage(b)
}

// list decodes a JSON list column into generic objects. A single object is
// treated as a one-element list.
func (d *decoder) list(col string) []map[string]any {
	raw := d.raw(col)
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			d.fail(col, trimmed, "json object")
			return nil
		}
		return []map[string]any{obj}
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		d.fail(col, trimmed, "json list")
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		switch t := it.(type) {
		case map[string]any:
			out = append(out, t)
		case nil:
		default:
			// Bare scalars become a named entry.
			s, _ := toString(t)
			out = append(out, map[string]any{"name": s})
		}
	}
	return out
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case int:
		return int64(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.Format("2006-01-02"), true
	}
	return "", false
}

// take removes and returns the first present alias from item.
func take(item map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := item[k]; ok {
			delete(item, k)
			if v == nil {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func takeString(item map[string]any, keys []string) string {
	if p := takeStringPtr(item, keys); p != nil {
		return *p
	}
	return ""
}

func takeStringPtr(item map[string]any, keys []string) *string {
	v, ok := take(item, keys)
	if !ok {
		return nil
	}
	s, ok := toString(v)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		s = string(b)
	}
	return &s
}

func takeIntPtr(item map[string]any, keys []string) *int {
	v, ok := take(item, keys)
	if !ok {
		return nil
	}
	n, ok := toInt64(v)
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}

func extra(item map[string]any) map[string]any {
	if len(item) == 0 {
		return nil
	}
	return item
}
