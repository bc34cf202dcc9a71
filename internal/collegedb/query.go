package collegedb

import (
	"sort"
	"strings"

	"collegecontent/internal/core"

	"github.com/lib/pq"
)

// Column names of the flattened view.
const (
	ColID             = "college_id"
	ColName           = "name"
	ColCity           = "city"
	ColState          = "state"
	ColDistrict       = "district"
	ColEstablished    = "year_of_established"
	ColActive         = "college_is_active"
	ColVerified       = "is_college_verified"
	ColWebsite        = "website"
	ColFees           = "fees"
	ColFacultyRatio   = "faculty_ratio"
	ColAddress        = "address"
	ColAlternateNames = "alternative_names"
	ColRankings       = "rankings"
	ColAccreditations = "accreditations"
	ColDegrees        = "degrees"
	ColInfrastructure = "infrastructure"
	ColNearbyPlaces   = "nearby_places"
	ColUtilities      = "utilities"
	ColPlacements     = "placements"
	ColAlumni         = "alumni"
	ColContactInfo    = "contact_info"
)

// DefaultCap and MaxCap bound the number of rows a fetch may return.
const (
	DefaultCap  = 50
	MaxCap      = 100
	SearchLimit = 20
)

// RequiredColumns must be present in every fetched row.
var RequiredColumns = []string{
	ColID, ColName, ColCity, ColState, ColEstablished, ColActive, ColVerified,
	ColWebsite, ColFees, ColFacultyRatio,
	ColRankings, ColAccreditations, ColDegrees, ColInfrastructure,
}

// OptionalColumns are decoded when the view provides them.
var OptionalColumns = []string{
	ColDistrict, ColAddress, ColAlternateNames,
	ColNearbyPlaces, ColUtilities, ColPlacements, ColAlumni, ColContactInfo,
}

// FieldGroups names the projections a caller may request. Required columns
// are always selected on top of the group's columns.
var FieldGroups = map[string][]string{
	"basic":          {ColDistrict, ColAlternateNames},
	"rankings":       {ColRankings, ColAccreditations},
	"academics":      {ColDegrees, ColFacultyRatio, ColFees},
	"infrastructure": {ColInfrastructure, ColUtilities},
	"outcomes":       {ColPlacements, ColAlumni},
	"contact":        {ColAddress, ColContactInfo, ColNearbyPlaces, ColWebsite},
}

// FieldGroupNames returns the group keys in sorted order.
func FieldGroupNames() []string {
	names := make([]string, 0, len(FieldGroups))
	for k := range FieldGroups {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var orderClauses = map[core.OrderKey]string{
	core.OrderEstablishedDesc: ColEstablished + " DESC NULLS LAST, " + ColID + " ASC",
	core.OrderName:            ColName + " ASC, " + ColID + " ASC",
	core.OrderID:              ColID + " ASC",
}

// builder accumulates a WHERE clause and its bound arguments.
type builder struct {
	dialect Dialect
	where   []string
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *builder) and(clause string) {
	b.where = append(b.where, clause)
}

// BuildFetch builds the single read query for a filter set. Every filter
// value is bound; identifiers come only from fixed allow-lists. The active
// predicate is always present.
func BuildFetch(view string, d Dialect, f core.FilterSet) (string, []any, error) {
	if !validIdentifier(view) {
		return "", nil, core.Errorf(core.KindInvalidArgument, "collegedb.BuildFetch", "invalid view name %q", view)
	}
	cols, err := projection(f.Fields)
	if err != nil {
		return "", nil, err
	}

	b := &builder{dialect: d}
	b.and(ColActive + " = true")

	limit := clampCap(f.Cap)
	order := f.Order
	switch f.Driver() {
	case core.DriverID:
		b.and(ColID + " = " + b.bind(*f.ID))
		limit = 1
	case core.DriverIDs:
		ids := dedupeIDs(f.IDs)
		if d == DialectPostgres {
			b.and(ColID + " = ANY(" + b.bind(pq.Array(ids)) + ")")
		} else {
			marks := make([]string, len(ids))
			for i, id := range ids {
				marks[i] = b.bind(id)
			}
			b.and(ColID + " IN (" + strings.Join(marks, ", ") + ")")
		}
		if order == "" {
			order = core.OrderID
		}
		if limit < len(ids) {
			limit = min(len(ids), MaxCap)
		}
	default:
		if f.City != "" {
			b.and("LOWER(" + ColCity + ") = LOWER(" + b.bind(f.City) + ")")
		}
		if f.State != "" {
			b.and("LOWER(" + ColState + ") = LOWER(" + b.bind(f.State) + ")")
		}
		if f.Keyword != "" {
			b.and("LOWER(" + ColName + ") LIKE " + b.bind("%"+escapeLike(strings.ToLower(f.Keyword))+"%") + ` ESCAPE '\'`)
		}
	}

	orderBy, ok := orderClauses[order]
	if !ok {
		if order != "" {
			return "", nil, core.Errorf(core.KindInvalidArgument, "collegedb.BuildFetch", "unknown order %q", order)
		}
		orderBy = orderClauses[core.OrderEstablishedDesc]
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(view)
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(b.where, " AND "))
	sb.WriteString(" ORDER BY ")
	sb.WriteString(orderBy)
	sb.WriteString(" LIMIT ")
	sb.WriteString(b.bind(limit))

	return sb.String(), b.args, nil
}

// BuildSearch builds the name/city/state lookup used by the colleges search.
func BuildSearch(view string, d Dialect, term string, limit int) (string, []any, error) {
	if !validIdentifier(view) {
		return "", nil, core.Errorf(core.KindInvalidArgument, "collegedb.BuildSearch", "invalid view name %q", view)
	}
	if limit <= 0 || limit > SearchLimit {
		limit = SearchLimit
	}

	b := &builder{dialect: d}
	b.and(ColActive + " = true")
	if term = strings.TrimSpace(term); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		var ors []string
		for _, col := range []string{ColName, ColCity, ColState} {
			ors = append(ors, "LOWER("+col+") LIKE "+b.bind(pattern)+` ESCAPE '\'`)
		}
		b.and("(" + strings.Join(ors, " OR ") + ")")
	}

	q := "SELECT " + strings.Join([]string{ColID, ColName, ColCity, ColState, ColEstablished, ColActive, ColVerified, ColWebsite}, ", ") +
		" FROM " + view +
		" WHERE " + strings.Join(b.where, " AND ") +
		" ORDER BY " + orderClauses[core.OrderName] +
		" LIMIT " + b.bind(limit)
	return q, b.args, nil
}

func projection(groups []string) (string, error) {
	if len(groups) == 0 {
		return "*", nil
	}
	seen := make(map[string]bool)
	var cols []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, c := range RequiredColumns {
		add(c)
	}
	for _, g := range groups {
		extra, ok := FieldGroups[strings.ToLower(strings.TrimSpace(g))]
		if !ok {
			return "", core.Errorf(core.KindInvalidArgument, "collegedb.BuildFetch", "unknown field group %q", g)
		}
		for _, c := range extra {
			add(c)
		}
	}
	return strings.Join(cols, ", "), nil
}

func clampCap(n int) int {
	switch {
	case n <= 0:
		return DefaultCap
	case n > MaxCap:
		return MaxCap
	default:
		return n
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
