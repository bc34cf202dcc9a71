package collegedb

import (
	"context"

	"collegecontent/internal/core"
)

// SearchColleges returns active colleges whose name, city or state contains
// term, ordered by name. Only identity fields are populated.
func SearchColleges(ctx context.Context, q Querier, term string, limit int) ([]core.CollegeRecord, error) {
	sqlText, args, err := BuildSearch(q.View(), q.Dialect(), term, limit)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}

	out := make([]core.CollegeRecord, 0, len(rows))
	for _, r := range rows {
		d := &decoder{row: r.Map()}
		rec := core.CollegeRecord{
			ID:              d.integer(ColID),
			Name:            d.str(ColName),
			City:            d.str(ColCity),
			State:           d.str(ColState),
			EstablishedYear: d.intPtr(ColEstablished),
			Active:          d.flag(ColActive),
			Verified:        d.flag(ColVerified),
			Website:         d.strPtr(ColWebsite),
			Source:          core.SourceDatabase,
		}
		if d.err != nil {
			return nil, core.Wrap(core.KindSchemaMismatch, "collegedb.SearchColleges", d.err)
		}
		out = append(out, rec)
	}
	return out, nil
}
