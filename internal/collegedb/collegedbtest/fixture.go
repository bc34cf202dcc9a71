// Package collegedbtest builds SQLite-backed college stores for tests.
package collegedbtest

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"collegecontent/internal/collegedb"
	"collegecontent/internal/core"
)

// Schema is the SQLite rendition of the flattened college view.
const Schema = `CREATE TABLE %s (
	college_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	city TEXT,
	state TEXT,
	district TEXT,
	year_of_established INTEGER,
	college_is_active BOOLEAN NOT NULL DEFAULT 1,
	is_college_verified BOOLEAN NOT NULL DEFAULT 0,
	website TEXT,
	fees TEXT,
	faculty_ratio TEXT,
	address TEXT,
	alternative_names TEXT,
	rankings TEXT,
	accreditations TEXT,
	degrees TEXT,
	infrastructure TEXT,
	nearby_places TEXT,
	utilities TEXT,
	placements TEXT,
	alumni TEXT,
	contact_info TEXT
)`

// Open returns an empty SQLite store in a temp dir, closed on cleanup.
func Open(t testing.TB) *collegedb.Store {
	t.Helper()
	store, err := collegedb.Open(context.Background(), collegedb.Options{
		Driver:   "sqlite3",
		DSN:      filepath.Join(t.TempDir(), "colleges.db"),
		MinConns: 1,
		MaxConns: 4,
	})
	if err != nil {
		t.Fatalf("Failed to open fixture store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewStore returns a store whose view holds records.
func NewStore(t testing.TB, records ...core.CollegeRecord) *collegedb.Store {
	t.Helper()
	store := Open(t)
	Exec(t, store, fmt.Sprintf(Schema, store.View()))
	Insert(t, store, records...)
	return store
}

// Exec runs a statement against the fixture store.
func Exec(t testing.TB, store *collegedb.Store, stmt string, args ...any) {
	t.Helper()
	if _, err := store.DB().ExecContext(context.Background(), stmt, args...); err != nil {
		t.Fatalf("Fixture statement failed: %v\n%s", err, stmt)
	}
}

// Insert adds records to the view.
func Insert(t testing.TB, store *collegedb.Store, records ...core.CollegeRecord) {
	t.Helper()
	stmt := fmt.Sprintf(`INSERT INTO %s (
		college_id, name, city, state, district, year_of_established,
		college_is_active, is_college_verified, website, fees, faculty_ratio,
		address, alternative_names, rankings, accreditations, degrees, infrastructure,
		nearby_places, utilities, placements, alumni, contact_info
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, store.View())

	for _, r := range records {
		Exec(t, store, stmt,
			r.ID, r.Name, r.City, r.State, r.District, r.EstablishedYear,
			r.Active, r.Verified, r.Website, r.Fees, r.FacultyRatio,
			r.Address, r.AlternativeNames,
			list(t, r.Rankings), list(t, r.Accreditations), list(t, r.Degrees), list(t, r.Infrastructure),
			raw(r.NearbyPlaces), raw(r.Utilities), raw(r.Placements), raw(r.Alumni), raw(r.ContactInfo),
		)
	}
}

// College returns a minimal active record.
func College(id int64, name, city, state string, year int) core.CollegeRecord {
	y := year
	return core.CollegeRecord{
		ID:              id,
		Name:            name,
		City:            city,
		State:           state,
		EstablishedYear: &y,
		Active:          true,
	}
}

func list[T any](t testing.TB, items []T) any {
	if len(items) == 0 {
		return "[]"
	}
	b, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("Failed to encode fixture list: %v", err)
	}
	return string(b)
}

func raw(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return string(m)
}
