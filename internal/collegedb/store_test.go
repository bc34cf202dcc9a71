package collegedb_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"collegecontent/internal/collegedb"
	"collegecontent/internal/collegedb/collegedbtest"
	"collegecontent/internal/core"
)

func mumbaiFixture(t *testing.T) *collegedb.Store {
	inactive := collegedbtest.College(4, "Closed College of Arts", "Mumbai", "Maharashtra", 1990)
	inactive.Active = false
	noYear := collegedbtest.College(3, "Mumbai Institute of Design", "mumbai", "Maharashtra", 0)
	noYear.EstablishedYear = nil

	return collegedbtest.NewStore(t,
		collegedbtest.College(1, "Indian Institute of Technology Bombay", "Mumbai", "Maharashtra", 1958),
		collegedbtest.College(2, "Veermata Jijabai Technological Institute", "Mumbai", "Maharashtra", 1887),
		noYear,
		inactive,
		collegedbtest.College(5, "College of Engineering Pune", "Pune", "Maharashtra", 1854),
	)
}

func TestStoreQuery(t *testing.T) {
	store := mumbaiFixture(t)
	ctx := context.Background()

	q, args, err := collegedb.BuildFetch(store.View(), store.Dialect(), core.FilterSet{City: "MUMBAI"})
	if err != nil {
		t.Fatalf("BuildFetch error: %v", err)
	}
	rows, err := store.Query(ctx, q, args...)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	records, err := collegedb.RecordsFromRows(rows)
	if err != nil {
		t.Fatalf("RecordsFromRows error: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 active Mumbai colleges, got %d", len(records))
	}
	// Newest first, missing year last.
	wantOrder := []int64{1, 2, 3}
	for i, id := range wantOrder {
		if records[i].ID != id {
			t.Errorf("Position %d: expected id %d, got %d", i, id, records[i].ID)
		}
	}
	for _, r := range records {
		if !r.Active {
			t.Errorf("Inactive record %d returned", r.ID)
		}
	}
}

func TestStoreIDList(t *testing.T) {
	store := mumbaiFixture(t)

	q, args, err := collegedb.BuildFetch(store.View(), store.Dialect(), core.FilterSet{IDs: []int64{5, 1, 4}})
	if err != nil {
		t.Fatalf("BuildFetch error: %v", err)
	}
	rows, err := store.Query(context.Background(), q, args...)
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 active rows, got %d", len(rows))
	}
	if v, _ := rows[0].Get(collegedb.ColID); v != int64(1) {
		t.Errorf("Expected id ordering, first row id %v", v)
	}
}

func TestStoreSchemaMismatch(t *testing.T) {
	store := collegedbtest.Open(t)
	collegedbtest.Exec(t, store, fmt.Sprintf(
		"CREATE TABLE %s (college_id INTEGER, name TEXT, college_is_active BOOLEAN)", store.View()))

	q, args, err := collegedb.BuildFetch(store.View(), store.Dialect(), core.FilterSet{City: "Mumbai"})
	if err != nil {
		t.Fatalf("BuildFetch error: %v", err)
	}
	_, err = store.Query(context.Background(), q, args...)
	if !errors.Is(err, core.ErrSchemaMismatch) {
		t.Errorf("Expected SchemaMismatch for missing column, got %v", err)
	}
}

func TestStoreTestConnection(t *testing.T) {
	store := collegedbtest.Open(t)
	if !store.TestConnection(context.Background()) {
		t.Error("Expected connection test to pass")
	}

	_ = store.Close()
	if store.TestConnection(context.Background()) {
		t.Error("Expected connection test to fail on a closed store")
	}
}

func TestStoreReleasesConnections(t *testing.T) {
	store := mumbaiFixture(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		if _, err := store.Query(ctx, "SELECT college_id FROM "+store.View()+" WHERE college_id = ?", i); err != nil {
			t.Fatalf("Query %d error: %v", i, err)
		}
		// Failing queries must also hand their connection back.
		_, _ = store.Query(ctx, "SELECT missing FROM "+store.View())
	}

	if inUse := store.Stats().InUse; inUse != 0 {
		t.Errorf("Expected all connections released, %d in use", inUse)
	}
	if open := store.Stats().MaxOpenConnections; open > collegedb.MaxPoolSize {
		t.Errorf("Pool exceeds bound: %d", open)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := collegedb.Open(context.Background(), collegedb.Options{Driver: "oracle"})
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
}

func TestSearchColleges(t *testing.T) {
	store := mumbaiFixture(t)

	results, err := collegedb.SearchColleges(context.Background(), store, "institute", 0)
	if err != nil {
		t.Fatalf("SearchColleges error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 matches, got %d", len(results))
	}
	if results[0].Name != "Indian Institute of Technology Bombay" {
		t.Errorf("Expected name ordering, got %s first", results[0].Name)
	}

	results, err = collegedb.SearchColleges(context.Background(), store, "pune", 5)
	if err != nil {
		t.Fatalf("SearchColleges error: %v", err)
	}
	if len(results) != 1 || results[0].ID != 5 {
		t.Errorf("Expected city match on Pune, got %+v", results)
	}
}
