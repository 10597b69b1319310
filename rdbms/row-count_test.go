package rdbms

import (
	"testing"

	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
)

func TestGetTableRowCount(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	db := shared.NewMockConnection(log)
	table := NewSchemaTable("ingest", "walmart_sales_stage")

	// Test 1 - the canned count comes back as an int64.
	db.SetQueryResult("select count(1) from ingest.walmart_sales_stage",
		[]string{"count(1)"},
		[][]interface{}{{int64(42)}})
	got, err := GetTableRowCount(log, db, table)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if got != 42 {
		t.Errorf("expected 42 rows; got %v", got)
	}

	// Test 2 - counts arriving as strings are converted.
	db.SetQueryResult("select count(1) from ingest.walmart_sales_stage",
		[]string{"count(1)"},
		[][]interface{}{{"7"}})
	got, err = GetTableRowCount(log, db, table)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if got != 7 {
		t.Errorf("expected 7 rows; got %v", got)
	}

	// Test 3 - a failing query is an error.
	missing := NewSchemaTable("ingest", "no_such_table")
	if _, err := GetTableRowCount(log, db, missing); err == nil {
		t.Error("expected an error for a failing count query")
	}
}
