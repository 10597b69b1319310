package actions

import (
	"testing"

	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/pkg/errors"
)

func TestRunStageGate(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	db := shared.NewMockConnection(log)
	table := rdbms.NewSchemaTable("", "walmart_sales_stage")
	countSql := "select count(1) from walmart_sales_stage"

	// Test 1 - a populated staging table passes the gate.
	db.SetQueryResult(countSql, []string{"count(1)"}, [][]interface{}{{int64(3)}})
	n, err := RunStageGate(log, db, table, 1)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows; got %v", n)
	}

	// Test 2 - an empty staging table fails with ErrNoStagingRows.
	db.SetQueryResult(countSql, []string{"count(1)"}, [][]interface{}{{int64(0)}})
	n, err = RunStageGate(log, db, table, 1)
	if err == nil {
		t.Fatal("expected an error for an empty staging table")
	}
	if !errors.Is(err, ErrNoStagingRows) {
		t.Errorf("expected ErrNoStagingRows; got %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 rows; got %v", n)
	}

	// Test 3 - minRows below 1 still requires at least one row.
	db.SetQueryResult(countSql, []string{"count(1)"}, [][]interface{}{{int64(0)}})
	if _, err = RunStageGate(log, db, table, 0); !errors.Is(err, ErrNoStagingRows) {
		t.Errorf("expected ErrNoStagingRows; got %v", err)
	}

	// Test 4 - a higher threshold is honored.
	db.SetQueryResult(countSql, []string{"count(1)"}, [][]interface{}{{int64(5)}})
	if _, err = RunStageGate(log, db, table, 10); !errors.Is(err, ErrNoStagingRows) {
		t.Errorf("expected ErrNoStagingRows; got %v", err)
	}
}
