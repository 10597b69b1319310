package actions

import (
	"strings"
	"testing"

	"github.com/Rohesen/walmart-ingest/components"
	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/Rohesen/walmart-ingest/sales"
	"golang.org/x/net/context"
)

func TestReconcilePushDown(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	db := shared.NewMockConnection(log)
	p := config.PipelineConfig{PushDown: true}.WithDefaults()

	// The action builds the same parameterized MERGE, so build it here to can
	// the affected row count against the exact statement text.
	stage, dim, fact := stageTables(p)
	sqlText, err := components.GetFactMergeSql(&components.FactMergeSqlConfig{
		StageTable:          stage,
		DimTable:            dim,
		FactTable:           fact,
		KeyCols:             []string{p.MergeKey},
		StageCols:           stageNonKeyCols(p.MergeKey),
		DimJoinCol:          sales.FieldMerchantId,
		DimCols:             dimensionAttributeCols(),
		UpdateComparisonCol: sales.FieldLastUpdate,
		Policy:              components.LookupPolicyNullFill,
		DedupByComparison:   true,
	})
	if err != nil {
		t.Fatal("unexpected error building merge SQL: ", err)
	}
	db.SetQueryResult("select count(1) from walmart_sales_fact",
		[]string{"count(1)"}, [][]interface{}{{int64(5)}})
	db.SetRowsAffected(sqlText, 2)

	result, err := RunReconcile(context.Background(), &ReconcileConfig{Log: log, Db: db, Pipeline: p})
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if !result.PushDown {
		t.Error("expected a push-down result")
	}
	// The fact count is unchanged so all affected rows count as updates.
	if result.RowsInserted != 0 || result.RowsUpdated != 2 {
		t.Errorf("unexpected counts: %v", result)
	}
	execd := db.ExecdSql()
	if len(execd) != 1 || execd[0] != sqlText {
		t.Errorf("expected exactly the parameterized MERGE to execute; got %v", execd)
	}
	if !strings.Contains(execd[0], "left join") {
		t.Errorf("expected the default policy to use a left join: %v", execd[0])
	}

	// An unknown dangling merchant policy is rejected before touching the warehouse.
	p2 := p
	p2.DanglingMerchantPolicy = "Junk"
	if _, err := RunReconcile(context.Background(), &ReconcileConfig{Log: log, Db: db, Pipeline: p2}); err == nil {
		t.Error("expected an error for an unsupported dangling merchant policy")
	}
}

func TestReconcileInMemory(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	db := shared.NewMockConnection(log)
	p := config.PipelineConfig{}.WithDefaults()

	stagingSql := components.GetTableSelectSql(sales.StageColumns(), "walmart_sales_stage", []string{p.MergeKey})
	db.SetQueryResult(stagingSql, sales.StageColumns(), [][]interface{}{
		// S1 is new to the fact table; its stale duplicate must be discarded.
		{"S1", "2024-06-01", "P1", 5, "50.00", "M1", "2024-06-01T00:00:00Z"},
		{"S1", "2024-05-30", "P1", 4, "40.00", "M1", "2024-05-30T00:00:00Z"},
		// S2 supersedes the existing fact row and has no dimension match.
		{"S2", "2024-06-02", "P2", 6, "60.00", "M9", "2024-06-02T00:00:00Z"},
	})
	dimSql := components.GetTableSelectSql(append([]string{sales.FieldMerchantId}, dimensionAttributeCols()...), "merchants_dim", nil)
	db.SetQueryResult(dimSql,
		append([]string{sales.FieldMerchantId}, dimensionAttributeCols()...),
		[][]interface{}{
			{"M1", "Acme Stores", "Grocery", "US"},
		})
	factSql := components.GetTableSelectSql(sales.FactColumns(), "walmart_sales_fact", []string{p.MergeKey})
	db.SetQueryResult(factSql, sales.FactColumns(), [][]interface{}{
		{"S2", "2024-06-01", "P2", 1, "10.00", "M9", nil, nil, nil, "2024-06-01T00:00:00Z"},
	})

	result, err := RunReconcile(context.Background(), &ReconcileConfig{Log: log, Db: db, Pipeline: p})
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	if result.RowsInserted != 1 || result.RowsUpdated != 1 {
		t.Errorf("unexpected counts: %v", result)
	}
	if result.DuplicatesDiscarded != 1 {
		t.Errorf("expected 1 discarded duplicate; got %v", result.DuplicatesDiscarded)
	}
	if result.UnresolvedMerchants != 1 {
		t.Errorf("expected 1 unresolved merchant; got %v", result.UnresolvedMerchants)
	}
	// The whole batch must ride one committed transaction.
	if len(db.Txs) != 1 || !db.Txs[0].Committed {
		t.Error("expected the reconcile to commit a single transaction")
	}
	execd := db.ExecdSql()
	if len(execd) != 1 {
		t.Fatalf("expected 1 batched MERGE; got %v", execd)
	}
	if !strings.HasPrefix(execd[0], "merge into walmart_sales_fact tgt using") {
		t.Errorf("unexpected MERGE statement: %v", execd[0])
	}
	if !strings.Contains(execd[0], "when matched and src.last_update > tgt.last_update") {
		t.Errorf("expected the MERGE to guard updates on last_update: %v", execd[0])
	}
}

func TestReconcileInMemoryAbortAfter(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	db := shared.NewMockConnection(log)
	p := config.PipelineConfig{AbortAfterRows: 1}.WithDefaults()

	stagingSql := components.GetTableSelectSql(sales.StageColumns(), "walmart_sales_stage", []string{p.MergeKey})
	db.SetQueryResult(stagingSql, sales.StageColumns(), [][]interface{}{
		{"S1", "2024-06-01", "P1", 5, "50.00", "M1", "2024-06-01T00:00:00Z"},
		{"S2", "2024-06-02", "P2", 6, "60.00", "M1", "2024-06-02T00:00:00Z"},
	})
	dimSql := components.GetTableSelectSql(append([]string{sales.FieldMerchantId}, dimensionAttributeCols()...), "merchants_dim", nil)
	db.SetQueryResult(dimSql,
		append([]string{sales.FieldMerchantId}, dimensionAttributeCols()...),
		[][]interface{}{{"M1", "Acme Stores", "Grocery", "US"}})
	factSql := components.GetTableSelectSql(sales.FactColumns(), "walmart_sales_fact", []string{p.MergeKey})
	db.SetQueryResult(factSql, sales.FactColumns(), [][]interface{}{})

	// The second staging record breaches the cap, so the run must fail and
	// nothing may commit.
	_, err := RunReconcile(context.Background(), &ReconcileConfig{Log: log, Db: db, Pipeline: p})
	if err == nil {
		t.Fatal("expected an error once the staging record cap was breached")
	}
	for _, tx := range db.Txs {
		if tx.Committed {
			t.Error("expected no transaction to commit after an aborted run")
		}
	}
}
