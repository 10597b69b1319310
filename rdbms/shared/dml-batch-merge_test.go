package shared

import (
	"testing"

	"github.com/cevaris/ordered_map"
	"github.com/sirupsen/logrus"
)

func TestSqlMergeTxtBatch(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)
	log.Info("Starting tests for SQL MERGE...")

	omKeys := ordered_map.NewOrderedMap()
	omKeys.Set("sale_id", "sale_id")
	omCols := ordered_map.NewOrderedMap()
	omCols.Set("quantity_sold", "quantity_sold")
	omCols.Set("last_update", "last_update")

	db := NewMockConnection(log)
	dml := db.GetDmlGenerator()

	o := dml.NewMergeGenerator(&SqlStatementGeneratorConfig{
		Log:                 log,
		OutputSchema:        "ingest",
		SchemaSeparator:     ".",
		OutputTable:         "walmart_sales_fact",
		TargetKeyCols:       omKeys,
		TargetOtherCols:     omCols,
		UpdateComparisonCol: "last_update"}).(SqlStmtTxtBatcher)

	var batchIsFull bool
	var err error

	// Create new batch of values size 2.
	o.InitBatch(2)                                                                        // create a new batch with room for 2 rows...
	batchIsFull, err = o.AddValuesToBatch([]interface{}{"S1", 5, "2024-06-01T00:00:00Z"}) // first row should succeed.
	if err != nil {
		t.Fatal(err) // this should not fail here.
	}
	if batchIsFull {
		t.Fatal("The batch should have room for a second row.")
	}
	batchIsFull, err = o.AddValuesToBatch([]interface{}{"S2", 6, "2024-06-02T00:00:00Z"}) // second row should succeed.
	if err != nil {
		t.Fatal(err) // this should not fail here.
	}
	if !batchIsFull {
		t.Fatal("The batch *should* be full but it is not.")
	} else {
		log.Debug("Expected, no more room in batch.")
	}

	log.Debug("SQL with bind: ", o.GetStatement())
	log.Debug("SQL args/values: ", o.GetValues())

	if len(o.GetValues()) != 6 { // num values should be rows * (keys + other cols)
		t.Fatal("Error, incorrect number of args.")
	}

	const sql = "merge into ingest.walmart_sales_fact tgt using " +
		"(select ? as sale_id, ? as quantity_sold, ? as last_update union all select ?, ?, ?) src " +
		"on (tgt.sale_id = src.sale_id) " +
		"when matched and src.last_update > tgt.last_update then update set " +
		"tgt.quantity_sold = src.quantity_sold, tgt.last_update = src.last_update " +
		"when not matched then insert (sale_id, quantity_sold, last_update) " +
		"values (src.sale_id, src.quantity_sold, src.last_update)"
	if o.GetStatement() != sql {
		t.Fatalf("Bad SQL MERGE generated:\ngot:  %v\nwant: %v", o.GetStatement(), sql)
	}

	// Wrong number of values per row is an error.
	o.InitBatch(1)
	_, err = o.AddValuesToBatch([]interface{}{"S1", 5, "2024-06-01T00:00:00Z", 789}) // this should fail as num values does not match len(omKeys) + len(omCols).
	if err == nil {
		t.Fatal("There should have been an error. Incorrect number of values deliberately supplied in batch.")
	}

	// A full batch refuses extra rows.
	o.InitBatch(1)
	if _, err = o.AddValuesToBatch([]interface{}{"S1", 5, "2024-06-01T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	if _, err = o.AddValuesToBatch([]interface{}{"S2", 6, "2024-06-02T00:00:00Z"}); err == nil {
		t.Fatal("There should have been an error adding to a full batch.")
	}

	// Without an update comparison column the matched branch is unconditional.
	o2 := dml.NewMergeGenerator(&SqlStatementGeneratorConfig{
		Log:             log,
		OutputSchema:    "",
		SchemaSeparator: ".",
		OutputTable:     "walmart_sales_fact",
		TargetKeyCols:   omKeys,
		TargetOtherCols: omCols}).(SqlStmtTxtBatcher)
	o2.InitBatch(1)
	if _, err = o2.AddValuesToBatch([]interface{}{"S1", 5, "2024-06-01T00:00:00Z"}); err != nil {
		t.Fatal(err)
	}
	const sql2 = "merge into walmart_sales_fact tgt using " +
		"(select ? as sale_id, ? as quantity_sold, ? as last_update) src " +
		"on (tgt.sale_id = src.sale_id) " +
		"when matched then update set " +
		"tgt.quantity_sold = src.quantity_sold, tgt.last_update = src.last_update " +
		"when not matched then insert (sale_id, quantity_sold, last_update) " +
		"values (src.sale_id, src.quantity_sold, src.last_update)"
	if o2.GetStatement() != sql2 {
		t.Fatalf("Bad SQL MERGE generated:\ngot:  %v\nwant: %v", o2.GetStatement(), sql2)
	}
	log.Info("Testing SQL MERGE success.")
}
