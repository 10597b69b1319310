package components

import (
	"testing"

	"github.com/Rohesen/walmart-ingest/rdbms"
)

func TestGetFactMergeSql(t *testing.T) {
	cfg := &FactMergeSqlConfig{
		StageTable:          rdbms.NewSchemaTable("ingest", "walmart_sales_stage"),
		DimTable:            rdbms.NewSchemaTable("ingest", "merchants_dim"),
		FactTable:           rdbms.NewSchemaTable("ingest", "walmart_sales_fact"),
		KeyCols:             []string{"sale_id"},
		StageCols:           []string{"sale_date", "quantity_sold", "merchant_id", "last_update"},
		DimJoinCol:          "merchant_id",
		DimCols:             []string{"merchant_name", "category"},
		UpdateComparisonCol: "last_update",
		Policy:              LookupPolicyNullFill,
		DedupByComparison:   true,
	}

	// Test 1 - full statement with NullFill (left join) and staging dedup,
	// including the tie-break ordering on the remaining staging columns.
	got, err := GetFactMergeSql(cfg)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	expected := "merge into ingest.walmart_sales_fact tgt using ( " +
		"select s.sale_id, s.sale_date, s.quantity_sold, s.merchant_id, s.last_update, m.merchant_name, m.category " +
		"from ingest.walmart_sales_stage s left join ingest.merchants_dim m on s.merchant_id = m.merchant_id " +
		"qualify row_number() over (partition by s.sale_id order by s.last_update desc, " +
		"s.sale_date desc, s.quantity_sold desc, s.merchant_id desc) = 1 ) src " +
		"on ( tgt.sale_id = src.sale_id ) " +
		"when matched and src.last_update > tgt.last_update then update set " +
		"tgt.sale_date = src.sale_date, tgt.quantity_sold = src.quantity_sold, tgt.merchant_id = src.merchant_id, " +
		"tgt.last_update = src.last_update, tgt.merchant_name = src.merchant_name, tgt.category = src.category " +
		"when not matched then insert " +
		"( sale_id, sale_date, quantity_sold, merchant_id, last_update, merchant_name, category ) values " +
		"( src.sale_id, src.sale_date, src.quantity_sold, src.merchant_id, src.last_update, src.merchant_name, src.category )"
	if got != expected {
		t.Errorf("unexpected merge SQL:\ngot:  %v\nwant: %v", got, expected)
	}

	// Test 2 - ExcludeRow switches the dimension join from left join to inner join.
	cfg2 := *cfg
	cfg2.Policy = LookupPolicyExcludeRow
	cfg2.DedupByComparison = false
	cfg2.UpdateComparisonCol = ""
	got2, err := GetFactMergeSql(&cfg2)
	if err != nil {
		t.Fatal("unexpected error: ", err)
	}
	expected2 := "merge into ingest.walmart_sales_fact tgt using ( " +
		"select s.sale_id, s.sale_date, s.quantity_sold, s.merchant_id, s.last_update, m.merchant_name, m.category " +
		"from ingest.walmart_sales_stage s join ingest.merchants_dim m on s.merchant_id = m.merchant_id ) src " +
		"on ( tgt.sale_id = src.sale_id ) " +
		"when matched then update set " +
		"tgt.sale_date = src.sale_date, tgt.quantity_sold = src.quantity_sold, tgt.merchant_id = src.merchant_id, " +
		"tgt.last_update = src.last_update, tgt.merchant_name = src.merchant_name, tgt.category = src.category " +
		"when not matched then insert " +
		"( sale_id, sale_date, quantity_sold, merchant_id, last_update, merchant_name, category ) values " +
		"( src.sale_id, src.sale_date, src.quantity_sold, src.merchant_id, src.last_update, src.merchant_name, src.category )"
	if got2 != expected2 {
		t.Errorf("unexpected merge SQL:\ngot:  %v\nwant: %v", got2, expected2)
	}

	// Test 3 - missing key columns is an error.
	cfg3 := *cfg
	cfg3.KeyCols = nil
	if _, err := GetFactMergeSql(&cfg3); err == nil {
		t.Error("expected an error for missing key columns")
	}

	// Test 4 - dedup without a comparison column is an error.
	cfg4 := *cfg
	cfg4.UpdateComparisonCol = ""
	if _, err := GetFactMergeSql(&cfg4); err == nil {
		t.Error("expected an error for dedup without a comparison column")
	}

	// Test 5 - dimension columns without a join column is an error.
	cfg5 := *cfg
	cfg5.DimJoinCol = ""
	if _, err := GetFactMergeSql(&cfg5); err == nil {
		t.Error("expected an error for dimension columns without a join column")
	}
}
