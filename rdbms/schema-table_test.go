package rdbms

import (
	"testing"

	"github.com/Rohesen/walmart-ingest/logger"
)

func TestSchemaTable(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)

	// Test 1 - schema-qualified object.
	input := "ingest.walmart_sales_fact"
	log.Info("Testing SchemaTable: ", input)
	st := SchemaTable{SchemaTable: input}
	if got := st.GetSchema(); got != "ingest" {
		t.Fatalf("expected schema = %q; got %q", "ingest", got)
	}
	if got := st.GetTable(); got != "walmart_sales_fact" {
		t.Fatalf("expected table = %q; got %q", "walmart_sales_fact", got)
	}
	if got := st.String(); got != input {
		t.Fatalf("expected %q; got %q", input, got)
	}

	// Test 2 - table on its own.
	input = "walmart_sales_fact"
	log.Info("Testing SchemaTable: ", input)
	st = SchemaTable{SchemaTable: input}
	if got := st.GetSchema(); got != "" {
		t.Fatalf("expected empty schema; got %q", got)
	}
	if got := st.GetTable(); got != input {
		t.Fatalf("expected table = %q; got %q", input, got)
	}

	// Test 3 - NewSchemaTable composition.
	if got := NewSchemaTable("ingest", "merchants_dim").String(); got != "ingest.merchants_dim" {
		t.Fatalf("expected %q; got %q", "ingest.merchants_dim", got)
	}
	if got := NewSchemaTable("", "merchants_dim").String(); got != "merchants_dim" {
		t.Fatalf("expected %q; got %q", "merchants_dim", got)
	}

	// Test 4 - AppendSuffix.
	st = NewSchemaTable("ingest", "walmart_sales_stage")
	if got := st.AppendSuffix("_tmp"); got != "ingest.walmart_sales_stage_tmp" {
		t.Fatalf("expected %q; got %q", "ingest.walmart_sales_stage_tmp", got)
	}
}
