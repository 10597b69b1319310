package stream

import (
	"reflect"
	"testing"

	"github.com/Rohesen/walmart-ingest/logger"
)

func TestRecord_RecordIsNil(t *testing.T) {
	r1 := NewRecord()
	if r1.RecordIsNil() {
		t.Fatal("TestRecord_RecordIsNil: expected a new record (not nil)")
	}
	r2 := Record{}
	if !r2.RecordIsNil() {
		t.Fatal("TestRecord_RecordIsNil: expected zero struct and nil record")
	}
}

func TestRecord_GetDataOk(t *testing.T) {
	r := NewRecord()
	r.SetData("sale_id", "S1")
	v, ok := r.GetDataOk("sale_id")
	if !ok || v != "S1" {
		t.Fatalf("TestRecord_GetDataOk: expected S1, got %v (ok=%v)", v, ok)
	}
	if _, ok := r.GetDataOk("junk"); ok {
		t.Fatal("TestRecord_GetDataOk: expected missing key to report !ok")
	}
}

func TestRecord_GetJson(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	r1 := NewRecord()
	r1.SetData("key", "value")
	r1.SetData("key2", "value2")
	r1.SetData("key3", "\"textWithQuote\"")
	r1.SetData("keyWith\"Quote", "\"textWithQuote\"")
	got := r1.GetJson(log, []string{"key", "key2", "key3", "keyWith\"Quote"})
	expected := "{\"key\": \"value\", \"key2\": \"value2\", \"key3\": \"\\\"textWithQuote\\\"\", \"keyWith\\\"Quote\": \"\\\"textWithQuote\\\"\"}"
	if got != expected {
		t.Fatalf("TestRecord_GetJson: unexpected value from GetJSON(): expected = %v; got = %v", expected, got)
	}
}

func TestRecord_GetSortedDataMapKeys(t *testing.T) {
	// Test that record keys are returned in alphabetical order.
	r1 := NewRecord()
	r1.SetData("keyA", "valueA")
	r1.SetData("keyC", "valueC")
	r1.SetData("keyB", "valueB")
	got := r1.GetSortedDataMapKeys()
	expected := []string{"keyA", "keyB", "keyC"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("TestRecord_GetSortedDataMapKeys failed: expected = %v; got = %v", expected, got)
	}
}

func TestMergeDataStreams(t *testing.T) {
	s1 := NewRecord()
	s1.SetData("sale_id", "S1")
	s2 := NewRecord()
	s2.SetData("merchant_name", "Acme Stores")
	got, err := MergeDataStreams(s1, s2, false)
	if err != nil {
		t.Fatal("TestMergeDataStreams: unexpected error merging records: ", err)
	}
	if got.GetData("sale_id") != "S1" || got.GetData("merchant_name") != "Acme Stores" {
		t.Fatalf("TestMergeDataStreams: unexpected merged record: %v", got.GetDataMap())
	}
	// A clash without allowOverwrite is an error.
	s3 := NewRecord()
	s3.SetData("sale_id", "S2")
	if _, err := MergeDataStreams(s1, s3, false); err == nil {
		t.Fatal("TestMergeDataStreams: expected an error merging records with a clashing field")
	}
	// With allowOverwrite the second stream wins.
	got, err = MergeDataStreams(s1, s3, true)
	if err != nil {
		t.Fatal("TestMergeDataStreams: unexpected error merging records with overwrite: ", err)
	}
	if got.GetData("sale_id") != "S2" {
		t.Fatalf("TestMergeDataStreams: expected overwrite to win, got %v", got.GetData("sale_id"))
	}
	// A nil second stream copies the first.
	got, err = MergeDataStreams(s1, NewNilRecord(), false)
	if err != nil {
		t.Fatal("TestMergeDataStreams: unexpected error copying record: ", err)
	}
	if !reflect.DeepEqual(got.GetDataMap(), s1.GetDataMap()) {
		t.Fatalf("TestMergeDataStreams: expected a copy of s1, got %v", got.GetDataMap())
	}
}
