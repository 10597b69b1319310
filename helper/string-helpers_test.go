package helper

import (
	"testing"

	"github.com/Rohesen/walmart-ingest/logger"
)

func TestTokensToOrderedMap(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	// Test 1
	log.Info("Test 1, confirm empty string produces empty ordered map")
	om := TokensToOrderedMap("")
	if om.Len() != 0 {
		t.Fatal("expected empty ordered map but got something")
	}
	// Test 2
	log.Info("Test 2, confirm tokens map to themselves in order")
	om = TokensToOrderedMap("sale_id,last_update")
	if om.Len() != 2 {
		t.Fatalf("expected 2 entries; got %v", om.Len())
	}
	v, ok := om.Get("sale_id")
	if !ok || v != "sale_id" {
		t.Fatalf("expected sale_id to map to itself; got %v, %v", v, ok)
	}
}

func TestStringSliceToOrderedMap(t *testing.T) {
	om := StringSliceToOrderedMap([]string{"sale_id", "last_update"})
	if om.Len() != 2 {
		t.Fatalf("expected 2 entries; got %v", om.Len())
	}
	iter := om.IterFunc()
	kv, _ := iter()
	if kv.Key != "sale_id" {
		t.Fatalf("expected sale_id first; got %v", kv.Key)
	}
}

func TestGetInt64FromInterface(t *testing.T) {
	cases := []struct {
		input    interface{}
		expected int64
	}{
		{int64(42), 42},
		{42, 42},
		{int32(42), 42},
		{float64(42), 42},
		{"42", 42},
		{[]uint8("42"), 42},
	}
	for _, c := range cases {
		got, err := GetInt64FromInterface(c.input)
		if err != nil {
			t.Errorf("unexpected error for %v (%T): %v", c.input, c.input, err)
			continue
		}
		if got != c.expected {
			t.Errorf("expected %v for %v (%T); got %v", c.expected, c.input, c.input, got)
		}
	}
	if _, err := GetInt64FromInterface(nil); err == nil {
		t.Error("expected an error for nil input")
	}
	if _, err := GetInt64FromInterface("junk"); err == nil {
		t.Error("expected an error for a non-numeric string")
	}
	if _, err := GetInt64FromInterface(struct{}{}); err == nil {
		t.Error("expected an error for an unhandled type")
	}
}

func TestGenerateStringOfColsEqualsCols(t *testing.T) {
	got := GenerateStringOfColsEqualsCols([]string{"sale_id"}, "tgt", "src", " and ")
	expected := "tgt.sale_id = src.sale_id"
	if got != expected {
		t.Fatalf("expected %q; got %q", expected, got)
	}
	got = GenerateStringOfColsEqualsCols([]string{"a", "b"}, "tgt", "src", ", ")
	expected = "tgt.a = src.a, tgt.b = src.b"
	if got != expected {
		t.Fatalf("expected %q; got %q", expected, got)
	}
}

func TestCsvToStringSliceTrimSpaces(t *testing.T) {
	got := CsvToStringSliceTrimSpaces(" sale_id , last_update ")
	if len(got) != 2 || got[0] != "sale_id" || got[1] != "last_update" {
		t.Fatalf("unexpected slice: %v", got)
	}
}
