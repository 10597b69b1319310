package components

import (
	"testing"
	"time"

	"github.com/Rohesen/walmart-ingest/stream"
	"github.com/sirupsen/logrus"
)

func TestDedupSortRows(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	newSale := func(saleId string, lastUpdate string, qty int) stream.Record {
		rec := stream.NewRecord()
		rec.SetData("sale_id", saleId)
		rec.SetData("last_update", lastUpdate)
		rec.SetData("quantity_sold", qty)
		return rec
	}

	// Test 1 - duplicates collapse to the freshest record and survivors come out sorted by key.
	log.Info("Test 1 - confirm duplicates collapse and survivors are sorted...")
	inputChan := make(chan stream.Record, 10)
	inputChan <- newSale("S3", "2024-06-01T00:00:00Z", 1)
	inputChan <- newSale("S1", "2024-06-01T00:00:00Z", 2)
	inputChan <- newSale("S1", "2024-06-02T00:00:00Z", 3) // newer duplicate wins.
	inputChan <- newSale("S2", "2024-06-03T00:00:00Z", 4)
	inputChan <- newSale("S2", "2024-06-01T00:00:00Z", 5) // stale duplicate loses.
	close(inputChan)

	duplicates := int64(0)
	outputChan, _ := NewDedupSortRows(&DedupSortRowsConfig{
		Log:                 log,
		Name:                "DedupSortRows test 1",
		InputChan:           inputChan,
		KeyFieldName:        "sale_id",
		ComparisonFieldName: "last_update",
		DuplicateCounter:    &duplicates,
	})
	results := make([]stream.Record, 0)
	for rec := range outputChan {
		results = append(results, rec)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 survivors, got %v", len(results))
	}
	expected := []struct {
		saleId string
		qty    int
	}{
		{"S1", 3},
		{"S2", 4},
		{"S3", 1},
	}
	for idx, e := range expected {
		if results[idx].GetData("sale_id") != e.saleId || results[idx].GetData("quantity_sold") != e.qty {
			t.Errorf("unexpected survivor at %v: %v", idx, results[idx].GetDataMap())
		}
	}
	if duplicates != 2 {
		t.Errorf("expected 2 discarded duplicates, got %v", duplicates)
	}

	// Test 2 - on equal comparison values, the record that arrived last wins.
	log.Info("Test 2 - confirm ties go to the latest arrival...")
	inputChan2 := make(chan stream.Record, 2)
	inputChan2 <- newSale("S1", "2024-06-01T00:00:00Z", 1)
	inputChan2 <- newSale("S1", "2024-06-01T00:00:00Z", 2)
	close(inputChan2)
	outputChan2, _ := NewDedupSortRows(&DedupSortRowsConfig{
		Log:                 log,
		Name:                "DedupSortRows test 2",
		InputChan:           inputChan2,
		KeyFieldName:        "sale_id",
		ComparisonFieldName: "last_update",
	})
	results2 := make([]stream.Record, 0)
	for rec := range outputChan2 {
		results2 = append(results2, rec)
	}
	if len(results2) != 1 {
		t.Fatalf("expected 1 survivor, got %v", len(results2))
	}
	if results2[0].GetData("quantity_sold") != 2 { // the later arrival...
		t.Errorf("expected the later arrival to win the tie, got %v", results2[0].GetDataMap())
	}

	// Test 3 - confirm DedupSortRows respects shutdown requests.
	log.Info("Test 3 - confirm DedupSortRows respects shutdown requests...")
	_, controlChan := NewDedupSortRows(&DedupSortRowsConfig{
		Log:                 log,
		Name:                "DedupSortRows test 3",
		InputChan:           make(chan stream.Record, 1), // a channel we never close.
		KeyFieldName:        "sale_id",
		ComparisonFieldName: "last_update",
	})
	responseChan := make(chan error, 1)
	controlChan <- ControlAction{Action: Shutdown, ResponseChan: responseChan}
	select {
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for DedupSortRows to shutdown.")
	case <-responseChan:
		// continue
	}
}
