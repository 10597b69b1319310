package components

import (
	"testing"
	"time"

	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/stream"
	"github.com/pkg/errors"
)

func TestNewFilterRows(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)
	defaultTimeoutSec := 10

	// Test 1
	log.Info("Test 1, FilterRows component shuts down...")
	inputChan1 := make(chan stream.Record, 10)
	cfg := &FilterRowsConfig{
		Log:            log,
		Name:           "test-filter-json-logic",
		InputChan:      inputChan1,
		FilterType:     FilterRowsJsonLogic,
		FilterMetadata: `{ ">" : [ { "var" : "quantity_sold" }, 0 ] }`,
		WaitCounter:    nil,
		StepWatcher:    nil,
		PanicHandlerFn: nil,
	}
	_, controlChan1 := NewFilterRows(cfg)
	responseChan := make(chan error, 1)
	controlChan1 <- ControlAction{ResponseChan: responseChan, Action: Shutdown} // send shutdown.
	select {
	case <-time.After(time.Duration(defaultTimeoutSec) * time.Second):
		t.Fatal("Test 1, timeout waiting for shutdown")
	case <-responseChan: // continue OK.
	}
	log.Info("Test 1, complete")

	// Test 2
	log.Info("Test 2, FilterRows->", FilterRowsJsonLogic, " passes matching rows and swallows the rest...")
	inputChan2 := make(chan stream.Record, 10)
	cfg.InputChan = inputChan2
	rec1 := stream.NewRecord()
	rec1.SetData("sale_id", "S1")
	rec1.SetData("quantity_sold", 5)
	rec2 := stream.NewRecord()
	rec2.SetData("sale_id", "S2")
	rec2.SetData("quantity_sold", 0)
	inputChan2 <- rec1
	inputChan2 <- rec2
	close(inputChan2)
	outputChan2, _ := NewFilterRows(cfg)
	rows := make([]stream.Record, 0)
	for rec := range outputChan2 {
		rows = append(rows, rec)
	}
	if len(rows) != 1 {
		t.Fatal("Test 2, expected 1 row from FilterRows->", FilterRowsJsonLogic, "; got ", len(rows))
	}
	if rows[0].GetDataAsStringPreserveTimeZone(log, "sale_id") != "S1" {
		t.Fatal("Test 2, unexpected row passed the filter: ", rows[0].GetDataMap())
	}
	log.Info("Test 2, complete")
}

func TestFilterRowsLastRowInStream(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "info", true)

	// Test 1
	log.Info("Test 1, FilterRows component returns last row...")
	fnLastRec, err := setupLastRowInStream(log, "")
	if err != nil {
		t.Fatal(err)
	}
	rec := stream.NewRecord()
	got, _ := fnLastRec(rec)
	if !got.RecordIsNil() {
		t.Fatal("expected nil response after supplying a record to detect last row in stream: got: ", got)
	}
	got, _ = fnLastRec(stream.NewNilRecord())
	if got.RecordIsNil() {
		t.Fatal("expected a response after supplying a nil record to detect last row in stream: got: ", got)
	}
	log.Info("Test 1, complete")
}

func TestFilterRowsJsonLogic(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "debug", true)

	// Test 1
	log.Info("Test 1, FilterRows->JsonLogic, apply JsonLogic")
	fnJsonLogic, err := setupJsonLogicFilter(log, `{ "==" : [ { "var" : "merchant_id" }, "M8" ] }`)
	if err != nil {
		t.Fatalf("Test 1 failed: %v", err)
	}
	rec := stream.NewRecord()
	expected := "M8"
	rec.SetData("merchant_id", expected)
	filteredRec, _ := fnJsonLogic(rec)
	if filteredRec.RecordIsNil() { // if the record failed the filter...
		t.Fatalf("Test 1, FilterRows->JsonLogic did not return a record as expected: %v did not pass", rec)
	}
	if _, ok := filteredRec.GetData("merchant_id").(string); !ok { // if the returned field is not a string that we supplied earlier...
		t.Fatalf("Test 1, FilterRows->JsonLogic did not return a string type for expected %v", expected)
	}
	if filteredRec.GetDataAsStringUseUtcTime(log, "merchant_id") != expected {
		t.Fatalf("Test 1, FilterRows->JsonLogic did not return the supplied input record: expected 'merchant_id' = '%v'", expected)
	}
	log.Info("Test 1 complete")

	// Test 2
	log.Info("Test 2, FilterRows->JsonLogic, supply Times for equality check")
	fnJsonLogic, err = setupJsonLogicFilter(log, `{ "==" : [ { "var" : "dateFrom" }, { "var" : "dateTo" } ] }`)
	if err != nil {
		t.Fatalf("Test 2 failed: %v", err)
	}
	rec2 := stream.NewRecord()
	expectedTime := time.Date(1900, 1, 1, 12, 0, 0, 1, time.Local)
	rec2.SetData("dateFrom", expectedTime)
	rec2.SetData("dateTo", expectedTime)
	filteredRec2, _ := fnJsonLogic(rec2)
	if filteredRec2.RecordIsNil() {
		t.Fatalf("Test 2, FilterRows->JsonLogic did not return a record as expected: %v did not pass", rec2)
	}
	log.Info("Test 2 complete")

	// Test 3
	log.Info("Test 3, FilterRows->JsonLogic, supply junk rule to generate an error")
	_, err = setupJsonLogicFilter(log, `junkRuleToCauseError`)
	if err == nil {
		t.Fatal("Test 3 failed, error expected but not returned")
	}
	log.Info("Test 3 complete")
}

func TestFilterRowsAbortAfter(t *testing.T) {
	log := logger.NewLogger("walmart-ingest", "debug", true)

	// Test 1
	log.Info("Test 1, FilterRows->AbortAfter setup")
	fnFilter, err := setupAbortAfterFilter(log, "1")
	if err != nil {
		t.Fatalf("Test 1 failed: expected no error; got: %v", err)
	}

	// Test 2
	log.Info("Test 2, FilterRows->AbortAfter will return an input record")
	rec := stream.NewRecord()
	expected := "testValue"
	rec.SetData("testKey", expected)
	filteredRec, err := fnFilter(rec)
	if err != nil { // if the filter caused an error...
		t.Fatalf("Test 2 failed: unexpected error: %v", err)
	}
	if filteredRec.RecordIsNil() { // if the record was not passed through...
		t.Fatalf("Test 2 failed: FilterRows->AbortAfter did not return the input record: %v", rec)
	}
	got := filteredRec.GetDataAsStringPreserveTimeZone(log, "testKey")
	if got != expected {
		t.Fatalf("Test 2 failed: expected = %v; got = %v", expected, got)
	}

	// Test 3
	log.Info("Test 3, FilterRows->AbortAfter will error after exceeding N records")
	// Filter the record again.
	_, err = fnFilter(rec)
	if err == nil {
		t.Fatal("Test 3 failed: expected error but none received")
	} else { // else we have an error...
		if !errors.Is(err, errFilterAbortAfterExceededCount) {
			t.Fatalf("Test 3 failed: expected error errFilterAbortAfterExceededCount; got: %v", err)
		}
	}

	// Test 4
	log.Info("Test 4, FilterRows->AbortAfter is disabled if the record limit is 0")
	fnFilter, err = setupAbortAfterFilter(log, "0") // disabled filter.
	if err != nil {
		t.Fatalf("Test 4 failed: expected no error; got: %v", err)
	}
	rec = stream.NewRecord()
	rec.SetData("testKey", expected)
	if _, err = fnFilter(rec); err != nil { // if the filter caused an error...
		t.Fatalf("Test 4 failed: unexpected error: %v", err)
	}
}
