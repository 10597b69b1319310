package components

import (
	"reflect"
	"testing"
	"time"

	"github.com/Rohesen/walmart-ingest/stream"
	om "github.com/cevaris/ordered_map"
	"github.com/sirupsen/logrus"
)

func TestMergeDiff(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)

	// Create the input channels.
	chanOld := make(chan stream.Record, 10)
	chanNew := make(chan stream.Record, 10)

	// Data for NEW record.
	newRowN := stream.NewRecord() // use this to test for a NEW record on chanNew
	newRowN.SetData("sale_id", 1)
	newRowN.SetData("quantity_sold", 5)
	newRowN.SetData("total_sale_amount", "100.00")

	// Data for CHANGED records.
	oldRowC := stream.NewRecord() // use this to test for a CHANGED record
	oldRowC.SetData("sale_id", 789)
	oldRowC.SetData("quantity_sold", 1)
	oldRowC.SetData("total_sale_amount", "10.00")
	newRowC := stream.NewRecord() // use this to test for a CHANGED record on chanNew compared to oldRowC
	newRowC.SetData("sale_id", 789)
	newRowC.SetData("quantity_sold", 2)
	newRowC.SetData("total_sale_amount", "20.00")

	// Data for a target-only record, which an upsert must leave alone.
	oldRowT := stream.NewRecord()
	oldRowT.SetData("sale_id", 666)
	oldRowT.SetData("quantity_sold", 9)
	oldRowT.SetData("total_sale_amount", "90.00")

	// Data for IDENTICAL records.
	oldRowI := stream.NewRecord()
	newRowI := stream.NewRecord()
	oldRowI.SetData("sale_id", 1234)
	oldRowI.SetData("quantity_sold", 3)
	oldRowI.SetData("total_sale_amount", "30.00")
	newRowI.SetData("sale_id", 1234)
	newRowI.SetData("quantity_sold", 3)
	newRowI.SetData("total_sale_amount", "30.00")

	// Both channels must be fed in string-sorted key order:
	// "1" < "1234" < "666" < "789".
	chanNew <- newRowN
	chanNew <- newRowI
	chanNew <- newRowC
	chanOld <- oldRowI
	chanOld <- oldRowT
	chanOld <- oldRowC

	// Setup the join keys to use for record comparison.
	joinKeys := om.NewOrderedMap()
	joinKeys.Set("sale_id", "sale_id")

	// Set up the map of keys used for record comparison.
	compareKeys := om.NewOrderedMap()
	compareKeys.Set("quantity_sold", "quantity_sold")
	compareKeys.Set("total_sale_amount", "total_sale_amount")

	// Close the channels supplied to merge-diff.
	close(chanNew)
	close(chanOld)

	// Test 1 - confirm NEW, CHANGED, IDENTICAL rows are output and target-only rows are skipped.
	log.Info("Test 1 - confirm NEW, CHANGED, IDENTICAL rows are output and target-only rows are skipped...")
	chanMergeDiff, _ := NewMergeDiff(
		&MergeDiffConfig{
			Log:                 log,
			Name:                "MergeDiff test",
			StepWatcher:         nil,
			WaitCounter:         nil,
			OutputIdenticalRows: true,
			ChanOld:             chanOld,
			ChanNew:             chanNew,
			JoinKeys:            joinKeys,
			ResultFlagKeyName:   "flagField",
			CompareKeys:         compareKeys,
		})

	dataMergeDiff := make([]map[string]interface{}, 0)
	for rec := range chanMergeDiff { // for each result from MergeDiff step...
		log.Debug("Dumping chanMergeDiff record: ", rec)
		dataMergeDiff = append(dataMergeDiff, rec.GetDataMap()) // save channel record.
	}

	if len(dataMergeDiff) != 3 { // if the target-only record leaked or a row went missing...
		t.Fatalf("expected 3 output records, got %v: %v", len(dataMergeDiff), dataMergeDiff)
	}
	assertRecordWithFlag(t, dataMergeDiff[0], newRowN.GetDataMap(), "flagField", "N")
	assertRecordWithFlag(t, dataMergeDiff[1], newRowI.GetDataMap(), "flagField", "I")
	assertRecordWithFlag(t, dataMergeDiff[2], newRowC.GetDataMap(), "flagField", "C")

	// Test 2
	// Re-test MergeDiff but expect it to not pass identical records as output.
	log.Info("Test 2 - confirm IDENTICAL rows are not passed to the output...")
	chanOld2 := make(chan stream.Record, 1)
	chanNew2 := make(chan stream.Record, 1)
	rowI := stream.NewRecord()
	rowI.SetData("sale_id", 1)
	rowI.SetData("quantity_sold", 5)
	rowI.SetData("total_sale_amount", "100.00")
	chanOld2 <- rowI
	chanNew2 <- rowI
	close(chanOld2)
	close(chanNew2)
	chanMergeDiff2, _ := NewMergeDiff(&MergeDiffConfig{
		Log:                 log,
		Name:                "MergeDiff test 2",
		ChanOld:             chanOld2,
		ChanNew:             chanNew2,
		JoinKeys:            joinKeys,
		CompareKeys:         compareKeys,
		ResultFlagKeyName:   "flagField",
		OutputIdenticalRows: false,
		WaitCounter:         nil,
		StepWatcher:         nil,
	}) // supply false to not output Identical records.
	rowCount := 0
	for range chanMergeDiff2 { // wait for channel to close...
		rowCount++
	}
	if rowCount != 0 { // if we have received an identical row (we shouldn't)...
		t.Fatal("Merge Diff didn't swallow identical records.") // FAIL!
	}

	// Test 3 - confirm joined records only count as CHANGED when the comparison field is strictly newer.
	log.Info("Test 3 - confirm stale staging rows lose against the target on the comparison field...")
	chanOld3 := make(chan stream.Record, 2)
	chanNew3 := make(chan stream.Record, 2)
	oldFresh := stream.NewRecord()
	oldFresh.SetData("sale_id", 1)
	oldFresh.SetData("quantity_sold", 5)
	oldFresh.SetData("last_update", "2024-06-02T00:00:00Z")
	newStale := stream.NewRecord() // older timestamp with different data must not win.
	newStale.SetData("sale_id", 1)
	newStale.SetData("quantity_sold", 6)
	newStale.SetData("last_update", "2024-06-01T00:00:00Z")
	oldStale := stream.NewRecord()
	oldStale.SetData("sale_id", 2)
	oldStale.SetData("quantity_sold", 5)
	oldStale.SetData("last_update", "2024-06-01T00:00:00Z")
	newFresh := stream.NewRecord()
	newFresh.SetData("sale_id", 2)
	newFresh.SetData("quantity_sold", 6)
	newFresh.SetData("last_update", "2024-06-02T00:00:00Z")
	chanOld3 <- oldFresh
	chanNew3 <- newStale
	chanOld3 <- oldStale
	chanNew3 <- newFresh
	close(chanOld3)
	close(chanNew3)
	chanMergeDiff3, _ := NewMergeDiff(&MergeDiffConfig{
		Log:                       log,
		Name:                      "MergeDiff test 3",
		ChanOld:                   chanOld3,
		ChanNew:                   chanNew3,
		JoinKeys:                  joinKeys,
		CompareKeys:               compareKeys,
		UpdateComparisonFieldName: "last_update",
		ResultFlagKeyName:         "flagField",
		OutputIdenticalRows:       false,
	})
	results := make([]map[string]interface{}, 0)
	for rec := range chanMergeDiff3 {
		results = append(results, rec.GetDataMap())
	}
	if len(results) != 1 { // if the stale staging row was output...
		t.Fatalf("expected 1 output record, got %v: %v", len(results), results)
	}
	assertRecordWithFlag(t, results[0], newFresh.GetDataMap(), "flagField", "C")

	// Test 4 - confirm the MergeDiff accepts shutdown requests.
	log.Info("Test 4 - confirm MergeDiff respects shutdown requests...")
	_, controlChan := NewMergeDiff(&MergeDiffConfig{
		Log:                 log,
		Name:                "MergeDiff test 4",
		ChanOld:             make(chan stream.Record, 10), // new channels that we don't close.
		ChanNew:             make(chan stream.Record, 10),
		JoinKeys:            joinKeys,
		CompareKeys:         compareKeys,
		ResultFlagKeyName:   "flagField",
		OutputIdenticalRows: false,
		WaitCounter:         nil,
		StepWatcher:         nil,
	})
	// Send a shutdown request.
	responseChan := make(chan error, 1)
	controlChan <- ControlAction{Action: Shutdown, ResponseChan: responseChan}
	select { // confirm shutdown response...
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for MergeDiff to shutdown.")
	case <-responseChan: // if MergeDiff confirmed shutdown...
		// continue
	}
	// End OK.
}

// assertRecordWithFlag confirms got matches want plus the expected diff status flag.
func assertRecordWithFlag(t *testing.T, got map[string]interface{}, want map[string]interface{}, flagField string, flagValue string) {
	t.Helper()
	expected := make(map[string]interface{})
	for k, v := range want {
		expected[k] = v
	}
	expected[flagField] = flagValue
	if !reflect.DeepEqual(got, expected) {
		t.Error("Unexpected difference found. Got: ", got, "Want:", expected)
	}
}
