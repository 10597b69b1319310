package components

import (
	"reflect"
	"testing"
	"time"

	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/Rohesen/walmart-ingest/stream"
	"github.com/sirupsen/logrus"
)

func TestNewSqlExec(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	mockLog := logger.NewLogger("walmart-ingest", "info", true)

	// Test 1 - statements are executed in input order and records pass through.
	log.Info("Test 1 - statements are executed in input order...")
	db := shared.NewMockConnection(mockLog)
	ddl := []string{
		"create table if not exists ingest.merchants_dim (merchant_id varchar)",
		"create table if not exists ingest.walmart_sales_stage (sale_id varchar)",
	}
	inputChan := make(chan stream.Record, len(ddl))
	for _, sqlText := range ddl {
		rec := stream.NewRecord()
		rec.SetData("#sqlQuery", sqlText) // rely on the SqlQueryFieldName default.
		inputChan <- rec
	}
	close(inputChan)
	outputChan, _ := NewSqlExec(&SqlExecConfig{
		Log:       log,
		Name:      "SqlExec test",
		InputChan: inputChan,
		OutputDb:  db,
	})
	outputCount := 0
	for range outputChan { // wait for the output channel to close...
		outputCount++
	}
	if outputCount != len(ddl) {
		t.Fatalf("expected %v output records, got %v", len(ddl), outputCount)
	}
	if got := db.ExecdSql(); !reflect.DeepEqual(got, ddl) {
		t.Fatalf("unexpected executed SQL: got %v, want %v", got, ddl)
	}

	// Test 2 - confirm SqlExec accepts shutdown requests.
	log.Info("Test 2 - confirm SqlExec respects shutdown requests...")
	_, controlChan := NewSqlExec(&SqlExecConfig{
		Log:       log,
		Name:      "SqlExec test 2",
		InputChan: make(chan stream.Record, 1), // a channel that we don't close.
		OutputDb:  db,
	})
	responseChan := make(chan error, 1)
	controlChan <- ControlAction{Action: Shutdown, ResponseChan: responseChan}
	select { // confirm shutdown response...
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for SqlExec to shutdown.")
	case <-responseChan: // if SqlExec confirmed shutdown...
		// continue
	}
}
