package components

import (
	"fmt"
	"sync/atomic"

	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	s "github.com/Rohesen/walmart-ingest/stats"
	"github.com/Rohesen/walmart-ingest/stream"
	"golang.org/x/net/context"
)

type SqlExecConfig struct {
	Log               logger.Logger
	Name              string
	InputChan         chan stream.Record
	SqlQueryFieldName string // the input field carrying the SQL text to execute, one statement per record; defaults to the SqlQueryFieldName constant.
	OutputDb          shared.Connector
	StepWatcher       *s.StepWatcher
	WaitCounter       ComponentWaiter
	PanicHandlerFn    PanicHandlerFunc
}

// NewSqlExec executes the SQL statement found on each input record and copies
// the record to the output channel. It serves the table-bootstrap stage: the
// caller feeds one CREATE TABLE statement per record, so statements run in
// input order and any failure panics the chain before data loading starts.
func NewSqlExec(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*SqlExecConfig)
	if cfg.SqlQueryFieldName == "" {
		cfg.SqlQueryFieldName = c.SqlQueryFieldName
	}
	if cfg.OutputDb == nil {
		cfg.Log.Panic(cfg.Name, " error - missing db connection in call to NewSqlExec.")
	}
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing chan input in call to NewSqlExec.")
	}
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		cfg.Log.Info(cfg.Name, " is running")
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil { // if we have been given a stepWatcher struct that can watch our rowCount and output channel length...
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		var controlAction ControlAction
		for {
			select {
			case rec, ok := <-cfg.InputChan: // per input row SQL exec...
				if !ok { // if we have run out of rows...
					cfg.InputChan = nil // disable this case
				} else { // process the row...
					sqlText := rec.GetDataAsStringPreserveTimeZone(cfg.Log, cfg.SqlQueryFieldName)
					if _, err := cfg.OutputDb.ExecContext(context.Background(), sqlText); err != nil {
						cfg.Log.Panic(fmt.Sprintf("error executing SQL '%v': %v", sqlText, err))
					}
					if rowSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !rowSentOK { // if we couldn't output the row due to shutdown...
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
					atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
				}
			case controlAction = <-controlChan: // if we have been asked to shutdown...
				controlAction.ResponseChan <- nil // respond that we're done with a nil error.
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
			if cfg.InputChan == nil { // if we should exit gracefully...
				break
			}
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return outputChan, controlChan
}
