package components

import (
	"sort"
	"sync/atomic"

	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/stats"
	"github.com/Rohesen/walmart-ingest/stream"
)

type DedupSortRowsConfig struct {
	Log                 logger.Logger
	Name                string
	InputChan           chan stream.Record
	KeyFieldName        string // the field that identifies a logical row; duplicates of this field are collapsed.
	ComparisonFieldName string // the field used to pick the winner among duplicates; the greatest value wins and ties go to the record seen last.
	DuplicateCounter    *int64 // optional counter incremented once per discarded duplicate; may be nil.
	StepWatcher         *stats.StepWatcher
	WaitCounter         ComponentWaiter
	PanicHandlerFn      PanicHandlerFunc
}

// NewDedupSortRows buffers the input stream, collapses records that share the
// key field and emits the survivors in ascending key order.
// Among duplicates the record with the greatest comparison field value wins;
// on equal comparison values the record that arrived last wins.
// The sorted output satisfies the ordered-input contract of NewMergeDiff.
func NewDedupSortRows(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*DedupSortRowsConfig)
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	if cfg.KeyFieldName == "" {
		cfg.Log.Panic(cfg.Name, " error - missing key field name.")
	}
	if cfg.ComparisonFieldName == "" {
		cfg.Log.Panic(cfg.Name, " error - missing comparison field name.")
	}
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		rowCount := int64(0)
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		cfg.Log.Info(cfg.Name, " is running")
		survivors := make(map[string]stream.Record)
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else {
					key := rec.GetDataAsStringPreserveTimeZone(cfg.Log, cfg.KeyFieldName)
					existing, found := survivors[key]
					if !found { // if this is the first record for the key...
						survivors[key] = rec
					} else { // else pick a winner...
						newValue := helper.GetStringFromInterfaceUseUtcTime(cfg.Log, rec.GetData(cfg.ComparisonFieldName))
						oldValue := helper.GetStringFromInterfaceUseUtcTime(cfg.Log, existing.GetData(cfg.ComparisonFieldName))
						if newValue >= oldValue { // the later record wins ties...
							survivors[key] = rec
						}
						if cfg.DuplicateCounter != nil {
							atomic.AddInt64(cfg.DuplicateCounter, 1)
						}
						cfg.Log.Debug(cfg.Name, " collapsed duplicate for key '", key, "'")
					}
				}
			case controlAction = <-controlChan: // if we were asked to shutdown...
			}
			if cfg.InputChan == nil || controlAction.Action == Shutdown {
				break
			}
		}
		if controlAction.Action == Shutdown { // if we were asked to shutdown...
			controlAction.ResponseChan <- nil
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		// Emit survivors in key order.
		keys := make([]string, 0, len(survivors))
		for k := range survivors {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if recSentOK := safeSend(survivors[k], outputChan, controlChan, sendNilControlResponse); !recSentOK {
				cfg.Log.Info(cfg.Name, " shutdown")
				return
			}
			atomic.AddInt64(&rowCount, 1)
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}
