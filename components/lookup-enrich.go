package components

import (
	"sync/atomic"

	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/Rohesen/walmart-ingest/stats"
	"github.com/Rohesen/walmart-ingest/stream"
)

// LookupPolicy controls what happens to input records whose lookup key has no
// match in the lookup table.
type LookupPolicy string

const (
	LookupPolicyNullFill   LookupPolicy = "NullFill"   // keep the record and set the lookup fields to nil.
	LookupPolicyExcludeRow LookupPolicy = "ExcludeRow" // drop the record.
)

type LookupEnrichConfig struct {
	Log               logger.Logger
	Name              string
	InputChan         chan stream.Record
	Db                shared.Connector // connection used to load the lookup table before streaming starts.
	SqlText           string           // query returning the lookup key column plus the lookup fields.
	KeyFieldName      string           // the input field joined against the lookup key column.
	LookupFields      []string         // the lookup columns copied onto each matched input record.
	Policy            LookupPolicy     // what to do with unmatched records; defaults to LookupPolicyNullFill.
	UnresolvedCounter *int64           // optional counter incremented once per unmatched input record; may be nil.
	StepWatcher       *stats.StepWatcher
	WaitCounter       ComponentWaiter
	PanicHandlerFn    PanicHandlerFunc
}

// NewLookupEnrich loads the lookup query results into memory then streams the
// input channel, copying the lookup fields onto each record whose key matches
// a lookup row. Unmatched records follow the configured LookupPolicy.
func NewLookupEnrich(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*LookupEnrichConfig)
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	if cfg.KeyFieldName == "" {
		cfg.Log.Panic(cfg.Name, " error - missing lookup key field name.")
	}
	if len(cfg.LookupFields) == 0 {
		cfg.Log.Panic(cfg.Name, " error - missing lookup field names.")
	}
	if cfg.Policy == "" {
		cfg.Policy = LookupPolicyNullFill
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
		cfg.Log.Info(cfg.Name, " loading lookup using SQL: ", cfg.SqlText)
		lookup := loadLookup(cfg)
		cfg.Log.Info(cfg.Name, " loaded ", len(lookup), " lookup rows")
		var controlAction ControlAction
		for { // for each row of input...
			select {
			case rec, ok := <-cfg.InputChan:
				if !ok { // if the input channel was closed...
					cfg.InputChan = nil // disable this case.
				} else {
					key := rec.GetDataAsStringPreserveTimeZone(cfg.Log, cfg.KeyFieldName)
					values, found := lookup[key]
					if found { // if the key resolves...
						for idx, f := range cfg.LookupFields {
							rec.SetData(f, values[idx])
						}
					} else { // else apply the unmatched-key policy...
						if cfg.UnresolvedCounter != nil {
							atomic.AddInt64(cfg.UnresolvedCounter, 1)
						}
						if cfg.Policy == LookupPolicyExcludeRow {
							cfg.Log.Debug(cfg.Name, " excluding record with unmatched key '", key, "'")
							continue
						}
						cfg.Log.Debug(cfg.Name, " null-filling record with unmatched key '", key, "'")
						for _, f := range cfg.LookupFields {
							rec.SetData(f, nil)
						}
					}
					if recSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !recSentOK {
						cfg.Log.Info(cfg.Name, " shutdown")
						return
					}
					atomic.AddInt64(&rowCount, 1)
				}
			case controlAction = <-controlChan: // if we were asked to shutdown...
			}
			if cfg.InputChan == nil || controlAction.Action == Shutdown {
				break
			}
		}
		if controlAction.Action == Shutdown {
			controlAction.ResponseChan <- nil
			cfg.Log.Info(cfg.Name, " shutdown")
			return
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}

// loadLookup executes the lookup SQL and returns a map of key to lookup field
// values. The first column of the result set is the key; the remaining
// columns must match cfg.LookupFields by position.
func loadLookup(cfg *LookupEnrichConfig) map[string][]interface{} {
	rows, err := cfg.Db.Query(cfg.SqlText)
	if err != nil {
		cfg.Log.Panic(cfg.Name, " error loading lookup using SQL '", cfg.SqlText, "': ", err)
	}
	lookup := make(map[string][]interface{})
	if rows == nil { // mock connections may not produce rows...
		cfg.Log.Info(cfg.Name, " received no rows from lookup query - continuing with an empty lookup")
		return lookup
	}
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		cfg.Log.Panic(cfg.Name, " unable to fetch lookup columns: ", err)
	}
	if len(cols) != len(cfg.LookupFields)+1 {
		cfg.Log.Panic(cfg.Name, " lookup query must return the key column plus ", len(cfg.LookupFields), " lookup fields; got ", len(cols), " columns")
	}
	scanVals := make([]interface{}, len(cols))
	scanPtrs := make([]interface{}, len(cols))
	for idx := range scanVals {
		scanPtrs[idx] = &scanVals[idx]
	}
	for rows.Next() {
		if err := rows.Scan(scanPtrs...); err != nil {
			cfg.Log.Panic(cfg.Name, " unable to scan lookup row: ", err)
		}
		key := helper.GetStringFromInterfacePreserveTimeZone(cfg.Log, scanVals[0])
		values := make([]interface{}, len(cfg.LookupFields))
		copy(values, scanVals[1:])
		lookup[key] = values
	}
	if err := rows.Err(); err != nil {
		cfg.Log.Panic(cfg.Name, " error while fetching lookup rows: ", err)
	}
	return lookup
}
