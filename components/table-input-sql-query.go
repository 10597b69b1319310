package components

import (
	"fmt"
	"strings"
	"sync/atomic"

	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	s "github.com/Rohesen/walmart-ingest/stats"
	"github.com/Rohesen/walmart-ingest/stream"
)

type SqlQueryConfig struct {
	Log            logger.Logger
	Name           string
	Db             shared.Connector
	Sqltext        string
	Args           []interface{}
	StepWatcher    *s.StepWatcher
	WaitCounter    ComponentWaiter
	PanicHandlerFn PanicHandlerFunc
}

// NewSqlQuery executes the given SQL query against the supplied database
// connection and produces one record per result row onto the output channel,
// keyed by column name.
func NewSqlQuery(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*SqlQueryConfig)
	outputChan = make(chan stream.Record, int(c.ChanSize))
	controlChan = make(chan ControlAction, 1) // make a control channel that receives a chan error.
	go func() {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		// Add to wait group to say we have started.
		if cfg.WaitCounter != nil {
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		execSql(cfg.Log, cfg.Name, cfg.Db, cfg.StepWatcher, &cfg.Sqltext, &cfg.Args, outputChan, controlChan)
	}()
	return outputChan, controlChan
}

// GetTableSelectSql builds the select used to read a table's rows in key
// order, satisfying the sorted-input contract of NewMergeDiff.
func GetTableSelectSql(cols []string, table string, orderByCols []string) string {
	sql := fmt.Sprintf("select %v from %v", strings.Join(cols, ", "), table)
	if len(orderByCols) > 0 {
		sql = fmt.Sprintf("%v order by %v", sql, strings.Join(orderByCols, ", "))
	}
	return sql
}

// execSql executes SQL using the supplied args returning results onto the output channel.
// A nil rows result (possible with mock db connections that have no result registered) is
// logged and treated as an empty result set.
func execSql(log logger.Logger,
	name string,
	db shared.Connector,
	stepWatcher *s.StepWatcher,
	sqltext *string,
	args *[]interface{},
	outputChan chan stream.Record,
	controlChan chan ControlAction,
) {
	if sqltext == nil || *sqltext == "" {
		log.Info(name, " received unexpected empty SQL - skipping")
		return
	}
	rowCount := int64(0)
	if stepWatcher != nil { // if the caller supplied a callback function for us to report row count and channel stats...
		stepWatcher.StartWatching(&rowCount, &outputChan) // supply ptr to this step's rowCount variable and chan for length stats.
		defer stepWatcher.StopWatching()
	}
	// Execute the SQL query.
	var rows shared.Rows
	var err error
	var controlAction ControlAction
	if len(*args) > 0 {
		log.Info(name, " executing SQL: ", *sqltext, "; args = ", *args)
		rows, err = db.Query(*sqltext, *args...)
	} else {
		log.Info(name, " executing SQL: ", *sqltext)
		rows, err = db.Query(*sqltext)
	}
	if err != nil {
		log.Panic(fmt.Sprintf("%v received error during database query using SQL: '%v' %v", name, *sqltext, err))
	}
	if rows != nil {
		defer func() { _ = rows.Close() }()
		cols, err := rows.Columns()
		if err != nil {
			log.Panic(name, " unable to fetch columns: ", err)
		}
		lenCols := len(cols)
		scanPtrs := make([]interface{}, lenCols)
		scanVals := make([]interface{}, lenCols)
		for idx := 0; idx < lenCols; idx++ {
			scanPtrs[idx] = &scanVals[idx]
		}
		log.Debug(name, " looping over result set...")
		for rows.Next() {
			err := rows.Scan(scanPtrs...)
			if err != nil {
				log.Panic(name, " unable to scan row: ", err)
			}
			// Populate map[string]interface{} with the scanned values.
			row := stream.NewRecord()
			for idx := range scanVals {
				row.SetData(cols[idx], scanVals[idx])
			}
			// Send the row while checking for shutdown requests.
			if rowSentOK := safeSend(row, outputChan, controlChan, sendNilControlResponse); !rowSentOK {
				log.Info(name, " shutdown")
				return
			}
			atomic.AddInt64(&rowCount, 1)
		}
		if err := rows.Err(); err != nil {
			log.Panic(name, " error while fetching rows: ", err)
		}
	} else {
		log.Info(name, " received nil rows from query - continuing with an empty result set")
	}
	// Check for a final shutdown request before closing the output channel.
	select {
	case controlAction = <-controlChan:
		sendNilControlResponse(controlAction)
		log.Info(name, " shutdown")
		return
	default:
	}
	close(outputChan)
	log.Info(name, " complete")
}
