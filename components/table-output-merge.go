package components

import (
	"sync/atomic"

	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	s "github.com/Rohesen/walmart-ingest/stats"
	"github.com/Rohesen/walmart-ingest/stream"
)

type TableMergeConfig struct {
	Log                                logger.Logger
	Name                               string
	InputChan                          chan stream.Record // output of a prior MergeDiff step.
	OutputDb                           shared.Connector   // target database connection for writes.
	ExecBatchSize                      int                // number of rows combined into one MERGE statement.
	FlagFieldName                      string             // the field carrying the MergeDiff result flag; defaults to the DiffStatusFieldName constant.
	shared.SqlStatementGeneratorConfig                    // config for target database table
	StepWatcher                        *s.StepWatcher
	WaitCounter                        ComponentWaiter
	PanicHandlerFn                     PanicHandlerFunc
}

type tableMerge struct {
	log           logger.Logger
	name          string
	inputChan     chan stream.Record
	outputDb      shared.Connector
	execBatchSize int
	flagFieldName string
	shared.SqlStatementGeneratorConfig
	sqlMergeGenerator shared.SqlStmtGenerator
	stepWatcher       *s.StepWatcher
	waitCounter       ComponentWaiter
	panicHandlerFn    PanicHandlerFunc
}

// NewTableMerge applies the output of a prior MergeDiff step to a target
// database table using batched SQL MERGE statements inside a single
// transaction, so the target either receives the whole reconciled batch or
// none of it.
// Records flagged N are counted as inserts, C as updates and I are skipped.
// When the input channel closes and the transaction commits, one summary
// record is emitted on the output channel carrying the insert and update
// counts in the RowsInsertedFieldName and RowsUpdatedFieldName fields.
func NewTableMerge(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*TableMergeConfig)
	if cfg.ExecBatchSize == 0 {
		cfg.ExecBatchSize = c.MergeBatchSizeDefault
	}
	if cfg.FlagFieldName == "" {
		cfg.FlagFieldName = c.DiffStatusFieldName
	}
	if cfg.OutputDb == nil {
		cfg.Log.Panic(cfg.Name, " error - missing db connection in call to NewTableMerge.")
	}
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing chan input in call to NewTableMerge.")
	}
	sqlMerge := cfg.OutputDb.GetDmlGenerator().NewMergeGenerator(&cfg.SqlStatementGeneratorConfig)
	return startTableMerge(&tableMerge{
		log:                         cfg.Log,
		name:                        cfg.Name,
		inputChan:                   cfg.InputChan,
		outputDb:                    cfg.OutputDb,
		execBatchSize:               cfg.ExecBatchSize,
		flagFieldName:               cfg.FlagFieldName,
		SqlStatementGeneratorConfig: cfg.SqlStatementGeneratorConfig,
		sqlMergeGenerator:           sqlMerge,
		stepWatcher:                 cfg.StepWatcher,
		waitCounter:                 cfg.WaitCounter,
		panicHandlerFn:              cfg.PanicHandlerFn,
	})
}

func startTableMerge(s *tableMerge) (outputChan chan stream.Record, controlChan chan ControlAction) {
	sqlMergeGenerator, ok := s.sqlMergeGenerator.(shared.SqlStmtTxtBatcher)
	if !ok {
		s.log.Panic(s.name, " - SQL Merge is not supported for this connection")
	}
	outputChan = make(chan stream.Record, c.ChanSize)
	controlChan = make(chan ControlAction, 1)
	var controlAction ControlAction
	needNewBatchMerge := true
	// Make a slice to hold values per record.
	valuesForMerge := make([]interface{}, s.TargetKeyCols.Len()+s.TargetOtherCols.Len())
	var tx shared.Transacter
	var err error
	var listIdx int
	go func() {
		if s.panicHandlerFn != nil {
			defer s.panicHandlerFn()
		}
		s.log.Info(s.name, " is running")
		if s.waitCounter != nil {
			s.waitCounter.Add()
			defer s.waitCounter.Done()
		}
		rowCount := int64(0)
		if s.stepWatcher != nil { // if we have been given a stepWatcher struct that can watch our rowCount...
			s.stepWatcher.StartWatching(&rowCount, &outputChan)
			defer s.stepWatcher.StopWatching()
		}
		rowsInserted := int64(0)
		rowsUpdated := int64(0)
		// Read the input channel, check the flag field, add to the batch accordingly and exec the batch when full.
		for { // for each row of input...
			select {
			case rec, ok := <-s.inputChan:
				if !ok { // if the inputChan was closed...
					s.inputChan = nil // disable this case (select won't choose a blocking option).
				} else { // else process the input rec...
					atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
					flag := rec.GetDataAsStringPreserveTimeZone(s.log, s.flagFieldName)
					switch flag {
					case c.MergeDiffValueNew:
						rowsInserted++
					case c.MergeDiffValueChanged:
						rowsUpdated++
					case c.MergeDiffValueIdentical: // identical rows don't need to touch the target...
						continue
					default:
						rollbackOnPanic(s.log, tx)
						s.log.Panic(s.name, " - unexpected merge-diff flag value '", flag, "'")
					}
					if tx == nil { // the whole batch shares one transaction...
						tx, err = s.outputDb.Begin()
						if err != nil {
							s.log.Panic(s.name, " - unable to start new transaction: ", err)
						}
					}
					if needNewBatchMerge { // if we need to start a new batch...
						s.log.Debug(s.name, " - new MERGE batch required.")
						sqlMergeGenerator.InitBatch(s.execBatchSize)
						needNewBatchMerge = false
					}
					// Save values from all fields into a list of values.
					listIdx = 0 // reset the list index to get the getters below to overwrite the list.
					rec.GetDataByKeys(s.log, s.TargetKeyCols, &valuesForMerge, &listIdx)
					rec.GetDataByKeys(s.log, s.TargetOtherCols, &valuesForMerge, &listIdx)
					s.log.Debug(s.name, " - values for MERGE: ", valuesForMerge)
					batchIsFull, err := sqlMergeGenerator.AddValuesToBatch(valuesForMerge)
					if err != nil {
						rollbackOnPanic(s.log, tx)
						s.log.Panic(err)
					}
					if batchIsFull { // if the batch is full...
						// Get the SQL and bind values from the generator.
						mustExecSqlTransaction(s.log, tx, sqlMergeGenerator.GetStatement(), sqlMergeGenerator.GetValues()...)
						needNewBatchMerge = true // request new batch on next iteration.
						s.log.Debug(s.name, " - MERGE exec'd")
					}
				}
			case controlAction = <-controlChan:
				if tx != nil { // abandon the uncommitted batch...
					_ = tx.Rollback()
				}
				controlAction.ResponseChan <- nil // respond that we're done with a nil error.
				s.log.Info(s.name, " shutdown")
				return
			}
			if s.inputChan == nil { // if we have processed all input rows...
				break
			}
		}
		// Exec the final partial batch and commit once so the target gets all rows or none.
		if tx != nil {
			if !needNewBatchMerge { // if there is a part-filled batch to flush...
				mustExecSqlTransaction(s.log, tx, sqlMergeGenerator.GetStatement(), sqlMergeGenerator.GetValues()...)
			}
			mustCommitSqlTransaction(s.log, tx)
			s.log.Debug(s.name, " - final exec + commit for MERGE complete")
		}
		s.log.Info(s.name, " merged ", rowsInserted, " inserts and ", rowsUpdated, " updates into ", s.OutputSchema, s.SchemaSeparator, s.OutputTable)
		rec := stream.NewRecord()
		rec.SetData(c.RowsInsertedFieldName, rowsInserted)
		rec.SetData(c.RowsUpdatedFieldName, rowsUpdated)
		if recSentOK := safeSend(rec, outputChan, controlChan, sendNilControlResponse); !recSentOK {
			s.log.Info(s.name, " shutdown")
			return
		}
		close(outputChan) // we're done so close the channel we created.
		s.log.Info(s.name, " complete")
	}()
	return
}

// ---------------------------------------------------------------------------------------------------------------------
// -- LOCAL HELPERS
// ---------------------------------------------------------------------------------------------------------------------

func mustExecSqlTransaction(log logger.Logger, tx shared.Transacter, sqltext string, values ...interface{}) {
	log.Debug("Exec trying...")
	_, err := tx.Exec(sqltext, values...)
	if err != nil {
		_ = tx.Rollback()
		log.Panic("Error during exec of SQL (", sqltext, ") ", err)
	}
	log.Debug("Exec complete")
	return
}

func mustCommitSqlTransaction(log logger.Logger, tx shared.Transacter) {
	err := tx.Commit()
	if err != nil {
		log.Panic("Error committing transaction: ", err)
	}
}

func rollbackOnPanic(log logger.Logger, tx shared.Transacter) {
	if tx != nil {
		if err := tx.Rollback(); err != nil {
			log.Warn("Error rolling back transaction: ", err)
		}
	}
}
