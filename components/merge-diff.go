package components

import (
	"sync/atomic"

	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
	s "github.com/Rohesen/walmart-ingest/stats"
	"github.com/Rohesen/walmart-ingest/stream"

	om "github.com/cevaris/ordered_map"
)

type MergeDiffConfig struct {
	Log                       logger.Logger
	Name                      string
	ChanOld                   chan stream.Record // the target table rowset, sorted by the join keys.
	ChanNew                   chan stream.Record // the staging rowset, sorted by the join keys.
	JoinKeys                  *om.OrderedMap
	CompareKeys               *om.OrderedMap
	UpdateComparisonFieldName string // when set, a joined record is CHANGED only if this field is strictly greater on ChanNew; otherwise CompareKeys decide via deep-equality.
	ResultFlagKeyName         string
	OutputIdenticalRows       bool
	StepWatcher               *s.StepWatcher
	WaitCounter               ComponentWaiter
	PanicHandlerFn            PanicHandlerFunc
}

// NewMergeDiff produces an output channel of records based on the data found in
// ChanOld and ChanNew. A new column is added per output record (with the key
// name specified in ResultFlagKeyName) to show the merge-diff results, where
// the value of the new column is one of:
//
//   N == new record found on ChanNew that is not on ChanOld (the output contains the ChanNew row so you can do a database INSERT)
//   C == the ChanNew record supersedes the joined ChanOld record (the output contains the ChanNew row so you can do a database UPDATE)
//   I == the joined records are equivalent (the output contains the ChanNew row; emitted only when OutputIdenticalRows is set)
//
// Records found on ChanOld with no ChanNew counterpart are skipped: this step
// feeds an upsert and never deletes from the target.
//
// NOTE that input channel records MUST be pre-sorted by the key fields for this to work!
// NOTE that the output channel is closed by this function when it is done.
//
// To perform the comparison, two input ordered_maps are required:
// 1) JoinKeys specifies the keys in ChanOld & ChanNew that should be compared in order to join the records
//    from ChanOld and ChanNew.  Key names are case-sensitive!
// 2) CompareKeys specifies the columns in ChanOld & ChanNew that are used for data comparison once the join keys match.
//
// When UpdateComparisonFieldName is set it takes precedence over CompareKeys:
// the joined record is CHANGED only when the field is strictly greater on the
// ChanNew side, so reloaded batches with stale timestamps do not clobber
// fresher target rows.
func NewMergeDiff(i interface{}) (chan stream.Record, chan ControlAction) {
	cfg := i.(*MergeDiffConfig)
	cfg.Log.Debug(cfg.Name, " starting...")
	// Make channels to be returned to the call site.
	outputChan := make(chan stream.Record, c.ChanSize)
	controlChan := make(chan ControlAction, 1)
	// Config & Defaults.
	resultKeyName := c.DiffStatusFieldName
	if cfg.ResultFlagKeyName != "" {
		resultKeyName = cfg.ResultFlagKeyName
	}
	// Create a function for the merge-diff goroutine.
	go func(log logger.Logger,
		outputChan chan stream.Record,
		chanOld chan stream.Record,
		chanNew chan stream.Record,
		joinKeys *om.OrderedMap,
		compareKeys *om.OrderedMap) {
		if cfg.PanicHandlerFn != nil {
			defer cfg.PanicHandlerFn()
		}
		log.Info(cfg.Name, " is running")
		// Signal to outside world that we are running.
		if cfg.WaitCounter != nil { // if we are given a waitGroup to use...
			cfg.WaitCounter.Add()
			defer cfg.WaitCounter.Done()
		}
		// Start watching row count to report stats.
		rowCount := int64(0)
		if cfg.StepWatcher != nil {
			cfg.StepWatcher.StartWatching(&rowCount, &outputChan)
			defer cfg.StepWatcher.StopWatching()
		}
		// Get first channel records with checks for shutdown (we might have to wait a while to receive the first records).
		var (
			recOld        stream.Record
			recNew        stream.Record
			okOld         bool
			okNew         bool
			controlAction ControlAction
		)
		getNextRecord := func(rec *stream.Record, ok *bool, c chan stream.Record) bool {
			select { // fetch the (old or new) record...
			case *rec, *ok = <-c:
			case controlAction = <-controlChan:
				sendNilControlResponse(controlAction)
				log.Info(cfg.Name, " shutdown")
				return false
			}
			return true // we have input data so signal continue.
		}
		// newSupersedesOld decides CHANGED vs IDENTICAL for a joined pair.
		newSupersedesOld := func(recOld stream.Record, recNew stream.Record) bool {
			if cfg.UpdateComparisonFieldName != "" { // if the newest comparison field should win...
				newValue := helper.GetStringFromInterfaceUseUtcTime(log, recNew.GetData(cfg.UpdateComparisonFieldName))
				oldValue := helper.GetStringFromInterfaceUseUtcTime(log, recOld.GetData(cfg.UpdateComparisonFieldName))
				return newValue > oldValue
			}
			return !recOld.DataIsDeepEqual(log, recNew, compareKeys)
		}
		if ok := getNextRecord(&recOld, &okOld, chanOld); !ok { // fetch the old record...
			return // return if we have a shutdown request.
		}
		if ok := getNextRecord(&recNew, &okNew, chanNew); !ok { // fetch the new record...
			return // return if we have a shutdown request.
		}
		log.Debug(cfg.Name, " first channel records fetched.")
		// Loop until both channels are closed/empty.
		for okOld || okNew { // while either new/old channel still has records...
			atomic.AddInt64(&rowCount, 1) // increment the row count bearing in mind someone else is reporting on its values.
			log.Debug("Processing row ", rowCount)
			if (!okOld) && okNew { // if we have a NEW record...
				log.Debug(cfg.Name, " detected NEW due to missing recOld - outputting row")
				recNew.SetData(resultKeyName, c.MergeDiffValueNew)
				if recSentOK := safeSend(recNew, outputChan, controlChan, sendNilControlResponse); !recSentOK {
					log.Info(cfg.Name, " shutdown")
					return
				}
				if ok := getNextRecord(&recNew, &okNew, chanNew); !ok { // fetch the next new record...
					return // return if we have a shutdown request.
				}
			} else if okOld && (!okNew) { // if the target record has no staging counterpart...
				// Upserts never delete: leave the target row alone.
				log.Debug(cfg.Name, " target record has no staging counterpart - skipping row")
				if ok := getNextRecord(&recOld, &okOld, chanOld); !ok { // fetch the old record...
					return // return if we have a shutdown request.
				}
			} else { // else we have good records on both channels...
				// Check records can join and compare other keys.
				log.Debug(cfg.Name, " chanOld rec = ", recOld.GetDataMap())
				log.Debug(cfg.Name, " chanNew rec = ", recNew.GetDataMap())
				comparison := recOld.DataCanJoinByKeyFields(log, recNew, joinKeys)
				if comparison == 0 { // if the maps can join...
					log.Debug(cfg.Name, " maps join...")
					if newSupersedesOld(recOld, recNew) { // if the staging record wins...
						log.Debug(cfg.Name, " maps are CHANGED after join, outputting row")
						recNew.SetData(resultKeyName, c.MergeDiffValueChanged)
						if recSentOK := safeSend(recNew, outputChan, controlChan, sendNilControlResponse); !recSentOK {
							log.Info(cfg.Name, " shutdown")
							return
						}
					} else { // else the records are equivalent...
						if cfg.OutputIdenticalRows { // if we should output identical records to outputChan...
							log.Debug(cfg.Name, " maps are IDENTICAL after join, outputting row")
							recNew.SetData(resultKeyName, c.MergeDiffValueIdentical)
							if recSentOK := safeSend(recNew, outputChan, controlChan, sendNilControlResponse); !recSentOK {
								log.Info(cfg.Name, " shutdown")
								return
							}
						}
					}
					// Get next records.
					if ok := getNextRecord(&recOld, &okOld, chanOld); !ok { // fetch the old record...
						return // return if we have a shutdown request.
					}
					if ok := getNextRecord(&recNew, &okNew, chanNew); !ok { // fetch the next new record...
						return // return if we have a shutdown request.
					}
				} else if comparison == -1 { // if the target record sorts first with no staging counterpart...
					log.Debug(cfg.Name, " target-only record after join, skipping row")
					if ok := getNextRecord(&recOld, &okOld, chanOld); !ok { // fetch the old record...
						return // return if we have a shutdown request.
					}
				} else if comparison == 1 { // if record is NEW...
					log.Debug(cfg.Name, " NEW record after join, outputting row")
					recNew.SetData(resultKeyName, c.MergeDiffValueNew)
					if recSentOK := safeSend(recNew, outputChan, controlChan, sendNilControlResponse); !recSentOK {
						log.Info(cfg.Name, " shutdown")
						return
					}
					if ok := getNextRecord(&recNew, &okNew, chanNew); !ok { // fetch the next new record...
						return // return if we have a shutdown request.
					}
				} else {
					log.Panic(cfg.Name, " unexpected value found for comparison.")
				}
			}
			// Check for shutdown requests.
			select {
			case controlAction = <-controlChan: // if there was a shutdown request...
				sendNilControlResponse(controlAction)
				return
			default: // else we should continue to process rows...
			}
		}
		// Cleanup normally.
		close(outputChan)
		log.Info(cfg.Name, " complete")
	}(cfg.Log, outputChan, cfg.ChanOld, cfg.ChanNew, cfg.JoinKeys, cfg.CompareKeys)
	cfg.Log.Debug(cfg.Name, " launched goroutine...")
	return outputChan, controlChan
}
