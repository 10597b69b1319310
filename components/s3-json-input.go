package components

import (
	"bufio"
	"strings"
	"sync/atomic"

	"github.com/Rohesen/walmart-ingest/aws/s3"
	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/stats"
	"github.com/Rohesen/walmart-ingest/stream"
)

// JsonRecordBuilderFunc converts one line of a JSON-lines data file into a
// stream.Record. Implementations validate the line and should return an error
// for rows that break the dataset schema.
type JsonRecordBuilderFunc func(line []byte) (stream.Record, error)

type S3JsonInputConfig struct {
	Log                 logger.Logger
	Name                string
	Region              string                // AWS region for the bucket.
	BucketName          string                // AWS bucket name.
	BucketPrefix        string                // AWS bucket prefix.
	InputChan           chan stream.Record    // records carrying S3 object names, usually produced by NewS3BucketList.
	InputField4FileName string                // the map key on InputChan that contains the object names to read. Defaults to Defaults.ChanField4FileName.
	BuildRecordFn       JsonRecordBuilderFunc // converts each JSON line into a record for the output channel.
	AbortOnBadRecord    bool                  // when set, a line that fails BuildRecordFn aborts the component instead of being skipped.
	Client              s3.ReaderGetter       // optional client override, used by tests; nil means build a real S3 client.
	StepWatcher         *stats.StepWatcher
	WaitCounter         ComponentWaiter
	PanicHandlerFn      PanicHandlerFunc
}

// NewS3JsonInput reads each object named on the input channel from S3 and
// streams its JSON-lines content as records onto the output channel, one
// record per line. Blank lines are skipped. Malformed lines are skipped with
// a warning unless AbortOnBadRecord is set.
func NewS3JsonInput(i interface{}) (outputChan chan stream.Record, controlChan chan ControlAction) {
	cfg := i.(*S3JsonInputConfig)
	outputChan = make(chan stream.Record, int(c.ChanSize))
	controlChan = make(chan ControlAction, 1)
	if cfg.InputChan == nil {
		cfg.Log.Panic(cfg.Name, " error - missing input channel.")
	}
	if cfg.BuildRecordFn == nil {
		cfg.Log.Panic(cfg.Name, " error - missing record builder function.")
	}
	if cfg.InputField4FileName == "" {
		cfg.InputField4FileName = Defaults.ChanField4FileName
		cfg.Log.Info(cfg.Name, " input field for file name(s) not supplied, using default value ", Defaults.ChanField4FileName)
	}
	client := cfg.Client
	if client == nil {
		if cfg.BucketName == "" {
			cfg.Log.Panic(cfg.Name, " error - missing target bucket name.")
		}
		if cfg.Region == "" {
			cfg.Log.Panic(cfg.Name, " error - missing AWS region.")
		}
		client = s3.NewBasicClient(strings.TrimPrefix(cfg.BucketName, "s3://"), cfg.Region, cfg.BucketPrefix)
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
		for rec := range cfg.InputChan { // for each data file name...
			fileName := rec.GetDataAsStringPreserveTimeZone(cfg.Log, cfg.InputField4FileName)
			cfg.Log.Info(cfg.Name, " reading JSON lines from object '", fileName, "'")
			r, err := client.GetReader(fileName)
			if err != nil {
				cfg.Log.Panic(cfg.Name, " unable to read S3 object '", fileName, "': ", err)
			}
			scanner := bufio.NewScanner(r)
			scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024) // allow wide rows.
			lineNum := 0
			for scanner.Scan() {
				lineNum++
				line := scanner.Bytes()
				if len(strings.TrimSpace(string(line))) == 0 { // skip blank lines...
					continue
				}
				outRec, err := cfg.BuildRecordFn(line)
				if err != nil {
					if cfg.AbortOnBadRecord {
						_ = r.Close()
						cfg.Log.Panic(cfg.Name, " bad record at ", fileName, ":", lineNum, ": ", err)
					}
					cfg.Log.Warn(cfg.Name, " skipping bad record at ", fileName, ":", lineNum, ": ", err)
					continue
				}
				if recSentOK := safeSend(outRec, outputChan, controlChan, sendNilControlResponse); !recSentOK {
					_ = r.Close()
					cfg.Log.Info(cfg.Name, " shutdown")
					return
				}
				atomic.AddInt64(&rowCount, 1)
			}
			err = scanner.Err()
			_ = r.Close()
			if err != nil {
				cfg.Log.Panic(cfg.Name, " error while scanning S3 object '", fileName, "': ", err)
			}
		}
		close(outputChan)
		cfg.Log.Info(cfg.Name, " complete")
	}()
	return
}
