package actions

import (
	"sync/atomic"

	"github.com/Rohesen/walmart-ingest/components"
	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/Rohesen/walmart-ingest/stream"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// Dataset names one of the JSON feeds landed in the S3 bucket and the
// warehouse table it loads into.
type Dataset struct {
	Name         string
	ObjectPrefix string
	Table        rdbms.SchemaTable
}

// MerchantsDataset returns the merchants feed for the given run config.
func MerchantsDataset(p config.PipelineConfig) Dataset {
	_, dim, _ := stageTables(p)
	return Dataset{Name: "merchants", ObjectPrefix: p.MerchantsPrefix, Table: dim}
}

// SalesDataset returns the sales feed for the given run config.
func SalesDataset(p config.PipelineConfig) Dataset {
	stage, _, _ := stageTables(p)
	return Dataset{Name: "sales", ObjectPrefix: p.SalesPrefix, Table: stage}
}

type LoadConfig struct {
	Log      logger.Logger
	Db       shared.Connector
	Pipeline config.PipelineConfig
	Stats    StatsManager // optional.
}

// RunLoadDataset bulk-loads one dataset's files from S3 into its warehouse
// table via the external stage, deleting existing rows first so each run gets
// truncate-and-reload semantics. The delete, the COPY statements and the
// final commit share one transaction, so the table ends up with all of the
// staged files or none of them.
// It returns the number of data files loaded.
func RunLoadDataset(ctx context.Context, cfg *LoadConfig, d Dataset) (int64, error) {
	p := cfg.Pipeline
	ch := newChain(cfg.Log)
	listChan, listControl := components.NewS3BucketList(&components.S3BucketListerConfig{
		Log:              cfg.Log,
		Name:             "list-" + d.Name,
		Region:           p.BucketRegion,
		BucketName:       p.BucketName,
		BucketPrefix:     d.ObjectPrefix,
		ObjectNameRegexp: p.FileNameRegexp,
		StepWatcher:      addStepWatcher(cfg.Stats, "list-"+d.Name),
		WaitCounter:      ch,
		PanicHandlerFn:   ch.panicHandler(),
	})
	ch.register("list-"+d.Name, listControl)
	loadChan, loadControl := components.NewSnowflakeLoader(&components.SnowflakeLoaderConfig{
		Log:                     cfg.Log,
		Name:                    "load-" + d.Name,
		InputChan:               listChan,
		Db:                      cfg.Db,
		InputChanField4FileName: components.Defaults.ChanField4FileName,
		StageName:               p.StageName,
		TargetSchemaTableName:   d.Table,
		DeleteAll:               true,
		FnGetSnowflakeSqlSlice:  components.GetSqlSliceSnowflakeCopyIntoJson,
		StepWatcher:             addStepWatcher(cfg.Stats, "load-"+d.Name),
		WaitCounter:             ch,
		PanicHandlerFn:          ch.panicHandler(),
	})
	ch.register("load-"+d.Name, loadControl)
	var numFiles int64
	err := ch.wait(ctx, loadChan, func(_ stream.Record) {
		atomic.AddInt64(&numFiles, 1)
	})
	if err != nil {
		return 0, errors.Wrapf(err, "unable to load dataset %v", d.Name)
	}
	cfg.Log.Info("Loaded ", atomic.LoadInt64(&numFiles), " data file(s) into ", d.Table.String())
	return atomic.LoadInt64(&numFiles), nil
}
