package actions

import (
	"github.com/Rohesen/walmart-ingest/components"
	"github.com/Rohesen/walmart-ingest/config"
	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/Rohesen/walmart-ingest/stats"
	"github.com/Rohesen/walmart-ingest/stream"
	"golang.org/x/net/context"
)

type CreateTablesConfig struct {
	Log      logger.Logger
	Db       shared.Connector
	Pipeline config.PipelineConfig
	Stats    StatsManager // optional.
}

// RunCreateTables creates the merchants dimension, the sales staging table
// and the sales fact table, if they don't exist already.
func RunCreateTables(ctx context.Context, cfg *CreateTablesConfig) error {
	stage, dim, fact := stageTables(cfg.Pipeline)
	ddl := []string{
		rdbms.MerchantsTableDDL(dim),
		rdbms.SalesStageTableDDL(stage),
		rdbms.SalesFactTableDDL(fact),
	}
	inputChan := make(chan stream.Record, len(ddl))
	for _, sqlText := range ddl {
		rec := stream.NewRecord()
		rec.SetData(c.SqlQueryFieldName, sqlText)
		inputChan <- rec
	}
	close(inputChan)
	ch := newChain(cfg.Log)
	outputChan, controlChan := components.NewSqlExec(&components.SqlExecConfig{
		Log:               cfg.Log,
		Name:              "createTables",
		InputChan:         inputChan,
		SqlQueryFieldName: c.SqlQueryFieldName,
		OutputDb:          cfg.Db,
		StepWatcher:       addStepWatcher(cfg.Stats, "createTables"),
		WaitCounter:       ch,
		PanicHandlerFn:    ch.panicHandler(),
	})
	ch.register("createTables", controlChan)
	return ch.wait(ctx, outputChan, nil)
}

// CreateTables opens the target connection and creates the warehouse tables,
// for callers that run the step standalone rather than as a pipeline stage.
func CreateTables(ctx context.Context, cfg *IngestConfig) error {
	cfg.Pipeline = cfg.Pipeline.WithDefaults()
	db, closeFn, err := resolveDb(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	return RunCreateTables(ctx, &CreateTablesConfig{Log: cfg.Log, Db: db, Pipeline: cfg.Pipeline, Stats: cfg.Stats})
}

// addStepWatcher fetches a watcher from the stats manager, tolerating a nil
// manager for callers that don't collect stats.
func addStepWatcher(s StatsManager, stepName string) *stats.StepWatcher {
	if s == nil {
		return nil
	}
	return s.AddStepWatcher(stepName)
}
