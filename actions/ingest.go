package actions

import (
	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/pipeline"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/Rohesen/walmart-ingest/stats"
	"golang.org/x/net/context"
)

// Stage names of the ingestion graph.
const (
	StageCreateTables  = "create-tables"
	StageLoadMerchants = "load-merchants"
	StageLoadSales     = "load-sales"
	StageGate          = "stage-gate"
	StageReconcile     = "reconcile"
)

type IngestConfig struct {
	Log              logger.Logger
	Connections      ConnectionLoader
	TwelveFactorMode bool
	Pipeline         config.PipelineConfig
	Db               shared.Connector  // optional override for tests; opened via Connections when nil.
	Stats            StatsManager      // optional; a stats.PipelineStatsManager is created when nil.
	Locks            *pipeline.RunLock // optional; prevents concurrent runs against the same fact table.
}

// ingestRun couples one Runner with the shared state its stages write to.
type ingestRun struct {
	cfg    *IngestConfig
	runner *pipeline.Runner
	db     shared.Connector // the stage-shared warehouse connection; set by execute.
	result ReconcileResult
}

// newIngestRun validates the config and assembles the stage graph:
//
//	create-tables -> load-merchants -+
//	              -> load-sales     -+-> stage-gate -> reconcile
//
// The two bulk loads run concurrently once the tables exist; the gate stops
// the reconcile when the staging table landed empty.
func newIngestRun(cfg *IngestConfig) (*ingestRun, error) {
	cfg.Pipeline = cfg.Pipeline.WithDefaults()
	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	r := &ingestRun{cfg: cfg}
	p := cfg.Pipeline
	g, err := pipeline.NewGraph(
		pipeline.Stage{
			Name: StageCreateTables,
			Run: func(ctx context.Context) error {
				return RunCreateTables(ctx, &CreateTablesConfig{Log: cfg.Log, Db: r.db, Pipeline: p, Stats: cfg.Stats})
			},
		},
		pipeline.Stage{
			Name:      StageLoadMerchants,
			DependsOn: []string{StageCreateTables},
			Run: func(ctx context.Context) error {
				_, err := RunLoadDataset(ctx, &LoadConfig{Log: cfg.Log, Db: r.db, Pipeline: p, Stats: cfg.Stats}, MerchantsDataset(p))
				return err
			},
		},
		pipeline.Stage{
			Name:      StageLoadSales,
			DependsOn: []string{StageCreateTables},
			Run: func(ctx context.Context) error {
				_, err := RunLoadDataset(ctx, &LoadConfig{Log: cfg.Log, Db: r.db, Pipeline: p, Stats: cfg.Stats}, SalesDataset(p))
				return err
			},
		},
		pipeline.Stage{
			Name:      StageGate,
			DependsOn: []string{StageLoadMerchants, StageLoadSales},
			Run: func(ctx context.Context) error {
				stage, _, _ := stageTables(p)
				_, err := RunStageGate(cfg.Log, r.db, stage, 1)
				return err
			},
		},
		pipeline.Stage{
			Name:      StageReconcile,
			DependsOn: []string{StageGate},
			Run: func(ctx context.Context) error {
				res, err := RunReconcile(ctx, &ReconcileConfig{Log: cfg.Log, Db: r.db, Pipeline: p, Stats: cfg.Stats})
				if err != nil {
					return err
				}
				r.result = *res
				return nil
			},
		},
	)
	if err != nil {
		return nil, err
	}
	r.runner = pipeline.NewRunner(cfg.Log, g)
	return r, nil
}

// execute runs the graph, holding the fact table lock for the duration when
// a lock registry was supplied.
func (r *ingestRun) execute(ctx context.Context) error {
	cfg := r.cfg
	if cfg.Locks != nil {
		_, _, fact := stageTables(cfg.Pipeline)
		release, err := cfg.Locks.TryLock(fact.String(), r.runner.Guid())
		if err != nil {
			return err
		}
		defer release()
	}
	db, closeFn, err := resolveDb(cfg)
	if err != nil {
		return err
	}
	defer closeFn()
	r.db = db
	sm := cfg.Stats
	if sm == nil {
		sm = stats.NewPipelineStats(cfg.Log, stats.SetStatsDumpFrequency(cfg.Pipeline.StatsDumpFrequencySeconds))
		cfg.Stats = sm
	}
	sm.StartDumping()
	defer sm.StopDumping()
	err = r.runner.Run(ctx)
	r.runner.SetStats(sm.GetStats())
	return err
}

// RunIngest executes the full ingestion graph synchronously and reports what
// the reconcile did.
func RunIngest(ctx context.Context, cfg *IngestConfig) (*ReconcileResult, error) {
	r, err := newIngestRun(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.execute(ctx); err != nil {
		return nil, err
	}
	return &r.result, nil
}

// LaunchIngest starts the ingestion graph in the background and registers it
// so the serve surface can report status by GUID. The returned runner is
// already stored in runs.
func LaunchIngest(ctx context.Context, cfg *IngestConfig, runs *pipeline.SafeMapRunInfo) (*pipeline.Runner, error) {
	r, err := newIngestRun(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	r.runner.SetCancelFunc(cancel)
	runs.Store(r.runner)
	go func() {
		defer cancel()
		if err := r.execute(ctx); err != nil {
			cfg.Log.Error("pipeline ", r.runner.Guid(), " failed: ", err)
			return
		}
		cfg.Log.Info("pipeline ", r.runner.Guid(), " reconcile results: ", r.result)
	}()
	return r.runner, nil
}
