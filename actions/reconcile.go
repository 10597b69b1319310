package actions

import (
	"fmt"
	"strconv"

	"github.com/Rohesen/walmart-ingest/components"
	"github.com/Rohesen/walmart-ingest/config"
	c "github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/helper"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/rdbms"
	"github.com/Rohesen/walmart-ingest/rdbms/shared"
	"github.com/Rohesen/walmart-ingest/sales"
	"github.com/Rohesen/walmart-ingest/stream"
	om "github.com/cevaris/ordered_map"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

type ReconcileConfig struct {
	Log      logger.Logger
	Db       shared.Connector
	Pipeline config.PipelineConfig
	Stats    StatsManager // optional.
}

// ReconcileResult reports what the reconcile did to the fact table.
type ReconcileResult struct {
	RowsInserted        int64 `json:"rowsInserted"`
	RowsUpdated         int64 `json:"rowsUpdated"`
	DuplicatesDiscarded int64 `json:"duplicatesDiscarded"`
	UnresolvedMerchants int64 `json:"unresolvedMerchants"`
	PushDown            bool  `json:"pushDown"`
}

func (r ReconcileResult) String() string {
	return fmt.Sprintf("inserted=%v updated=%v duplicatesDiscarded=%v unresolvedMerchants=%v",
		r.RowsInserted, r.RowsUpdated, r.DuplicatesDiscarded, r.UnresolvedMerchants)
}

// RunReconcile upserts the staged sales batch into the fact table, enriched
// with merchant dimension attributes. Staged rows win over existing fact rows
// only when their last_update is strictly newer, so reloading an old batch
// never clobbers fresher data. Fact rows absent from the batch are left alone.
//
// The warehouse-side path pushes one MERGE statement down to the database;
// the in-memory path streams both rowsets through a merge-diff and applies
// batched MERGE statements in a single transaction. Both are atomic.
func RunReconcile(ctx context.Context, cfg *ReconcileConfig) (*ReconcileResult, error) {
	if cfg.Pipeline.PushDown {
		return reconcilePushDown(ctx, cfg)
	}
	return reconcileInMemory(ctx, cfg)
}

func reconcilePushDown(ctx context.Context, cfg *ReconcileConfig) (*ReconcileResult, error) {
	p := cfg.Pipeline
	stage, dim, fact := stageTables(p)
	policy, err := lookupPolicyFromConfig(p.DanglingMerchantPolicy)
	if err != nil {
		return nil, err
	}
	sqlText, err := components.GetFactMergeSql(&components.FactMergeSqlConfig{
		StageTable:          stage,
		DimTable:            dim,
		FactTable:           fact,
		KeyCols:             []string{p.MergeKey},
		StageCols:           stageNonKeyCols(p.MergeKey),
		DimJoinCol:          sales.FieldMerchantId,
		DimCols:             dimensionAttributeCols(),
		UpdateComparisonCol: sales.FieldLastUpdate,
		Policy:              policy,
		DedupByComparison:   true,
	})
	if err != nil {
		return nil, err
	}
	// The MERGE reports total rows affected, so bracket it with fact table
	// counts to split inserts from updates. The single statement is atomic on
	// the warehouse side.
	countBefore, err := rdbms.GetTableRowCount(cfg.Log, cfg.Db, fact)
	if err != nil {
		return nil, err
	}
	cfg.Log.Debug("reconcile executing: ", sqlText)
	res, err := cfg.Db.ExecContext(ctx, sqlText)
	if err != nil {
		return nil, errors.Wrap(err, "unable to merge staging into the fact table")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "unable to fetch rows affected by the merge")
	}
	countAfter, err := rdbms.GetTableRowCount(cfg.Log, cfg.Db, fact)
	if err != nil {
		return nil, err
	}
	result := &ReconcileResult{
		RowsInserted: countAfter - countBefore,
		RowsUpdated:  affected - (countAfter - countBefore),
		PushDown:     true,
	}
	if result.RowsUpdated < 0 { // drivers that can't report affected rows...
		result.RowsUpdated = 0
	}
	cfg.Log.Info("Reconcile complete: ", result)
	return result, nil
}

func reconcileInMemory(ctx context.Context, cfg *ReconcileConfig) (*ReconcileResult, error) {
	p := cfg.Pipeline
	stage, dim, fact := stageTables(p)
	policy, err := lookupPolicyFromConfig(p.DanglingMerchantPolicy)
	if err != nil {
		return nil, err
	}
	var duplicates, unresolved int64
	ch := newChain(cfg.Log)
	// Staging rowset, sorted to satisfy the merge-diff input contract.
	stagingChan, control := components.NewSqlQuery(&components.SqlQueryConfig{
		Log:            cfg.Log,
		Name:           "readStaging",
		Db:             cfg.Db,
		Sqltext:        components.GetTableSelectSql(sales.StageColumns(), stage.String(), []string{p.MergeKey}),
		StepWatcher:    addStepWatcher(cfg.Stats, "readStaging"),
		WaitCounter:    ch,
		PanicHandlerFn: ch.panicHandler(),
	})
	ch.register("readStaging", control)
	nextChan := stagingChan
	if p.FilterRule != "" { // if staging rows should be filtered by rule...
		nextChan, control = components.NewFilterRows(&components.FilterRowsConfig{
			Log:            cfg.Log,
			Name:           "filterStaging",
			InputChan:      nextChan,
			FilterType:     components.FilterRowsJsonLogic,
			FilterMetadata: components.FilterMetadata(p.FilterRule),
			StepWatcher:    addStepWatcher(cfg.Stats, "filterStaging"),
			WaitCounter:    ch,
			PanicHandlerFn: ch.panicHandler(),
		})
		ch.register("filterStaging", control)
	}
	if p.AbortAfterRows > 0 { // if the batch should be size-capped...
		nextChan, control = components.NewFilterRows(&components.FilterRowsConfig{
			Log:            cfg.Log,
			Name:           "abortAfter",
			InputChan:      nextChan,
			FilterType:     components.FilterRowsAbortAfter,
			FilterMetadata: components.FilterMetadata(strconv.Itoa(p.AbortAfterRows)),
			StepWatcher:    addStepWatcher(cfg.Stats, "abortAfter"),
			WaitCounter:    ch,
			PanicHandlerFn: ch.panicHandler(),
		})
		ch.register("abortAfter", control)
	}
	dedupChan, control := components.NewDedupSortRows(&components.DedupSortRowsConfig{
		Log:                 cfg.Log,
		Name:                "dedupStaging",
		InputChan:           nextChan,
		KeyFieldName:        p.MergeKey,
		ComparisonFieldName: sales.FieldLastUpdate,
		DuplicateCounter:    &duplicates,
		StepWatcher:         addStepWatcher(cfg.Stats, "dedupStaging"),
		WaitCounter:         ch,
		PanicHandlerFn:      ch.panicHandler(),
	})
	ch.register("dedupStaging", control)
	enrichedChan, control := components.NewLookupEnrich(&components.LookupEnrichConfig{
		Log:               cfg.Log,
		Name:              "enrichMerchants",
		InputChan:         dedupChan,
		Db:                cfg.Db,
		SqlText:           components.GetTableSelectSql(append([]string{sales.FieldMerchantId}, dimensionAttributeCols()...), dim.String(), nil),
		KeyFieldName:      sales.FieldMerchantId,
		LookupFields:      dimensionAttributeCols(),
		Policy:            policy,
		UnresolvedCounter: &unresolved,
		StepWatcher:       addStepWatcher(cfg.Stats, "enrichMerchants"),
		WaitCounter:       ch,
		PanicHandlerFn:    ch.panicHandler(),
	})
	ch.register("enrichMerchants", control)
	factChan, control := components.NewSqlQuery(&components.SqlQueryConfig{
		Log:            cfg.Log,
		Name:           "readFact",
		Db:             cfg.Db,
		Sqltext:        components.GetTableSelectSql(sales.FactColumns(), fact.String(), []string{p.MergeKey}),
		StepWatcher:    addStepWatcher(cfg.Stats, "readFact"),
		WaitCounter:    ch,
		PanicHandlerFn: ch.panicHandler(),
	})
	ch.register("readFact", control)
	joinKeys := om.NewOrderedMap()
	joinKeys.Set(p.MergeKey, p.MergeKey)
	compareKeys := om.NewOrderedMap()
	targetOtherCols := om.NewOrderedMap()
	for _, col := range sales.FactColumns() {
		if col == p.MergeKey {
			continue
		}
		compareKeys.Set(col, col)
		targetOtherCols.Set(col, col)
	}
	diffChan, control := components.NewMergeDiff(&components.MergeDiffConfig{
		Log:                       cfg.Log,
		Name:                      "mergeDiff",
		ChanOld:                   factChan,
		ChanNew:                   enrichedChan,
		JoinKeys:                  joinKeys,
		CompareKeys:               compareKeys,
		UpdateComparisonFieldName: sales.FieldLastUpdate,
		ResultFlagKeyName:         c.DiffStatusFieldName,
		StepWatcher:               addStepWatcher(cfg.Stats, "mergeDiff"),
		WaitCounter:               ch,
		PanicHandlerFn:            ch.panicHandler(),
	})
	ch.register("mergeDiff", control)
	mergeChan, control := components.NewTableMerge(&components.TableMergeConfig{
		Log:           cfg.Log,
		Name:          "mergeFact",
		InputChan:     diffChan,
		OutputDb:      cfg.Db,
		ExecBatchSize: p.MergeBatchSize,
		FlagFieldName: c.DiffStatusFieldName,
		SqlStatementGeneratorConfig: shared.SqlStatementGeneratorConfig{
			Log:                 cfg.Log,
			OutputSchema:        fact.GetSchema(),
			OutputTable:         fact.GetTable(),
			TargetKeyCols:       joinKeys,
			TargetOtherCols:     targetOtherCols,
			UpdateComparisonCol: sales.FieldLastUpdate,
		},
		StepWatcher:    addStepWatcher(cfg.Stats, "mergeFact"),
		WaitCounter:    ch,
		PanicHandlerFn: ch.panicHandler(),
	})
	ch.register("mergeFact", control)
	// The merge step emits one summary record once its transaction commits.
	var summary stream.Record
	if err := ch.wait(ctx, mergeChan, func(rec stream.Record) { summary = rec }); err != nil {
		return nil, err
	}
	result := &ReconcileResult{
		DuplicatesDiscarded: duplicates,
		UnresolvedMerchants: unresolved,
	}
	if summary.RecordIsNil() {
		return nil, errors.New("reconcile produced no summary record")
	}
	if result.RowsInserted, err = helper.GetInt64FromInterface(summary.GetData(c.RowsInsertedFieldName)); err != nil {
		return nil, errors.Wrap(err, "unable to read the insert count from the merge summary")
	}
	if result.RowsUpdated, err = helper.GetInt64FromInterface(summary.GetData(c.RowsUpdatedFieldName)); err != nil {
		return nil, errors.Wrap(err, "unable to read the update count from the merge summary")
	}
	cfg.Log.Info("Reconcile complete: ", result)
	return result, nil
}

// ReconcileStagedBatch opens the target connection, applies the stage gate
// and reconciles whatever batch is already sitting in the staging table, for
// callers that run the step standalone rather than as a pipeline stage.
func ReconcileStagedBatch(ctx context.Context, cfg *IngestConfig) (*ReconcileResult, error) {
	cfg.Pipeline = cfg.Pipeline.WithDefaults()
	if cfg.Pipeline.TargetConnection == "" {
		return nil, errors.New("missing target connection name")
	}
	db, closeFn, err := resolveDb(cfg)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	stage, _, _ := stageTables(cfg.Pipeline)
	if _, err := RunStageGate(cfg.Log, db, stage, 1); err != nil {
		return nil, err
	}
	return RunReconcile(ctx, &ReconcileConfig{Log: cfg.Log, Db: db, Pipeline: cfg.Pipeline, Stats: cfg.Stats})
}

// stageNonKeyCols returns the staging columns excluding the merge key.
func stageNonKeyCols(key string) []string {
	cols := make([]string, 0, len(sales.StageColumns()))
	for _, col := range sales.StageColumns() {
		if col != key {
			cols = append(cols, col)
		}
	}
	return cols
}

func lookupPolicyFromConfig(policy string) (components.LookupPolicy, error) {
	switch policy {
	case "", string(components.LookupPolicyNullFill):
		return components.LookupPolicyNullFill, nil
	case string(components.LookupPolicyExcludeRow):
		return components.LookupPolicyExcludeRow, nil
	default:
		return "", fmt.Errorf("unsupported dangling merchant policy %q", policy)
	}
}
