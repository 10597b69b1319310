package actions

import (
	"fmt"
	"sync/atomic"

	"github.com/Rohesen/walmart-ingest/components"
	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/Rohesen/walmart-ingest/sales"
	"github.com/Rohesen/walmart-ingest/stream"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

type ValidateConfig struct {
	Log      logger.Logger
	Pipeline config.PipelineConfig
	Stats    StatsManager // optional.
}

// ValidateResult holds the record counts that passed schema validation.
type ValidateResult struct {
	MerchantRecords int64 `json:"merchantRecords"`
	SaleRecords     int64 `json:"saleRecords"`
}

func (v ValidateResult) String() string {
	return fmt.Sprintf("merchants=%v sales=%v", v.MerchantRecords, v.SaleRecords)
}

// RunValidate streams both datasets' JSON files straight out of S3 through
// schema validation without touching the warehouse, so a batch can be checked
// before an ingestion run. With AbortOnBadRecord set the first bad line fails
// the action; otherwise bad lines are logged and skipped.
func RunValidate(ctx context.Context, cfg *ValidateConfig) (*ValidateResult, error) {
	cfg.Pipeline = cfg.Pipeline.WithDefaults()
	p := cfg.Pipeline
	result := &ValidateResult{}
	if err := validateDataset(ctx, cfg, "merchants", p.MerchantsPrefix, sales.MerchantRecordFromJson, &result.MerchantRecords); err != nil {
		return nil, errors.Wrap(err, "merchants dataset failed validation")
	}
	if err := validateDataset(ctx, cfg, "sales", p.SalesPrefix, sales.SaleRecordFromJson, &result.SaleRecords); err != nil {
		return nil, errors.Wrap(err, "sales dataset failed validation")
	}
	cfg.Log.Info("Validation complete: ", result)
	return result, nil
}

func validateDataset(ctx context.Context, cfg *ValidateConfig, name string, prefix string, buildFn components.JsonRecordBuilderFunc, count *int64) error {
	p := cfg.Pipeline
	ch := newChain(cfg.Log)
	listChan, control := components.NewS3BucketList(&components.S3BucketListerConfig{
		Log:              cfg.Log,
		Name:             "list-" + name,
		Region:           p.BucketRegion,
		BucketName:       p.BucketName,
		BucketPrefix:     prefix,
		ObjectNameRegexp: p.FileNameRegexp,
		StepWatcher:      addStepWatcher(cfg.Stats, "list-"+name),
		WaitCounter:      ch,
		PanicHandlerFn:   ch.panicHandler(),
	})
	ch.register("list-"+name, control)
	recordChan, control := components.NewS3JsonInput(&components.S3JsonInputConfig{
		Log:                 cfg.Log,
		Name:                "read-" + name,
		Region:              p.BucketRegion,
		BucketName:          p.BucketName,
		BucketPrefix:        prefix,
		InputChan:           listChan,
		InputField4FileName: components.Defaults.ChanField4FileName,
		BuildRecordFn:       buildFn,
		AbortOnBadRecord:    p.AbortOnBadRecord,
		StepWatcher:         addStepWatcher(cfg.Stats, "read-"+name),
		WaitCounter:         ch,
		PanicHandlerFn:      ch.panicHandler(),
	})
	ch.register("read-"+name, control)
	return ch.wait(ctx, recordChan, func(_ stream.Record) {
		atomic.AddInt64(count, 1)
	})
}
