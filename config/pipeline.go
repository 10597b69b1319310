package config

import (
	"github.com/Rohesen/walmart-ingest/constants"
	"github.com/Rohesen/walmart-ingest/helper"
)

// PipelineConfig carries every knob for one ingestion run: where the JSON
// data files live, which warehouse objects to load and how the reconcile
// should behave. It is built once by the caller and passed down explicitly.
type PipelineConfig struct {
	// Object store.
	BucketName      string `errorTxt:"S3 bucket name" mandatory:"yes"`
	BucketRegion    string `errorTxt:"S3 bucket region" mandatory:"yes"`
	BucketPrefix    string
	MerchantsPrefix string // object name prefix for the merchants data files.
	SalesPrefix     string // object name prefix for the sales data files.
	FileNameRegexp  string // optional regexp filter applied to listed object names.

	// Warehouse.
	TargetConnection string `errorTxt:"target connection name" mandatory:"yes"`
	StageName        string `errorTxt:"snowflake external stage" mandatory:"yes"`
	Schema           string
	MerchantsTable   string
	SalesStageTable  string
	SalesFactTable   string
	MergeKey         string

	// Reconcile behaviour.
	PushDown               bool   // reconcile warehouse-side with one MERGE instead of streaming through memory.
	DanglingMerchantPolicy string // NullFill or ExcludeRow.
	FilterRule             string // optional JSON Logic rule applied to staging records on the in-memory path.
	AbortAfterRows         int    // abort the in-memory path after this many staging records; 0 disables.
	AbortOnBadRecord       bool   // fail the load on a malformed JSON line instead of skipping it.
	MergeBatchSize         int    // rows per MERGE statement on the in-memory path.

	// Run behaviour.
	StatsDumpFrequencySeconds int
	ExportConfigType          string // "yaml" or "json" to print the run config instead of executing it.
}

// WithDefaults fills the optional fields that have well-known values.
func (p PipelineConfig) WithDefaults() PipelineConfig {
	if p.MerchantsPrefix == "" {
		p.MerchantsPrefix = constants.DefaultMerchantsPrefix
	}
	if p.SalesPrefix == "" {
		p.SalesPrefix = constants.DefaultSalesPrefix
	}
	if p.MerchantsTable == "" {
		p.MerchantsTable = constants.DefaultMerchantsTable
	}
	if p.SalesStageTable == "" {
		p.SalesStageTable = constants.DefaultSalesStageTable
	}
	if p.SalesFactTable == "" {
		p.SalesFactTable = constants.DefaultSalesFactTable
	}
	if p.MergeKey == "" {
		p.MergeKey = constants.DefaultMergeKey
	}
	if p.MergeBatchSize == 0 {
		p.MergeBatchSize = constants.MergeBatchSizeDefault
	}
	if p.StatsDumpFrequencySeconds == 0 {
		p.StatsDumpFrequencySeconds = constants.StatsCaptureFrequencySeconds
	}
	return p
}

// Validate confirms the mandatory fields are set.
func (p PipelineConfig) Validate() error {
	return helper.ValidateStructIsPopulated(&p)
}
