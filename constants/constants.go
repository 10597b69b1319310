package constants

// Components

const (
	MergeDiffValueNew       = "N"
	MergeDiffValueChanged   = "C"
	MergeDiffValueIdentical = "I"
	DiffStatusFieldName     = "#diffStatus"
	ChanSize                = 20000

	StatsCaptureFrequencySeconds = 5

	TimeFormatYearSeconds = "20060102T150405" // used for human readable file names
	// TimeFormatYearSecondsTZ includes the time zone and is compatible with Snowflake TIMESTAMP_TZ columns.
	TimeFormatYearSecondsTZ = "20060102T150405-0700"

	MergeBatchSizeDefault      = 1000
	MergeCommitSequenceKeyName = "#commitSequence"
	RowCountFieldName          = "#rowCount"
	RowsInsertedFieldName      = "#rowsInserted"
	RowsUpdatedFieldName       = "#rowsUpdated"
	SqlQueryFieldName          = "#sqlQuery"

	EmojiBang = "\U0001F4A5"
)

// Environment / connections

const (
	EnvVarPrefix            = "WMI" // prefix for environment variables in twelveFactorMode
	EnvVarLambdaMode        = EnvVarPrefix + "_LAMBDA_MODE"
	ConnectionTypeStdout    = "stdout"
	ConnectionTypeSnowflake = "snowflake"
	ConnectionTypeMock      = "mock"
	ConnectionTypeS3        = "s3"
)

// Warehouse object defaults, matching the ingestion contract for the two
// JSON datasets (merchants + sales) and the reconciled fact table.

const (
	DefaultMerchantsTable  = "merchants_dim"
	DefaultSalesStageTable = "walmart_sales_stage"
	DefaultSalesFactTable  = "walmart_sales_fact"
	DefaultMergeKey        = "sale_id"

	DefaultMerchantsPrefix = "walmart_ingestion/merchants/"
	DefaultSalesPrefix     = "walmart_ingestion/sales/"
)
