package cmd

import (
	"fmt"

	"github.com/Rohesen/walmart-ingest/actions"
	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/spf13/cobra"
)

var validateCfg = config.PipelineConfig{}
var validateLogLevel string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the JSON data files in S3 against the dataset schemas",
	Long: `Stream both datasets' JSON files straight out of S3 through schema validation
without touching the warehouse, so a batch can be checked before a run:

- Each line must be a JSON object matching the merchants or sales schema
- Bad lines are logged and skipped, or fail the command with abort-on-bad-record
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().SortFlags = false
	switches.addFlag(validateCmd, &validateCfg.BucketName, "s3-bucket", "", true)
	switches.addFlag(validateCmd, &validateCfg.BucketRegion, "s3-region", "", true)
	switches.addFlag(validateCmd, &validateCfg.MerchantsPrefix, "merchants-prefix", "", false)
	switches.addFlag(validateCmd, &validateCfg.SalesPrefix, "sales-prefix", "", false)
	switches.addFlag(validateCmd, &validateCfg.FileNameRegexp, "file-regexp", "", false)
	switches.addFlag(validateCmd, &validateCfg.AbortOnBadRecord, "abort-on-bad-record", "", false)
	switches.addFlag(validateCmd, &validateLogLevel, "log-level", "info", false)
}

func runValidate() error {
	log := logger.NewLogger("walmart-ingest", validateLogLevel, stackDumpOnPanic)
	ctx, cancel := contextWithInterrupt(log)
	defer cancel()
	result, err := actions.RunValidate(ctx, &actions.ValidateConfig{
		Log:      log,
		Pipeline: validateCfg,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Validation complete: %v\n", result)
	return nil
}
