package cmd

import (
	"github.com/Rohesen/walmart-ingest/actions"
	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/spf13/cobra"
)

var createCfg = config.PipelineConfig{}
var createLogLevel string

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the warehouse tables used by ingestion runs",
	Long: `Create the merchants dimension, sales staging and sales fact tables on the
target warehouse if they don't exist already. 'run' does this implicitly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runCreateTables()
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().SortFlags = false
	switches.addFlag(createCmd, &createCfg.TargetConnection, "target", "", true)
	switches.addFlag(createCmd, &createCfg.Schema, "schema", "", false)
	switches.addFlag(createCmd, &createCfg.MerchantsTable, "merchants-table", "", false)
	switches.addFlag(createCmd, &createCfg.SalesStageTable, "stage-table", "", false)
	switches.addFlag(createCmd, &createCfg.SalesFactTable, "fact-table", "", false)
	switches.addFlag(createCmd, &createLogLevel, "log-level", "info", false)
}

func runCreateTables() error {
	log := logger.NewLogger("walmart-ingest", createLogLevel, stackDumpOnPanic)
	ctx, cancel := contextWithInterrupt(log)
	defer cancel()
	return actions.CreateTables(ctx, &actions.IngestConfig{
		Log:              log,
		Connections:      getConnectionLoader(),
		TwelveFactorMode: twelveFactorMode,
		Pipeline:         createCfg,
	})
}
