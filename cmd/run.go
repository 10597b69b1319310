package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rohesen/walmart-ingest/actions"
	"github.com/Rohesen/walmart-ingest/config"
	"github.com/Rohesen/walmart-ingest/logger"
	"github.com/spf13/cobra"
	"golang.org/x/net/context"
)

var runCfg = config.PipelineConfig{}
var runLogLevel string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ingestion batch: create tables, bulk-load both datasets, gate and reconcile",
	Long: `Run the full ingestion batch against the target warehouse:

- Create the merchants dimension, sales staging and sales fact tables if missing
- Bulk-load the merchants and sales JSON files from S3 concurrently, replacing prior contents
- Stop if the staging table landed empty
- Merge the staged sales into the fact table with merchant enrichment, reporting
  how many rows were inserted and updated
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runIngest()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().SortFlags = false
	addPipelineFlags(runCmd, &runCfg, true)
	switches.addFlag(runCmd, &runCfg.ExportConfigType, "output", "", false)
	switches.addFlag(runCmd, &runLogLevel, "log-level", "info", false)
}

func runIngest() error {
	log := logger.NewLogger("walmart-ingest", runLogLevel, stackDumpOnPanic)
	if runCfg.ExportConfigType != "" { // if the run config should be printed, not executed...
		p := runCfg.WithDefaults()
		return actions.ExportPipelineConfig(log, &p, os.Stdout, runCfg.ExportConfigType)
	}
	ctx, cancel := contextWithInterrupt(log)
	defer cancel()
	result, err := actions.RunIngest(ctx, &actions.IngestConfig{
		Log:              log,
		Connections:      getConnectionLoader(),
		TwelveFactorMode: twelveFactorMode,
		Pipeline:         runCfg,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Run complete: %v\n", result)
	return nil
}

// contextWithInterrupt returns a context cancelled by CTRL-C or SIGTERM so
// in-flight transactions roll back before the process exits.
func contextWithInterrupt(log logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case x := <-c: // wait for interrupt...
			fmt.Println()                   // add new line char for clean CLI look n feel.
			log.Info("Caught ", x.String()) // log the interrupt.
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
