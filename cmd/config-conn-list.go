package cmd

import (
	"fmt"

	"github.com/Rohesen/walmart-ingest/actions"
	"github.com/spf13/cobra"
)

var configConnListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all connections",
	Long: fmt.Sprintf(`List connections stored in config store %q
by printing them all to STDOUT`,
		connectionsFile.FullPath),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg := actions.ConnectionConfig{ConfigFile: getConnectionGetterSetter()}
		return actions.RunConnectionList(&cfg)
	},
}

func initConnList() {
	configConnCmd.AddCommand(configConnListCmd)
}
