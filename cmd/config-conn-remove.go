package cmd

import (
	"github.com/Rohesen/walmart-ingest/actions"
	"github.com/spf13/cobra"
)

var configConnRemoveCfg = &actions.ConnectionConfig{}

var configConnRemoveCmd = &cobra.Command{
	Use:     "remove",
	Aliases: []string{"rm", "del", "delete"},
	Short:   "Remove a named connection",
	Long:    `Remove a named connection from the config store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		configConnRemoveCfg.ConfigFile = getConnectionGetterSetter()
		return actions.RunConnectionRemove(configConnRemoveCfg)
	},
}

func initConnRemove() {
	configConnCmd.AddCommand(configConnRemoveCmd)
	configConnRemoveCmd.Flags().StringVarP(&configConnRemoveCfg.LogicalName,
		switches["connection-name"].name, switches["connection-name"].shortHand, "",
		switches["connection-name"].desc)
	_ = configConnRemoveCmd.MarkFlagRequired(switches["connection-name"].name)
}
