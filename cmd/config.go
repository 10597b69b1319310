package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure connection details",
	Long: fmt.Sprintf(`Configure connections for use by ingestion runs where:

- Connections are stored in file %q`, connectionsFile.FullPath),
}

func init() {
	rootCmd.AddCommand(configCmd)
}
