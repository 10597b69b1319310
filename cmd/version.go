package cmd

import (
	"fmt"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information for Walmart Ingest",
	Long:  `Show version information for Walmart Ingest`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf(`Walmart Ingest
  Version:	%v
  Build date:	%v
`, version, buildDate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
