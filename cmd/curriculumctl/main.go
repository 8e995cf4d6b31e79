package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "curriculumctl",
	Short:         "Operator tooling for the curriculum lifecycle service",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	rootCmd.AddCommand(newMigrateCmd(), newFSMCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
