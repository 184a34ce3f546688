package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	kbconfig "github.com/KNOT-FIT-BUT/kb-tools/internal/kb/config"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/kbui"
)

var (
	jobFile string
	logFile string
	verbose bool

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kbmerge",
	Short: "Merge and deduplicate tabular Knowledge Bases",
	Long: `kbmerge consolidates two flat, tab-separated Knowledge Bases into one:
it deduplicates records within each KB via shared identifier fields, then
matches records across the two KBs by identifier first and name-based
scoring second.`,
	SilenceUsage:      true,
	PersistentPreRunE: rootPersistentPreRun,
}

func rootPersistentPreRun(cmd *cobra.Command, args []string) error {
	if err := kbconfig.Initialize(jobFile); err != nil {
		return err
	}
	logger = kbui.NewLogger(logFile, verbose)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&jobFile, "job", "", "job config file (.toml or .yaml); layered under flags and KBMERGE_* env vars")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs as rotated JSON to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
