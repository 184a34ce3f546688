package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	kbconfig "github.com/KNOT-FIT-BUT/kb-tools/internal/kb/config"
)

var initOutputPath string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a kbmerge job file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().StringVar(&initOutputPath, "out", "job.toml", "path to write the generated job file")
}

func runInit(cmd *cobra.Command, args []string) error {
	job := kbconfig.Job{
		FirstSep:   "|",
		SecondSep:  "|",
		IDPrefix:   "kb",
		Threshold:  1,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("First KB record file").Value(&job.First),
			huh.NewInput().Title("Second KB record file").Value(&job.Second),
			huh.NewInput().Title("First KB fields config").Value(&job.FirstFields),
			huh.NewInput().Title("Second KB fields config").Value(&job.SecondFields),
			huh.NewInput().Title("Relation config").Value(&job.RelConf),
		),
		huh.NewGroup(
			huh.NewInput().Title("Matched-output field config").Value(&job.OutputConf),
			huh.NewInput().Title("Unmatched-output field config").Value(&job.OtherOutputConf),
			huh.NewInput().Title("Matched output file").Value(&job.Output),
			huh.NewInput().Title("Identifier prefix").Value(&job.IDPrefix),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Deduplicate KB1 before matching?").Value(&job.DeduplicateKB1),
			huh.NewConfirm().Title("Deduplicate KB2 before matching?").Value(&job.DeduplicateKB2),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("init: running form: %w", err)
	}

	f, err := os.Create(initOutputPath) // #nosec G304 -- path supplied by CLI flag
	if err != nil {
		return fmt.Errorf("init: creating %q: %w", initOutputPath, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(job); err != nil {
		return fmt.Errorf("init: writing job file: %w", err)
	}

	fmt.Printf("wrote %s\n", initOutputPath)
	return nil
}
