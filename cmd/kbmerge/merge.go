package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	kbconfig "github.com/KNOT-FIT-BUT/kb-tools/internal/kb/config"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/dedup"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/index"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/kbid"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/kbui"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/match"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/record"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/relation"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/render"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/schema"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge two Knowledge Bases into one",
	RunE:  runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.String("first", "", "first KB's record file")
	f.String("second", "", "second KB's record file")
	f.String("first_fields", "", "first KB's fields config")
	f.String("second_fields", "", "second KB's fields config")
	f.String("rel_conf", "", "relation config (required)")
	f.String("output_conf", "", "matched-output field config")
	f.String("other_output_conf", "", "unmatched-output field config")
	f.String("first_sep", "|", "first KB's multi-value separator")
	f.String("second_sep", "|", "second KB's multi-value separator")
	f.String("id_prefix", "kb", "prefix for generated identifiers")
	f.Bool("deduplicate_kb1", false, "deduplicate KB1 before matching")
	f.Bool("deduplicate_kb2", false, "deduplicate KB2 before matching")
	f.StringSlice("id_fields", nil, "identifier field names used for deduplication")
	f.String("output", "", "matched-output file (required)")
	f.String("second_output", "", "file for unmatched KB2 records; empty renders them through the matched template")
	f.Int("treshold", 1, "minimum candidate weight to accept a Phase B match")
	f.Bool("watch", false, "re-run the merge whenever the input files change")
	f.Bool("report", false, "render a Markdown run summary after completing")

	for _, name := range []string{
		"first", "second", "first_fields", "second_fields", "rel_conf",
		"output_conf", "other_output_conf", "first_sep", "second_sep",
		"id_prefix", "deduplicate_kb1", "deduplicate_kb2", "id_fields",
		"output", "second_output", "treshold", "watch", "report",
	} {
		_ = kbconfig.BindPFlag(name, f.Lookup(name))
	}
}

func runMerge(cmd *cobra.Command, args []string) error {
	job := kbconfig.BuildJob()
	if job.RelConf == "" || job.Output == "" {
		return fmt.Errorf("merge: --rel_conf and --output are required")
	}

	if _, err := os.Stat(job.Output); err == nil && !job.Watch {
		if !kbui.PromptYesNo(fmt.Sprintf("output %q already exists, overwrite it?", job.Output), false) {
			return fmt.Errorf("merge: aborted, %q not overwritten", job.Output)
		}
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	logConfigSources(cmd)

	lock := flock.New(job.Output + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("merge: acquiring output lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("merge: output %q is locked by another kbmerge run", job.Output)
	}
	defer lock.Unlock()

	run := func() error {
		return runOnce(job, runID)
	}

	if !job.Watch {
		return run()
	}

	return watchAndRerun(job, run)
}

// logConfigSources reports, at debug level, which layer (flag, env, job
// file, or default) supplied each merge flag's effective value.
func logConfigSources(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		src := kbconfig.ValueSource(f.Name, f.Changed)
		logger.Debug("config value", "flag", f.Name, "source", src.String())
	})
}

func runOnce(job kbconfig.Job, runID string) error {
	started := time.Now()

	stage := kbui.StartStage(logger, "load")
	kb1Schema, err := schema.Load("kb1", job.FirstFields)
	if err != nil {
		return err
	}
	kb2Schema, err := schema.Load("kb2", job.SecondFields)
	if err != nil {
		return err
	}
	kb1Store, err := record.Load("kb1", job.First, job.FirstSep, kb1Schema)
	if err != nil {
		return err
	}
	kb2Store, err := record.Load("kb2", job.Second, job.SecondSep, kb2Schema)
	if err != nil {
		return err
	}
	rels, err := relation.Load(job.RelConf, kb1Schema, kb2Schema)
	if err != nil {
		return err
	}
	stage.Done()

	var dedupRemovedKB1, dedupRemovedKB2 int
	var blacklistKB1, blacklistKB2 int

	if job.DeduplicateKB1 {
		stage = kbui.StartStage(logger, "dedup-kb1")
		before := len(kb1Store.Records)
		identRels := relation.NewIdentifierRelations(kb1Schema, "kb1", job.IDFields)
		result := dedup.Run(kb1Store.Records, identRels)
		kb1Store.Records = result.Records
		dedupRemovedKB1 = before - len(kb1Store.Records)
		for _, vs := range result.Blacklist {
			blacklistKB1 += len(vs)
		}
		dedup.FeedbackBlacklists(result.Blacklist, rels.All, index.KB1Side)
		dedup.ApplyMultiValueTruncation(kb1Store.Records, fieldMultivalued(kb1Schema))
		stage.Done()
	}

	if job.DeduplicateKB2 {
		stage = kbui.StartStage(logger, "dedup-kb2")
		before := len(kb2Store.Records)
		identRels := relation.NewIdentifierRelations(kb2Schema, "kb2", job.IDFields)
		result := dedup.Run(kb2Store.Records, identRels)
		kb2Store.Records = result.Records
		dedupRemovedKB2 = before - len(kb2Store.Records)
		for _, vs := range result.Blacklist {
			blacklistKB2 += len(vs)
		}
		dedup.FeedbackBlacklists(result.Blacklist, rels.All, index.KB2Side)
		dedup.ApplyMultiValueTruncation(kb2Store.Records, fieldMultivalued(kb2Schema))
		stage.Done()
	}

	stage = kbui.StartStage(logger, "index")
	kb1Index := index.New(kb1Store.Records, rels.All, index.KB1Side)
	kb2Index := index.New(kb2Store.Records, rels.All, index.KB2Side)
	stage.Done()

	stage = kbui.StartStage(logger, "match")
	matchResult := match.Run(kb1Store.Records, kb1Index, kb2Index, rels.All, job.Threshold)
	stage.Done()
	logger.Info("match complete", "matched", matchResult.Matched, "conflict_rejections", len(matchResult.Diagnostics))
	for _, d := range matchResult.Diagnostics {
		logger.Warn("phase a conflict guard rejected pairing", "kb1_ids", d.KB1IDs, "kb2_ids", d.KB2IDs)
	}

	stage = kbui.StartStage(logger, "render")
	outputCfg, err := render.LoadConfig(job.OutputConf, kb1Schema, kb2Schema, false)
	if err != nil {
		return err
	}
	otherCfg, err := render.LoadConfig(job.OtherOutputConf, kb1Schema, kb2Schema, true)
	if err != nil {
		return err
	}
	renderer := &render.Renderer{
		Matched:   outputCfg,
		Unmatched: otherCfg,
		Relations: rels.All,
		KB1Schema: kb1Schema,
		KB2Schema: kb2Schema,
		IDs:       kbid.New(job.IDPrefix),
	}

	if err := writeOutputs(renderer, kb1Store.Records, kb2Store.Records, job); err != nil {
		return err
	}
	stage.Done()

	unmatchedKB1, unmatchedKB2 := countUnmatched(kb1Store.Records, kb2Store.Records)
	summary := kbui.Summary{
		KB1Records:       len(kb1Store.Records),
		KB2Records:       len(kb2Store.Records),
		Matched:          matchResult.Matched,
		UnmatchedKB1:     unmatchedKB1,
		UnmatchedKB2:     unmatchedKB2,
		DedupRemovedKB1:  dedupRemovedKB1,
		DedupRemovedKB2:  dedupRemovedKB2,
		BlacklistSizeKB1: blacklistKB1,
		BlacklistSizeKB2: blacklistKB2,
		Elapsed:          time.Since(started),
	}
	fmt.Println(summary.Render(kbui.ShouldUseColor()))
	printDiagnosticLine(len(matchResult.Diagnostics), kbui.ShouldUseColor())

	if job.Report {
		report, err := kbui.RenderReport(summary, len(matchResult.Diagnostics), kbui.IsTerminal())
		if err != nil {
			return err
		}
		fmt.Println(report)
	}

	return nil
}

// printDiagnosticLine prints a one-line colored note about Phase A conflict
// guard rejections, matching kbui's pass/warn palette.
func printDiagnosticLine(count int, useColor bool) {
	if count == 0 {
		line := "no conflict-guard rejections"
		if useColor {
			line = kbui.SuccessStyle.Render(line)
		}
		fmt.Println(line)
		return
	}
	line := fmt.Sprintf("%d candidate pairing(s) rejected by the conflict guard (see log)", count)
	if useColor {
		line = kbui.WarningStyle.Render(line)
	}
	fmt.Println(line)
}

func writeOutputs(renderer *render.Renderer, kb1Recs, kb2Recs []*record.Record, job kbconfig.Job) error {
	out, err := os.Create(job.Output) // #nosec G304 -- path supplied by CLI flag
	if err != nil {
		return err
	}
	defer out.Close()
	if err := renderer.WriteMatched(out, kb1Recs); err != nil {
		return err
	}
	if err := renderer.WriteUnmatched(out, kb1Recs); err != nil {
		return err
	}

	if job.SecondOutput == "" {
		return renderer.WriteUnmatchedKB2Templated(out, kb2Recs)
	}

	second, err := os.Create(job.SecondOutput) // #nosec G304 -- path supplied by CLI flag
	if err != nil {
		return err
	}
	defer second.Close()
	return render.WriteUnmatchedKB2Raw(second, kb2Recs)
}

func countUnmatched(kb1Recs, kb2Recs []*record.Record) (kb1, kb2 int) {
	for _, r := range kb1Recs {
		if !r.State.Used {
			kb1++
		}
	}
	for _, r := range kb2Recs {
		if !r.State.Used {
			kb2++
		}
	}
	return
}

// fieldMultivalued returns a lookup closure over sch's fields, for
// dedup.ApplyMultiValueTruncation's per-ordinal multivalued check.
func fieldMultivalued(sch *schema.Schema) func(ordinal int) bool {
	fields := sch.Fields()
	return func(ordinal int) bool { return fields[ordinal].Multivalued }
}

// watchAndRerun re-invokes run whenever any watched input file changes,
// using fsnotify so long-lived jobs pick up edited inputs without a
// restart.
func watchAndRerun(job kbconfig.Job, run func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("merge: starting watcher: %w", err)
	}
	defer watcher.Close()

	watched := map[string]struct{}{}
	for _, path := range []string{job.First, job.Second, job.FirstFields, job.SecondFields, job.RelConf, job.OutputConf, job.OtherOutputConf} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("merge: watching %q: %w", dir, err)
		}
		watched[dir] = struct{}{}
	}

	if err := run(); err != nil {
		logger.Error("merge failed", "error", err)
	}

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !isWatchedInput(ev.Name, job) {
				continue
			}
			logger.Info("input changed, re-running merge", "file", ev.Name)
			if err := run(); err != nil {
				logger.Error("merge failed", "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

func isWatchedInput(name string, job kbconfig.Job) bool {
	base := filepath.Base(name)
	for _, path := range []string{job.First, job.Second, job.FirstFields, job.SecondFields, job.RelConf, job.OutputConf, job.OtherOutputConf} {
		if path != "" && filepath.Base(path) == base {
			return true
		}
	}
	return false
}
