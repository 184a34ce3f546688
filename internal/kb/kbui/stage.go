package kbui

import (
	"fmt"
	"log/slog"
	"time"
)

// Stage times one pipeline phase (schema load, dedup, match, render) and
// logs its duration on completion, mirroring the stage-by-stage progress
// reporting the original tool printed to stderr.
type Stage struct {
	name  string
	start time.Time
	log   *slog.Logger
}

// StartStage begins timing a named stage and announces it.
func StartStage(log *slog.Logger, name string) *Stage {
	log.Info("stage started", "stage", name)
	return &Stage{name: name, start: time.Now(), log: log}
}

// Done logs the stage's elapsed duration.
func (s *Stage) Done() {
	s.log.Info("stage finished", "stage", s.name, "elapsed", time.Since(s.start).Round(time.Millisecond).String())
}

// Summary is the set of run counters the original tool printed at the end
// of a merge: how many KB1 records matched, how many were left unmatched,
// and how much deduplication removed from each side.
type Summary struct {
	KB1Records       int
	KB2Records       int
	Matched          int
	UnmatchedKB1     int
	UnmatchedKB2     int
	DedupRemovedKB1  int
	DedupRemovedKB2  int
	BlacklistSizeKB1 int
	BlacklistSizeKB2 int
	Elapsed          time.Duration
}

// Render prints the summary as a bordered table when color is available,
// falling back to plain key: value lines otherwise (e.g. when piped).
func (s Summary) Render(useColor bool) string {
	rows := [][]string{
		{"KB1 records", fmt.Sprint(s.KB1Records)},
		{"KB2 records", fmt.Sprint(s.KB2Records)},
		{"Matched", fmt.Sprint(s.Matched)},
		{"Unmatched (KB1)", fmt.Sprint(s.UnmatchedKB1)},
		{"Unmatched (KB2)", fmt.Sprint(s.UnmatchedKB2)},
		{"Dedup-removed (KB1)", fmt.Sprint(s.DedupRemovedKB1)},
		{"Dedup-removed (KB2)", fmt.Sprint(s.DedupRemovedKB2)},
		{"Blacklist size (KB1)", fmt.Sprint(s.BlacklistSizeKB1)},
		{"Blacklist size (KB2)", fmt.Sprint(s.BlacklistSizeKB2)},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
	}

	if !useColor {
		out := ""
		for _, r := range rows {
			out += fmt.Sprintf("%s: %s\n", r[0], r[1])
		}
		return out
	}

	t := NewSummaryTable(GetWidth())
	t.Headers("Metric", "Value")
	for _, r := range rows {
		t.Row(r[0], r[1])
	}
	return t.String()
}
