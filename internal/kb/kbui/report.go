package kbui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderReport turns a run Summary and the Phase A conflict diagnostics
// into a Markdown document, rendered through glamour for terminal display
// (or left as plain Markdown when piped to a file).
func RenderReport(s Summary, diagnosticCount int, toTerminal bool) (string, error) {
	var b strings.Builder

	b.WriteString("# kbmerge run report\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| KB1 records | %d |\n", s.KB1Records)
	fmt.Fprintf(&b, "| KB2 records | %d |\n", s.KB2Records)
	fmt.Fprintf(&b, "| Matched | %d |\n", s.Matched)
	fmt.Fprintf(&b, "| Unmatched (KB1) | %d |\n", s.UnmatchedKB1)
	fmt.Fprintf(&b, "| Unmatched (KB2) | %d |\n", s.UnmatchedKB2)
	fmt.Fprintf(&b, "| Dedup-removed (KB1) | %d |\n", s.DedupRemovedKB1)
	fmt.Fprintf(&b, "| Dedup-removed (KB2) | %d |\n", s.DedupRemovedKB2)
	fmt.Fprintf(&b, "| Blacklist size (KB1) | %d |\n", s.BlacklistSizeKB1)
	fmt.Fprintf(&b, "| Blacklist size (KB2) | %d |\n", s.BlacklistSizeKB2)
	fmt.Fprintf(&b, "| Elapsed | %s |\n", s.Elapsed)
	b.WriteString("\n")

	if diagnosticCount > 0 {
		fmt.Fprintf(&b, "Phase A rejected %d candidate pairing(s) on the conflict guard; see the log for details.\n", diagnosticCount)
	} else {
		b.WriteString("No conflict-guard rejections during this run.\n")
	}

	if !toTerminal {
		return b.String(), nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(GetWidth()),
	)
	if err != nil {
		return "", fmt.Errorf("kbui: building markdown renderer: %w", err)
	}
	out, err := renderer.Render(b.String())
	if err != nil {
		return "", fmt.Errorf("kbui: rendering report: %w", err)
	}
	return out, nil
}
