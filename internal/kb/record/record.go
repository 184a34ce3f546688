// Package record holds parsed KB records and their per-record match state.
package record

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/kberr"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/schema"
)

const freebaseFieldName = "FREEBASE URL"
const freebaseCanonicalPrefix = "http://www.freebase.com/"
const freebaseMarker = "freebase.com/"

// Cell is a set of non-empty, trimmed values, insertion-ordered so output
// rendering can be deterministic. An empty cell is represented as a nil or
// zero-length Cell, never a Cell containing "".
type Cell struct {
	order  []string
	lookup map[string]struct{}
}

// NewCell builds a Cell from raw parts, trimming, dropping empties, and
// collapsing duplicates while keeping first-seen order.
func NewCell(parts []string) Cell {
	c := Cell{lookup: make(map[string]struct{}, len(parts))}
	for _, p := range parts {
		v := strings.TrimSpace(p)
		if v == "" {
			continue
		}
		c.Add(v)
	}
	return c
}

// Add inserts a value if not already present, preserving insertion order.
func (c *Cell) Add(v string) {
	if c.lookup == nil {
		c.lookup = make(map[string]struct{})
	}
	if _, ok := c.lookup[v]; ok {
		return
	}
	c.lookup[v] = struct{}{}
	c.order = append(c.order, v)
}

// Values returns the cell's values in insertion order. Do not mutate.
func (c Cell) Values() []string { return c.order }

// Empty reports whether the cell holds no values.
func (c Cell) Empty() bool { return len(c.order) == 0 }

// Has reports whether v is present in the cell.
func (c Cell) Has(v string) bool {
	_, ok := c.lookup[v]
	return ok
}

// First returns the first-inserted value and true, or "" and false if empty.
func (c Cell) First() (string, bool) {
	if len(c.order) == 0 {
		return "", false
	}
	return c.order[0], true
}

// Truncate drops every value but the first.
func (c *Cell) Truncate() {
	if len(c.order) <= 1 {
		return
	}
	first := c.order[0]
	c.order = c.order[:1]
	for v := range c.lookup {
		if v != first {
			delete(c.lookup, v)
		}
	}
}

// State carries the mutable, per-record data written during dedup and
// matching. It is kept separate from Record's immutable cells so the
// matcher and deduplicator can reason about aliasing without touching
// parsed content.
type State struct {
	Matched *Record // at most one match across KBs
	Used    bool    // consumed by a match or a dedup fusion
	Weight  int     // transient score, reset between candidate evaluations
}

// Record is one parsed KB line: a fixed-width array of Cells plus the
// mutable State each pass through dedup/match updates.
type Record struct {
	cells []Cell
	State State
}

// New allocates a Record with fieldCount empty cells, for callers building
// records outside of Load (dedup fusion bases, tests).
func New(fieldCount int) *Record {
	return &Record{cells: make([]Cell, fieldCount)}
}

// FieldCount returns the number of cells (always equal to the owning
// Schema's FieldCount).
func (r *Record) FieldCount() int { return len(r.cells) }

// Field returns the cell at ordinal.
func (r *Record) Field(ordinal int) Cell { return r.cells[ordinal] }

// SetField replaces the cell at ordinal.
func (r *Record) SetField(ordinal int, c Cell) { r.cells[ordinal] = c }

// CountNonEmptyFields counts cells holding at least one value; used by
// dedup's fusion-base selection (the record with the most populated fields
// wins).
func (r *Record) CountNonEmptyFields() int {
	n := 0
	for _, c := range r.cells {
		if !c.Empty() {
			n++
		}
	}
	return n
}

// Clone copies the record's cells (values and lookup sets) into an
// independent record with fresh State, used as the fusion base so mutating
// it does not affect the original member records.
func (r *Record) Clone() *Record {
	cells := make([]Cell, len(r.cells))
	for i, c := range r.cells {
		cells[i] = NewCell(c.order)
	}
	return &Record{cells: cells}
}

// Store is the parsed record set for one KB, loaded once at startup.
type Store struct {
	KBName  string
	Sep     string
	Records []*Record
}

// Load parses a tab-separated record file against sch, applying Freebase URL
// normalisation when the schema declares a FREEBASE URL field.
func Load(kbName, path, sep string, sch *schema.Schema) (*Store, error) {
	f, err := os.Open(path) // #nosec G304 -- path supplied by CLI flag
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open record file %q: %v", kberr.ErrIO, path, err)
	}
	defer f.Close()

	store := &Store{KBName: kbName, Sep: sep}

	freebaseOrdinal := -1
	if field, ok := sch.Lookup(kbName + "." + freebaseFieldName); ok {
		freebaseOrdinal = field.Ordinal
	}

	fieldCount := sch.FieldCount()
	scanner := bufio.NewScanner(f)
	// Records can legitimately be very long (many multi-valued URLs); raise
	// the scan buffer past bufio's 64KiB default.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}

		columns := strings.Split(line, "\t")
		if len(columns) != fieldCount {
			return nil, fmt.Errorf("%w: %s line %d: got %d columns, want %d: %q",
				kberr.ErrSchemaMismatch, path, lineNo, len(columns), fieldCount, line)
		}

		rec := &Record{cells: make([]Cell, fieldCount)}
		for i, col := range columns {
			rec.cells[i] = NewCell(strings.Split(col, sep))
		}
		if freebaseOrdinal >= 0 {
			fixFreebaseURL(&rec.cells[freebaseOrdinal])
		}
		store.Records = append(store.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading record file %q: %v", kberr.ErrIO, path, err)
	}

	return store, nil
}

// fixFreebaseURL rewrites any value containing "freebase.com/" that does not
// already contain the canonical "http://www.freebase.com/" prefix.
//
// The guard is intentionally asymmetric: a "freebase.com/" occurrence can
// still be rewritten even when a different scheme already precedes it, as
// long as the canonical prefix itself isn't already present.
func fixFreebaseURL(c *Cell) {
	rewritten := make([]string, 0, len(c.order))
	changed := false
	for _, v := range c.order {
		if strings.Contains(v, freebaseMarker) && !strings.Contains(v, freebaseCanonicalPrefix) {
			idx := strings.Index(v, freebaseMarker)
			rewritten = append(rewritten, "http://www."+v[idx:])
			changed = true
		} else {
			rewritten = append(rewritten, v)
		}
	}
	if !changed {
		return
	}
	*c = NewCell(rewritten)
}
