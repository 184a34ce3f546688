package match

import (
	"testing"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/index"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/record"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/relation"
)

func rec(fields ...[]string) *record.Record {
	r := record.New(len(fields))
	for i, f := range fields {
		r.SetField(i, record.NewCell(f))
	}
	return r
}

// Both KBs share field layout: 0 = unique id, 1 = name, 2 = numeric attr.
func uniqueRel() *relation.Relation { return &relation.Relation{Type: relation.Unique, KB1Ordinal: 0, KB2Ordinal: 0} }
func nameRel() *relation.Relation   { return &relation.Relation{Type: relation.Name, KB1Ordinal: 1, KB2Ordinal: 1} }
func otherRel() *relation.Relation  { return &relation.Relation{Type: relation.Other, KB1Ordinal: 2, KB2Ordinal: 2} }

func TestRunPhaseAUniqueMatch(t *testing.T) {
	e1 := rec([]string{"id-1"}, []string{"Alice"}, nil)
	m := rec([]string{"id-1"}, []string{"Different Name"}, nil)

	rels := []*relation.Relation{uniqueRel(), nameRel()}
	kb1Index := index.New([]*record.Record{e1}, rels, index.KB1Side)
	kb2Index := index.New([]*record.Record{m}, rels, index.KB2Side)

	res := Run([]*record.Record{e1}, kb1Index, kb2Index, rels, 1)

	if res.Matched != 1 {
		t.Fatalf("Matched = %d, want 1", res.Matched)
	}
	if e1.State.Matched != m || m.State.Matched != e1 {
		t.Fatalf("expected e1 and m to be mutually matched")
	}
}

func TestRunPhaseBNameScoring(t *testing.T) {
	e1 := rec(nil, []string{"Alice"}, []string{"1.04"})
	c1 := rec(nil, []string{"Alice"}, []string{"1.03"}) // rounds equal: +1
	c2 := rec(nil, []string{"Alice"}, []string{"9.99"}) // no other match

	rels := []*relation.Relation{nameRel(), otherRel()}
	kb1Index := index.New([]*record.Record{e1}, rels, index.KB1Side)
	kb2Index := index.New([]*record.Record{c1, c2}, rels, index.KB2Side)

	res := Run([]*record.Record{e1}, kb1Index, kb2Index, rels, 1)

	if res.Matched != 1 {
		t.Fatalf("Matched = %d, want 1", res.Matched)
	}
	if e1.State.Matched != c1 {
		t.Fatalf("expected e1 matched to c1 (higher OTHER score), got %v", e1.State.Matched)
	}
}

func TestUniqueDisagreementVetoesCandidate(t *testing.T) {
	e1 := rec([]string{"id-a"}, []string{"Alice"}, nil)
	c := rec([]string{"id-b"}, []string{"Alice"}, nil) // same name, different unique id

	rels := []*relation.Relation{uniqueRel(), nameRel()}
	kb1Index := index.New([]*record.Record{e1}, rels, index.KB1Side)
	kb2Index := index.New([]*record.Record{c}, rels, index.KB2Side)

	res := Run([]*record.Record{e1}, kb1Index, kb2Index, rels, 1)

	if res.Matched != 0 {
		t.Fatalf("Matched = %d, want 0 (unique disagreement should veto)", res.Matched)
	}
	if e1.State.Matched != nil {
		t.Fatalf("e1 should remain unmatched")
	}
}

func TestEqualOtherValue(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.04", "1.03", true},
		{"1.04", "1.16", false},
		{"abc", "abc", true},
		{"abc", "xyz", false},
		// exact .x5 ties round half to even, matching Python's round() on
		// the same IEEE754 doubles: 1.25 is exact and rounds down to the
		// even 1.2; 1.15 isn't exactly representable (it's stored fractionally
		// below 1.15) so it rounds down to 1.1, not up to 1.2.
		{"1.25", "1.2", true},
		{"1.15", "1.1", true},
		{"-1.25", "-1.2", true},
	}
	for _, tt := range tests {
		if got := equalOtherValue(tt.a, tt.b); got != tt.want {
			t.Errorf("equalOtherValue(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
