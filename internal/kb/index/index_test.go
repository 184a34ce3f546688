package index

import (
	"testing"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/record"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/relation"
)

func newRec(fields ...[]string) *record.Record {
	r := record.New(len(fields))
	for i, f := range fields {
		r.SetField(i, record.NewCell(f))
	}
	return r
}

func TestNewIndexesOnlyNonOtherRelations(t *testing.T) {
	r1 := newRec([]string{"u1"}, []string{"n1"}, []string{"o1"})
	r2 := newRec([]string{"u2"}, []string{"n1"}, []string{"o2"})

	rels := []*relation.Relation{
		{Type: relation.Unique, KB1Ordinal: 0, KB2Ordinal: 0},
		{Type: relation.Name, KB1Ordinal: 1, KB2Ordinal: 1},
		{Type: relation.Other, KB1Ordinal: 2, KB2Ordinal: 2},
	}

	idx := New([]*record.Record{r1, r2}, rels, KB1Side)

	if !idx.Indexed(0) || !idx.Indexed(1) {
		t.Fatal("expected ordinals 0 and 1 to be indexed")
	}
	if idx.Indexed(2) {
		t.Fatal("OTHER-relation ordinal must not be indexed")
	}

	got := idx.Lookup(1, "n1")
	if len(got) != 2 {
		t.Fatalf("Lookup(1, n1) returned %d records, want 2", len(got))
	}
}

func TestNewRespectsBlacklist(t *testing.T) {
	r1 := newRec([]string{"blocked"})
	r2 := newRec([]string{"ok"})

	rels := []*relation.Relation{
		{Type: relation.Unique, KB1Ordinal: 0, KB2Ordinal: 0, Blacklist: map[string]struct{}{"blocked": {}}},
	}

	idx := New([]*record.Record{r1, r2}, rels, KB1Side)

	if got := idx.Lookup(0, "blocked"); got != nil {
		t.Fatalf("blacklisted value should not be indexed, got %v", got)
	}
	if got := idx.Lookup(0, "ok"); len(got) != 1 {
		t.Fatalf("Lookup(0, ok) = %v, want 1 record", got)
	}
}

func TestFirstAndAllUnused(t *testing.T) {
	r1 := newRec([]string{"a"})
	r2 := newRec([]string{"a"})
	r2.State.Used = true
	r3 := newRec([]string{"a"})

	recs := []*record.Record{r1, r2, r3}
	if got := FirstUnused(recs); got != r1 {
		t.Fatalf("FirstUnused returned wrong record")
	}
	all := AllUnused(recs)
	if len(all) != 2 || all[0] != r1 || all[1] != r3 {
		t.Fatalf("AllUnused = %v, want [r1 r3]", all)
	}
}
