package dedup

import (
	"testing"

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

func identRelations(ordinals ...int) []*relation.Relation {
	var out []*relation.Relation
	for _, ord := range ordinals {
		out = append(out, &relation.Relation{Type: relation.Unique, KB1Ordinal: ord})
	}
	return out
}

func has(vs map[string]struct{}, v string) bool {
	_, ok := vs[v]
	return ok
}

func TestRunFusesTransitiveCluster(t *testing.T) {
	// field 0 = wikipedia url, field 1 = freebase url, field 2 = name
	a := rec([]string{"wiki/1"}, []string{"fb/1"}, []string{"Alice"})
	b := rec([]string{"wiki/1"}, nil, nil)       // shares wiki url with a
	c := rec(nil, []string{"fb/1"}, []string{})   // shares freebase url with a

	result := Run([]*record.Record{a, b, c}, identRelations(0, 1))

	if len(result.Records) != 1 {
		t.Fatalf("got %d fused records, want 1", len(result.Records))
	}
	fused := result.Records[0]
	if got, ok := fused.Field(2).First(); !ok || got != "Alice" {
		t.Errorf("fused name = %q, want Alice", got)
	}
	if !a.State.Used || !b.State.Used || !c.State.Used {
		t.Errorf("all cluster members should be marked used")
	}
}

func TestRunLeavesSingletonsUnchanged(t *testing.T) {
	a := rec([]string{"wiki/1"})
	b := rec([]string{"wiki/2"})

	result := Run([]*record.Record{a, b}, identRelations(0))

	if len(result.Records) != 2 {
		t.Fatalf("got %d records, want 2 untouched singletons", len(result.Records))
	}
	if a.State.Used || b.State.Used {
		t.Errorf("singleton records must not be marked used")
	}
}

func TestRunQuarantinesConflictingIdentifier(t *testing.T) {
	// field 0 = link id (shared by a and b), field 1 = uid (a and b disagree,
	// a genuine conflict), field 2 = geo id (b's own, unrelated to the
	// conflict, reaching a third record g).
	//
	// The conflict on field 1 must only quarantine field 0's shared link id;
	// it must not stop field 2's pair -- appearing later in the same
	// record's identifier list -- from still being staged and g still being
	// pulled into the cluster.
	a := rec([]string{"link1"}, []string{"uid-a"}, nil)
	b := rec([]string{"link1"}, []string{"uid-b"}, []string{"geo-b"})
	g := rec(nil, nil, []string{"geo-b"})

	result := Run([]*record.Record{a, b, g}, identRelations(0, 1, 2))

	if len(result.Records) != 1 {
		t.Fatalf("got %d output records, want 1 fused record (a+b+g)", len(result.Records))
	}
	if !a.State.Used || !b.State.Used || !g.State.Used {
		t.Errorf("all three records should fuse despite the uid conflict between a and b")
	}

	vs, ok := result.Blacklist[0]
	if !ok || !has(vs, "link1") {
		t.Fatalf("expected link1 blacklisted on ordinal 0, got %v", result.Blacklist)
	}
	if vs, ok := result.Blacklist[2]; ok && has(vs, "geo-b") {
		t.Errorf("geo-b is unrelated to the conflict and must not be blacklisted, got %v", vs)
	}
}

func TestFeedbackBlacklists(t *testing.T) {
	rels := []*relation.Relation{
		{Type: relation.Unique, KB1Ordinal: 0, KB2Ordinal: 5},
		{Type: relation.Name, KB1Ordinal: 1, KB2Ordinal: 6},
	}
	grouped := map[int]map[string]struct{}{
		0: {"bad-id": {}},
	}

	FeedbackBlacklists(grouped, rels, 0)

	if !rels[0].Blacklisted("bad-id") {
		t.Errorf("expected UNIQUE relation on ordinal 0 to be blacklisted for bad-id")
	}
	if rels[1].Blacklisted("bad-id") {
		t.Errorf("NAME relation must not receive blacklist feedback")
	}
}
