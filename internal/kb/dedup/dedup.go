// Package dedup fuses clusters of records within one KB that describe the
// same entity via shared identifier fields.
package dedup

import (
	"sort"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/index"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/record"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/relation"
)

// pair is a (field ordinal, value) identifier attribution.
type pair struct {
	ord int
	val string
}

// blacklist is the mutable B of quarantined (field_ord, value) pairs
// accumulated over a whole dedup pass.
type blacklist map[pair]struct{}

func (b blacklist) has(p pair) bool {
	_, ok := b[p]
	return ok
}

func (b blacklist) add(p pair) { b[p] = struct{}{} }

// arrival is a BFS queue entry: a record reached via a given identifier.
type arrival struct {
	rec  *record.Record
	from pair
}

// Result is the outcome of deduplicating one KB.
type Result struct {
	// Records is the post-dedup record set: fused records plus untouched
	// singletons, replacing the KB's original record list.
	Records []*record.Record

	// Blacklist is the final per-field-ordinal blacklist accumulated
	// during collection, for feedback into cross-KB UNIQUE relations.
	Blacklist map[int]map[string]struct{}
}

// Run deduplicates recs using identifierFields (qualified down to the
// ordinals present via identRels, synthesised by
// relation.NewIdentifierRelations). identRels must all be of type UNIQUE
// with KB1Ordinal set to the identifier field's ordinal.
func Run(recs []*record.Record, identRels []*relation.Relation) Result {
	if len(identRels) == 0 {
		return Result{Records: recs}
	}

	idx := index.New(recs, identRels, index.KB1Side)
	identOrdinals := make([]int, 0, len(identRels))
	for _, r := range identRels {
		identOrdinals = append(identOrdinals, r.KB1Ordinal)
	}

	B := make(blacklist)
	fused := make([]*record.Record, 0, len(recs))

	for _, seed := range recs {
		if seed.State.Used {
			continue
		}
		collected := collectCluster(seed, identOrdinals, idx, B)
		fused = append(fused, fuseCluster(seed, collected))
	}

	return Result{Records: fused, Blacklist: groupByOrdinal(B)}
}

// collectCluster runs the breadth-first identifier-sharing traversal seeded
// at seed, returning the set of matched records reachable through
// non-conflicting identifiers, and mutating B with any newly-discovered
// conflicts.
func collectCluster(seed *record.Record, identOrdinals []int, idx *index.Index, B blacklist) []*record.Record {
	collected := make(map[int]map[string]struct{})

	queue := []arrival{{rec: seed, from: pair{ord: -1}}}
	queued := map[*record.Record]struct{}{seed: {}}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		if e.from.ord != -1 && B.has(e.from) {
			continue
		}

		curIDs := curIdentifiers(e.rec, identOrdinals, B)

		type staged struct {
			p         pair
			reachable []*record.Record
		}
		var stagedCandidates []staged

		for _, p := range curIDs {
			existing, ok := collected[p.ord]
			if ok {
				if _, already := existing[p.val]; already {
					continue
				}
			}
			if ok && len(existing) > 0 {
				// Conflict on this identifier: every pair in curIDs whose
				// value is already attributed in collected gets quarantined.
				// Only this pair is dropped; the rest of e's identifiers
				// are still evaluated below, so an unrelated, non-conflicting
				// identifier later in curIDs still stages and enqueues its
				// reachable records.
				for _, cp := range curIDs {
					if vs, has := collected[cp.ord]; has {
						if _, present := vs[cp.val]; present {
							delete(vs, cp.val)
							B.add(cp)
						}
					}
				}
				continue
			}
			reachable := idx.Lookup(p.ord, p.val)
			stagedCandidates = append(stagedCandidates, staged{p: p, reachable: reachable})
		}

		for _, sc := range stagedCandidates {
			if collected[sc.p.ord] == nil {
				collected[sc.p.ord] = make(map[string]struct{})
			}
			collected[sc.p.ord][sc.p.val] = struct{}{}
			for _, r := range sc.reachable {
				if _, already := queued[r]; already {
					continue
				}
				queued[r] = struct{}{}
				queue = append(queue, arrival{rec: r, from: sc.p})
			}
		}
	}

	// Walk identOrdinals (a fixed order) rather than ranging over the
	// collected map, and append to an ordered slice deduped by a seen-set,
	// so cluster member order -- and therefore fuseCluster's tie-break on
	// equal non-empty-field counts -- is deterministic across runs.
	seen := map[*record.Record]struct{}{seed: {}}
	matches := []*record.Record{seed}
	for _, ord := range identOrdinals {
		vs, ok := collected[ord]
		if !ok {
			continue
		}
		values := make([]string, 0, len(vs))
		for v := range vs {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			for _, r := range idx.Lookup(ord, v) {
				if _, already := seen[r]; already {
					continue
				}
				seen[r] = struct{}{}
				matches = append(matches, r)
			}
		}
	}

	return matches
}

// curIdentifiers returns e's (ordinal, value) identifier pairs over
// identOrdinals, skipping any pair already in B.
func curIdentifiers(e *record.Record, identOrdinals []int, B blacklist) []pair {
	var out []pair
	for _, ord := range identOrdinals {
		for _, v := range e.Field(ord).Values() {
			p := pair{ord: ord, val: v}
			if B.has(p) {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

// fuseCluster marks every cluster member used and folds their values into a
// fusion base, or returns the seed unchanged if the cluster has only one
// member.
func fuseCluster(seed *record.Record, matches []*record.Record) *record.Record {
	if len(matches) <= 1 {
		return seed
	}

	members := make([]*record.Record, len(matches))
	copy(members, matches)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].CountNonEmptyFields() > members[j].CountNonEmptyFields()
	})

	base := members[0].Clone()
	for _, m := range members {
		m.State.Used = true
		for ord := 0; ord < m.FieldCount(); ord++ {
			cell := base.Field(ord)
			for _, v := range m.Field(ord).Values() {
				cell.Add(v)
			}
			base.SetField(ord, cell)
		}
	}

	return base
}

// groupByOrdinal re-groups the flat (ord, value) blacklist into a
// per-ordinal value-set map for feedback into relation blacklists.
func groupByOrdinal(B blacklist) map[int]map[string]struct{} {
	out := make(map[int]map[string]struct{})
	for p := range B {
		if out[p.ord] == nil {
			out[p.ord] = make(map[string]struct{})
		}
		out[p.ord][p.val] = struct{}{}
	}
	return out
}

// ApplyMultiValueTruncation truncates every non-multivalued field of recs
// to at most one value, per the schema's Multivalued flag. Called by the
// caller after Run using its schema (dedup itself has no schema access).
func ApplyMultiValueTruncation(recs []*record.Record, multivalued func(ordinal int) bool) {
	for _, r := range recs {
		for ord := 0; ord < r.FieldCount(); ord++ {
			if multivalued(ord) {
				continue
			}
			c := r.Field(ord)
			if len(c.Values()) > 1 {
				c.Truncate()
				r.SetField(ord, c)
			}
		}
	}
}

// FeedbackBlacklists unions a post-dedup blacklist (grouped per field
// ordinal) into every UNIQUE cross-KB relation whose KB-side ordinal
// matches, via side to pick the relevant ordinal on each relation.
func FeedbackBlacklists(grouped map[int]map[string]struct{}, rels []*relation.Relation, side index.Side) {
	for _, r := range rels {
		if r.Type != relation.Unique {
			continue
		}
		ord := r.KB1Ordinal
		if side == index.KB2Side {
			ord = r.KB2Ordinal
		}
		if vs, ok := grouped[ord]; ok {
			r.AddBlacklist(vs)
		}
	}
}
