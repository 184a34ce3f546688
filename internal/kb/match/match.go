// Package match pairs records across two Knowledge Bases: identifier lookup
// first, name-based candidate scoring second.
package match

import (
	"strconv"
	"strings"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/index"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/record"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/relation"
)

const (
	weightUniqueDisagree = -1000
	weightConflictGuard  = -999
)

// Diagnostic records a Phase A conflict-guard rejection for operator
// visibility; it never affects the matching outcome.
type Diagnostic struct {
	KB1Record  *record.Record
	KB2Record  *record.Record
	KB1IDs     []string
	KB2IDs     []string
}

// Result is the outcome of one Run over KB1.
type Result struct {
	Matched     int
	Diagnostics []Diagnostic
}

// Run performs one pass over kb1Recs (in file order), matching each against
// kb2Index via uniqueRels/nameRels/otherRels, updating kb1Index as pairings
// are confirmed so later conflict guards stay sound.
func Run(kb1Recs []*record.Record, kb1Index, kb2Index *index.Index, rels []*relation.Relation, threshold int) Result {
	uniqueRels := rels0(rels, relation.Unique)
	nameRels := rels0(rels, relation.Name)
	otherRels := rels0(rels, relation.Other)

	var res Result

	for _, e1 := range kb1Recs {
		if e1.State.Used {
			continue
		}

		if tryPhaseA(e1, kb1Index, kb2Index, uniqueRels, &res) {
			res.Matched++
			continue
		}

		if tryPhaseB(e1, kb1Index, kb2Index, uniqueRels, nameRels, otherRels, threshold) {
			res.Matched++
		}
	}

	return res
}

func rels0(rels []*relation.Relation, t relation.Type) []*relation.Relation {
	var out []*relation.Relation
	for _, r := range rels {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// tryPhaseA attempts the unique-id lookup phase for e1, returning true if a
// match was confirmed.
func tryPhaseA(e1 *record.Record, kb1Index, kb2Index *index.Index, uniqueRels []*relation.Relation, res *Result) bool {
	for _, rel := range uniqueRels {
		for _, v := range e1.Field(rel.KB1Ordinal).Values() {
			if rel.Blacklisted(v) {
				continue
			}
			m := index.FirstUnused(kb2Index.Lookup(rel.KB2Ordinal, v))
			if m == nil {
				continue
			}

			ok, kb1IDs, kb2IDs := checkUnique(e1, m, uniqueRels, kb1Index)
			if !ok {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					KB1Record: e1, KB2Record: m, KB1IDs: kb1IDs, KB2IDs: kb2IDs,
				})
				return false
			}

			confirmMatch(e1, m, uniqueRels, kb1Index)
			return true
		}
	}
	return false
}

// checkUnique simulates fusing e1 and m: for every UNIQUE relation and every
// value in m's KB2 field, the only allowed kb1Index lookup outcome is empty
// or {e1}. Returns false plus the offending identifier sets if any relation
// would create a non-unique cluster across KB1.
func checkUnique(e1, m *record.Record, uniqueRels []*relation.Relation, kb1Index *index.Index) (ok bool, kb1IDs, kb2IDs []string) {
	for _, rel := range uniqueRels {
		for _, v := range m.Field(rel.KB2Ordinal).Values() {
			if rel.Blacklisted(v) {
				continue
			}
			hits := kb1Index.Lookup(rel.KB1Ordinal, v)
			for _, h := range hits {
				if h != e1 {
					return false, identifierValues(e1, uniqueRels, true), identifierValues(m, uniqueRels, false)
				}
			}
		}
	}
	return true, nil, nil
}

// identifierValues collects every value of rec across uniqueRels's KB1 (or
// KB2, per kb1Side) ordinals, for diagnostic reporting.
func identifierValues(rec *record.Record, uniqueRels []*relation.Relation, kb1Side bool) []string {
	var out []string
	for _, rel := range uniqueRels {
		ord := rel.KB2Ordinal
		if kb1Side {
			ord = rel.KB1Ordinal
		}
		out = append(out, rec.Field(ord).Values()...)
	}
	return out
}

// confirmMatch records e1<->m as matched/used and updates kb1Index so
// subsequent conflict guards remain sound.
func confirmMatch(e1, m *record.Record, uniqueRels []*relation.Relation, kb1Index *index.Index) {
	e1.State.Matched = m
	m.State.Matched = e1
	m.State.Used = true
	e1.State.Used = true

	for _, rel := range uniqueRels {
		for _, v := range m.Field(rel.KB2Ordinal).Values() {
			if rel.Blacklisted(v) {
				continue
			}
			kb1Index.Insert(rel.KB1Ordinal, v, e1)
		}
	}
}

// tryPhaseB attempts the name-based scoring phase for e1, returning true if
// a match was confirmed.
func tryPhaseB(e1 *record.Record, kb1Index, kb2Index *index.Index, uniqueRels, nameRels, otherRels []*relation.Relation, threshold int) bool {
	order := collectCandidates(e1, kb2Index, nameRels)
	if len(order) == 0 {
		return false
	}

	var best *record.Record
	bestWeight := 0
	for _, c := range order {
		c.State.Weight = scoreCandidate(e1, c, uniqueRels, otherRels, threshold, kb1Index)
		if best == nil || c.State.Weight > bestWeight {
			best = c
			bestWeight = c.State.Weight
		}
	}
	for _, c := range order {
		c.State.Weight = 0
	}

	if best == nil || bestWeight < threshold {
		return false
	}

	confirmMatch(e1, best, uniqueRels, kb1Index)
	return true
}

// collectCandidates gathers every non-used KB2 record reachable through a
// NAME relation's value match, adding one to the record's State.Weight per
// hit. Order is fixed by walking nameRels and e1's own field values in their
// stored order, deduped via seen, so the best-candidate tie-break in
// tryPhaseB is deterministic across runs.
func collectCandidates(e1 *record.Record, kb2Index *index.Index, nameRels []*relation.Relation) []*record.Record {
	seen := make(map[*record.Record]struct{})
	var candidates []*record.Record
	for _, rel := range nameRels {
		for _, v := range e1.Field(rel.KB1Ordinal).Values() {
			for _, c := range index.AllUnused(kb2Index.Lookup(rel.KB2Ordinal, v)) {
				c.State.Weight++
				if _, ok := seen[c]; ok {
					continue
				}
				seen[c] = struct{}{}
				candidates = append(candidates, c)
			}
		}
	}
	return candidates
}

// scoreCandidate computes c's weight against e1, starting from its NAME hit
// count in State.Weight: UNIQUE-disagreement veto, conflict-guard veto, then
// (if the weight is not below threshold) OTHER-relation scoring.
func scoreCandidate(e1, c *record.Record, uniqueRels, otherRels []*relation.Relation, threshold int, kb1Index *index.Index) int {
	weight := c.State.Weight

	for _, rel := range uniqueRels {
		v1, ok1 := e1.Field(rel.KB1Ordinal).First()
		v2, ok2 := c.Field(rel.KB2Ordinal).First()
		if ok1 && ok2 && v1 != v2 {
			weight = weightUniqueDisagree
			break
		}
	}

	// The conflict guard always runs and, on failure, overwrites whatever
	// the disagreement veto set -- a candidate that fails both ends up at
	// -999, not -1000.
	if ok, _, _ := checkUnique(e1, c, uniqueRels, kb1Index); !ok {
		weight = weightConflictGuard
	}

	if weight < threshold {
		return weight
	}

	for _, rel := range otherRels {
		left := e1.Field(rel.KB1Ordinal).Values()
		right := c.Field(rel.KB2Ordinal).Values()
		for _, lv := range left {
			for _, rv := range right {
				if equalOtherValue(lv, rv) {
					weight++
				}
			}
		}
	}

	return weight
}

// equalOtherValue compares two OTHER-relation values: as floats rounded to
// one decimal place if both parse, else as raw strings.
func equalOtherValue(a, b string) bool {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		return roundToTenth(fa) == roundToTenth(fb)
	}
	return a == b
}

// roundToTenth rounds the exact value of the double to one decimal place,
// ties to even, matching Python's round(f, 1) -- round(1.25, 1) is 1.2, and
// round(1.15, 1) is 1.1 because 1.15 is stored slightly below 1.15.
func roundToTenth(f float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 1, 64), 64)
	return r
}
