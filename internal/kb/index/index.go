// Package index builds field-indexed lookup structures over a KB's records.
package index

import (
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/record"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/relation"
)

// Index maps, for a subset of field ordinals, value -> set of records
// carrying that value in that field. Only ordinals mentioned by a non-OTHER
// relation are populated.
type Index struct {
	byOrdinal map[int]map[string][]*record.Record
}

// New builds an Index over recs for every KB-side ordinal referenced by a
// non-OTHER relation in rels, using side to pick which ordinal of each
// relation belongs to this KB.
func New(recs []*record.Record, rels []*relation.Relation, side Side) *Index {
	idx := &Index{byOrdinal: make(map[int]map[string][]*record.Record)}

	blacklist := make(map[int]map[string]struct{})
	for _, r := range rels {
		if r.Type == relation.Other {
			continue
		}
		ord := side.ordinal(r)
		if _, ok := idx.byOrdinal[ord]; !ok {
			idx.byOrdinal[ord] = make(map[string][]*record.Record)
		}
		if len(r.Blacklist) > 0 {
			if blacklist[ord] == nil {
				blacklist[ord] = make(map[string]struct{})
			}
			for v := range r.Blacklist {
				blacklist[ord][v] = struct{}{}
			}
		}
	}

	for _, rec := range recs {
		for ord, m := range idx.byOrdinal {
			bl := blacklist[ord]
			for _, v := range rec.Field(ord).Values() {
				if bl != nil {
					if _, skip := bl[v]; skip {
						continue
					}
				}
				m[v] = append(m[v], rec)
			}
		}
	}

	return idx
}

// Side selects which ordinal of a Relation an Index is built over.
type Side int

const (
	// KB1Side builds against relation.KB1Ordinal.
	KB1Side Side = iota
	// KB2Side builds against relation.KB2Ordinal.
	KB2Side
)

func (s Side) ordinal(r *relation.Relation) int {
	if s == KB1Side {
		return r.KB1Ordinal
	}
	return r.KB2Ordinal
}

// Lookup returns the records carrying value v at field ordinal, or nil if
// ordinal is not indexed or v is absent.
func (idx *Index) Lookup(ordinal int, v string) []*record.Record {
	m, ok := idx.byOrdinal[ordinal]
	if !ok {
		return nil
	}
	return m[v]
}

// Indexed reports whether ordinal has an index built for it.
func (idx *Index) Indexed(ordinal int) bool {
	_, ok := idx.byOrdinal[ordinal]
	return ok
}

// Insert adds rec under value v at field ordinal, respecting no blacklist
// (the caller -- the matcher, updating index_kb1 after a confirmed pairing
// -- is responsible for blacklist checks before calling this).
func (idx *Index) Insert(ordinal int, v string, rec *record.Record) {
	if idx.byOrdinal == nil {
		idx.byOrdinal = make(map[int]map[string][]*record.Record)
	}
	m, ok := idx.byOrdinal[ordinal]
	if !ok {
		m = make(map[string][]*record.Record)
		idx.byOrdinal[ordinal] = m
	}
	m[v] = append(m[v], rec)
}

// FirstUnused returns the first non-used record at index[ordinal][v], or
// nil if none.
func FirstUnused(recs []*record.Record) *record.Record {
	for _, r := range recs {
		if !r.State.Used {
			return r
		}
	}
	return nil
}

// AllUnused returns every non-used record at index[ordinal][v], in index
// order.
func AllUnused(recs []*record.Record) []*record.Record {
	var out []*record.Record
	for _, r := range recs {
		if !r.State.Used {
			out = append(out, r)
		}
	}
	return out
}
