// Package relation parses and represents typed field pairings between two
// Knowledge Bases.
package relation

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/kberr"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/schema"
)

// Type identifies how a relation participates in matching.
type Type int

const (
	// Unique relations carry identifiers whose equality implies entity
	// identity, subject to the relation's blacklist.
	Unique Type = iota
	// Name relations carry surface forms; each equal value adds one to a
	// candidate's similarity score.
	Name
	// Other relations are auxiliary attributes scored only once a
	// candidate has already cleared the matching threshold.
	Other
)

func (t Type) String() string {
	switch t {
	case Unique:
		return "UNIQUE"
	case Name:
		return "NAME"
	case Other:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

const (
	headerUnique = "UNIQUE:"
	headerName   = "NAME:"
	headerOther  = "OTHER:"
)

// Relation pairs one KB1 field with one KB2 field under a Type, plus a
// mutable blacklist of values to be ignored when indexing or matching
// through it. The blacklist grows during deduplication feedback.
type Relation struct {
	Type       Type
	KB1Ordinal int
	KB2Ordinal int
	Blacklist  map[string]struct{}
}

// Blacklisted reports whether v must be ignored for this relation.
func (r *Relation) Blacklisted(v string) bool {
	if r.Blacklist == nil {
		return false
	}
	_, ok := r.Blacklist[v]
	return ok
}

// AddBlacklist unions vs into the relation's blacklist.
func (r *Relation) AddBlacklist(vs map[string]struct{}) {
	if len(vs) == 0 {
		return
	}
	if r.Blacklist == nil {
		r.Blacklist = make(map[string]struct{}, len(vs))
	}
	for v := range vs {
		r.Blacklist[v] = struct{}{}
	}
}

// List is the full relation set produced by parsing one relation config.
type List struct {
	All []*Relation
}

// OfType returns the subset of relations of the given type, in file order.
func (l *List) OfType(t Type) []*Relation {
	var out []*Relation
	for _, r := range l.All {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// Load parses a relation config of three section headers (UNIQUE:, NAME:,
// OTHER:) each followed by indented "lhs=rhs" lines naming qualified fields
// in kb1Schema and kb2Schema. A pair is always stored KB1-ordinal-first: if
// lhs names a kb2Schema field, the sides are swapped.
func Load(path string, kb1Schema, kb2Schema *schema.Schema) (*List, error) {
	f, err := os.Open(path) // #nosec G304 -- path supplied by CLI flag
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open relation file %q: %v", kberr.ErrIO, path, err)
	}
	defer f.Close()

	list := &List{}
	var current Type
	haveSection := false

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		switch trimmed {
		case headerUnique:
			current, haveSection = Unique, true
			continue
		case headerName:
			current, haveSection = Name, true
			continue
		case headerOther:
			current, haveSection = Other, true
			continue
		}

		if !haveSection {
			return nil, fmt.Errorf("%w: %s line %d: pair before any section header: %q",
				kberr.ErrMalformedConfig, path, lineNo, raw)
		}

		lhs, rhs, ok := strings.Cut(trimmed, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %s line %d: expected \"lhs=rhs\": %q",
				kberr.ErrMalformedConfig, path, lineNo, raw)
		}
		lhs, rhs = strings.TrimSpace(lhs), strings.TrimSpace(rhs)

		rel, err := resolvePair(current, lhs, rhs, kb1Schema, kb2Schema)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", kberr.ErrMalformedConfig, path, lineNo, err)
		}
		list.All = append(list.All, rel)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading relation file %q: %v", kberr.ErrIO, path, err)
	}

	return list, nil
}

// resolvePair resolves lhs/rhs against both schemas and normalises the pair
// so KB1Ordinal always belongs to kb1Schema.
func resolvePair(t Type, lhs, rhs string, kb1Schema, kb2Schema *schema.Schema) (*Relation, error) {
	lhsKB1, lhsOK1 := kb1Schema.Lookup(lhs)
	lhsKB2, lhsOK2 := kb2Schema.Lookup(lhs)
	rhsKB1, rhsOK1 := kb1Schema.Lookup(rhs)
	rhsKB2, rhsOK2 := kb2Schema.Lookup(rhs)

	switch {
	case lhsOK1 && rhsOK2:
		return &Relation{Type: t, KB1Ordinal: lhsKB1.Ordinal, KB2Ordinal: rhsKB2.Ordinal}, nil
	case lhsOK2 && rhsOK1:
		return &Relation{Type: t, KB1Ordinal: rhsKB1.Ordinal, KB2Ordinal: lhsKB2.Ordinal}, nil
	default:
		return nil, fmt.Errorf("cannot resolve %q=%q against the two schemas", lhs, rhs)
	}
}

// NewIdentifierRelations synthesises a temporary UNIQUE-relation list over
// identifierFields, restricted to the fields present in sch, for the
// deduplicator's intra-KB build phase. KB2Ordinal is unused (0) in this
// context.
func NewIdentifierRelations(sch *schema.Schema, kbName string, identifierFields []string) []*Relation {
	var out []*Relation
	for _, name := range identifierFields {
		field, ok := sch.Lookup(kbName + "." + name)
		if !ok {
			continue
		}
		out = append(out, &Relation{Type: Unique, KB1Ordinal: field.Ordinal, KB2Ordinal: 0})
	}
	return out
}
