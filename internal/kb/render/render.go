// Package render serialises matched and unmatched records per a
// declarative output field-list config.
package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/kberr"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/kbid"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/record"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/relation"
	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/schema"
)

// tokenKind distinguishes the five token grammars a config line may hold.
type tokenKind int

const (
	tokenID tokenKind = iota
	tokenNone
	tokenLiteral
	tokenField
	tokenUnion
)

// token is one parsed output-column directive.
type token struct {
	kind    tokenKind
	literal string
	fields  []fieldRef // len 1 for tokenField, >1 for tokenUnion
}

// fieldRef names one qualified field, resolved against whichever schema
// declares it.
type fieldRef struct {
	kbName  string
	ordinal int
	isKB1   bool
}

// Config is a parsed output field list: one token per output column, in
// order.
type Config struct {
	Tokens []token
}

// LoadConfig parses a line-oriented config: one non-blank line per output
// column. allowUnion permits the "a|b|c" union grammar, which is only valid
// in the unmatched (other_output) config.
func LoadConfig(path string, kb1Schema, kb2Schema *schema.Schema, allowUnion bool) (*Config, error) {
	f, err := os.Open(path) // #nosec G304 -- path supplied by CLI flag
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open output config %q: %v", kberr.ErrIO, path, err)
	}
	defer f.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tok, err := parseToken(line, kb1Schema, kb2Schema, allowUnion)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", kberr.ErrMalformedConfig, path, lineNo, err)
		}
		cfg.Tokens = append(cfg.Tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading output config %q: %v", kberr.ErrIO, path, err)
	}

	return cfg, nil
}

func parseToken(line string, kb1Schema, kb2Schema *schema.Schema, allowUnion bool) (token, error) {
	switch {
	case line == "ID":
		return token{kind: tokenID}, nil
	case line == "None":
		return token{kind: tokenNone}, nil
	case strings.HasPrefix(line, `"`) && strings.HasSuffix(line, `"`) && len(line) >= 2:
		return token{kind: tokenLiteral, literal: strings.Trim(line, `"`)}, nil
	}

	if allowUnion && strings.Contains(line, "|") {
		parts := strings.Split(line, "|")
		refs := make([]fieldRef, 0, len(parts))
		for _, p := range parts {
			ref, err := resolveFieldRef(strings.TrimSpace(p), kb1Schema, kb2Schema)
			if err != nil {
				return token{}, err
			}
			refs = append(refs, ref)
		}
		return token{kind: tokenUnion, fields: refs}, nil
	}

	ref, err := resolveFieldRef(line, kb1Schema, kb2Schema)
	if err != nil {
		return token{}, err
	}
	return token{kind: tokenField, fields: []fieldRef{ref}}, nil
}

func resolveFieldRef(qualified string, kb1Schema, kb2Schema *schema.Schema) (fieldRef, error) {
	if f, ok := kb1Schema.Lookup(qualified); ok {
		return fieldRef{kbName: kb1Schema.KBName(), ordinal: f.Ordinal, isKB1: true}, nil
	}
	if f, ok := kb2Schema.Lookup(qualified); ok {
		return fieldRef{kbName: kb2Schema.KBName(), ordinal: f.Ordinal, isKB1: false}, nil
	}
	return fieldRef{}, fmt.Errorf("unknown field %q", qualified)
}

// Renderer emits matched and unmatched records using the parsed configs,
// the relation list (to find every relation pairing a given KB1 field, for
// cross-filling matched-cell values), and an identifier generator for ID
// tokens.
type Renderer struct {
	Matched      *Config
	Unmatched    *Config
	Relations    []*relation.Relation
	KB1Schema    *schema.Schema
	KB2Schema    *schema.Schema
	IDs          *kbid.Generator
}

// WriteMatched writes one line per KB1 record with State.Used == true.
func (rd *Renderer) WriteMatched(w io.Writer, kb1Recs []*record.Record) error {
	bw := bufio.NewWriter(w)
	for _, e1 := range kb1Recs {
		if !e1.State.Used {
			continue
		}
		if err := rd.writeLine(bw, rd.Matched, e1, e1.State.Matched); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteUnmatched writes one line per KB1 record with State.Used == false,
// using the unmatched (other_output) config.
func (rd *Renderer) WriteUnmatched(w io.Writer, kb1Recs []*record.Record) error {
	bw := bufio.NewWriter(w)
	for _, e1 := range kb1Recs {
		if e1.State.Used {
			continue
		}
		if err := rd.writeLine(bw, rd.Unmatched, e1, nil); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteUnmatchedKB2Raw writes every non-used KB2 record in raw tab-separated
// serialisation, one per line, for the "separate file" unmatched-KB2 mode.
func WriteUnmatchedKB2Raw(w io.Writer, kb2Recs []*record.Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range kb2Recs {
		if r.State.Used {
			continue
		}
		cols := make([]string, r.FieldCount())
		for i := 0; i < r.FieldCount(); i++ {
			cols[i] = strings.Join(r.Field(i).Values(), "|")
		}
		if _, err := bw.WriteString(strings.Join(cols, "\t") + "\n"); err != nil {
			return fmt.Errorf("%w: writing unmatched kb2 record: %v", kberr.ErrIO, err)
		}
	}
	return bw.Flush()
}

// WriteUnmatchedKB2Templated renders every non-used KB2 record through the
// matched template with all KB1-qualified positions blank; ID tokens are
// still counter-generated.
func (rd *Renderer) WriteUnmatchedKB2Templated(w io.Writer, kb2Recs []*record.Record) error {
	bw := bufio.NewWriter(w)
	for _, m := range kb2Recs {
		if m.State.Used {
			continue
		}
		if err := rd.writeLine(bw, rd.Matched, nil, m); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (rd *Renderer) writeLine(w *bufio.Writer, cfg *Config, e1, m *record.Record) error {
	cols := make([]string, len(cfg.Tokens))
	for i, tok := range cfg.Tokens {
		cols[i] = rd.renderToken(tok, e1, m)
	}
	_, err := w.WriteString(strings.Join(cols, "\t") + "\n")
	if err != nil {
		return fmt.Errorf("%w: writing output line: %v", kberr.ErrIO, err)
	}
	return nil
}

func (rd *Renderer) renderToken(tok token, e1, m *record.Record) string {
	switch tok.kind {
	case tokenID:
		return rd.IDs.Next()
	case tokenNone:
		return ""
	case tokenLiteral:
		return tok.literal
	case tokenUnion:
		return rd.renderUnion(tok.fields, e1)
	case tokenField:
		return rd.renderField(tok.fields[0], e1, m)
	default:
		return ""
	}
}

// renderUnion serialises the order-insensitively-deduplicated union of the
// named KB1 fields (a|b|c grammar, unmatched-output only).
func (rd *Renderer) renderUnion(refs []fieldRef, e1 *record.Record) string {
	if e1 == nil {
		return ""
	}
	seen := make(map[string]struct{})
	var out []string
	for _, ref := range refs {
		for _, v := range e1.Field(ref.ordinal).Values() {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return strings.Join(out, "|")
}

// renderField emits a single field position for the matched template: its
// own KB's values if present (and not needing augmentation), otherwise the
// paired KB's values via every relation connecting this field, with
// multi-value truncation applied where the schema says single-valued.
func (rd *Renderer) renderField(ref fieldRef, e1, m *record.Record) string {
	var primary *record.Record
	var primarySchema *schema.Schema
	var secondary *record.Record

	if ref.isKB1 {
		if e1 == nil {
			// Unmatched KB2 line: KB1-qualified positions stay blank.
			return ""
		}
		primary, primarySchema, secondary = e1, rd.KB1Schema, m
	} else {
		primary, primarySchema, secondary = m, rd.KB2Schema, e1
	}

	field := primarySchema.Fields()[ref.ordinal]

	var values []string
	seen := make(map[string]struct{})
	addAll := func(vs []string) {
		for _, v := range vs {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}

	if primary != nil {
		addAll(primary.Field(ref.ordinal).Values())
	}

	needsCrossFill := primary == nil || field.Multivalued || len(values) == 0
	if needsCrossFill && secondary != nil {
		for _, rel := range rd.Relations {
			var pairedOrd int
			var matches bool
			if ref.isKB1 && rel.KB1Ordinal == ref.ordinal {
				pairedOrd, matches = rel.KB2Ordinal, true
			} else if !ref.isKB1 && rel.KB2Ordinal == ref.ordinal {
				pairedOrd, matches = rel.KB1Ordinal, true
			}
			if !matches {
				continue
			}
			addAll(secondary.Field(pairedOrd).Values())
		}
	}

	if !field.Multivalued && len(values) > 1 {
		values = values[:1]
	}

	return strings.Join(values, "|")
}
