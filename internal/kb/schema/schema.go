// Package schema loads and describes a Knowledge Base's field layout.
package schema

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/kberr"
)

// multipleValuesSuffix marks a field as holding more than one value per record.
const multipleValuesSuffix = " (MULTIPLE VALUES)"

// Field describes one column of a KB: its position and whether it may carry
// more than one value per record.
type Field struct {
	// QualifiedName is "<kb_name>.<field_name>", used at config-load and
	// output-render time only; Ordinal is the canonical handle everywhere
	// else.
	QualifiedName string
	Ordinal       int
	Multivalued   bool
}

// Schema is the ordered field list for one KB, loaded once at startup.
type Schema struct {
	kbName string
	fields []Field
	byName map[string]Field
}

// Load reads a line-oriented fields config: one field name per line, blank
// lines ignored, a " (MULTIPLE VALUES)" suffix marking a multivalued field.
// Line ordinal (0-based, over non-blank lines) becomes the column ordinal.
func Load(kbName, path string) (*Schema, error) {
	f, err := os.Open(path) // #nosec G304 -- path supplied by CLI flag
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open schema file %q: %v", kberr.ErrIO, path, err)
	}
	defer f.Close()

	s := &Schema{
		kbName: kbName,
		byName: make(map[string]Field),
	}

	ordinal := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		field := Field{Ordinal: ordinal}
		if strings.HasSuffix(line, multipleValuesSuffix) {
			field.Multivalued = true
			line = strings.TrimSuffix(line, multipleValuesSuffix)
		}
		field.QualifiedName = kbName + "." + line

		s.fields = append(s.fields, field)
		s.byName[field.QualifiedName] = field
		ordinal++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading schema file %q: %v", kberr.ErrIO, path, err)
	}

	return s, nil
}

// KBName returns the KB name this schema was loaded for.
func (s *Schema) KBName() string { return s.kbName }

// FieldCount returns the total number of declared fields.
func (s *Schema) FieldCount() int { return len(s.fields) }

// Fields returns the fields in ordinal order. The slice is shared; callers
// must not mutate it.
func (s *Schema) Fields() []Field { return s.fields }

// Has reports whether a qualified field name exists in this schema.
func (s *Schema) Has(qualifiedName string) bool {
	_, ok := s.byName[qualifiedName]
	return ok
}

// Lookup resolves a qualified field name to its Field descriptor.
func (s *Schema) Lookup(qualifiedName string) (Field, bool) {
	f, ok := s.byName[qualifiedName]
	return f, ok
}

// Ordinal resolves a qualified field name directly to its column ordinal,
// panicking if the name is unknown -- callers that need the not-found case
// should use Lookup instead.
func (s *Schema) Ordinal(qualifiedName string) int {
	f, ok := s.byName[qualifiedName]
	if !ok {
		panic(fmt.Sprintf("schema: unknown field %q", qualifiedName))
	}
	return f.Ordinal
}
