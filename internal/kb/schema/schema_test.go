package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFieldsFile(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fields.conf")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAssignsOrdinalsOverNonBlankLines(t *testing.T) {
	path := writeFieldsFile(t, "WIKI URL", "", "NAME", "FAMILY NAME (MULTIPLE VALUES)")

	s, err := Load("kb1", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.FieldCount() != 3 {
		t.Fatalf("FieldCount = %d, want 3", s.FieldCount())
	}

	wiki, ok := s.Lookup("kb1.WIKI URL")
	if !ok || wiki.Ordinal != 0 {
		t.Errorf("WIKI URL ordinal = %d, ok=%v, want 0, true", wiki.Ordinal, ok)
	}

	name, ok := s.Lookup("kb1.NAME")
	if !ok || name.Ordinal != 1 {
		t.Errorf("NAME ordinal = %d, ok=%v, want 1, true", name.Ordinal, ok)
	}

	family, ok := s.Lookup("kb1.FAMILY NAME")
	if !ok || family.Ordinal != 2 || !family.Multivalued {
		t.Errorf("FAMILY NAME = %+v, ok=%v, want ordinal 2 and Multivalued true", family, ok)
	}
}

func TestLoadMissingFileReturnsIOError(t *testing.T) {
	_, err := Load("kb1", filepath.Join(t.TempDir(), "nope.conf"))
	if err == nil {
		t.Fatal("expected an error for a missing fields file")
	}
}

func TestHasAndOrdinalPanicOnUnknownField(t *testing.T) {
	path := writeFieldsFile(t, "NAME")
	s, err := Load("kb1", path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !s.Has("kb1.NAME") {
		t.Error("expected kb1.NAME to be present")
	}
	if s.Has("kb1.MISSING") {
		t.Error("did not expect kb1.MISSING to be present")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected Ordinal to panic for an unknown field")
		}
	}()
	s.Ordinal("kb1.MISSING")
}
