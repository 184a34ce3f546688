package relation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KNOT-FIT-BUT/kb-tools/internal/kb/schema"
)

func writeSchema(t *testing.T, dir, name string, fields []string) *schema.Schema {
	t.Helper()
	path := filepath.Join(dir, name+".fields")
	content := ""
	for _, f := range fields {
		content += f + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := schema.Load(name, path)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadNormalizesSideOrder(t *testing.T) {
	dir := t.TempDir()
	kb1 := writeSchema(t, dir, "kb1", []string{"WIKIPEDIA URL", "NAME"})
	kb2 := writeSchema(t, dir, "kb2", []string{"NAME", "WIKI URL"})

	relPath := filepath.Join(dir, "rel.conf")
	content := "UNIQUE:\n  kb2.WIKI URL=kb1.WIKIPEDIA URL\nNAME:\n  kb1.NAME=kb2.NAME\nOTHER:\n"
	if err := os.WriteFile(relPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := Load(relPath, kb1, kb2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list.All) != 2 {
		t.Fatalf("got %d relations, want 2", len(list.All))
	}

	unique := list.OfType(Unique)
	if len(unique) != 1 {
		t.Fatalf("got %d UNIQUE relations, want 1", len(unique))
	}
	if unique[0].KB1Ordinal != kb1.Ordinal("kb1.WIKIPEDIA URL") {
		t.Errorf("KB1Ordinal = %d, want %d", unique[0].KB1Ordinal, kb1.Ordinal("kb1.WIKIPEDIA URL"))
	}
	if unique[0].KB2Ordinal != kb2.Ordinal("kb2.WIKI URL") {
		t.Errorf("KB2Ordinal = %d, want %d", unique[0].KB2Ordinal, kb2.Ordinal("kb2.WIKI URL"))
	}

	name := list.OfType(Name)
	if len(name) != 1 {
		t.Fatalf("got %d NAME relations, want 1", len(name))
	}
}

func TestLoadRejectsPairBeforeSection(t *testing.T) {
	dir := t.TempDir()
	kb1 := writeSchema(t, dir, "kb1", []string{"NAME"})
	kb2 := writeSchema(t, dir, "kb2", []string{"NAME"})

	relPath := filepath.Join(dir, "rel.conf")
	if err := os.WriteFile(relPath, []byte("kb1.NAME=kb2.NAME\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(relPath, kb1, kb2); err == nil {
		t.Fatal("expected error for pair preceding any section header")
	}
}

func TestBlacklistedAndAddBlacklist(t *testing.T) {
	r := &Relation{}
	if r.Blacklisted("x") {
		t.Fatal("empty blacklist should not match anything")
	}
	r.AddBlacklist(map[string]struct{}{"x": {}, "y": {}})
	if !r.Blacklisted("x") || !r.Blacklisted("y") {
		t.Fatal("AddBlacklist did not union values in")
	}
	if r.Blacklisted("z") {
		t.Fatal("unrelated value should not be blacklisted")
	}
}
