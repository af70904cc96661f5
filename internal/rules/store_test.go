package rules

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joshsymonds/mailtriage/internal/fault"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	return NewStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleRule(name string) Rule {
	return Rule{
		Name:    name,
		Enabled: true,
		Conditions: []Condition{
			{Field: FieldFrom, Operator: OpContains, Value: "news@example.com"},
		},
		Actions: []Action{{Type: ActionTrash}},
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := testStore(t)
	all, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty slice, got %d rules", len(all))
	}
}

func TestLoadCorruptFile(t *testing.T) {
	store := testStore(t)
	if err := os.WriteFile(store.Path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load(); !fault.IsStorage(err) {
		t.Fatalf("expected storage fault, got %v", err)
	}
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	store := testStore(t)
	// Second entry has no actions, third has an unknown operator.
	data := `[
  {"id":"1","name":"good","enabled":true,"conjunction":"AND",
   "conditions":[{"field":"from","operator":"contains","value":"x"}],
   "actions":[{"type":"trash"}]},
  {"id":"2","name":"no-actions","enabled":true,"conjunction":"AND","actions":[]},
  {"id":"3","name":"bad-op","enabled":true,"conjunction":"AND",
   "conditions":[{"field":"from","operator":"regex","value":"x"}],
   "actions":[{"type":"trash"}]}
]`
	if err := os.WriteFile(store.Path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	all, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].Name != "good" {
		t.Fatalf("expected only the valid rule, got %+v", all)
	}
}

func TestAddAssignsDefaultsAndPersists(t *testing.T) {
	store := testStore(t)
	added, err := store.Add(sampleRule("Newsletter cleanup"))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if added.ID == "" {
		t.Fatalf("expected generated id")
	}
	if added.Conjunction != ConjunctionAnd {
		t.Fatalf("expected AND default, got %q", added.Conjunction)
	}

	all, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != added.ID {
		t.Fatalf("round-trip mismatch: %+v", all)
	}
}

func TestAddRejectsDuplicateName(t *testing.T) {
	store := testStore(t)
	if _, err := store.Add(sampleRule("Cleanup")); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	_, err := store.Add(sampleRule("cleanup"))
	if !fault.IsParameter(err) {
		t.Fatalf("expected parameter fault for duplicate name, got %v", err)
	}
}

func TestAddRejectsInvalidRule(t *testing.T) {
	store := testStore(t)
	bad := sampleRule("Bad")
	bad.Actions = []Action{{Type: ActionAddLabel}} // missing label_name
	if _, err := store.Add(bad); !fault.IsParameter(err) {
		t.Fatalf("expected parameter fault, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := testStore(t)
	added, err := store.Add(sampleRule("Cleanup"))
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := store.Delete("CLEANUP"); err != nil {
		t.Fatalf("delete by name failed: %v", err)
	}
	all, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty store after delete, got %d", len(all))
	}

	if err := store.Delete(added.ID); !fault.IsNotFound(err) {
		t.Fatalf("expected not-found fault, got %v", err)
	}
	if err := store.Delete("  "); !fault.IsParameter(err) {
		t.Fatalf("expected parameter fault for blank handle, got %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	store := testStore(t)
	if err := store.Save([]Rule{New(sampleRule("A"))}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(store.Path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != filepath.Base(store.Path) {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}
