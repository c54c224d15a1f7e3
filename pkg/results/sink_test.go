package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gramops/pkg/logger"
	"gramops/pkg/models"
)

func TestAddDeduplicatesByID(t *testing.T) {
	sink, err := NewSink(t.TempDir(), "op-1", logger.NewTestLogger())
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}

	if !sink.Add(models.Member{ID: 1, Username: "alice"}) {
		t.Error("first add should report a new member")
	}
	if sink.Add(models.Member{ID: 1, Username: "alice-renamed"}) {
		t.Error("second add of the same ID should report a duplicate")
	}
	if !sink.Add(models.Member{ID: 2, Username: "bob"}) {
		t.Error("different ID should be accepted")
	}

	if got := sink.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	if !sink.Contains(1) || sink.Contains(3) {
		t.Error("Contains misreports stored members")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewTestLogger()

	sink, err := NewSink(dir, "op-2", log)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	sink.Add(models.Member{ID: 10, Username: "u10", FirstName: "Ten"})
	sink.Add(models.Member{ID: 11, Username: "u11"})
	if err := sink.Save("op-2"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A second sink for the same operation resumes with the saved members
	reloaded, err := NewSink(dir, "op-2", log)
	if err != nil {
		t.Fatalf("NewSink reload: %v", err)
	}
	if got := reloaded.Count(); got != 2 {
		t.Fatalf("reloaded Count = %d, want 2", got)
	}
	if reloaded.Add(models.Member{ID: 10}) {
		t.Error("reloaded sink should reject already-saved members")
	}
	if !reloaded.Add(models.Member{ID: 12}) {
		t.Error("reloaded sink should accept new members")
	}
}

func TestLoadMembersFromResultFile(t *testing.T) {
	dir := t.TempDir()
	log := logger.NewTestLogger()

	sink, err := NewSink(dir, "op-3", log)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	sink.Add(models.Member{ID: 1, FirstName: "A"})
	sink.Add(models.Member{ID: 2, FirstName: "B"})
	if err := sink.Save("op-3"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	members, err := LoadMembers(sink.Path())
	if err != nil {
		t.Fatalf("LoadMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("loaded %d members, want 2", len(members))
	}
	if members[0].ID != 1 || members[1].ID != 2 {
		t.Error("member order not preserved")
	}
}

func TestLoadMembersFromPlainArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "members.json")
	raw, _ := json.Marshal([]models.Member{{ID: 5, Username: "five"}})
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	members, err := LoadMembers(path)
	if err != nil {
		t.Fatalf("LoadMembers: %v", err)
	}
	if len(members) != 1 || members[0].ID != 5 {
		t.Fatalf("loaded %+v, want the single seeded member", members)
	}
}

func TestLoadMembersMissingFile(t *testing.T) {
	if _, err := LoadMembers(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, "op-4", logger.NewTestLogger())
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	sink.Add(models.Member{ID: 1})
	if err := sink.Save("op-4"); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	sink.Add(models.Member{ID: 2})
	if err := sink.Save("op-4"); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	// No temp file left behind
	if _, err := os.Stat(sink.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	members, err := LoadMembers(sink.Path())
	if err != nil {
		t.Fatalf("LoadMembers: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("loaded %d members, want 2", len(members))
	}
}
