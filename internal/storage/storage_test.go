package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/termfix/termfix/internal/domain"
)

func newTestHistory(t *testing.T) *JSONFixHistory {
	t.Helper()
	s, err := NewJSONFixHistory(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONFixHistory: %v", err)
	}
	return s
}

func TestSaveAndLoadFixRecord(t *testing.T) {
	s := newTestHistory(t)

	record := FixRecord{
		ID:        "fix-1",
		RequestID: "req-1",
		Handle:    "term-1",
		Command:   "sudo apt update",
		Executed:  true,
		Relevance: domain.RelevanceHigh,
		AppliedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := s.Save(record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load("fix-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Command != record.Command || loaded.Executed != record.Executed {
		t.Errorf("loaded record differs: %+v", loaded)
	}
	if loaded.Relevance != domain.RelevanceHigh {
		t.Errorf("relevance not preserved: %v", loaded.Relevance)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	s := newTestHistory(t)

	_, err := s.Load("nope")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestInvalidRecordID(t *testing.T) {
	s := newTestHistory(t)

	bad := []string{"", "../escape", "a/b", "id with spaces"}
	for _, id := range bad {
		if err := s.Save(FixRecord{ID: id}); !errors.Is(err, ErrInvalidRecordID) {
			t.Errorf("Save(%q): expected ErrInvalidRecordID, got %v", id, err)
		}
		if _, err := s.Load(id); !errors.Is(err, ErrInvalidRecordID) {
			t.Errorf("Load(%q): expected ErrInvalidRecordID, got %v", id, err)
		}
	}
}

func TestListSortedByAppliedAt(t *testing.T) {
	s := newTestHistory(t)

	base := time.Now().UTC()
	for i, id := range []string{"c", "a", "b"} {
		record := FixRecord{
			ID:        id,
			Command:   "cmd-" + id,
			AppliedAt: base.Add(time.Duration(2-i) * time.Minute),
		}
		if err := s.Save(record); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	records, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].AppliedAt.Before(records[i-1].AppliedAt) {
			t.Fatalf("records not sorted by applied time: %v before %v",
				records[i].AppliedAt, records[i-1].AppliedAt)
		}
	}
}

func TestDeleteRecord(t *testing.T) {
	s := newTestHistory(t)

	if err := s.Save(FixRecord{ID: "fix-1", AppliedAt: time.Now()}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Delete("fix-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load("fix-1"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected record gone, got %v", err)
	}
	if err := s.Delete("fix-1"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound on second delete, got %v", err)
	}
}
