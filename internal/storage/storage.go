// Package storage persists termfix state as JSON files under the base
// directory. Fix history records an audit trail of suggestions the user
// actually inserted or executed.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/termfix/termfix/internal/domain"
)

var (
	ErrRecordNotFound  = errors.New("fix record not found")
	ErrStorageWrite    = errors.New("failed to write fix record")
	ErrInvalidRecordID = errors.New("invalid fix record id")
)

const maxRecordFileSize = 1 * 1024 * 1024 // 1MB

var recordIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// FixRecord is one applied suggestion.
type FixRecord struct {
	ID        string           `json:"id"`
	RequestID string           `json:"request_id"`
	Handle    string           `json:"handle"`
	Command   string           `json:"command"`
	Executed  bool             `json:"executed"`
	Relevance domain.Relevance `json:"relevance"`
	AppliedAt time.Time        `json:"applied_at"`
}

// FixHistory stores applied-fix records.
type FixHistory interface {
	Save(record FixRecord) error
	Load(id string) (FixRecord, error)
	List() ([]FixRecord, error)
	Delete(id string) error
}

// JSONFixHistory keeps one JSON file per record under <base>/fixes.
type JSONFixHistory struct {
	baseDir string
	mu      sync.RWMutex
}

func validateRecordID(id string) error {
	if !recordIDRegex.MatchString(id) {
		return fmt.Errorf("%w: %s", ErrInvalidRecordID, id)
	}
	return nil
}

func NewJSONFixHistory(baseDir string) (*JSONFixHistory, error) {
	fixesDir := filepath.Join(baseDir, "fixes")
	if err := os.MkdirAll(fixesDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create fixes directory: %w", err)
	}

	// Tighten permissions if the directory already existed looser.
	if info, err := os.Stat(fixesDir); err == nil {
		if info.Mode().Perm()&0o077 != 0 {
			_ = os.Chmod(fixesDir, 0o700)
		}
	}

	return &JSONFixHistory{baseDir: baseDir}, nil
}

func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".termfix"
	}
	return filepath.Join(home, ".termfix")
}

func (s *JSONFixHistory) recordPath(id string) string {
	return filepath.Join(s.baseDir, "fixes", id+".json")
}

func (s *JSONFixHistory) Save(record FixRecord) error {
	if err := validateRecordID(record.ID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jsonData, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fix record: %w", err)
	}

	fixesDir := filepath.Join(s.baseDir, "fixes")
	f, err := os.CreateTemp(fixesDir, record.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	tmpName := f.Name()
	_ = os.Chmod(tmpName, 0o600)

	defer func() {
		if f != nil {
			f.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := f.Write(jsonData); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if err := f.Close(); err != nil {
		f = nil
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	f = nil

	if err := os.Rename(tmpName, s.recordPath(record.ID)); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

func (s *JSONFixHistory) Load(id string) (FixRecord, error) {
	if err := validateRecordID(id); err != nil {
		return FixRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadUnlocked(id)
}

func (s *JSONFixHistory) loadUnlocked(id string) (FixRecord, error) {
	path := s.recordPath(id)

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return FixRecord{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return FixRecord{}, fmt.Errorf("failed to stat fix record: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return FixRecord{}, fmt.Errorf("symlinks not allowed for fix records: %s", id)
	}
	if info.Size() > maxRecordFileSize {
		return FixRecord{}, fmt.Errorf("fix record too large: %s", id)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return FixRecord{}, fmt.Errorf("failed to read fix record: %w", err)
	}

	var record FixRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return FixRecord{}, fmt.Errorf("failed to parse fix record %s: %w", id, err)
	}
	return record, nil
}

func (s *JSONFixHistory) List() ([]FixRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fixesDir := filepath.Join(s.baseDir, "fixes")
	entries, err := os.ReadDir(fixesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read fixes directory: %w", err)
	}

	records := make([]FixRecord, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		id := name[:len(name)-len(".json")]
		if validateRecordID(id) != nil {
			continue
		}
		record, err := s.loadUnlocked(id)
		if err != nil {
			// Skip unreadable records rather than failing the listing.
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].AppliedAt.Before(records[j].AppliedAt)
	})
	return records, nil
}

func (s *JSONFixHistory) Delete(id string) error {
	if err := validateRecordID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.recordPath(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return err
}
