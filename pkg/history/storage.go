// Package history persists confirmed swaps to a local JSON file.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"dex-swap/pkg/types"
)

// Storage handles persistence of completed swaps
type Storage struct {
	filePath string
	mu       sync.RWMutex
	records  []types.SuccessRecord
}

// fileFormat represents the JSON structure on disk
type fileFormat struct {
	Swaps []types.SuccessRecord `json:"swaps"`
}

// NewStorage opens the history file at filePath. A missing file is created on first append.
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		return nil, fmt.Errorf("history file path is required")
	}

	s := &Storage{filePath: filePath}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.records = f.Swaps
	return nil
}

// saveLocked writes the records to disk; the caller holds the write lock
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Swaps: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to a temporary file first, then rename for an atomic replace
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Append records a confirmed swap. A record whose transaction hash is already
// stored is ignored.
func (s *Storage) Append(record types.SuccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.TxHash == record.TxHash {
			return nil
		}
	}

	s.records = append(s.records, record)
	if err := s.saveLocked(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return err
	}
	return nil
}

// List returns stored swaps, newest first. limit <= 0 returns all of them.
func (s *Storage) List(limit int) []types.SuccessRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.SuccessRecord, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Get looks a swap up by transaction hash
func (s *Storage) Get(txHash string) (types.SuccessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.TxHash == txHash {
			return r, nil
		}
	}
	return types.SuccessRecord{}, fmt.Errorf("swap '%s' not found", txHash)
}

// Count returns the number of stored swaps
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// GetFilePath returns the storage file path
func (s *Storage) GetFilePath() string {
	return s.filePath
}
