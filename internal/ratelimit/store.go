package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// decodeHistory parses a stored record. Anything that is not a JSON array
// yields an empty history; non-numeric elements are dropped.
func decodeHistory(raw []byte) []int64 {
	if len(raw) == 0 {
		return nil
	}
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	out := make([]int64, 0, len(values))
	for _, v := range values {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out = append(out, int64(f))
	}
	return out
}

func encodeHistory(history []int64) ([]byte, error) {
	if history == nil {
		history = []int64{}
	}
	return json.Marshal(history)
}

// MemoryStore keeps the history in memory.
type MemoryStore struct {
	mu      sync.Mutex
	history []int64
}

// NewMemoryStore returns a store seeded with a copy of history.
func NewMemoryStore(history ...int64) *MemoryStore {
	return &MemoryStore{history: append([]int64(nil), history...)}
}

func (s *MemoryStore) Read(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.history...), nil
}

func (s *MemoryStore) Write(_ context.Context, history []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]int64(nil), history...)
	return nil
}

// FileStore keeps the history as a JSON array in <dir>/<key>.json.
type FileStore struct {
	path string
}

// NewFileStore returns a store for key under dir.
func NewFileStore(dir, key string) *FileStore {
	if key == "" {
		key = DefaultKey
	}
	return &FileStore{path: filepath.Join(dir, key+".json")}
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Read(_ context.Context) ([]int64, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeHistory(raw), nil
}

func (s *FileStore) Write(_ context.Context, history []int64) error {
	data, err := encodeHistory(history)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	// Readers never observe a half-written record.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
