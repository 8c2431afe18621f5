package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/newsgoat/internal/types"
)

// JSONLStore appends records as newline-delimited JSON. The seen set is
// rebuilt from the file on open, so it survives restarts.
type JSONLStore struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.RWMutex
	seen   map[string]struct{}
	count  int
	logger *slog.Logger
}

// NewJSONLStore opens (or creates) the file at path.
func NewJSONLStore(path string, logger *slog.Logger) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &types.StorageError{Backend: "jsonl", Op: "open", Err: fmt.Errorf("create output dir: %w", err)}
		}
	}

	seen, err := loadSeen(path)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Op: "open", Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Op: "open", Err: err}
	}

	s := &JSONLStore{
		path:   path,
		file:   f,
		enc:    json.NewEncoder(f),
		seen:   seen,
		logger: logger.With("component", "jsonl_store"),
	}
	s.logger.Debug("jsonl store opened", "path", path, "known_urls", len(seen))
	return s, nil
}

func loadSeen(path string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return seen, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec struct {
			URL string `json:"url"`
		}
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		if rec.URL != "" {
			seen[rec.URL] = struct{}{}
		}
	}
	return seen, sc.Err()
}

func (s *JSONLStore) Name() string { return "jsonl" }

func (s *JSONLStore) Exists(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[url]
	return ok, nil
}

func (s *JSONLStore) Insert(_ context.Context, rec *types.MediaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[rec.URL]; ok {
		return types.ErrDuplicate
	}
	if err := s.enc.Encode(rec); err != nil {
		return &types.StorageError{Backend: "jsonl", Op: "insert", Err: err}
	}
	s.seen[rec.URL] = struct{}{}
	s.count++
	return nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("jsonl store closing", "path", s.path, "written", s.count)
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
