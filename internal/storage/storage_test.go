package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/IshaanNene/newsgoat/internal/config"
	"github.com/IshaanNene/newsgoat/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(url string, regions ...string) *types.MediaRecord {
	return types.NewRecord(types.CandidateItem{
		URL:     url,
		Title:   "Title for " + url,
		Body:    "Body",
		Source:  "test",
		Regions: regions,
	})
}

// storeContract exercises the behaviour every backend shares.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	u := "https://news.example/story?id=1"

	ok, err := s.Exists(ctx, u)
	if err != nil || ok {
		t.Fatalf("fresh store: Exists = %v, %v", ok, err)
	}
	if err := s.Insert(ctx, record(u, "UA")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ok, err = s.Exists(ctx, u)
	if err != nil || !ok {
		t.Fatalf("after insert: Exists = %v, %v", ok, err)
	}
	if err := s.Insert(ctx, record(u)); !errors.Is(err, types.ErrDuplicate) {
		t.Errorf("second insert should be ErrDuplicate, got %v", err)
	}

	// Identity is the exact string: variants of a stored URL are not
	// recognised as duplicates.
	for _, variant := range []string{
		"https://news.example/story?id=1&utm_source=feed",
		"https://news.example/story?id=1#top",
		"http://news.example/story?id=1",
	} {
		ok, err := s.Exists(ctx, variant)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Errorf("variant %q unexpectedly matched", variant)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreSeeded(t *testing.T) {
	s := NewMemoryStore("https://a.example/1")
	ok, _ := s.Exists(context.Background(), "https://a.example/1")
	if !ok {
		t.Error("seeded URL should exist")
	}
	if len(s.Records()) != 0 {
		t.Error("seeding must not create records")
	}
}

func TestMemoryStoreConcurrentExists(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Exists(ctx, "https://a.example/x")
			}
		}()
	}
	_ = s.Insert(ctx, record("https://a.example/x"))
	wg.Wait()
}

func TestJSONLStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "media.jsonl")
	s, err := NewJSONLStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	storeContract(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 1 {
		t.Errorf("expected 1 line, got %d", n)
	}

	// Reopening rebuilds the seen set from disk.
	s2, err := NewJSONLStore(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	ok, _ := s2.Exists(context.Background(), "https://news.example/story?id=1")
	if !ok {
		t.Error("seen set did not survive reopen")
	}
}

func TestJSONLStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "media.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewJSONLStore(path, testLogger())
	var se *types.StorageError
	if !errors.As(err, &se) {
		t.Errorf("expected StorageError, got %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), ":memory:", testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	storeContract(t, s)

	rec, err := s.Get(context.Background(), "https://news.example/story?id=1")
	if err != nil || rec == nil {
		t.Fatalf("get: %v, %v", rec, err)
	}
	if len(rec.Regions) != 1 || rec.Regions[0] != "UA" {
		t.Errorf("regions not round-tripped: %v", rec.Regions)
	}
	n, err := s.Count(context.Background())
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newsgoat.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, record("https://a.example/1")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := NewSQLiteStore(ctx, path, testLogger())
	if err != nil {
		t.Fatalf("reopen (migrations must be idempotent): %v", err)
	}
	defer s2.Close()
	ok, err := s2.Exists(ctx, "https://a.example/1")
	if err != nil || !ok {
		t.Errorf("record lost across reopen: %v, %v", ok, err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.DefaultConfig().Storage
	cfg.Type = "memory"
	s, err := New(context.Background(), &cfg, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "memory" {
		t.Errorf("expected memory store, got %s", s.Name())
	}

	cfg.Type = "postgres"
	if _, err := New(context.Background(), &cfg, testLogger()); !types.IsConfigError(err) {
		t.Errorf("unknown backend should be a config error, got %v", err)
	}
}
