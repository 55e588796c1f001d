package objectstore

import (
	"errors"
	"testing"

	"github.com/chronocat/chronocat/internal/apperr"
)

func TestLocalStorePutOpenRoundTrip(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	data := []byte("chunk-bytes")
	if err := s.Put("sequences/seq1/topics/topic1/chunk1.parquet", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Open("sequences/seq1/topics/topic1/chunk1.parquet")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Open returned %q, want %q", got, data)
	}
}

func TestLocalStoreOpenMissingReturnsNotFound(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	_, err := s.Open("missing.parquet")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStoreURL(t *testing.T) {
	s := NewLocalStore("/data/root")
	url := s.URL("a/b.parquet")
	if url != "file:///data/root/a/b.parquet" {
		t.Errorf("URL = %q", url)
	}
}
