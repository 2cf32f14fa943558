package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Sink hands a finished document to whatever shares or stores it, returning
// where it ended up.
type Sink interface {
	Deliver(ctx context.Context, fileName, contentType string, doc []byte) (string, error)
}

// LocalSink writes each document under its own directory in Dir so
// overlapping exports never collide.
type LocalSink struct {
	Dir string
}

func (s LocalSink) Deliver(ctx context.Context, fileName, _ string, doc []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// MemorySink keeps documents in memory keyed by their returned location.
type MemorySink struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (s *MemorySink) Deliver(ctx context.Context, fileName, _ string, doc []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs == nil {
		s.docs = map[string][]byte{}
	}
	loc := "memory://" + uuid.NewString() + "/" + fileName
	s.docs[loc] = append([]byte(nil), doc...)
	return loc, nil
}

// Get returns a delivered document.
func (s *MemorySink) Get(location string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[location]
	return doc, ok
}
