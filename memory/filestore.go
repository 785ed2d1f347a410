package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps the log in a single JSON document:
//
//	{"messages": [ {...}, {...} ]}
//
// Every write replaces the file through a synced temp file and a rename, so a
// crash leaves either the old or the new document, never a partial one.
// The file is re-read on every call; nothing is cached between turns.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDoc struct {
	Messages []json.RawMessage `json:"messages"`
}

// NewFileStore returns a store backed by path, creating parent directories.
// A missing file is treated as an empty log.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Append(ctx context.Context, records []json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Messages = append(doc.Messages, records...)
	return s.save(doc)
}

func (s *FileStore) Records(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Messages, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(fileDoc{Messages: []json.RawMessage{}})
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (fileDoc, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileDoc{}, nil
		}
		return fileDoc{}, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fileDoc{}, nil
	}
	var doc fileDoc
	// A bare array is decoded as the message list. Text-only role/content
	// records from older transcripts do not validate and are dropped on load.
	if b[0] == '[' {
		err = json.Unmarshal(b, &doc.Messages)
	} else {
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return fileDoc{}, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc, nil
}

func (s *FileStore) save(doc fileDoc) error {
	if doc.Messages == nil {
		doc.Messages = []json.RawMessage{}
	}
	b, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
