package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrUnknownReference is returned when a store is asked about a reference it did not issue.
var ErrUnknownReference = errors.New("unknown receipt reference")

// Store keeps receipt blobs and hands out opaque references to them.
type Store interface {
	Save(ctx context.Context, u Upload) (string, error)
	Open(ctx context.Context, ref string) (Upload, error)
	Delete(ctx context.Context, ref string) error
	Owns(ref string) bool
}

// FileStore writes receipts into a directory. References are the URL prefix
// followed by the generated file name.
type FileStore struct {
	dir    string
	prefix string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir, prefix string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	return &FileStore{dir: dir, prefix: prefix}, nil
}

func (s *FileStore) Save(_ context.Context, u Upload) (string, error) {
	name := uuid.NewString() + mimetype.Detect(u.Data).Extension()

	tmp, err := os.CreateTemp(s.dir, ".receipt-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(u.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close receipt: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("rename receipt: %w", err)
	}
	return s.prefix + name, nil
}

func (s *FileStore) Open(_ context.Context, ref string) (Upload, error) {
	name, ok := s.name(ref)
	if !ok {
		return Upload{}, ErrUnknownReference
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Upload{}, ErrUnknownReference
		}
		return Upload{}, fmt.Errorf("read receipt: %w", err)
	}
	return Upload{Filename: name, Data: data}, nil
}

func (s *FileStore) Delete(_ context.Context, ref string) error {
	name, ok := s.name(ref)
	if !ok {
		return ErrUnknownReference
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove receipt: %w", err)
	}
	return nil
}

func (s *FileStore) Owns(ref string) bool {
	_, ok := s.name(ref)
	return ok
}

// name extracts the file name from ref. Anything that could escape dir is refused.
func (s *FileStore) name(ref string) (string, bool) {
	if !strings.HasPrefix(ref, s.prefix) {
		return "", false
	}
	name := strings.TrimPrefix(ref, s.prefix)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

// InlineStore keeps receipts inside the reference itself as a data URI, so the
// order row carries the image.
type InlineStore struct{}

func (InlineStore) Save(_ context.Context, u Upload) (string, error) {
	return EncodeDataURI(mimetype.Detect(u.Data).String(), u.Data), nil
}

func (InlineStore) Open(_ context.Context, ref string) (Upload, error) {
	return ParseDataURI(ref)
}

func (InlineStore) Delete(context.Context, string) error { return nil }

func (InlineStore) Owns(ref string) bool { return IsDataURI(ref) }
