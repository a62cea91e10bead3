package documents

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store is the document store contract used by services and handlers
type Store interface {
	Write(ctx context.Context, userID uuid.UUID, doc *Document) error
	Read(ctx context.Context, userID uuid.UUID, key string) (*Document, error)
	UpdateHeader(ctx context.Context, userID uuid.UUID, key string, update func(*Header)) error
	List(ctx context.Context, userID uuid.UUID, prefix string) ([]string, error)
	HealthCheck(ctx context.Context) error
}

var _ Store = (*FileStore)(nil)

// FileStore keeps documents on the local filesystem under root/users/<user_id>/
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates the root directory if needed
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("document root cannot be empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create document root: %w", err)
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) userDir(userID uuid.UUID) string {
	return filepath.Join(s.root, "users", userID.String())
}

func (s *FileStore) path(userID uuid.UUID, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.userDir(userID), filepath.FromSlash(key)), nil
}

// Write stores doc at doc.Key, replacing any existing document
func (s *FileStore) Write(ctx context.Context, userID uuid.UUID, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(userID, doc.Key)
	if err != nil {
		return err
	}
	data, err := doc.Marshal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(p, data)
}

// Read loads and parses the document at key
func (s *FileStore) Read(ctx context.Context, userID uuid.UUID, key string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(userID, key)
	if err != nil {
		return nil, err
	}
	return readDocument(p, key)
}

// UpdateHeader rewrites the frontmatter of an existing document, leaving the body as stored
func (s *FileStore) UpdateHeader(ctx context.Context, userID uuid.UUID, key string, update func(*Header)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(userID, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := readDocument(p, key)
	if err != nil {
		return err
	}
	update(&doc.Header)
	data, err := doc.Marshal()
	if err != nil {
		return err
	}
	return writeAtomic(p, data)
}

// List returns the sorted keys under the user's root that start with prefix
func (s *FileStore) List(ctx context.Context, userID uuid.UUID, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := s.userDir(userID)
	keys := []string{}

	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// HealthCheck verifies the root is writable
func (s *FileStore) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.root, ".healthcheck-*")
	if err != nil {
		return fmt.Errorf("document root not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func readDocument(p, key string) (*Document, error) {
	raw, err := os.ReadFile(p) // #nosec G304 -- path built from validated key
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return Parse(key, raw)
}

func writeAtomic(p string, data []byte) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create document directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close document: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit document: %w", err)
	}
	return nil
}
