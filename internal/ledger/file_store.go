package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"courier/internal/fileutil"
)

// FileStore keeps the ledger as a flat JSON list of filenames.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the list permissively: anything other than a JSON list yields an
// empty set and ErrRead, and non-string entries are skipped.
func (s *FileStore) Load(ctx context.Context) (Set, error) {
	if err := ctx.Err(); err != nil {
		return NewSet(), fmt.Errorf("%w: %w", ErrRead, err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return NewSet(), fmt.Errorf("%w: %s: %w", ErrRead, s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewSet(), fmt.Errorf("%w: %s is empty", ErrRead, s.path)
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return NewSet(), fmt.Errorf("%w: %s: %w", ErrRead, s.path, err)
	}
	items, ok := decoded.([]any)
	if !ok {
		return NewSet(), fmt.Errorf("%w: %s does not hold a list", ErrRead, s.path)
	}

	set := make(Set, len(items))
	for _, item := range items {
		if name, ok := item.(string); ok {
			set.Add(name)
		}
	}
	return set, nil
}

// Save writes the set sorted, replacing the file atomically.
func (s *FileStore) Save(ctx context.Context, set Set) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := fileutil.WriteJSONAtomic(s.path, set.Sorted(), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, s.path, err)
	}
	return nil
}

// Forget removes names from the file.
func (s *FileStore) Forget(ctx context.Context, names ...string) (int, error) {
	set, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, name := range names {
		if set.Has(name) {
			delete(set, name)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := s.Save(ctx, set); err != nil {
		return 0, err
	}
	return removed, nil
}

// Location returns the file path.
func (s *FileStore) Location() string {
	return s.path
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}
