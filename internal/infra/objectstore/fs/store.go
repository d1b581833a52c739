// Package fs stores objects as files below a root directory. Each key maps
// to a body file plus a small JSON sidecar for content type and labels.
package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"linkcore/internal/infra/objectstore"
)

var _ objectstore.Store = (*Store)(nil)

const attrsSuffix = ".attrs.json"

// Store is a directory-backed object store.
type Store struct {
	root string
}

type attrs struct {
	ContentType string            `json:"content_type,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// New creates root when missing and returns a store over it.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("fs object store: root directory required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("fs object store: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Backend() objectstore.Backend { return objectstore.BackendFS }

// Create writes the body to a temp file and hard-links it into place, so a
// key is either absent or complete and never overwritten.
func (s *Store) Create(ctx context.Context, obj objectstore.Object) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.file(obj.Key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".pending-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(obj.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Link(tmpName, target); err != nil {
		if errors.Is(err, iofs.ErrExist) {
			return fmt.Errorf("%w: %s", objectstore.ErrKeyTaken, obj.Key)
		}
		return err
	}
	if obj.ContentType == "" && len(obj.Labels) == 0 {
		return nil
	}
	data, err := json.Marshal(attrs{ContentType: obj.ContentType, Labels: obj.Labels})
	if err != nil {
		return err
	}
	return os.WriteFile(target+attrsSuffix, data, 0o600)
}

func (s *Store) Read(ctx context.Context, key string) (objectstore.Object, error) {
	if err := ctx.Err(); err != nil {
		return objectstore.Object{}, err
	}
	target, err := s.file(key)
	if err != nil {
		return objectstore.Object{}, err
	}
	body, err := os.ReadFile(target) // #nosec G304 -- key validated by file
	if errors.Is(err, iofs.ErrNotExist) {
		return objectstore.Object{}, fmt.Errorf("%w: %s", objectstore.ErrNoSuchKey, key)
	}
	if err != nil {
		return objectstore.Object{}, err
	}
	obj := objectstore.Object{Key: key, Body: body}
	raw, err := os.ReadFile(target + attrsSuffix) // #nosec G304 -- sidecar of a validated key
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return obj, nil
	case err != nil:
		return objectstore.Object{}, err
	}
	var a attrs
	if err := json.Unmarshal(raw, &a); err != nil {
		return objectstore.Object{}, fmt.Errorf("attrs for %s: %w", key, err)
	}
	obj.ContentType = a.ContentType
	obj.Labels = a.Labels
	return obj, nil
}

// Keys walks the root and skips sidecars and pending temp files.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasSuffix(name, attrsSuffix) || strings.HasPrefix(name, ".pending-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// file maps key to its body path. Keys must be clean relative slash paths.
func (s *Store) file(key string) (string, error) {
	switch {
	case strings.TrimSpace(key) == "":
		return "", errors.New("fs object store: empty key")
	case strings.HasPrefix(key, "/"), strings.Contains(key, `\`):
		return "", fmt.Errorf("fs object store: key %q must be a relative slash path", key)
	case path.Clean(key) != key, key == "..", strings.HasPrefix(key, "../"):
		return "", fmt.Errorf("fs object store: key %q is not clean", key)
	case strings.HasSuffix(key, attrsSuffix), strings.HasPrefix(path.Base(key), ".pending-"):
		return "", fmt.Errorf("fs object store: key %q uses a reserved name", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
