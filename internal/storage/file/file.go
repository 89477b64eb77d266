// Package file stores cart snapshots as JSON documents in a local directory.
package file

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/kirana/internal/domain/cart"
)

var _ cart.SnapshotStore = (*Store)(nil)

// Store keeps one document per key under dir. Writes go to a temporary file
// that is renamed over the target, so a reader never sees a partial document.
type Store struct {
	dir string
}

// New returns a Store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create storage dir %q", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key)+".json")
}

// Load implements cart.SnapshotStore.
func (s *Store) Load(_ context.Context, key string) (cart.Snapshot, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cart.Snapshot{}, cart.ErrNoSnapshot
		}
		return cart.Snapshot{}, errors.Wrapf(err, "read %q", key)
	}
	return cart.DecodeSnapshot(data)
}

// Save implements cart.SnapshotStore.
func (s *Store) Save(_ context.Context, key string, snap cart.Snapshot) error {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(cart.EncodeSnapshot(snap)); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close snapshot")
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return errors.Wrapf(err, "replace %q", key)
	}
	return nil
}

// Ping reports whether the directory is still usable.
func (s *Store) Ping(context.Context) error {
	fi, err := os.Stat(s.dir)
	if err != nil {
		return errors.Wrap(err, "stat storage dir")
	}
	if !fi.IsDir() {
		return errors.Errorf("%q is not a directory", s.dir)
	}
	return nil
}
