package catalog

import (
	"context"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/kirana/internal/domain/product"
)

// WriteSnapshot writes entries as a gzip-compressed JSON array.
func WriteSnapshot(w io.Writer, entries []Entry) error {
	gz := pgzip.NewWriter(w)

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Arr(func(e *jx.Encoder) {
		for _, entry := range entries {
			EncodeEntry(e, entry)
		}
	})
	if _, err := gz.Write(e.Bytes()); err != nil {
		_ = gz.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "flush snapshot")
	}
	return nil
}

// ReadSnapshot reads entries written by WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]Entry, error) {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open gzip stream")
	}
	defer func() { _ = gz.Close() }()

	var entries []Entry
	d := jx.Decode(gz, 4096)
	if err := d.Arr(func(d *jx.Decoder) error {
		e, _, err := DecodeEntry(d)
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	return entries, nil
}

var _ product.Source = (*SnapshotSource)(nil)

// SnapshotSource serves the catalog from a snapshot file produced by
// catalog-export. The file is re-read on every call so a replaced snapshot
// is picked up by the next refresh.
type SnapshotSource struct {
	path string
}

// NewSnapshotSource returns a source reading path.
func NewSnapshotSource(path string) *SnapshotSource {
	return &SnapshotSource{path: path}
}

// ListAvailable implements product.Source.
func (s *SnapshotSource) ListAvailable(ctx context.Context) ([]product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog snapshot")
	}
	defer func() { _ = f.Close() }()

	entries, err := ReadSnapshot(f)
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", s.path)
	}
	return ProjectAvailable(entries), nil
}
