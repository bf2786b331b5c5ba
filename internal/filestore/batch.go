package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Batch stages the files of a single upload. It is not safe for concurrent
// use; one request owns one batch.
type Batch struct {
	store     *Store
	dir       string
	files     []stagedFile
	committed int
}

type stagedFile struct {
	name   string
	public string
}

// Write copies r into the staging area under a generated name and returns
// the path the file will have once committed. Order of calls is the order of
// Paths.
func (b *Batch) Write(field, original string, r io.Reader) (string, error) {
	if b.committed > 0 {
		return "", errors.New("filestore: batch already committed")
	}

	name := b.store.Name(field, original)
	staged := filepath.Join(b.dir, name)

	if err := writeExclusive(staged, r); err != nil {
		return "", err
	}

	sf := stagedFile{name: name, public: b.store.PublicPath(name)}
	b.files = append(b.files, sf)
	return sf.public, nil
}

// Paths returns the public paths of every file written so far, in order.
// It never returns nil.
func (b *Batch) Paths() []string {
	paths := make([]string, len(b.files))
	for i, f := range b.files {
		paths[i] = f.public
	}
	return paths
}

// Len is the number of files staged.
func (b *Batch) Len() int {
	return len(b.files)
}

// Commit moves every staged file into the store root. On error some files
// may already have moved; call Discard to remove them.
func (b *Batch) Commit() error {
	for _, f := range b.files[b.committed:] {
		dst := filepath.Join(b.store.root, f.name)
		if _, err := os.Lstat(dst); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, f.name)
		}
		if err := os.Rename(filepath.Join(b.dir, f.name), dst); err != nil {
			return fmt.Errorf("filestore: committing %s: %w", f.name, err)
		}
		b.committed++
	}

	if err := os.RemoveAll(b.dir); err != nil {
		return fmt.Errorf("filestore: removing staging dir: %w", err)
	}
	return nil
}

// Discard removes everything the batch wrote: committed files in the root
// and whatever is left in staging. It is safe to call more than once.
func (b *Batch) Discard() error {
	var errs []error
	for _, f := range b.files[:b.committed] {
		if err := os.Remove(filepath.Join(b.store.root, f.name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	b.files = b.files[:0]
	b.committed = 0

	if err := os.RemoveAll(b.dir); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("filestore: discarding batch: %w", err)
	}
	return nil
}
