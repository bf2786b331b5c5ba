// Package filestore is the File Store: a single flat directory holding every
// uploaded file, plus the staging area uploads pass through on the way in.
//
// Files get generated names of the form {field}-{millis}{ext}. The store
// never hands out the same millisecond twice, so names stay unique even when
// a batch of files arrives within one clock tick.
//
// Uploads are written through a Batch: files land in a private staging
// directory first, Commit moves them into the root, and Discard removes
// everything the batch wrote. That lets the upload pipeline undo the disk
// side when the database write fails.
package filestore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
)

// stagingDirName is hidden from Handler, so staged files are never served.
const stagingDirName = ".staging"

// ErrExists is returned when a generated name is already taken on disk.
var ErrExists = errors.New("filestore: file already exists")

// Store writes files under root and reports them as urlPrefix/<name>.
type Store struct {
	root      string
	urlPrefix string
	now       func() time.Time

	mu         sync.Mutex
	lastMillis int64
}

// New returns a Store rooted at root. The root and its staging directory are
// created if absent. urlPrefix is the path clients use to fetch files back,
// normally "uploads".
func New(root, urlPrefix string) (*Store, error) {
	s := &Store{
		root:      root,
		urlPrefix: strings.Trim(urlPrefix, "/"),
		now:       time.Now,
	}
	if err := os.MkdirAll(s.stagingRoot(), 0o755); err != nil {
		return nil, fmt.Errorf("filestore: creating %s: %w", s.stagingRoot(), err)
	}
	return s, nil
}

// Root is the directory files are committed into.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) stagingRoot() string {
	return filepath.Join(s.root, stagingDirName)
}

// Name generates a collision-free file name for an upload that arrived in
// form field `field` with client filename `original`.
func (s *Store) Name(field, original string) string {
	return fmt.Sprintf("%s-%d%s", sanitizeField(field), s.nextMillis(), extension(original))
}

// PublicPath is the path a stored file is recorded and served under.
func (s *Store) PublicPath(name string) string {
	if s.urlPrefix == "" {
		return name
	}
	return path.Join(s.urlPrefix, name)
}

// Write stores data under name directly in the root, creating the root on
// first use. It is the single-file entry point; uploads go through Batch,
// which shares writeExclusive with it. It refuses to overwrite an existing
// file.
func (s *Store) Write(name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", fmt.Errorf("filestore: creating %s: %w", s.root, err)
	}

	if err := writeExclusive(filepath.Join(s.root, name), bytes.NewReader(data)); err != nil {
		return "", err
	}
	return s.PublicPath(name), nil
}

// writeExclusive creates dst, which must not exist, and fills it from r. On
// any failure dst is removed again.
func writeExclusive(dst string, r io.Reader) error {
	name := filepath.Base(dst)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return fmt.Errorf("filestore: creating %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return fmt.Errorf("filestore: writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("filestore: closing %s: %w", name, err)
	}
	return nil
}

// NewBatch opens a staging area for one upload batch.
func (s *Store) NewBatch() (*Batch, error) {
	dir := filepath.Join(s.stagingRoot(), xid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: creating staging dir: %w", err)
	}
	return &Batch{store: s, dir: dir}, nil
}

// nextMillis returns the current Unix time in milliseconds, bumped past the
// last value handed out if the clock has not advanced.
func (s *Store) nextMillis() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now().UnixMilli()
	if ms <= s.lastMillis {
		ms = s.lastMillis + 1
	}
	s.lastMillis = ms
	return ms
}

// sanitizeField keeps generated names to [A-Za-z0-9_-].
func sanitizeField(field string) string {
	if field == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, field)
}

// extension returns the original file's extension, dot included, or "" if it
// has none or it contains anything other than letters and digits.
func extension(original string) string {
	base := path.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := path.Ext(base)
	if len(ext) < 2 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("filestore: invalid file name %q", name)
	}
	return nil
}
