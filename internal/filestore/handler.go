package filestore

import (
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// Handler serves committed files. Paths are relative to the root, so mount
// it behind http.StripPrefix. Directories and dot-prefixed entries (the
// staging area included) answer 404.
func (s *Store) Handler() http.Handler {
	return http.FileServer(filesOnly{http.Dir(s.root)})
}

// filesOnly is an http.FileSystem that hides directories and dotfiles.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return nil, fs.ErrNotExist
		}
	}

	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
