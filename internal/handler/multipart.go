package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/sakif/photoshare/internal/apperror"
	"github.com/sakif/photoshare/internal/model"
)

// maxValueBytes bounds a single text field of an upload form.
const maxValueBytes = 1 << 20

// uploadForm is an /addphotos body read part by part.
type uploadForm struct {
	values map[string]string
	files  []spooledFile
}

// spooledFile holds one uploaded part, in memory or in a temporary file once
// the form's memory budget is spent.
type spooledFile struct {
	filename string
	data     []byte
	tmp      *os.File
}

// readUploadForm streams a multipart body. Text fields are kept in memory
// (first value wins). File parts must use PhotoField; together they may hold
// maxMemory bytes in memory before spilling to temporary files.
//
// checkCount is called with the running file count as each file part
// starts, before its content is read, so an oversized batch is refused at
// its first extra part instead of after the whole body has been buffered.
//
// On error everything read so far is released; on success the caller must
// call cleanup.
func readUploadForm(r *http.Request, maxMemory int64, checkCount func(n int) error) (*uploadForm, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperror.ValidationFailed("body", "expected a multipart/form-data body")
	}

	form := &uploadForm{values: make(map[string]string)}
	budget := maxMemory

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			form.cleanup()
			return nil, apperror.ValidationFailed("body", "malformed multipart body")
		}

		field := part.FormName()

		if part.FileName() == "" {
			if err := form.readValue(field, part); err != nil {
				part.Close()
				form.cleanup()
				return nil, err
			}
			part.Close()
			continue
		}

		if field != PhotoField {
			part.Close()
			form.cleanup()
			return nil, apperror.ValidationFailed(field, fmt.Sprintf("unexpected file field %q", field))
		}
		if err := checkCount(len(form.files) + 1); err != nil {
			part.Close()
			form.cleanup()
			return nil, err
		}

		f, used, err := spool(part, budget)
		part.Close()
		if err != nil {
			form.cleanup()
			return nil, err
		}
		f.filename = part.FileName()
		budget -= used
		form.files = append(form.files, f)
	}
}

func (u *uploadForm) readValue(field string, r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, maxValueBytes+1))
	if err != nil {
		return apperror.ValidationFailed("body", "malformed multipart body")
	}
	if len(data) > maxValueBytes {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s is too large", field))
	}
	if _, seen := u.values[field]; !seen {
		u.values[field] = string(data)
	}
	return nil
}

// spool reads one file part. It keeps the content in memory when it fits in
// budget and otherwise writes it to a temporary file. used is the number of
// budget bytes consumed.
func spool(part io.Reader, budget int64) (f spooledFile, used int64, err error) {
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, part, budget+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return spooledFile{}, 0, apperror.ValidationFailed("body", "malformed multipart body")
	}
	if n <= budget {
		return spooledFile{data: buf.Bytes()}, n, nil
	}

	tmp, err := os.CreateTemp("", "photoshare-upload-*")
	if err != nil {
		return spooledFile{}, 0, apperror.FileStore(err)
	}
	f = spooledFile{tmp: tmp}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		f.release()
		return spooledFile{}, 0, apperror.FileStore(err)
	}
	if _, err := io.Copy(tmp, part); err != nil {
		f.release()
		return spooledFile{}, 0, apperror.ValidationFailed("body", "malformed multipart body")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		f.release()
		return spooledFile{}, 0, apperror.FileStore(err)
	}
	return f, budget, nil
}

func (f spooledFile) reader() io.Reader {
	if f.tmp != nil {
		return f.tmp
	}
	return bytes.NewReader(f.data)
}

func (f spooledFile) release() {
	if f.tmp != nil {
		f.tmp.Close()
		os.Remove(f.tmp.Name())
	}
}

// value returns the first value of a text field, or "".
func (u *uploadForm) value(field string) string {
	return u.values[field]
}

// uploadFiles returns the file parts in the order they arrived.
func (u *uploadForm) uploadFiles() []model.UploadFile {
	files := make([]model.UploadFile, len(u.files))
	for i, f := range u.files {
		files[i] = model.UploadFile{
			FieldName: PhotoField,
			Filename:  f.filename,
			Content:   f.reader(),
		}
	}
	return files
}

// cleanup removes any temporary files.
func (u *uploadForm) cleanup() {
	for _, f := range u.files {
		f.release()
	}
	u.files = nil
}
