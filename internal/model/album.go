package model

import (
	"io"
	"time"
)

// MaxBatchFiles is the upper bound on files in a single upload batch.
const MaxBatchFiles = 12

// Album is one upload batch: a title, a description and the ordered list of
// File Store paths written for it. Paths keep the order in which the files
// were submitted.
//
// The JSON shape mirrors the stored row (snake_case), which is what clients
// listing /photos/{userId} consume.
type Album struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Paths       []string  `json:"paths"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// UploadFile is a single file payload in an upload batch, independent of the
// transport it arrived on.
type UploadFile struct {
	FieldName string // form field the file came from, e.g. "photos"
	Filename  string // original client-side filename, used for its extension
	Content   io.Reader
}
