// Package repository declares the Data Store contracts. Implementations live
// in the sqlite and mysql subpackages; services depend only on these
// interfaces.
package repository

import (
	"context"

	"github.com/sakif/photoshare/internal/model"
)

// AccountRepository persists accounts.
//
// CreateAccount must rely on the store's uniqueness constraint on email and
// return an error matching apperror.ErrConflict when it fires. There is no
// separate existence check.
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
}

// AlbumRepository persists album entries and their ordered file paths.
//
// CreateAlbum writes the album row and all of its paths atomically.
// ListAlbumsByOwner returns an empty, non-nil slice when the owner has none.
type AlbumRepository interface {
	CreateAlbum(ctx context.Context, album *model.Album) error
	ListAlbumsByOwner(ctx context.Context, ownerID int64) ([]model.Album, error)
}

// Store is the full Data Store surface the server wires up.
type Store interface {
	AccountRepository
	AlbumRepository
	Ping(ctx context.Context) error
	Close() error
}
