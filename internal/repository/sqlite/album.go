package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/photoshare/internal/model"
)

// CreateAlbum inserts the album row and one album_files row per path inside
// a single transaction. Either the album and all of its paths exist
// afterwards, or none of them do.
//
// album.Paths order is preserved through the position column.
func (db *DB) CreateAlbum(ctx context.Context, album *model.Album) (err error) {
	album.CreatedAt = time.Now().UTC()
	if album.Paths == nil {
		album.Paths = []string{}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning album transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO albums (title, description, user_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		album.Title,
		album.Description,
		album.UserID,
		album.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting album: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading album id: %w", err)
	}

	for i, p := range album.Paths {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO album_files (album_id, position, path) VALUES (?, ?, ?)`,
			id, i, p,
		); err != nil {
			return fmt.Errorf("sqlite: inserting album file %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing album: %w", err)
	}

	album.ID = id
	return nil
}

// ListAlbumsByOwner returns every album owned by ownerID, oldest first, each
// with its paths in submission order.
//
// One LEFT JOIN query is used rather than a query per album: the pool holds
// a single connection, so a nested query while rows are open would block.
func (db *DB) ListAlbumsByOwner(ctx context.Context, ownerID int64) ([]model.Album, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT a.id, a.title, a.description, a.user_id, a.created_at, f.path
		 FROM albums a
		 LEFT JOIN album_files f ON f.album_id = a.id
		 WHERE a.user_id = ?
		 ORDER BY a.id, f.position`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing albums for owner %d: %w", ownerID, err)
	}
	defer rows.Close()

	albums := make([]model.Album, 0)

	for rows.Next() {
		var (
			a    model.Album
			path sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.UserID, &a.CreatedAt, &path); err != nil {
			return nil, fmt.Errorf("sqlite: scanning album row: %w", err)
		}

		// Rows arrive grouped by album id; start a new album when it changes.
		if n := len(albums); n == 0 || albums[n-1].ID != a.ID {
			a.Paths = []string{}
			albums = append(albums, a)
		}
		if path.Valid {
			last := &albums[len(albums)-1]
			last.Paths = append(last.Paths, path.String)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating albums: %w", err)
	}

	return albums, nil
}
