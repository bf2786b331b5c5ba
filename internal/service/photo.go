package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/photoshare/internal/apperror"
	"github.com/sakif/photoshare/internal/filestore"
	"github.com/sakif/photoshare/internal/metrics"
	"github.com/sakif/photoshare/internal/model"
	"github.com/sakif/photoshare/internal/repository"
)

// PhotoService runs the upload pipeline and serves album listings.
type PhotoService struct {
	albums repository.AlbumRepository
	files  *filestore.Store
	logger *slog.Logger
}

// NewPhotoService creates a PhotoService.
func NewPhotoService(albums repository.AlbumRepository, files *filestore.Store, logger *slog.Logger) *PhotoService {
	return &PhotoService{
		albums: albums,
		files:  files,
		logger: logger,
	}
}

// UploadBatch stores up to model.MaxBatchFiles files and records them as one
// album owned by ownerID.
//
// The pipeline is all-or-nothing:
//  1. reject oversize batches before touching the disk
//  2. stage each file, in order, under a generated name
//  3. commit the staged files into the uploads directory
//  4. insert the album and its ordered paths in one transaction
//
// A failure at any step discards every file the batch wrote. Title and
// description are free text and may be empty; so may the batch itself.
// ownerID is not checked against existing accounts.
func (s *PhotoService) UploadBatch(
	ctx context.Context,
	ownerID int64,
	title, description string,
	files []model.UploadFile,
) (*model.Album, error) {
	if err := s.CheckBatchSize(len(files)); err != nil {
		return nil, err
	}

	batch, err := s.files.NewBatch()
	if err != nil {
		return nil, s.fileFailure("failed to open upload batch", err)
	}

	for i, f := range files {
		if _, err := batch.Write(f.FieldName, f.Filename, f.Content); err != nil {
			s.discard(batch)
			return nil, s.fileFailure("failed to stage upload", err, slog.Int("index", i))
		}
	}

	if err := batch.Commit(); err != nil {
		s.discard(batch)
		return nil, s.fileFailure("failed to commit upload", err)
	}

	album := &model.Album{
		Title:       title,
		Description: description,
		Paths:       batch.Paths(),
		UserID:      ownerID,
	}
	if err := s.albums.CreateAlbum(ctx, album); err != nil {
		s.discard(batch)
		s.logger.Error("failed to record album",
			slog.Int64("userID", ownerID),
			slog.Int("files", len(files)),
			slog.String("error", err.Error()),
		)
		metrics.UploadBatches.WithLabelValues(metrics.ResultStoreError).Inc()
		return nil, apperror.Store(err)
	}

	metrics.UploadBatches.WithLabelValues(metrics.ResultCreated).Inc()
	metrics.UploadedFiles.Add(float64(len(album.Paths)))
	s.logger.Info("album created",
		slog.Int64("id", album.ID),
		slog.Int64("userID", ownerID),
		slog.Int("files", len(album.Paths)),
	)
	return album, nil
}

// CheckBatchSize rejects a batch of n files when n exceeds
// model.MaxBatchFiles. Transports that read files one at a time call it as
// the count grows so they can stop reading early.
func (s *PhotoService) CheckBatchSize(n int) error {
	if n <= model.MaxBatchFiles {
		return nil
	}
	metrics.UploadBatches.WithLabelValues(metrics.ResultRejected).Inc()
	return apperror.ValidationFailed("photos",
		fmt.Sprintf("at most %d files can be uploaded at once", model.MaxBatchFiles))
}

// ListByOwner returns every album owned by ownerID. An owner with no albums
// gets an empty slice, not an error.
func (s *PhotoService) ListByOwner(ctx context.Context, ownerID int64) ([]model.Album, error) {
	albums, err := s.albums.ListAlbumsByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error("failed to list albums",
			slog.Int64("userID", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Store(err)
	}
	if albums == nil {
		albums = []model.Album{}
	}
	return albums, nil
}

func (s *PhotoService) discard(batch *filestore.Batch) {
	if err := batch.Discard(); err != nil {
		s.logger.Error("failed to discard upload batch; files may be orphaned",
			slog.String("error", err.Error()),
		)
	}
}

func (s *PhotoService) fileFailure(msg string, err error, attrs ...any) error {
	s.logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
	metrics.UploadBatches.WithLabelValues(metrics.ResultFileError).Inc()
	return apperror.FileStore(err)
}
