// Package main is the entry point for the photoshare server.
//
// main only reads configuration, opens the Data Store and the File Store,
// and hands them to internal/server. Anything that fails here is fatal: the
// process logs the cause and exits 1 instead of serving without a store.
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sakif/photoshare/internal/auth"
	"github.com/sakif/photoshare/internal/config"
	"github.com/sakif/photoshare/internal/filestore"
	"github.com/sakif/photoshare/internal/repository"
	"github.com/sakif/photoshare/internal/repository/mysql"
	sqliteRepo "github.com/sakif/photoshare/internal/repository/sqlite"
	"github.com/sakif/photoshare/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open data store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	files, err := filestore.New(cfg.UploadDir, "uploads")
	if err != nil {
		logger.Error("failed to prepare upload directory",
			slog.String("dir", cfg.UploadDir),
			slog.String("error", err.Error()),
		)
		store.Close()
		os.Exit(1)
	}

	// Tokens are opt-in. Without JWT_SECRET, login returns the account only
	// and /addphotos trusts the user_id field.
	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		tokens, err = auth.NewTokenService(cfg.JWTSecret, auth.DefaultTokenTTL)
		if err != nil {
			logger.Error("invalid JWT_SECRET", slog.String("error", err.Error()))
			store.Close()
			os.Exit(1)
		}
	} else {
		logger.Warn("JWT_SECRET not set; uploads are not tied to a login")
	}

	srv := server.New(server.Config{
		Port:            cfg.Port,
		CORSOrigins:     cfg.CORSOrigins,
		MaxUploadMemory: cfg.MaxUploadMemory,
	}, store, files, tokens, logger)

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openStore picks MySQL when DATABASE_HOST is set and SQLite otherwise.
func openStore(cfg config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.UseMySQL() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := mysql.New(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		logger.Info("using MySQL data store",
			slog.String("host", cfg.MySQL.Host),
			slog.Int("port", cfg.MySQL.Port),
			slog.String("database", cfg.MySQL.Database),
		)
		return db, nil
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	logger.Info("using SQLite data store", slog.String("path", cfg.DBPath))
	return db, nil
}
