// Package config reads server settings from the environment. A .env file in
// the working directory, if present, is loaded first; variables already set
// in the environment win over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/sakif/photoshare/internal/repository/mysql"
)

const (
	defaultPort       = 5000
	defaultDBPath     = "data/photoshare.db"
	defaultUploadDir  = "uploads"
	defaultMaxMemory  = 32 << 20
	defaultDatabase   = "photoshare"
	defaultMySQLPort  = 3306
	defaultCORSOrigin = "*"
)

// Config is everything cmd/server needs to start.
type Config struct {
	Port int

	// MySQL is used when MySQL.Host is set; otherwise the SQLite file at
	// DBPath is the Data Store.
	MySQL  mysql.Config
	DBPath string

	UploadDir       string
	MaxUploadMemory int64

	// JWTSecret enables login tokens and token-guarded uploads.
	JWTSecret string

	CORSOrigins []string
	LogLevel    slog.Level
}

// UseMySQL reports whether the MySQL backend is configured.
func (c Config) UseMySQL() bool {
	return c.MySQL.Host != ""
}

// Load reads .env (if any) and then the environment.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an
// error.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (Config, error) {
	var (
		cfg Config
		err error
	)

	if cfg.Port, err = intEnv("PORT", defaultPort); err != nil {
		return Config{}, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: PORT %d out of range", cfg.Port)
	}

	cfg.MySQL = mysql.Config{
		Host:     strings.TrimSpace(os.Getenv("DATABASE_HOST")),
		User:     os.Getenv("DATABASE_USER"),
		Password: os.Getenv("DATABASE_PASSWORD"),
		Database: stringEnv("DATABASE", defaultDatabase),
	}
	if cfg.MySQL.Port, err = intEnv("DATABASE_PORT", defaultMySQLPort); err != nil {
		return Config{}, err
	}

	cfg.DBPath = stringEnv("DB_PATH", defaultDBPath)
	cfg.UploadDir = stringEnv("UPLOAD_DIR", defaultUploadDir)

	maxMemory, err := intEnv("MAX_UPLOAD_MEMORY", defaultMaxMemory)
	if err != nil {
		return Config{}, err
	}
	if maxMemory <= 0 {
		return Config{}, fmt.Errorf("config: MAX_UPLOAD_MEMORY must be > 0")
	}
	cfg.MaxUploadMemory = int64(maxMemory)

	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))
	cfg.CORSOrigins = splitList(stringEnv("CORS_ORIGINS", defaultCORSOrigin))

	if cfg.LogLevel, err = levelEnv("LOG_LEVEL"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer", key, v)
	}
	return n, nil
}

func levelEnv(key string) (slog.Level, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	return level, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
