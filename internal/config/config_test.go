package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, PhotoFilesystem, cfg.Photo.Driver)
	assert.Equal(t, int64(16<<20), cfg.Photo.MaxBytes)
	assert.Equal(t, 5*time.Second, cfg.Scoring.Timeout)
	assert.InDelta(t, 0.8, cfg.Scoring.Threshold, 1e-9)
	assert.InDelta(t, 3.0, cfg.Geofence.ToleranceMeters, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Ledger.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.Database.StatementTimeout)
	assert.Equal(t, "/uploads", cfg.Photo.Filesystem.PathPrefix())
	assert.Equal(t, "postgres://geochallenge:@localhost:5432/geochallenge?sslmode=disable", cfg.Database.DSN())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("SCORING_THRESHOLD", "0.65")
	t.Setenv("DATABASE_PORT", "6543")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.InDelta(t, 0.65, cfg.Scoring.Threshold, 1e-9)
	assert.Equal(t, 6543, cfg.Database.Port)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
storage:
  driver: memory
photo:
  driver: cloudinary
  cloudinary:
    cloud_name: demo
notify:
  telegram:
    chat_id: -100123
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, PhotoCloudinary, cfg.Photo.Driver)
	assert.Equal(t, "demo", cfg.Photo.Cloudinary.CloudName)
	assert.Equal(t, int64(-100123), cfg.Notify.Telegram.ChatID)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Storage: StorageConfig{Driver: StorageMemory},
		Photo:   PhotoConfig{Driver: PhotoFilesystem},
		Scoring: ScoringConfig{Threshold: 0.8},
	}
	assert.NoError(t, valid.Validate())

	badStorage := valid
	badStorage.Storage.Driver = "mongo"
	assert.Error(t, badStorage.Validate())

	badPhoto := valid
	badPhoto.Photo.Driver = "s3"
	assert.Error(t, badPhoto.Validate())

	badThreshold := valid
	badThreshold.Scoring.Threshold = 1.5
	assert.Error(t, badThreshold.Validate())
}

func TestValidate_ScorerNeedsAbsolutePhotoURL(t *testing.T) {
	cfg := Config{
		Storage: StorageConfig{Driver: StorageMemory},
		Photo: PhotoConfig{
			Driver:     PhotoFilesystem,
			Filesystem: FilesystemConfig{Dir: "uploads", BaseURL: "/uploads"},
		},
		Scoring: ScoringConfig{Endpoint: "http://scorer:9000/score", Threshold: 0.8},
	}
	assert.Error(t, cfg.Validate())

	cfg.Photo.Filesystem.BaseURL = "https://photos.example.com/uploads/"
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "/uploads", cfg.Photo.Filesystem.PathPrefix())

	cfg.Photo.Filesystem.BaseURL = "/uploads"
	cfg.Photo.Driver = PhotoCloudinary
	assert.NoError(t, cfg.Validate(), "cloudinary refs are already absolute")

	cfg.Photo.Driver = PhotoFilesystem
	cfg.Scoring.Endpoint = ""
	assert.NoError(t, cfg.Validate(), "relative refs are fine without a scorer")
}
