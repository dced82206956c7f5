package storage

import (
	"path/filepath"
	"testing"

	"shortener/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryCreate(t *testing.T) {
	factory := NewFactory()

	t.Run("memory", func(t *testing.T) {
		store, err := factory.Create(models.StorageConfig{Type: models.StorageTypeMemory})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &MemoryStorage{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := factory.Create(models.StorageConfig{
			Type: models.StorageTypeSQLite,
			Database: models.DatabaseConfig{
				DSN: filepath.Join(t.TempDir(), "factory.db"),
			},
		})
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &SQLiteStorage{}, store)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := factory.Create(models.StorageConfig{Type: "cassandra"})
		assert.Error(t, err)
	})
}

func TestFactoryValidateConfig(t *testing.T) {
	factory := NewFactory()

	tests := []struct {
		name    string
		config  models.StorageConfig
		wantErr bool
	}{
		{
			name:   "memory needs nothing",
			config: models.StorageConfig{Type: models.StorageTypeMemory},
		},
		{
			name: "sqlite with dsn",
			config: models.StorageConfig{
				Type:     models.StorageTypeSQLite,
				Database: models.DatabaseConfig{DSN: "links.db"},
			},
		},
		{
			name:    "sqlite without dsn",
			config:  models.StorageConfig{Type: models.StorageTypeSQLite},
			wantErr: true,
		},
		{
			name:    "postgres without dsn",
			config:  models.StorageConfig{Type: models.StorageTypePostgres},
			wantErr: true,
		},
		{
			name:    "unknown type",
			config:  models.StorageConfig{Type: "redis"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := factory.ValidateConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFactorySupportedProviders(t *testing.T) {
	providers := NewFactory().GetSupportedProviders()
	assert.ElementsMatch(t, []string{"memory", "sqlite", "postgres"}, providers)
}
