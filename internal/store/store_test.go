package store

import (
	"context"
	"path/filepath"
	"testing"

	"spreadwatch/internal/model"
	"spreadwatch/internal/store/file"
	"spreadwatch/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_DefaultsToFile(t *testing.T) {
	s, err := Open(context.Background(), Config{StatePath: filepath.Join(t.TempDir(), "state.json")})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &file.Store{}, s)
}

func TestOpen_SQLiteIsJournal(t *testing.T) {
	s, err := Open(context.Background(), Config{
		Backend:    "SQLite",
		SQLitePath: filepath.Join(t.TempDir(), "spreadwatch.db"),
	})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &sqlite.Store{}, s)

	_, ok := s.(model.AlertJournal)
	assert.True(t, ok)
	_, ok = s.(Pinger)
	assert.True(t, ok)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestOpen_PostgresNeedsURL(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: BackendPostgres})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"file ok", Config{Backend: "file", StatePath: "x.json"}, false},
		{"file missing path", Config{Backend: "file"}, true},
		{"redis ok", Config{Backend: "redis", RedisAddr: "localhost:6379"}, false},
		{"badger missing path", Config{Backend: "badger"}, true},
		{"postgres missing url", Config{Backend: "postgres"}, true},
		{"unknown", Config{Backend: "mongo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
