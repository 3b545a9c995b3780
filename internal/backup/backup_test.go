package backup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/config"
	"github.com/shiurfinder/shiurfinder/internal/logging"
)

type call struct {
	name      string
	args, env []string
}

func newTestService(t *testing.T, driver string, runErr error) (*Service, *[]call) {
	t.Helper()
	storeCfg := config.StoreConfig{
		MongoURI:      "mongodb://db:27017",
		MongoDatabase: "shiurfinder",
		Postgres:      config.PostgresConfig{Host: "pg", Port: "5432", User: "u", Password: "secret", DBName: "sf", SSLMode: "disable"},
	}
	cfg := config.BackupConfig{Dir: t.TempDir(), MongodumpBin: "mongodump", PgDumpBin: "pg_dump"}

	svc := NewService(driver, storeCfg, cfg, logging.Discard())
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.UTC) }

	var calls []call
	svc.run = func(ctx context.Context, name string, args, env []string) ([]byte, error) {
		calls = append(calls, call{name, args, env})
		return []byte("output"), runErr
	}
	return svc, &calls
}

func TestRunMongo(t *testing.T) {
	svc, calls := newTestService(t, config.StoreMongo, nil)

	dir, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "backup-2026-03-04T05-06-07.008Z", dir)

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, "mongodump", c.name)
	assert.Contains(t, c.args, "--uri=mongodb://db:27017")
	assert.Contains(t, c.args, "--db=shiurfinder")
	assert.Contains(t, c.args, "--out="+filepath.Join(svc.cfg.Dir, dir))
}

func TestRunPostgresKeepsPasswordOutOfArgs(t *testing.T) {
	svc, calls := newTestService(t, config.StorePostgres, nil)

	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	c := (*calls)[0]
	assert.Equal(t, "pg_dump", c.name)
	assert.Contains(t, c.env, "PGPASSWORD=secret")
	for _, a := range c.args {
		assert.NotContains(t, a, "secret")
	}
}

func TestRunUnsupportedAndFailure(t *testing.T) {
	svc, calls := newTestService(t, config.StoreMemory, nil)
	_, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Empty(t, *calls)

	svc, _ = newTestService(t, config.StoreMongo, errors.New("exit status 1"))
	_, err = svc.Run(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnsupported)
}

func TestBackupHandler(t *testing.T) {
	tests := []struct {
		name       string
		driver     string
		runErr     error
		wantStatus int
	}{
		{"mongo", config.StoreMongo, nil, http.StatusOK},
		{"memory", config.StoreMemory, nil, http.StatusBadRequest},
		{"tool fails", config.StorePostgres, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.driver, tt.runErr)
			rec := httptest.NewRecorder()
			NewHandler(svc).Backup(rec, httptest.NewRequest(http.MethodPost, "/api/admin/backup-mongodb", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
