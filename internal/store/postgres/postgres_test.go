package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/shiurfinder/shiurfinder/internal/store"
	"github.com/shiurfinder/shiurfinder/internal/store/storetest"
)

func TestContract(t *testing.T) {
	dsn := os.Getenv("SHIURFINDER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SHIURFINDER_TEST_POSTGRES_DSN not set")
	}

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(context.Background(), sqlDB))

	db := bun.NewDB(sqlDB, pgdialect.New())

	storetest.Run(t, func(t *testing.T) store.Store {
		s := New(db)
		require.NoError(t, s.Truncate(context.Background()))
		return s
	})
}
