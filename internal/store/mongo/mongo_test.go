package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/store"
	"github.com/shiurfinder/shiurfinder/internal/store/storetest"
)

func TestObjectIDRejectsInvalidHex(t *testing.T) {
	_, err := objectID("not-an-object-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, err, store.ErrInvalidID)
}

func TestObjectIDsSkipsInvalid(t *testing.T) {
	oids := objectIDs([]string{"507f1f77bcf86cd799439011", "nope"})
	require.Len(t, oids, 1)
	assert.Equal(t, []string{"507f1f77bcf86cd799439011"}, hexIDs(oids))
}

func TestParseObjectIDsRejectsInvalid(t *testing.T) {
	oids, err := parseObjectIDs([]string{"507f1f77bcf86cd799439011"})
	require.NoError(t, err)
	assert.Equal(t, []string{"507f1f77bcf86cd799439011"}, hexIDs(oids))

	_, err = parseObjectIDs([]string{"507f1f77bcf86cd799439011", "nope"})
	assert.ErrorIs(t, err, store.ErrInvalidID)
	assert.NotErrorIs(t, err, store.ErrNotFound)
}

func TestContract(t *testing.T) {
	uri := os.Getenv("SHIURFINDER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("SHIURFINDER_TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Connect(ctx, uri, "shiurfinder_test", 5*time.Second)
		require.NoError(t, err)
		require.NoError(t, s.Drop(ctx))
		t.Cleanup(func() { _ = s.Close(context.Background()) })
		return s
	})
}
