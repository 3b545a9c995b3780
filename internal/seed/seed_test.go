package seed

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/logging"
	"github.com/shiurfinder/shiurfinder/internal/store"
	"github.com/shiurfinder/shiurfinder/internal/store/memory"
)

func TestDemo(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	res, err := Demo(ctx, st, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)
	assert.Equal(t, 5, res.Rabbis)
	assert.Equal(t, 50, res.Shiurim)

	rabbis, err := st.ListRabbis(ctx)
	require.NoError(t, err)
	known := make(map[string]bool)
	for _, r := range rabbis {
		known[r.ID] = true
	}

	shiurim, err := st.ListShiurim(ctx, store.ShiurFilter{})
	require.NoError(t, err)
	require.Len(t, shiurim, 50)
	for _, sh := range shiurim {
		assert.True(t, known[sh.RabbiID], "shiur %s points at unknown rabbi", sh.ID)
		assert.True(t, sh.Level.Valid())
		assert.NotEmpty(t, sh.Parasha)
	}
}

func TestIfEmpty(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	require.NoError(t, IfEmpty(ctx, st, logging.Discard()))
	require.NoError(t, IfEmpty(ctx, st, logging.Discard()))

	count, err := st.CountRabbis(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}
