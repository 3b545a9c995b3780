package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
	"github.com/shiurfinder/shiurfinder/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestInstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a, b := New(), New()

	require.NoError(t, a.CreateRabbi(ctx, &models.Rabbi{Name: "Rav A"}))

	n, err := b.CountRabbis(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &models.User{Username: "u", Email: "u@example.com"}
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.SetFavorites(ctx, u.ID, []string{"a"}))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	got.Favorites[0] = "mutated"

	again, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.Favorites)
}

func TestConcurrentFollowersAdjust(t *testing.T) {
	ctx := context.Background()
	s := New()

	r := &models.Rabbi{Name: "Rav C"}
	require.NoError(t, s.CreateRabbi(ctx, r))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AdjustFollowers(ctx, r.ID, 1)
		}()
	}
	wg.Wait()

	got, err := s.GetRabbi(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Followers)
}
