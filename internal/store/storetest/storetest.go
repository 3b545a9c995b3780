// Package storetest holds the behavioural contract every store.Store
// implementation must satisfy. Backend packages call Run from their tests.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiurfinder/shiurfinder/internal/models"
	"github.com/shiurfinder/shiurfinder/internal/store"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("reset token", func(t *testing.T) { testResetToken(t, newStore(t)) })
	t.Run("preferences", func(t *testing.T) { testPreferences(t, newStore(t)) })
	t.Run("following", func(t *testing.T) { testFollowing(t, newStore(t)) })
	t.Run("rabbis", func(t *testing.T) { testRabbis(t, newStore(t)) })
	t.Run("shiurim", func(t *testing.T) { testShiurim(t, newStore(t)) })
}

func newUser(name string) *models.User {
	return &models.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Role:         models.RoleUser,
	}
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	u := newUser("moshe")
	require.NoError(t, s.CreateUser(ctx, u))
	require.NotEmpty(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "moshe", got.Username)
	assert.Equal(t, "moshe@example.com", got.Email)
	assert.Equal(t, models.RoleUser, got.Role)

	byEmail, err := s.FindUserByEmail(ctx, "moshe@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byName, err := s.FindUserByUsername(ctx, "moshe")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	_, err = s.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetUser(ctx, "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)

	dupName := newUser("moshe")
	dupName.Email = "other@example.com"
	assert.ErrorIs(t, s.CreateUser(ctx, dupName), store.ErrDuplicate)

	dupEmail := newUser("aharon")
	dupEmail.Email = "moshe@example.com"
	assert.ErrorIs(t, s.CreateUser(ctx, dupEmail), store.ErrDuplicate)

	require.NoError(t, s.SetRole(ctx, u.ID, models.RoleAdmin))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin())
}

func testResetToken(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now()

	u := newUser("miriam")
	require.NoError(t, s.CreateUser(ctx, u))
	require.NoError(t, s.SetResetToken(ctx, u.ID, "tokenhash", now.Add(time.Hour)))

	found, err := s.FindUserByResetToken(ctx, "tokenhash", now)
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = s.FindUserByResetToken(ctx, "tokenhash", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, store.ErrNotFound, "expired token must not match")

	_, err = s.FindUserByResetToken(ctx, "other", now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.UpdatePassword(ctx, u.ID, "newhash"))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", got.PasswordHash)
	assert.Empty(t, got.ResetPasswordToken)
	assert.Nil(t, got.ResetPasswordExpires)

	_, err = s.FindUserByResetToken(ctx, "tokenhash", now)
	assert.ErrorIs(t, err, store.ErrNotFound, "token is single use")
}

// seedShiurim creates one rabbi and n shiurim and returns the shiur ids.
func seedShiurim(t *testing.T, s store.Store, n int) []string {
	t.Helper()
	ctx := context.Background()

	r := &models.Rabbi{Name: "Rav Seed"}
	require.NoError(t, s.CreateRabbi(ctx, r))

	ids := make([]string, 0, n)
	for i := range n {
		sh := &models.Shiur{Title: fmt.Sprintf("Shiur %d", i), RabbiID: r.ID, URL: fmt.Sprintf("https://example.com/%d", i)}
		require.NoError(t, s.CreateShiur(ctx, sh))
		ids = append(ids, sh.ID)
	}
	return ids
}

func testPreferences(t *testing.T, s store.Store) {
	ctx := context.Background()
	ids := seedShiurim(t, s, 5)

	u := newUser("yosef")
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.SetFavorites(ctx, u.ID, []string{ids[0], ids[1]}))
	require.NoError(t, s.SetFavorites(ctx, u.ID, []string{ids[2]}))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[2]}, got.Favorites)

	require.NoError(t, s.SetInterests(ctx, u.ID, []string{ids[4], ids[3], ids[2]}))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[4], ids[3], ids[2]}, got.Interests, "stored order is preserved")

	require.NoError(t, s.SetSelections(ctx, u.ID, []string{ids[0], ids[1]}, []string{ids[1]}))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[0], ids[1]}, got.Interests)
	assert.Equal(t, []string{ids[1]}, got.Favorites)

	require.NoError(t, s.RemoveFavorite(ctx, u.ID, ids[1]))
	require.NoError(t, s.RemoveFavorite(ctx, u.ID, ids[1]))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Favorites)

	now := time.Now().UTC().Truncate(time.Millisecond)
	notes := []models.ShiurNote{{ShiurID: ids[0], Note: "great", CreatedAt: now, UpdatedAt: now}}
	require.NoError(t, s.SaveNotes(ctx, u.ID, notes))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, got.ShiurNotes, 1)
	assert.Equal(t, ids[0], got.ShiurNotes[0].ShiurID)
	assert.Equal(t, "great", got.ShiurNotes[0].Note)
	assert.WithinDuration(t, now, got.ShiurNotes[0].UpdatedAt, time.Millisecond)

	assert.ErrorIs(t, s.SetFavorites(ctx, "does-not-exist", nil), store.ErrNotFound)
}

func testFollowing(t *testing.T, s store.Store) {
	ctx := context.Background()

	r := &models.Rabbi{Name: "Rav Follow"}
	require.NoError(t, s.CreateRabbi(ctx, r))

	u := newUser("devorah")
	require.NoError(t, s.CreateUser(ctx, u))

	added, err := s.AddFollowing(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddFollowing(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, added)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, got.Following)

	removed, err := s.RemoveFollowing(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.RemoveFollowing(ctx, u.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func testRabbis(t *testing.T, s store.Store) {
	ctx := context.Background()

	n, err := s.CountRabbis(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	a := &models.Rabbi{Name: "Rav Aharon", Bio: "bio"}
	b := &models.Rabbi{Name: "Rav Binyamin"}
	require.NoError(t, s.CreateRabbi(ctx, a))
	require.NoError(t, s.CreateRabbi(ctx, b))
	require.NotEqual(t, a.ID, b.ID)

	found, err := s.FindRabbiByName(ctx, "Rav Aharon")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)
	assert.Equal(t, "bio", found.Bio)

	_, err = s.FindRabbiByName(ctx, "rav aharon")
	assert.ErrorIs(t, err, store.ErrNotFound, "name match is exact")

	all, err := s.ListRabbis(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := s.GetRabbis(ctx, []string{b.ID, "does-not-exist"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, b.ID, some[0].ID)

	require.NoError(t, s.AdjustFollowers(ctx, a.ID, 1))
	require.NoError(t, s.AdjustFollowers(ctx, a.ID, 1))
	require.NoError(t, s.AdjustFollowers(ctx, a.ID, -1))
	got, err := s.GetRabbi(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Followers)

	require.NoError(t, s.AdjustFollowers(ctx, a.ID, -5))
	got, err = s.GetRabbi(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Followers, "followers never go negative")

	assert.ErrorIs(t, s.AdjustFollowers(ctx, "does-not-exist", 1), store.ErrNotFound)

	n, err = s.CountRabbis(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func testShiurim(t *testing.T, s store.Store) {
	ctx := context.Background()

	r1 := &models.Rabbi{Name: "Rav One"}
	r2 := &models.Rabbi{Name: "Rav Two"}
	require.NoError(t, s.CreateRabbi(ctx, r1))
	require.NoError(t, s.CreateRabbi(ctx, r2))

	single := &models.Shiur{Title: "Single", RabbiID: r1.ID, URL: "https://example.com/1", Parasha: "Noach"}
	require.NoError(t, s.CreateShiur(ctx, single))
	require.NotEmpty(t, single.ID)

	got, err := s.GetShiur(ctx, single.ID)
	require.NoError(t, err)
	assert.Equal(t, "Single", got.Title)
	assert.Equal(t, r1.ID, got.RabbiID)
	assert.Equal(t, models.LevelIntermediate, got.Level)
	assert.False(t, got.CreatedAt.IsZero())

	n, err := s.InsertShiurim(ctx, []models.Shiur{
		{Title: "A", RabbiID: r1.ID, URL: "https://example.com/a", Parasha: "Haazinu"},
		{Title: "B", RabbiID: r2.ID, URL: "https://example.com/b", Parasha: "haazinu"},
		{Title: "C", RabbiID: r2.ID, URL: "https://example.com/c", Parasha: "Haazinu", Level: models.LevelAdvanced},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := s.ListShiurim(ctx, store.ShiurFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byRabbi, err := s.ListShiurim(ctx, store.ShiurFilter{RabbiIDs: []string{r2.ID}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"B", "C"}, titles(byRabbi))

	byParasha, err := s.ListShiurim(ctx, store.ShiurFilter{Parasha: "Haazinu"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "C"}, titles(byParasha))

	byID, err := s.ListShiurim(ctx, store.ShiurFilter{IDs: []string{single.ID, "does-not-exist"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Single"}, titles(byID))

	got.Title = "Renamed"
	got.Level = models.LevelBeginner
	require.NoError(t, s.UpdateShiur(ctx, got))
	got, err = s.GetShiur(ctx, single.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, models.LevelBeginner, got.Level)

	require.NoError(t, s.DeleteShiur(ctx, single.ID))
	_, err = s.GetShiur(ctx, single.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteShiur(ctx, single.ID), store.ErrNotFound)
}

func titles(shiurim []models.Shiur) []string {
	out := make([]string, 0, len(shiurim))
	for _, s := range shiurim {
		out = append(out, s.Title)
	}
	return out
}
