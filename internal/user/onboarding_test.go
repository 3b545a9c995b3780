package user

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

func TestOnboardingHappyPath(t *testing.T) {
	o := NewOnboarding()
	assert.Equal(t, StageSelectingInterests, o.Stage())

	interests := ids("s", 25)
	require.NoError(t, o.ChooseInterests(interests))
	assert.Equal(t, StageSelectingFavorites, o.Stage())

	_, _, ok := o.Selections()
	assert.False(t, ok)

	require.NoError(t, o.ChooseFavorites(interests[:7]))
	assert.Equal(t, StageComplete, o.Stage())

	gotInterests, gotFavorites, ok := o.Selections()
	require.True(t, ok)
	assert.Equal(t, interests, gotInterests)
	assert.Equal(t, interests[:7], gotFavorites)
}

func TestOnboardingInterestBounds(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		ok   bool
	}{
		{"too few", ids("s", 19), false},
		{"lower bound", ids("s", 20), true},
		{"upper bound", ids("s", 30), true},
		{"too many", ids("s", 31), false},
		{"duplicates do not count", append(ids("s", 19), "s-0", "s-1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewOnboarding().ChooseInterests(tt.ids)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSelection)
			}
		})
	}
}

func TestOnboardingFavoriteRules(t *testing.T) {
	interests := ids("s", 20)

	tests := []struct {
		name      string
		favorites []string
		ok        bool
	}{
		{"too few", interests[:4], false},
		{"lower bound", interests[:5], true},
		{"upper bound", interests[:10], true},
		{"too many", interests[:11], false},
		{"not an interest", append(interests[:5:5], "other"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOnboarding()
			require.NoError(t, o.ChooseInterests(interests))

			err := o.ChooseFavorites(tt.favorites)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, StageComplete, o.Stage())
			} else {
				assert.ErrorIs(t, err, ErrInvalidSelection)
				assert.Equal(t, StageSelectingFavorites, o.Stage())
			}
		})
	}
}

func TestOnboardingStageOrder(t *testing.T) {
	o := NewOnboarding()
	assert.ErrorIs(t, o.ChooseFavorites(ids("s", 5)), ErrWrongStage)
	assert.ErrorIs(t, o.BackToInterests(), ErrWrongStage)

	require.NoError(t, o.ChooseInterests(ids("s", 20)))
	assert.ErrorIs(t, o.ChooseInterests(ids("s", 20)), ErrWrongStage)

	require.NoError(t, o.BackToInterests())
	assert.Equal(t, StageSelectingInterests, o.Stage())
}

func TestStageOf(t *testing.T) {
	assert.Equal(t, StageSelectingInterests, StageOf(0, 0))
	assert.Equal(t, StageSelectingFavorites, StageOf(20, 4))
	assert.Equal(t, StageComplete, StageOf(20, 5))
}
