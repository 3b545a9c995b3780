package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientAllowsEverything(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(nil)

	assert.False(t, l.Enabled())

	for range 100 {
		require.NoError(t, l.RecordIPRequestWithPurpose(ctx, "1.2.3.4", "login"))
	}
	exceeded, err := l.CheckIPRateLimitWithPurpose(ctx, "1.2.3.4", "login")
	require.NoError(t, err)
	assert.False(t, exceeded)

	require.NoError(t, l.SetEmailCooldown(ctx, "a@example.com", "reset"))
	onCooldown, err := l.CheckEmailCooldown(ctx, "a@example.com", "reset")
	require.NoError(t, err)
	assert.False(t, onCooldown)
}

func TestCooldownKeyNormalizesEmail(t *testing.T) {
	assert.Equal(t, cooldownKey("A@Example.com ", "reset"), cooldownKey("a@example.com", "reset"))
	assert.NotContains(t, cooldownKey("a@example.com", "reset"), "example.com")
	assert.NotEqual(t, cooldownKey("a@example.com", "reset"), cooldownKey("a@example.com", "signup"))
}
