package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierMeets(t *testing.T) {
	tests := []struct {
		name     string
		tier     Tier
		required Tier
		want     bool
	}{
		{"free does not meet premium", TierFree, TierPremium, false},
		{"premium meets premium", TierPremium, TierPremium, true},
		{"enterprise meets premium", TierEnterprise, TierPremium, true},
		{"premium does not meet enterprise", TierPremium, TierEnterprise, false},
		{"free meets free", TierFree, TierFree, true},
		{"unknown tier meets nothing", Tier("trial"), TierFree, false},
		{"unknown requirement never satisfied", TierEnterprise, Tier("ultimate"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tier.Meets(tt.required))
		})
	}
}

func TestTierGate_ValidateTier(t *testing.T) {
	gate := NewTierGate()
	ctx := context.Background()

	t.Run("nil identity is unauthenticated", func(t *testing.T) {
		err := gate.ValidateTier(ctx, nil, TierPremium)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("empty user id is unauthenticated", func(t *testing.T) {
		err := gate.ValidateTier(ctx, &Identity{WorkspaceID: "ws"}, TierPremium)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("insufficient tier returns upgrade signal", func(t *testing.T) {
		id := &Identity{UserID: "u1", WorkspaceID: "ws1", Tier: TierFree}
		err := gate.ValidateTier(ctx, id, TierPremium)

		var upgrade *UpgradeRequiredError
		assert.True(t, errors.As(err, &upgrade))
		assert.Equal(t, TierFree, upgrade.Current)
		assert.Equal(t, TierPremium, upgrade.Required)
	})

	t.Run("sufficient tier passes", func(t *testing.T) {
		id := &Identity{UserID: "u1", WorkspaceID: "ws1", Tier: TierEnterprise}
		assert.NoError(t, gate.ValidateTier(ctx, id, TierPremium))
	})
}
