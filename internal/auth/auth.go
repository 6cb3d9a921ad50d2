package auth

import (
	"context"
	"errors"
	"fmt"
)

// Tier is a workspace capability tier. Higher tiers include everything
// below them.
type Tier string

const (
	TierFree       Tier = "free"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

var tierRank = map[Tier]int{
	TierFree:       0,
	TierPremium:    1,
	TierEnterprise: 2,
}

// Meets reports whether t grants at least the required tier. Unknown
// tiers never satisfy anything.
func (t Tier) Meets(required Tier) bool {
	rank, ok := tierRank[t]
	if !ok {
		return false
	}
	requiredRank, ok := tierRank[required]
	if !ok {
		return false
	}
	return rank >= requiredRank
}

// ErrUnauthenticated means no valid principal was presented. No work is
// performed and no ledger interaction is attempted for such requests.
var ErrUnauthenticated = errors.New("no valid principal")

// UpgradeRequiredError means the principal is authenticated but its tier
// does not grant the requested capability. Callers surface the upgrade
// signal distinctly from generic failures.
type UpgradeRequiredError struct {
	Current  Tier
	Required Tier
}

func (e *UpgradeRequiredError) Error() string {
	return fmt.Sprintf("tier %q does not grant %q capability", e.Current, e.Required)
}

// Identity is an authenticated principal resolved from an API token.
type Identity struct {
	UserID      string
	WorkspaceID string
	Tier        Tier
}

// TokenValidator resolves an API token to an identity. Implemented by the
// record store; substituted with fakes in tests.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Identity, error)
}

// Authorizer is the tier-gate collaborator consumed by the correlation
// engine. It fails closed: a nil identity is unauthenticated, an
// insufficient tier yields UpgradeRequiredError.
type Authorizer interface {
	ValidateTier(ctx context.Context, identity *Identity, required Tier) error
}

// TierGate is the default Authorizer.
type TierGate struct{}

func NewTierGate() *TierGate {
	return &TierGate{}
}

func (g *TierGate) ValidateTier(_ context.Context, identity *Identity, required Tier) error {
	if identity == nil || identity.UserID == "" {
		return ErrUnauthenticated
	}
	if !identity.Tier.Meets(required) {
		return &UpgradeRequiredError{Current: identity.Tier, Required: required}
	}
	return nil
}
