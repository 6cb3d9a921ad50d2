package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilscope/veilscope/internal/auth"
	"github.com/veilscope/veilscope/internal/config"
	"github.com/veilscope/veilscope/internal/credits"
	"github.com/veilscope/veilscope/internal/logger"
	"github.com/veilscope/veilscope/pkg/types"
)

const (
	testScanID      = "7d444840-9dc0-11d1-b245-5ffdce74fad2"
	testUserID      = "a51334a0-4242-4101-9a24-33c0e4ee6d1f"
	testWorkspaceID = "0d4cfea6-72f2-41b9-a2b4-53b994d36b62"
)

type fakeStore struct {
	scan     *types.Scan
	sources  []types.DataSource
	profiles []types.SocialProfile
	findings []types.Finding

	listErr     error
	findingsErr error

	getScanCalls int
}

func (s *fakeStore) GetScan(_ context.Context, scanID, userID string) (*types.Scan, error) {
	s.getScanCalls++
	if s.scan == nil || s.scan.ID != scanID || s.scan.UserID != userID {
		return nil, ErrScanNotFound
	}
	return s.scan, nil
}

func (s *fakeStore) ListDataSources(_ context.Context, _ string) ([]types.DataSource, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.sources, nil
}

func (s *fakeStore) ListSocialProfiles(_ context.Context, _ string) ([]types.SocialProfile, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.profiles, nil
}

func (s *fakeStore) ListFindings(_ context.Context, _ string) ([]types.Finding, error) {
	if s.findingsErr != nil {
		return nil, s.findingsErr
	}
	return s.findings, nil
}

type fakeLedger struct {
	balance     int64
	deductCalls int
	refundCalls int
}

func (l *fakeLedger) Deduct(_ context.Context, _ string, amount int64, _ string) (int64, error) {
	l.deductCalls++
	if l.balance < amount {
		return l.balance, &credits.InsufficientCreditsError{Balance: l.balance, Required: amount}
	}
	l.balance -= amount
	return l.balance, nil
}

func (l *fakeLedger) Refund(_ context.Context, _ string, amount int64, _ string) (int64, error) {
	l.refundCalls++
	l.balance += amount
	return l.balance, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func premiumIdentity() *auth.Identity {
	return &auth.Identity{UserID: testUserID, WorkspaceID: testWorkspaceID, Tier: auth.TierPremium}
}

func subjectScan() *types.Scan {
	return &types.Scan{
		ID:          testScanID,
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
		Email:       "subject@example.com",
		Username:    "adal",
		Status:      types.ScanStatusCompleted,
	}
}

func newTestEngine(t *testing.T, store *fakeStore, ledger *fakeLedger) *Engine {
	t.Helper()
	return NewEngine(store, ledger, auth.NewTierGate(), 5, testLogger(t))
}

func TestEngine_SuccessfulCorrelation(t *testing.T) {
	store := &fakeStore{
		scan: subjectScan(),
		sources: []types.DataSource{
			{Name: "HaveIBeenPwned", Category: "breach", RiskLevel: types.RiskLevelHigh, DataFound: []string{"email", "password"}},
			{Name: "Spokeo", Category: "people_search", RiskLevel: types.RiskLevelMedium, DataFound: []string{"Email Address"}},
			{Name: "EmptyProvider", Category: "other", RiskLevel: types.RiskLevelLow, DataFound: []string{}},
		},
		profiles: []types.SocialProfile{
			{Platform: "twitter", Username: "adal"},
			{Platform: "twitter", Username: "ada_l"},
			{Platform: "github", Username: "adal"},
			{Platform: "mastodon", Username: "adal"},
		},
	}
	ledger := &fakeLedger{balance: 20}
	engine := newTestEngine(t, store, ledger)

	result, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: premiumIdentity()})
	require.NoError(t, err)

	// Scenario A: two of three sources exposed the email; no phone on
	// the scan means no phone entry at all.
	require.NotNil(t, result.Correlations.EmailMatches)
	assert.Len(t, result.Correlations.EmailMatches.Entries, 2)
	assert.Nil(t, result.Correlations.PhoneMatches)
	assert.Nil(t, result.Correlations.NameMatches)

	require.NotNil(t, result.Correlations.UsernameMatches)
	assert.Len(t, result.Correlations.UsernameMatches.Entries, 4)

	// Scenario B: exactly one duplicate group, the twitter collision.
	require.Len(t, result.DuplicateProfiles, 1)
	assert.Equal(t, "twitter", result.DuplicateProfiles[0].Platform)
	assert.Equal(t, 2, result.DuplicateProfiles[0].Count)
	assert.Len(t, result.DuplicateProfiles[0].Usernames, 2)

	// Cardinality preservation.
	assert.Len(t, result.IdentityGraph.LinkedProfiles, len(store.profiles))
	assert.Len(t, result.IdentityGraph.DataExposures, len(store.sources))

	// Bounded confidences.
	assert.GreaterOrEqual(t, result.Correlations.Confidence, 0.0)
	assert.LessOrEqual(t, result.Correlations.Confidence, 100.0)
	for _, field := range []*types.FieldCorrelation{result.Correlations.EmailMatches, result.Correlations.UsernameMatches} {
		assert.GreaterOrEqual(t, field.Confidence, 0.0)
		assert.LessOrEqual(t, field.Confidence, 1.0)
	}

	assert.Equal(t, types.RiskSummary{High: 1, Medium: 1, Low: 1}, result.RiskSummary)
	assert.Equal(t, int64(15), result.CreditsRemaining)
	assert.Equal(t, 1, ledger.deductCalls)
	assert.Equal(t, 0, ledger.refundCalls)
}

func TestEngine_NoChargeOnAuthFailure(t *testing.T) {
	store := &fakeStore{scan: subjectScan()}

	t.Run("unauthenticated", func(t *testing.T) {
		ledger := &fakeLedger{balance: 20}
		engine := newTestEngine(t, store, ledger)

		_, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: nil})
		assert.ErrorIs(t, err, auth.ErrUnauthenticated)
		assert.Equal(t, 0, ledger.deductCalls)
		assert.Equal(t, 0, ledger.refundCalls)
	})

	t.Run("insufficient tier", func(t *testing.T) {
		ledger := &fakeLedger{balance: 20}
		engine := newTestEngine(t, store, ledger)

		id := &auth.Identity{UserID: testUserID, WorkspaceID: testWorkspaceID, Tier: auth.TierFree}
		_, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: id})

		var upgrade *auth.UpgradeRequiredError
		require.True(t, errors.As(err, &upgrade))
		assert.Equal(t, auth.TierPremium, upgrade.Required)
		assert.Equal(t, 0, ledger.deductCalls)
	})
}

// Scenario C: the ledger refuses before any load or computation happens,
// and the refused balance/required amounts surface unchanged.
func TestEngine_InsufficientCreditsShortCircuits(t *testing.T) {
	store := &fakeStore{scan: subjectScan()}
	ledger := &fakeLedger{balance: 1}
	engine := newTestEngine(t, store, ledger)

	_, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: premiumIdentity()})

	var insufficient *credits.InsufficientCreditsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, int64(1), insufficient.Balance)
	assert.Equal(t, int64(5), insufficient.Required)
	assert.Equal(t, 0, store.getScanCalls, "no load is attempted without credits")
	assert.Equal(t, 0, ledger.refundCalls)
}

func TestEngine_MalformedScanIDNeverCharges(t *testing.T) {
	store := &fakeStore{scan: subjectScan()}
	ledger := &fakeLedger{balance: 20}
	engine := newTestEngine(t, store, ledger)

	_, err := engine.Correlate(context.Background(), Request{ScanID: "not-a-uuid", Identity: premiumIdentity()})

	assert.ErrorIs(t, err, ErrScanNotFound)
	assert.Equal(t, 0, ledger.deductCalls)
}

// Ownership mismatches are indistinguishable from missing scans, and the
// charge is refunded because no result was delivered.
func TestEngine_UnownedScanRefunds(t *testing.T) {
	scan := subjectScan()
	scan.UserID = "someone-else"
	store := &fakeStore{scan: scan}
	ledger := &fakeLedger{balance: 20}
	engine := newTestEngine(t, store, ledger)

	_, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: premiumIdentity()})

	assert.ErrorIs(t, err, ErrScanNotFound)
	assert.Equal(t, 1, ledger.deductCalls)
	assert.Equal(t, 1, ledger.refundCalls)
	assert.Equal(t, int64(20), ledger.balance, "the failed request costs nothing")
}

func TestEngine_StoreFailureAfterChargeRefundsOnce(t *testing.T) {
	store := &fakeStore{
		scan:    subjectScan(),
		listErr: errors.New("connection reset"),
	}
	ledger := &fakeLedger{balance: 20}
	engine := newTestEngine(t, store, ledger)

	_, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: premiumIdentity()})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrScanNotFound)
	assert.Equal(t, 1, ledger.refundCalls)
	assert.Equal(t, int64(20), ledger.balance)
}

// Scenario D: only name and username set. Email and phone entries are
// omitted by design while the present identifiers correlate normally.
func TestEngine_NameAndUsernameOnlyScan(t *testing.T) {
	scan := subjectScan()
	scan.Email = ""
	scan.FirstName = "Ada"
	scan.LastName = "Lovelace"
	store := &fakeStore{
		scan: scan,
		sources: []types.DataSource{
			{Name: "Whitepages", Category: "people_search", DataFound: []string{"Full Name"}},
		},
		profiles: []types.SocialProfile{
			{Platform: "twitter", Username: "adal"},
		},
	}
	ledger := &fakeLedger{balance: 20}
	engine := newTestEngine(t, store, ledger)

	result, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: premiumIdentity()})
	require.NoError(t, err)

	assert.Nil(t, result.Correlations.EmailMatches)
	assert.Nil(t, result.Correlations.PhoneMatches)
	require.NotNil(t, result.Correlations.NameMatches)
	assert.Len(t, result.Correlations.NameMatches.Entries, 1)
	require.NotNil(t, result.Correlations.UsernameMatches)
	assert.Len(t, result.Correlations.UsernameMatches.Entries, 1)
}

// Identical input snapshots must serialize to byte-identical output: no
// hidden randomness, no time or map-order dependence.
func TestEngine_Idempotence(t *testing.T) {
	store := &fakeStore{
		scan: subjectScan(),
		sources: []types.DataSource{
			{Name: "HaveIBeenPwned", Category: "breach", RiskLevel: types.RiskLevelHigh, DataFound: []string{"email"}},
			{Name: "Spokeo", Category: "people_search", RiskLevel: types.RiskLevelMedium, DataFound: []string{"email", "phone"}},
		},
		profiles: []types.SocialProfile{
			{Platform: "twitter", Username: "adal"},
			{Platform: "twitter", Username: "ada_l"},
			{Platform: "github", Username: "adal"},
		},
		findings: []types.Finding{
			{Kind: "breach", Severity: "high", Confidence: 0.9},
			{Kind: "exposure", Severity: "medium", Confidence: 0.7},
		},
	}
	ledger := &fakeLedger{balance: 100}
	engine := newTestEngine(t, store, ledger)
	req := Request{ScanID: testScanID, Identity: premiumIdentity()}

	first, err := engine.Correlate(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Correlate(context.Background(), req)
	require.NoError(t, err)

	// Credits differ between runs by design; compare the derived output.
	first.CreditsRemaining = 0
	second.CreditsRemaining = 0

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, firstJSON, secondJSON)
}

func TestEngine_FindingsAreOptional(t *testing.T) {
	t.Run("summary present when findings exist", func(t *testing.T) {
		store := &fakeStore{
			scan: subjectScan(),
			findings: []types.Finding{
				{Kind: "breach", Severity: "high"},
				{Kind: "breach", Severity: "high"},
				{Kind: "exposure", Severity: "low"},
			},
		}
		engine := newTestEngine(t, store, &fakeLedger{balance: 20})

		result, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: premiumIdentity()})
		require.NoError(t, err)
		require.NotNil(t, result.FindingSummary)
		assert.Equal(t, 3, result.FindingSummary.Total)
		assert.Equal(t, 2, result.FindingSummary.BySeverity["high"])
	})

	t.Run("findings read failure degrades, not aborts", func(t *testing.T) {
		store := &fakeStore{
			scan:        subjectScan(),
			findingsErr: errors.New("findings table unavailable"),
		}
		ledger := &fakeLedger{balance: 20}
		engine := newTestEngine(t, store, ledger)

		result, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: premiumIdentity()})
		require.NoError(t, err)
		assert.Nil(t, result.FindingSummary)
		assert.Equal(t, 0, ledger.refundCalls)
	})
}

func TestEngine_EmptySnapshotAggregatesToZero(t *testing.T) {
	store := &fakeStore{scan: subjectScan()}
	engine := newTestEngine(t, store, &fakeLedger{balance: 20})

	result, err := engine.Correlate(context.Background(), Request{ScanID: testScanID, Identity: premiumIdentity()})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Correlations.Confidence)
	assert.Empty(t, result.DuplicateProfiles)
	assert.Empty(t, result.IdentityGraph.LinkedProfiles)
	assert.Empty(t, result.IdentityGraph.DataExposures)
}
