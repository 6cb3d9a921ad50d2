package correlation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veilscope/veilscope/internal/auth"
	"github.com/veilscope/veilscope/internal/logger"
	"github.com/veilscope/veilscope/pkg/types"
)

// RecordStore is the read-only subject record collaborator. GetScan must
// return ErrScanNotFound for both unresolved ids and ownership
// mismatches.
type RecordStore interface {
	GetScan(ctx context.Context, scanID, userID string) (*types.Scan, error)
	ListDataSources(ctx context.Context, scanID string) ([]types.DataSource, error)
	ListSocialProfiles(ctx context.Context, scanID string) ([]types.SocialProfile, error)
	ListFindings(ctx context.Context, scanID string) ([]types.Finding, error)
}

// CreditLedger is the metering collaborator. Deduct is atomic
// check-then-deduct and returns the authoritative remaining balance.
type CreditLedger interface {
	Deduct(ctx context.Context, workspaceID string, amount int64, description string) (int64, error)
	Refund(ctx context.Context, workspaceID string, amount int64, description string) (int64, error)
}

// Request is one correlation invocation. Identity carries the
// authenticated principal; the workspace id on it drives the credit
// check.
type Request struct {
	ScanID   string
	Identity *auth.Identity
}

// Engine is the correlation orchestrator: it authorizes the caller,
// charges the workspace, reads the scan snapshot, and runs the pure
// correlation/scoring/graph computation. The engine itself is stateless;
// concurrent invocations share nothing.
type Engine struct {
	store      RecordStore
	ledger     CreditLedger
	authorizer auth.Authorizer
	logger     *logger.Logger

	correlator FieldCorrelator
	scorer     Scorer
	graph      GraphBuilder

	cost int64
}

// RequiredTier gates correlation behind the premium capability.
const RequiredTier = auth.TierPremium

func NewEngine(store RecordStore, ledger CreditLedger, authorizer auth.Authorizer, cost int64, log *logger.Logger) *Engine {
	return &Engine{
		store:      store,
		ledger:     ledger,
		authorizer: authorizer,
		logger:     log.WithComponent("correlation"),
		cost:       cost,
	}
}

// Correlate runs one full pass: authorize, charge, load, compute.
//
// Charge ordering: the deduction happens before the store reads, and any
// terminal failure after the charge refunds the same amount. A request is
// therefore never charged without either a delivered result or a refund,
// and never charged twice. Failures before the deduction (authentication,
// authorization, malformed scan id) touch the ledger not at all.
func (e *Engine) Correlate(ctx context.Context, req Request) (*types.CorrelationResult, error) {
	ctx, span := e.logger.StartSpan(ctx, "correlation.Correlate")
	defer span.End()

	if err := e.authorizer.ValidateTier(ctx, req.Identity, RequiredTier); err != nil {
		return nil, err
	}

	log := e.logger.WithScanID(req.ScanID).WithWorkspaceID(req.Identity.WorkspaceID)

	// A malformed id can never resolve; reject it before charging and
	// without revealing anything about existing scans.
	if _, err := uuid.Parse(req.ScanID); err != nil {
		return nil, ErrScanNotFound
	}

	remaining, err := e.ledger.Deduct(ctx, req.Identity.WorkspaceID, e.cost,
		fmt.Sprintf("exposure correlation for scan %s", req.ScanID))
	if err != nil {
		return nil, err
	}

	snapshot, err := e.load(ctx, req)
	if err != nil {
		e.refund(ctx, req, "correlation aborted before completion")
		return nil, err
	}

	result := e.compute(ctx, log, snapshot)
	result.CreditsRemaining = remaining

	log.Infow("Correlation completed",
		"data_sources", len(snapshot.sources),
		"social_profiles", len(snapshot.profiles),
		"duplicate_groups", len(result.DuplicateProfiles),
		"confidence", result.Correlations.Confidence,
	)
	return result, nil
}

type snapshot struct {
	scan     *types.Scan
	sources  []types.DataSource
	profiles []types.SocialProfile
	findings []types.Finding
}

// load fetches the scan (with ownership check) and fans out the row
// reads. Reads are read-only and safe to run concurrently.
func (e *Engine) load(ctx context.Context, req Request) (*snapshot, error) {
	ctx, span := e.logger.StartSpan(ctx, "correlation.load")
	defer span.End()

	scan, err := e.store.GetScan(ctx, req.ScanID, req.Identity.UserID)
	if err != nil {
		if err == ErrScanNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("record store read failed: %w", err)
	}

	snap := &snapshot{scan: scan}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.sources, err = e.store.ListDataSources(gctx, req.ScanID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.profiles, err = e.store.ListSocialProfiles(gctx, req.ScanID)
		return err
	})
	g.Go(func() error {
		// Findings enrich the response but are never required; a read
		// failure here degrades the summary instead of aborting.
		findings, err := e.store.ListFindings(gctx, req.ScanID)
		if err != nil {
			e.logger.WithScanID(req.ScanID).Warnw("Findings unavailable, continuing without summary",
				"error", err,
			)
			return nil
		}
		snap.findings = findings
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("record store read failed: %w", err)
	}

	return snap, nil
}

// compute is the pure in-memory phase. The four identifier branches have
// no ordering dependency and run in parallel; each writes a distinct
// result field.
func (e *Engine) compute(ctx context.Context, log *logger.Logger, snap *snapshot) *types.CorrelationResult {
	ctx, span := e.logger.StartSpan(ctx, "correlation.compute")
	defer span.End()

	fieldMatches := e.correlator.Correlate(snap.scan, snap.sources)
	usernameMatches := e.correlator.CorrelateUsername(snap.scan, snap.profiles)

	result := &types.CorrelationResult{ScanID: snap.scan.ID}
	total := len(snap.sources)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		result.Correlations.EmailMatches = e.fieldCorrelation(log, types.KindEmail, fieldMatches, total)
		return nil
	})
	g.Go(func() error {
		result.Correlations.PhoneMatches = e.fieldCorrelation(log, types.KindPhone, fieldMatches, total)
		return nil
	})
	g.Go(func() error {
		result.Correlations.NameMatches = e.fieldCorrelation(log, types.KindName, fieldMatches, total)
		return nil
	})
	g.Go(func() error {
		result.Correlations.UsernameMatches = e.usernameCorrelation(log, snap.scan, usernameMatches)
		return nil
	})
	_ = g.Wait()

	result.Correlations.Confidence = e.aggregateConfidence(result.Correlations, len(snap.sources), len(snap.profiles))
	result.DuplicateProfiles = DetectDuplicates(snap.profiles)
	result.IdentityGraph = e.graph.Build(snap.scan, snap.profiles, snap.sources)
	result.RiskSummary = riskSummary(snap.sources)
	result.FindingSummary = findingSummary(snap.findings)

	return result
}

// fieldCorrelation scores one identifier field. A scoring failure on
// malformed data degrades that field to zero confidence and is logged;
// one bad field never fails the whole response.
func (e *Engine) fieldCorrelation(log *logger.Logger, kind types.IdentifierKind, matches map[types.IdentifierKind][]types.DataSource, total int) *types.FieldCorrelation {
	matched, present := matches[kind]
	if !present {
		return nil
	}

	refs := make([]SourceRef, 0, len(matched))
	for _, source := range matched {
		refs = append(refs, SourceRef{Name: source.Name, Category: source.Category})
	}

	confidence, err := e.scorer.Score(refs, total)
	if err != nil {
		log.Warnw("Field scoring failed, degrading to zero confidence",
			"field", string(kind),
			"error", err,
		)
		confidence = 0
	}

	field := &types.FieldCorrelation{
		Entries:    make([]types.CorrelationEntry, 0, len(matched)),
		Confidence: confidence,
	}
	for _, source := range matched {
		entryConfidence := confidence
		if source.ConfidenceScore != nil {
			entryConfidence = clamp01(*source.ConfidenceScore)
		}
		field.Entries = append(field.Entries, types.CorrelationEntry{
			Source:     source.Name,
			Category:   source.Category,
			Confidence: entryConfidence,
		})
	}
	return field
}

// usernameCorrelation scores the username field against the discovered
// profiles: profile count stands in for both match count and total pool.
func (e *Engine) usernameCorrelation(log *logger.Logger, scan *types.Scan, matched []types.SocialProfile) *types.FieldCorrelation {
	if scan.Username == "" {
		return nil
	}

	refs := make([]SourceRef, 0, len(matched))
	for _, profile := range matched {
		refs = append(refs, SourceRef{Name: profile.Username, Category: profile.Platform})
	}

	confidence, err := e.scorer.Score(refs, len(matched))
	if err != nil {
		log.Warnw("Field scoring failed, degrading to zero confidence",
			"field", string(types.KindUsername),
			"error", err,
		)
		confidence = 0
	}

	field := &types.FieldCorrelation{
		Entries:    make([]types.CorrelationEntry, 0, len(matched)),
		Confidence: confidence,
	}
	for _, profile := range matched {
		entryConfidence := confidence
		if profile.ConfidenceScore != nil {
			entryConfidence = clamp01(*profile.ConfidenceScore)
		}
		field.Entries = append(field.Entries, types.CorrelationEntry{
			Source:     profile.Platform,
			Category:   "social",
			Confidence: entryConfidence,
		})
	}
	return field
}

// aggregateConfidence is the coarse 0-100 summary:
// min(100, totalMatches/(dataSourceCount+socialProfileCount)*100).
// It complements, never replaces, the per-field scores.
func (e *Engine) aggregateConfidence(c types.Correlations, sourceCount, profileCount int) float64 {
	totalMatches := 0
	for _, field := range []*types.FieldCorrelation{c.EmailMatches, c.PhoneMatches, c.NameMatches, c.UsernameMatches} {
		if field != nil {
			totalMatches += len(field.Entries)
		}
	}

	denominator := sourceCount + profileCount
	if denominator == 0 {
		return 0
	}

	confidence := float64(totalMatches) / float64(denominator) * 100
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func (e *Engine) refund(ctx context.Context, req Request, reason string) {
	if _, err := e.ledger.Refund(ctx, req.Identity.WorkspaceID, e.cost,
		fmt.Sprintf("refund: %s (scan %s)", reason, req.ScanID)); err != nil {
		// The charge stands without a result; loud log for reconciliation.
		e.logger.LogError(ctx, err, "correlation.refund",
			"workspace_id", req.Identity.WorkspaceID,
			"scan_id", req.ScanID,
			"amount", e.cost,
		)
	}
}

func riskSummary(sources []types.DataSource) types.RiskSummary {
	var summary types.RiskSummary
	for _, source := range sources {
		switch source.RiskLevel {
		case types.RiskLevelHigh:
			summary.High++
		case types.RiskLevelMedium:
			summary.Medium++
		case types.RiskLevelLow:
			summary.Low++
		}
	}
	return summary
}

func findingSummary(findings []types.Finding) *types.FindingSummary {
	if len(findings) == 0 {
		return nil
	}

	summary := &types.FindingSummary{
		Total:      len(findings),
		BySeverity: make(map[string]int),
	}
	for _, finding := range findings {
		summary.BySeverity[finding.Severity]++
	}
	return summary
}
