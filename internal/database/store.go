package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/veilscope/veilscope/internal/auth"
	"github.com/veilscope/veilscope/internal/config"
	"github.com/veilscope/veilscope/internal/logger"
	"github.com/veilscope/veilscope/pkg/correlation"
	"github.com/veilscope/veilscope/pkg/types"
)

// Store is the Postgres-backed record store. It serves read paths for the
// correlation engine and resolves API tokens to identities. Write paths
// belong to the collection pipeline and are intentionally absent.
type Store struct {
	db  *sqlx.DB
	log *logger.Logger
}

func New(cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Store{
		db:  db,
		log: log.WithComponent("database"),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetScan loads one scan scoped to its owner. A missing row and an
// ownership mismatch are the same error on purpose: callers learn nothing
// about scans they do not own.
func (s *Store) GetScan(ctx context.Context, scanID, userID string) (*types.Scan, error) {
	var scan types.Scan
	err := s.db.GetContext(ctx, &scan, `
		SELECT id, user_id, workspace_id, email, phone, first_name, last_name,
		       username, status, created_at, completed_at
		FROM scans
		WHERE id = $1 AND user_id = $2`,
		scanID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, correlation.ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan: %w", err)
	}
	return &scan, nil
}

type dataSourceRow struct {
	ID              string         `db:"id"`
	ScanID          string         `db:"scan_id"`
	Name            string         `db:"name"`
	Category        string         `db:"category"`
	URL             string         `db:"url"`
	RiskLevel       string         `db:"risk_level"`
	DataFound       pq.StringArray `db:"data_found"`
	ConfidenceScore *float64       `db:"confidence_score"`
	FirstSeen       time.Time      `db:"first_seen"`
	LastChecked     time.Time      `db:"last_checked"`
}

func (s *Store) ListDataSources(ctx context.Context, scanID string) ([]types.DataSource, error) {
	var rows []dataSourceRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, scan_id, name, category, url, risk_level, data_found,
		       confidence_score, first_seen, last_checked
		FROM data_sources
		WHERE scan_id = $1
		ORDER BY first_seen, id`,
		scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}

	sources := make([]types.DataSource, 0, len(rows))
	for _, row := range rows {
		sources = append(sources, types.DataSource{
			ID:              row.ID,
			ScanID:          row.ScanID,
			Name:            row.Name,
			Category:        row.Category,
			URL:             row.URL,
			RiskLevel:       types.RiskLevel(row.RiskLevel),
			DataFound:       []string(row.DataFound),
			ConfidenceScore: row.ConfidenceScore,
			FirstSeen:       row.FirstSeen,
			LastChecked:     row.LastChecked,
		})
	}
	return sources, nil
}

func (s *Store) ListSocialProfiles(ctx context.Context, scanID string) ([]types.SocialProfile, error) {
	var profiles []types.SocialProfile
	err := s.db.SelectContext(ctx, &profiles, `
		SELECT id, scan_id, platform, username, profile_url, confidence_score, created_at
		FROM social_profiles
		WHERE scan_id = $1
		ORDER BY created_at, id`,
		scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list social profiles: %w", err)
	}
	return profiles, nil
}

type findingRow struct {
	ID         string    `db:"id"`
	ScanID     string    `db:"scan_id"`
	Kind       string    `db:"kind"`
	Provider   string    `db:"provider"`
	Severity   string    `db:"severity"`
	Confidence float64   `db:"confidence"`
	Evidence   []byte    `db:"evidence"`
	ObservedAt time.Time `db:"observed_at"`
}

func (s *Store) ListFindings(ctx context.Context, scanID string) ([]types.Finding, error) {
	var rows []findingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, scan_id, kind, provider, severity, confidence, evidence, observed_at
		FROM findings
		WHERE scan_id = $1
		ORDER BY observed_at, id`,
		scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}

	findings := make([]types.Finding, 0, len(rows))
	for _, row := range rows {
		finding := types.Finding{
			ID:         row.ID,
			ScanID:     row.ScanID,
			Kind:       row.Kind,
			Provider:   row.Provider,
			Severity:   row.Severity,
			Confidence: row.Confidence,
			ObservedAt: row.ObservedAt,
		}
		if len(row.Evidence) > 0 {
			if err := json.Unmarshal(row.Evidence, &finding.Evidence); err != nil {
				// Corrupt evidence loses the detail, not the finding.
				s.log.Warnw("Unparseable finding evidence",
					"finding_id", row.ID,
					"error", err,
				)
			}
		}
		findings = append(findings, finding)
	}
	return findings, nil
}

// ValidateToken resolves a bearer token to an identity. Tokens are stored
// as SHA-256 digests; the raw token never touches the database.
func (s *Store) ValidateToken(ctx context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, auth.ErrUnauthenticated
	}

	digest := sha256.Sum256([]byte(token))
	tokenHash := hex.EncodeToString(digest[:])

	var row struct {
		UserID      string `db:"user_id"`
		WorkspaceID string `db:"workspace_id"`
		Tier        string `db:"tier"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT k.user_id, k.workspace_id, w.tier
		FROM api_keys k
		JOIN workspaces w ON w.id = k.workspace_id
		WHERE k.token_hash = $1 AND k.revoked_at IS NULL`,
		tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	// Best effort; a failed touch never blocks the request.
	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = NOW() WHERE token_hash = $1`, tokenHash); err != nil {
		s.log.Warnw("Failed to record key usage", "error", err)
	}

	return &auth.Identity{
		UserID:      row.UserID,
		WorkspaceID: row.WorkspaceID,
		Tier:        auth.Tier(row.Tier),
	}, nil
}
