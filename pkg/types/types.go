package types

import (
	"time"
)

type RiskLevel string

const (
	RiskLevelHigh   RiskLevel = "high"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelLow    RiskLevel = "low"
)

type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusArchived  ScanStatus = "archived"
)

// IdentifierKind is the closed set of identifier types a provider can expose.
// Free-text provider labels are normalized into these at load time; labels that
// match nothing are kept as KindOther with the raw label preserved.
type IdentifierKind string

const (
	KindEmail    IdentifierKind = "email"
	KindPhone    IdentifierKind = "phone"
	KindName     IdentifierKind = "name"
	KindUsername IdentifierKind = "username"
	KindOther    IdentifierKind = "other"
)

// Scan is one subject-investigation unit. Read-only for the correlation
// engine; rows are created by the collection pipeline.
type Scan struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	WorkspaceID string     `json:"workspace_id" db:"workspace_id"`
	Email       string     `json:"email,omitempty" db:"email"`
	Phone       string     `json:"phone,omitempty" db:"phone"`
	FirstName   string     `json:"first_name,omitempty" db:"first_name"`
	LastName    string     `json:"last_name,omitempty" db:"last_name"`
	Username    string     `json:"username,omitempty" db:"username"`
	Status      ScanStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// FullName joins the first and last name as provided on the scan.
func (s *Scan) FullName() string {
	switch {
	case s.FirstName != "" && s.LastName != "":
		return s.FirstName + " " + s.LastName
	case s.FirstName != "":
		return s.FirstName
	default:
		return s.LastName
	}
}

// DataSource is one external provider's report against a scan. DataFound
// holds the provider's own labels for which identifier types it exposed.
type DataSource struct {
	ID              string    `json:"id" db:"id"`
	ScanID          string    `json:"scan_id" db:"scan_id"`
	Name            string    `json:"name" db:"name"`
	Category        string    `json:"category" db:"category"`
	URL             string    `json:"url,omitempty" db:"url"`
	RiskLevel       RiskLevel `json:"risk_level" db:"risk_level"`
	DataFound       []string  `json:"data_found"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty" db:"confidence_score"`
	FirstSeen       time.Time `json:"first_seen" db:"first_seen"`
	LastChecked     time.Time `json:"last_checked" db:"last_checked"`
}

// SocialProfile is one discovered profile tied to a scan. Several profiles
// may share a platform; those are candidate duplicates, not errors.
type SocialProfile struct {
	ID              string    `json:"id" db:"id"`
	ScanID          string    `json:"scan_id" db:"scan_id"`
	Platform        string    `json:"platform" db:"platform"`
	Username        string    `json:"username" db:"username"`
	ProfileURL      string    `json:"profile_url,omitempty" db:"profile_url"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty" db:"confidence_score"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Finding is a normalized evidence record. The correlation engine consumes
// findings when present but never requires them.
type Finding struct {
	ID         string            `json:"id" db:"id"`
	ScanID     string            `json:"scan_id" db:"scan_id"`
	Kind       string            `json:"kind" db:"kind"`
	Provider   string            `json:"provider" db:"provider"`
	Severity   string            `json:"severity" db:"severity"`
	Confidence float64           `json:"confidence" db:"confidence"`
	Evidence   map[string]string `json:"evidence,omitempty"`
	ObservedAt time.Time         `json:"observed_at" db:"observed_at"`
}
