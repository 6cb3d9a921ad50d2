package types

// CorrelationEntry is one contributing source for an identifier field.
type CorrelationEntry struct {
	Source     string  `json:"source"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// FieldCorrelation is the correlation set for a single identifier field:
// the contributing sources plus the aggregate confidence for the field.
// Aggregate confidence is always within [0,1].
type FieldCorrelation struct {
	Entries    []CorrelationEntry `json:"entries"`
	Confidence float64            `json:"confidence"`
}

// Correlations holds the per-identifier correlation sets. Fields for
// identifiers absent on the scan are omitted entirely: absence means
// "not applicable", not "zero confidence". Confidence is the coarse
// 0-100 summary scalar across all fields.
type Correlations struct {
	EmailMatches    *FieldCorrelation `json:"emailMatches,omitempty"`
	PhoneMatches    *FieldCorrelation `json:"phoneMatches,omitempty"`
	NameMatches     *FieldCorrelation `json:"nameMatches,omitempty"`
	UsernameMatches *FieldCorrelation `json:"usernameMatches,omitempty"`
	Confidence      float64           `json:"confidence"`
}

// DuplicateProfile reports >=2 profiles sharing one platform. The engine
// surfaces the ambiguity for downstream review; it never merges or drops
// the underlying rows.
type DuplicateProfile struct {
	Platform  string   `json:"platform"`
	Count     int      `json:"count"`
	Usernames []string `json:"usernames"`
}

// PrimaryIdentifiers are the subject identifiers as provided on the scan.
type PrimaryIdentifiers struct {
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}

// LinkedProfile is one discovered profile in the identity graph.
type LinkedProfile struct {
	Platform   string  `json:"platform"`
	Username   string  `json:"username"`
	URL        string  `json:"url,omitempty"`
	Confidence float64 `json:"confidence"`
}

// DataExposure is one provider exposure in the identity graph.
type DataExposure struct {
	Source    string    `json:"source"`
	Category  string    `json:"category"`
	RiskLevel RiskLevel `json:"riskLevel"`
	DataTypes []string  `json:"dataTypes"`
}

// IdentityGraph links the subject's primary identifiers to discovered
// profiles and data exposures. Output cardinalities mirror the input rows
// exactly: one LinkedProfile per SocialProfile, one DataExposure per
// DataSource.
type IdentityGraph struct {
	PrimaryIdentifiers PrimaryIdentifiers `json:"primaryIdentifiers"`
	LinkedProfiles     []LinkedProfile    `json:"linkedProfiles"`
	DataExposures      []DataExposure     `json:"dataExposures"`
}

// RiskSummary tallies data sources per risk level.
type RiskSummary struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// FindingSummary is a coarse severity tally over normalized findings.
type FindingSummary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"bySeverity,omitempty"`
}

// CorrelationResult is the full engine output for one invocation. It is
// derived fresh on every call and never persisted; identical input
// snapshots produce identical results.
type CorrelationResult struct {
	ScanID            string             `json:"scanId"`
	Correlations      Correlations       `json:"correlations"`
	DuplicateProfiles []DuplicateProfile `json:"duplicateProfiles"`
	IdentityGraph     IdentityGraph      `json:"identityGraph"`
	RiskSummary       RiskSummary        `json:"riskSummary"`
	FindingSummary    *FindingSummary    `json:"findingSummary,omitempty"`
	CreditsRemaining  int64              `json:"creditsRemaining"`
}
