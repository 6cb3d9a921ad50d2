package correlation

import (
	"github.com/veilscope/veilscope/pkg/types"
)

// GraphBuilder assembles the identity graph from the scan snapshot.
type GraphBuilder struct {
	scorer Scorer
}

// Build links the scan's primary identifiers to discovered profiles and
// data exposures. Output cardinalities mirror the inputs exactly: one
// linked profile per SocialProfile row and one exposure per DataSource
// row, in input order. Nothing is invented or dropped.
//
// A profile keeps its upstream confidence_score when present; otherwise
// it falls back to a platform-wide confidence where the profile count
// serves as both match count and total pool, so username reuse across N
// platforms corroborates itself independent of the data-source
// correlation.
func (b GraphBuilder) Build(scan *types.Scan, profiles []types.SocialProfile, sources []types.DataSource) types.IdentityGraph {
	graph := types.IdentityGraph{
		PrimaryIdentifiers: types.PrimaryIdentifiers{
			Email:    scan.Email,
			Phone:    scan.Phone,
			Name:     scan.FullName(),
			Username: scan.Username,
		},
		LinkedProfiles: make([]types.LinkedProfile, 0, len(profiles)),
		DataExposures:  make([]types.DataExposure, 0, len(sources)),
	}

	fallback := b.platformFallbackConfidence(profiles)

	for _, profile := range profiles {
		confidence := fallback
		if profile.ConfidenceScore != nil {
			confidence = clamp01(*profile.ConfidenceScore)
		}
		graph.LinkedProfiles = append(graph.LinkedProfiles, types.LinkedProfile{
			Platform:   profile.Platform,
			Username:   profile.Username,
			URL:        profile.ProfileURL,
			Confidence: confidence,
		})
	}

	for _, source := range sources {
		dataTypes := source.DataFound
		if dataTypes == nil {
			dataTypes = []string{}
		}
		graph.DataExposures = append(graph.DataExposures, types.DataExposure{
			Source:    source.Name,
			Category:  source.Category,
			RiskLevel: source.RiskLevel,
			DataTypes: dataTypes,
		})
	}

	return graph
}

func (b GraphBuilder) platformFallbackConfidence(profiles []types.SocialProfile) float64 {
	if len(profiles) == 0 {
		return 0
	}

	refs := make([]SourceRef, 0, len(profiles))
	for _, profile := range profiles {
		refs = append(refs, SourceRef{Name: profile.Username, Category: profile.Platform})
	}

	confidence, err := b.scorer.Score(refs, len(profiles))
	if err != nil {
		return 0
	}
	return confidence
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
