package correlation

import (
	"github.com/veilscope/veilscope/pkg/types"
)

// FieldCorrelator groups data sources by which identifier field they
// surfaced. Pure function over the supplied rows; no side effects.
type FieldCorrelator struct{}

// Correlate returns, for each identifier field that is non-empty on the
// scan, the subset of sources whose normalized data_found labels include
// that field. Empty identifiers produce no map entry at all: absence
// means "not applicable", never "zero confidence". A present identifier
// with no matching sources yields an entry with an empty slice.
//
// The username field is not matched here; username correlation runs
// against social profiles (see CorrelateUsername).
func (FieldCorrelator) Correlate(scan *types.Scan, sources []types.DataSource) map[types.IdentifierKind][]types.DataSource {
	result := make(map[types.IdentifierKind][]types.DataSource)

	if scan.Email != "" {
		result[types.KindEmail] = matchSources(sources, types.KindEmail)
	}
	if scan.Phone != "" {
		result[types.KindPhone] = matchSources(sources, types.KindPhone)
	}
	if scan.FullName() != "" {
		result[types.KindName] = matchSources(sources, types.KindName)
	}

	return result
}

// CorrelateUsername returns the profiles corroborating the scan's
// username. Every discovered profile counts: username reuse across
// platforms is corroborating evidence in itself. Empty username on the
// scan returns nil, mirroring the skip policy for the other fields.
func (FieldCorrelator) CorrelateUsername(scan *types.Scan, profiles []types.SocialProfile) []types.SocialProfile {
	if scan.Username == "" {
		return nil
	}

	matched := make([]types.SocialProfile, 0, len(profiles))
	matched = append(matched, profiles...)
	return matched
}

func matchSources(sources []types.DataSource, kind types.IdentifierKind) []types.DataSource {
	matched := make([]types.DataSource, 0)
	for _, source := range sources {
		if SourceExposes(source, kind) {
			matched = append(matched, source)
		}
	}
	return matched
}
