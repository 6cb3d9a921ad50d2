package correlation

import (
	"strings"

	"github.com/veilscope/veilscope/pkg/types"
)

// ClassifyLabel normalizes one free-text provider label into identifier
// kinds. Matching is a case-insensitive substring test on canonical
// tokens, so an ambiguous label like "full_name_and_email" lands in both
// the name and email buckets. Labels matching nothing map to KindOther so
// new provider vocabulary degrades gracefully instead of being dropped.
func ClassifyLabel(label string) []types.IdentifierKind {
	lower := strings.ToLower(label)

	var kinds []types.IdentifierKind
	if strings.Contains(lower, "email") {
		kinds = append(kinds, types.KindEmail)
	}
	if strings.Contains(lower, "phone") {
		kinds = append(kinds, types.KindPhone)
	}
	if strings.Contains(lower, "name") {
		kinds = append(kinds, types.KindName)
	}
	if len(kinds) == 0 {
		kinds = append(kinds, types.KindOther)
	}
	return kinds
}

// ClassifySource folds a source's data_found labels into the set of
// identifier kinds the source exposed. The result order is fixed
// (email, phone, name, other) so downstream output is deterministic.
func ClassifySource(source types.DataSource) []types.IdentifierKind {
	seen := make(map[types.IdentifierKind]bool)
	for _, label := range source.DataFound {
		for _, kind := range ClassifyLabel(label) {
			seen[kind] = true
		}
	}

	var kinds []types.IdentifierKind
	for _, kind := range []types.IdentifierKind{types.KindEmail, types.KindPhone, types.KindName, types.KindOther} {
		if seen[kind] {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// SourceExposes reports whether the source surfaced the given identifier
// kind.
func SourceExposes(source types.DataSource, kind types.IdentifierKind) bool {
	for _, k := range ClassifySource(source) {
		if k == kind {
			return true
		}
	}
	return false
}
