package correlation

import (
	"sort"

	"github.com/veilscope/veilscope/pkg/types"
)

// DetectDuplicates groups profiles by platform and reports every group
// with two or more members. Platform comparison is exact and
// case-sensitive as stored; normalization belongs upstream. The detector
// only surfaces the ambiguity — it never merges or discards profiles.
//
// Groups are sorted by platform and usernames keep input order, so
// identical inputs always produce identical output.
func DetectDuplicates(profiles []types.SocialProfile) []types.DuplicateProfile {
	byPlatform := make(map[string][]string)
	for _, profile := range profiles {
		byPlatform[profile.Platform] = append(byPlatform[profile.Platform], profile.Username)
	}

	duplicates := make([]types.DuplicateProfile, 0)
	for platform, usernames := range byPlatform {
		if len(usernames) < 2 {
			continue
		}
		duplicates = append(duplicates, types.DuplicateProfile{
			Platform:  platform,
			Count:     len(usernames),
			Usernames: usernames,
		})
	}

	sort.Slice(duplicates, func(i, j int) bool {
		return duplicates[i].Platform < duplicates[j].Platform
	})
	return duplicates
}
