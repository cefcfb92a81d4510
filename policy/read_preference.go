package policy

import (
	"time"

	"github.com/arloliu/reprise/types"
)

// candidate is a selectable server with its current reachability.
type candidate struct {
	desc  types.ServerDescription
	state types.Reachability
}

// suitableTiers returns the servers that satisfy rp, most preferred tier
// first.
//
// Mongos and standalone servers serve any read preference. For replica
// set members the mode picks the roles and the first tag set matching at
// least one member wins. The preferred modes add the other role as a
// second tier, used when the first has no healthy member.
func suitableTiers(rp types.ReadPreference, cands []candidate) [][]candidate {
	var routers, primaries, secondaries []candidate
	for _, c := range cands {
		switch c.desc.Type {
		case types.ServerMongos, types.ServerStandalone:
			routers = append(routers, c)
		case types.ServerRSPrimary:
			primaries = append(primaries, c)
		case types.ServerRSSecondary:
			secondaries = append(secondaries, c)
		}
	}

	if len(routers) > 0 {
		return [][]candidate{routers}
	}

	switch rp.Mode {
	case types.Primary:
		return [][]candidate{primaries}
	case types.PrimaryPreferred:
		return [][]candidate{primaries, filterByTags(secondaries, rp.TagSets)}
	case types.Secondary:
		return [][]candidate{filterByTags(secondaries, rp.TagSets)}
	case types.SecondaryPreferred:
		return [][]candidate{filterByTags(secondaries, rp.TagSets), primaries}
	case types.Nearest:
		all := append(append([]candidate(nil), primaries...), secondaries...)
		return [][]candidate{filterByTags(all, rp.TagSets)}
	default:
		return nil
	}
}

func filterByTags(cands []candidate, tagSets []types.TagSet) []candidate {
	if len(tagSets) == 0 {
		return cands
	}

	for _, ts := range tagSets {
		var matched []candidate
		for _, c := range cands {
			if c.desc.Tags.Matches(ts) {
				matched = append(matched, c)
			}
		}
		if len(matched) > 0 {
			return matched
		}
	}

	return nil
}

// withinLatencyWindow keeps the servers whose RTT is within threshold of the fastest.
func withinLatencyWindow(cands []candidate, threshold time.Duration) []candidate {
	if len(cands) <= 1 {
		return cands
	}

	fastest := cands[0].desc.RTT
	for _, c := range cands[1:] {
		if c.desc.RTT < fastest {
			fastest = c.desc.RTT
		}
	}

	out := make([]candidate, 0, len(cands))
	for _, c := range cands {
		if c.desc.RTT <= fastest+threshold {
			out = append(out, c)
		}
	}

	return out
}
