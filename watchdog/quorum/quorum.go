// Package quorum combines per-source poll results into a single verdict.
//
// The rule is asymmetric: every anchor source must confirm, and at least
// one of the pair sources must confirm as well. Losing an anchor is always
// fatal for the verdict no matter how many pair sources still confirm.
package quorum

import (
	"github.com/evaafi/oracle-watchdog/watchdog/types"
)

// Decide reduces the results of one attempt to a verdict.
func Decide(results []types.PollResult) types.Verdict {
	var anchors, pairs int
	anchorsOK, pairOK := true, false

	for _, r := range results {
		switch r.Role {
		case types.RoleAnchor:
			anchors++
			if !r.Confirms() {
				anchorsOK = false
			}
		case types.RolePair:
			pairs++
			if r.Confirms() {
				pairOK = true
			}
		}
	}

	if anchors == 0 || !anchorsOK || !pairOK {
		return types.Dead
	}

	return types.Alive
}

// Votes is the fixed three-source form: IOTA anchors, ICP and the
// backend form the redundant pair.
type Votes struct {
	ICP     bool
	Backend bool
	IOTA    bool
}

func DecideVotes(v Votes) types.Verdict {
	if !v.IOTA || (!v.Backend && !v.ICP) {
		return types.Dead
	}
	return types.Alive
}
