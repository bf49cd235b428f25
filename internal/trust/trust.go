// Package trust implements the cross-session trust aggregation of spec
// §4.K: a per-session trust boolean derived from re-verifying each
// terminal session's attestation, rolled up into per-agent counters and a
// leaderboard score.
package trust

import (
	"sort"

	"github.com/molt-labs/molt-negotiation/internal/attestation"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// SessionView bundles everything needed to re-verify one terminal
// session's attestation.
type SessionView struct {
	Session     *domain.Session
	Turns       []domain.SessionTurn
	Attestation *domain.Attestation // nil if none was ever produced
}

// IsTrusted reports whether v's session is terminal and its attestation
// re-verifies cleanly.
func IsTrusted(v SessionView) bool {
	if !v.Session.Status.IsTerminal() || v.Attestation == nil {
		return false
	}
	return attestation.Verify(attestation.VerifyInputs{
		Attestation: v.Attestation,
		Session:     v.Session,
		Turns:       v.Turns,
	}) == nil
}

// Counters tallies one agent's outcomes across trusted sessions.
type Counters struct {
	AgentID      string
	Agreements   int
	NoAgreements int
	Failures     int
}

// TrustScore implements trustScore = 3*agreements + noAgreements - 2*failures.
func (c Counters) TrustScore() int {
	return 3*c.Agreements + c.NoAgreements - 2*c.Failures
}

// Aggregate computes per-agent Counters across every trusted session in
// views, then returns them sorted by trustScore desc, agreements desc,
// agentId asc.
func Aggregate(views []SessionView) []Counters {
	byAgent := make(map[string]*Counters)

	get := func(agentID string) *Counters {
		c, ok := byAgent[agentID]
		if !ok {
			c = &Counters{AgentID: agentID}
			byAgent[agentID] = c
		}
		return c
	}

	for _, v := range views {
		if !IsTrusted(v) {
			continue
		}
		for _, agentID := range v.Session.Participants() {
			c := get(agentID)
			switch v.Session.Status {
			case domain.SessionAgreed:
				c.Agreements++
			case domain.SessionNoAgreement:
				c.NoAgreements++
			case domain.SessionFailed:
				c.Failures++
			}
		}
	}

	out := make([]Counters, 0, len(byAgent))
	for _, c := range byAgent {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TrustScore() != out[j].TrustScore() {
			return out[i].TrustScore() > out[j].TrustScore()
		}
		if out[i].Agreements != out[j].Agreements {
			return out[i].Agreements > out[j].Agreements
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}
