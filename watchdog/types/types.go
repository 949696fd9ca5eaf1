package types

import (
	"context"
	"fmt"
)

// OracleIdentity is the monitored oracle and the public keys registered for it.
type OracleIdentity struct {
	Address string
	PubKeys [][]byte
}

// RawPriceReading is one signed report returned by a price source.
type RawPriceReading struct {
	Source    string
	Timestamp int64 // seconds since epoch, producer clock
	Payload   []byte
	Signature []byte
}

// SourceVote is the outcome of verifying a single reading.
type SourceVote struct {
	Source         string
	TimestampValid bool
	SignatureValid bool
}

// Confirms reports whether the source confirms the oracle is alive.
func (v SourceVote) Confirms() bool {
	return v.TimestampValid && v.SignatureValid
}

// Role is the weight a source carries in the quorum decision.
type Role byte

const (
	RolePair Role = iota
	RoleAnchor
)

func (r Role) String() string {
	switch r {
	case RolePair:
		return "pair"
	case RoleAnchor:
		return "anchor"
	default:
		return fmt.Sprintf("Role(%d)", r)
	}
}

// ParseRole accepts "anchor" and "pair".
func ParseRole(s string) (Role, error) {
	switch s {
	case "anchor":
		return RoleAnchor, nil
	case "pair":
		return RolePair, nil
	default:
		return 0, fmt.Errorf("unknown source role %q", s)
	}
}

// PollResult is either a vote or the failure that prevented one.
type PollResult struct {
	Source      string
	Role        Role
	Vote        SourceVote
	Err         error
	Diagnostics []string
}

// Confirms is false for every failed poll.
func (r PollResult) Confirms() bool {
	return r.Err == nil && r.Vote.Confirms()
}

// Verdict is the liveness decision of one attempt.
type Verdict byte

const (
	Dead Verdict = iota
	Alive
)

func (v Verdict) String() string {
	if v == Alive {
		return "alive"
	}
	return "dead"
}

// Notifier delivers a human readable status line to operators.
// Implementations never return delivery errors to the caller.
type Notifier interface {
	Notify(ctx context.Context, text string)
}
