// Package sandbox implements the strict membrane and capability kernel: a
// deny-all execution observer that never actually runs untrusted code, but
// still exercises a session-bound message protocol, an ordered preflight
// chain, a capability decision kernel, and an append-only violation
// ledger — all the machinery a real worker-isolated sandbox needs, minus
// the worker.
package sandbox

import (
	"crypto/subtle"

	"github.com/google/uuid"
)

// NewSessionNonce generates a fresh 128-bit session nonce. Every invocation
// gets exactly one; it is never reused and never leaks into a receipt.
func NewSessionNonce() string {
	return uuid.NewString()
}

// Envelope is the constant structure every message in both directions
// must carry.
type Envelope struct {
	ExecutionMode string `json:"executionMode"`
	PlanDigest    string `json:"planDigest"`
	SessionNonce  string `json:"sessionNonce"`
}

// Validate compares an inbound envelope against the session's expected
// values using constant-time comparisons, and reports every field that
// does not match (an envelope can fail more than one check at once).
func (e Envelope) Validate(want Envelope) []string {
	var reasons []string
	if !constantTimeEqual(e.SessionNonce, want.SessionNonce) {
		reasons = append(reasons, "NONCE_MISMATCH")
	}
	if !constantTimeEqual(e.PlanDigest, want.PlanDigest) {
		reasons = append(reasons, "CONTEXT_MISMATCH")
	}
	if !constantTimeEqual(e.ExecutionMode, want.ExecutionMode) {
		reasons = append(reasons, "MODE_MISMATCH")
	}
	return reasons
}

func constantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
