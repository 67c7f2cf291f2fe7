package sandbox

import (
	"strings"

	"github.com/diblac17-eng/weftend/pkg/canon"
)

// PulseKind is the closed set of capability-kernel pulse kinds.
type PulseKind string

const (
	PulseCapRequest PulseKind = "CAP_REQUEST"
	PulseCapAllow   PulseKind = "CAP_ALLOW"
	PulseCapDeny    PulseKind = "CAP_DENY"
)

// secretCaps is the closed set of capabilities that require operator
// consent whenever a secret-zone host is present.
var secretCaps = map[string]bool{
	"id.sign": true, "auth.password.submit": true, "payment.tokenize": true,
	"storage.writeSecret": true, "ui.input.capture": true,
	"storage.secret.write": true, "net.secret.send": true,
	"clipboard.read": true, "clipboard.write": true, "diag.raw": true,
}

func isSecretCap(capID string) bool {
	if secretCaps[capID] {
		return true
	}
	return strings.HasPrefix(capID, "ui.secret.")
}

// Pulse is one emitted capability-kernel event.
type Pulse struct {
	Kind        PulseKind      `json:"kind"`
	Subject     string         `json:"subject"`
	PulseSeq    int            `json:"pulseSeq"`
	CapID       string         `json:"capId,omitempty"`
	ReasonCodes []string       `json:"reasonCodes,omitempty"`
	Digests     map[string]any `json:"digests"`
	Counts      Counts         `json:"counts"`
}

// Counts tallies capability attempts for one pulse.
type Counts struct {
	CapsRequested int `json:"capsRequested,omitempty"`
	CapsDenied    int `json:"capsDenied,omitempty"`
}

// InvokeRequest is one {reqId, capId, args} capability invocation.
type InvokeRequest struct {
	ReqID string
	CapID string
	Args  any
}

// InvokeResult is what the kernel returns to the sandboxed worker.
type InvokeResult struct {
	OK          bool     `json:"ok"`
	Value       any      `json:"value"`
	ReasonCodes []string `json:"reasonCodes,omitempty"`
}

// ConsentPort asks the operator for consent to exercise a secret
// capability when a secret-zone host is present.
type ConsentPort interface {
	RequestConsent(capID string) (granted bool, reasonCodes []string)
}

// MarketAdmission reports whether the current market admission allows a
// capability.
type MarketAdmission interface {
	Allows(capID string) bool
}

// Kernel is the deny-all capability decision kernel. One Kernel instance
// lives for the duration of a single strict-mode run; it is not safe for
// concurrent invoke calls (the scheduling model is single-threaded
// cooperative, per the membrane's contract).
type Kernel struct {
	digests          map[string]any
	grantedCaps      map[string]bool
	releaseStatus    string
	selftestPassed   bool
	admission        MarketAdmission
	consent          ConsentPort
	secretZoneHost   bool
	replaySeen       map[string]bool
	pulseSeq         map[string]int
	pulses           []Pulse
}

// NewKernel constructs a Kernel for one session. grantedCaps is the
// release-scoped capability allowlist; releaseStatus and selftestPassed
// gate every decision per the strict-mode rule.
func NewKernel(digests map[string]any, grantedCaps []string, releaseStatus string, selftestPassed bool, admission MarketAdmission, consent ConsentPort, secretZoneHost bool) *Kernel {
	granted := make(map[string]bool, len(grantedCaps))
	for _, c := range grantedCaps {
		granted[c] = true
	}
	return &Kernel{
		digests:        digests,
		grantedCaps:    granted,
		releaseStatus:  releaseStatus,
		selftestPassed: selftestPassed,
		admission:      admission,
		consent:        consent,
		secretZoneHost: secretZoneHost,
		replaySeen:     map[string]bool{},
		pulseSeq:       map[string]int{},
	}
}

// Invoke decides one capability request and emits its pulses.
func (k *Kernel) Invoke(req InvokeRequest) InvokeResult {
	const subject = "capability"
	k.emit(PulseCapRequest, subject, req.CapID, nil, Counts{CapsRequested: 1})

	var reasonCodes []string

	if isSecretCap(req.CapID) && k.secretZoneHost {
		if k.consent == nil {
			reasonCodes = append(reasonCodes, "CAP_DENY_UI")
		} else if granted, consentReasons := k.consent.RequestConsent(req.CapID); !granted {
			reasonCodes = append(reasonCodes, consentReasons...)
		}
	}

	argsKey, err := canon.CanonicalString(req.Args)
	if err != nil {
		argsKey = req.ReqID
	}
	replayKey := req.CapID + "|" + argsKey

	denied := len(reasonCodes) > 0 ||
		!k.grantedCaps[req.CapID] ||
		k.releaseStatus != "OK" ||
		!k.selftestPassed ||
		(k.admission != nil && !k.admission.Allows(req.CapID)) ||
		k.replaySeen[replayKey]

	if denied {
		if len(reasonCodes) == 0 {
			reasonCodes = append(reasonCodes, denyReasonFor(req.CapID))
		}
		reasonCodes = canon.SortStrings(reasonCodes)
		k.emit(PulseCapDeny, subject, req.CapID, reasonCodes, Counts{CapsDenied: 1})
		return InvokeResult{OK: false, ReasonCodes: reasonCodes}
	}

	k.replaySeen[replayKey] = true
	k.emit(PulseCapAllow, subject, req.CapID, nil, Counts{})
	return InvokeResult{OK: true, Value: nil}
}

// denyReasonFor maps a capability's "kind" prefix (before the first '.'
// or ':') to its CAP_DENY_* reason, falling back to a generic UI denial
// for capability kinds with no dedicated reason code.
func denyReasonFor(capID string) string {
	kind := capID
	if i := strings.IndexAny(capID, ".:"); i >= 0 {
		kind = capID[:i]
	}
	switch kind {
	case "net":
		return "CAP_DENY_NET"
	case "storage":
		return "CAP_DENY_STORAGE"
	case "cookie":
		return "CAP_DENY_COOKIE"
	default:
		return "CAP_DENY_UI"
	}
}

func (k *Kernel) emit(kind PulseKind, subject, capID string, reasonCodes []string, counts Counts) {
	k.pulseSeq[subject]++
	k.pulses = append(k.pulses, Pulse{
		Kind:        kind,
		Subject:     subject,
		PulseSeq:    k.pulseSeq[subject],
		CapID:       capID,
		ReasonCodes: reasonCodes,
		Digests:     k.digests,
		Counts:      counts,
	})
}

// Pulses returns every pulse emitted so far, in emission order.
func (k *Kernel) Pulses() []Pulse { return k.pulses }
