// Package policy loads, validates, and canonicalizes the intake policy
// that the decide stage evaluates every mint against. Policy documents are
// authored as YAML and canonicalized via pkg/canon before policyId is
// computed, so the on-disk formatting never affects reproducibility.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/diblac17-eng/weftend/pkg/canon"
	"github.com/diblac17-eng/weftend/pkg/validate"
)

// Severity is the closed severity ladder, ordered low to high.
type Severity string

const (
	SeverityInfo       Severity = "INFO"
	SeverityWarn       Severity = "WARN"
	SeverityDeny       Severity = "DENY"
	SeverityQuarantine Severity = "QUARANTINE"
)

var severityRank = map[Severity]int{
	SeverityInfo: 0, SeverityWarn: 1, SeverityDeny: 2, SeverityQuarantine: 3,
}

// Max returns the higher-ranked of a and b.
func Max(a, b Severity) Severity {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Action is the closed intake-action set.
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionQueue   Action = "QUEUE"
	ActionReject  Action = "REJECT"
	ActionHold    Action = "HOLD"
)

var gradeBySeverity = map[Severity]string{
	SeverityInfo: "OK", SeverityWarn: "WARN", SeverityDeny: "DENY", SeverityQuarantine: "QUARANTINE",
}

// GradeFor maps a severity to its mint grade status.
func GradeFor(s Severity) string { return gradeBySeverity[s] }

// Bounds caps every sizing-sensitive decide output.
type Bounds struct {
	MaxReasonCodes     int `yaml:"maxReasonCodes"`
	MaxCapsItems       int `yaml:"maxCapsItems"`
	MaxDisclosureChars int `yaml:"maxDisclosureChars"`
	MaxAppealBytes     int `yaml:"maxAppealBytes"`
}

// Disclosure controls when a disclosure summary is mandatory.
type Disclosure struct {
	RequireOnWARN bool `yaml:"requireOnWARN"`
	RequireOnDENY bool `yaml:"requireOnDENY"`
	MaxLines      int  `yaml:"maxLines"`
}

// Policy is the decoded, not-yet-validated Policy v1 document.
type Policy struct {
	Schema         string              `yaml:"schema"`
	Profile        string              `yaml:"profile"`
	ReasonSeverity map[string]Severity `yaml:"reasonSeverity"`
	SeverityAction map[Severity]Action `yaml:"severityAction"`
	CapsPolicy     map[string]any      `yaml:"capsPolicy"`
	Disclosure     Disclosure          `yaml:"disclosure"`
	Bounds         Bounds              `yaml:"bounds"`
}

// DefaultSeverityTable is the built-in fallback used by decide when a
// reason code has no entry in policy.reasonSeverity. It mirrors the
// default severity table: CAPTURE_INPUT_* and the ZIP EOCD/CD failures are
// fatal, binding/evidence mismatches quarantine, and disclosure/appeal
// overflow denies. CAP_DENY_* codes are deliberately absent here — they are
// profile-dependent (net denial escalates to DENY only under the mod
// profile) and are resolved entirely by the capDenyPrefix rule, which
// SeverityForReason applies after this table.
var DefaultSeverityTable = map[string]Severity{
	"ZIP_EOCD_MISSING":               SeverityDeny,
	"ZIP_CD_CORRUPT":                 SeverityDeny,
	"EVIDENCE_DIGEST_MISMATCH":       SeverityQuarantine,
	"RELEASE_SIGNATURE_BAD":          SeverityQuarantine,
	"HISTORY_LINK_MISMATCH":          SeverityQuarantine,
	"DISCLOSURE_REQUIRED":            SeverityDeny,
	"APPEAL_OVERSIZE":                SeverityDeny,
	"STRICT_COMPARTMENT_UNAVAILABLE": SeverityWarn,
}

const captureInputPrefix = "CAPTURE_INPUT_"
const capDenyPrefix = "CAP_DENY_"

// SeverityForReason resolves a reason code's severity, consulting the
// policy override table first, then the CAPTURE_INPUT_ prefix rule, then
// the default table, then the CAP_DENY_ prefix rule, finally falling back
// to INFO.
func SeverityForReason(p *Policy, code string, profile string) Severity {
	if p != nil {
		if s, ok := p.ReasonSeverity[code]; ok {
			return s
		}
	}
	if len(code) >= len(captureInputPrefix) && code[:len(captureInputPrefix)] == captureInputPrefix {
		return SeverityDeny
	}
	if s, ok := DefaultSeverityTable[code]; ok {
		return s
	}
	if len(code) >= len(capDenyPrefix) && code[:len(capDenyPrefix)] == capDenyPrefix {
		if code == "CAP_DENY_NET" && profile == "mod" {
			return SeverityDeny
		}
		return SeverityWarn
	}
	return SeverityInfo
}

// Load reads and YAML-decodes a policy document from disk, validates its
// structure via pkg/validate, and returns both the typed Policy and its
// canonical policyId. Callers must check issues.OK() before touching the
// returned Policy's fields, per the "no field access on an unvalidated
// structure" rule.
func Load(path string) (*Policy, string, validate.Issues, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", nil, fmt.Errorf("policy: read %s: %w", path, err)
	}

	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, "", nil, fmt.Errorf("policy: decode %s: %w", path, err)
	}

	issues := validate.ValidatePolicy(generic)
	if !issues.OK() {
		return nil, "", issues, nil
	}

	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, "", nil, fmt.Errorf("policy: decode %s: %w", path, err)
	}

	policyID, err := canon.SHA256Canonical(generic)
	if err != nil {
		return nil, "", nil, fmt.Errorf("policy: canonicalize %s: %w", path, err)
	}

	return &p, policyID, issues, nil
}
