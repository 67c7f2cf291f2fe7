package examiner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/diblac17-eng/weftend/pkg/canon"
	"github.com/diblac17-eng/weftend/pkg/policy"
	"github.com/diblac17-eng/weftend/pkg/sandbox"
)

// KindCounts tallies one capability kind's attempted/denied split.
type KindCounts struct {
	Attempted int `json:"attempted"`
	Denied    int `json:"denied"`
}

// CapSummary is the decide stage's capability-attempt aggregation.
type CapSummary struct {
	Attempted      int                   `json:"attempted"`
	Denied         int                   `json:"denied"`
	ByKind         map[string]KindCounts `json:"byKind"`
	Truncated      bool                  `json:"truncated,omitempty"`
	DroppedTotal   int                   `json:"droppedTotal,omitempty"`
	NotableDomains []string              `json:"notableDomains,omitempty"`
}

// Decision is the intake decision.
type Decision struct {
	Profile          string     `json:"profile"`
	PolicyID         string     `json:"policyId"`
	ArtifactID       string     `json:"artifactId"`
	MintID           string     `json:"mintId"`
	Grade            string     `json:"grade"`
	Action           string     `json:"action"`
	TopReasonCodes   []string   `json:"topReasonCodes"`
	CapSummary       CapSummary `json:"capSummary"`
	DisclosureDigest string     `json:"disclosureDigest"`
	AppealDigest     string     `json:"appealDigest"`
	DecisionDigest   string     `json:"decisionDigest"`
}

// DisclosureNotRequired is the sentinel used in place of the bounded
// human-facing disclosure text when no disclosure is required.
const DisclosureNotRequired = "DISCLOSURE_NOT_REQUIRED"

// Appeal is the receipt-digest manifest bundled with a decision.
type Appeal struct {
	Status  string   `json:"status"`
	Bytes   int      `json:"bytes,omitempty"`
	Digests []string `json:"digests,omitempty"`
}

// Decide evaluates a mint against a policy, looping until the reason set
// stabilizes (disclosure/appeal overflow can each add one more reason,
// and only a finite set of reasons exists, so this always terminates).
func Decide(mint *Mint, pol *policy.Policy, policyID string, receiptDigests []string, externalDomains []string) (*Decision, string, *Appeal, error) {
	reasons := append([]string(nil), mint.Grade.ReasonCodes...)

	var disclosure string
	var appeal *Appeal

	for {
		severity := policy.SeverityInfo
		for _, r := range reasons {
			severity = policy.Max(severity, policy.SeverityForReason(pol, r, mint.Profile))
		}
		action := actionFor(pol, severity)
		grade := policy.GradeFor(severity)

		capSummary := summarizeCaps(mint, pol, externalDomains)

		newDisclosure, addedDisclosureReason := buildDisclosure(reasons, severity, pol, action, grade, capSummary)
		newAppeal, addedAppealReason := buildAppeal(pol, receiptDigests)

		changed := false
		if addedDisclosureReason != "" && !contains(reasons, addedDisclosureReason) {
			reasons = append(reasons, addedDisclosureReason)
			changed = true
		}
		if addedAppealReason != "" && !contains(reasons, addedAppealReason) {
			reasons = append(reasons, addedAppealReason)
			changed = true
		}
		disclosure = newDisclosure
		appeal = newAppeal

		if !changed {
			reasons = canon.SortStrings(reasons)
			topReasons := reasons
			if len(topReasons) > boundsMaxReasonCodes(pol) && boundsMaxReasonCodes(pol) > 0 {
				topReasons = topReasons[:boundsMaxReasonCodes(pol)]
			}

			disclosureDigestStr := canon.SHA256([]byte(disclosure))
			appealDigestStr, err := canon.SHA256Canonical(appeal)
			if err != nil {
				return nil, "", nil, err
			}

			decision := &Decision{
				Profile:          mint.Profile,
				PolicyID:         policyID,
				ArtifactID:       mint.Input.RootDigest,
				MintID:           mint.Digests.MintDigest,
				Grade:            string(grade),
				Action:           string(action),
				TopReasonCodes:   topReasons,
				CapSummary:       capSummary,
				DisclosureDigest: disclosureDigestStr,
				AppealDigest:     appealDigestStr,
			}
			decisionDigest, err := canon.SHA256Canonical(decision)
			if err != nil {
				return nil, "", nil, err
			}
			decision.DecisionDigest = decisionDigest
			return decision, disclosure, appeal, nil
		}
	}
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func actionFor(pol *policy.Policy, severity policy.Severity) policy.Action {
	if pol == nil {
		return ""
	}
	return pol.SeverityAction[severity]
}

func boundsMaxReasonCodes(pol *policy.Policy) int {
	if pol == nil {
		return 0
	}
	return pol.Bounds.MaxReasonCodes
}

func summarizeCaps(mint *Mint, pol *policy.Policy, externalDomains []string) CapSummary {
	summary := CapSummary{ByKind: map[string]KindCounts{}}
	addReport := func(r *ProbeReport) {
		if r == nil {
			return
		}
		summary.Attempted += r.CapsRequested
		summary.Denied += r.CapsDenied
		for _, p := range r.Pulses {
			kind := p.CapID
			if i := strings.IndexAny(kind, ".:"); i >= 0 {
				kind = kind[:i]
			}
			if kind == "" {
				continue
			}
			kc := summary.ByKind[kind]
			switch p.Kind {
			case sandbox.PulseCapRequest:
				kc.Attempted++
			case sandbox.PulseCapDeny:
				kc.Denied++
			}
			summary.ByKind[kind] = kc
		}
	}
	addReport(mint.ExecutionProbes.LoadOnly)
	addReport(mint.ExecutionProbes.InteractionScript)

	maxItems := 0
	if pol != nil {
		maxItems = pol.Bounds.MaxCapsItems
	}
	if maxItems > 0 && len(summary.ByKind) > maxItems {
		kinds := make([]string, 0, len(summary.ByKind))
		for k := range summary.ByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		dropped := 0
		kept := map[string]KindCounts{}
		for i, k := range kinds {
			if i < maxItems {
				kept[k] = summary.ByKind[k]
			} else {
				dropped += summary.ByKind[k].Attempted
			}
		}
		summary.ByKind = kept
		summary.Truncated = true
		summary.DroppedTotal = dropped
	}

	domains := append([]string(nil), externalDomains...)
	sort.Strings(domains)
	summary.NotableDomains = domains

	return summary
}

func buildDisclosure(reasons []string, severity policy.Severity, pol *policy.Policy, action policy.Action, grade string, caps CapSummary) (string, string) {
	required := false
	if pol != nil {
		required = (severity == policy.SeverityWarn && pol.Disclosure.RequireOnWARN) ||
			(severity == policy.SeverityDeny && pol.Disclosure.RequireOnDENY)
	}
	if !required {
		return DisclosureNotRequired, ""
	}
	if pol.Bounds.MaxDisclosureChars <= 0 || pol.Disclosure.MaxLines <= 0 {
		return "", "DISCLOSURE_REQUIRED"
	}

	topReasons := canon.SortStrings(reasons)
	if max := boundsMaxReasonCodes(pol); max > 0 && len(topReasons) > max {
		topReasons = topReasons[:max]
	}

	lines := []string{
		"Action: " + string(action),
		"Grade: " + grade,
	}
	if len(topReasons) > 0 {
		lines = append(lines, "Top reasons: "+strings.Join(topReasons, ", "))
	}
	lines = append(lines, "Caps attempted/denied: "+strconv.Itoa(caps.Attempted)+"/"+strconv.Itoa(caps.Denied))
	if len(caps.ByKind) > 0 {
		kinds := make([]string, 0, len(caps.ByKind))
		for k := range caps.ByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			kc := caps.ByKind[k]
			parts = append(parts, fmt.Sprintf("%s=%d/%d", k, kc.Attempted, kc.Denied))
		}
		lines = append(lines, "Caps by kind: "+strings.Join(parts, ", "))
	}
	if len(caps.NotableDomains) > 0 {
		lines = append(lines, "Notable: "+strings.Join(caps.NotableDomains, ", "))
	}

	if pol.Disclosure.MaxLines > 0 && len(lines) > pol.Disclosure.MaxLines {
		lines = lines[:pol.Disclosure.MaxLines]
	}
	text := strings.Join(lines, "\n")
	if len(text) > pol.Bounds.MaxDisclosureChars {
		text = text[:pol.Bounds.MaxDisclosureChars]
	}
	return text, ""
}

func buildAppeal(pol *policy.Policy, receiptDigests []string) (*Appeal, string) {
	sorted := canon.SortStrings(receiptDigests)
	size := 0
	for _, d := range sorted {
		size += len(d) + 1
	}
	maxBytes := 0
	if pol != nil {
		maxBytes = pol.Bounds.MaxAppealBytes
	}
	if maxBytes > 0 && size > maxBytes {
		return &Appeal{Status: "OVERSIZE", Bytes: size}, "APPEAL_OVERSIZE"
	}
	return &Appeal{Status: "OK", Digests: sorted}, ""
}
