package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const samplePolicyYAML = `
schema: weftend.policy/1
profile: generic
reasonSeverity:
  CUSTOM_WARN: WARN
severityAction:
  INFO: APPROVE
  WARN: QUEUE
  DENY: REJECT
  QUARANTINE: HOLD
capsPolicy: {}
disclosure:
  requireOnWARN: false
  requireOnDENY: true
  maxLines: 10
bounds:
  maxReasonCodes: 20
  maxCapsItems: 20
  maxDisclosureChars: 2000
  maxAppealBytes: 8192
`

func TestLoad_ValidPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicyYAML), 0o644))

	p, policyID, issues, err := Load(path)
	require.NoError(t, err)
	require.True(t, issues.OK())
	require.NotEmpty(t, policyID)
	require.Equal(t, "generic", p.Profile)
	require.Equal(t, ActionQueue, p.SeverityAction[SeverityWarn])
}

func TestLoad_SamePolicyIsDeterministicID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicyYAML), 0o644))

	_, id1, _, err := Load(path)
	require.NoError(t, err)
	_, id2, _, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestSeverityForReason_DefaultsAndOverrides(t *testing.T) {
	p := &Policy{ReasonSeverity: map[string]Severity{"CUSTOM_WARN": SeverityWarn}}

	require.Equal(t, SeverityDeny, SeverityForReason(p, "CAPTURE_INPUT_MISSING", "generic"))
	require.Equal(t, SeverityDeny, SeverityForReason(p, "ZIP_EOCD_MISSING", "generic"))
	require.Equal(t, SeverityQuarantine, SeverityForReason(p, "EVIDENCE_DIGEST_MISMATCH", "generic"))
	require.Equal(t, SeverityWarn, SeverityForReason(p, "CAP_DENY_NET", "web"))
	require.Equal(t, SeverityDeny, SeverityForReason(p, "CAP_DENY_NET", "mod"))
	require.Equal(t, SeverityWarn, SeverityForReason(p, "CAP_DENY_STORAGE", "generic"))
	require.Equal(t, SeverityWarn, SeverityForReason(p, "CUSTOM_WARN", "generic"))
	require.Equal(t, SeverityInfo, SeverityForReason(p, "UNKNOWN_REASON", "generic"))
}

func TestMax(t *testing.T) {
	require.Equal(t, SeverityDeny, Max(SeverityWarn, SeverityDeny))
	require.Equal(t, SeverityDeny, Max(SeverityDeny, SeverityInfo))
}
