package validate

import (
	"testing"

	"github.com/diblac17-eng/weftend/pkg/canon"
	"github.com/stretchr/testify/require"
)

func TestSortIssues_OrdersByCodePathMessageThenIndex(t *testing.T) {
	in := []Issue{
		{Code: "B", Path: "z", Message: "m"},
		{Code: "A", Path: "z", Message: "m"},
		{Code: "A", Path: "a", Message: "m"},
		{Code: "A", Path: "a", Message: "b"},
		{Code: "A", Path: "a", Message: "a"},
	}
	out := SortIssues(in)
	require.Equal(t, "A", out[0].Code)
	require.Equal(t, "a", out[0].Message)
	require.Equal(t, "b", out[1].Message)
	require.Equal(t, "z", out[4].Path)
	require.Equal(t, "B", out[4].Code)
}

func TestIssues_Codes_SortedUnique(t *testing.T) {
	is := Issues{{Code: "Z"}, {Code: "A"}, {Code: "A"}}
	require.Equal(t, []string{"A", "Z"}, is.Codes())
}

func TestIsValidNodeID(t *testing.T) {
	valid := []string{"page:/home", "block:hero", "svc:search", "data:x", "priv:y", "sess:z", "asset:logo.png"}
	for _, v := range valid {
		require.True(t, IsValidNodeID(v), v)
	}
	invalid := []string{"", "page/home", "block: hero", "unknown:x"}
	for _, v := range invalid {
		require.False(t, IsValidNodeID(v), v)
	}
}

func TestValidateRootReachability(t *testing.T) {
	issues := ValidateRootReachability("page:/home", []string{"page:/home", "block:x"})
	require.True(t, issues.OK())

	issues = ValidateRootReachability("page:/missing", []string{"page:/home"})
	require.False(t, issues.OK())
	require.Equal(t, "ROOT_UNREACHABLE", issues[0].Code)
}

func TestValidateGrantBinding(t *testing.T) {
	trust := map[string]any{"grants": []any{"net.fetch", "storage.read"}}
	digest := map[string]any{"grantedCaps": []any{"storage.read", "net.fetch"}}
	// order differs but canonicalization of the raw slice still requires
	// exact array equality (array order is preserved by canon), so this
	// is expected to mismatch unless both sides are pre-sorted by the
	// producer; the validator checks literal canonical equality.
	issues := ValidateGrantBinding(trust, digest)
	require.False(t, issues.OK())

	digestSame := map[string]any{"grantedCaps": []any{"net.fetch", "storage.read"}}
	issues = ValidateGrantBinding(trust, digestSame)
	require.True(t, issues.OK())
}

func TestValidateProducerBinding(t *testing.T) {
	issues := ValidateProducerBinding(
		map[string]any{"packageHash": "sha256:aa"},
		map[string]any{"producerHash": "sha256:aa"},
	)
	require.True(t, issues.OK())

	issues = ValidateProducerBinding(
		map[string]any{"packageHash": "sha256:aa"},
		map[string]any{"producerHash": "sha256:bb"},
	)
	require.False(t, issues.OK())
	require.Equal(t, "PRODUCER_HASH_MISMATCH", issues[0].Code)
}

func TestValidateReleaseBodyBinding(t *testing.T) {
	body := map[string]any{"planDigest": "sha256:aa", "policyDigest": "sha256:bb", "blocks": []any{"a", "b"}, "pathDigest": "sha256:cc"}
	want, err := canon.SHA256Canonical(body)
	require.NoError(t, err)

	issues := ValidateReleaseBodyBinding(want, body)
	require.True(t, issues.OK())

	issues = ValidateReleaseBodyBinding("sha256:deadbeef", body)
	require.False(t, issues.OK())
	require.Equal(t, "RELEASE_SIGNATURE_BAD", issues[0].Code)
}

func TestValidateEvidenceRecordBinding(t *testing.T) {
	record := map[string]any{"kind": "artifact.mismatch", "seq": json1()}
	want, err := canon.SHA256Canonical(record)
	require.NoError(t, err)
	record["evidenceId"] = want

	issues := ValidateEvidenceRecordBinding(record)
	require.True(t, issues.OK())

	record["evidenceId"] = "sha256:wrong"
	issues = ValidateEvidenceRecordBinding(record)
	require.False(t, issues.OK())
	require.Equal(t, "EVIDENCE_DIGEST_MISMATCH", issues[0].Code)
}

func json1() any { return 1 }

func TestFindForbidden(t *testing.T) {
	cases := map[string]string{
		`C:\Users\alice\secret`:  "ABS_PATH_WIN",
		`\\host\share\file`:      "ABS_PATH_UNC",
		`/Users/alice/project`:   "ABS_PATH_POSIX",
		`$env:USERPROFILE`:       "ENV_MARKER_POWERSHELL",
		`alice@example.com`:      "EMAIL_ADDRESS",
	}
	for s, wantCode := range cases {
		code, sample, ok := FindForbidden(s)
		require.True(t, ok, s)
		require.Equal(t, wantCode, code, s)
		require.NotEmpty(t, sample)
	}

	_, _, ok := FindForbidden("perfectly fine ascii receipt text")
	require.False(t, ok)
}

func TestValidatePathSummaryPrivacy(t *testing.T) {
	clean := map[string]any{"pipelineId": "p1", "version": "1.0.0"}
	require.True(t, ValidatePathSummaryPrivacy(clean).OK())

	dirty := map[string]any{"pipelineId": `C:\Users\alice\build`}
	issues := ValidatePathSummaryPrivacy(dirty)
	require.False(t, issues.OK())
	require.Equal(t, "PRIVACY_FIELD_FORBIDDEN", issues[0].Code)
}

func TestValidateMint_DigestMismatch(t *testing.T) {
	mint := map[string]any{
		"schema":  "weftend.mint/1",
		"profile": "generic",
		"input":   map[string]any{},
		"capture": map[string]any{},
		"observations": map[string]any{},
		"executionProbes": map[string]any{},
		"grade": map[string]any{
			"status":      "OK",
			"reasonCodes": []any{},
			"receipts":    []any{},
		},
		"digests": map[string]any{
			"mintDigest":   "sha256:wrong",
			"inputDigest":  "sha256:aa",
			"policyDigest": "sha256:bb",
		},
		"limits": map[string]any{},
	}
	issues := ValidateMint(mint)
	require.Contains(t, issues.Codes(), "MINT_DIGEST_MISMATCH")
}
