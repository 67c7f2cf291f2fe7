package receipt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleEntries() []FileEntry {
	return []FileEntry{
		{Kind: "report", RelPath: "report_card.txt", Digest: "sha256:bb"},
		{Kind: "receipt", RelPath: "safe_run_receipt.json", Digest: "sha256:aa"},
	}
}

func TestBuildOperatorReceipt_SortsAndSeals(t *testing.T) {
	rec, err := BuildOperatorReceipt(sampleEntries(), []string{"b-warn", "a-warn", "a-warn"})
	require.NoError(t, err)
	require.Equal(t, "receipt", rec.Files[0].Kind)
	require.Equal(t, []string{"a-warn", "b-warn"}, rec.Warnings)
	require.NotEmpty(t, rec.OutRootDigest)
	require.NotEmpty(t, rec.ReceiptDigest)

	rec2, err := BuildOperatorReceipt(sampleEntries(), []string{"a-warn", "b-warn"})
	require.NoError(t, err)
	require.Equal(t, rec.ReceiptDigest, rec2.ReceiptDigest)
}

func TestValidate_DetectsTamper(t *testing.T) {
	rec, err := BuildOperatorReceipt(sampleEntries(), nil)
	require.NoError(t, err)

	ok, err := Validate(rec)
	require.NoError(t, err)
	require.True(t, ok)

	rec.Files[0].Digest = "sha256:tampered"
	ok, err = Validate(rec)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWriteStaged_NoStageFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "operator_receipt.json")

	require.NoError(t, WriteStaged(path, []byte(`{"a":1}`), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(data))

	_, statErr := os.Stat(path + stageSuffix)
	require.True(t, os.IsNotExist(statErr))
}

func TestOrphanStageFiles_DetectsLeftovers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leftover.json.stage"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clean.json"), []byte("x"), 0o644))

	orphans, err := OrphanStageFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"leftover.json.stage"}, orphans)
}

func TestLint_CleanTreePasses(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "weftend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weftend", "README.txt"), []byte("WeftEnd run summary\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "operator_receipt.json"), []byte(`{"schema":"weftend.operatorReceipt/1"}`+"\n"), 0o644))

	report, err := Lint(dir)
	require.NoError(t, err)
	require.Equal(t, "PASS", report.Verdict)
	require.Empty(t, report.Violations)
}

func TestLint_FlagsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "operator_receipt.json"), []byte(`{"path":"C:\Users\alice\build"}`+"\n"), 0o644))

	report, err := Lint(dir)
	require.NoError(t, err)
	require.Equal(t, "FAIL", report.Verdict)
	require.Len(t, report.Violations, 1)
	require.Equal(t, "ABS_PATH_WIN", report.Violations[0].Code)
}

func TestLint_AllowsReasonCodesTokenInJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "safe_run_receipt.json"), []byte(`{"reasonCodes":["WEFTEND_TOKEN"]}`+"\n"), 0o644))

	report, err := Lint(dir)
	require.NoError(t, err)
	require.Equal(t, "PASS", report.Verdict)
}

func TestLint_AllowsWeftendTokenOnReasonCodesReadmeLine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "weftend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weftend", "README.txt"), []byte("weftendBuild.reasonCodes=WEFTEND_TOKEN\n"), 0o644))

	report, err := Lint(dir)
	require.NoError(t, err)
	require.Equal(t, "PASS", report.Verdict)
}

func TestLint_FlagsBareWeftendTokenOnOtherReadmeLine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "weftend"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "weftend", "README.txt"), []byte("saw WEFTEND_TOKEN in the wild\n"), 0o644))

	report, err := Lint(dir)
	require.NoError(t, err)
	require.Equal(t, "FAIL", report.Verdict)
	require.Equal(t, WeftendTokenReason, report.Violations[0].Code)
}

func TestCompare_SameWhenAllBucketsEqual(t *testing.T) {
	side := CompareSide{
		MintValid: true, Content: "sha256:aa", Reasons: []string{"X"}, PolicyID: "p1",
		HostTruth: map[string]any{"stamp": "OK"}, Bounds: map[string]any{"maxReasonCodes": 10}, Digest: "sha256:dd",
	}
	report := Compare(side, side)
	require.Equal(t, "SAME", report.Verdict)
}

func TestCompare_ChangedOnDigestMismatch(t *testing.T) {
	a := CompareSide{MintValid: true, Digest: "sha256:aa"}
	b := CompareSide{MintValid: true, Digest: "sha256:bb"}
	report := Compare(a, b)
	require.Equal(t, "CHANGED", report.Verdict)
}

func TestCompare_BlockedWhenMintInvalid(t *testing.T) {
	a := CompareSide{MintValid: false, Digest: "sha256:aa"}
	b := CompareSide{MintValid: true, Digest: "sha256:aa"}
	report := Compare(a, b)
	require.Equal(t, "BLOCKED", report.Verdict)
}
