package saferun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/diblac17-eng/weftend/pkg/receipt"
	"github.com/stretchr/testify/require"
)

func TestSafeRun_MissingInputIsExpectedPrecondition(t *testing.T) {
	dir := t.TempDir()
	result, err := SafeRun(filepath.Join(dir, "nope"), filepath.Join(dir, "out"), Options{})
	require.NoError(t, err)
	require.Equal(t, ExitExpectedPrecondition, result.ExitCode)
	require.FileExists(t, result.OperatorReceiptPath)
}

func TestSafeRun_PlainFileProducesFullOutputLayout(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "artifact.bin")
	require.NoError(t, os.WriteFile(input, []byte("plain bytes"), 0o644))

	outRoot := filepath.Join(dir, "out")
	result, err := SafeRun(input, outRoot, Options{WithholdExec: true})
	require.NoError(t, err)
	require.Equal(t, ExitSuccess, result.ExitCode)

	for _, rel := range []string{
		"safe_run_receipt.json",
		"operator_receipt.json",
		filepath.Join("weftend", "README.txt"),
		filepath.Join("weftend", "privacy_lint_v0.json"),
		filepath.Join("analysis", "adapter_summary_v0.json"),
		filepath.Join("analysis", "adapter_findings_v0.json"),
		"report_card.txt",
		"report_card_v0.json",
	} {
		require.FileExists(t, filepath.Join(outRoot, rel))
	}

	orphans, err := receipt.OrphanStageFiles(outRoot)
	require.NoError(t, err)
	require.Empty(t, orphans)
}

func TestSafeRun_IsDeterministic(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "artifact.bin")
	require.NoError(t, os.WriteFile(input, []byte("deterministic bytes"), 0o644))

	r1, err := SafeRun(input, filepath.Join(dir, "out1"), Options{WithholdExec: true})
	require.NoError(t, err)
	r2, err := SafeRun(input, filepath.Join(dir, "out2"), Options{WithholdExec: true})
	require.NoError(t, err)

	data1, err := os.ReadFile(filepath.Join(dir, "out1", "safe_run_receipt.json"))
	require.NoError(t, err)
	data2, err := os.ReadFile(filepath.Join(dir, "out2", "safe_run_receipt.json"))
	require.NoError(t, err)
	require.Equal(t, string(data1), string(data2))
	require.Equal(t, r1.ExitCode, r2.ExitCode)
}

func TestExternalDomains_DedupesAndSorts(t *testing.T) {
	domains := externalDomains([]string{"https://b.example/x", "https://a.example/y", "https://b.example/z"})
	require.Equal(t, []string{"a.example", "b.example"}, domains)
}
