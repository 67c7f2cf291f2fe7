package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/diblac17-eng/weftend/pkg/saferun"
	"github.com/stretchr/testify/require"
)

func TestRun_MissingArgPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"weftend"}, &stdout, &stderr)
	require.Equal(t, saferun.ExitExpectedPrecondition, code)
	require.Contains(t, stderr.String(), "usage:")
}

func TestRun_MissingOutFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"weftend", "somefile"}, &stdout, &stderr)
	require.Equal(t, saferun.ExitExpectedPrecondition, code)
	require.Contains(t, stderr.String(), "--out")
}

func TestRun_MissingInputIsExpectedPrecondition(t *testing.T) {
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	code := Run([]string{"weftend", "--out", filepath.Join(dir, "out"), filepath.Join(dir, "does-not-exist")}, &stdout, &stderr)
	require.Equal(t, saferun.ExitExpectedPrecondition, code)
	require.NotEmpty(t, stdout.String())
}

func TestRun_HappyPathOnPlainFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "artifact.txt")
	require.NoError(t, os.WriteFile(input, []byte("hello\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := Run([]string{"weftend", "--withhold-exec", "--out", filepath.Join(dir, "out"), input}, &stdout, &stderr)
	require.Equal(t, saferun.ExitSuccess, code)
	require.Contains(t, stdout.String(), "operator_receipt.json")

	data, err := os.ReadFile(filepath.Join(dir, "out", "operator_receipt.json"))
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
