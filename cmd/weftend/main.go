package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/diblac17-eng/weftend/pkg/saferun"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is safe-run's entrypoint, separated from main for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	cmd := flag.NewFlagSet("weftend", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	withholdExec := cmd.Bool("withhold-exec", false, "analysis-only; the default for native binaries")
	out := cmd.String("out", "", "output directory for the run's receipts")
	policyPath := cmd.String("policy", "", "path to a policy v1 YAML document (defaults to a permissive built-in policy)")
	profile := cmd.String("profile", "web", "intake profile (web, mod, generic)")
	script := cmd.String("interaction-script", "", "path to an interaction script to replay against the HTML entry")

	if err := cmd.Parse(args[1:]); err != nil {
		return saferun.ExitInternalError
	}
	if cmd.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: weftend [flags] <input>")
		return saferun.ExitExpectedPrecondition
	}
	if *out == "" {
		fmt.Fprintln(stderr, "weftend: --out is required")
		return saferun.ExitExpectedPrecondition
	}

	input := cmd.Arg(0)

	var scriptSrc string
	if *script != "" {
		data, err := os.ReadFile(*script)
		if err != nil {
			fmt.Fprintf(stderr, "weftend: read interaction script: %v\n", err)
			return saferun.ExitExpectedPrecondition
		}
		scriptSrc = string(data)
	}

	logger.Info("weftend run starting", "input", input, "profile", *profile, "withholdExec", *withholdExec)

	result, err := saferun.SafeRun(input, *out, saferun.Options{
		WithholdExec:      *withholdExec,
		Profile:           *profile,
		PolicyPath:        *policyPath,
		InteractionScript: scriptSrc,
	})
	if err != nil {
		logger.Error("weftend run failed", "error", err)
		fmt.Fprintf(stderr, "weftend: %v\n", err)
		return saferun.ExitInternalError
	}

	logger.Info("weftend run complete", "exitCode", result.ExitCode, "receiptPath", result.OperatorReceiptPath)
	fmt.Fprintln(stdout, result.OperatorReceiptPath)
	return result.ExitCode
}
