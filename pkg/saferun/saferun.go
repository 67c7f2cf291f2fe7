// Package saferun assembles C1-C5 into the single entry point §6 promises
// the CLI collaborator: safeRun(input, outRoot, opts) -> {exitCode,
// operatorReceiptPath}. It owns no presentation concerns — formatting,
// flags, and stdout/stderr belong to cmd/weftend.
package saferun

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/diblac17-eng/weftend/pkg/canon"
	"github.com/diblac17-eng/weftend/pkg/capture"
	"github.com/diblac17-eng/weftend/pkg/config"
	"github.com/diblac17-eng/weftend/pkg/detect"
	"github.com/diblac17-eng/weftend/pkg/examiner"
	"github.com/diblac17-eng/weftend/pkg/policy"
	"github.com/diblac17-eng/weftend/pkg/receipt"
	"github.com/diblac17-eng/weftend/pkg/sandbox"
	"github.com/diblac17-eng/weftend/pkg/validate"
)

// Exit codes, per §6's CLI contract.
const (
	ExitSuccess             = 0
	ExitInternalError       = 1
	ExitExpectedPrecondition = 40
)

// Options bundles the flags §6 says the core honors.
type Options struct {
	WithholdExec      bool
	Profile           string
	PolicyPath        string
	InteractionScript string
}

// Result is safeRun's return contract.
type Result struct {
	ExitCode            int
	OperatorReceiptPath string
}

var defaultCaptureLimits = capture.Limits{
	MaxFiles:      4096,
	MaxTotalBytes: 256 << 20,
	MaxFileBytes:  64 << 20,
	MaxPathBytes:  4096,
}

var defaultDetectLimits = detect.Limits{
	MaxFileBytes:    8 << 20,
	MaxExternalRefs: 256,
}

var defaultScriptLimits = sandbox.ScriptLimits{
	MaxScriptBytes: 64 << 10,
	MaxScriptSteps: 10000,
}

// SafeRun runs one full intake: capture, detect, probe, mint, decide, and
// then assembles and finalizes every output file under outRoot.
func SafeRun(input, outRoot string, opts Options) (Result, error) {
	logger := slog.Default().With("component", "saferun")

	cfg := config.Load()
	profile := opts.Profile
	if profile == "" {
		profile = "web"
	}

	tree := capture.Capture(input, defaultCaptureLimits)
	logger.Info("capture complete", "kind", tree.Kind, "fileCount", tree.Totals.FileCount, "totalBytes", tree.Totals.TotalBytes, "issues", tree.Issues)
	for _, code := range tree.Issues {
		if code == "CAPTURE_INPUT_MISSING" || code == "CAPTURE_INPUT_INVALID" {
			logger.Warn("capture rejected input", "reason", code)
			return finalizePrecondition(outRoot, tree, nil)
		}
	}

	det := detect.Detect(tree, readerFor(tree), defaultDetectLimits)

	probes, err := runProbes(tree, det, cfg, opts, defaultScriptLimits)
	if err != nil {
		logger.Error("probe stage failed", "error", err)
		return Result{ExitCode: ExitInternalError}, err
	}

	pol, policyID, polIssues, err := loadPolicy(opts.PolicyPath)
	if err != nil {
		logger.Error("policy load failed", "error", err)
		return Result{ExitCode: ExitInternalError}, err
	}
	if !polIssues.OK() {
		logger.Warn("policy failed validation", "issues", polIssues)
		return finalizePrecondition(outRoot, tree, nil)
	}

	mint, err := examiner.Build(examiner.BuildInput{
		Profile:         profile,
		Capture:         tree,
		Detect:          det,
		ExecutionProbes: probes,
		PolicyDigest:    policyID,
		Limits: map[string]any{
			"maxFiles":        defaultCaptureLimits.MaxFiles,
			"maxTotalBytes":   defaultCaptureLimits.MaxTotalBytes,
			"maxExternalRefs": defaultDetectLimits.MaxExternalRefs,
		},
	})
	if err != nil {
		logger.Error("mint build failed", "error", err)
		return Result{ExitCode: ExitInternalError}, err
	}

	decision, disclosure, appeal, err := examiner.Decide(mint, pol, policyID, nil, externalDomains(det.ExternalRefs))
	if err != nil {
		logger.Error("decide failed", "error", err)
		return Result{ExitCode: ExitInternalError}, err
	}
	logger.Info("decision reached", "grade", decision.Grade, "action", decision.Action, "policyId", policyID)

	return finalize(outRoot, tree, mint, decision, disclosure, appeal, logger)
}

func loadPolicy(path string) (*policy.Policy, string, validate.Issues, error) {
	if path == "" {
		return defaultPolicy(), "", nil, nil
	}
	pol, id, issues, err := policy.Load(path)
	if err != nil {
		return nil, "", nil, err
	}
	return pol, id, issues, nil
}

func defaultPolicy() *policy.Policy {
	return &policy.Policy{
		Schema:  "weftend.policy/1",
		Profile: "web",
		SeverityAction: map[policy.Severity]policy.Action{
			policy.SeverityInfo:       policy.ActionApprove,
			policy.SeverityWarn:       policy.ActionQueue,
			policy.SeverityDeny:       policy.ActionReject,
			policy.SeverityQuarantine: policy.ActionHold,
		},
		Bounds: policy.Bounds{MaxReasonCodes: 50, MaxCapsItems: 50, MaxDisclosureChars: 2000, MaxAppealBytes: 1 << 20},
		Disclosure: policy.Disclosure{RequireOnWARN: false, RequireOnDENY: false, MaxLines: 10},
	}
}

// runProbes replays the implicit load probe (and, if supplied, an
// interaction script) inside a deny-all capability kernel — unless
// withhold-exec was requested or the adapter is disabled, in which case
// execution is not attempted at all and the probe surfaces as not
// applicable / unavailable rather than denied.
func runProbes(tree *capture.Tree, det *detect.Result, cfg config.Config, opts Options, scriptLimits sandbox.ScriptLimits) (examiner.ExecutionProbes, error) {
	if opts.WithholdExec || cfg.AdapterDisabled() {
		return examiner.ExecutionProbes{StrictAvailable: false, StrictUnavailableReason: "STRICT_COMPARTMENT_UNAVAILABLE"}, nil
	}

	kernel := sandbox.NewKernel(
		map[string]any{"releaseId": "saferun-local"},
		nil, // grantedCaps: deny-all by default, per the membrane's strict deny rule
		"OK",
		true,
		nil,
		nil,
		false,
	)

	htmlSource := readHTMLEntry(tree, det)
	loadReport, strictAvailable, unavailable := examiner.LoadOnlyProbe(det.HTMLEntry, htmlSource, kernel)
	probes := examiner.ExecutionProbes{
		StrictAvailable:         strictAvailable,
		StrictUnavailableReason: unavailable,
		LoadOnly:                loadReport,
	}

	if opts.InteractionScript != "" {
		report, parseReasons := examiner.InteractionScriptProbe(opts.InteractionScript, kernel, scriptLimits, scriptLimits.MaxScriptSteps)
		if len(parseReasons) > 0 {
			probes.StrictUnavailableReason = parseReasons[0]
		} else {
			probes.InteractionScript = report
		}
	}

	return probes, nil
}

// readHTMLEntry reads the HTML entry's raw bytes (bounded the same way
// detect bounds its own text scans) so the load probe can parse its inline
// scripts. A ZIP capture or a read failure yields an empty source, which
// the probe treats as a script-free page.
func readHTMLEntry(tree *capture.Tree, det *detect.Result) string {
	if det.HTMLEntry == "" {
		return ""
	}
	reader := readerFor(tree)
	if reader == nil {
		return ""
	}
	rc, err := reader(det.HTMLEntry)
	if err != nil {
		return ""
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, defaultDetectLimits.MaxFileBytes))
	if err != nil {
		return ""
	}
	return string(data)
}

func readerFor(tree *capture.Tree) detect.FileReader {
	if tree.Kind == capture.KindZip {
		return nil
	}
	base := tree.BasePath
	if tree.Kind == capture.KindFile {
		base = filepath.Dir(tree.BasePath)
	}
	return func(relPath string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(base, filepath.FromSlash(relPath)))
	}
}

func finalizePrecondition(outRoot string, tree *capture.Tree, _ *examiner.Decision) (Result, error) {
	path, err := writeMinimalReceipt(outRoot, tree)
	if err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	return Result{ExitCode: ExitExpectedPrecondition, OperatorReceiptPath: path}, nil
}

func writeMinimalReceipt(outRoot string, tree *capture.Tree) (string, error) {
	entries := []receipt.FileEntry{}
	rec, err := receipt.BuildOperatorReceipt(entries, tree.Issues)
	if err != nil {
		return "", err
	}
	path := filepath.Join(outRoot, "operator_receipt.json")
	data, err := canon.Canonical(rec)
	if err != nil {
		return "", err
	}
	if err := receipt.WriteStaged(path, appendNewline(data), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func finalize(outRoot string, tree *capture.Tree, mint *examiner.Mint, decision *examiner.Decision, disclosure string, appeal *examiner.Appeal, logger *slog.Logger) (Result, error) {
	type writeSpec struct {
		relPath string
		kind    string
		value   any
	}

	specs := []writeSpec{
		{"safe_run_receipt.json", "receipt", mint},
		{filepath.Join("analysis", "adapter_summary_v0.json"), "analysis", map[string]any{
			"schema": "weftend.adapterSummary/0", "histogram": mint.Observations["histogram"],
		}},
		{filepath.Join("analysis", "adapter_findings_v0.json"), "analysis", map[string]any{
			"schema": "weftend.adapterFindings/0", "reasonCodes": mint.Grade.ReasonCodes,
		}},
		{"report_card_v0.json", "report", decision},
	}

	var entries []receipt.FileEntry
	for _, spec := range specs {
		data, err := canon.Canonical(spec.value)
		if err != nil {
			return Result{ExitCode: ExitInternalError}, err
		}
		path := filepath.Join(outRoot, spec.relPath)
		if err := receipt.WriteStaged(path, appendNewline(data), 0o644); err != nil {
			return Result{ExitCode: ExitInternalError}, err
		}
		entries = append(entries, receipt.FileEntry{Kind: spec.kind, RelPath: spec.relPath, Digest: canon.SHA256(data)})
	}

	readme := buildReadme(mint, decision, disclosure)
	readmePath := filepath.Join(outRoot, "weftend", "README.txt")
	if err := receipt.WriteStaged(readmePath, []byte(readme), 0o644); err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	entries = append(entries, receipt.FileEntry{Kind: "readme", RelPath: filepath.Join("weftend", "README.txt"), Digest: canon.SHA256([]byte(readme))})

	reportCard := buildReportCard(decision)
	reportCardPath := filepath.Join(outRoot, "report_card.txt")
	if err := receipt.WriteStaged(reportCardPath, []byte(reportCard), 0o644); err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	entries = append(entries, receipt.FileEntry{Kind: "report", RelPath: "report_card.txt", Digest: canon.SHA256([]byte(reportCard))})

	lintReport, err := receipt.Lint(outRoot)
	if err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	lintData, err := canon.Canonical(lintReport)
	if err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	lintPath := filepath.Join(outRoot, "weftend", "privacy_lint_v0.json")
	if err := receipt.WriteStaged(lintPath, appendNewline(lintData), 0o644); err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	entries = append(entries, receipt.FileEntry{Kind: "lint", RelPath: filepath.Join("weftend", "privacy_lint_v0.json"), Digest: canon.SHA256(lintData)})

	var warnings []string
	warnings = append(warnings, tree.Issues...)
	if appeal != nil && appeal.Status == "OVERSIZE" {
		warnings = append(warnings, "APPEAL_OVERSIZE")
	}

	rec, err := receipt.BuildOperatorReceipt(entries, warnings)
	if err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	recData, err := canon.Canonical(rec)
	if err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}
	recPath := filepath.Join(outRoot, "operator_receipt.json")
	if err := receipt.WriteStaged(recPath, appendNewline(recData), 0o644); err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}

	exitCode := ExitSuccess
	if lintReport.Verdict == "FAIL" {
		exitCode = ExitExpectedPrecondition
	}
	logger.Info("finalize complete", "exitCode", exitCode, "receiptPath", recPath, "lintVerdict", lintReport.Verdict)
	return Result{ExitCode: exitCode, OperatorReceiptPath: recPath}, nil
}

func buildReadme(mint *examiner.Mint, decision *examiner.Decision, disclosure string) string {
	return fmt.Sprintf(
		"WeftEnd run summary\nGrade: %s\nAction: %s\nMint: %s\nDisclosure: %s\n",
		mint.Grade.Status, decision.Action, mint.Digests.MintDigest, disclosure,
	)
}

func buildReportCard(decision *examiner.Decision) string {
	return fmt.Sprintf("grade=%s action=%s decisionDigest=%s\n", decision.Grade, decision.Action, decision.DecisionDigest)
}

// externalDomains reduces a list of raw external references (full URLs)
// to their sorted-unique hostnames, the granularity the decision's
// notableDomains bucket is meant to carry.
func externalDomains(refs []string) []string {
	seen := map[string]bool{}
	var domains []string
	for _, ref := range refs {
		u, err := url.Parse(ref)
		if err != nil || u.Host == "" {
			continue
		}
		if !seen[u.Host] {
			seen[u.Host] = true
			domains = append(domains, u.Host)
		}
	}
	sort.Strings(domains)
	return domains
}

func appendNewline(b []byte) []byte {
	return append(append([]byte(nil), b...), '\n')
}
