// Package examiner orchestrates the capture → detect → probe → mint →
// decide pipeline: the C3 component that turns a capture.Tree and a
// detect.Result into a graded mint_v1 package and, given a policy, an
// intake decision.
package examiner

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/diblac17-eng/weftend/pkg/sandbox"
)

// ExecutionProbes is the mint_v1 executionProbes section.
type ExecutionProbes struct {
	StrictAvailable         bool     `json:"strictAvailable"`
	StrictUnavailableReason string   `json:"strictUnavailableReason,omitempty"`
	LoadOnly                *ProbeReport `json:"loadOnly,omitempty"`
	InteractionScript       *ProbeReport `json:"interactionScript,omitempty"`
}

// ProbeReport summarizes one probe's capability observations.
type ProbeReport struct {
	CapsRequested int      `json:"capsRequested"`
	CapsDenied    int      `json:"capsDenied"`
	ReasonCodes   []string `json:"reasonCodes,omitempty"`
	Pulses        []sandbox.Pulse `json:"-"`
}

// LoadOnlyProbe replays exactly one implicit "load" for the HTML entry (if
// any): it parses htmlSource's inline scripts and, for each recognized
// side-effecting call they make, invokes the matching capability inside the
// kernel. The load itself requests nothing — a script-free page yields a
// report with zero caps attempted, not a denial. Non-HTML inputs are not
// applicable.
func LoadOnlyProbe(htmlEntry string, htmlSource string, kernel *sandbox.Kernel) (report *ProbeReport, strictAvailable bool, unavailableReason string) {
	if htmlEntry == "" {
		return nil, false, "PROBE_NOT_APPLICABLE"
	}
	if kernel == nil {
		return nil, false, "STRICT_COMPARTMENT_UNAVAILABLE"
	}

	report = &ProbeReport{}
	for i, call := range inlineScriptCalls(htmlSource) {
		result := kernel.Invoke(sandbox.InvokeRequest{ReqID: "load-" + strconv.Itoa(i+1), CapID: call.capID, Args: call.arg})
		report.CapsRequested++
		if !result.OK {
			report.CapsDenied++
			report.ReasonCodes = append(report.ReasonCodes, result.ReasonCodes...)
		}
	}
	report.Pulses = kernel.Pulses()
	return report, true, ""
}

// inlineCall is one side-effecting call recognized inside an inline
// <script> body, mapped to the capability it exercises.
type inlineCall struct {
	capID string
	arg   string
}

var scriptTagPattern = regexp.MustCompile(`(?is)<script([^>]*)>(.*?)</script>`)
var scriptSrcAttrPattern = regexp.MustCompile(`(?i)\bsrc\s*=`)

// inlineCallPatterns maps a recognized JS call shape to the capability kind
// it exercises, scanned in this fixed order so replay stays deterministic
// regardless of which pattern a given inline script happens to trip first.
var inlineCallPatterns = []struct {
	re    *regexp.Regexp
	capID string
}{
	{regexp.MustCompile(`\bfetch\s*\(\s*["'` + "`" + `]([^"'` + "`" + `]*)`), "net.fetch"},
	{regexp.MustCompile(`\bnew\s+XMLHttpRequest\s*\(`), "net.fetch"},
	{regexp.MustCompile(`\b(?:localStorage|sessionStorage)\.(?:setItem|removeItem|clear)\s*\(`), "storage.write"},
	{regexp.MustCompile(`\b(?:localStorage|sessionStorage)\.getItem\s*\(`), "storage.read"},
	{regexp.MustCompile(`\bdocument\.cookie\s*=`), "cookie.write"},
	{regexp.MustCompile(`\bdocument\.write\s*\(|\balert\s*\(|\bconfirm\s*\(|\bprompt\s*\(`), "ui.render"},
}

// extractInlineScripts returns the body of every <script> tag in html that
// carries no src attribute; external scripts are already tracked by detect
// and are not replayed here.
func extractInlineScripts(html string) []string {
	var scripts []string
	for _, m := range scriptTagPattern.FindAllStringSubmatch(html, -1) {
		attrs, body := m[1], m[2]
		if scriptSrcAttrPattern.MatchString(attrs) {
			continue
		}
		if strings.TrimSpace(body) == "" {
			continue
		}
		scripts = append(scripts, body)
	}
	return scripts
}

// inlineScriptCalls parses every inline script in html and maps its
// recognized side-effecting calls to capability invocations. A page with no
// inline scripts, or none of whose calls are recognized, yields no calls at
// all.
func inlineScriptCalls(html string) []inlineCall {
	var calls []inlineCall
	for _, body := range extractInlineScripts(html) {
		for _, pat := range inlineCallPatterns {
			for _, m := range pat.re.FindAllStringSubmatch(body, -1) {
				arg := m[0]
				if len(m) > 1 && m[1] != "" {
					arg = m[1]
				}
				calls = append(calls, inlineCall{capID: pat.capID, arg: arg})
			}
		}
	}
	return calls
}

// InteractionScriptProbe parses and replays an operator-provided script.
// Parse errors are returned as reason codes rather than an error; a
// successfully replayed script still reports every capability the
// sandbox denied along the way.
func InteractionScriptProbe(script string, kernel *sandbox.Kernel, limits sandbox.ScriptLimits, maxSteps int) (*ProbeReport, []string) {
	steps, parseReasons := sandbox.ParseScript(script, limits)
	if len(parseReasons) > 0 {
		return nil, parseReasons
	}

	flat, truncated := sandbox.Expand(steps, maxSteps)
	var reasons []string
	if truncated {
		reasons = append(reasons, "INTERACTION_STEP_LIMIT")
	}
	if kernel == nil {
		return nil, append(reasons, "STRICT_COMPARTMENT_UNAVAILABLE")
	}

	report := &ProbeReport{}
	for i, step := range flat {
		capID := capIDForStep(step)
		result := kernel.Invoke(sandbox.InvokeRequest{ReqID: strconv.Itoa(i), CapID: capID, Args: step.Arg})
		report.CapsRequested++
		if !result.OK {
			report.CapsDenied++
			report.ReasonCodes = append(report.ReasonCodes, result.ReasonCodes...)
		}
	}
	report.ReasonCodes = append(report.ReasonCodes, reasons...)
	report.Pulses = kernel.Pulses()
	return report, nil
}

func capIDForStep(s sandbox.Step) string {
	switch s.Kind {
	case sandbox.StepClick:
		return "ui.click"
	case sandbox.StepKey:
		return "ui.key"
	default:
		return "ui.wait"
	}
}

