package examiner

import (
	"strings"

	"github.com/diblac17-eng/weftend/pkg/canon"
	"github.com/diblac17-eng/weftend/pkg/capture"
	"github.com/diblac17-eng/weftend/pkg/detect"
)

// Mint is the mint_v1 package: the canonical examiner output.
type Mint struct {
	Schema          string          `json:"schema"`
	Profile         string          `json:"profile"`
	Input           MintInput       `json:"input"`
	Capture         MintCapture     `json:"capture"`
	Observations    map[string]any  `json:"observations"`
	ExecutionProbes ExecutionProbes `json:"executionProbes"`
	Grade           MintGrade       `json:"grade"`
	Digests         MintDigests     `json:"digests"`
	Limits          map[string]any  `json:"limits"`
}

type MintInput struct {
	Kind       string `json:"kind"`
	RootDigest string `json:"rootDigest"`
	FileCount  int    `json:"fileCount"`
	TotalBytes int64  `json:"totalBytes"`
}

type MintCapture struct {
	CaptureDigest string   `json:"captureDigest"`
	Paths         []string `json:"paths"`
}

type MintGrade struct {
	Status      string   `json:"status"`
	ReasonCodes []string `json:"reasonCodes"`
	Receipts    []string `json:"receipts"`
	Scars       []string `json:"scars,omitempty"`
}

type MintDigests struct {
	MintDigest   string `json:"mintDigest"`
	InputDigest  string `json:"inputDigest"`
	PolicyDigest string `json:"policyDigest"`
}

// BuildInput bundles every upstream stage's output that Mint needs.
type BuildInput struct {
	Profile         string
	Capture         *capture.Tree
	Detect          *detect.Result
	ExecutionProbes ExecutionProbes
	PolicyDigest    string
	Limits          map[string]any
	Receipts        []string
}

// Build assembles and seals a mint_v1 package. Its self-grading (the
// simple fatal/warn/ok rule of §4.3.4) is independent of — and always
// computed before — the policy-driven severity table that the decide
// stage applies afterward.
func Build(in BuildInput) (*Mint, error) {
	var reasons []string
	reasons = append(reasons, in.Capture.Issues...)
	reasons = append(reasons, in.Detect.Issues...)
	if in.ExecutionProbes.StrictUnavailableReason != "" && in.ExecutionProbes.StrictUnavailableReason != "PROBE_NOT_APPLICABLE" {
		reasons = append(reasons, in.ExecutionProbes.StrictUnavailableReason)
	}
	if in.ExecutionProbes.LoadOnly != nil {
		reasons = append(reasons, in.ExecutionProbes.LoadOnly.ReasonCodes...)
	}
	if in.ExecutionProbes.InteractionScript != nil {
		reasons = append(reasons, in.ExecutionProbes.InteractionScript.ReasonCodes...)
	}

	reasons = canon.SortStrings(reasons)

	var scars []string
	if in.Capture.Truncated {
		scars = append(scars, "CAPTURE_TRUNCATED")
	}

	mint := &Mint{
		Schema:  "weftend.mint/1",
		Profile: in.Profile,
		Input: MintInput{
			Kind:       string(in.Capture.Kind),
			RootDigest: in.Capture.RootDigest,
			FileCount:  in.Capture.Totals.FileCount,
			TotalBytes: in.Capture.Totals.TotalBytes,
		},
		Capture: MintCapture{
			CaptureDigest: in.Capture.CaptureDigest,
			Paths:         in.Capture.PathsSample,
		},
		Observations:    observationsFrom(in.Detect),
		ExecutionProbes: in.ExecutionProbes,
		Grade: MintGrade{
			Status:      gradeFromReasons(reasons),
			ReasonCodes: reasons,
			Receipts:    in.Receipts,
			Scars:       scars,
		},
		Digests: MintDigests{
			InputDigest:  in.Capture.RootDigest,
			PolicyDigest: in.PolicyDigest,
		},
		Limits: in.Limits,
	}

	mintDigest, err := canon.SHA256Canonical(mint)
	if err != nil {
		return nil, err
	}
	mint.Digests.MintDigest = mintDigest
	return mint, nil
}

func observationsFrom(d *detect.Result) map[string]any {
	return map[string]any{
		"histogram":       d.Histogram,
		"htmlEntry":       d.HTMLEntry,
		"externalRefs":    d.ExternalRefs,
		"scriptsDetected": d.ScriptsDetected,
		"wasmDetected":    d.WasmDetected,
		"issues":          d.Issues,
	}
}

func gradeFromReasons(reasons []string) string {
	for _, r := range reasons {
		if strings.HasPrefix(r, "CAPTURE_INPUT_") || r == "ZIP_EOCD_MISSING" || r == "ZIP_CD_CORRUPT" {
			return "DENY"
		}
	}
	if len(reasons) == 0 {
		return "OK"
	}
	return "WARN"
}
