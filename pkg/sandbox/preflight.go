package sandbox

import "github.com/diblac17-eng/weftend/pkg/validate"

// ShopStampObservation is the runtime-computed view of a shop stamp.
type ShopStampObservation struct {
	Status      string   `json:"status"`
	SigStatus   string   `json:"sigStatus"`
	ReasonCodes []string `json:"reasonCodes"`
}

// ShopStampInput is the raw, as-observed stamp before classification.
type ShopStampInput struct {
	Present        bool
	SignaturePresent bool
	SignatureValid   bool
}

// ObserveShopStamp classifies a raw shop-stamp observation into the closed
// status/sigStatus vocabulary.
func ObserveShopStamp(in *ShopStampInput) ShopStampObservation {
	if in == nil || !in.Present {
		return ShopStampObservation{Status: "UNSTAMPED", SigStatus: "UNVERIFIED"}
	}
	if !in.SignaturePresent {
		return ShopStampObservation{Status: "STAMP_INVALID", SigStatus: "UNVERIFIED", ReasonCodes: []string{"STAMP_INVALID"}}
	}
	if !in.SignatureValid {
		return ShopStampObservation{Status: "STAMP_INVALID", SigStatus: "BAD", ReasonCodes: []string{"STAMP_INVALID"}}
	}
	return ShopStampObservation{Status: "STAMP_VERIFIED", SigStatus: "OK"}
}

// Attestation is a resolved build attestation.
type Attestation struct {
	PlanHash string
}

// ReleaseVerifyStatus is the closed result of verifying a release manifest.
type ReleaseVerifyStatus string

const (
	ReleaseOK    ReleaseVerifyStatus = "OK"
	ReleaseBad   ReleaseVerifyStatus = "BAD"
	ReleaseMaybe ReleaseVerifyStatus = "MAYBE"
)

// CryptoPort verifies a release manifest's signatures against a key
// allowlist. It is the boundary pkg/sandbox/crypto.go implements with
// Ed25519.
type CryptoPort interface {
	VerifyReleaseManifest(manifest map[string]any, expectedPlanDigest, expectedPathDigest string, expectedBlocks []string, keyAllowlist []string) ReleaseVerifyStatus
}

// PreflightInput carries every fact the five ordered preflight checks need.
// Nil/zero fields mean "not configured" — e.g. an empty ExpectedSourceDigest
// means step 1 is skipped entirely, per the spec's "if an expected source
// digest is configured" qualifier.
type PreflightInput struct {
	ExpectedSourceDigest string
	ObservedSourceDigest string
	PlanDigest           string
	BlockHash            string

	ShopStamp *ShopStampInput

	PathSummary       map[string]any
	PathSummaryAbsent bool
	PathSummaryInvalid bool

	RequireAttestation bool
	Attestation        *Attestation
	ExpectedPlanHash   string

	ReleaseManifest     map[string]any
	ExpectedPlanDigest  string
	ExpectedPathDigest  string
	ExpectedBlocks      []string
	KeyAllowlist        []string
	Crypto              CryptoPort
}

// PreflightResult is the union of every reason code the five checks
// produced, plus the shop-stamp observation and any tartarus records the
// checks raised.
type PreflightResult struct {
	Reasons      []string
	Denied       bool
	ShopStamp    ShopStampObservation
	TartarusRecs []TartarusRecord
}

// RunPreflight runs all five ordered checks unconditionally (it does not
// short-circuit on the first failure) so that the LOAD pulse's reason set
// is the true union of every preflight problem, matching the spec's
// "union of preflight reason codes" framing.
func RunPreflight(in PreflightInput, ledger *Ledger) PreflightResult {
	var res PreflightResult

	// 1. Artifact digest.
	if in.ExpectedSourceDigest != "" && in.ObservedSourceDigest != in.ExpectedSourceDigest {
		res.Reasons = append(res.Reasons, "ARTIFACT_DIGEST_MISMATCH")
		if ledger != nil {
			if rec, err := ledger.Record("artifact.mismatch", in.PlanDigest, in.BlockHash, []string{"ARTIFACT_DIGEST_MISMATCH"}); err == nil {
				res.TartarusRecs = append(res.TartarusRecs, rec)
			}
		}
	}

	// 2. Shop stamp.
	res.ShopStamp = ObserveShopStamp(in.ShopStamp)
	res.Reasons = append(res.Reasons, res.ShopStamp.ReasonCodes...)

	// 3. Plan snapshot / path summary.
	switch {
	case in.PathSummaryAbsent:
		res.Reasons = append(res.Reasons, "PATH_SUMMARY_MISSING")
	case in.PathSummaryInvalid:
		res.Reasons = append(res.Reasons, "PATH_SUMMARY_INVALID")
	default:
		if issues := validate.ValidatePathSummaryPrivacy(in.PathSummary); !issues.OK() {
			res.Reasons = append(res.Reasons, "PRIVACY_FIELD_FORBIDDEN")
		}
	}

	// 4. Build attestation.
	if in.RequireAttestation {
		switch {
		case in.Attestation == nil:
			res.Reasons = append(res.Reasons, "BUILD_ATTESTATION_MISSING")
		case in.Attestation.PlanHash != in.ExpectedPlanHash:
			res.Reasons = append(res.Reasons, "BUILD_ATTESTATION_PLAN_MISMATCH")
		}
	}

	// 5. Release manifest verification.
	if in.Crypto != nil {
		status := in.Crypto.VerifyReleaseManifest(in.ReleaseManifest, in.ExpectedPlanDigest, in.ExpectedPathDigest, in.ExpectedBlocks, in.KeyAllowlist)
		if status != ReleaseOK {
			res.Reasons = append(res.Reasons, "RELEASE_UNVERIFIED")
		}
		if status == ReleaseMaybe {
			res.Denied = true
		}
	}

	if len(res.Reasons) > 0 {
		res.Denied = true
	}
	return res
}
