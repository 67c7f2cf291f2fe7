package validate

import "github.com/diblac17-eng/weftend/pkg/canon"

var mintSchemaJSON = `{
  "type": "object",
  "required": ["schema", "profile", "input", "capture", "observations", "executionProbes", "grade", "digests", "limits"],
  "properties": {
    "schema": {"const": "weftend.mint/1"},
    "profile": {"enum": ["web", "mod", "generic"]},
    "grade": {
      "type": "object",
      "required": ["status", "reasonCodes", "receipts"],
      "properties": {
        "status": {"enum": ["OK", "WARN", "DENY", "QUARANTINE"]}
      }
    },
    "digests": {
      "type": "object",
      "required": ["mintDigest", "inputDigest", "policyDigest"]
    }
  }
}`

// ValidateMint validates a decoded mint_v1 package against its structural
// schema and its one self-referential invariant: mintDigest must equal
// sha256(canonical(mint with digests.mintDigest zeroed)).
func ValidateMint(mint map[string]any) Issues {
	var c collector
	c.againstSchema("mint_v1", mintSchemaJSON, mint, "")

	digests, ok := getObject(mint, "digests")
	if !ok {
		// The schema check above already reported this; avoid a
		// redundant nil-pointer style second report.
		return c.result()
	}
	mintDigest, _ := getString(digests, "mintDigest")

	sansDigest := cloneWithZeroedMintDigest(mint)
	want, err := canon.SHA256Canonical(sansDigest)
	if err != nil {
		c.add("CANONICAL_INVALID", "digests.mintDigest", err.Error())
		return c.result()
	}
	if mintDigest != want {
		c.add("MINT_DIGEST_MISMATCH", "digests.mintDigest", "mintDigest does not equal sha256(canonical(mint with mintDigest zeroed))")
	}

	if grade, ok := getObject(mint, "grade"); ok {
		if rc, ok := getArray(grade, "reasonCodes"); ok {
			codes := stringSlice(rc)
			deduped := canon.SortStrings(codes)
			if len(deduped) != len(codes) {
				c.add("REASONCODES_NOT_UNIQUE", "grade.reasonCodes", "reasonCodes must be deduplicated")
			}
		}
	}

	return c.result()
}

func cloneWithZeroedMintDigest(mint map[string]any) map[string]any {
	out := make(map[string]any, len(mint))
	for k, v := range mint {
		out[k] = v
	}
	digests, ok := mint["digests"].(map[string]any)
	if !ok {
		return out
	}
	clonedDigests := make(map[string]any, len(digests))
	for k, v := range digests {
		clonedDigests[k] = v
	}
	clonedDigests["mintDigest"] = canon.ZeroSentinel
	out["digests"] = clonedDigests
	return out
}
