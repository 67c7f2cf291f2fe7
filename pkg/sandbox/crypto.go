package sandbox

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/diblac17-eng/weftend/pkg/canon"
)

// Signature is one {sigKind, keyId, sigB64} entry from a release
// manifest's signatures array.
type Signature struct {
	SigKind string
	KeyID   string
	SigB64  string
}

// Ed25519Crypto implements CryptoPort using Ed25519 signatures, the
// teacher's own choice for release-manifest signing elsewhere in its
// stack — kept here rather than swapped for anything else, since nothing
// about this spec calls for a different signature scheme.
type Ed25519Crypto struct {
	// Keys maps a keyId to its Ed25519 public key.
	Keys map[string]ed25519.PublicKey
}

// VerifyReleaseManifest checks the manifest body against the binding facts
// (expectedPlanDigest, expectedPathDigest, expectedBlocks when the body
// carries blocks) and then its signatures against the key allowlist. Any
// body mismatch, or a manifest with no signatures, returns BAD. It returns
// OK when at least one signature from a configured key (restricted to the
// allowlist when the allowlist is non-empty) verifies over the canonical
// manifest body. When none verifies, it returns MAYBE if both the
// allowlist and the configured keys are empty, otherwise BAD.
func (c Ed25519Crypto) VerifyReleaseManifest(manifest map[string]any, expectedPlanDigest, expectedPathDigest string, expectedBlocks []string, keyAllowlist []string) ReleaseVerifyStatus {
	if manifest == nil {
		return ReleaseBad
	}

	body, _ := manifest["manifestBody"].(map[string]any)
	if body == nil {
		return ReleaseBad
	}
	if s, _ := body["planDigest"].(string); s != expectedPlanDigest {
		return ReleaseBad
	}
	if s, _ := body["pathDigest"].(string); s != expectedPathDigest {
		return ReleaseBad
	}
	if blocks, ok := body["blocks"].([]any); ok {
		if !blocksMatch(blocks, expectedBlocks) {
			return ReleaseBad
		}
	}

	bodyBytes, err := canon.Canonical(body)
	if err != nil {
		return ReleaseBad
	}

	sigsRaw, _ := manifest["signatures"].([]any)
	if len(sigsRaw) == 0 {
		return ReleaseBad
	}

	allowlist := make(map[string]bool, len(keyAllowlist))
	for _, k := range keyAllowlist {
		allowlist[k] = true
	}

	sawVerified := false
	for _, raw := range sigsRaw {
		sig, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		keyID, _ := sig["keyId"].(string)
		sigB64, _ := sig["sigB64"].(string)
		if len(allowlist) > 0 && !allowlist[keyID] {
			continue
		}
		pub, ok := c.Keys[keyID]
		if !ok {
			continue
		}
		sigBytes, err := base64.StdEncoding.DecodeString(sigB64)
		if err != nil {
			continue
		}
		if ed25519.Verify(pub, bodyBytes, sigBytes) {
			sawVerified = true
			break
		}
	}

	if sawVerified {
		return ReleaseOK
	}
	if len(allowlist) == 0 && len(c.Keys) == 0 {
		return ReleaseMaybe
	}
	return ReleaseBad
}

func blocksMatch(actual []any, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i, a := range actual {
		s, ok := a.(string)
		if !ok || s != expected[i] {
			return false
		}
	}
	return true
}
