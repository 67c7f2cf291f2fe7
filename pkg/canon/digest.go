package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// Digest algorithm tags, per the data model's "<algo>:<hex>" format.
const (
	AlgoFNV1a32 = "fnv1a32"
	AlgoSHA256  = "sha256"
)

// SHA256 computes the sha256 digest of arbitrary bytes (not run through
// canonicalization first — used for byte-stream digests such as capture
// entries, where the input is already a byte stream rather than a value
// to be canonicalized).
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return AlgoSHA256 + ":" + hex.EncodeToString(sum[:])
}

// SHA256Canonical canonicalizes v and returns its tagged sha256 digest.
// This is the only admissible path from a value to a release-relevant or
// operator-facing digest.
func SHA256Canonical(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", fmt.Errorf("canon: cannot digest: %w", err)
	}
	return SHA256(b), nil
}

// FNV1a32 computes the fnv1a32 digest of a string. Used only for internal
// identity where a 32-bit fingerprint suffices (e.g. pulse subject keys,
// tartarus record ids) — never for anything touching signatures, release,
// operator, or compare bindings.
func FNV1a32(s string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return AlgoFNV1a32 + ":" + hex.EncodeToString(h.Sum(nil))
}

// FNV1a32Canonical canonicalizes v and returns its tagged fnv1a32 digest.
func FNV1a32Canonical(v any) (string, error) {
	s, err := CanonicalString(v)
	if err != nil {
		return "", fmt.Errorf("canon: cannot digest: %w", err)
	}
	return FNV1a32(s), nil
}

// ZeroSentinel is the fixed placeholder value a self-referential digest
// field is set to before canonicalizing and hashing the container (the
// "mint with digests.mintDigest=zero" / "decision with digestField=zero"
// pattern used throughout §3-§4).
const ZeroSentinel = ""

// SealedDigest computes SHA256Canonical(v) where v is expected to carry a
// field (identified only by the caller's own zeroing of it beforehand)
// equal to ZeroSentinel. It exists purely as a documented call-site marker
// for the "seal sans self" idiom; callers build v with the digest field
// already zeroed and pass it here.
func SealedDigest(v any) (string, error) {
	return SHA256Canonical(v)
}
