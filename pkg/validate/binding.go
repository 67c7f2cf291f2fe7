package validate

import (
	"reflect"

	"github.com/diblac17-eng/weftend/pkg/canon"
)

// ValidateGrantBinding enforces: trustNode.grants must equal
// digest.grantedCaps after canonicalization; mismatch -> GRANTS_MISMATCH.
func ValidateGrantBinding(trustNode, digest map[string]any) Issues {
	var c collector
	grants, _ := getArray(trustNode, "grants")
	granted, _ := getArray(digest, "grantedCaps")

	ca, err1 := canon.Canonical(stringSlice(grants))
	cb, err2 := canon.Canonical(stringSlice(granted))
	if err1 != nil || err2 != nil || string(ca) != string(cb) {
		c.add("GRANTS_MISMATCH", "grants", "trust node grants must equal digest.grantedCaps after canonicalization")
	}
	return c.result()
}

// ValidateProducerBinding enforces: when both present, packageHash ==
// digest.producerHash else PRODUCER_HASH_MISMATCH.
func ValidateProducerBinding(obj, digest map[string]any) Issues {
	var c collector
	packageHash, havePkg := getString(obj, "packageHash")
	producerHash, haveProducer := getString(digest, "producerHash")
	if havePkg && haveProducer && packageHash != producerHash {
		c.add("PRODUCER_HASH_MISMATCH", "packageHash", "packageHash must equal digest.producerHash")
	}
	return c.result()
}

// ValidateReleaseBinding enforces the closed set of cross-structure
// release bindings: trust.manifestId == manifest.id, plan.manifestId ==
// manifest.id, plan.policyId == trust.policyId, compiler.planHash ==
// plan.planHash. Any deviation -> BINDING_INVALID.
func ValidateReleaseBinding(trust, plan, manifest, compiler map[string]any) Issues {
	var c collector

	manifestID, _ := getString(manifest, "id")
	if tm, _ := getString(trust, "manifestId"); tm != manifestID {
		c.add("BINDING_INVALID", "trust.manifestId", "trust.manifestId must equal manifest.id")
	}
	if pm, _ := getString(plan, "manifestId"); pm != manifestID {
		c.add("BINDING_INVALID", "plan.manifestId", "plan.manifestId must equal manifest.id")
	}

	trustPolicyID, _ := getString(trust, "policyId")
	if planPolicyID, _ := getString(plan, "policyId"); planPolicyID != trustPolicyID {
		c.add("BINDING_INVALID", "plan.policyId", "plan.policyId must equal trust.policyId")
	}

	planHash, _ := getString(plan, "planHash")
	if compilerPlanHash, _ := getString(compiler, "planHash"); compilerPlanHash != planHash {
		c.add("BINDING_INVALID", "compiler.planHash", "compiler.planHash must equal plan.planHash")
	}

	return c.result()
}

// ValidateReleaseBodyBinding enforces releaseId == sha256(canonical(manifestBody)).
func ValidateReleaseBodyBinding(releaseID string, manifestBody map[string]any) Issues {
	var c collector
	want, err := canon.SHA256Canonical(manifestBody)
	if err != nil {
		c.add("RELEASE_MANIFEST_INVALID", "manifestBody", "manifestBody failed canonicalization: "+err.Error())
		return c.result()
	}
	if releaseID != want {
		c.add("RELEASE_SIGNATURE_BAD", "releaseId", "releaseId does not equal sha256(canonical(manifestBody))")
	}
	return c.result()
}

// ValidateEvidenceRecordBinding enforces: evidenceId must equal the
// deterministic digest of the record sans evidenceId; mismatch ->
// EVIDENCE_DIGEST_MISMATCH.
func ValidateEvidenceRecordBinding(record map[string]any) Issues {
	var c collector
	evidenceID, _ := getString(record, "evidenceId")

	sansID := make(map[string]any, len(record))
	for k, v := range record {
		if k == "evidenceId" {
			continue
		}
		sansID[k] = v
	}

	want, err := canon.SHA256Canonical(sansID)
	if err != nil {
		c.add("EVIDENCE_DIGEST_MISMATCH", "evidenceId", "record failed canonicalization: "+err.Error())
		return c.result()
	}
	if evidenceID != want {
		c.add("EVIDENCE_DIGEST_MISMATCH", "evidenceId", "evidenceId does not equal the digest of the record sans evidenceId")
	}
	return c.result()
}

// equalCanonical reports whether two values canonicalize to the same
// bytes, used where a binding check needs deep structural equality rather
// than a single string-field comparison.
func equalCanonical(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	ca, err1 := canon.Canonical(a)
	cb, err2 := canon.Canonical(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(ca) == string(cb)
}
