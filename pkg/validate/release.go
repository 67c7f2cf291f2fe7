package validate

var releaseManifestSchemaJSON = `{
  "type": "object",
  "required": ["schema", "releaseId", "manifestBody", "signatures"],
  "properties": {
    "manifestBody": {
      "type": "object",
      "required": ["planDigest", "policyDigest", "blocks", "pathDigest"]
    },
    "signatures": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["sigKind", "keyId", "sigB64"]
      }
    }
  }
}`

// ValidateReleaseManifest validates structure, then the body binding
// (releaseId == sha256(canonical(manifestBody))), then that blocks[] is
// sorted and unique.
func ValidateReleaseManifest(manifest map[string]any) Issues {
	var c collector
	c.againstSchema("release_manifest_v0", releaseManifestSchemaJSON, manifest, "")
	if !c.result().OK() {
		return c.result()
	}

	releaseID, _ := getString(manifest, "releaseId")
	body, _ := getObject(manifest, "manifestBody")

	bodyIssues := ValidateReleaseBodyBinding(releaseID, body)
	c.issues = append(c.issues, bodyIssues...)

	if blocks, ok := getArray(body, "blocks"); ok {
		strs := stringSlice(blocks)
		for i := 1; i < len(strs); i++ {
			if strs[i-1] >= strs[i] {
				c.add("RELEASE_MANIFEST_INVALID", "manifestBody.blocks", "blocks must be sorted and unique")
				break
			}
		}
	}

	return c.result()
}
