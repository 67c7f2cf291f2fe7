package validate

import "github.com/diblac17-eng/weftend/pkg/canon"

var policySchemaJSON = `{
  "type": "object",
  "required": ["schema", "profile", "reasonSeverity", "severityAction", "bounds"],
  "properties": {
    "profile": {"enum": ["web", "mod", "generic"]},
    "severityAction": {
      "type": "object",
      "properties": {
        "INFO": {"const": "APPROVE"},
        "WARN": {"const": "QUEUE"},
        "DENY": {"const": "REJECT"},
        "QUARANTINE": {"const": "HOLD"}
      }
    },
    "bounds": {
      "type": "object",
      "required": ["maxReasonCodes", "maxCapsItems", "maxDisclosureChars", "maxAppealBytes"]
    }
  }
}`

// ValidatePolicy validates a decoded policy v1 document's structure. It
// does not compute policyId itself (callers canonicalize+digest only
// after validation succeeds, per the "no field access on an unvalidated
// structure" rule), but does verify reasonSeverity values are drawn from
// the closed severity set.
func ValidatePolicy(policy map[string]any) Issues {
	var c collector
	c.againstSchema("policy_v1", policySchemaJSON, policy, "")

	if reasonSeverity, ok := getObject(policy, "reasonSeverity"); ok {
		for code, sev := range reasonSeverity {
			s, ok := sev.(string)
			if !ok || !isKnownSeverity(s) {
				c.add("POLICY_SEVERITY_INVALID", "reasonSeverity."+code, "severity must be one of INFO, WARN, DENY, QUARANTINE")
			}
		}
	}

	return c.result()
}

func isKnownSeverity(s string) bool {
	switch s {
	case "INFO", "WARN", "DENY", "QUARANTINE":
		return true
	default:
		return false
	}
}

// ComputePolicyID canonicalizes and digests a policy document that has
// already passed ValidatePolicy.
func ComputePolicyID(policy map[string]any) (string, error) {
	return canon.SHA256Canonical(policy)
}
