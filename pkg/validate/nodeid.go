package validate

import "strings"

// nodeIDPrefixes is the closed set of admissible NodeId prefixes.
var nodeIDPrefixes = []string{"page:/", "block:", "svc:", "data:", "priv:", "sess:", "asset:"}

// IsValidNodeID reports whether s is a non-empty, whitespace-free string
// beginning with one of the closed NodeId prefixes.
func IsValidNodeID(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, " \t\n\r") {
		return false
	}
	return hasPrefix(s, nodeIDPrefixes...)
}

// validateNodeID appends NODEID_INVALID to c if s is not a well-formed
// NodeId.
func (c *collector) validateNodeID(path, s string) {
	if !IsValidNodeID(s) {
		c.add("NODEID_INVALID", path, "nodeId must be non-empty, whitespace-free, and begin with one of: "+strings.Join(nodeIDPrefixes, ", "))
	}
}

// ValidateRootReachability returns a ROOT_UNREACHABLE issue unless
// rootPageID appears among nodes.
func ValidateRootReachability(rootPageID string, nodes []string) Issues {
	var c collector
	found := false
	for _, n := range nodes {
		if n == rootPageID {
			found = true
			break
		}
	}
	if !found {
		c.add("ROOT_UNREACHABLE", "rootPageId", "rootPageId does not appear in nodes[]")
	}
	return c.result()
}
