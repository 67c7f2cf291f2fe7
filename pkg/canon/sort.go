package canon

import "sort"

// IDer is implemented by anything with a stable string identity used as
// the primary tie-break key in the sort helpers below.
type IDer interface{ ID() string }

// SortByID sorts a slice of IDer by id. Tie-breaking is always explicit;
// callers must never rely on input order.
func SortByID[T IDer](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ID() < items[j].ID()
	})
}

// IDRoler is implemented by anything with a stable (id, role) identity.
type IDRoler interface {
	ID() string
	Role() string
}

// SortByIDRole sorts by (id, role).
func SortByIDRole[T IDRoler](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ID() != items[j].ID() {
			return items[i].ID() < items[j].ID()
		}
		return items[i].Role() < items[j].Role()
	})
}

// CapParamer is implemented by anything with a (capId, params) pair, where
// params is canonicalized before comparison.
type CapParamer interface {
	CapID() string
	Params() any
}

// SortByCapParams sorts by (capId, canonical(params)). Canonicalization
// failures push the offending element to the end, deterministically, by
// giving it the canonical key "\xff" (a single 0xFF byte cannot appear in
// valid UTF-8 canonical JSON, so it always sorts last).
func SortByCapParams[T CapParamer](items []T) {
	keys := make([]string, len(items))
	for i, it := range items {
		k, err := CanonicalString(it.Params())
		if err != nil {
			keys[i] = "\xff"
			continue
		}
		keys[i] = k
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CapID() != items[j].CapID() {
			return items[i].CapID() < items[j].CapID()
		}
		return keys[i] < keys[j]
	})
}

// NodeIDer is implemented by anything with a stable NodeId.
type NodeIDer interface{ NodeID() string }

// SortByNodeID sorts by nodeId.
func SortByNodeID[T NodeIDer](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].NodeID() < items[j].NodeID()
	})
}

// NodeContenter is implemented by anything with a (nodeId, contentHash)
// identity.
type NodeContenter interface {
	NodeID() string
	ContentHash() string
}

// SortByNodeContent sorts by (nodeId, contentHash).
func SortByNodeContent[T NodeContenter](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].NodeID() != items[j].NodeID() {
			return items[i].NodeID() < items[j].NodeID()
		}
		return items[i].ContentHash() < items[j].ContentHash()
	})
}

// SortStrings sorts strings by code-unit (UTF-8 byte) order and
// deduplicates adjacent equal entries, the pattern used everywhere a
// reason-code list or path list must be "stable-sorted and deduplicated".
func SortStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := append([]string(nil), in...)
	sort.Strings(out)
	deduped := out[:1]
	for _, s := range out[1:] {
		if s != deduped[len(deduped)-1] {
			deduped = append(deduped, s)
		}
	}
	return deduped
}
