package receipt

import (
	"reflect"
	"sort"
)

// CompareSide is the subset of a run's outputs compare.go needs from each
// output root: the mint package's own validity plus the seven buckets it
// diffs against the other side.
type CompareSide struct {
	MintValid bool

	Content      string         // C: capture/root digest
	ExternalRefs []string       // X: detected external references
	Reasons      []string       // R: mint-level reason codes
	PolicyID     string         // P: policy identity
	HostTruth    map[string]any // H: shop-stamp / attestation observations
	Bounds       map[string]any // B: policy bounds in effect
	Digest       string         // D: mint digest
}

// BucketDiff is one bucket's equality verdict.
type BucketDiff struct {
	Bucket string `json:"bucket"`
	Equal  bool   `json:"equal"`
}

// CompareReport is the bounded ASCII-safe compare receipt, itself subject
// to the privacy lint like any other output.
type CompareReport struct {
	Schema  string       `json:"schema"`
	Verdict string       `json:"verdict"`
	Buckets []BucketDiff `json:"buckets"`
}

// Compare evaluates a against b across the seven buckets C/X/R/P/H/B/D.
// Any bucket mismatch yields CHANGED; an invalid mint package on either
// side forces BLOCKED regardless of bucket outcome.
func Compare(a, b CompareSide) CompareReport {
	buckets := []BucketDiff{
		{"C", a.Content == b.Content},
		{"X", stringSetEqual(a.ExternalRefs, b.ExternalRefs)},
		{"R", stringSetEqual(a.Reasons, b.Reasons)},
		{"P", a.PolicyID == b.PolicyID},
		{"H", reflect.DeepEqual(a.HostTruth, b.HostTruth)},
		{"B", reflect.DeepEqual(a.Bounds, b.Bounds)},
		{"D", a.Digest == b.Digest},
	}

	verdict := "SAME"
	for _, bd := range buckets {
		if !bd.Equal {
			verdict = "CHANGED"
			break
		}
	}
	if !a.MintValid || !b.MintValid {
		verdict = "BLOCKED"
	}

	return CompareReport{Schema: "weftend.compare/0", Verdict: verdict, Buckets: buckets}
}

func stringSetEqual(a, b []string) bool {
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
