// Package receipt assembles the operator-facing output of a run (C5): the
// file manifest written under the output root, the operator receipt that
// seals it, and the staged-finalize writer that makes each output file
// appear atomically or not at all.
package receipt

import (
	"sort"

	"github.com/diblac17-eng/weftend/pkg/canon"
)

// FileEntry is one row of the operator receipt's file manifest: a single
// output file, its logical kind, and its content digest.
type FileEntry struct {
	Kind    string `json:"kind"`
	RelPath string `json:"relPath"`
	Digest  string `json:"digest"`
}

// OperatorReceipt is the sealed manifest written to operator_receipt.json.
type OperatorReceipt struct {
	Schema        string      `json:"schema"`
	Files         []FileEntry `json:"files"`
	Warnings      []string    `json:"warnings"`
	OutRootDigest string      `json:"outRootDigest"`
	ReceiptDigest string      `json:"receiptDigest"`
}

// sortEntries orders file entries by (kind, relPath, digest), the
// receipt's canonical manifest order.
func sortEntries(entries []FileEntry) []FileEntry {
	out := append([]FileEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.RelPath != b.RelPath {
			return a.RelPath < b.RelPath
		}
		return a.Digest < b.Digest
	})
	return out
}

// BuildOperatorReceipt sorts entries and warnings into their canonical
// order, seals outRootDigest over the sorted file manifest, and then
// seals receiptDigest over the whole receipt with receiptDigest itself
// held at canon.ZeroSentinel — the same self-referential sealing idiom
// used by mintDigest, decisionDigest, and every tartarus recordId.
func BuildOperatorReceipt(entries []FileEntry, warnings []string) (*OperatorReceipt, error) {
	sorted := sortEntries(entries)

	outRootDigest, err := canon.SHA256Canonical(sorted)
	if err != nil {
		return nil, err
	}

	rec := &OperatorReceipt{
		Schema:        "weftend.operatorReceipt/1",
		Files:         sorted,
		Warnings:      canon.SortStrings(warnings),
		OutRootDigest: outRootDigest,
		ReceiptDigest: canon.ZeroSentinel,
	}

	receiptDigest, err := canon.SealedDigest(rec)
	if err != nil {
		return nil, err
	}
	rec.ReceiptDigest = receiptDigest
	return rec, nil
}

// Validate re-derives outRootDigest and receiptDigest from rec's own
// contents and reports whether they still match — the self-validation
// step §4.5 requires before a receipt is written to disk.
func Validate(rec *OperatorReceipt) (bool, error) {
	sorted := sortEntries(rec.Files)
	outRootDigest, err := canon.SHA256Canonical(sorted)
	if err != nil {
		return false, err
	}
	if outRootDigest != rec.OutRootDigest {
		return false, nil
	}

	sans := *rec
	sans.ReceiptDigest = canon.ZeroSentinel
	want, err := canon.SealedDigest(&sans)
	if err != nil {
		return false, err
	}
	return want == rec.ReceiptDigest, nil
}
