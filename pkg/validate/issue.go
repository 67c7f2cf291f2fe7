// Package validate fails closed on any externally sourced structure. Every
// validator here returns a deterministically ordered issue list and never
// throws except on an internal programmer error (a panic, not an error
// return — the validators in this package are expected to be total
// functions over their input type).
package validate

import "sort"

// Issue is one fail-closed validation finding. It is never an error value;
// validators accumulate Issues and return them alongside (or instead of) a
// validated value.
type Issue struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`

	// index records the position the issue was produced in, purely as a
	// final tie-break so that two issues with identical (code, path,
	// message) retain the order they were appended in, rather than being
	// considered interchangeable by sort.
	index int
}

// Issues is a list of validation issues. SortIssues must be called before
// the list leaves this package (every public validator does this itself).
type Issues []Issue

// SortIssues orders issues by (code, path, message) then by original
// append index, and returns the result. It never mutates its argument.
func SortIssues(in []Issue) Issues {
	out := make(Issues, len(in))
	for i, it := range in {
		it.index = i
		out[i] = it
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Message != b.Message {
			return a.Message < b.Message
		}
		return a.index < b.index
	})
	return out
}

// OK reports whether no issues were found.
func (is Issues) OK() bool { return len(is) == 0 }

// Codes returns the sorted-unique set of issue codes, the shape most
// callers bind into a mint/decision reasonCodes accumulator.
func (is Issues) Codes() []string {
	seen := make(map[string]bool, len(is))
	var out []string
	for _, i := range is {
		if !seen[i.Code] {
			seen[i.Code] = true
			out = append(out, i.Code)
		}
	}
	sort.Strings(out)
	return out
}

// collector is an append-only issue accumulator used internally by
// validators; its zero value is ready to use.
type collector struct {
	issues []Issue
}

func (c *collector) add(code, path, message string) {
	c.issues = append(c.issues, Issue{Code: code, Path: path, Message: message})
}

func (c *collector) result() Issues {
	return SortIssues(c.issues)
}
