// Package detect classifies a capture tree's entries into a file-kind
// histogram, locates an HTML entry point, and scans text-candidate files
// for external network references. It never touches the filesystem itself
// — it reads file contents only through the Reader it is given, so the
// examiner pipeline stays in control of every byte read.
package detect

import (
	"bufio"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/diblac17-eng/weftend/pkg/capture"
)

var externalRefPattern = regexp.MustCompile(`\bhttps?://[^\s"'<>]+|\bwss?://[^\s"'<>]+`)

// Limits bounds the detect stage.
type Limits struct {
	MaxFileBytes    int64
	MaxExternalRefs int
}

// FileReader opens a captured entry's content for scanning. Only file and
// directory captures support this; ZIP captures pass a nil reader and
// detect skips text scanning entirely.
type FileReader func(path string) (io.ReadCloser, error)

// Result is the output of Detect.
type Result struct {
	Histogram       map[string]int
	HTMLEntry       string
	ExternalRefs    []string
	ScriptsDetected bool
	WasmDetected    bool
	Issues          []string
}

var kindByExt = map[string]string{
	".html": "html", ".htm": "html",
	".js": "script", ".mjs": "script", ".cjs": "script",
	".wasm": "wasm",
	".css":  "style",
	".json": "data", ".json5": "data",
	".png": "asset", ".jpg": "asset", ".jpeg": "asset", ".gif": "asset", ".svg": "asset",
	".txt": "text", ".md": "text",
}

var textKinds = map[string]bool{"html": true, "script": true, "style": true, "data": true, "text": true}

// Detect walks tree.Entries (already sorted by path) and classifies them.
func Detect(tree *capture.Tree, read FileReader, limits Limits) *Result {
	res := &Result{Histogram: map[string]int{}}

	var htmlCandidates []string
	for _, e := range tree.Entries {
		kind := classify(e.Path)
		res.Histogram[kind]++
		if kind == "html" {
			htmlCandidates = append(htmlCandidates, e.Path)
		}
		if kind == "script" {
			res.ScriptsDetected = true
		}
		if kind == "wasm" {
			res.WasmDetected = true
		}
	}

	res.HTMLEntry = pickHTMLEntry(htmlCandidates)

	if tree.Kind == capture.KindZip {
		res.Issues = append(res.Issues, "ZIP_SCAN_PARTIAL")
		return res
	}
	if read == nil {
		return res
	}

	refSeen := map[string]bool{}
	truncated := false
	for _, e := range tree.Entries {
		if truncated {
			break
		}
		if !textKinds[classify(e.Path)] {
			continue
		}
		refs := scanExternalRefs(read, e.Path, limits.MaxFileBytes)
		for _, r := range refs {
			if refSeen[r] {
				continue
			}
			if limits.MaxExternalRefs > 0 && len(refSeen) >= limits.MaxExternalRefs {
				truncated = true
				break
			}
			refSeen[r] = true
		}
	}
	if truncated {
		res.Issues = append(res.Issues, "EXTERNAL_REFS_TRUNCATED")
	}

	refs := make([]string, 0, len(refSeen))
	for r := range refSeen {
		refs = append(refs, r)
	}
	sort.Strings(refs)
	res.ExternalRefs = refs

	return res
}

func classify(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if kind, ok := kindByExt[ext]; ok {
		return kind
	}
	return "other"
}

// pickHTMLEntry prefers a file literally named index.html; among ties (or
// absent), the path-lexicographically first HTML candidate wins.
func pickHTMLEntry(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	var indexCandidates []string
	for _, c := range sorted {
		if path.Base(c) == "index.html" {
			indexCandidates = append(indexCandidates, c)
		}
	}
	if len(indexCandidates) > 0 {
		return indexCandidates[0]
	}
	return sorted[0]
}

func scanExternalRefs(read FileReader, p string, maxBytes int64) []string {
	rc, err := read(p)
	if err != nil {
		return nil
	}
	defer rc.Close()

	var limited io.Reader = rc
	if maxBytes > 0 {
		limited = io.LimitReader(rc, maxBytes)
	}

	var refs []string
	scanner := bufio.NewScanner(limited)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, m := range externalRefPattern.FindAllString(scanner.Text(), -1) {
			refs = append(refs, m)
		}
	}
	return refs
}
