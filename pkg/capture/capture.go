// Package capture turns an input path — a single file, a directory tree, or
// a ZIP archive — into a bounded, deterministic capture tree. It is the
// first stage of the examiner pipeline and the only stage (besides C5's
// finalize) that touches the filesystem.
//
// Capture never returns a Go error for an ordinary input problem: a missing
// path, an oversized tree, a corrupt ZIP central directory all surface as a
// reason code on the returned Tree instead, so the pipeline stays a pure
// function from (input, limits) to (tree, issues) even when the input is
// hostile.
package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/diblac17-eng/weftend/pkg/canon"
)

const chunkSize = 64 * 1024

// Kind is the closed set of capture dispatch targets.
type Kind string

const (
	KindFile Kind = "file"
	KindDir  Kind = "dir"
	KindZip  Kind = "zip"
)

// Limits bounds every walk. A zero MaxFiles means "exceeded immediately":
// no file is admitted. A zero MaxTotalBytes, MaxFileBytes or MaxPathBytes
// leaves that bound unchecked.
type Limits struct {
	MaxFiles      int
	MaxTotalBytes int64
	MaxFileBytes  int64
	MaxPathBytes  int
}

// Entry is one file (or ZIP directory-entry) in a capture tree.
type Entry struct {
	Path   string
	Size   int64
	Digest string
}

// Totals summarizes a capture tree's size.
type Totals struct {
	FileCount int
	TotalBytes int64
}

// Tree is the output of Capture.
type Tree struct {
	Kind          Kind
	BasePath      string
	Entries       []Entry
	RootDigest    string
	CaptureDigest string
	Totals        Totals
	Issues        []string
	Truncated     bool
	PathsSample   []string
}

const pathsSampleCap = 64

// Capture dispatches on the input path's kind and produces a bounded
// capture tree. It always returns a non-nil Tree and no error; problems
// with the input are reported as reason codes in Tree.Issues.
func Capture(inputPath string, limits Limits) *Tree {
	tree := &Tree{BasePath: inputPath}

	info, err := os.Stat(inputPath)
	if err != nil {
		if os.IsNotExist(err) {
			tree.addIssue("CAPTURE_INPUT_MISSING")
		} else {
			tree.addIssue("CAPTURE_INPUT_INVALID")
		}
		tree.finalize()
		return tree
	}

	switch {
	case info.Mode().IsRegular():
		if looksLikeZip(inputPath) {
			tree.Kind = KindZip
			captureZip(tree, inputPath, limits)
		} else {
			tree.Kind = KindFile
			captureFile(tree, inputPath, limits)
		}
	case info.IsDir():
		tree.Kind = KindDir
		captureDir(tree, inputPath, limits)
	default:
		tree.addIssue("CAPTURE_INPUT_INVALID")
	}

	tree.finalize()
	return tree
}

func looksLikeZip(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var magic [4]byte
	n, _ := io.ReadFull(f, magic[:])
	return n == 4 && magic[0] == 'P' && magic[1] == 'K' && magic[2] == 0x03 && magic[3] == 0x04
}

func captureFile(tree *Tree, path string, limits Limits) {
	digest, size, truncated, err := streamDigest(path, limits.MaxFileBytes)
	if err != nil {
		tree.addIssue("CAPTURE_STAT_FAILED")
		return
	}
	if truncated {
		tree.Truncated = true
	}
	name := filepath.ToSlash(filepath.Base(path))
	tree.Entries = append(tree.Entries, Entry{Path: name, Size: size, Digest: digest})
}

// streamDigest hashes path in chunkSize chunks, stopping (and reporting
// truncation) after maxBytes bytes if maxBytes > 0.
func streamDigest(path string, maxBytes int64) (digest string, size int64, truncated bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, false, err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if maxBytes > 0 && total >= maxBytes {
			// Drain nothing further; report truncation if more remains.
			var probe [1]byte
			n, _ := f.Read(probe[:])
			if n > 0 {
				truncated = true
			}
			break
		}
		readBuf := buf
		if maxBytes > 0 && maxBytes-total < int64(len(buf)) {
			readBuf = buf[:maxBytes-total]
		}
		n, rerr := f.Read(readBuf)
		if n > 0 {
			h.Write(buf[:n])
			total += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", 0, false, rerr
		}
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), total, truncated, nil
}

func captureDir(tree *Tree, root string, limits Limits) {
	ctx := &dirWalkCtx{tree: tree, root: root, limits: limits}
	ctx.walk(root, "")
}

type dirWalkCtx struct {
	tree    *Tree
	root    string
	limits  Limits
	halted  bool
	files   int
	bytes   int64
}

func (c *dirWalkCtx) walk(dir string, relPrefix string) {
	if c.halted {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.tree.addIssue("CAPTURE_STAT_FAILED")
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, de := range entries {
		if c.halted {
			return
		}
		name := de.Name()
		rel := name
		if relPrefix != "" {
			rel = relPrefix + "/" + name
		}
		rel = filepath.ToSlash(rel)

		if !isPathSafe(rel) {
			c.tree.addIssue("CAPTURE_PATH_INVALID")
			continue
		}
		if c.limits.MaxPathBytes > 0 && len(rel) > c.limits.MaxPathBytes {
			c.tree.addIssue("CAPTURE_PATH_TOO_LONG")
			continue
		}

		info, err := de.Info()
		if err != nil {
			c.tree.addIssue("CAPTURE_STAT_FAILED")
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			c.tree.addIssue("CAPTURE_SYMLINK_SKIPPED")
			continue
		}
		if de.IsDir() {
			c.walk(filepath.Join(dir, name), rel)
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}

		size := info.Size()
		if c.files+1 > c.limits.MaxFiles {
			c.tree.addIssue("CAPTURE_LIMIT_FILES")
			c.tree.Truncated = true
			c.halted = true
			return
		}
		if c.limits.MaxTotalBytes > 0 && c.bytes+size > c.limits.MaxTotalBytes {
			c.tree.addIssue("CAPTURE_LIMIT_BYTES")
			c.tree.Truncated = true
			c.halted = true
			return
		}

		digest, _, truncated, err := streamDigest(filepath.Join(dir, name), c.limits.MaxFileBytes)
		if err != nil {
			c.tree.addIssue("CAPTURE_STAT_FAILED")
			continue
		}
		if truncated {
			c.tree.Truncated = true
		}
		c.files++
		c.bytes += size
		c.tree.Entries = append(c.tree.Entries, Entry{Path: rel, Size: size, Digest: digest})
	}
}

func isPathSafe(rel string) bool {
	if rel == "" {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." || seg == "" {
			return false
		}
	}
	return true
}

func (t *Tree) addIssue(code string) {
	t.Issues = append(t.Issues, code)
}

// finalize sorts entries by path, computes rootDigest/captureDigest, totals,
// and a bounded paths sample. It is idempotent and safe to call on an
// already-halted tree (e.g. one with zero entries).
func (t *Tree) finalize() {
	sort.Slice(t.Entries, func(i, j int) bool { return t.Entries[i].Path < t.Entries[j].Path })

	t.Totals.FileCount = len(t.Entries)
	var total int64
	rootRows := make([]map[string]any, 0, len(t.Entries))
	capRows := make([]map[string]any, 0, len(t.Entries))
	samples := make([]string, 0, pathsSampleCap)
	for _, e := range t.Entries {
		total += e.Size
		rootRows = append(rootRows, map[string]any{"path": e.Path, "digest": e.Digest})
		capRows = append(capRows, map[string]any{"path": e.Path, "size": e.Size})
		if len(samples) < pathsSampleCap {
			samples = append(samples, e.Path)
		}
	}
	t.Totals.TotalBytes = total
	t.PathsSample = samples

	if rootDigest, err := canon.SHA256Canonical(rootRows); err == nil {
		t.RootDigest = rootDigest
	}
	if captureDigest, err := canon.SHA256Canonical(capRows); err == nil {
		t.CaptureDigest = captureDigest
	}

	if t.Truncated {
		hasScar := false
		for _, c := range t.Issues {
			if c == "CAPTURE_TRUNCATED" {
				hasScar = true
				break
			}
		}
		if !hasScar {
			t.Issues = append(t.Issues, "CAPTURE_TRUNCATED")
		}
	}
}
