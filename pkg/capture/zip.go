package capture

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/diblac17-eng/weftend/pkg/canon"
)

const (
	eocdSignature    = 0x06054b50
	eocdMinSize      = 22
	eocdScanWindow   = 64*1024 + eocdMinSize
	cdHeaderSignature = 0x02014b50
	cdHeaderFixedSize = 46
)

// captureZip locates the end-of-central-directory record by scanning the
// tail of the file, then walks the central directory without extracting
// any entry content: v0 identifies ZIP entries by directory metadata only.
func captureZip(tree *Tree, path string, limits Limits) {
	f, err := os.Open(path)
	if err != nil {
		tree.addIssue("CAPTURE_STAT_FAILED")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		tree.addIssue("CAPTURE_STAT_FAILED")
		return
	}
	size := info.Size()
	if size < eocdMinSize {
		tree.addIssue("ZIP_EOCD_MISSING")
		return
	}

	window := eocdScanWindow
	if int64(window) > size {
		window = int(size)
	}
	tail := make([]byte, window)
	if _, err := f.ReadAt(tail, size-int64(window)); err != nil {
		tree.addIssue("ZIP_EOCD_MISSING")
		return
	}

	eocdOff := findEOCD(tail)
	if eocdOff < 0 {
		tree.addIssue("ZIP_EOCD_MISSING")
		return
	}
	eocd := tail[eocdOff:]
	if len(eocd) < eocdMinSize {
		tree.addIssue("ZIP_EOCD_MISSING")
		return
	}

	cdSize := binary.LittleEndian.Uint32(eocd[12:16])
	cdOffset := binary.LittleEndian.Uint32(eocd[16:20])

	if int64(cdOffset)+int64(cdSize) > size {
		tree.addIssue("ZIP_CD_CORRUPT")
		return
	}

	cdBuf := make([]byte, cdSize)
	if cdSize > 0 {
		if _, err := f.ReadAt(cdBuf, int64(cdOffset)); err != nil {
			tree.addIssue("ZIP_CD_CORRUPT")
			return
		}
	}

	ctx := &dirWalkCtx{tree: tree, limits: limits}
	kept := 0
	pos := 0
	for pos < len(cdBuf) {
		if ctx.halted {
			break
		}
		if pos+cdHeaderFixedSize > len(cdBuf) {
			tree.addIssue("ZIP_CD_CORRUPT")
			break
		}
		hdr := cdBuf[pos:]
		sig := binary.LittleEndian.Uint32(hdr[0:4])
		if sig != cdHeaderSignature {
			tree.addIssue("ZIP_CD_CORRUPT")
			break
		}
		compSize := binary.LittleEndian.Uint32(hdr[20:24])
		uncompSize := binary.LittleEndian.Uint32(hdr[24:28])
		nameLen := int(binary.LittleEndian.Uint16(hdr[28:30]))
		extraLen := int(binary.LittleEndian.Uint16(hdr[30:32]))
		commentLen := int(binary.LittleEndian.Uint16(hdr[32:34]))

		entryEnd := cdHeaderFixedSize + nameLen + extraLen + commentLen
		if pos+entryEnd > len(cdBuf) {
			tree.addIssue("ZIP_CD_CORRUPT")
			break
		}
		nameBytes := hdr[cdHeaderFixedSize : cdHeaderFixedSize+nameLen]
		name := strings.ReplaceAll(string(nameBytes), "\\", "/")
		pos += entryEnd

		if strings.HasSuffix(name, "/") {
			continue // folder entry
		}
		if !isPathSafe(name) {
			tree.addIssue("ZIP_PATH_INVALID")
			continue
		}
		if limits.MaxPathBytes > 0 && len(name) > limits.MaxPathBytes {
			tree.addIssue("CAPTURE_PATH_TOO_LONG")
			continue
		}

		if ctx.files+1 > limits.MaxFiles {
			tree.addIssue("CAPTURE_LIMIT_FILES")
			tree.Truncated = true
			ctx.halted = true
			break
		}
		if limits.MaxTotalBytes > 0 && ctx.bytes+int64(uncompSize) > limits.MaxTotalBytes {
			tree.addIssue("CAPTURE_LIMIT_BYTES")
			tree.Truncated = true
			ctx.halted = true
			break
		}

		digest := canon.FNV1a32(fmt.Sprintf("%s\x00%d\x00%d", name, compSize, uncompSize))
		ctx.files++
		ctx.bytes += int64(uncompSize)
		kept++
		tree.Entries = append(tree.Entries, Entry{Path: name, Size: int64(uncompSize), Digest: digest})
	}

	if kept == 0 && !tree.Truncated {
		tree.addIssue("ZIP_CD_EMPTY")
	}
}

// findEOCD scans tail backward for the EOCD signature (the record may be
// followed by a variable-length comment, so the signature is not
// necessarily at a fixed offset from the end).
func findEOCD(tail []byte) int {
	for i := len(tail) - eocdMinSize; i >= 0; i-- {
		if binary.LittleEndian.Uint32(tail[i:i+4]) == eocdSignature {
			return i
		}
	}
	return -1
}
