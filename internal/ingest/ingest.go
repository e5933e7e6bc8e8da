// Package ingest discovers statement files on disk.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/statement-extractor/constants"
)

// FileResult is one discovered file. Err is set when it could not be read.
type FileResult struct {
	Path      string
	Ext       string
	HashHex   string
	SizeBytes int64
	Err       string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Failed  uint32
}

// extSet builds a lookup from includeExts, defaulting to the batch input types.
func extSet(includeExts []string) map[string]struct{} {
	if len(includeExts) == 0 {
		return constants.InputExtensions
	}
	exts := map[string]struct{}{}
	for _, e := range includeExts {
		if e = constants.NormalizeExt(e); e != "" {
			exts[e] = struct{}{}
		}
	}
	return exts
}

func allowed(path string, exts map[string]struct{}) bool {
	_, ok := exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
