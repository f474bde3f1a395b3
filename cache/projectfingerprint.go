package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// UnknownProjectFingerprint is the sentinel returned when the scan fails;
// per spec.md §4.4 it is treated as a cache miss rather than propagated.
const UnknownProjectFingerprint = "unknown"

// DefaultMaxScanFiles bounds the project scan to avoid unbounded directory walks.
const DefaultMaxScanFiles = 50

var defaultSkipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
}

var defaultExtensions = map[string]bool{
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".tsx":  true,
	".jsx":  true,
	".java": true,
	".rb":   true,
	".rs":   true,
	".md":   true,
	".yaml": true,
	".yml":  true,
	".json": true,
}

// ProjectFingerprinter computes a deterministic digest of a bounded scan of
// a project directory: up to maxFiles files matching the extension
// whitelist, each recorded as (modTimeMs, sizeBytes), concatenated in
// sorted path order and hashed with SHA-256.
type ProjectFingerprinter struct {
	MaxFiles   int
	SkipDirs   map[string]bool
	Extensions map[string]bool
}

func NewProjectFingerprinter(maxFiles int) *ProjectFingerprinter {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxScanFiles
	}
	return &ProjectFingerprinter{
		MaxFiles:   maxFiles,
		SkipDirs:   defaultSkipDirs,
		Extensions: defaultExtensions,
	}
}

// Fingerprint scans root and returns its digest, or UnknownProjectFingerprint
// if root is empty or the scan fails.
func (p *ProjectFingerprinter) Fingerprint(root string) string {
	if strings.TrimSpace(root) == "" {
		return UnknownProjectFingerprint
	}

	type fileStat struct {
		path    string
		modTime int64
		size    int64
	}
	var files []fileStat

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && p.SkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(files) >= p.MaxFiles {
			return filepath.SkipAll
		}
		if !p.Extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, fileStat{path: path, modTime: info.ModTime().UnixMilli(), size: info.Size()})
		return nil
	})
	if err != nil {
		return UnknownProjectFingerprint
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

	h := sha256.New()
	for _, f := range files {
		fmt.Fprintf(h, "%s:%d:%d|", f.path, f.modTime, f.size)
	}
	return hex.EncodeToString(h.Sum(nil))
}
