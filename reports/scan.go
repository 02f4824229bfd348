package reports

import (
	"io/fs"
	"log/slog"
	"path/filepath"
)

// Scan walks the directory tree under dir and returns a descriptor for
// every file whose name matches the report grammar. Non-matching files are
// skipped silently — the report directory routinely contains unrelated
// files. Unreadable subtrees are logged and skipped; scanning performs no
// writes.
func Scan(dir string, logger *slog.Logger) []Descriptor {
	logger = logger.With("component", "scan")

	var descriptors []Descriptor
	seen := 0
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable path", "path", path, "reason", err.Error())
			// SkipDir from a file entry would also drop its readable
			// siblings, so only directory entries cut the subtree short.
			if entry == nil || entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		seen++
		d, ok := ParseFilename(entry.Name())
		if !ok {
			return nil
		}
		d.Path = path
		descriptors = append(descriptors, d)
		return nil
	})
	if err != nil {
		logger.Warn("report scan aborted", "dir", dir, "reason", err.Error())
	}
	logger.Info("report scan finished", "dir", dir, "files", seen, "reports", len(descriptors))
	return descriptors
}
