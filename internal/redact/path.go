package redact

import (
	"path/filepath"
	"strings"
)

// ShouldRedactPath checks if a file path matches any of the redaction path patterns.
func ShouldRedactPath(path string, patterns []string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		// Patterns like "**/secrets.md" or "private/*" also match on the
		// base name or any leading directory.
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			matched, err = filepath.Match(cleanPattern, filepath.Base(path))
			if err == nil && matched {
				return true
			}
		}
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			if path == dir || strings.HasPrefix(path, dir+"/") {
				return true
			}
		}
	}
	return false
}
