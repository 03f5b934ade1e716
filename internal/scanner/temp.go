package scanner

import (
	"path/filepath"
	"strings"
)

// tempPatterns match editor, backup and lock leftovers.
var tempPatterns = []string{
	"*.tmp", "*.temp", "*.swp", "*.bak", "*.orig", "*.old",
	"~*", "*~", "*.lock", "*.pid",
}

func matchesTempPattern(name string) bool {
	for _, pattern := range tempPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// inTempDir reports whether path lies in a directory named like a temp
// directory somewhere below root.
func inTempDir(path, root string, dirNames []string) bool {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		for _, name := range dirNames {
			if seg == name {
				return true
			}
		}
	}
	return false
}
