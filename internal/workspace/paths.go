package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResolvePath normalizes a path from a diff or command line against the
// workspace root and rejects anything that escapes it.
// Relative paths are joined to the root; absolute paths must already be inside.
func ResolvePath(root, inputPath string) (string, error) {
	if inputPath == "" {
		return "", fmt.Errorf("empty path")
	}

	// Convert to absolute path
	var absPath string
	if filepath.IsAbs(inputPath) {
		absPath = inputPath
	} else {
		absPath = filepath.Join(root, inputPath)
	}

	// Clean the path to resolve .. and .
	absPath = filepath.Clean(absPath)
	rootAbs := filepath.Clean(root)

	// If the path relative to root starts with "..", it's outside the workspace
	relPath, err := filepath.Rel(rootAbs, absPath)
	if err != nil {
		return "", err
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside workspace %q", inputPath, root)
	}

	return absPath, nil
}

// RelPath returns path relative to root for display, falling back to the
// original path when it cannot be made relative.
func RelPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}
