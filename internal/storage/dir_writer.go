package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteFile writes data to root/rel, creating parent directories. rel must be
// a relative, slash-separated path that stays inside root.
func WriteFile(root, rel string, data []byte) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes output directory", rel)
	}
	target := filepath.Join(root, clean)
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(target, data, 0600); err != nil {
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	return target, nil
}
