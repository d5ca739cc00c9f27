package certs

import (
	"os"
	"path/filepath"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WatchDir returns the directory to watch for a given certificate path:
// the directory of the path with every symlink level resolved by
// filepath.EvalSymlinks, so rotation via symlink swap (the common
// certbot/cert-manager pattern) is still detected. If resolution fails,
// the directory of path itself is returned. Callers keep reading the
// certificate through the original path.
func WatchDir(path string) string {
	resolved := path
	if target, err := filepath.EvalSymlinks(path); err == nil {
		resolved = target
	}
	return filepath.Dir(resolved)
}
