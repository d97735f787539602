package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const scratchPattern = "req-*"

// newScratch creates a unique scratch directory for one request. The caller
// must remove it.
func newScratch(root string) (string, error) {
	dir, err := os.MkdirTemp(root, scratchPattern)
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	return dir, nil
}

// SweepScratch removes every request scratch directory under root. It runs
// at startup and shutdown, when no request is in flight, to clean up after a
// process that was killed mid-request.
func SweepScratch(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read scratch root: %w", err)
	}
	prefix := strings.TrimSuffix(scratchPattern, "*")
	removed := 0
	var errs []error
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
