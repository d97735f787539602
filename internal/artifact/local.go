package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalStore keeps artifacts in a directory on disk.
type LocalStore struct {
	dir string
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &LocalStore{dir: abs}, nil
}

func (s *LocalStore) Location() string { return s.dir }

// Path returns the on-disk path for name.
func (s *LocalStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Put writes to a temporary file in the same directory and renames it into
// place, so a partially written artifact is never visible.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	clean, err := SanitizeName(name)
	if err != nil || clean != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(data) == 0 {
		return "", errors.New("refusing to store an empty artifact")
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+name+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("chmod artifact: %w", err)
	}

	path := s.Path(name)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename artifact: %w", err)
	}

	log.Debug().Str("path", path).Int("bytes", len(data)).Str("mime_type", mimeType).Msg("Artifact written")
	return path, nil
}

func (s *LocalStore) Get(ctx context.Context, name string) (*Object, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return &Object{Name: clean, MIMEType: MIMETypeFor(clean), Data: data}, nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	clean, err := SanitizeName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(s.Path(clean)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// Sweep removes artifacts and abandoned temp files last modified more than
// olderThan ago. Other files in the directory are left alone.
func (s *LocalStore) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read output dir: %w", err)
	}
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	var errs []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasPrefix(name, BaseName+"_") || strings.HasPrefix(name, ".tmp-"+BaseName)) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// RunSweeper sweeps once immediately and then every interval until ctx is
// done.
func (s *LocalStore) RunSweeper(ctx context.Context, olderThan, interval time.Duration) {
	sweep := func() {
		n, err := s.Sweep(olderThan)
		if err != nil {
			log.Warn().Err(err).Str("dir", s.dir).Msg("Artifact sweep incomplete")
		}
		if n > 0 {
			log.Info().Int("removed", n).Str("dir", s.dir).Msg("Expired artifacts removed")
		}
	}
	sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
