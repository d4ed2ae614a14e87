package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Stager writes submitted files to local transient storage while a creation
// pipeline run is in flight. Staged files are owned by exactly one invocation
// and must be removed before it returns, success or failure.
type Stager struct {
	dir string
}

// NewStager creates the staging directory if missing.
func NewStager(dir string) (*Stager, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("staging dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Stager{dir: dir}, nil
}

// Stage writes one submitted file under a name unique per submission: the
// field role plus a fresh UUID, preserving the original extension. Returns
// the path of the staged file.
func (s *Stager) Stage(role, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	name := role + "-" + uuid.NewString() + ext
	target := filepath.Join(s.dir, name)

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close staged file: %w", err)
	}
	return target, nil
}

// Remove deletes a staged file. Callers log failures; they never escalate.
func (s *Stager) Remove(path string) error {
	return os.Remove(path)
}
