package writer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultLockTimeout bounds the wait for another run holding the output lock
	DefaultLockTimeout = 30 * time.Second

	lockRetryDelay = 100 * time.Millisecond
	outputFileMode = 0o644
)

// ErrLockTimeout is returned when the output lock cannot be acquired in time
var ErrLockTimeout = errors.New("timed out waiting for output lock")

//go:generate mockgen -destination=mocks/mock_writer.go -package=mocks -source=file.go Writer

// Writer persists an envelope
type Writer interface {
	Write(ctx context.Context, env *Envelope) error
}

// FileWriter writes the envelope to a file, replacing it atomically
type FileWriter struct {
	path        string
	lockTimeout time.Duration
}

// NewFileWriter creates a FileWriter for path. A non-positive lockTimeout
// uses DefaultLockTimeout.
func NewFileWriter(path string, lockTimeout time.Duration) *FileWriter {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &FileWriter{path: path, lockTimeout: lockTimeout}
}

// Path returns the output path
func (w *FileWriter) Path() string {
	return w.path
}

// LockPath returns the lock file guarding output. It lives in the system
// temporary directory so the published directory only ever holds the artifact.
func LockPath(output string) string {
	if abs, err := filepath.Abs(output); err == nil {
		output = abs
	}
	sum := sha256.Sum256([]byte(output))
	return filepath.Join(os.TempDir(), "registry-mirror-"+hex.EncodeToString(sum[:8])+".lock")
}

// Write serializes env to a temporary file next to the output and renames it
// over the output while holding the LockPath lock.
func (w *FileWriter) Write(ctx context.Context, env *Envelope) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(LockPath(w.path))
	lockCtx, cancel := context.WithTimeout(ctx, w.lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, lock.Path())
		}
		return fmt.Errorf("failed to lock output: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrLockTimeout, lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary output file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := Encode(tmp, env); err != nil {
		return err
	}
	if err := tmp.Chmod(outputFileMode); err != nil {
		return fmt.Errorf("failed to set output file mode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temporary output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary output file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to rename output file: %w", err)
	}
	committed = true
	return nil
}

// Encode writes env as two-space indented JSON without HTML escaping
func Encode(out io.Writer, env *Envelope) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}
	return nil
}

// ReadEnvelope loads a previously written envelope
func ReadEnvelope(path string) (*Envelope, error) {
	//nolint:gosec // path comes from operator input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &env, nil
}
