// Package quarantine relocates flagged files into an isolation directory without ever
// overwriting something already there.
package quarantine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDirName is the directory name used for the quarantine root when none is configured.
	DefaultDirName = "ransomware-quarantine"

	// maxAttempts bounds the rename loop when suffixed names keep colliding.
	maxAttempts = 100

	suffixLayout = "20060102T150405"
)

// ErrMoveFailed is matched by every error returned from [Mover.Move].
var ErrMoveFailed = errors.New("quarantine move failed")

// MoveError records why a single file could not be quarantined. The file stays where it was.
type MoveError struct {
	Source string
	Err    error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("%s: '%s': %v", ErrMoveFailed, e.Source, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

func (e *MoveError) Is(target error) bool {
	return target == ErrMoveFailed
}

// Record describes one completed quarantine move.
type Record struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	// Renamed is set when a timestamp suffix was needed to avoid a collision.
	Renamed bool `json:"renamed"`
	// CrossDevice is set when the file was copied to another volume and the source removed.
	CrossDevice bool `json:"cross_device"`
	// Digest is the hex BLAKE2b-256 of the verified copy; only set for cross-device moves.
	Digest string `json:"digest,omitempty"`
}

// Mover moves files into a quarantine root. It holds the root path and nothing else of note;
// moves are performed one call at a time.
type Mover struct {
	root string
	now  func() time.Time
	log  *zap.Logger
}

// NewMover returns a [Mover] targeting root.
func NewMover(root string) *Mover {
	return &Mover{
		root: filepath.Clean(root),
		now:  time.Now,
		log:  zap.NewNop(),
	}
}

// WithClock overrides the time source used for collision suffixes.
func (m *Mover) WithClock(now func() time.Time) *Mover {
	m.now = now
	return m
}

// WithLogger sets the logger for move diagnostics.
func (m *Mover) WithLogger(l *zap.Logger) *Mover {
	if l != nil {
		m.log = l
	}
	return m
}

// Root returns the quarantine directory.
func (m *Mover) Root() string {
	return m.root
}

// Prepare creates the quarantine root and any missing parents. It is a no-op when the
// root already exists.
func (m *Mover) Prepare() error {
	if err := os.MkdirAll(m.root, 0o700); err != nil {
		return fmt.Errorf("couldn't create quarantine root '%s': %w", m.root, err)
	}
	return nil
}

// Move relocates src into the quarantine root, keeping its base name unless that name is
// taken. On error the source is left in place and the returned error matches [ErrMoveFailed].
func (m *Mover) Move(src string) (Record, error) {
	rec := Record{Source: src}

	if err := m.Prepare(); err != nil {
		return rec, &MoveError{Source: src, Err: err}
	}

	base := filepath.Base(src)
	dst := filepath.Join(m.root, base)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			dst = filepath.Join(m.root, m.suffixed(base, attempt))
			rec.Renamed = true
		}

		err := renameNoReplace(src, dst)
		if err != nil && isCrossDevice(err) {
			m.log.Debug("cross-device move, copying", zap.String("source", src), zap.String("destination", dst))
			rec.CrossDevice = true
			rec.Digest, err = copyAcross(src, dst)
		}

		switch {
		case err == nil:
			rec.Destination = dst
			m.log.Debug("quarantined",
				zap.String("source", src),
				zap.String("destination", dst),
				zap.Bool("renamed", rec.Renamed),
			)
			return rec, nil
		case errors.Is(err, fs.ErrExist):
			m.log.Debug("quarantine name taken", zap.String("destination", dst))
			continue
		default:
			return Record{Source: src}, &MoveError{Source: src, Err: err}
		}
	}

	return Record{Source: src}, &MoveError{
		Source: src,
		Err:    fmt.Errorf("no free name for '%s' after %d attempts", base, maxAttempts),
	}
}

// suffixed inserts a timestamp with nanosecond precision between stem and extension.
// Attempts past the first also carry a counter.
func (m *Mover) suffixed(base string, attempt int) string {
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	ts := m.now()
	suffix := fmt.Sprintf("%s_%09d", ts.Format(suffixLayout), ts.Nanosecond())
	if attempt > 1 {
		suffix = fmt.Sprintf("%s_%d", suffix, attempt-1)
	}
	return stem + "_" + suffix + ext
}

// renameChecked refuses to replace an existing destination and otherwise defers to os.Rename.
// A racing writer can still slip in between the check and the rename.
func renameChecked(src, dst string) error {
	_, err := os.Lstat(dst)
	switch {
	case err == nil:
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	return os.Rename(src, dst)
}
