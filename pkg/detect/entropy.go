// Package detect classifies files as likely ransomware casualties.
package detect

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
)

const (
	// DefaultSampleSize is the number of leading bytes read for entropy estimation.
	DefaultSampleSize = 64 * 1024
	// MaxEntropy is the entropy of a uniform distribution over 256 byte values.
	MaxEntropy = 8.0
)

// Shannon returns the Shannon entropy in bits per byte of data. ok is false when data is empty,
// in which case entropy is undefined.
func Shannon(data []byte) (entropy float64, ok bool) {
	if len(data) == 0 {
		return 0, false
	}

	var byteCounts [256]int
	for _, b := range data {
		byteCounts[b]++
	}

	size := float64(len(data))
	for i := 0; i < 256; i++ {
		if byteCounts[i] == 0 {
			continue
		}
		px := float64(byteCounts[i]) / size
		entropy -= px * math.Log2(px)
	}

	// float error can push a uniform sample a hair past the bound
	switch {
	case entropy < 0:
		entropy = 0
	case entropy > MaxEntropy:
		entropy = MaxEntropy
	}

	return entropy, true
}

// Estimator computes entropy over at most SampleSize bytes from the start of a source.
type Estimator struct {
	sampleSize int
	pool       *sync.Pool
}

// NewEstimator returns an [Estimator] reading at most sampleSize bytes per file.
// A non-positive sampleSize selects [DefaultSampleSize].
func NewEstimator(sampleSize int) *Estimator {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Estimator{
		sampleSize: sampleSize,
		pool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, sampleSize)
			},
		},
	}
}

// SampleSize returns the configured sample bound in bytes.
func (e *Estimator) SampleSize() int {
	return e.sampleSize
}

// Sample is the outcome of one entropy estimation.
type Sample struct {
	// Entropy is only meaningful when Valid is true.
	Entropy float64
	// Valid is false for empty samples.
	Valid bool
	// Length is the number of bytes actually examined.
	Length int
}

// Measure reads the sample prefix from r and computes its entropy.
// A short read is not an error; the sample is simply smaller.
func (e *Estimator) Measure(r io.Reader) (Sample, error) {
	buf := e.pool.Get().([]byte)
	defer e.pool.Put(buf) //nolint:staticcheck

	n, err := io.ReadFull(r, buf[:e.sampleSize])
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
	case err != nil:
		return Sample{Length: n}, fmt.Errorf("read failure during sampling: %w", err)
	}

	entropy, ok := Shannon(buf[:n])
	return Sample{Entropy: entropy, Valid: ok, Length: n}, nil
}

// MeasureFile opens path read-only and measures its sample prefix. The file is never written.
func (e *Estimator) MeasureFile(path string) (Sample, error) {
	f, err := openRegular(path)
	if err != nil {
		return Sample{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	return e.Measure(f)
}

func openRegular(path string) (*os.File, error) {
	if path == "" {
		return nil, ErrNoPath
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't open '%s': %w", path, err)
	}

	fStat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("couldn't stat '%s': %w", path, err)
	}

	if !fStat.Mode().IsRegular() {
		_ = f.Close()
		return nil, NewErrNotRegularFile(path)
	}

	return f, nil
}
