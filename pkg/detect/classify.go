package detect

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// DefaultEntropyThreshold is the entropy, in bits per byte, at or above which content is
// considered indistinguishable from ciphertext.
const DefaultEntropyThreshold = 7.5

// Reasons is the set of criteria that flagged a file.
type Reasons uint8

const (
	ReasonExtension Reasons = 1 << iota
	ReasonEntropy
)

var reasonNames = []struct {
	r    Reasons
	name string
}{
	{ReasonExtension, "extension"},
	{ReasonEntropy, "entropy"},
}

// Has reports whether every reason in o is present in r.
func (r Reasons) Has(o Reasons) bool {
	return o != 0 && r&o == o
}

// Empty reports whether no reason is set.
func (r Reasons) Empty() bool {
	return r == 0
}

// Strings returns the reason tags in a stable order.
func (r Reasons) Strings() []string {
	out := make([]string, 0, len(reasonNames))
	for _, rn := range reasonNames {
		if r.Has(rn.r) {
			out = append(out, rn.name)
		}
	}
	return out
}

func (r Reasons) String() string {
	return strings.Join(r.Strings(), ",")
}

func (r Reasons) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Strings())
}

func (r *Reasons) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*r = 0
tags:
	for _, t := range tags {
		for _, rn := range reasonNames {
			if rn.name == t {
				*r |= rn.r
				continue tags
			}
		}
		return fmt.Errorf("unknown reason %q", t)
	}
	return nil
}

// Outcome describes how completely a file could be analyzed.
type Outcome uint8

const (
	// OutcomeOK means every signal was evaluated.
	OutcomeOK Outcome = iota
	// OutcomeDegraded means the content sample could not be read; only the name was judged.
	OutcomeDegraded
	// OutcomeFailed means the file could not even be stat'ed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Finding is a positive verdict for one file.
type Finding struct {
	Path    string   `json:"path"`
	Name    string   `json:"name"`
	Size    int64    `json:"size"`
	Entropy *float64 `json:"entropy"`
	Reasons Reasons  `json:"reasons"`
	Notes   []string `json:"notes,omitempty"`
}

// Verdict is the classifier's result for any inspected file, flagged or not.
type Verdict struct {
	Path    string
	Name    string
	Size    int64
	Entropy *float64
	Reasons Reasons
	Outcome Outcome
	// Sampled is the number of content bytes examined.
	Sampled int
	// Err holds the I/O failure behind a degraded or failed outcome.
	Err error
	// Empty is set when the sample held no bytes.
	Empty bool
}

// Suspicious reports whether at least one criterion fired.
func (v Verdict) Suspicious() bool {
	return !v.Reasons.Empty()
}

// Finding converts a suspicious verdict into a [Finding]. It returns nil otherwise.
func (v Verdict) Finding() *Finding {
	if !v.Suspicious() {
		return nil
	}
	f := &Finding{
		Path:    v.Path,
		Name:    v.Name,
		Size:    v.Size,
		Reasons: v.Reasons,
	}
	if v.Entropy != nil {
		e := *v.Entropy
		f.Entropy = &e
	}
	switch {
	case v.Outcome == OutcomeFailed:
		f.Notes = append(f.Notes, "size and entropy unavailable: "+v.Err.Error())
	case v.Outcome == OutcomeDegraded:
		f.Notes = append(f.Notes, "entropy unavailable: "+v.Err.Error())
	case v.Empty:
		f.Notes = append(f.Notes, "entropy unavailable: empty file")
	}
	return f
}

// SampleFunc produces the content sample of a file on demand.
type SampleFunc func() (Sample, error)

// Config holds the classifier tunables.
type Config struct {
	// ExtensionPatterns is used verbatim when non-nil; nil selects DefaultExtensionPatterns.
	ExtensionPatterns []string
	EntropyThreshold  float64
	SampleSize        int
	// Lazy skips sampling when the extension alone already flags the file.
	Lazy bool
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		ExtensionPatterns: append([]string(nil), DefaultExtensionPatterns...),
		EntropyThreshold:  DefaultEntropyThreshold,
		SampleSize:        DefaultSampleSize,
	}
}

// Classifier combines the extension and entropy signals. It holds configuration only and
// is safe for concurrent use.
type Classifier struct {
	matcher   *ExtensionMatcher
	estimator *Estimator
	threshold float64
	lazy      bool
}

// NewClassifier validates cfg and builds a [Classifier].
func NewClassifier(cfg Config) (*Classifier, error) {
	switch {
	case math.IsNaN(cfg.EntropyThreshold):
		return nil, fmt.Errorf("entropy threshold is not a number")
	case cfg.EntropyThreshold > MaxEntropy:
		return nil, fmt.Errorf("max entropy value is %.1f", MaxEntropy)
	case cfg.EntropyThreshold < 0:
		return nil, fmt.Errorf("min entropy value is 0.0")
	case cfg.SampleSize < 0:
		return nil, fmt.Errorf("sample size must not be negative")
	}

	patterns := cfg.ExtensionPatterns
	if patterns == nil {
		patterns = DefaultExtensionPatterns
	}
	matcher, err := NewExtensionMatcher(patterns)
	if err != nil {
		return nil, err
	}

	return &Classifier{
		matcher:   matcher,
		estimator: NewEstimator(cfg.SampleSize),
		threshold: cfg.EntropyThreshold,
		lazy:      cfg.Lazy,
	}, nil
}

// Matcher exposes the extension matcher in use.
func (c *Classifier) Matcher() *ExtensionMatcher {
	return c.matcher
}

// Threshold returns the entropy threshold in use.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}

// Decide evaluates name and the lazily obtained sample. sample may be nil, which is treated
// as "content unavailable".
func (c *Classifier) Decide(name string, size int64, sample SampleFunc) Verdict {
	v := Verdict{Name: name, Size: size}

	if c.matcher.Matches(name) {
		v.Reasons |= ReasonExtension
		if c.lazy {
			return v
		}
	}

	if sample == nil {
		return v
	}

	s, err := sample()
	v.Sampled = s.Length
	switch {
	case err != nil:
		v.Outcome = OutcomeDegraded
		v.Err = err
	case !s.Valid:
		v.Empty = true
	default:
		e := s.Entropy
		v.Entropy = &e
		if e >= c.threshold {
			v.Reasons |= ReasonEntropy
		}
	}

	return v
}

// Classify stats and samples the file at path. I/O failures are folded into the verdict,
// never returned.
func (c *Classifier) Classify(path string) Verdict {
	name := filepath.Base(path)

	info, err := os.Stat(path)
	if err != nil {
		v := c.Decide(name, 0, nil)
		v.Path = path
		v.Outcome = OutcomeFailed
		v.Err = fmt.Errorf("couldn't stat '%s': %w", path, err)
		return v
	}

	if !info.Mode().IsRegular() {
		v := c.Decide(name, info.Size(), nil)
		v.Path = path
		v.Outcome = OutcomeDegraded
		v.Err = NewErrNotRegularFile(path)
		return v
	}

	v := c.Decide(name, info.Size(), func() (Sample, error) {
		return c.estimator.MeasureFile(path)
	})
	v.Path = path
	return v
}
