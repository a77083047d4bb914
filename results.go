package main

import (
	"bytes"
	"time"

	"github.com/sandflysecurity/sandfly-ransomscan/pkg/quarantine"
)

// Results holds the flagged files of a scan in discovery order, with the [csvSchema] used to
// marshal them.
type Results struct {
	Files
	csvSchema csvSchema
}

// NewResults creates a new [Results] struct with an empty slice of [File] and the default [csvSchema].
func NewResults() *Results {
	return &Results{Files: make(Files, 0), csvSchema: defCSVHeader}
}

// WithDelimiter sets the delimiter for the [Results] struct for purposes of CSV marshalling.
func (r *Results) WithDelimiter(delim string) *Results {
	r.csvSchema.delim = delim
	return r
}

// Add adds a [File] to the [Results] struct.
func (r *Results) Add(f *File) {
	r.Files = append(r.Files, f)
}

// MarshalCSV marshals the [Results] struct to CSV format using the [r.csvSchema].
func (r *Results) MarshalCSV() ([]byte, error) {
	buf := new(bytes.Buffer)
	write := func(data []byte) { _, _ = buf.Write(data) }
	write(r.csvSchema.header())
	write([]byte("\n"))
	for _, file := range r.Files {
		entry, err := r.csvSchema.parse(file)
		if err != nil {
			return nil, err
		}
		write(entry)
	}
	return buf.Bytes(), nil
}

// Summary is built while a scan runs and is read-only once [Scanner.Run] returns.
type Summary struct {
	RunID     string        `json:"run_id"`
	Root      string        `json:"root"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`

	Inspected    int   `json:"inspected"`
	Flagged      int   `json:"flagged"`
	Degraded     int   `json:"degraded"`
	Failed       int   `json:"failed"`
	Skipped      int   `json:"skipped"`
	WalkErrors   int   `json:"walk_errors"`
	SampledBytes int64 `json:"sampled_bytes"`

	Quarantined  int                 `json:"quarantined"`
	MoveFailures int                 `json:"move_failures"`
	Records      []quarantine.Record `json:"quarantine_records"`

	Canceled bool `json:"canceled,omitempty"`

	Files Files `json:"files"`

	results *Results
}

func newSummary(runID, root string, delim string) *Summary {
	r := NewResults()
	if delim != "" && delim != constDelimeterDefault {
		r = r.WithDelimiter(delim)
	}
	return &Summary{
		RunID:     runID,
		Root:      root,
		StartedAt: time.Now(),
		Records:   make([]quarantine.Record, 0),
		results:   r,
	}
}

func (s *Summary) add(f *File) {
	s.results.Add(f)
	s.Files = s.results.Files
	s.Flagged++
}

// Results returns the flagged files.
func (s *Summary) Results() *Results {
	return s.results
}

// NotQuarantined returns flagged files whose move failed.
func (s *Summary) NotQuarantined() Files {
	var out Files
	for _, f := range s.Files {
		if f.QuarantineError != "" {
			out = append(out, f)
		}
	}
	return out
}
