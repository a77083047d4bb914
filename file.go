package main

import (
	"github.com/sandflysecurity/sandfly-ransomscan/pkg/detect"
)

// Files is a slice of [File] pointers.
type Files []*File

// File is a flagged file as reported: the finding, its checksums, and what became of it.
type File struct {
	Path            string         `json:"path"`
	Name            string         `json:"name"`
	Size            int64          `json:"size"`
	Entropy         *float64       `json:"entropy"`
	Reasons         detect.Reasons `json:"reasons"`
	Notes           []string       `json:"notes,omitempty"`
	QuarantinedTo   string         `json:"quarantined_to,omitempty"`
	QuarantineError string         `json:"quarantine_error,omitempty"`
	Checksums       *Checksums     `json:"checksums,omitempty"`
}

func newFile(f *detect.Finding) *File {
	return &File{
		Path:    f.Path,
		Name:    f.Name,
		Size:    f.Size,
		Entropy: f.Entropy,
		Reasons: f.Reasons,
		Notes:   append([]string(nil), f.Notes...),
	}
}

// Quarantined reports whether the file was moved.
func (f *File) Quarantined() bool {
	return f.QuarantinedTo != ""
}
