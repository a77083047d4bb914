package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sandflysecurity/sandfly-ransomscan/pkg/detect"
	"github.com/sandflysecurity/sandfly-ransomscan/pkg/quarantine"
)

func TestCeilSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{0, 0},
		{time.Nanosecond, 1},
		{1200 * time.Millisecond, 2},
		{3 * time.Second, 3},
		{3010 * time.Millisecond, 4},
		{59*time.Second + 999*time.Millisecond, 60},
	}
	for _, tt := range tests {
		if got := ceilSeconds(tt.in); got != tt.want {
			t.Errorf("ceilSeconds(%v): expected %d but got %d", tt.in, tt.want, got)
		}
	}
}

func TestPrintReport(t *testing.T) {
	high := 7.98
	sum := newSummary("run-1", "/share", ",")
	sum.Inspected = 1234
	sum.SampledBytes = 2 << 20
	sum.Elapsed = 3010 * time.Millisecond
	sum.add(&File{Path: "/share/payload.bin", Size: 65536, Entropy: &high, Reasons: detect.ReasonEntropy, QuarantinedTo: "/q/payload.bin"})
	sum.add(&File{Path: "/share/secret.locked", Size: 0, Reasons: detect.ReasonExtension, Notes: []string{"entropy unavailable: empty file"}, QuarantineError: "quarantine move failed: busy"})
	sum.Quarantined = 1
	sum.MoveFailures = 1
	sum.Records = append(sum.Records, quarantine.Record{Source: "/share/payload.bin", Destination: "/q/payload.bin"})

	var buf bytes.Buffer
	printReport(&buf, sum, time.Date(2026, 10, 5, 9, 4, 3, 0, time.UTC), 40)
	out := buf.String()

	for _, want := range []string{
		strings.Repeat("-", 40),
		"Scan date: 5/10/2026 09:04:03",
		"Size (bytes)    Entropy    Reasons              Path",
		"65536           7.98       entropy              /share/payload.bin",
		"0               N/A        extension            /share/secret.locked",
		"note: entropy unavailable: empty file",
		"Files inspected: 1,234 (2.1 MB sampled",
		"Suspicious files found: 2",
		"Scan duration: 4s",
		"Files moved to quarantine:\n - /q/payload.bin",
		"Flagged but not quarantined:\n - /share/secret.locked (quarantine move failed: busy)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected report to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrintReportEmpty(t *testing.T) {
	sum := newSummary("run-2", "/share", "")
	sum.Elapsed = 3 * time.Second

	var buf bytes.Buffer
	printReport(&buf, sum, time.Now(), constReportWidth)

	if !strings.Contains(buf.String(), "No suspicious files were found") {
		t.Errorf("expected the empty-scan message, got:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Scan duration: 3s") {
		t.Errorf("expected exactly 3s, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Files moved to quarantine") {
		t.Errorf("expected no quarantine section")
	}
}
