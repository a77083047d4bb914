package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const (
	constReportWidth    = 80
	constMaxReportWidth = 160
	constNoEntropy      = "N/A"
	constReportDate     = "2/1/2006 15:04:05"
)

// ceilSeconds rounds d up to whole seconds.
func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// reportWidth sizes the report rules to the terminal when w is one.
func reportWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return constReportWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	switch {
	case err != nil, width <= 0:
		return constReportWidth
	case width > constMaxReportWidth:
		return constMaxReportWidth
	default:
		return width
	}
}

func formatEntropy(e *float64) string {
	if e == nil {
		return constNoEntropy
	}
	return fmt.Sprintf("%.2f", *e)
}

// printReport renders the human readable scan report.
func printReport(w io.Writer, sum *Summary, now time.Time, width int) {
	rule := strings.Repeat("-", width)
	var b strings.Builder
	line := func(format string, args ...any) {
		_, _ = fmt.Fprintf(&b, format+"\n", args...)
	}

	line("%s", rule)
	line("Scan date: %s", now.Format(constReportDate))
	line("Scan root: %s", sum.Root)
	line("Run ID:    %s", sum.RunID)
	line("")

	if len(sum.Files) == 0 {
		line("No suspicious files were found under the scanned directory.")
	} else {
		line("%-15s %-10s %-20s %s", "Size (bytes)", "Entropy", "Reasons", "Path")
		line("%s", rule)
		for _, f := range sum.Files {
			line("%-15d %-10s %-20s %s", f.Size, formatEntropy(f.Entropy), f.Reasons.String(), f.Path)
			for _, note := range f.Notes {
				line("%15s note: %s", "", note)
			}
		}
		line("")
	}

	line("Files inspected: %s (%s sampled, %d skipped, %d degraded, %d failed)",
		humanize.Comma(int64(sum.Inspected)),
		humanize.Bytes(uint64(sum.SampledBytes)),
		sum.Skipped, sum.Degraded, sum.Failed,
	)
	line("Suspicious files found: %d", sum.Flagged)
	line("Scan duration: %ds", ceilSeconds(sum.Elapsed))
	if sum.Canceled {
		line("Scan interrupted: results are partial.")
	}
	line("%s", rule)

	if sum.Quarantined > 0 {
		line("")
		line("Files moved to quarantine:")
		for _, rec := range sum.Records {
			line(" - %s", rec.Destination)
		}
	}

	if failed := sum.NotQuarantined(); len(failed) > 0 {
		line("")
		line("Flagged but not quarantined:")
		for _, f := range failed {
			line(" - %s (%s)", f.Path, f.QuarantineError)
		}
	}

	_, _ = io.WriteString(w, b.String())
}

// marshalOutput renders the machine readable form chosen on the command line, if any.
func (cfg *config) marshalOutput(sum *Summary) ([]byte, error) {
	switch {
	case cfg.outCfg.csvOutput:
		return sum.Results().MarshalCSV()
	case cfg.outCfg.jsonOutput:
		return json.Marshal(sum)
	default:
		return nil, nil
	}
}

// output writes the report and any csv/json result. When csv or json goes to stdout the
// console report is suppressed unless -print was given.
func (cfg *config) output(stdout io.Writer, sum *Summary) error {
	machine := cfg.outCfg.csvOutput || cfg.outCfg.jsonOutput

	if !machine || cfg.outCfg.outputFile != "" || cfg.outCfg.printInterimResults {
		printReport(stdout, sum, time.Now(), reportWidth(stdout))
	}

	res, err := cfg.marshalOutput(sum)
	if err != nil {
		return err
	}
	if len(res) == 0 {
		return nil
	}

	switch {
	case cfg.outCfg.outputFile != "":
		if err = os.WriteFile(cfg.outCfg.outputFile, res, 0644); err != nil {
			return fmt.Errorf("couldn't write results to '%s': %w", cfg.outCfg.outputFile, err)
		}
	default:
		_, _ = stdout.Write(res)
	}
	return nil
}
