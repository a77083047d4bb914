package detect

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fixedSample(e float64) SampleFunc {
	return func() (Sample, error) {
		return Sample{Entropy: e, Valid: true, Length: 1024}, nil
	}
}

func newTestClassifier(t *testing.T, mutate func(*Config)) *Classifier {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewClassifier(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestDecide(t *testing.T) {
	c := newTestClassifier(t, nil)

	tests := []struct {
		name    string
		file    string
		entropy float64
		want    Reasons
	}{
		{"suspicious extension, low entropy", "secret.locked", 3.2, ReasonExtension},
		{"normal extension, high entropy", "payload.bin", 7.97, ReasonEntropy},
		{"both", "db.encrypted", 7.99, ReasonExtension | ReasonEntropy},
		{"neither", "report.docx", 4.1, 0},
		{"exactly at threshold", "edge.dat", DefaultEntropyThreshold, ReasonEntropy},
		{"just under threshold", "edge.dat", math.Nextafter(DefaultEntropyThreshold, 0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Decide(tt.file, 1024, fixedSample(tt.entropy))
			if v.Reasons != tt.want {
				t.Errorf("expected reasons %q but got %q", tt.want, v.Reasons)
			}
			if v.Outcome != OutcomeOK {
				t.Errorf("expected ok outcome but got %s", v.Outcome)
			}
			f := v.Finding()
			if (f != nil) != (tt.want != 0) {
				t.Fatalf("expected finding presence %v but got %v", tt.want != 0, f != nil)
			}
			if f != nil && (f.Entropy == nil || *f.Entropy != tt.entropy) {
				t.Errorf("expected entropy %v on the finding", tt.entropy)
			}
		})
	}
}

func TestDecideDegradesOnReadError(t *testing.T) {
	c := newTestClassifier(t, nil)
	boom := errors.New("permission denied")
	failing := func() (Sample, error) { return Sample{}, boom }

	v := c.Decide("secret.locked", 10, failing)
	if v.Outcome != OutcomeDegraded || !errors.Is(v.Err, boom) {
		t.Fatalf("expected degraded outcome carrying %v, got %s / %v", boom, v.Outcome, v.Err)
	}
	if v.Reasons != ReasonExtension {
		t.Errorf("expected the extension check to still apply, got %q", v.Reasons)
	}
	f := v.Finding()
	if f == nil {
		t.Fatalf("expected a finding")
	}
	if f.Entropy != nil {
		t.Errorf("expected no entropy on a degraded finding")
	}
	if len(f.Notes) != 1 || !strings.Contains(f.Notes[0], "permission denied") {
		t.Errorf("expected a note naming the read failure, got %v", f.Notes)
	}

	if v = c.Decide("notes.txt", 10, failing); v.Finding() != nil {
		t.Errorf("expected no finding for an unreadable file with a normal name")
	}
}

func TestDecideEmptySample(t *testing.T) {
	c := newTestClassifier(t, func(cfg *Config) { cfg.EntropyThreshold = 0 })
	empty := func() (Sample, error) { return Sample{}, nil }

	v := c.Decide("empty.txt", 0, empty)
	if v.Suspicious() {
		t.Errorf("expected an empty file to never meet the entropy criterion, got %q", v.Reasons)
	}
	if !v.Empty || v.Entropy != nil {
		t.Errorf("expected an empty verdict without entropy, got %+v", v)
	}

	f := c.Decide("empty.locked", 0, empty).Finding()
	if f == nil || len(f.Notes) != 1 || !strings.Contains(f.Notes[0], "empty") {
		t.Errorf("expected an extension finding noting the empty file, got %+v", f)
	}
}

func TestDecideLazy(t *testing.T) {
	calls := 0
	counting := func() (Sample, error) {
		calls++
		return Sample{Entropy: 1, Valid: true}, nil
	}

	eager := newTestClassifier(t, nil)
	eager.Decide("secret.locked", 1, counting)
	if calls != 1 {
		t.Errorf("expected entropy to be measured for reporting, got %d calls", calls)
	}

	lazy := newTestClassifier(t, func(cfg *Config) { cfg.Lazy = true })
	calls = 0
	v := lazy.Decide("secret.locked", 1, counting)
	if calls != 0 || v.Reasons != ReasonExtension {
		t.Errorf("expected no sampling once the extension flags, got %d calls and %q", calls, v.Reasons)
	}
	lazy.Decide("payload.bin", 1, counting)
	if calls != 1 {
		t.Errorf("expected sampling when the extension is unremarkable, got %d calls", calls)
	}
}

func TestNewClassifierValidation(t *testing.T) {
	for _, th := range []float64{-0.1, 8.01, math.NaN()} {
		cfg := DefaultConfig()
		cfg.EntropyThreshold = th
		if _, err := NewClassifier(cfg); err == nil {
			t.Errorf("expected threshold %v to be rejected", th)
		}
	}

	cfg := DefaultConfig()
	cfg.ExtensionPatterns = []string{"("}
	var bad *ErrBadPattern
	if _, err := NewClassifier(cfg); !errors.As(err, &bad) {
		t.Errorf("expected ErrBadPattern but got %v", err)
	}

	cfg = Config{EntropyThreshold: 7}
	c, err := NewClassifier(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Matcher().Matches("x.locked") {
		t.Errorf("expected nil patterns to select the defaults")
	}
}

func TestClassifyFiles(t *testing.T) {
	dir := t.TempDir()
	c := newTestClassifier(t, nil)

	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return p
	}

	text := []byte(strings.Repeat("quarterly figures attached, see sheet two\n", 100))
	noise := randomBytes(DefaultSampleSize)

	docx := write("report.docx", text)
	locked := write("secret.locked", text)
	bin := write("payload.bin", noise)

	if v := c.Classify(docx); v.Suspicious() || v.Entropy == nil || v.Size != int64(len(text)) {
		t.Errorf("expected report.docx to be clean with a measured entropy, got %+v", v)
	}

	v := c.Classify(locked)
	if v.Reasons != ReasonExtension || v.Path != locked || v.Name != "secret.locked" {
		t.Errorf("expected secret.locked flagged by extension, got %+v", v)
	}
	if v.Sampled != len(text) {
		t.Errorf("expected %d bytes sampled but got %d", len(text), v.Sampled)
	}

	if v = c.Classify(bin); v.Reasons != ReasonEntropy {
		t.Errorf("expected payload.bin flagged by entropy, got %+v", v)
	}

	gone := filepath.Join(dir, "gone.locked")
	v = c.Classify(gone)
	if v.Outcome != OutcomeFailed || !errors.Is(v.Err, os.ErrNotExist) {
		t.Errorf("expected a failed outcome for a vanished file, got %s / %v", v.Outcome, v.Err)
	}
	if v.Reasons != ReasonExtension || v.Finding() == nil {
		t.Errorf("expected a vanished .locked file to still be flagged by name")
	}
}

func TestReasons(t *testing.T) {
	r := ReasonEntropy | ReasonExtension
	if r.String() != "extension,entropy" {
		t.Errorf("expected extension,entropy but got %s", r.String())
	}
	if !r.Has(ReasonEntropy) || Reasons(0).Has(ReasonEntropy) || !Reasons(0).Empty() {
		t.Errorf("unexpected set semantics")
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `["extension","entropy"]` {
		t.Errorf("expected a JSON tag list but got %s", data)
	}

	var back Reasons
	if err = json.Unmarshal([]byte(`["entropy","entropy"]`), &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back != ReasonEntropy {
		t.Errorf("expected duplicate tags to collapse, got %q", back)
	}
	if err = json.Unmarshal([]byte(`["vibes"]`), &back); err == nil {
		t.Errorf("expected an unknown tag to be rejected")
	}
}
