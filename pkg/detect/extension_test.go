package detect

import (
	"errors"
	"testing"
)

func TestExtensionMatcherDefaults(t *testing.T) {
	m := MustExtensionMatcher(DefaultExtensionPatterns)

	tests := []struct {
		name string
		want bool
	}{
		{"secret.locked", true},
		{"SECRET.LOCKED", true},
		{"budget.xlsx.Encrypted", true},
		{"photo.crypto", true},
		{"db.enc", true},
		{"db.encrypted_8f3a", true},
		{"nas.deadbolt", true},
		{".locked", true},
		{"db.encx", false},
		{"db.encrypted_", false},
		{"report.docx", false},
		{"archive.locked.txt", false},
		{"locked", false},
		{"trailing.", false},
		{"", false},
		{"\xff\xfe.locked", true},
	}

	for _, tt := range tests {
		if got := m.Matches(tt.name); got != tt.want {
			t.Errorf("Matches(%q): expected %v but got %v", tt.name, tt.want, got)
		}
	}
}

func TestExtensionMatcherIsDataDriven(t *testing.T) {
	m, err := NewExtensionMatcher([]string{".wncry", " lockbit ", "", `ryuk\d*`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := m.Patterns(); len(got) != 3 {
		t.Errorf("expected 3 normalized patterns but got %v", got)
	}

	for _, name := range []string{"a.WNCRY", "b.lockbit", "c.ryuk", "d.ryuk42"} {
		if !m.Matches(name) {
			t.Errorf("expected %q to match", name)
		}
	}
	if m.Matches("e.locked") {
		t.Errorf("expected default patterns to be absent from a custom set")
	}
}

func TestExtensionMatcherEmptySet(t *testing.T) {
	m, err := NewExtensionMatcher(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Matches("secret.locked") {
		t.Errorf("expected an empty pattern set to match nothing")
	}

	var nilMatcher *ExtensionMatcher
	if nilMatcher.Matches("secret.locked") {
		t.Errorf("expected a nil matcher to match nothing")
	}
}

func TestExtensionMatcherBadPattern(t *testing.T) {
	_, err := NewExtensionMatcher([]string{"locked", "enc(rypted"})
	var bad *ErrBadPattern
	if !errors.As(err, &bad) {
		t.Fatalf("expected ErrBadPattern but got %v", err)
	}
	if bad.Index != 1 {
		t.Errorf("expected bad pattern index 1 but got %d", bad.Index)
	}
}

func TestExtension(t *testing.T) {
	if ext, ok := Extension("a.b.c"); !ok || ext != "c" {
		t.Errorf("expected (c, true) but got (%s, %v)", ext, ok)
	}
	if _, ok := Extension("Makefile"); ok {
		t.Errorf("expected no extension for Makefile")
	}
}
