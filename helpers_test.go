package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.tcp.direct/kayos/common/entropy"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(entropy.RNG(256))
	}
	return b
}

func lowEntropyText(n int) []byte {
	s := strings.Repeat("minutes of the weekly sync, action items below. ", n/48+1)
	return []byte(s[:n])
}

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
