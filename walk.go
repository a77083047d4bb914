package main

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/sandflysecurity/sandfly-ransomscan/pkg/detect"
)

// walkResult is the candidate list for one scan, sorted so that discovery order is reproducible.
type walkResult struct {
	paths   []string
	skipped int
	errors  int
}

// skipSet holds lower-cased extension tokens that are never classified.
type skipSet map[string]struct{}

func newSkipSet(exts []string) skipSet {
	set := make(skipSet, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

func (s skipSet) skips(name string) bool {
	ext, ok := detect.Extension(name)
	if !ok {
		return false
	}
	_, skip := s[strings.ToLower(ext)]
	return skip
}

// collect walks root and returns every regular file beneath it, leaving out the quarantine
// directory and skipped extensions. Unreadable directories are logged and counted.
func collect(ctx context.Context, root, exclude string, skip skipSet, log *zap.Logger) (*walkResult, error) {
	var (
		mu  sync.Mutex
		res = &walkResult{paths: make([]string, 0, 256)}
	)

	conf := fastwalk.Config{Follow: false, NumWorkers: runtime.NumCPU()}

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}

		if err != nil {
			log.Warn("error walking directory", zap.String("path", path), zap.Error(err))
			mu.Lock()
			res.errors++
			mu.Unlock()
			return nil
		}

		if d.IsDir() {
			if exclude != "" && path != root && filepath.Clean(path) == exclude {
				log.Debug("not descending into quarantine root", zap.String("path", path))
				return fastwalk.SkipDir
			}
			return nil
		}

		// Only check regular files. Checking devices, links, etc. won't work.
		if !d.Type().IsRegular() {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if skip.skips(d.Name()) {
			res.skipped++
			return nil
		}
		res.paths = append(res.paths, path)
		return nil
	}

	err := fastwalk.Walk(&conf, root, walkFn)
	sort.Strings(res.paths)

	return res, err
}
