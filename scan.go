package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/l0nax/go-spew/spew"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/sandflysecurity/sandfly-ransomscan/pkg/detect"
	"github.com/sandflysecurity/sandfly-ransomscan/pkg/quarantine"
)

// Scanner drives one scan: walk, classify, checksum, quarantine.
type Scanner struct {
	cfg        *config
	classifier *detect.Classifier
	mover      *quarantine.Mover
	hasher     *MultiHasher
	skip       skipSet
	log        *zap.Logger
}

func newScanner(cfg *config, log *zap.Logger) (*Scanner, error) {
	if log == nil {
		log = zap.NewNop()
	}

	classifier, err := detect.NewClassifier(cfg.detect)
	if err != nil {
		return nil, &ConfigError{Field: "detect", Err: err}
	}

	s := &Scanner{
		cfg:        cfg,
		classifier: classifier,
		skip:       newSkipSet(cfg.skipExtensions),
		log:        log,
	}

	if len(cfg.hashers) > 0 {
		s.hasher = NewMultiHasher(cfg.hashers...)
	}

	if !cfg.noQuarantine {
		root, err := filepath.Abs(cfg.quarantineRoot)
		if err != nil {
			return nil, &ConfigError{Field: "quarantine", Err: err}
		}
		s.mover = quarantine.NewMover(root).WithLogger(log.Named("quarantine"))
	}

	return s, nil
}

func (s *Scanner) checkRoot() (string, error) {
	root, err := filepath.Abs(s.cfg.dirPath)
	if err != nil {
		return "", &ConfigError{Field: "dir", Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", &ConfigError{Field: "dir", Err: err}
	}
	if !info.IsDir() {
		return "", &ConfigError{Field: "dir", Err: fmt.Errorf("'%s' is not a directory", root)}
	}
	return root, nil
}

// Run performs the scan. Only conditions that stop the scan from starting are returned as
// errors; everything that goes wrong with an individual file is recorded in the [Summary].
// Cancellation is honored between files and yields a partial summary.
func (s *Scanner) Run(ctx context.Context) (*Summary, error) {
	root, err := s.checkRoot()
	if err != nil {
		return nil, err
	}

	sum := newSummary(uuid.NewString(), root, s.cfg.outCfg.delimChar)
	log := s.log.With(zap.String("run", sum.RunID))
	log.Info("scan started", zap.String("root", root), zap.Float64("threshold", s.classifier.Threshold()))

	var exclude string
	if s.mover != nil {
		exclude = s.mover.Root()
	}

	walked, err := collect(ctx, root, exclude, s.skip, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("walk ended early", zap.Error(err))
		sum.WalkErrors++
	}
	sum.Skipped = walked.skipped
	sum.WalkErrors += walked.errors

	if s.cfg.goFast {
		for _, v := range s.classifyConcurrent(ctx, walked.paths) {
			s.record(sum, v, log)
		}
	} else {
		for _, path := range walked.paths {
			if ctx.Err() != nil {
				break
			}
			s.record(sum, s.classifier.Classify(path), log)
		}
	}

	if s.mover != nil {
		s.quarantineAll(ctx, sum, log)
	}

	sum.Canceled = ctx.Err() != nil
	sum.Elapsed = time.Since(sum.StartedAt)

	log.Info("scan finished",
		zap.Int("inspected", sum.Inspected),
		zap.Int("flagged", sum.Flagged),
		zap.Int("quarantined", sum.Quarantined),
		zap.Duration("elapsed", sum.Elapsed),
	)

	return sum, nil
}

// classifyConcurrent samples files on a worker pool. Verdicts come back indexed by discovery
// order; files not reached before cancellation are omitted.
func (s *Scanner) classifyConcurrent(ctx context.Context, paths []string) []detect.Verdict {
	verdicts := make([]detect.Verdict, len(paths))

	workers, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		s.log.Warn("worker pool unavailable, classifying sequentially", zap.Error(err))
		n := 0
		for ; n < len(paths) && ctx.Err() == nil; n++ {
			verdicts[n] = s.classifier.Classify(paths[n])
		}
		return verdicts[:n]
	}
	defer workers.Release()

	wg := new(sync.WaitGroup)
	n := 0
	for ; n < len(paths); n++ {
		if ctx.Err() != nil {
			break
		}
		i, path := n, paths[n]
		wg.Add(1)
		if err = workers.Submit(func() {
			defer wg.Done()
			verdicts[i] = s.classifier.Classify(path)
		}); err != nil {
			wg.Done()
			verdicts[i] = s.classifier.Classify(path)
		}
	}

	wg.Wait()

	return verdicts[:n]
}

// record folds one verdict into the summary.
func (s *Scanner) record(sum *Summary, v detect.Verdict, log *zap.Logger) {
	sum.Inspected++
	sum.SampledBytes += int64(v.Sampled)

	if ce := log.Check(zap.DebugLevel, "verdict"); ce != nil {
		ce.Write(zap.String("path", v.Path), zap.String("dump", spew.Sdump(v)))
	}

	switch v.Outcome {
	case detect.OutcomeDegraded:
		sum.Degraded++
		log.Warn("file unreadable, judged by name only", zap.String("path", v.Path), zap.Error(v.Err))
	case detect.OutcomeFailed:
		sum.Failed++
		log.Warn("file could not be inspected", zap.String("path", v.Path), zap.Error(v.Err))
	default:
	}

	finding := v.Finding()
	if finding == nil {
		return
	}

	file := newFile(finding)

	if s.hasher != nil && v.Outcome == detect.OutcomeOK {
		sums, err := s.hasher.HashFile(v.Path)
		if err != nil {
			log.Warn("error calculating checksums", zap.String("path", v.Path), zap.Error(err))
			file.Notes = append(file.Notes, "checksums unavailable: "+err.Error())
		} else {
			file.Checksums = sums
		}
	}

	sum.add(file)
}

// quarantineAll moves flagged files one at a time in discovery order. A failed move leaves the
// file in place and is recorded against it.
func (s *Scanner) quarantineAll(ctx context.Context, sum *Summary, log *zap.Logger) {
	if len(sum.Files) == 0 {
		return
	}

	if err := s.mover.Prepare(); err != nil {
		log.Error("quarantine root unavailable", zap.Error(err))
	}

	for _, file := range sum.Files {
		if ctx.Err() != nil {
			return
		}
		rec, err := s.mover.Move(file.Path)
		if err != nil {
			sum.MoveFailures++
			file.QuarantineError = err.Error()
			log.Warn("flagged but not quarantined", zap.String("path", file.Path), zap.Error(err))
			continue
		}
		sum.Quarantined++
		sum.Records = append(sum.Records, rec)
		file.QuarantinedTo = rec.Destination
	}
}
