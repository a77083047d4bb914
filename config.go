package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sandflysecurity/sandfly-ransomscan/pkg/detect"
	"github.com/sandflysecurity/sandfly-ransomscan/pkg/quarantine"
)

// ErrFatalConfig is matched by every error that prevents a scan from starting.
var ErrFatalConfig = errors.New("fatal configuration error")

// ConfigError is a FatalConfig condition: bad flags, an unreadable rules file, or a missing base path.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrFatalConfig, e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrFatalConfig
}

// defaultSkipExtensions are never classified. Compressed image formats sit near the entropy
// ceiling on their own.
var defaultSkipExtensions = []string{"jpg", "jpeg", "png", "gif"}

// rulesFile is the YAML rules document accepted by -config.
type rulesFile struct {
	ExtensionPatterns      []string `yaml:"extension_patterns"`
	ExtraExtensionPatterns []string `yaml:"extra_extension_patterns"`
	SkipExtensions         []string `yaml:"skip_extensions"`
	EntropyThreshold       *float64 `yaml:"entropy_threshold"`
	SampleSizeBytes        *int     `yaml:"sample_size_bytes"`
	QuarantineRoot         string   `yaml:"quarantine_root"`
}

func loadRulesFile(path string) (*rulesFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	rules := new(rulesFile)
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(rules); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("couldn't parse rules file '%s': %w", path, err)
	}
	return rules, nil
}

type outputConfig struct {
	delimChar           string
	csvOutput           bool
	jsonOutput          bool
	printInterimResults bool
	outputFile          string
}

type config struct {
	dirPath   string
	rulesPath string

	detect         detect.Config
	skipExtensions []string
	quarantineRoot string
	noQuarantine   bool

	outCfg outputConfig

	hashers []HashType

	goFast  bool
	verbose bool
	version bool
}

func defaultQuarantineRoot() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, quarantine.DefaultDirName)
	}
	return filepath.Join(os.TempDir(), quarantine.DefaultDirName)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseFlags parses args on a private flag set and layers the result over the rules file,
// if one was named, and the built-in defaults.
func (cfg *config) parseFlags(args []string, errOut io.Writer) error {
	fs := flag.NewFlagSet("sandfly-ransomscan", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var (
		threshold     float64
		sampleSize    int
		qRoot         string
		skipList      string
		hashList      string
		extraPatterns []string
	)

	fs.StringVar(&cfg.dirPath, "dir", "", "directory to scan for encrypted files (required)")
	fs.StringVar(&cfg.rulesPath, "config", "", "YAML rules file with extension patterns and tunables")
	fs.Float64Var(&threshold, "entropy", detect.DefaultEntropyThreshold, "flag any file with sampled entropy greater than or equal to this value (0.0 - 8.0)")
	fs.IntVar(&sampleSize, "sample", detect.DefaultSampleSize, "bytes read from the start of each file for entropy estimation")
	fs.StringVar(&qRoot, "quarantine", defaultQuarantineRoot(), "directory flagged files are moved into")
	fs.Func("ext", "additional suspicious extension pattern (regular expression fragment, repeatable)", func(s string) error {
		extraPatterns = append(extraPatterns, s)
		return nil
	})
	fs.StringVar(&skipList, "skip", strings.Join(defaultSkipExtensions, ","), "comma separated extensions that are never classified")
	fs.StringVar(&hashList, "hashes", "sha256", "comma separated checksums to record for flagged files (md5,sha1,sha256,sha512 or none)")

	fs.BoolVar(&cfg.noQuarantine, "no-quarantine", false, "report only, leave flagged files in place")
	fs.BoolVar(&cfg.detect.Lazy, "lazy", false, "skip entropy when the extension alone flags a file")

	fs.StringVar(&cfg.outCfg.delimChar, "delim", constDelimeterDefault, "delimeter for CSV output")
	fs.StringVar(&cfg.outCfg.outputFile, "output", "", "output file to write results to (default stdout) (only json and csv formats supported)")
	fs.BoolVar(&cfg.outCfg.csvOutput, "csv", false, "output results in CSV format")
	fs.BoolVar(&cfg.outCfg.jsonOutput, "json", false, "output results in JSON format")
	fs.BoolVar(&cfg.outCfg.printInterimResults, "print", false, "print the console report even when csv or json goes to stdout")

	fs.BoolVar(&cfg.goFast, "fast", false, "sample files on a worker pool (quarantine stays sequential)")
	fs.BoolVar(&cfg.verbose, "verbose", false, "debug logging")
	fs.BoolVar(&cfg.version, "version", false, "show version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg.detect.ExtensionPatterns = append([]string(nil), detect.DefaultExtensionPatterns...)
	cfg.detect.EntropyThreshold = detect.DefaultEntropyThreshold
	cfg.detect.SampleSize = detect.DefaultSampleSize
	cfg.skipExtensions = append([]string(nil), defaultSkipExtensions...)
	cfg.quarantineRoot = qRoot

	if cfg.rulesPath != "" {
		rules, err := loadRulesFile(cfg.rulesPath)
		if err != nil {
			return &ConfigError{Field: "config", Err: err}
		}
		if rules.ExtensionPatterns != nil {
			cfg.detect.ExtensionPatterns = rules.ExtensionPatterns
		}
		cfg.detect.ExtensionPatterns = append(cfg.detect.ExtensionPatterns, rules.ExtraExtensionPatterns...)
		if rules.SkipExtensions != nil {
			cfg.skipExtensions = rules.SkipExtensions
		}
		if rules.EntropyThreshold != nil {
			cfg.detect.EntropyThreshold = *rules.EntropyThreshold
		}
		if rules.SampleSizeBytes != nil {
			cfg.detect.SampleSize = *rules.SampleSizeBytes
		}
		if rules.QuarantineRoot != "" && !set["quarantine"] {
			cfg.quarantineRoot = rules.QuarantineRoot
		}
	}

	cfg.detect.ExtensionPatterns = append(cfg.detect.ExtensionPatterns, extraPatterns...)
	if set["entropy"] {
		cfg.detect.EntropyThreshold = threshold
	}
	if set["sample"] {
		cfg.detect.SampleSize = sampleSize
	}
	if set["skip"] {
		cfg.skipExtensions = splitList(skipList)
	}

	for _, name := range splitList(hashList) {
		if strings.EqualFold(name, "none") {
			cfg.hashers = nil
			break
		}
		ht, err := ParseHashType(name)
		if err != nil {
			return &ConfigError{Field: "hashes", Err: err}
		}
		cfg.hashers = append(cfg.hashers, ht)
	}

	return nil
}

func (cfg *config) validate() error {
	switch {
	case cfg.version:
		return nil
	case cfg.dirPath == "":
		return &ConfigError{Field: "dir", Err: errors.New("a directory to scan is required")}
	case cfg.detect.EntropyThreshold > detect.MaxEntropy:
		return &ConfigError{Field: "entropy", Err: errors.New("max entropy value is 8.0")}
	case cfg.detect.EntropyThreshold < 0:
		return &ConfigError{Field: "entropy", Err: errors.New("min entropy value is 0.0")}
	case cfg.detect.SampleSize <= 0:
		return &ConfigError{Field: "sample", Err: errors.New("sample size must be positive")}
	case cfg.outCfg.csvOutput && cfg.outCfg.jsonOutput:
		return &ConfigError{Field: "output", Err: errors.New("csv and json output options are mutually exclusive")}
	case !cfg.noQuarantine && cfg.quarantineRoot == "":
		return &ConfigError{Field: "quarantine", Err: errors.New("a quarantine directory is required unless -no-quarantine is set")}
	default:
		// proceed
	}

	if _, err := detect.NewExtensionMatcher(cfg.detect.ExtensionPatterns); err != nil {
		return &ConfigError{Field: "ext", Err: err}
	}

	return nil
}

func newConfigFromArgs(args []string, errOut io.Writer) (*config, error) {
	cfg := new(config)
	cfg.hashers = make([]HashType, 0, 4)

	if err := cfg.parseFlags(args, errOut); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
