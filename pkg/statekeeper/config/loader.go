package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// RootKey is the optional top-level section holding statekeeper settings,
// so they can share a file with the rest of an application's config.
const RootKey = "statekeeper"

// Section names recognised at the root.
const (
	SectionMemory   = "memory"
	SectionManager  = "manager"
	SectionAckRetry = "ack_retry"
)

var sections = []string{SectionMemory, SectionManager, SectionAckRetry}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// FromFile loads configuration from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = FromYAML(data)
	case ".json":
		cfg, err = FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return cfg, nil
}

// FromYAML parses and validates YAML data.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return fromDocument(m)
}

// FromJSON parses and validates JSON data.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return fromDocument(m)
}

func fromDocument(m map[string]any) (Config, error) {
	cfg := New(m)
	if root, ok := m[RootKey].(map[string]any); ok {
		cfg = New(root)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the memory, manager and ack_retry sections. Missing keys
// are fine; present keys must hold a usable value. Every problem is
// reported, joined into one error wrapping ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	for key, v := range c.data {
		if !slices.Contains(sections, key) {
			errs = append(errs, invalid("unknown section %q", key))
			continue
		}
		if _, ok := v.(map[string]any); !ok && v != nil {
			errs = append(errs, invalid("%s must be a mapping", key))
		}
	}
	errs = append(errs, validateMemory(c.Sub(SectionMemory))...)
	errs = append(errs, validateManager(c.Sub(SectionManager))...)
	errs = append(errs, validateAckRetry(c.Sub(SectionAckRetry))...)

	slices.SortFunc(errs, func(a, b error) int { return strings.Compare(a.Error(), b.Error()) })
	return errors.Join(errs...)
}

func validateMemory(c Config) []error {
	var errs []error
	maxBytes, maxOK := c.positiveBytes("memory", "max_bytes", &errs)
	block, blockOK := c.positiveBytes("memory", "block_bytes", &errs)
	if maxOK && blockOK && block > maxBytes {
		errs = append(errs, invalid("memory.block_bytes %s exceeds max_bytes %s",
			humanize.IBytes(block), humanize.IBytes(maxBytes)))
	}
	if c.Has("retry_interval") {
		if d := c.Duration("retry_interval", 0); d <= 0 {
			errs = append(errs, invalid("memory.retry_interval must be a positive duration"))
		}
	}
	return errs
}

func validateManager(c Config) []error {
	var errs []error
	for _, key := range []string{"id", "fallback_namespace"} {
		if c.Has(key) {
			if _, ok := c.data[key].(string); !ok {
				errs = append(errs, invalid("manager.%s must be a string", key))
			}
		}
	}
	for _, key := range []string{"metrics", "tracing"} {
		if c.Has(key) {
			if _, ok := c.data[key].(bool); !ok {
				errs = append(errs, invalid("manager.%s must be true or false", key))
			}
		}
	}
	return errs
}

func validateAckRetry(c Config) []error {
	var errs []error
	if c.Has("max_attempts") && c.Int("max_attempts", 0) < 1 {
		errs = append(errs, invalid("ack_retry.max_attempts must be at least 1"))
	}
	for _, key := range []string{"initial_backoff", "max_backoff"} {
		if c.Has(key) && c.Duration(key, -1) < 0 {
			errs = append(errs, invalid("ack_retry.%s must be a non-negative duration", key))
		}
	}
	if c.Has("backoff_factor") && c.Float("backoff_factor", 0) < 1 {
		errs = append(errs, invalid("ack_retry.backoff_factor must be at least 1"))
	}
	if c.Has("jitter") {
		if j := c.Float("jitter", -1); j < 0 || j > 1 {
			errs = append(errs, invalid("ack_retry.jitter must be between 0 and 1"))
		}
	}
	return errs
}

// positiveBytes reads a byte size that must be present-and-valid to count.
// Bytes falls back to its default on bad input, so two different defaults
// tell an unparsable value apart from a real one.
func (c Config) positiveBytes(section, key string, errs *[]error) (uint64, bool) {
	if !c.Has(key) {
		return 0, false
	}
	n := c.Bytes(key, 0)
	if n == 0 {
		if c.Bytes(key, 1) == 1 {
			*errs = append(*errs, invalid("%s.%s must be a byte size", section, key))
		} else {
			*errs = append(*errs, invalid("%s.%s must be greater than zero", section, key))
		}
		return 0, false
	}
	return n, true
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}
