/*
Package config provides type-safe extraction of statekeeper settings from
decoded YAML or JSON documents.

# Overview

Config wraps a map[string]any and exposes typed accessors that fall back to a
default when a key is missing or holds the wrong type. Nested sections are
reached with Sub, so one file can configure several components:

	memory:
	  max_bytes: 256MiB
	  block_bytes: 10MiB
	  retry_interval: 1s
	manager:
	  fallback_namespace: public

	cfg, err := config.FromFile("statekeeper.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	settings := memory.SettingsFromConfig(cfg.Sub("memory"))
	opts := statekeeper.OptionsFromConfig(cfg.Sub("manager"))

# Loading

FromFile, FromYAML and FromJSON validate what they load. Only the memory,
manager and ack_retry sections are accepted, and every key that is present
must hold a usable value; all problems are reported together, wrapping
ErrInvalid. When statekeeper settings share a file with other
configuration, put them under a top-level statekeeper key and the rest of
the document is ignored:

	server:
	  port: 8080
	statekeeper:
	  memory:
	    max_bytes: 64MiB

# Type Coercion

Duration accepts Go duration strings or a number of seconds.
Bytes accepts plain integers or humanized sizes ("64MiB", "10 MB").
Int accepts floats only when they have no fractional part, which is how
encoding/json decodes every number.

# Thread Safety

Config is safe for concurrent read access. The underlying map is never
modified after creation.
*/
package config
