// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField wraps strict YAML failures caused by keys that map
// to no AppConfig field.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader builds an AppConfig from defaults, an optional file and the
// environment.
type Loader struct {
	path    string
	environ map[string]string
}

// NewLoader reads the process environment. path may be empty.
func NewLoader(path string) *Loader {
	return &Loader{path: path, environ: env.ToMap(os.Environ())}
}

// NewLoaderWithEnv uses environ instead of the process environment.
func NewLoaderWithEnv(path string, environ map[string]string) *Loader {
	return &Loader{path: path, environ: environ}
}

func (l *Loader) Path() string { return l.path }

// Load returns the validated effective configuration.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()
	if l.path != "" {
		if err := l.mergeFile(&cfg); err != nil {
			return AppConfig{}, err
		}
	}
	if err := applyEnv(&cfg, l.environ); err != nil {
		return AppConfig{}, err
	}
	if err := Validate(cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// mergeFile decodes the file over cfg; keys absent from the file keep their
// default. Unknown keys and multi-document files are rejected.
func (l *Loader) mergeFile(cfg *AppConfig) error {
	// #nosec G304 -- the path comes from the operator's flag or env
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	switch err := dec.Decode(cfg); {
	case errors.Is(err, io.EOF):
		return nil
	case unknownField(err):
		return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
	case err != nil:
		return fmt.Errorf("parse config file: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

// unknownField reports whether err is a yaml.TypeError listing a key that
// KnownFields rejected.
func unknownField(err error) bool {
	var te *yaml.TypeError
	if !errors.As(err, &te) {
		return false
	}
	for _, msg := range te.Errors {
		if strings.Contains(msg, "not found in type") {
			return true
		}
	}
	return false
}
