// Package config loads, validates and edits the auto-proxy configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moby/sys/atomicwriter"
	"gopkg.in/yaml.v3"

	"github.com/rennerdo30/auto-proxy/internal/util"
)

// The config is private to the user.
const (
	dirMode  = 0o700
	fileMode = 0o600
)

// Load decodes the YAML file at path into v. ${VAR} references are
// expanded from the environment and unknown keys are rejected. Read errors
// keep their fs error so callers can test for fs.ErrNotExist.
func Load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %v: %w", path, err, util.ErrInvalidConfig)
	}
	return nil
}

// Save writes v as YAML, creating the parent directory.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := atomicwriter.WriteFile(path, data, fileMode); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
