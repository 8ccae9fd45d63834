// Package profile persists named proxy profiles as YAML files.
package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rennerdo30/auto-proxy/internal/fsutil"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

const (
	fileExt  = ".yaml"
	fileMode = 0600
	dirMode  = 0700
)

// DefaultDir is where profiles live unless configured otherwise.
const DefaultDir = "~/.auto-proxy/profiles"

// Store keeps one YAML document per profile in a directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. A leading ~ is expanded.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	expanded, err := fsutil.Expand(dir)
	if err != nil {
		return nil, err
	}
	return &Store{dir: expanded}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+fileExt)
}

// Exists reports whether a profile with the given name is stored.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// Save writes the profile, replacing any profile with the same name.
func (s *Store) Save(p proxy.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}
	path := s.path(p.Name)
	if err := fsutil.WriteFile(path, data); err != nil {
		return err
	}
	return os.Chmod(path, fileMode)
}

// Load reads the named profile.
func (s *Store) Load(name string) (proxy.Profile, error) {
	if err := proxy.ValidateName(name); err != nil {
		return proxy.Profile{}, err
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return proxy.Profile{}, fmt.Errorf("profile %q: %w", name, util.ErrNotFound)
	}
	if err != nil {
		return proxy.Profile{}, fmt.Errorf("read profile %q: %w", name, err)
	}
	p, err := Unmarshal(data)
	if err != nil {
		return proxy.Profile{}, fmt.Errorf("profile %q: %w", name, err)
	}
	// The file name is authoritative.
	p.Name = name
	return p, nil
}

// Delete removes the named profile.
func (s *Store) Delete(name string) error {
	if err := proxy.ValidateName(name); err != nil {
		return err
	}
	err := os.Remove(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("profile %q: %w", name, util.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete profile %q: %w", name, err)
	}
	return nil
}

// List returns the names of all stored profiles, sorted. A missing
// directory yields an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// All loads every stored profile. Profiles that fail to parse are returned
// as a combined error alongside the ones that loaded.
func (s *Store) All() ([]proxy.Profile, error) {
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	errs := &util.MultiError{}
	profiles := make([]proxy.Profile, 0, len(names))
	for _, name := range names {
		p, err := s.Load(name)
		if err != nil {
			errs.Add(err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles, errs.Err()
}

// ForNetwork returns the first profile, in name order, that auto-applies to
// the given network.
func (s *Store) ForNetwork(network string) (proxy.Profile, error) {
	profiles, err := s.All()
	for _, p := range profiles {
		if p.Matches(network) {
			return p, nil
		}
	}
	if err != nil {
		return proxy.Profile{}, err
	}
	return proxy.Profile{}, fmt.Errorf("profile for network %q: %w", network, util.ErrNotFound)
}

// Marshal encodes a profile as YAML.
func Marshal(p proxy.Profile) ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a YAML profile. Unknown keys are rejected.
func Unmarshal(data []byte) (proxy.Profile, error) {
	var p proxy.Profile
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return proxy.Profile{}, fmt.Errorf("decode profile: %w: %v", util.ErrInvalidConfig, err)
	}
	return p, nil
}
