package proxy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/util"
)

// Profile is a named set of proxy settings plus the networks it is applied
// to automatically.
type Profile struct {
	Name              string   `yaml:"name" json:"name"`
	ProxySettings     Settings `yaml:"proxy_settings" json:"proxy_settings"`
	AutoApplyNetworks []string `yaml:"auto_apply_networks" json:"auto_apply_networks"`
}

// NewProfile creates a profile.
func NewProfile(name string, settings Settings, networks []string) Profile {
	return Profile{
		Name:              name,
		ProxySettings:     settings,
		AutoApplyNetworks: networks,
	}
}

// Matches reports whether the profile auto-applies to the given network.
func (p Profile) Matches(network string) bool {
	for _, n := range p.AutoApplyNetworks {
		if n == network {
			return true
		}
	}
	return false
}

// ValidateName checks that a profile name can be used as a file stem.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("profile name is empty: %w", util.ErrInvalidConfig)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("profile name %q contains a path separator: %w", name, util.ErrInvalidConfig)
	}
	return nil
}

// Validate checks the profile for completeness.
func (p Profile) Validate() error {
	if err := ValidateName(p.Name); err != nil {
		return err
	}
	return p.ProxySettings.Validate()
}

// Validate checks host, port and credentials.
func (s Settings) Validate() error {
	if s.Host == "" {
		return fmt.Errorf("proxy host is required: %w", util.ErrInvalidConfig)
	}
	port, err := strconv.Atoi(s.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid proxy port %q: %w", s.Port, util.ErrInvalidConfig)
	}
	if s.Auth != nil && !s.Auth.Valid() {
		return fmt.Errorf("proxy auth needs both username and password: %w", util.ErrInvalidConfig)
	}
	for _, p := range s.Protocols {
		if _, err := ParseProtocol(string(p)); err != nil {
			return fmt.Errorf("%v: %w", err, util.ErrInvalidConfig)
		}
	}
	return nil
}
