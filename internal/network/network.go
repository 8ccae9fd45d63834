// Package network enumerates known WiFi networks and detects the active one.
package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/util"
)

// Backend names accepted by New.
const (
	BackendNMCLI = "nmcli"
	BackendDBus  = "dbus"
)

// Lister supplies network identifiers.
type Lister interface {
	// Known returns the names of all saved connections.
	Known(ctx context.Context) ([]string, error)
	// Current returns the name of the active wireless connection. ok is
	// false when no wireless connection is active.
	Current(ctx context.Context) (name string, ok bool, err error)
}

// Runner runs an external command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// Options configures a Lister.
type Options struct {
	Backend string
	// Sudo prefixes nmcli invocations with sudo.
	Sudo bool
	// Runner is required by the nmcli backend.
	Runner Runner
}

// New returns the Lister for the configured backend.
func New(opts Options) (Lister, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendNMCLI:
		if opts.Runner == nil {
			return nil, fmt.Errorf("nmcli backend needs a command runner: %w", util.ErrInvalidConfig)
		}
		return &NMCLI{runner: opts.Runner, sudo: opts.Sudo}, nil
	case BackendDBus:
		return &DBus{}, nil
	}
	return nil, fmt.Errorf("network backend %q: %w", opts.Backend, util.ErrInvalidConfig)
}

// isWireless reports whether a NetworkManager connection type is WiFi.
func isWireless(connType string) bool {
	switch connType {
	case "wifi", "802-11-wireless":
		return true
	}
	return false
}

// RequireCurrent returns the active network or util.ErrNoActiveNetwork.
func RequireCurrent(ctx context.Context, l Lister) (string, error) {
	name, ok, err := l.Current(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", util.ErrNoActiveNetwork
	}
	return name, nil
}
