package target

import (
	"fmt"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/util"
)

// Factory builds a target from options.
type Factory func(Options) Target

type entry struct {
	name    string
	factory Factory
}

// registry lists every target in dispatch order.
var registry = []entry{
	{"zsh", func(o Options) Target { return NewZsh(o) }},
	{"bash", func(o Options) Target { return NewBash(o) }},
	{"fish", func(o Options) Target { return NewFish(o) }},
	{"apt", func(o Options) Target { return NewApt(o) }},
	{"dnf", func(o Options) Target { return NewDnf(o) }},
	{"gnome", func(o Options) Target { return NewGnome(o) }},
	{"kde", func(o Options) Target { return NewKde(o) }},
	{"vscode", func(o Options) Target { return NewVSCode(o) }},
	{"gradle", func(o Options) Target { return NewGradle(o) }},
	{"git", func(o Options) Target { return NewGit(o) }},
	{"npm", func(o Options) Target { return NewNpm(o) }},
}

// Available returns the names of all known targets in dispatch order.
func Available() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.name
	}
	return names
}

// New builds the named target.
func New(name string, opts Options) (Target, error) {
	for _, e := range registry {
		if e.name == name {
			return e.factory(opts), nil
		}
	}
	return nil, fmt.Errorf("target %q (known: %s): %w", name, strings.Join(Available(), ", "), util.ErrUnknownTarget)
}

// Select builds the named targets in dispatch order. An empty list selects
// every target. Duplicates are ignored.
func Select(names []string, opts Options) ([]Target, error) {
	if len(names) == 0 {
		names = Available()
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if _, err := New(n, opts); err != nil {
			return nil, err
		}
		wanted[n] = true
	}

	var targets []Target
	for _, e := range registry {
		if wanted[e.name] {
			targets = append(targets, e.factory(opts))
		}
	}
	return targets, nil
}
