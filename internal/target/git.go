package target

import (
	"context"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

// Git manages http.proxy and https.proxy in the global git configuration.
type Git struct {
	fileTarget
}

// NewGit returns the target for ~/.gitconfig.
func NewGit(opts Options) *Git {
	return &Git{fileTarget: newFileTarget("git", "~/.gitconfig", opts)}
}

var gitProtocols = []proxy.Protocol{proxy.HTTP, proxy.HTTPS}

// gitSection returns the protocol of an [http] or [https] header.
func gitSection(line string) (proxy.Protocol, bool) {
	name, ok := iniSection(line)
	if !ok {
		return "", false
	}
	switch strings.ToLower(name) {
	case "http":
		return proxy.HTTP, true
	case "https":
		return proxy.HTTPS, true
	}
	return "", false
}

// Get implements Target.
func (t *Git) Get(ctx context.Context) []proxy.Settings {
	content, exists, err := t.read()
	if err != nil || !exists {
		return nil
	}

	endpoints := make(map[proxy.Protocol]proxy.Endpoint)
	auths := make(map[proxy.Protocol]*proxy.Auth)
	var current proxy.Protocol
	for _, line := range splitLines(content) {
		if _, ok := iniSection(line); ok {
			current, _ = gitSection(line)
			continue
		}
		if current == "" {
			continue
		}
		key, value, ok := iniKeyValue(line)
		if !ok {
			continue
		}
		switch key {
		case "proxy":
			if _, seen := endpoints[current]; seen {
				continue
			}
			if e, err := proxy.ParseURL(value); err == nil {
				endpoints[current] = e
			}
		case "proxyauth":
			user, password, ok := strings.Cut(strings.Trim(value, `"`), ":")
			if ok && user != "" && password != "" {
				auths[current] = &proxy.Auth{Username: user, Password: password}
			}
		}
	}

	var records []proxy.Settings
	for _, p := range gitProtocols {
		e, ok := endpoints[p]
		if !ok {
			continue
		}
		if e.Auth == nil {
			e.Auth = auths[p]
		}
		records = append(records, e.Settings(p))
	}
	return proxy.Merge(records)
}

// Set implements Target.
func (t *Git) Set(ctx context.Context, settings []proxy.Settings) error {
	content, _, err := t.read()
	if err != nil {
		return err
	}
	kept := stripGitProxy(splitLines(content))

	written := make(map[proxy.Protocol]bool)
	var block []string
	for _, s := range proxy.FilterActive(settings) {
		e := s.Endpoint("http")
		e.Auth = nil
		for _, p := range s.ProtocolsFor(gitProtocols...) {
			if written[p] {
				continue
			}
			written[p] = true
			block = append(block, "["+string(p)+"]", "\tproxy = "+e.URL())
			if s.Auth.Valid() {
				block = append(block, "\tproxyAuth = "+s.Auth.Username+":"+s.Auth.Password)
			}
		}
	}
	return t.write(ctx, appendBlock(kept, block))
}

// Unset implements Target.
func (t *Git) Unset(ctx context.Context) error {
	content, exists, err := t.read()
	if err != nil || !exists {
		return err
	}
	lines := splitLines(content)
	kept := stripGitProxy(lines)
	if len(kept) == len(lines) {
		return nil
	}
	return t.write(ctx, joinLines(kept))
}

// stripGitProxy removes proxy keys from [http] and [https] and drops the
// section headers left without any key.
func stripGitProxy(lines []string) []string {
	var current proxy.Protocol
	kept, _ := filterLines(lines, func(line string) bool {
		if _, ok := iniSection(line); ok {
			current, _ = gitSection(line)
			return false
		}
		if current == "" {
			return false
		}
		key, _, ok := iniKeyValue(line)
		return ok && (key == "proxy" || key == "proxyauth")
	})

	var out []string
	for i := 0; i < len(kept); i++ {
		if _, ok := gitSection(kept[i]); ok {
			j := i + 1
			for j < len(kept) && strings.TrimSpace(kept[j]) == "" {
				j++
			}
			if j == len(kept) || isSectionLine(kept[j]) {
				i = j - 1
				continue
			}
		}
		out = append(out, kept[i])
	}
	return out
}

func isSectionLine(line string) bool {
	_, ok := iniSection(line)
	return ok
}
