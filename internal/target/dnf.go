package target

import (
	"context"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

// Dnf manages the proxy keys of the [main] section in dnf.conf. DNF has a
// single proxy for every repository, so only the first active record is
// written.
type Dnf struct {
	fileTarget
}

// NewDnf returns the target for /etc/dnf/dnf.conf.
func NewDnf(opts Options) *Dnf {
	return &Dnf{fileTarget: newFileTarget("dnf", "/etc/dnf/dnf.conf", opts)}
}

const dnfMain = "main"

// Get implements Target.
func (t *Dnf) Get(ctx context.Context) []proxy.Settings {
	content, exists, err := t.read()
	if err != nil || !exists {
		return nil
	}

	var (
		endpoint       *proxy.Endpoint
		user, password string
	)
	section := ""
	for _, line := range splitLines(content) {
		if name, ok := iniSection(line); ok {
			section = name
			continue
		}
		if section != dnfMain {
			continue
		}
		key, value, ok := iniKeyValue(line)
		if !ok {
			continue
		}
		switch key {
		case "proxy":
			if endpoint != nil || value == "" || value == "_none_" {
				continue
			}
			if e, err := proxy.ParseURL(value); err == nil {
				endpoint = &e
			}
		case "proxy_username":
			user = value
		case "proxy_password":
			password = value
		}
	}
	if endpoint == nil {
		return nil
	}

	s := endpoint.Settings("")
	if s.Auth == nil && user != "" && password != "" {
		s.Auth = &proxy.Auth{Username: user, Password: password}
	}
	s.Protocols = []proxy.Protocol{proxy.HTTP, proxy.HTTPS}
	return []proxy.Settings{s}
}

// Set implements Target.
func (t *Dnf) Set(ctx context.Context, settings []proxy.Settings) error {
	content, _, err := t.read()
	if err != nil {
		return err
	}
	lines := splitLines(content)
	kept, _ := filterLines(lines, dnfProxyFilter())

	var block []string
	if active := proxy.FilterActive(settings); len(active) > 0 {
		s := active[0]
		e := s.Endpoint("http")
		e.Auth = nil
		block = append(block, "proxy="+e.URL())
		if s.Auth.Valid() {
			block = append(block, "proxy_username="+s.Auth.Username, "proxy_password="+s.Auth.Password)
		}
	}
	if len(block) == 0 {
		return t.write(ctx, joinLines(kept))
	}

	for i, line := range kept {
		if name, ok := iniSection(line); ok && name == dnfMain {
			out := append([]string{}, kept[:i+1]...)
			out = append(out, block...)
			out = append(out, kept[i+1:]...)
			return t.write(ctx, joinLines(out))
		}
	}
	out := append([]string{"[" + dnfMain + "]"}, block...)
	if len(kept) > 0 {
		out = append(out, "")
	}
	return t.write(ctx, joinLines(append(out, kept...)))
}

// Unset implements Target.
func (t *Dnf) Unset(ctx context.Context) error {
	return t.rewrite(ctx, dnfProxyFilter())
}

// dnfProxyFilter matches proxy keys inside [main]. It is stateful and must be
// applied to the lines in order.
func dnfProxyFilter() func(string) bool {
	section := ""
	return func(line string) bool {
		if name, ok := iniSection(line); ok {
			section = name
			return false
		}
		if section != dnfMain {
			return false
		}
		key, _, ok := iniKeyValue(line)
		if !ok {
			return false
		}
		switch key {
		case "proxy", "proxy_username", "proxy_password", "proxy_auth_method":
			return true
		}
		return false
	}
}

// iniSection parses a "[name]" header.
func iniSection(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if len(line) < 2 || line[0] != '[' || line[len(line)-1] != ']' {
		return "", false
	}
	return strings.TrimSpace(line[1 : len(line)-1]), true
}

// iniKeyValue parses "key = value", ignoring comments. Keys are lowercased.
func iniKeyValue(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' || line[0] == ';' {
		return "", "", false
	}
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value), true
}
