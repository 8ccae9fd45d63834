// Package proxy defines the canonical proxy settings model shared by profiles
// and targets.
package proxy

import (
	"fmt"
	"strings"
)

// Protocol identifies a proxied protocol.
type Protocol string

// Supported protocols, in display order.
const (
	HTTP  Protocol = "http"
	HTTPS Protocol = "https"
	FTP   Protocol = "ftp"
	SOCKS Protocol = "socks"
)

// AllProtocols returns every protocol in declaration order.
func AllProtocols() []Protocol {
	return []Protocol{HTTP, HTTPS, FTP, SOCKS}
}

// ParseProtocol parses a protocol name case-insensitively. "socks5" is
// accepted as an alias for SOCKS.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "http":
		return HTTP, nil
	case "https":
		return HTTPS, nil
	case "ftp":
		return FTP, nil
	case "socks", "socks5":
		return SOCKS, nil
	}
	return "", fmt.Errorf("unknown protocol %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Protocol) UnmarshalText(text []byte) error {
	parsed, err := ParseProtocol(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// String returns the scheme literal used for the protocol.
func (p Protocol) String() string {
	return string(p)
}

// Auth holds proxy credentials.
type Auth struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Valid reports whether both username and password are set.
func (a *Auth) Valid() bool {
	return a != nil && a.Username != "" && a.Password != ""
}

// Settings is the canonical proxy configuration.
type Settings struct {
	Host      string     `yaml:"host" json:"host"`
	Port      string     `yaml:"port" json:"port"`
	Auth      *Auth      `yaml:"auth,omitempty" json:"auth,omitempty"`
	Protocols []Protocol `yaml:"protocols" json:"protocols"`
	NoProxy   []string   `yaml:"no_proxy" json:"no_proxy"`
}

// Active reports whether the settings describe a usable proxy. Targets treat
// inactive settings as "no proxy configured".
func (s Settings) Active() bool {
	return s.Host != "" && s.Port != ""
}

// HasProtocol reports whether p is in the selection.
func (s Settings) HasProtocol(p Protocol) bool {
	for _, sp := range s.Protocols {
		if sp == p {
			return true
		}
	}
	return false
}

// ProtocolsFor narrows the selection to the protocols a target supports.
// An empty selection means every supported protocol.
func (s Settings) ProtocolsFor(supported ...Protocol) []Protocol {
	if len(s.Protocols) == 0 {
		return supported
	}
	var out []Protocol
	for _, p := range supported {
		if s.HasProtocol(p) {
			out = append(out, p)
		}
	}
	return out
}

// Endpoint returns the settings as a URL endpoint for the given scheme.
func (s Settings) Endpoint(scheme string) Endpoint {
	e := Endpoint{Scheme: scheme, Host: s.Host, Port: s.Port}
	if s.Auth.Valid() {
		e.Auth = &Auth{Username: s.Auth.Username, Password: s.Auth.Password}
	}
	return e
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	c := s
	if s.Auth != nil {
		a := *s.Auth
		c.Auth = &a
	}
	c.Protocols = append([]Protocol(nil), s.Protocols...)
	c.NoProxy = append([]string(nil), s.NoProxy...)
	return c
}

// String renders the settings in the canonical display form: one
// scheme://[user:pass@]host:port line per selected protocol followed by a
// single no_proxy line.
func (s Settings) String() string {
	var b strings.Builder
	for _, p := range s.Protocols {
		b.WriteString(p.String())
		b.WriteString("://")
		if s.Auth != nil {
			b.WriteString(s.Auth.Username)
			b.WriteByte(':')
			b.WriteString(s.Auth.Password)
			b.WriteByte('@')
		}
		b.WriteString(s.Host)
		b.WriteByte(':')
		b.WriteString(s.Port)
		b.WriteByte('\n')
	}
	b.WriteString("no_proxy=")
	b.WriteString(strings.Join(s.NoProxy, ","))
	return b.String()
}

// FilterActive drops inactive records.
func FilterActive(settings []Settings) []Settings {
	var out []Settings
	for _, s := range settings {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out
}
