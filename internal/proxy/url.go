package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/util"
)

// Endpoint is a single proxy URL of the form scheme://[user:pass@]host:port.
type Endpoint struct {
	Scheme string
	Host   string
	Port   string
	Auth   *Auth
}

// ParseURL parses a proxy URL. A missing scheme defaults to http. Host and
// port are both required.
func ParseURL(raw string) (Endpoint, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"'`)
	if raw == "" {
		return Endpoint{}, fmt.Errorf("empty proxy url: %w", util.ErrMalformedSetting)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse proxy url: %w", util.ErrMalformedSetting)
	}

	e := Endpoint{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Hostname(),
		Port:   u.Port(),
	}
	if e.Host == "" || e.Port == "" {
		return Endpoint{}, fmt.Errorf("proxy url %q needs host and port: %w", raw, util.ErrMalformedSetting)
	}
	if u.User != nil {
		if password, ok := u.User.Password(); ok {
			e.Auth = &Auth{Username: u.User.Username(), Password: password}
		}
	}
	return e, nil
}

// URL formats the endpoint. Credentials are percent-escaped so that the
// result parses back to the same values.
func (e Endpoint) URL() string {
	u := url.URL{
		Scheme: e.Scheme,
		Host:   net.JoinHostPort(e.Host, e.Port),
	}
	if e.Auth.Valid() {
		u.User = url.UserPassword(e.Auth.Username, e.Auth.Password)
	}
	return u.String()
}

// HostPort returns host:port without scheme or credentials.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Host, e.Port)
}

// Settings converts the endpoint into a settings record for one protocol.
func (e Endpoint) Settings(p Protocol) Settings {
	s := Settings{Host: e.Host, Port: e.Port, Auth: e.Auth}
	if p != "" {
		s.Protocols = []Protocol{p}
	}
	return s
}
