package target

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/fsutil"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

// Apt manages a dedicated apt.conf.d drop-in. The file belongs to us, so Set
// replaces it and Unset deletes it.
type Apt struct {
	fileTarget
}

// NewApt returns the target for /etc/apt/apt.conf.d/99-proxy.
func NewApt(opts Options) *Apt {
	return &Apt{fileTarget: newFileTarget("apt", "/etc/apt/apt.conf.d/99-proxy", opts)}
}

var aptProtocols = []proxy.Protocol{proxy.HTTP, proxy.HTTPS, proxy.FTP}

// Get implements Target.
func (t *Apt) Get(ctx context.Context) []proxy.Settings {
	content, exists, err := t.read()
	if err != nil || !exists {
		return nil
	}

	endpoints := make(map[proxy.Protocol]proxy.Endpoint)
	auths := make(map[proxy.Protocol]*proxy.Auth)
	for _, line := range splitLines(content) {
		proto, option, value, ok := aptDirective(line)
		if !ok {
			continue
		}
		switch option {
		case "proxy":
			if _, seen := endpoints[proto]; seen {
				continue
			}
			if e, err := proxy.ParseURL(value); err == nil {
				endpoints[proto] = e
			}
		case "proxy-authorization":
			if a := decodeBasicAuth(value); a != nil {
				auths[proto] = a
			}
		}
	}

	var records []proxy.Settings
	for _, p := range aptProtocols {
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
func (t *Apt) Set(ctx context.Context, settings []proxy.Settings) error {
	var lines []string
	for _, s := range proxy.FilterActive(settings) {
		e := s.Endpoint("http")
		e.Auth = nil
		for _, p := range s.ProtocolsFor(aptProtocols...) {
			if s.Auth.Valid() {
				lines = append(lines, fmt.Sprintf(`Acquire::%s::Proxy-Authorization "basic %s";`, p, encodeBasicAuth(s.Auth)))
			}
			lines = append(lines, fmt.Sprintf(`Acquire::%s::Proxy "%s";`, p, e.URL()))
		}
	}
	return t.write(ctx, joinLines(lines))
}

// Unset implements Target.
func (t *Apt) Unset(ctx context.Context) error {
	return fsutil.Remove(t.path)
}

// aptDirective parses `Acquire::<proto>::<option> "value";`.
func aptDirective(line string) (proxy.Protocol, string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
		return "", "", "", false
	}
	key, value, ok := strings.Cut(line, " ")
	if !ok {
		return "", "", "", false
	}
	parts := strings.Split(key, "::")
	if len(parts) != 3 || !strings.EqualFold(parts[0], "Acquire") {
		return "", "", "", false
	}
	proto, err := proxy.ParseProtocol(parts[1])
	if err != nil {
		return "", "", "", false
	}
	value = strings.TrimSpace(value)
	value = strings.TrimSpace(strings.TrimSuffix(value, ";"))
	value = strings.Trim(value, `"`)
	return proto, strings.ToLower(parts[2]), value, true
}

func encodeBasicAuth(a *proxy.Auth) string {
	return base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
}

func decodeBasicAuth(value string) *proxy.Auth {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "basic") {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return nil
	}
	user, password, ok := strings.Cut(string(raw), ":")
	if !ok || user == "" || password == "" {
		return nil
	}
	return &proxy.Auth{Username: user, Password: password}
}
