package target

import (
	"context"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kballard/go-shellquote"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

// Environment variables written to shell startup files.
const (
	envNoProxy  = "no_proxy"
	envAllProxy = "all_proxy"
	envUser     = "HTTP_PROXY_USER"
	envPassword = "HTTP_PROXY_PASS"
)

var protocolEnv = map[proxy.Protocol]string{
	proxy.HTTP:  "http_proxy",
	proxy.HTTPS: "https_proxy",
	proxy.FTP:   "ftp_proxy",
	proxy.SOCKS: "socks_proxy",
}

// isProxyVar reports whether name is one of the managed variables. Shells
// honour both spellings so the match ignores case.
func isProxyVar(name string) bool {
	switch strings.ToLower(name) {
	case "http_proxy", "https_proxy", "ftp_proxy", "socks_proxy", envAllProxy, envNoProxy,
		strings.ToLower(envUser), strings.ToLower(envPassword):
		return true
	}
	return false
}

// envState accumulates proxy variables found in a startup file.
type envState struct {
	endpoint  *proxy.Endpoint
	protocols []proxy.Protocol
	noProxy   []string
	user      string
	password  string
}

func (st *envState) add(name, value string) {
	switch lower := strings.ToLower(name); lower {
	case envNoProxy:
		st.noProxy = append(st.noProxy, proxy.SplitList(value)...)
	case strings.ToLower(envUser):
		st.user = value
	case strings.ToLower(envPassword):
		st.password = value
	default:
		var proto proxy.Protocol
		for p, env := range protocolEnv {
			if env == lower {
				proto = p
			}
		}
		if proto == "" && lower != envAllProxy {
			return
		}
		e, err := proxy.ParseURL(value)
		if err != nil {
			return
		}
		if st.endpoint == nil {
			st.endpoint = &e
		} else if e.HostPort() != st.endpoint.HostPort() {
			return
		}
		if proto != "" {
			st.protocols = append(st.protocols, proto)
		}
	}
}

func (st *envState) settings() []proxy.Settings {
	if st.endpoint == nil {
		return nil
	}
	s := st.endpoint.Settings("")
	if s.Auth == nil && st.user != "" && st.password != "" {
		s.Auth = &proxy.Auth{Username: st.user, Password: st.password}
	}
	s.Protocols = orderProtocols(st.protocols)
	s.NoProxy = st.noProxy
	return []proxy.Settings{s}
}

// orderProtocols sorts into declaration order and drops duplicates.
func orderProtocols(found []proxy.Protocol) []proxy.Protocol {
	var out []proxy.Protocol
	for _, p := range proxy.AllProtocols() {
		for _, f := range found {
			if f == p {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// envBlock lists the variable assignments for the first active record in a
// dialect independent form. The variables hold a single proxy, so later
// records are ignored.
func envBlock(settings []proxy.Settings) [][2]string {
	var vars [][2]string
	for _, s := range firstActive(settings) {
		if s.Auth.Valid() {
			vars = append(vars,
				[2]string{envUser, s.Auth.Username},
				[2]string{envPassword, s.Auth.Password})
		}
		for _, p := range s.ProtocolsFor(proxy.AllProtocols()...) {
			scheme := "http"
			if p == proxy.SOCKS {
				scheme = "socks5"
			}
			e := s.Endpoint(scheme)
			e.Auth = nil
			vars = append(vars, [2]string{protocolEnv[p], e.URL()})
		}
		e := s.Endpoint("http")
		e.Auth = nil
		vars = append(vars, [2]string{envAllProxy, e.URL()})
		if len(s.NoProxy) > 0 {
			vars = append(vars, [2]string{envNoProxy, strings.Join(s.NoProxy, ",")})
		}
	}
	return vars
}

// PosixShell manages export directives in a POSIX shell startup file.
type PosixShell struct {
	fileTarget
}

// NewZsh returns the target for ~/.zshrc.
func NewZsh(opts Options) *PosixShell {
	return &PosixShell{fileTarget: newFileTarget("zsh", "~/.zshrc", opts)}
}

// NewBash returns the target for ~/.bashrc.
func NewBash(opts Options) *PosixShell {
	return &PosixShell{fileTarget: newFileTarget("bash", "~/.bashrc", opts)}
}

// Get implements Target.
func (t *PosixShell) Get(ctx context.Context) []proxy.Settings {
	content, exists, err := t.read()
	if err != nil || !exists {
		return nil
	}
	var st envState
	for _, line := range splitLines(content) {
		if name, value, ok := posixValue(line); ok {
			st.add(name, value)
		}
	}
	return st.settings()
}

// Set implements Target.
func (t *PosixShell) Set(ctx context.Context, settings []proxy.Settings) error {
	content, _, err := t.read()
	if err != nil {
		return err
	}
	kept, _ := filterLines(splitLines(content), isPosixProxyLine)
	var block []string
	for _, kv := range envBlock(settings) {
		block = append(block, "export "+kv[0]+"="+posixQuote(kv[1]))
	}
	return t.write(ctx, appendBlock(kept, block))
}

// Unset implements Target.
func (t *PosixShell) Unset(ctx context.Context) error {
	return t.rewrite(ctx, isPosixProxyLine)
}

// posixAssignment returns the variable name of an "export NAME=value" or
// "NAME=value" line.
func posixAssignment(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	name, _, ok := strings.Cut(line, "=")
	if !ok || name == "" || strings.ContainsAny(name, " \t") {
		return "", false
	}
	return name, true
}

// posixValue parses an assignment line. Values are unquoted with shell word
// splitting rules so 'it'\''s' style concatenation survives; anything that
// is not a single word, such as a trailing comment, goes through godotenv.
func posixValue(line string) (string, string, bool) {
	name, ok := posixAssignment(line)
	if !ok {
		return "", "", false
	}
	_, raw, _ := strings.Cut(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "export ")), "=")
	if words, err := shellquote.Split(raw); err == nil && len(words) == 1 {
		return name, words[0], true
	}
	env, err := godotenv.Unmarshal(line)
	if err != nil {
		return "", "", false
	}
	value, ok := env[name]
	return name, value, ok
}

func isPosixProxyLine(line string) bool {
	name, ok := posixAssignment(line)
	return ok && isProxyVar(name)
}

// posixQuote single-quotes values containing characters the shell would
// interpret.
func posixQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\n'\"\\$`!*?&;|<>(){}[]#~") {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}
