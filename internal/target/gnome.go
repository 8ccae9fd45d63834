package target

import (
	"context"
	"regexp"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

const gnomeSchema = "org.gnome.system.proxy"

// Gnome manages the GNOME desktop proxy through gsettings.
type Gnome struct {
	runner Runner
}

// NewGnome returns the GNOME desktop target.
func NewGnome(opts Options) *Gnome {
	return &Gnome{runner: opts.runner()}
}

// Name implements Target.
func (t *Gnome) Name() string { return "gnome" }

func (t *Gnome) get(ctx context.Context, schema, key string) (string, error) {
	out, err := t.runner.Run(ctx, "gsettings", "get", schema, key)
	return strings.TrimSpace(out), err
}

// Get implements Target. Command failures read as "nothing configured".
func (t *Gnome) Get(ctx context.Context) []proxy.Settings {
	mode, err := t.get(ctx, gnomeSchema, "mode")
	if err != nil || parseGVariantString(mode) != "manual" {
		return nil
	}

	var records []proxy.Settings
	for _, p := range proxy.AllProtocols() {
		schema := gnomeSchema + "." + string(p)
		host, err := t.get(ctx, schema, "host")
		if err != nil {
			continue
		}
		port, err := t.get(ctx, schema, "port")
		if err != nil {
			continue
		}
		host = parseGVariantString(host)
		if host == "" || port == "" || port == "0" {
			continue
		}
		records = append(records, proxy.Settings{Host: host, Port: port, Protocols: []proxy.Protocol{p}})
	}
	if len(records) == 0 {
		return nil
	}

	ignore, err := t.get(ctx, gnomeSchema, "ignore-hosts")
	if err == nil {
		records = proxy.WithNoProxy(records, parseGVariantStrings(ignore))
	}
	return proxy.Merge(records)
}

// Set implements Target. Protocols not selected by any record are cleared.
func (t *Gnome) Set(ctx context.Context, settings []proxy.Settings) error {
	active := proxy.FilterActive(settings)
	if len(active) == 0 {
		return t.Unset(ctx)
	}

	var argv [][]string
	assigned := make(map[proxy.Protocol]bool)
	for _, s := range active {
		for _, p := range s.ProtocolsFor(proxy.AllProtocols()...) {
			if assigned[p] {
				continue
			}
			assigned[p] = true
			schema := gnomeSchema + "." + string(p)
			argv = append(argv,
				[]string{"set", schema, "host", formatGVariantString(s.Host)},
				[]string{"set", schema, "port", s.Port})
		}
	}
	for _, p := range proxy.AllProtocols() {
		if !assigned[p] {
			schema := gnomeSchema + "." + string(p)
			argv = append(argv,
				[]string{"set", schema, "host", formatGVariantString("")},
				[]string{"set", schema, "port", "0"})
		}
	}
	argv = append(argv,
		[]string{"set", gnomeSchema, "ignore-hosts", formatGVariantStrings(active[0].NoProxy)},
		[]string{"set", gnomeSchema, "mode", formatGVariantString("manual")})
	return runAll(ctx, t.runner, "gsettings", argv)
}

// Unset implements Target.
func (t *Gnome) Unset(ctx context.Context) error {
	_, err := t.runner.Run(ctx, "gsettings", "set", gnomeSchema, "mode", formatGVariantString("none"))
	return err
}

var gvariantStringRE = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)

func formatGVariantString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

func formatGVariantStrings(list []string) string {
	quoted := make([]string, len(list))
	for i, s := range list {
		quoted[i] = formatGVariantString(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func unescapeGVariant(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// parseGVariantString reads a GVariant string such as 'manual'. Unquoted
// input is returned as is.
func parseGVariantString(s string) string {
	s = strings.TrimSpace(s)
	if m := gvariantStringRE.FindStringSubmatch(s); m != nil && strings.HasPrefix(s, "'") {
		return unescapeGVariant(m[1])
	}
	return s
}

// parseGVariantStrings reads a GVariant string array such as
// ['localhost', '127.0.0.0/8'] or the empty form @as [].
func parseGVariantStrings(s string) []string {
	var out []string
	for _, m := range gvariantStringRE.FindAllStringSubmatch(s, -1) {
		if v := unescapeGVariant(m[1]); v != "" {
			out = append(out, v)
		}
	}
	return out
}
