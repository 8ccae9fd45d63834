package target

import (
	"context"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

// Npm manages the proxy keys of the npm user configuration through the npm
// CLI. Credentials are not written.
type Npm struct {
	runner Runner
}

// NewNpm returns the npm target.
func NewNpm(opts Options) *Npm {
	return &Npm{runner: opts.runner()}
}

// Name implements Target.
func (t *Npm) Name() string { return "npm" }

var npmKeys = map[proxy.Protocol]string{
	proxy.HTTP:  "proxy",
	proxy.HTTPS: "https-proxy",
}

const npmNoProxy = "noproxy"

func (t *Npm) get(ctx context.Context, key string) string {
	out, err := t.runner.Run(ctx, "npm", "config", "get", key)
	if err != nil {
		return ""
	}
	switch v := strings.TrimSpace(out); v {
	case "null", "undefined":
		return ""
	default:
		return v
	}
}

// Get implements Target. An empty proxy key means no proxy, whatever
// https-proxy holds.
func (t *Npm) Get(ctx context.Context) []proxy.Settings {
	if t.get(ctx, npmKeys[proxy.HTTP]) == "" {
		return nil
	}
	var records []proxy.Settings
	for _, p := range []proxy.Protocol{proxy.HTTP, proxy.HTTPS} {
		value := t.get(ctx, npmKeys[p])
		if value == "" {
			continue
		}
		if e, err := proxy.ParseURL(value); err == nil {
			records = append(records, e.Settings(p))
		}
	}
	if len(records) == 0 {
		return nil
	}
	return proxy.WithNoProxy(proxy.Merge(records), proxy.SplitList(t.get(ctx, npmNoProxy)))
}

// Set implements Target.
func (t *Npm) Set(ctx context.Context, settings []proxy.Settings) error {
	active := proxy.FilterActive(settings)
	if len(active) == 0 {
		return t.Unset(ctx)
	}

	values := make(map[proxy.Protocol]string)
	for _, s := range active {
		e := s.Endpoint("http")
		e.Auth = nil
		for _, p := range s.ProtocolsFor(proxy.HTTP, proxy.HTTPS) {
			if _, ok := values[p]; !ok {
				values[p] = e.URL()
			}
		}
	}

	// npm reads an empty proxy key as no proxy at all.
	if https, ok := values[proxy.HTTPS]; ok {
		if _, ok := values[proxy.HTTP]; !ok {
			values[proxy.HTTP] = https
		}
	}

	var argv [][]string
	for _, p := range []proxy.Protocol{proxy.HTTP, proxy.HTTPS} {
		if v, ok := values[p]; ok {
			argv = append(argv, []string{"config", "set", npmKeys[p], v})
		} else {
			argv = append(argv, []string{"config", "delete", npmKeys[p]})
		}
	}
	if noProxy := active[0].NoProxy; len(noProxy) > 0 {
		argv = append(argv, []string{"config", "set", npmNoProxy, strings.Join(noProxy, ",")})
	} else {
		argv = append(argv, []string{"config", "delete", npmNoProxy})
	}
	return runAll(ctx, t.runner, "npm", argv)
}

// Unset implements Target.
func (t *Npm) Unset(ctx context.Context) error {
	return runAll(ctx, t.runner, "npm", [][]string{
		{"config", "delete", npmKeys[proxy.HTTP]},
		{"config", "delete", npmKeys[proxy.HTTPS]},
		{"config", "delete", npmNoProxy},
	})
}
