package target

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/rennerdo30/auto-proxy/internal/logging"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

const (
	kdeGroup      = "Proxy Settings"
	kdeManual     = "1"
	kdeNone       = "0"
	kdeNoProxyFor = "NoProxyFor"
)

var kdeKeys = map[proxy.Protocol]string{
	proxy.HTTP:  "httpProxy",
	proxy.HTTPS: "httpsProxy",
	proxy.FTP:   "ftpProxy",
	proxy.SOCKS: "socksProxy",
}

// Kde manages the KDE Plasma proxy in kioslaverc through the
// kreadconfig/kwriteconfig tools.
type Kde struct {
	runner   Runner
	readCmd  string
	writeCmd string
	file     string
	// notify tells running KIO workers to reload their configuration.
	notify func(ctx context.Context) error
}

// NewKde returns the KDE target, preferring the Plasma 6 tools when they are
// installed.
func NewKde(opts Options) *Kde {
	t := &Kde{
		runner:   opts.runner(),
		readCmd:  "kreadconfig5",
		writeCmd: "kwriteconfig5",
		file:     "kioslaverc",
		notify:   notifyKIO,
	}
	if _, err := exec.LookPath("kwriteconfig6"); err == nil {
		t.readCmd, t.writeCmd = "kreadconfig6", "kwriteconfig6"
	}
	if p := opts.Paths["kde"]; p != "" {
		t.file = p
	}
	return t
}

// Name implements Target.
func (t *Kde) Name() string { return "kde" }

func (t *Kde) read(ctx context.Context, key string) (string, error) {
	out, err := t.runner.Run(ctx, t.readCmd, "--file", t.file, "--group", kdeGroup, "--key", key)
	return strings.TrimSpace(out), err
}

func (t *Kde) writeArgs(key, value string) []string {
	return []string{"--file", t.file, "--group", kdeGroup, "--key", key, value}
}

// Get implements Target.
func (t *Kde) Get(ctx context.Context) []proxy.Settings {
	mode, err := t.read(ctx, "ProxyType")
	if err != nil || mode != kdeManual {
		return nil
	}

	var records []proxy.Settings
	for _, p := range proxy.AllProtocols() {
		value, err := t.read(ctx, kdeKeys[p])
		if err != nil {
			continue
		}
		if e, ok := parseKdeProxy(value); ok {
			e.Auth = nil
			records = append(records, e.Settings(p))
		}
	}
	if len(records) == 0 {
		return nil
	}
	if noProxy, err := t.read(ctx, kdeNoProxyFor); err == nil {
		records = proxy.WithNoProxy(records, proxy.SplitList(noProxy))
	}
	return proxy.Merge(records)
}

// Set implements Target.
func (t *Kde) Set(ctx context.Context, settings []proxy.Settings) error {
	active := proxy.FilterActive(settings)
	if len(active) == 0 {
		return t.Unset(ctx)
	}

	values := make(map[proxy.Protocol]string)
	for _, s := range active {
		for _, p := range s.ProtocolsFor(proxy.AllProtocols()...) {
			if _, ok := values[p]; !ok {
				values[p] = formatKdeProxy(s, p)
			}
		}
	}

	var argv [][]string
	for _, p := range proxy.AllProtocols() {
		argv = append(argv, t.writeArgs(kdeKeys[p], values[p]))
	}
	argv = append(argv,
		t.writeArgs(kdeNoProxyFor, strings.Join(active[0].NoProxy, ",")),
		t.writeArgs("ProxyType", kdeManual))
	if err := runAll(ctx, t.runner, t.writeCmd, argv); err != nil {
		return err
	}
	t.reload(ctx)
	return nil
}

// Unset implements Target.
func (t *Kde) Unset(ctx context.Context) error {
	if _, err := t.runner.Run(ctx, t.writeCmd, t.writeArgs("ProxyType", kdeNone)...); err != nil {
		return err
	}
	t.reload(ctx)
	return nil
}

func (t *Kde) reload(ctx context.Context) {
	if t.notify == nil {
		return
	}
	if err := t.notify(ctx); err != nil {
		logging.DebugContext(ctx, "kio reload notification failed", "error", err)
	}
}

// formatKdeProxy renders the "scheme://host port" form KDE writes itself.
// Credentials are never written; KIO prompts for them.
func formatKdeProxy(s proxy.Settings, p proxy.Protocol) string {
	scheme := "http"
	if p == proxy.SOCKS {
		scheme = "socks"
	}
	host := s.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host + " " + s.Port
}

// parseKdeProxy accepts both "scheme://host port" and "scheme://host:port".
func parseKdeProxy(value string) (proxy.Endpoint, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return proxy.Endpoint{}, false
	}
	if fields := strings.Fields(value); len(fields) == 2 {
		value = fields[0] + ":" + fields[1]
	}
	e, err := proxy.ParseURL(value)
	if err != nil {
		return proxy.Endpoint{}, false
	}
	return e, true
}

// notifyKIO emits the signal kcmshell sends after changing proxy settings.
func notifyKIO(ctx context.Context) error {
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		return nil
	}
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Emit("/KIO/Scheduler", "org.kde.KIO.Scheduler.reparseSlaveConfiguration", "")
}
