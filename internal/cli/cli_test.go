package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/auto-proxy/internal/config"
	"github.com/rennerdo30/auto-proxy/internal/metrics"
	"github.com/rennerdo30/auto-proxy/internal/profile"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

type fakeLister struct {
	known   []string
	current string
}

func (f *fakeLister) Known(context.Context) ([]string, error) { return f.known, nil }

func (f *fakeLister) Current(context.Context) (string, bool, error) {
	return f.current, f.current != "", nil
}

type fakeRunner struct{}

func (fakeRunner) Run(_ context.Context, name string, _ ...string) (string, error) {
	return "", util.WrapError(util.ErrCommandNotFound, name)
}

type testEnv struct {
	dir    string
	app    *App
	lister *fakeLister
}

func (e *testEnv) zshrc() string     { return filepath.Join(e.dir, "zshrc") }
func (e *testEnv) gitconfig() string { return filepath.Join(e.dir, "gitconfig") }

func (e *testEnv) read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultAppConfig()
	cfg.ProfilesDir = filepath.Join(dir, "profiles")
	cfg.Targets.Enabled = []string{"zsh", "git"}
	cfg.Targets.Paths = map[string]string{
		"zsh": filepath.Join(dir, "zshrc"),
		"git": filepath.Join(dir, "gitconfig"),
	}
	cfg.Metrics.TextfilePath = filepath.Join(dir, "auto-proxy.prom")

	store, err := profile.NewStore(cfg.ProfilesDir)
	require.NoError(t, err)

	lister := &fakeLister{known: []string{"CorpWiFi", "Home"}}
	return &testEnv{
		dir:    dir,
		lister: lister,
		app: &App{
			ConfigPath: filepath.Join(dir, "config.yaml"),
			Config:     cfg,
			Store:      store,
			Network:    lister,
			Runner:     fakeRunner{},
			Metrics:    metrics.New(),
		},
	}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(func(string) (*App, error) { return e.app, nil })
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestProfileLifecycle(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "profile", "new", "office",
		"--host", "proxy.corp.example", "--port", "3128",
		"-u", "alice", "-p", "s3cret",
		"--protocols", "http,https",
		"--no-proxy", "localhost,.corp.example",
		"--network", "CorpWiFi")

	p, err := env.app.Store.Load("office")
	require.NoError(t, err)
	assert.Equal(t, "proxy.corp.example", p.ProxySettings.Host)
	assert.Equal(t, []proxy.Protocol{proxy.HTTP, proxy.HTTPS}, p.ProxySettings.Protocols)
	assert.Equal(t, &proxy.Auth{Username: "alice", Password: "s3cret"}, p.ProxySettings.Auth)
	assert.Equal(t, []string{"CorpWiFi"}, p.AutoApplyNetworks)

	_, err = env.run(t, "profile", "new", "office", "--host", "h", "--port", "1")
	assert.ErrorIs(t, err, util.ErrAlreadyExists)

	env.mustRun(t, "profile", "update", "office", "--port", "8080", "--username", "")
	p, err = env.app.Store.Load("office")
	require.NoError(t, err)
	assert.Equal(t, "8080", p.ProxySettings.Port)
	assert.Nil(t, p.ProxySettings.Auth)
	assert.Equal(t, []string{"CorpWiFi"}, p.AutoApplyNetworks, "untouched flags are kept")

	out := env.mustRun(t, "profile", "list")
	assert.Contains(t, out, "office")
	assert.Contains(t, out, "proxy.corp.example:8080")
	assert.NotContains(t, out, "s3cret")

	out = env.mustRun(t, "profile", "show", "office")
	assert.Contains(t, out, "CorpWiFi")

	env.mustRun(t, "profile", "delete", "office")
	assert.False(t, env.app.Store.Exists("office"))

	_, err = env.run(t, "profile", "delete", "office")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestProfileNewValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "profile", "new", "bad", "--host", "h", "--port", "99999")
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	_, err = env.run(t, "profile", "new", "bad", "--host", "h", "--port", "1", "--protocols", "gopher")
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	// No terminal to prompt on.
	_, err = env.run(t, "profile", "new", "bad", "--host", "h", "--port", "1", "-u", "alice")
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	assert.False(t, env.app.Store.Exists("bad"))
}

func TestProfileNewPromptsForPassword(t *testing.T) {
	env := newTestEnv(t)
	env.app.ReadPassword = func(prompt string) (string, error) {
		assert.Contains(t, prompt, "alice")
		return "typed", nil
	}

	env.mustRun(t, "profile", "new", "office", "--host", "h", "--port", "1", "-u", "alice")

	p, err := env.app.Store.Load("office")
	require.NoError(t, err)
	assert.Equal(t, "typed", p.ProxySettings.Auth.Password)
}

func TestSetAndUnset(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.zshrc(), []byte("alias ll='ls -l'\n"), 0o644))

	out := env.mustRun(t, "set", "--host", "10.0.0.1", "--port", "3128", "--no-proxy", "localhost")
	assert.Contains(t, out, "zsh")
	assert.Contains(t, out, "git")

	zshrc := env.read(t, env.zshrc())
	assert.Contains(t, zshrc, "alias ll='ls -l'")
	assert.Contains(t, zshrc, "export http_proxy=http://10.0.0.1:3128")
	assert.Contains(t, env.read(t, env.gitconfig()), "proxy = http://10.0.0.1:3128")

	out = env.mustRun(t, "show")
	assert.Contains(t, out, "10.0.0.1:3128")

	env.mustRun(t, "unset")
	assert.NotContains(t, env.read(t, env.zshrc()), "proxy")
	assert.Contains(t, env.read(t, env.zshrc()), "alias ll='ls -l'")
	assert.NotContains(t, env.read(t, env.gitconfig()), "proxy")

	prom := env.read(t, filepath.Join(env.dir, "auto-proxy.prom"))
	assert.Contains(t, prom, `auto_proxy_target_operations_total{operation="unset",result="success",target="zsh"} 1`)
}

func TestSetTargetSelection(t *testing.T) {
	env := newTestEnv(t)

	env.mustRun(t, "set", "--host", "h", "--port", "1", "--targets", "git")
	assert.Empty(t, env.read(t, env.zshrc()))
	assert.Contains(t, env.read(t, env.gitconfig()), "http://h:1")

	_, err := env.run(t, "set", "--host", "h", "--port", "1", "--targets", "emacs")
	assert.ErrorIs(t, err, util.ErrUnknownTarget)
}

func TestSetReportsFailedTargets(t *testing.T) {
	env := newTestEnv(t)
	env.app.Config.Targets.Paths["git"] = filepath.Join(env.dir, "missing", "dir", "gitconfig")

	out, err := env.run(t, "set", "--host", "h", "--port", "1")

	require.Error(t, err)
	assert.Contains(t, out, "1 of 2 targets failed")
	assert.Contains(t, env.read(t, env.zshrc()), "http://h:1", "remaining targets are still written")
}

func TestAutoApply(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "profile", "new", "office", "--host", "proxy.corp.example", "--port", "3128", "--network", "CorpWiFi")

	env.lister.current = "CorpWiFi"
	out := env.mustRun(t, "auto-apply")
	assert.Contains(t, out, `Applying profile "office"`)
	assert.Contains(t, env.read(t, env.zshrc()), "proxy.corp.example:3128")

	env.lister.current = "Home"
	out = env.mustRun(t, "auto-apply")
	assert.Contains(t, out, `No profile for network "Home"`)
	assert.NotContains(t, env.read(t, env.zshrc()), "proxy.corp.example")

	env.lister.current = ""
	out = env.mustRun(t, "auto-apply")
	assert.Contains(t, out, "No active WiFi network")
}

func TestNetworks(t *testing.T) {
	env := newTestEnv(t)
	env.lister.current = "Home"
	env.mustRun(t, "profile", "new", "office", "--host", "h", "--port", "1", "--network", "CorpWiFi")

	out := env.mustRun(t, "networks")

	lines := strings.Split(out, "\n")
	var corp, home string
	for _, l := range lines {
		switch {
		case strings.Contains(l, "CorpWiFi"):
			corp = l
		case strings.Contains(l, "Home"):
			home = l
		}
	}
	assert.Contains(t, corp, "office")
	assert.Contains(t, home, "*")
}

func TestCheck(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "profile", "new", "office",
		"--host", "proxy.corp.example", "--port", "3128",
		"--no-proxy", ".corp.example")

	out := env.mustRun(t, "check", "https://www.example.org", "--profile", "office")
	assert.Contains(t, out, "via http://proxy.corp.example:3128")

	out = env.mustRun(t, "check", "intranet.corp.example", "--profile", "office")
	assert.Contains(t, out, "direct")

	_, err := env.run(t, "check", "https://www.example.org", "--profile", "nope")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestProxyConfigSocksOnly(t *testing.T) {
	cfg := proxyConfig(proxy.Settings{Host: "h", Port: "1080", Protocols: []proxy.Protocol{proxy.SOCKS}})
	assert.Equal(t, "socks5://h:1080", cfg.HTTPProxy)
	assert.Equal(t, "socks5://h:1080", cfg.HTTPSProxy)
}

func TestTargetsCommand(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "targets")

	assert.Contains(t, out, env.zshrc())
	assert.Contains(t, out, "(command)")
	for _, name := range []string{"zsh", "bash", "fish", "apt", "dnf", "gnome", "kde", "vscode", "gradle", "git", "npm"} {
		assert.Contains(t, out, name)
	}
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "config", "path")
	assert.Equal(t, env.app.ConfigPath+"\n", out)

	env.mustRun(t, "config", "set", "network.backend", "dbus")
	cfg, err := config.LoadApp(env.app.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "dbus", cfg.Network.Backend)

	_, err = env.run(t, "config", "set", "network.backend", "carrier-pigeon")
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	out = env.mustRun(t, "config", "show")
	assert.Contains(t, out, "profiles_dir:")
}

func TestVersionSkipsConfig(t *testing.T) {
	root := NewRootCommand(func(string) (*App, error) {
		t.Fatal("version must not load the configuration")
		return nil, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "auto-proxy")
}
