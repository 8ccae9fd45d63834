package target

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

func TestAptSetContent(t *testing.T) {
	opts, path := fileOptions(t, "apt", "99-proxy")
	s := sampleSettings()
	s.Protocols = []proxy.Protocol{proxy.HTTP}

	require.NoError(t, NewApt(opts).Set(context.Background(), []proxy.Settings{s}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`Acquire::http::Proxy-Authorization "basic dXNlcjpwYXNz";`+"\n"+
			`Acquire::http::Proxy "http://proxy.example.com:8080";`+"\n",
		string(data))
}

func TestAptUnsetRemovesFile(t *testing.T) {
	opts, path := fileOptions(t, "apt", "99-proxy")
	require.NoError(t, os.WriteFile(path, []byte(`Acquire::http::Proxy "http://h:1";`+"\n"), 0644))

	require.NoError(t, NewApt(opts).Unset(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAptGetIgnoresDirect(t *testing.T) {
	opts, path := fileOptions(t, "apt", "99-proxy")
	content := `Acquire::http::Proxy "DIRECT";` + "\n" +
		`// Acquire::https::Proxy "http://h:1";` + "\n" +
		`Acquire::ftp::Proxy "http://h:21";` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got := NewApt(opts).Get(context.Background())

	require.Len(t, got, 1)
	assert.Equal(t, []proxy.Protocol{proxy.FTP}, got[0].Protocols)
}

func TestDnfKeepsOtherSettings(t *testing.T) {
	ctx := context.Background()
	opts, path := fileOptions(t, "dnf", "dnf.conf")
	original := "[main]\ngpgcheck=1\ninstallonly_limit=3\n\n[extra]\nproxy=http://other:1\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0644))

	target := NewDnf(opts)
	assert.Nil(t, target.Get(ctx), "proxy outside [main] is ignored")

	require.NoError(t, target.Set(ctx, []proxy.Settings{sampleSettings()}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[main]\n"+
		"proxy=http://proxy.example.com:8080\n"+
		"proxy_username=user\n"+
		"proxy_password=pass\n"+
		"gpgcheck=1\ninstallonly_limit=3\n\n[extra]\nproxy=http://other:1\n", string(data))

	require.NoError(t, target.Unset(ctx))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestDnfGetNone(t *testing.T) {
	opts, path := fileOptions(t, "dnf", "dnf.conf")
	require.NoError(t, os.WriteFile(path, []byte("[main]\nproxy=_none_\n"), 0644))
	assert.Nil(t, NewDnf(opts).Get(context.Background()))
}

func TestGitUnsetDropsEmptySections(t *testing.T) {
	ctx := context.Background()
	opts, path := fileOptions(t, "git", ".gitconfig")
	content := "[user]\n\tname = Jane\n" +
		"[http]\n\tproxy = http://h:1\n\tsslVerify = false\n" +
		"[https]\n\tproxy = http://h:1\n\tproxyAuth = u:p\n" +
		"[core]\n\teditor = vim\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	target := NewGit(opts)
	got := target.Get(ctx)
	require.Len(t, got, 2, "different credentials stay separate records")

	require.NoError(t, target.Unset(ctx))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[user]\n\tname = Jane\n"+
		"[http]\n\tsslVerify = false\n"+
		"[core]\n\teditor = vim\n", string(data))
}

func TestGradleUnsetMarksUnspecified(t *testing.T) {
	ctx := context.Background()
	opts, path := fileOptions(t, "gradle", "gradle.properties")
	content := "org.gradle.jvmargs=-Xmx2g\n" +
		"systemProp.http.proxyHost=proxy\n" +
		"systemProp.http.proxyPort=3128\n" +
		"systemProp.https.proxyHost=proxy\n" +
		"systemProp.https.proxyPort=3128\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	target := NewGradle(opts)
	got := target.Get(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, []proxy.Protocol{proxy.HTTP, proxy.HTTPS}, got[0].Protocols)

	require.NoError(t, target.Unset(ctx))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "org.gradle.jvmargs=-Xmx2g\n"+
		"systemProp.http.proxyHost=unspecified\n"+
		"systemProp.http.proxyPort=3128\n"+
		"systemProp.https.proxyHost=unspecified\n"+
		"systemProp.https.proxyPort=3128\n", string(data))
	assert.Nil(t, target.Get(ctx))
}

func TestGradleNonProxyHosts(t *testing.T) {
	opts, path := fileOptions(t, "gradle", "gradle.properties")
	require.NoError(t, NewGradle(opts).Set(context.Background(), []proxy.Settings{sampleSettings()}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "systemProp.http.nonProxyHosts=localhost|127.0.0.1\n")
}

func TestVSCodePreservesOtherKeys(t *testing.T) {
	ctx := context.Background()
	opts, path := fileOptions(t, "vscode", "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"editor.fontSize": 14, "http.proxyStrictSSL": true}`), 0644))

	target := NewVSCode(opts)
	require.NoError(t, target.Set(ctx, []proxy.Settings{sampleSettings()}))

	got := target.Get(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, &proxy.Auth{Username: "username", Password: "password"}, got[0].Auth,
		"strict SSL yields placeholder credentials")

	require.NoError(t, target.Unset(ctx))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"editor.fontSize": 14}`, string(data))
}

func TestVSCodeCommentedSettings(t *testing.T) {
	ctx := context.Background()
	opts, path := fileOptions(t, "vscode", "settings.json")
	content := "{\n" +
		"  // editor\n" +
		"  \"editor.fontSize\": 14,\n" +
		"  /* proxy */ \"http.proxy\": \"http://old:1\",\n" +
		"}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	target := NewVSCode(opts)
	got := target.Get(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "old", got[0].Host)

	require.NoError(t, target.Set(ctx, []proxy.Settings{sampleSettings()}))
	got = target.Get(ctx)
	require.Len(t, got, 1)
	assert.Equal(t, "proxy.example.com", got[0].Host)

	require.NoError(t, target.Unset(ctx))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"editor.fontSize": 14}`, string(data))
}

func TestVSCodeInvalidJSON(t *testing.T) {
	ctx := context.Background()
	opts, path := fileOptions(t, "vscode", "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http.proxy": "http://h:1",`), 0644))

	target := NewVSCode(opts)
	assert.Nil(t, target.Get(ctx))
	assert.ErrorIs(t, target.Set(ctx, []proxy.Settings{sampleSettings()}), util.ErrMalformedSetting)
	assert.ErrorIs(t, target.Unset(ctx), util.ErrMalformedSetting)
}
