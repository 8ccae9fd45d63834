package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

func sampleProfile(name string, networks ...string) proxy.Profile {
	return proxy.NewProfile(name, proxy.Settings{
		Host:      "proxy.example.com",
		Port:      "8080",
		Auth:      &proxy.Auth{Username: "user", Password: "pass"},
		Protocols: []proxy.Protocol{proxy.HTTP, proxy.HTTPS},
		NoProxy:   []string{"localhost.com", "127.0.0.1", "192.168.1.1"},
	}, networks)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "profiles"))
	require.NoError(t, err)
	return s
}

func TestMarshalRoundTrip(t *testing.T) {
	p := sampleProfile("test-profile", "SSID1", "SSID2")

	data, err := Marshal(p)
	require.NoError(t, err)
	got, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, p, got)
}

func TestUnmarshalAcceptsUppercaseProtocols(t *testing.T) {
	data := []byte(`name: office
proxy_settings:
  host: proxy
  port: "3128"
  protocols: [HTTP, HTTPS, Socks5]
  no_proxy: []
auto_apply_networks: [CorpWiFi]
`)
	p, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, []proxy.Protocol{proxy.HTTP, proxy.HTTPS, proxy.SOCKS}, p.ProxySettings.Protocols)
	assert.Nil(t, p.ProxySettings.Auth)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":      "name: x\nproxy: y\n",
		"unknown protocol": "name: x\nproxy_settings:\n  protocols: [gopher]\n",
		"empty":            "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(doc))
			assert.ErrorIs(t, err, util.ErrInvalidConfig)
		})
	}
}

func TestStoreSaveLoad(t *testing.T) {
	s := newTestStore(t)
	p := sampleProfile("office", "CorpWiFi")

	require.NoError(t, s.Save(p))
	assert.True(t, s.Exists("office"))

	info, err := os.Stat(filepath.Join(s.Dir(), "office.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := s.Load("office")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.ProxySettings.Port = "3128"
	require.NoError(t, s.Save(p), "save replaces")
	got, err = s.Load("office")
	require.NoError(t, err)
	assert.Equal(t, "3128", got.ProxySettings.Port)
}

func TestStoreRejectsInvalid(t *testing.T) {
	s := newTestStore(t)

	err := s.Save(proxy.NewProfile("../escape", proxy.Settings{Host: "h", Port: "1"}, nil))
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	err = s.Save(proxy.NewProfile("noport", proxy.Settings{Host: "h"}, nil))
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
	assert.False(t, s.Exists("noport"))
}

func TestStoreDeleteAndList(t *testing.T) {
	s := newTestStore(t)

	names, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, names, "missing directory lists nothing")

	require.NoError(t, s.Save(sampleProfile("home")))
	require.NoError(t, s.Save(sampleProfile("cafe")))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0600))

	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe", "home"}, names)

	require.NoError(t, s.Delete("cafe"))
	assert.ErrorIs(t, s.Delete("cafe"), util.ErrNotFound)

	_, err = s.Load("cafe")
	assert.True(t, util.IsNotFound(err))
}

func TestStoreForNetwork(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleProfile("b-office", "CorpWiFi")))
	require.NoError(t, s.Save(sampleProfile("a-office", "CorpWiFi", "Lab")))
	require.NoError(t, s.Save(sampleProfile("home", "HomeWiFi")))

	p, err := s.ForNetwork("CorpWiFi")
	require.NoError(t, err)
	assert.Equal(t, "a-office", p.Name, "first match in name order wins")

	_, err = s.ForNetwork("Airport")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestStoreAllReportsBrokenProfiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleProfile("good", "CorpWiFi")))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "bad.yaml"), []byte("name: [\n"), 0600))

	profiles, err := s.All()
	require.Error(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "good", profiles[0].Name)

	p, err := s.ForNetwork("CorpWiFi")
	require.NoError(t, err, "a broken profile does not hide a match")
	assert.Equal(t, "good", p.Name)
}
