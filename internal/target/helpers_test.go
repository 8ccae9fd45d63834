package target

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

// fakeRunner dispatches commands to a handler and records every call.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	handler func(name string, args []string) (string, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	f.mu.Unlock()
	if f.handler == nil {
		return "", nil
	}
	return f.handler(name, args)
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// missingCommand behaves like a host without the tool installed.
func missingCommand() *fakeRunner {
	return &fakeRunner{handler: func(name string, _ []string) (string, error) {
		return "", fmt.Errorf("%s: %w", name, util.ErrCommandNotFound)
	}}
}

// gsettingsStore emulates gsettings get/set against an in-memory store.
func gsettingsStore() (*fakeRunner, map[string]string) {
	store := map[string]string{}
	defaults := map[string]string{"mode": "'none'", "host": "''", "port": "0", "ignore-hosts": "@as []"}
	return &fakeRunner{handler: func(name string, args []string) (string, error) {
		if name != "gsettings" || len(args) < 3 {
			return "", fmt.Errorf("unexpected command %s %v", name, args)
		}
		key := args[1] + " " + args[2]
		switch args[0] {
		case "get":
			if v, ok := store[key]; ok {
				return v + "\n", nil
			}
			return defaults[args[2]] + "\n", nil
		case "set":
			store[key] = args[3]
			return "", nil
		}
		return "", fmt.Errorf("unexpected gsettings verb %s", args[0])
	}}, store
}

// kconfigStore emulates kreadconfig/kwriteconfig for a single group.
func kconfigStore() (*fakeRunner, map[string]string) {
	store := map[string]string{}
	return &fakeRunner{handler: func(name string, args []string) (string, error) {
		var key string
		for i := 0; i+1 < len(args); i++ {
			if args[i] == "--key" {
				key = args[i+1]
			}
		}
		switch {
		case strings.HasPrefix(name, "kreadconfig"):
			return store[key] + "\n", nil
		case strings.HasPrefix(name, "kwriteconfig"):
			store[key] = args[len(args)-1]
			return "", nil
		}
		return "", fmt.Errorf("unexpected command %s", name)
	}}, store
}

// npmStore emulates npm config get/set/delete.
func npmStore() (*fakeRunner, map[string]string) {
	store := map[string]string{}
	return &fakeRunner{handler: func(name string, args []string) (string, error) {
		if name != "npm" || len(args) < 3 || args[0] != "config" {
			return "", fmt.Errorf("unexpected command %s %v", name, args)
		}
		switch args[1] {
		case "get":
			if v, ok := store[args[2]]; ok {
				return v + "\n", nil
			}
			return "null\n", nil
		case "set":
			store[args[2]] = args[3]
		case "delete":
			delete(store, args[2])
		}
		return "", nil
	}}, store
}

// fileOptions points the named target at path inside a temp dir.
func fileOptions(t *testing.T, name, file string) (Options, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), file)
	return Options{Paths: map[string]string{name: path}}, path
}

func sampleSettings() proxy.Settings {
	return proxy.Settings{
		Host:      "proxy.example.com",
		Port:      "8080",
		Auth:      &proxy.Auth{Username: "user", Password: "pass"},
		Protocols: []proxy.Protocol{proxy.HTTP, proxy.HTTPS},
		NoProxy:   []string{"localhost", "127.0.0.1"},
	}
}
