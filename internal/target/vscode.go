package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
	"github.com/rennerdo30/auto-proxy/internal/util"
)

// VSCode keys, escaped for gjson/sjson paths.
const (
	vscodeProxy         = `http\.proxy`
	vscodeNoProxy       = `http\.noProxy`
	vscodeProxySupport  = `http\.proxySupport`
	vscodeStrictSSL     = `http\.proxyStrictSSL`
	vscodeAuthorization = `http\.proxyAuthorization`
)

// VSCode manages the http.* proxy keys in the user settings.json. Other keys
// in the document are preserved.
type VSCode struct {
	fileTarget
}

// NewVSCode returns the target for ~/.config/Code/User/settings.json.
func NewVSCode(opts Options) *VSCode {
	return &VSCode{fileTarget: newFileTarget("vscode", "~/.config/Code/User/settings.json", opts)}
}

// Get implements Target.
func (t *VSCode) Get(ctx context.Context) []proxy.Settings {
	content, exists, err := t.read()
	if err != nil || !exists {
		return nil
	}
	content, ok := toJSON(content)
	if !ok {
		return nil
	}
	raw := gjson.Get(content, vscodeProxy).String()
	if raw == "" {
		return nil
	}
	e, err := proxy.ParseURL(raw)
	if err != nil {
		return nil
	}

	s := e.Settings("")
	s.Protocols = []proxy.Protocol{proxy.HTTP, proxy.HTTPS}
	if s.Auth == nil && gjson.Get(content, vscodeStrictSSL).Bool() {
		// Credentials are prompted for by the editor and never stored.
		s.Auth = &proxy.Auth{Username: "username", Password: "password"}
	}
	for _, item := range gjson.Get(content, vscodeNoProxy).Array() {
		if v := strings.TrimSpace(item.String()); v != "" {
			s.NoProxy = append(s.NoProxy, v)
		}
	}
	return []proxy.Settings{s}
}

// Set implements Target.
func (t *VSCode) Set(ctx context.Context, settings []proxy.Settings) error {
	doc, err := t.document()
	if err != nil {
		return err
	}
	active := proxy.FilterActive(settings)
	if len(active) == 0 {
		doc, _, err = deleteKeys(doc)
		if err != nil {
			return err
		}
		return t.write(ctx, string(pretty.Pretty([]byte(doc))))
	}

	s := active[0]
	e := s.Endpoint("http")
	e.Auth = nil
	if doc, err = sjson.Set(doc, vscodeProxy, e.URL()); err != nil {
		return fmt.Errorf("set %s: %w", vscodeProxy, err)
	}
	if doc, err = sjson.Set(doc, vscodeProxySupport, "override"); err != nil {
		return fmt.Errorf("set %s: %w", vscodeProxySupport, err)
	}
	if len(s.NoProxy) > 0 {
		doc, err = sjson.Set(doc, vscodeNoProxy, s.NoProxy)
	} else {
		doc, err = sjson.Delete(doc, vscodeNoProxy)
	}
	if err != nil {
		return fmt.Errorf("set %s: %w", vscodeNoProxy, err)
	}
	return t.write(ctx, string(pretty.Pretty([]byte(doc))))
}

// Unset implements Target.
func (t *VSCode) Unset(ctx context.Context) error {
	content, exists, err := t.read()
	if err != nil || !exists {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	content, ok := toJSON(content)
	if !ok {
		return fmt.Errorf("%s is not valid JSON: %w", t.path, util.ErrMalformedSetting)
	}
	doc, changed, err := deleteKeys(content)
	if err != nil || !changed {
		return err
	}
	return t.write(ctx, string(pretty.Pretty([]byte(doc))))
}

// document returns the current settings, or an empty object when the file
// is missing or blank.
func (t *VSCode) document() (string, error) {
	content, _, err := t.read()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "{}", nil
	}
	doc, ok := toJSON(content)
	if !ok {
		return "", fmt.Errorf("%s is not valid JSON: %w", t.path, util.ErrMalformedSetting)
	}
	return doc, nil
}

// toJSON strips the comments and trailing commas VS Code allows in its
// settings. Comments do not survive a rewrite.
func toJSON(content string) (string, bool) {
	doc := string(jsonc.ToJSON([]byte(content)))
	return doc, gjson.Valid(doc)
}

func deleteKeys(doc string) (string, bool, error) {
	changed := false
	for _, key := range []string{vscodeProxy, vscodeNoProxy, vscodeProxySupport, vscodeStrictSSL, vscodeAuthorization} {
		if !gjson.Get(doc, key).Exists() {
			continue
		}
		var err error
		if doc, err = sjson.Delete(doc, key); err != nil {
			return "", false, fmt.Errorf("delete %s: %w", key, err)
		}
		changed = true
	}
	return doc, changed, nil
}
