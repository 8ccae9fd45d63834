package target

import (
	"context"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

// Gradle manages JVM proxy system properties in gradle.properties.
type Gradle struct {
	fileTarget
}

// NewGradle returns the target for ~/.gradle/gradle.properties.
func NewGradle(opts Options) *Gradle {
	return &Gradle{fileTarget: newFileTarget("gradle", "~/.gradle/gradle.properties", opts)}
}

const (
	gradleUnspecified   = "unspecified"
	gradleNonProxyHosts = "systemProp.http.nonProxyHosts"
)

var gradleProtocols = []proxy.Protocol{proxy.HTTP, proxy.HTTPS}

func gradleKey(p proxy.Protocol, name string) string {
	return "systemProp." + string(p) + "." + name
}

// Get implements Target.
func (t *Gradle) Get(ctx context.Context) []proxy.Settings {
	content, exists, err := t.read()
	if err != nil || !exists {
		return nil
	}
	props := parseProperties(content)

	var records []proxy.Settings
	for _, p := range gradleProtocols {
		host := props[gradleKey(p, "proxyHost")]
		port := props[gradleKey(p, "proxyPort")]
		if host == "" || host == gradleUnspecified || port == "" || port == gradleUnspecified {
			continue
		}
		s := proxy.Settings{Host: host, Port: port, Protocols: []proxy.Protocol{p}}
		user, password := props[gradleKey(p, "proxyUser")], props[gradleKey(p, "proxyPassword")]
		if user != "" && password != "" {
			s.Auth = &proxy.Auth{Username: user, Password: password}
		}
		records = append(records, s)
	}
	return proxy.WithNoProxy(proxy.Merge(records), proxy.SplitList(props[gradleNonProxyHosts]))
}

// Set implements Target.
func (t *Gradle) Set(ctx context.Context, settings []proxy.Settings) error {
	content, _, err := t.read()
	if err != nil {
		return err
	}
	kept, _ := filterLines(splitLines(content), isGradleProxyLine)

	written := make(map[proxy.Protocol]bool)
	var block []string
	var noProxy []string
	for _, s := range proxy.FilterActive(settings) {
		for _, p := range s.ProtocolsFor(gradleProtocols...) {
			if written[p] {
				continue
			}
			written[p] = true
			block = append(block,
				gradleKey(p, "proxyHost")+"="+s.Host,
				gradleKey(p, "proxyPort")+"="+s.Port)
			if s.Auth.Valid() {
				block = append(block,
					gradleKey(p, "proxyUser")+"="+s.Auth.Username,
					gradleKey(p, "proxyPassword")+"="+s.Auth.Password)
			}
		}
		if noProxy == nil {
			noProxy = s.NoProxy
		}
	}
	if len(block) > 0 && len(noProxy) > 0 {
		block = append(block, gradleNonProxyHosts+"="+strings.Join(noProxy, "|"))
	}
	return t.write(ctx, appendBlock(kept, block))
}

// Unset implements Target. The host keys are set to "unspecified" rather
// than removed, which is how Gradle users conventionally disable a proxy.
func (t *Gradle) Unset(ctx context.Context) error {
	content, exists, err := t.read()
	if err != nil || !exists {
		return err
	}
	lines := splitLines(content)
	changed := false
	for i, line := range lines {
		key, value, ok := propertyLine(line)
		if !ok {
			continue
		}
		for _, p := range gradleProtocols {
			if key == gradleKey(p, "proxyHost") && value != gradleUnspecified {
				lines[i] = key + "=" + gradleUnspecified
				changed = true
			}
		}
	}
	if !changed {
		return nil
	}
	return t.write(ctx, joinLines(lines))
}

func isGradleProxyLine(line string) bool {
	key, _, ok := propertyLine(line)
	if !ok {
		return false
	}
	if key == gradleNonProxyHosts {
		return true
	}
	for _, p := range gradleProtocols {
		if strings.HasPrefix(key, "systemProp."+string(p)+".proxy") {
			return true
		}
	}
	return false
}

// propertyLine parses a "key=value" or "key: value" line of a Java
// properties file. Continuation lines are not supported.
func propertyLine(line string) (string, string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' || line[0] == '!' {
		return "", "", false
	}
	i := strings.IndexAny(line, "=:")
	if i <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
}

func parseProperties(content string) map[string]string {
	props := make(map[string]string)
	for _, line := range splitLines(content) {
		if key, value, ok := propertyLine(line); ok {
			props[key] = value
		}
	}
	return props
}
