package target

import (
	"context"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

// Fish manages "set -x" directives in the fish configuration.
type Fish struct {
	fileTarget
}

// NewFish returns the target for ~/.config/fish/config.fish.
func NewFish(opts Options) *Fish {
	return &Fish{fileTarget: newFileTarget("fish", "~/.config/fish/config.fish", opts)}
}

// Get implements Target.
func (t *Fish) Get(ctx context.Context) []proxy.Settings {
	content, exists, err := t.read()
	if err != nil || !exists {
		return nil
	}
	var st envState
	for _, line := range splitLines(content) {
		name, values, ok := fishExport(line)
		if !ok {
			continue
		}
		st.add(name, strings.Join(values, " "))
	}
	return st.settings()
}

// Set implements Target.
func (t *Fish) Set(ctx context.Context, settings []proxy.Settings) error {
	content, _, err := t.read()
	if err != nil {
		return err
	}
	kept, _ := filterLines(splitLines(content), isFishProxyLine)
	var block []string
	for _, kv := range envBlock(settings) {
		block = append(block, shellquote.Join("set", "-x", kv[0], kv[1]))
	}
	return t.write(ctx, appendBlock(kept, block))
}

// Unset implements Target.
func (t *Fish) Unset(ctx context.Context) error {
	return t.rewrite(ctx, isFishProxyLine)
}

// fishExport parses "set -x NAME value..." including combined flags such as
// -gx and the long --export form.
func fishExport(line string) (string, []string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "set ") {
		return "", nil, false
	}
	args, err := shellquote.Split(trimmed)
	if err != nil || len(args) < 3 {
		return "", nil, false
	}
	exported := false
	i := 1
	for ; i < len(args) && strings.HasPrefix(args[i], "-"); i++ {
		flag := args[i]
		if flag == "--export" || (!strings.HasPrefix(flag, "--") && strings.Contains(flag, "x")) {
			exported = true
		}
	}
	if !exported || i >= len(args) {
		return "", nil, false
	}
	return args[i], args[i+1:], true
}

func isFishProxyLine(line string) bool {
	name, _, ok := fishExport(line)
	return ok && isProxyVar(name)
}
