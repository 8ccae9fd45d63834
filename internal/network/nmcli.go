package network

import (
	"context"
	"strings"
)

// NMCLI queries NetworkManager through its command line client.
type NMCLI struct {
	runner Runner
	sudo   bool
}

func (n *NMCLI) run(ctx context.Context, args ...string) (string, error) {
	if n.sudo {
		return n.runner.Run(ctx, "sudo", append([]string{"nmcli"}, args...)...)
	}
	return n.runner.Run(ctx, "nmcli", args...)
}

// Known implements Lister.
func (n *NMCLI) Known(ctx context.Context) ([]string, error) {
	out, err := n.run(ctx, "-t", "-f", "NAME", "connection", "show")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if name := unescapeTerse(strings.TrimSpace(line)); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Current implements Lister.
func (n *NMCLI) Current(ctx context.Context) (string, bool, error) {
	out, err := n.run(ctx, "-t", "-f", "NAME,DEVICE,TYPE", "connection", "show", "--active")
	if err != nil {
		return "", false, err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := splitTerse(strings.TrimSpace(line))
		if len(fields) == 3 && isWireless(fields[2]) && fields[0] != "" {
			return fields[0], true, nil
		}
	}
	return "", false, nil
}

// splitTerse splits a line of nmcli terse output on unescaped colons.
func splitTerse(line string) []string {
	if line == "" {
		return nil
	}
	var (
		fields []string
		cur    strings.Builder
	)
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

// unescapeTerse decodes a line holding a single terse field.
func unescapeTerse(field string) string {
	return strings.Join(splitTerse(field), ":")
}
