// Package target reads, writes and clears proxy configuration in the native
// format of each consumer application.
package target

import (
	"context"
	"strings"

	"github.com/rennerdo30/auto-proxy/internal/fsutil"
	"github.com/rennerdo30/auto-proxy/internal/logging"
	"github.com/rennerdo30/auto-proxy/internal/proxy"
)

// Target is one application whose proxy configuration can be managed.
type Target interface {
	// Name returns the fixed target identifier, e.g. "zsh" or "gnome".
	Name() string
	// Get reconstructs the current settings from the native configuration.
	// A nil result means nothing is configured or the configuration could
	// not be read; it is not an error.
	Get(ctx context.Context) []proxy.Settings
	// Set replaces the proxy configuration with the given settings. Records
	// with an empty host or port are skipped.
	Set(ctx context.Context, settings []proxy.Settings) error
	// Unset removes the proxy configuration. Unsetting an unset target
	// succeeds.
	Unset(ctx context.Context) error
}

// FileBacked is implemented by targets that edit a single file.
type FileBacked interface {
	Path() string
}

// Options configures target construction.
type Options struct {
	// Runner executes external commands. Defaults to ExecRunner.
	Runner Runner
	// Backup keeps a timestamped copy of a file before it is rewritten.
	Backup bool
	// Paths overrides the default file path per target name.
	Paths map[string]string
}

func (o Options) runner() Runner {
	if o.Runner == nil {
		return ExecRunner{}
	}
	return o.Runner
}

// fileTarget carries the fixed path of a file-backed target.
type fileTarget struct {
	name   string
	path   string
	backup bool
}

func newFileTarget(name, defaultPath string, opts Options) fileTarget {
	path := defaultPath
	if p := opts.Paths[name]; p != "" {
		path = p
	}
	return fileTarget{
		name:   name,
		path:   fsutil.MustExpand(path),
		backup: opts.Backup,
	}
}

// Name returns the target identifier.
func (f fileTarget) Name() string { return f.name }

// Path returns the file the target edits.
func (f fileTarget) Path() string { return f.path }

func (f fileTarget) read() (string, bool, error) {
	data, exists, err := fsutil.ReadFile(f.path)
	return string(data), exists, err
}

func (f fileTarget) write(ctx context.Context, content string) error {
	if f.backup {
		backupPath, err := fsutil.Backup(f.path)
		if err != nil {
			return err
		}
		if backupPath != "" {
			logging.DebugContext(ctx, "backed up target file", "path", f.path, "backup", backupPath)
		}
	}
	if err := fsutil.WriteFile(f.path, []byte(content)); err != nil {
		return err
	}
	logging.DebugContext(ctx, "wrote target file", "path", f.path)
	return nil
}

// rewrite drops every line matched by drop and writes the file back. It
// does nothing when the file is missing or no line matched.
func (f fileTarget) rewrite(ctx context.Context, drop func(string) bool) error {
	content, exists, err := f.read()
	if err != nil || !exists {
		return err
	}
	kept, changed := filterLines(splitLines(content), drop)
	if !changed {
		return nil
	}
	return f.write(ctx, joinLines(kept))
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func filterLines(lines []string, drop func(string) bool) ([]string, bool) {
	kept := make([]string, 0, len(lines))
	changed := false
	for _, line := range lines {
		if drop(line) {
			changed = true
			continue
		}
		kept = append(kept, line)
	}
	return kept, changed
}

// appendBlock appends generated lines to the kept content, separated by a
// blank line when the kept content does not already end with one.
func appendBlock(kept []string, block []string) string {
	if len(block) == 0 {
		return joinLines(kept)
	}
	if n := len(kept); n > 0 && strings.TrimSpace(kept[n-1]) != "" {
		kept = append(kept, "")
	}
	return joinLines(append(kept, block...))
}

// firstActive returns the first active record, if any, for targets that can
// hold a single proxy.
func firstActive(settings []proxy.Settings) []proxy.Settings {
	active := proxy.FilterActive(settings)
	if len(active) > 1 {
		active = active[:1]
	}
	return active
}
