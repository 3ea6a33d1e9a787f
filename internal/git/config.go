package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.branchtrim.dev/trim/internal/scanutil"
	"go.branchtrim.dev/trim/internal/silog"
	"go.branchtrim.dev/trim/internal/xec"
)

// Config provides read-only access to Git configuration.
type Config struct {
	log    *silog.Logger
	dir    string
	env    []string
	execer xec.Execer
}

// ConfigOptions configures the behavior of a [Config].
type ConfigOptions struct {
	// Dir specifies the directory to run Git commands in.
	// Defaults to the current working directory if empty.
	Dir string

	// Env specifies additional environment variables
	// to set when running Git commands.
	Env []string

	// Log used for logging messages to the user.
	// If nil, a no-op logger is used.
	Log *silog.Logger

	// Execer overrides the process execer used to run Git commands.
	// Intended for tests.
	Execer xec.Execer
}

// NewConfig builds a new [Config] object for accessing Git configuration.
func NewConfig(opts ConfigOptions) *Config {
	execer := opts.Execer
	if execer == nil {
		execer = xec.DefaultExecer
	}

	if opts.Log == nil {
		opts.Log = silog.Nop(&silog.Options{Level: silog.LevelInfo})
	}

	return &Config{
		log:    opts.Log,
		dir:    opts.Dir,
		env:    opts.Env,
		execer: execer,
	}
}

// ConfigKey is divided into three parts:
//
//	section.subsection.name
//
// subsection may be absent, or may be comprised of multiple parts.
// section and name are case-insensitive.
// subsection is case-sensitive.
type ConfigKey string

// Split splits the key into its three parts:
// section, subsection, and name.
func (k ConfigKey) Split() (section, subsection, name string) {
	idx := strings.LastIndex(string(k), ".")
	if idx == -1 {
		// "foo" => "", "", "foo"
		return "", "", string(k)
	}

	name = string(k[idx+1:])
	k = k[:idx]

	idx = strings.Index(string(k), ".")
	if idx == -1 {
		// "foo.bar" => "foo", "", "bar"
		return string(k), "", name
	}

	// "foo.bar.baz" => "foo", "bar", "baz"
	return string(k[:idx]), string(k[idx+1:]), name
}

// Canonical returns a canonicalized form of the key.
// As the section and name are case-insensitive, they are lowercased,
// and the subsection is left as-is.
func (k ConfigKey) Canonical() ConfigKey {
	section, subsection, name := k.Split()

	var buf strings.Builder
	if section != "" {
		buf.WriteString(strings.ToLower(section))
		buf.WriteByte('.')
	}
	if subsection != "" {
		buf.WriteString(subsection)
		buf.WriteByte('.')
	}
	buf.WriteString(strings.ToLower(name))
	return ConfigKey(buf.String())
}

// Section returns the section name for the key,
// or the key itself if it doesn't have a section.
func (k ConfigKey) Section() string {
	section, _, _ := k.Split()
	return section
}

// Subsection returns the subsection name for the key,
// or an empty string if it doesn't have a subsection.
func (k ConfigKey) Subsection() string {
	_, subsection, _ := k.Split()
	return subsection
}

// Name returns the name for the key.
func (k ConfigKey) Name() string {
	_, _, name := k.Split()
	return name
}

// ConfigEntry is a single key-value pair in Git configuration.
type ConfigEntry struct {
	Key   ConfigKey
	Value string
}

// ErrConfigNotSet is returned by [Config.Get] when the requested key has
// no value. It is not an error for the key to be absent: many of the
// keys this package reads (branch.<n>.remote, branch.<n>.pushRemote,
// remote.pushDefault) are legitimately unset.
var ErrConfigNotSet = errors.New("config key not set")

// Get returns the single value of a configuration key.
// It returns [ErrConfigNotSet] if the key has no value.
func (cfg *Config) Get(ctx context.Context, key ConfigKey) (string, error) {
	out, err := xec.Command(ctx, cfg.log, "git", "config", "--get", string(key)).
		WithExecer(cfg.execer).
		WithDir(cfg.dir).
		AppendEnv(cfg.env...).
		OutputChomp()
	if err != nil {
		return "", ErrConfigNotSet
	}
	return out, nil
}

// GetBool returns the boolean value of a configuration key,
// using Git's own truthy/falsy parsing rules.
// It returns [ErrConfigNotSet] if the key has no value.
func (cfg *Config) GetBool(ctx context.Context, key ConfigKey) (bool, error) {
	out, err := xec.Command(ctx, cfg.log, "git", "config", "--type=bool", "--get", string(key)).
		WithExecer(cfg.execer).
		WithDir(cfg.dir).
		AppendEnv(cfg.env...).
		OutputChomp()
	if err != nil {
		return false, ErrConfigNotSet
	}
	return out == "true", nil
}

// ListRegexp lists all configuration entries that match the given pattern.
// If pattern is empty, '.' is used to match all entries.
func (cfg *Config) ListRegexp(ctx context.Context, pattern string) (
	iter.Seq2[ConfigEntry, error],
	error,
) {
	if pattern == "" {
		pattern = "."
	}
	return cfg.list(ctx, "--get-regexp", pattern)
}

var _newline = []byte("\n")

func (cfg *Config) list(ctx context.Context, args ...string) (
	iter.Seq2[ConfigEntry, error],
	error,
) {
	args = append([]string{"config", "--null"}, args...)
	cmd := xec.Command(ctx, cfg.log, "git", args...).
		WithExecer(cfg.execer).
		WithDir(cfg.dir).
		AppendEnv(cfg.env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start git-config: %w", err)
	}

	log := cfg.log
	return func(yield func(ConfigEntry, error) bool) {
		// Always wait for the command to finish when this returns.
		// Ignore the error because git-config fails if there are no matches.
		// It's not an error for us if there are no matches.
		defer func() {
			_ = cmd.Wait()
		}()

		// With the --null flag, output is in the form:
		//
		//	key1\nvalue1\0
		//	key2\nvalue2\0
		scan := bufio.NewScanner(stdout)
		scan.Split(scanutil.SplitNull)
		for scan.Scan() {
			entry := scan.Bytes()
			key, value, ok := bytes.Cut(entry, _newline)
			if !ok {
				log.Warn("skipping invalid config entry", "entry", string(entry))
				continue
			}

			if !yield(ConfigEntry{
				Key:   ConfigKey(key),
				Value: string(value),
			}, nil) {
				return
			}
		}

		if err := scan.Err(); err != nil {
			_ = yield(ConfigEntry{}, fmt.Errorf("scan git-config output: %w", err))
		}
	}, nil
}
