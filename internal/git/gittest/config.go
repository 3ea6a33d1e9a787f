package gittest

import (
	"fmt"
	"os/exec"
)

// DefaultConfig is the default Git configuration
// for all test repositories.
func DefaultConfig() Config {
	return Config{
		"init.defaultBranch": "main",
		"alias.graph":        "log --graph --decorate --oneline",
		"core.autocrlf":      "false",
	}
}

// Config is a set of Git configuration values.
type Config map[string]string

// EnvMap renders the configuration as GIT_CONFIG_* environment
// variables (GIT_CONFIG_COUNT, GIT_CONFIG_KEY_<n>, GIT_CONFIG_VALUE_<n>)
// so it applies to all Git commands run with that environment
// without touching any configuration file.
func (cfg Config) EnvMap() map[string]string {
	env := make(map[string]string, 2*len(cfg)+1)
	var n int
	for k, v := range cfg {
		env[fmt.Sprintf("GIT_CONFIG_KEY_%d", n)] = k
		env[fmt.Sprintf("GIT_CONFIG_VALUE_%d", n)] = v
		n++
	}
	env["GIT_CONFIG_COUNT"] = fmt.Sprintf("%d", n)
	return env
}

// WriteTo writes the Git configuration to the given file,
// creating it if it does not exist.
func (cfg Config) WriteTo(path string) error {
	args := []string{"config", "--file", path}
	for k, v := range cfg {
		cmd := exec.Command("git", append(args, k, v)...)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}
