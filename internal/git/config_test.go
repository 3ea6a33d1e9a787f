package git_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.branchtrim.dev/trim/internal/git"
	"go.branchtrim.dev/trim/internal/silog/silogtest"
	"go.branchtrim.dev/trim/internal/xec"
)

func TestIntegrationConfigListRegexp(t *testing.T) {
	tests := []struct {
		name string

		// Groups of arguments to pass to `git config`
		// to set up the configuration.
		sets [][]string

		pattern string

		want []git.ConfigEntry
	}{
		{name: "Empty"},
		{
			name: "Matches",
			sets: [][]string{
				{"user.name", "Alice"},
				{"user.email", "alice@example.com"},
			},
			pattern: `^user\.`,
			want: []git.ConfigEntry{
				{Key: "user.name", Value: "Alice"},
				{Key: "user.email", Value: "alice@example.com"},
			},
		},
		{
			name: "NoMatches",
			sets: [][]string{
				{"user.name", "Alice"},
				{"user.email", "alice@example.com"},
			},
			pattern: `^foo\.`,
		},
		{
			// config fields that can have multiple values.
			name: "MultiValue",
			sets: [][]string{
				{"--add", "remote.origin.fetch", "+refs/heads/main:refs/remotes/origin/main"},
				{"--add", "remote.origin.fetch", "+refs/heads/feature:refs/remotes/origin/feature"},
				{"--add", "remote.origin.fetch", "+refs/heads/username/*:refs/remotes/origin/username/*"},
			},
			pattern: `^remote\.origin\.`,
			want: []git.ConfigEntry{
				{Key: "remote.origin.fetch", Value: "+refs/heads/main:refs/remotes/origin/main"},
				{Key: "remote.origin.fetch", Value: "+refs/heads/feature:refs/remotes/origin/feature"},
				{Key: "remote.origin.fetch", Value: "+refs/heads/username/*:refs/remotes/origin/username/*"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			home := t.TempDir()
			env := []string{
				"HOME=" + home,
				"XDG_CONFIG_HOME=" + filepath.Join(home, ".config"),
				"GIT_CONFIG_NOSYSTEM=1",
			}

			ctx := context.Background()
			log := silogtest.New(t)
			for _, set := range tt.sets {
				args := append([]string{"config", "--global"}, set...)
				err := xec.Command(ctx, log, "git", args...).
					WithDir(home).
					AppendEnv(env...).
					Run()
				require.NoError(t, err, "git-config: %v", args)
			}

			cfg := git.NewConfig(git.ConfigOptions{
				Dir: home,
				Env: env,
				Log: log,
			})

			iter, err := cfg.ListRegexp(ctx, tt.pattern)
			require.NoError(t, err)

			var got []git.ConfigEntry
			for entry, err := range iter {
				require.NoError(t, err)
				got = append(got, entry)
			}

			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestIntegrationConfigGet(t *testing.T) {
	t.Parallel()

	home := t.TempDir()
	env := []string{
		"HOME=" + home,
		"XDG_CONFIG_HOME=" + filepath.Join(home, ".config"),
		"GIT_CONFIG_NOSYSTEM=1",
	}

	ctx := context.Background()
	log := silogtest.New(t)
	require.NoError(t, xec.Command(ctx, log, "git",
		"config", "--global", "push.default", "current").
		WithDir(home).AppendEnv(env...).Run())

	cfg := git.NewConfig(git.ConfigOptions{Dir: home, Env: env, Log: log})

	value, err := cfg.Get(ctx, "push.default")
	require.NoError(t, err)
	assert.Equal(t, "current", value)

	_, err = cfg.Get(ctx, "does.not.exist")
	assert.ErrorIs(t, err, git.ErrConfigNotSet)
}
