package trim_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.branchtrim.dev/trim/internal/git"
	"go.branchtrim.dev/trim/internal/git/gittest"
	"go.branchtrim.dev/trim/internal/silog/silogtest"
	"go.branchtrim.dev/trim/internal/text"
	"go.branchtrim.dev/trim/internal/trim"
)

// openUpstreamFixture runs script, which must set up an "upstream" repo
// and clone it into "work", and returns an opened handle on "work"
// plus a config reader pointed at the same directory.
func openUpstreamFixture(t *testing.T, script string) (*git.Repository, *git.Config) {
	t.Helper()

	fixture, err := gittest.LoadFixtureScript([]byte(text.Dedent(script)))
	require.NoError(t, err)
	t.Cleanup(fixture.Cleanup)

	dir := filepath.Join(fixture.Dir(), "work")
	repo, err := git.Open(t.Context(), dir, git.OpenOptions{
		Log: silogtest.New(t),
	})
	require.NoError(t, err)

	cfg := git.NewConfig(git.ConfigOptions{Dir: dir, Log: silogtest.New(t)})
	return repo, cfg
}

func TestIntegrationUpstreamResolver_GetFetchUpstream_Exists(t *testing.T) {
	t.Parallel()

	repo, cfg := openUpstreamFixture(t, `
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'
		git checkout -b feature
		git add feature.txt
		git commit -m 'Add feature'
		git checkout main

		cd ..
		git clone upstream work
		cd work
		git checkout feature

		-- upstream/init.txt --
		Initial
		-- upstream/feature.txt --
		Contents of feature
	`)

	resolver := &trim.UpstreamResolver{Repo: repo, Cfg: cfg, Log: silogtest.New(t)}

	status, err := resolver.GetFetchUpstream(t.Context(), trim.NewLocalBranchFromShort("feature"))
	require.NoError(t, err)

	upstream, ok := status.Exists()
	require.True(t, ok)
	assert.Equal(t, "refs/remotes/origin/feature", upstream.RefName())
}

func TestIntegrationUpstreamResolver_GetFetchUpstream_Gone(t *testing.T) {
	t.Parallel()

	repo, cfg := openUpstreamFixture(t, `
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'

		cd ..
		git clone upstream work
		cd work
		git config branch.main.merge refs/heads/pruned

		-- upstream/init.txt --
		Initial
	`)

	resolver := &trim.UpstreamResolver{Repo: repo, Cfg: cfg, Log: silogtest.New(t)}

	status, err := resolver.GetFetchUpstream(t.Context(), trim.NewLocalBranchFromShort("main"))
	require.NoError(t, err)

	refname, gone := status.Gone()
	assert.True(t, gone)
	assert.Equal(t, "refs/remotes/origin/pruned", refname)
}

func TestIntegrationUpstreamResolver_GetFetchUpstream_None(t *testing.T) {
	t.Parallel()

	repo, cfg := openUpstreamFixture(t, `
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'

		cd ..
		git clone upstream work

		-- upstream/init.txt --
		Initial
	`)

	resolver := &trim.UpstreamResolver{Repo: repo, Cfg: cfg, Log: silogtest.New(t)}

	status, err := resolver.GetFetchUpstream(t.Context(), trim.NewLocalBranchFromShort("nonexistent"))
	require.NoError(t, err)
	assert.True(t, status.None())
}

func TestIntegrationUpstreamResolver_RawFetchConfig_BadMergeRef(t *testing.T) {
	t.Parallel()

	repo, cfg := openUpstreamFixture(t, `
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'

		cd ..
		git clone upstream work
		cd work
		git config branch.main.merge not-a-ref

		-- upstream/init.txt --
		Initial
	`)

	resolver := &trim.UpstreamResolver{Repo: repo, Cfg: cfg, Log: silogtest.New(t)}

	_, _, ok, err := resolver.RawFetchConfig(t.Context(), trim.NewLocalBranchFromShort("main"))
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestParsePushDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want trim.PushDefault
	}{
		{"", trim.PushDefaultSimple},
		{"simple", trim.PushDefaultSimple},
		{"current", trim.PushDefaultCurrent},
		{"upstream", trim.PushDefaultUpstream},
		{"tracking", trim.PushDefaultUpstream},
		{"nothing", trim.PushDefaultNothing},
		{"matching", trim.PushDefaultMatching},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, trim.ParsePushDefault(tt.in), tt.in)
	}

	assert.Panics(t, func() { trim.ParsePushDefault("bogus") })
}

func TestIntegrationUpstreamResolver_GetPushUpstream_Nothing(t *testing.T) {
	t.Parallel()

	repo, cfg := openUpstreamFixture(t, `
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'

		cd ..
		git clone upstream work

		-- upstream/init.txt --
		Initial
	`)

	resolver := &trim.UpstreamResolver{Repo: repo, Cfg: cfg, Log: silogtest.New(t)}

	_, err := resolver.GetPushUpstream(t.Context(), trim.NewLocalBranchFromShort("main"), trim.PushDefaultNothing)
	assert.True(t, errors.Is(err, trim.ErrUnsupportedPushDefault))
}

func TestIntegrationUpstreamResolver_GetPushUpstream_SimpleFallsBackToMerge(t *testing.T) {
	t.Parallel()

	repo, cfg := openUpstreamFixture(t, `
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'
		git checkout -b feature
		git add feature.txt
		git commit -m 'Add feature'
		git checkout main

		cd ..
		git clone upstream work
		cd work
		git checkout feature

		-- upstream/init.txt --
		Initial
		-- upstream/feature.txt --
		Contents of feature
	`)

	resolver := &trim.UpstreamResolver{Repo: repo, Cfg: cfg, Log: silogtest.New(t)}

	status, err := resolver.GetPushUpstream(t.Context(), trim.NewLocalBranchFromShort("feature"), trim.PushDefaultSimple)
	require.NoError(t, err)

	upstream, ok := status.Exists()
	require.True(t, ok)
	assert.Equal(t, "refs/remotes/origin/feature", upstream.RefName())
}

func TestIntegrationUpstreamResolver_PrefetchRemoteHeads_SkipsConfiguredRemotes(t *testing.T) {
	t.Parallel()

	repo, cfg := openUpstreamFixture(t, `
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'
		git checkout -b feature
		git add feature.txt
		git commit -m 'Add feature'
		git checkout main

		cd ..
		mkdir fork
		cd fork
		git init
		git add init.txt
		git commit -m 'Initial commit'
		git checkout -b pr-branch
		git add pr.txt
		git commit -m 'Add PR commit'
		git update-ref refs/pull/1/head pr-branch
		git checkout main

		cd ..
		git clone upstream work
		cd work
		git checkout feature
		git checkout -b pr main
		git config branch.pr.remote ../fork
		git config branch.pr.merge refs/pull/1/head

		-- upstream/init.txt --
		Initial
		-- upstream/feature.txt --
		Contents of feature
		-- fork/init.txt --
		Initial
		-- fork/pr.txt --
		Contents of pr
	`)

	resolver := &trim.UpstreamResolver{Repo: repo, Cfg: cfg, Log: silogtest.New(t)}

	err := resolver.PrefetchRemoteHeads(t.Context(), []trim.LocalBranch{
		trim.NewLocalBranchFromShort("feature"),
		trim.NewLocalBranchFromShort("pr"),
	})
	require.NoError(t, err)

	assert.NotContains(t, resolver.RemoteHeadsPerURL, "origin")
	assert.Contains(t, resolver.RemoteHeadsPerURL["../fork"], "refs/pull/1/head")
}
