package git_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.branchtrim.dev/trim/internal/git"
	"go.branchtrim.dev/trim/internal/git/gittest"
	"go.branchtrim.dev/trim/internal/silog/silogtest"
	"go.branchtrim.dev/trim/internal/sliceutil"
	"go.branchtrim.dev/trim/internal/text"
)

func TestIntegrationListRemoteRefs(t *testing.T) {
	t.Parallel()

	fixture, err := gittest.LoadFixtureScript([]byte(text.Dedent(`
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'
		git checkout -b feature1
		git add feature1.txt
		git commit -m 'Add feature1'
		git checkout main

		cd ..
		git clone upstream downstream

		-- upstream/init.txt --
		Initial
		-- upstream/feature1.txt --
		Contents of feature1
	`)))
	require.NoError(t, err)
	t.Cleanup(fixture.Cleanup)

	repo, err := git.Open(t.Context(), filepath.Join(fixture.Dir(), "downstream"), git.OpenOptions{
		Log: silogtest.New(t),
	})
	require.NoError(t, err)

	refs, err := sliceutil.CollectErr(repo.ListRemoteRefs(t.Context(), "origin", nil))
	require.NoError(t, err)

	var names []string
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	// Unfiltered ls-remote includes the symbolic HEAD.
	assert.ElementsMatch(t, []string{"HEAD", "refs/heads/main", "refs/heads/feature1"}, names)
}

func TestIntegrationRemoteDefaultBranch(t *testing.T) {
	t.Parallel()

	fixture, err := gittest.LoadFixtureScript([]byte(text.Dedent(`
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'

		cd ..
		git clone upstream downstream

		-- upstream/init.txt --
		Initial
	`)))
	require.NoError(t, err)
	t.Cleanup(fixture.Cleanup)

	repo, err := git.Open(t.Context(), filepath.Join(fixture.Dir(), "downstream"), git.OpenOptions{
		Log: silogtest.New(t),
	})
	require.NoError(t, err)

	name, err := repo.RemoteDefaultBranch(t.Context(), "origin")
	require.NoError(t, err)
	assert.Equal(t, "main", name)
}

func TestIntegrationListRemoteRefsOptions(t *testing.T) {
	t.Parallel()

	fixture, err := gittest.LoadFixtureScript([]byte(text.Dedent(`
		cd upstream
		git init
		git add init.txt
		git commit -m 'Initial commit'
		git checkout -b feat1
		git add feat1.txt
		git commit -m 'Add feat1'
		git checkout -b feat2 main
		git add feat2.txt
		git commit -m 'Add feat2'
		git tag v1.0
		git checkout main

		cd ..
		git clone upstream downstream

		-- upstream/init.txt --
		Initial
		-- upstream/feat1.txt --
		Contents of feat1
		-- upstream/feat2.txt --
		Contents of feat2
	`)))
	require.NoError(t, err)
	t.Cleanup(fixture.Cleanup)

	repo, err := git.Open(t.Context(), filepath.Join(fixture.Dir(), "downstream"), git.OpenOptions{
		Log: silogtest.New(t),
	})
	require.NoError(t, err)

	refs, err := sliceutil.CollectErr(repo.ListRemoteRefs(t.Context(), "origin", &git.ListRemoteRefsOptions{
		Heads: true,
	}))
	require.NoError(t, err)

	var names []string
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	assert.ElementsMatch(t, []string{"refs/heads/main", "refs/heads/feat1", "refs/heads/feat2"}, names)
}
