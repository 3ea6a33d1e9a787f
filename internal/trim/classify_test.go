package trim_test

import (
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

// newClassifier wires up a resolver, tracker, and classifier against
// repo/cfg, prefetching remote heads for the given locals first.
func newClassifier(t *testing.T, repo *git.Repository, cfg *git.Config, locals []trim.LocalBranch) *trim.Classifier {
	t.Helper()

	resolver := &trim.UpstreamResolver{Repo: repo, Cfg: cfg, Log: silogtest.New(t)}
	require.NoError(t, resolver.PrefetchRemoteHeads(t.Context(), locals))

	return &trim.Classifier{
		Tracker:  trim.NewMergeTracker(repo, silogtest.New(t)),
		Resolver: resolver,
		Log:      silogtest.New(t),
	}
}

var originMain = trim.NewRemoteTrackingBranch("refs/remotes/origin/main")

func TestIntegrationClassifier_MergedAndDeletedRemote(t *testing.T) {
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
		git checkout main
		cd ..

		cd upstream
		git merge --no-ff feature -m 'Merge feature'
		git branch -d feature
		cd ..

		cd work
		git fetch --prune origin

		-- upstream/init.txt --
		Initial
		-- upstream/feature.txt --
		Contents of feature
	`)

	feature := trim.NewLocalBranchFromShort("feature")
	classifier := newClassifier(t, repo, cfg, []trim.LocalBranch{feature})

	got, err := classifier.Classify(t.Context(), originMain, feature)
	require.NoError(t, err)
	assert.ElementsMatch(t, []trim.ClassifiedBranch{trim.MergedLocal(feature)}, got)
}

func TestIntegrationClassifier_MergedRemoteStillPresent(t *testing.T) {
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
		git checkout main
		cd ..

		cd upstream
		git merge --no-ff feature -m 'Merge feature'
		cd ..

		cd work
		git fetch origin

		-- upstream/init.txt --
		Initial
		-- upstream/feature.txt --
		Contents of feature
	`)

	feature := trim.NewLocalBranchFromShort("feature")
	classifier := newClassifier(t, repo, cfg, []trim.LocalBranch{feature})

	got, err := classifier.Classify(t.Context(), originMain, feature)
	require.NoError(t, err)
	assert.ElementsMatch(t, []trim.ClassifiedBranch{
		trim.MergedLocal(feature),
		trim.MergedRemote(trim.RemoteBranch{Remote: "origin", RefName: "refs/heads/feature"}),
	}, got)
}

func TestIntegrationClassifier_StrayWithoutMerge(t *testing.T) {
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
		git checkout main
		cd ..

		cd upstream
		git branch -D feature
		cd ..

		cd work
		git fetch --prune origin

		-- upstream/init.txt --
		Initial
		-- upstream/feature.txt --
		Contents of feature
	`)

	feature := trim.NewLocalBranchFromShort("feature")
	classifier := newClassifier(t, repo, cfg, []trim.LocalBranch{feature})

	got, err := classifier.Classify(t.Context(), originMain, feature)
	require.NoError(t, err)
	assert.ElementsMatch(t, []trim.ClassifiedBranch{trim.StrayLocal(feature)}, got)
}

func TestIntegrationClassifier_LocalDriftAfterMerge(t *testing.T) {
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
		git checkout main
		cd ..

		cd upstream
		git merge --no-ff feature -m 'Merge feature'
		git branch -d feature
		cd ..

		cd work
		git fetch --prune origin
		git checkout feature
		git add drift.txt
		git commit -m 'Local-only follow-up commit'
		git checkout main

		-- upstream/init.txt --
		Initial
		-- upstream/feature.txt --
		Contents of feature
		-- work/drift.txt --
		Drifted content
	`)

	feature := trim.NewLocalBranchFromShort("feature")
	classifier := newClassifier(t, repo, cfg, []trim.LocalBranch{feature})

	got, err := classifier.Classify(t.Context(), originMain, feature)
	require.NoError(t, err)
	assert.ElementsMatch(t, []trim.ClassifiedBranch{trim.StrayLocal(feature)}, got)
}

func TestIntegrationClassifier_AliveWithUnpushedCommit(t *testing.T) {
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
		git add drift.txt
		git commit -m 'Local-only follow-up commit, not yet pushed'
		git checkout main
		cd ..

		-- upstream/init.txt --
		Initial
		-- upstream/feature.txt --
		Contents of feature
		-- work/drift.txt --
		Drifted content
	`)

	feature := trim.NewLocalBranchFromShort("feature")
	classifier := newClassifier(t, repo, cfg, []trim.LocalBranch{feature})

	got, err := classifier.Classify(t.Context(), originMain, feature)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIntegrationClassifier_PRCheckoutStyle(t *testing.T) {
	t.Parallel()

	fixture, err := gittest.LoadFixtureScript([]byte(text.Dedent(`
		cd fork
		git init
		git add init.txt
		git commit -m 'Initial commit'
		git checkout -b pr
		git add pr.txt
		git commit -m 'Add PR commit'
		git update-ref refs/pull/1/head pr
		git checkout main
		cd ..

		cd work
		git init
		git add init.txt
		git commit -m 'Initial commit'
		git fetch ../fork pr:refs/heads/feature
		git merge --no-ff --allow-unrelated-histories feature -m 'Merge PR'
		git update-ref refs/remotes/origin/main main
		git config branch.feature.remote ../fork
		git config branch.feature.merge refs/pull/1/head
		cd ../fork
		git update-ref -d refs/pull/1/head

		-- fork/init.txt --
		Initial
		-- fork/pr.txt --
		Contents of the PR
		-- work/init.txt --
		Initial
	`)))
	require.NoError(t, err)
	t.Cleanup(fixture.Cleanup)

	repo, err := git.Open(t.Context(), filepath.Join(fixture.Dir(), "work"), git.OpenOptions{
		Log: silogtest.New(t),
	})
	require.NoError(t, err)
	cfg := git.NewConfig(git.ConfigOptions{Dir: repo.RootDir(), Log: silogtest.New(t)})

	feature := trim.NewLocalBranchFromShort("feature")
	classifier := newClassifier(t, repo, cfg, []trim.LocalBranch{feature})

	got, err := classifier.Classify(t.Context(), originMain, feature)
	require.NoError(t, err)
	assert.ElementsMatch(t, []trim.ClassifiedBranch{trim.MergedLocal(feature)}, got)
}
