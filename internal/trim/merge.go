package trim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.branchtrim.dev/trim/internal/git"
	"go.branchtrim.dev/trim/internal/silog"
)

// MergeRepository is the repository access the merge tracker needs to
// decide whether one commit is merged into another under any of the
// five supported merge styles.
type MergeRepository interface {
	PeelToCommit(ctx context.Context, ref string) (git.Hash, error)
	PeelToTree(ctx context.Context, ref string) (git.Hash, error)
	MergeBase(ctx context.Context, a, b string) (git.Hash, error)
	IsAncestor(ctx context.Context, a, b git.Hash) bool
	IsMergedByCherryPick(ctx context.Context, base, branch string) (bool, error)
	CommitTree(ctx context.Context, tree, parent git.Hash, message string) (git.Hash, error)
}

var _ MergeRepository = (*git.Repository)(nil)

// MergeTracker is a concurrent-safe, memoized oracle answering "is
// commit X merged into some base?". It starts empty and grows as an
// optimization cache over the lifetime of one trim run: nothing about
// its correctness depends on what's in the cache, only its speed.
//
// The zero value is not usable; construct with [NewMergeTracker].
type MergeTracker struct {
	repo MergeRepository
	log  *silog.Logger

	mu     sync.Mutex
	merged map[git.Hash]struct{}
}

// NewMergeTracker builds an empty merge tracker backed by repo.
func NewMergeTracker(repo MergeRepository, log *silog.Logger) *MergeTracker {
	return &MergeTracker{
		repo:   repo,
		log:    log,
		merged: make(map[git.Hash]struct{}),
	}
}

// Seed marks hashes as already known to be merged, without performing
// any ancestry checks. Used by the [Driver] to bulk-load the result of
// a single `git for-each-ref --merged` per base, instead of asking the
// tracker to rediscover fast-forward merges one commit at a time.
func (t *MergeTracker) Seed(hashes ...git.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range hashes {
		t.merged[h] = struct{}{}
	}
}

// snapshot returns a point-in-time copy of the merged set. Callers
// iterate the snapshot and only reacquire the lock to write, so that
// the lock is never held across repository I/O (merge-base lookups,
// subprocess calls).
func (t *MergeTracker) snapshot() []git.Hash {
	t.mu.Lock()
	defer t.mu.Unlock()
	hashes := make([]git.Hash, 0, len(t.merged))
	for h := range t.merged {
		hashes = append(hashes, h)
	}
	return hashes
}

func (t *MergeTracker) track(h git.Hash) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.merged[h] = struct{}{}
}

func (t *MergeTracker) isTracked(h git.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.merged[h]
	return ok
}

// CheckAndTrack reports whether the commit at targetRef is merged into
// baseRef, trying progressively more expensive tests:
//
//  1. the cache (is targetRef's tip already known merged?)
//  2. fast-forward/no-op/non-ff-merge ancestry ("git merge-base
//     --is-ancestor" against the base, then against each commit
//     already known merged)
//  3. rebase-merge, via the patch-id cherry-pick probe
//  4. squash-merge, via a synthesized probe commit
//
// A positive result is cached so later calls (for targetRef's tip and
// for its ancestors) are cheap.
func (t *MergeTracker) CheckAndTrack(ctx context.Context, baseRef, targetRef string) (bool, error) {
	baseHash, err := t.repo.PeelToCommit(ctx, baseRef)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", baseRef, err)
	}
	targetHash, err := t.repo.PeelToCommit(ctx, targetRef)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", targetRef, err)
	}

	if t.isTracked(targetHash) {
		return true, nil
	}

	if t.repo.IsAncestor(ctx, targetHash, baseHash) {
		// Fast-forward, no-op, or non-ff merge commit: the target
		// tip is already in the base's history as-is.
		t.track(targetHash)
		return true, nil
	}

	for _, known := range t.snapshot() {
		if t.repo.IsAncestor(ctx, targetHash, known) {
			// target is an ancestor of a commit already known
			// merged, so target is merged too.
			t.track(targetHash)
			return true, nil
		}
	}

	ok, err := t.repo.IsMergedByCherryPick(ctx, baseRef, targetRef)
	if err != nil {
		return false, fmt.Errorf("cherry-pick probe %s...%s: %w", baseRef, targetRef, err)
	}
	if ok {
		t.track(targetHash)
		return true, nil
	}

	mergeBase, err := t.repo.MergeBase(ctx, baseRef, targetRef)
	if err != nil {
		if errors.Is(err, git.ErrNotExist) {
			// Disconnected histories (e.g. an orphan branch):
			// not an error, just not merged.
			return false, nil
		}
		return false, fmt.Errorf("merge-base(%s, %s): %w", baseRef, targetRef, err)
	}

	squashed, err := t.isSquashMerged(ctx, mergeBase, baseRef, targetRef)
	if err != nil {
		return false, err
	}
	if squashed {
		t.track(targetHash)
		return true, nil
	}

	return false, nil
}

// isSquashMerged decides whether targetRef's tree appears, under a
// single synthetic commit, within baseRef's history: the signature of
// a `git merge --squash` followed by a commit.
//
// It synthesizes a dangling commit with targetRef's tree and mergeBase
// as its sole parent, under a fixed, deterministic identity (the
// commit is never attached to a ref, so the identity has no visible
// effect), then reruns the cherry-pick probe against it.
func (t *MergeTracker) isSquashMerged(ctx context.Context, mergeBase git.Hash, baseRef, targetRef string) (bool, error) {
	tree, err := t.repo.PeelToTree(ctx, targetRef)
	if err != nil {
		return false, fmt.Errorf("tree of %s: %w", targetRef, err)
	}

	dangling, err := t.repo.CommitTree(ctx, tree, mergeBase, "trim: squash merge probe")
	if err != nil {
		return false, fmt.Errorf("synthesize squash probe commit: %w", err)
	}

	ok, err := t.repo.IsMergedByCherryPick(ctx, baseRef, string(dangling))
	if err != nil {
		return false, fmt.Errorf("cherry-pick probe for squash merge: %w", err)
	}
	return ok, nil
}
