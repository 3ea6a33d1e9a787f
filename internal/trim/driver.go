package trim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"go.branchtrim.dev/trim/internal/git"
	"go.branchtrim.dev/trim/internal/silog"
)

// DriverRepository is the full repository surface the [Driver] needs:
// the union of what every downstream collaborator (tracker, resolver,
// plan preservation passes) requires, plus branch enumeration and the
// bulk "already merged" precomputation.
type DriverRepository interface {
	MergeRepository
	GitRepository
	WorktreeRepository
	HeadRepository

	LocalBranches(ctx context.Context, opts *git.LocalBranchesOptions) ([]git.LocalBranch, error)
	MergedRefs(ctx context.Context, base, prefix string) ([]string, error)
}

var _ DriverRepository = (*git.Repository)(nil)

// BaseSource is the repository access [DefaultBase] needs.
type BaseSource interface {
	RemoteDefaultBranch(ctx context.Context, remote string) (string, error)
}

var _ BaseSource = (*git.Repository)(nil)

// DefaultBase resolves the conventional base branch for a remote when
// the caller didn't pick one: the branch that refs/remotes/<remote>/HEAD
// points to (commonly main or master).
func DefaultBase(ctx context.Context, repo BaseSource, remote string) (RemoteTrackingBranch, error) {
	name, err := repo.RemoteDefaultBranch(ctx, remote)
	if err != nil {
		return RemoteTrackingBranch{}, fmt.Errorf("default branch of %q: %w", remote, err)
	}
	return NewRemoteTrackingBranch("refs/remotes/" + remote + "/" + name), nil
}

// Options configures a trim [Driver] run.
type Options struct {
	// Bases are the branches every local branch is classified against.
	// At least one is required.
	Bases []RemoteTrackingBranch

	// Protected is the set of glob patterns that must never be
	// deleted.
	Protected ProtectedPatterns

	// AllowDetach permits trimming the branch HEAD currently points to
	// when HEAD is not detached. Defaults to false (HEAD is always
	// preserved).
	AllowDetach bool

	// Filter selects which classification categories are eligible for
	// deletion. The zero value deletes nothing; use [AllCategories] for
	// the common case.
	Filter DeleteFilter

	// Concurrency bounds how many (base, branch) pairs are classified
	// at once. Defaults to a small fixed pool when zero or negative.
	Concurrency int
}

const defaultConcurrency = 8

// Driver orchestrates one trim run end to end: it enumerates local
// branches, prefetches the optimization inputs the merge tracker and
// upstream resolver need, fans classification out across workers, and
// folds the results into a [TrimPlan].
type Driver struct {
	Repo DriverRepository
	Cfg  *git.Config
	Log  *silog.Logger
}

// Run executes one trim pass and returns the resulting plan.
//
// Classification of distinct (base, branch) pairs runs concurrently;
// the first classification error aborts the run and its error is
// returned, discarding any partial plan, per the all-or-nothing
// cancellation policy.
func (d *Driver) Run(ctx context.Context, opts Options) (*TrimPlan, error) {
	if len(opts.Bases) == 0 {
		return nil, fmt.Errorf("trim: at least one base branch is required")
	}

	locals, err := d.Repo.LocalBranches(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list local branches: %w", err)
	}

	branches := make([]LocalBranch, len(locals))
	for i, lb := range locals {
		branches[i] = NewLocalBranchFromShort(lb.Name)
	}

	resolver := &UpstreamResolver{
		Repo: d.Repo,
		Cfg:  d.Cfg,
		Log:  d.Log,
	}
	if err := resolver.PrefetchRemoteHeads(ctx, branches); err != nil {
		return nil, fmt.Errorf("prefetch remote heads: %w", err)
	}

	tracker := NewMergeTracker(d.Repo, d.Log)
	if err := d.seedTracker(ctx, tracker, opts.Bases); err != nil {
		return nil, fmt.Errorf("seed merge tracker: %w", err)
	}

	classifier := &Classifier{
		Tracker:  tracker,
		Resolver: resolver,
		Log:      d.Log,
	}

	classified, err := d.classifyAll(ctx, classifier, opts.Bases, branches, opts.Concurrency)
	if err != nil {
		return nil, err
	}

	plan := NewTrimPlan(classified)
	plan.PreserveNonHeadsRemotes()
	plan.PreserveBases(opts.Bases)
	plan.PreserveProtected(opts.Protected)
	if err := plan.PreserveWorktrees(ctx, d.Repo); err != nil {
		return nil, fmt.Errorf("preserve worktrees: %w", err)
	}
	if err := plan.PreserveHead(ctx, d.Repo, opts.AllowDetach); err != nil {
		return nil, fmt.Errorf("preserve HEAD: %w", err)
	}
	plan.ApplyFilter(opts.Filter)

	return plan, nil
}

// seedTracker bulk-loads the merge tracker with every ref already
// known merged into each base, under both refs/heads and
// refs/remotes, plus the base tips themselves: a single
// `for-each-ref --merged` per base instead of rediscovering
// fast-forward merges one branch at a time.
func (d *Driver) seedTracker(ctx context.Context, tracker *MergeTracker, bases []RemoteTrackingBranch) error {
	for _, base := range bases {
		baseHash, err := d.Repo.PeelToCommit(ctx, base.RefName())
		if err != nil {
			return fmt.Errorf("resolve base %s: %w", base, err)
		}
		tracker.Seed(baseHash)

		for _, prefix := range []string{"refs/heads", "refs/remotes"} {
			refs, err := d.Repo.MergedRefs(ctx, base.RefName(), prefix)
			if err != nil {
				return fmt.Errorf("merged refs under %s for %s: %w", prefix, base, err)
			}
			for _, ref := range refs {
				hash, err := d.Repo.PeelToCommit(ctx, ref)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", ref, err)
				}
				tracker.Seed(hash)
			}
		}
	}
	return nil
}

// classifyAll fans every (base, branch) pair out to the classifier
// concurrently, bounded by opts.Concurrency, and collects the union of
// their results. It's a data-parallel map: classifications for
// distinct branches never interact, so the only shared, mutex-guarded
// state is the merge tracker itself.
func (d *Driver) classifyAll(
	ctx context.Context, classifier *Classifier, bases []RemoteTrackingBranch, branches []LocalBranch, concurrency int,
) ([]ClassifiedBranch, error) {
	type task struct {
		base   RemoteTrackingBranch
		branch LocalBranch
	}

	tasks := make([]task, 0, len(bases)*len(branches))
	for _, base := range bases {
		for _, branch := range branches {
			if isBaseLocalEquivalent(base, branch) {
				continue
			}
			tasks = append(tasks, task{base: base, branch: branch})
		}
	}

	results := make([][]ClassifiedBranch, len(tasks))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrencyLimit(concurrency))

	for i, t := range tasks {
		group.Go(func() error {
			cs, err := classifier.Classify(gctx, t.base, t.branch)
			if err != nil {
				return fmt.Errorf("classify %s against %s: %w", t.branch, t.base, err)
			}
			results[i] = cs
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	var all []ClassifiedBranch
	for _, cs := range results {
		all = append(all, cs...)
	}
	return all, nil
}

// isBaseLocalEquivalent reports whether branch is the conventional
// local counterpart of base (e.g. "main" next to "origin/main"). A
// base's own local side is never a classification candidate.
func isBaseLocalEquivalent(base RemoteTrackingBranch, branch LocalBranch) bool {
	local, ok := base.LocalEquivalent()
	return ok && local == branch
}

func concurrencyLimit(n int) int {
	if n <= 0 {
		return defaultConcurrency
	}
	return n
}
