package trim

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"go.branchtrim.dev/trim/internal/git"
)

// Preserved records a classified branch that was removed from
// deletion, and why.
type Preserved struct {
	Branch ClassifiedBranch
	Reason string
}

// TrimPlan is the result of classifying every local branch against
// every base and applying the preservation passes and delete filter:
// the set of refs safe to delete, and everything that was excluded
// along the way.
//
// Invariant: ToDelete and the branches in Preserved are always
// disjoint; once a branch is preserved, it's never re-added to
// ToDelete.
type TrimPlan struct {
	ToDelete  map[ClassifiedBranch]struct{}
	Preserved []Preserved
}

// NewTrimPlan builds a plan from a flat list of classifications,
// deduplicating by value: the accumulation order across classifier
// calls is not observable in the result.
func NewTrimPlan(classified []ClassifiedBranch) *TrimPlan {
	toDelete := make(map[ClassifiedBranch]struct{}, len(classified))
	for _, c := range classified {
		toDelete[c] = struct{}{}
	}
	return &TrimPlan{ToDelete: toDelete}
}

// LocalsToDelete partitions ToDelete down to just the local branches.
func (p *TrimPlan) LocalsToDelete() []LocalBranch {
	var locals []LocalBranch
	for c := range p.ToDelete {
		if c.IsLocal() {
			locals = append(locals, c.Local)
		}
	}
	return locals
}

// RemotesToDelete partitions ToDelete down to just the remote-side
// branches.
func (p *TrimPlan) RemotesToDelete() []RemoteBranch {
	var remotes []RemoteBranch
	for c := range p.ToDelete {
		if c.IsRemote() {
			remotes = append(remotes, c.Remote)
		}
	}
	return remotes
}

// RemotesToDeleteByRemote groups the remote-side branches in ToDelete
// by remote name, so the deletion driver can issue one push per remote.
func (p *TrimPlan) RemotesToDeleteByRemote() map[string][]RemoteBranch {
	byRemote := make(map[string][]RemoteBranch)
	for c := range p.ToDelete {
		if c.IsRemote() {
			byRemote[c.Remote.Remote] = append(byRemote[c.Remote.Remote], c.Remote)
		}
	}
	return byRemote
}

// preserve moves every branch in ToDelete for which keep returns true
// into Preserved, with the given reason. Preservation passes are
// total: keep never errors, it just decides yes or no per branch.
func (p *TrimPlan) preserve(reason string, keep func(ClassifiedBranch) bool) {
	for c := range p.ToDelete {
		if keep(c) {
			delete(p.ToDelete, c)
			p.Preserved = append(p.Preserved, Preserved{Branch: c, Reason: reason})
		}
	}
}

// PreserveNonHeadsRemotes preserves any remote-side classification
// whose refname is not under refs/heads/: PR-checkout tooling (hub,
// gh) stores checked-out pull requests under refs/pull/ or similar,
// and those must never be push-deleted even when classified as
// merged or stray.
func (p *TrimPlan) PreserveNonHeadsRemotes() {
	const headsPrefix = "refs/heads/"
	p.preserve("a non-heads remote", func(c ClassifiedBranch) bool {
		return c.IsRemote() && !hasPrefix(c.Remote.RefName, headsPrefix)
	})
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// PreserveBases preserves every classification that corresponds to
// one of the configured base branches: the base's own remote-tracking
// ref, and its conventional local-branch counterpart (e.g. "main"
// alongside "origin/main").
func (p *TrimPlan) PreserveBases(bases []RemoteTrackingBranch) {
	refnames := make(map[string]struct{}, len(bases))
	locals := make(map[LocalBranch]struct{}, len(bases))
	for _, base := range bases {
		refnames[base.RefName()] = struct{}{}
		if local, ok := base.LocalEquivalent(); ok {
			locals[local] = struct{}{}
		}
	}

	p.preserve("it is a base", func(c ClassifiedBranch) bool {
		switch {
		case c.IsLocal():
			_, ok := locals[c.Local]
			return ok
		case c.IsRemote():
			// A remote-side classification matches a base if
			// its tracking-branch form would be one of the
			// base refnames. Since neither direction of that
			// conversion is guaranteed to succeed, compare by
			// (remote, short name) against each base instead.
			for base := range refnames {
				if remoteMatchesBaseRefname(c.Remote, base) {
					return true
				}
			}
			return false
		default:
			return false
		}
	})
}

// remoteMatchesBaseRefname reports whether remote's refname, seen
// through the refs/remotes/<remote>/<rest> convention, is the same
// tracking refname as baseRefname.
func remoteMatchesBaseRefname(remote RemoteBranch, baseRefname string) bool {
	const remotesPrefix = "refs/remotes/"
	if !hasPrefix(baseRefname, remotesPrefix) {
		return false
	}
	want := remotesPrefix + remote.Remote + "/"
	short := trimRefsHeads(remote.RefName)
	return baseRefname == want+short
}

func trimRefsHeads(refname string) string {
	const headsPrefix = "refs/heads/"
	if hasPrefix(refname, headsPrefix) {
		return refname[len(headsPrefix):]
	}
	return refname
}

// PreserveProtected preserves any classification whose refname (in
// either full or short form) matches one of the protected glob
// patterns.
func (p *TrimPlan) PreserveProtected(patterns ProtectedPatterns) {
	if len(patterns) == 0 {
		return
	}
	p.preserve("a protected pattern", func(c ClassifiedBranch) bool {
		switch {
		case c.IsLocal():
			return patterns.Match(c.Local.RefName()) || patterns.Match(c.Local.ShortName())
		case c.IsRemote():
			return patterns.Match(c.Remote.RefName) || patterns.Match(trimRefsHeads(c.Remote.RefName))
		default:
			return false
		}
	})
}

// WorktreeRepository is the narrow repository access worktree
// preservation needs.
type WorktreeRepository interface {
	Worktrees(ctx context.Context) iter.Seq2[*git.WorktreeListItem, error]
}

// PreserveWorktrees preserves any local branch currently checked out
// in any worktree (including the main one), with reason
// "worktree at <path>".
func (p *TrimPlan) PreserveWorktrees(ctx context.Context, repo WorktreeRepository) error {
	checkedOut := make(map[LocalBranch]string)
	for wt, err := range repo.Worktrees(ctx) {
		if err != nil {
			return fmt.Errorf("list worktrees: %w", err)
		}
		if wt.Branch == "" {
			continue
		}
		checkedOut[NewLocalBranchFromShort(wt.Branch)] = wt.Path
	}

	for c := range p.ToDelete {
		if !c.IsLocal() {
			continue
		}
		if path, ok := checkedOut[c.Local]; ok {
			delete(p.ToDelete, c)
			p.Preserved = append(p.Preserved, Preserved{
				Branch: c,
				Reason: fmt.Sprintf("worktree at %s", path),
			})
		}
	}
	return nil
}

// HeadRepository is the narrow repository access HEAD preservation
// needs.
type HeadRepository interface {
	CurrentBranch(ctx context.Context) (string, error)
}

// PreserveHead preserves the branch HEAD currently points to, unless
// allowDetach is set. If HEAD is detached, this is a no-op (there's
// nothing to preserve).
func (p *TrimPlan) PreserveHead(ctx context.Context, repo HeadRepository, allowDetach bool) error {
	if allowDetach {
		return nil
	}

	current, err := repo.CurrentBranch(ctx)
	if errors.Is(err, git.ErrDetachedHead) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("current branch: %w", err)
	}

	head := NewLocalBranchFromShort(current)
	p.preserve("HEAD", func(c ClassifiedBranch) bool {
		return c.IsLocal() && c.Local == head
	})
	return nil
}

// DeleteFilter selects which classification categories are eligible
// for deletion; everything else is preserved with reason "filtered".
type DeleteFilter struct {
	MergedLocal  bool
	MergedRemote bool
	StrayLocal   bool
	StrayRemote  bool
}

// AllCategories selects every classification category.
func AllCategories() DeleteFilter {
	return DeleteFilter{MergedLocal: true, MergedRemote: true, StrayLocal: true, StrayRemote: true}
}

// MergedCategories selects only the two "merged" categories.
func MergedCategories() DeleteFilter {
	return DeleteFilter{MergedLocal: true, MergedRemote: true}
}

// StrayCategories selects only the two "stray" categories.
func StrayCategories() DeleteFilter {
	return DeleteFilter{StrayLocal: true, StrayRemote: true}
}

// LocalCategories selects only local-branch categories.
func LocalCategories() DeleteFilter {
	return DeleteFilter{MergedLocal: true, StrayLocal: true}
}

// RemoteCategories selects only remote-side categories.
func RemoteCategories() DeleteFilter {
	return DeleteFilter{MergedRemote: true, StrayRemote: true}
}

// allows reports whether the filter selects the category k.
func (f DeleteFilter) allows(k Kind) bool {
	switch k {
	case KindMergedLocal:
		return f.MergedLocal
	case KindStrayLocal:
		return f.StrayLocal
	case KindMergedRemote:
		return f.MergedRemote
	case KindStrayRemote:
		return f.StrayRemote
	default:
		return false
	}
}

// ApplyFilter is the final preservation pass: it must run after all
// structural passes (non-heads, bases, protected, worktree, HEAD) so
// that their preservation reasons are reported accurately instead of
// being masked by "filtered".
func (p *TrimPlan) ApplyFilter(filter DeleteFilter) {
	p.preserve("filtered", func(c ClassifiedBranch) bool {
		return !filter.allows(c.Kind)
	})
}
