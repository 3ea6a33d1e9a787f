package trim

import (
	"context"
	"errors"
	"fmt"

	"go.branchtrim.dev/trim/internal/silog"
)

// Kind discriminates the four variants of [ClassifiedBranch].
type Kind int

// Supported classifications. Merged variants mean "this branch's
// commits are already in the base"; Stray variants mean "this
// branch's counterpart vanished, or diverged from what should have
// been the same commit after a merge."
const (
	KindMergedLocal Kind = iota
	KindStrayLocal
	KindMergedRemote
	KindStrayRemote
)

func (k Kind) String() string {
	switch k {
	case KindMergedLocal:
		return "merged-local"
	case KindStrayLocal:
		return "stray-local"
	case KindMergedRemote:
		return "merged-remote"
	case KindStrayRemote:
		return "stray-remote"
	default:
		return "unknown"
	}
}

// ClassifiedBranch is a single deletion-candidate verdict: a local
// branch or a remote-side branch, tagged with why it's a candidate.
//
// It's a comparable value (safe as a map key) so that accumulating
// classifications across branches and bases naturally deduplicates by
// value, regardless of discovery order.
type ClassifiedBranch struct {
	Kind   Kind
	Local  LocalBranch  // set when Kind is KindMergedLocal or KindStrayLocal
	Remote RemoteBranch // set when Kind is KindMergedRemote or KindStrayRemote
}

// MergedLocal builds a KindMergedLocal classification.
func MergedLocal(b LocalBranch) ClassifiedBranch {
	return ClassifiedBranch{Kind: KindMergedLocal, Local: b}
}

// StrayLocal builds a KindStrayLocal classification.
func StrayLocal(b LocalBranch) ClassifiedBranch {
	return ClassifiedBranch{Kind: KindStrayLocal, Local: b}
}

// MergedRemote builds a KindMergedRemote classification.
func MergedRemote(b RemoteBranch) ClassifiedBranch {
	return ClassifiedBranch{Kind: KindMergedRemote, Remote: b}
}

// StrayRemote builds a KindStrayRemote classification.
func StrayRemote(b RemoteBranch) ClassifiedBranch {
	return ClassifiedBranch{Kind: KindStrayRemote, Remote: b}
}

// IsLocal reports whether c classifies a local branch.
func (c ClassifiedBranch) IsLocal() bool {
	return c.Kind == KindMergedLocal || c.Kind == KindStrayLocal
}

// IsRemote reports whether c classifies a remote-side branch.
func (c ClassifiedBranch) IsRemote() bool {
	return c.Kind == KindMergedRemote || c.Kind == KindStrayRemote
}

// IsMerged reports whether c is one of the two "merged" variants.
func (c ClassifiedBranch) IsMerged() bool {
	return c.Kind == KindMergedLocal || c.Kind == KindMergedRemote
}

// Classifier decides, for a single (base, local branch) pair, what
// [ClassifiedBranch] values (zero or more) that pair produces.
type Classifier struct {
	Tracker  *MergeTracker
	Resolver *UpstreamResolver
	Log      *silog.Logger
}

// Classify classifies branch relative to base.
//
// It returns no classifications (nil, nil) when the branch is "alive":
// unmerged with an existing, unmerged upstream, or with no upstream
// configured at all. An unmerged branch whose upstream is gone is
// classified StrayLocal.
func (c *Classifier) Classify(ctx context.Context, base RemoteTrackingBranch, branch LocalBranch) ([]ClassifiedBranch, error) {
	localMerged, err := c.Tracker.CheckAndTrack(ctx, base.RefName(), branch.RefName())
	if err != nil {
		return nil, fmt.Errorf("check local %s: %w", branch, err)
	}

	status, err := c.Resolver.GetFetchUpstream(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("resolve fetch upstream for %s: %w", branch, err)
	}

	if upstream, ok := status.Exists(); ok {
		return c.classifyPrimary(ctx, base, branch, localMerged, upstream)
	}

	return c.classifyFallback(ctx, branch, localMerged)
}

// classifyPrimary handles the case where branch has a fetch upstream
// that still exists locally, combining the branch's own merged state
// with its upstream's.
func (c *Classifier) classifyPrimary(
	ctx context.Context, base RemoteTrackingBranch, branch LocalBranch, localMerged bool, upstream RemoteTrackingBranch,
) ([]ClassifiedBranch, error) {
	upstreamRef, err := upstream.ToRemoteBranch(ctx, c.Resolver.Repo, c.Resolver.Cfg)
	if err != nil && !errors.Is(err, ErrRemoteNotFound) {
		return nil, fmt.Errorf("resolve remote branch for %s: %w", upstream, err)
	}
	hasRemoteBranch := err == nil

	switch {
	case localMerged:
		result := []ClassifiedBranch{MergedLocal(branch)}
		if !hasRemoteBranch {
			return result, nil
		}
		upstreamMerged, err := c.upstreamMerged(ctx, base, upstream)
		if err != nil {
			return nil, err
		}
		if upstreamMerged {
			c.Log.Debug("fetch upstream is merged, but forgot to delete", "branch", branch.ShortName())
			result = append(result, MergedRemote(upstreamRef))
		} else {
			c.Log.Debug("fetch upstream is not merged", "branch", branch.ShortName())
			result = append(result, StrayRemote(upstreamRef))
		}
		return result, nil

	default:
		upstreamMerged, err := c.upstreamMerged(ctx, base, upstream)
		if err != nil {
			return nil, err
		}
		if !upstreamMerged {
			// Both sides alive.
			return nil, nil
		}

		c.Log.Debug("upstream is merged, but the local strays", "branch", branch.ShortName())
		result := []ClassifiedBranch{StrayLocal(branch)}
		if hasRemoteBranch {
			result = append(result, MergedRemote(upstreamRef))
		}
		return result, nil
	}
}

// upstreamMerged reports whether upstream is merged into base, never
// against the local branch itself.
func (c *Classifier) upstreamMerged(ctx context.Context, base RemoteTrackingBranch, upstream RemoteTrackingBranch) (bool, error) {
	merged, err := c.Tracker.CheckAndTrack(ctx, base.RefName(), upstream.RefName())
	if err != nil {
		return false, fmt.Errorf("check upstream %s: %w", upstream, err)
	}
	return merged, nil
}

// classifyFallback handles branches whose fetch upstream could not be
// resolved to an existing tracking ref: either no upstream was ever
// configured (truly a local-only branch, not classified at all), or
// branch.<name>.remote names something that isn't a configured remote
// (the PR-checkout pattern), or the tracking ref its fetch refspec maps
// to no longer exists (a pruned tracking ref). In both latter cases the classifier falls back
// to the raw config values plus the prefetched remote-heads snapshot.
func (c *Classifier) classifyFallback(ctx context.Context, branch LocalBranch, localMerged bool) ([]ClassifiedBranch, error) {
	remote, merge, ok, err := c.Resolver.RawFetchConfig(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("raw fetch config for %s: %w", branch, err)
	}
	if !ok {
		// No upstream was ever configured for this branch: it's
		// simply a local-only branch, not a deletion candidate.
		return nil, nil
	}

	heads := c.Resolver.RemoteHeadsPerURL[remote]
	_, upstreamExists := heads[merge]

	switch {
	case upstreamExists && localMerged:
		c.Log.Debug("merged local, merged remote: forgot to delete", "branch", branch.ShortName())
		return []ClassifiedBranch{
			MergedLocal(branch),
			MergedRemote(RemoteBranch{Remote: remote, RefName: merge}),
		}, nil
	case localMerged:
		c.Log.Debug("merged local: branch is merged and deleted upstream", "branch", branch.ShortName())
		return []ClassifiedBranch{MergedLocal(branch)}, nil
	case !upstreamExists:
		c.Log.Debug("branch is not merged but its upstream is gone", "branch", branch.ShortName())
		return []ClassifiedBranch{StrayLocal(branch)}, nil
	default:
		return nil, nil
	}
}
