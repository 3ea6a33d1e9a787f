package trim

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.branchtrim.dev/trim/internal/git"
	"go.branchtrim.dev/trim/internal/maputil"
	"go.branchtrim.dev/trim/internal/must"
	"go.branchtrim.dev/trim/internal/silog"
)

// GitRepository is the slice of repository access that
// [UpstreamResolver] and the rest of this package need. It is
// satisfied by [*git.Repository].
type GitRepository interface {
	ListRemotes(ctx context.Context) ([]string, error)
	RemoteRefspecs(ctx context.Context, cfg *git.Config, remote, kind string) ([]git.Refspec, error)
	ListRemoteRefs(ctx context.Context, remote string, opts *git.ListRemoteRefsOptions) iter.Seq2[git.RemoteRef, error]
	PeelToCommit(ctx context.Context, ref string) (git.Hash, error)
}

var _ GitRepository = (*git.Repository)(nil)
var _ RefspecSource = (*git.Repository)(nil)

// RemoteTrackingBranchStatus is a three-variant result of resolving a
// local branch's upstream: it either exists locally (the remote was
// fetched since), is configured but gone (pruned), or was never
// configured at all.
type RemoteTrackingBranchStatus struct {
	kind    statusKind
	branch  RemoteTrackingBranch
	refname string // set when kind == statusGone
}

type statusKind int

const (
	statusNone statusKind = iota
	statusExists
	statusGone
)

// None reports that no upstream was configured.
func (s RemoteTrackingBranchStatus) None() bool { return s.kind == statusNone }

// Exists reports whether the upstream is configured and still present
// locally, returning it if so.
func (s RemoteTrackingBranchStatus) Exists() (RemoteTrackingBranch, bool) {
	return s.branch, s.kind == statusExists
}

// Gone reports whether the upstream was configured but the tracking
// ref it would resolve to no longer exists, returning that refname if
// so.
func (s RemoteTrackingBranchStatus) Gone() (string, bool) {
	return s.refname, s.kind == statusGone
}

// UpstreamResolver maps local branches to their fetch and push
// upstreams via Git configuration and refspec expansion.
type UpstreamResolver struct {
	Repo GitRepository
	Cfg  *git.Config
	Log  *silog.Logger

	// RemoteHeadsPerURL caches every ref git ls-remote lists (not
	// only refs/heads/) for a remote
	// whose value in branch.<name>.remote is not itself a
	// configured remote (the PR-checkout-tool pattern, where the
	// "remote" is actually a local URL). Populated once per run by
	// the [Driver] before classification begins; see
	// [UpstreamResolver.PrefetchRemoteHeads].
	RemoteHeadsPerURL map[string]map[string]struct{}
}

// GetFetchUpstream resolves local's fetch upstream from
// branch.<name>.remote and branch.<name>.merge.
func (u *UpstreamResolver) GetFetchUpstream(ctx context.Context, local LocalBranch) (RemoteTrackingBranchStatus, error) {
	remote, merge, ok, err := u.RawFetchConfig(ctx, local)
	if err != nil {
		return RemoteTrackingBranchStatus{}, err
	}
	if !ok {
		return RemoteTrackingBranchStatus{}, nil
	}

	return u.resolveTracking(ctx, remote, merge)
}

// RawFetchConfig reads the unresolved fetch configuration for local:
// the value of branch.<name>.remote and branch.<name>.merge. ok is
// false if either key is unset.
func (u *UpstreamResolver) RawFetchConfig(ctx context.Context, local LocalBranch) (remote, merge string, ok bool, err error) {
	name := local.ShortName()

	remote, err = u.Cfg.Get(ctx, git.ConfigKey(fmt.Sprintf("branch.%s.remote", name)))
	if errors.Is(err, git.ErrConfigNotSet) {
		return "", "", false, nil
	} else if err != nil {
		return "", "", false, fmt.Errorf("branch.%s.remote: %w", name, err)
	}

	merge, err = u.Cfg.Get(ctx, git.ConfigKey(fmt.Sprintf("branch.%s.merge", name)))
	if errors.Is(err, git.ErrConfigNotSet) {
		return "", "", false, nil
	} else if err != nil {
		return "", "", false, fmt.Errorf("branch.%s.merge: %w", name, err)
	}

	if !strings.HasPrefix(merge, "refs/") {
		return "", "", false, fmt.Errorf("branch.%s.merge must start with refs/, got %q", name, merge)
	}

	return remote, merge, true, nil
}

// resolveTracking expands mergeRef through remote's fetch refspecs and
// reports whether the resulting tracking ref exists.
func (u *UpstreamResolver) resolveTracking(ctx context.Context, remote, mergeRef string) (RemoteTrackingBranchStatus, error) {
	refspecs, err := u.Repo.RemoteRefspecs(ctx, u.Cfg, remote, "fetch")
	if err != nil {
		return RemoteTrackingBranchStatus{}, fmt.Errorf("fetch refspecs for %q: %w", remote, err)
	}

	for _, rs := range refspecs {
		if !rs.Valid() {
			u.Log.Warn("skipping refspec with mismatched star count", "remote", remote, "refspec", rs)
			continue
		}

		expanded, ok := rs.Expand(mergeRef)
		if !ok {
			continue
		}

		if _, err := u.Repo.PeelToCommit(ctx, expanded); err != nil {
			if errors.Is(err, git.ErrNotExist) {
				return RemoteTrackingBranchStatus{kind: statusGone, refname: expanded}, nil
			}
			return RemoteTrackingBranchStatus{}, fmt.Errorf("peel %s: %w", expanded, err)
		}

		return RemoteTrackingBranchStatus{
			kind:   statusExists,
			branch: NewRemoteTrackingBranch(expanded),
		}, nil
	}

	// No refspec maps mergeRef. An unconfigured remote (e.g. a bare
	// URL used as the value of branch.<name>.remote) lands here too:
	// it has no refspecs to expand through.
	return RemoteTrackingBranchStatus{}, nil
}

// PushDefault mirrors Git's push.default configuration values that
// affect how a branch's push upstream is computed.
type PushDefault int

// Supported push.default values. Nothing and Matching parse
// successfully (they're real Git settings) but [UpstreamResolver]
// rejects them at resolution time with [ErrUnsupportedPushDefault]:
// computing their push ref depends on the full set of local/remote
// branches, not a single branch's config, which is out of scope here.
const (
	PushDefaultSimple PushDefault = iota
	PushDefaultCurrent
	PushDefaultUpstream
	PushDefaultTracking
	PushDefaultNothing
	PushDefaultMatching
)

func (p PushDefault) String() string {
	switch p {
	case PushDefaultSimple:
		return "simple"
	case PushDefaultCurrent:
		return "current"
	case PushDefaultUpstream:
		return "upstream"
	case PushDefaultTracking:
		return "tracking"
	case PushDefaultNothing:
		return "nothing"
	case PushDefaultMatching:
		return "matching"
	default:
		return "unknown"
	}
}

// ParsePushDefault parses a raw push.default config value.
// It panics on a value Git itself would reject: that's a config Git
// would never have accepted in the first place, and not this
// package's job to validate.
func ParsePushDefault(s string) PushDefault {
	switch s {
	case "", "simple":
		return PushDefaultSimple
	case "current":
		return PushDefaultCurrent
	case "upstream", "tracking":
		return PushDefaultUpstream
	case "nothing":
		return PushDefaultNothing
	case "matching":
		return PushDefaultMatching
	default:
		must.Failf("unrecognized push.default value: %q", s)
		panic("unreachable")
	}
}

// ErrUnsupportedPushDefault is returned by [UpstreamResolver.GetPushUpstream]
// when push.default is "nothing" or "matching": resolving the push ref
// for either requires reasoning about every branch at once, which this
// package's per-branch resolver does not attempt.
var ErrUnsupportedPushDefault = errors.New("unsupported push.default value")

// GetPushUpstream resolves local's push upstream: the tracking ref
// that a `git push` of local would update, given the repository's
// configured push remote and push.default behavior.
func (u *UpstreamResolver) GetPushUpstream(ctx context.Context, local LocalBranch, pushDefault PushDefault) (RemoteTrackingBranchStatus, error) {
	remote, err := u.pushRemote(ctx, local)
	if err != nil {
		return RemoteTrackingBranchStatus{}, err
	}
	if remote == "" {
		return RemoteTrackingBranchStatus{}, nil
	}

	pushRefspecs, err := u.Repo.RemoteRefspecs(ctx, u.Cfg, remote, "push")
	if err != nil {
		return RemoteTrackingBranchStatus{}, fmt.Errorf("push refspecs for %q: %w", remote, err)
	}

	var refOnRemote string
	for _, rs := range pushRefspecs {
		if !rs.Valid() {
			u.Log.Warn("skipping refspec with mismatched star count", "remote", remote, "refspec", rs)
			continue
		}
		if expanded, ok := rs.Expand(local.RefName()); ok {
			refOnRemote = expanded
			break
		}
	}

	if refOnRemote == "" {
		switch pushDefault {
		case PushDefaultCurrent:
			refOnRemote = local.RefName()
		case PushDefaultSimple, PushDefaultUpstream, PushDefaultTracking:
			_, merge, ok, err := u.RawFetchConfig(ctx, local)
			if err != nil {
				return RemoteTrackingBranchStatus{}, err
			}
			if !ok || merge == "" {
				u.Log.Warn("branch has no upstream branch", "branch", local.ShortName())
				return RemoteTrackingBranchStatus{}, nil
			}
			refOnRemote = merge
		case PushDefaultNothing, PushDefaultMatching:
			return RemoteTrackingBranchStatus{}, fmt.Errorf("%w: %v", ErrUnsupportedPushDefault, pushDefault)
		default:
			must.Failf("unrecognized push default: %v", pushDefault)
		}
	}

	return u.resolveTracking(ctx, remote, refOnRemote)
}

func (u *UpstreamResolver) pushRemote(ctx context.Context, local LocalBranch) (string, error) {
	name := local.ShortName()

	remote, err := u.Cfg.Get(ctx, git.ConfigKey(fmt.Sprintf("branch.%s.pushRemote", name)))
	if err == nil {
		return remote, nil
	} else if !errors.Is(err, git.ErrConfigNotSet) {
		return "", fmt.Errorf("branch.%s.pushRemote: %w", name, err)
	}

	remote, err = u.Cfg.Get(ctx, git.ConfigKey("remote.pushDefault"))
	if err == nil {
		return remote, nil
	} else if !errors.Is(err, git.ErrConfigNotSet) {
		return "", fmt.Errorf("remote.pushDefault: %w", err)
	}

	remote, _, ok, err := u.RawFetchConfig(ctx, local)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return remote, nil
}

// PrefetchRemoteHeads populates RemoteHeadsPerURL for every local
// branch whose branch.<name>.remote value does not name a configured
// remote (so RemoteRefspecs for it will never resolve anything): this
// is the `hub`/PR-checkout pattern, where the "remote" is a raw URL.
//
// It queries each such URL once via `git ls-remote`, regardless of how
// many branches reference it.
func (u *UpstreamResolver) PrefetchRemoteHeads(ctx context.Context, locals []LocalBranch) error {
	configuredRemotes := make(map[string]struct{})
	remotes, err := u.Repo.ListRemotes(ctx)
	if err != nil {
		return fmt.Errorf("list remotes: %w", err)
	}
	for _, r := range remotes {
		configuredRemotes[r] = struct{}{}
	}

	urls := make(map[string]struct{})
	for _, local := range locals {
		remote, _, ok, err := u.RawFetchConfig(ctx, local)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, isRemote := configuredRemotes[remote]; isRemote {
			continue
		}
		urls[remote] = struct{}{}
	}

	if u.RemoteHeadsPerURL == nil {
		u.RemoteHeadsPerURL = make(map[string]map[string]struct{}, len(urls))
	}

	for _, url := range maputil.Keys(urls) {
		heads := make(map[string]struct{})
		for ref, err := range u.Repo.ListRemoteRefs(ctx, url, nil) {
			if err != nil {
				return fmt.Errorf("ls-remote %s: %w", url, err)
			}
			heads[ref.Name] = struct{}{}
		}
		u.RemoteHeadsPerURL[url] = heads
		u.Log.Debug("prefetched remote heads", "url", url, "count", len(heads))
	}

	return nil
}
