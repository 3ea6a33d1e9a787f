// Package trim classifies local branches and their remote counterparts
// into a set of deletion categories ("merged", "stray") and composes
// the resulting classifications, plus a set of preservation rules,
// into a trim plan: the branches and remote refs safe to delete.
//
// Nothing in this package mutates a repository, fetches from a
// network, or deletes a ref. It answers one question ("what can be
// deleted, and why shouldn't the rest be") for a caller that owns the
// actual deletion.
package trim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.branchtrim.dev/trim/internal/cmputil"
	"go.branchtrim.dev/trim/internal/git"
	"go.branchtrim.dev/trim/internal/must"
)

const (
	_localPrefix  = "refs/heads/"
	_remotePrefix = "refs/remotes/"
)

// LocalBranch is a ref under refs/heads/.
type LocalBranch struct {
	refname string
}

// NewLocalBranch builds a LocalBranch from a full refname.
// It panics if refname does not start with "refs/heads/": that
// indicates a programming error in the caller, not recoverable input.
func NewLocalBranch(refname string) LocalBranch {
	must.Bef(strings.HasPrefix(refname, _localPrefix), "not a local branch ref: %q", refname)
	return LocalBranch{refname: refname}
}

// NewLocalBranchFromShort builds a LocalBranch from its short name
// (e.g. "feature/foo", not "refs/heads/feature/foo").
func NewLocalBranchFromShort(name string) LocalBranch {
	return LocalBranch{refname: _localPrefix + name}
}

// RefName returns the branch's full refname.
func (b LocalBranch) RefName() string { return b.refname }

// ShortName returns the branch's name with the refs/heads/ prefix
// removed.
func (b LocalBranch) ShortName() string {
	return strings.TrimPrefix(b.refname, _localPrefix)
}

func (b LocalBranch) String() string { return b.refname }

// IsZero reports whether b is the zero value (no branch).
func (b LocalBranch) IsZero() bool { return cmputil.Zero(b) }

// RemoteTrackingBranch is a ref under refs/remotes/: a locally cached
// view of a remote branch, last updated at fetch time.
type RemoteTrackingBranch struct {
	refname string
}

// NewRemoteTrackingBranch builds a RemoteTrackingBranch from a full
// refname. It panics if refname does not start with "refs/remotes/".
func NewRemoteTrackingBranch(refname string) RemoteTrackingBranch {
	must.Bef(strings.HasPrefix(refname, _remotePrefix), "not a remote-tracking ref: %q", refname)
	return RemoteTrackingBranch{refname: refname}
}

// RefName returns the tracking branch's full refname.
func (b RemoteTrackingBranch) RefName() string { return b.refname }

func (b RemoteTrackingBranch) String() string { return b.refname }

// IsZero reports whether b is the zero value.
func (b RemoteTrackingBranch) IsZero() bool { return cmputil.Zero(b) }

// LocalEquivalent guesses the local branch that a tracking ref of this
// name would correspond to, assuming the conventional
// refs/remotes/<remote>/<branch> layout: the branch name tail becomes
// refs/heads/<branch>. Used only to extend base preservation to a base's
// likely local counterpart (e.g. protect local "main" alongside
// "origin/main"); remote names containing "/" defeat it, same as they'd
// defeat any other tool relying on this layout convention.
func (b RemoteTrackingBranch) LocalEquivalent() (LocalBranch, bool) {
	tail := strings.TrimPrefix(b.refname, _remotePrefix)
	_, rest, ok := strings.Cut(tail, "/")
	if !ok || rest == "" {
		return LocalBranch{}, false
	}
	return NewLocalBranchFromShort(rest), true
}

// RemoteBranch is a branch as it's known on the remote itself,
// addressed as (remote name, refname on that remote). It's obtained by
// contracting a RemoteTrackingBranch through a fetch refspec, or is
// synthesized directly when no tracking ref exists (the PR-checkout
// fallback path; see Classifier).
type RemoteBranch struct {
	Remote  string
	RefName string
}

func (b RemoteBranch) String() string {
	return fmt.Sprintf("%s, %s", b.Remote, b.RefName)
}

// ErrRemoteNotFound indicates that no remote's refspecs could account
// for a given refname: contracting a RemoteTrackingBranch back to a
// RemoteBranch failed. The [Classifier] treats this as "no remote-side
// branch", not a hard failure, and classifies only the local side.
var ErrRemoteNotFound = errors.New("no remote with a matching refspec found")

// RefspecSource looks up the fetch refspecs configured for a remote.
// It is the narrow slice of repository access that identity
// conversions need.
type RefspecSource interface {
	ListRemotes(ctx context.Context) ([]string, error)
	RemoteRefspecs(ctx context.Context, cfg *git.Config, remote, kind string) ([]git.Refspec, error)
}

// ToRemoteBranch contracts a remote-tracking ref back to its
// (remote, refname) form by finding the remote whose fetch refspec's
// destination matches b's refname, then reversing the mapping.
//
// It returns [ErrRemoteNotFound] if no configured remote's fetch
// refspec accounts for b.
func (b RemoteTrackingBranch) ToRemoteBranch(ctx context.Context, src RefspecSource, cfg *git.Config) (RemoteBranch, error) {
	remotes, err := src.ListRemotes(ctx)
	if err != nil {
		return RemoteBranch{}, fmt.Errorf("list remotes: %w", err)
	}

	for _, remote := range remotes {
		refspecs, err := src.RemoteRefspecs(ctx, cfg, remote, "fetch")
		if err != nil {
			return RemoteBranch{}, fmt.Errorf("fetch refspecs for %q: %w", remote, err)
		}

		for _, rs := range refspecs {
			if refname, ok := rs.Unexpand(b.refname); ok {
				return RemoteBranch{Remote: remote, RefName: refname}, nil
			}
		}
	}

	return RemoteBranch{}, fmt.Errorf("%s: %w", b.refname, ErrRemoteNotFound)
}
