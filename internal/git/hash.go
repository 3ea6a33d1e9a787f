package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.branchtrim.dev/trim/internal/xec"
)

// ErrNotExist is returned when a Git object does not exist.
var ErrNotExist = errors.New("does not exist")

// Hash is a 40-character Git object ID.
type Hash string

// ZeroHash is the all-zero object ID.
// It is used to represent the absence of a hash.
const ZeroHash Hash = "0000000000000000000000000000000000000000"

func (h Hash) String() string {
	return string(h)
}

// LogValue reports how the hash should be logged.
func (h Hash) LogValue() slog.Value {
	return slog.StringValue(h.Short())
}

// Short reports the short form of the hash.
func (h Hash) Short() string {
	if len(h) < 7 {
		return string(h)
	}
	return string(h[:7])
}

// IsZero reports whether the hash is the zero hash.
func (h Hash) IsZero() bool {
	// We're not just comparing to ZeroHash
	// to make this also work with abbreviated hashes.
	for _, b := range h {
		if b != '0' {
			return false
		}
	}
	return true
}

// PeelToCommit reports the commit hash of the provided commit-ish.
// It returns [ErrNotExist] if the object does not exist.
func (r *Repository) PeelToCommit(ctx context.Context, ref string) (Hash, error) {
	return r.revParse(ctx, ref+"^{commit}")
}

// PeelToTree reports the tree object at the provided tree-ish.
// It returns [ErrNotExist] if the object does not exist.
func (r *Repository) PeelToTree(ctx context.Context, ref string) (Hash, error) {
	return r.revParse(ctx, ref+"^{tree}")
}

// MergeBase reports the common ancestor of a and b.
// It returns [ErrNotExist] if a and b share no common history.
func (r *Repository) MergeBase(ctx context.Context, a, b string) (Hash, error) {
	s, err := r.gitCmd(ctx, "merge-base", a, b).OutputChomp()
	if err != nil {
		return "", ErrNotExist
	}
	return Hash(s), nil
}

// IsAncestor reports whether a is an ancestor of (or equal to) b.
// Disconnected histories are simply not ancestors, not an error.
func (r *Repository) IsAncestor(ctx context.Context, a, b Hash) bool {
	return r.gitCmd(ctx,
		"merge-base", "--is-ancestor", string(a), string(b),
	).WithStderr(io.Discard).Run() == nil
}

// CommitTree creates a dangling commit object with the given tree and
// parent, using a fixed, deterministic author/committer identity.
//
// It is used to synthesize the probe commit for squash-merge detection
// (see MergeTracker): the commit never touches a ref, so it has no
// effect on the repository's visible history.
func (r *Repository) CommitTree(ctx context.Context, tree, parent Hash, message string) (Hash, error) {
	out, err := r.gitCmd(ctx,
		"commit-tree", string(tree),
		"-p", string(parent),
		"-m", message,
	).
		AppendEnv(
			"GIT_AUTHOR_NAME=branchtrim",
			"GIT_AUTHOR_EMAIL=branchtrim@squash.merge.probe.invalid",
			"GIT_COMMITTER_NAME=branchtrim",
			"GIT_COMMITTER_EMAIL=branchtrim@squash.merge.probe.invalid",
		).
		OutputChomp()
	if err != nil {
		return "", fmt.Errorf("commit-tree: %w", err)
	}
	return Hash(out), nil
}

func (r *Repository) revParse(ctx context.Context, ref string) (Hash, error) {
	out, err := r.revParseCmd(ctx, ref).OutputChomp()
	if err != nil {
		return "", ErrNotExist
	}
	return Hash(out), nil
}

func (r *Repository) revParseCmd(ctx context.Context, ref string) *xec.Cmd {
	return r.gitCmd(ctx, "rev-parse",
		"--verify",         // fail if the object does not exist
		"--quiet",          // no output if object does not exist
		"--end-of-options", // prevent ref from being treated as a flag
		ref,
	)
}
