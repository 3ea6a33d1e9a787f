package git

import (
	"bufio"
	"context"
)

// IsMergedByCherryPick reports whether every commit unique to branch
// (relative to base) has an equivalent patch already present in base,
// per "git rev-list --cherry-pick --right-only --no-merges".
//
// This backs the rebase and squash-merge detection styles: a branch
// whose changes have all been replayed onto base (by rebase, or by a
// single squashed commit) shows no commits on the right-hand side of
// the symmetric difference once cherry-equivalent commits are excluded.
func (r *Repository) IsMergedByCherryPick(ctx context.Context, base, branch string) (bool, error) {
	cmd := r.gitCmd(ctx,
		"rev-list",
		"--cherry-pick",
		"--right-only",
		"--no-merges",
		"--max-count=1",
		base+"..."+branch,
	)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return false, err
	}
	if err := cmd.Start(); err != nil {
		return false, err
	}

	scan := bufio.NewScanner(out)
	hasRemaining := scan.Scan()
	if err := scan.Err(); err != nil {
		_ = cmd.Kill()
		return false, err
	}

	if err := cmd.Wait(); err != nil {
		return false, err
	}

	return !hasRemaining, nil
}
