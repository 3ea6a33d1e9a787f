package git

import (
	"bufio"
	"context"
	"fmt"
)

// MergedRefs lists references under the given prefix (e.g. "refs/heads" or
// "refs/remotes") whose tip is an ancestor of base, per
// "git for-each-ref --merged".
//
// This backs the merge tracker's bulk seeding step: rather than asking
// "is X merged into base?" once per branch, the tracker asks Git once
// for everything already merged the cheap way (ancestry, no rewriting)
// and only falls back to the patch-id probe for what's left.
func (r *Repository) MergedRefs(ctx context.Context, base, prefix string) ([]string, error) {
	cmd := r.gitCmd(ctx,
		"for-each-ref",
		"--format=%(refname)",
		"--merged="+base,
		prefix,
	)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start git for-each-ref: %w", err)
	}

	var refs []string
	scan := bufio.NewScanner(out)
	for scan.Scan() {
		if line := scan.Text(); line != "" {
			refs = append(refs, line)
		}
	}
	if err := scan.Err(); err != nil {
		_ = cmd.Kill()
		return nil, fmt.Errorf("read output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("git for-each-ref --merged: %w", err)
	}

	return refs, nil
}
