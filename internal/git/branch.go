package git

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// LocalBranch describes a single local branch.
type LocalBranch struct {
	// Name is the branch's short name (e.g. "feature/foo").
	Name string

	// Worktree is the absolute path of the worktree the branch is
	// checked out in, or empty if the branch is not checked out
	// anywhere.
	Worktree string
}

// LocalBranchesOptions configures LocalBranches.
type LocalBranchesOptions struct {
	// Sort specifies a for-each-ref sort key (e.g. "committerdate").
	// Defaults to refname order if empty.
	Sort string
}

// LocalBranches lists local branches in the repository.
func (r *Repository) LocalBranches(ctx context.Context, opts *LocalBranchesOptions) ([]LocalBranch, error) {
	if opts == nil {
		opts = &LocalBranchesOptions{}
	}

	args := []string{
		"for-each-ref", "refs/heads",
		"--format=%(objectname) %(worktreepath)%00%(refname:short)%00%(symref)",
	}
	if opts.Sort != "" {
		args = append(args, "--sort="+opts.Sort)
	}

	cmd := r.gitCmd(ctx, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("pipe stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start git for-each-ref: %w", err)
	}

	var branches []LocalBranch
	scan := bufio.NewScanner(out)
	for scan.Scan() {
		line := scan.Text()
		if line == "" {
			continue
		}

		rest, name, ok := strings.Cut(line, "\x00")
		if !ok {
			continue
		}
		name, symref, ok := strings.Cut(name, "\x00")
		if !ok {
			continue
		}
		if symref != "" {
			// Symbolic refs under refs/heads aren't real branches.
			continue
		}
		_, worktree, ok := strings.Cut(rest, " ")
		if !ok {
			continue
		}

		branches = append(branches, LocalBranch{
			Name:     name,
			Worktree: worktree,
		})
	}

	if err := scan.Err(); err != nil {
		_ = cmd.Kill()
		return nil, fmt.Errorf("read output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("git for-each-ref: %w", err)
	}

	return branches, nil
}

// ErrDetachedHead indicates that the repository is
// unexpectedly in detached HEAD state.
var ErrDetachedHead = errors.New("in detached HEAD state")

// CurrentBranch reports the current branch name.
// It returns [ErrDetachedHead] if the repository is in detached HEAD state.
func (r *Repository) CurrentBranch(ctx context.Context) (string, error) {
	name, err := r.gitCmd(ctx, "branch", "--show-current").OutputChomp()
	if err != nil {
		return "", fmt.Errorf("git branch --show-current: %w", err)
	}
	if name == "" {
		// Per man git-rev-parse, --show-current returns an empty string
		// if the repository is in detached HEAD state.
		return "", ErrDetachedHead
	}
	return name, nil
}
