package git

import (
	"context"
	"fmt"
	"strings"

	"go.branchtrim.dev/trim/internal/silog"
	"go.branchtrim.dev/trim/internal/xec"
)

// OpenOptions configures the behavior of Open.
type OpenOptions struct {
	// Log specifies the logger to use for messages.
	// If nil, a no-op logger is used.
	Log *silog.Logger

	// Execer overrides the process execer used to run Git commands.
	// Intended for tests.
	Execer xec.Execer
}

// Open opens the repository at the given directory.
// If dir is empty, the current working directory is used.
//
// Open never creates or modifies the repository: it only resolves its
// root and .git directory.
func Open(ctx context.Context, dir string, opts OpenOptions) (*Repository, error) {
	if opts.Log == nil {
		opts.Log = silog.Nop(&silog.Options{Level: silog.LevelInfo})
	}
	execer := opts.Execer
	if execer == nil {
		execer = xec.DefaultExecer
	}

	out, err := xec.Command(ctx, opts.Log, "git",
		"rev-parse",
		"--show-toplevel",
		"--absolute-git-dir",
	).WithExecer(execer).WithDir(dir).OutputChomp()
	if err != nil {
		return nil, fmt.Errorf("git rev-parse: %w", err)
	}

	root, gitDir, ok := strings.Cut(out, "\n")
	if !ok {
		return nil, fmt.Errorf("unexpected output from git rev-parse: %q", out)
	}

	return newRepository(root, gitDir, opts.Log, execer), nil
}

// Repository is a handle to a Git repository.
//
// Methods on Repository inspect branches, refs, and commit history.
// None of them update a ref, the index, or the worktree; the only
// write is CommitTree, which stores a commit object no ref points to.
type Repository struct {
	root   string
	gitDir string

	log    *silog.Logger
	execer xec.Execer
}

func newRepository(root, gitDir string, log *silog.Logger, execer xec.Execer) *Repository {
	return &Repository{
		root:   root,
		gitDir: gitDir,
		log:    log,
		execer: execer,
	}
}

// RootDir returns the absolute path to the repository's working tree root.
func (r *Repository) RootDir() string {
	return r.root
}

// GitDir returns the absolute path to the repository's .git directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// gitCmd returns an *xec.Cmd that will run git with the given arguments,
// rooted at the repository's working tree.
func (r *Repository) gitCmd(ctx context.Context, args ...string) *xec.Cmd {
	return xec.Command(ctx, r.log, "git", args...).
		WithExecer(r.execer).
		WithDir(r.root)
}
