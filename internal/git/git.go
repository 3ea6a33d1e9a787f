// Package git provides read-only access to a Git repository's history and
// refs through the Git CLI, with a Git library-like interface.
//
// All shell-to-Git interactions used by the trim core should be done
// through this package. The package never mutates a repository: it
// inspects branches, remotes, refs, and commit ancestry so that
// higher-level packages can decide what to delete without deciding
// how.
package git
