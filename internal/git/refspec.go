package git

import "strings"

// Refspec is a Git refspec of the form "[+]<src>[:<dst>]".
//
// Both src and dst may contain at most one '*', which matches any
// string (including additional path components). When present, the
// same substitution is applied on both sides: whatever the '*' in src
// captures is substituted into the '*' in dst, and vice versa.
type Refspec string

// Force reports whether the refspec has the force-update ("+") prefix.
func (rs Refspec) Force() bool {
	return strings.HasPrefix(string(rs), "+")
}

// Src returns the source pattern of the refspec, with any force prefix
// removed.
func (rs Refspec) Src() string {
	src, _ := rs.split()
	return src
}

// Dst returns the destination pattern of the refspec, or an empty
// string if the refspec has no destination.
func (rs Refspec) Dst() string {
	_, dst := rs.split()
	return dst
}

func (rs Refspec) split() (src, dst string) {
	s := strings.TrimPrefix(string(rs), "+")
	src, dst, _ = strings.Cut(s, ":")
	return src, dst
}

// Valid reports whether the refspec obeys Git's star-count constraint:
// each side has at most one '*', and if either side has one, so does
// the other. A refspec that fails this (more than one '*' on a side,
// or a star on only one side) can't be expanded and must be skipped by
// callers rather than silently mismatched.
func (rs Refspec) Valid() bool {
	src, dst := rs.split()
	srcStars, dstStars := strings.Count(src, "*"), strings.Count(dst, "*")
	if srcStars > 1 || dstStars > 1 {
		return false
	}
	if dst != "" && srcStars != dstStars {
		return false
	}
	return true
}

// Matches reports whether ref matches the refspec's source pattern.
func (rs Refspec) Matches(ref string) bool {
	if !rs.Valid() {
		return false
	}
	_, ok := matchGlob(rs.Src(), ref)
	return ok
}

// Expand maps a ref that matches the refspec's source pattern to the
// corresponding destination ref, substituting the wildcard capture (if
// any). It returns false if ref does not match the source pattern, if
// the refspec has no destination, or if the refspec has more than one
// '*' on a side (an invalid refspec; callers should log and skip it).
func (rs Refspec) Expand(ref string) (string, bool) {
	if !rs.Valid() {
		return "", false
	}
	dst := rs.Dst()
	if dst == "" {
		return "", false
	}
	capture, ok := matchGlob(rs.Src(), ref)
	if !ok {
		return "", false
	}
	return expandGlob(dst, capture), true
}

// Unexpand maps a ref that matches the refspec's destination pattern
// back to the corresponding source ref. It is the inverse of Expand,
// used to recover the upstream branch name a remote-tracking ref was
// created from.
func (rs Refspec) Unexpand(ref string) (string, bool) {
	if !rs.Valid() {
		return "", false
	}
	dst := rs.Dst()
	if dst == "" {
		return "", false
	}
	capture, ok := matchGlob(dst, ref)
	if !ok {
		return "", false
	}
	return expandGlob(rs.Src(), capture), true
}

// matchGlob matches ref against a pattern containing at most one '*'.
// If the pattern matches, it returns the substring captured by '*'. A
// '*' must capture at least one character; an empty capture is not a
// match (mirrors Git's own refspec matching).
func matchGlob(pattern, ref string) (capture string, ok bool) {
	if pattern == "" {
		return "", false
	}

	star := strings.IndexByte(pattern, '*')
	if star == -1 {
		return "", pattern == ref
	}

	prefix, suffix := pattern[:star], pattern[star+1:]
	if len(ref) <= len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(ref, prefix) || !strings.HasSuffix(ref, suffix) {
		return "", false
	}
	return ref[len(prefix) : len(ref)-len(suffix)], true
}

// expandGlob substitutes capture into the '*' of pattern, if present.
func expandGlob(pattern, capture string) string {
	star := strings.IndexByte(pattern, '*')
	if star == -1 {
		return pattern
	}
	return pattern[:star] + capture + pattern[star+1:]
}
