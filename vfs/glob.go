package vfs

import (
	"strings"
)

// matchGlob matches name (a "/"-joined relative path) against pattern,
// supporting "*" (any run within a segment), "?" (one rune), "**" (any
// number of segments), "{a,b,...}" brace alternation, and a leading "!"
// for negation. caseSensitive controls rune case folding.
func matchGlob(pattern, name string, caseSensitive bool) bool {
	negate := strings.HasPrefix(pattern, "!")
	if negate {
		pattern = pattern[1:]
	}
	matched := matchBraces(pattern, name, caseSensitive)
	if negate {
		return !matched
	}
	return matched
}

func matchBraces(pattern, name string, caseSensitive bool) bool {
	start := strings.IndexByte(pattern, '{')
	if start < 0 {
		return matchSegments(pattern, name, caseSensitive)
	}
	end := matchingBrace(pattern, start)
	if end < 0 {
		return matchSegments(pattern, name, caseSensitive)
	}
	prefix := pattern[:start]
	suffix := pattern[end+1:]
	alts := splitTopLevel(pattern[start+1 : end])
	for _, alt := range alts {
		if matchBraces(prefix+alt+suffix, name, caseSensitive) {
			return true
		}
	}
	return false
}

func matchingBrace(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevel(s string) []string {
	var out []string
	depth := 0
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	out = append(out, s[last:])
	return out
}

func matchSegments(pattern, name string, caseSensitive bool) bool {
	if !caseSensitive {
		pattern = strings.ToLower(pattern)
		name = strings.ToLower(name)
	}
	pSegs := strings.Split(pattern, "/")
	nSegs := strings.Split(name, "/")
	return matchSegList(pSegs, nSegs)
}

func matchSegList(pSegs, nSegs []string) bool {
	if len(pSegs) == 0 {
		return len(nSegs) == 0
	}
	if pSegs[0] == "**" {
		if matchSegList(pSegs[1:], nSegs) {
			return true
		}
		if len(nSegs) == 0 {
			return false
		}
		return matchSegList(pSegs, nSegs[1:])
	}
	if len(nSegs) == 0 {
		return false
	}
	if !matchSegment(pSegs[0], nSegs[0]) {
		return false
	}
	return matchSegList(pSegs[1:], nSegs[1:])
}

// matchSegment matches a single path segment against a pattern segment
// containing "*" and "?" wildcards.
func matchSegment(pattern, seg string) bool {
	return matchWildcard([]rune(pattern), []rune(seg))
}

func matchWildcard(pattern, seg []rune) bool {
	if len(pattern) == 0 {
		return len(seg) == 0
	}
	switch pattern[0] {
	case '*':
		if matchWildcard(pattern[1:], seg) {
			return true
		}
		if len(seg) == 0 {
			return false
		}
		return matchWildcard(pattern, seg[1:])
	case '?':
		if len(seg) == 0 {
			return false
		}
		return matchWildcard(pattern[1:], seg[1:])
	default:
		if len(seg) == 0 || seg[0] != pattern[0] {
			return false
		}
		return matchWildcard(pattern[1:], seg[1:])
	}
}
