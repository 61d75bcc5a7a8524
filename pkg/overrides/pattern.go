package overrides

import (
	"regexp"
	"strings"
)

// compileWildcard translates a `*`-wildcard pattern into an anchored
// regexp, escaping every other regex metacharacter so a tool name like
// "fetch.get" is matched literally and only the author's `*` behaves as a
// wildcard.
func compileWildcard(pattern string) (*regexp.Regexp, error) {
	segments := strings.Split(pattern, "*")
	for i, s := range segments {
		segments[i] = regexp.QuoteMeta(s)
	}
	return regexp.Compile("^" + strings.Join(segments, ".*") + "$")
}

// CompilePattern exposes compileWildcard to other packages that need the
// same `*`-wildcard-over-literal-text matching (the kernel's
// exposeTools/hideTools filters, spec.md §4.14).
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	return compileWildcard(pattern)
}
