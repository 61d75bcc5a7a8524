// Package validation provides the small set of input checks shared across
// transport configuration and the OAuth authorization server: URL shape,
// server identifier sanitization, and required-field presence.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
)

// serverIDPattern is the security contract for sanitizeServerId: this
// identifier is later used to spawn subprocesses and to build log file
// paths, so it must never contain path separators, shell metacharacters,
// or whitespace.
var serverIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateURL parses s per RFC 3986 and requires an absolute URL with a
// non-empty scheme and host. context is prefixed to any returned error so
// callers can report which field failed.
func ValidateURL(s, context string) error {
	if s == "" {
		return fmt.Errorf("%s: URL must not be empty", context)
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%s: invalid URL %q: %w", context, s, err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%s: URL %q must be absolute", context, s)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: URL %q must have a host", context, s)
	}
	return nil
}

// ValidateURLScheme validates the URL and additionally requires its scheme
// to be one of allowed.
func ValidateURLScheme(s, context string, allowed ...string) error {
	if err := ValidateURL(s, context); err != nil {
		return err
	}
	u, _ := url.Parse(s)
	for _, scheme := range allowed {
		if u.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("%s: URL scheme %q not in allowed set %v", context, u.Scheme, allowed)
}

// SanitizeServerID validates s against the allow-list
// `[A-Za-z0-9._-]+`. This identifier is passed to subprocess spawning and
// log paths, so the regex itself is the security contract — never relax
// it without re-auditing every caller.
func SanitizeServerID(s string) error {
	if s == "" {
		return fmt.Errorf("server id must not be empty")
	}
	if !serverIDPattern.MatchString(s) {
		return fmt.Errorf("server id %q contains characters outside [A-Za-z0-9._-]", s)
	}
	return nil
}

// ValidateRequired ensures every name in fields is present in obj and maps
// to a non-empty (non-zero) value. context is prefixed to the error.
func ValidateRequired(obj map[string]any, fields []string, context string) error {
	for _, f := range fields {
		v, ok := obj[f]
		if !ok || isEmptyValue(v) {
			return fmt.Errorf("%s: required field %q is missing or empty", context, f)
		}
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
