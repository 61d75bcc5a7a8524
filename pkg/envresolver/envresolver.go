// Package envresolver resolves `${VAR}` / `${VAR:default}` patterns inside
// strings, with depth and cycle guards, for use by the transport factory
// and secret providers when materializing config values.
package envresolver

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxDepth bounds recursive expansion when a resolved value itself
// contains another pattern.
const DefaultMaxDepth = 10

// pattern matches ${NAME} or ${NAME:default}. NAME is case-insensitive on
// match but canonicalized to uppercase before lookup.
var pattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:([^}]*))?\}`)

// looksLikePattern is used by containsPattern as a fast pre-check before
// any regexp work.
var looksLikePattern = regexp.MustCompile(`\$\{`)

// Lookup resolves a variable name to its raw value. Implementations are
// typically backed by os.Environ or a secrets.Manager snapshot.
type Lookup func(name string) (string, bool)

// Resolver resolves env-var patterns inside strings.
type Resolver struct {
	lookup   Lookup
	maxDepth int
	strict   bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(d int) Option {
	return func(r *Resolver) { r.maxDepth = d }
}

// WithStrict controls strict mode (default true): a missing variable with
// no default raises MissingVariable. In non-strict mode the pattern is
// left literal.
func WithStrict(strict bool) Option {
	return func(r *Resolver) { r.strict = strict }
}

// New creates a Resolver backed by lookup.
func New(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{lookup: lookup, maxDepth: DefaultMaxDepth, strict: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ContainsPattern is a fast pre-check for the presence of `${`.
func ContainsPattern(s string) bool {
	return looksLikePattern.MatchString(s)
}

// Resolve expands all `${NAME}`/`${NAME:default}` patterns in s.
func (r *Resolver) Resolve(s string) (string, error) {
	return r.resolveWithPath(s, nil, 0)
}

func (r *Resolver) resolveWithPath(s string, visited []string, depth int) (string, error) {
	if !ContainsPattern(s) {
		return s, nil
	}
	if depth >= r.maxDepth {
		return "", &MaxDepthExceededError{MaxDepth: r.maxDepth}
	}

	var resolveErr error
	out := pattern.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}
		groups := pattern.FindStringSubmatch(match)
		name := strings.ToUpper(groups[1])
		hasDefault := groups[2] != ""
		def := groups[3]

		for _, v := range visited {
			if v == name {
				resolveErr = &CircularReferenceError{Name: name}
				return match
			}
		}

		raw, ok := r.lookup(name)
		if !ok {
			if hasDefault {
				raw = def
			} else if r.strict {
				resolveErr = &MissingVariableError{Name: name}
				return match
			} else {
				return match
			}
		}

		resolved, err := r.resolveWithPath(raw, append(append([]string{}, visited...), name), depth+1)
		if err != nil {
			resolveErr = err
			return match
		}
		return resolved
	})

	if resolveErr != nil {
		return "", resolveErr
	}
	return out, nil
}

// MaxDepthExceededError indicates expansion recursed past MaxDepth.
type MaxDepthExceededError struct{ MaxDepth int }

func (e *MaxDepthExceededError) Error() string {
	return fmt.Sprintf("env resolution exceeded max depth (%d)", e.MaxDepth)
}

// CircularReferenceError indicates a variable referenced itself, directly
// or transitively, during expansion.
type CircularReferenceError struct{ Name string }

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular reference detected for variable %q", e.Name)
}

// MissingVariableError indicates a strict-mode lookup found no value and
// no default was supplied.
type MissingVariableError struct{ Name string }

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing required variable %q", e.Name)
}

// InvalidPatternError indicates a `${...}` sequence that does not match
// the NAME grammar `[A-Za-z_][A-Za-z0-9_]*`.
type InvalidPatternError struct{ Raw string }

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid variable pattern %q", e.Raw)
}

// invalidBrace matches a `${...}` that pattern did not already match, i.e.
// one whose NAME fails the grammar.
var invalidBrace = regexp.MustCompile(`\$\{[^}]*\}`)

// Validate reports an InvalidPatternError for any `${...}` sequence in s
// that does not conform to the NAME grammar, without resolving anything.
func Validate(s string) error {
	for _, m := range invalidBrace.FindAllString(s, -1) {
		if !pattern.MatchString(m) {
			return &InvalidPatternError{Raw: m}
		}
	}
	return nil
}
