// Package secrets implements spec.md §4.9: layered secret resolution with
// precedence ordering and an optional TTL cache. The provider contract
// (getName/resolveSecrets batch resolution) is grounded on the shape of
// the teacher's pkg/secrets package; the per-key GetSecret/SetSecret/
// ListSecrets/Capabilities surface described there does not appear here
// because spec.md's providers resolve whole maps, not single keys.
package secrets

import "context"

// Provider resolves a named batch of secrets, per spec.md §4.9.
type Provider interface {
	Name() string
	ResolveSecrets(ctx context.Context) (map[string]string, error)
}

// Kind tags the provider variant named in config (`provider:
// process|dotenv|inline`, per spec.md §6).
type Kind string

// The three spec.md §4.9 provider kinds.
const (
	KindProcessEnv Kind = "process"
	KindDotEnv     Kind = "dotenv"
	KindInline     Kind = "inline"
)
