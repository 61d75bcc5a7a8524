package secrets

import (
	"context"
	"strings"
)

// ProcessEnv filters the ambient process environment, per spec.md §4.9:
// allowlist beats prefix; prefix strips on inclusion; blocklist applied
// last.
type ProcessEnv struct {
	EnvName   string
	Environ   func() []string
	Prefix    string
	Allowlist []string
	Blocklist []string
}

// NewProcessEnv creates a ProcessEnv provider named name, backed by
// environ (typically os.Environ).
func NewProcessEnv(name string, environ func() []string) *ProcessEnv {
	return &ProcessEnv{EnvName: name, Environ: environ}
}

// Name implements Provider.
func (p *ProcessEnv) Name() string { return p.EnvName }

// ResolveSecrets implements Provider.
func (p *ProcessEnv) ResolveSecrets(_ context.Context) (map[string]string, error) {
	blocked := toSet(p.Blocklist)
	allowed := toSet(p.Allowlist)

	out := make(map[string]string)
	for _, kv := range p.Environ() {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			continue
		}
		key, val := kv[:idx], kv[idx+1:]

		switch {
		case len(allowed) > 0:
			if !allowed[key] {
				continue
			}
		case p.Prefix != "":
			if !strings.HasPrefix(key, p.Prefix) {
				continue
			}
			key = strings.TrimPrefix(key, p.Prefix)
		}

		if blocked[key] {
			continue
		}
		out[key] = val
	}
	return out, nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}
