package secrets

import "context"

// Inline is a literal name→value mapping taken directly from config,
// per spec.md §4.9.
type Inline struct {
	EnvName string
	Values  map[string]string
}

// NewInline creates an Inline provider.
func NewInline(name string, values map[string]string) *Inline {
	return &Inline{EnvName: name, Values: values}
}

// Name implements Provider.
func (p *Inline) Name() string { return p.EnvName }

// ResolveSecrets implements Provider; returns a defensive copy.
func (p *Inline) ResolveSecrets(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(p.Values))
	for k, v := range p.Values {
		out[k] = v
	}
	return out, nil
}
