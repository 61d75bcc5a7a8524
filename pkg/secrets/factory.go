package secrets

import (
	"fmt"
	"os"
)

// Spec is the config-file shape for one provider entry (spec.md §6:
// `secrets: [{provider: process|dotenv|inline, ...}]`).
type Spec struct {
	Name      string            `yaml:"name" json:"name"`
	Provider  Kind              `yaml:"provider" json:"provider"`
	Prefix    string            `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Allowlist []string          `yaml:"allowlist,omitempty" json:"allowlist,omitempty"`
	Blocklist []string          `yaml:"blocklist,omitempty" json:"blocklist,omitempty"`
	Path      string            `yaml:"path,omitempty" json:"path,omitempty"`
	Values    map[string]string `yaml:"values,omitempty" json:"values,omitempty"`
}

// NewProvider constructs the Provider named by spec.Provider.
func NewProvider(spec Spec) (Provider, error) {
	switch spec.Provider {
	case KindProcessEnv:
		return &ProcessEnv{
			EnvName:   spec.Name,
			Environ:   os.Environ,
			Prefix:    spec.Prefix,
			Allowlist: spec.Allowlist,
			Blocklist: spec.Blocklist,
		}, nil
	case KindDotEnv:
		if spec.Path == "" {
			return nil, fmt.Errorf("dotenv provider %q: path is required", spec.Name)
		}
		return NewDotEnv(spec.Name, spec.Path), nil
	case KindInline:
		return NewInline(spec.Name, spec.Values), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProviderKind, spec.Provider)
	}
}

// ErrUnknownProviderKind is returned by NewProvider for an unrecognized
// provider kind.
var ErrUnknownProviderKind = fmt.Errorf("unknown secret provider kind")

// BuildManager constructs a Manager from an ordered list of specs,
// applying opts (e.g. WithTTL) to the resulting Manager.
func BuildManager(specs []Spec, opts ...ManagerOption) (*Manager, error) {
	m := NewManager(opts...)
	for _, spec := range specs {
		p, err := NewProvider(spec)
		if err != nil {
			return nil, err
		}
		m.AddProvider(p)
	}
	return m, nil
}
