package config

import (
	"fmt"

	"github.com/stacklok/mcp-funnel/pkg/secrets"
)

// BuildSecretsManager instantiates one secrets.Provider per configured
// Spec and composes them into a Manager, in config order (spec.md §4.9:
// later providers override earlier keys on conflict).
func (c *Config) BuildSecretsManager(opts ...secrets.ManagerOption) (*secrets.Manager, error) {
	m := secrets.NewManager(opts...)
	for i, spec := range c.Secrets {
		p, err := secrets.NewProvider(spec)
		if err != nil {
			return nil, fmt.Errorf("secrets[%d] %q: %w", i, spec.Name, err)
		}
		m.AddProvider(p)
	}
	return m, nil
}
