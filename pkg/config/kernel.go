package config

import (
	"github.com/stacklok/mcp-funnel/pkg/kernel"
)

// ToKernelConfig converts the parsed config into the shape pkg/kernel.New
// expects. Per-server auth providers are not a recognized config-file
// field (spec.md §6 names only env-var pass-through via servers[].env),
// so every ServerSpec carries a nil AuthProvider.
func (c *Config) ToKernelConfig() kernel.Config {
	servers := make([]kernel.ServerSpec, 0, len(c.Servers))
	for _, s := range c.Servers {
		servers = append(servers, kernel.ServerSpec{ServerConfig: s})
	}
	return kernel.Config{
		Servers:         servers,
		ExposeTools:     c.ExposeTools,
		HideTools:       c.HideTools,
		ExposeCoreTools: c.ExposeCoreTools,
		Overrides:       c.OverrideEntries(),
	}
}
