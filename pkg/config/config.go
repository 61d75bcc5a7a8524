// Package config loads and validates the funnel's YAML config file
// (spec.md §6 "Config file") and translates its sections into the
// concrete types each subsystem package expects: pkg/transport/factory's
// ServerConfig, pkg/overrides' Entry list, pkg/secrets' Spec list,
// pkg/inboundauth's Validator, pkg/oauth's Config, and pkg/kernel's
// Config.
//
// Following the teacher's own pkg/config/config_test.go pattern, the
// file body is parsed directly with gopkg.in/yaml.v3 rather than through
// viper's Unmarshal path; viper is reserved for cmd/mcp-funnel's CLI flag
// binding (--config, --debug).
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/mcp-funnel/pkg/overrides"
	"github.com/stacklok/mcp-funnel/pkg/secrets"
	"github.com/stacklok/mcp-funnel/pkg/transport/factory"
	"github.com/stacklok/mcp-funnel/pkg/validation"
)

// Config is the root of the funnel's config file, spec.md §6's
// "hierarchical struct with recognized options".
type Config struct {
	Servers []factory.ServerConfig `yaml:"servers,omitempty" json:"servers,omitempty"`

	HideTools       []string `yaml:"hideTools,omitempty" json:"hideTools,omitempty"`
	ExposeTools     []string `yaml:"exposeTools,omitempty" json:"exposeTools,omitempty"`
	ExposeCoreTools []string `yaml:"exposeCoreTools,omitempty" json:"exposeCoreTools,omitempty"`

	// Overrides is `overrides: mapping<glob, ToolOverride>`. A map, not a
	// slice, because that is the config-file shape spec.md §6 names; it
	// is converted to an ordered []overrides.Entry by Overrides().
	Overrides map[string]overrides.Override `yaml:"overrides,omitempty" json:"overrides,omitempty"`

	InboundAuth InboundAuth `yaml:"inboundAuth,omitempty" json:"inboundAuth,omitempty"`
	OAuth       OAuth       `yaml:"oauth,omitempty" json:"oauth,omitempty"`

	Secrets []secrets.Spec `yaml:"secrets,omitempty" json:"secrets,omitempty"`
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate applies spec.md §6's structural requirements: every server
// needs a name and a recognized transport; every override key must
// compile as a name-or-wildcard pattern.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Servers))
	for i := range c.Servers {
		s := &c.Servers[i]
		if err := validation.SanitizeServerID(s.Name); err != nil {
			return fmt.Errorf("servers[%d]: %w", i, err)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("servers[%d]: duplicate server name %q", i, s.Name)
		}
		seen[s.Name] = struct{}{}
		switch s.Transport {
		case "", factory.KindStdio, factory.KindSSE, factory.KindWebSocket, factory.KindStreamableHTTP:
		default:
			return fmt.Errorf("servers[%d] %q: unrecognized transport %q", i, s.Name, s.Transport)
		}
	}
	for key := range c.Overrides {
		if _, err := overrides.CompilePattern(key); err != nil {
			return fmt.Errorf("overrides[%q]: %w", key, err)
		}
	}
	if err := c.InboundAuth.validate(); err != nil {
		return err
	}
	return nil
}

// OverrideEntries converts the config's override map into the ordered
// []overrides.Entry pkg/overrides.Manager expects. Go map iteration is
// randomized, so entries are sorted lexically by key (byte order, in
// which `*` sorts before letters, digits and `_`) to give the exact-beats-
// wildcard / first-wildcard-wins precedence rule (spec.md §4.12) a
// deterministic order across reloads. Exact keys are checked first in the
// manager regardless of their list position; between wildcard keys, this
// lexical order decides which one matches first. The order in which keys
// appear in the config file is not preserved.
func (c *Config) OverrideEntries() []overrides.Entry {
	keys := make([]string, 0, len(c.Overrides))
	for k := range c.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]overrides.Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, overrides.Entry{Key: k, Override: c.Overrides[k]})
	}
	return entries
}
