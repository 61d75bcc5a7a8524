// Package factory implements spec.md §4.8 TransportFactory: config
// normalization (legacy stdio shape or modern tagged config), env-var
// resolution, per-transport validation, default application, and an
// instance cache keyed by config + auth-provider identity + token-storage
// identity.
package factory

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/stacklok/mcp-funnel/pkg/envresolver"
	"github.com/stacklok/mcp-funnel/pkg/transport"
	"github.com/stacklok/mcp-funnel/pkg/validation"
)

// Kind tags a ServerConfig's transport variant.
type Kind string

// The four spec.md §3 TransportConfig variants.
const (
	KindStdio          Kind = "stdio"
	KindSSE            Kind = "sse"
	KindWebSocket      Kind = "websocket"
	KindStreamableHTTP Kind = "streamable-http"
)

// defaultTimeout is applied when a config omits one (spec.md §4.8).
const defaultTimeout = 30 * time.Second

// ServerConfig is the raw, possibly-legacy config for one upstream server.
// Legacy configs set only Command/Args/Env and omit Transport, which this
// factory normalizes to KindStdio.
type ServerConfig struct {
	Name                 string            `yaml:"name" json:"name"`
	Transport            Kind              `yaml:"transport" json:"transport"`
	Command              string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args                 []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env                  map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Framing              transport.Framing `yaml:"framing,omitempty" json:"framing,omitempty"`
	URL                  string            `yaml:"url,omitempty" json:"url,omitempty"`
	Timeout              time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Reconnect            bool              `yaml:"reconnect,omitempty" json:"reconnect,omitempty"`
	PingInterval         time.Duration     `yaml:"pingInterval,omitempty" json:"pingInterval,omitempty"`
	SessionID            string            `yaml:"sessionId,omitempty" json:"sessionId,omitempty"`
	DedicatedEventStream bool              `yaml:"dedicatedEventStream,omitempty" json:"dedicatedEventStream,omitempty"`
}

// normalize fills in the legacy-shape default and applies timeouts.
func (c ServerConfig) normalize() ServerConfig {
	if c.Transport == "" {
		c.Transport = KindStdio
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// IdentityProvider is implemented by auth providers and token storages that
// participate in the cache key, so distinct instances with identical config
// never share a cached transport (spec.md §4.8).
type IdentityProvider interface {
	InstanceID() string
}

// Factory builds and caches Base transports from ServerConfig.
type Factory struct {
	resolver *envresolver.Resolver

	mu    sync.Mutex
	cache map[string]*transport.Base
}

// New creates a Factory. lookup backs the env resolver (typically
// os.LookupEnv, or a secrets.Manager snapshot).
func New(lookup envresolver.Lookup) *Factory {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Factory{
		resolver: envresolver.New(lookup),
		cache:    make(map[string]*transport.Base),
	}
}

// Build resolves, validates, and constructs (or returns a cached) Base
// transport for cfg. authProvider and tokenStorage may be nil; when
// non-nil and IdentityProvider, their InstanceID participates in the cache
// key.
func (f *Factory) Build(cfg ServerConfig, authProvider transport.AuthProvider, tokenStorage IdentityProvider, onMessage transport.MessageHandler) (*transport.Base, error) {
	cfg = cfg.normalize()

	resolved, err := f.resolveConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("server %q: resolve config: %w", cfg.Name, err)
	}

	if err := validation.SanitizeServerID(resolved.Name); err != nil {
		return nil, fmt.Errorf("server %q: %w", cfg.Name, err)
	}
	if err := f.validateByKind(resolved); err != nil {
		return nil, fmt.Errorf("server %q: %w", cfg.Name, err)
	}

	key, err := cacheKey(resolved, authProvider, tokenStorage)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cached, ok := f.cache[key]; ok {
		return cached, nil
	}

	base, err := f.build(resolved, authProvider, onMessage)
	if err != nil {
		return nil, err
	}
	f.cache[key] = base
	return base, nil
}

func (f *Factory) resolveConfig(cfg ServerConfig) (ServerConfig, error) {
	var err error
	if cfg.Command, err = f.resolver.Resolve(cfg.Command); err != nil {
		return cfg, err
	}
	for i, a := range cfg.Args {
		if cfg.Args[i], err = f.resolver.Resolve(a); err != nil {
			return cfg, err
		}
	}
	if cfg.URL, err = f.resolver.Resolve(cfg.URL); err != nil {
		return cfg, err
	}

	merged := make(map[string]string, len(cfg.Env))
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				merged[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	for k, v := range cfg.Env {
		resolvedV, err := f.resolver.Resolve(v)
		if err != nil {
			return cfg, err
		}
		merged[k] = resolvedV
	}
	cfg.Env = merged
	return cfg, nil
}

func (f *Factory) validateByKind(cfg ServerConfig) error {
	switch cfg.Transport {
	case KindStdio:
		if cfg.Command == "" {
			return fmt.Errorf("stdio transport requires a command")
		}
		return nil
	case KindSSE, KindStreamableHTTP:
		return validation.ValidateURLScheme(cfg.URL, string(cfg.Transport), "http", "https")
	case KindWebSocket:
		return validation.ValidateURLScheme(cfg.URL, string(cfg.Transport), "ws", "wss")
	default:
		return fmt.Errorf("unsupported transport kind %q", cfg.Transport)
	}
}

func (f *Factory) build(cfg ServerConfig, authProvider transport.AuthProvider, onMessage transport.MessageHandler) (*transport.Base, error) {
	return transport.NewForConfig(cfg.Name, transport.BuildConfig{
		Kind:                 string(cfg.Transport),
		Command:              cfg.Command,
		Args:                 cfg.Args,
		Env:                  cfg.Env,
		Framing:              cfg.Framing,
		URL:                  cfg.URL,
		Timeout:              cfg.Timeout,
		Reconnect:            cfg.Reconnect,
		PingInterval:         cfg.PingInterval,
		SessionID:            cfg.SessionID,
		DedicatedEventStream: cfg.DedicatedEventStream,
	}, authProvider, onMessage)
}

func cacheKey(cfg ServerConfig, authProvider transport.AuthProvider, tokenStorage IdentityProvider) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config for cache key: %w", err)
	}

	authID := "nil"
	if ip, ok := authProvider.(IdentityProvider); ok {
		authID = ip.InstanceID()
	}
	tokenID := "nil"
	if tokenStorage != nil {
		tokenID = tokenStorage.InstanceID()
	}

	h := sha256.New()
	h.Write(raw)
	h.Write([]byte(authID))
	h.Write([]byte(tokenID))
	return hex.EncodeToString(h.Sum(nil)), nil
}
