package kernel

import (
	"context"

	"github.com/stacklok/mcp-funnel/pkg/transport"
	"github.com/stacklok/mcp-funnel/pkg/transport/factory"
)

// Transport is the subset of *transport.Base the kernel depends on. It
// exists so kernel tests can inject a fake without spinning up a real
// wire transport; *transport.Base satisfies it structurally.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	SendRequest(ctx context.Context, method string, params any) ([]byte, error)
	SendNotification(ctx context.Context, method string, params any) error
	Close() error
	OnClose(fn func(err error))
}

// TransportBuilder constructs one upstream transport from config. The
// production builder wraps a *factory.Factory; tests substitute a fake.
type TransportBuilder func(cfg factory.ServerConfig, authProvider transport.AuthProvider, onMessage transport.MessageHandler) (Transport, error)

// factoryBuilder adapts a *factory.Factory to TransportBuilder.
func factoryBuilder(f *factory.Factory) TransportBuilder {
	return func(cfg factory.ServerConfig, authProvider transport.AuthProvider, onMessage transport.MessageHandler) (Transport, error) {
		return f.Build(cfg, authProvider, nil, onMessage)
	}
}
