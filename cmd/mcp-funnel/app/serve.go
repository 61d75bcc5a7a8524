package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/mcp-funnel/pkg/config"
	"github.com/stacklok/mcp-funnel/pkg/inboundserver"
	"github.com/stacklok/mcp-funnel/pkg/kernel"
	"github.com/stacklok/mcp-funnel/pkg/logger"
	"github.com/stacklok/mcp-funnel/pkg/oauth"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the proxy kernel and OAuth authorization server",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

// runServe implements spec.md §6's startup sequence: load config, build the
// secrets manager (which doubles as the transport factory's env.Lookup,
// since secrets.Manager.Lookup already matches envresolver.Lookup's
// signature), the inbound auth validator, the OAuth provider, and the
// proxy kernel, then serve until a termination signal arrives. Any
// failure along this path is a fatal startup error (spec.md §6 exit code
// 1), surfaced by returning it from RunE.
func runServe() error {
	configPath := viper.GetString("config")
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = &config.Config{}
	}

	secretsManager, err := cfg.BuildSecretsManager()
	if err != nil {
		return fmt.Errorf("build secrets manager: %w", err)
	}
	lookup := envLookup(secretsManager.Lookup)

	validator, err := cfg.InboundAuth.BuildValidator(lookup)
	if err != nil {
		return fmt.Errorf("build inbound auth validator: %w", err)
	}

	oauthProvider := oauth.NewProvider(oauth.NewMemoryStore(), cfg.OAuth.ToOAuthConfig())

	k, err := kernel.New(cfg.ToKernelConfig(), lookup)
	if err != nil {
		return fmt.Errorf("build proxy kernel: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := k.Start(ctx); err != nil {
		return fmt.Errorf("start proxy kernel: %w", err)
	}
	defer func() {
		if err := k.Close(); err != nil {
			logger.Errorf("error closing proxy kernel: %v", err)
		}
	}()

	addr := listenAddr(lookup)
	srv := inboundserver.New(addr, k, validator, oauthProvider)
	return srv.Run(ctx)
}

// envLookup falls back to os.LookupEnv for names the secrets manager
// does not resolve, so servers[].env `${VAR}` references and
// MCP_FUNNEL_AUTH_TOKEN still resolve even when no `secrets:` providers
// are configured.
func envLookup(secretsLookup func(string) (string, bool)) func(string) (string, bool) {
	return func(name string) (string, bool) {
		if v, ok := secretsLookup(name); ok {
			return v, ok
		}
		return os.LookupEnv(name)
	}
}

// listenAddr applies spec.md §6's HOST/PORT environment variables,
// defaulting to all interfaces on 8080.
func listenAddr(lookup func(string) (string, bool)) string {
	host, ok := lookup("HOST")
	if !ok {
		host = ""
	}
	port, ok := lookup("PORT")
	if !ok || port == "" {
		port = "8080"
	}
	return host + ":" + port
}
