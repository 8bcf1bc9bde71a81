package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/spf13/cobra"

	"muster/internal/authhook"
	"muster/internal/config"
	"muster/internal/domain"
	"muster/internal/httpapi"
	"muster/internal/mcpserver"
	"muster/internal/mcptypes"
	"muster/internal/registry"
	"muster/internal/repository"
	"muster/internal/scheduler"
	"muster/internal/secret"
	"muster/pkg/logging"
)

const (
	serveSubsystem = "Serve"
	shutdownGrace  = 10 * time.Second
)

// defaultStartChild spawns and initializes a child MCP server for the
// scheduler's probe step, the same way httpapi.Server does for live
// sessions.
func defaultStartChild() scheduler.StartChild {
	return func(ctx context.Context, server *domain.McpServer) (*mcpserver.Client, error) {
		timeout := server.EffectiveTimeout(30 * time.Second)
		client, err := mcpserver.Spawn(ctx, server.ID, server.Command, server.Args, server.Env, timeout)
		if err != nil {
			return nil, err
		}
		if _, err := client.Initialize(ctx, mcptypes.Implementation{Name: "muster", Version: "scheduler"}); err != nil {
			return nil, err
		}
		return client, nil
	}
}

func newServeCmd() *cobra.Command {
	var configPath string
	var logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the muster gateway HTTP/SSE listener and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, logLevel)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "./muster.yaml", "path to the gateway config file")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

func runServe(configPath, logLevel string) error {
	logging.InitForCLI(parseLogLevel(logLevel), os.Stdout)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	secretProvider, err := loadOrCreateSecretProvider(cfg.SecretKeyPath)
	if err != nil {
		return fmt.Errorf("load secret provider: %w", err)
	}

	repo, err := repository.NewYAMLStorage(cfg.StorageDir, secretProvider)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	authHook, err := loadAuthHook(cfg.JWTSecretPath)
	if err != nil {
		logging.Warn(serveSubsystem, "no JWT secret configured, auth-required projects will reject every request: %v", err)
		authHook = rejectAllHook{}
	}

	pool := registry.NewChildPool()
	sessions := registry.NewSessionRegistry()

	server := httpapi.NewServer(repo, pool, sessions, cfg.NamespaceSeparator, authHook)
	mux := http.NewServeMux()
	server.Routes(mux)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	worker := scheduler.NewWorker(repo, defaultStartChild())
	go worker.Run(ctx)

	listener, err := gatewayListener(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}

	httpServer := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		worker.Stop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logging.Info(serveSubsystem, "muster gateway listening on %s", listener.Addr())
	if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// gatewayListener prefers a systemd-activated socket (so the gateway can
// be managed as a socket-activated unit without dropping connections
// across restarts), falling back to a plain net.Listen on addr.
func gatewayListener(addr string) (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err == nil && len(listeners) > 0 {
		logging.Info(serveSubsystem, "using %d systemd-activated listener(s)", len(listeners))
		return listeners[0], nil
	}
	return net.Listen("tcp", addr)
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func loadOrCreateSecretProvider(path string) (secret.Provider, error) {
	data, err := os.ReadFile(path)
	if err == nil && len(data) == 32 {
		var key [32]byte
		copy(key[:], data)
		return secret.NewSecretboxProvider(key), nil
	}

	key, err := secret.NewKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dirOf(path), 0o755); err == nil {
		_ = os.WriteFile(path, key[:], 0o600)
	}
	return secret.NewSecretboxProvider(key), nil
}

// rejectAllHook refuses every request; it stands in when no JWT secret is
// configured.
type rejectAllHook struct{}

func (rejectAllHook) Authenticate(r *http.Request) (*authhook.User, error) {
	return nil, &domain.AuthenticationError{Reason: "no JWT secret configured"}
}

func loadAuthHook(path string) (authhook.Hook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return authhook.NewJWTHook(data), nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
