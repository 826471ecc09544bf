package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/upb/book-feed/app"
	"github.com/upb/book-feed/config"
	"github.com/upb/book-feed/internal/observability"
	"github.com/upb/book-feed/routes"
	"github.com/upb/book-feed/services"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, configErrorMessage(err))
		os.Exit(1)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// configErrorMessage renders a config failure, listing one line per
// invalid setting when validation rejected it.
func configErrorMessage(err error) string {
	if !services.IsValidationError(err) {
		return fmt.Sprintf("failed to load config: %v", err)
	}
	fields, _ := services.GetErrorDetails(err)["fields"].(map[string]string)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("invalid configuration:")
	for _, name := range names {
		b.WriteString("\n  " + fields[name])
	}
	return b.String()
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// newServer builds the HTTP server for cfg without starting it.
func newServer(cfg *config.Config, deps *app.Dependencies) *http.Server {
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           routes.SetupRoutes(deps),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}
	if deps.GraphQL != nil {
		srv.RegisterOnShutdown(deps.GraphQL.Shutdown)
	}
	return srv
}

// run serves until ctx is cancelled, then drains connections.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	srv := newServer(cfg, deps)
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		_ = deps.Close(ctx)
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer cancelFeed()
	go deps.Republisher.Run(feedCtx)

	logger.Info(fmt.Sprintf("Server ready at %s", cfg.Server.HTTPURL()))
	logger.Info(fmt.Sprintf("Subscriptions ready at %s", cfg.Server.SubscriptionsURL()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	cancelFeed()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
	return deps.Close(shutdownCtx)
}
