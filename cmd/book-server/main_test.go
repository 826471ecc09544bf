package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/book-feed/app"
	"github.com/upb/book-feed/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SERVER_HOST", "")
	t.Setenv("PORT", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := config.New(context.Background())
	require.NoError(t, err)
	return cfg
}

// freePort reserves an ephemeral port and releases it for the server.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Observability.LogLevel = "info"
		cfg.Observability.LogFormat = "json"

		logger, err := initLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Observability.LogLevel = "debug"
		cfg.Observability.LogFormat = "console"

		logger, err := initLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Observability.LogLevel = "invalid"

		logger, err := initLogger(cfg)
		assert.Error(t, err)
		assert.Nil(t, logger)
	})
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t)
	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	srv := newServer(cfg, deps)
	assert.Equal(t, "0.0.0.0:4100", srv.Addr)
	assert.Equal(t, cfg.Server.ReadTimeout, srv.ReadHeaderTimeout)
	assert.NotNil(t, srv.Handler)
}

func TestRun_LogsReadyAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zap.New(core)) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Server.Address() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, 1, logs.FilterMessage("Server ready at "+cfg.Server.HTTPURL()).Len())
	assert.Equal(t, 1, logs.FilterMessage("Subscriptions ready at "+cfg.Server.SubscriptionsURL()).Len())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRun_ListenFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = l.Addr().(*net.TCPAddr).Port

	core, logs := observer.New(zapcore.InfoLevel)
	err = run(context.Background(), cfg, zap.New(core))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on")
	assert.Zero(t, logs.FilterMessageSnippet("ready at").Len(), "nothing is announced before the port is bound")
}

func TestConfigErrorMessage(t *testing.T) {
	t.Run("validation failure lists fields", func(t *testing.T) {
		cfg := &config.Config{Environment: "test"}
		msg := configErrorMessage(fmt.Errorf("config validation failed: %w", cfg.Validate()))

		assert.True(t, strings.HasPrefix(msg, "invalid configuration:"))
		assert.Contains(t, msg, "Config.Server.Host is required")
		assert.Contains(t, msg, "Config.Feed.Topic is required")
	})

	t.Run("other failure", func(t *testing.T) {
		msg := configErrorMessage(errors.New("boom"))
		assert.Equal(t, "failed to load config: boom", msg)
	})
}

func TestNewServer_RegistersWebsocketShutdown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)

	core, logs := observer.New(zapcore.InfoLevel)
	deps, err := app.NewDependencies(context.Background(), cfg, zap.New(core))
	require.NoError(t, err)

	srv := newServer(cfg, deps)
	require.NoError(t, srv.Shutdown(context.Background()))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("closing websocket subscriptions").Len() == 1
	}, time.Second, 10*time.Millisecond)
}
