package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/campabbey/camp-api/app"
	"github.com/campabbey/camp-api/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunMain(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{name: "success", err: nil, wantCode: 0},
		{name: "failure", err: errors.New("boom"), wantCode: 1, wantOut: "boom\n"},
		{name: "canceled", err: fmt.Errorf("serve: %w", context.Canceled), wantCode: 130, wantOut: "canceled\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			code := runMain(func() error { return tt.err }, &stderr)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantOut, stderr.String())
		})
	}
}

func TestRootCommand_RegistersCommands(t *testing.T) {
	for _, args := range [][]string{{"serve"}, {"migrate"}, {"users", "bootstrap-admin"}, {"users", "set-role"}, {"users", "issue-token"}} {
		cmd, _, err := rootCmd.Find(args)
		require.NoError(t, err, "Find(%v)", args)
		require.NotNil(t, cmd)
		assert.Equal(t, args[len(args)-1], cmd.Name())
	}
}

func TestSetRoleCommand_RejectsUnknownRole(t *testing.T) {
	for _, role := range []string{"counselor", ""} {
		err := setRoleCmd.RunE(setRoleCmd, []string{"pat@example.com", role})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "role must be one of")
	}
}

func TestRequireSharedRevocation(t *testing.T) {
	err := requireSharedRevocation(&app.Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ENABLED=true")

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	assert.NoError(t, requireSharedRevocation(&app.Dependencies{Redis: client}))
}

func TestIssueTokenCommand_RejectsNegativeTTL(t *testing.T) {
	issueTokenTTL = -time.Minute
	t.Cleanup(func() { issueTokenTTL = 0 })

	err := issueTokenCmd.RunE(issueTokenCmd, []string{"pat@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--ttl")
}

func TestResolvePassword(t *testing.T) {
	reset := func() {
		bootstrapPassword = ""
		bootstrapPasswordStdin = false
		bootstrapGeneratePasswd = false
	}
	t.Cleanup(reset)

	t.Run("no source", func(t *testing.T) {
		reset()
		_, _, err := resolvePassword(strings.NewReader(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no password provided")
	})

	t.Run("mutually exclusive", func(t *testing.T) {
		reset()
		bootstrapPassword = "secret-pass"
		bootstrapGeneratePasswd = true
		_, _, err := resolvePassword(strings.NewReader(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mutually exclusive")
	})

	t.Run("flag", func(t *testing.T) {
		reset()
		bootstrapPassword = "secret-pass"
		password, generated, err := resolvePassword(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, "secret-pass", password)
		assert.False(t, generated)
	})

	t.Run("stdin trims the trailing newline", func(t *testing.T) {
		reset()
		bootstrapPasswordStdin = true
		password, _, err := resolvePassword(strings.NewReader("from-stdin\r\n"))
		require.NoError(t, err)
		assert.Equal(t, "from-stdin", password)
	})

	t.Run("too short", func(t *testing.T) {
		reset()
		bootstrapPasswordStdin = true
		_, _, err := resolvePassword(strings.NewReader("abc\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "between 6 and 72")
	})

	t.Run("generated", func(t *testing.T) {
		reset()
		bootstrapGeneratePasswd = true
		password, generated, err := resolvePassword(strings.NewReader(""))
		require.NoError(t, err)
		assert.True(t, generated)
		assert.Len(t, password, 24)
	})
}

func TestGeneratePassword_Unique(t *testing.T) {
	a, err := generatePassword(24)
	require.NoError(t, err)
	b, err := generatePassword(24)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestInitLogger(t *testing.T) {
	t.Run("json logger", func(t *testing.T) {
		logger, err := initLogger(&config.Config{
			Environment:   "production",
			Observability: config.ObservabilityConfig{LogLevel: "info", LogFormat: "json"},
		})
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		logger, err := initLogger(&config.Config{
			Environment:   "development",
			Observability: config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"},
		})
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		logger, err := initLogger(&config.Config{
			Observability: config.ObservabilityConfig{LogLevel: "loud", LogFormat: "json"},
		})
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestNewHTTPServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 20 * time.Second,
		},
	}
	handler := http.NotFoundHandler()

	srv := newHTTPServer(cfg, handler, zap.NewNop())
	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
	assert.Equal(t, readHeaderTimeout, srv.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.Equal(t, 20*time.Second, srv.WriteTimeout)
	assert.NotNil(t, srv.Handler)
	assert.NotNil(t, srv.ErrorLog)
}
