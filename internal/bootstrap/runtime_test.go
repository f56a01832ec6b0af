package bootstrap

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"chatwarden/internal/config"
	"chatwarden/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:                   "test",
		Port:                  freePort(t),
		JWTSecret:             "test-secret-key-12345678901234567890123456789012",
		DBDriver:              "sqlite",
		SQLitePath:            filepath.Join(t.TempDir(), "chatwarden.db"),
		DBSchemaMode:          "auto",
		BotPollTimeoutSeconds: 1,
		BotWorkers:            2,
		MuteDefaultMinutes:    15,
		FeatureFlags:          "delete_notice=on",
		StatsCacheTTLSeconds:  30,
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return fmt.Sprint(port)
}

func TestInitRuntime_AdminAPIOnly(t *testing.T) {
	ctx := context.Background()
	rt, err := InitRuntime(ctx, testConfig(t), Options{RequireDatabase: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	assert.NotNil(t, rt.DB)
	assert.Nil(t, rt.Redis)
	assert.True(t, rt.Ledger.Available())
	assert.Nil(t, rt.Poller)
	assert.Nil(t, rt.Moderator)
	assert.NotNil(t, rt.Server)

	r := rt.Ledger.Append(ctx, models.ModerationEvent{ActionType: models.ActionUserWarned, UserID: 1, ChatID: -5})
	assert.True(t, r.Recorded)
}

func TestInitRuntime_LoadsRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.RulesFile = filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(cfg.RulesFile, []byte("words:\n  - spamword\npatterns:\n  - 'sc[a@]m+'\n"), 0o600))

	ctx := context.Background()
	rt, err := InitRuntime(ctx, cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	assert.True(t, rt.Matcher.ContainsViolation("buy SPAMWORD now"))
	assert.True(t, rt.Matcher.ContainsViolation("sc@mmm"))
}

func TestInitRuntime_DatabaseUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBDriver = "mysql"
	ctx := context.Background()

	_, err := InitRuntime(ctx, cfg, Options{RequireDatabase: true})
	assert.Error(t, err)

	rt, err := InitRuntime(ctx, cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	assert.Nil(t, rt.DB)
	assert.False(t, rt.Ledger.Available())
}

func TestInitRuntime_WithBot(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Warden","username":"warden_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
		}
	}))
	t.Cleanup(api.Close)

	cfg := testConfig(t)
	cfg.BotToken = "123:abc"
	cfg.TelegramAPIURL = api.URL

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := InitRuntime(ctx, cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	require.NotNil(t, rt.Poller)
	require.NotNil(t, rt.Moderator)

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	waitForAPI(t, cfg.Port)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func TestInitRuntime_RejectedBotToken(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	t.Cleanup(api.Close)

	cfg := testConfig(t)
	cfg.BotToken = "123:bad"
	cfg.TelegramAPIURL = api.URL

	_, err := InitRuntime(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestRuntime_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := InitRuntime(ctx, cfg, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(context.Background()) })

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	waitForAPI(t, cfg.Port)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("runtime did not stop")
	}
}

func waitForAPI(t *testing.T, port string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/health/live")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)
}
