package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv blanks every recognized variable so host settings never leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GM_AGENT_PROVIDER", "GM_AGENT_API_KEY", "GM_AGENT_MODEL", "GM_AGENT_BASE_URL",
		"GM_AGENT_TIMEOUT", "GM_STORE", "GM_SQLITE_PATH", "GM_DYNAMO_TABLE",
		"GM_STORE_RETRIES", "GM_STORE_BACKOFF", "GM_SCENARIO_SEED", "GM_PARAM_PREFIX",
		"GM_RESUME_SESSION",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GM_AGENT_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderGemini, cfg.AgentProvider)
	require.Equal(t, StoreSQLite, cfg.StoreBackend)
	require.Equal(t, "gamemaster.db", cfg.SQLitePath)
	require.Equal(t, 60*time.Second, cfg.AgentTimeout)
	require.Equal(t, 3, cfg.RetryCount)
	require.Equal(t, 250*time.Millisecond, cfg.RetryBackoff)
}

func TestLoadNormalizesProviderCase(t *testing.T) {
	clearEnv(t)
	t.Setenv("GM_AGENT_API_KEY", "test-key")
	t.Setenv("GM_AGENT_PROVIDER", " OpenAI ")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, cfg.AgentProvider)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("GM_AGENT_API_KEY", "test-key")
	t.Setenv("GM_AGENT_PROVIDER", "claude")

	_, err := Load()
	require.ErrorContains(t, err, "unknown agent provider")
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	clearEnv(t)
	t.Setenv("GM_AGENT_API_KEY", "test-key")
	t.Setenv("GM_STORE", "postgres")

	_, err := Load()
	require.ErrorContains(t, err, "unknown store backend")
}

func TestLoadDynamoRequiresTable(t *testing.T) {
	clearEnv(t)
	t.Setenv("GM_AGENT_API_KEY", "test-key")
	t.Setenv("GM_STORE", "dynamo")

	_, err := Load()
	require.ErrorContains(t, err, "GM_DYNAMO_TABLE")

	t.Setenv("GM_DYNAMO_TABLE", "gm-sessions")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreDynamo, cfg.StoreBackend)
	require.Equal(t, "gm-sessions", cfg.DynamoTable)
}

func TestLoadRequiresKeyOrParamPrefix(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	require.ErrorContains(t, err, "GM_AGENT_API_KEY")

	t.Setenv("GM_PARAM_PREFIX", "/gamemaster/prod")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/gamemaster/prod", cfg.ParamPrefix)
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	clearEnv(t)
	t.Setenv("GM_AGENT_API_KEY", "test-key")
	t.Setenv("GM_AGENT_TIMEOUT", "0s")

	_, err := Load()
	require.ErrorContains(t, err, "GM_AGENT_TIMEOUT")
}

func TestLoadRejectsNonPositiveRetries(t *testing.T) {
	clearEnv(t)
	t.Setenv("GM_AGENT_API_KEY", "test-key")
	t.Setenv("GM_STORE_RETRIES", "0")

	_, err := Load()
	require.ErrorContains(t, err, "GM_STORE_RETRIES")
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("GM_AGENT_API_KEY", "test-key")
	t.Setenv("GM_STORE_BACKOFF", "soon")

	_, err := Load()
	require.Error(t, err)
}
