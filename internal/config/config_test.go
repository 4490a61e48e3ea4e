package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("POSTGRES_MAX_CONNS", "16")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
	assert.Equal(t, int32(16), cfg.PostgresMaxConns)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 4, cfg.PaymentsWorkers)
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: memory\nwebhook_secret: from-file\nhttp_addr: \":9000\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
}

func TestValidate(t *testing.T) {
	ok := Config{HTTPAddr: ":1", WebhookSecret: "x", Store: StoreMemory, PaymentsWorkers: 1}
	require.NoError(t, ok.Validate())

	noSecret := ok
	noSecret.WebhookSecret = ""
	assert.ErrorContains(t, noSecret.Validate(), "webhook_secret")

	pg := ok
	pg.Store = StorePostgres
	assert.ErrorContains(t, pg.Validate(), "postgres_dsn")

	bad := ok
	bad.Store = "mongo"
	assert.ErrorContains(t, bad.Validate(), "store must be")
}
