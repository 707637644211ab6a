package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cogniseal/cogniseal-ledger/internal/chain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, uint64(31337), cfg.ChainID)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("CHAIN_ID", "8009")
	t.Setenv("CONTRACT_ADDRESS", "0xe7f1725e7734ce288f8367e1bb143e90bb3f0512")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("TX_RATE_PER_MINUTE", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, uint64(8009), cfg.ChainID)
	assert.Equal(t, chain.MustParseAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512"), cfg.ContractAddress)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 5, cfg.TxRatePerMinute)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"STORE_DRIVER":     "sqlite",
		"CONTRACT_ADDRESS": "0x1234",
		"FHE_MASTER_KEY":   "short",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
