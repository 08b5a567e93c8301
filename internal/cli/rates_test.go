package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixinhas/internal/config"
	"caixinhas/internal/log"
	"caixinhas/internal/rates"
)

func testConfig() *config.Config {
	return &config.Config{
		RatesSource:     config.RatesStatic,
		CacheBackend:    config.CacheMemory,
		CDIAnnual:       decimal.RequireFromString("0.149"),
		SelicAnnual:     decimal.RequireFromString("0.15"),
		TRMonthly:       decimal.RequireFromString("0.0017"),
		CDBPercentOfCDI: decimal.NewFromInt(100),
	}
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(&bytes.Buffer{}, nil)})
}

func TestNewRateStackStatic(t *testing.T) {
	stack, err := NewRateStack(testConfig(), quietLogger())
	require.NoError(t, err)
	defer stack.Close()

	assert.NotNil(t, stack.Memory)
	assert.Nil(t, stack.Redis)
	assert.NoError(t, stack.Ping(context.Background()))

	r, err := stack.Cached.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rates.StaticSourceName, r.Source)
	assert.True(t, r.CDIAnnual.Equal(decimal.RequireFromString("0.149")))
}

func TestNewRateStackFileOverridesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cdi_annual: \"0.10\"\nreference_date: \"2024-05-02\"\n"), 0o600))

	cfg := testConfig()
	cfg.RatesFile = path
	stack, err := NewRateStack(cfg, quietLogger())
	require.NoError(t, err)

	r, err := stack.Cached.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, r.CDIAnnual.Equal(decimal.RequireFromString("0.10")))
	assert.True(t, r.SelicAnnual.Equal(decimal.RequireFromString("0.15")))
	assert.Equal(t, "2024-05-02", r.ReferenceDate.Format("2006-01-02"))
}

func TestNewRateStackRejectsBadRates(t *testing.T) {
	cfg := testConfig()
	cfg.CDBPercentOfCDI = decimal.Zero
	_, err := NewRateStack(cfg, quietLogger())
	assert.Error(t, err)

	cfg = testConfig()
	cfg.RatesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = NewRateStack(cfg, quietLogger())
	assert.Error(t, err)
}

func TestNewRateStackRedis(t *testing.T) {
	cfg := testConfig()
	cfg.CacheBackend = config.CacheRedis
	cfg.RedisAddr = "127.0.0.1:0"

	stack, err := NewRateStack(cfg, quietLogger())
	require.NoError(t, err)
	defer stack.Close()

	assert.NotNil(t, stack.Redis)
	assert.Nil(t, stack.Memory)
}

func TestSetupLoggerFallsBackToInfo(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	logger := SetupLogger("verbose", false, log.ComponentApp)
	assert.Equal(t, log.ComponentApp, logger.Component())
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
