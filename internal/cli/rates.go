package cli

import (
	"context"
	"fmt"

	"caixinhas/internal/cache"
	"caixinhas/internal/config"
	"caixinhas/internal/log"
	"caixinhas/internal/projection"
	"caixinhas/internal/rates"
)

const (
	rateStoreSize  = 64
	redisKeyPrefix = "caixinhas:"
)

// RateStack is the rate source both binaries project with: the configured
// upstream behind a shared cache.
type RateStack struct {
	Cached *rates.Cached
	Store  cache.Store
	// Memory is set when the cache lives in process and needs sweeping.
	Memory *cache.MemoryStore
	// Redis is set when the cache is shared through Redis.
	Redis *cache.RedisStore
}

// ConfiguredRates returns the static rates held in configuration.
func ConfiguredRates(cfg *config.Config) projection.Rates {
	return projection.Rates{
		CDIAnnual:       cfg.CDIAnnual,
		SelicAnnual:     cfg.SelicAnnual,
		TRMonthly:       cfg.TRMonthly,
		CDBPercentOfCDI: cfg.CDBPercentOfCDI,
	}
}

// NewRateStack builds the upstream source named by RATES_SOURCE and wraps it
// in the cache named by CACHE_BACKEND.
func NewRateStack(cfg *config.Config, logger *log.Logger) (*RateStack, error) {
	logger = logger.WithComponent(log.ComponentRates)

	var src rates.Source
	switch cfg.RatesSource {
	case config.RatesBCB:
		src = rates.NewBCB(cfg.BCBBaseURL, cfg.RatesTimeout, cfg.CDBPercentOfCDI)
		logger.Info("Using BCB rate source", "base_url", cfg.BCBBaseURL)
	default:
		r := ConfiguredRates(cfg)
		if cfg.RatesFile != "" {
			loaded, err := rates.LoadFile(cfg.RatesFile, r)
			if err != nil {
				return nil, err
			}
			r = loaded
		}
		static, err := rates.NewStatic(r)
		if err != nil {
			return nil, fmt.Errorf("static rates: %w", err)
		}
		src = static
		logger.Info("Using static rate source",
			"file", cfg.RatesFile,
			"cdi_annual", r.CDIAnnual.String(),
			"selic_annual", r.SelicAnnual.String())
	}

	stack := &RateStack{}
	switch cfg.CacheBackend {
	case config.CacheRedis:
		stack.Redis = cache.NewRedisStore(cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   redisKeyPrefix,
		})
		stack.Store = stack.Redis
		logger.Info("Caching rates in Redis", "addr", cfg.RedisAddr, "ttl", cfg.RatesTTL.String())
	default:
		stack.Memory = cache.NewMemoryStore(rateStoreSize)
		stack.Store = stack.Memory
		logger.Info("Caching rates in memory", "ttl", cfg.RatesTTL.String())
	}

	stack.Cached = rates.NewCached(src, stack.Store, cfg.RatesTTL)
	return stack, nil
}

// Ping checks the shared cache, if any.
func (s *RateStack) Ping(ctx context.Context) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Ping(ctx)
}

func (s *RateStack) Close() error {
	return s.Store.Close()
}
