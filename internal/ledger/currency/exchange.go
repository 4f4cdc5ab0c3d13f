package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Pair names a currency conversion direction by ISO code.
type Pair struct {
	From string
	To   string
}

// Exchange resolves historical exchange rates. Lookup order: Redis day
// bucket, then the exchange_rates table, then the external provider behind a
// singleflight group so one fetch serves concurrent callers. Fetched rates
// are written back to both layers.
type Exchange struct {
	store  Store
	source RateSource
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewExchange constructs the exchange service. cache may be nil, in which
// case only the database layer is consulted before the provider.
func NewExchange(store Store, source RateSource, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Exchange {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Exchange{store: store, source: source, cache: cache, ttl: ttl, logger: logger}
}

// GetExchangeRate returns the historical rate for the pair as of the given
// day. Missing rates surface as ErrRateUnavailable.
func (e *Exchange) GetExchangeRate(ctx context.Context, pair Pair, date time.Time) (decimal.Decimal, error) {
	if pair.From == pair.To {
		return decimal.NewFromInt(1), nil
	}
	key := rateKey(pair, date)
	if e.cache != nil {
		cached, err := e.cache.Get(ctx, key).Result()
		if err == nil {
			rate, perr := decimal.NewFromString(cached)
			if perr == nil {
				return rate, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			e.logger.Warn("rate cache read", slog.String("key", key), slog.Any("error", err))
		}
	}

	v, err, _ := e.group.Do(key, func() (any, error) {
		return e.resolve(ctx, pair, date)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	rate := v.(decimal.Decimal)
	if e.cache != nil {
		if err := e.cache.Set(ctx, key, rate.String(), e.ttl).Err(); err != nil {
			e.logger.Warn("rate cache write", slog.String("key", key), slog.Any("error", err))
		}
	}
	return rate, nil
}

func (e *Exchange) resolve(ctx context.Context, pair Pair, date time.Time) (decimal.Decimal, error) {
	fromID, err := e.store.GetID(ctx, pair.From)
	if err != nil {
		return decimal.Decimal{}, err
	}
	toID, err := e.store.GetID(ctx, pair.To)
	if err != nil {
		return decimal.Decimal{}, err
	}
	rate, ok, err := e.store.GetRate(ctx, fromID, toID, date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if ok {
		return rate, nil
	}
	if e.source == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s/%s on %s", ErrRateUnavailable, pair.From, pair.To, dateOnly(date).Format("2006-01-02"))
	}
	rate, err = e.source.FetchRate(ctx, pair.From, pair.To, date)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := e.store.InsertRate(ctx, fromID, toID, date, rate); err != nil {
		return decimal.Decimal{}, err
	}
	return rate, nil
}

// Convert converts minor units between currencies at the historical rate for
// the day, rounding half away from zero.
func (e *Exchange) Convert(ctx context.Context, pair Pair, date time.Time, amountMinor int64) (int64, error) {
	if pair.From == pair.To {
		return amountMinor, nil
	}
	rate, err := e.GetExchangeRate(ctx, pair, date)
	if err != nil {
		return 0, err
	}
	return decimal.NewFromInt(amountMinor).Mul(rate).Round(0).IntPart(), nil
}

func rateKey(pair Pair, date time.Time) string {
	return fmt.Sprintf("fx:%s:%s:%s", pair.From, pair.To, dateOnly(date).Format("2006-01-02"))
}
