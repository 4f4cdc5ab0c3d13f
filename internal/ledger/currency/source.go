package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource fetches a historical exchange rate from an external provider.
type RateSource interface {
	FetchRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error)
}

// HTTPRateSource talks to a rate provider exposing
// GET {base}/rates?from=USD&to=EUR&date=2006-01-02.
type HTTPRateSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRateSource constructs a provider client.
func NewHTTPRateSource(baseURL string, client *http.Client) *HTTPRateSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRateSource{baseURL: baseURL, client: client}
}

type rateResponse struct {
	Rate decimal.Decimal `json:"rate"`
}

// FetchRate implements RateSource. A 404 from the provider maps to
// ErrRateUnavailable.
func (s *HTTPRateSource) FetchRate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	q.Set("date", dateOnly(date).Format("2006-01-02"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rates?"+q.Encode(), nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("currency: build rate request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("currency: fetch rate: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return decimal.Decimal{}, fmt.Errorf("%w: %s/%s on %s", ErrRateUnavailable, from, to, dateOnly(date).Format("2006-01-02"))
	default:
		return decimal.Decimal{}, fmt.Errorf("currency: rate provider returned %d", resp.StatusCode)
	}
	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("currency: decode rate response: %w", err)
	}
	if body.Rate.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: provider returned zero rate", ErrRateUnavailable)
	}
	return body.Rate, nil
}
