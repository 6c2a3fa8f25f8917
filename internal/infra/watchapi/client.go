// Package watchapi is the client for the Crypto Watch backend API.
package watchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crypto_watch/internal/domain"
	"crypto_watch/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Feed error taxonomy. The engine treats all three the same way
// (recoverable, keep stale data visible); logs and tests distinguish
// them.
var (
	ErrNetwork = errors.New("price feed network error")
	ErrServer  = errors.New("price feed server error")
	ErrParse   = errors.New("price feed parse error")
)

const (
	requestTimeout = 5 * time.Second
	maxRetries     = 3 // retries after the first attempt: delays 1s, 2s, 4s
)

// Client fetches priced assets from the backend.
// Requests carry the API key and a per-request ID; a token bucket
// mirrors the backend's per-minute quota, and a circuit breaker stops
// hammering a dead upstream.
type Client struct {
	baseURL string
	apiKey  string

	httpClient *http.Client
	limiter    *infra.RateLimiter
	breaker    *infra.CircuitBreaker
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		// Backend quota: 100 requests/minute per key.
		limiter: infra.NewRateLimiter(10, 100.0/60.0),
		breaker: infra.NewCircuitBreaker("watchapi", 5, 2, 30*time.Second),
	}
}

// priceResponse is the backend's /prices payload.
// Numeric fields decode via json.Number: prices never pass through
// float64 on the way to decimal.
type priceResponse struct {
	Data []struct {
		Symbol      string      `json:"symbol"`
		Name        string      `json:"name"`
		Price       json.Number `json:"price"`
		Change24h   json.Number `json:"change24h"`
		MarketCap   int64       `json:"marketCap"`
		LastUpdated string      `json:"lastUpdated"`
	} `json:"data"`
	Timestamp string `json:"timestamp"`
}

// FetchPrices fetches quotes for symbols, retrying transport errors,
// 429 and 5xx with exponential backoff (1s, 2s, 4s). Unknown symbols
// are skipped by the backend; an entirely empty data set is a parse
// failure.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) ([]domain.Asset, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("%w: circuit open", ErrNetwork)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := infra.CalculateBackoff(attempt - 1)
			slog.Info("Retrying price fetch",
				slog.Int("attempt", attempt), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
			case <-time.After(delay):
			}
		}

		assets, err := c.doFetch(ctx, symbols)
		if err == nil {
			c.breaker.RecordSuccess()
			return assets, nil
		}
		lastErr = err
		slog.Warn("Price fetch attempt failed",
			slog.Int("attempt", attempt+1), slog.Any("error", err))

		if !retryable(err) {
			break
		}
	}

	c.breaker.RecordFailure()
	return nil, lastErr
}

// retryable reports whether an attempt is worth repeating. Parse
// failures and non-429 4xx responses won't heal with a retry.
func retryable(err error) bool {
	if errors.Is(err, ErrParse) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	return true
}

// statusError carries the HTTP status of a failed request.
type statusError struct {
	code      int
	requestID string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d (request %s)", e.code, e.requestID)
}

func (e *statusError) Unwrap() error {
	if e.code == http.StatusTooManyRequests || e.code >= 500 {
		return ErrServer
	}
	// 4xx other than 429: still a server-side rejection.
	return ErrServer
}

func (c *Client) doFetch(ctx context.Context, symbols []string) ([]domain.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/prices?symbols=%s",
		c.baseURL, url.QueryEscape(strings.Join(symbols, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, requestID: requestID}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var payload priceResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v (request %s)", ErrParse, err, requestID)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("%w: empty data set (request %s)", ErrParse, requestID)
	}

	assets := make([]domain.Asset, 0, len(payload.Data))
	for _, item := range payload.Data {
		asset, err := toAsset(item.Symbol, item.Name, item.Price, item.Change24h, item.MarketCap, item.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParse, item.Symbol, err)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func toAsset(symbol, name string, price, change json.Number, marketCap int64, lastUpdated string) (domain.Asset, error) {
	p, err := decimal.NewFromString(price.String())
	if err != nil {
		return domain.Asset{}, fmt.Errorf("bad price %q: %w", price, err)
	}

	// The backend defaults a missing change to 0.
	ch := decimal.Zero
	if change.String() != "" {
		ch, err = decimal.NewFromString(change.String())
		if err != nil {
			return domain.Asset{}, fmt.Errorf("bad change %q: %w", change, err)
		}
	}

	updatedAt, err := time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		updatedAt = time.Now().UTC()
	}

	if name == "" {
		name = domain.DisplayName(symbol)
	}

	return domain.Asset{
		Symbol:    symbol,
		Name:      name,
		Price:     p,
		Change24h: ch,
		MarketCap: marketCap,
		UpdatedAt: updatedAt,
	}, nil
}
