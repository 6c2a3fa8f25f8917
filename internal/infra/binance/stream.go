// Package binance feeds the engine from Binance's combined miniTicker
// stream as an alternative to the backend REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"crypto_watch/internal/domain"
	"crypto_watch/internal/infra"
	"crypto_watch/internal/infra/watchapi"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const defaultWSURL = "wss://stream.binance.com:9443/stream"

// quote is the latest cached state of one symbol.
type quote struct {
	asset domain.Asset
}

// miniTickerFrame is one combined-stream message.
// Prices decode via json.Number: no float64 in the data path.
type miniTickerFrame struct {
	Stream string `json:"stream"`
	Data   struct {
		EventType string      `json:"e"` // 24hrMiniTicker
		EventTime int64       `json:"E"` // ms
		Symbol    string      `json:"s"` // BTCUSDT
		Close     json.Number `json:"c"`
		Open      json.Number `json:"o"`
	} `json:"data"`
}

// StreamSource keeps a live quote table off the websocket and serves
// FetchPrices from it. Market cap is not carried on this stream, so it
// stays 0, the backend's own default for a missing cap.
type StreamSource struct {
	worker  *infra.WSWorker
	wsURL   string
	symbols []string

	mu     sync.RWMutex
	quotes map[string]quote // keyed by base symbol (BTC, ETH, ...)
}

// NewStreamSource creates a stream source for the given base symbols.
// An empty wsURL uses the production endpoint.
func NewStreamSource(wsURL string, symbols []string) *StreamSource {
	if wsURL == "" {
		wsURL = defaultWSURL
	}
	s := &StreamSource{
		wsURL:   wsURL,
		symbols: symbols,
		quotes:  make(map[string]quote),
	}
	s.worker = infra.NewWSWorker(s)
	return s
}

// ID returns the worker identifier.
func (s *StreamSource) ID() string { return "BINANCE" }

// URL returns the combined-stream endpoint for the subscribed symbols.
func (s *StreamSource) URL() string {
	streams := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		streams = append(streams, strings.ToLower(sym)+"usdt@miniTicker")
	}
	return fmt.Sprintf("%s?streams=%s", s.wsURL, strings.Join(streams, "/"))
}

// Start opens the stream connection.
func (s *StreamSource) Start(ctx context.Context) {
	s.worker.Start(ctx)
}

// Stop closes the stream connection.
func (s *StreamSource) Stop() {
	s.worker.Stop()
}

// OnConnect has nothing to do: the combined-stream URL already carries
// the subscription.
func (s *StreamSource) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	return nil
}

// OnMessage parses one miniTicker frame into the quote table.
func (s *StreamSource) OnMessage(ctx context.Context, msg []byte) {
	var frame miniTickerFrame
	if err := json.Unmarshal(msg, &frame); err != nil || frame.Data.EventType != "24hrMiniTicker" {
		return
	}

	base := strings.TrimSuffix(frame.Data.Symbol, "USDT")
	if base == "" {
		return
	}

	closePx, err := decimal.NewFromString(frame.Data.Close.String())
	if err != nil {
		return
	}
	openPx, err := decimal.NewFromString(frame.Data.Open.String())
	if err != nil {
		return
	}

	// change24h as a percentage, from close vs open.
	change := decimal.Zero
	if !openPx.IsZero() {
		change = closePx.Sub(openPx).Div(openPx).Mul(decimal.NewFromInt(100)).Round(2)
	}

	asset := domain.Asset{
		Symbol:    base,
		Name:      domain.DisplayName(base),
		Price:     closePx,
		Change24h: change,
		UpdatedAt: time.UnixMilli(frame.Data.EventTime).UTC(),
	}

	s.mu.Lock()
	s.quotes[base] = quote{asset: asset}
	s.mu.Unlock()
}

// OnPing is a no-op: gorilla answers protocol pings automatically and
// Binance sends its own.
func (s *StreamSource) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return nil
}

// FetchPrices serves the latest cached quotes. Symbols with no quote
// yet are skipped; a fully empty result means the stream has not warmed
// up, reported as a network-grade failure.
func (s *StreamSource) FetchPrices(ctx context.Context, symbols []string) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]domain.Asset, 0, len(symbols))
	for _, sym := range symbols {
		if q, ok := s.quotes[sym]; ok {
			assets = append(assets, q.asset)
		}
	}

	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: no live data yet", watchapi.ErrNetwork)
	}
	return assets, nil
}
