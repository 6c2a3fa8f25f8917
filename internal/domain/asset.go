package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a single quoted instrument. Values are immutable: every fetch
// replaces the whole slice, never patches one in place.
// JSON field names follow the Crypto Watch backend API.
type Asset struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change24h"`
	MarketCap int64           `json:"marketCap"`
	UpdatedAt time.Time       `json:"lastUpdated"`
}

// coinNames maps the supported symbols to display names. Mirrors the
// backend's mapping; feeds that carry no names (live streams) use it.
var coinNames = map[string]string{
	"BTC":   "Bitcoin",
	"ETH":   "Ethereum",
	"ADA":   "Cardano",
	"BNB":   "Binance Coin",
	"XRP":   "XRP",
	"SOL":   "Solana",
	"DOT":   "Polkadot",
	"DOGE":  "Dogecoin",
	"AVAX":  "Avalanche",
	"MATIC": "Polygon",
	"LINK":  "Chainlink",
	"UNI":   "Uniswap",
	"LTC":   "Litecoin",
	"ATOM":  "Cosmos",
	"XLM":   "Stellar",
	"ALGO":  "Algorand",
	"VET":   "VeChain",
	"ICP":   "Internet Computer",
	"FIL":   "Filecoin",
	"TRX":   "TRON",
}

// DisplayName returns the human-readable name for a symbol, falling back
// to the symbol itself for coins outside the known set.
func DisplayName(symbol string) string {
	if name, ok := coinNames[symbol]; ok {
		return name
	}
	return symbol
}

// DedupeAssets drops assets with a symbol already seen earlier in the
// slice. First occurrence wins; relative order is preserved.
func DedupeAssets(assets []Asset) []Asset {
	if len(assets) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(assets))
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if seen[a.Symbol] {
			continue
		}
		seen[a.Symbol] = true
		out = append(out, a)
	}
	return out
}
