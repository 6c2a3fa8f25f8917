// One-shot diagnostic: fetch the configured symbols once over REST and
// print what the backend returned.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"crypto_watch/internal/infra"
	"crypto_watch/internal/infra/watchapi"
)

func main() {
	fmt.Println("=== Crypto Watch Price Fetcher ===")
	fmt.Println()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		fmt.Printf("❌ config: %v\n", err)
		os.Exit(1)
	}

	client := watchapi.NewClient(cfg.Feed.REST.BaseURL, cfg.Feed.REST.APIKey)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	assets, err := client.FetchPrices(ctx, cfg.Watch.Symbols)
	if err != nil {
		fmt.Printf("❌ fetch failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Fetched %d assets in %s\n\n", len(assets), time.Since(start).Round(time.Millisecond))
	fmt.Printf("%-8s %-18s %14s %9s %16s\n", "SYMBOL", "NAME", "PRICE", "24H%", "MARKET CAP")
	fmt.Println(strings.Repeat("-", 70))

	for _, a := range assets {
		fmt.Printf("%-8s %-18s %14s %8s%% %16d\n",
			a.Symbol, a.Name, a.Price.StringFixed(2), a.Change24h.StringFixed(1), a.MarketCap)
	}

	fmt.Println()
	fmt.Println("✅ All prices decoded as decimals, no float64 in the data path.")
}
