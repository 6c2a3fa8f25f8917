package infra

import (
	"fmt"
	"strings"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
)

// PrintBanner displays the startup banner with the active feed mode.
func PrintBanner(cfg *Config) {
	mode := strings.ToUpper(cfg.FeedMode())
	version := cfg.App.Version

	color := ColorGreen
	modeDesc := "BACKEND REST API"
	if mode == "STREAM" {
		color = ColorCyan
		modeDesc = "LIVE EXCHANGE STREAM"
	}

	fmt.Println()
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#               📈 Crypto Watch                           #%s\n", color, ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s#   FEED:    %-36s #%s\n", color, mode, ColorReset)
	fmt.Printf("%s#   SOURCE:  %-36s #%s\n", color, modeDesc, ColorReset)
	fmt.Printf("%s#   VERSION: %-36s #%s\n", color, version, ColorReset)
	fmt.Printf("%s#   COINS:   %-36d #%s\n", color, len(cfg.Watch.Symbols), ColorReset)
	fmt.Printf("%s#                                                         #%s\n", color, ColorReset)
	fmt.Printf("%s###########################################################%s\n", color, ColorReset)
	fmt.Println()
}
