package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vitos/futures_signal_bot/internal/config"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/exchange"
	"go.uber.org/zap"
)

// Standalone venue probe: verifies reachability, credentials and market
// data without placing any order.
func main() {
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing Bitget interaction...\n")
	fmt.Printf("Endpoint: %s\n", cfg.Exchange.RESTEndpoint)
	fmt.Printf("Symbol:   %s\n", cfg.Exchange.Symbol)
	fmt.Printf("Credentials loaded: %v\n", cfg.Credentials.Loaded())

	adapter := exchange.NewBitgetAdapter(
		cfg.Credentials.APIKey,
		cfg.Credentials.APISecret,
		cfg.Credentials.APIPassphrase,
		cfg.Exchange.RESTEndpoint,
		cfg.Exchange.ProductType,
		cfg.Exchange.MarginCoin,
		zap.NewNop(),
	)
	ctx := context.Background()

	if ts, err := adapter.ServerTime(ctx); err != nil {
		fmt.Printf("❌ Server time failed: %v\n", err)
	} else {
		fmt.Printf("✅ Server time: %d\n", ts)
	}

	if price, err := adapter.GetPrice(ctx, cfg.Exchange.Symbol); err != nil {
		fmt.Printf("❌ Price fetch failed: %v\n", err)
	} else {
		fmt.Printf("✅ Price: %f\n", price)
	}

	if balance, err := adapter.GetBalance(ctx); err != nil {
		fmt.Printf("❌ Balance fetch failed (check credentials): %v\n", err)
	} else {
		fmt.Printf("✅ Available balance: %f %s\n", balance, cfg.Exchange.MarginCoin)
	}

	if longSize, shortSize, err := adapter.GetPositions(ctx, cfg.Exchange.Symbol); err != nil {
		fmt.Printf("❌ Positions fetch failed: %v\n", err)
	} else {
		fmt.Printf("✅ Positions: long=%f short=%f\n", longSize, shortSize)
	}
}
