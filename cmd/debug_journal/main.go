package main

import (
	"context"
	"fmt"
	"os"

	"github.com/vitos/futures_signal_bot/internal/infrastructure/storage"
)

// Dumps the most recent journal rows from the sqlite database.
func main() {
	path := "bot.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	store, err := storage.NewSQLiteStore(path)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	transitions, err := store.ListTransitions(ctx, 50)
	if err != nil {
		fmt.Printf("Failed to list transitions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Last %d transitions:\n", len(transitions))
	for _, t := range transitions {
		fmt.Printf("- [%s] %s %s -> %s side=%s size=%f entry=%f mark=%f %s\n",
			t.CreatedAt.Format("2006-01-02 15:04:05"),
			t.Event, t.FromState, t.ToState, t.Side, t.Size, t.EntryPrice, t.MarkPrice, t.Note)
	}

	orders, err := store.ListOrders(ctx, 50)
	if err != nil {
		fmt.Printf("Failed to list orders: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Last %d orders:\n", len(orders))
	for _, o := range orders {
		kind := "open"
		if o.ReduceOnly {
			kind = "close"
		}
		fmt.Printf("- [%s] %s %s %s size=%f price=%f\n",
			o.CreatedAt.Format("2006-01-02 15:04:05"), o.Symbol, o.Side, kind, o.Size, o.Price)
	}
}
