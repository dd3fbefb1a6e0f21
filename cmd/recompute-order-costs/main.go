package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/models"
)

// Replays historical origin-feed rows through the current mapping rules and
// rewrites line items, ledger deltas and order costs. Run after correcting a
// mapping rule to retroactively fix already-imported orders.
func main() {
	productId := flag.Int("product-id", 0, "Optional: only recalc orders touching this product.")
	since := flag.String("since", "", "Optional: only recalc orders dated on or after YYYY-MM-DD.")
	dryRun := flag.Bool("dry-run", false, "Report the changes without writing.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	config.ConnectRedisWithRetry()

	filter := models.RecalcFilter{}
	if *productId > 0 {
		filter.ProductId = productId
	}
	if *since != "" {
		d, err := time.Parse("2006-01-02", *since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -since %q: %v\n", *since, err)
			os.Exit(1)
		}
		filter.Since = &d
	}

	summary, err := models.RecalcOrders(ctx, filter, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recalc failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("processed=%d updated=%d items_rewritten=%d dry_run=%v\n",
		summary.OrdersProcessed, summary.OrdersUpdated, summary.ItemsRewritten, summary.DryRun)
}
