package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/atolyemoda/satis_backend/config"
	"bitbucket.org/atolyemoda/satis_backend/models"
)

// Sweeps every payment through the rehoming heuristic, relocating payments
// stranded on refunded/cancelled/placeholder orders. A payment moves only
// when exactly one candidate clearly fits.
func main() {
	crossClient := flag.Bool("cross-client", false, "Also try the exact-name cross-client variant.")
	dryRun := flag.Bool("dry-run", false, "Report the moves without writing.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	results, err := models.RehomeSweep(ctx, *crossClient, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rehome sweep failed: %v\n", err)
		os.Exit(1)
	}
	for _, r := range results {
		fmt.Printf("payment=%d from_order=%d to_order=%d reason=%s\n",
			r.PaymentId, r.FromOrderId, r.ToOrderId, r.Reason)
	}
	fmt.Printf("moved=%d dry_run=%v\n", len(results), *dryRun)
}
