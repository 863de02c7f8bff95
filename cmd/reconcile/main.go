// reconcile repairs completed orders stuck with a pending ledger posting and
// reports payment/ledger drift. Safe to rerun; posting is idempotent.
//
// Usage:
//   go run ./cmd/reconcile --business-id=<uuid>
//   go run ./cmd/reconcile --all
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"bitbucket.org/mmdatafocus/backoffice_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Business id (uuid) to sweep")
	all := flag.Bool("all", false, "Sweep every business that has orders")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" && !*all {
		fmt.Fprintln(os.Stderr, "--business-id or --all is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	businessIds := []string{*businessID}
	if *all {
		if err := db.Model(&models.Order{}).Distinct().Pluck("business_id", &businessIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "business scan failed: %v\n", err)
			os.Exit(1)
		}
	}

	exitCode := 0
	for _, id := range businessIds {
		ctx := context.Background()
		ctx = utils.SetBusinessIdInContext(ctx, id)
		ctx = utils.SetUserIdInContext(ctx, 0)
		ctx = utils.SetUserNameInContext(ctx, "System")

		report, err := workflow.RunReconciliationScan(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "business %s: sweep failed: %v\n", id, err)
			exitCode = 1
			continue
		}
		fmt.Printf("business %s: pending=%d repaired=%d failed=%d drifts=%d\n",
			id, report.PendingFound, report.Repaired, report.Failed, len(report.Drifts))
		for _, drift := range report.Drifts {
			fmt.Printf("  order=%d number=%s received=%s ledger=%s diff=%s\n",
				drift.OrderId, drift.OrderNumber,
				drift.PaymentReceivedAmount.String(), drift.LedgerIncome.String(), drift.Difference.String())
		}
		if report.Failed > 0 {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
