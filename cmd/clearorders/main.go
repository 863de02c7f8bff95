// clearorders deletes every order of one company, ledger and stock log rows
// included. Meant for purging demo or migration data; cancel completed orders
// first when the goods should return to stock.
//
// Usage:
//   go run ./cmd/clearorders --business-id=<uuid> --company-id=42 --dry-run=false --confirm=CLEAR
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
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	companyID := flag.Int("company-id", 0, "Required: companies.id whose orders to delete")
	dryRun := flag.Bool("dry-run", true, "Count orders only (no writes)")
	confirm := flag.String("confirm", "", "Type CLEAR to proceed when dry-run=false")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || *companyID <= 0 {
		fmt.Fprintln(os.Stderr, "--business-id and --company-id are required")
		os.Exit(1)
	}
	if !*dryRun && strings.TrimSpace(*confirm) != "CLEAR" {
		fmt.Fprintln(os.Stderr, "set --confirm=CLEAR to proceed")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	if *dryRun {
		var count int64
		if err := db.Model(&models.Order{}).
			Where("business_id = ? AND company_id = ?", *businessID, *companyID).
			Count(&count).Error; err != nil {
			fmt.Fprintf(os.Stderr, "count failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("would delete %d orders of company %d\n", count, *companyID)
		return
	}

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, *businessID)
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "System")

	deleted, err := workflow.ClearCompanyOrders(ctx, *companyID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clear failed after %d deletions: %v\n", deleted, err)
		os.Exit(1)
	}
	fmt.Printf("deleted %d orders of company %d\n", deleted, *companyID)
}
