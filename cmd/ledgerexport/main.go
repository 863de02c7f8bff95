// ledgerexport writes the finance ledger for a date range to an xlsx file.
//
// Usage:
//   go run ./cmd/ledgerexport --business-id=<uuid> --from=2026-01-01 --to=2026-01-31 [--company-id=42] [--out=ledger.xlsx]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/models/reports"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	from := flag.String("from", "", "Required: range start (YYYY-MM-DD)")
	to := flag.String("to", "", "Required: range end (YYYY-MM-DD)")
	companyID := flag.Int("company-id", 0, "Optional: limit to one company")
	out := flag.String("out", "", "Output path (defaults to the generated file name)")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" || *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, "--business-id, --from and --to are required")
		os.Exit(1)
	}
	fromTime, err := time.Parse("2006-01-02", *from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --from: %v\n", err)
		os.Exit(1)
	}
	toTime, err := time.Parse("2006-01-02", *to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --to: %v\n", err)
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, *businessID)
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "System")

	var companyFilter *int
	if *companyID > 0 {
		companyFilter = companyID
	}

	content, filename, err := reports.ExportLedgerXlsx(ctx,
		models.MyDateString(fromTime), models.MyDateString(toTime), companyFilter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}

	path := strings.TrimSpace(*out)
	if path == "" {
		path = filename
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%d bytes)\n", path, len(content))
}
