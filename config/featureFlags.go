package config

import (
	"os"
	"strings"
)

// StrictStockFloor rejects order completion when any line would drive the
// on-hand quantity below zero. The default policy records the movement and
// lets stock go negative so the floor can be corrected later with a stock
// correction.
//
// Set via env:
// - STRICT_STOCK_FLOOR=true
func StrictStockFloor() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_STOCK_FLOOR")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ReconcileOnStartup runs one reconciliation sweep for orders stuck between
// stock write and ledger posting before the server starts accepting commands.
//
// Set via env:
// - RECONCILE_ON_STARTUP=true
func ReconcileOnStartup() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RECONCILE_ON_STARTUP")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
