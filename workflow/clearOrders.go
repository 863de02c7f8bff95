package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
)

// ClearCompanyOrders deletes every order of one company through the normal
// delete path, one transaction per order, and reports how many went through.
// A maintenance sweep, so a failed order is logged and skipped rather than
// aborting the rest.
func ClearCompanyOrders(ctx context.Context, companyId int) (int, error) {
	logger := config.GetLogger()

	orders, err := models.GetOrdersByCompany(ctx, companyId)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, order := range orders {
		if err := DeleteOrder(ctx, order.ID); err != nil {
			config.LogError(logger, "clearOrders.go", "ClearCompanyOrders > DeleteOrder", "Delete company order", order.ID, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
