package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireOrderPostingLock serializes fulfillment commands per order across
// instances using MySQL advisory locks. Two concurrent completes, or a return
// racing a cancel, would corrupt stock or ledger totals without this.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB transaction that will do the writes, and released before commit.
func AcquireOrderPostingLock(tx *gorm.DB, businessId string, orderId int) error {
	lockName := fmt.Sprintf("order_posting:%s:%d", businessId, orderId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire order posting lock for business_id=%s order_id=%d", businessId, orderId)
	}
	return nil
}

func ReleaseOrderPostingLock(tx *gorm.DB, businessId string, orderId int) {
	lockName := fmt.Sprintf("order_posting:%s:%d", businessId, orderId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}
