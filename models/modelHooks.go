package models

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (c *Company) AfterCreate(tx *gorm.DB) (err error) {
	if err := SaveHistoryCreate(tx, c.ID, c, "Created Company"); err != nil {
		return err
	}
	if err := c.RemoveAllRedis(); err != nil {
		return err
	}

	return nil
}

func (c *Company) BeforeUpdate(tx *gorm.DB) (err error) {
	if err := SaveHistoryUpdate(tx, c.ID, c, "Updated Company"); err != nil {
		return err
	}
	if err := RemoveRedisBoth(c); err != nil {
		return err
	}

	return nil
}

func (c *Company) AfterDelete(tx *gorm.DB) (err error) {
	if err := SaveHistoryDelete(tx, c.ID, c, "Deleted Company"); err != nil {
		return err
	}
	if err := RemoveRedisBoth(c); err != nil {
		return err
	}

	return nil
}

func (w *Warehouse) AfterCreate(tx *gorm.DB) (err error) {
	if err := SaveHistoryCreate(tx, w.ID, w, "Created Warehouse"); err != nil {
		return err
	}
	if err := w.RemoveAllRedis(); err != nil {
		return err
	}

	return nil
}

func (w *Warehouse) BeforeUpdate(tx *gorm.DB) (err error) {
	if err := SaveHistoryUpdate(tx, w.ID, w, "Updated Warehouse"); err != nil {
		return err
	}
	if err := RemoveRedisBoth(w); err != nil {
		return err
	}

	return nil
}

func (w *Warehouse) AfterDelete(tx *gorm.DB) (err error) {
	if err := SaveHistoryDelete(tx, w.ID, w, "Deleted Warehouse"); err != nil {
		return err
	}
	if err := RemoveRedisBoth(w); err != nil {
		return err
	}

	return nil
}

func (p *Product) AfterCreate(tx *gorm.DB) (err error) {
	if err := SaveHistoryCreate(tx, p.ID, p, "Created Product"); err != nil {
		return err
	}
	if err := p.RemoveAllRedis(); err != nil {
		return err
	}

	return nil
}

func (p *Product) BeforeUpdate(tx *gorm.DB) (err error) {
	description := "Product Updated."
	if tx.Statement.Changed("UnitPrice") {
		newPrice := tx.Statement.Dest.(map[string]interface{})["UnitPrice"].(decimal.Decimal)
		description += fmt.Sprintf(" Unit price changed from %v to %v.", p.UnitPrice, newPrice)
	}
	if err := SaveHistoryUpdate(tx, p.ID, p, description); err != nil {
		return err
	}
	if err := RemoveRedisBoth(p); err != nil {
		return err
	}

	return nil
}

func (p *Product) AfterDelete(tx *gorm.DB) (err error) {
	if err := SaveHistoryDelete(tx, p.ID, p, "Deleted Product"); err != nil {
		return err
	}
	if err := RemoveRedisBoth(p); err != nil {
		return err
	}

	return nil
}

func (o *Order) AfterCreate(tx *gorm.DB) (err error) {
	description := fmt.Sprintf("Created Order %s of total %v", o.OrderNumber, o.TotalAmount)
	if err := SaveHistoryCreate(tx, o.ID, o, description); err != nil {
		return err
	}

	return nil
}

func (o *Order) BeforeUpdate(tx *gorm.DB) (err error) {
	description := "Order Updated."
	if tx.Statement.Changed("Status") {
		newStatus := tx.Statement.Dest.(map[string]interface{})["Status"].(OrderStatus)
		description += fmt.Sprintf(" Status changed from %s to %s.", o.Status, newStatus)
	}
	if tx.Statement.Changed("PaymentReceivedAmount") {
		newAmount := tx.Statement.Dest.(map[string]interface{})["PaymentReceivedAmount"].(decimal.Decimal)
		description += fmt.Sprintf(" Payment received changed from %v to %v.", o.PaymentReceivedAmount, newAmount)
	}
	if err := SaveHistoryUpdate(tx, o.ID, o, description); err != nil {
		return err
	}
	if err := RemoveRedisBoth(o); err != nil {
		return err
	}

	return nil
}

func (o *Order) AfterDelete(tx *gorm.DB) (err error) {
	if err := SaveHistoryDelete(tx, o.ID, o, "Deleted Order "+o.OrderNumber); err != nil {
		return err
	}
	if err := RemoveRedisBoth(o); err != nil {
		return err
	}

	return nil
}

func (l *OrderLine) AfterCreate(tx *gorm.DB) (err error) {
	if err := SaveHistoryCreate(tx, l.ID, l, "Created OrderLine"); err != nil {
		return err
	}

	return nil
}

func (l *OrderLine) BeforeUpdate(tx *gorm.DB) (err error) {
	if err := SaveHistoryUpdate(tx, l.ID, l, "Updated OrderLine"); err != nil {
		return err
	}

	return nil
}

func (l *OrderLine) AfterDelete(tx *gorm.DB) (err error) {
	if err := SaveHistoryDelete(tx, l.ID, l, "Deleted OrderLine"); err != nil {
		return err
	}

	return nil
}
