package models

import (
	"gorm.io/gorm"
)

func (u *User) AfterCreate(tx *gorm.DB) (err error) {
	if u.Role != UserRoleAdmin {
		return createHistory(tx, "REGISTER", u.ID, "users", nil, u, "created "+u.Role.DisplayName()+" user")
	}

	// admin signup has no authenticated caller in the context yet,
	// so the history row is built by hand
	var history History
	history.BusinessId = u.BusinessId
	history.ActionType = "REGISTER"
	history.ReferenceID = u.ID
	history.ReferenceType = "users"
	history.Description = "created admin user"

	// create history
	if err := tx.Create(&history).Error; err != nil {
		return err
	}

	return nil
}

func (u *User) BeforeUpdate(tx *gorm.DB) (err error) {
	// creating history
	if err := SaveHistoryUpdate(tx, u.ID, u, "Updated User"); err != nil {
		return err
	}
	// clearing cache
	if err := u.RemoveInstanceRedis(); err != nil {
		return err
	}

	return nil
}

func (u *User) AfterDelete(tx *gorm.DB) (err error) {
	// creating history
	if err := SaveHistoryDelete(tx, u.ID, u, "Deleted User"); err != nil {
		return err
	}
	// clearing cache
	if err := u.RemoveInstanceRedis(); err != nil {
		return err
	}

	return nil
}
