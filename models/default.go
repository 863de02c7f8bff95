package models

import (
	"context"

	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"gorm.io/gorm"
)

func CreateDefaultOwner(tx *gorm.DB, ctx context.Context, businessId string, email string, name string) (*User, error) {

	hashedPassword, err := utils.HashPassword("default123")
	if err != nil {
		return &User{}, err
	}

	owner := User{
		BusinessId: businessId,
		Username:   email,
		Name:       name,
		Email:      &email,
		Password:   string(hashedPassword),
		IsActive:   utils.NewTrue(),
		Role:       UserRoleOwner,
	}
	if err := tx.WithContext(ctx).Create(&owner).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return &owner, nil
}

func CreateDefaultWarehouse(tx *gorm.DB, ctx context.Context, businessId string) error {

	warehouse := Warehouse{
		BusinessId: businessId,
		Name:       "Primary Warehouse",
		IsActive:   utils.NewTrue(),
	}

	if err := tx.WithContext(ctx).Create(&warehouse).Error; err != nil {
		tx.Rollback()
		return err
	}

	return nil
}
