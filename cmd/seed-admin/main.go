// seed-admin creates or updates the admin console user (username: backofficeAdmin).
// Admin users have role = 'A'; the backend returns role "Admin" for login.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME_2=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/models"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	adminUsername = "backofficeAdmin"
	adminPassword = "B@ck0ffice!Admin"
	adminName     = "Back Office Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// Model history hooks require business_id + user info in context.
	// We attach a real business id (first business in DB) and mark this as admin/bypass tenant scope.
	var biz models.Business
	if err := db.WithContext(ctx).Model(&models.Business{}).Select("id").First(&biz).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
			os.Exit(1)
		}
		// Fresh database: bootstrap a starter tenant so the admin has a home.
		biz = models.Business{
			ID:       uuid.New(),
			Name:     "Head Office",
			Email:    "admin@localhost",
			Timezone: "Asia/Yangon",
			IsActive: utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&biz).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create starter business: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created starter business %q (%s)\n", biz.Name, biz.ID)
	}

	businessID := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetUsernameInContext(ctx, adminUsername)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		// Create new admin user
		u := models.User{
			Username:   adminUsername,
			Name:       adminName,
			Password:   hashedStr,
			IsActive:   utils.NewTrue(),
			Role:       models.UserRoleAdmin,
			BusinessId: businessID,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q (role=Admin)\n", adminUsername)
		return
	}

	// Update existing user: ensure password and admin role
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password":    hashedStr,
		"name":        adminName,
		"is_active":   utils.NewTrue(),
		"business_id": businessID,
		"role":        models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin user: username=%q (role=Admin)\n", adminUsername)
}
