// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"droppers-api/config"
	"droppers-api/models"
)

// OpenDB opens a private in-memory SQLite database with all tables migrated.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := config.OpenDB(config.Database{Driver: config.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = config.CloseDB(db) })
	return db
}

// CreateUser inserts a user with the given role and returns it.
func CreateUser(t *testing.T, db *gorm.DB, name string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{
		Email:        name + "-" + uuid.NewString()[:8] + "@droppers.test",
		PasswordHash: "x",
		Name:         name,
		Phone:        "+15550000000",
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// NewOrder returns an unsaved pending order owned by vendorID.
func NewOrder(vendorID string, value float64) *models.Order {
	return &models.Order{
		PickupAddress:   "12 Market Street",
		DeliveryAddress: "48 Harbour Road",
		CustomerName:    "Jane Customer",
		CustomerPhone:   "+15551234567",
		ItemDescription: "Box of books",
		OrderValue:      value,
		Distance:        4.2,
		Status:          models.StatusPending,
		VendorID:        vendorID,
	}
}
