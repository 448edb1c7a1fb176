package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus represents all possible states of a delivery order
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusAssigned  OrderStatus = "ASSIGNED"
	StatusPickedUp  OrderStatus = "PICKED_UP"
	StatusInTransit OrderStatus = "IN_TRANSIT"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

var allStatuses = [...]OrderStatus{
	StatusPending, StatusAssigned, StatusPickedUp, StatusInTransit, StatusDelivered, StatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ActiveStatuses are the statuses of an order held by a delivery partner but not yet delivered.
func ActiveStatuses() []OrderStatus {
	return []OrderStatus{StatusAssigned, StatusPickedUp, StatusInTransit}
}

type Order struct {
	ID              string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	PickupAddress   string      `json:"pickupAddress" gorm:"not null"`
	DeliveryAddress string      `json:"deliveryAddress" gorm:"not null"`
	CustomerName    string      `json:"customerName" gorm:"not null"`
	CustomerPhone   string      `json:"customerPhone" gorm:"not null"`
	ItemDescription string      `json:"itemDescription" gorm:"not null"`
	OrderValue      float64     `json:"orderValue" gorm:"not null;default:0"`
	Distance        float64     `json:"distance" gorm:"not null;default:0"`
	Status          OrderStatus `json:"status" gorm:"type:varchar(32);not null;default:'PENDING';index"`
	VendorID        string      `json:"vendorId" gorm:"type:varchar(36);not null;index"`
	Vendor          *User       `json:"-" gorm:"foreignKey:VendorID"`
	DropperID       *string     `json:"dropperId" gorm:"type:varchar(36);index"`
	Dropper         *User       `json:"-" gorm:"foreignKey:DropperID"`
	CreatedAt       time.Time   `json:"createdAt" gorm:"index"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// MarshalJSON attaches public vendor/dropper summaries instead of full user rows.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		Vendor  *UserSummary `json:"vendor,omitempty"`
		Dropper *UserSummary `json:"dropper,omitempty"`
	}{
		plain:   plain(o),
		Vendor:  o.Vendor.Summary(),
		Dropper: o.Dropper.Summary(),
	})
}

// OrderStatusHistory tracks every committed status change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    string      `json:"orderId" gorm:"type:varchar(36);not null;index"`
	FromStatus OrderStatus `json:"fromStatus" gorm:"type:varchar(32)"`
	ToStatus   OrderStatus `json:"toStatus" gorm:"type:varchar(32);not null"`
	ChangedBy  string      `json:"changedBy" gorm:"type:varchar(36)"`
	Note       string      `json:"note"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// VendorStats is the vendor dashboard aggregate.
type VendorStats struct {
	TotalOrders     int64   `json:"totalOrders"`
	PendingOrders   int64   `json:"pendingOrders"`
	DeliveredOrders int64   `json:"deliveredOrders"`
	TotalRevenue    float64 `json:"totalRevenue"`
}

// DropperStats is the delivery partner dashboard aggregate.
type DropperStats struct {
	TotalDeliveries     int64   `json:"totalDeliveries"`
	CompletedDeliveries int64   `json:"completedDeliveries"`
	ActiveDeliveries    int64   `json:"activeDeliveries"`
	TotalEarnings       float64 `json:"totalEarnings"`
}
