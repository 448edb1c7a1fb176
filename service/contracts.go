package service

import (
	"context"

	"droppers-api/models"
	"droppers-api/repository"
)

// Caller is the authenticated identity a request or socket acts as.
type Caller struct {
	ID    string          `json:"id"`
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

type userStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, role models.UserRole) ([]models.User, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type orderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	ListByVendor(ctx context.Context, vendorID string, status models.OrderStatus) ([]models.Order, error)
	ListByDropper(ctx context.Context, dropperID string, status models.OrderStatus) ([]models.Order, error)
	ListAvailable(ctx context.Context) ([]models.Order, error)
	ListAll(ctx context.Context, status models.OrderStatus) ([]models.Order, error)
	Transition(ctx context.Context, spec repository.TransitionSpec) (bool, error)
	History(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error)
	VendorStats(ctx context.Context, vendorID string) (models.VendorStats, error)
	DropperTotals(ctx context.Context, dropperID string) (repository.DropperTotals, error)
}

// Notifier is told about every committed order change. Implementations must
// not block and must treat delivery as best effort.
type Notifier interface {
	OrderCreated(ctx context.Context, o *models.Order)
	OrderAccepted(ctx context.Context, o *models.Order)
	OrderCancelled(ctx context.Context, o *models.Order)
	OrderStatusChanged(ctx context.Context, o *models.Order)
	DeliveryCompleted(ctx context.Context, o *models.Order)
}

type nopNotifier struct{}

func (nopNotifier) OrderCreated(context.Context, *models.Order)       {}
func (nopNotifier) OrderAccepted(context.Context, *models.Order)      {}
func (nopNotifier) OrderCancelled(context.Context, *models.Order)     {}
func (nopNotifier) OrderStatusChanged(context.Context, *models.Order) {}
func (nopNotifier) DeliveryCompleted(context.Context, *models.Order)  {}

// NopNotifier discards notifications.
func NopNotifier() Notifier { return nopNotifier{} }
