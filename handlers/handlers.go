package handlers

import (
	"context"

	"droppers-api/logx"
	"droppers-api/models"
	"droppers-api/service"
)

type authService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Profile(ctx context.Context, c service.Caller) (*models.User, error)
	ListUsers(ctx context.Context, c service.Caller, role models.UserRole) ([]models.User, error)
	SetUserActive(ctx context.Context, c service.Caller, id string, active bool) (*models.User, error)
}

type orderService interface {
	CreateOrder(ctx context.Context, c service.Caller, in service.CreateOrderInput) (*models.Order, error)
	GetOrder(ctx context.Context, c service.Caller, id string) (*models.Order, error)
	OrderHistory(ctx context.Context, c service.Caller, id string) ([]models.OrderStatusHistory, error)
	VendorOrders(ctx context.Context, c service.Caller, status string) ([]models.Order, error)
	VendorStats(ctx context.Context, c service.Caller) (models.VendorStats, error)
	CancelOrder(ctx context.Context, c service.Caller, id string) (*models.Order, error)
	UpdateVendorStatus(ctx context.Context, c service.Caller, id string, status models.OrderStatus) (*models.Order, error)
	AvailableOrders(ctx context.Context, c service.Caller) ([]models.Order, error)
	DropperDeliveries(ctx context.Context, c service.Caller, status string) ([]models.Order, error)
	DropperStats(ctx context.Context, c service.Caller) (models.DropperStats, error)
	AcceptOrder(ctx context.Context, c service.Caller, id string) (*models.Order, error)
	AdvanceStatus(ctx context.Context, c service.Caller, id string, to models.OrderStatus) (*models.Order, error)
	CompleteDelivery(ctx context.Context, c service.Caller, id string) (*models.Order, error)
	AllOrders(ctx context.Context, c service.Caller, status string) (*service.AdminOverview, error)
}

// Pinger checks a dependency for the health endpoint.
type Pinger func(ctx context.Context) error

// Handler holds the REST endpoints. Handlers only bind request shapes and
// pick the service call; all rules live in the services.
type Handler struct {
	auth       authService
	orders     orderService
	ping       Pinger
	production bool
	log        logx.Logger
}

type Option func(*Handler)

// WithPinger sets the database check used by Health.
func WithPinger(p Pinger) Option {
	return func(h *Handler) { h.ping = p }
}

// WithProduction hides internal error details from responses.
func WithProduction(on bool) Option {
	return func(h *Handler) { h.production = on }
}

func New(auth authService, orders orderService, log logx.Logger, opts ...Option) *Handler {
	h := &Handler{
		auth:   auth,
		orders: orders,
		log:    log.With(logx.String("component", "http")),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}
