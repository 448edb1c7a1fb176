package service

import (
	"context"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"

	"droppers-api/apperr"
	"droppers-api/config"
	"droppers-api/distance"
	"droppers-api/logx"
	"droppers-api/metrics"
	"droppers-api/models"
	"droppers-api/repository"
	"droppers-api/statemachine"
)

type CreateOrderInput struct {
	PickupAddress   string  `json:"pickupAddress" validate:"required,address"`
	DeliveryAddress string  `json:"deliveryAddress" validate:"required,address"`
	CustomerName    string  `json:"customerName" validate:"required,personname"`
	CustomerPhone   string  `json:"customerPhone" validate:"required,phone"`
	ItemDescription string  `json:"itemDescription" validate:"required,description"`
	OrderValue      float64 `json:"orderValue" validate:"gte=0"`
}

// AdminOverview is the admin dashboard listing.
type AdminOverview struct {
	Orders       []models.Order `json:"orders"`
	Count        int            `json:"count"`
	Summary      map[string]int `json:"summary"`
	TotalRevenue float64        `json:"totalRevenue"`
}

// OrderService owns the order lifecycle. Every state change is committed
// through a conditional update before it is handed to the notifier.
type OrderService struct {
	orders   orderStore
	distance distance.Estimator
	notifier Notifier
	rules    config.Rules
	validate *validator.Validate
	log      logx.Logger
}

func NewOrderService(orders orderStore, est distance.Estimator, notifier Notifier, rules config.Rules, log logx.Logger) *OrderService {
	if notifier == nil {
		notifier = NopNotifier()
	}
	return &OrderService{
		orders:   orders,
		distance: est,
		notifier: notifier,
		rules:    rules,
		validate: newValidator(rules),
		log:      log.With(logx.String("component", "orders")),
	}
}

// SetNotifier swaps the notifier; used when the broadcast layer is built after the service.
func (s *OrderService) SetNotifier(n Notifier) {
	if n == nil {
		n = NopNotifier()
	}
	s.notifier = n
}

func requireRole(c Caller, role models.UserRole) error {
	if c.Role != role {
		return apperr.Newf(apperr.Authorization, "access denied: requires role %s", role)
	}
	return nil
}

// CreateOrder stores a new PENDING order for the calling vendor.
func (s *OrderService) CreateOrder(ctx context.Context, c Caller, in CreateOrderInput) (*models.Order, error) {
	if err := requireRole(c, models.RoleVendor); err != nil {
		return nil, err
	}
	in.PickupAddress = strings.TrimSpace(in.PickupAddress)
	in.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.ItemDescription = strings.TrimSpace(in.ItemDescription)
	if err := validateStruct(s.validate, s.rules, in); err != nil {
		return nil, err
	}

	km, err := s.distance.Estimate(ctx, in.PickupAddress, in.DeliveryAddress)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to estimate distance", err)
	}
	if km < 0 {
		km = 0
	}

	order := &models.Order{
		PickupAddress:   in.PickupAddress,
		DeliveryAddress: in.DeliveryAddress,
		CustomerName:    in.CustomerName,
		CustomerPhone:   in.CustomerPhone,
		ItemDescription: in.ItemDescription,
		OrderValue:      in.OrderValue,
		Distance:        km,
		Status:          models.StatusPending,
		VendorID:        c.ID,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	created, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(models.StatusPending)).Inc()
	s.log.Info("order created", logx.String("order_id", created.ID), logx.String("vendor_id", c.ID))
	s.notifier.OrderCreated(ctx, created)
	return created, nil
}

// canView reports whether c may see o. Pending orders are visible to every partner.
func canView(c Caller, o *models.Order) bool {
	switch c.Role {
	case models.RoleAdmin:
		return true
	case models.RoleVendor:
		return o.VendorID == c.ID
	case models.RoleDeliveryPartner:
		if o.DropperID != nil {
			return *o.DropperID == c.ID
		}
		return o.Status == models.StatusPending
	}
	return false
}

// GetOrder returns the order if the caller may see it; otherwise NotFound.
func (s *OrderService) GetOrder(ctx context.Context, c Caller, id string) (*models.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(c, o) {
		return nil, apperr.New(apperr.NotFound, "order not found")
	}
	return o, nil
}

// OrderHistory returns the audit trail of an order visible to the caller.
func (s *OrderService) OrderHistory(ctx context.Context, c Caller, id string) ([]models.OrderStatusHistory, error) {
	if _, err := s.GetOrder(ctx, c, id); err != nil {
		return nil, err
	}
	return s.orders.History(ctx, id)
}

func parseStatusFilter(raw string) (models.OrderStatus, error) {
	if raw == "" {
		return "", nil
	}
	st := models.OrderStatus(strings.ToUpper(raw))
	if !st.Valid() {
		return "", apperr.Newf(apperr.Validation, "unknown status %q", raw)
	}
	return st, nil
}

func (s *OrderService) VendorOrders(ctx context.Context, c Caller, status string) ([]models.Order, error) {
	if err := requireRole(c, models.RoleVendor); err != nil {
		return nil, err
	}
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByVendor(ctx, c.ID, st)
}

func (s *OrderService) VendorStats(ctx context.Context, c Caller) (models.VendorStats, error) {
	if err := requireRole(c, models.RoleVendor); err != nil {
		return models.VendorStats{}, err
	}
	st, err := s.orders.VendorStats(ctx, c.ID)
	if err != nil {
		return models.VendorStats{}, err
	}
	st.TotalRevenue = roundCents(st.TotalRevenue)
	return st, nil
}

// CancelOrder moves the vendor's own PENDING order to CANCELLED.
func (s *OrderService) CancelOrder(ctx context.Context, c Caller, id string) (*models.Order, error) {
	if err := requireRole(c, models.RoleVendor); err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.VendorID != c.ID {
		return nil, apperr.New(apperr.Authorization, "this order does not belong to you")
	}
	to, err := statemachine.Next(o.Status, statemachine.EventCancel, c.Role)
	if err != nil {
		return nil, err
	}

	updated, err := s.commit(ctx, repository.TransitionSpec{
		OrderID: o.ID, From: o.Status, To: to, ActorID: c.ID, AsVendor: true,
		Note: "cancelled by vendor",
	})
	if err != nil {
		return nil, err
	}
	s.notifier.OrderCancelled(ctx, updated)
	return updated, nil
}

// UpdateVendorStatus handles the vendor status endpoint. Cancellation is the
// only transition a vendor owns.
func (s *OrderService) UpdateVendorStatus(ctx context.Context, c Caller, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperr.Newf(apperr.Validation, "unknown status %q", status)
	}
	if status == models.StatusCancelled {
		return s.CancelOrder(ctx, c, id)
	}
	if err := requireRole(c, models.RoleVendor); err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.VendorID != c.ID {
		return nil, apperr.New(apperr.Authorization, "this order does not belong to you")
	}
	if _, err := statemachine.CanTransition(o.Status, status, c.Role); err != nil {
		return nil, err
	}
	return nil, apperr.New(apperr.InvalidTransition, "vendors may only cancel orders")
}

func (s *OrderService) AvailableOrders(ctx context.Context, c Caller) ([]models.Order, error) {
	if err := requireRole(c, models.RoleDeliveryPartner); err != nil {
		return nil, err
	}
	return s.orders.ListAvailable(ctx)
}

func (s *OrderService) DropperDeliveries(ctx context.Context, c Caller, status string) ([]models.Order, error) {
	if err := requireRole(c, models.RoleDeliveryPartner); err != nil {
		return nil, err
	}
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByDropper(ctx, c.ID, st)
}

// DropperStats computes earnings as the commission share of delivered order value.
func (s *OrderService) DropperStats(ctx context.Context, c Caller) (models.DropperStats, error) {
	if err := requireRole(c, models.RoleDeliveryPartner); err != nil {
		return models.DropperStats{}, err
	}
	t, err := s.orders.DropperTotals(ctx, c.ID)
	if err != nil {
		return models.DropperStats{}, err
	}
	return models.DropperStats{
		TotalDeliveries:     t.Total,
		CompletedDeliveries: t.Completed,
		ActiveDeliveries:    t.Active,
		TotalEarnings:       roundCents(t.DeliveredValue * s.rules.CommissionRate),
	}, nil
}

// AcceptOrder assigns a PENDING order to the calling partner. Of concurrent
// callers exactly one wins; the others get OrderAlreadyTaken.
func (s *OrderService) AcceptOrder(ctx context.Context, c Caller, id string) (*models.Order, error) {
	if err := requireRole(c, models.RoleDeliveryPartner); err != nil {
		return nil, err
	}
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.StatusPending {
		return nil, s.acceptRefused(c, o)
	}
	to, err := statemachine.Next(o.Status, statemachine.EventAccept, c.Role)
	if err != nil {
		return nil, err
	}

	spec := repository.TransitionSpec{
		OrderID: o.ID, From: models.StatusPending, To: to, ActorID: c.ID, Assign: true,
		Note: "accepted by delivery partner",
	}
	won, err := s.orders.Transition(ctx, spec)
	if err != nil {
		return nil, err
	}
	current, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, s.acceptRefused(c, current)
	}

	metrics.OrderTransitionsTotal.WithLabelValues(string(to)).Inc()
	s.log.Info("order accepted", logx.String("order_id", id), logx.String("dropper_id", c.ID))
	s.notifier.OrderAccepted(ctx, current)
	return current, nil
}

// acceptRefused explains why c cannot accept o. Only an order held by another
// partner that is still in flight counts as taken; everything else is an
// illegal step from the order's current state.
func (s *OrderService) acceptRefused(c Caller, o *models.Order) error {
	if o.DropperID != nil && *o.DropperID != c.ID && !statemachine.IsTerminal(o.Status) {
		metrics.AcceptConflictsTotal.Inc()
		return apperr.Newf(apperr.OrderAlreadyTaken, "order %s has already been accepted by another delivery partner", o.ID)
	}
	if _, err := statemachine.Next(o.Status, statemachine.EventAccept, c.Role); err != nil {
		return err
	}
	return apperr.Newf(apperr.InvalidTransition, "order %s is %s and cannot be accepted", o.ID, o.Status)
}

// AdvanceStatus moves an assigned order one step along the delivery path.
func (s *OrderService) AdvanceStatus(ctx context.Context, c Caller, id string, to models.OrderStatus) (*models.Order, error) {
	if err := requireRole(c, models.RoleDeliveryPartner); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, apperr.Newf(apperr.Validation, "unknown status %q", to)
	}
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.DropperID == nil {
		if o.Status == models.StatusPending {
			return nil, apperr.New(apperr.InvalidTransition, "order must be accepted before its status can change")
		}
		return nil, apperr.Newf(apperr.InvalidTransition, "order is %s", o.Status)
	}
	if *o.DropperID != c.ID {
		return nil, apperr.New(apperr.Authorization, "you are not the assigned delivery partner for this order")
	}
	event, err := statemachine.CanTransition(o.Status, to, c.Role)
	if err != nil {
		return nil, err
	}

	updated, err := s.commit(ctx, repository.TransitionSpec{
		OrderID: o.ID, From: o.Status, To: to, ActorID: c.ID, AsDropper: true,
		Note: strings.ReplaceAll(string(event), "_", " "),
	})
	if err != nil {
		return nil, err
	}
	if to == models.StatusDelivered {
		s.notifier.DeliveryCompleted(ctx, updated)
	} else {
		s.notifier.OrderStatusChanged(ctx, updated)
	}
	return updated, nil
}

// CompleteDelivery marks an IN_TRANSIT order as DELIVERED.
func (s *OrderService) CompleteDelivery(ctx context.Context, c Caller, id string) (*models.Order, error) {
	return s.AdvanceStatus(ctx, c, id, models.StatusDelivered)
}

// AllOrders is the admin overview with a per-status summary.
func (s *OrderService) AllOrders(ctx context.Context, c Caller, status string) (*AdminOverview, error) {
	if err := requireRole(c, models.RoleAdmin); err != nil {
		return nil, err
	}
	st, err := parseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListAll(ctx, st)
	if err != nil {
		return nil, err
	}
	out := &AdminOverview{Orders: orders, Count: len(orders), Summary: map[string]int{}}
	for _, o := range orders {
		out.Summary[string(o.Status)]++
		if o.Status == models.StatusDelivered {
			out.TotalRevenue += o.OrderValue
		}
	}
	out.TotalRevenue = roundCents(out.TotalRevenue)
	return out, nil
}

// commit applies spec and reloads the order. A lost conditional update means
// the row changed underneath us; the fresh state decides the error.
func (s *OrderService) commit(ctx context.Context, spec repository.TransitionSpec) (*models.Order, error) {
	won, err := s.orders.Transition(ctx, spec)
	if err != nil {
		return nil, err
	}
	current, err := s.orders.FindByID(ctx, spec.OrderID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperr.Newf(apperr.InvalidTransition,
			"order is now %s; cannot move it to %s", current.Status, spec.To)
	}
	metrics.OrderTransitionsTotal.WithLabelValues(string(spec.To)).Inc()
	s.log.Info("order status changed",
		logx.String("order_id", spec.OrderID),
		logx.String("from", string(spec.From)),
		logx.String("to", string(spec.To)),
		logx.String("actor_id", spec.ActorID))
	return current, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
