package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"droppers-api/models"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// TransitionSpec describes one guarded status change. The update only applies
// while the row still matches From and the ownership constraint.
type TransitionSpec struct {
	OrderID string
	From    models.OrderStatus
	To      models.OrderStatus
	ActorID string
	// Assign requires dropper_id IS NULL and sets it to ActorID.
	Assign bool
	// AsDropper requires dropper_id = ActorID.
	AsDropper bool
	// AsVendor requires vendor_id = ActorID.
	AsVendor bool
	Note     string
}

// DropperTotals are the raw aggregates behind the delivery partner stats.
type DropperTotals struct {
	Total          int64
	Completed      int64
	Active         int64
	DeliveredValue float64
}

func (r *OrderRepository) withUsers(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Vendor").Preload("Dropper")
}

// Create stores a new order together with its initial history entry.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:   o.ID,
			ToStatus:  o.Status,
			ChangedBy: o.VendorID,
			Note:      "order created",
		}).Error
	})
	return translate(err, "order")
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := r.withUsers(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err, "order")
	}
	return &o, nil
}

func (r *OrderRepository) ListByVendor(ctx context.Context, vendorID string, status models.OrderStatus) ([]models.Order, error) {
	q := r.withUsers(ctx).Where("vendor_id = ?", vendorID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return r.find(q.Order("created_at desc"))
}

func (r *OrderRepository) ListByDropper(ctx context.Context, dropperID string, status models.OrderStatus) ([]models.Order, error) {
	q := r.withUsers(ctx).Where("dropper_id = ?", dropperID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return r.find(q.Order("updated_at desc"))
}

// ListAvailable returns unassigned pending orders, oldest first.
func (r *OrderRepository) ListAvailable(ctx context.Context) ([]models.Order, error) {
	q := r.withUsers(ctx).
		Where("status = ? AND dropper_id IS NULL", models.StatusPending).
		Order("created_at asc")
	return r.find(q)
}

func (r *OrderRepository) ListAll(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	q := r.withUsers(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	return r.find(q.Order("created_at desc"))
}

func (r *OrderRepository) find(q *gorm.DB) ([]models.Order, error) {
	orders := []models.Order{}
	if err := q.Find(&orders).Error; err != nil {
		return nil, translate(err, "order")
	}
	return orders, nil
}

// Transition applies spec as a single conditional UPDATE and records history
// in the same transaction. It reports false when the row no longer matched.
func (r *OrderRepository) Transition(ctx context.Context, spec TransitionSpec) (bool, error) {
	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Order{}).Where("id = ? AND status = ?", spec.OrderID, spec.From)
		updates := map[string]any{
			"status":     spec.To,
			"updated_at": time.Now(),
		}
		switch {
		case spec.Assign:
			q = q.Where("dropper_id IS NULL")
			updates["dropper_id"] = spec.ActorID
		case spec.AsDropper:
			q = q.Where("dropper_id = ?", spec.ActorID)
		}
		if spec.AsVendor {
			q = q.Where("vendor_id = ?", spec.ActorID)
		}

		res := q.Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true
		return tx.Create(&models.OrderStatusHistory{
			OrderID:    spec.OrderID,
			FromStatus: spec.From,
			ToStatus:   spec.To,
			ChangedBy:  spec.ActorID,
			Note:       spec.Note,
		}).Error
	})
	if err != nil {
		return false, translate(err, "order")
	}
	return won, nil
}

func (r *OrderRepository) History(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	history := []models.OrderStatusHistory{}
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&history).Error
	if err != nil {
		return nil, translate(err, "order history")
	}
	return history, nil
}

// VendorStats aggregates the vendor's orders. Revenue counts delivered orders only.
func (r *OrderRepository) VendorStats(ctx context.Context, vendorID string) (models.VendorStats, error) {
	var row struct {
		Total     int64
		Pending   int64
		Delivered int64
		Revenue   float64
	}
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS delivered,
			COALESCE(SUM(CASE WHEN status = ? THEN order_value ELSE 0 END), 0) AS revenue`,
			models.StatusPending, models.StatusDelivered, models.StatusDelivered).
		Where("vendor_id = ?", vendorID).
		Scan(&row).Error
	if err != nil {
		return models.VendorStats{}, translate(err, "order")
	}
	return models.VendorStats{
		TotalOrders:     row.Total,
		PendingOrders:   row.Pending,
		DeliveredOrders: row.Delivered,
		TotalRevenue:    row.Revenue,
	}, nil
}

func (r *OrderRepository) DropperTotals(ctx context.Context, dropperID string) (DropperTotals, error) {
	var row DropperTotals
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN status = ? THEN order_value ELSE 0 END), 0) AS delivered_value`,
			models.StatusDelivered, models.ActiveStatuses(), models.StatusDelivered).
		Where("dropper_id = ?", dropperID).
		Scan(&row).Error
	if err != nil {
		return DropperTotals{}, translate(err, "order")
	}
	return row, nil
}
