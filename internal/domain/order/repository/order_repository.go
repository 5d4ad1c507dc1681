package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"phonehub/internal/domain/order/model"
	productrepo "phonehub/internal/domain/product/repository"
	"phonehub/internal/pkg/notify"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStatusChanged 条件更新未命中：订单状态已被其他请求修改
var ErrStatusChanged = errors.New("order status changed concurrently")

// StockConflictError 支付确认时某商品库存不足，整个事务已回滚
type StockConflictError struct {
	ProductID string
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("stock conflict on product %s", e.ProductID)
}

func (e *StockConflictError) Unwrap() error {
	return productrepo.ErrStockConflict
}

// ListFilter 管理端订单筛选
type ListFilter struct {
	Status    model.Status
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
	Offset    int
	Limit     int
}

type OrderRepository interface {
	// Create 订单与明细在同一事务内写入
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByReference(ctx context.Context, reference string) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)
	List(ctx context.Context, f ListFilter) ([]model.Order, int64, error)
	// MarkPaid 条件置为已支付并扣减库存；applied=false 表示订单已被确认或已取消
	MarkPaid(ctx context.Context, o *model.Order, paidAt time.Time, msgs ...*notify.Message) (applied bool, err error)
	// UpdateStatus 条件流转状态，restock 为 true 时回补库存
	UpdateStatus(ctx context.Context, o *model.Order, to model.Status, restock bool, msgs ...*notify.Message) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items", "User").Create(o).Error; err != nil {
			return err
		}
		for i := range o.Items {
			o.Items[i].OrderID = o.ID
			if o.Items[i].ID == "" {
				o.Items[i].ID = uuid.New().String()
			}
		}
		if len(o.Items) == 0 {
			return nil
		}
		return tx.Omit("Product").Create(&o.Items).Error
	})
}

// withDetails 明细商品 (含已软删除) 与下单用户
func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("User")
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var o model.Order
	if err := r.db.WithContext(ctx).Scopes(withDetails).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) GetByReference(ctx context.Context, reference string) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).Scopes(withDetails).Where("reference = ?", reference).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser 最新的订单在前
func (r *orderRepository) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepository) List(ctx context.Context, f ListFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	where := func(db *gorm.DB) *gorm.DB {
		if f.Status != "" {
			db = db.Where("orders.status = ?", f.Status)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + s + "%"
			db = db.Joins("LEFT JOIN users ON users.id = orders.user_id").
				Where("CAST(orders.id AS TEXT) ILIKE ? OR orders.reference ILIKE ? OR users.name ILIKE ? OR users.email ILIKE ?",
					like, like, like, like)
		}
		if f.StartDate != nil {
			db = db.Where("orders.created_at >= ?", *f.StartDate)
		}
		if f.EndDate != nil {
			db = db.Where("orders.created_at <= ?", *f.EndDate)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&model.Order{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Scopes(where, withDetails).
		Order("orders.created_at DESC").
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, o *model.Order, paidAt time.Time, msgs ...*notify.Message) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 只确认仍在等待支付的订单，已取消的订单不会被复活
		res := tx.Model(&model.Order{}).
			Where("id = ? AND payment_status = ? AND status = ?", o.ID, model.PaymentPending, model.StatusPending).
			Updates(map[string]interface{}{
				"payment_status": model.PaymentPaid,
				"status":         model.StatusProcessing,
				"paid_at":        paidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		for _, it := range o.Items {
			if err := productrepo.DecrementStock(tx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, productrepo.ErrStockConflict) {
					return &StockConflictError{ProductID: it.ProductID}
				}
				return err
			}
		}

		if err := notify.Enqueue(tx, msgs...); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, o *model.Order, to model.Status, restock bool, msgs ...*notify.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", o.ID, o.Status).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusChanged
		}

		if restock {
			for _, it := range o.Items {
				if err := productrepo.IncrementStock(tx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}
		return notify.Enqueue(tx, msgs...)
	})
}
