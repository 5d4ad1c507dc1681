package repository

import (
	"context"
	"errors"
	"strings"

	"phonehub/internal/domain/product/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrStockConflict 条件扣减未命中：库存已被其他订单占用
var ErrStockConflict = errors.New("stock changed concurrently")

// sortColumns 允许排序的字段，避免拼接任意列名
var sortColumns = map[string]string{
	"createdAt": "created_at",
	"price":     "price",
	"name":      "name",
	"stock":     "stock",
}

// ListFilter 商品列表筛选
type ListFilter struct {
	Category string
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
	Order    string
	Offset   int
	Limit    int
}

type ProductRepository interface {
	Create(ctx context.Context, p *model.Product) error
	GetByID(ctx context.Context, id string) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Product, error)
	List(ctx context.Context, f ListFilter) ([]model.Product, int64, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id string) error
	AddImages(ctx context.Context, productID string, urls []string) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, gorm.ErrRecordNotFound
	}
	var p model.Product
	err := r.db.WithContext(ctx).Preload("Images").Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindByIDs 批量查询，不存在的 ID 不会出现在结果中
func (r *productRepository) FindByIDs(ctx context.Context, ids []string) ([]model.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	var products []model.Product
	err := r.db.WithContext(ctx).Where("id IN ?", valid).Find(&products).Error
	return products, err
}

func (r *productRepository) List(ctx context.Context, f ListFilter) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	where := func(db *gorm.DB) *gorm.DB {
		if f.Category != "" {
			db = db.Where("LOWER(category) = LOWER(?)", f.Category)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + s + "%"
			db = db.Where("name ILIKE ? OR description ILIKE ?", like, like)
		}
		if f.MinPrice != nil {
			db = db.Where("price >= ?", *f.MinPrice)
		}
		if f.MaxPrice != nil {
			db = db.Where("price <= ?", *f.MaxPrice)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&model.Product{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Scopes(where).
		Preload("Images").
		Order(orderClause(f.Sort, f.Order)).
		Offset(f.Offset).
		Limit(f.Limit).
		Find(&products).Error
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Update 保存基础字段，图片单独维护
func (r *productRepository) Update(ctx context.Context, p *model.Product) error {
	return r.db.WithContext(ctx).Model(p).
		Select("name", "description", "price", "stock", "category", "features", "specifications").
		Updates(p).Error
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *productRepository) AddImages(ctx context.Context, productID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	images := make([]model.ProductImage, 0, len(urls))
	for _, u := range urls {
		images = append(images, model.ProductImage{ID: uuid.New().String(), ProductID: productID, URL: u})
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

// DecrementStock 在调用方事务中条件扣减：stock >= qty 才会命中，
// 并发支付确认不会把库存扣成负数
func DecrementStock(tx *gorm.DB, productID string, qty int) error {
	res := tx.Model(&model.Product{}).Unscoped().
		Where("id = ? AND stock >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStockConflict
	}
	return nil
}

// IncrementStock 取消已支付订单时回补库存
func IncrementStock(tx *gorm.DB, productID string, qty int) error {
	return tx.Model(&model.Product{}).Unscoped().
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty)).Error
}

func orderClause(sort, order string) string {
	col, ok := sortColumns[sort]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}
	return col + " " + dir
}
