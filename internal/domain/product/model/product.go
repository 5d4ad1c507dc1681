package model

import (
	"time"

	base "phonehub/pkg/model"

	"github.com/shopspring/decimal"
)

// Product 商品，删除为软删除以保留历史订单引用
type Product struct {
	base.SoftDeleteModel
	Name           string                 `gorm:"type:varchar(200);not null" json:"name"`
	Description    string                 `gorm:"type:text;not null;default:''" json:"description"`
	Price          decimal.Decimal        `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock          int                    `gorm:"not null;check:stock >= 0" json:"stock"`
	Category       string                 `gorm:"type:varchar(100);index" json:"category"`
	Features       []string               `gorm:"type:jsonb;serializer:json" json:"features"`
	Specifications map[string]interface{} `gorm:"type:jsonb;serializer:json" json:"specifications"`
	Images         []ProductImage         `gorm:"foreignKey:ProductID" json:"images"`
}

// ProductImage 商品图片，存储对象存储的公网地址
type ProductImage struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ProductID string    `gorm:"type:uuid;index;not null" json:"productId"`
	URL       string    `gorm:"type:text;not null" json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasStock 是否满足购买数量
func (p *Product) HasStock(qty int) bool {
	return qty <= p.Stock
}
