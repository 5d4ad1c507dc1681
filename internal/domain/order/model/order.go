package model

import (
	"time"

	productmodel "phonehub/internal/domain/product/model"
	usermodel "phonehub/internal/domain/user/model"
	base "phonehub/pkg/model"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

// PaymentStatus FAILED / REFUNDED 仅为前端兼容保留，状态机不会写入
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// PaymentMethodCard 货到付款/线下刷卡，由管理员人工确认收款
const PaymentMethodCard = "CARD"

// transitions 管理端可执行的状态流转；PENDING -> PROCESSING 只能由支付确认触发
var transitions = map[Status][]Status{
	StatusPending:    {StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal DELIVERED / CANCELLED 之后不再变化
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition 管理端状态流转是否合法
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Address 收货/账单地址，整体存为 jsonb
type Address struct {
	FirstName string `json:"firstName" binding:"required,min=2"`
	LastName  string `json:"lastName" binding:"required,min=2"`
	Address   string `json:"address" binding:"required,min=5"`
	City      string `json:"city" binding:"required,min=2"`
	State     string `json:"state" binding:"required,min=2"`
	ZipCode   string `json:"zipCode" binding:"required,min=3"`
	Country   string `json:"country" binding:"required,min=2"`
	Phone     string `json:"phone" binding:"required,min=5"`
}

// Order 订单；金额在创建时计算并冻结，之后不再重新推导
type Order struct {
	base.BaseModel
	Reference       string              `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference"`
	UserID          string              `gorm:"type:uuid;index;not null" json:"userId"`
	User            *usermodel.User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID" json:"items"`
	Subtotal        decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	Tax             decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"tax"`
	Total           decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"total"`
	ShippingAddress Address             `gorm:"type:jsonb;serializer:json;not null" json:"shippingAddress"`
	BillingAddress  Address             `gorm:"type:jsonb;serializer:json;not null" json:"billingAddress"`
	PaymentMethod   string              `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	Status          Status              `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	PaymentStatus   PaymentStatus       `gorm:"type:varchar(20);not null;default:'PENDING'" json:"paymentStatus"`
	PaidAt          *time.Time          `json:"paidAt"`
}

// OrderItem 下单时的价格快照
type OrderItem struct {
	ID        string                `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	OrderID   string                `gorm:"type:uuid;index;not null" json:"orderId"`
	ProductID string                `gorm:"type:uuid;index;not null" json:"productId"`
	Product   *productmodel.Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity  int                   `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice decimal.Decimal       `gorm:"type:numeric(12,2);not null" json:"price"`
	LineTotal decimal.Decimal       `gorm:"type:numeric(12,2);not null" json:"total"`
	CreatedAt time.Time             `json:"createdAt"`
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

// AwaitingPayment 订单与支付状态都还是 PENDING
func (o *Order) AwaitingPayment() bool {
	return o.Status == StatusPending && o.PaymentStatus == PaymentPending
}

// ManualPayment CARD 订单没有网关回调，PENDING -> PROCESSING 由管理员确认收款
func (o *Order) ManualPayment() bool {
	return o.PaymentMethod == PaymentMethodCard
}

// CanMoveTo 在状态表之外，允许管理员确认 CARD 订单收款
func (o *Order) CanMoveTo(to Status) bool {
	if o.AwaitingPayment() && o.ManualPayment() && to == StatusProcessing {
		return true
	}
	return CanTransition(o.Status, to)
}

// ProductIDs 订单涉及的商品
func (o *Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
