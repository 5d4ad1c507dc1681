package service

import (
	"fmt"

	"phonehub/internal/domain/order/model"
	"phonehub/internal/pkg/notify"
)

// OrderEvent 写入 Kafka 的订单事件
type OrderEvent struct {
	Type          string              `json:"type"`
	OrderID       string              `json:"orderId"`
	Reference     string              `json:"reference"`
	UserID        string              `json:"userId"`
	Status        model.Status        `json:"status"`
	PaymentStatus model.PaymentStatus `json:"paymentStatus"`
	Total         string              `json:"total"`
	OccurredAt    int64               `json:"occurredAt"`
}

const (
	EventOrderPaid          = "order.paid"
	EventOrderStatusChanged = "order.status_changed"
)

func confirmationEmail(o *model.Order, to string) *notify.Message {
	total := o.Total.StringFixed(2)
	return notify.NewEmail("order_confirmation", to,
		"Order Confirmation - PhoneHub",
		fmt.Sprintf("Thank you for your order! Your order #%s has been confirmed and is being processed.", o.ID),
		fmt.Sprintf("<h1>Order Confirmation</h1><p>Thank you for your order!</p><p>Your order #%s has been confirmed and is being processed.</p><p>Total: $%s</p>", o.ID, total),
	)
}

func adminOrderEmail(o *model.Order, adminEmail, name, email string) *notify.Message {
	total := o.Total.StringFixed(2)
	return notify.NewEmail("admin_new_order", adminEmail,
		"New Order Received - PhoneHub",
		fmt.Sprintf("A new order #%s has been placed by %s (%s). Total: $%s", o.ID, name, email, total),
		fmt.Sprintf("<h1>New Order Received</h1><p>A new order #%s has been placed by %s (%s).</p><p>Total: $%s</p>", o.ID, name, email, total),
	)
}

func statusEmail(o *model.Order, to string, status model.Status) *notify.Message {
	return notify.NewEmail("order_status", to,
		"Order Status Update - PhoneHub",
		fmt.Sprintf("Your order #%s status has been updated to %s.", o.ID, status),
		fmt.Sprintf("<h1>Order Status Update</h1><p>Your order #%s status has been updated to %s.</p>", o.ID, status),
	)
}

func paidPush(o *model.Order) *notify.Message {
	return notify.NewPush(o.UserID, "Payment received",
		fmt.Sprintf("Your order %s is confirmed and being processed.", o.Reference),
		map[string]string{"orderId": o.ID, "status": string(model.StatusProcessing)},
	)
}

func statusPush(o *model.Order, status model.Status) *notify.Message {
	return notify.NewPush(o.UserID, "Order update",
		fmt.Sprintf("Your order %s is now %s.", o.Reference, status),
		map[string]string{"orderId": o.ID, "status": string(status)},
	)
}
