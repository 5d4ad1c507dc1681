package service

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrProductNotFound           = errors.New("one or more products not found")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrPaymentInit               = errors.New("failed to initialize payment")
	ErrOrderNotFound             = errors.New("order not found")
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrInvalidStatus             = errors.New("invalid order status")
	ErrInvalidStatusTransition   = errors.New("invalid order status transition")
	ErrUnsupportedPaymentMethod  = errors.New("unsupported payment method")
	ErrEmptyCart                 = errors.New("order must contain at least one item")
	ErrOrderNotPayable           = errors.New("order is no longer awaiting payment")
)

// StatusAmountMismatch 网关实收金额与订单总额不一致
const StatusAmountMismatch = "amount_mismatch"

// InsufficientStockError 携带商品与可用数量，用于提示用户
type InsufficientStockError struct {
	ProductID string
	Name      string
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Not enough stock for %s. Available: %d", e.Name, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// PaymentInitError 订单已保存为 PENDING，但网关会话创建失败
type PaymentInitError struct {
	OrderID   string
	Reference string
	Err       error
}

func (e *PaymentInitError) Error() string {
	return fmt.Sprintf("initialize payment for order %s: %v", e.OrderID, e.Err)
}

func (e *PaymentInitError) Unwrap() []error {
	return []error{ErrPaymentInit, e.Err}
}

// VerificationError 网关返回未成功，Detail 为网关原始数据
type VerificationError struct {
	Status string
	Detail json.RawMessage
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("payment verification failed: status %q", e.Status)
}

func (e *VerificationError) Unwrap() error {
	return ErrPaymentVerificationFailed
}

// TransitionError 当前状态不允许流转到目标状态
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}
