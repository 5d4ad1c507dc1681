package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"phonehub/internal/domain/order/model"
	"phonehub/internal/domain/order/service"
	"phonehub/internal/pkg/middleware"
	"phonehub/pkg/logger"
	"phonehub/pkg/response"
	"phonehub/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(service service.OrderService) *OrderHandler {
	return &OrderHandler{service: service}
}

type OrderItemInput struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	ShippingAddress model.Address    `json:"shippingAddress" binding:"required"`
	BillingAddress  *model.Address   `json:"billingAddress" binding:"omitempty"`
	PaymentMethod   string           `json:"paymentMethod" binding:"required,oneof=PAYSTACK CARD ALIPAY WECHAT"`
}

type UpdateStatusInput struct {
	Status string `json:"status" binding:"required"`
}

type ListOrdersQuery struct {
	utils.Pagination
	Status    string `form:"status"`
	Search    string `form:"search"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
}

// CreateOrder 下单
// @Summary 创建订单并发起支付
// @Tags Orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateOrderInput true "order"
// @Success 201 {object} response.Response{data=service.CreateResult}
// @Failure 400 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	lines := make([]service.LineInput, 0, len(input.Items))
	for _, it := range input.Items {
		lines = append(lines, service.LineInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res, err := h.service.CreateOrder(c.Request.Context(), service.CreateInput{
		UserID:        middleware.CurrentUserID(c),
		Email:         middleware.CurrentEmail(c),
		Items:         lines,
		Shipping:      input.ShippingAddress,
		Billing:       input.BillingAddress,
		PaymentMethod: input.PaymentMethod,
	})
	if err != nil {
		var initErr *service.PaymentInitError
		if errors.As(err, &initErr) {
			response.ErrorWithData(c, http.StatusBadGateway, response.ErrPaymentInit, "Failed to initialize payment",
				gin.H{"orderId": initErr.OrderID, "reference": initErr.Reference})
			return
		}
		h.fail(c, err, http.StatusBadRequest)
		return
	}

	response.Created(c, "Order created successfully", res)
}

// VerifyPayment 支付确认
// @Summary 向网关确认支付结果
// @Tags Orders
// @Produce json
// @Param reference path string true "order reference"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Security BearerAuth
// @Router /orders/verify-payment/{reference} [post]
func (h *OrderHandler) VerifyPayment(c *gin.Context) {
	order, err := h.service.VerifyPayment(c.Request.Context(), c.Param("reference"),
		middleware.CurrentUserID(c), middleware.IsAdmin(c))
	if err != nil {
		var vErr *service.VerificationError
		if errors.As(err, &vErr) {
			response.ErrorWithData(c, http.StatusBadRequest, response.ErrPaymentVerifyFailed, "Payment verification failed",
				gin.H{"status": vErr.Status, "details": vErr.Detail})
			return
		}
		h.fail(c, err, http.StatusConflict)
		return
	}
	response.SuccessWithMessage(c, "Payment verified successfully", gin.H{"order": order})
}

// UpdateOrderStatus 管理员修改订单状态
// @Summary 修改订单状态
// @Tags Orders
// @Accept json
// @Security BearerAuth
// @Param id path string true "order id"
// @Param body body UpdateStatusInput true "status"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /orders/{id}/status [patch]
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	var input UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	order, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), model.Status(strings.ToUpper(input.Status)))
	if err != nil {
		h.fail(c, err, http.StatusConflict)
		return
	}
	response.SuccessWithMessage(c, "Order status updated successfully", gin.H{"order": order})
}

// MyOrders 当前用户订单
// @Summary 我的订单
// @Tags Orders
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /orders/my-orders [get]
func (h *OrderHandler) MyOrders(c *gin.Context) {
	orders, err := h.service.ListMyOrders(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.ServerError(c, err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	response.Success(c, gin.H{"orders": orders})
}

// GetOrder 订单详情，仅本人或管理员可见
// @Summary 订单详情
// @Tags Orders
// @Security BearerAuth
// @Param id path string true "order id"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.service.GetOrder(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), middleware.IsAdmin(c))
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	response.Success(c, gin.H{"order": order})
}

// ListOrders 管理员订单列表
// @Summary 订单列表
// @Tags Orders
// @Security BearerAuth
// @Param status query string false "status"
// @Param search query string false "order id, user name or email"
// @Param startDate query string false "2006-01-02 or RFC3339"
// @Param endDate query string false "2006-01-02 or RFC3339"
// @Param page query int false "page"
// @Param limit query int false "limit"
// @Success 200 {object} response.Response
// @Router /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var q ListOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	start, err := parseDate(q.StartDate, false)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid startDate")
		return
	}
	end, err := parseDate(q.EndDate, true)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid endDate")
		return
	}

	orders, total, err := h.service.ListOrders(c.Request.Context(), service.ListQuery{
		Status:    q.Status,
		Search:    q.Search,
		StartDate: start,
		EndDate:   end,
	}, &q.Pagination)
	if err != nil {
		h.fail(c, err, http.StatusBadRequest)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	response.Success(c, gin.H{
		"orders":     orders,
		"pagination": q.Pagination.Meta(total),
	})
}

// fail stockStatus: 下单时库存不足为 400，支付确认时为 409
func (h *OrderHandler) fail(c *gin.Context, err error, stockStatus int) {
	var stockErr *service.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		response.ErrorWithData(c, stockStatus, response.ErrInsufficientStock, stockErr.Error(),
			gin.H{"productId": stockErr.ProductID, "available": stockErr.Available})
	case errors.Is(err, service.ErrProductNotFound):
		response.Error(c, http.StatusBadRequest, response.ErrProductNotFound, "One or more products not found")
	case errors.Is(err, service.ErrOrderNotFound):
		response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "Order not found")
	case errors.Is(err, service.ErrOrderNotPayable):
		response.Error(c, http.StatusConflict, response.ErrOrderNotPayable, "Order is no longer awaiting payment")
	case errors.Is(err, service.ErrInvalidStatusTransition):
		response.Error(c, http.StatusConflict, response.ErrInvalidTransition, err.Error())
	case errors.Is(err, service.ErrInvalidStatus):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid order status")
	case errors.Is(err, service.ErrUnsupportedPaymentMethod):
		response.Error(c, http.StatusBadRequest, response.ErrUnsupportedPayMethod, "Payment method is not available")
	case errors.Is(err, service.ErrEmptyCart):
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
	case errors.Is(err, service.ErrGatewayUnavailable):
		logger.Log.Warn("payment gateway unavailable", zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.Error(c, http.StatusBadGateway, response.ErrPaymentVerifyFailed, "Payment gateway unavailable, please retry")
	default:
		response.ServerError(c, err)
	}
}

// parseDate 支持日期或 RFC3339；仅日期的结束时间取当天最后一刻
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
