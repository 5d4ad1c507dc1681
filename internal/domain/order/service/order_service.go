package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"phonehub/internal/domain/order/model"
	"phonehub/internal/domain/order/repository"
	"phonehub/internal/domain/payment/gateway"
	productmodel "phonehub/internal/domain/product/model"
	"phonehub/internal/pkg/notify"
	"phonehub/pkg/logger"
	"phonehub/pkg/metrics"
	"phonehub/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrGatewayUnavailable 网关请求本身失败 (网络/超时)，支付结果未知
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Catalog 订单依赖的商品能力
type Catalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]productmodel.Product, error)
	Invalidate(ctx context.Context, ids ...string)
}

// Options 订单业务配置
type Options struct {
	TaxRate    decimal.Decimal
	AdminEmail string
}

type LineInput struct {
	ProductID string
	Quantity  int
}

type CreateInput struct {
	UserID        string
	Email         string
	Items         []LineInput
	Shipping      model.Address
	Billing       *model.Address
	PaymentMethod string
}

// CreateResult Payment 在 CARD 等无托管会话的方式下为 nil
type CreateResult struct {
	Order   *model.Order     `json:"order"`
	Payment *gateway.Session `json:"payment"`
}

type ListQuery struct {
	Status    string
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
}

type OrderService interface {
	CreateOrder(ctx context.Context, in CreateInput) (*CreateResult, error)
	VerifyPayment(ctx context.Context, reference, userID string, isAdmin bool) (*model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Order, error)
	GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*model.Order, error)
	ListMyOrders(ctx context.Context, userID string) ([]model.Order, error)
	ListOrders(ctx context.Context, q ListQuery, p *utils.Pagination) ([]model.Order, int64, error)
}

type orderService struct {
	repo     repository.OrderRepository
	catalog  Catalog
	gateways *gateway.Registry
	metrics  *metrics.MetricsCollector
	opts     Options
	now      func() time.Time
}

func NewOrderService(repo repository.OrderRepository, catalog Catalog, gateways *gateway.Registry, collector *metrics.MetricsCollector, opts Options) OrderService {
	return &orderService{
		repo:     repo,
		catalog:  catalog,
		gateways: gateways,
		metrics:  collector,
		opts:     opts,
		now:      time.Now,
	}
}

// newReference ORD-<毫秒时间戳>-<8位随机十六进制>
func newReference(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

// mergeLines 合并重复商品，保持首次出现的顺序
func mergeLines(lines []LineInput) []LineInput {
	index := make(map[string]int, len(lines))
	out := make([]LineInput, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

func (s *orderService) supports(method string) bool {
	return method == gateway.MethodCard || s.gateways.Hosted(method)
}

func (s *orderService) CreateOrder(ctx context.Context, in CreateInput) (*CreateResult, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	if !s.supports(in.PaymentMethod) {
		return nil, ErrUnsupportedPaymentMethod
	}

	lines := mergeLines(in.Items)
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	byID := make(map[string]productmodel.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// 1. 校验商品与库存 (时点检查，不锁库存)
	subtotal := decimal.Zero
	items := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			return nil, ErrProductNotFound
		}
		if !p.HasStock(l.Quantity) {
			return nil, &InsufficientStockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
		}
		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
		subtotal = subtotal.Add(lineTotal)
		items = append(items, model.OrderItem{
			ProductID: p.ID,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
			LineTotal: lineTotal,
		})
	}

	// 2. 计算金额，创建后冻结
	tax := subtotal.Mul(s.opts.TaxRate).Round(2)
	billing := in.Shipping
	if in.Billing != nil {
		billing = *in.Billing
	}

	order := &model.Order{
		Reference:       newReference(s.now()),
		UserID:          in.UserID,
		Items:           items,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           subtotal.Add(tax),
		ShippingAddress: in.Shipping,
		BillingAddress:  billing,
		PaymentMethod:   in.PaymentMethod,
		Status:          model.StatusPending,
		PaymentStatus:   model.PaymentPending,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.metrics.OrderCreated(order.PaymentMethod)

	logger.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.String("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)),
	)

	result := &CreateResult{Order: order}
	gw, err := s.gateways.Get(order.PaymentMethod)
	if err != nil {
		// CARD 无托管会话
		return result, nil
	}

	// 3. 发起支付，失败时订单保留为 PENDING
	session, err := gw.Initialize(ctx, gateway.InitRequest{
		Email:       in.Email,
		AmountMinor: order.Total.Shift(2).IntPart(),
		Reference:   order.Reference,
		Subject:     "PhoneHub order " + order.Reference,
		Metadata:    map[string]string{"orderId": order.ID, "userId": order.UserID},
	})
	if err != nil {
		logger.Log.Error("payment initialization failed",
			zap.String("order_id", order.ID),
			zap.String("reference", order.Reference),
			zap.Error(err),
		)
		return nil, &PaymentInitError{OrderID: order.ID, Reference: order.Reference, Err: err}
	}
	result.Payment = session
	return result, nil
}

// VerifyPayment 非本人且非管理员时按不存在处理
func (s *orderService) VerifyPayment(ctx context.Context, reference, userID string, isAdmin bool) (*model.Order, error) {
	order, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, ErrOrderNotFound
	}

	// 已支付直接返回，不再请求网关也不重复扣库存
	if order.IsPaid() {
		return order, nil
	}
	if !order.AwaitingPayment() {
		return nil, ErrOrderNotPayable
	}

	gw, err := s.gateways.Get(order.PaymentMethod)
	if err != nil {
		return nil, ErrUnsupportedPaymentMethod
	}

	v, err := gw.Verify(ctx, reference)
	if err != nil {
		s.metrics.PaymentVerified("error")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !v.Success {
		s.metrics.PaymentVerified("failed")
		logger.Log.Warn("payment not successful",
			zap.String("reference", reference),
			zap.String("gateway_status", v.Status),
		)
		return nil, &VerificationError{Status: v.Status, Detail: v.Raw}
	}
	if want := order.Total.Shift(2).IntPart(); v.AmountMinor != want {
		s.metrics.PaymentVerified("failed")
		logger.Log.Warn("paid amount does not match order total",
			zap.String("reference", reference),
			zap.Int64("paid_minor", v.AmountMinor),
			zap.Int64("total_minor", want),
		)
		return nil, &VerificationError{Status: StatusAmountMismatch, Detail: v.Raw}
	}

	return s.commitPayment(ctx, order)
}

// commitPayment 置为已支付并扣减库存，网关确认与人工确认共用
func (s *orderService) commitPayment(ctx context.Context, order *model.Order) (*model.Order, error) {
	paidAt := s.now()
	msgs, err := s.paidMessages(order, paidAt)
	if err != nil {
		return nil, err
	}

	applied, err := s.repo.MarkPaid(ctx, order, paidAt, msgs...)
	if err != nil {
		var conflict *repository.StockConflictError
		if errors.As(err, &conflict) {
			s.metrics.StockConflict()
			logger.Log.Warn("stock conflict while confirming payment",
				zap.String("reference", order.Reference),
				zap.String("product_id", conflict.ProductID),
			)
			return nil, s.stockError(ctx, order, conflict.ProductID)
		}
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	if !applied {
		latest, err := s.repo.GetByReference(ctx, order.Reference)
		if err != nil {
			return nil, err
		}
		// 并发请求已完成确认，或订单已被取消
		if !latest.IsPaid() {
			return nil, ErrOrderNotPayable
		}
		s.metrics.PaymentVerified("duplicate")
		return latest, nil
	}

	s.metrics.PaymentVerified("success")
	s.catalog.Invalidate(ctx, order.ProductIDs()...)

	logger.Log.Info("payment confirmed",
		zap.String("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.String("payment_method", order.PaymentMethod),
	)

	order.PaymentStatus = model.PaymentPaid
	order.Status = model.StatusProcessing
	order.PaidAt = &paidAt
	for i := range order.Items {
		if p := order.Items[i].Product; p != nil {
			p.Stock -= order.Items[i].Quantity
		}
	}
	return order, nil
}

// paidMessages 客户确认邮件、管理员邮件、推送与 order.paid 事件
func (s *orderService) paidMessages(o *model.Order, paidAt time.Time) ([]*notify.Message, error) {
	var msgs []*notify.Message
	if o.User != nil {
		msgs = append(msgs, confirmationEmail(o, o.User.Email))
		if s.opts.AdminEmail != "" {
			msgs = append(msgs, adminOrderEmail(o, s.opts.AdminEmail, o.User.Name, o.User.Email))
		}
	}
	msgs = append(msgs, paidPush(o))

	event, err := notify.NewEvent(EventOrderPaid, o.ID, OrderEvent{
		Type:          EventOrderPaid,
		OrderID:       o.ID,
		Reference:     o.Reference,
		UserID:        o.UserID,
		Status:        model.StatusProcessing,
		PaymentStatus: model.PaymentPaid,
		Total:         o.Total.StringFixed(2),
		OccurredAt:    paidAt.UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	return append(msgs, event), nil
}

// stockError 读取最新库存用于提示，读取失败时只返回商品 ID
func (s *orderService) stockError(ctx context.Context, o *model.Order, productID string) error {
	e := &InsufficientStockError{ProductID: productID, Name: productID}
	for _, it := range o.Items {
		if it.ProductID == productID && it.Product != nil {
			e.Name = it.Product.Name
		}
	}
	if products, err := s.catalog.FindByIDs(ctx, []string{productID}); err == nil && len(products) == 1 {
		e.Name = products[0].Name
		e.Available = products[0].Stock
	}
	return e
}

func (s *orderService) UpdateStatus(ctx context.Context, id string, status model.Status) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if !order.CanMoveTo(status) {
		return nil, &TransitionError{From: string(order.Status), To: string(status)}
	}

	// CARD 订单人工确认收款，与网关确认一样扣减库存
	if order.AwaitingPayment() && status == model.StatusProcessing {
		confirmed, err := s.commitPayment(ctx, order)
		if errors.Is(err, ErrOrderNotPayable) {
			return nil, &TransitionError{From: string(model.StatusPending), To: string(status)}
		}
		return confirmed, err
	}

	// 已支付订单取消时回补库存
	restock := status == model.StatusCancelled && order.IsPaid()

	var msgs []*notify.Message
	if order.User != nil {
		msgs = append(msgs, statusEmail(order, order.User.Email, status))
	}
	msgs = append(msgs, statusPush(order, status))
	event, err := notify.NewEvent(EventOrderStatusChanged, order.ID, OrderEvent{
		Type:          EventOrderStatusChanged,
		OrderID:       order.ID,
		Reference:     order.Reference,
		UserID:        order.UserID,
		Status:        status,
		PaymentStatus: order.PaymentStatus,
		Total:         order.Total.StringFixed(2),
		OccurredAt:    s.now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, event)

	if err := s.repo.UpdateStatus(ctx, order, status, restock, msgs...); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, &TransitionError{From: string(order.Status), To: string(status)}
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if restock {
		s.catalog.Invalidate(ctx, order.ProductIDs()...)
	}

	logger.Log.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(order.Status)),
		zap.String("to", string(status)),
		zap.Bool("restocked", restock),
	)

	order.Status = status
	return order, nil
}

// GetOrder 非本人且非管理员时按不存在处理
func (s *orderService) GetOrder(ctx context.Context, id, userID string, isAdmin bool) (*model.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListMyOrders(ctx context.Context, userID string) ([]model.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *orderService) ListOrders(ctx context.Context, q ListQuery, p *utils.Pagination) ([]model.Order, int64, error) {
	status := model.Status(strings.ToUpper(q.Status))
	if status != "" && !status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	offset, limit := p.GetPageOffset()
	return s.repo.List(ctx, repository.ListFilter{
		Status:    status,
		Search:    q.Search,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
		Offset:    offset,
		Limit:     limit,
	})
}
