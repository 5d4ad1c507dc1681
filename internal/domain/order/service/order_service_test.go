package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"phonehub/internal/domain/order/model"
	"phonehub/internal/domain/order/repository"
	"phonehub/internal/domain/payment/gateway"
	productmodel "phonehub/internal/domain/product/model"
	usermodel "phonehub/internal/domain/user/model"
	"phonehub/internal/pkg/notify"
	"phonehub/pkg/metrics"
	"phonehub/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	productP1 = "11111111-1111-4111-8111-111111111111"
	productP2 = "22222222-2222-4222-8222-222222222222"
	buyerID   = "33333333-3333-4333-8333-333333333333"
)

// memStore 内存版订单仓库 + 商品目录，库存扣减语义与 SQL 条件更新一致
type memStore struct {
	mu          sync.Mutex
	products    map[string]*productmodel.Product
	orders      map[string]*model.Order
	users       map[string]*usermodel.User
	outbox      []*notify.Message
	invalidated []string
}

func newMemStore() *memStore {
	s := &memStore{
		products: map[string]*productmodel.Product{},
		orders:   map[string]*model.Order{},
		users:    map[string]*usermodel.User{},
	}
	u := &usermodel.User{Name: "Ada", Email: "ada@example.com", Role: usermodel.RoleUser}
	u.ID = buyerID
	s.users[buyerID] = u
	return s
}

func (s *memStore) addProduct(id, name, price string, stock int) {
	p := &productmodel.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	p.ID = id
	s.products[id] = p
}

func (s *memStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *memStore) clone(o *model.Order) *model.Order {
	c := *o
	c.Items = make([]model.OrderItem, len(o.Items))
	for i, it := range o.Items {
		c.Items[i] = it
		if p, ok := s.products[it.ProductID]; ok {
			pc := *p
			c.Items[i].Product = &pc
		}
	}
	if u, ok := s.users[o.UserID]; ok {
		uc := *u
		c.User = &uc
	}
	return &c
}

func (s *memStore) Create(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = uuid.NewString()
	o.CreatedAt = time.Now()
	for i := range o.Items {
		o.Items[i].ID = uuid.NewString()
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Items = append([]model.OrderItem(nil), o.Items...)
	s.orders[o.ID] = &stored
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s.clone(o), nil
}

func (s *memStore) GetByReference(_ context.Context, reference string) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Reference == reference {
			return s.clone(o), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memStore) ListByUser(_ context.Context, userID string) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *s.clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) List(_ context.Context, f repository.ListFilter) ([]model.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Order
	for _, o := range s.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, *s.clone(o))
		}
	}
	return out, int64(len(out)), nil
}

func (s *memStore) MarkPaid(_ context.Context, o *model.Order, paidAt time.Time, msgs ...*notify.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.orders[o.ID]
	if stored.PaymentStatus != model.PaymentPending || stored.Status != model.StatusPending {
		return false, nil
	}
	for _, it := range stored.Items {
		if s.products[it.ProductID].Stock < it.Quantity {
			return false, &repository.StockConflictError{ProductID: it.ProductID}
		}
	}
	for _, it := range stored.Items {
		s.products[it.ProductID].Stock -= it.Quantity
	}
	stored.PaymentStatus = model.PaymentPaid
	stored.Status = model.StatusProcessing
	stored.PaidAt = &paidAt
	s.outbox = append(s.outbox, msgs...)
	return true, nil
}

func (s *memStore) UpdateStatus(_ context.Context, o *model.Order, to model.Status, restock bool, msgs ...*notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := s.orders[o.ID]
	if stored.Status != o.Status {
		return repository.ErrStatusChanged
	}
	stored.Status = to
	if restock {
		for _, it := range stored.Items {
			s.products[it.ProductID].Stock += it.Quantity
		}
	}
	s.outbox = append(s.outbox, msgs...)
	return nil
}

func (s *memStore) FindByIDs(_ context.Context, ids []string) ([]productmodel.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []productmodel.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) Invalidate(_ context.Context, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, ids...)
}

func (s *memStore) channels() map[notify.Channel]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[notify.Channel]int{}
	for _, m := range s.outbox {
		out[m.Channel]++
	}
	return out
}

// MockGateway is a mock of gateway.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Initialize(ctx context.Context, req gateway.InitRequest) (*gateway.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Session), args.Error(1)
}

func (m *MockGateway) Verify(ctx context.Context, reference string) (*gateway.Verification, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Verification), args.Error(1)
}

func setup(t *testing.T) (*orderService, *memStore, *MockGateway) {
	t.Helper()
	store := newMemStore()
	store.addProduct(productP1, "Pixel 9", "100", 10)
	store.addProduct(productP2, "Galaxy S25", "19.99", 5)

	gw := new(MockGateway)
	reg := gateway.NewRegistry()
	reg.Register(gateway.MethodPaystack, gw)

	svc := NewOrderService(store, store, reg, metrics.NewMetricsCollector(), Options{
		TaxRate:    decimal.RequireFromString("0.05"),
		AdminEmail: "admin@phonehub.test",
	}).(*orderService)
	return svc, store, gw
}

func address() model.Address {
	return model.Address{
		FirstName: "Ada", LastName: "Lovelace", Address: "12 Marina Road", City: "Lagos",
		State: "Lagos", ZipCode: "100001", Country: "Nigeria", Phone: "+2348000000",
	}
}

func cardInput(lines ...LineInput) CreateInput {
	return CreateInput{
		UserID:        buyerID,
		Email:         "ada@example.com",
		Items:         lines,
		Shipping:      address(),
		PaymentMethod: gateway.MethodCard,
	}
}

func TestCreateOrder_Totals(t *testing.T) {
	svc, store, _ := setup(t)

	res, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP1, Quantity: 2}))
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, "200", o.Subtotal.String())
	assert.Equal(t, "10", o.Tax.String())
	assert.Equal(t, "210", o.Total.String())
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.Tax)))
	assert.Regexp(t, `^ORD-\d+-[0-9a-f]{8}$`, o.Reference)
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, model.PaymentPending, o.PaymentStatus)
	assert.Equal(t, address(), o.BillingAddress)
	assert.Nil(t, res.Payment)

	// 下单只检查库存，不扣减
	assert.Equal(t, 10, store.stock(productP1))
	assert.Len(t, store.orders, 1)
}

func TestCreateOrder_TaxRounding(t *testing.T) {
	svc, _, _ := setup(t)

	res, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP2, Quantity: 3}))
	require.NoError(t, err)
	assert.Equal(t, "59.97", res.Order.Subtotal.StringFixed(2))
	assert.Equal(t, "3.00", res.Order.Tax.StringFixed(2))
	assert.Equal(t, "62.97", res.Order.Total.StringFixed(2))
	assert.Equal(t, "19.99", res.Order.Items[0].UnitPrice.StringFixed(2))
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	svc, store, _ := setup(t)

	_, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP1, Quantity: 20}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Available: 10")

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Pixel 9", stockErr.Name)
	assert.Empty(t, store.orders)
}

func TestCreateOrder_MergesDuplicateLines(t *testing.T) {
	svc, store, _ := setup(t)

	_, err := svc.CreateOrder(context.Background(), cardInput(
		LineInput{ProductID: productP1, Quantity: 6},
		LineInput{ProductID: productP1, Quantity: 6},
	))
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Empty(t, store.orders)

	res, err := svc.CreateOrder(context.Background(), cardInput(
		LineInput{ProductID: productP1, Quantity: 1},
		LineInput{ProductID: productP2, Quantity: 1},
		LineInput{ProductID: productP1, Quantity: 2},
	))
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 2)
	assert.Equal(t, productP1, res.Order.Items[0].ProductID)
	assert.Equal(t, 3, res.Order.Items[0].Quantity)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	svc, store, _ := setup(t)

	_, err := svc.CreateOrder(context.Background(), cardInput(
		LineInput{ProductID: productP1, Quantity: 1},
		LineInput{ProductID: uuid.NewString(), Quantity: 1},
	))
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Empty(t, store.orders)
}

func TestCreateOrder_RejectsEmptyCartAndUnknownMethod(t *testing.T) {
	svc, store, _ := setup(t)

	_, err := svc.CreateOrder(context.Background(), cardInput())
	assert.ErrorIs(t, err, ErrEmptyCart)

	in := cardInput(LineInput{ProductID: productP1, Quantity: 1})
	in.PaymentMethod = gateway.MethodAlipay // 未配置
	_, err = svc.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnsupportedPaymentMethod)
	assert.Empty(t, store.orders)
}

func TestCreateOrder_PaystackSession(t *testing.T) {
	svc, _, gw := setup(t)

	gw.On("Initialize", mock.Anything, mock.MatchedBy(func(req gateway.InitRequest) bool {
		return req.Email == "ada@example.com" &&
			req.AmountMinor == 21000 &&
			req.Metadata["userId"] == buyerID &&
			req.Metadata["orderId"] != ""
	})).Return(&gateway.Session{AuthorizationURL: "https://checkout.paystack.com/abc", AccessCode: "abc", Reference: "ignored"}, nil).Once()

	in := cardInput(LineInput{ProductID: productP1, Quantity: 2})
	in.PaymentMethod = gateway.MethodPaystack
	res, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	assert.Equal(t, "https://checkout.paystack.com/abc", res.Payment.AuthorizationURL)
	gw.AssertExpectations(t)
}

func TestCreateOrder_PaymentInitFailureKeepsPendingOrder(t *testing.T) {
	svc, store, gw := setup(t)
	gw.On("Initialize", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Once()

	in := cardInput(LineInput{ProductID: productP1, Quantity: 1})
	in.PaymentMethod = gateway.MethodPaystack
	_, err := svc.CreateOrder(context.Background(), in)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentInit)

	var initErr *PaymentInitError
	require.True(t, errors.As(err, &initErr))
	stored, ok := store.orders[initErr.OrderID]
	require.True(t, ok)
	assert.Equal(t, model.StatusPending, stored.Status)
	assert.Equal(t, model.PaymentPending, stored.PaymentStatus)
}

// createPaystackOrder 下单并返回 reference
func createPaystackOrder(t *testing.T, svc *orderService, gw *MockGateway, qty int) string {
	t.Helper()
	gw.On("Initialize", mock.Anything, mock.Anything).Return(&gateway.Session{Reference: "x"}, nil).Once()
	in := cardInput(LineInput{ProductID: productP1, Quantity: qty})
	in.PaymentMethod = gateway.MethodPaystack
	res, err := svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	return res.Order.Reference
}

func TestVerifyPayment_Success(t *testing.T) {
	svc, store, gw := setup(t)
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	ref := createPaystackOrder(t, svc, gw, 2)
	gw.On("Verify", mock.Anything, ref).Return(&gateway.Verification{Success: true, Status: "success", AmountMinor: 21000}, nil).Once()

	o, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, o.Status)
	assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, fixed, *o.PaidAt)
	assert.Equal(t, 8, store.stock(productP1))
	assert.Equal(t, []string{productP1}, store.invalidated)

	// 客户 + 管理员邮件、推送、事件
	assert.Equal(t, map[notify.Channel]int{notify.ChannelEmail: 2, notify.ChannelPush: 1, notify.ChannelEvent: 1}, store.channels())

	var event OrderEvent
	for _, m := range store.outbox {
		if m.Channel == notify.ChannelEvent {
			require.NoError(t, json.Unmarshal(m.Payload, &event))
			assert.Equal(t, EventOrderPaid, m.Subject)
			assert.Equal(t, o.ID, m.Recipient)
		}
	}
	assert.Equal(t, "210.00", event.Total)
}

func TestVerifyPayment_Idempotent(t *testing.T) {
	svc, store, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 2)
	gw.On("Verify", mock.Anything, ref).Return(&gateway.Verification{Success: true, Status: "success", AmountMinor: 21000}, nil).Once()

	_, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
	require.NoError(t, err)

	// 第二次不请求网关，不重复扣减
	o, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, 8, store.stock(productP1))
	assert.Len(t, store.outbox, 4)
	gw.AssertNumberOfCalls(t, "Verify", 1)
}

func TestVerifyPayment_ConcurrentConfirmationDecrementsOnce(t *testing.T) {
	svc, store, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 2)
	gw.On("Verify", mock.Anything, ref).Return(&gateway.Verification{Success: true, Status: "success", AmountMinor: 21000}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
			assert.NoError(t, err)
			assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, store.stock(productP1))
	assert.Equal(t, 1, store.channels()[notify.ChannelEvent])
}

func TestVerifyPayment_UnknownReference(t *testing.T) {
	svc, _, gw := setup(t)

	_, err := svc.VerifyPayment(context.Background(), "ORD-0-deadbeef", buyerID, false)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	gw.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestVerifyPayment_GatewayReportsFailure(t *testing.T) {
	svc, store, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 2)
	raw := json.RawMessage(`{"status":"abandoned"}`)
	gw.On("Verify", mock.Anything, ref).Return(&gateway.Verification{Success: false, Status: "abandoned", Raw: raw}, nil).Once()

	_, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)

	var vErr *VerificationError
	require.True(t, errors.As(err, &vErr))
	assert.JSONEq(t, string(raw), string(vErr.Detail))

	o, _ := store.GetByReference(context.Background(), ref)
	assert.Equal(t, model.PaymentPending, o.PaymentStatus)
	assert.Equal(t, 10, store.stock(productP1))
	assert.Empty(t, store.outbox)
}

func TestVerifyPayment_GatewayUnreachable(t *testing.T) {
	svc, _, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 1)
	gw.On("Verify", mock.Anything, ref).Return(nil, errors.New("timeout")).Once()

	_, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestVerifyPayment_StockConflict(t *testing.T) {
	svc, store, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 2)
	gw.On("Verify", mock.Anything, ref).Return(&gateway.Verification{Success: true, Status: "success", AmountMinor: 21000}, nil).Once()

	// 下单后库存被其他订单买走
	store.products[productP1].Stock = 1

	_, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Available: 1")

	o, _ := store.GetByReference(context.Background(), ref)
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, 1, store.stock(productP1))
	assert.Empty(t, store.outbox)
}

func TestVerifyPayment_CardOrderHasNoGateway(t *testing.T) {
	svc, _, _ := setup(t)
	res, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP1, Quantity: 1}))
	require.NoError(t, err)

	_, err = svc.VerifyPayment(context.Background(), res.Order.Reference, buyerID, false)
	assert.ErrorIs(t, err, ErrUnsupportedPaymentMethod)
}

func TestVerifyPayment_CancelledOrderIsNotRevived(t *testing.T) {
	svc, store, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 2)
	o, err := store.GetByReference(context.Background(), ref)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), o.ID, model.StatusCancelled)
	require.NoError(t, err)
	store.outbox = nil

	_, err = svc.VerifyPayment(context.Background(), ref, buyerID, false)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
	gw.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)

	o, _ = store.GetByReference(context.Background(), ref)
	assert.Equal(t, model.StatusCancelled, o.Status)
	assert.Equal(t, model.PaymentPending, o.PaymentStatus)
	assert.Equal(t, 10, store.stock(productP1))
	assert.Empty(t, store.outbox)
}

func TestVerifyPayment_CancelledWhileGatewayConfirms(t *testing.T) {
	svc, store, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 2)
	o, err := store.GetByReference(context.Background(), ref)
	require.NoError(t, err)

	// 网关确认期间订单被取消
	gw.On("Verify", mock.Anything, ref).Run(func(mock.Arguments) {
		store.mu.Lock()
		store.orders[o.ID].Status = model.StatusCancelled
		store.mu.Unlock()
	}).Return(&gateway.Verification{Success: true, Status: "success", AmountMinor: 21000}, nil).Once()

	_, err = svc.VerifyPayment(context.Background(), ref, buyerID, false)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
	assert.Equal(t, 10, store.stock(productP1))
	assert.Empty(t, store.outbox)
}

func TestVerifyPayment_ShippedOrderNotPayable(t *testing.T) {
	svc, store, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 1)
	o, err := store.GetByReference(context.Background(), ref)
	require.NoError(t, err)
	// 非法数据：未支付却已发货
	store.orders[o.ID].Status = model.StatusShipped

	_, err = svc.VerifyPayment(context.Background(), ref, buyerID, false)
	assert.ErrorIs(t, err, ErrOrderNotPayable)
	gw.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	assert.Equal(t, 10, store.stock(productP1))
}

func TestVerifyPayment_AmountMismatch(t *testing.T) {
	svc, store, gw := setup(t)
	ref := createPaystackOrder(t, svc, gw, 2)
	raw := json.RawMessage(`{"status":"success","amount":100}`)
	gw.On("Verify", mock.Anything, ref).Return(&gateway.Verification{Success: true, Status: "success", AmountMinor: 100, Raw: raw}, nil).Once()

	_, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)

	var vErr *VerificationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, StatusAmountMismatch, vErr.Status)
	assert.JSONEq(t, string(raw), string(vErr.Detail))

	o, _ := store.GetByReference(context.Background(), ref)
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, model.PaymentPending, o.PaymentStatus)
	assert.Equal(t, 10, store.stock(productP1))
	assert.Empty(t, store.outbox)
}

func TestVerifyPayment_Ownership(t *testing.T) {
	t.Run("Other user sees not found", func(t *testing.T) {
		svc, store, gw := setup(t)
		ref := createPaystackOrder(t, svc, gw, 2)

		_, err := svc.VerifyPayment(context.Background(), ref, uuid.NewString(), false)
		assert.ErrorIs(t, err, ErrOrderNotFound)
		gw.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
		assert.Equal(t, 10, store.stock(productP1))
	})

	t.Run("Admin may verify", func(t *testing.T) {
		svc, store, gw := setup(t)
		ref := createPaystackOrder(t, svc, gw, 2)
		gw.On("Verify", mock.Anything, ref).Return(&gateway.Verification{Success: true, Status: "success", AmountMinor: 21000}, nil).Once()

		o, err := svc.VerifyPayment(context.Background(), ref, uuid.NewString(), true)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
		assert.Equal(t, 8, store.stock(productP1))
	})
}

func TestUpdateStatus(t *testing.T) {
	paidOrder := func(t *testing.T) (*orderService, *memStore, string) {
		svc, store, gw := setup(t)
		ref := createPaystackOrder(t, svc, gw, 2)
		gw.On("Verify", mock.Anything, ref).Return(&gateway.Verification{Success: true, Status: "success", AmountMinor: 21000}, nil).Once()
		o, err := svc.VerifyPayment(context.Background(), ref, buyerID, false)
		require.NoError(t, err)
		return svc, store, o.ID
	}

	t.Run("Admin cannot mark unpaid gateway order processing", func(t *testing.T) {
		svc, store, gw := setup(t)
		ref := createPaystackOrder(t, svc, gw, 1)
		o, err := store.GetByReference(context.Background(), ref)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(context.Background(), o.ID, model.StatusProcessing)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
		assert.Equal(t, 10, store.stock(productP1))
	})

	t.Run("Admin confirms card order", func(t *testing.T) {
		svc, store, gw := setup(t)
		res, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP1, Quantity: 3}))
		require.NoError(t, err)

		o, err := svc.UpdateStatus(context.Background(), res.Order.ID, model.StatusProcessing)
		require.NoError(t, err)
		assert.Equal(t, model.StatusProcessing, o.Status)
		assert.Equal(t, model.PaymentPaid, o.PaymentStatus)
		require.NotNil(t, o.PaidAt)
		assert.Equal(t, 7, store.stock(productP1))
		assert.Equal(t, []string{productP1}, store.invalidated)
		assert.Equal(t, 1, store.channels()[notify.ChannelEvent])
		gw.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)

		o, err = svc.UpdateStatus(context.Background(), res.Order.ID, model.StatusShipped)
		require.NoError(t, err)
		assert.Equal(t, model.StatusShipped, o.Status)
		assert.Equal(t, 7, store.stock(productP1))
	})

	t.Run("Card confirmation with stock conflict", func(t *testing.T) {
		svc, store, _ := setup(t)
		res, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP1, Quantity: 3}))
		require.NoError(t, err)
		store.products[productP1].Stock = 2

		_, err = svc.UpdateStatus(context.Background(), res.Order.ID, model.StatusProcessing)
		assert.ErrorIs(t, err, ErrInsufficientStock)

		o, _ := store.GetByID(context.Background(), res.Order.ID)
		assert.Equal(t, model.StatusPending, o.Status)
		assert.Equal(t, model.PaymentPending, o.PaymentStatus)
		assert.Equal(t, 2, store.stock(productP1))
		assert.Empty(t, store.outbox)
	})

	t.Run("Cancelled card order cannot be confirmed", func(t *testing.T) {
		svc, store, _ := setup(t)
		res, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP1, Quantity: 1}))
		require.NoError(t, err)
		_, err = svc.UpdateStatus(context.Background(), res.Order.ID, model.StatusCancelled)
		require.NoError(t, err)

		_, err = svc.UpdateStatus(context.Background(), res.Order.ID, model.StatusProcessing)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
		assert.Equal(t, 10, store.stock(productP1))
	})

	t.Run("Cancel pending order", func(t *testing.T) {
		svc, store, _ := setup(t)
		res, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP1, Quantity: 1}))
		require.NoError(t, err)

		o, err := svc.UpdateStatus(context.Background(), res.Order.ID, model.StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, o.Status)
		assert.Equal(t, 10, store.stock(productP1))
		assert.Equal(t, 1, store.channels()[notify.ChannelEmail])
	})

	t.Run("Ship then deliver", func(t *testing.T) {
		svc, store, id := paidOrder(t)

		_, err := svc.UpdateStatus(context.Background(), id, model.StatusShipped)
		require.NoError(t, err)
		o, err := svc.UpdateStatus(context.Background(), id, model.StatusDelivered)
		require.NoError(t, err)
		assert.Equal(t, model.StatusDelivered, o.Status)

		_, err = svc.UpdateStatus(context.Background(), id, model.StatusCancelled)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
		assert.Equal(t, 8, store.stock(productP1))
	})

	t.Run("Cancel paid order restocks", func(t *testing.T) {
		svc, store, id := paidOrder(t)
		store.invalidated = nil

		o, err := svc.UpdateStatus(context.Background(), id, model.StatusCancelled)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, o.Status)
		assert.Equal(t, 10, store.stock(productP1))
		assert.Equal(t, []string{productP1}, store.invalidated)
	})

	t.Run("Same status is rejected", func(t *testing.T) {
		svc, _, id := paidOrder(t)
		_, err := svc.UpdateStatus(context.Background(), id, model.StatusProcessing)
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	})

	t.Run("Unknown status", func(t *testing.T) {
		svc, _, id := paidOrder(t)
		_, err := svc.UpdateStatus(context.Background(), id, model.Status("LOST"))
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("Unknown order", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.UpdateStatus(context.Background(), uuid.NewString(), model.StatusShipped)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestGetOrder_Visibility(t *testing.T) {
	svc, _, _ := setup(t)
	res, err := svc.CreateOrder(context.Background(), cardInput(LineInput{ProductID: productP1, Quantity: 1}))
	require.NoError(t, err)
	id := res.Order.ID

	o, err := svc.GetOrder(context.Background(), id, buyerID, false)
	require.NoError(t, err)
	assert.Equal(t, id, o.ID)

	_, err = svc.GetOrder(context.Background(), id, uuid.NewString(), false)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.GetOrder(context.Background(), id, uuid.NewString(), true)
	assert.NoError(t, err)
}

func TestListOrders_RejectsUnknownStatus(t *testing.T) {
	svc, _, _ := setup(t)
	_, _, err := svc.ListOrders(context.Background(), ListQuery{Status: "lost"}, &utils.Pagination{})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, total, err := svc.ListOrders(context.Background(), ListQuery{Status: "pending"}, &utils.Pagination{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
