package order

import (
	"context"
	"fmt"

	"phonehub/internal/domain/order/handler"
	"phonehub/internal/domain/order/repository"
	"phonehub/internal/domain/order/service"
	"phonehub/internal/domain/payment/gateway"
	productrepo "phonehub/internal/domain/product/repository"
	productservice "phonehub/internal/domain/product/service"
	"phonehub/internal/pkg/config"
	"phonehub/internal/pkg/middleware"
	"phonehub/internal/pkg/registry"
	"phonehub/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderModule 订单与支付确认
type OrderModule struct{}

func init() {
	registry.Register(&OrderModule{})
}

func (m *OrderModule) Name() string {
	return "order"
}

func (m *OrderModule) Priority() int {
	return 20
}

func (m *OrderModule) Init(ctx *registry.ModuleContext) error {
	taxRate, err := decimal.NewFromString(ctx.Config.Order.TaxRate)
	if err != nil {
		return fmt.Errorf("invalid order.tax_rate %q: %w", ctx.Config.Order.TaxRate, err)
	}

	// 1. 依赖注入：商品目录由本模块自行构造，与商品模块共享缓存
	catalog := productservice.NewProductService(productrepo.NewProductRepository(ctx.DB), ctx.Cache, ctx.Uploader)
	gateways := NewGatewayRegistry(ctx.Config)

	repo := repository.NewOrderRepository(ctx.DB)
	svc := service.NewOrderService(repo, catalog, gateways, ctx.Metrics, service.Options{
		TaxRate:    taxRate,
		AdminEmail: ctx.Config.App.AdminEmail,
	})
	h := handler.NewOrderHandler(svc)

	// 2. 路由注册
	auth := middleware.AuthMiddleware(ctx.Tokens)
	orders := ctx.API.Group("/orders")
	{
		authed := orders.Group("", auth)
		authed.POST("/verify-payment/:reference", h.VerifyPayment)
		authed.POST("", h.CreateOrder)
		authed.GET("/my-orders", h.MyOrders)
		authed.GET("/:id", h.GetOrder)

		admin := authed.Group("", middleware.AdminMiddleware())
		admin.GET("", h.ListOrders)
		admin.PATCH("/:id/status", h.UpdateOrderStatus)
	}
	return nil
}

// NewGatewayRegistry 只注册已配置的网关，初始化失败的跳过并记录日志
func NewGatewayRegistry(cfg *config.Config) *gateway.Registry {
	reg := gateway.NewRegistry()

	if cfg.Paystack.SecretKey != "" {
		if g, err := gateway.NewPaystackGateway(cfg.Paystack); err != nil {
			logger.Log.Warn("paystack gateway disabled", zap.Error(err))
		} else {
			reg.Register(gateway.MethodPaystack, g)
		}
	}
	if cfg.Alipay.AppID != "" {
		if g, err := gateway.NewAlipayGateway(cfg.Alipay); err != nil {
			logger.Log.Warn("alipay gateway disabled", zap.Error(err))
		} else {
			reg.Register(gateway.MethodAlipay, g)
		}
	}
	if cfg.Wechat.MchID != "" {
		if g, err := gateway.NewWechatGateway(context.Background(), cfg.Wechat); err != nil {
			logger.Log.Warn("wechat gateway disabled", zap.Error(err))
		} else {
			reg.Register(gateway.MethodWechat, g)
		}
	}

	logger.Log.Info("payment gateways ready", zap.Strings("methods", reg.Methods()))
	return reg
}
