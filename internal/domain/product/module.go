package product

import (
	"phonehub/internal/domain/product/handler"
	"phonehub/internal/domain/product/repository"
	"phonehub/internal/domain/product/service"
	"phonehub/internal/pkg/middleware"
	"phonehub/internal/pkg/registry"
)

// ProductModule 商品模块
type ProductModule struct{}

func init() {
	registry.Register(&ProductModule{})
}

func (m *ProductModule) Name() string {
	return "product"
}

func (m *ProductModule) Priority() int {
	// 订单模块依赖商品目录
	return 10
}

func (m *ProductModule) Init(ctx *registry.ModuleContext) error {
	repo := repository.NewProductRepository(ctx.DB)
	svc := service.NewProductService(repo, ctx.Cache, ctx.Uploader)
	h := handler.NewProductHandler(svc)

	products := ctx.API.Group("/products")
	{
		products.GET("", h.ListProducts)
		products.GET("/:id", h.GetProduct)

		admin := products.Group("", middleware.AuthMiddleware(ctx.Tokens), middleware.AdminMiddleware())
		admin.POST("", h.CreateProduct)
		admin.PUT("/:id", h.UpdateProduct)
		admin.DELETE("/:id", h.DeleteProduct)
		admin.POST("/:id/images", h.UploadImages)
	}
	return nil
}
