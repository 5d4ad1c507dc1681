package common

import (
	"context"

	commonHandler "phonehub/internal/pkg/common"
	"phonehub/internal/pkg/middleware"
	"phonehub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// CommonModule 通用功能模块
type CommonModule struct{}

func init() {
	registry.Register(&CommonModule{})
}

func (m *CommonModule) Name() string {
	return "common"
}

func (m *CommonModule) Priority() int {
	return 100 // 最后初始化
}

func (m *CommonModule) Init(ctx *registry.ModuleContext) error {
	checks := map[string]commonHandler.Pinger{
		"postgres": commonHandler.PingFunc(func(c context.Context) error {
			sqlDB, err := ctx.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(c)
		}),
	}
	if ctx.Redis != nil {
		checks["redis"] = commonHandler.PingFunc(func(c context.Context) error {
			return ctx.Redis.Ping(c).Err()
		})
	}

	h := commonHandler.NewHandler(ctx.Uploader, checks)
	setupRoutes(ctx, h)
	return nil
}

func setupRoutes(ctx *registry.ModuleContext, h *commonHandler.Handler) {
	ctx.Router.GET("/health", h.Health)
	if ctx.Metrics != nil {
		ctx.Router.GET("/metrics", gin.WrapH(ctx.Metrics.Handler()))
	}
	ctx.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 文件上传接口
	ctx.API.POST("/upload", middleware.AuthMiddleware(ctx.Tokens), middleware.AdminMiddleware(), h.UploadFiles)
}
