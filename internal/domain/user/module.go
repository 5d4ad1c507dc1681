package user

import (
	"time"

	"phonehub/internal/domain/user/handler"
	"phonehub/internal/domain/user/repository"
	"phonehub/internal/domain/user/service"
	"phonehub/internal/pkg/middleware"
	"phonehub/internal/pkg/notify"
	"phonehub/internal/pkg/otp"
	"phonehub/internal/pkg/registry"

	"github.com/gin-gonic/gin"
)

// UserModule 用户模块
type UserModule struct{}

func init() {
	// 自动注册模块
	registry.Register(&UserModule{})
}

func (m *UserModule) Name() string {
	return "user"
}

func (m *UserModule) Priority() int {
	// 用户模块优先级最高，因为其他模块依赖鉴权
	return 1
}

func (m *UserModule) Init(ctx *registry.ModuleContext) error {
	// 1. 依赖注入
	userRepo := repository.NewUserRepository(ctx.DB)
	resets := otp.NewRedisTokenStore(ctx.Redis, "phonehub:pwreset:", time.Hour, time.Minute)
	userService := service.NewUserService(userRepo, ctx.Tokens, resets, notify.NewOutbox(ctx.DB), ctx.Config.App.FrontendURL)
	userHandler := handler.NewUserHandler(userService)

	// 2. 路由注册
	setupRoutes(ctx, userHandler)

	return nil
}

func setupRoutes(ctx *registry.ModuleContext, h *handler.UserHandler) {
	auth := middleware.AuthMiddleware(ctx.Tokens)

	// 公开路由
	authGroup := ctx.API.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/forgot-password", h.ForgotPassword)
		authGroup.POST("/reset-password", h.ResetPassword)
		authGroup.GET("/me", auth, h.Me)
	}

	// 受保护的路由
	userGroup := ctx.API.Group("/users")
	userGroup.Use(auth)
	{
		userGroup.PUT("/profile", h.UpdateProfile)

		admin := userGroup.Group("", middleware.AdminMiddleware())
		registerAdminRoutes(admin, h)
	}
}

func registerAdminRoutes(r *gin.RouterGroup, h *handler.UserHandler) {
	r.GET("", h.ListUsers)
	r.GET("/:id", h.GetUser)
}
