package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "phonehub/docs"
	_ "phonehub/internal/domain/common"
	_ "phonehub/internal/domain/order"
	_ "phonehub/internal/domain/product"
	_ "phonehub/internal/domain/user"
	"phonehub/internal/pkg/config"
	"phonehub/internal/pkg/events"
	"phonehub/internal/pkg/mailer"
	"phonehub/internal/pkg/middleware"
	"phonehub/internal/pkg/notify"
	"phonehub/internal/pkg/push"
	"phonehub/internal/pkg/registry"
	"phonehub/internal/pkg/uploader"
	"phonehub/pkg/cache"
	"phonehub/pkg/database"
	"phonehub/pkg/logger"
	"phonehub/pkg/metrics"
	"phonehub/pkg/response"
	"phonehub/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// @title PhoneHub API
// @version 1.0
// @description PhoneHub 手机商城接口：商品、订单、支付确认与用户
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// 1. 配置与日志
	config.LoadConfig()
	cfg := config.GlobalConfig

	if err := logger.Init(cfg.App.Env); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	response.SetDebug(cfg.App.Debug)
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	// 2. 基础设施
	db, err := database.InitDatabase(cfg.Database, cfg.App.Debug)
	if err != nil {
		logger.Log.Fatal("database init failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Log.Fatal("database handle failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := database.InitRedis(cfg.Redis)
	if err != nil {
		logger.Log.Fatal("redis init failed", zap.Error(err))
	}
	defer rdb.Close()

	collector := metrics.NewMetricsCollector()
	if err := collector.WatchDB(sqlDB); err != nil {
		logger.Log.Warn("db pool metrics disabled", zap.Error(err))
	}
	tokens := utils.NewTokenIssuer(cfg.JWT.Secret, time.Duration(cfg.JWT.Expire)*time.Hour)

	var up uploader.Uploader
	if oss, err := uploader.NewAliyunOSSUploader(cfg.OSS); err != nil {
		logger.Log.Warn("oss uploader disabled", zap.Error(err))
	} else if oss != nil {
		up = oss
	}

	// 3. 路由与中间件
	r := gin.New()
	r.Use(
		cors.New(cors.Config{
			AllowOrigins:     cfg.Server.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.SecurityHeadersMiddleware(),
		middleware.BodyLimitMiddleware(cfg.Server.MaxBodyBytes),
		middleware.TraceMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.RecoveryMiddleware(cfg.App.Debug),
		middleware.MetricsMiddleware(collector),
	)
	api := r.Group("/api", middleware.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))

	if err := registry.InitModules(&registry.ModuleContext{
		DB:       db,
		Redis:    rdb,
		Router:   r,
		API:      api,
		Config:   &cfg,
		Tokens:   tokens,
		Metrics:  collector,
		Cache:    cache.NewRedisCache(rdb, "phonehub"),
		Uploader: up,
	}); err != nil {
		logger.Log.Fatal("module init failed", zap.Error(err))
	}

	// 4. outbox 投递
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher, closeSenders := newDispatcher(cfg, sqlx.NewDb(sqlDB, "pgx"), collector)
	defer closeSenders()
	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx)
	}()

	// 5. HTTP 服务与优雅退出
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Log.Info("server started", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown failed", zap.Error(err))
	}
	<-dispatcherDone
	logger.Log.Info("server exited")
}

// newDispatcher 按配置注册渠道，未配置的渠道消息会被标记为 dead
func newDispatcher(cfg config.Config, db *sqlx.DB, collector *metrics.MetricsCollector) (*notify.Dispatcher, func()) {
	d := notify.NewDispatcher(notify.NewStore(db), cfg.Outbox, collector)
	closers := []func(){}

	if m := mailer.New(cfg.SMTP); m != nil {
		d.Register(notify.ChannelEmail, notify.EmailSender{Mailer: m})
	} else {
		logger.Log.Warn("smtp not configured, email channel disabled")
	}

	if p, err := push.NewAliyunPushService(cfg.Push); err != nil {
		logger.Log.Warn("push channel disabled", zap.Error(err))
	} else if p != nil {
		d.Register(notify.ChannelPush, notify.PushSender{Pusher: p})
	}

	if pub := events.NewPublisher(cfg.Kafka); pub != nil {
		d.Register(notify.ChannelEvent, notify.EventSender{Publisher: pub})
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				logger.Log.Warn("kafka writer close failed", zap.Error(err))
			}
		})
	}

	return d, func() {
		for _, c := range closers {
			c()
		}
	}
}
