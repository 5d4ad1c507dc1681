package registry

import (
	"sort"

	"phonehub/internal/pkg/config"
	"phonehub/internal/pkg/uploader"
	"phonehub/pkg/cache"
	"phonehub/pkg/metrics"
	"phonehub/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ModuleContext 模块初始化所需的上下文
type ModuleContext struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Router   *gin.Engine
	API      *gin.RouterGroup // 业务路由统一挂在 /api 下
	Config   *config.Config
	Tokens   *utils.TokenIssuer
	Metrics  *metrics.MetricsCollector
	Cache    cache.CacheService
	Uploader uploader.Uploader // 未配置 OSS 时为 nil
}

// Module 模块接口
type Module interface {
	// Name 返回模块名称
	Name() string

	// Init 初始化模块（依赖注入、路由注册等）
	Init(ctx *ModuleContext) error

	// Priority 返回初始化优先级（数字越小越先初始化）
	// 例如：product 模块需要先于 order 模块初始化
	Priority() int
}

// moduleRegistry 全局模块注册表
var moduleRegistry = make(map[string]Module)

// Register 注册模块
func Register(module Module) {
	moduleRegistry[module.Name()] = module
}

// GetModules 获取所有已注册的模块
func GetModules() map[string]Module {
	return moduleRegistry
}

// sorted 按优先级排序，同优先级按名称保证顺序稳定
func sorted() []Module {
	modules := make([]Module, 0, len(moduleRegistry))
	for _, m := range moduleRegistry {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].Priority() != modules[j].Priority() {
			return modules[i].Priority() < modules[j].Priority()
		}
		return modules[i].Name() < modules[j].Name()
	})
	return modules
}

// InitModules 按优先级初始化所有模块
func InitModules(ctx *ModuleContext) error {
	for _, module := range sorted() {
		if err := module.Init(ctx); err != nil {
			return err
		}
	}
	return nil
}
