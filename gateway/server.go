package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nuecms/storage-provider/config"
	"github.com/nuecms/storage-provider/storage"
)

var startTime = time.Now()

// healthCheckTimeout 健康检查中单次后端探测的总超时
const healthCheckTimeout = 10 * time.Second

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	Driver *storage.Driver
}

// 启动 gin
func setupRouter(deps *ServerDependencies) *gin.Engine {
	cfg := config.Get()
	router := gin.New()

	// 全局中间件
	// 仅在开发版本时启用 gin 日志
	if config.IsDevelopment() {
		router.Use(gin.Logger())
	}
	corsOrigin := cfg.ServerCORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{corsOrigin},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.SetTrustedProxies(nil)

	// 限制上传文件大小
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	router.GET("/health", healthHandler(deps.Driver))
	router.GET("/version", func(context *gin.Context) {
		RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	// 速率限制
	rateLimiter := NewPerClientRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	handler := NewHandler(deps.Driver, cfg.MaxUploadBytes())

	apiGroup := router.Group("/api")
	apiGroup.Use(rateLimiter.Middleware())
	apiGroup.Use(func(context *gin.Context) { // 所有API禁止缓存
		context.Header("Cache-Control", "no-store")
		context.Next()
	})
	{
		apiGroup.POST("/files", handler.UploadFile)         // POST /api/files (single file)
		apiGroup.GET("/files/*path", handler.DownloadFile)  // GET /api/files/{path}
		apiGroup.DELETE("/files/*path", handler.DeleteFile) // DELETE /api/files/{path}
		apiGroup.GET("/list", handler.ListFiles)            // GET /api/list
		apiGroup.GET("/url", handler.GetFileURL)            // GET /api/url
	}

	return router
}

// healthHandler 对每个已注册后端执行连通性检查
func healthHandler(driver *storage.Driver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		checks := gin.H{}
		for _, name := range driver.ProviderNames() {
			provider, err := driver.Provider(name)
			if err != nil {
				checks[name] = "error: " + err.Error()
				continue
			}
			if result := provider.TestConnection(ctx); result.Success {
				checks[name] = "ok"
			} else {
				checks[name] = "error: " + result.Message
			}
		}

		health := gin.H{
			"status":  "ok",
			"uptime":  time.Since(startTime).Round(time.Second).String(),
			"version": config.Version,
			"checks":  checks,
		}
		httpStatus := http.StatusOK
		for _, checkResult := range checks {
			if result, ok := checkResult.(string); ok && result != "ok" {
				httpStatus = http.StatusServiceUnavailable
				health["status"] = "degraded"
				break
			}
		}
		c.JSON(httpStatus, health)
	}
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) *http.Server {
	cfg := config.Get()
	router := setupRouter(deps)

	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}
}
