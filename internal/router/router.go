package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prepforge/session-backend/internal/config"
	"github.com/prepforge/session-backend/internal/handler"
	"github.com/prepforge/session-backend/internal/middleware"
	"github.com/prepforge/session-backend/internal/response"
	"github.com/prepforge/session-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for the start endpoints. Each start may invoke the
	// per-generation-billed question generator, so these are the only
	// routes worth throttling.
	startLimiter := middleware.NewRateLimiter(10, time.Minute)

	// ─── Tests Group (JWT) ─────────────────────────────────────────────
	testsAPI := router.Group("/api/v1/tests")
	testsAPI.Use(middleware.RequireUserJWT(authService))
	{
		testsAPI.POST("/fresh", startLimiter.Middleware(), handlers.Session.StartFresh)
		testsAPI.POST("/reattempt", startLimiter.Middleware(), handlers.Session.StartReattempt)

		testsAPI.POST("/begin", handlers.Session.Begin)
		testsAPI.POST("/answer", handlers.Session.Answer)
		testsAPI.POST("/flag", handlers.Session.Flag)
		testsAPI.POST("/submit", handlers.Session.Submit)
		testsAPI.GET("/state", handlers.Session.State)
		testsAPI.GET("/attempts", handlers.Session.ListAttempts)
		testsAPI.DELETE("", handlers.Session.Abandon)
	}

	// ─── WebSocket Group (WS Auth via ?token=) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWSAuth(authService))
	{
		ws.GET("/tests/stream", handlers.WS.TestStream)
	}

	return router
}
