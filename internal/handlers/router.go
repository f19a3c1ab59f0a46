package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"numbers-game-backend/internal/middleware"
	"numbers-game-backend/internal/models"
	"numbers-game-backend/internal/services"
)

var registerValidators sync.Once

type RouterConfig struct {
	GameEngine   *services.GameEngine
	Hub          *Hub
	JWTService   *services.JWTService   // nil leaves round control open
	RedisService *services.RedisService // nil disables the bet rate limit
	BetRateLimit int
	Logger       *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("dmin", models.ValidateDecimalMin)
		}
	})

	gameHandler := NewGameHandler(cfg.GameEngine)
	wsHandler := NewWebSocketHandler(cfg.GameEngine, cfg.Hub, logger)

	router := gin.New()
	router.Use(middleware.Logger(logger.Named("http")), gin.Recovery(), middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/game", wsHandler.HandleWebSocket)

	api := router.Group("/api")
	{
		api.GET("/rounds/current", gameHandler.GetCurrentRound)
		api.GET("/settlement", gameHandler.GetLastSettlement)
		api.POST("/bets",
			middleware.RateLimitMiddleware(cfg.RedisService, cfg.BetRateLimit, logger),
			gameHandler.PlaceBet,
		)
		api.POST("/rounds/start", middleware.AdminAuth(cfg.JWTService), gameHandler.StartRound)
	}

	return router
}
