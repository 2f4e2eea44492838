package api

import (
	"github.com/gin-gonic/gin"
	"github.com/kwhite/polytrack/internal/api/handler"
	"github.com/kwhite/polytrack/internal/api/middleware"
	"github.com/kwhite/polytrack/internal/config"
	"github.com/kwhite/polytrack/internal/runlog"
	"github.com/kwhite/polytrack/internal/service"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	markets *service.MarketService,
	runLog runlog.Store,
	cfg *config.Config,
) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler()
	marketHandler := handler.NewMarketHandler(markets)
	scrapeHandler := handler.NewScrapeHandler(runLog, cfg.RunLog.MinIntervalMinutes)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Markets
		v1.GET("/markets", marketHandler.ListMarkets)
		v1.GET("/markets/:id", marketHandler.GetMarket)
		v1.POST("/markets", marketHandler.CreateMarket)
		v1.PUT("/markets/:id", marketHandler.UpdateMarket)
		v1.DELETE("/markets/:id", marketHandler.DeleteMarket)

		// Scrape run history
		v1.GET("/scrapes", scrapeHandler.ListScrapes)
		v1.GET("/scrapes/stats", scrapeHandler.GetStatistics)
		v1.GET("/scrapes/should-run", scrapeHandler.ShouldRun)
	}

	return r
}
