package api

import (
	"github.com/gin-gonic/gin"

	"github.com/wrprafra/newsletter-project/internal/api/handler"
	"github.com/wrprafra/newsletter-project/internal/api/middleware"
	"github.com/wrprafra/newsletter-project/internal/queue"
	"github.com/wrprafra/newsletter-project/internal/repository"
	"github.com/wrprafra/newsletter-project/internal/service"
	"github.com/wrprafra/newsletter-project/internal/settings"
)

// Deps collects everything the HTTP surface needs.
type Deps struct {
	Feed      *service.FeedService
	Repo      *repository.NewsletterRepository
	Overrides *repository.OverrideRepository
	Jobs      *service.JobRegistry
	Notifier  *queue.Notifier
	Settings  *settings.Store
	CORS      middleware.CORSConfig
}

// SetupRouter configures the Gin router with all routes.
// Parameters:
//   - deps: wired services and repositories.
//   - mode: "release", "test", or anything else for debug.
// Returns:
//   - *gin.Engine: ready router.
func SetupRouter(deps Deps, mode string) *gin.Engine {
	switch mode {
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
	r.Use(middleware.CORS(deps.CORS))

	healthHandler := handler.NewHealthHandler()
	feedHandler := handler.NewFeedHandler(deps.Feed, deps.Repo, deps.Overrides)
	ingestHandler := handler.NewIngestHandler(deps.Jobs, deps.Notifier)
	settingsHandler := handler.NewSettingsHandler(deps.Settings)

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")
	api.Use(middleware.RequireUser())
	{
		api.GET("/feed", feedHandler.GetFeed)
		api.GET("/feed/stats", feedHandler.GetStats)
		api.GET("/feed/item/:email_id", feedHandler.GetItem)
		api.POST("/feed/:email_id/favorite", feedHandler.SetFavorite)
		api.PUT("/feed/:email_id/tag", feedHandler.SetTag)
		api.POST("/feed/:email_id/type", feedHandler.SetType)

		api.POST("/ingest/pull", ingestHandler.Pull)
		api.GET("/ingest/status/:job_id", ingestHandler.Status)
		api.GET("/ingest/events/:job_id", ingestHandler.Events)

		api.GET("/settings", settingsHandler.Get)
		api.PUT("/settings", settingsHandler.Put)
	}

	return r
}
