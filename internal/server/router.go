package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/storycut-backend/internal/handlers"
)

type RouterConfig struct {
	MediaHandler  *handlers.MediaHandler
	PlanHandler   *handlers.PlanHandler
	RenderHandler *handlers.RenderHandler
	JobHandler    *handlers.JobHandler
	AllowOrigins  []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Media registry
		api.POST("/media", cfg.MediaHandler.Register)
		api.GET("/media", cfg.MediaHandler.List)
		api.GET("/media/:id", cfg.MediaHandler.Get)
		api.DELETE("/media/:id", cfg.MediaHandler.Delete)
		api.POST("/media/:id/enrich", cfg.MediaHandler.Enrich)
		api.GET("/media/:id/jobs", cfg.MediaHandler.Jobs)
		api.GET("/media/:id/transcript", cfg.MediaHandler.Transcript)
		api.GET("/media/:id/scenes", cfg.MediaHandler.Scenes)
		api.GET("/media/:id/candidates", cfg.MediaHandler.Candidates)

		// Plans
		api.POST("/media/:id/plans/heuristic", cfg.PlanHandler.CreateHeuristic)
		api.POST("/media/:id/plans/story", cfg.PlanHandler.CreateStory)
		api.GET("/media/:id/plans", cfg.PlanHandler.ListByMedia)
		api.GET("/plans/:id", cfg.PlanHandler.Get)
		api.POST("/plans/:id/render", cfg.PlanHandler.Render)
		api.GET("/plans/:id/renders", cfg.PlanHandler.ListRenders)

		// Renders and jobs
		api.GET("/renders/:id", cfg.RenderHandler.Get)
		api.GET("/jobs/:id", cfg.JobHandler.Get)
		api.POST("/jobs/:id/cancel", cfg.JobHandler.Cancel)
	}

	return router
}
