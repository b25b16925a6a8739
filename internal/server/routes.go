package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/prismhub/prism/internal/server/api"
	"github.com/prismhub/prism/internal/server/middleware"
)

type Handlers struct {
	fx.In

	Responses *api.ResponsesHandlers
	Models    *api.ModelsHandlers
}

func SetupRoutes(server *Server, handlers Handlers) {
	server.Use(middleware.AccessLog())

	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials

		if server.Config.CORS.MaxAge > 0 {
			corsConfig.MaxAge = server.Config.CORS.MaxAge
		}

		server.Use(cors.New(corsConfig))
	}

	// Model listing stays open; everything else is behind the bearer gate.
	modelsGroup := server.Group("/v1")
	{
		modelsGroup.GET("/models", handlers.Models.List)
		modelsGroup.GET("/models/:id", handlers.Models.Get)
	}

	apiGroup := server.Group("/v1",
		middleware.WithBearerAuth(server.Config.APIKeys),
		middleware.RequireJSON(),
	)
	{
		apiGroup.POST("/responses", handlers.Responses.Create)
		apiGroup.POST("/responses/compact", handlers.Responses.Compact)
		apiGroup.GET("/responses/:id", handlers.Responses.Get)
		apiGroup.DELETE("/responses/:id", handlers.Responses.Delete)
		apiGroup.POST("/responses/:id/cancel", handlers.Responses.Cancel)
	}
}
