package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/prismhub/prism/internal/log"
	"github.com/prismhub/prism/internal/pkg/httpclient"
	"github.com/prismhub/prism/internal/server/api"
	"github.com/prismhub/prism/internal/server/dependencies"
	"github.com/prismhub/prism/internal/server/middleware"
	"github.com/prismhub/prism/internal/server/orchestrator"
)

func New(config Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())

	return &Server{
		Config: config,
		Engine: engine,
	}
}

type Server struct {
	*gin.Engine

	Config Config
	server *http.Server
}

func (srv *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", srv.Config.Host, srv.Config.Port)

	log.Info(context.Background(), "run server",
		log.String("name", srv.Config.Name),
		log.String("addr", addr),
	)

	srv.server = &http.Server{
		Addr:        addr,
		Handler:     srv.Engine,
		ReadTimeout: srv.Config.ReadTimeout,
	}

	err := srv.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.server.Shutdown(ctx)
}

// Run assembles the application and blocks until shutdown.
func Run(opts ...fx.Option) {
	constructors := []any{
		httpclient.NewHttpClient,
		dependencies.NewExecutors,
		NewStore,
		NewRegistry,
		orchestrator.NewOrchestrator,
		api.NewResponsesHandlers,
		api.NewModelsHandlers,
		New,
	}

	app := fx.New(
		append([]fx.Option{
			fx.NopLogger,
			fx.Provide(constructors...),
			fx.Invoke(func(config Config) {
				logger := log.New(config.Log)
				log.SetDefault(logger)
			}),
			fx.Invoke(SetupRoutes),
		}, opts...)...,
	)

	app.Run()
}
