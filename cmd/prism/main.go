package main

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"github.com/zhenzou/executors"

	"github.com/prismhub/prism/internal/log"
	"github.com/prismhub/prism/internal/server"
)

type fxLogger struct{}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func main() {
	server.Run(
		fx.WithLogger(func() fxevent.Logger {
			return &fxLogger{}
		}),
		fx.Provide(server.LoadConfig),
		fx.Invoke(func(lc fx.Lifecycle, srv *server.Server, executor executors.ScheduledExecutor) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						if err := srv.Run(); err != nil {
							log.Error(context.Background(), "server run error", log.Cause(err))
							os.Exit(1)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					if err := srv.Shutdown(ctx); err != nil {
						log.Error(context.Background(), "server shutdown error", log.Cause(err))
					}

					return executor.Shutdown(ctx)
				},
			})
		}),
	)
}
