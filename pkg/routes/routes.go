package pkg

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Neskrux/CrmInvest-sub003/internal/alert"
	"github.com/Neskrux/CrmInvest-sub003/internal/boleto"
	"github.com/Neskrux/CrmInvest-sub003/internal/config"
	"github.com/Neskrux/CrmInvest-sub003/internal/lock"
	"github.com/Neskrux/CrmInvest-sub003/internal/logger"
	"github.com/Neskrux/CrmInvest-sub003/internal/whatsapp"
	"github.com/Neskrux/CrmInvest-sub003/pkg/middleware"
)

// CoreModules wires everything a notification run needs. Both entry points
// use it so they run the same service.
var CoreModules = fx.Module("core",
	fx.Provide(config.Load),
	fx.Provide(NewLogger),
	fx.Provide(boleto.NewRepository),
	fx.Provide(boleto.NewTemplateRegistry),
	fx.Provide(fx.Annotate(whatsapp.NewClient, fx.As(new(boleto.Sender)))),
	fx.Provide(alert.New),
	fx.Provide(lock.New),
	fx.Provide(boleto.NewService),
	fx.Provide(func(s *boleto.Service) boleto.Runner { return s }),
)

// EchoModules adds the HTTP surface and the optional daily scheduler.
var EchoModules = fx.Module("echo",
	fx.Provide(NewEchoServer),
	fx.Provide(middleware.NewRBAC),
	fx.Provide(boleto.NewHandler),
	fx.Provide(boleto.NewScheduler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(func(s *boleto.Scheduler, lc fx.Lifecycle) { s.Start(lc) }),
)

// WithZap routes fx's own events through the application logger.
var WithZap = fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: log.Named("fx")}
})

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(cfg.LogLevel)
}

func NewEchoServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger) (*echo.Echo, error) {
	if cfg.HTTP.JWTKey == "" {
		return nil, &config.ConfigurationError{Field: "HTTP_JWT_KEY", Reason: "required to protect the run endpoint"}
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.HTTP.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	}))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
			go func() {
				if err := e.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e, nil
}

func RegisterRoutes(e *echo.Echo, h *boleto.Handler, rbac *middleware.RBAC, cfg *config.Config, log *zap.Logger) {
	e.GET("/healthz", h.Health)

	protected := e.Group("/api", middleware.JWT([]byte(cfg.HTTP.JWTKey), log), rbac.Middleware)
	protected.POST("/boletos/notifications/run", h.RunNotifications)
}
