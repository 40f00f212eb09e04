package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bluesky-social/mptt/nestedset"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"golang.org/x/time/rate"
)

// httpMetrics registers its collectors once per process; the server can be
// constructed more than once (tests).
var httpMetrics = sync.OnceValue(func() echo.MiddlewareFunc {
	return echoprometheus.NewMiddleware("mptt")
})

type Server struct {
	engine *nestedset.Engine
	echo   *echo.Echo
	httpd  *http.Server
	logger *slog.Logger
}

type Config struct {
	Logger *slog.Logger
	Bind   string

	// MutationRateLimit caps inserts, deletes, moves and rebuilds per
	// second across all clients. Zero means unlimited.
	MutationRateLimit float64
}

func NewServer(engine *nestedset.Engine, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()

	// httpd
	var (
		httpTimeout        = 1 * time.Minute
		httpMaxHeaderBytes = 1 * (1024 * 1024)
	)

	srv := &Server{
		engine: engine,
		echo:   e,
		logger: logger.With("system", "http"),
	}
	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   httpTimeout,
		ReadTimeout:    httpTimeout,
		MaxHeaderBytes: httpMaxHeaderBytes,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("4M"))
	e.Use(otelecho.Middleware("mptt"))
	e.Use(httpMetrics())
	e.HTTPErrorHandler = srv.errorHandler
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000, // 365 days
	}))

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/forest", srv.HandleForest)
	e.GET("/check", srv.HandleCheck)
	e.GET("/nodes/:id", srv.HandleGetNode)
	e.GET("/nodes/:id/children", srv.HandleChildren)
	e.GET("/nodes/:id/siblings", srv.HandleSiblings)
	e.GET("/nodes/:id/ancestors", srv.HandleAncestors)
	e.GET("/nodes/:id/path", srv.HandlePath)
	e.GET("/nodes/:id/descendants", srv.HandleDescendants)
	e.GET("/nodes/:id/tree", srv.HandleDrilldown)

	limit := mutationLimiter(config.MutationRateLimit)
	e.POST("/rebuild", srv.HandleRebuild, limit)
	e.POST("/nodes", srv.HandleInsert, limit)
	e.DELETE("/nodes/:id", srv.HandleDelete, limit)
	e.POST("/nodes/:id/move", srv.HandleMove, limit)

	return srv
}

// mutationLimiter rejects requests beyond limit per second with 429.
func mutationLimiter(limit float64) echo.MiddlewareFunc {
	if limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	lim := rate.NewLimiter(rate.Limit(limit), max(1, int(limit)))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !lim.Allow() {
				return c.JSON(http.StatusTooManyRequests, GenericError{
					Error:   "RateLimitExceeded",
					Message: "too many mutations, retry later",
				})
			}
			return next(c)
		}
	}
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

// Run serves the API until ctx is done, then shuts down gracefully.
func (srv *Server) Run(ctx context.Context) error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)

	errc := make(chan error, 1)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
		}
		return err
	case <-ctx.Done():
	}

	if err := srv.Shutdown(); err != nil {
		srv.logger.Error("HTTP server shutdown error", "err", err)
		return err
	}
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.httpd.Shutdown(ctx)
}
