// Package api serves the solver over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kilianp07/unitcommit/api/runs"
	"github.com/kilianp07/unitcommit/api/solve"
	"github.com/kilianp07/unitcommit/config"
	"github.com/kilianp07/unitcommit/core/journal"
	"github.com/kilianp07/unitcommit/core/monitoring"
	"github.com/kilianp07/unitcommit/infra/logger"
)

// NewRouter builds the gin engine: /health and /metrics are public, /api/v1
// requires the configured bearer token.
func NewRouter(cfg config.APIConfig, solver solve.Solver, store journal.Store, gatherer prometheus.Gatherer, log logger.Logger) *gin.Engine {
	if log == nil {
		log = logger.NopLogger{}
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router := gin.New()
	router.Use(Recovery(log), RequestLogger(log), CORS(cfg.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1", BearerAuth(cfg.Token))
	{
		v1.POST("/solve", solve.NewHandler(solver, solve.Limits{
			MaxGenerators: cfg.MaxGenerators,
			MaxPeriods:    cfg.MaxPeriods,
			Timeout:       cfg.SolveTimeout(),
		}).Solve)
		// auth already ran on the group
		v1.GET("/runs", gin.WrapH(runs.NewHistoryHandler(store, "")))
	}
	return router
}

// Serve runs handler on cfg.Listen until ctx is cancelled.
func Serve(ctx context.Context, cfg config.APIConfig, handler http.Handler, log logger.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("API listening on %s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// CORS adapts rs/cors to gin; preflight requests end here.
func CORS(origins []string) gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// BearerAuth rejects requests without "Bearer <token>" when token is set.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token != "" && c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, solve.ErrorResponse{Error: solve.ErrorDetail{Code: "UNAUTHORIZED", Message: "unauthorized"}})
			return
		}
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debugw("http request", map[string]any{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

// Recovery turns panics into a 500 JSON error.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Errorf("panic serving %s: %v", c.Request.URL.Path, recovered)
		monitoring.CapturePanic(recovered, map[string]string{"path": c.FullPath()})
		c.AbortWithStatusJSON(http.StatusInternalServerError, solve.ErrorResponse{Error: solve.ErrorDetail{Code: "INTERNAL_ERROR", Message: "an unexpected error occurred"}})
	})
}
