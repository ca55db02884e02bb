package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lockburn/bridge-relayer/etherman"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Minute
	shutdownTimeout     = 5 * time.Second
)

const adminPathPrefix = "/api/admin/"

// NewRouter registers the relayer routes
func NewRouter(cfg Config, s *relayerService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if len(cfg.AllowOrigins) > 0 {
		r.Use(newPublicCORS(cfg.AllowOrigins))
	}
	r.Use(
		NewTraceIDInterceptor(),
		NewRequestLogInterceptor(),
		NewRequestMetricsInterceptor(),
	)

	api := r.Group("/api")
	{
		api.GET("/health", s.checkHealth)
		api.GET("/contracts", s.getContracts)
		api.GET("/merkle-roots", s.getMerkleRoots)

		webhook := api.Group("/webhook")
		webhook.POST("/lock", s.webhook(etherman.DirectionLock))
		webhook.POST("/burn", s.webhook(etherman.DirectionBurn))

		api.GET("/tasks/:"+paramDirection+"/:"+paramID, s.getTask)
	}

	if cfg.AdminToken == "" {
		log.Warn("Server.AdminToken is empty, the retry and resume routes are disabled")
		return r
	}
	admin := r.Group(adminPathPrefix, NewAdminAuthInterceptor(cfg.AdminToken))
	{
		admin.POST("/tasks/:"+paramDirection+"/:"+paramID+"/retry", s.retryTask)
		admin.POST("/directions/:"+paramDirection+"/resume", s.resumeDirection)
	}
	return r
}

// newPublicCORS answers cross origin requests for the listed origins. Admin routes never get CORS headers.
func newPublicCORS(origins []string) gin.HandlerFunc {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = origins
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, traceIDHeader)
	corsCfg.ExposeHeaders = []string{traceIDHeader}
	handler := cors.New(corsCfg)
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, adminPathPrefix) {
			c.Next()
			return
		}
		handler(c)
	}
}

// RunServer serves the HTTP routes until ctx is done
func RunServer(ctx context.Context, cfg Config, s *relayerService) error {
	if len(cfg.HTTPPort) == 0 {
		return fmt.Errorf("invalid TCP port for HTTP server: '%s'", cfg.HTTPPort)
	}
	readTimeout, writeTimeout := cfg.ReadTimeout.Duration, cfg.WriteTimeout.Duration
	if readTimeout == 0 {
		readTimeout = defaultReadTimeout
	}
	if writeTimeout == 0 {
		writeTimeout = defaultWriteTimeout
	}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           NewRouter(cfg, s),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		MaxHeaderBytes:    1 << 20, //nolint:gomnd
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("Restful Server is serving at ", cfg.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
