package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/gin-gonic/gin"
	"github.com/lockburn/bridge-relayer/metrics"
	"github.com/lockburn/bridge-relayer/utils"
)

const traceIDHeader = "X-Trace-Id"

// NewTraceIDInterceptor attaches the caller's trace id, or a new one, to the request context
func NewTraceIDInterceptor() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if traceID := c.GetHeader(traceIDHeader); traceID != "" {
			ctx = utils.ContextWithTraceID(ctx, traceID)
		}
		ctx, traceID := utils.WithTraceID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(traceIDHeader, traceID)
		c.Next()
	}
}

// NewAdminAuthInterceptor rejects requests without the admin bearer token
func NewAdminAuthInterceptor(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response{Success: false, Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

func NewRequestLogInterceptor() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Actual process of the request
		c.Next()

		duration := time.Since(startTime)
		traceID, _ := c.Request.Context().Value(utils.CtxTraceID).(string)
		log.WithFields(utils.TraceID, traceID).Infof("method[%v] path[%v] ip[%v] status[%v] processTime[%v]",
			c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.Writer.Status(), duration.String())
	}
}

// NewRequestMetricsInterceptor records the request metrics to prometheus
func NewRequestMetricsInterceptor() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime)
		route := routeName(c)
		isSuccess := isSuccessStatus(c.Writer.Status())
		metrics.RecordRequest(route, isSuccess)
		metrics.RecordRequestLatency(route, duration, isSuccess)
	}
}

// routeName is the matched route pattern so path parameters do not blow up the label cardinality
func routeName(c *gin.Context) string {
	if path := c.FullPath(); path != "" {
		return c.Request.Method + " " + path
	}
	return "unmatched"
}

// isSuccessStatus counts outcomes the caller is responsible for as successes
func isSuccessStatus(code int) bool {
	return code < http.StatusInternalServerError
}
