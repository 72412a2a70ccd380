// Package server receives Telegram webhook deliveries and feeds them to a single worker.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/5741327-hash/tesseractx-bot/metrics"
	"github.com/5741327-hash/tesseractx-bot/telegram"
)

const (
	WebhookPath  = "/webhook"
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	defaultQueueSize = 64
)

// UpdateHandler processes one update to completion.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update)
}

type Server struct {
	handler UpdateHandler
	secret  string
	queue   chan telegram.Update
	logger  zerolog.Logger
}

// New creates a Server. Requests to the webhook must carry secret in SecretHeader
// when secret is non-empty.
func New(handler UpdateHandler, secret string, queueSize int, logger zerolog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("update handler required")
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Server{
		handler: handler,
		secret:  secret,
		queue:   make(chan telegram.Update, queueSize),
		logger:  logger.With().Str("component", "server").Logger(),
	}, nil
}

func (s *Server) Routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.logMiddleware(), prometheusMiddleware())

	router.GET("/health", s.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST(WebhookPath, s.handleWebhook)
	return router
}

// Work handles queued updates one at a time until ctx is cancelled. Running a single
// Work loop keeps pipeline runs and publishes strictly sequential.
func (s *Server) Work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.queue:
			s.handler.HandleUpdate(ctx, u)
		}
	}
}

func (s *Server) handleWebhook(c *gin.Context) {
	if s.secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretHeader)), []byte(s.secret)) != 1 {
		metrics.UpdatesTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn().Str("remote", c.ClientIP()).Msg("webhook call with bad secret")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var u telegram.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		metrics.UpdatesTotal.WithLabelValues("malformed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	select {
	case s.queue <- u:
		metrics.UpdatesTotal.WithLabelValues("queued").Inc()
		c.Status(http.StatusOK)
	default:
		// Telegram redelivers on non-2xx.
		metrics.UpdatesTotal.WithLabelValues("dropped").Inc()
		s.logger.Warn().Int64("update_id", u.UpdateID).Msg("update queue full")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "busy"})
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "tesseractx-bot", "queued": len(s.queue)})
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http")
	}
}

func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
