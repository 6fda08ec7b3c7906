package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"FoodBot/internal/snapshot"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// UpdateHandler обрабатывает обновления, пришедшие через webhook
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// SnapshotSource показывает текущий снимок, не пересобирая его
type SnapshotSource interface {
	Current() (*snapshot.Snapshot, bool)
}

// Server - HTTP сервер для webhook Telegram, проверки здоровья и метрик
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	secret     string
	handler    UpdateHandler
	snapshots  SnapshotSource
	logger     *zap.SugaredLogger
	startTime  time.Time
}

// New создает сервер; gatherer может быть nil, тогда /metrics не регистрируется
func New(addr, secret string, handler UpdateHandler, snapshots SnapshotSource, gatherer prometheus.Gatherer, logger *zap.SugaredLogger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	s := &Server{
		engine:    engine,
		secret:    secret,
		handler:   handler,
		snapshots: snapshots,
		logger:    logger,
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes(gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.engine.POST("/webhook/:secret", s.handleWebhook)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/debug", s.handleDebug)

	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler отдает http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start слушает адрес до вызова Shutdown
func (s *Server) Start() error {
	s.logger.Infof("🌐 HTTP сервер слушает %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ошибка HTTP сервера: %w", err)
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь текущих запросов
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infof("🛑 Останавливаю HTTP сервер")
	return s.httpServer.Shutdown(ctx)
}

// handleWebhook принимает обновление от Telegram; секрет в пути сверяется за постоянное время
func (s *Server) handleWebhook(c *gin.Context) {
	if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(s.secret)) != 1 {
		s.logger.Warnf("⚠️ Webhook с неверным секретом от %s", c.ClientIP())
		c.AbortWithStatus(http.StatusForbidden)
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		s.logger.Warnf("⚠️ Некорректное обновление: %v", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad update"})
		return
	}

	// обработка не прерывается при обрыве соединения
	s.handler.HandleUpdate(context.WithoutCancel(c.Request.Context()), update)
	c.Status(http.StatusOK)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleDebug показывает состояние текущего снимка
func (s *Server) handleDebug(c *gin.Context) {
	s.logger.Debugf("🐞 Запрошен /debug")

	snap, ok := s.snapshots.Current()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"snapshot": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshot": gin.H{
			"id":           snap.ID,
			"fetched_at":   snap.FetchedAt,
			"stale":        snap.Stale,
			"messages":     snap.Messages,
			"observations": snap.Observations,
			"restaurants":  snap.Table.Len(),
		},
	})
}

// requestLogger пишет каждый запрос в zap вместо gin.Logger
func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		logger.Debugw("http",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(started),
		)
	}
}
