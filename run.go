package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"FoodBot/internal/analyzer"
	"FoodBot/internal/auth"
	"FoodBot/internal/bot"
	"FoodBot/internal/config"
	"FoodBot/internal/metrics"
	"FoodBot/internal/server"
	"FoodBot/internal/snapshot"
	"FoodBot/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// runBot выбирает источник сообщений и запускает бота до отмены ctx
func runBot(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNewMetrics(reg)

	if cfg.ExportPath != "" {
		logger.Infof("📂 Читаю сообщения из выгрузки %s", cfg.ExportPath)
		return serve(ctx, cfg, analyzer.NewExportReader(cfg.ExportPath), reg, m, logger)
	}

	// Создаем папку для сессии если её нет
	if err := os.MkdirAll(filepath.Dir(cfg.SessionPath), 0700); err != nil {
		return fmt.Errorf("ошибка создания папки сессии: %w", err)
	}

	// Создаем клиент Telegram с хранилищем сессии
	client := telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: cfg.SessionPath},
		Logger:         logger.Desugar().Named("mtproto"),
	})

	logger.Infof("Запускаем Telegram клиент...")
	return client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewAuthFlow(cfg.Phone, cfg.Password, logger)
		if err := auth.Authenticate(ctx, client, flow, logger); err != nil {
			return fmt.Errorf("аутентификация не удалась: %w", err)
		}

		reader := analyzer.NewChannelReader(client.API(), cfg.ChannelUsername(), cfg.HistoryDays, cfg.HistoryLimit, logger)
		return serve(ctx, cfg, reader, reg, m, logger)
	})
}

// serve поднимает кэш снимков, бота и HTTP сервер
func serve(ctx context.Context, cfg *config.Config, fetcher snapshot.Fetcher, reg *prometheus.Registry, m *metrics.Metrics, logger *zap.SugaredLogger) error {
	opts := snapshot.Options{
		TTL:          cfg.CacheTTL,
		MinThreshold: cfg.MinThreshold,
		Attempts:     cfg.FetchAttempts,
		StaleRetry:   cfg.StaleRetry,
		Metrics:      m,
	}
	if cfg.SnapshotFile != "" {
		opts.Storage = storage.NewStorage(cfg.SnapshotFile)
	}
	cache := snapshot.New(fetcher, analyzer.NewNormalizer(cfg.MaxFragmentLength), opts, logger)

	// Первый снимок строим сразу, чтобы первая кнопка не ждала канал
	if _, err := cache.Get(ctx); err != nil {
		logger.Warnf("⚠️ Первый снимок не построен: %v", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("ошибка создания бота: %w", err)
	}
	logger.Infof("🤖 Авторизован бот @%s", api.Self.UserName)

	telegramBot := bot.New(api, cache, bot.Windows{FirstHalf: cfg.FirstHalf, SecondHalf: cfg.SecondHalf}, m, logger)
	srv := server.New(cfg.ListenAddr, cfg.WebhookSecret, telegramBot, cache, reg, logger)

	return runServer(ctx, srv, func() error {
		return startUpdates(ctx, cfg, api, telegramBot, logger)
	}, logger)
}

// httpServer - то, чем runServer управляет; реализуется server.Server
type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// runServer запускает srv, затем подключает источник обновлений и ждет отмены ctx.
// Сервер останавливается при любом выходе, в том числе если источник не подключился.
func runServer(ctx context.Context, srv httpServer, connect func() error, logger *zap.SugaredLogger) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("⚠️ Ошибка остановки HTTP сервера: %v", err)
		}
	}()

	if err := connect(); err != nil {
		return err
	}
	logger.Infof("🎉 Система полностью готова к работе!")

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return err
	}
}

// startUpdates ставит webhook или запускает long polling
func startUpdates(ctx context.Context, cfg *config.Config, api *tgbotapi.BotAPI, telegramBot *bot.Bot, logger *zap.SugaredLogger) error {
	switch cfg.Mode {
	case config.ModeWebhook:
		link := strings.TrimRight(cfg.WebhookURL, "/") + "/webhook/" + cfg.WebhookSecret
		wh, err := tgbotapi.NewWebhook(link)
		if err != nil {
			return fmt.Errorf("неверный WEBHOOK_URL: %w", err)
		}
		if _, err := api.Request(wh); err != nil {
			return fmt.Errorf("ошибка установки webhook: %w", err)
		}
		logger.Infof("🔗 Webhook установлен на %s", strings.TrimRight(cfg.WebhookURL, "/"))
	default:
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warnf("⚠️ Не удалось снять webhook: %v", err)
		}

		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := api.GetUpdatesChan(u)

		go func() {
			<-ctx.Done()
			api.StopReceivingUpdates()
		}()
		go telegramBot.Run(ctx, updates)
	}
	return nil
}
