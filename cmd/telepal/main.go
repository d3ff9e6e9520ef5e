// Точка входа TELEPAL — авторизационная подсистема диалогового бота.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// инициализирует репозитории и авторизационное ядро, выполняет bootstrap
// начальных супер-админов, создаёт клиент диалогового движка и шлюз,
// запускает HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/itsmorninghao/TELEPAL/internal/api/handlers"
	"github.com/itsmorninghao/TELEPAL/internal/auth"
	"github.com/itsmorninghao/TELEPAL/internal/config"
	"github.com/itsmorninghao/TELEPAL/internal/database"
	"github.com/itsmorninghao/TELEPAL/internal/engine"
	"github.com/itsmorninghao/TELEPAL/internal/gate"
	"github.com/itsmorninghao/TELEPAL/internal/repository"
	"github.com/itsmorninghao/TELEPAL/internal/server"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("TELEPAL запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("bot_username", cfg.BotUsername),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 5. Репозитории
	permRepo := repository.NewPermissionRepository(pool)
	wlRepo := repository.NewWhitelistRepository(pool)
	groupRepo := repository.NewGroupRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	// 6. Авторизационное ядро
	authSvc := auth.NewService(permRepo, wlRepo, groupRepo, logger)
	authAdmin := auth.NewAdmin(permRepo, wlRepo, groupRepo, txRunner, logger)

	// 7. Bootstrap начальных супер-админов (идемпотентно)
	if err := authAdmin.Bootstrap(ctx, cfg.InitialSuperAdmins); err != nil {
		logger.Error("Ошибка bootstrap супер-админов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. Клиент диалогового движка
	engineClient, err := engine.New(cfg.EngineURL, cfg.EngineTimeout, cfg.EngineCACertPath, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента движка", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Шлюз входящих событий
	g := gate.New(authSvc, authAdmin, engineClient, cfg.BotUsername, logger)

	// 10. HTTP handlers
	pgChecker := database.NewReadinessChecker(pool)
	healthHandler := handlers.NewHealthHandler(pgChecker)
	webhookHandler := handlers.NewWebhookHandler(g, cfg.BotUsername, logger)

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, webhookHandler, healthHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("TELEPAL остановлен")
}
