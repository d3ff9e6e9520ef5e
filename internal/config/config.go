// Пакет config — загрузка и валидация конфигурации TELEPAL
// из переменных окружения (и .env-файла, если он есть).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации TELEPAL.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (webhook, health, metrics)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Бот ---

	// Username бота без @ — для определения упоминаний в группах
	BotUsername string
	// Идентификаторы начальных супер-администраторов
	InitialSuperAdmins []int64

	// --- Диалоговый движок ---

	// Базовый URL диалогового движка
	EngineURL string
	// Таймаут запроса к движку
	EngineTimeout time.Duration
	// Путь к CA-сертификату для TLS-соединения с движком (опционально)
	EngineCACertPath string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Если рядом есть .env-файл — он подхватывается первым (без
// перекрытия уже заданных переменных).
func Load() (*Config, error) {
	// .env опционален: в контейнере переменные приходят из окружения
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// TP_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("TP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("TP_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("TP_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// TP_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("TP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("TP_LOG_LEVEL: %w", err)
	}

	// TP_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("TP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("TP_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// TP_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("TP_DB_HOST")
	if err != nil {
		return nil, err
	}

	// TP_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("TP_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("TP_DB_PORT: %w", err)
	}

	// TP_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("TP_DB_NAME")
	if err != nil {
		return nil, err
	}

	// TP_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("TP_DB_USER")
	if err != nil {
		return nil, err
	}

	// TP_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("TP_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// TP_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("TP_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("TP_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Бот ---

	// TP_BOT_USERNAME — обязательный, без ведущего @
	cfg.BotUsername, err = getEnvRequired("TP_BOT_USERNAME")
	if err != nil {
		return nil, err
	}
	cfg.BotUsername = strings.TrimPrefix(cfg.BotUsername, "@")

	// TP_INITIAL_SUPER_ADMINS — идентификаторы через запятую (опционально)
	cfg.InitialSuperAdmins, err = parseIDList(getEnvDefault("TP_INITIAL_SUPER_ADMINS", ""))
	if err != nil {
		return nil, fmt.Errorf("TP_INITIAL_SUPER_ADMINS: %w", err)
	}

	// --- Диалоговый движок ---

	// TP_ENGINE_URL — обязательный
	cfg.EngineURL, err = getEnvRequired("TP_ENGINE_URL")
	if err != nil {
		return nil, err
	}
	cfg.EngineURL = strings.TrimRight(cfg.EngineURL, "/")

	// TP_ENGINE_TIMEOUT — таймаут запроса к движку (по умолчанию 60s)
	cfg.EngineTimeout, err = getEnvDuration("TP_ENGINE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TP_ENGINE_TIMEOUT: %w", err)
	}

	// TP_ENGINE_CA_CERT_PATH — CA-сертификат движка (опционально)
	cfg.EngineCACertPath = getEnvDefault("TP_ENGINE_CA_CERT_PATH", "")

	// --- Graceful shutdown ---

	// TP_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("TP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("TP_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseIDList разбирает список идентификаторов, разделённых запятыми.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseIDList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("некорректный идентификатор: %q", p)
		}
		result = append(result, id)
	}
	return result, nil
}
