package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"TP_DB_HOST":      "localhost",
		"TP_DB_NAME":      "telepal",
		"TP_DB_USER":      "telepal",
		"TP_DB_PASSWORD":  "secret",
		"TP_BOT_USERNAME": "telepal_bot",
		"TP_ENGINE_URL":   "http://engine:9000",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.EngineTimeout != 60*time.Second {
		t.Errorf("EngineTimeout = %v, ожидается 60s", cfg.EngineTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
	if len(cfg.InitialSuperAdmins) != 0 {
		t.Errorf("InitialSuperAdmins = %v, ожидается пустой список", cfg.InitialSuperAdmins)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{
		"TP_DB_HOST", "TP_DB_NAME", "TP_DB_USER", "TP_DB_PASSWORD",
		"TP_BOT_USERNAME", "TP_ENGINE_URL",
	}

	for _, missing := range required {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			envs[missing] = ""
			setEnvs(t, envs)

			if _, err := Load(); err == nil {
				t.Errorf("Load() без %s должен возвращать ошибку", missing)
			}
		})
	}
}

func TestLoad_InitialSuperAdmins(t *testing.T) {
	envs := minimalEnvs()
	envs["TP_INITIAL_SUPER_ADMINS"] = "100, 200,300"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	want := []int64{100, 200, 300}
	if len(cfg.InitialSuperAdmins) != len(want) {
		t.Fatalf("InitialSuperAdmins = %v, ожидается %v", cfg.InitialSuperAdmins, want)
	}
	for i, id := range want {
		if cfg.InitialSuperAdmins[i] != id {
			t.Errorf("InitialSuperAdmins[%d] = %d, ожидается %d", i, cfg.InitialSuperAdmins[i], id)
		}
	}
}

func TestLoad_InitialSuperAdminsInvalid(t *testing.T) {
	envs := minimalEnvs()
	envs["TP_INITIAL_SUPER_ADMINS"] = "100,abc"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() с нечисловым идентификатором должен возвращать ошибку")
	}
}

func TestLoad_BotUsernameTrimsAt(t *testing.T) {
	envs := minimalEnvs()
	envs["TP_BOT_USERNAME"] = "@telepal_bot"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.BotUsername != "telepal_bot" {
		t.Errorf("BotUsername = %q, ожидается без ведущего @", cfg.BotUsername)
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	envs := minimalEnvs()
	envs["TP_LOG_FORMAT"] = "xml"
	setEnvs(t, envs)

	if _, err := Load(); err == nil {
		t.Error("Load() с TP_LOG_FORMAT=xml должен возвращать ошибку")
	}
}

func TestDatabaseDSN(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	want := "host=localhost port=5432 dbname=telepal user=telepal password=secret sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", got, want)
	}
}
