package config

import (
	"os"
	"strconv"
	"time"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int

	DBPath      string
	PreviewDir  string
	BodyLimitMB int

	SessionTTL       time.Duration
	CleanupInterval  time.Duration
	RoomInactiveDays int
	SSEKeepalive     time.Duration
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3000"),
		Environment:  getEnv("ENV", "development"),
		ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
		// 0: без ограничения, иначе fasthttp оборвёт поток presence.
		WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 0),

		DBPath:      getEnv("DB_PATH", "data/db/tabletop.db"),
		PreviewDir:  getEnv("PREVIEW_DIR", "data/previews"),
		BodyLimitMB: getEnvAsInt("BODY_LIMIT_MB", 50),

		SessionTTL:       time.Duration(getEnvAsInt("SESSION_TTL_MINUTES", 720)) * time.Minute,
		CleanupInterval:  time.Duration(getEnvAsInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,
		RoomInactiveDays: getEnvAsInt("ROOM_INACTIVE_DAYS", 7),
		SSEKeepalive:     time.Duration(getEnvAsInt("SSE_KEEPALIVE_SECONDS", 25)) * time.Second,
	}
}

// BodyLimit — лимит тела запроса в байтах (карты приходят как data URL).
func (c *Config) BodyLimit() int {
	if c.BodyLimitMB <= 0 {
		return 50 * 1024 * 1024
	}
	return c.BodyLimitMB * 1024 * 1024
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}
