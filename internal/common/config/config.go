package config

import (
	"os"
	"strconv"
	"strings"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int
	LogMode      string

	Services ServicesConfig
	Studio   StudioConfig
	Storage  StorageConfig
	Editor   EditorConfig
	Designer DesignerConfig
}

// ServicesConfig — адреса внутренних сервисов для gateway и studio.
type ServicesConfig struct {
	StudioURL   string
	RendererURL string
	TryOnURL    string
}

type StudioConfig struct {
	DBPath         string
	MigrationsPath string
	CatalogPath    string
}

// StorageConfig — куда загружаются превью и картинки пользователей.
type StorageConfig struct {
	Mode          string // local | gcs
	Root          string
	PublicBaseURL string
	Bucket        string

	// BucketPublicURL — CDN перед бакетом; пустой — прямые ссылки GCS.
	BucketPublicURL string
	EmulatorHost    string
	MaxUploadSize   int64

	// ImageHosts — хосты, с которых рендер может качать картинки; пусто — любой публичный.
	ImageHosts []string
}

type EditorConfig struct {
	HistoryLimit      int
	SessionTTLMinutes int
	Strict            bool
}

// DesignerConfig — локальный терминальный редактор. Пустой логин — демо-пользователь.
type DesignerConfig struct {
	HistoryFile string
	Login       string
	Password    string
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	env := getEnv("ENV", "development")
	return &Config{
		Port:         getEnv("PORT", "3000"),
		Environment:  env,
		ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
		WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 30),
		LogMode:      getEnv("LOG_MODE", env),

		Services: ServicesConfig{
			StudioURL:   getEnv("STUDIO_URL", "http://localhost:3002"),
			RendererURL: getEnv("RENDERER_URL", "http://localhost:3001"),
			TryOnURL:    getEnv("TRYON_URL", ""),
		},
		Studio: StudioConfig{
			DBPath:         getEnv("STUDIO_DB_PATH", "data/db/studio.db"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations/001_init_studio.sql"),
			CatalogPath:    getEnv("CATALOG_PATH", ""),
		},
		Storage: StorageConfig{
			Mode:            strings.ToLower(getEnv("STORAGE_MODE", "local")),
			Root:            getEnv("STORAGE_ROOT", "data/files"),
			PublicBaseURL:   strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:3000/files"), "/"),
			Bucket:          getEnv("GCS_BUCKET", ""),
			BucketPublicURL: strings.TrimSuffix(getEnv("GCS_PUBLIC_BASE_URL", ""), "/"),
			EmulatorHost:    getEnv("STORAGE_EMULATOR_HOST", ""),
			MaxUploadSize:   int64(getEnvAsInt("UPLOAD_MAX_BYTES", 5<<20)),
			ImageHosts:      getEnvAsList("IMAGE_ALLOWED_HOSTS"),
		},
		Editor: EditorConfig{
			HistoryLimit:      getEnvAsInt("HISTORY_LIMIT", 50),
			SessionTTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 60),
			Strict:            getEnvAsBool("EDITOR_STRICT", env == "development"),
		},
		Designer: DesignerConfig{
			HistoryFile: getEnv("DESIGNER_HISTORY", "data/designer_history"),
			Login:       getEnv("DESIGNER_LOGIN", ""),
			Password:    getEnv("DESIGNER_PASSWORD", ""),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultVal
}
