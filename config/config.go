package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr  string
	WebAppDir string // Path to the web application's UI files

	// 数据库配置
	DBDriver   string // mysql | sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	// Redis配置
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	LibraryCacheTTL time.Duration

	// 对象存储配置
	StorageDriver  string // minio | memory
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	MediaBaseURL   string // Public base for object URLs; empty derives it from the endpoint

	JWTSecret string
	JWTTTL    time.Duration

	// 文本/图像生成
	GenAIBaseURL    string
	GenAIAPIKey     string
	GenAITextModel  string
	GenAIImageModel string

	// Suno 音乐生成
	SunoBaseURL      string
	SunoAPIKey       string // Default key; per-user settings override it
	SunoModel        string
	SunoPollInterval time.Duration
	SunoMaxWait      time.Duration
	JobWorkers       int

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return fromEnv()
}

// Reload re-reads the given env file, overriding values set by an earlier load.
func Reload(path string) (*Config, error) {
	if err := godotenv.Overload(path); err != nil {
		return nil, err
	}
	return fromEnv(), nil
}

func fromEnv() *Config {
	return &Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
		WebAppDir: getEnv("WEB_APP_DIR", filepath.Join("web", "ui")),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for passwords
		DBName:     getEnv("DB_NAME", "songforge"),
		SQLitePath: getEnv("SQLITE_PATH", filepath.Join("data", "songforge.sqlite3")),

		RedisHost:       getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		LibraryCacheTTL: getEnvDuration("LIBRARY_CACHE_TTL", 5*time.Minute),

		StorageDriver:  strings.ToLower(getEnv("STORAGE_DRIVER", "minio")),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "songforge"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MediaBaseURL:   strings.TrimRight(getEnv("MEDIA_BASE_URL", ""), "/"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),

		GenAIBaseURL:    strings.TrimRight(getEnv("GENAI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"), "/"),
		GenAIAPIKey:     getEnv("GENAI_API_KEY", ""),
		GenAITextModel:  getEnv("GENAI_TEXT_MODEL", "gemini-2.5-flash"),
		GenAIImageModel: getEnv("GENAI_IMAGE_MODEL", "imagen-3.0-generate-002"),

		SunoBaseURL:      strings.TrimRight(getEnv("SUNO_BASE_URL", "https://api.sunoapi.org/api/v1"), "/"),
		SunoAPIKey:       getEnv("SUNO_API_KEY", ""),
		SunoModel:        getEnv("SUNO_MODEL", "V4_5"),
		SunoPollInterval: getEnvDuration("SUNO_POLL_INTERVAL", 3*time.Second),
		SunoMaxWait:      getEnvDuration("SUNO_MAX_WAIT", 10*time.Minute),
		JobWorkers:       getEnvInt("JOB_WORKERS", 2),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", filepath.Join("logs", "songforge.log")),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
