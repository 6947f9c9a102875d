package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Placeholder values shipped in example env files. They count as unset.
const (
	GoogleKeyPlaceholder = "your-google-cloud-api-key"
	BraveKeyPlaceholder  = "your-brave-api-key"
)

type Config struct {
	ListenAddr    string `yaml:"listen_addr"`
	DBPath        string `yaml:"db_path"`
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	LogFormat     string `yaml:"log_format"`
	PublicBaseURL string `yaml:"public_base_url"`

	StorageBackend string `yaml:"storage_backend"`
	StorageBucket  string `yaml:"storage_bucket"`
	PhotoPath      string `yaml:"photo_local_path"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3Region       string `yaml:"s3_region"`
	S3PublicURL    string `yaml:"s3_public_url"`

	AuthJWTSecret string `yaml:"auth_jwt_secret"`
	AuthAudience  string `yaml:"auth_audience"`

	VisionBackend   string `yaml:"vision_backend"`
	GoogleAPIKey    string `yaml:"google_cloud_api_key"`
	GoogleVisionURL string `yaml:"google_vision_url"`
	ClaudeAPIKey    string `yaml:"claude_api_key"`
	ClaudeModel     string `yaml:"claude_model"`

	BraveAPIKey    string `yaml:"brave_search_api_key"`
	BraveSearchURL string `yaml:"brave_search_url"`

	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	ImageCacheTTL time.Duration `yaml:"image_cache_ttl"`

	VisionTimeout     time.Duration `yaml:"vision_timeout"`
	SearchTimeout     time.Duration `yaml:"search_timeout"`
	SearchConcurrency int           `yaml:"search_concurrency"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		ListenAddr:        ":8080",
		DBPath:            "/data/catchsmart.db",
		LogLevel:          "info",
		LogFormat:         "json",
		PublicBaseURL:     "http://localhost:8080",
		StorageBackend:    "local",
		StorageBucket:     "equipment-images",
		PhotoPath:         "/data/photos",
		S3Region:          "us-east-1",
		AuthAudience:      "authenticated",
		ClaudeModel:       "claude-sonnet-4-5",
		ImageCacheTTL:     24 * time.Hour,
		VisionTimeout:     30 * time.Second,
		SearchTimeout:     10 * time.Second,
		SearchConcurrency: 4,
		MaxUploadBytes:    20 << 20,
	}
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) overlayEnv() error {
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.PublicBaseURL = getEnv("PUBLIC_BASE_URL", c.PublicBaseURL)

	c.StorageBackend = getEnv("STORAGE_BACKEND", c.StorageBackend)
	c.StorageBucket = getEnv("STORAGE_BUCKET", c.StorageBucket)
	c.PhotoPath = getEnv("PHOTO_LOCAL_PATH", c.PhotoPath)
	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)
	c.S3AccessKey = getEnv("S3_ACCESS_KEY", c.S3AccessKey)
	c.S3SecretKey = getEnv("S3_SECRET_KEY", c.S3SecretKey)
	c.S3Region = getEnv("S3_REGION", c.S3Region)
	c.S3PublicURL = getEnv("S3_PUBLIC_URL", c.S3PublicURL)

	c.AuthJWTSecret = getEnv("AUTH_JWT_SECRET", c.AuthJWTSecret)
	c.AuthAudience = getEnv("AUTH_AUDIENCE", c.AuthAudience)

	c.VisionBackend = getEnv("VISION_BACKEND", c.VisionBackend)
	c.GoogleAPIKey = getEnv("GOOGLE_CLOUD_API_KEY", c.GoogleAPIKey)
	c.GoogleVisionURL = getEnv("GOOGLE_VISION_URL", c.GoogleVisionURL)
	c.ClaudeAPIKey = getEnv("CLAUDE_API_KEY", c.ClaudeAPIKey)
	c.ClaudeModel = getEnv("CLAUDE_MODEL", c.ClaudeModel)

	c.BraveAPIKey = getEnv("BRAVE_SEARCH_API_KEY", c.BraveAPIKey)
	c.BraveSearchURL = getEnv("BRAVE_SEARCH_URL", c.BraveSearchURL)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)

	var err error
	if c.RedisDB, err = getEnvInt("REDIS_DB", c.RedisDB); err != nil {
		return err
	}
	if c.SearchConcurrency, err = getEnvInt("SEARCH_CONCURRENCY", c.SearchConcurrency); err != nil {
		return err
	}
	if c.ImageCacheTTL, err = getEnvDuration("IMAGE_CACHE_TTL", c.ImageCacheTTL); err != nil {
		return err
	}
	if c.VisionTimeout, err = getEnvDuration("VISION_TIMEOUT", c.VisionTimeout); err != nil {
		return err
	}
	if c.SearchTimeout, err = getEnvDuration("SEARCH_TIMEOUT", c.SearchTimeout); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		c.MaxUploadBytes = n
	}
	return nil
}

// GoogleVisionConfigured reports whether a real Google Cloud key is set.
func (c *Config) GoogleVisionConfigured() bool {
	return c.GoogleAPIKey != "" && c.GoogleAPIKey != GoogleKeyPlaceholder
}

// ImageSearchConfigured reports whether a real Brave Search key is set.
func (c *Config) ImageSearchConfigured() bool {
	return c.BraveAPIKey != "" && c.BraveAPIKey != BraveKeyPlaceholder
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}
