package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	AWSAccessKey  string
	AWSSecretKey  string
	PublicBaseURL string
	DatabaseURL   string
	APIKey        string
	LogLevel      string
}

func Load() *Config {
	// A missing .env is fine; real env vars win either way.
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Region:      getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:    getEnv("S3_ENDPOINT", ""),
		AWSAccessKey:  getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		APIKey:        getEnv("API_KEY", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// UploadPolicy constrains one broad kind of upload (image or video).
type UploadPolicy struct {
	Kind         string   `yaml:"kind"`
	AllowedMimes []string `yaml:"allowed_mimes"`
	SizeMaxBytes int64    `yaml:"size_max_bytes"`
	PartSizeMB   int64    `yaml:"part_size_mb"`
}

type UploadConfig struct {
	Policies map[string]UploadPolicy `yaml:"policies"`
}

func LoadUploadConfig() (*UploadConfig, error) {
	configPath := getEnv("UPLOAD_CONFIG_PATH", "upload-config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload config: %w", err)
	}

	var config UploadConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse upload config: %w", err)
	}

	return &config, nil
}

// PolicyForMime returns the policy governing a MIME type, keyed by its broad
// kind ("image/jpeg" -> "image"). Nil when the kind is unknown.
func (uc *UploadConfig) PolicyForMime(mime string) *UploadPolicy {
	kind, _, found := strings.Cut(mime, "/")
	if !found {
		return nil
	}
	if policy, exists := uc.Policies[kind]; exists {
		return &policy
	}
	return nil
}

func (p *UploadPolicy) MimeAllowed(mime string) bool {
	for _, allowed := range p.AllowedMimes {
		if mime == allowed {
			return true
		}
	}
	return false
}

// DefaultUploadConfig mirrors the shipped upload-config.yaml and backs local
// dev and tests when no policy file is mounted.
func DefaultUploadConfig() *UploadConfig {
	return &UploadConfig{
		Policies: map[string]UploadPolicy{
			"image": {
				Kind:         "image",
				AllowedMimes: []string{"image/jpeg", "image/png", "image/webp"},
				SizeMaxBytes: 10 * 1024 * 1024,
				PartSizeMB:   5,
			},
			"video": {
				Kind:         "video",
				AllowedMimes: []string{"video/mp4", "video/quicktime", "video/webm", "video/x-matroska"},
				SizeMaxBytes: 5 * 1024 * 1024 * 1024,
				PartSizeMB:   8,
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
