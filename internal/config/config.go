package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix = "KEEPSAKE"

	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultDatabasePath    = "keepsake.db"
	defaultLogLevel        = "info"
	defaultTokenTTLMinutes = 7 * 24 * 60
	defaultUploadDir       = "./uploads"
	defaultMaxUploadBytes  = 10 << 20
	defaultStorageBackend  = "local"
)

// StorageBackend selects the object-store implementation.
type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local"
	StorageBackendS3    StorageBackend = "s3"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress     string
	DatabasePath    string
	LogLevel        string
	SigningSecret   string
	TokenTTLMinutes int
	FrontendOrigin  string
	UploadDir       string
	MaxUploadBytes  int64
	Storage         StorageBackend
	S3              S3Config
}

// S3Config carries credentials and addressing for the remote object store.
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicBaseURL   string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("upload.dir", defaultUploadDir)
	configViper.SetDefault("upload.max_bytes", defaultMaxUploadBytes)
	configViper.SetDefault("storage.backend", defaultStorageBackend)
	configViper.SetDefault("s3.use_path_style", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     configViper.GetString("http.address"),
		DatabasePath:    configViper.GetString("database.path"),
		LogLevel:        configViper.GetString("log.level"),
		SigningSecret:   configViper.GetString("auth.signing_secret"),
		TokenTTLMinutes: configViper.GetInt("auth.token_ttl_minutes"),
		FrontendOrigin:  configViper.GetString("frontend.origin"),
		UploadDir:       configViper.GetString("upload.dir"),
		MaxUploadBytes:  configViper.GetInt64("upload.max_bytes"),
		Storage:         StorageBackend(strings.ToLower(strings.TrimSpace(configViper.GetString("storage.backend")))),
		S3: S3Config{
			Region:          configViper.GetString("s3.region"),
			Bucket:          configViper.GetString("s3.bucket"),
			Endpoint:        configViper.GetString("s3.endpoint"),
			AccessKeyID:     configViper.GetString("s3.access_key_id"),
			SecretAccessKey: configViper.GetString("s3.secret_access_key"),
			UsePathStyle:    configViper.GetBool("s3.use_path_style"),
			PublicBaseURL:   configViper.GetString("s3.public_base_url"),
		},
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	switch c.Storage {
	case StorageBackendLocal:
		if strings.TrimSpace(c.UploadDir) == "" {
			return fmt.Errorf("upload.dir is required for the local storage backend")
		}
	case StorageBackendS3:
		if strings.TrimSpace(c.S3.Bucket) == "" {
			return fmt.Errorf("s3.bucket is required for the s3 storage backend")
		}
		if strings.TrimSpace(c.S3.Region) == "" && strings.TrimSpace(c.S3.Endpoint) == "" {
			return fmt.Errorf("s3.region or s3.endpoint is required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q", StorageBackendLocal, StorageBackendS3)
	}
	return nil
}
