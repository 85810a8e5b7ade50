package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minJWTSecretLength is the shortest HS256 signing secret accepted
const minJWTSecretLength = 32

// Config holds all configuration for the yeti service
type Config struct {
	MongoDB struct {
		URI         string        `mapstructure:"uri"`
		Database    string        `mapstructure:"database"`
		MaxPoolSize uint64        `mapstructure:"max_pool_size"`
		Timeout     time.Duration `mapstructure:"timeout"`
	} `mapstructure:"mongodb"`

	API struct {
		Port           int      `mapstructure:"port"`
		TLS            bool     `mapstructure:"tls"`
		CertFile       string   `mapstructure:"cert_file"`
		KeyFile        string   `mapstructure:"key_file"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		TrustProxy     bool     `mapstructure:"trust_proxy"`
		RateLimit      struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
			Redis             struct {
				Enabled  bool          `mapstructure:"enabled"`
				Addr     string        `mapstructure:"addr"`
				Password string        `mapstructure:"password"`
				DB       int           `mapstructure:"db"`
				Window   time.Duration `mapstructure:"window"`
				Limit    int           `mapstructure:"limit"`
			} `mapstructure:"redis"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
		Issuer    string        `mapstructure:"issuer"`
	} `mapstructure:"auth"`

	Search struct {
		DefaultRange   int `mapstructure:"default_range"`
		MaxRange       int `mapstructure:"max_range"`
		MaxRegexLength int `mapstructure:"max_regex_length"`
	} `mapstructure:"search"`

	Secrets struct {
		Provider string `mapstructure:"provider"` // env, vault or aws
		Vault    struct {
			Address string `mapstructure:"address"`
			Token   string `mapstructure:"token"`
			Path    string `mapstructure:"path"`
		} `mapstructure:"vault"`
		AWS struct {
			Region    string `mapstructure:"region"`
			SecretID  string `mapstructure:"secret_id"`
			AccessKey string `mapstructure:"access_key"`
			SecretKey string `mapstructure:"secret_key"`
		} `mapstructure:"aws"`
	} `mapstructure:"secrets"`
}

func setDefaults() {
	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "yeti")
	viper.SetDefault("mongodb.max_pool_size", 20)
	viper.SetDefault("mongodb.timeout", 10*time.Second)

	viper.SetDefault("api.port", 5000)
	viper.SetDefault("api.tls", false)
	viper.SetDefault("api.cert_file", "server.crt")
	viper.SetDefault("api.key_file", "server.key")
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("api.trust_proxy", false)
	viper.SetDefault("api.rate_limit.requests_per_second", 50)
	viper.SetDefault("api.rate_limit.burst", 100)
	viper.SetDefault("api.rate_limit.redis.enabled", false)
	viper.SetDefault("api.rate_limit.redis.addr", "localhost:6379")
	viper.SetDefault("api.rate_limit.redis.db", 0)
	viper.SetDefault("api.rate_limit.redis.window", time.Minute)
	viper.SetDefault("api.rate_limit.redis.limit", 600)

	viper.SetDefault("auth.jwt_secret", "")
	viper.SetDefault("auth.jwt_expiry", 24*time.Hour)
	viper.SetDefault("auth.issuer", "yeti")

	viper.SetDefault("search.default_range", 50)
	viper.SetDefault("search.max_range", 1000)
	viper.SetDefault("search.max_regex_length", 256)

	viper.SetDefault("secrets.provider", "env")
	viper.SetDefault("secrets.vault.path", "secret/yeti")
	viper.SetDefault("secrets.aws.secret_id", "yeti/secrets")
}

func loadFromEnv() {
	viper.SetEnvPrefix("YETI")
	// YETI_MONGODB_URI -> mongodb.uri
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// LoadConfig loads config.yaml from . or ./config, applies YETI_* environment
// overrides, resolves external secrets and validates the result
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file path.
// An empty path searches the default locations.
func LoadConfigFile(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file: defaults and env vars only
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := LoadSecrets(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if !strings.HasPrefix(config.MongoDB.URI, "mongodb://") && !strings.HasPrefix(config.MongoDB.URI, "mongodb+srv://") {
		return fmt.Errorf("invalid MongoDB URI: must start with mongodb:// or mongodb+srv://")
	}
	parsed, err := url.Parse(config.MongoDB.URI)
	if err != nil {
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid MongoDB URI: missing host")
	}
	if config.MongoDB.Database == "" {
		return fmt.Errorf("MongoDB database cannot be empty")
	}
	if config.MongoDB.MaxPoolSize == 0 {
		return fmt.Errorf("mongodb.max_pool_size must be positive")
	}

	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d (must be 1-65535)", config.API.Port)
	}
	if config.API.TLS && (config.API.CertFile == "" || config.API.KeyFile == "") {
		return fmt.Errorf("api.cert_file and api.key_file are required when TLS is enabled")
	}
	for _, origin := range config.API.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("wildcard CORS origin is not allowed with credentialed requests")
		}
	}
	if config.API.RateLimit.RequestsPerSecond < 1 || config.API.RateLimit.Burst < 1 {
		return fmt.Errorf("api.rate_limit.requests_per_second and burst must be positive")
	}
	if redis := config.API.RateLimit.Redis; redis.Enabled {
		if redis.Addr == "" {
			return fmt.Errorf("api.rate_limit.redis.addr is required when Redis rate limiting is enabled")
		}
		if redis.Window <= 0 || redis.Limit < 1 {
			return fmt.Errorf("api.rate_limit.redis.window and limit must be positive")
		}
	}

	if len(config.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters (set YETI_AUTH_JWT_SECRET)", minJWTSecretLength)
	}
	if config.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("auth.jwt_expiry must be positive")
	}

	if config.Search.DefaultRange < 1 || config.Search.MaxRange < 1 {
		return fmt.Errorf("search.default_range and search.max_range must be positive")
	}
	if config.Search.DefaultRange > config.Search.MaxRange {
		return fmt.Errorf("search.default_range (%d) exceeds search.max_range (%d)", config.Search.DefaultRange, config.Search.MaxRange)
	}
	if config.Search.MaxRegexLength < 1 || config.Search.MaxRegexLength > 10000 {
		return fmt.Errorf("search.max_regex_length must be between 1 and 10000, got %d", config.Search.MaxRegexLength)
	}

	return nil
}
