package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Models     ModelsConfig     `mapstructure:"models"`
	Gatekeeper GatekeeperConfig `mapstructure:"gatekeeper"`
	Verdict    VerdictConfig    `mapstructure:"verdict"`
}

type AppConfig struct {
	Name          string `mapstructure:"name"`
	Port          string `mapstructure:"port"`
	Env           string `mapstructure:"env"`
	MaxUploadSize int    `mapstructure:"max_upload_size"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // console, json
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type StorageConfig struct {
	Type     string   `mapstructure:"type"` // local, s3
	BasePath string   `mapstructure:"base_path"`
	BaseURL  string   `mapstructure:"base_url"`
	S3       S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
}

// ModelsConfig points at the ONNX files. Each model has a sibling metadata
// JSON file named <model>.json unless overridden.
type ModelsConfig struct {
	Dir               string `mapstructure:"dir"`
	SharedLibraryPath string `mapstructure:"shared_library_path"`
	PoolSize          int    `mapstructure:"pool_size"`
	Gatekeeper        string `mapstructure:"gatekeeper"`
	GatekeeperLabels  string `mapstructure:"gatekeeper_labels"`
	MobileNet         string `mapstructure:"mobilenet"`
	EfficientNet      string `mapstructure:"efficientnet"`
	ResNet            string `mapstructure:"resnet"`
	ImageSize         int    `mapstructure:"image_size"`
}

// GatekeeperConfig tunes the leaf admission filter. Empty keyword lists keep
// the built-in defaults.
type GatekeeperConfig struct {
	FailOpen          bool     `mapstructure:"fail_open"`
	MinBrightness     float64  `mapstructure:"min_brightness"`
	MaxBrightness     float64  `mapstructure:"max_brightness"`
	TopK              int      `mapstructure:"top_k"`
	OverrideAllow     float64  `mapstructure:"override_allow"`
	OverrideRatio     float64  `mapstructure:"override_ratio"`
	DenyThreshold     float64  `mapstructure:"deny_threshold"`
	AllowThreshold    float64  `mapstructure:"allow_threshold"`
	DenylistKeywords  []string `mapstructure:"denylist"`
	AllowlistKeywords []string `mapstructure:"allowlist"`
}

type VerdictConfig struct {
	MinScore              float64 `mapstructure:"min_score"`
	ConflictScoreCeiling  float64 `mapstructure:"conflict_score_ceiling"`
	MaxConflict           float64 `mapstructure:"max_conflict"`
	WarningConflict       float64 `mapstructure:"warning_conflict"`
	InaccurateScoreCutoff float64 `mapstructure:"inaccurate_score_cutoff"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "leaf-api")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.max_upload_size", 10*1024*1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "leaf_api")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.base_path", "./static/uploads")
	v.SetDefault("storage.base_url", "/static/uploads")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.bucket", "leaf-uploads")
	v.SetDefault("storage.s3.use_ssl", false)
	v.SetDefault("storage.s3.region", "")

	v.SetDefault("models.dir", "./models")
	v.SetDefault("models.shared_library_path", "")
	v.SetDefault("models.pool_size", 2)
	v.SetDefault("models.gatekeeper", "resnet50_imagenet.onnx")
	v.SetDefault("models.gatekeeper_labels", "imagenet_labels.json")
	v.SetDefault("models.mobilenet", "mobilenet_v2.onnx")
	v.SetDefault("models.efficientnet", "efficientnet_v2m.onnx")
	v.SetDefault("models.resnet", "resnet101.onnx")
	v.SetDefault("models.image_size", 224)

	v.SetDefault("gatekeeper.fail_open", false)
	v.SetDefault("gatekeeper.min_brightness", 50.0)
	v.SetDefault("gatekeeper.max_brightness", 220.0)
	v.SetDefault("gatekeeper.top_k", 5)
	v.SetDefault("gatekeeper.override_allow", 0.70)
	v.SetDefault("gatekeeper.override_ratio", 2.0)
	v.SetDefault("gatekeeper.deny_threshold", 0.30)
	v.SetDefault("gatekeeper.allow_threshold", 0.05)
	v.SetDefault("gatekeeper.denylist", []string{})
	v.SetDefault("gatekeeper.allowlist", []string{})

	v.SetDefault("verdict.min_score", 40.0)
	v.SetDefault("verdict.conflict_score_ceiling", 65.0)
	v.SetDefault("verdict.max_conflict", 20.0)
	v.SetDefault("verdict.warning_conflict", 30.0)
	v.SetDefault("verdict.inaccurate_score_cutoff", 70.0)
}

// Load reads .env (if present), an optional config file and the environment.
// Environment keys are the upper-cased config keys with dots replaced by
// underscores, e.g. GATEKEEPER_DENY_THRESHOLD.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret (JWT_SECRET) is required")
	}
	if c.Models.PoolSize < 1 {
		return fmt.Errorf("models.pool_size must be >= 1, got %d", c.Models.PoolSize)
	}
	if c.Models.ImageSize < 1 {
		return fmt.Errorf("models.image_size must be >= 1, got %d", c.Models.ImageSize)
	}
	if c.Gatekeeper.MinBrightness >= c.Gatekeeper.MaxBrightness {
		return fmt.Errorf("gatekeeper brightness bounds invalid: min %.1f >= max %.1f",
			c.Gatekeeper.MinBrightness, c.Gatekeeper.MaxBrightness)
	}
	switch c.Storage.Type {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	return nil
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode)
}
