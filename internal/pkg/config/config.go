package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	StaticMap StaticMapConfig `mapstructure:"staticmap"`
	Pictures  PicturesConfig  `mapstructure:"pictures"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Cadastre  CadastreConfig  `mapstructure:"cadastre"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// LogConfig controls slog output. File is optional; when set, logs are also
// written to a rotating file.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// StaticMapConfig describes the static-map image API.
type StaticMapConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Format         string `mapstructure:"format"`
	MapType        string `mapstructure:"maptype"`
	PathStyle      string `mapstructure:"path_style"`
	Zoom           int    `mapstructure:"zoom"`
	Width          int    `mapstructure:"width"`
	Height         int    `mapstructure:"height"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxImageBytes  int64  `mapstructure:"max_image_bytes"`
	CacheTTL       int    `mapstructure:"cache_ttl"`
}

type PicturesConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Datalog   string `mapstructure:"datalog"`
}

type DatasetConfig struct {
	SourceDir  string  `mapstructure:"source_dir"`
	DestRoot   string  `mapstructure:"dest_root"`
	TrainRatio float64 `mapstructure:"train_ratio"`
	ValidRatio float64 `mapstructure:"valid_ratio"`
}

type CadastreConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Keyword        string `mapstructure:"keyword"`
	DownloadDir    string `mapstructure:"download_dir"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	return LoadWithFlags(service, nil, nil)
}

// LoadWithFlags is Load with command-line overrides. bindings maps a config
// key (e.g. "staticmap.zoom") to the name of a flag in flags; a flag only
// overrides the key when it was set explicitly.
func LoadWithFlags(service string, flags *pflag.FlagSet, bindings map[string]string) (*Config, error) {
	// .env is optional, real environment wins
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, service)

	for key, name := range bindings {
		f := flags.Lookup(name)
		if f == nil {
			return nil, fmt.Errorf("bind %s: unknown flag --%s", key, name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: POOLAI_STATICMAP_API_KEY → staticmap.api_key
	v.SetEnvPrefix("POOLAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 330)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "poolai")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "poolai")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "picture-acquisition")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("staticmap.base_url", "https://maps.googleapis.com/maps/api/staticmap?")
	v.SetDefault("staticmap.api_key", "")
	v.SetDefault("staticmap.format", "png")
	v.SetDefault("staticmap.maptype", "satellite")
	v.SetDefault("staticmap.path_style", "color:0xff0000ff|weight:0|")
	v.SetDefault("staticmap.zoom", 20)
	v.SetDefault("staticmap.width", 640)
	v.SetDefault("staticmap.height", 640)
	v.SetDefault("staticmap.timeout_seconds", 30)
	v.SetDefault("staticmap.max_image_bytes", 10<<20)
	v.SetDefault("staticmap.cache_ttl", 86400)
	v.SetDefault("pictures.output_dir", "./pictures")
	v.SetDefault("pictures.datalog", "./datalog.csv")
	v.SetDefault("dataset.source_dir", "./labelised")
	v.SetDefault("dataset.dest_root", "../datasets/pool")
	v.SetDefault("dataset.train_ratio", 0.85)
	v.SetDefault("dataset.valid_ratio", 0.10)
	v.SetDefault("cadastre.base_url", "https://cadastre.data.gouv.fr/data/etalab-cadastre/latest/geojson/communes")
	v.SetDefault("cadastre.keyword", "parcelles")
	v.SetDefault("cadastre.download_dir", "./data/cadastre")
	v.SetDefault("cadastre.timeout_seconds", 120)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.StaticMap.BaseURL == "" {
		errs = append(errs, "staticmap.base_url is required")
	}
	if c.StaticMap.Zoom < 0 || c.StaticMap.Zoom > 21 {
		errs = append(errs, fmt.Sprintf("staticmap.zoom must be 0-21, got %d", c.StaticMap.Zoom))
	}
	if c.StaticMap.Width <= 0 || c.StaticMap.Height <= 0 {
		errs = append(errs, "staticmap.width and staticmap.height must be positive")
	}
	if c.StaticMap.TimeoutSeconds <= 0 {
		errs = append(errs, "staticmap.timeout_seconds must be positive")
	}
	if c.StaticMap.MaxImageBytes <= 0 {
		errs = append(errs, "staticmap.max_image_bytes must be positive")
	}
	if !(c.Dataset.TrainRatio >= 0 && c.Dataset.TrainRatio <= 1) {
		errs = append(errs, fmt.Sprintf("dataset.train_ratio must be in [0,1], got %g", c.Dataset.TrainRatio))
	}
	if !(c.Dataset.ValidRatio >= 0 && c.Dataset.ValidRatio <= 1) {
		errs = append(errs, fmt.Sprintf("dataset.valid_ratio must be in [0,1], got %g", c.Dataset.ValidRatio))
	}
	if c.Dataset.TrainRatio+c.Dataset.ValidRatio > 1 {
		errs = append(errs, "dataset.train_ratio + dataset.valid_ratio must not exceed 1")
	}
	if c.Cadastre.Keyword == "" {
		errs = append(errs, "cadastre.keyword is required")
	}
	if c.Cadastre.TimeoutSeconds <= 0 {
		errs = append(errs, "cadastre.timeout_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
