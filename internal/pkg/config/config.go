package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/mapview"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Map       MapConfig       `mapstructure:"map"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	RateLimit    int      `mapstructure:"rate_limit"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
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
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
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
	Enabled   bool   `mapstructure:"enabled"`
}

// GeminiConfig configures the chat assistant. An empty APIKey disables chat.
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

// MapConfig describes the city map image and viewport limits.
type MapConfig struct {
	ImageURL    string        `mapstructure:"image_url"`
	ImageWidth  float64       `mapstructure:"image_width"`
	ImageHeight float64       `mapstructure:"image_height"`
	North       float64       `mapstructure:"north"`
	South       float64       `mapstructure:"south"`
	West        float64       `mapstructure:"west"`
	East        float64       `mapstructure:"east"`
	MinScale    float64       `mapstructure:"min_scale"`
	MaxScale    float64       `mapstructure:"max_scale"`
	ZoomStep    float64       `mapstructure:"zoom_step"`
	FitMode     string        `mapstructure:"fit_mode"`
	Overscan    float64       `mapstructure:"overscan"`
	HitRadius   float64       `mapstructure:"hit_radius"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
}

// Bounds returns the configured geographic rectangle.
func (m MapConfig) Bounds() domain.GeoBounds {
	return domain.GeoBounds{North: m.North, South: m.South, West: m.West, East: m.East}
}

// Image returns the configured image size; zero means probe it.
func (m MapConfig) Image() domain.ImageDimensions {
	return domain.ImageDimensions{Width: m.ImageWidth, Height: m.ImageHeight}
}

// Viewport returns the viewport limits. FitMode is assumed validated.
func (m MapConfig) Viewport() mapview.ViewportConfig {
	fit, _ := mapview.ParseFitMode(m.FitMode)
	return mapview.ViewportConfig{
		MinScale: m.MinScale,
		MaxScale: m.MaxScale,
		ZoomStep: m.ZoomStep,
		FitMode:  fit,
		Overscan: m.Overscan,
	}
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: HUARAZGUIDE_MAP_NORTH → map.north
	v.SetEnvPrefix("HUARAZGUIDE")
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
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "huaraz")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "huarazguide")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.prefix", "huarazguide:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "sponsorship-queue")
	v.SetDefault("temporal.enabled", true)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.temperature", 0.7)

	// Huaraz city center, as drawn on the bundled map image.
	v.SetDefault("map.image_url", "static/huaraz-map.png")
	v.SetDefault("map.image_width", 0)
	v.SetDefault("map.image_height", 0)
	v.SetDefault("map.north", -9.48)
	v.SetDefault("map.south", -9.58)
	v.SetDefault("map.west", -77.56)
	v.SetDefault("map.east", -77.48)
	v.SetDefault("map.min_scale", 0.1)
	v.SetDefault("map.max_scale", 5.0)
	v.SetDefault("map.zoom_step", 1.1)
	v.SetDefault("map.fit_mode", "contain")
	v.SetDefault("map.overscan", 1.0)
	v.SetDefault("map.hit_radius", 16.0)
	v.SetDefault("map.session_ttl", 30*time.Minute)
	v.SetDefault("map.max_sessions", 1000)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Temporal.Enabled && c.Temporal.HostPort == "" {
		errs = append(errs, "temporal.host_port is required when temporal is enabled")
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		errs = append(errs, fmt.Sprintf("gemini.temperature must be 0-2, got %v", c.Gemini.Temperature))
	}

	if err := c.Map.Bounds().Validate(); err != nil {
		errs = append(errs, "map bounds: "+err.Error())
	}
	if _, err := mapview.ParseFitMode(c.Map.FitMode); err != nil {
		errs = append(errs, "map.fit_mode: "+err.Error())
	} else if err := c.Map.Viewport().Validate(); err != nil {
		errs = append(errs, "map viewport: "+err.Error())
	}
	if c.Map.ImageURL == "" && c.Map.Image().Validate() != nil {
		errs = append(errs, "map.image_url or map.image_width/height is required")
	}
	if c.Map.HitRadius < 0 {
		errs = append(errs, "map.hit_radius must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
