package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/therealutkarshpriyadarshi/mediastream/pkg/models"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Queue       QueueConfig
	Transcoder  TranscoderConfig
	Negotiation NegotiationConfig
	Sessions    SessionsConfig
	Tracing     TracingConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
	Metrics     MetricsConfig

	// Client capability profiles; DefaultProfile names the one used for
	// clients that do not send a known profile id
	Profiles       []models.ClientProfile
	DefaultProfile string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	MetadataTTL time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
	PresignTTL      time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
	Exchange string

	// EventQueue is the durable queue the event worker binds to Exchange
	EventQueue string
	Prefetch   int
}

// TranscoderConfig holds transcoding configuration
type TranscoderConfig struct {
	TempDir         string
	FFmpegPath      string
	FFprobePath     string
	MaxConcurrent   int
	SegmentDuration int
	StartupTimeout  time.Duration
	ProbeTimeout    time.Duration
}

// NegotiationConfig holds the deployment switches of the decision engine
type NegotiationConfig struct {
	TranscodingEnabled     bool
	BurnInSubtitlesAllowed bool
}

// SessionsConfig holds session registry configuration
type SessionsConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// TracingConfig holds Jaeger configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// RateLimitConfig holds API rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("MEDIASTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that have no usable fallback
func (c *Config) Validate() error {
	if c.Transcoder.MaxConcurrent < 1 {
		return fmt.Errorf("transcoder.maxConcurrent must be at least 1, got %d", c.Transcoder.MaxConcurrent)
	}
	if c.Transcoder.SegmentDuration < 1 {
		return fmt.Errorf("transcoder.segmentDuration must be at least 1, got %d", c.Transcoder.SegmentDuration)
	}
	if c.Sessions.SweepInterval > 0 && c.Sessions.IdleTimeout <= 0 {
		return fmt.Errorf("sessions.idleTimeout must be set when sweeping is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "0s") // streams are long-lived
	v.SetDefault("server.shutdownTimeout", "10s")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "mediastream")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.minConns", 2)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.metadataTTL", "24h")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.presignTTL", "6h")

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")
	v.SetDefault("queue.exchange", "mediastream.sessions")
	v.SetDefault("queue.eventQueue", "mediastream.session-events")
	v.SetDefault("queue.prefetch", 16)

	// Transcoder defaults
	v.SetDefault("transcoder.tempDir", "/tmp/mediastream")
	v.SetDefault("transcoder.ffmpegPath", "ffmpeg")
	v.SetDefault("transcoder.ffprobePath", "ffprobe")
	v.SetDefault("transcoder.maxConcurrent", 4)
	v.SetDefault("transcoder.segmentDuration", 4)
	v.SetDefault("transcoder.startupTimeout", "15s")
	v.SetDefault("transcoder.probeTimeout", "30s")

	// Negotiation defaults
	v.SetDefault("negotiation.transcodingEnabled", true)
	v.SetDefault("negotiation.burnInSubtitlesAllowed", true)

	// Session defaults
	v.SetDefault("sessions.idleTimeout", "30m")
	v.SetDefault("sessions.sweepInterval", "1m")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "mediastream")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Rate limit defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requestsPerSecond", 20)
	v.SetDefault("ratelimit.burst", 40)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("defaultProfile", "")
}
