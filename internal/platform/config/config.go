package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"qochi/internal/registry/models"
)

// Server captures process level configuration.
type Server struct {
	Addr             string
	RegistryID       string
	AdminToken       string
	JWTSigningKey    string
	ExpiryPolicyFile string
	SweepInterval    time.Duration
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Blob             BlobConfig
	Kafka            KafkaConfig
	Log              LogConfig
}

// HTTPConfig bounds connection and handler lifetimes. WriteTimeout must
// exceed RequestTimeout so timed-out handlers can still answer.
type HTTPConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
}

// DatabaseConfig selects the record store. An empty URL keeps everything
// in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the distributed locker. An empty URL falls back to
// the in-process locker.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LockTTL      time.Duration
}

// BlobConfig selects the document blob driver: memory, fs or s3.
type BlobConfig struct {
	Driver     string
	FSRoot     string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
	MaxBytes   int64
}

// KafkaConfig enables relaying audit events. No brokers means audit stays
// in the local store.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("QOCHI_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:             envString("QOCHI_ADDR", ":8080"),
		RegistryID:       envString("QOCHI_REGISTRY_ID", "default"),
		AdminToken:       os.Getenv("QOCHI_ADMIN_TOKEN"),
		JWTSigningKey:    jwtSigningKey,
		ExpiryPolicyFile: os.Getenv("QOCHI_EXPIRY_POLICY_FILE"),
		SweepInterval:    envDuration("QOCHI_SWEEP_INTERVAL", time.Minute),
		HTTP: HTTPConfig{
			ReadHeaderTimeout: envDuration("QOCHI_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       envDuration("QOCHI_HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      envDuration("QOCHI_HTTP_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:       envDuration("QOCHI_HTTP_IDLE_TIMEOUT", 120*time.Second),
			RequestTimeout:    envDuration("QOCHI_REQUEST_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("QOCHI_DATABASE_URL"),
			MaxOpenConns:    envInt("QOCHI_DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("QOCHI_DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("QOCHI_DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("QOCHI_REDIS_URL"),
			PoolSize:     envInt("QOCHI_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("QOCHI_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("QOCHI_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("QOCHI_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("QOCHI_REDIS_WRITE_TIMEOUT", 3*time.Second),
			LockTTL:      envDuration("QOCHI_REDIS_LOCK_TTL", 10*time.Second),
		},
		Blob: BlobConfig{
			Driver:     envString("QOCHI_BLOB_DRIVER", "memory"),
			FSRoot:     envString("QOCHI_BLOB_FS_ROOT", "./data/documents"),
			S3Bucket:   os.Getenv("QOCHI_BLOB_S3_BUCKET"),
			S3Region:   os.Getenv("QOCHI_BLOB_S3_REGION"),
			S3Endpoint: os.Getenv("QOCHI_BLOB_S3_ENDPOINT"),
			S3Prefix:   os.Getenv("QOCHI_BLOB_S3_PREFIX"),
			MaxBytes:   int64(envInt("QOCHI_BLOB_MAX_BYTES", 10<<20)),
		},
		Kafka: KafkaConfig{
			Brokers:    envList("QOCHI_KAFKA_BROKERS"),
			AuditTopic: envString("QOCHI_AUDIT_TOPIC", "qochi.audit"),
		},
		Log: LogConfig{
			Level:  envString("QOCHI_LOG_LEVEL", "info"),
			Format: envString("QOCHI_LOG_FORMAT", "json"),
		},
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// expiryFile is the on-disk shape of the expiry policy:
//
//	windows:
//	  marriage: 365d
//	  identity: 8760h
type expiryFile struct {
	Windows map[string]string `yaml:"windows"`
}

// LoadExpiryPolicy reads a YAML expiry policy. An empty path yields a
// policy under which nothing expires.
func LoadExpiryPolicy(path string) (models.ExpiryPolicy, error) {
	if path == "" {
		return models.ExpiryPolicy{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expiry policy: %w", err)
	}
	return ParseExpiryPolicy(data)
}

// ParseExpiryPolicy decodes policy YAML, rejecting unknown fields.
func ParseExpiryPolicy(data []byte) (models.ExpiryPolicy, error) {
	var file expiryFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse expiry policy: %w", err)
	}

	policy := make(models.ExpiryPolicy, len(file.Windows))
	for rawKind, rawWindow := range file.Windows {
		kind, err := models.ParseRequestKind(rawKind)
		if err != nil {
			return nil, fmt.Errorf("expiry policy: %w", err)
		}
		window, err := parseWindow(rawWindow)
		if err != nil {
			return nil, fmt.Errorf("expiry policy %s: %w", kind, err)
		}
		policy[kind] = window
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// parseWindow accepts Go durations plus a whole-day "d" suffix.
func parseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
