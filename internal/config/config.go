package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every externally tunable knob of the service. Values are
// read once at startup; the struct is treated as immutable afterwards.
type Config struct {
	ServiceName string
	ServerAddr  string
	LogLevel    string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret  []byte
	JWTIssuer  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	VerifyTTL  time.Duration
	Leeway     time.Duration

	RoleCacheTTL time.Duration

	CloudinaryCloud  string
	CloudinaryKey    string
	CloudinarySecret string
	CloudinaryFolder string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string
	PublicURL    string

	KafkaBrokers    []string
	KafkaAuditTopic string
}

// Load reads the environment (after sourcing an optional .env file) into a
// Config. Missing optional values fall back to development defaults;
// required values are validated by the consumers that need them.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "snapfolio"),
		ServerAddr:  EnvDefault("SERVER_ADDR", ":8080"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:     EnvDefault("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),

		JWTSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTIssuer:  EnvDefault("JWT_ISSUER", "snapfolio"),
		AccessTTL:  EnvDurationDefault("ACCESS_TTL", 15*time.Minute),
		RefreshTTL: EnvDurationDefault("REFRESH_TTL", 7*24*time.Hour),
		VerifyTTL:  EnvDurationDefault("VERIFY_TTL", 24*time.Hour),
		Leeway:     EnvDurationDefault("JWT_LEEWAY", 5*time.Second),

		RoleCacheTTL: EnvDurationDefault("ROLE_CACHE_TTL", time.Minute),

		CloudinaryCloud:  os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryKey:    os.Getenv("CLOUDINARY_API_KEY"),
		CloudinarySecret: os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryFolder: EnvDefault("CLOUDINARY_FOLDER", "snapfolio"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     EnvIntDefault("SMTP_PORT", 587),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     EnvDefault("MAIL_FROM", "no-reply@snapfolio.local"),
		PublicURL:    EnvDefault("PUBLIC_URL", "http://localhost:8080"),

		KafkaBrokers:    CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaAuditTopic: EnvDefault("KAFKA_AUDIT_TOPIC", "snapfolio.audit"),
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
