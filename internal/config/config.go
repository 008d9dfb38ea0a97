package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string        `env:"HTTP_PORT" envDefault:"5000"`
	DatabaseURL string        `env:"DATABASE_URL,required"`
	AutoMigrate bool          `env:"MIGRATIONS_AUTO" envDefault:"true"`
	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"1h"`

	// Proxies cuyo X-Forwarded-For se acepta para la IP del cliente. Vacio: ninguno.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	DBMaxConns       int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns       int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`

	SMTPHost         string        `env:"SMTP_HOST"`
	SMTPPort         int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser         string        `env:"SMTP_USER"`
	SMTPPass         string        `env:"SMTP_PASS"`
	SMTPFrom         string        `env:"SMTP_FROM"`
	SMTPFromName     string        `env:"SMTP_FROM_NAME" envDefault:"Auth System Team"`
	SMTPUseTLS       bool          `env:"SMTP_USE_TLS" envDefault:"false"`
	EmailSendTimeout time.Duration `env:"EMAIL_SEND_TIMEOUT" envDefault:"10s"`
	EmailSendRetries int           `env:"EMAIL_SEND_RETRIES" envDefault:"1"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	RateLimitMax     int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	LoginLimitWindow time.Duration `env:"LOGIN_LIMIT_WINDOW" envDefault:"10m"`
	LoginLimitMax    int           `env:"LOGIN_LIMIT_MAX" envDefault:"5"`

	// IMAGE_STORE: "local" o "s3".
	ImageStore string `env:"IMAGE_STORE" envDefault:"local"`
	UploadDir  string `env:"UPLOAD_DIR" envDefault:"uploads"`

	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3AccessKey string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ClientConfig agrupa la configuración del cliente de sesión.
type ClientConfig struct {
	BackendURL string        `env:"BACKEND_URL" envDefault:"http://localhost:5000"`
	SessionDB  string        `env:"SESSION_DB" envDefault:"session.db"`
	Timeout    time.Duration `env:"CLIENT_TIMEOUT" envDefault:"30s"`
}

// LoadClientConfig carga la configuración del cliente desde variables de entorno.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
