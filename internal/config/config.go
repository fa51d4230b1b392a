package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string `yaml:"env"`
	Addr     string `yaml:"addr"`
	LogJSON  bool   `yaml:"log_json"`
	LogLevel string `yaml:"log_level"`

	// APIBaseURL is the backend REST base, e.g. https://api.example.ph/api.
	APIBaseURL  string        `yaml:"api_base_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// DeepLinkBase is where the payment-success page sends the browser back into the app.
	DeepLinkBase string `yaml:"deep_link_base"`

	JWTSecret string `yaml:"jwt_secret"`

	Processor ProcessorConfig `yaml:"processor"`
	DB        DBConfig        `yaml:"db"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Storage   StorageConfig   `yaml:"storage"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Email     EmailConfig     `yaml:"email"`
}

type ProcessorConfig struct {
	BaseURL       string `yaml:"base_url"`
	PublicKey     string `yaml:"public_key"`
	WebhookSecret string `yaml:"webhook_secret"`
	// RedirectTimeout bounds how long an authorization redirect may stay open.
	RedirectTimeout time.Duration `yaml:"redirect_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
}

type DBConfig struct {
	Driver string `yaml:"driver"` // mysql|postgres|memory
	DSN    string `yaml:"dsn"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type StorageConfig struct {
	Driver       string `yaml:"driver"` // local|s3
	LocalDir     string `yaml:"local_dir"`
	LocalURL     string `yaml:"local_url"`
	S3Region     string `yaml:"s3_region"`
	S3Bucket     string `yaml:"s3_bucket"`
	S3Prefix     string `yaml:"s3_prefix"`
	S3PublicBase string `yaml:"s3_public_base_url"`
}

type SMTPConfig struct {
	Host          string `yaml:"host"`
	Port          string `yaml:"port"`
	User          string `yaml:"user"`
	Pass          string `yaml:"pass"`
	TLSMode       string `yaml:"tls_mode"` // none|starttls|tls
	SkipVerifyTLS bool   `yaml:"skip_verify_tls"`
}

type EmailConfig struct {
	Provider      string `yaml:"provider"` // smtp|mailtrap|none
	From          string `yaml:"from"`
	FromName      string `yaml:"from_name"`
	MailtrapURL   string `yaml:"mailtrap_url"`
	MailtrapToken string `yaml:"mailtrap_token"`
}

func Default() Config {
	return Config{
		Env:          "dev",
		Addr:         ":8080",
		LogJSON:      true,
		LogLevel:     "info",
		APIBaseURL:   "http://localhost:3000/api",
		HTTPTimeout:  15 * time.Second,
		DeepLinkBase: "cityventure://",
		Processor: ProcessorConfig{
			BaseURL:         "https://api.paymongo.com/v1",
			RedirectTimeout: 15 * time.Minute,
			PollInterval:    3 * time.Second,
			PollTimeout:     2 * time.Minute,
		},
		DB:   DBConfig{Driver: "memory"},
		AMQP: AMQPConfig{Exchange: "checkout_topic"},
		Storage: StorageConfig{
			Driver:   "local",
			LocalDir: "./storage/receipts",
			LocalURL: "/receipts",
			S3Prefix: "receipts",
		},
		SMTP:  SMTPConfig{Host: "localhost", Port: "1025", TLSMode: "none"},
		Email: EmailConfig{Provider: "none", From: "no-reply@localhost", FromName: "City Venture"},
	}
}

// Load reads .env (if present), an optional YAML file and then environment overrides.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	c = fromEnv(c)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("config: API base URL is required")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("config: http timeout must be positive")
	}
	switch c.DB.Driver {
	case "memory":
	case "mysql", "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("config: DB_DSN is required for driver %s", c.DB.Driver)
		}
	default:
		return fmt.Errorf("config: unknown DB driver %q", c.DB.Driver)
	}
	return nil
}

func fromEnv(c Config) Config {
	str := func(k string, dst *string) {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}
	dur := func(k string, dst *time.Duration) {
		if v := os.Getenv(k); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	boolean := func(k string, dst *bool) {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("APP_ENV", &c.Env)
	str("APP_ADDR", &c.Addr)
	boolean("LOG_JSON", &c.LogJSON)
	str("LOG_LEVEL", &c.LogLevel)
	str("API_BASE_URL", &c.APIBaseURL)
	dur("HTTP_TIMEOUT", &c.HTTPTimeout)
	str("DEEP_LINK_BASE", &c.DeepLinkBase)
	str("JWT_SECRET", &c.JWTSecret)

	str("PAYMONGO_BASE_URL", &c.Processor.BaseURL)
	str("PAYMONGO_PUBLIC_KEY", &c.Processor.PublicKey)
	str("PAYMONGO_WEBHOOK_SECRET", &c.Processor.WebhookSecret)
	dur("PAYMENT_REDIRECT_TIMEOUT", &c.Processor.RedirectTimeout)
	dur("PAYMENT_POLL_INTERVAL", &c.Processor.PollInterval)
	dur("PAYMENT_POLL_TIMEOUT", &c.Processor.PollTimeout)

	str("DB_DRIVER", &c.DB.Driver)
	str("DB_DSN", &c.DB.DSN)

	str("AMQP_URL", &c.AMQP.URL)
	str("AMQP_EXCHANGE", &c.AMQP.Exchange)

	str("STORAGE_DRIVER", &c.Storage.Driver)
	str("LOCAL_RECEIPT_DIR", &c.Storage.LocalDir)
	str("LOCAL_RECEIPT_URL_PREFIX", &c.Storage.LocalURL)
	str("S3_REGION", &c.Storage.S3Region)
	str("S3_BUCKET", &c.Storage.S3Bucket)
	str("S3_PREFIX", &c.Storage.S3Prefix)
	str("S3_PUBLIC_BASE_URL", &c.Storage.S3PublicBase)

	str("SMTP_HOST", &c.SMTP.Host)
	str("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USER", &c.SMTP.User)
	str("SMTP_PASS", &c.SMTP.Pass)
	str("SMTP_TLS_MODE", &c.SMTP.TLSMode)
	boolean("SMTP_SKIP_VERIFY_TLS", &c.SMTP.SkipVerifyTLS)

	str("EMAIL_PROVIDER", &c.Email.Provider)
	str("EMAIL_FROM", &c.Email.From)
	str("EMAIL_FROM_NAME", &c.Email.FromName)
	str("MAILTRAP_API_URL", &c.Email.MailtrapURL)
	str("MAILTRAP_API_TOKEN", &c.Email.MailtrapToken)
	return c
}
