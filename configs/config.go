package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr           string        `koanf:"addr"`
		Password       string        `koanf:"password"`
		OrderStatusTTL time.Duration `koanf:"order_status_ttl"`
	} `koanf:"redis"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Rabbit struct {
		URL string `koanf:"url"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers       []string `koanf:"brokers"`
		DeliveryTopic string   `koanf:"delivery_topic"`
		GroupID       string   `koanf:"group_id"`
	} `koanf:"kafka"`

	Paystack struct {
		SecretKey     string `koanf:"secret_key"`
		PublicKey     string `koanf:"public_key"`
		WebhookSecret string `koanf:"webhook_secret"`
		BaseURL       string `koanf:"base_url"`
	} `koanf:"paystack"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Shutdown struct {
		Grace time.Duration `koanf:"grace"`
	} `koanf:"shutdown"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix FORTISEL_, nested with __)
	// e.g. FORTISEL_MYSQL__DSN, FORTISEL_PAYSTACK__SECRET_KEY
	if err := k.Load(env.Provider("FORTISEL_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "FORTISEL_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Rabbit.URL == "" {
		return fmt.Errorf("rabbitmq.url required")
	}
	if c.Paystack.SecretKey == "" {
		return fmt.Errorf("paystack.secret_key required")
	}
	if c.Paystack.WebhookSecret == "" {
		return fmt.Errorf("paystack.webhook_secret required")
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required (can be dummy for now)")
	}
	return nil
}
