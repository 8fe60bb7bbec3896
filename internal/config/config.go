package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// PartnerAuthConfig points at the partner product's auth admin API. The
// directory has no email index, so lookups by email fall back to a capped
// paginated scan (ScanPageLimit pages of ScanPageSize users).
type PartnerAuthConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ServiceKey    string        `mapstructure:"service_key"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ScanPageSize  int           `mapstructure:"scan_page_size"`
	ScanPageLimit int           `mapstructure:"scan_page_limit"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type VaultConfig struct {
	AESKey string `mapstructure:"aes_key"`
}

type ShopierConfig struct {
	APISecret string `mapstructure:"api_secret"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type OnboardingConfig struct {
	// PartnerProductCode identifies the catalog product whose orders go
	// through tenant provisioning.
	PartnerProductCode string        `mapstructure:"partner_product_code"`
	SlugRetryLimit     int           `mapstructure:"slug_retry_limit"`
	GuardTTL           time.Duration `mapstructure:"guard_ttl"`
	RedirectTo         string        `mapstructure:"redirect_to"`
}

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Storefront  DatabaseConfig    `mapstructure:"storefront_db"`
	Partner     DatabaseConfig    `mapstructure:"partner_db"`
	PartnerAuth PartnerAuthConfig `mapstructure:"partner_auth"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Vault       VaultConfig       `mapstructure:"vault"`
	Shopier     ShopierConfig     `mapstructure:"shopier"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Onboarding  OnboardingConfig  `mapstructure:"onboarding"`
}

// Load reads config.yaml from the working directory (if present) and merges
// STOREFRONT_* environment variables over it.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/storefront")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storefront_db.max_open_conns", 20)
	v.SetDefault("storefront_db.max_idle_conns", 5)
	v.SetDefault("storefront_db.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("partner_db.max_open_conns", 10)
	v.SetDefault("partner_db.max_idle_conns", 2)
	v.SetDefault("partner_db.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("partner_auth.timeout", 10*time.Second)
	v.SetDefault("partner_auth.scan_page_size", 50)
	v.SetDefault("partner_auth.scan_page_limit", 20)

	v.SetDefault("scheduler.interval", time.Hour)

	v.SetDefault("onboarding.partner_product_code", "kafe-menu")
	v.SetDefault("onboarding.slug_retry_limit", 20)
	v.SetDefault("onboarding.guard_ttl", 30*time.Second)
	v.SetDefault("onboarding.redirect_to", "/dashboard/subscriptions")
}
