package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"donation-gate/internal/database"
)

type Config struct {
	Port      string `mapstructure:"port"`
	BaseURL   string `mapstructure:"base_url"`
	StaticDir string `mapstructure:"static_dir"`

	// ContentURL is where a valid access token is redirected.
	ContentURL  string   `mapstructure:"content_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	Currency    string   `mapstructure:"currency"`

	StoreDriver string `mapstructure:"store_driver"`
	BoltPath    string `mapstructure:"bolt_path"`
	DB          database.Config

	Gateway        string        `mapstructure:"gateway"`
	MPAccessToken  string        `mapstructure:"mp_access_token"`
	MPAPIURL       string        `mapstructure:"mp_api_url"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`

	AdminUser string `mapstructure:"admin_user"`
	AdminPass string `mapstructure:"admin_pass"`

	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepAge      time.Duration `mapstructure:"sweep_age"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

var keys = []string{
	"port", "base_url", "static_dir", "content_url", "cors_origins", "currency",
	"store_driver", "bolt_path",
	"blueprint_db_host", "blueprint_db_port", "blueprint_db_username", "blueprint_db_password",
	"blueprint_db_database", "blueprint_db_schema",
	"gateway", "mp_access_token", "mp_api_url", "gateway_timeout",
	"admin_user", "admin_pass",
	"sweep_interval", "sweep_age", "sweep_batch",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("static_dir", "frontend")
	v.SetDefault("content_url", "https://seu-dominio.com/conteudo-secreto.html")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("currency", "BRL")
	v.SetDefault("store_driver", "postgres")
	v.SetDefault("bolt_path", "data/intents.db")
	v.SetDefault("blueprint_db_host", "localhost")
	v.SetDefault("blueprint_db_port", "5432")
	v.SetDefault("blueprint_db_schema", "public")
	v.SetDefault("gateway", "mercadopago")
	v.SetDefault("gateway_timeout", 10*time.Second)
	v.SetDefault("sweep_interval", time.Minute)
	v.SetDefault("sweep_age", 10*time.Minute)
	v.SetDefault("sweep_batch", 50)
}

// Load reads .env (when present), an optional config file and the environment,
// in increasing order of precedence. An empty configFile skips the file layer.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		if err := v.BindEnv(k, strings.ToUpper(k)); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DB = database.Config{
		Host:     v.GetString("blueprint_db_host"),
		Port:     v.GetString("blueprint_db_port"),
		Username: v.GetString("blueprint_db_username"),
		Password: v.GetString("blueprint_db_password"),
		Database: v.GetString("blueprint_db_database"),
		Schema:   v.GetString("blueprint_db_schema"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &cfg, nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case "postgres":
		if c.DB.Database == "" || c.DB.Username == "" {
			errs = append(errs, errors.New("BLUEPRINT_DB_DATABASE and BLUEPRINT_DB_USERNAME are required for the postgres store"))
		}
	case "bolt":
		if c.BoltPath == "" {
			errs = append(errs, errors.New("BOLT_PATH is required for the bolt store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	switch c.Gateway {
	case "mercadopago":
		if c.MPAccessToken == "" {
			errs = append(errs, errors.New("MP_ACCESS_TOKEN is required for the mercadopago gateway"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown GATEWAY %q", c.Gateway))
	}

	if c.AdminUser == "" || c.AdminPass == "" {
		errs = append(errs, errors.New("ADMIN_USER and ADMIN_PASS are required"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}
