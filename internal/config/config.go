package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Auth     AuthConfig      `mapstructure:"auth"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Chain    ChainConfig     `mapstructure:"chain"`
	Ledger   LedgerConfig    `mapstructure:"ledger"`
	Events   EventsConfig    `mapstructure:"events"`
	Metrics  MetricsConfig   `mapstructure:"metrics"`
	Accounts []AccountConfig `mapstructure:"accounts"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	ReadOnly bool   `mapstructure:"read_only"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	AdminKey      string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
	EventListKey          string `mapstructure:"event_list_key"`
	EventListMax          int    `mapstructure:"event_list_max"`
}

type ChainConfig struct {
	// When rpc_url is set the reward asset lives on-chain as an ERC-20
	// contract at token_address; otherwise the internal vault is used.
	RPCURL       string `mapstructure:"rpc_url"`
	TokenAddress string `mapstructure:"token_address"`
	PrivateKey   string `mapstructure:"private_key"`
	ChainID      int64  `mapstructure:"chain_id"`
	TimeoutMs    int    `mapstructure:"timeout_ms"`
}

type LedgerConfig struct {
	// Owner is the account allowed to modify tiers and the allow-list.
	Owner           string           `mapstructure:"owner"`
	CooldownSeconds int64            `mapstructure:"cooldown_seconds"`
	Tiers           []TierSeedConfig `mapstructure:"tiers"`
}

// TierSeedConfig overrides or extends the built-in tier table at startup.
type TierSeedConfig struct {
	ID                  uint32 `mapstructure:"id"`
	RewardRateBps       int64  `mapstructure:"reward_rate_bps"`
	LockDurationSeconds int64  `mapstructure:"lock_duration_seconds"`
}

type EventsConfig struct {
	Dir string `mapstructure:"dir"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type AccountConfig struct {
	Address     string  `mapstructure:"address"`
	Name        string  `mapstructure:"name"`
	APIKey      string  `mapstructure:"api_key"`
	QPS         float64 `mapstructure:"qps"`
	Burst       int     `mapstructure:"burst"`
	AllowListed bool    `mapstructure:"allow_listed"`
	// Balance seeds the internal vault when no chain RPC is configured.
	Balance string `mapstructure:"balance"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. STAKEGATE_LEDGER_OWNER
	viper.SetEnvPrefix("stakegate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_only", false)
	viper.SetDefault("auth.require_api_key", true)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("redis.event_list_key", "ledger_events")
	viper.SetDefault("redis.event_list_max", 10000)
	viper.SetDefault("chain.chain_id", 1)
	viper.SetDefault("chain.timeout_ms", 15000)
	viper.SetDefault("ledger.cooldown_seconds", 86400)
	viper.SetDefault("events.dir", "./events")
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
