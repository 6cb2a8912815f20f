// Package config loads the exchange's runtime configuration: viper,
// env-prefixed, defaults set before the file is read, unmarshalled once
// into a typed struct.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration for the exchange core.
type Config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`

	Matching struct {
		TickInterval time.Duration `mapstructure:"tick_interval"`
	} `mapstructure:"matching"`

	Monitor struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"monitor"`

	Stacks struct {
		Network                  string `mapstructure:"network"` // mainnet | testnet | devnet
		APIURL                   string `mapstructure:"api_url"`
		CTFExchangeAddress       string `mapstructure:"ctf_exchange_address"`
		ConditionalTokensAddress string `mapstructure:"conditional_tokens_address"`
		OperatorPrivateKey       string `mapstructure:"operator_private_key"`
	} `mapstructure:"stacks"`

	Admin struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"admin"`

	Messaging struct {
		NATSURL string `mapstructure:"nats_url"`
	} `mapstructure:"messaging"`
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads configuration from defaults, a config file (if present) at
// configPath, and environment variables prefixed CLOB_, in that ascending
// priority. Subsequent calls return the already-loaded configuration.
func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		cfg = &Config{}
		setDefaults(cfg)

		v := viper.New()
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
		}

		v.SetEnvPrefix("CLOB")
		v.AutomaticEnv()
		bindEnv(v)

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("failed to read config file: %w", readErr)
				return
			}
		}

		if unmarshalErr := v.Unmarshal(cfg); unmarshalErr != nil {
			err = fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
		}
	})
	return cfg, err
}

// setDefaults populates cfg's fields directly, before v.Unmarshal runs.
// mapstructure only overwrites keys present in the config file or
// environment, so a field left untouched here falls back to its
// hardcoded zero-value instead of these defaults; setting on a scoped
// viper.Viper instance (v.SetDefault) would never reach Unmarshal's
// target since v is fresh per Load call.
func setDefaults(c *Config) {
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Matching.TickInterval = 100 * time.Millisecond
	c.Monitor.PollInterval = 30 * time.Second
	c.Stacks.Network = "testnet"
}

// bindEnv binds the externally mandated variable names directly, since
// they don't follow the CLOB_ prefix convention used for everything else,
// and binds the CLOB_-prefixed names of the remaining nested keys so that
// Unmarshal sees them even when no config file defines those keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.host", "CLOB_SERVER_HOST")
	_ = v.BindEnv("server.port", "CLOB_SERVER_PORT")
	_ = v.BindEnv("matching.tick_interval", "CLOB_MATCHING_TICK_INTERVAL")
	_ = v.BindEnv("monitor.poll_interval", "CLOB_MONITOR_POLL_INTERVAL")
	_ = v.BindEnv("messaging.nats_url", "CLOB_MESSAGING_NATS_URL")
	_ = v.BindEnv("stacks.network", "STACKS_NETWORK")
	_ = v.BindEnv("stacks.api_url", "STACKS_API_URL")
	_ = v.BindEnv("stacks.ctf_exchange_address", "CTF_EXCHANGE_ADDRESS")
	_ = v.BindEnv("stacks.conditional_tokens_address", "CONDITIONAL_TOKENS_ADDRESS")
	_ = v.BindEnv("stacks.operator_private_key", "STACKS_OPERATOR_PRIVATE_KEY")
	_ = v.BindEnv("admin.api_key", "ADMIN_API_KEY")
	_ = v.BindEnv("database.url", "DATABASE_URL")
}

// SettlementEnabled reports whether enough configuration is present to
// dispatch settlements: both a contract identifier and an operator
// signing key.
func (c *Config) SettlementEnabled() bool {
	return c.Stacks.CTFExchangeAddress != "" && c.Stacks.OperatorPrivateKey != ""
}
