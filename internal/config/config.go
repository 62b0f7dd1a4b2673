package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Chain   ChainConfig   `mapstructure:"chain"`
	Market  MarketConfig  `mapstructure:"market"`
	Genesis GenesisConfig `mapstructure:"genesis"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type ChainConfig struct {
	// BlockInterval is how often the block-height clock ticks.
	BlockInterval time.Duration `mapstructure:"block_interval"`
	StartHeight   int64         `mapstructure:"start_height"`

	// Delegates are hex ed25519 public keys forming the quorum set.
	Delegates []string `mapstructure:"delegates"`

	// AnnouncePeriod is the appeal window in blocks after a reveal;
	// RevealWindow bounds reveal staleness (0 disables).
	AnnouncePeriod int64 `mapstructure:"announce_period"`
	RevealWindow   int64 `mapstructure:"reveal_window"`
}

type MarketConfig struct {
	// Precision is the consensus fixed-point precision (fractional digits)
	// of the LMSR log-sum-exp term.
	Precision int32 `mapstructure:"precision"`

	// MinMargin is the smallest accepted market reserve, base units.
	MinMargin string `mapstructure:"min_margin"`
}

type GenesisConfig struct {
	Balances []GenesisBalance `mapstructure:"balances"`
}

type GenesisBalance struct {
	Address  string `mapstructure:"address"`
	Currency string `mapstructure:"currency"`
	Amount   string `mapstructure:"amount"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("chain.block_interval", "3s")
	v.SetDefault("chain.start_height", 0)
	v.SetDefault("chain.announce_period", 100)
	v.SetDefault("chain.reveal_window", 0)
	v.SetDefault("market.precision", 8)
	v.SetDefault("market.min_margin", "1000000000")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
