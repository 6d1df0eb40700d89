package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const (
	DefaultAPIURL              = "http://localhost:8080"
	DefaultPermit2Address      = "0x000000000022D473030F116dDEE9F6B43aC78BA3"
	DefaultSlippage            = 0.5
	DefaultFeeCacheTTL         = 5 * time.Minute
	DefaultHTTPTimeout         = 15 * time.Second
	DefaultReceiptPollInterval = 2 * time.Second
	DefaultReceiptTimeout      = 5 * time.Minute
	DefaultHistoryFileName     = ".dex-swap-history.json"
)

// TokenConfig describes a token the CLI can resolve by symbol
type TokenConfig struct {
	Address  string  `mapstructure:"address"`
	Decimals uint8   `mapstructure:"decimals"`
	PriceUSD float64 `mapstructure:"price_usd"`
}

// OneClickConfig configures the 1Click indicative price source
type OneClickConfig struct {
	JWTToken string `mapstructure:"jwt_token"`
}

// Config holds the application configuration
type Config struct {
	APIURL  string `mapstructure:"api_url"`
	APIKey  string `mapstructure:"api_key"`
	ChainID uint64 `mapstructure:"chain_id"`

	RPCURL     string `mapstructure:"rpc_url"`
	PrivateKey string `mapstructure:"private_key"`

	Permit2Address       string `mapstructure:"permit2"`
	RouterAddress        string `mapstructure:"router"`
	WrappedNativeAddress string `mapstructure:"wrapped_native"`
	ExplorerURL          string `mapstructure:"explorer_url"`

	Slippage          float64 `mapstructure:"slippage"`
	UnlimitedApproval bool    `mapstructure:"unlimited_approval"`

	FeeCacheTTL         time.Duration `mapstructure:"fee_cache_ttl"`
	HTTPTimeout         time.Duration `mapstructure:"http_timeout"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	ReceiptTimeout      time.Duration `mapstructure:"receipt_timeout"`

	HistoryFile string `mapstructure:"history_file"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	OneClick OneClickConfig         `mapstructure:"oneclick"`
	Tokens   map[string]TokenConfig `mapstructure:"tokens"`
}

var globalConfig *Config

// Load reads configuration from environment variables and the optional config file
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration from a specific file when path is set, otherwise
// from .dex-swap.yaml in $HOME or the working directory
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".dex-swap")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("DEX_SWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional unless it was asked for explicitly
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.HistoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.HistoryFile = home + string(os.PathSeparator) + DefaultHistoryFileName
		} else {
			cfg.HistoryFile = DefaultHistoryFileName
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("chain_id", 1)
	v.SetDefault("permit2", DefaultPermit2Address)
	v.SetDefault("explorer_url", "https://etherscan.io")
	v.SetDefault("slippage", DefaultSlippage)
	v.SetDefault("unlimited_approval", true)
	v.SetDefault("fee_cache_ttl", DefaultFeeCacheTTL)
	v.SetDefault("http_timeout", DefaultHTTPTimeout)
	v.SetDefault("receipt_poll_interval", DefaultReceiptPollInterval)
	v.SetDefault("receipt_timeout", DefaultReceiptTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	// Keys without a meaningful default still need registering so env vars reach Unmarshal
	for _, key := range []string{"api_key", "rpc_url", "private_key", "router", "wrapped_native", "history_file", "oneclick.jwt_token"} {
		v.SetDefault(key, "")
	}
}

// Validate checks values that every command depends on
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("chain_id must be greater than 0")
	}
	if c.Slippage < 0 || c.Slippage >= 100 {
		return fmt.Errorf("slippage must be in [0, 100), got %v", c.Slippage)
	}
	for name, addr := range map[string]string{
		"permit2":        c.Permit2Address,
		"router":         c.RouterAddress,
		"wrapped_native": c.WrappedNativeAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: %s", name, addr)
		}
	}
	for symbol, token := range c.Tokens {
		if !common.IsHexAddress(token.Address) {
			return fmt.Errorf("token %s has an invalid address: %s", symbol, token.Address)
		}
	}
	return nil
}

// RequireWallet checks the settings needed to sign and send transactions
func (c *Config) RequireWallet() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc_url not configured. Set DEX_SWAP_RPC_URL or add it to .dex-swap.yaml")
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("private_key not configured. Set DEX_SWAP_PRIVATE_KEY or add it to .dex-swap.yaml")
	}
	return nil
}

// Token returns the configured token for a symbol, case-insensitively
func (c *Config) Token(symbol string) (TokenConfig, bool) {
	symbol = strings.ToLower(symbol)
	for name, token := range c.Tokens {
		if strings.ToLower(name) == symbol {
			return token, true
		}
	}
	return TokenConfig{}, false
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
