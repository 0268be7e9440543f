// Package config loads the service configuration from the environment, with
// optional .env file support for local development.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full service configuration. Only the relayer private key is
// mandatory; everything else carries a sensible default.
type Config struct {
	RPCURL  string `envconfig:"RPC_URL" default:"https://rpc.mate.evvm.dev"`
	ChainID int64  `envconfig:"CHAIN_ID" default:"1337"`

	RelayerPrivateKey string `envconfig:"RELAYER_PRIVATE_KEY"`

	Port     int    `envconfig:"PORT" default:"3000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	RelayInterval  time.Duration `envconfig:"RELAY_INTERVAL" default:"5s"`
	ConfirmTimeout time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"90s"`

	// GasReserveWei is the minimum native balance the relaying account must
	// retain after sponsoring a submission. Default 0.1 native token.
	GasReserveWei string `envconfig:"GAS_RESERVE_WEI" default:"100000000000000000"`

	// SupportedTokens is the comma-separated whitelist of token symbols
	// accepted at intake.
	SupportedTokens string `envconfig:"SUPPORTED_TOKENS" default:"MATE,USDC,USDT,DAI"`

	QRScheme string `envconfig:"QR_SCHEME" default:"evvm://pay"`

	MATEAddress string `envconfig:"MATE_ADDRESS"`
	USDCAddress string `envconfig:"USDC_ADDRESS"`
	USDTAddress string `envconfig:"USDT_ADDRESS"`
	DAIAddress  string `envconfig:"DAI_ADDRESS"`
}

// Load reads the configuration from the environment, after loading a .env
// file when one is present. A missing relayer private key is a fatal
// configuration error: without a funded relaying credential the service
// cannot sponsor anything.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.RelayerPrivateKey == "" {
		return nil, errors.New("RELAYER_PRIVATE_KEY is required")
	}
	return &cfg, nil
}

// TokenWhitelist returns the parsed intake whitelist, upper-cased.
func (c *Config) TokenWhitelist() []string {
	var out []string
	for _, tok := range strings.Split(c.SupportedTokens, ",") {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// TokenAddresses returns the symbol to contract address book, omitting
// tokens without a configured address.
func (c *Config) TokenAddresses() map[string]string {
	book := map[string]string{
		"MATE": c.MATEAddress,
		"USDC": c.USDCAddress,
		"USDT": c.USDTAddress,
		"DAI":  c.DAIAddress,
	}
	out := make(map[string]string)
	for symbol, addr := range book {
		if addr != "" {
			out[symbol] = addr
		}
	}
	return out
}

// GasReserve parses the reserve buffer into wei.
func (c *Config) GasReserve() (*big.Int, error) {
	reserve, ok := new(big.Int).SetString(c.GasReserveWei, 10)
	if !ok || reserve.Sign() < 0 {
		return nil, fmt.Errorf("invalid GAS_RESERVE_WEI: %q", c.GasReserveWei)
	}
	return reserve, nil
}
