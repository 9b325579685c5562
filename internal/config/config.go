package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"rhystmorgan/tokenSend/internal/blockchain"
	"rhystmorgan/tokenSend/internal/transfer"
)

const (
	AppDir         = ".tokensend"
	ConfigFileName = "config.toml"
	KeystoreName   = "keystore.json"
	EnvPrefix      = "TOKENSEND_"
)

type NetworkConfig struct {
	Kind              string        `toml:"kind"`
	NodeURL           string        `toml:"node_url"`
	ChainID           uint64        `toml:"chain_id"`
	Timeout           time.Duration `toml:"timeout"`
	RetryCount        int           `toml:"retry_count"`
	PollInterval      time.Duration `toml:"poll_interval"`
	RequestsPerSecond float64       `toml:"requests_per_second"`
	DropAfter         int           `toml:"drop_after"`
	CacheTTL          time.Duration `toml:"cache_ttl"`
}

type TransferConfig struct {
	Confirmations    uint64        `toml:"confirmations"`
	LongPendingAfter time.Duration `toml:"long_pending_after"`
	TrackTimeout     time.Duration `toml:"track_timeout"`
	StaleAfter       time.Duration `toml:"stale_after"`
}

type TokenConfig struct {
	Address  string `toml:"address"`
	Name     string `toml:"name"`
	Symbol   string `toml:"symbol"`
	IconURL  string `toml:"icon_url"`
	Decimals int32  `toml:"decimals"`
	Balance  string `toml:"balance"`
	Value    string `toml:"value"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

type Config struct {
	Network   NetworkConfig     `toml:"network"`
	Transfer  TransferConfig    `toml:"transfer"`
	Token     TokenConfig       `toml:"token"`
	Explorers map[string]string `toml:"explorers"`
	Keystore  string            `toml:"keystore"`
	AuditDir  string            `toml:"audit_dir"`
	Log       LogConfig         `toml:"log"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			Kind:              string(blockchain.EVM),
			Timeout:           blockchain.DefaultTimeout,
			RetryCount:        blockchain.DefaultRetryCount,
			PollInterval:      blockchain.DefaultPollInterval,
			RequestsPerSecond: blockchain.DefaultRequestsPerSecond,
			DropAfter:         blockchain.DefaultDropAfter,
			CacheTTL:          blockchain.DefaultCacheTTL,
		},
		Transfer: TransferConfig{
			Confirmations:    transfer.DefaultConfirmations,
			LongPendingAfter: transfer.DefaultLongPendingAfter,
			StaleAfter:       transfer.DefaultStaleAfter,
		},
		Token: TokenConfig{
			Decimals: 18,
		},
		Explorers: map[string]string{},
		Keystore:  filepath.Join(DefaultDir(), KeystoreName),
		AuditDir:  filepath.Join(DefaultDir(), "audit"),
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultDir is ~/.tokensend, or the working directory when home is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return AppDir
	}
	return filepath.Join(home, AppDir)
}

// Load builds the configuration from defaults, the TOML file at path, a .env
// file in the working directory and TOKENSEND_* environment variables, in
// that order. An empty path falls back to ~/.tokensend/config.toml if present.
func Load(path string) (*Config, error) {
	config := GetDefaultConfig()

	explicit := path != ""
	if !explicit {
		path = filepath.Join(DefaultDir(), ConfigFileName)
	}
	if err := config.loadFile(path, explicit); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) loadFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config file %s: %w", path, err)
	}

	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Network.Kind = getEnvOrDefault("NETWORK", c.Network.Kind)
	c.Network.NodeURL = getEnvOrDefault("NODE_URL", c.Network.NodeURL)
	c.Network.ChainID = parseUintOrDefault("CHAIN_ID", c.Network.ChainID)
	c.Network.Timeout = parseDurationOrDefault("TIMEOUT", c.Network.Timeout)
	c.Network.RetryCount = parseIntOrDefault("RETRY_COUNT", c.Network.RetryCount)
	c.Network.PollInterval = parseDurationOrDefault("POLL_INTERVAL", c.Network.PollInterval)

	c.Transfer.Confirmations = parseUintOrDefault("CONFIRMATIONS", c.Transfer.Confirmations)
	c.Transfer.LongPendingAfter = parseDurationOrDefault("LONG_PENDING_AFTER", c.Transfer.LongPendingAfter)
	c.Transfer.TrackTimeout = parseDurationOrDefault("TRACK_TIMEOUT", c.Transfer.TrackTimeout)

	c.Keystore = getEnvOrDefault("KEYSTORE", c.Keystore)
	c.AuditDir = getEnvOrDefault("AUDIT_DIR", c.AuditDir)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvOrDefault("LOG_FILE", c.Log.File)
	if IsDebugEnabled() {
		c.Log.Level = "debug"
	}
}

func (c *Config) Validate() error {
	switch blockchain.Network(c.Network.Kind) {
	case blockchain.EVM:
		if c.Network.NodeURL == "" {
			return errors.New("node_url is required for the evm network")
		}
	case blockchain.VeChain:
	default:
		return fmt.Errorf("invalid network: %s (must be 'evm' or 'vechain')", c.Network.Kind)
	}

	if c.Network.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %v", c.Network.Timeout)
	}
	if c.Network.RetryCount < 0 {
		return fmt.Errorf("retry count must be non-negative, got: %d", c.Network.RetryCount)
	}
	if c.Network.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %v", c.Network.PollInterval)
	}
	if c.Transfer.Confirmations == 0 {
		return errors.New("confirmations must be at least 1")
	}
	if c.Transfer.LongPendingAfter < 0 || c.Transfer.TrackTimeout < 0 || c.Transfer.StaleAfter < 0 {
		return errors.New("transfer durations must not be negative")
	}
	if c.Token.Decimals < 0 || c.Token.Decimals > 77 {
		return fmt.Errorf("token decimals out of range: %d", c.Token.Decimals)
	}
	if _, err := c.ExplorerOverrides(); err != nil {
		return err
	}
	return nil
}

// ExplorerOverrides parses the [explorers] table. Keys are chain ids in
// decimal or 0x-prefixed hex.
func (c *Config) ExplorerOverrides() (map[transfer.ChainID]string, error) {
	out := make(map[transfer.ChainID]string, len(c.Explorers))
	keys := make([]string, 0, len(c.Explorers))
	for key := range c.Explorers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		id, err := strconv.ParseUint(key, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid explorer chain id %q: %w", key, err)
		}
		out[transfer.ChainID(id)] = c.Explorers[key]
	}
	return out, nil
}

func (c *Config) ToBlockchainConfig() blockchain.Config {
	return blockchain.Config{
		Network:           blockchain.Network(c.Network.Kind),
		NodeURL:           c.Network.NodeURL,
		ChainID:           c.Network.ChainID,
		Timeout:           c.Network.Timeout,
		RetryCount:        c.Network.RetryCount,
		RetryDelay:        blockchain.DefaultRetryDelay,
		PollInterval:      c.Network.PollInterval,
		RequestsPerSecond: c.Network.RequestsPerSecond,
		DropAfter:         c.Network.DropAfter,
		CacheTTL:          c.Network.CacheTTL,
	}
}

func (c *Config) ControllerOptions() []transfer.Option {
	return []transfer.Option{
		transfer.WithConfirmations(c.Transfer.Confirmations),
		transfer.WithLongPendingAfter(c.Transfer.LongPendingAfter),
		transfer.WithTrackTimeout(c.Transfer.TrackTimeout),
		transfer.WithStaleAfter(c.Transfer.StaleAfter),
	}
}

// TokenSummary returns the configured display context. Missing balance or
// value render as zero.
func (c *Config) TokenSummary() (transfer.TokenSummary, error) {
	summary := transfer.TokenSummary{
		Address:  c.Token.Address,
		Name:     c.Token.Name,
		Symbol:   c.Token.Symbol,
		IconURL:  c.Token.IconURL,
		Decimals: c.Token.Decimals,
	}

	var err error
	if c.Token.Balance != "" {
		if summary.Balance, err = decimal.NewFromString(c.Token.Balance); err != nil {
			return summary, fmt.Errorf("token balance: %w", err)
		}
	}
	if c.Token.Value != "" {
		if summary.Value, err = decimal.NewFromString(c.Token.Value); err != nil {
			return summary, fmt.Errorf("token value: %w", err)
		}
	}
	return summary, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseUintOrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if parsed, err := strconv.ParseUint(value, 0, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func IsDebugEnabled() bool {
	return os.Getenv(EnvPrefix+"DEBUG") == "true" || os.Getenv(EnvPrefix+"DEBUG") == "1"
}
