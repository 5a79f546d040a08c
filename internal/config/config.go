package config

import (
	"time"

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
)

// Config is the complete swapxd configuration.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger" mapstructure:"ledger"`
	Storage  StorageConfig  `toml:"storage" mapstructure:"storage"`
	Oracle   OracleConfig   `toml:"oracle" mapstructure:"oracle"`
	Treasury TreasuryConfig `toml:"treasury" mapstructure:"treasury"`
	Events   EventsConfig   `toml:"events" mapstructure:"events"`
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Identity IdentityConfig `toml:"identity" mapstructure:"identity"`
	Logging  LoggingConfig  `toml:"logging" mapstructure:"logging"`

	configPath string
}

// LedgerConfig holds the construction-time ledger settings.
type LedgerConfig struct {
	// FeePercentage is used until a fee is persisted by set_fee.
	FeePercentage uint32 `toml:"fee_percentage" mapstructure:"fee_percentage"`
	ProtocolFund  string `toml:"protocol_fund" mapstructure:"protocol_fund"`
}

// ProtocolFundID parses the protocol fund account.
func (c LedgerConfig) ProtocolFundID() (ledger.AccountID, error) {
	return ledger.ParseAccountID(c.ProtocolFund)
}

// StorageConfig selects the key-value backend.
type StorageConfig struct {
	Backend string `toml:"backend" mapstructure:"backend"`
	Path    string `toml:"path" mapstructure:"path"`
}

// OracleConfig selects the rate source and its cache.
type OracleConfig struct {
	Kind      string        `toml:"kind" mapstructure:"kind"`
	CacheSize int           `toml:"cache_size" mapstructure:"cache_size"`
	CacheTTL  time.Duration `toml:"cache_ttl" mapstructure:"cache_ttl"`
	Rates     []RateConfig  `toml:"rates" mapstructure:"rates"`
}

// RateConfig is one fixed rate of the static oracle, scaled by 10^18.
type RateConfig struct {
	From string `toml:"from" mapstructure:"from"`
	To   string `toml:"to" mapstructure:"to"`
	Rate string `toml:"rate" mapstructure:"rate"`
}

// Parse decodes the pair and the rate.
func (r RateConfig) Parse() (ledger.TokenID, ledger.TokenID, amount.Balance, error) {
	from, err := ledger.ParseTokenID(r.From)
	if err != nil {
		return ledger.TokenID{}, ledger.TokenID{}, amount.Zero, err
	}
	to, err := ledger.ParseTokenID(r.To)
	if err != nil {
		return ledger.TokenID{}, ledger.TokenID{}, amount.Zero, err
	}
	rate, err := amount.Parse(r.Rate)
	if err != nil {
		return ledger.TokenID{}, ledger.TokenID{}, amount.Zero, err
	}
	return from, to, rate, nil
}

// TreasuryConfig selects where protocol fees are credited.
type TreasuryConfig struct {
	Kind string `toml:"kind" mapstructure:"kind"`
}

// EventsConfig configures event delivery. An empty JournalDriver disables
// the journal.
type EventsConfig struct {
	JournalDriver string `toml:"journal_driver" mapstructure:"journal_driver"`
	JournalDSN    string `toml:"journal_dsn" mapstructure:"journal_dsn"`
	BusBuffer     int    `toml:"bus_buffer" mapstructure:"bus_buffer"`
}

// ServerConfig holds the listener addresses. An empty address disables that
// listener.
type ServerConfig struct {
	HTTPAddr       string        `toml:"http_addr" mapstructure:"http_addr"`
	GRPCAddr       string        `toml:"grpc_addr" mapstructure:"grpc_addr"`
	RequestTimeout time.Duration `toml:"request_timeout" mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `toml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// IdentityConfig selects how callers are identified.
type IdentityConfig struct {
	Mode string `toml:"mode" mapstructure:"mode"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Pretty bool   `toml:"pretty" mapstructure:"pretty"`
}

// GetConfigPath returns the file the configuration was read from, if any.
func (c *Config) GetConfigPath() string {
	return c.configPath
}
