package config

import (
	"fmt"

	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/events"
	"github.com/LeJamon/swapx/internal/identity"
	"github.com/LeJamon/swapx/internal/storage"
)

// ValidateConfig checks every section.
func ValidateConfig(config *Config) error {
	if err := config.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := config.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := config.Oracle.Validate(); err != nil {
		return fmt.Errorf("oracle: %w", err)
	}
	if err := config.Treasury.Validate(); err != nil {
		return fmt.Errorf("treasury: %w", err)
	}
	if err := config.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := config.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := config.Identity.Validate(); err != nil {
		return fmt.Errorf("identity: %w", err)
	}
	return nil
}

func (c LedgerConfig) Validate() error {
	if c.FeePercentage > ledger.MaxFeePercentage {
		return fmt.Errorf("fee_percentage %d exceeds %d", c.FeePercentage, ledger.MaxFeePercentage)
	}
	if c.ProtocolFund == "" {
		return fmt.Errorf("protocol_fund is required")
	}
	if _, err := c.ProtocolFundID(); err != nil {
		return fmt.Errorf("protocol_fund: %w", err)
	}
	return nil
}

func (c StorageConfig) Validate() error {
	for _, b := range storage.Backends {
		if c.Backend == b {
			if b != storage.BackendMemory && c.Path == "" {
				return fmt.Errorf("path is required for backend %s", b)
			}
			return nil
		}
	}
	return fmt.Errorf("unknown backend %q (supported: %v)", c.Backend, storage.Backends)
}

func (c OracleConfig) Validate() error {
	switch c.Kind {
	case OracleParity:
	case OracleStatic:
		if len(c.Rates) == 0 {
			return fmt.Errorf("static oracle needs at least one rate")
		}
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	for i, r := range c.Rates {
		from, to, rate, err := r.Parse()
		if err != nil {
			return fmt.Errorf("rates[%d]: %w", i, err)
		}
		if from == to {
			return fmt.Errorf("rates[%d]: from and to are the same token", i)
		}
		if rate.IsZero() {
			return fmt.Errorf("rates[%d]: rate must be greater than zero", i)
		}
	}
	return nil
}

func (c TreasuryConfig) Validate() error {
	switch c.Kind {
	case TreasuryBook, TreasuryDiscard:
		return nil
	}
	return fmt.Errorf("unknown kind %q", c.Kind)
}

func (c EventsConfig) Validate() error {
	switch c.JournalDriver {
	case "":
	case events.DriverSQLite, events.DriverPostgres:
		if c.JournalDSN == "" {
			return fmt.Errorf("journal_dsn is required for driver %s", c.JournalDriver)
		}
	default:
		return fmt.Errorf("unknown journal_driver %q", c.JournalDriver)
	}
	if c.BusBuffer <= 0 {
		return fmt.Errorf("bus_buffer must be positive")
	}
	return nil
}

func (c ServerConfig) Validate() error {
	if c.HTTPAddr == "" && c.GRPCAddr == "" {
		return fmt.Errorf("at least one of http_addr and grpc_addr is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	return nil
}

func (c IdentityConfig) Validate() error {
	switch c.Mode {
	case identity.ModeTrusted, identity.ModeSigned:
		return nil
	}
	return fmt.Errorf("unknown mode %q", c.Mode)
}
