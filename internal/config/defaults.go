package config

import (
	"time"

	"github.com/spf13/viper"
)

// Oracle kinds.
const (
	OracleParity = "parity"
	OracleStatic = "static"
)

// Treasury kinds.
const (
	TreasuryBook    = "book"
	TreasuryDiscard = "discard"
)

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ledger.fee_percentage", 1)
	v.SetDefault("ledger.protocol_fund", "")

	v.SetDefault("storage.backend", "pebble")
	v.SetDefault("storage.path", "data")

	v.SetDefault("oracle.kind", OracleParity)
	v.SetDefault("oracle.cache_size", 1024)
	v.SetDefault("oracle.cache_ttl", 5*time.Second)

	v.SetDefault("treasury.kind", TreasuryBook)

	v.SetDefault("events.journal_driver", "")
	v.SetDefault("events.journal_dsn", "")
	v.SetDefault("events.bus_buffer", 256)

	v.SetDefault("server.http_addr", "127.0.0.1:5005")
	v.SetDefault("server.grpc_addr", "127.0.0.1:50051")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("identity.mode", "signed")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.pretty", false)
}
