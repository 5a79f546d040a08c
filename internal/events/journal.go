package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/LeJamon/swapx/internal/core/amount"
	"github.com/LeJamon/swapx/internal/core/ledger"
	"github.com/LeJamon/swapx/internal/metrics"
)

// Journal drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `CREATE TABLE IF NOT EXISTS ledger_events (
	sequence   BIGINT PRIMARY KEY,
	kind       TEXT NOT NULL,
	account    TEXT NOT NULL,
	token      TEXT NOT NULL,
	amount     TEXT NOT NULL,
	token_out  TEXT,
	amount_out TEXT,
	created_at BIGINT NOT NULL
)`

// Journal appends every event to a SQL table so it can be replayed later.
type Journal struct {
	db     *sql.DB
	driver string
}

// OpenJournal connects to dsn with driver and creates the table if needed.
func OpenJournal(ctx context.Context, driver, dsn string) (*Journal, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &Journal{db: db, driver: driver}, nil
}

// bind rewrites ? placeholders for drivers that number them.
func (j *Journal) bind(query string) string {
	if j.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Publish implements ledger.Publisher. Re-publishing a sequence is a no-op.
func (j *Journal) Publish(ctx context.Context, ev ledger.Event) error {
	var tokenOut, amountOut sql.NullString
	if ev.TokenOut != nil {
		tokenOut = sql.NullString{String: ev.TokenOut.String(), Valid: true}
	}
	if ev.AmountOut != nil {
		amountOut = sql.NullString{String: ev.AmountOut.String(), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, j.bind(`INSERT INTO ledger_events
		(sequence, kind, account, token, amount, token_out, amount_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (sequence) DO NOTHING`),
		int64(ev.Sequence), string(ev.Kind), ev.Account.String(), ev.Token.String(), ev.Amount.String(),
		tokenOut, amountOut, ev.Time.UnixNano())
	if err != nil {
		metrics.PublishFailuresTotal.WithLabelValues("journal").Inc()
		return fmt.Errorf("journal event %d: %w", ev.Sequence, err)
	}
	return nil
}

// Events returns up to limit events with a sequence above after, oldest
// first.
func (j *Journal) Events(ctx context.Context, after uint64, limit int) ([]ledger.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.QueryContext(ctx, j.bind(`SELECT sequence, kind, account, token, amount, token_out, amount_out, created_at
		FROM ledger_events WHERE sequence > ? ORDER BY sequence LIMIT ?`), int64(after), limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []ledger.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func scanEvent(rows *sql.Rows) (ledger.Event, error) {
	var (
		seq                       int64
		kind, account, token, amt string
		tokenOut, amountOut       sql.NullString
		created                   int64
		ev                        ledger.Event
		err                       error
	)
	if err = rows.Scan(&seq, &kind, &account, &token, &amt, &tokenOut, &amountOut, &created); err != nil {
		return ev, fmt.Errorf("scan journal row: %w", err)
	}

	ev.Sequence = uint64(seq)
	ev.Kind = ledger.EventKind(kind)
	ev.Time = time.Unix(0, created).UTC()
	if ev.Account, err = ledger.ParseAccountID(account); err != nil {
		return ev, err
	}
	if ev.Token, err = ledger.ParseTokenID(token); err != nil {
		return ev, err
	}
	if ev.Amount, err = amount.Parse(amt); err != nil {
		return ev, err
	}
	if tokenOut.Valid != amountOut.Valid {
		return ev, errors.New("journal row has a partial output side")
	}
	if tokenOut.Valid {
		out, err := ledger.ParseTokenID(tokenOut.String)
		if err != nil {
			return ev, err
		}
		paid, err := amount.Parse(amountOut.String)
		if err != nil {
			return ev, err
		}
		ev.TokenOut, ev.AmountOut = &out, &paid
	}
	return ev, nil
}

// Close closes the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}
