// Package amount implements the unsigned 128-bit fixed-point balances used by
// the liquidity ledger. Every arithmetic operation is checked: results that
// would leave the representable range are reported as errors, never wrapped
// or clamped.
package amount

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"lukechampine.com/uint128"
)

var (
	// ErrOverflow is returned when a result exceeds 2^128-1.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("arithmetic underflow")

	// ErrDivideByZero is returned by Div with a zero divisor.
	ErrDivideByZero = errors.New("division by zero")
)

// Size is the encoded size of a Balance in bytes.
const Size = 16

// Balance is a non-negative integer quantity of a token. The zero value is 0.
type Balance struct {
	u uint128.Uint128
}

var (
	// Zero is the zero balance.
	Zero = Balance{}

	// Max is the largest representable balance.
	Max = Balance{u: uint128.Max}

	// RateScale is the fixed-point denominator of exchange rates (10^18).
	RateScale = New(1_000_000_000_000_000_000)

	// PercentScale is the denominator of fee percentages.
	PercentScale = New(100)
)

// New returns a balance holding v.
func New(v uint64) Balance {
	return Balance{u: uint128.From64(v)}
}

// FromBig converts a big.Int, failing for negative values or values wider
// than 128 bits.
func FromBig(b *big.Int) (Balance, error) {
	if b == nil {
		return Zero, nil
	}
	if b.Sign() < 0 {
		return Zero, fmt.Errorf("negative balance %s: %w", b, ErrUnderflow)
	}
	if b.BitLen() > 128 {
		return Zero, fmt.Errorf("balance %s: %w", b, ErrOverflow)
	}
	return Balance{u: uint128.FromBig(b)}, nil
}

// Parse parses a base-10 balance.
func Parse(s string) (Balance, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Zero, fmt.Errorf("invalid balance %q", s)
	}
	return FromBig(b)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Balance {
	b, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return b
}

// FromBytes decodes a 16-byte big-endian balance.
func FromBytes(b []byte) (Balance, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("invalid balance encoding: %d bytes", len(b))
	}
	return Balance{u: uint128.FromBytesBE(b)}, nil
}

// Bytes encodes the balance as 16 big-endian bytes.
func (b Balance) Bytes() []byte {
	out := make([]byte, Size)
	b.u.PutBytesBE(out)
	return out
}

// Add returns b+o.
func (b Balance) Add(o Balance) (Balance, error) {
	sum := b.u.AddWrap(o.u)
	if sum.Cmp(b.u) < 0 {
		return Zero, ErrOverflow
	}
	return Balance{u: sum}, nil
}

// Sub returns b-o.
func (b Balance) Sub(o Balance) (Balance, error) {
	if b.u.Cmp(o.u) < 0 {
		return Zero, ErrUnderflow
	}
	return Balance{u: b.u.SubWrap(o.u)}, nil
}

// Mul returns b*o.
func (b Balance) Mul(o Balance) (Balance, error) {
	if b.IsZero() || o.IsZero() {
		return Zero, nil
	}
	p := b.u.MulWrap(o.u)
	if !p.Div(o.u).Equals(b.u) {
		return Zero, ErrOverflow
	}
	return Balance{u: p}, nil
}

// Div returns b/o rounded down.
func (b Balance) Div(o Balance) (Balance, error) {
	if o.IsZero() {
		return Zero, ErrDivideByZero
	}
	return Balance{u: b.u.Div(o.u)}, nil
}

// MulDiv returns b*m/d with both steps checked.
func (b Balance) MulDiv(m, d Balance) (Balance, error) {
	p, err := b.Mul(m)
	if err != nil {
		return Zero, err
	}
	return p.Div(d)
}

// Cmp compares b and o and returns -1, 0 or +1.
func (b Balance) Cmp(o Balance) int {
	return b.u.Cmp(o.u)
}

// Equal reports whether b == o.
func (b Balance) Equal(o Balance) bool {
	return b.u.Equals(o.u)
}

// IsZero reports whether b == 0.
func (b Balance) IsZero() bool {
	return b.u.IsZero()
}

// Big returns b as a big.Int.
func (b Balance) Big() *big.Int {
	return b.u.Big()
}

func (b Balance) String() string {
	return b.u.String()
}

// MarshalJSON encodes the balance as a decimal string, since JSON numbers
// lose precision beyond 2^53.
func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}

// UnmarshalJSON accepts a decimal string or a JSON integer.
func (b *Balance) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("balance must be a decimal string: %w", err)
		}
		s = n.String()
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (b Balance) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Balance) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// MarshalBinary encodes the balance as 16 big-endian bytes.
func (b Balance) MarshalBinary() ([]byte, error) {
	return b.Bytes(), nil
}

// UnmarshalBinary decodes a balance written by MarshalBinary.
func (b *Balance) UnmarshalBinary(data []byte) error {
	v, err := FromBytes(data)
	if err != nil {
		return err
	}
	*b = v
	return nil
}
