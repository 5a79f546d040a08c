package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// IDSize is the size of account and token identifiers in bytes.
const IDSize = 20

// AccountID identifies a ledger participant. It is supplied by the identity
// layer and treated as opaque.
type AccountID [IDSize]byte

// TokenID identifies a tradable asset.
type TokenID [IDSize]byte

func parseID(kind, s string) ([IDSize]byte, error) {
	var id [IDSize]byte
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid %s %q: %w", kind, s, err)
	}
	if len(raw) != IDSize {
		return id, fmt.Errorf("invalid %s %q: want %d bytes, got %d", kind, s, IDSize, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

// ParseAccountID decodes a 40-character hex account identifier.
func ParseAccountID(s string) (AccountID, error) {
	id, err := parseID("account", s)
	return AccountID(id), err
}

// ParseTokenID decodes a 40-character hex token identifier.
func ParseTokenID(s string) (TokenID, error) {
	id, err := parseID("token", s)
	return TokenID(id), err
}

// AccountIDFromBytes copies b into an AccountID. Returns the zero ID if b is
// not exactly IDSize bytes.
func AccountIDFromBytes(b []byte) AccountID {
	var id AccountID
	if len(b) == IDSize {
		copy(id[:], b)
	}
	return id
}

func (a AccountID) String() string { return strings.ToUpper(hex.EncodeToString(a[:])) }

// IsZero reports whether a is the all-zero account.
func (a AccountID) IsZero() bool { return a == AccountID{} }

func (a AccountID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

func (t TokenID) String() string { return strings.ToUpper(hex.EncodeToString(t[:])) }

// IsZero reports whether t is the all-zero token.
func (t TokenID) IsZero() bool { return t == TokenID{} }

func (t TokenID) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TokenID) UnmarshalText(text []byte) error {
	id, err := ParseTokenID(string(text))
	if err != nil {
		return err
	}
	*t = id
	return nil
}
