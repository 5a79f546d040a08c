// Package identity resolves the account a request acts for.
//
// In trusted mode the caller names its account directly. In signed mode the
// request carries a compressed secp256k1 public key and a DER signature over
// the SHA-512Half of the canonical request; the account is derived from the
// key as RIPEMD160(SHA256(pubkey)). A signed request also carries the
// account's next sequence number, which the ledger accepts once.
package identity

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/decred/dcrd/crypto/ripemd160"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/LeJamon/swapx/internal/core/ledger"
)

// Modes.
const (
	ModeTrusted = "trusted"
	ModeSigned  = "signed"
)

// Field names of the identity claims inside request params.
const (
	FieldAccount   = "account"
	FieldPublicKey = "public_key"
	FieldSignature = "signature"
	FieldSequence  = "sequence"
)

var (
	// ErrMissingIdentity is returned when a request carries no usable claim.
	ErrMissingIdentity = errors.New("request does not identify an account")

	// ErrBadSignature is returned when a signed request fails verification.
	ErrBadSignature = errors.New("invalid request signature")

	// ErrMissingSequence is returned when a signed request carries no
	// sequence number.
	ErrMissingSequence = errors.New("signed request carries no sequence")
)

// Claims are the identity fields a request carries.
type Claims struct {
	Account   string  `json:"account,omitempty"`
	PublicKey string  `json:"public_key,omitempty"`
	Signature string  `json:"signature,omitempty"`
	Sequence  *uint64 `json:"sequence,omitempty"`
}

// Caller is the account a request acts for.
type Caller struct {
	Account ledger.AccountID
	// Sequence is the account sequence the request claims, nil when the
	// request is not sequenced.
	Sequence *uint64
}

// Context returns ctx carrying the caller's sequence, if any.
func (c Caller) Context(ctx context.Context) context.Context {
	if c.Sequence == nil {
		return ctx
	}
	return ledger.WithSequence(ctx, *c.Sequence)
}

// Resolver turns request claims into an account.
type Resolver struct {
	mode string
}

// NewResolver returns a resolver for mode.
func NewResolver(mode string) (*Resolver, error) {
	switch mode {
	case ModeTrusted, ModeSigned:
		return &Resolver{mode: mode}, nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", mode)
	}
}

// Mode returns the configured mode.
func (r *Resolver) Mode() string { return r.mode }

// Resolve returns the caller params act for. params is the raw JSON object
// of the request.
func (r *Resolver) Resolve(params json.RawMessage) (Caller, error) {
	var c Claims
	if len(params) > 0 {
		if err := json.Unmarshal(params, &c); err != nil {
			return Caller{}, fmt.Errorf("%w: %v", ErrMissingIdentity, err)
		}
	}

	if r.mode == ModeTrusted {
		if c.Account == "" {
			return Caller{}, ErrMissingIdentity
		}
		account, err := ledger.ParseAccountID(c.Account)
		if err != nil {
			return Caller{}, err
		}
		return Caller{Account: account, Sequence: c.Sequence}, nil
	}

	account, err := verify(params, c)
	if err != nil {
		return Caller{}, err
	}
	if c.Sequence == nil {
		return Caller{}, ErrMissingSequence
	}
	return Caller{Account: account, Sequence: c.Sequence}, nil
}

func verify(params json.RawMessage, c Claims) (ledger.AccountID, error) {
	if c.PublicKey == "" || c.Signature == "" {
		return ledger.AccountID{}, ErrMissingIdentity
	}
	pubBytes, err := hex.DecodeString(c.PublicKey)
	if err != nil {
		return ledger.AccountID{}, fmt.Errorf("%w: public key: %v", ErrBadSignature, err)
	}
	pub, err := secp256k1.ParsePubKey(pubBytes)
	if err != nil {
		return ledger.AccountID{}, fmt.Errorf("%w: public key: %v", ErrBadSignature, err)
	}
	sigBytes, err := hex.DecodeString(c.Signature)
	if err != nil {
		return ledger.AccountID{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return ledger.AccountID{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	msg, err := Canonical(params)
	if err != nil {
		return ledger.AccountID{}, err
	}
	digest := sha512Half(msg)
	if !sig.Verify(digest[:], pub) {
		return ledger.AccountID{}, ErrBadSignature
	}

	account := AccountFromPublicKey(pub.SerializeCompressed())
	if c.Account != "" {
		claimed, err := ledger.ParseAccountID(c.Account)
		if err != nil {
			return ledger.AccountID{}, err
		}
		if claimed != account {
			return ledger.AccountID{}, fmt.Errorf("%w: key does not belong to %s", ErrBadSignature, claimed)
		}
	}
	return account, nil
}

// Canonical returns the bytes a request signature covers: params as a JSON
// object with sorted keys and the signature field removed.
func Canonical(params json.RawMessage) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &fields); err != nil {
			return nil, fmt.Errorf("params must be a JSON object: %w", err)
		}
	}
	delete(fields, FieldSignature)
	return json.Marshal(fields)
}

// Sign signs params with key, setting the public key and signature fields.
func Sign(key *secp256k1.PrivateKey, params map[string]interface{}) (json.RawMessage, error) {
	out := make(map[string]interface{}, len(params)+2)
	for k, v := range params {
		out[k] = v
	}
	out[FieldPublicKey] = hex.EncodeToString(key.PubKey().SerializeCompressed())
	delete(out, FieldSignature)

	unsigned, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	msg, err := Canonical(unsigned)
	if err != nil {
		return nil, err
	}
	digest := sha512Half(msg)
	out[FieldSignature] = hex.EncodeToString(ecdsa.Sign(key, digest[:]).Serialize())
	return json.Marshal(out)
}

// AccountFromPublicKey derives an account ID as RIPEMD160(SHA256(pub)).
func AccountFromPublicKey(pub []byte) ledger.AccountID {
	sum := sha256.Sum256(pub)
	h := ripemd160.New()
	h.Write(sum[:])
	return ledger.AccountIDFromBytes(h.Sum(nil))
}

func sha512Half(msg []byte) [32]byte {
	h := sha512.Sum512(msg)
	var out [32]byte
	copy(out[:], h[:32])
	return out
}
