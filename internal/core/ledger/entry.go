package ledger

import (
	"bytes"
	"fmt"

	"github.com/LeJamon/swapx/internal/core/amount"
)

// EntryKind selects which ledger map an entry belongs to.
type EntryKind uint8

const (
	// KindReserve entries hold the pool's total holdings of a token.
	KindReserve EntryKind = iota + 1
	// KindContribution entries hold one account's liquidity stake in a token.
	KindContribution
	// KindTotalContribution entries hold the sum of all stakes in a token.
	KindTotalContribution
	// KindFeePercentage is the singleton fee setting.
	KindFeePercentage
	// KindSequence is the singleton count of committed operations.
	KindSequence
	// KindAccountSequence entries hold the last request sequence an account
	// has used.
	KindAccountSequence
	// KindPendingCredit is a protocol fee committed to the ledger whose
	// treasury transfer has not been acknowledged yet.
	KindPendingCredit
	// KindPendingSequence is the ledger sequence of the pending credit.
	KindPendingSequence
)

func (k EntryKind) String() string {
	switch k {
	case KindReserve:
		return "reserve"
	case KindContribution:
		return "contribution"
	case KindTotalContribution:
		return "total_contribution"
	case KindFeePercentage:
		return "fee_percentage"
	case KindSequence:
		return "sequence"
	case KindAccountSequence:
		return "account_sequence"
	case KindPendingCredit:
		return "pending_credit"
	case KindPendingSequence:
		return "pending_sequence"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Singleton reports whether entries of this kind hold a ledger-wide setting
// rather than a balance. Singletons are stored even when zero.
func (k EntryKind) Singleton() bool {
	return k == KindFeePercentage || k == KindSequence
}

// EntryKey addresses a single balance in the ledger. Account is set for
// contributions, account sequences and pending credits; Token is unset for
// the singleton kinds and account sequences.
type EntryKey struct {
	Kind    EntryKind
	Account AccountID
	Token   TokenID
}

// ReserveKey returns the key of Reserve[token].
func ReserveKey(token TokenID) EntryKey {
	return EntryKey{Kind: KindReserve, Token: token}
}

// ContributionKey returns the key of Contribution[account, token].
func ContributionKey(account AccountID, token TokenID) EntryKey {
	return EntryKey{Kind: KindContribution, Account: account, Token: token}
}

// TotalContributionKey returns the key of TotalContribution[token].
func TotalContributionKey(token TokenID) EntryKey {
	return EntryKey{Kind: KindTotalContribution, Token: token}
}

// AccountSequenceKey returns the key of account's last used sequence.
func AccountSequenceKey(account AccountID) EntryKey {
	return EntryKey{Kind: KindAccountSequence, Account: account}
}

var (
	feeKey             = EntryKey{Kind: KindFeePercentage}
	sequenceKey        = EntryKey{Kind: KindSequence}
	pendingSequenceKey = EntryKey{Kind: KindPendingSequence}
)

func (k EntryKey) less(o EntryKey) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	if c := bytes.Compare(k.Account[:], o.Account[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.Token[:], o.Token[:]) < 0
}

// Change is a single committed transition. A zero Current on a balance kind
// means the entry is removed from storage.
type Change struct {
	Key      EntryKey
	Original amount.Balance
	Current  amount.Balance
}

// Inverse returns the change that undoes c.
func (c Change) Inverse() Change {
	return Change{Key: c.Key, Original: c.Current, Current: c.Original}
}
