package ledger

import (
	"sort"

	"github.com/LeJamon/swapx/internal/core/amount"
)

type trackedEntry struct {
	original amount.Balance
	current  amount.Balance
}

// stateTable stages the writes of one operation on top of the committed
// entries. Nothing reaches the base map until apply is called, so an
// operation that fails part way leaves the ledger untouched.
type stateTable struct {
	base  map[EntryKey]amount.Balance
	items map[EntryKey]*trackedEntry
}

func newStateTable(base map[EntryKey]amount.Balance) *stateTable {
	return &stateTable{
		base:  base,
		items: make(map[EntryKey]*trackedEntry),
	}
}

// seed tracks an entry that lives outside the base map, such as the
// singleton settings, with its committed value.
func (t *stateTable) seed(k EntryKey, v amount.Balance) {
	t.items[k] = &trackedEntry{original: v, current: v}
}

func (t *stateTable) read(k EntryKey) amount.Balance {
	if entry, ok := t.items[k]; ok {
		return entry.current
	}
	return t.base[k]
}

func (t *stateTable) write(k EntryKey, v amount.Balance) {
	if entry, ok := t.items[k]; ok {
		entry.current = v
		return
	}
	t.items[k] = &trackedEntry{original: t.base[k], current: v}
}

func (t *stateTable) credit(k EntryKey, delta amount.Balance) error {
	v, err := t.read(k).Add(delta)
	if err != nil {
		return err
	}
	t.write(k, v)
	return nil
}

func (t *stateTable) debit(k EntryKey, delta amount.Balance) error {
	v, err := t.read(k).Sub(delta)
	if err != nil {
		return err
	}
	t.write(k, v)
	return nil
}

// changes returns every entry whose value differs from the base, ordered by
// key so persisted batches are deterministic.
func (t *stateTable) changes() []Change {
	out := make([]Change, 0, len(t.items))
	for k, entry := range t.items {
		if entry.original.Equal(entry.current) {
			continue
		}
		out = append(out, Change{Key: k, Original: entry.original, Current: entry.current})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.less(out[j].Key) })
	return out
}

// apply writes the staged balance values into the base map. Zero balances
// are dropped so the maps only hold live entries. Singletons are left to the
// caller.
func (t *stateTable) apply() {
	for k, entry := range t.items {
		if k.Kind.Singleton() {
			continue
		}
		if entry.current.IsZero() {
			delete(t.base, k)
			continue
		}
		t.base[k] = entry.current
	}
}
