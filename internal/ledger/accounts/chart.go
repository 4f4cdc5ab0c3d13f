package accounts

import (
	"context"
	"errors"
	"sync"
)

// ErrConflict surfaces a get-or-create race that persisted after the single
// transparent retry.
var ErrConflict = errors.New("accounts: concurrent account creation conflict")

// Chart resolves human account names to stable ids, creating unknown
// accounts lazily with the ledger's base currency. Resolved accounts are held
// in an explicit in-process cache; batch callers invalidate it with Clear.
type Chart struct {
	store          Store
	ledgerID       int64
	baseCurrencyID int64

	mu    sync.Mutex
	cache map[string]Account
}

// NewChart constructs a chart of accounts for one ledger.
func NewChart(store Store, ledgerID, baseCurrencyID int64) *Chart {
	return &Chart{
		store:          store,
		ledgerID:       ledgerID,
		baseCurrencyID: baseCurrencyID,
		cache:          make(map[string]Account),
	}
}

// GetID resolves or atomically creates the account with the given name.
func (c *Chart) GetID(ctx context.Context, name string) (int64, error) {
	a, err := c.resolve(ctx, name)
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

// GetCurrencyID returns the currency of the named account, creating the
// account if necessary.
func (c *Chart) GetCurrencyID(ctx context.Context, name string) (int64, error) {
	a, err := c.resolve(ctx, name)
	if err != nil {
		return 0, err
	}
	return a.CurrencyID, nil
}

// Lookup resolves an existing account without creating it.
func (c *Chart) Lookup(ctx context.Context, name string) (Account, bool, error) {
	c.mu.Lock()
	a, ok := c.cache[name]
	c.mu.Unlock()
	if ok {
		return a, true, nil
	}
	a, ok, err := c.store.Get(ctx, c.ledgerID, name)
	if err != nil || !ok {
		return Account{}, ok, err
	}
	c.put(a)
	return a, true, nil
}

// Clear drops the cache. Batch jobs call it once a batch completes so cache
// lifetime stays bound to the batch, not the process.
func (c *Chart) Clear() {
	c.mu.Lock()
	c.cache = make(map[string]Account)
	c.mu.Unlock()
}

func (c *Chart) resolve(ctx context.Context, name string) (Account, error) {
	a, ok, err := c.Lookup(ctx, name)
	if err != nil {
		return Account{}, err
	}
	if ok {
		return a, nil
	}
	a, err = c.store.Insert(ctx, c.ledgerID, name, c.baseCurrencyID)
	if errors.Is(err, ErrDuplicate) {
		// Another caller created it between our lookup and insert.
		a, ok, err = c.store.Get(ctx, c.ledgerID, name)
		if err != nil {
			return Account{}, err
		}
		if !ok {
			return Account{}, ErrConflict
		}
	} else if err != nil {
		return Account{}, err
	}
	c.put(a)
	return a, nil
}

func (c *Chart) put(a Account) {
	c.mu.Lock()
	c.cache[a.Name] = a
	c.mu.Unlock()
}
