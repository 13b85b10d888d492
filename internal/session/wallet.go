package session

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Wallet is the arcade-wide last known balance. Only settlement responses
// and balance lookups write it.
type Wallet struct {
	mu      sync.RWMutex
	balance decimal.Decimal
	known   bool
}

// Balance returns the last known balance and whether one is known.
func (w *Wallet) Balance() (decimal.Decimal, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance, w.known
}

// Set records an authoritative balance.
func (w *Wallet) Set(b decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = b
	w.known = true
}

// bound is the balance for wager validation, or nil when unknown.
func (w *Wallet) bound() *decimal.Decimal {
	if w == nil {
		return nil
	}
	b, ok := w.Balance()
	if !ok {
		return nil
	}
	return &b
}
