// Package memory is an in-process spreadsheet mirror for development
// and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"coopledger/internal/core"
)

type Store struct {
	mu   sync.Mutex
	rows []core.FinancialTransaction
}

func New() *Store {
	return &Store{}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.FinancialTransaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, tx)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []core.FinancialTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.FinancialTransaction(nil), s.rows...)
}
