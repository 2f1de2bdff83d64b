package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"coopledger/internal/core"
	"coopledger/internal/log"
)

// fakeStore is an in-memory implementation of every store interface,
// shared by the service tests.
type fakeStore struct {
	mu            sync.Mutex
	transactions  map[string]core.FinancialTransaction
	budgets       map[string]core.Budget
	credits       map[string]core.Credit
	subsidies     map[string]core.Subsidy
	payments      map[string]core.CollectivePayment
	distributions map[string][]core.MemberDistribution
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transactions:  make(map[string]core.FinancialTransaction),
		budgets:       make(map[string]core.Budget),
		credits:       make(map[string]core.Credit),
		subsidies:     make(map[string]core.Subsidy),
		payments:      make(map[string]core.CollectivePayment),
		distributions: make(map[string][]core.MemberDistribution),
	}
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, core.ErrNotFound)
}

func (f *fakeStore) CreateTransaction(_ context.Context, tx core.FinancialTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transactions[tx.ID] = tx
	return nil
}

func (f *fakeStore) GetTransaction(_ context.Context, id string) (core.FinancialTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.transactions[id]
	if !ok {
		return core.FinancialTransaction{}, notFound("transaction", id)
	}
	return tx, nil
}

func (f *fakeStore) UpdateTransaction(_ context.Context, tx core.FinancialTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.transactions[tx.ID]; !ok {
		return notFound("transaction", tx.ID)
	}
	f.transactions[tx.ID] = tx
	return nil
}

func (f *fakeStore) DeleteTransaction(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.transactions[id]; !ok {
		return notFound("transaction", id)
	}
	delete(f.transactions, id)
	return nil
}

func (f *fakeStore) ListTransactions(_ context.Context, filter core.TransactionFilter) ([]core.FinancialTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.FinancialTransaction
	for _, tx := range f.transactions {
		if filter.Kind != "" && tx.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.Category != "" && tx.Category != filter.Category {
			continue
		}
		if filter.MemberID != "" && tx.MemberID != filter.MemberID {
			continue
		}
		if !filter.From.IsZero() && tx.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !tx.Date.Before(filter.To) {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeStore) CreateBudget(_ context.Context, b core.Budget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.budgets[b.ID] = b
	return nil
}

func (f *fakeStore) GetBudget(_ context.Context, id string) (core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.budgets[id]
	if !ok {
		return core.Budget{}, notFound("budget", id)
	}
	return b, nil
}

func (f *fakeStore) FindBudgetForExpense(_ context.Context, category string, date time.Time) (core.Budget, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.budgets {
		if b.Category == category && !date.Before(b.StartDate) && !date.After(b.EndDate) {
			return b, true, nil
		}
	}
	return core.Budget{}, false, nil
}

func (f *fakeStore) UpdateBudget(_ context.Context, b core.Budget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.budgets[b.ID]; !ok {
		return notFound("budget", b.ID)
	}
	f.budgets[b.ID] = b
	return nil
}

func (f *fakeStore) ListBudgets(_ context.Context) ([]core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Budget
	for _, b := range f.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateCredit(_ context.Context, c core.Credit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credits[c.ID] = c
	return nil
}

func (f *fakeStore) GetCredit(_ context.Context, id string) (core.Credit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credits[id]
	if !ok {
		return core.Credit{}, notFound("credit", id)
	}
	c.Schedule = append([]core.Installment(nil), c.Schedule...)
	return c, nil
}

func (f *fakeStore) UpdateCredit(_ context.Context, c core.Credit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.credits[c.ID]; !ok {
		return notFound("credit", c.ID)
	}
	f.credits[c.ID] = c
	return nil
}

func (f *fakeStore) ListCredits(_ context.Context) ([]core.Credit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Credit
	for _, c := range f.credits {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateSubsidy(_ context.Context, s core.Subsidy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subsidies[s.ID] = s
	return nil
}

func (f *fakeStore) GetSubsidy(_ context.Context, id string) (core.Subsidy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subsidies[id]
	if !ok {
		return core.Subsidy{}, notFound("subsidy", id)
	}
	return s, nil
}

func (f *fakeStore) UpdateSubsidy(_ context.Context, s core.Subsidy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subsidies[s.ID]; !ok {
		return notFound("subsidy", s.ID)
	}
	f.subsidies[s.ID] = s
	return nil
}

func (f *fakeStore) ListSubsidies(_ context.Context) ([]core.Subsidy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Subsidy
	for _, s := range f.subsidies {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreatePayment(_ context.Context, p core.CollectivePayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[p.ID] = p
	return nil
}

func (f *fakeStore) GetPayment(_ context.Context, id string) (core.CollectivePayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return core.CollectivePayment{}, notFound("collective payment", id)
	}
	return p, nil
}

func (f *fakeStore) UpdatePayment(_ context.Context, p core.CollectivePayment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[p.ID]; !ok {
		return notFound("collective payment", p.ID)
	}
	f.payments[p.ID] = p
	return nil
}

func (f *fakeStore) ListPaymentsByStatus(_ context.Context, statuses ...core.CollectivePaymentStatus) ([]core.CollectivePayment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.CollectivePayment
	for _, p := range f.payments {
		for _, s := range statuses {
			if p.Status == s {
				out = append(out, p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ReplaceDistributions(_ context.Context, paymentID string, plan []core.MemberDistribution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.distributions[paymentID] = append([]core.MemberDistribution(nil), plan...)
	return nil
}

func (f *fakeStore) UpdateDistribution(_ context.Context, paymentID string, d core.MemberDistribution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	plan := f.distributions[paymentID]
	for i := range plan {
		if plan[i].MemberID == d.MemberID {
			plan[i] = d
			return nil
		}
	}
	return notFound("distribution", paymentID+"/"+d.MemberID)
}

func (f *fakeStore) ListDistributions(_ context.Context, paymentID string) ([]core.MemberDistribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.MemberDistribution(nil), f.distributions[paymentID]...), nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) IDGenerator {
	var n int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&n, 1))
	}
}
