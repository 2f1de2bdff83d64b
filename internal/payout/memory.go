package payout

import (
	"context"
	"fmt"
	"sync"
)

// MemoryProvider is an in-process Provider for development and tests.
// It honors the idempotency contract: a (payment, member) pair that has
// already succeeded returns the original result without disbursing
// again. Failures can be programmed per member.
type MemoryProvider struct {
	mu        sync.Mutex
	completed map[string]Result
	failures  map[string]int // member id -> remaining failures
	calls     int
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		completed: make(map[string]Result),
		failures:  make(map[string]int),
	}
}

// FailNext makes the next n submissions for a member fail before
// succeeding. Use n < 0 for a member that never succeeds.
func (p *MemoryProvider) FailNext(memberID string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[memberID] = n
}

// Calls reports how many submissions actually reached the provider,
// including idempotent replays.
func (p *MemoryProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Disbursements reports how many distinct payouts were disbursed.
func (p *MemoryProvider) Disbursements() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.completed)
}

func (p *MemoryProvider) SubmitPayout(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, Errorf("submit payout: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	key := req.PaymentID + "/" + req.MemberID
	if result, ok := p.completed[key]; ok {
		return result, nil
	}

	if remaining, ok := p.failures[req.MemberID]; ok && remaining != 0 {
		if remaining > 0 {
			p.failures[req.MemberID] = remaining - 1
		}
		return Result{}, Errorf("payout to member %s rejected", req.MemberID)
	}

	result := Result{ProviderTransactionID: fmt.Sprintf("mem-%s-%d", req.MemberID, p.calls)}
	p.completed[key] = result
	return result, nil
}
