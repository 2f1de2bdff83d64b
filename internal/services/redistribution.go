package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"coopledger/internal/core"
	"coopledger/internal/log"
	"coopledger/internal/payout"
)

// CategoryRedistribution is the ledger category for member payouts.
const CategoryRedistribution = "redistribution"

// RedistributionOptions tunes payout dispatch.
type RedistributionOptions struct {
	// FeeRate maps a payment method to its fee as a decimal rate.
	FeeRate func(core.PaymentMethod) decimal.Decimal

	// PoolSize bounds concurrent payout submissions.
	PoolSize int

	// PayoutTimeout caps each individual provider call.
	PayoutTimeout time.Duration

	// PayoutRetries is how many times a failed submission is retried
	// before the member's distribution is marked failed.
	PayoutRetries int

	// PayoutBackoff is the base delay between retries, doubled per
	// attempt.
	PayoutBackoff time.Duration
}

// RedistributionService splits collective payments across contributing
// members and pays them out. The plan math is pure; payouts run
// concurrently with per-member status, so one member's failure never
// blocks the others and re-processing only touches unpaid members.
type RedistributionService struct {
	payments PaymentStore
	ledger   *LedgerService
	provider payout.Provider
	opts     RedistributionOptions
	logger   *log.Logger
	now      Clock
	newID    IDGenerator
}

func NewRedistributionService(payments PaymentStore, ledger *LedgerService, provider payout.Provider, opts RedistributionOptions, logger *log.Logger) *RedistributionService {
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	return &RedistributionService{
		payments: payments,
		ledger:   ledger,
		provider: provider,
		opts:     opts,
		logger:   logger.WithComponent("redistribution"),
		now:      time.Now,
		newID:    NewUUID,
	}
}

type RegisterPaymentParams struct {
	CooperativeID string
	Amount        core.Money
	Currency      string
	PaymentMethod core.PaymentMethod
	SaleID        string
	Buyer         string
	InvoiceNumber string
	Items         []core.LineItem
}

// RegisterPayment records a collective payment whose funds have already
// arrived, as notified by the sales system.
func (s *RedistributionService) RegisterPayment(ctx context.Context, params RegisterPaymentParams) (core.CollectivePayment, error) {
	return s.createPayment(ctx, params, core.PaymentReceived)
}

// RecordExpectedPayment records a payment that is invoiced but not yet
// received. It must be marked received before review.
func (s *RedistributionService) RecordExpectedPayment(ctx context.Context, params RegisterPaymentParams) (core.CollectivePayment, error) {
	return s.createPayment(ctx, params, core.PaymentPending)
}

func (s *RedistributionService) createPayment(ctx context.Context, params RegisterPaymentParams, status core.CollectivePaymentStatus) (core.CollectivePayment, error) {
	p := core.CollectivePayment{
		ID:            s.newID(),
		CooperativeID: params.CooperativeID,
		Amount:        params.Amount,
		Currency:      params.Currency,
		PaymentMethod: params.PaymentMethod,
		Status:        status,
		ReceivedAt:    s.now().UTC(),
		SaleID:        params.SaleID,
		Buyer:         params.Buyer,
		InvoiceNumber: params.InvoiceNumber,
		Items:         params.Items,
	}
	if err := p.Validate(); err != nil {
		return core.CollectivePayment{}, err
	}
	if err := s.payments.CreatePayment(ctx, p); err != nil {
		return core.CollectivePayment{}, err
	}
	s.logger.InfoContext(ctx, "collective payment recorded",
		"id", p.ID, "amount", p.Amount.Units, "status", p.Status, "buyer", p.Buyer)
	return p, nil
}

// MarkReceived moves a pending payment to received once the funds land.
func (s *RedistributionService) MarkReceived(ctx context.Context, id string) (core.CollectivePayment, error) {
	p, err := s.payments.GetPayment(ctx, id)
	if err != nil {
		return core.CollectivePayment{}, err
	}
	if err := core.ValidatePaymentTransition(p.Status, core.PaymentReceived); err != nil {
		return core.CollectivePayment{}, err
	}
	p.Status = core.PaymentReceived
	p.ReceivedAt = s.now().UTC()
	if err := s.payments.UpdatePayment(ctx, p); err != nil {
		return core.CollectivePayment{}, err
	}
	return p, nil
}

// Review computes the distribution plan for a received payment without
// persisting anything. The same payment and contributions always yield
// the same plan, so operators can review repeatedly before confirming.
func (s *RedistributionService) Review(ctx context.Context, paymentID string, contributions []core.Contribution) ([]core.MemberDistribution, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != core.PaymentReceived {
		return nil, fmt.Errorf("collective payment %s is %s: %w", paymentID, p.Status, core.ErrPaymentNotReceived)
	}
	return core.BuildDistributionPlan(p, contributions, s.opts.FeeRate(p.PaymentMethod))
}

// Confirm freezes the reviewed plan so processing can start. The plan
// may be re-confirmed with different contributions until the first
// payout is dispatched.
func (s *RedistributionService) Confirm(ctx context.Context, paymentID string, contributions []core.Contribution, confirmedBy string) ([]core.MemberDistribution, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != core.PaymentReceived {
		return nil, fmt.Errorf("collective payment %s is %s: %w", paymentID, p.Status, core.ErrPaymentNotReceived)
	}
	if p.Confirmed() {
		started, err := s.processingStarted(ctx, paymentID)
		if err != nil {
			return nil, err
		}
		if started {
			return nil, fmt.Errorf("%w: distribution of payment %s has already started", core.ErrValidation, paymentID)
		}
	}

	plan, err := core.BuildDistributionPlan(p, contributions, s.opts.FeeRate(p.PaymentMethod))
	if err != nil {
		return nil, err
	}
	if err := s.payments.ReplaceDistributions(ctx, paymentID, plan); err != nil {
		return nil, err
	}

	t := s.now().UTC()
	p.ConfirmedAt = &t
	p.ConfirmedBy = confirmedBy
	if err := s.payments.UpdatePayment(ctx, p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "distribution plan confirmed",
		"payment", paymentID, "members", len(plan), "by", confirmedBy)
	return plan, nil
}

// CancelConfirmation discards a confirmed plan before processing
// starts, returning the payment to plain received.
func (s *RedistributionService) CancelConfirmation(ctx context.Context, paymentID string) (core.CollectivePayment, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return core.CollectivePayment{}, err
	}
	if !p.Confirmed() {
		return core.CollectivePayment{}, fmt.Errorf("%w: payment %s has no confirmed plan", core.ErrValidation, paymentID)
	}
	started, err := s.processingStarted(ctx, paymentID)
	if err != nil {
		return core.CollectivePayment{}, err
	}
	if started {
		return core.CollectivePayment{}, fmt.Errorf("%w: distribution of payment %s has already started", core.ErrValidation, paymentID)
	}

	if err := s.payments.ReplaceDistributions(ctx, paymentID, nil); err != nil {
		return core.CollectivePayment{}, err
	}
	p.ConfirmedAt = nil
	p.ConfirmedBy = ""
	if err := s.payments.UpdatePayment(ctx, p); err != nil {
		return core.CollectivePayment{}, err
	}
	return p, nil
}

// ProcessResult summarizes one processing run over a payment.
type ProcessResult struct {
	Payment   core.CollectivePayment
	Completed int
	Failed    int
	Skipped   int // paid in an earlier run, not resubmitted
}

// Process pays out the confirmed plan. Payouts fan out concurrently up
// to the pool size; each member's outcome is persisted independently.
// Members already paid in a previous run are never resubmitted. The
// payment ends redistributed only when every member is paid, failed
// otherwise; a failed payment can be processed again.
func (s *RedistributionService) Process(ctx context.Context, paymentID string) (ProcessResult, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return ProcessResult{}, err
	}
	if p.Status != core.PaymentReceived && p.Status != core.PaymentFailed {
		return ProcessResult{}, &core.TransitionError{
			Entity: "collective payment", From: string(p.Status), To: string(core.PaymentRedistributed),
		}
	}
	if !p.Confirmed() {
		return ProcessResult{}, fmt.Errorf("%w: distribution plan for payment %s is not confirmed", core.ErrValidation, paymentID)
	}

	plan, err := s.payments.ListDistributions(ctx, paymentID)
	if err != nil {
		return ProcessResult{}, err
	}
	if len(plan) == 0 {
		return ProcessResult{}, fmt.Errorf("%w: payment %s has no stored distribution plan", core.ErrValidation, paymentID)
	}

	// A plan that no longer accounts for every minor unit is corrupt;
	// abort before a single payout goes out.
	if err := core.ReconcilePlan(p.Amount, plan); err != nil {
		return ProcessResult{}, fmt.Errorf("payment %s: %w", paymentID, err)
	}

	var result ProcessResult
	var g errgroup.Group
	g.SetLimit(s.opts.PoolSize)
	for i := range plan {
		if plan[i].Status == core.DistributionCompleted {
			result.Skipped++
			continue
		}
		d := &plan[i]
		g.Go(func() error {
			s.payMember(ctx, p, d)
			return nil
		})
	}
	g.Wait()

	for _, d := range plan {
		switch d.Status {
		case core.DistributionCompleted:
			result.Completed++
		case core.DistributionFailed, core.DistributionPending:
			result.Failed++
		}
	}
	result.Completed -= result.Skipped

	target := core.PaymentRedistributed
	if result.Failed > 0 {
		target = core.PaymentFailed
	}
	if err := core.ValidatePaymentTransition(p.Status, target); err != nil {
		return ProcessResult{}, err
	}
	p.Status = target
	if target == core.PaymentRedistributed {
		t := s.now().UTC()
		p.RedistributedAt = &t
	}
	if err := s.payments.UpdatePayment(ctx, p); err != nil {
		return ProcessResult{}, err
	}
	result.Payment = p

	s.logger.InfoContext(ctx, "payment processed",
		"payment", paymentID, "status", p.Status,
		"completed", result.Completed, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// payMember submits one member's payout, persists the outcome and, on
// success, records the outgoing ledger entry. Failures are captured on
// the distribution, never returned: one member's failure must not stop
// the batch.
func (s *RedistributionService) payMember(ctx context.Context, p core.CollectivePayment, d *core.MemberDistribution) {
	res, err := s.submitWithRetry(ctx, payout.Request{
		PaymentID: p.ID,
		MemberID:  d.MemberID,
		Amount:    d.Net,
		Method:    p.PaymentMethod,
	})
	now := s.now().UTC()
	if err != nil {
		d.Status = core.DistributionFailed
		d.FailureReason = err.Error()
		d.PaidAt = nil
		d.ReceiptRef = ""
		s.logger.WarnContext(ctx, "payout failed",
			"payment", p.ID, "member", d.MemberID, "error", err)
	} else {
		d.Status = core.DistributionCompleted
		d.PaidAt = &now
		d.ReceiptRef = res.ProviderTransactionID
		d.FailureReason = ""
	}

	if err := s.payments.UpdateDistribution(ctx, p.ID, *d); err != nil {
		s.logger.ErrorContext(ctx, "persist distribution outcome",
			"payment", p.ID, "member", d.MemberID, "error", err)
		return
	}
	if d.Status != core.DistributionCompleted {
		return
	}

	_, err = s.ledger.CreateTransaction(ctx, core.FinancialTransaction{
		Kind:          core.Expense,
		Category:      CategoryRedistribution,
		Description:   fmt.Sprintf("Redistribution to member %s for payment %s", d.MemberID, p.ID),
		Amount:        d.Net,
		Date:          now,
		Reference:     p.ID,
		MemberID:      d.MemberID,
		Status:        core.TransactionCompleted,
		PaymentMethod: p.PaymentMethod,
		CreatedBy:     "redistribution",
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "record payout expense",
			"payment", p.ID, "member", d.MemberID, "error", err)
	}
}

func (s *RedistributionService) submitWithRetry(ctx context.Context, req payout.Request) (payout.Result, error) {
	var lastErr error
	backoff := s.opts.PayoutBackoff
	for attempt := 0; attempt <= s.opts.PayoutRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return payout.Result{}, fmt.Errorf("%w: %v", core.ErrProvider, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		callCtx := ctx
		cancel := func() {}
		if s.opts.PayoutTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.opts.PayoutTimeout)
		}
		res, err := s.provider.SubmitPayout(callCtx, req)
		cancel()
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return payout.Result{}, lastErr
}

// ReprocessFailed retries every failed payment once. Used by the worker
// on its periodic pass; the number of payments fully recovered is
// returned.
func (s *RedistributionService) ReprocessFailed(ctx context.Context) (int, error) {
	failed, err := s.payments.ListPaymentsByStatus(ctx, core.PaymentFailed)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, p := range failed {
		result, err := s.Process(ctx, p.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "reprocess failed payment", "payment", p.ID, "error", err)
			continue
		}
		if result.Payment.Status == core.PaymentRedistributed {
			recovered++
		}
	}
	return recovered, nil
}

// Status returns a payment with its stored distribution plan.
func (s *RedistributionService) Status(ctx context.Context, paymentID string) (core.CollectivePayment, []core.MemberDistribution, error) {
	p, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return core.CollectivePayment{}, nil, err
	}
	plan, err := s.payments.ListDistributions(ctx, paymentID)
	if err != nil {
		return core.CollectivePayment{}, nil, err
	}
	return p, plan, nil
}

// ListPayments returns payments in the given states, all states when
// none are named.
func (s *RedistributionService) ListPayments(ctx context.Context, statuses ...core.CollectivePaymentStatus) ([]core.CollectivePayment, error) {
	if len(statuses) == 0 {
		statuses = []core.CollectivePaymentStatus{
			core.PaymentPending, core.PaymentReceived, core.PaymentRedistributed, core.PaymentFailed,
		}
	}
	return s.payments.ListPaymentsByStatus(ctx, statuses...)
}

func (s *RedistributionService) processingStarted(ctx context.Context, paymentID string) (bool, error) {
	plan, err := s.payments.ListDistributions(ctx, paymentID)
	if err != nil {
		return false, err
	}
	for _, d := range plan {
		if d.Status != core.DistributionPending {
			return true, nil
		}
	}
	return false, nil
}
