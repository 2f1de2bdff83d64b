package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coopledger/internal/core"
	"coopledger/internal/log"
)

// Ledger categories written by the credit lifecycle.
const (
	CategoryCreditDisbursement = "credit_disbursement"
	CategoryCreditRepayment    = "credit_repayment"
)

// CreditService runs member loans from application to repayment. The
// repayment schedule is generated once at application time; lifecycle
// steps that move money also write the matching ledger entry.
type CreditService struct {
	credits CreditStore
	ledger  *LedgerService
	logger  *log.Logger
	now     Clock
	newID   IDGenerator
}

func NewCreditService(credits CreditStore, ledger *LedgerService, logger *log.Logger) *CreditService {
	return &CreditService{
		credits: credits,
		ledger:  ledger,
		logger:  logger.WithComponent("credit"),
		now:     time.Now,
		newID:   NewUUID,
	}
}

type CreateCreditParams struct {
	MemberID       string
	Amount         core.Money
	InterestRate   decimal.Decimal // annual percent
	DurationMonths int
	Purpose        string
	Guarantors     []string
	Collateral     string
}

func (s *CreditService) CreateCredit(ctx context.Context, params CreateCreditParams) (core.Credit, error) {
	applied := s.now().UTC()
	schedule, err := core.BuildRepaymentSchedule(params.Amount, params.InterestRate, params.DurationMonths, applied)
	if err != nil {
		return core.Credit{}, err
	}

	credit := core.Credit{
		ID:              s.newID(),
		MemberID:        params.MemberID,
		Amount:          params.Amount,
		InterestRate:    params.InterestRate,
		Duration:        params.DurationMonths,
		Purpose:         params.Purpose,
		ApplicationDate: applied,
		DueDate:         schedule[len(schedule)-1].DueDate,
		Status:          core.CreditApplied,
		Guarantors:      params.Guarantors,
		Collateral:      params.Collateral,
		Schedule:        schedule,
	}
	if err := credit.Validate(); err != nil {
		return core.Credit{}, err
	}
	if err := s.credits.CreateCredit(ctx, credit); err != nil {
		return core.Credit{}, err
	}

	s.logger.InfoContext(ctx, "credit application recorded",
		"id", credit.ID, "member", credit.MemberID,
		"amount", credit.Amount.Units, "duration_months", credit.Duration)
	return credit, nil
}

func (s *CreditService) Approve(ctx context.Context, id string) (core.Credit, error) {
	return s.transition(ctx, id, core.CreditApproved, nil)
}

// Disburse hands the principal to the member: the credit moves to
// disbursed and the ledger records the outgoing expense.
func (s *CreditService) Disburse(ctx context.Context, id string, method core.PaymentMethod, actor string) (core.Credit, error) {
	credit, err := s.transition(ctx, id, core.CreditDisbursed, func(c *core.Credit) {
		t := s.now().UTC()
		c.DisbursementDate = &t
	})
	if err != nil {
		return core.Credit{}, err
	}

	_, err = s.ledger.CreateTransaction(ctx, core.FinancialTransaction{
		Kind:          core.Expense,
		Category:      CategoryCreditDisbursement,
		Description:   fmt.Sprintf("Credit disbursement to member %s", credit.MemberID),
		Amount:        credit.Amount,
		Date:          s.now().UTC(),
		Reference:     credit.ID,
		MemberID:      credit.MemberID,
		Status:        core.TransactionCompleted,
		PaymentMethod: method,
		CreatedBy:     actor,
	})
	if err != nil {
		return core.Credit{}, fmt.Errorf("record disbursement: %w", err)
	}
	return credit, nil
}

func (s *CreditService) MarkDefaulted(ctx context.Context, id string) (core.Credit, error) {
	return s.transition(ctx, id, core.CreditDefaulted, nil)
}

// RecordRepayment marks one installment paid and records the incoming
// ledger entry. Re-marking an already paid installment changes nothing
// and writes nothing.
func (s *CreditService) RecordRepayment(ctx context.Context, creditID string, installment int, method core.PaymentMethod, actor string) (core.Credit, error) {
	credit, err := s.credits.GetCredit(ctx, creditID)
	if err != nil {
		return core.Credit{}, err
	}
	if credit.Status != core.CreditDisbursed && credit.Status != core.CreditRepaid {
		return core.Credit{}, fmt.Errorf("credit %s is %s, repayments require disbursement: %w",
			creditID, credit.Status, core.ErrInvalidTransition)
	}

	changed, err := core.ApplyRepayment(&credit, installment)
	if err != nil {
		return core.Credit{}, err
	}
	if !changed {
		return credit, nil
	}
	if err := s.credits.UpdateCredit(ctx, credit); err != nil {
		return core.Credit{}, err
	}

	_, err = s.ledger.CreateTransaction(ctx, core.FinancialTransaction{
		Kind:          core.Income,
		Category:      CategoryCreditRepayment,
		Description:   fmt.Sprintf("Installment %d repayment on credit %s", installment+1, creditID),
		Amount:        credit.Schedule[installment].Amount,
		Date:          s.now().UTC(),
		Reference:     creditID,
		MemberID:      credit.MemberID,
		Status:        core.TransactionCompleted,
		PaymentMethod: method,
		CreatedBy:     actor,
	})
	if err != nil {
		return core.Credit{}, fmt.Errorf("record repayment: %w", err)
	}

	if credit.Status == core.CreditRepaid {
		s.logger.InfoContext(ctx, "credit fully repaid", "id", creditID, "member", credit.MemberID)
	}
	return credit, nil
}

func (s *CreditService) GetCredit(ctx context.Context, id string) (core.Credit, error) {
	return s.credits.GetCredit(ctx, id)
}

func (s *CreditService) ListCredits(ctx context.Context) ([]core.Credit, error) {
	return s.credits.ListCredits(ctx)
}

func (s *CreditService) transition(ctx context.Context, id string, to core.CreditStatus, stamp func(*core.Credit)) (core.Credit, error) {
	credit, err := s.credits.GetCredit(ctx, id)
	if err != nil {
		return core.Credit{}, err
	}
	if err := core.ValidateCreditTransition(credit.Status, to); err != nil {
		return core.Credit{}, err
	}
	credit.Status = to
	if to == core.CreditApproved {
		t := s.now().UTC()
		credit.ApprovalDate = &t
	}
	if stamp != nil {
		stamp(&credit)
	}
	if err := s.credits.UpdateCredit(ctx, credit); err != nil {
		return core.Credit{}, err
	}
	s.logger.InfoContext(ctx, "credit status changed", "id", id, "status", to)
	return credit, nil
}
