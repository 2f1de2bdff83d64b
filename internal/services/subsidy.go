package services

import (
	"context"
	"fmt"
	"time"

	"coopledger/internal/core"
	"coopledger/internal/log"
)

// CategorySubsidy is the ledger category for disbursed grants.
const CategorySubsidy = "subsidy"

// SubsidyService tracks external grants from application through
// disbursement. Status changes alone never touch the ledger; disbursing
// with Disburse records the incoming grant as income.
type SubsidyService struct {
	subsidies SubsidyStore
	ledger    *LedgerService
	logger    *log.Logger
	now       Clock
	newID     IDGenerator
}

func NewSubsidyService(subsidies SubsidyStore, ledger *LedgerService, logger *log.Logger) *SubsidyService {
	return &SubsidyService{
		subsidies: subsidies,
		ledger:    ledger,
		logger:    logger.WithComponent("subsidy"),
		now:       time.Now,
		newID:     NewUUID,
	}
}

func (s *SubsidyService) CreateSubsidy(ctx context.Context, subsidy core.Subsidy) (core.Subsidy, error) {
	subsidy.ID = s.newID()
	subsidy.Status = core.SubsidyApplied
	subsidy.ApplicationDate = s.now().UTC()
	subsidy.ApprovalDate = nil
	subsidy.DisbursementDate = nil
	if err := subsidy.Validate(); err != nil {
		return core.Subsidy{}, err
	}
	if err := s.subsidies.CreateSubsidy(ctx, subsidy); err != nil {
		return core.Subsidy{}, err
	}
	s.logger.InfoContext(ctx, "subsidy application recorded",
		"id", subsidy.ID, "provider", subsidy.Provider, "amount", subsidy.Amount.Units)
	return subsidy, nil
}

func (s *SubsidyService) Approve(ctx context.Context, id string) (core.Subsidy, error) {
	return s.transition(ctx, id, core.SubsidyApproved)
}

func (s *SubsidyService) Reject(ctx context.Context, id string) (core.Subsidy, error) {
	return s.transition(ctx, id, core.SubsidyRejected)
}

// Disburse marks the grant received and records the incoming funds in
// the ledger as completed income.
func (s *SubsidyService) Disburse(ctx context.Context, id string, method core.PaymentMethod, actor string) (core.Subsidy, error) {
	subsidy, err := s.transition(ctx, id, core.SubsidyDisbursed)
	if err != nil {
		return core.Subsidy{}, err
	}

	_, err = s.ledger.CreateTransaction(ctx, core.FinancialTransaction{
		Kind:          core.Income,
		Category:      CategorySubsidy,
		Description:   fmt.Sprintf("Subsidy disbursement: %s (%s)", subsidy.Name, subsidy.Provider),
		Amount:        subsidy.Amount,
		Date:          s.now().UTC(),
		Reference:     subsidy.ID,
		Status:        core.TransactionCompleted,
		PaymentMethod: method,
		CreatedBy:     actor,
	})
	if err != nil {
		return core.Subsidy{}, fmt.Errorf("record subsidy income: %w", err)
	}
	return subsidy, nil
}

func (s *SubsidyService) GetSubsidy(ctx context.Context, id string) (core.Subsidy, error) {
	return s.subsidies.GetSubsidy(ctx, id)
}

func (s *SubsidyService) ListSubsidies(ctx context.Context) ([]core.Subsidy, error) {
	return s.subsidies.ListSubsidies(ctx)
}

func (s *SubsidyService) transition(ctx context.Context, id string, to core.SubsidyStatus) (core.Subsidy, error) {
	subsidy, err := s.subsidies.GetSubsidy(ctx, id)
	if err != nil {
		return core.Subsidy{}, err
	}
	if err := core.ValidateSubsidyTransition(subsidy.Status, to); err != nil {
		return core.Subsidy{}, err
	}
	subsidy.Status = to
	t := s.now().UTC()
	switch to {
	case core.SubsidyApproved:
		subsidy.ApprovalDate = &t
	case core.SubsidyDisbursed:
		subsidy.DisbursementDate = &t
	}
	if err := s.subsidies.UpdateSubsidy(ctx, subsidy); err != nil {
		return core.Subsidy{}, err
	}
	s.logger.InfoContext(ctx, "subsidy status changed", "id", id, "status", to)
	return subsidy, nil
}
