package core

import (
	"strings"
	"time"
)

const (
	SubsidyApplied   SubsidyStatus = "applied"
	SubsidyApproved  SubsidyStatus = "approved"
	SubsidyDisbursed SubsidyStatus = "disbursed"
	SubsidyRejected  SubsidyStatus = "rejected"
)

type (
	SubsidyStatus string

	// Subsidy is an external grant tracked from application through
	// disbursement. The lifecycle is forward-only; disbursed and
	// rejected are terminal.
	Subsidy struct {
		ID               string
		Name             string
		Description      string
		Amount           Money
		Provider         string
		ApplicationDate  time.Time
		ApprovalDate     *time.Time
		DisbursementDate *time.Time
		Status           SubsidyStatus
		Requirements     []string
		Documents        []string
		Beneficiaries    []string
		Conditions       string
	}
)

func (s SubsidyStatus) Valid() bool {
	switch s {
	case SubsidyApplied, SubsidyApproved, SubsidyDisbursed, SubsidyRejected:
		return true
	}
	return false
}

func (s Subsidy) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyCategory
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Provider) == "" {
		return ErrEmptyCategory
	}
	if s.ApplicationDate.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// ValidateSubsidyTransition enforces applied -> approved -> disbursed,
// with rejection possible only from applied.
func ValidateSubsidyTransition(from, to SubsidyStatus) error {
	ok := (from == SubsidyApplied && to == SubsidyApproved) ||
		(from == SubsidyApproved && to == SubsidyDisbursed) ||
		(from == SubsidyApplied && to == SubsidyRejected)
	if !ok {
		return &TransitionError{Entity: "subsidy", From: string(from), To: string(to)}
	}
	return nil
}
