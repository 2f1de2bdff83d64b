package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"coopledger/internal/core"
	"coopledger/internal/services"
)

type createCreditRequest struct {
	MemberID       string          `json:"member_id" validate:"required"`
	AmountUnits    int64           `json:"amount_units" validate:"required,gt=0"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	DurationMonths int             `json:"duration_months" validate:"required,gte=1"`
	Purpose        string          `json:"purpose"`
	Guarantors     []string        `json:"guarantors"`
	Collateral     string          `json:"collateral"`
}

type disbursementRequest struct {
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash mobile_money bank_transfer check"`
}

type repaymentRequest struct {
	Installment   int    `json:"installment" validate:"gte=0"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=cash mobile_money bank_transfer check"`
}

type installmentResponse struct {
	DueDate     string `json:"due_date"`
	AmountUnits int64  `json:"amount_units"`
	Status      string `json:"status"`
}

type creditResponse struct {
	ID               string                `json:"id"`
	MemberID         string                `json:"member_id"`
	AmountUnits      int64                 `json:"amount_units"`
	InterestRate     decimal.Decimal       `json:"interest_rate"`
	DurationMonths   int                   `json:"duration_months"`
	Purpose          string                `json:"purpose,omitempty"`
	ApplicationDate  string                `json:"application_date"`
	ApprovalDate     *time.Time            `json:"approval_date,omitempty"`
	DisbursementDate *time.Time            `json:"disbursement_date,omitempty"`
	DueDate          string                `json:"due_date"`
	Status           string                `json:"status"`
	Guarantors       []string              `json:"guarantors,omitempty"`
	Collateral       string                `json:"collateral,omitempty"`
	OutstandingUnits int64                 `json:"outstanding_units"`
	Schedule         []installmentResponse `json:"schedule"`
}

func toCreditResponse(c core.Credit) creditResponse {
	schedule := make([]installmentResponse, len(c.Schedule))
	for i, in := range c.Schedule {
		schedule[i] = installmentResponse{
			DueDate:     in.DueDate.Format(dateLayout),
			AmountUnits: in.Amount.Units,
			Status:      string(in.Status),
		}
	}
	return creditResponse{
		ID:               c.ID,
		MemberID:         c.MemberID,
		AmountUnits:      c.Amount.Units,
		InterestRate:     c.InterestRate,
		DurationMonths:   c.Duration,
		Purpose:          c.Purpose,
		ApplicationDate:  c.ApplicationDate.Format(dateLayout),
		ApprovalDate:     c.ApprovalDate,
		DisbursementDate: c.DisbursementDate,
		DueDate:          c.DueDate.Format(dateLayout),
		Status:           string(c.Status),
		Guarantors:       c.Guarantors,
		Collateral:       c.Collateral,
		OutstandingUnits: c.OutstandingPrincipal(),
		Schedule:         schedule,
	}
}

func (s *Server) handleCreateCredit(w http.ResponseWriter, r *http.Request) {
	var req createCreditRequest
	if !s.decode(w, r, &req) {
		return
	}

	credit, err := s.services.Credits.CreateCredit(r.Context(), services.CreateCreditParams{
		MemberID:       req.MemberID,
		Amount:         core.Money{Units: req.AmountUnits},
		InterestRate:   req.InterestRate,
		DurationMonths: req.DurationMonths,
		Purpose:        req.Purpose,
		Guarantors:     req.Guarantors,
		Collateral:     req.Collateral,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusCreated, toCreditResponse(credit))
}

func (s *Server) handleApproveCredit(w http.ResponseWriter, r *http.Request) {
	credit, err := s.services.Credits.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toCreditResponse(credit))
}

func (s *Server) handleDisburseCredit(w http.ResponseWriter, r *http.Request) {
	var req disbursementRequest
	if !s.decode(w, r, &req) {
		return
	}
	credit, err := s.services.Credits.Disburse(r.Context(), r.PathValue("id"),
		core.PaymentMethod(req.PaymentMethod), actingUser(r))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toCreditResponse(credit))
}

func (s *Server) handleDefaultCredit(w http.ResponseWriter, r *http.Request) {
	credit, err := s.services.Credits.MarkDefaulted(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toCreditResponse(credit))
}

func (s *Server) handleRecordRepayment(w http.ResponseWriter, r *http.Request) {
	var req repaymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	credit, err := s.services.Credits.RecordRepayment(r.Context(), r.PathValue("id"),
		req.Installment, core.PaymentMethod(req.PaymentMethod), actingUser(r))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toCreditResponse(credit))
}

func (s *Server) handleGetCredit(w http.ResponseWriter, r *http.Request) {
	credit, err := s.services.Credits.GetCredit(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toCreditResponse(credit))
}

func (s *Server) handleListCredits(w http.ResponseWriter, r *http.Request) {
	credits, err := s.services.Credits.ListCredits(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	out := make([]creditResponse, len(credits))
	for i, c := range credits {
		out[i] = toCreditResponse(c)
	}
	s.json(w, http.StatusOK, out)
}
