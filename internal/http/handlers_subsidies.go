package http

import (
	"net/http"
	"time"

	"coopledger/internal/core"
)

type createSubsidyRequest struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	AmountUnits   int64    `json:"amount_units" validate:"required,gt=0"`
	Provider      string   `json:"provider" validate:"required"`
	Requirements  []string `json:"requirements"`
	Documents     []string `json:"documents"`
	Beneficiaries []string `json:"beneficiaries"`
	Conditions    string   `json:"conditions"`
}

type subsidyResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	AmountUnits      int64      `json:"amount_units"`
	Provider         string     `json:"provider"`
	ApplicationDate  string     `json:"application_date"`
	ApprovalDate     *time.Time `json:"approval_date,omitempty"`
	DisbursementDate *time.Time `json:"disbursement_date,omitempty"`
	Status           string     `json:"status"`
	Requirements     []string   `json:"requirements,omitempty"`
	Documents        []string   `json:"documents,omitempty"`
	Beneficiaries    []string   `json:"beneficiaries,omitempty"`
	Conditions       string     `json:"conditions,omitempty"`
}

func toSubsidyResponse(sub core.Subsidy) subsidyResponse {
	return subsidyResponse{
		ID:               sub.ID,
		Name:             sub.Name,
		Description:      sub.Description,
		AmountUnits:      sub.Amount.Units,
		Provider:         sub.Provider,
		ApplicationDate:  sub.ApplicationDate.Format(dateLayout),
		ApprovalDate:     sub.ApprovalDate,
		DisbursementDate: sub.DisbursementDate,
		Status:           string(sub.Status),
		Requirements:     sub.Requirements,
		Documents:        sub.Documents,
		Beneficiaries:    sub.Beneficiaries,
		Conditions:       sub.Conditions,
	}
}

func (s *Server) handleCreateSubsidy(w http.ResponseWriter, r *http.Request) {
	var req createSubsidyRequest
	if !s.decode(w, r, &req) {
		return
	}

	created, err := s.services.Subsidies.CreateSubsidy(r.Context(), core.Subsidy{
		Name:          req.Name,
		Description:   req.Description,
		Amount:        core.Money{Units: req.AmountUnits},
		Provider:      req.Provider,
		Requirements:  req.Requirements,
		Documents:     req.Documents,
		Beneficiaries: req.Beneficiaries,
		Conditions:    req.Conditions,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusCreated, toSubsidyResponse(created))
}

func (s *Server) handleApproveSubsidy(w http.ResponseWriter, r *http.Request) {
	sub, err := s.services.Subsidies.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toSubsidyResponse(sub))
}

func (s *Server) handleRejectSubsidy(w http.ResponseWriter, r *http.Request) {
	sub, err := s.services.Subsidies.Reject(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toSubsidyResponse(sub))
}

func (s *Server) handleDisburseSubsidy(w http.ResponseWriter, r *http.Request) {
	var req disbursementRequest
	if !s.decode(w, r, &req) {
		return
	}
	sub, err := s.services.Subsidies.Disburse(r.Context(), r.PathValue("id"),
		core.PaymentMethod(req.PaymentMethod), actingUser(r))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toSubsidyResponse(sub))
}

func (s *Server) handleGetSubsidy(w http.ResponseWriter, r *http.Request) {
	sub, err := s.services.Subsidies.GetSubsidy(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toSubsidyResponse(sub))
}

func (s *Server) handleListSubsidies(w http.ResponseWriter, r *http.Request) {
	subs, err := s.services.Subsidies.ListSubsidies(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	out := make([]subsidyResponse, len(subs))
	for i, sub := range subs {
		out[i] = toSubsidyResponse(sub)
	}
	s.json(w, http.StatusOK, out)
}
