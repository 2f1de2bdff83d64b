package http

import (
	"net/http"

	"coopledger/internal/core"
	"coopledger/internal/services"
)

type createBudgetRequest struct {
	Category       string `json:"category" validate:"required"`
	Description    string `json:"description"`
	AllocatedUnits int64  `json:"allocated_units" validate:"required,gt=0"`
	Period         string `json:"period" validate:"required,oneof=monthly quarterly yearly"`
	StartDate      string `json:"start_date" validate:"required"`
	EndDate        string `json:"end_date" validate:"required"`
}

type updateBudgetRequest struct {
	Description    *string `json:"description"`
	AllocatedUnits *int64  `json:"allocated_units" validate:"omitempty,gt=0"`
	EndDate        *string `json:"end_date"`
}

type budgetResponse struct {
	ID             string `json:"id"`
	Category       string `json:"category"`
	Description    string `json:"description,omitempty"`
	AllocatedUnits int64  `json:"allocated_units"`
	SpentUnits     int64  `json:"spent_units"`
	RemainingUnits int64  `json:"remaining_units"`
	Period         string `json:"period"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	Status         string `json:"status"`
}

func toBudgetResponse(b core.Budget) budgetResponse {
	return budgetResponse{
		ID:             b.ID,
		Category:       b.Category,
		Description:    b.Description,
		AllocatedUnits: b.Allocated.Units,
		SpentUnits:     b.Spent.Units,
		RemainingUnits: b.Remaining(),
		Period:         string(b.Period),
		StartDate:      b.StartDate.Format(dateLayout),
		EndDate:        b.EndDate.Format(dateLayout),
		Status:         string(b.Status),
	}
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req createBudgetRequest
	if !s.decode(w, r, &req) {
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	created, err := s.services.Budgets.CreateBudget(r.Context(), core.Budget{
		Category:    req.Category,
		Description: req.Description,
		Allocated:   core.Money{Units: req.AllocatedUnits},
		Period:      core.BudgetPeriod(req.Period),
		StartDate:   start,
		EndDate:     end,
	})
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusCreated, toBudgetResponse(created))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req updateBudgetRequest
	if !s.decode(w, r, &req) {
		return
	}

	update := services.BudgetUpdate{Description: req.Description}
	if req.AllocatedUnits != nil {
		allocated := core.Money{Units: *req.AllocatedUnits}
		update.Allocated = &allocated
	}
	if req.EndDate != nil {
		end, err := parseDate(*req.EndDate)
		if err != nil {
			s.error(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		update.EndDate = &end
	}

	b, err := s.services.Budgets.UpdateBudget(r.Context(), r.PathValue("id"), update)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.services.Budgets.GetBudget(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.services.Budgets.ListBudgets(r.Context())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	out := make([]budgetResponse, len(budgets))
	for i, b := range budgets {
		out[i] = toBudgetResponse(b)
	}
	s.json(w, http.StatusOK, out)
}
