package http

import (
	"net/http"
	"time"

	"coopledger/internal/core"
	"coopledger/internal/services"
)

type createTransactionRequest struct {
	Kind          string   `json:"kind" validate:"required,oneof=income expense"`
	Category      string   `json:"category" validate:"required"`
	Description   string   `json:"description" validate:"required,min=3"`
	AmountUnits   int64    `json:"amount_units" validate:"required,gt=0"`
	Date          string   `json:"date" validate:"required"`
	Reference     string   `json:"reference"`
	MemberID      string   `json:"member_id"`
	SupplierID    string   `json:"supplier_id"`
	Status        string   `json:"status" validate:"omitempty,oneof=pending completed cancelled"`
	PaymentMethod string   `json:"payment_method" validate:"required,oneof=cash mobile_money bank_transfer check"`
	Receipts      []string `json:"receipts"`
	Notes         string   `json:"notes"`
}

type updateTransactionRequest struct {
	Kind          *string `json:"kind" validate:"omitempty,oneof=income expense"`
	Category      *string `json:"category" validate:"omitempty,min=1"`
	Description   *string `json:"description" validate:"omitempty,min=3"`
	AmountUnits   *int64  `json:"amount_units" validate:"omitempty,gt=0"`
	Date          *string `json:"date"`
	Reference     *string `json:"reference"`
	Status        *string `json:"status" validate:"omitempty,oneof=pending completed cancelled"`
	PaymentMethod *string `json:"payment_method" validate:"omitempty,oneof=cash mobile_money bank_transfer check"`
	Notes         *string `json:"notes"`
}

type transactionResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	AmountUnits   int64     `json:"amount_units"`
	Date          string    `json:"date"`
	Reference     string    `json:"reference,omitempty"`
	MemberID      string    `json:"member_id,omitempty"`
	SupplierID    string    `json:"supplier_id,omitempty"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Receipts      []string  `json:"receipts,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

func toTransactionResponse(tx core.FinancialTransaction) transactionResponse {
	return transactionResponse{
		ID:            tx.ID,
		Kind:          string(tx.Kind),
		Category:      tx.Category,
		Description:   tx.Description,
		AmountUnits:   tx.Amount.Units,
		Date:          tx.Date.Format(dateLayout),
		Reference:     tx.Reference,
		MemberID:      tx.MemberID,
		SupplierID:    tx.SupplierID,
		Status:        string(tx.Status),
		PaymentMethod: string(tx.PaymentMethod),
		CreatedBy:     tx.CreatedBy,
		CreatedAt:     tx.CreatedAt,
		UpdatedAt:     tx.UpdatedAt,
		Receipts:      tx.Receipts,
		Notes:         tx.Notes,
	}
}

func toTransactionResponses(txs []core.FinancialTransaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionResponse(tx)
	}
	return out
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if !s.decode(w, r, &req) {
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tx := core.FinancialTransaction{
		Kind:          core.TransactionKind(req.Kind),
		Category:      req.Category,
		Description:   req.Description,
		Amount:        core.Money{Units: req.AmountUnits},
		Date:          date,
		Reference:     req.Reference,
		MemberID:      req.MemberID,
		SupplierID:    req.SupplierID,
		Status:        core.TransactionStatus(req.Status),
		PaymentMethod: core.PaymentMethod(req.PaymentMethod),
		CreatedBy:     actingUser(r),
		Receipts:      req.Receipts,
		Notes:         req.Notes,
	}

	created, err := s.services.Ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.services.Ledger.GetTransaction(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if !s.decode(w, r, &req) {
		return
	}

	update := services.TransactionUpdate{
		Category:    req.Category,
		Description: req.Description,
		Reference:   req.Reference,
		Notes:       req.Notes,
	}
	if req.Kind != nil {
		kind := core.TransactionKind(*req.Kind)
		update.Kind = &kind
	}
	if req.AmountUnits != nil {
		amount := core.Money{Units: *req.AmountUnits}
		update.Amount = &amount
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			s.error(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		update.Date = &date
	}
	if req.Status != nil {
		status := core.TransactionStatus(*req.Status)
		update.Status = &status
	}
	if req.PaymentMethod != nil {
		method := core.PaymentMethod(*req.PaymentMethod)
		update.PaymentMethod = &method
	}

	tx, err := s.services.Ledger.UpdateTransaction(r.Context(), r.PathValue("id"), update)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Ledger.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	txs, err := s.services.Ledger.ListTransactions(r.Context(), filter)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toTransactionResponses(txs))
}

// handleExportTransactions streams the filtered ledger as CSV.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTransactionFilter(r)
	if err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := s.services.Ledger.ExportCSV(r.Context(), w, filter); err != nil {
		// Headers are already out; all we can do is log.
		s.logger.ErrorContext(r.Context(), "csv export failed",
			"request_id", requestID(r.Context()), "error", err)
	}
}
