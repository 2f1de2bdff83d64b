package http

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"coopledger/internal/core"
	"coopledger/internal/services"
)

type lineItemPayload struct {
	Product        string          `json:"product" validate:"required"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPriceUnits int64           `json:"unit_price_units"`
	TotalUnits     int64           `json:"total_units"`
}

type registerPaymentRequest struct {
	CooperativeID string            `json:"cooperative_id" validate:"required"`
	AmountUnits   int64             `json:"amount_units" validate:"required,gt=0"`
	Currency      string            `json:"currency" validate:"required,len=3"`
	PaymentMethod string            `json:"payment_method" validate:"required,oneof=cash mobile_money bank_transfer check"`
	SaleID        string            `json:"sale_id"`
	Buyer         string            `json:"buyer"`
	InvoiceNumber string            `json:"invoice_number"`
	Items         []lineItemPayload `json:"items" validate:"omitempty,dive"`
}

type contributionPayload struct {
	MemberID   string          `json:"member_id" validate:"required"`
	MemberName string          `json:"member_name"`
	ProductID  string          `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	Percentage decimal.Decimal `json:"percentage"`
}

type contributionsRequest struct {
	Contributions []contributionPayload `json:"contributions" validate:"required,min=1,dive"`
}

type paymentResponse struct {
	ID              string     `json:"id"`
	CooperativeID   string     `json:"cooperative_id"`
	AmountUnits     int64      `json:"amount_units"`
	Currency        string     `json:"currency"`
	PaymentMethod   string     `json:"payment_method"`
	Status          string     `json:"status"`
	ReceivedAt      time.Time  `json:"received_at"`
	RedistributedAt *time.Time `json:"redistributed_at,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	ConfirmedBy     string     `json:"confirmed_by,omitempty"`
	SaleID          string     `json:"sale_id,omitempty"`
	Buyer           string     `json:"buyer,omitempty"`
	InvoiceNumber   string     `json:"invoice_number,omitempty"`
}

type distributionResponse struct {
	MemberID      string     `json:"member_id"`
	MemberName    string     `json:"member_name,omitempty"`
	GrossUnits    int64      `json:"gross_units"`
	FeeUnits      int64      `json:"fee_units"`
	NetUnits      int64      `json:"net_units"`
	Status        string     `json:"status"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	ReceiptRef    string     `json:"receipt_ref,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

type paymentStatusResponse struct {
	Payment       paymentResponse        `json:"payment"`
	Distributions []distributionResponse `json:"distributions"`
}

type processResponse struct {
	Payment   paymentResponse `json:"payment"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
	Skipped   int             `json:"skipped"`
}

func toPaymentResponse(p core.CollectivePayment) paymentResponse {
	return paymentResponse{
		ID:              p.ID,
		CooperativeID:   p.CooperativeID,
		AmountUnits:     p.Amount.Units,
		Currency:        p.Currency,
		PaymentMethod:   string(p.PaymentMethod),
		Status:          string(p.Status),
		ReceivedAt:      p.ReceivedAt,
		RedistributedAt: p.RedistributedAt,
		ConfirmedAt:     p.ConfirmedAt,
		ConfirmedBy:     p.ConfirmedBy,
		SaleID:          p.SaleID,
		Buyer:           p.Buyer,
		InvoiceNumber:   p.InvoiceNumber,
	}
}

func toDistributionResponses(plan []core.MemberDistribution) []distributionResponse {
	out := make([]distributionResponse, len(plan))
	for i, d := range plan {
		out[i] = distributionResponse{
			MemberID:      d.MemberID,
			MemberName:    d.MemberName,
			GrossUnits:    d.Gross.Units,
			FeeUnits:      d.Fee.Units,
			NetUnits:      d.Net.Units,
			Status:        string(d.Status),
			PaidAt:        d.PaidAt,
			ReceiptRef:    d.ReceiptRef,
			FailureReason: d.FailureReason,
		}
	}
	return out
}

func (r registerPaymentRequest) toParams() services.RegisterPaymentParams {
	items := make([]core.LineItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = core.LineItem{
			Product:   it.Product,
			Quantity:  it.Quantity,
			UnitPrice: core.Money{Units: it.UnitPriceUnits},
			Total:     core.Money{Units: it.TotalUnits},
		}
	}
	return services.RegisterPaymentParams{
		CooperativeID: r.CooperativeID,
		Amount:        core.Money{Units: r.AmountUnits},
		Currency:      r.Currency,
		PaymentMethod: core.PaymentMethod(r.PaymentMethod),
		SaleID:        r.SaleID,
		Buyer:         r.Buyer,
		InvoiceNumber: r.InvoiceNumber,
		Items:         items,
	}
}

func toContributions(payloads []contributionPayload) []core.Contribution {
	out := make([]core.Contribution, len(payloads))
	for i, c := range payloads {
		out[i] = core.Contribution{
			MemberID:   c.MemberID,
			MemberName: c.MemberName,
			ProductID:  c.ProductID,
			Quantity:   c.Quantity,
			Percentage: c.Percentage,
		}
	}
	return out
}

func (s *Server) handleRegisterPayment(w http.ResponseWriter, r *http.Request) {
	var req registerPaymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.services.Redistribution.RegisterPayment(r.Context(), req.toParams())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusCreated, toPaymentResponse(p))
}

func (s *Server) handleRecordExpectedPayment(w http.ResponseWriter, r *http.Request) {
	var req registerPaymentRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.services.Redistribution.RecordExpectedPayment(r.Context(), req.toParams())
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusCreated, toPaymentResponse(p))
}

func (s *Server) handleMarkReceived(w http.ResponseWriter, r *http.Request) {
	p, err := s.services.Redistribution.MarkReceived(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toPaymentResponse(p))
}

// handleReviewPayment computes a distribution plan without persisting
// it, so the operator can inspect the split before confirming.
func (s *Server) handleReviewPayment(w http.ResponseWriter, r *http.Request) {
	var req contributionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	plan, err := s.services.Redistribution.Review(r.Context(), r.PathValue("id"), toContributions(req.Contributions))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toDistributionResponses(plan))
}

func (s *Server) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req contributionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	plan, err := s.services.Redistribution.Confirm(r.Context(), r.PathValue("id"),
		toContributions(req.Contributions), actingUser(r))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toDistributionResponses(plan))
}

func (s *Server) handleCancelConfirmation(w http.ResponseWriter, r *http.Request) {
	p, err := s.services.Redistribution.CancelConfirmation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, toPaymentResponse(p))
}

func (s *Server) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	result, err := s.services.Redistribution.Process(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, processResponse{
		Payment:   toPaymentResponse(result.Payment),
		Completed: result.Completed,
		Failed:    result.Failed,
		Skipped:   result.Skipped,
	})
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	p, plan, err := s.services.Redistribution.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.json(w, http.StatusOK, paymentStatusResponse{
		Payment:       toPaymentResponse(p),
		Distributions: toDistributionResponses(plan),
	})
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	statuses, err := parsePaymentStatuses(r)
	if err != nil {
		s.error(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	payments, err := s.services.Redistribution.ListPayments(r.Context(), statuses...)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	out := make([]paymentResponse, len(payments))
	for i, p := range payments {
		out[i] = toPaymentResponse(p)
	}
	s.json(w, http.StatusOK, out)
}
