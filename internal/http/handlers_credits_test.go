package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"coopledger/internal/core"
	"coopledger/internal/services"
)

type fakeCredits struct {
	create    func(services.CreateCreditParams) (core.Credit, error)
	disburse  func(string, core.PaymentMethod, string) (core.Credit, error)
	repayment func(string, int, core.PaymentMethod, string) (core.Credit, error)
}

func (f *fakeCredits) CreateCredit(_ context.Context, params services.CreateCreditParams) (core.Credit, error) {
	return f.create(params)
}

func (f *fakeCredits) Approve(_ context.Context, id string) (core.Credit, error) {
	return core.Credit{ID: id, Status: core.CreditApproved}, nil
}

func (f *fakeCredits) Disburse(_ context.Context, id string, method core.PaymentMethod, actor string) (core.Credit, error) {
	return f.disburse(id, method, actor)
}

func (f *fakeCredits) MarkDefaulted(_ context.Context, id string) (core.Credit, error) {
	return core.Credit{ID: id, Status: core.CreditDefaulted}, nil
}

func (f *fakeCredits) RecordRepayment(_ context.Context, creditID string, installment int, method core.PaymentMethod, actor string) (core.Credit, error) {
	return f.repayment(creditID, installment, method, actor)
}

func (f *fakeCredits) GetCredit(_ context.Context, id string) (core.Credit, error) {
	return core.Credit{ID: id}, nil
}

func (f *fakeCredits) ListCredits(_ context.Context) ([]core.Credit, error) {
	return nil, nil
}

func TestCreateCredit(t *testing.T) {
	var captured services.CreateCreditParams
	credits := &fakeCredits{create: func(params services.CreateCreditParams) (core.Credit, error) {
		captured = params
		return core.Credit{
			ID:       "cr-1",
			MemberID: params.MemberID,
			Amount:   params.Amount,
			Duration: params.DurationMonths,
			Status:   core.CreditApplied,
			Schedule: make([]core.Installment, params.DurationMonths),
		}, nil
	}}
	s := newTestServer(t, Services{Credits: credits})

	body := `{
		"member_id": "m-1",
		"amount_units": 120000,
		"interest_rate": "5.5",
		"duration_months": 12,
		"purpose": "irrigation pump"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/credits", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !captured.InterestRate.Equal(decimal.RequireFromString("5.5")) {
		t.Errorf("InterestRate = %s", captured.InterestRate)
	}
	if captured.DurationMonths != 12 || captured.Amount.Units != 120000 {
		t.Errorf("unexpected params: %+v", captured)
	}

	var resp creditResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "cr-1" || len(resp.Schedule) != 12 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateCreditRejectsZeroDuration(t *testing.T) {
	s := newTestServer(t, Services{})
	body := `{"member_id":"m-1","amount_units":1000,"duration_months":0}`
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/credits", strings.NewReader(body)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestDisburseCreditForwardsActor(t *testing.T) {
	credits := &fakeCredits{disburse: func(id string, method core.PaymentMethod, actor string) (core.Credit, error) {
		if id != "cr-1" || method != core.BankTransfer || actor != "loan-officer" {
			t.Errorf("Disburse(%q, %q, %q)", id, method, actor)
		}
		return core.Credit{ID: id, Status: core.CreditDisbursed}, nil
	}}
	s := newTestServer(t, Services{Credits: credits})

	req := httptest.NewRequest(http.MethodPost, "/api/credits/cr-1/disburse",
		strings.NewReader(`{"payment_method":"bank_transfer"}`))
	req.Header.Set("X-Acting-User", "loan-officer")
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRecordRepayment(t *testing.T) {
	credits := &fakeCredits{repayment: func(creditID string, installment int, method core.PaymentMethod, _ string) (core.Credit, error) {
		if creditID != "cr-1" || installment != 2 || method != core.Cash {
			t.Errorf("RecordRepayment(%q, %d, %q)", creditID, installment, method)
		}
		return core.Credit{ID: creditID, Status: core.CreditDisbursed}, nil
	}}
	s := newTestServer(t, Services{Credits: credits})

	req := httptest.NewRequest(http.MethodPost, "/api/credits/cr-1/repayments",
		strings.NewReader(`{"installment":2,"payment_method":"cash"}`))
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}
