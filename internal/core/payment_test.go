package core

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testPayment(amount int64) CollectivePayment {
	return CollectivePayment{
		ID:            "pay-1",
		CooperativeID: "coop-1",
		Amount:        Money{Units: amount},
		Currency:      "XOF",
		PaymentMethod: MobileMoney,
		Status:        PaymentReceived,
		ReceivedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		SaleID:        "sale-1",
	}
}

func threeContributions() []Contribution {
	return []Contribution{
		{MemberID: "m-1", MemberName: "Awa", ProductID: "maize", Percentage: decimal.NewFromInt(50)},
		{MemberID: "m-2", MemberName: "Binta", ProductID: "maize", Percentage: decimal.NewFromInt(30)},
		{MemberID: "m-3", MemberName: "Chike", ProductID: "maize", Percentage: decimal.NewFromInt(20)},
	}
}

func TestBuildDistributionPlan_ThreeMembers(t *testing.T) {
	// 12,500,000 split 50/30/20 with a 1.5% mobile money fee.
	feeRate := decimal.NewFromFloat(0.015)
	plan, err := BuildDistributionPlan(testPayment(12_500_000), threeContributions(), feeRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan) != 3 {
		t.Fatalf("expected 3 distributions, got %d", len(plan))
	}

	wantGross := []int64{6_250_000, 3_750_000, 2_500_000}
	wantFee := []int64{93_750, 56_250, 37_500}
	wantNet := []int64{6_156_250, 3_693_750, 2_462_500}
	for i, d := range plan {
		if d.Gross.Units != wantGross[i] {
			t.Errorf("member %d gross: expected %d, got %d", i, wantGross[i], d.Gross.Units)
		}
		if d.Fee.Units != wantFee[i] {
			t.Errorf("member %d fee: expected %d, got %d", i, wantFee[i], d.Fee.Units)
		}
		if d.Net.Units != wantNet[i] {
			t.Errorf("member %d net: expected %d, got %d", i, wantNet[i], d.Net.Units)
		}
		if d.Status != DistributionPending {
			t.Errorf("member %d: expected pending, got %s", i, d.Status)
		}
	}

	var netSum, feeSum int64
	for _, d := range plan {
		netSum += d.Net.Units
		feeSum += d.Fee.Units
	}
	if netSum != 12_312_500 {
		t.Errorf("total net: expected 12312500, got %d", netSum)
	}
	if netSum != 12_500_000-feeSum {
		t.Errorf("total net must equal amount minus total fees, got %d vs %d", netSum, 12_500_000-feeSum)
	}
}

func TestBuildDistributionPlan_RoundingRemainder(t *testing.T) {
	// 100 units at one third each cannot split evenly; the last member
	// absorbs the remainder and the grosses still sum exactly.
	third := decimal.NewFromFloat(33.33)
	contributions := []Contribution{
		{MemberID: "m-1", Percentage: third},
		{MemberID: "m-2", Percentage: third},
		{MemberID: "m-3", Percentage: decimal.NewFromFloat(33.34)},
	}

	plan, err := BuildDistributionPlan(testPayment(100), contributions, decimal.Zero)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum int64
	for _, d := range plan {
		sum += d.Gross.Units
	}
	if sum != 100 {
		t.Fatalf("grosses must sum exactly to the amount, got %d", sum)
	}
	if plan[0].Gross.Units != 33 || plan[1].Gross.Units != 33 || plan[2].Gross.Units != 34 {
		t.Errorf("expected 33/33/34, got %d/%d/%d",
			plan[0].Gross.Units, plan[1].Gross.Units, plan[2].Gross.Units)
	}
}

func TestBuildDistributionPlan_Idempotent(t *testing.T) {
	feeRate := decimal.NewFromFloat(0.015)
	first, err := BuildDistributionPlan(testPayment(12_500_000), threeContributions(), feeRate)
	if err != nil {
		t.Fatalf("first plan: %v", err)
	}
	second, err := BuildDistributionPlan(testPayment(12_500_000), threeContributions(), feeRate)
	if err != nil {
		t.Fatalf("second plan: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("re-running the plan with identical input must produce an identical plan")
	}
}

func TestBuildDistributionPlan_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		contributions []Contribution
		want          error
	}{
		{"empty list", nil, ErrNoContributions},
		{
			"percentages under 100",
			[]Contribution{
				{MemberID: "m-1", Percentage: decimal.NewFromInt(50)},
				{MemberID: "m-2", Percentage: decimal.NewFromInt(40)},
			},
			ErrPercentagesSum,
		},
		{
			"percentages over 100",
			[]Contribution{
				{MemberID: "m-1", Percentage: decimal.NewFromInt(70)},
				{MemberID: "m-2", Percentage: decimal.NewFromInt(40)},
			},
			ErrPercentagesSum,
		},
		{
			"zero percentage",
			[]Contribution{
				{MemberID: "m-1", Percentage: decimal.NewFromInt(100)},
				{MemberID: "m-2", Percentage: decimal.Zero},
			},
			ErrInvalidPercentage,
		},
		{
			"missing member id",
			[]Contribution{{Percentage: decimal.NewFromInt(100)}},
			ErrNoContributions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildDistributionPlan(testPayment(1000), tt.contributions, decimal.Zero)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReconcilePlan(t *testing.T) {
	plan := []MemberDistribution{
		{Gross: Money{Units: 60}, Fee: Money{Units: 6}, Net: Money{Units: 54}},
		{Gross: Money{Units: 40}, Fee: Money{Units: 4}, Net: Money{Units: 36}},
	}
	if err := ReconcilePlan(Money{Units: 100}, plan); err != nil {
		t.Errorf("balanced plan must reconcile, got %v", err)
	}

	if err := ReconcilePlan(Money{Units: 101}, plan); !errors.Is(err, ErrConsistency) {
		t.Errorf("gross mismatch must be a consistency error, got %v", err)
	}

	broken := []MemberDistribution{
		{Gross: Money{Units: 100}, Fee: Money{Units: 5}, Net: Money{Units: 96}},
	}
	if err := ReconcilePlan(Money{Units: 100}, broken); !errors.Is(err, ErrConsistency) {
		t.Errorf("net plus fee mismatch must be a consistency error, got %v", err)
	}
}

func TestValidatePaymentTransition(t *testing.T) {
	tests := []struct {
		name string
		from CollectivePaymentStatus
		to   CollectivePaymentStatus
		ok   bool
	}{
		{"pending to received", PaymentPending, PaymentReceived, true},
		{"received to redistributed", PaymentReceived, PaymentRedistributed, true},
		{"received to failed", PaymentReceived, PaymentFailed, true},
		{"failed recovers to redistributed", PaymentFailed, PaymentRedistributed, true},
		{"redistributed is terminal", PaymentRedistributed, PaymentFailed, false},
		{"received back to pending", PaymentReceived, PaymentPending, false},
		{"pending straight to redistributed", PaymentPending, PaymentRedistributed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePaymentTransition(tt.from, tt.to)
			if tt.ok && err != nil {
				t.Errorf("expected transition to be allowed, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}
