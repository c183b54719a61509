package settlement

import (
	"testing"

	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/models"
	"github.com/example/roadside-dispatch/internal/money"
)

var calc = NewCalculator([]string{"fuel_delivery"})

func snap(fee, labor money.Amount) *models.SettlementSnapshot {
	return &models.SettlementSnapshot{EmergencyID: "e1", ProviderID: "p1", DistanceFee: fee, LaborCost: labor}
}

func TestCompletionInvoice(t *testing.T) {
	// 150 + 300 + 2*50 + 1*75 = 625
	inv := Invoice{
		LaborCost: 30000,
		Extras: []models.ExtraItem{
			{Name: "coolant", Qty: 2, UnitPrice: 5000},
			{Name: "tow strap", Qty: 1, UnitPrice: 7500},
		},
	}
	total, err := calc.CompletionTotal(models.StatusInProcess, snap(15000, 30000), inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 62500 {
		t.Fatalf("expected 62500, got %d", total)
	}
	if total.String() != "625.00" {
		t.Fatalf("expected 625.00 at the boundary, got %s", total.String())
	}
}

func TestCompletionOrderIndependent(t *testing.T) {
	a := []models.ExtraItem{
		{Name: "coolant", Qty: 2, UnitPrice: 5000},
		{Name: "tow strap", Qty: 1, UnitPrice: 7500},
		{Name: "fuse", UnitPrice: 199},
	}
	b := []models.ExtraItem{a[2], a[0], a[1]}
	t1, err := calc.CompletionTotal(models.StatusInProcess, snap(15000, 0), Invoice{LaborCost: 30000, Extras: a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t2, err := calc.CompletionTotal(models.StatusInProcess, snap(15000, 0), Invoice{LaborCost: 30000, Extras: b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if t1 != t2 {
		t.Fatalf("permuting extras changed the total: %d vs %d", t1, t2)
	}
}

func TestCompletionQtyDefaultsToOne(t *testing.T) {
	total, err := calc.CompletionTotal(models.StatusInProcess, snap(0, 0),
		Invoice{Extras: []models.ExtraItem{{Name: "bulb", UnitPrice: 500}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 500 {
		t.Fatalf("expected 500, got %d", total)
	}
}

func TestCompletionRejectsBadItems(t *testing.T) {
	cases := []Invoice{
		{Extras: []models.ExtraItem{{Name: "", UnitPrice: 100}}},
		{Extras: []models.ExtraItem{{Name: "oil", UnitPrice: -1}}},
		{Extras: []models.ExtraItem{{Name: "oil", Qty: -2, UnitPrice: 100}}},
		{LaborCost: -1},
	}
	for i, inv := range cases {
		if _, err := calc.CompletionTotal(models.StatusInProcess, snap(100, 0), inv); !faults.IsValidation(err) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
	}
}

func TestCompletionRejectsWrongState(t *testing.T) {
	if _, err := calc.CompletionTotal(models.StatusWaiting, snap(100, 0), Invoice{}); !faults.IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCancellationTiers(t *testing.T) {
	s := snap(15000, 30000)
	// incomplete: 150 + 300/2 = 300
	total, err := calc.CancellationTotal(models.StatusInProcess, s, "flat_tire", OptionIncomplete)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 30000 {
		t.Fatalf("expected 30000, got %d", total)
	}
	// diagnose only: 150
	total, err = calc.CancellationTotal(models.StatusInProcess, s, "flat_tire", OptionDiagnoseOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 15000 {
		t.Fatalf("expected 15000, got %d", total)
	}
}

func TestDiagnoseNeverExceedsIncomplete(t *testing.T) {
	fees := []money.Amount{0, 1, 15000, 99999}
	labors := []money.Amount{0, 1, 30000, 12345}
	for _, f := range fees {
		for _, l := range labors {
			s := snap(f, l)
			inc, err := calc.CancellationTotal(models.StatusInProcess, s, "battery", OptionIncomplete)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			diag, err := calc.CancellationTotal(models.StatusInProcess, s, "battery", OptionDiagnoseOnly)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diag > inc {
				t.Fatalf("diagnose %d exceeds incomplete %d for fee=%d labor=%d", diag, inc, f, l)
			}
		}
	}
}

func TestZeroFeeCategoryAlwaysZero(t *testing.T) {
	s := snap(15000, 30000)
	for _, opt := range []CancelOption{OptionIncomplete, OptionDiagnoseOnly, ""} {
		total, err := calc.CancellationTotal(models.StatusInProcess, s, "fuel_delivery", opt)
		if err != nil {
			t.Fatalf("zero-fee cancellation must not fail: %v", err)
		}
		if total != 0 {
			t.Fatalf("expected 0 for zero-fee category, got %d", total)
		}
	}
}

func TestZeroDistanceFeeIsValid(t *testing.T) {
	total, err := calc.CancellationTotal(models.StatusInProcess, snap(0, 30000), "battery", OptionDiagnoseOnly)
	if err != nil {
		t.Fatalf("zero distance fee must be valid input: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0, got %d", total)
	}
}

func TestCancellationOptionRequired(t *testing.T) {
	if _, err := calc.CancellationTotal(models.StatusInProcess, snap(100, 0), "battery", ""); !faults.IsValidation(err) {
		t.Fatalf("expected ValidationError for missing option, got %v", err)
	}
	if _, err := calc.CancellationTotal(models.StatusInProcess, snap(100, 0), "battery", "partial"); !faults.IsValidation(err) {
		t.Fatalf("expected ValidationError for unknown option, got %v", err)
	}
}

func TestCancellationRejectsWrongState(t *testing.T) {
	if _, err := calc.CancellationTotal(models.StatusCompleted, snap(100, 0), "battery", OptionDiagnoseOnly); !faults.IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}
