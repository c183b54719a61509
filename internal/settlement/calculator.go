// Package settlement computes the final charge for an emergency from the
// immutable acceptance-time snapshot plus caller-supplied adjustments.
// All arithmetic is in integer minor units (internal/money).
package settlement

import (
	"strings"

	"github.com/example/roadside-dispatch/internal/faults"
	"github.com/example/roadside-dispatch/internal/models"
	"github.com/example/roadside-dispatch/internal/money"
)

// CancelOption selects the cancellation fee tier.
type CancelOption string

const (
	// OptionIncomplete: work started but not finished; distance fee plus
	// half the acceptance-time labor estimate.
	OptionIncomplete CancelOption = "incomplete"
	// OptionDiagnoseOnly: only an assessment was performed; distance fee
	// only. A zero distance fee is valid input, not an error.
	OptionDiagnoseOnly CancelOption = "diagnose_only"
)

// Invoice is the provider-supplied completion input.
type Invoice struct {
	LaborCost money.Amount
	Extras    []models.ExtraItem
}

// Calculator applies the two settlement modes. Zero-fee categories
// (e.g. fuel delivery) always cancel at zero.
type Calculator struct {
	zeroFee map[string]struct{}
}

func NewCalculator(zeroFeeCategories []string) Calculator {
	m := make(map[string]struct{}, len(zeroFeeCategories))
	for _, c := range zeroFeeCategories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			m[c] = struct{}{}
		}
	}
	return Calculator{zeroFee: m}
}

func (c Calculator) ZeroFeeCategory(category string) bool {
	_, ok := c.zeroFee[strings.ToLower(strings.TrimSpace(category))]
	return ok
}

// CompletionTotal computes the full invoice:
// distance fee + labor + sum(qty * unit price) over extras.
// Extras are validated before anything is computed; the returned
// ValidationError names the offending item.
func (c Calculator) CompletionTotal(status models.EmergencyStatus, snap *models.SettlementSnapshot, inv Invoice) (money.Amount, error) {
	if status != models.StatusInProcess {
		return 0, faults.Conflict("emergency", snap.EmergencyID, "cannot settle, not in process")
	}
	if inv.LaborCost < 0 {
		return 0, faults.Validation("labor_cost", "must be non-negative")
	}
	for i, it := range inv.Extras {
		if strings.TrimSpace(it.Name) == "" {
			return 0, faults.Validationf("extras", "item %d has an empty name", i)
		}
		if it.UnitPrice < 0 {
			return 0, faults.Validationf("extras", "item %q has a negative unit price", it.Name)
		}
		if it.Qty < 0 {
			return 0, faults.Validationf("extras", "item %q has a negative quantity", it.Name)
		}
	}
	total := snap.DistanceFee + inv.LaborCost
	for _, it := range inv.Extras {
		qty := it.Qty
		if qty == 0 {
			qty = 1
		}
		total += it.UnitPrice.MulQty(qty)
	}
	return total, nil
}

// CancellationTotal computes the tiered cancellation fee. The labor base
// is the snapshot's acceptance-time estimate, never a post-hoc edit.
func (c Calculator) CancellationTotal(status models.EmergencyStatus, snap *models.SettlementSnapshot, category string, opt CancelOption) (money.Amount, error) {
	if status != models.StatusInProcess {
		return 0, faults.Conflict("emergency", snap.EmergencyID, "cannot settle, not in process")
	}
	if c.ZeroFeeCategory(category) {
		return 0, nil
	}
	switch opt {
	case OptionIncomplete:
		return snap.DistanceFee + snap.LaborCost.Half(), nil
	case OptionDiagnoseOnly:
		return snap.DistanceFee, nil
	case "":
		return 0, faults.Validation("option", "cancellation option is required")
	default:
		return 0, faults.Validationf("option", "unknown cancellation option %q", string(opt))
	}
}
