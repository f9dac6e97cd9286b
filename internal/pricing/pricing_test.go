// internal/pricing/pricing_test.go
package pricing

import (
	"testing"

	"mesafacil-billing/internal/domain/billing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	price, err := Lookup(billing.PlanPro, billing.PeriodMonthly, "cop")
	require.NoError(t, err)
	assert.Equal(t, int64(3_600_000), price.AmountMinorUnits)
	assert.Equal(t, "COP", price.Currency)

	price, err = Lookup(billing.PlanPremium, billing.PeriodYearly, "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(19_990), price.AmountMinorUnits)

	_, err = Lookup(billing.PlanFree, billing.PeriodMonthly, "COP")
	assert.Error(t, err, "free plan has no price")

	_, err = Lookup(billing.PlanPro, billing.PeriodMonthly, "EUR")
	assert.Error(t, err)
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, "36000", MajorUnits(3_600_000).String())
	assert.Equal(t, "9.99", MajorUnits(999).String())
}

func TestInferPlan(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		currency   string
		wantPlan   billing.PlanType
		wantPeriod billing.BillingPeriod
		wantOK     bool
	}{
		{"exact pro monthly COP", 3_600_000, "COP", billing.PlanPro, billing.PeriodMonthly, true},
		{"pro monthly within tolerance below", 3_590_000, "COP", billing.PlanPro, billing.PeriodMonthly, true},
		{"pro monthly within tolerance above", 3_699_900, "COP", billing.PlanPro, billing.PeriodMonthly, true},
		{"pro monthly at tolerance edge", 3_500_000, "COP", billing.PlanPro, billing.PeriodMonthly, true},
		{"outside tolerance", 3_450_000, "COP", "", "", false},
		{"exact premium yearly COP", 72_000_000, "COP", billing.PlanPremium, billing.PeriodYearly, true},
		{"exact pro monthly USD", 999, "USD", billing.PlanPro, billing.PeriodMonthly, true},
		{"unknown currency", 3_600_000, "EUR", "", "", false},
		{"zero amount", 0, "COP", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, period, ok := InferPlan(tt.amount, tt.currency)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantPlan, plan)
				assert.Equal(t, tt.wantPeriod, period)
			}
		})
	}
}
