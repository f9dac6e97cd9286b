// internal/pricing/pricing.go
package pricing

import (
	"fmt"
	"strings"

	"mesafacil-billing/internal/domain/billing"

	"github.com/shopspring/decimal"
)

// Price is a plan price in minor currency units (cents for COP and USD).
type Price struct {
	AmountMinorUnits int64
	Currency         string
}

// planPrices is the static price table: plan x billing period x currency.
// These mirror the published pricing page; there is no per-tenant pricing.
var planPrices = map[billing.PlanType]map[billing.BillingPeriod]map[string]int64{
	billing.PlanPro: {
		billing.PeriodMonthly: {"COP": 3_600_000, "USD": 999},
		billing.PeriodYearly:  {"COP": 36_000_000, "USD": 9_990},
	},
	billing.PlanPremium: {
		billing.PeriodMonthly: {"COP": 7_200_000, "USD": 1_999},
		billing.PeriodYearly:  {"COP": 72_000_000, "USD": 19_990},
	},
}

// matchTolerance is the absolute tolerance, in MAJOR currency units, used
// when inferring a plan from a paid amount. Settled COP charges can come in
// a few hundred pesos under list price after provider deductions, while the
// closest COP price points are tens of thousands of pesos apart; a band of
// 1000 whole pesos absorbs the former without ever straddling the latter.
// In minor units the band would be a fraction of a peso and real COP
// settlements would stop matching.
var matchTolerance = decimal.NewFromInt(1000)

// Lookup returns the price for a paid plan. The free plan has no price.
func Lookup(plan billing.PlanType, period billing.BillingPeriod, currency string) (Price, error) {
	currency = strings.ToUpper(currency)
	periods, ok := planPrices[plan]
	if !ok {
		return Price{}, fmt.Errorf("no price configured for plan %q", plan)
	}
	currencies, ok := periods[period]
	if !ok {
		return Price{}, fmt.Errorf("no price configured for plan %q period %q", plan, period)
	}
	amount, ok := currencies[currency]
	if !ok {
		return Price{}, fmt.Errorf("no %s price configured for plan %q period %q", currency, plan, period)
	}
	return Price{AmountMinorUnits: amount, Currency: currency}, nil
}

// MajorUnits converts an amount in minor units to major units.
func MajorUnits(amountMinorUnits int64) decimal.Decimal {
	return decimal.NewFromInt(amountMinorUnits).Div(decimal.NewFromInt(100))
}

// InferPlan guesses which paid plan an amount corresponds to, comparing in
// major units within a fixed absolute tolerance. Monthly prices are checked
// before yearly so the common case wins when ranges overlap.
func InferPlan(amountMinorUnits int64, currency string) (billing.PlanType, billing.BillingPeriod, bool) {
	currency = strings.ToUpper(currency)
	paid := MajorUnits(amountMinorUnits)

	for _, plan := range []billing.PlanType{billing.PlanPro, billing.PlanPremium} {
		for _, period := range []billing.BillingPeriod{billing.PeriodMonthly, billing.PeriodYearly} {
			price, err := Lookup(plan, period, currency)
			if err != nil {
				continue
			}
			listed := MajorUnits(price.AmountMinorUnits)
			if paid.Sub(listed).Abs().LessThanOrEqual(matchTolerance) {
				return plan, period, true
			}
		}
	}
	return "", "", false
}
