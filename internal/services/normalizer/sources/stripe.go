package sources

import (
	"strings"

	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/services/normalizer/domain"
)

// StripeRow is one day of charges grouped by product or subscription plan
// amounts are in the currency's minor unit, as Stripe reports them
type StripeRow struct {
	Object   string `json:"object" validate:"required,oneof=product subscription"`
	Date     string `json:"date" validate:"required"`
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3"`

	AmountPaid     *int64   `json:"amount_paid,omitempty"`
	AmountRefunded *int64   `json:"amount_refunded,omitempty"`
	Charges        *float64 `json:"charges,omitempty" validate:"omitempty,gte=0"`
	Refunds        *float64 `json:"refunds,omitempty" validate:"omitempty,gte=0"`
	NewCustomers   *float64 `json:"new_customers,omitempty" validate:"omitempty,gte=0"`
}

func shapeStripe(r *StripeRow) Shaped {
	sh := Shaped{
		Type:     canonical.Product,
		Name:     r.Name,
		SourceID: r.ID,
		Date:     r.Date,
		Metadata: map[string]any{"stripe_id": r.ID},
	}
	if r.Object == "subscription" {
		sh.Type = canonical.Subscription
	}

	v := &sh.Values
	set(v, rollup.Revenue, cents(r.AmountPaid))
	set(v, rollup.Orders, r.Charges)
	set(v, rollup.Refunds, r.Refunds)
	set(v, rollup.NewUsers, r.NewCustomers)
	if r.AmountRefunded != nil || r.Currency != "" {
		sh.Breakdown = map[string]any{"currency": strings.ToLower(r.Currency)}
		if p := cents(r.AmountRefunded); p != nil {
			sh.Breakdown["amount_refunded"] = *p
		}
	}
	return sh
}

// NewStripe returns the Stripe adapter
func NewStripe() domain.Adapter {
	return newAdapter(canonical.Stripe, shapeStripe, canonical.Product, canonical.Subscription)
}
