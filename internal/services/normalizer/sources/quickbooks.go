package sources

import (
	"pulseboard/internal/core/canonical"
	"pulseboard/internal/core/rollup"
	"pulseboard/internal/services/normalizer/domain"
)

// QuickBooksRow is one customer's invoices and credit memos for a day
type QuickBooksRow struct {
	TxnDate      string   `json:"TxnDate" validate:"required"`
	CustomerRef  string   `json:"CustomerRef" validate:"required"`
	CustomerName string   `json:"CustomerName"`
	TotalAmt     *float64 `json:"TotalAmt,omitempty"`
	Invoices     *float64 `json:"InvoiceCount,omitempty" validate:"omitempty,gte=0"`
	CreditMemos  *float64 `json:"CreditMemoCount,omitempty" validate:"omitempty,gte=0"`
	Expenses     *float64 `json:"ExpenseAmt,omitempty"`
}

func shapeQuickBooks(r *QuickBooksRow) Shaped {
	sh := Shaped{
		Type:     canonical.Customer,
		Name:     r.CustomerName,
		SourceID: r.CustomerRef,
		Date:     r.TxnDate,
		Metadata: map[string]any{"customer_ref": r.CustomerRef},
	}
	v := &sh.Values
	set(v, rollup.Revenue, r.TotalAmt)
	set(v, rollup.Orders, r.Invoices)
	set(v, rollup.Refunds, r.CreditMemos)
	set(v, rollup.Cost, r.Expenses)
	return sh
}

// NewQuickBooks returns the QuickBooks adapter
func NewQuickBooks() domain.Adapter {
	return newAdapter(canonical.QuickBooks, shapeQuickBooks, canonical.Customer)
}
