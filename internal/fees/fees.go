package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradejournal/internal/ports"
)

// Schedule holds the transaction-cost parameters for a single market.
// Rates are fractions of gross notional unless noted otherwise.
type Schedule struct {
	CommissionRate   float64 // Broker commission rate on gross
	MinCommission    float64 // Flat floor for the commission, in portfolio currency
	VATRate          float64 // VAT charged on the commission, not on gross
	ExchangeFeeRate  float64 // Exchange transaction fee rate on gross
	RegulatorFeeRate float64 // Regulator fee rate on gross
	ClearingFeeRate  float64 // Clearing house fee rate on gross
	SalesTaxRate     float64 // Stock transaction tax rate on gross, sell side only
}

// DefaultSchedule returns the standard PSE retail fee schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		CommissionRate:   0.0025,
		MinCommission:    20.0,
		VATRate:          0.12,
		ExchangeFeeRate:  0.00005,
		RegulatorFeeRate: 0.0001,
		ClearingFeeRate:  0.0001,
		SalesTaxRate:     0.006,
	}
}

// Breakdown itemizes the costs of a single buy or sell fill.
type Breakdown struct {
	Commission   float64 // Floor-clamped percentage commission
	VAT          float64 // Tax on the commission
	ExchangeFee  float64
	RegulatorFee float64
	ClearingFee  float64
	SalesTax     float64 // Non-zero only on sells
	TotalFees    float64 // Sum of all fee components
	NetAmount    float64 // Gross plus fees when buying, gross minus fees when selling
}

// Compute itemizes the transaction costs for a fill of the given gross
// notional value. The sales tax applies to sells only; that asymmetry is
// the market's rule, not a bug. Arithmetic runs on decimals so repeated
// percentage products do not accumulate binary rounding error.
func (s Schedule) Compute(gross float64, isBuy bool) (Breakdown, error) {
	if gross <= 0 {
		return Breakdown{}, fmt.Errorf("gross amount must be positive, got %v: %w", gross, ports.ErrInvalidArgument)
	}

	g := decimal.NewFromFloat(gross)

	commission := g.Mul(decimal.NewFromFloat(s.CommissionRate))
	minCommission := decimal.NewFromFloat(s.MinCommission)
	if commission.LessThan(minCommission) {
		commission = minCommission
	}
	vat := commission.Mul(decimal.NewFromFloat(s.VATRate))
	exchangeFee := g.Mul(decimal.NewFromFloat(s.ExchangeFeeRate))
	regulatorFee := g.Mul(decimal.NewFromFloat(s.RegulatorFeeRate))
	clearingFee := g.Mul(decimal.NewFromFloat(s.ClearingFeeRate))

	salesTax := decimal.Zero
	if !isBuy {
		salesTax = g.Mul(decimal.NewFromFloat(s.SalesTaxRate))
	}

	total := commission.Add(vat).Add(exchangeFee).Add(regulatorFee).Add(clearingFee).Add(salesTax)

	var net decimal.Decimal
	if isBuy {
		net = g.Add(total) // fees increase the cost of a buy
	} else {
		net = g.Sub(total) // fees reduce the proceeds of a sell
	}

	return Breakdown{
		Commission:   commission.InexactFloat64(),
		VAT:          vat.InexactFloat64(),
		ExchangeFee:  exchangeFee.InexactFloat64(),
		RegulatorFee: regulatorFee.InexactFloat64(),
		ClearingFee:  clearingFee.InexactFloat64(),
		SalesTax:     salesTax.InexactFloat64(),
		TotalFees:    total.InexactFloat64(),
		NetAmount:    net.InexactFloat64(),
	}, nil
}
