package projection

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
	twelfth = one.DivRound(decimal.NewFromInt(12), internalScale+4)

	// PoupancaSelicThreshold is the Selic target above which poupança pays the fixed 0.5% a month.
	PoupancaSelicThreshold = decimal.RequireFromString("0.085")
	// PoupancaFixedMonthly is the fixed monthly yield paid while Selic is above the threshold.
	PoupancaFixedMonthly = decimal.RequireFromString("0.005")
	// PoupancaSelicShare is the share of Selic paid while Selic is at or below the threshold.
	PoupancaSelicShare = decimal.RequireFromString("0.70")
)

// Rates are the reference rates the monthly yields are derived from.
// Annual rates and TR are fractions (0.149 = 14.9%); CDBPercentOfCDI is a
// percentage (100 = 100% of CDI).
type Rates struct {
	CDIAnnual       decimal.Decimal `json:"cdi_annual"`
	SelicAnnual     decimal.Decimal `json:"selic_annual"`
	TRMonthly       decimal.Decimal `json:"tr_monthly"`
	CDBPercentOfCDI decimal.Decimal `json:"cdb_percent_of_cdi"`
	Source          string          `json:"source"`
	ReferenceDate   time.Time       `json:"reference_date"`
}

// Validate rejects negative rates and a non-positive CDB percentage.
func (r Rates) Validate() error {
	switch {
	case r.CDIAnnual.IsNegative():
		return fmt.Errorf("%w: negative CDI rate", ErrInvalidArgument)
	case r.SelicAnnual.IsNegative():
		return fmt.Errorf("%w: negative Selic rate", ErrInvalidArgument)
	case r.TRMonthly.IsNegative():
		return fmt.Errorf("%w: negative TR rate", ErrInvalidArgument)
	case !r.CDBPercentOfCDI.IsPositive():
		return fmt.Errorf("%w: CDB percentage of CDI must be positive", ErrInvalidArgument)
	}
	return nil
}

// Monthly derives the monthly yield of both models.
//
// CDB pays CDBPercentOfCDI of CDI. Poupança follows Lei 12.703/2012: 0.5% a
// month plus TR while Selic is above 8.5% a year, otherwise 70% of Selic
// (converted to a monthly rate) plus TR.
func (r Rates) Monthly() (MonthlyRates, error) {
	if err := r.Validate(); err != nil {
		return MonthlyRates{}, err
	}

	cdbAnnual := r.CDIAnnual.Mul(r.CDBPercentOfCDI).Div(hundred)
	cdb, err := AnnualToMonthly(cdbAnnual)
	if err != nil {
		return MonthlyRates{}, err
	}

	var poupanca decimal.Decimal
	if r.SelicAnnual.GreaterThan(PoupancaSelicThreshold) {
		poupanca = PoupancaFixedMonthly
	} else {
		poupanca, err = AnnualToMonthly(r.SelicAnnual.Mul(PoupancaSelicShare))
		if err != nil {
			return MonthlyRates{}, err
		}
	}
	poupanca = poupanca.Add(r.TRMonthly)

	return MonthlyRates{CDB: cdb, Poupanca: poupanca}, nil
}

// AnnualToMonthly converts an effective annual rate into the equivalent
// effective monthly rate: (1+a)^(1/12) - 1.
func AnnualToMonthly(annual decimal.Decimal) (decimal.Decimal, error) {
	if annual.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative annual rate", ErrInvalidArgument)
	}
	if annual.IsZero() {
		return decimal.Zero, nil
	}
	root, err := one.Add(annual).PowWithPrecision(twelfth, internalScale+4)
	if err != nil {
		return decimal.Zero, fmt.Errorf("monthly rate from %s: %w", annual, err)
	}
	return root.Sub(one).Round(internalScale), nil
}
