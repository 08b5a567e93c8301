// Package projection estimates how a savings amount grows under two competing
// yield models: a CDB indexed to CDI and the regulated savings account
// (poupança). Everything here is pure: no I/O, no clocks, no shared state.
package projection

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode selects how the input value enters the projection.
type Mode string

const (
	// LumpSum invests InitialValue once, at month zero.
	LumpSum Mode = "lump_sum"
	// RecurringMonthly splits InitialValue evenly across Months and
	// contributes one share at the start of every month.
	RecurringMonthly Mode = "recurring_monthly"
)

// MaxMonths bounds the horizon of a single projection (100 years).
const MaxMonths = 1200

// MaxAmount bounds InitialValue and Accumulated (R$ 100 bi).
var MaxAmount = decimal.New(1, 11)

// Amounts are parsed from untrusted text, so their representation is bounded
// before any arithmetic: a value like 1e-20000000 is cheap to parse but not to
// compare or round.
const (
	maxAmountExponent = 32
	maxAmountDigits   = 40
)

// Representable reports whether d has a coefficient and exponent small enough
// to be compared and rounded in constant time.
func Representable(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -maxAmountExponent && exp <= maxAmountExponent && d.NumDigits() <= maxAmountDigits
}

// checkAmount rejects unrepresentable, negative and oversized amounts.
func checkAmount(name string, d decimal.Decimal) error {
	switch {
	case !Representable(d):
		return fmt.Errorf("%w: %s out of range", ErrInvalidArgument, name)
	case d.IsNegative():
		return fmt.Errorf("%w: %s cannot be negative", ErrInvalidArgument, name)
	case d.GreaterThan(MaxAmount):
		return fmt.Errorf("%w: %s cannot exceed %s", ErrInvalidArgument, name, MaxAmount)
	}
	return nil
}

// internalScale is the number of fractional digits kept between compounding steps.
const internalScale = 16

var (
	// ErrInvalidArgument is returned for inputs or rates the projector refuses.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRateUnavailable is returned when reference rates cannot be obtained.
	ErrRateUnavailable = errors.New("reference rate unavailable")
)

// Input is a single projection request.
type Input struct {
	InitialValue decimal.Decimal
	Months       int
	Accumulated  decimal.Decimal
	Mode         Mode
}

// Result holds the projected balances at the end of the horizon.
// Values keep full internal precision; use Rounded for presentation.
type Result struct {
	CDB                 decimal.Decimal
	Poupanca            decimal.Decimal
	MonthlyContribution decimal.Decimal
}

// Rounded returns a copy rounded half-up to cents.
func (r Result) Rounded() Result {
	return Result{
		CDB:                 r.CDB.Round(2),
		Poupanca:            r.Poupanca.Round(2),
		MonthlyContribution: r.MonthlyContribution.Round(2),
	}
}

// MonthlyRates are the per-month yields of both models, as fractions (0.01 = 1%).
type MonthlyRates struct {
	CDB      decimal.Decimal
	Poupanca decimal.Decimal
}

// Validate rejects negative rates.
func (m MonthlyRates) Validate() error {
	if m.CDB.IsNegative() {
		return fmt.Errorf("%w: negative CDB monthly rate %s", ErrInvalidArgument, m.CDB)
	}
	if m.Poupanca.IsNegative() {
		return fmt.Errorf("%w: negative poupança monthly rate %s", ErrInvalidArgument, m.Poupanca)
	}
	return nil
}

// Validate checks the input against the projector's preconditions.
func (in Input) Validate() error {
	if in.Months < 1 || in.Months > MaxMonths {
		return fmt.Errorf("%w: months must be between 1 and %d, got %d", ErrInvalidArgument, MaxMonths, in.Months)
	}
	if err := checkAmount("initial value", in.InitialValue); err != nil {
		return err
	}
	if err := checkAmount("accumulated", in.Accumulated); err != nil {
		return err
	}
	switch in.Mode {
	case LumpSum, RecurringMonthly:
	default:
		return fmt.Errorf("%w: unknown contribution mode %q", ErrInvalidArgument, in.Mode)
	}
	return nil
}

// ShouldSimulate reports whether a form with the given goal and horizon is
// complete enough to be projected. Callers skip the projection otherwise.
func ShouldSimulate(goal decimal.Decimal, months int) bool {
	return goal.IsPositive() && months >= 1 && months <= MaxMonths
}

// Project computes the balance of both yield models at the end of the horizon.
func Project(in Input, rates MonthlyRates) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	if err := rates.Validate(); err != nil {
		return Result{}, err
	}

	var contribution decimal.Decimal
	if in.Mode == RecurringMonthly {
		contribution = in.InitialValue.DivRound(decimal.NewFromInt(int64(in.Months)), internalScale)
	}

	return Result{
		CDB:                 grow(in, contribution, rates.CDB),
		Poupanca:            grow(in, contribution, rates.Poupanca),
		MonthlyContribution: contribution,
	}, nil
}

// grow compounds the input month over month at rate r.
func grow(in Input, contribution, r decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(r)

	balance := in.Accumulated
	if in.Mode == LumpSum {
		balance = balance.Add(in.InitialValue)
	}
	for month := 0; month < in.Months; month++ {
		balance = balance.Add(contribution).Mul(factor).Round(internalScale)
	}
	return balance
}

// Projector binds a set of monthly rates for repeated projections.
type Projector struct {
	rates MonthlyRates
}

// NewProjector validates the rates once and returns a Projector using them.
func NewProjector(rates MonthlyRates) (*Projector, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Projector{rates: rates}, nil
}

// Project runs Project with the bound rates.
func (p *Projector) Project(in Input) (Result, error) {
	return Project(in, p.rates)
}

// Rates returns the bound monthly rates.
func (p *Projector) Rates() MonthlyRates {
	return p.rates
}
