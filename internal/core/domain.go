package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"caixinhas/internal/projection"
)

// EmergencyFundDescription is the fixed description given to emergency-fund caixinhas.
const EmergencyFundDescription = "Reserva de emergência"

// Limits shared by validation and request parsing.
const (
	MaxDescriptionLength = 200
	MaxMonthsToGoal      = 1200
)

// MaxAmount bounds any single monetary input.
var MaxAmount = projection.MaxAmount

type (
	// Saving is a caixinha: a named savings goal with a target, the amount
	// already put aside and the horizon to reach the target.
	Saving struct {
		ID              int64
		Description     string
		Goal            decimal.Decimal
		Accumulated     decimal.Decimal
		MonthsToGoal    int
		IsEmergencyFund bool
		ShouldBeExpense bool
		Priority        int
		Version         int64
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// ProjectionSnapshot is the stored outcome of projecting a caixinha with
	// the rates that were current at ComputedAt.
	ProjectionSnapshot struct {
		SavingID            int64
		Version             int64
		CDB                 decimal.Decimal
		Poupanca            decimal.Decimal
		MonthlyContribution decimal.Decimal
		CDIAnnual           decimal.Decimal
		SelicAnnual         decimal.Decimal
		TRMonthly           decimal.Decimal
		RatesSource         string
		ComputedAt          time.Time
	}

	// RateSnapshot records reference rates fetched at a point in time.
	RateSnapshot struct {
		ID            int64
		Source        string
		CDIAnnual     decimal.Decimal
		SelicAnnual   decimal.Decimal
		TRMonthly     decimal.Decimal
		ReferenceDate time.Time
		FetchedAt     time.Time
	}
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidGoal       = errors.New("goal must be greater than zero")
	ErrInvalidMonths     = errors.New("months to goal must be between 1 and 1200")
	ErrInvalidPriority   = errors.New("priority cannot be negative")
	ErrEmptyDescription  = errors.New("empty description")
	ErrDescriptionTooBig = errors.New("description too long (max 200 characters)")
)

// Normalize applies the emergency-fund naming rule and trims the description.
func (s *Saving) Normalize() {
	if s.IsEmergencyFund {
		s.Description = EmergencyFundDescription
		return
	}
	s.Description = strings.TrimSpace(s.Description)
}

func (s Saving) Validate() error {
	if !s.IsEmergencyFund && len(strings.TrimSpace(s.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(s.Description) > MaxDescriptionLength {
		return ErrDescriptionTooBig
	}
	if !projection.Representable(s.Goal) || !s.Goal.IsPositive() || s.Goal.GreaterThan(MaxAmount) {
		return ErrInvalidGoal
	}
	if !projection.Representable(s.Accumulated) || s.Accumulated.IsNegative() || s.Accumulated.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if s.MonthsToGoal < 1 || s.MonthsToGoal > MaxMonthsToGoal {
		return ErrInvalidMonths
	}
	if s.Priority < 0 {
		return ErrInvalidPriority
	}
	return nil
}

// Remaining returns how much is still missing to reach the goal, never negative.
func (s Saving) Remaining() decimal.Decimal {
	rem := s.Goal.Sub(s.Accumulated)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// IsValidationError reports whether err is one of the caixinha validation errors.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInvalidGoal, ErrInvalidMonths,
		ErrInvalidPriority, ErrEmptyDescription, ErrDescriptionTooBig,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
