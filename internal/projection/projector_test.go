package projection

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRates = MonthlyRates{
	CDB:      decimal.RequireFromString("0.0116"),
	Poupanca: decimal.RequireFromString("0.0067"),
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProjectZeroInputsYieldZero(t *testing.T) {
	for _, mode := range []Mode{LumpSum, RecurringMonthly} {
		res, err := Project(Input{Months: 24, Mode: mode}, testRates)
		require.NoError(t, err)
		assert.True(t, res.CDB.IsZero(), "mode %s cdb=%s", mode, res.CDB)
		assert.True(t, res.Poupanca.IsZero(), "mode %s poupanca=%s", mode, res.Poupanca)
	}
}

func TestProjectLumpSumSingleMonth(t *testing.T) {
	res, err := Project(Input{InitialValue: d("1000"), Months: 1, Mode: LumpSum}, testRates)
	require.NoError(t, err)

	wantCDB := d("1000").Mul(one.Add(testRates.CDB))
	wantPoup := d("1000").Mul(one.Add(testRates.Poupanca))
	assert.True(t, res.CDB.Equal(wantCDB), "cdb=%s want %s", res.CDB, wantCDB)
	assert.True(t, res.Poupanca.Equal(wantPoup), "poupanca=%s want %s", res.Poupanca, wantPoup)
	assert.True(t, res.MonthlyContribution.IsZero())
}

func TestProjectLumpSumCompounds(t *testing.T) {
	rates := MonthlyRates{CDB: d("0.01"), Poupanca: d("0.005")}
	res, err := Project(Input{InitialValue: d("1000"), Months: 12, Mode: LumpSum}, rates)
	require.NoError(t, err)

	assert.Equal(t, "1126.83", res.Rounded().CDB.StringFixed(2))
	assert.Equal(t, "1061.68", res.Rounded().Poupanca.StringFixed(2))
}

func TestProjectRecurringContributions(t *testing.T) {
	res, err := Project(Input{InitialValue: d("1200"), Months: 12, Mode: RecurringMonthly}, testRates)
	require.NoError(t, err)

	assert.True(t, res.MonthlyContribution.Equal(d("100")))
	assert.True(t, res.CDB.GreaterThan(res.Poupanca), "cdb=%s poupanca=%s", res.CDB, res.Poupanca)
	assert.True(t, res.Poupanca.GreaterThan(d("1200")))

	// 100 at the start of each month, 1% a month: 100 * sum_{k=1..12} 1.01^k
	flat := MonthlyRates{CDB: d("0.01"), Poupanca: decimal.Zero}
	res, err = Project(Input{InitialValue: d("1200"), Months: 12, Mode: RecurringMonthly}, flat)
	require.NoError(t, err)
	assert.Equal(t, "1280.93", res.Rounded().CDB.StringFixed(2))
	assert.Equal(t, "1200.00", res.Rounded().Poupanca.StringFixed(2))
}

func TestProjectModesAgreeOnSingleMonth(t *testing.T) {
	in := Input{InitialValue: d("750.35"), Months: 1, Accumulated: d("120")}
	in.Mode = LumpSum
	lump, err := Project(in, testRates)
	require.NoError(t, err)
	in.Mode = RecurringMonthly
	rec, err := Project(in, testRates)
	require.NoError(t, err)

	assert.True(t, lump.CDB.Equal(rec.CDB))
	assert.True(t, lump.Poupanca.Equal(rec.Poupanca))
}

func TestProjectAccumulatedEarnsYield(t *testing.T) {
	without, err := Project(Input{InitialValue: d("1200"), Months: 12, Mode: RecurringMonthly}, testRates)
	require.NoError(t, err)
	with, err := Project(Input{InitialValue: d("1200"), Months: 12, Accumulated: d("500"), Mode: RecurringMonthly}, testRates)
	require.NoError(t, err)

	grown := d("500").Mul(one.Add(testRates.CDB).Pow(decimal.NewFromInt(12)))
	assert.True(t, with.CDB.Sub(without.CDB).Sub(grown).Abs().LessThan(d("0.000001")))
}

func TestProjectMonotonicInMonths(t *testing.T) {
	for _, mode := range []Mode{LumpSum, RecurringMonthly} {
		prev := Result{}
		for months := 1; months <= 120; months++ {
			res, err := Project(Input{InitialValue: d("1000"), Months: months, Accumulated: d("50"), Mode: mode}, testRates)
			require.NoError(t, err)
			require.True(t, res.CDB.GreaterThanOrEqual(prev.CDB), "mode %s months %d", mode, months)
			require.True(t, res.Poupanca.GreaterThanOrEqual(prev.Poupanca), "mode %s months %d", mode, months)
			prev = res
		}
	}
}

func TestProjectMonotonicInAmounts(t *testing.T) {
	base := Input{InitialValue: d("1000"), Months: 18, Accumulated: d("100"), Mode: RecurringMonthly}
	ref, err := Project(base, testRates)
	require.NoError(t, err)

	more := base
	more.InitialValue = d("1000.01")
	res, err := Project(more, testRates)
	require.NoError(t, err)
	assert.True(t, res.CDB.GreaterThan(ref.CDB))

	more = base
	more.Accumulated = d("100.01")
	res, err = Project(more, testRates)
	require.NoError(t, err)
	assert.True(t, res.Poupanca.GreaterThan(ref.Poupanca))
}

func TestProjectIdempotent(t *testing.T) {
	in := Input{InitialValue: d("987.65"), Months: 37, Accumulated: d("12.34"), Mode: RecurringMonthly}
	a, err := Project(in, testRates)
	require.NoError(t, err)
	b, err := Project(in, testRates)
	require.NoError(t, err)
	assert.Equal(t, a.CDB.String(), b.CDB.String())
	assert.Equal(t, a.Poupanca.String(), b.Poupanca.String())
}

func TestProjectInvalidArguments(t *testing.T) {
	cases := map[string]Input{
		"negative initial":      {InitialValue: d("-1"), Months: 1, Mode: LumpSum},
		"zero months":           {InitialValue: d("100"), Months: 0, Mode: LumpSum},
		"too many months":       {InitialValue: d("100"), Months: MaxMonths + 1, Mode: LumpSum},
		"negative accumulated":  {InitialValue: d("100"), Months: 1, Accumulated: d("-0.01"), Mode: RecurringMonthly},
		"unknown mode":          {InitialValue: d("100"), Months: 1, Mode: "weekly"},
		"initial above max":     {InitialValue: MaxAmount.Add(d("0.01")), Months: 1, Mode: LumpSum},
		"accumulated above max": {InitialValue: d("100"), Months: 1, Accumulated: d("1e12"), Mode: RecurringMonthly},
		"huge exponent":         {InitialValue: d("1e5000000"), Months: MaxMonths, Mode: LumpSum},
		"tiny exponent":         {InitialValue: d("1e-20000000"), Months: 1, Mode: LumpSum},
		"tiny accumulated":      {InitialValue: d("1"), Months: 1, Accumulated: d("1e-20000000"), Mode: RecurringMonthly},
		"too many digits":       {InitialValue: d("1." + strings.Repeat("1", 50)), Months: 1, Mode: LumpSum},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Project(in, testRates)
			require.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	_, err := Project(Input{InitialValue: d("1"), Months: 1, Mode: LumpSum}, MonthlyRates{CDB: d("-0.01")})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRepresentable(t *testing.T) {
	assert.True(t, Representable(d("1234.56")))
	assert.True(t, Representable(MaxAmount))
	assert.True(t, Representable(decimal.Zero))
	assert.False(t, Representable(d("1e5000000")))
	assert.False(t, Representable(d("1e-20000000")))
	assert.False(t, Representable(d(strings.Repeat("9", 41))))
}

func TestProjectAtMaxAmount(t *testing.T) {
	res, err := Project(Input{InitialValue: MaxAmount, Months: MaxMonths, Accumulated: MaxAmount, Mode: RecurringMonthly}, testRates)
	require.NoError(t, err)
	assert.True(t, res.CDB.GreaterThan(MaxAmount))
}

func TestProjectorBindsRates(t *testing.T) {
	p, err := NewProjector(testRates)
	require.NoError(t, err)
	assert.Equal(t, testRates, p.Rates())

	res, err := p.Project(Input{InitialValue: d("1000"), Months: 1, Mode: LumpSum})
	require.NoError(t, err)
	assert.True(t, res.CDB.Equal(d("1011.6")))

	_, err = NewProjector(MonthlyRates{Poupanca: d("-1")})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestShouldSimulate(t *testing.T) {
	assert.True(t, ShouldSimulate(d("10"), 1))
	assert.False(t, ShouldSimulate(decimal.Zero, 12))
	assert.False(t, ShouldSimulate(d("10"), 0))
	assert.False(t, ShouldSimulate(d("-10"), 3))
}

func TestResultRounded(t *testing.T) {
	r := Result{CDB: d("10.005"), Poupanca: d("9.994999"), MonthlyContribution: d("33.3333333")}.Rounded()
	assert.Equal(t, "10.01", r.CDB.StringFixed(2))
	assert.Equal(t, "9.99", r.Poupanca.StringFixed(2))
	assert.Equal(t, "33.33", r.MonthlyContribution.StringFixed(2))
}
