package rates

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"caixinhas/internal/projection"
)

const StaticSourceName = "static"

// Static serves a fixed set of rates, taken from configuration or a YAML file.
type Static struct {
	rates projection.Rates
}

func NewStatic(r projection.Rates) (*Static, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.Source = StaticSourceName
	return &Static{rates: r}, nil
}

func (s *Static) Current(context.Context) (projection.Rates, error) {
	return s.rates, nil
}

func (s *Static) Name() string { return StaticSourceName }

// fileRates is the YAML layout of a rates file. Numbers are strings so no
// value goes through a float.
type fileRates struct {
	CDIAnnual       string `yaml:"cdi_annual"`
	SelicAnnual     string `yaml:"selic_annual"`
	TRMonthly       string `yaml:"tr_monthly"`
	CDBPercentOfCDI string `yaml:"cdb_percent_of_cdi"`
	ReferenceDate   string `yaml:"reference_date"`
}

// LoadFile reads rates from a YAML file. Fields missing from the file keep
// the values of defaults.
func LoadFile(path string, defaults projection.Rates) (projection.Rates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return projection.Rates{}, fmt.Errorf("read rates file: %w", err)
	}

	var fr fileRates
	if err := yaml.Unmarshal(data, &fr); err != nil {
		return projection.Rates{}, fmt.Errorf("parse rates file: %w", err)
	}

	r := defaults
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"cdi_annual", fr.CDIAnnual, &r.CDIAnnual},
		{"selic_annual", fr.SelicAnnual, &r.SelicAnnual},
		{"tr_monthly", fr.TRMonthly, &r.TRMonthly},
		{"cdb_percent_of_cdi", fr.CDBPercentOfCDI, &r.CDBPercentOfCDI},
	} {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return projection.Rates{}, fmt.Errorf("rates file %s: %w", f.name, err)
		}
		*f.dst = v
	}

	if fr.ReferenceDate != "" {
		ref, err := time.Parse(time.DateOnly, fr.ReferenceDate)
		if err != nil {
			return projection.Rates{}, fmt.Errorf("rates file reference_date: %w", err)
		}
		r.ReferenceDate = ref
	}

	if err := r.Validate(); err != nil {
		return projection.Rates{}, fmt.Errorf("rates file: %w", err)
	}
	return r, nil
}
