package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"caixinhas/internal/projection"
)

const (
	BCBSourceName     = "bcb"
	DefaultBCBBaseURL = "https://api.bcb.gov.br"

	// SGS series codes.
	SeriesCDI   = 4389 // CDI annualized, base 252, % a.a.
	SeriesSelic = 432  // Selic target, % a.a.
	SeriesTR    = 226  // TR, % per month

	bcbDateLayout = "02/01/2006"
)

// BCB fetches the latest value of each series from the Banco Central SGS API.
type BCB struct {
	BaseURL         string
	Client          *http.Client
	CDBPercentOfCDI decimal.Decimal
}

func NewBCB(baseURL string, timeout time.Duration, cdbPercentOfCDI decimal.Decimal) *BCB {
	if baseURL == "" {
		baseURL = DefaultBCBBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BCB{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		Client:          &http.Client{Timeout: timeout},
		CDBPercentOfCDI: cdbPercentOfCDI,
	}
}

func (b *BCB) Name() string { return BCBSourceName }

type sgsPoint struct {
	Date  string `json:"data"`
	Value string `json:"valor"`
}

type observation struct {
	value decimal.Decimal
	date  time.Time
}

// Current fetches CDI, Selic and TR in parallel. Any failure makes the whole
// answer unavailable.
func (b *BCB) Current(ctx context.Context) (projection.Rates, error) {
	var cdi, selic, tr observation

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range []struct {
		code int
		dst  *observation
	}{
		{SeriesCDI, &cdi},
		{SeriesSelic, &selic},
		{SeriesTR, &tr},
	} {
		g.Go(func() error {
			obs, err := b.fetchSeries(gctx, s.code)
			if err != nil {
				return err
			}
			*s.dst = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return projection.Rates{}, fmt.Errorf("%w: %w", projection.ErrRateUnavailable, err)
	}

	r := projection.Rates{
		CDIAnnual:       cdi.value,
		SelicAnnual:     selic.value,
		TRMonthly:       tr.value,
		CDBPercentOfCDI: b.CDBPercentOfCDI,
		Source:          BCBSourceName,
		ReferenceDate:   cdi.date,
	}
	if err := r.Validate(); err != nil {
		return projection.Rates{}, fmt.Errorf("%w: %w", projection.ErrRateUnavailable, err)
	}
	return r, nil
}

func (b *BCB) seriesURL(code int) string {
	return fmt.Sprintf("%s/dados/serie/bcdata.sgs.%d/dados/ultimos/1?formato=json", b.BaseURL, code)
}

// fetchSeries returns the latest observation of a series as a fraction.
func (b *BCB) fetchSeries(ctx context.Context, code int) (observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.seriesURL(code), nil)
	if err != nil {
		return observation{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		return observation{}, fmt.Errorf("sgs %d fetch: %w", code, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return observation{}, fmt.Errorf("sgs %d read body: %w", code, err)
	}
	if resp.StatusCode != http.StatusOK {
		return observation{}, fmt.Errorf("sgs %d: status %d", code, resp.StatusCode)
	}

	var points []sgsPoint
	if err := json.Unmarshal(body, &points); err != nil {
		return observation{}, fmt.Errorf("sgs %d decode: %w", code, err)
	}
	if len(points) == 0 {
		return observation{}, fmt.Errorf("sgs %d: no data returned", code)
	}

	last := points[len(points)-1]
	pct, err := decimal.NewFromString(strings.TrimSpace(last.Value))
	if err != nil {
		return observation{}, fmt.Errorf("sgs %d value %q: %w", code, last.Value, err)
	}
	date, err := time.Parse(bcbDateLayout, last.Date)
	if err != nil {
		return observation{}, fmt.Errorf("sgs %d date %q: %w", code, last.Date, err)
	}

	return observation{value: pct.Div(decimal.NewFromInt(100)), date: date}, nil
}
