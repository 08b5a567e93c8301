package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"caixinhas/internal/cache"
	"caixinhas/internal/core"
	"caixinhas/internal/ports"
	"caixinhas/internal/projection"
	"caixinhas/internal/rates"
)

const (
	resultCacheSize = 1024
	resultCacheTTL  = 10 * time.Minute
)

// ProjectionService runs the projector against the current reference rates.
type ProjectionService struct {
	source      rates.Source
	projections ports.ProjectionStore
	results     *cache.LRUCache[projection.Result]
	now         func() time.Time
}

// NewProjectionService builds the service. projections may be nil when
// stored snapshots are not needed (simulation only).
func NewProjectionService(source rates.Source, projections ports.ProjectionStore) *ProjectionService {
	return &ProjectionService{
		source:      source,
		projections: projections,
		results:     cache.NewLRUCache[projection.Result](resultCacheSize, resultCacheTTL),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ResultCache exposes the result cache so it can be registered for cleanup.
func (s *ProjectionService) ResultCache() *cache.LRUCache[projection.Result] {
	return s.results
}

// CurrentRates returns the reference rates and the monthly yields derived from them.
func (s *ProjectionService) CurrentRates(ctx context.Context) (projection.Rates, projection.MonthlyRates, error) {
	r, err := s.source.Current(ctx)
	if err != nil {
		if !errors.Is(err, projection.ErrRateUnavailable) {
			err = fmt.Errorf("%w: %w", projection.ErrRateUnavailable, err)
		}
		return projection.Rates{}, projection.MonthlyRates{}, err
	}
	monthly, err := r.Monthly()
	if err != nil {
		return projection.Rates{}, projection.MonthlyRates{}, fmt.Errorf("%w: %w", projection.ErrRateUnavailable, err)
	}
	return r, monthly, nil
}

// Simulate projects in with the current rates. Input is validated before the
// rates are fetched, so a bad request never waits on the rate source.
func (s *ProjectionService) Simulate(ctx context.Context, in projection.Input) (projection.Result, projection.Rates, error) {
	if err := in.Validate(); err != nil {
		return projection.Result{}, projection.Rates{}, err
	}

	r, monthly, err := s.CurrentRates(ctx)
	if err != nil {
		return projection.Result{}, projection.Rates{}, err
	}

	key := resultKey(in, r)
	if res, ok := s.results.Get(key); ok {
		return res, r, nil
	}

	res, err := projection.Project(in, monthly)
	if err != nil {
		return projection.Result{}, projection.Rates{}, err
	}
	s.results.Set(key, res)
	return res, r, nil
}

// ProjectSaving projects a caixinha in recurring mode: the goal is spread
// over MonthsToGoal and the accumulated balance earns yield from day one.
func (s *ProjectionService) ProjectSaving(ctx context.Context, sv core.Saving) (core.ProjectionSnapshot, error) {
	res, r, err := s.Simulate(ctx, projection.Input{
		InitialValue: sv.Goal,
		Months:       sv.MonthsToGoal,
		Accumulated:  sv.Accumulated,
		Mode:         projection.RecurringMonthly,
	})
	if err != nil {
		return core.ProjectionSnapshot{}, fmt.Errorf("project caixinha %d: %w", sv.ID, err)
	}

	return core.ProjectionSnapshot{
		SavingID:            sv.ID,
		Version:             sv.Version,
		CDB:                 res.CDB,
		Poupanca:            res.Poupanca,
		MonthlyContribution: res.MonthlyContribution,
		CDIAnnual:           r.CDIAnnual,
		SelicAnnual:         r.SelicAnnual,
		TRMonthly:           r.TRMonthly,
		RatesSource:         r.Source,
		ComputedAt:          s.now(),
	}, nil
}

// SavingProjection returns the stored snapshot for the caixinha's current
// version, falling back to a live projection when none is stored yet.
func (s *ProjectionService) SavingProjection(ctx context.Context, sv core.Saving) (core.ProjectionSnapshot, error) {
	if s.projections != nil {
		snap, err := s.projections.LatestProjection(ctx, sv.ID)
		switch {
		case err == nil && snap.Version >= sv.Version:
			return snap, nil
		case err != nil && !errors.Is(err, core.ErrNotFound):
			slog.WarnContext(ctx, "Failed to read stored projection, computing live",
				"saving_id", sv.ID, "error", err)
		}
	}
	return s.ProjectSaving(ctx, sv)
}

// resultKey identifies a projection by its inputs and the rates it used.
func resultKey(in projection.Input, r projection.Rates) string {
	return strings.Join([]string{
		string(in.Mode),
		in.InitialValue.String(),
		fmt.Sprint(in.Months),
		in.Accumulated.String(),
		r.CDIAnnual.String(),
		r.SelicAnnual.String(),
		r.TRMonthly.String(),
		r.CDBPercentOfCDI.String(),
	}, "|")
}
