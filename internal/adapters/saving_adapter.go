package adapters

import (
	"context"

	"caixinhas/internal/core"
	"caixinhas/internal/services"
)

// SavingAdapter joins SavingService and ProjectionService behind the single
// interface the HTTP handlers use. Writes go through the service so events
// are published; projections resolve the caixinha first so a missing ID is
// a not-found rather than a projection failure.
type SavingAdapter struct {
	service     *services.SavingService
	projections *services.ProjectionService
}

func NewSavingAdapter(service *services.SavingService, projections *services.ProjectionService) *SavingAdapter {
	return &SavingAdapter{
		service:     service,
		projections: projections,
	}
}

func (a *SavingAdapter) CreateSaving(ctx context.Context, in services.SavingInput) (core.Saving, error) {
	return a.service.CreateSaving(ctx, in)
}

func (a *SavingAdapter) UpdateSaving(ctx context.Context, id int64, in services.SavingInput) (core.Saving, error) {
	return a.service.UpdateSaving(ctx, id, in)
}

func (a *SavingAdapter) DeleteSaving(ctx context.Context, id int64) error {
	return a.service.DeleteSaving(ctx, id)
}

func (a *SavingAdapter) GetSaving(ctx context.Context, id int64) (core.Saving, error) {
	return a.service.GetSaving(ctx, id)
}

func (a *SavingAdapter) ListSavings(ctx context.Context) ([]core.Saving, error) {
	return a.service.ListSavings(ctx)
}

// SavingProjection returns the latest projection of the caixinha with the given ID.
func (a *SavingAdapter) SavingProjection(ctx context.Context, id int64) (core.ProjectionSnapshot, error) {
	sv, err := a.service.GetSaving(ctx, id)
	if err != nil {
		return core.ProjectionSnapshot{}, err
	}
	return a.projections.SavingProjection(ctx, sv)
}
