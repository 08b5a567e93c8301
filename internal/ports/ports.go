// Package ports declares the outbound interfaces the services depend on.
package ports

import (
	"context"

	"caixinhas/internal/core"
)

type (
	// SavingWriter persists caixinhas. Update bumps Version and returns
	// core.ErrNotFound for an unknown ID, as does Delete.
	SavingWriter interface {
		CreateSaving(ctx context.Context, s core.Saving) (core.Saving, error)
		UpdateSaving(ctx context.Context, s core.Saving) (core.Saving, error)
		DeleteSaving(ctx context.Context, id int64) error
	}

	// SavingReader reads caixinhas. ListSavings orders by priority
	// descending, then by ID.
	SavingReader interface {
		GetSaving(ctx context.Context, id int64) (core.Saving, error)
		ListSavings(ctx context.Context) ([]core.Saving, error)
	}

	// ProjectionStore keeps the latest projection of each caixinha.
	ProjectionStore interface {
		SaveProjection(ctx context.Context, p core.ProjectionSnapshot) error
		LatestProjection(ctx context.Context, savingID int64) (core.ProjectionSnapshot, error)
	}

	// RateHistory appends fetched reference rates.
	RateHistory interface {
		RecordRates(ctx context.Context, r core.RateSnapshot) (core.RateSnapshot, error)
		LatestRates(ctx context.Context) (core.RateSnapshot, error)
	}

	// SavingExporter mirrors caixinhas to an external destination.
	// projection may be nil when none has been computed yet.
	SavingExporter interface {
		ExportSaving(ctx context.Context, s core.Saving, projection *core.ProjectionSnapshot) error
		RemoveSaving(ctx context.Context, id int64) error
	}

	// Store is everything a data backend provides.
	Store interface {
		SavingWriter
		SavingReader
		ProjectionStore
		RateHistory
		Ping(ctx context.Context) error
		Close() error
	}
)
