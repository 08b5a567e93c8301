package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"caixinhas/internal/amqp"
	"caixinhas/internal/core"
	"caixinhas/internal/ports"
	"caixinhas/internal/projection"
)

// Projector computes the projection of a caixinha with the current rates.
type Projector interface {
	ProjectSaving(ctx context.Context, s core.Saving) (core.ProjectionSnapshot, error)
}

// RateRefresher fetches the reference rates from upstream, bypassing caches.
type RateRefresher interface {
	Refresh(ctx context.Context) (projection.Rates, error)
}

// Store is the part of the data backend the worker uses.
type Store interface {
	ports.SavingReader
	ports.ProjectionStore
	ports.RateHistory
}

// ProjectionWorker keeps stored projections in step with caixinhas and rates.
type ProjectionWorker struct {
	store       Store
	projector   Projector
	refresher   RateRefresher
	exporter    ports.SavingExporter
	concurrency int
}

// NewProjectionWorker builds a worker. exporter may be nil.
func NewProjectionWorker(store Store, projector Projector, refresher RateRefresher, exporter ports.SavingExporter, concurrency int) *ProjectionWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ProjectionWorker{
		store:       store,
		projector:   projector,
		refresher:   refresher,
		exporter:    exporter,
		concurrency: concurrency,
	}
}

// HandleSavingEvent processes one caixinha event. Returning an error
// requeues the message.
func (w *ProjectionWorker) HandleSavingEvent(ctx context.Context, msg *amqp.SavingEventMessage) error {
	slog.InfoContext(ctx, "Processing saving event",
		"id", msg.ID,
		"version", msg.Version,
		"action", msg.Action)

	switch msg.Action {
	case amqp.ActionUpsert:
		return w.refreshSaving(ctx, msg.ID)
	case amqp.ActionDelete:
		return w.removeSaving(ctx, msg.ID)
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
}

func (w *ProjectionWorker) refreshSaving(ctx context.Context, id int64) error {
	s, err := w.store.GetSaving(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// deleted after the event was published; the delete event follows
		slog.InfoContext(ctx, "Saving no longer exists, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get saving from storage: %w", err)
	}
	return w.projectAndStore(ctx, s)
}

func (w *ProjectionWorker) projectAndStore(ctx context.Context, s core.Saving) error {
	snap, err := w.projector.ProjectSaving(ctx, s)
	if err != nil {
		return err
	}

	if err := w.store.SaveProjection(ctx, snap); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("store projection: %w", err)
	}

	slog.InfoContext(ctx, "Stored saving projection",
		"id", s.ID,
		"version", s.Version,
		"cdb", snap.CDB.StringFixed(2),
		"poupanca", snap.Poupanca.StringFixed(2),
		"rates_source", snap.RatesSource)

	if w.exporter == nil {
		return nil
	}
	if err := w.exporter.ExportSaving(ctx, s, &snap); err != nil {
		return fmt.Errorf("export saving: %w", err)
	}
	return nil
}

func (w *ProjectionWorker) removeSaving(ctx context.Context, id int64) error {
	if w.exporter == nil {
		slog.DebugContext(ctx, "No exporter configured, nothing to remove", "id", id)
		return nil
	}
	if err := w.exporter.RemoveSaving(ctx, id); err != nil {
		return fmt.Errorf("remove exported saving: %w", err)
	}
	slog.InfoContext(ctx, "Removed exported saving", "id", id)
	return nil
}

// RefreshRates fetches fresh reference rates, appends them to the history and
// re-projects every caixinha with them.
func (w *ProjectionWorker) RefreshRates(ctx context.Context) error {
	if w.refresher == nil {
		return w.ReprojectAll(ctx)
	}

	r, err := w.refresher.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh rates: %w", err)
	}

	snap, err := w.store.RecordRates(ctx, core.RateSnapshot{
		Source:        r.Source,
		CDIAnnual:     r.CDIAnnual,
		SelicAnnual:   r.SelicAnnual,
		TRMonthly:     r.TRMonthly,
		ReferenceDate: r.ReferenceDate,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to record rate snapshot", "error", err)
	} else {
		slog.InfoContext(ctx, "Reference rates refreshed",
			"snapshot_id", snap.ID,
			"source", snap.Source,
			"cdi", snap.CDIAnnual.String(),
			"selic", snap.SelicAnnual.String(),
			"tr", snap.TRMonthly.String())
	}

	return w.ReprojectAll(ctx)
}

// ReprojectAll projects every caixinha again, at most concurrency at a time.
// A failing caixinha does not stop the others.
func (w *ProjectionWorker) ReprojectAll(ctx context.Context) error {
	savings, err := w.store.ListSavings(ctx)
	if err != nil {
		return fmt.Errorf("list savings: %w", err)
	}
	return w.reproject(ctx, savings)
}

// StartupCheck projects the caixinhas whose stored projection is missing or
// older than the caixinha, recovering from events lost while the worker was down.
func (w *ProjectionWorker) StartupCheck(ctx context.Context) error {
	savings, err := w.store.ListSavings(ctx)
	if err != nil {
		return fmt.Errorf("list savings: %w", err)
	}

	var stale []core.Saving
	for _, s := range savings {
		snap, err := w.store.LatestProjection(ctx, s.ID)
		if err != nil || snap.Version < s.Version {
			stale = append(stale, s)
		}
	}

	if len(stale) == 0 {
		slog.InfoContext(ctx, "All saving projections are current")
		return nil
	}

	slog.InfoContext(ctx, "Found stale saving projections on startup", "count", len(stale))
	return w.reproject(ctx, stale)
}

func (w *ProjectionWorker) reproject(ctx context.Context, savings []core.Saving) error {
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, s := range savings {
		g.Go(func() error {
			if err := w.projectAndStore(gctx, s); err != nil {
				failed.Add(1)
				slog.ErrorContext(gctx, "Failed to project saving", "id", s.ID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.InfoContext(ctx, "Re-projection completed",
		"total", len(savings),
		"failed", failed.Load())

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d caixinhas failed to project", n, len(savings))
	}
	return ctx.Err()
}
