package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"caixinhas/internal/amqp"
	"caixinhas/internal/core"
	"caixinhas/internal/ports"
)

// EventPublisher announces caixinha changes to the worker.
type EventPublisher interface {
	PublishSavingEvent(ctx context.Context, id, version int64, action amqp.Action) error
	Close() error
}

// SavingInput is a create or update request. A nil MonthsToGoal keeps the
// stored horizon on update and is rejected on create.
type SavingInput struct {
	Description     string
	Goal            decimal.Decimal
	Accumulated     decimal.Decimal
	MonthsToGoal    *int
	IsEmergencyFund bool
	ShouldBeExpense bool
	Priority        int
}

func (in SavingInput) apply(s *core.Saving) {
	s.Description = in.Description
	s.Goal = in.Goal
	s.Accumulated = in.Accumulated
	if in.MonthsToGoal != nil {
		s.MonthsToGoal = *in.MonthsToGoal
	}
	s.IsEmergencyFund = in.IsEmergencyFund
	s.ShouldBeExpense = in.ShouldBeExpense
	s.Priority = in.Priority
}

// SavingService persists caixinhas and then notifies the worker. The store is
// the source of truth: a failed publish is logged and never fails the call.
type SavingService struct {
	store     ports.Store
	publisher EventPublisher
}

// NewSavingService accepts a nil publisher, in which case events are skipped.
func NewSavingService(store ports.Store, publisher EventPublisher) *SavingService {
	return &SavingService{store: store, publisher: publisher}
}

func (s *SavingService) CreateSaving(ctx context.Context, in SavingInput) (core.Saving, error) {
	if in.MonthsToGoal == nil {
		return core.Saving{}, core.ErrInvalidMonths
	}

	var sv core.Saving
	in.apply(&sv)
	created, err := s.store.CreateSaving(ctx, sv)
	if err != nil {
		return core.Saving{}, fmt.Errorf("save caixinha: %w", err)
	}

	s.publish(ctx, created.ID, created.Version, amqp.ActionUpsert)
	return created, nil
}

func (s *SavingService) UpdateSaving(ctx context.Context, id int64, in SavingInput) (core.Saving, error) {
	cur, err := s.store.GetSaving(ctx, id)
	if err != nil {
		return core.Saving{}, err
	}

	in.apply(&cur)
	updated, err := s.store.UpdateSaving(ctx, cur)
	if err != nil {
		return core.Saving{}, fmt.Errorf("update caixinha %d: %w", id, err)
	}

	s.publish(ctx, updated.ID, updated.Version, amqp.ActionUpsert)
	return updated, nil
}

func (s *SavingService) DeleteSaving(ctx context.Context, id int64) error {
	cur, err := s.store.GetSaving(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSaving(ctx, id); err != nil {
		return fmt.Errorf("delete caixinha %d: %w", id, err)
	}

	s.publish(ctx, id, cur.Version+1, amqp.ActionDelete)
	return nil
}

func (s *SavingService) GetSaving(ctx context.Context, id int64) (core.Saving, error) {
	return s.store.GetSaving(ctx, id)
}

func (s *SavingService) ListSavings(ctx context.Context) ([]core.Saving, error) {
	return s.store.ListSavings(ctx)
}

func (s *SavingService) publish(ctx context.Context, id, version int64, action amqp.Action) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping saving event", "id", id, "action", action)
		return
	}
	if err := s.publisher.PublishSavingEvent(ctx, id, version, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish saving event",
			"id", id, "version", version, "action", action, "error", err)
	}
}

// Close closes the store and the publisher.
func (s *SavingService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	return errors.Join(errs...)
}
