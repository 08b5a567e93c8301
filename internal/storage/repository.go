package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"caixinhas/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository implements ports.Store on a SQLite file.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// the server and the worker share the file
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateSaving(ctx context.Context, s core.Saving) (core.Saving, error) {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return core.Saving{}, err
	}

	row, err := r.queries.CreateSaving(ctx, CreateSavingParams{
		Description:     s.Description,
		Goal:            s.Goal.String(),
		Accumulated:     s.Accumulated.String(),
		MonthsToGoal:    int64(s.MonthsToGoal),
		IsEmergencyFund: boolToInt(s.IsEmergencyFund),
		ShouldBeExpense: boolToInt(s.ShouldBeExpense),
		Priority:        int64(s.Priority),
		Now:             r.now().UnixNano(),
	})
	if err != nil {
		return core.Saving{}, fmt.Errorf("create saving: %w", err)
	}

	slog.InfoContext(ctx, "Saving stored in SQLite",
		"id", row.ID,
		"description", row.Description,
		"goal", row.Goal)

	return row.toCore()
}

func (r *SQLiteRepository) UpdateSaving(ctx context.Context, s core.Saving) (core.Saving, error) {
	s.Normalize()
	if err := s.Validate(); err != nil {
		return core.Saving{}, err
	}

	row, err := r.queries.UpdateSaving(ctx, UpdateSavingParams{
		ID:              s.ID,
		Description:     s.Description,
		Goal:            s.Goal.String(),
		Accumulated:     s.Accumulated.String(),
		MonthsToGoal:    int64(s.MonthsToGoal),
		IsEmergencyFund: boolToInt(s.IsEmergencyFund),
		ShouldBeExpense: boolToInt(s.ShouldBeExpense),
		Priority:        int64(s.Priority),
		Now:             r.now().UnixNano(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Saving{}, fmt.Errorf("saving %d: %w", s.ID, core.ErrNotFound)
	}
	if err != nil {
		return core.Saving{}, fmt.Errorf("update saving %d: %w", s.ID, err)
	}
	return row.toCore()
}

// DeleteSaving removes the caixinha and its projection in one transaction.
func (r *SQLiteRepository) DeleteSaving(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteProjection(ctx, id); err != nil {
		return fmt.Errorf("delete projection of saving %d: %w", id, err)
	}
	n, err := q.DeleteSaving(ctx, id)
	if err != nil {
		return fmt.Errorf("delete saving %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("saving %d: %w", id, core.ErrNotFound)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) GetSaving(ctx context.Context, id int64) (core.Saving, error) {
	row, err := r.queries.GetSaving(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Saving{}, fmt.Errorf("saving %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Saving{}, fmt.Errorf("get saving %d: %w", id, err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) ListSavings(ctx context.Context) ([]core.Saving, error) {
	rows, err := r.queries.ListSavings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list savings: %w", err)
	}

	out := make([]core.Saving, 0, len(rows))
	for _, row := range rows {
		s, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// SaveProjection stores the snapshot unless a newer version is already there.
func (r *SQLiteRepository) SaveProjection(ctx context.Context, p core.ProjectionSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if _, err := q.GetSaving(ctx, p.SavingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("saving %d: %w", p.SavingID, core.ErrNotFound)
		}
		return fmt.Errorf("get saving %d: %w", p.SavingID, err)
	}

	if err := q.UpsertProjection(ctx, ProjectionSnapshot{
		SavingID:            p.SavingID,
		Version:             p.Version,
		CDB:                 p.CDB.String(),
		Poupanca:            p.Poupanca.String(),
		MonthlyContribution: p.MonthlyContribution.String(),
		CDIAnnual:           p.CDIAnnual.String(),
		SelicAnnual:         p.SelicAnnual.String(),
		TRMonthly:           p.TRMonthly.String(),
		RatesSource:         p.RatesSource,
		ComputedAt:          p.ComputedAt.UnixNano(),
	}); err != nil {
		return fmt.Errorf("store projection of saving %d: %w", p.SavingID, err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) LatestProjection(ctx context.Context, savingID int64) (core.ProjectionSnapshot, error) {
	row, err := r.queries.GetProjection(ctx, savingID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ProjectionSnapshot{}, fmt.Errorf("projection for saving %d: %w", savingID, core.ErrNotFound)
	}
	if err != nil {
		return core.ProjectionSnapshot{}, fmt.Errorf("get projection of saving %d: %w", savingID, err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) RecordRates(ctx context.Context, rs core.RateSnapshot) (core.RateSnapshot, error) {
	if rs.FetchedAt.IsZero() {
		rs.FetchedAt = r.now()
	}
	id, err := r.queries.InsertRateSnapshot(ctx, RateSnapshot{
		Source:        rs.Source,
		CDIAnnual:     rs.CDIAnnual.String(),
		SelicAnnual:   rs.SelicAnnual.String(),
		TRMonthly:     rs.TRMonthly.String(),
		ReferenceDate: rs.ReferenceDate.UnixNano(),
		FetchedAt:     rs.FetchedAt.UnixNano(),
	})
	if err != nil {
		return core.RateSnapshot{}, fmt.Errorf("record rates: %w", err)
	}
	rs.ID = id
	return rs, nil
}

func (r *SQLiteRepository) LatestRates(ctx context.Context) (core.RateSnapshot, error) {
	row, err := r.queries.LatestRateSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RateSnapshot{}, fmt.Errorf("rate history: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.RateSnapshot{}, fmt.Errorf("latest rates: %w", err)
	}
	return row.toCore()
}

func (s Saving) toCore() (core.Saving, error) {
	goal, err := decimal.NewFromString(s.Goal)
	if err != nil {
		return core.Saving{}, fmt.Errorf("saving %d goal %q: %w", s.ID, s.Goal, err)
	}
	acc, err := decimal.NewFromString(s.Accumulated)
	if err != nil {
		return core.Saving{}, fmt.Errorf("saving %d accumulated %q: %w", s.ID, s.Accumulated, err)
	}
	return core.Saving{
		ID:              s.ID,
		Description:     s.Description,
		Goal:            goal,
		Accumulated:     acc,
		MonthsToGoal:    int(s.MonthsToGoal),
		IsEmergencyFund: s.IsEmergencyFund != 0,
		ShouldBeExpense: s.ShouldBeExpense != 0,
		Priority:        int(s.Priority),
		Version:         s.Version,
		CreatedAt:       fromUnixNano(s.CreatedAt),
		UpdatedAt:       fromUnixNano(s.UpdatedAt),
	}, nil
}

func (p ProjectionSnapshot) toCore() (core.ProjectionSnapshot, error) {
	values, err := parseDecimals(p.CDB, p.Poupanca, p.MonthlyContribution, p.CDIAnnual, p.SelicAnnual, p.TRMonthly)
	if err != nil {
		return core.ProjectionSnapshot{}, fmt.Errorf("projection of saving %d: %w", p.SavingID, err)
	}
	return core.ProjectionSnapshot{
		SavingID:            p.SavingID,
		Version:             p.Version,
		CDB:                 values[0],
		Poupanca:            values[1],
		MonthlyContribution: values[2],
		CDIAnnual:           values[3],
		SelicAnnual:         values[4],
		TRMonthly:           values[5],
		RatesSource:         p.RatesSource,
		ComputedAt:          fromUnixNano(p.ComputedAt),
	}, nil
}

func (r RateSnapshot) toCore() (core.RateSnapshot, error) {
	values, err := parseDecimals(r.CDIAnnual, r.SelicAnnual, r.TRMonthly)
	if err != nil {
		return core.RateSnapshot{}, fmt.Errorf("rate snapshot %d: %w", r.ID, err)
	}
	return core.RateSnapshot{
		ID:            r.ID,
		Source:        r.Source,
		CDIAnnual:     values[0],
		SelicAnnual:   values[1],
		TRMonthly:     values[2],
		ReferenceDate: fromUnixNano(r.ReferenceDate),
		FetchedAt:     fromUnixNano(r.FetchedAt),
	}, nil
}

func parseDecimals(raw ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(raw))
	for i, s := range raw {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("decimal %q: %w", s, err)
		}
		out[i] = v
	}
	return out, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
