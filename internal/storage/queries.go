package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL statements of the repository. Every column is read and
// written as stored: decimals as TEXT, flags as 0/1, times as unix nanoseconds.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Saving struct {
	ID              int64
	Description     string
	Goal            string
	Accumulated     string
	MonthsToGoal    int64
	IsEmergencyFund int64
	ShouldBeExpense int64
	Priority        int64
	Version         int64
	CreatedAt       int64
	UpdatedAt       int64
}

const savingColumns = `id, description, goal, accumulated, months_to_goal, is_emergency_fund,
	should_be_expense, priority, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSaving(row rowScanner) (Saving, error) {
	var s Saving
	err := row.Scan(&s.ID, &s.Description, &s.Goal, &s.Accumulated, &s.MonthsToGoal,
		&s.IsEmergencyFund, &s.ShouldBeExpense, &s.Priority, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const createSaving = `INSERT INTO savings (description, goal, accumulated, months_to_goal,
	is_emergency_fund, should_be_expense, priority, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
RETURNING ` + savingColumns

type CreateSavingParams struct {
	Description     string
	Goal            string
	Accumulated     string
	MonthsToGoal    int64
	IsEmergencyFund int64
	ShouldBeExpense int64
	Priority        int64
	Now             int64
}

func (q *Queries) CreateSaving(ctx context.Context, arg CreateSavingParams) (Saving, error) {
	row := q.db.QueryRowContext(ctx, createSaving,
		arg.Description, arg.Goal, arg.Accumulated, arg.MonthsToGoal,
		arg.IsEmergencyFund, arg.ShouldBeExpense, arg.Priority, arg.Now, arg.Now)
	return scanSaving(row)
}

const updateSaving = `UPDATE savings SET
	description = ?, goal = ?, accumulated = ?, months_to_goal = ?,
	is_emergency_fund = ?, should_be_expense = ?, priority = ?,
	version = version + 1, updated_at = ?
WHERE id = ?
RETURNING ` + savingColumns

type UpdateSavingParams struct {
	ID              int64
	Description     string
	Goal            string
	Accumulated     string
	MonthsToGoal    int64
	IsEmergencyFund int64
	ShouldBeExpense int64
	Priority        int64
	Now             int64
}

func (q *Queries) UpdateSaving(ctx context.Context, arg UpdateSavingParams) (Saving, error) {
	row := q.db.QueryRowContext(ctx, updateSaving,
		arg.Description, arg.Goal, arg.Accumulated, arg.MonthsToGoal,
		arg.IsEmergencyFund, arg.ShouldBeExpense, arg.Priority, arg.Now, arg.ID)
	return scanSaving(row)
}

const deleteSaving = `DELETE FROM savings WHERE id = ?`

func (q *Queries) DeleteSaving(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteSaving, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getSaving = `SELECT ` + savingColumns + ` FROM savings WHERE id = ?`

func (q *Queries) GetSaving(ctx context.Context, id int64) (Saving, error) {
	return scanSaving(q.db.QueryRowContext(ctx, getSaving, id))
}

const listSavings = `SELECT ` + savingColumns + ` FROM savings ORDER BY priority DESC, id`

func (q *Queries) ListSavings(ctx context.Context) ([]Saving, error) {
	rows, err := q.db.QueryContext(ctx, listSavings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Saving
	for rows.Next() {
		s, err := scanSaving(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

type ProjectionSnapshot struct {
	SavingID            int64
	Version             int64
	CDB                 string
	Poupanca            string
	MonthlyContribution string
	CDIAnnual           string
	SelicAnnual         string
	TRMonthly           string
	RatesSource         string
	ComputedAt          int64
}

// The WHERE clause keeps a newer snapshot when an older one arrives late.
const upsertProjection = `INSERT INTO projection_snapshots (saving_id, version, cdb, poupanca,
	monthly_contribution, cdi_annual, selic_annual, tr_monthly, rates_source, computed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(saving_id) DO UPDATE SET
	version = excluded.version,
	cdb = excluded.cdb,
	poupanca = excluded.poupanca,
	monthly_contribution = excluded.monthly_contribution,
	cdi_annual = excluded.cdi_annual,
	selic_annual = excluded.selic_annual,
	tr_monthly = excluded.tr_monthly,
	rates_source = excluded.rates_source,
	computed_at = excluded.computed_at
WHERE excluded.version >= projection_snapshots.version`

func (q *Queries) UpsertProjection(ctx context.Context, p ProjectionSnapshot) error {
	_, err := q.db.ExecContext(ctx, upsertProjection,
		p.SavingID, p.Version, p.CDB, p.Poupanca, p.MonthlyContribution,
		p.CDIAnnual, p.SelicAnnual, p.TRMonthly, p.RatesSource, p.ComputedAt)
	return err
}

const getProjection = `SELECT saving_id, version, cdb, poupanca, monthly_contribution,
	cdi_annual, selic_annual, tr_monthly, rates_source, computed_at
FROM projection_snapshots WHERE saving_id = ?`

func (q *Queries) GetProjection(ctx context.Context, savingID int64) (ProjectionSnapshot, error) {
	var p ProjectionSnapshot
	err := q.db.QueryRowContext(ctx, getProjection, savingID).Scan(
		&p.SavingID, &p.Version, &p.CDB, &p.Poupanca, &p.MonthlyContribution,
		&p.CDIAnnual, &p.SelicAnnual, &p.TRMonthly, &p.RatesSource, &p.ComputedAt)
	return p, err
}

const deleteProjection = `DELETE FROM projection_snapshots WHERE saving_id = ?`

func (q *Queries) DeleteProjection(ctx context.Context, savingID int64) error {
	_, err := q.db.ExecContext(ctx, deleteProjection, savingID)
	return err
}

type RateSnapshot struct {
	ID            int64
	Source        string
	CDIAnnual     string
	SelicAnnual   string
	TRMonthly     string
	ReferenceDate int64
	FetchedAt     int64
}

const insertRateSnapshot = `INSERT INTO rate_snapshots (source, cdi_annual, selic_annual,
	tr_monthly, reference_date, fetched_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

func (q *Queries) InsertRateSnapshot(ctx context.Context, r RateSnapshot) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, insertRateSnapshot,
		r.Source, r.CDIAnnual, r.SelicAnnual, r.TRMonthly, r.ReferenceDate, r.FetchedAt).Scan(&id)
	return id, err
}

const latestRateSnapshot = `SELECT id, source, cdi_annual, selic_annual, tr_monthly,
	reference_date, fetched_at
FROM rate_snapshots ORDER BY id DESC LIMIT 1`

func (q *Queries) LatestRateSnapshot(ctx context.Context) (RateSnapshot, error) {
	var r RateSnapshot
	err := q.db.QueryRowContext(ctx, latestRateSnapshot).Scan(
		&r.ID, &r.Source, &r.CDIAnnual, &r.SelicAnnual, &r.TRMonthly, &r.ReferenceDate, &r.FetchedAt)
	return r, err
}
