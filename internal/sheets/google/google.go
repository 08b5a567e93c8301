// Package google mirrors caixinhas and their projections to a Google Sheet,
// one row per caixinha keyed by its ID in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"caixinhas/internal/core"
	"caixinhas/internal/ports"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Caixinhas"

// header is written to row 1 when the sheet is empty.
var header = []any{
	"ID", "Descrição", "Meta", "Acumulado", "Meses", "Reserva de emergência",
	"Despesa", "Prioridade", "Aporte mensal", "CDB", "Poupança", "Taxas", "Atualizado em",
}

// Config selects the spreadsheet and the service-account credentials.
// Credentials come from CredentialsJSON, then CredentialsFile, then
// GOOGLE_APPLICATION_CREDENTIALS.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	// serializes read-then-write row lookups
	mu sync.Mutex
}

var _ ports.SavingExporter = (*Client)(nil)

func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = DefaultSheetName
	}

	if len(opts) == 0 {
		creds, err := credentialsJSON(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(creds),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets exporter ready", "spreadsheet_id", cfg.SpreadsheetID, "sheet", sheet)
	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: sheet}, nil
}

func credentialsJSON(ctx context.Context, cfg Config) ([]byte, error) {
	inline := strings.TrimSpace(cfg.CredentialsJSON)
	file := strings.TrimSpace(cfg.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", file, "size", len(data))
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ExportSaving writes the caixinha row, replacing an existing row with the
// same ID or appending a new one.
func (c *Client) ExportSaving(ctx context.Context, s core.Saving, p *core.ProjectionSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}

	values := &gsheet.ValueRange{Values: [][]any{savingRow(s, p)}}

	if row := findRow(ids, s.ID); row > 0 {
		rng := fmt.Sprintf("%s!A%d:M%d", c.sheet, row, row)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, values).
			ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Updated caixinha row", "id", s.ID, "range", rng)
		return nil
	}

	if len(ids) == 0 {
		values.Values = append([][]any{header}, values.Values...)
	}
	rng := fmt.Sprintf("%s!A:M", c.sheet)
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, values).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append to %s: %w", c.sheet, err)
	}
	slog.DebugContext(ctx, "Appended caixinha row", "id", s.ID)
	return nil
}

// RemoveSaving clears the caixinha row. A missing row is not an error.
func (c *Client) RemoveSaving(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	row := findRow(ids, id)
	if row == 0 {
		slog.DebugContext(ctx, "Caixinha row not found, nothing to clear", "id", id)
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:M%d", c.sheet, row, row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// findRow returns the 1-based row whose first cell is id, or 0.
func findRow(values [][]any, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == want {
			return i + 1
		}
	}
	return 0
}

func savingRow(s core.Saving, p *core.ProjectionSnapshot) []any {
	row := []any{
		strconv.FormatInt(s.ID, 10),
		s.Description,
		s.Goal.StringFixed(2),
		s.Accumulated.StringFixed(2),
		s.MonthsToGoal,
		yesNo(s.IsEmergencyFund),
		yesNo(s.ShouldBeExpense),
		s.Priority,
	}
	if p == nil {
		return append(row, "", "", "", "", s.UpdatedAt.Format(time.RFC3339))
	}
	return append(row,
		p.MonthlyContribution.StringFixed(2),
		p.CDB.StringFixed(2),
		p.Poupanca.StringFixed(2),
		p.RatesSource,
		p.ComputedAt.Format(time.RFC3339),
	)
}

func yesNo(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}
