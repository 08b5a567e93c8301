// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes and user-facing messages.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"caixinhas/internal/core"
	"caixinhas/internal/projection"
)

// MsgRateUnavailable is shown when the reference rates cannot be obtained.
const MsgRateUnavailable = "Não foi possível obter as taxas de referência, tente novamente."

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// StatusCode returns the status the response will be written with.
func (b *JSONResponseBuilder) StatusCode() int {
	return b.statusCode
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Erro interno, tente novamente."}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(payload, '\n'))
}

type errorBody struct {
	Message string `json:"message"`
}

// ErrorResponse creates a {"message": ...} error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Message: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ServiceUnavailableError creates a 503 error response asking the client to retry.
func ServiceUnavailableError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message).Header("Retry-After", "30")
}

// TooManyRequestsError creates a 429 Too Many Requests error response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "Muitas requisições, aguarde um momento e tente novamente.")
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "Erro ao efetuar a ação, tente novamente.")
}

var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrEmptyDescription, "Informe uma descrição para a caixinha."},
	{core.ErrDescriptionTooBig, "A descrição deve ter no máximo 200 caracteres."},
	{core.ErrInvalidGoal, "A meta deve ser um valor maior que zero."},
	{core.ErrInvalidAmount, "O valor acumulado é inválido."},
	{core.ErrInvalidMonths, "O prazo deve ser entre 1 e 1200 meses."},
	{core.ErrInvalidPriority, "A prioridade não pode ser negativa."},
}

// errorResponse maps an error to its response.
func errorResponse(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, errBadRequest):
		return BadRequestError("Formato da requisição inválido.")
	case errors.Is(err, projection.ErrInvalidArgument):
		return BadRequestError("Parâmetros de simulação inválidos: " + detail(err))
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError("Caixinha não encontrada.")
	case errors.Is(err, projection.ErrRateUnavailable):
		return ServiceUnavailableError(MsgRateUnavailable)
	}
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return BadRequestError(v.msg)
		}
	}
	return InternalServerError()
}

// detail strips the sentinel prefix from an invalid argument error.
func detail(err error) string {
	msg := err.Error()
	prefix := projection.ErrInvalidArgument.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}

type simulationResponse struct {
	CDB                 json.Number  `json:"cdb"`
	Poupanca            json.Number  `json:"poupanca"`
	MonthlyContribution *json.Number `json:"monthly_contribution,omitempty"`
}

func newSimulationResponse(res projection.Result, withContribution bool) simulationResponse {
	out := simulationResponse{CDB: money(res.CDB), Poupanca: money(res.Poupanca)}
	if withContribution {
		c := money(res.MonthlyContribution)
		out.MonthlyContribution = &c
	}
	return out
}

type monthlyRatesResponse struct {
	CDB      json.Number `json:"cdb"`
	Poupanca json.Number `json:"poupanca"`
}

type ratesResponse struct {
	CDIAnnual       json.Number          `json:"cdi_annual"`
	SelicAnnual     json.Number          `json:"selic_annual"`
	TRMonthly       json.Number          `json:"tr_monthly"`
	CDBPercentOfCDI json.Number          `json:"cdb_percent_of_cdi"`
	Source          string               `json:"source"`
	ReferenceDate   string               `json:"reference_date,omitempty"`
	Monthly         monthlyRatesResponse `json:"monthly"`
}

func newRatesResponse(r projection.Rates, m projection.MonthlyRates) ratesResponse {
	out := ratesResponse{
		CDIAnnual:       rate(r.CDIAnnual),
		SelicAnnual:     rate(r.SelicAnnual),
		TRMonthly:       rate(r.TRMonthly),
		CDBPercentOfCDI: rate(r.CDBPercentOfCDI),
		Source:          r.Source,
		Monthly:         monthlyRatesResponse{CDB: rate(m.CDB.Round(8)), Poupanca: rate(m.Poupanca.Round(8))},
	}
	if !r.ReferenceDate.IsZero() {
		out.ReferenceDate = r.ReferenceDate.Format(time.DateOnly)
	}
	return out
}

type savingResponse struct {
	ID              int64       `json:"id"`
	Description     string      `json:"description"`
	Goal            json.Number `json:"goal"`
	Accumulated     json.Number `json:"accumulated"`
	Remaining       json.Number `json:"remaining"`
	MonthsToGoal    int         `json:"months_to_goal"`
	IsEmergencyFund bool        `json:"is_emergency_fund"`
	ShouldBeExpense bool        `json:"should_be_expense"`
	Priority        int         `json:"priority"`
	Version         int64       `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func newSavingResponse(s core.Saving) savingResponse {
	return savingResponse{
		ID:              s.ID,
		Description:     s.Description,
		Goal:            money(s.Goal),
		Accumulated:     money(s.Accumulated),
		Remaining:       money(s.Remaining()),
		MonthsToGoal:    s.MonthsToGoal,
		IsEmergencyFund: s.IsEmergencyFund,
		ShouldBeExpense: s.ShouldBeExpense,
		Priority:        s.Priority,
		Version:         s.Version,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

type projectionResponse struct {
	SavingID            int64       `json:"saving_id"`
	Version             int64       `json:"version"`
	CDB                 json.Number `json:"cdb"`
	Poupanca            json.Number `json:"poupanca"`
	MonthlyContribution json.Number `json:"monthly_contribution"`
	CDIAnnual           json.Number `json:"cdi_annual"`
	SelicAnnual         json.Number `json:"selic_annual"`
	TRMonthly           json.Number `json:"tr_monthly"`
	RatesSource         string      `json:"rates_source"`
	ComputedAt          time.Time   `json:"computed_at"`
}

func newProjectionResponse(p core.ProjectionSnapshot) projectionResponse {
	return projectionResponse{
		SavingID:            p.SavingID,
		Version:             p.Version,
		CDB:                 money(p.CDB),
		Poupanca:            money(p.Poupanca),
		MonthlyContribution: money(p.MonthlyContribution),
		CDIAnnual:           rate(p.CDIAnnual),
		SelicAnnual:         rate(p.SelicAnnual),
		TRMonthly:           rate(p.TRMonthly),
		RatesSource:         p.RatesSource,
		ComputedAt:          p.ComputedAt,
	}
}
