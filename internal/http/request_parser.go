// Package http provides HTTP server and handler implementations.
//
// This file decodes JSON request bodies. The front end sends amounts as JSON
// numbers, flags as 0/1 and may send null for an empty accumulated balance,
// so the field types below accept those shapes as well as the canonical ones.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"caixinhas/internal/core"
	"caixinhas/internal/projection"
	"caixinhas/internal/services"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks malformed bodies and path values.
var errBadRequest = errors.New("bad request")

// flexDecimal accepts a JSON number, a numeric string (dot or comma
// separator) or null.
type flexDecimal struct {
	Value decimal.Decimal
	Set   bool
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = flexDecimal{}
		return nil
	}

	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
		if raw == "" {
			*f = flexDecimal{}
			return nil
		}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid number %s", string(b))
	}
	// bounded here so no later Round or comparison sees a huge exponent
	if !projection.Representable(d) || d.Abs().GreaterThan(core.MaxAmount) {
		return fmt.Errorf("number out of range %.32s", string(b))
	}
	*f = flexDecimal{Value: d, Set: true}
	return nil
}

// flexBool accepts true/false, 0/1 and their string forms.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	switch s {
	case "true", "1":
		*f = true
	case "false", "0", "", "null":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", string(b))
	}
	return nil
}

// decodeJSON reads a single JSON object from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body larger than %d bytes", errBadRequest, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON object", errBadRequest)
	}
	return nil
}

// simulationRequest is the body of both simulation endpoints.
type simulationRequest struct {
	InitialValue flexDecimal `json:"initial_value"`
	Months       *int        `json:"months"`
	Accumulated  flexDecimal `json:"accumulated"`
}

func (req simulationRequest) input(mode projection.Mode) (projection.Input, error) {
	if !req.InitialValue.Set {
		return projection.Input{}, fmt.Errorf("%w: initial_value is required", projection.ErrInvalidArgument)
	}
	if req.Months == nil {
		return projection.Input{}, fmt.Errorf("%w: months is required", projection.ErrInvalidArgument)
	}
	return projection.Input{
		InitialValue: req.InitialValue.Value,
		Months:       *req.Months,
		Accumulated:  req.Accumulated.Value,
		Mode:         mode,
	}, nil
}

// savingRequest is the body of create and update.
type savingRequest struct {
	Description     string      `json:"description"`
	Goal            flexDecimal `json:"goal"`
	Accumulated     flexDecimal `json:"accumulated"`
	MonthsToGoal    *int        `json:"months_to_goal"`
	IsEmergencyFund flexBool    `json:"is_emergency_fund"`
	ShouldBeExpense flexBool    `json:"should_be_expense"`
	Priority        *int        `json:"priority"`
}

func (req savingRequest) input() (services.SavingInput, error) {
	if !req.Goal.Set {
		return services.SavingInput{}, core.ErrInvalidGoal
	}
	in := services.SavingInput{
		Description:     sanitizeInput(req.Description),
		Goal:            req.Goal.Value.Round(2),
		Accumulated:     req.Accumulated.Value.Round(2),
		MonthsToGoal:    req.MonthsToGoal,
		IsEmergencyFund: bool(req.IsEmergencyFund),
		ShouldBeExpense: bool(req.ShouldBeExpense),
	}
	if req.Priority != nil {
		in.Priority = *req.Priority
	}
	return in, nil
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errBadRequest, raw)
	}
	return id, nil
}
