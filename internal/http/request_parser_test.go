package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caixinhas/internal/core"
	"caixinhas/internal/projection"
)

func TestFlexDecimal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		set     bool
		wantErr bool
	}{
		{name: "number", input: `1234.56`, want: "1234.56", set: true},
		{name: "integer", input: `12`, want: "12", set: true},
		{name: "string with dot", input: `"99.9"`, want: "99.9", set: true},
		{name: "string with comma", input: `"1234,5"`, want: "1234.5", set: true},
		{name: "null", input: `null`, want: "0"},
		{name: "empty string", input: `""`, want: "0"},
		{name: "negative", input: `-3`, want: "-3", set: true},
		{name: "word", input: `"dez"`, wantErr: true},
		{name: "boolean", input: `true`, wantErr: true},
		{name: "at max", input: `100000000000`, want: "100000000000", set: true},
		{name: "above max", input: `"100000000000.01"`, wantErr: true},
		{name: "below negative max", input: `-1e12`, wantErr: true},
		{name: "huge exponent", input: `"1e5000000"`, wantErr: true},
		{name: "tiny exponent", input: `1e-20000000`, wantErr: true},
		{name: "too many digits", input: `"0.` + strings.Repeat("1", 60) + `"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f flexDecimal
			err := json.Unmarshal([]byte(tt.input), &f)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.set, f.Set)
			assert.True(t, f.Value.Equal(decimal.RequireFromString(tt.want)), "got %s", f.Value)
		})
	}
}

func TestFlexBool(t *testing.T) {
	for input, want := range map[string]bool{
		`true`: true, `1`: true, `"1"`: true, `"true"`: true,
		`false`: false, `0`: false, `null`: false, `"0"`: false,
	} {
		var b flexBool
		require.NoError(t, json.Unmarshal([]byte(input), &b), input)
		assert.Equal(t, want, bool(b), input)
	}

	var b flexBool
	assert.Error(t, json.Unmarshal([]byte(`2`), &b))
	assert.Error(t, json.Unmarshal([]byte(`"sim"`), &b))
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid object", body: `{"initial_value": 10, "months": 2}`},
		{name: "unknown fields are ignored", body: `{"initial_value": 10, "months": 2, "extra": "x"}`},
		{name: "empty body", body: ``, wantErr: true},
		{name: "form encoded", body: `initial_value=10&months=2`, wantErr: true},
		{name: "two objects", body: `{"months": 1}{"months": 2}`, wantErr: true},
		{name: "months as text", body: `{"initial_value": 10, "months": "two"}`, wantErr: true},
		{name: "too large", body: `{"initial_value": "` + strings.Repeat("9", maxBodyBytes) + `"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/rendiments", strings.NewReader(tt.body))
			var dst simulationRequest
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr {
				require.ErrorIs(t, err, errBadRequest)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, dst.Months)
			assert.Equal(t, 2, *dst.Months)
		})
	}
}

func TestSimulationRequestInput(t *testing.T) {
	months := 24
	req := simulationRequest{
		InitialValue: flexDecimal{Value: decimal.NewFromInt(2400), Set: true},
		Months:       &months,
	}
	in, err := req.input(projection.RecurringMonthly)
	require.NoError(t, err)
	assert.Equal(t, projection.RecurringMonthly, in.Mode)
	assert.True(t, in.Accumulated.IsZero())
	assert.Equal(t, 24, in.Months)

	_, err = simulationRequest{Months: &months}.input(projection.LumpSum)
	require.ErrorIs(t, err, projection.ErrInvalidArgument)
	_, err = simulationRequest{InitialValue: req.InitialValue}.input(projection.LumpSum)
	require.ErrorIs(t, err, projection.ErrInvalidArgument)
}

func TestSavingRequestInput(t *testing.T) {
	var req savingRequest
	require.NoError(t, json.Unmarshal([]byte(
		`{"description": " Carro\u0000 novo ", "goal": 30000.555, "accumulated": null, "months_to_goal": 36, "is_emergency_fund": 0, "should_be_expense": 1}`), &req))

	in, err := req.input()
	require.NoError(t, err)
	assert.Equal(t, "Carro novo", in.Description)
	assert.Equal(t, "30000.56", in.Goal.StringFixed(2))
	assert.True(t, in.Accumulated.IsZero())
	require.NotNil(t, in.MonthsToGoal)
	assert.Equal(t, 36, *in.MonthsToGoal)
	assert.False(t, in.IsEmergencyFund)
	assert.True(t, in.ShouldBeExpense)
	assert.Zero(t, in.Priority)

	_, err = savingRequest{Description: "x"}.input()
	require.ErrorIs(t, err, core.ErrInvalidGoal)
}

func TestPathID(t *testing.T) {
	for raw, wantErr := range map[string]bool{"1": false, "42": false, "0": true, "-3": true, "abc": true, "": true} {
		req := httptest.NewRequest(http.MethodGet, "/api/saving/x", nil)
		req.SetPathValue("id", raw)
		_, err := pathID(req)
		if wantErr {
			assert.ErrorIs(t, err, errBadRequest, raw)
		} else {
			assert.NoError(t, err, raw)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	assert.Equal(t, "abc", sanitizeInput("  a\x00b\x07c  "))
	assert.Equal(t, "linha\nnova", sanitizeInput("linha\nnova"))
	assert.Equal(t, "ok", sanitizeInput("ok\xff"))
}
