package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestLoggerAddsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentApp, JSON: true, Output: &buf})

	logger.WithComponent(ComponentRates).Info("refreshed", FieldRatesSource, "bcb")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ComponentRates, entry[FieldComponent])
	assert.Equal(t, "bcb", entry[FieldRatesSource])
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"component"`)))
}

func TestSlogBindsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentApp, JSON: true, Output: &buf})

	logger.WithComponent(ComponentBackend).Slog().Info("Initialized memory backend")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ComponentBackend, entry[FieldComponent])
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(`"component"`)))
}

func TestMiddlewareStoresLogger(t *testing.T) {
	logger := New(Config{Component: ComponentHTTP, Handler: slog.NewTextHandler(&bytes.Buffer{}, nil)})

	var got *Logger
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.Equal(t, ComponentHTTP, got.Component())
	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestFieldsBuilder(t *testing.T) {
	f := NewFields().WithSaving(7, 3).WithSimulation("1200.00", 12, "recurring_monthly").WithError(nil)
	assert.Equal(t, int64(7), f[FieldSavingID])
	assert.Equal(t, 12, f[FieldMonths])
	assert.NotContains(t, f, FieldError)
	assert.Len(t, f.ToSlice(), 2*len(f))
}
