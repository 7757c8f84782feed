package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentLedger, Output: &buf})

	l.Info("ignored, no context variant")
	l.DebugContext(context.Background(), "below level")
	l.InfoContext(context.Background(), "Deposit recorded", FieldAccount, "Sampath")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "Deposit recorded", rec["msg"])
	assert.Equal(t, ComponentLedger, rec[FieldComponent])
	assert.Equal(t, "Sampath", rec[FieldAccount])
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "text", Component: ComponentApp, Output: &buf}).WithComponent(ComponentWorker)
	assert.Equal(t, ComponentWorker, l.Component())
	l.WarnContext(context.Background(), "Sheet slow")
	assert.Contains(t, buf.String(), "component=worker")
}

func TestFieldsToSliceSorted(t *testing.T) {
	got := NewFields().
		WithTransaction("tx-1", "deposit", "Sampath", "100").
		WithError(nil).
		ToSlice()
	assert.Equal(t, []any{
		FieldAccount, "Sampath",
		FieldAmount, "100",
		FieldTransactionID, "tx-1",
		FieldType, "deposit",
	}, got)
}

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRecorder struct{ got []recordedRequest }

func (f *fakeRecorder) RecordRequest(method, route string, status int, _ time.Duration) {
	f.got = append(f.got, recordedRequest{method, route, status})
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Component: ComponentHTTP, Output: &buf})
	rec := &fakeRecorder{}

	var fromCtx *Logger
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(logger, func(*http.Request) string { return "203.0.113.7" }, rec))
	r.Get("/api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/transactions/abc?x=1", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, fromCtx)
	assert.Equal(t, ComponentHTTP, fromCtx.Component())
	assert.Equal(t, []recordedRequest{{http.MethodGet, "/api/transactions/{id}", http.StatusNotFound}}, rec.got)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "203.0.113.7", line[FieldClientIP])
	assert.Equal(t, "/api/transactions/{id}", line[FieldRoute])
	assert.Equal(t, "x=1", line[FieldQuery])
	assert.NotEmpty(t, line[FieldRequestID])
}

func TestFromContextDefault(t *testing.T) {
	l := FromContext(context.Background())
	assert.Equal(t, "unknown", l.Component())
}
