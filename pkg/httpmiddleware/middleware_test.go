package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWrap_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("middle"), mark("inner"))
	serve(h, nil)

	assert.Equal(t, []string{"outer", "middle", "inner"}, calls)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		headers     map[string]string
		wantStatus  int
		wantOrigin  string
		wantMethods string
		wantHeaders string
		wantCreds   string
	}{
		{
			name:       "no origin passes through",
			cfg:        CORSConfig{AllowOrigins: []string{"https://hotel.example"}},
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wildcard",
			cfg:        CORSConfig{AllowOrigins: []string{"*"}},
			method:     http.MethodGet,
			headers:    map[string]string{"Origin": "https://any.example"},
			wantStatus: http.StatusOK,
			wantOrigin: "*",
		},
		{
			name:       "allowed origin matched case-insensitively",
			cfg:        CORSConfig{AllowOrigins: []string{"https://Hotel.example"}},
			method:     http.MethodGet,
			headers:    map[string]string{"Origin": "https://hotel.EXAMPLE"},
			wantStatus: http.StatusOK,
			wantOrigin: "https://Hotel.example",
		},
		{
			name:       "disallowed origin gets no headers",
			cfg:        CORSConfig{AllowOrigins: []string{"https://hotel.example"}},
			method:     http.MethodGet,
			headers:    map[string]string{"Origin": "https://evil.example"},
			wantStatus: http.StatusOK,
		},
		{
			name:   "preflight",
			cfg:    CORSConfig{AllowOrigins: []string{"https://hotel.example"}, AllowHeaders: []string{"Content-Type", "X-API-Key"}},
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                        "https://hotel.example",
				"Access-Control-Request-Method": "POST",
			},
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "https://hotel.example",
			wantMethods: "GET, POST, OPTIONS",
			wantHeaders: "Content-Type, X-API-Key",
		},
		{
			name:   "preflight echoes requested headers",
			cfg:    CORSConfig{},
			method: http.MethodOptions,
			headers: map[string]string{
				"Origin":                         "https://hotel.example",
				"Access-Control-Request-Method":  "POST",
				"Access-Control-Request-Headers": "X-Signature",
			},
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "*",
			wantMethods: "GET, POST, OPTIONS",
			wantHeaders: "X-Signature",
		},
		{
			name:       "credentials with wildcard echo the origin",
			cfg:        CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true},
			method:     http.MethodGet,
			headers:    map[string]string{"Origin": "https://hotel.example"},
			wantStatus: http.StatusOK,
			wantOrigin: "https://hotel.example",
			wantCreds:  "true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.cfg)(okHandler())
			req := httptest.NewRequest(tt.method, "/api/bookings", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, tt.wantHeaders, w.Header().Get("Access-Control-Allow-Headers"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	h := Wrap(panicky, InjectLogger(zap.New(core)), Recovery())

	w := serve(h, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	code, message := decodeError(t, w.Body)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", message)
	assert.NotContains(t, w.Body.String(), "boom")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic recovered", logs.All()[0].Message)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	w := serve(h, func(r *http.Request) { r.Header.Set(RequestIDHeader, "req-123") })
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	for _, bad := range []string{"", strings.Repeat("a", 129), "bad\nid"} {
		w = serve(h, func(r *http.Request) { r.Header.Set(RequestIDHeader, bad) })
		assert.Len(t, seen, 36, "generated uuid for %q", bad)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	}

	assert.Empty(t, RequestIDFromContext(t.Context()))
}

func TestInjectLoggerAndLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	find := func(r *http.Request) string {
		if strings.HasPrefix(r.URL.Path, "/api/bookings/") {
			return "/api/bookings/{id}"
		}
		return ""
	}

	var inner *zap.Logger
	app := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = zctx.From(r.Context())
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	h := Wrap(app, RequestID(), InjectLogger(zap.New(core)), LogRequests(find))

	req := httptest.NewRequest(http.MethodGet, "/api/bookings/b-1?guestEmail=a@b.c", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, inner)
	entries := logs.FilterMessage("Request served").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/bookings/{id}", fields["route"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.EqualValues(t, 2, fields["bytes"])
	assert.Equal(t, "req-1", fields["request_id"])
	assert.NotContains(t, entries[0].Message+toString(fields), "a@b.c")

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
	failed := logs.FilterMessage("Request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "/fail", failed[0].ContextMap()["route"])
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
}

func toString(m map[string]any) string {
	var b strings.Builder
	for k, v := range m {
		b.WriteString(k)
		if s, ok := v.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func TestInstrument(t *testing.T) {
	find := func(*http.Request) string { return "/api/rooms" }
	h := Wrap(okHandler(), Instrument("hotel-api", find, noopTelemetry{}), Labeler(find))

	assert.Equal(t, http.StatusOK, serve(h, nil).Code)
}
