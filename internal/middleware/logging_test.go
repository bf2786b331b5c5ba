package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantLevel string
	}{
		{"implicit 200", 0, "hello", "INFO"},
		{"created", http.StatusCreated, "{}", "INFO"},
		{"client error", http.StatusBadRequest, "bad", "WARN"},
		{"server error", http.StatusInternalServerError, "", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.status != 0 {
					w.WriteHeader(tt.status)
				}
				w.Write([]byte(tt.body))
			})
			h := chimiddleware.RequestID(Logger(logger)(inner))

			req := httptest.NewRequest(http.MethodPost, "/register", nil)
			h.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())

			wantStatus := tt.status
			if wantStatus == 0 {
				wantStatus = http.StatusOK
			}
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "request completed", entry["msg"])
			assert.Equal(t, "POST", entry["method"])
			assert.Equal(t, "/register", entry["path"])
			assert.EqualValues(t, wantStatus, entry["status"])
			assert.EqualValues(t, len(tt.body), entry["bytes"])
			assert.NotEmpty(t, entry["requestID"])
		})
	}
}

func TestLogger_WithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "requestID")
}
