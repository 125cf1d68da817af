package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerLevelParsing(t *testing.T) {
	logger, err := NewLogger(Config{Component: "api-server", Level: "debug"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(Config{Level: "shouting"})
	require.Error(t, err)
}

func TestRequestLoggerEnrichesAndPublishes(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	var seen *zap.Logger
	h := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromRequest(r, zap.NewNop())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenant", nil)
	req.Host = "stanford.gradnet.io"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.NotNil(t, seen)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "stanford.gradnet.io", fields["host"])
	require.Equal(t, "/api/v1/tenant", fields["path"])
	require.Equal(t, int64(http.StatusTeapot), fields["status"])
}
