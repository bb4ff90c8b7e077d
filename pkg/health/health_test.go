package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(h ComponentHealth) Check {
	return func(context.Context) ComponentHealth { return h }
}

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("index", constant(Up("2 shards")))
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.RegisterOptional("redis", constant(Down(errors.New("connection refused"))))
	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, StatusDegraded, report.Components["redis"].Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)
	assert.NotEmpty(t, report.Components["index"].Latency)

	c.Register("index", constant(Down(errors.New("no shards"))))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("index", constant(Up("")))
	c.RegisterOptional("kafka", constant(Down(errors.New("no brokers"))))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Len(t, report.Components, 2)

	c.Register("index", constant(Down(errors.New("closed"))))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
