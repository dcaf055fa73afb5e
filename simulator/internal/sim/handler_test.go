package sim

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hex20/telemetry-health/pkg/types"
)

func TestHandler_Telemetry(t *testing.T) {
	s := newSim(t, nil)
	s.Prefill(20, time.Second)
	srv := httptest.NewServer(NewHandler(s, 10))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/telemetry")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var got []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 10)

	first := got[0]
	assert.EqualValues(t, 10, first["id"])
	assert.EqualValues(t, s.now().Add(-9*time.Second).UnixMilli(), first["timestamp"])
	for _, k := range []string{"iso_flag", "lr_batt_flag", "rule_flag", "combined_flag", "comm"} {
		v, ok := first[k].(float64)
		require.True(t, ok, "%s must be numeric", k)
		assert.Contains(t, []float64{0, 1, 2}, v, k)
	}
	assert.Contains(t, first, "iso_score")
}

func TestHandler_Stats(t *testing.T) {
	s := newSim(t, nil)
	s.Prefill(20, time.Second)
	s.Inject(types.AnomalyComm)
	s.Step()
	srv := httptest.NewServer(NewHandler(s, 10))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got types.HealthSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, Stats(s.Latest(10)), got)
	assert.Equal(t, 10, got.Total())
	assert.GreaterOrEqual(t, got.Critical, 1)
}

func TestHandler_Inject(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		body     string
		wantCode int
		wantKind types.AnomalyKind
	}{
		{"battery", http.MethodPost, `{"type":"battery"}`, http.StatusOK, types.AnomalyBattery},
		{"comm", http.MethodPost, `{"type":"comm"}`, http.StatusOK, types.AnomalyComm},
		{"unknown type", http.MethodPost, `{"type":"solar"}`, http.StatusBadRequest, ""},
		{"bad json", http.MethodPost, `{`, http.StatusBadRequest, ""},
		{"wrong method", http.MethodGet, ``, http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSim(t, nil)
			h := NewHandler(s, 10)

			req := httptest.NewRequest(tt.method, "/inject_anomaly", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			kind, _ := s.Active()
			assert.Equal(t, tt.wantKind, kind)
			if tt.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"status":"injected","type":"`+string(tt.wantKind)+`"}`, rec.Body.String())
			}
		})
	}
}

func TestHandler_InjectInvalidDetail(t *testing.T) {
	h := NewHandler(newSim(t, nil), 10)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/inject_anomaly", strings.NewReader(`{"type":"x"}`)))
	assert.JSONEq(t, `{"detail":"Invalid anomaly type"}`, rec.Body.String())
}

func TestHandler_Preflight(t *testing.T) {
	h := NewHandler(newSim(t, nil), 10)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/inject_anomaly", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}
