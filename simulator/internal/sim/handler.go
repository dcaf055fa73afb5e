package sim

import (
	"encoding/json"
	"net/http"

	"github.com/hex20/telemetry-health/pkg/types"
)

// wireReading is the upstream JSON shape: epoch-millisecond timestamps and
// 0/1 integer flags.
type wireReading struct {
	ID           int64   `json:"id"`
	Timestamp    int64   `json:"timestamp"`
	BatteryV     float64 `json:"battery_v"`
	Temp         float64 `json:"temp"`
	SolarI       float64 `json:"solar_i"`
	CPU          float64 `json:"cpu"`
	Comm         int     `json:"comm"`
	IsoFlag      int     `json:"iso_flag"`
	IsoScore     float64 `json:"iso_score"`
	LRBattFlag   int     `json:"lr_batt_flag"`
	RuleFlag     int     `json:"rule_flag"`
	CombinedFlag int     `json:"combined_flag"`
}

func toWire(r types.Reading) wireReading {
	return wireReading{
		ID:           r.ID,
		Timestamp:    r.Timestamp.UnixMilli(),
		BatteryV:     r.BatteryV,
		Temp:         r.Temp,
		SolarI:       r.SolarI,
		CPU:          r.CPU,
		Comm:         int(r.Comm),
		IsoFlag:      bit(r.IsoFlag),
		IsoScore:     r.IsoScore,
		LRBattFlag:   bit(r.LRBattFlag),
		RuleFlag:     bit(r.RuleFlag),
		CombinedFlag: bit(r.CombinedFlag),
	}
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}

type injectResponse struct {
	Status string            `json:"status"`
	Type   types.AnomalyKind `json:"type"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

// NewHandler serves the upstream ingestion API for s. /telemetry returns at
// most latest readings.
//
//	GET  /telemetry       newest readings, oldest first
//	GET  /stats           {critical, warning, normal} over the same readings
//	POST /inject_anomaly  {"type": "battery"|"temp"|"comm"}
func NewHandler(s *Simulator, latest int) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			jsonResp(w, http.StatusMethodNotAllowed, detailResponse{"method not allowed"})
			return
		}
		readings := s.Latest(latest)
		out := make([]wireReading, len(readings))
		for i, rd := range readings {
			out[i] = toWire(rd)
		}
		jsonResp(w, http.StatusOK, out)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			jsonResp(w, http.StatusMethodNotAllowed, detailResponse{"method not allowed"})
			return
		}
		jsonResp(w, http.StatusOK, Stats(s.Latest(latest)))
	})

	mux.HandleFunc("/inject_anomaly", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			jsonResp(w, http.StatusMethodNotAllowed, detailResponse{"method not allowed"})
			return
		}
		var cmd struct {
			Type string `json:"type"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&cmd); err != nil {
			jsonResp(w, http.StatusBadRequest, detailResponse{"invalid request body"})
			return
		}
		kind, err := types.ParseAnomalyKind(cmd.Type)
		if err != nil {
			jsonResp(w, http.StatusBadRequest, detailResponse{"Invalid anomaly type"})
			return
		}
		s.Inject(kind)
		jsonResp(w, http.StatusOK, injectResponse{Status: "injected", Type: kind})
	})

	return cors(mux)
}

// cors allows any origin; the simulator is a local demo backend.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
