package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

type historyEntry struct {
	ID               int64           `json:"id"`
	Timestamp        time.Time       `json:"timestamp"`
	InputData        json.RawMessage `json:"input_data"`
	PredictionResult json.RawMessage `json:"prediction_result"`
	ModelUsed        string          `json:"model_used"`
}

func (s *Server) handlePredictionHistory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)

	records, err := s.store.ListPredictions(user.ID, limit, offset)
	if err != nil {
		s.log.Error("history query failed", zapError(err))
		writeError(w, http.StatusInternalServerError, "history query failed")
		return
	}

	out := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, historyEntry{
			ID:               rec.ID,
			Timestamp:        rec.Timestamp,
			InputData:        json.RawMessage(rec.InputData),
			PredictionResult: json.RawMessage(rec.Result),
			ModelUsed:        rec.ModelUsed,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type createAlertRequest struct {
	Crop        string  `json:"crop"`
	State       string  `json:"state"`
	TargetPrice float64 `json:"target_price"`
	AlertType   string  `json:"alert_type"`
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Crop == "" {
		writeError(w, http.StatusBadRequest, "crop is required")
		return
	}
	if req.TargetPrice <= 0 {
		writeError(w, http.StatusBadRequest, "target_price must be positive")
		return
	}

	alert, err := s.store.CreateAlert(user.ID, req.Crop, req.State, req.TargetPrice, 0, req.AlertType)
	if err != nil {
		s.log.Error("alert create failed", zapError(err))
		writeError(w, http.StatusInternalServerError, "alert creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	activeOnly := true
	if v := r.URL.Query().Get("active_only"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active_only must be a boolean")
			return
		}
		activeOnly = parsed
	}

	alerts, err := s.store.ListAlerts(user.ID, activeOnly)
	if err != nil {
		s.log.Error("alert query failed", zapError(err))
		writeError(w, http.StatusInternalServerError, "alert query failed")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	stats, recent, err := s.store.Dashboard(user.ID)
	if err != nil {
		s.log.Error("dashboard query failed", zapError(err))
		writeError(w, http.StatusInternalServerError, "dashboard query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": user.ID,
		"statistics": map[string]any{
			"total_predictions":       stats.TotalPredictions,
			"average_predicted_price": stats.AveragePredictedPrice,
			"price_range":             []float64{stats.MinPrice, stats.MaxPrice},
			"active_alerts":           stats.ActiveAlerts,
		},
		"recent_predictions": recent,
		"generated_at":       time.Now().UTC().Format(time.RFC3339),
	})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
