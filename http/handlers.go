package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"agriquant/market"
	"agriquant/ml"
	"agriquant/monitoring"
)

type predictRequest struct {
	Crop          string   `json:"crop"`
	State         string   `json:"state"`
	SoilType      string   `json:"soil_type"`
	Month         int      `json:"month"`
	Temperature   float64  `json:"temperature"`
	Rainfall      float64  `json:"rainfall"`
	Humidity      float64  `json:"humidity"`
	PrevYearPrice float64  `json:"prev_year_price"`
	Area          *float64 `json:"area,omitempty"`
	Date          string   `json:"date,omitempty"`
}

type predictResponse struct {
	ml.PredictionResult
	MarketInsights  *market.Insights `json:"market_insights,omitempty"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

type batchRequest struct {
	Predictions     []predictRequest `json:"predictions"`
	IncludeInsights bool             `json:"include_insights"`
}

type batchSummary struct {
	TotalPredictions int        `json:"total_predictions"`
	AveragePrice     float64    `json:"average_price"`
	PriceRange       [2]float64 `json:"price_range"`
	Currency         string     `json:"currency"`
}

type batchResponse struct {
	Results []predictResponse `json:"results"`
	Summary batchSummary      `json:"summary"`
}

func (r predictRequest) validate() error {
	if r.Crop == "" || r.State == "" || r.SoilType == "" {
		return fmt.Errorf("crop, state and soil_type are required")
	}
	if r.Month < 1 || r.Month > 12 {
		return fmt.Errorf("month must be between 1 and 12")
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		return fmt.Errorf("humidity must be between 0 and 100")
	}
	if r.PrevYearPrice <= 0 {
		return fmt.Errorf("prev_year_price must be positive")
	}
	if r.Area != nil && *r.Area <= 0 {
		return fmt.Errorf("area must be positive")
	}
	if r.Date != "" {
		if _, err := time.Parse("2006-01-02", r.Date); err != nil {
			return fmt.Errorf("date must be formatted YYYY-MM-DD")
		}
	}
	return nil
}

func (r predictRequest) toInput() ml.Input {
	in := ml.Input{
		Crop:          r.Crop,
		State:         r.State,
		SoilType:      r.SoilType,
		Month:         r.Month,
		Temperature:   r.Temperature,
		Rainfall:      r.Rainfall,
		Humidity:      r.Humidity,
		PrevYearPrice: r.PrevYearPrice,
	}
	if r.Date != "" {
		if d, err := time.Parse("2006-01-02", r.Date); err == nil {
			in.Date = &d
		}
	}
	return in
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "crop price prediction api",
		"version": serviceVersion,
		"endpoints": []string{
			"POST /predict", "POST /predict/batch", "GET /crops/available",
			"GET /health", "POST /token", "POST /register",
			"GET /predictions/history", "POST /alerts", "GET /alerts",
			"GET /insights/market", "GET /analytics/dashboard",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	modelLoaded := s.estimator != nil
	report := s.report
	s.mu.RUnlock()

	dbOK := s.store != nil && s.store.Ping() == nil

	resp := map[string]any{
		"status":             "healthy",
		"model_loaded":       modelLoaded,
		"database_connected": dbOK,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"version":            serviceVersion,
	}
	if report != nil {
		resp["model"] = report
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAvailableCrops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"crops":           market.Crops(),
		"states":          market.States(),
		"soil_types":      market.SoilTypes(),
		"crop_categories": market.CropCategories(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	est := s.currentEstimator()
	if est == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction service not available")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.predictOne(est, req, s.cfg.InsightsEnabled)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.recordPrediction(r, req, resp)
	s.afterPrediction(req, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	est := s.currentEstimator()
	if est == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction service not available")
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Predictions) == 0 {
		writeError(w, http.StatusBadRequest, "predictions must not be empty")
		return
	}

	results := make([]predictResponse, 0, len(req.Predictions))
	var sum float64
	var lo, hi float64
	for i, item := range req.Predictions {
		if err := item.validate(); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("prediction %d: %v", i, err))
			return
		}
		resp, err := s.predictOne(est, item, req.IncludeInsights && s.cfg.InsightsEnabled)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("prediction %d: %v", i, err))
			return
		}
		p := resp.PredictedPrice
		sum += p
		if i == 0 || p < lo {
			lo = p
		}
		if i == 0 || p > hi {
			hi = p
		}
		results = append(results, resp)
		s.recordPrediction(r, item, resp)
		s.afterPrediction(item, resp)
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Results: results,
		Summary: batchSummary{
			TotalPredictions: len(results),
			AveragePrice:     ml.Round2(sum / float64(len(results))),
			PriceRange:       [2]float64{ml.Round2(lo), ml.Round2(hi)},
			Currency:         "INR",
		},
	})
}

func (s *Server) predictOne(est ml.PriceEstimator, req predictRequest, withInsights bool) (predictResponse, error) {
	result, err := ml.Predict(est, req.toInput())
	if err != nil {
		return predictResponse{}, err
	}

	resp := predictResponse{PredictionResult: result}
	if withInsights && s.insights != nil {
		ins := s.insights.Lookup(req.Crop, req.State, market.InsightPriceTrend)
		resp.MarketInsights = &ins
		resp.Recommendations = market.Recommendations(market.RecommendationInput{
			PredictedPrice: result.PredictedPrice,
			Temperature:    req.Temperature,
			Rainfall:       req.Rainfall,
			Month:          req.Month,
		})
	}
	return resp, nil
}

// recordPrediction saves history for the authenticated user when the
// history feature is on. Missing user or disabled flag is a no-op.
func (s *Server) recordPrediction(r *http.Request, req predictRequest, resp predictResponse) {
	if !s.cfg.HistoryEnabled || s.store == nil {
		return
	}
	user := userFrom(r.Context())
	if user == nil {
		return
	}

	inputJSON, err := json.Marshal(req)
	if err != nil {
		return
	}
	resultJSON, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.store.SavePrediction(user.ID, req.Crop, req.State, string(inputJSON), string(resultJSON), resp.ModelMetadata.ModelType); err != nil {
		s.log.Error("history save failed", zapError(err))
	}
}

// afterPrediction runs the alert evaluator so price alerts fire off the
// freshest estimate.
func (s *Server) afterPrediction(req predictRequest, resp predictResponse) {
	if s.alerts == nil {
		return
	}
	s.alerts.Evaluate(req.Crop, req.State, resp.PredictedPrice)
	if s.hub != nil {
		s.hub.Publish(monitoring.PredictionEvent, map[string]any{
			"crop":            req.Crop,
			"state":           req.State,
			"predicted_price": resp.PredictedPrice,
		})
	}
}

func (s *Server) handleMarketInsights(w http.ResponseWriter, r *http.Request) {
	crop := r.URL.Query().Get("crop")
	if crop == "" {
		writeError(w, http.StatusBadRequest, "crop query parameter is required")
		return
	}
	state := r.URL.Query().Get("state")
	insightType := r.URL.Query().Get("insight_type")
	if insightType == "" {
		insightType = market.InsightPriceTrend
	}

	ins := s.insights.Lookup(crop, state, insightType)
	writeJSON(w, http.StatusOK, map[string]any{
		"crop":         crop,
		"state":        state,
		"insight_type": insightType,
		"insights":     ins,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	})
}
