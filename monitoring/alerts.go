package monitoring

import (
	"time"

	"go.uber.org/zap"

	"agriquant/db"
)

// AlertStore is the slice of the persistence layer the evaluator needs.
type AlertStore interface {
	ActiveAlertsForCrop(crop string) ([]db.Alert, error)
	TriggerAlert(id int64, price float64, at time.Time) error
}

// TriggeredAlert is the payload pushed to stream subscribers when a
// price alert fires.
type TriggeredAlert struct {
	AlertID     int64     `json:"alert_id"`
	UserID      int64     `json:"user_id"`
	Crop        string    `json:"crop"`
	State       string    `json:"state,omitempty"`
	TargetPrice float64   `json:"target_price"`
	Price       float64   `json:"price"`
	AlertType   string    `json:"alert_type"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// AlertEvaluator checks fresh predictions against active price alerts.
type AlertEvaluator struct {
	store AlertStore
	hub   *Hub
	log   *zap.Logger
}

// NewAlertEvaluator wires the evaluator to storage and the stream hub.
// hub may be nil when streaming is disabled.
func NewAlertEvaluator(store AlertStore, hub *Hub, log *zap.Logger) *AlertEvaluator {
	return &AlertEvaluator{store: store, hub: hub, log: log}
}

// Evaluate fires every active alert for the crop whose target the
// predicted price reached. State-scoped alerts only match their state.
func (e *AlertEvaluator) Evaluate(crop, state string, price float64) []TriggeredAlert {
	alerts, err := e.store.ActiveAlertsForCrop(crop)
	if err != nil {
		e.log.Error("alert lookup failed", zap.String("crop", crop), zap.Error(err))
		return nil
	}

	var fired []TriggeredAlert
	now := time.Now()
	for _, a := range alerts {
		if a.State != "" && a.State != state {
			continue
		}
		if !reached(a, price) {
			continue
		}
		if err := e.store.TriggerAlert(a.ID, price, now); err != nil {
			e.log.Error("alert trigger failed", zap.Int64("alert_id", a.ID), zap.Error(err))
			continue
		}
		t := TriggeredAlert{
			AlertID:     a.ID,
			UserID:      a.UserID,
			Crop:        a.Crop,
			State:       a.State,
			TargetPrice: a.TargetPrice,
			Price:       price,
			AlertType:   a.AlertType,
			TriggeredAt: now,
		}
		fired = append(fired, t)
		e.log.Info("price alert triggered",
			zap.Int64("alert_id", a.ID),
			zap.String("crop", a.Crop),
			zap.Float64("target", a.TargetPrice),
			zap.Float64("price", price))
		if e.hub != nil {
			if err := e.hub.Publish(AlertTriggered, t); err != nil {
				e.log.Warn("alert publish failed", zap.Error(err))
			}
		}
	}
	return fired
}

func reached(a db.Alert, price float64) bool {
	switch a.AlertType {
	case "price_drop":
		return price <= a.TargetPrice
	default:
		return price >= a.TargetPrice
	}
}
