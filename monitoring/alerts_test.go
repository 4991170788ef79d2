package monitoring

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"agriquant/db"
)

type fakeStore struct {
	alerts    []db.Alert
	triggered []int64
}

func (f *fakeStore) ActiveAlertsForCrop(crop string) ([]db.Alert, error) {
	var out []db.Alert
	for _, a := range f.alerts {
		if a.Crop == crop && a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) TriggerAlert(id int64, price float64, at time.Time) error {
	f.triggered = append(f.triggered, id)
	return nil
}

func TestEvaluateFiresOnTarget(t *testing.T) {
	store := &fakeStore{alerts: []db.Alert{
		{ID: 1, Crop: "Rice", State: "Punjab", TargetPrice: 2400, AlertType: "price_reach", IsActive: true},
		{ID: 2, Crop: "Rice", State: "Gujarat", TargetPrice: 2400, AlertType: "price_reach", IsActive: true},
		{ID: 3, Crop: "Rice", TargetPrice: 3000, AlertType: "price_reach", IsActive: true},
		{ID: 4, Crop: "Wheat", TargetPrice: 1000, AlertType: "price_reach", IsActive: true},
	}}
	eval := NewAlertEvaluator(store, nil, zap.NewNop())

	fired := eval.Evaluate("Rice", "Punjab", 2500)
	if len(fired) != 1 {
		t.Fatalf("expected 1 fired alert, got %d", len(fired))
	}
	if fired[0].AlertID != 1 {
		t.Fatalf("wrong alert fired: %d", fired[0].AlertID)
	}
	if fired[0].Price != 2500 || fired[0].TargetPrice != 2400 {
		t.Fatalf("unexpected payload: %+v", fired[0])
	}
	if len(store.triggered) != 1 || store.triggered[0] != 1 {
		t.Fatalf("store not updated: %v", store.triggered)
	}
}

func TestEvaluateUnscopedAlertMatchesAnyState(t *testing.T) {
	store := &fakeStore{alerts: []db.Alert{
		{ID: 5, Crop: "Onion", TargetPrice: 1800, AlertType: "price_reach", IsActive: true},
	}}
	eval := NewAlertEvaluator(store, nil, zap.NewNop())

	if fired := eval.Evaluate("Onion", "Karnataka", 2000); len(fired) != 1 {
		t.Fatalf("state-unscoped alert should fire, got %d", len(fired))
	}
}

func TestEvaluatePriceDrop(t *testing.T) {
	store := &fakeStore{alerts: []db.Alert{
		{ID: 6, Crop: "Potato", TargetPrice: 1000, AlertType: "price_drop", IsActive: true},
	}}
	eval := NewAlertEvaluator(store, nil, zap.NewNop())

	if fired := eval.Evaluate("Potato", "", 1100); len(fired) != 0 {
		t.Fatalf("drop alert must not fire above target, got %d", len(fired))
	}
	if fired := eval.Evaluate("Potato", "", 900); len(fired) != 1 {
		t.Fatalf("drop alert should fire below target, got %d", len(fired))
	}
}
