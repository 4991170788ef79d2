package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateUserAndLookup(t *testing.T) {
	store := openTestStore(t)

	user, err := store.CreateUser("sita", "sita@example.com", "hash", "Sita Devi", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if user.Role != "farmer" {
		t.Fatalf("expected default role farmer, got %s", user.Role)
	}
	if !user.IsActive {
		t.Fatal("new user must be active")
	}

	loaded, err := store.GetUserByUsername("sita")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if loaded.ID != user.ID || loaded.Email != "sita@example.com" {
		t.Fatalf("unexpected user: %+v", loaded)
	}

	if _, err := store.GetUserByUsername("nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.CreateUser("sita", "sita@example.com", "hash", "", ""); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.CreateUser("sita", "other@example.com", "hash", "", ""); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for username, got %v", err)
	}
	if _, err := store.CreateUser("gita", "sita@example.com", "hash", "", ""); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for email, got %v", err)
	}
}

func TestPredictionHistoryPagination(t *testing.T) {
	store := openTestStore(t)
	user, err := store.CreateUser("sita", "sita@example.com", "hash", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		err := store.SavePrediction(user.ID, "Rice", "Punjab",
			`{"crop":"Rice"}`, `{"predicted_price":2000}`, "Ensemble")
		if err != nil {
			t.Fatalf("save %d failed: %v", i, err)
		}
	}

	page, err := store.ListPredictions(user.ID, 3, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(page))
	}

	rest, err := store.ListPredictions(user.ID, 3, 3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rest))
	}

	// Another user sees nothing.
	other, err := store.CreateUser("gita", "gita@example.com", "hash", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	empty, err := store.ListPredictions(other.ID, 10, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty history, got %d", len(empty))
	}
}

func TestAlertTrigger(t *testing.T) {
	store := openTestStore(t)
	user, err := store.CreateUser("sita", "sita@example.com", "hash", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	alert, err := store.CreateAlert(user.ID, "Rice", "Punjab", 2400, 0, "")
	if err != nil {
		t.Fatalf("create alert failed: %v", err)
	}
	if alert.AlertType != "price_reach" {
		t.Fatalf("expected default alert type, got %s", alert.AlertType)
	}

	active, err := store.ActiveAlertsForCrop("Rice")
	if err != nil {
		t.Fatalf("active lookup failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active alert, got %d", len(active))
	}

	if err := store.TriggerAlert(alert.ID, 2500, time.Now()); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	active, err = store.ActiveAlertsForCrop("Rice")
	if err != nil {
		t.Fatalf("active lookup failed: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("triggered alert still active: %d", len(active))
	}

	all, err := store.ListAlerts(user.ID, false)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 || all[0].TriggeredAt == nil || all[0].CurrentPrice != 2500 {
		t.Fatalf("unexpected alert state: %+v", all)
	}
}

func TestDashboardEmpty(t *testing.T) {
	store := openTestStore(t)
	user, err := store.CreateUser("sita", "sita@example.com", "hash", "", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stats, recent, err := store.Dashboard(user.ID)
	if err != nil {
		t.Fatalf("dashboard failed: %v", err)
	}
	if stats.TotalPredictions != 0 || stats.ActiveAlerts != 0 {
		t.Fatalf("expected empty stats, got %+v", stats)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no recent rows, got %d", len(recent))
	}
}
