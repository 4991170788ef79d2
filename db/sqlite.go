// Package db wraps the SQLite persistence layer for users, prediction
// history and price alerts.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrDuplicateUser is returned when a username or email is already taken.
var ErrDuplicateUser = errors.New("username or email already registered")

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	email TEXT UNIQUE NOT NULL,
	hashed_password TEXT NOT NULL,
	full_name TEXT,
	role TEXT DEFAULT 'farmer',
	is_active BOOLEAN DEFAULT 1,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	crop TEXT NOT NULL,
	state TEXT NOT NULL,
	input_data TEXT NOT NULL,
	prediction_result TEXT NOT NULL,
	model_used TEXT,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users (id)
);

CREATE TABLE IF NOT EXISTS price_alerts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	crop TEXT NOT NULL,
	state TEXT,
	target_price REAL NOT NULL,
	current_price REAL,
	alert_type TEXT DEFAULT 'price_reach',
	is_active BOOLEAN DEFAULT 1,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	triggered_at TIMESTAMP,
	FOREIGN KEY (user_id) REFERENCES users (id)
);
`

// User is an account row.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	FullName       string    `json:"full_name,omitempty"`
	Role           string    `json:"role"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// PredictionRecord is one saved prediction with its request and result
// serialized as JSON.
type PredictionRecord struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Crop      string    `json:"crop"`
	State     string    `json:"state"`
	InputData string    `json:"input_data"`
	Result    string    `json:"prediction_result"`
	ModelUsed string    `json:"model_used"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is a price alert row.
type Alert struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Crop         string     `json:"crop"`
	State        string     `json:"state,omitempty"`
	TargetPrice  float64    `json:"target_price"`
	CurrentPrice float64    `json:"current_price"`
	AlertType    string     `json:"alert_type"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	TriggeredAt  *time.Time `json:"triggered_at,omitempty"`
}

// DashboardStats is the per-user analytics summary.
type DashboardStats struct {
	TotalPredictions      int     `json:"total_predictions"`
	AveragePredictedPrice float64 `json:"average_predicted_price"`
	MinPrice              float64 `json:"min_price"`
	MaxPrice              float64 `json:"max_price"`
	ActiveAlerts          int     `json:"active_alerts"`
}

// RecentPrediction is one row of the dashboard recent activity list.
type RecentPrediction struct {
	Crop      string    `json:"crop"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// Store owns the database handle. All queries go through it.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite file and ensures the schema exists.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: conn}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// CreateUser inserts an account with an already-hashed password.
func (s *Store) CreateUser(username, email, hashedPassword, fullName, role string) (*User, error) {
	if role == "" {
		role = "farmer"
	}
	res, err := s.db.Exec(
		`INSERT INTO users (username, email, hashed_password, full_name, role) VALUES (?, ?, ?, ?, ?)`,
		username, email, hashedPassword, fullName, role,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(id)
}

// GetUserByID loads one account by primary key.
func (s *Store) GetUserByID(id int64) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, email, hashed_password, full_name, role, is_active, created_at
		 FROM users WHERE id = ?`, id))
}

// GetUserByUsername loads one account by username.
func (s *Store) GetUserByUsername(username string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, email, hashed_password, full_name, role, is_active, created_at
		 FROM users WHERE username = ?`, username))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	var fullName sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &fullName, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	u.FullName = fullName.String
	return &u, nil
}

// SavePrediction records a served prediction for later history queries.
func (s *Store) SavePrediction(userID int64, crop, state, inputData, result, modelUsed string) error {
	_, err := s.db.Exec(
		`INSERT INTO predictions (user_id, crop, state, input_data, prediction_result, model_used)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, crop, state, inputData, result, modelUsed,
	)
	if err != nil {
		return fmt.Errorf("save prediction: %w", err)
	}
	return nil
}

// ListPredictions returns the user's predictions, newest first.
func (s *Store) ListPredictions(userID int64, limit, offset int) ([]PredictionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, crop, state, input_data, prediction_result, COALESCE(model_used, ''), timestamp
		 FROM predictions WHERE user_id = ?
		 ORDER BY timestamp DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var out []PredictionRecord
	for rows.Next() {
		var p PredictionRecord
		if err := rows.Scan(&p.ID, &p.UserID, &p.Crop, &p.State, &p.InputData, &p.Result, &p.ModelUsed, &p.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateAlert registers a price alert for a user.
func (s *Store) CreateAlert(userID int64, crop, state string, targetPrice, currentPrice float64, alertType string) (*Alert, error) {
	if alertType == "" {
		alertType = "price_reach"
	}
	res, err := s.db.Exec(
		`INSERT INTO price_alerts (user_id, crop, state, target_price, current_price, alert_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, crop, state, targetPrice, currentPrice, alertType,
	)
	if err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.getAlert(id)
}

func (s *Store) getAlert(id int64) (*Alert, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, crop, COALESCE(state, ''), target_price, COALESCE(current_price, 0),
		        alert_type, is_active, created_at, triggered_at
		 FROM price_alerts WHERE id = ?`, id)
	a, err := scanAlert(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func scanAlert(scan func(...any) error) (*Alert, error) {
	var a Alert
	var triggered sql.NullTime
	err := scan(&a.ID, &a.UserID, &a.Crop, &a.State, &a.TargetPrice, &a.CurrentPrice,
		&a.AlertType, &a.IsActive, &a.CreatedAt, &triggered)
	if err != nil {
		return nil, err
	}
	if triggered.Valid {
		a.TriggeredAt = &triggered.Time
	}
	return &a, nil
}

// ListAlerts returns the user's alerts, optionally only active ones.
func (s *Store) ListAlerts(userID int64, activeOnly bool) ([]Alert, error) {
	query := `SELECT id, user_id, crop, COALESCE(state, ''), target_price, COALESCE(current_price, 0),
	                 alert_type, is_active, created_at, triggered_at
	          FROM price_alerts WHERE user_id = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ActiveAlertsForCrop returns every active alert watching a crop,
// across all users. Used by the alert evaluator after predictions.
func (s *Store) ActiveAlertsForCrop(crop string) ([]Alert, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, crop, COALESCE(state, ''), target_price, COALESCE(current_price, 0),
		        alert_type, is_active, created_at, triggered_at
		 FROM price_alerts WHERE crop = ? AND is_active = 1`, crop)
	if err != nil {
		return nil, fmt.Errorf("active alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// TriggerAlert marks an alert fired, stamping the trigger time and the
// price that tripped it.
func (s *Store) TriggerAlert(id int64, price float64, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE price_alerts SET is_active = 0, current_price = ?, triggered_at = ? WHERE id = ?`,
		price, at, id,
	)
	if err != nil {
		return fmt.Errorf("trigger alert: %w", err)
	}
	return nil
}

// Dashboard aggregates prediction statistics and recent activity for
// one user.
func (s *Store) Dashboard(userID int64) (*DashboardStats, []RecentPrediction, error) {
	var stats DashboardStats
	var avg, min, max sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        AVG(JSON_EXTRACT(prediction_result, '$.predicted_price')),
		        MIN(JSON_EXTRACT(prediction_result, '$.predicted_price')),
		        MAX(JSON_EXTRACT(prediction_result, '$.predicted_price'))
		 FROM predictions WHERE user_id = ?`, userID,
	).Scan(&stats.TotalPredictions, &avg, &min, &max)
	if err != nil {
		return nil, nil, fmt.Errorf("dashboard stats: %w", err)
	}
	stats.AveragePredictedPrice = round2(avg.Float64)
	stats.MinPrice = round2(min.Float64)
	stats.MaxPrice = round2(max.Float64)

	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM price_alerts WHERE user_id = ? AND is_active = 1`, userID,
	).Scan(&stats.ActiveAlerts)
	if err != nil {
		return nil, nil, fmt.Errorf("dashboard alerts: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT crop, JSON_EXTRACT(prediction_result, '$.predicted_price'), timestamp
		 FROM predictions WHERE user_id = ?
		 ORDER BY timestamp DESC LIMIT 5`, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("dashboard recent: %w", err)
	}
	defer rows.Close()

	var recent []RecentPrediction
	for rows.Next() {
		var r RecentPrediction
		var price sql.NullFloat64
		if err := rows.Scan(&r.Crop, &price, &r.Timestamp); err != nil {
			return nil, nil, err
		}
		r.Price = round2(price.Float64)
		recent = append(recent, r)
	}
	return &stats, recent, rows.Err()
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
