// Package store persists finished travel plans to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no plan has the requested id
var ErrNotFound = errors.New("store: plan not found")

// DB is the subset of *pgxpool.Pool used by PlanRepository
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PlanRecord is one row of ai_travel_plans. PlanData holds the full plan
// document as JSON.
type PlanRecord struct {
	ID                string
	UserID            string
	CityID            string
	CityName          string
	CityImage         string
	Duration          int
	BudgetLevel       string
	TravelStyle       string
	Interests         []string
	DepartureLocation string
	DepartureDate     *time.Time
	PlanData          []byte
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewPool opens a pgx pool and verifies connectivity
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS ai_travel_plans (
    id                 UUID PRIMARY KEY,
    user_id            UUID NOT NULL,
    city_id            TEXT NOT NULL,
    city_name          TEXT NOT NULL,
    city_image         TEXT,
    duration           INTEGER NOT NULL,
    budget_level       TEXT NOT NULL DEFAULT 'medium',
    travel_style       TEXT NOT NULL DEFAULT 'culture',
    interests          TEXT[],
    departure_location TEXT,
    departure_date     TIMESTAMPTZ,
    plan_data          JSONB NOT NULL DEFAULT '{}',
    status             TEXT NOT NULL DEFAULT 'draft',
    is_public          BOOLEAN NOT NULL DEFAULT FALSE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS ai_travel_plans_user_id_idx ON ai_travel_plans (user_id);
`

// PlanRepository stores plans in ai_travel_plans
type PlanRepository struct {
	db DB
}

func NewPlanRepository(db DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Migrate creates the table when it does not exist
func (r *PlanRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ai_travel_plans: %w", err)
	}
	return nil
}

// Save inserts the plan, replacing the stored document if the id exists
func (r *PlanRepository) Save(ctx context.Context, rec PlanRecord) error {
	query := `
INSERT INTO ai_travel_plans (id, user_id, city_id, city_name, city_image, duration, budget_level, travel_style, interests, departure_location, departure_date, plan_data, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE
SET plan_data = EXCLUDED.plan_data,
    status = EXCLUDED.status,
    updated_at = NOW();
`
	status := rec.Status
	if status == "" {
		status = "draft"
	}

	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.UserID,
		rec.CityID,
		rec.CityName,
		nullableString(rec.CityImage),
		rec.Duration,
		rec.BudgetLevel,
		rec.TravelStyle,
		rec.Interests,
		nullableString(rec.DepartureLocation),
		rec.DepartureDate,
		rec.PlanData,
		status,
	)
	if err != nil {
		return fmt.Errorf("save plan %s: %w", rec.ID, err)
	}
	return nil
}

// Get fetches a plan by id
func (r *PlanRepository) Get(ctx context.Context, id string) (*PlanRecord, error) {
	query := `
SELECT id::text, user_id::text, city_id, city_name, COALESCE(city_image, ''), duration, budget_level, travel_style,
       COALESCE(interests, '{}'), COALESCE(departure_location, ''), departure_date, plan_data, status, created_at, updated_at
FROM ai_travel_plans
WHERE id = $1;
`
	var rec PlanRecord
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.CityID,
		&rec.CityName,
		&rec.CityImage,
		&rec.Duration,
		&rec.BudgetLevel,
		&rec.TravelStyle,
		&rec.Interests,
		&rec.DepartureLocation,
		&rec.DepartureDate,
		&rec.PlanData,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	return &rec, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
