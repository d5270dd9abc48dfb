package business

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested business does not exist.
var ErrNotFound = errors.New("business: not found")

// Repository provides access to business profiles and their partner history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateParams enumerates the fields required to register a business.
type CreateParams struct {
	Name       string
	Skills     []string
	Location   *string
	Reputation *float64
}

// Create inserts a new business profile and returns the stored row.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Profile, error) {
	const query = `
		INSERT INTO businesses (name, skills, location, reputation)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, skills, location, reputation, created_at
	`

	var profile Profile
	err := r.pool.QueryRow(ctx, query,
		params.Name,
		params.Skills,
		params.Location,
		params.Reputation,
	).Scan(&profile.ID, &profile.Name, &profile.Skills, &profile.Location, &profile.Reputation, &profile.CreatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("business: insert: %w", err)
	}

	profile.PriorPartners = map[string]float64{}
	return profile, nil
}

// GetByID fetches a business profile by its primary key, partner history
// included.
func (r *Repository) GetByID(ctx context.Context, id string) (Profile, error) {
	const query = `
		SELECT id, name, skills, location, reputation, created_at
		FROM businesses
		WHERE id = $1
	`

	var profile Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Name,
		&profile.Skills,
		&profile.Location,
		&profile.Reputation,
		&profile.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("business: query by id: %w", err)
	}

	history, err := r.partnerHistory(ctx, []string{profile.ID})
	if err != nil {
		return Profile{}, err
	}
	profile.PriorPartners = history[profile.ID]
	if profile.PriorPartners == nil {
		profile.PriorPartners = map[string]float64{}
	}

	return profile, nil
}

// List fetches up to limit business profiles ordered by name, with partner
// history attached so callers can score them without further round trips.
func (r *Repository) List(ctx context.Context, limit int) ([]Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT id, name, skills, location, reputation, created_at
		FROM businesses
		ORDER BY name ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("business: list: %w", err)
	}
	defer rows.Close()

	profiles := make([]Profile, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var profile Profile
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.Skills, &profile.Location, &profile.Reputation, &profile.CreatedAt); err != nil {
			return nil, fmt.Errorf("business: scan profile: %w", err)
		}
		profiles = append(profiles, profile)
		ids = append(ids, profile.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("business: iterate profiles: %w", err)
	}

	history, err := r.partnerHistory(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		profiles[i].PriorPartners = history[profiles[i].ID]
		if profiles[i].PriorPartners == nil {
			profiles[i].PriorPartners = map[string]float64{}
		}
	}

	return profiles, nil
}

// RecordPartnerSuccess upserts the historical success rate between two
// businesses. Rates outside [0,1] are rejected.
func (r *Repository) RecordPartnerSuccess(ctx context.Context, businessID, partnerID string, rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("business: success rate %v out of range", rate)
	}

	const query = `
		INSERT INTO partner_history (business_id, partner_id, success_rate)
		VALUES ($1, $2, $3)
		ON CONFLICT (business_id, partner_id) DO UPDATE SET success_rate = EXCLUDED.success_rate
	`
	if _, err := r.pool.Exec(ctx, query, businessID, partnerID, rate); err != nil {
		return fmt.Errorf("business: record partner success: %w", err)
	}
	return nil
}

func (r *Repository) partnerHistory(ctx context.Context, ids []string) (map[string]map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]map[string]float64{}, nil
	}

	const query = `
		SELECT business_id, partner_id, success_rate
		FROM partner_history
		WHERE business_id = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("business: partner history: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]float64, len(ids))
	for rows.Next() {
		var businessID, partnerID string
		var rate float64
		if err := rows.Scan(&businessID, &partnerID, &rate); err != nil {
			return nil, fmt.Errorf("business: scan history: %w", err)
		}
		if out[businessID] == nil {
			out[businessID] = map[string]float64{}
		}
		out[businessID][partnerID] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("business: iterate history: %w", err)
	}

	return out, nil
}
