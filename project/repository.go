package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound            = errors.New("project: not found")
	ErrTeamAlreadyAssigned = errors.New("project: team already assigned")
	ErrUnknownTeamMember   = errors.New("project: team member does not exist")
)

// Repository defines the data access required by the project service and the
// escrow tracker.
type Repository interface {
	Create(ctx context.Context, proj Project) (Project, error)
	GetByID(ctx context.Context, id string) (Project, error)
	List(ctx context.Context, filters Filters) ([]Project, int, error)
	AssignTeam(ctx context.Context, id string, teamIDs []string) (Project, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Project, error)
	MarkFundsSecured(ctx context.Context, tx pgx.Tx, id string) error
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const projectColumns = `id, title, required_skills, location, budget, assigned_team, funds_status, created_at, updated_at`

func (r *PGRepository) Create(ctx context.Context, proj Project) (Project, error) {
	const query = `
		INSERT INTO projects (id, title, required_skills, location, budget, assigned_team, funds_status)
		VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4, $5, '{}', 'pending')
		RETURNING ` + projectColumns

	row := r.pool.QueryRow(ctx, query,
		proj.ID,
		proj.Title,
		proj.RequiredSkills,
		proj.Location,
		proj.Budget,
	)
	return scanProject(row)
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	proj, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("project: query by id: %w", err)
	}
	return proj, nil
}

func (r *PGRepository) List(ctx context.Context, filters Filters) ([]Project, int, error) {
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.PageSize <= 0 || filters.PageSize > 100 {
		filters.PageSize = 20
	}

	base := `SELECT ` + projectColumns + ` FROM projects`
	where := []string{"1=1"}
	args := []any{}

	if filters.FundsStatus != "" {
		where = append(where, fmt.Sprintf("funds_status=$%d", len(args)+1))
		args = append(args, filters.FundsStatus)
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")
	query := fmt.Sprintf(`%s%s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, whereClause, filters.PageSize, (filters.Page-1)*filters.PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("project: query list: %w", err)
	}
	defer rows.Close()

	list := []Project{}
	for rows.Next() {
		proj, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("project: scan list: %w", err)
		}
		list = append(list, proj)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("project: iterate list: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM projects%s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("project: count list: %w", err)
	}

	return list, total, nil
}

// AssignTeam sets the project's team exactly once. The guarded UPDATE only
// touches rows whose team is still empty; when it matches nothing we go back
// and distinguish a missing project from a re-assignment attempt.
func (r *PGRepository) AssignTeam(ctx context.Context, id string, teamIDs []string) (Project, error) {
	var known int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM businesses WHERE id = ANY($1)`, teamIDs).Scan(&known); err != nil {
		return Project{}, fmt.Errorf("project: verify team members: %w", err)
	}
	if known != len(teamIDs) {
		return Project{}, ErrUnknownTeamMember
	}

	const query = `
		UPDATE projects
		SET assigned_team = $2,
		    updated_at = now()
		WHERE id = $1 AND cardinality(assigned_team) = 0
		RETURNING ` + projectColumns

	proj, err := scanProject(r.pool.QueryRow(ctx, query, id, teamIDs))
	if err == nil {
		return proj, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Project{}, fmt.Errorf("project: assign team: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM projects WHERE id=$1)`, id).Scan(&exists); err != nil {
		return Project{}, fmt.Errorf("project: assign team fetch: %w", err)
	}
	if !exists {
		return Project{}, ErrNotFound
	}
	return Project{}, ErrTeamAlreadyAssigned
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Project, error) {
	const query = `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 FOR UPDATE`

	proj, err := scanProject(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, fmt.Errorf("project: get for update: %w", err)
	}
	return proj, nil
}

func (r *PGRepository) MarkFundsSecured(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE projects
		SET funds_status = 'secured',
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("project: mark funds secured: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(row pgx.Row) (Project, error) {
	var proj Project
	return proj, row.Scan(
		&proj.ID,
		&proj.Title,
		&proj.RequiredSkills,
		&proj.Location,
		&proj.Budget,
		&proj.AssignedTeam,
		&proj.FundsStatus,
		&proj.CreatedAt,
		&proj.UpdatedAt,
	)
}
