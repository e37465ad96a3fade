package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/modelyard/platform/internal/domain"
	"github.com/modelyard/platform/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository     = (*Repository)(nil)
	_ repository.TeamRepository     = (*Repository)(nil)
	_ repository.ProjectRepository  = (*Repository)(nil)
	_ repository.EndpointRepository = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateTeam creates a team record.
func (r *Repository) CreateTeam(ctx context.Context, team *domain.Team) error {
	const query = `INSERT INTO teams (id, slug, name, owner_id, max_projects, max_endpoints, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, team.ID, team.Slug, team.Name, team.OwnerID, team.MaxProjects, team.MaxEndpoints, team.CreatedAt)
	return err
}

// UpsertMember adds a member to a team.
func (r *Repository) UpsertMember(ctx context.Context, member *domain.TeamMember) error {
	const query = `INSERT INTO team_members (team_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, user_id) DO UPDATE SET role = EXCLUDED.role`
	_, err := r.pool.Exec(ctx, query, member.TeamID, member.UserID, member.Role, member.CreatedAt)
	return err
}

// GetTeamByID returns a team by identifier.
func (r *Repository) GetTeamByID(ctx context.Context, teamID string) (*domain.Team, error) {
	const query = `SELECT id, slug, name, owner_id, max_projects, max_endpoints, created_at FROM teams WHERE id = $1`
	return r.scanTeam(r.pool.QueryRow(ctx, query, teamID))
}

// GetTeamBySlug returns a team by its URL slug.
func (r *Repository) GetTeamBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	const query = `SELECT id, slug, name, owner_id, max_projects, max_endpoints, created_at FROM teams WHERE slug = $1`
	return r.scanTeam(r.pool.QueryRow(ctx, query, slug))
}

func (r *Repository) scanTeam(row pgx.Row) (*domain.Team, error) {
	var team domain.Team
	if err := row.Scan(&team.ID, &team.Slug, &team.Name, &team.OwnerID, &team.MaxProjects, &team.MaxEndpoints, &team.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &team, nil
}

// IsMember reports whether the user belongs to the team.
func (r *Repository) IsMember(ctx context.Context, teamID, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM team_members WHERE team_id = $1 AND user_id = $2)`
	row := r.pool.QueryRow(ctx, query, teamID, userID)
	var member bool
	if err := row.Scan(&member); err != nil {
		return false, err
	}
	return member, nil
}

// ListTeamsByUser returns teams the user belongs to.
func (r *Repository) ListTeamsByUser(ctx context.Context, userID string) ([]domain.Team, error) {
	const query = `SELECT t.id, t.slug, t.name, t.owner_id, t.max_projects, t.max_endpoints, t.created_at
		FROM teams t
		JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.created_at`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := make([]domain.Team, 0)
	for rows.Next() {
		var team domain.Team
		if err := rows.Scan(&team.ID, &team.Slug, &team.Name, &team.OwnerID, &team.MaxProjects, &team.MaxEndpoints, &team.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

// CountProjects counts projects assigned to a team.
func (r *Repository) CountProjects(ctx context.Context, teamID string) (int, error) {
	const query = `SELECT COUNT(1) FROM projects WHERE team_id = $1`
	row := r.pool.QueryRow(ctx, query, teamID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, team_id, slug, name, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, project.ID, project.TeamID, project.Slug, project.Name, project.Description, project.CreatedAt)
	return err
}

// GetProjectByID fetches a project by identifier.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	const query = `SELECT id, team_id, slug, name, description, created_at FROM projects WHERE id = $1`
	return r.scanProject(r.pool.QueryRow(ctx, query, projectID))
}

// GetProjectBySlug fetches a project within a team by its slug.
func (r *Repository) GetProjectBySlug(ctx context.Context, teamID, slug string) (*domain.Project, error) {
	const query = `SELECT id, team_id, slug, name, description, created_at FROM projects WHERE team_id = $1 AND slug = $2`
	return r.scanProject(r.pool.QueryRow(ctx, query, teamID, slug))
}

func (r *Repository) scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.TeamID, &p.Slug, &p.Name, &p.Description, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListProjectsByTeam returns projects owned by the team.
func (r *Repository) ListProjectsByTeam(ctx context.Context, teamID string) ([]domain.Project, error) {
	const query = `SELECT id, team_id, slug, name, description, created_at FROM projects WHERE team_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0)
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.TeamID, &p.Slug, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

const endpointColumns = `id, project_id, slug, name, status, error_message, build_logs, service_url, api_key, artifact_uri, deployed_at, created_at, updated_at`

// CreateEndpoint inserts an endpoint record.
func (r *Repository) CreateEndpoint(ctx context.Context, endpoint *domain.Endpoint) error {
	const query = `INSERT INTO endpoints (id, project_id, slug, name, status, error_message, build_logs, service_url, api_key, artifact_uri, deployed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.pool.Exec(ctx, query,
		endpoint.ID, endpoint.ProjectID, endpoint.Slug, endpoint.Name, endpoint.Status,
		endpoint.ErrorMessage, endpoint.BuildLogs, endpoint.ServiceURL, endpoint.APIKey,
		endpoint.ArtifactURI, endpoint.DeployedAt, endpoint.CreatedAt, endpoint.UpdatedAt)
	return err
}

// GetEndpointByID fetches an endpoint by identifier.
func (r *Repository) GetEndpointByID(ctx context.Context, endpointID string) (*domain.Endpoint, error) {
	const query = `SELECT ` + endpointColumns + ` FROM endpoints WHERE id = $1`
	return r.scanEndpoint(r.pool.QueryRow(ctx, query, endpointID))
}

// GetEndpointBySlug fetches an endpoint within a project by its slug.
func (r *Repository) GetEndpointBySlug(ctx context.Context, projectID, slug string) (*domain.Endpoint, error) {
	const query = `SELECT ` + endpointColumns + ` FROM endpoints WHERE project_id = $1 AND slug = $2`
	return r.scanEndpoint(r.pool.QueryRow(ctx, query, projectID, slug))
}

func (r *Repository) scanEndpoint(row pgx.Row) (*domain.Endpoint, error) {
	var e domain.Endpoint
	if err := row.Scan(&e.ID, &e.ProjectID, &e.Slug, &e.Name, &e.Status, &e.ErrorMessage,
		&e.BuildLogs, &e.ServiceURL, &e.APIKey, &e.ArtifactURI, &e.DeployedAt,
		&e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListEndpointsByProject returns endpoints belonging to a project.
func (r *Repository) ListEndpointsByProject(ctx context.Context, projectID string) ([]domain.Endpoint, error) {
	const query = `SELECT ` + endpointColumns + ` FROM endpoints WHERE project_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	endpoints := make([]domain.Endpoint, 0)
	for rows.Next() {
		var e domain.Endpoint
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Slug, &e.Name, &e.Status, &e.ErrorMessage,
			&e.BuildLogs, &e.ServiceURL, &e.APIKey, &e.ArtifactURI, &e.DeployedAt,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

// UpdateEndpointStatus applies a pipeline status transition. Empty fields on
// the update keep stored values; log chunks are appended.
func (r *Repository) UpdateEndpointStatus(ctx context.Context, update domain.EndpointStatusUpdate) error {
	const query = `UPDATE endpoints SET
		status = $2,
		error_message = CASE WHEN $3 <> '' THEN $3 ELSE error_message END,
		service_url = CASE WHEN $4 <> '' THEN $4 ELSE service_url END,
		build_logs = CASE WHEN $5 <> '' THEN build_logs || $5 ELSE build_logs END,
		deployed_at = COALESCE($6, deployed_at),
		updated_at = $7
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		update.EndpointID, update.Status, update.ErrorMessage, update.ServiceURL,
		update.BuildLogChunk, update.DeployedAt, update.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
