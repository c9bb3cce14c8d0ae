package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/loanrecovery/backend/internal/domain/errs"
	"github.com/loanrecovery/backend/internal/domain/identity"
)

const uniqueViolation = "23505"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         identity.Role
	AgentCode    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) Identity() identity.Identity {
	out := identity.Identity{
		ID:          u.ID,
		Role:        u.Role,
		DisplayName: u.Name,
		Email:       u.Email,
		CreatedAt:   u.CreatedAt,
	}
	if u.AgentCode != nil {
		out.AgentCode = *u.AgentCode
	}
	return out
}

type Session struct {
	ID        string
	UserID    string
	UserAgent string
	IPAddress string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateUserInput struct {
	Email        string
	PasswordHash string
	Name         string
	Role         identity.Role
	AgentCode    *string
}

// UserRepository stores users and their sessions. It also serves as the
// identity directory for the domain services.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, name, role, agent_code, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &role, &u.AgentCode, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("user_not_found")
		}
		return nil, err
	}
	u.Role = identity.Role(role)
	return u, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	q := `
INSERT INTO users (email, password_hash, name, role, agent_code)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, q, in.Email, in.PasswordHash, in.Name, string(in.Role), in.AgentCode))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "users_agent_code_key" {
				return nil, errs.Conflict("agent_code_taken")
			}
			return nil, errs.Conflict("email_taken")
		}
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, errs.NotFound("user_not_found")
	}
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, q, userID))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*identity.Identity, error) {
	u, err := r.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := u.Identity()
	return &out, nil
}

func (r *UserRepository) FindByRole(ctx context.Context, role identity.Role) ([]identity.Identity, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY name ASC, id ASC`
	rows, err := r.pool.Query(ctx, q, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]identity.Identity, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u.Identity())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UserRepository) CreateSession(ctx context.Context, userID, userAgent, ipAddress string, expiresAt time.Time) (*Session, error) {
	q := `
INSERT INTO auth_sessions (user_id, user_agent, ip_address, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, user_agent, ip_address, expires_at, revoked_at, created_at, updated_at
`
	s := &Session{}
	err := r.pool.QueryRow(ctx, q, userID, userAgent, ipAddress, expiresAt).
		Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *UserRepository) GetSessionByID(ctx context.Context, sessionID string) (*Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, errs.NotFound("session_not_found")
	}
	q := `
SELECT id, user_id, user_agent, ip_address, expires_at, revoked_at, created_at, updated_at
FROM auth_sessions
WHERE id = $1
`
	s := &Session{}
	err := r.pool.QueryRow(ctx, q, sessionID).
		Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IPAddress, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("session_not_found")
		}
		return nil, err
	}
	return s, nil
}

func (r *UserRepository) RevokeSession(ctx context.Context, sessionID string) error {
	q := `UPDATE auth_sessions SET revoked_at = NOW(), updated_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, q, sessionID)
	return err
}
