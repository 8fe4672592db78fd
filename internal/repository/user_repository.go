package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/doc-control-api/internal/models"
)

const userColumns = `u.id, u.username, u.password_hash, u.full_name, u.email, u.phone, u.department_id,
	dp.name AS department_name, u.position, u.enabled, u.created_at, u.updated_at`

const userFrom = ` FROM users u LEFT JOIN departments dp ON dp.id = u.department_id`

// UserRepository is the directory: users, roles, departments and groups.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUsername returns a user by login name.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + userFrom + ` WHERE u.username = $1 LIMIT 1`
	var user models.User
	if err := conn(ctx, r.db).GetContext(ctx, &user, query, username); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + userFrom + ` WHERE u.id = $1 LIMIT 1`
	var user models.User
	if err := conn(ctx, r.db).GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// RoleCodes returns the role codes held by a user.
func (r *UserRepository) RoleCodes(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT r.code FROM user_roles ur JOIN roles r ON r.id = ur.role_id WHERE ur.user_id = $1 ORDER BY r.code`
	var codes []string
	if err := conn(ctx, r.db).SelectContext(ctx, &codes, query, userID); err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return codes, nil
}

// UsersWithRole returns every user holding the role, enabled or not, ordered by id.
func (r *UserRepository) UsersWithRole(ctx context.Context, roleID string) ([]models.User, error) {
	query := `SELECT ` + userColumns + userFrom + `
	JOIN user_roles ur ON ur.user_id = u.id
	WHERE ur.role_id = $1 ORDER BY u.id ASC`
	var users []models.User
	if err := conn(ctx, r.db).SelectContext(ctx, &users, query, roleID); err != nil {
		return nil, fmt.Errorf("list users with role: %w", err)
	}
	return users, nil
}

// UsersByIDs batch-loads users.
func (r *UserRepository) UsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	return r.selectIn(ctx, "list users by ids", `SELECT `+userColumns+userFrom+` WHERE u.id IN (?) ORDER BY u.id`, ids)
}

// UsersInDepartments batch-loads enabled members of departments.
func (r *UserRepository) UsersInDepartments(ctx context.Context, departmentIDs []string) ([]models.User, error) {
	return r.selectIn(ctx, "list department users",
		`SELECT `+userColumns+userFrom+` WHERE u.department_id IN (?) AND u.enabled = TRUE ORDER BY u.id`, departmentIDs)
}

// UsersInGroups batch-loads enabled members of user groups.
func (r *UserRepository) UsersInGroups(ctx context.Context, groupIDs []string) ([]models.User, error) {
	return r.selectIn(ctx, "list group users",
		`SELECT DISTINCT `+userColumns+userFrom+`
	JOIN user_group_members gm ON gm.user_id = u.id
	WHERE gm.group_id IN (?) AND u.enabled = TRUE ORDER BY u.id`, groupIDs)
}

// DepartmentNames maps department ids to names.
func (r *UserRepository) DepartmentNames(ctx context.Context, ids []string) (map[string]string, error) {
	return r.namesIn(ctx, "list department names", `SELECT id, name FROM departments WHERE id IN (?)`, ids)
}

// GroupNames maps user group ids to names.
func (r *UserRepository) GroupNames(ctx context.Context, ids []string) (map[string]string, error) {
	return r.namesIn(ctx, "list group names", `SELECT id, name FROM user_groups WHERE id IN (?)`, ids)
}

func (r *UserRepository) selectIn(ctx context.Context, op, raw string, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(raw, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var users []models.User
	if err := conn(ctx, r.db).SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

func (r *UserRepository) namesIn(ctx context.Context, op, raw string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	query, args, err := sqlx.In(raw, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var rows []struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}
	if err := conn(ctx, r.db).SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked_at)
	VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked_at)`
	if _, err := conn(ctx, r.db).NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked_at FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := conn(ctx, r.db).GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked if it is still active.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	if _, err := conn(ctx, r.db).ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}
