package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/doc-control-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "username", "password_hash", "full_name", "email", "phone", "department_id", "department_name", "position", "enabled", "created_at", "updated_at"}

func TestFindByUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u1", "alice", "hash", "Alice", "alice@example.com", "", "dep-1", "Quality", nil, true, now, now)
	mock.ExpectQuery(`FROM users u LEFT JOIN departments dp ON dp.id = u.department_id WHERE u.username = \$1 LIMIT 1`).
		WithArgs("alice").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	require.NotNil(t, user.DepartmentName)
	assert.Equal(t, "Quality", *user.DepartmentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUsernameNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("WHERE u.username").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUsersWithRoleOrderedByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u1", "disabled", "h", "Disabled", "", "", nil, nil, nil, false, now, now).
		AddRow("u2", "bob", "h", "Bob", "", "", nil, nil, nil, true, now, now)
	mock.ExpectQuery(`JOIN user_roles ur ON ur.user_id = u.id\s+WHERE ur.role_id = \$1 ORDER BY u.id ASC`).
		WithArgs("role-qa").
		WillReturnRows(rows)

	users, err := repo.UsersWithRole(context.Background(), "role-qa")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.False(t, users[0].Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersByIDsExpandsInClause(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE u.id IN (?, ?) ORDER BY u.id")).
		WithArgs("u1", "u2").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u1", "a", "h", "A", "", "", nil, nil, nil, true, now, now))

	users, err := repo.UsersByIDs(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	empty, err := repo.UsersByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDepartmentNames(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name FROM departments WHERE id IN (?)")).
		WithArgs("dep-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("dep-1", "Quality"))

	names, err := repo.DepartmentNames(context.Background(), []string{"dep-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"dep-1": "Quality"}, names)
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{UserID: "u1", Token: "token", ExpiresAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
