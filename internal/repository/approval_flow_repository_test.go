package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/doc-control-api/internal/models"
)

func TestApprovalFlowListEnabledDecodesJSON(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalFlowRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "code", "name", "steps", "applicability", "enabled", "position", "created_at", "updated_at"}).
		AddRow("flow-1", "drawings", "Drawings",
			[]byte(`[{"order":1,"role_id":"r1","role_name":"Engineer"},{"order":2,"role_id":"r2","role_name":"Manager"}]`),
			[]byte(`{"file_types":["dwg"],"match":"ALL"}`), true, 10, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM approval_flows WHERE enabled = TRUE ORDER BY position ASC, created_at ASC")).
		WillReturnRows(rows)

	flows, err := repo.ListEnabled(context.Background())
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Len(t, flows[0].Steps, 2)
	assert.Equal(t, "Manager", flows[0].Steps[1].RoleName)
	assert.Equal(t, []string{"dwg"}, flows[0].Applicability.FileTypes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalFlowUpsertAndDisable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewApprovalFlowRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (code) DO UPDATE")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_flows SET enabled = FALSE")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	flow := &models.ApprovalFlow{Code: "drawings", Name: "Drawings", Enabled: true,
		Steps: models.ApprovalSteps{{Order: 1, RoleID: "r1"}}}
	require.NoError(t, repo.Upsert(context.Background(), flow))
	assert.NotEmpty(t, flow.ID)

	disabled, err := repo.DisableExcept(context.Background(), []string{"drawings"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), disabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
