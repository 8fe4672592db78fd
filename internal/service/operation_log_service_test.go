package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

type stubOperationLogStore struct {
	created    []models.OperationLog
	createErr  error
	lastFilter models.OperationLogFilter
	exportRows []models.OperationLog
}

func (s *stubOperationLogStore) Create(ctx context.Context, entry *models.OperationLog) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, *entry)
	return nil
}

func (s *stubOperationLogStore) Search(ctx context.Context, filter models.OperationLogFilter) ([]models.OperationLog, int, error) {
	s.lastFilter = filter
	return s.created, len(s.created), nil
}

func (s *stubOperationLogStore) ListForExport(ctx context.Context, filter models.OperationLogFilter, limit int) ([]models.OperationLog, error) {
	s.lastFilter = filter
	return s.exportRows, nil
}

func TestOperationLogRecordFillsRequestMeta(t *testing.T) {
	store := &stubOperationLogStore{}
	svc := NewOperationLogService(store, nil)
	ctx := WithRequestMeta(context.Background(), "10.0.0.7", "curl/8.0")

	svc.Record(ctx, operationEntry(&models.JWTClaims{UserID: "u1", FullName: "Ann"}, models.OperationSubmit, models.ObjectTypeDocument, "doc-1", "submitted"))

	require.Len(t, store.created, 1)
	entry := store.created[0]
	assert.Equal(t, "10.0.0.7", entry.IPAddress)
	assert.Equal(t, "curl/8.0", entry.UserAgent)
	assert.Equal(t, models.OperationResultSuccess, entry.Result)
	assert.Equal(t, "Ann", entry.UserName)
	require.NotNil(t, entry.ObjectID)
	assert.Equal(t, "doc-1", *entry.ObjectID)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestOperationLogRecordSwallowsErrors(t *testing.T) {
	store := &stubOperationLogStore{createErr: errors.New("db down")}
	svc := NewOperationLogService(store, nil)
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), &models.OperationLog{OperationType: models.OperationLogin})
	})

	var nilSvc *OperationLogService
	assert.NotPanics(t, func() {
		nilSvc.Record(context.Background(), &models.OperationLog{})
	})
}

func TestOperationLogSearch(t *testing.T) {
	store := &stubOperationLogStore{created: []models.OperationLog{{ID: "1"}, {ID: "2"}}}
	svc := NewOperationLogService(store, nil)

	logs, page, err := svc.Search(context.Background(), models.OperationLogFilter{UserID: "u1", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, "u1", store.lastFilter.UserID)

	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)
	_, _, err = svc.Search(context.Background(), models.OperationLogFilter{From: &from, To: &to})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestOperationLogExport(t *testing.T) {
	objectID := "doc-9"
	store := &stubOperationLogStore{exportRows: []models.OperationLog{{
		UserName:      "Ann",
		OperationType: models.OperationApprove,
		ObjectType:    models.ObjectTypeDocument,
		ObjectID:      &objectID,
		Result:        models.OperationResultSuccess,
		Content:       "approved step 1",
		CreatedAt:     time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}}}
	svc := NewOperationLogService(store, nil)

	csvFile, err := svc.Export(context.Background(), models.OperationLogFilter{}, "csv")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(csvFile.Name, ".csv"))
	assert.Equal(t, "text/csv", csvFile.ContentType)
	body := string(csvFile.Body)
	assert.Contains(t, body, "Operation")
	assert.Contains(t, body, "DOCUMENT doc-9")
	assert.Contains(t, body, "approved step 1")

	pdfFile, err := svc.Export(context.Background(), models.OperationLogFilter{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfFile.ContentType)
	assert.True(t, strings.HasPrefix(string(pdfFile.Body), "%PDF"))

	_, err = svc.Export(context.Background(), models.OperationLogFilter{}, "xlsx")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
