package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	var dest map[string]string
	require.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(context.Background(), "k", map[string]string{"a": "b"}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(context.Background(), "doccontrol:*"))
}

func TestUploadSessionRepositoryWithoutClient(t *testing.T) {
	repo := NewUploadSessionRepository(nil)
	require.Equal(t, "upload:session:upl_1", UploadSessionKey("upl_1"))

	_, err := repo.Consume(context.Background(), "upl_1")
	require.ErrorIs(t, err, appErrors.ErrUploadSessionNotFound)
	require.Error(t, repo.Save(context.Background(), &models.UploadSession{UploadID: "upl_1"}, time.Minute))
}
