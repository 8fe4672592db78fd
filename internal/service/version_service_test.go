package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

type stubRestorer struct {
	calls []string
}

func (s *stubRestorer) Restore(ctx context.Context, versionID string, actor *models.JWTClaims) (*models.Document, error) {
	s.calls = append(s.calls, versionID)
	return &models.Document{ID: versionID, IsCurrentVersion: true, Status: models.DocumentStatusDraft}, nil
}

func newTestVersionService(db *memDB, sessions *memSessions, cache *CacheService, oplog operationRecorder) (*VersionService, *stubRestorer) {
	restorer := &stubRestorer{}
	var store uploadSessionStore
	if sessions != nil {
		store = sessions
	}
	return NewVersionService(memDocs{db}, store, restorer, cache, oplog, nil, nil), restorer
}

func TestCreateVersionCopiesSource(t *testing.T) {
	db := newMemDB()
	source := db.addDoc(models.Document{
		FileNumber: "DWG-500", FileName: "bracket", ProductModel: "M1", Version: "1.0",
		FileType: "PDF", ObjectKey: "document/a.pdf", IsCurrentVersion: true, Status: models.DocumentStatusApproved,
	})
	oplog := &recordingOplog{}
	svc, _ := newTestVersionService(db, nil, nil, oplog)
	actor := &models.JWTClaims{UserID: "u9", FullName: "Bo"}

	doc, err := svc.CreateVersion(context.Background(), source.ID, dto.CreateVersionRequest{NewVersion: " 2.0 ", ChangeReason: "hole spacing"}, actor)
	require.NoError(t, err)
	assert.Equal(t, "2.0", doc.Version)
	assert.Equal(t, models.DocumentStatusDraft, doc.Status)
	assert.False(t, doc.IsCurrentVersion)
	require.NotNil(t, doc.ParentVersionID)
	assert.Equal(t, source.ID, *doc.ParentVersionID)
	assert.Equal(t, "document/a.pdf", doc.ObjectKey)
	assert.Equal(t, "Bo", doc.CompilerName)
	assert.Equal(t, []models.OperationType{models.OperationCreateVersion}, oplog.ops())
	assert.Contains(t, oplog.entries[0].Content, "hole spacing")

	// The source stays current until the new version is restored.
	assert.True(t, db.doc(source.ID).IsCurrentVersion)

	_, err = svc.CreateVersion(context.Background(), source.ID, dto.CreateVersionRequest{NewVersion: "2.0"}, actor)
	require.ErrorIs(t, err, appErrors.ErrVersionExists)
}

func TestCreateVersionGuards(t *testing.T) {
	db := newMemDB()
	source := db.addDoc(models.Document{FileNumber: "DWG-501", Version: "1.0"})
	svc, _ := newTestVersionService(db, nil, nil, nil)
	actor := &models.JWTClaims{UserID: "u1"}
	ctx := context.Background()

	_, err := svc.CreateVersion(ctx, source.ID, dto.CreateVersionRequest{NewVersion: "2.0"}, nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.CreateVersion(ctx, source.ID, dto.CreateVersionRequest{}, actor)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateVersion(ctx, "missing", dto.CreateVersionRequest{NewVersion: "2.0"}, actor)
	require.ErrorIs(t, err, appErrors.ErrDocumentNotFound)

	_, err = svc.CreateVersion(ctx, source.ID, dto.CreateVersionRequest{NewVersion: "2.0", UploadID: "upl_x"}, actor)
	require.ErrorIs(t, err, appErrors.ErrUploadSessionNotFound)
}

func TestCreateVersionWithFreshUpload(t *testing.T) {
	db := newMemDB()
	thumb := "thumb/a.png"
	source := db.addDoc(models.Document{FileNumber: "DWG-502", Version: "1.0", ObjectKey: "document/old.pdf", ThumbnailKey: &thumb})
	sessions := newMemSessions()
	require.NoError(t, sessions.Save(context.Background(), &models.UploadSession{
		UploadID: "upl_1", UserID: "u1", ObjectKey: "document/new.dwg", FileName: "frame.dwg",
		FileSize: 4096, ContentType: "image/vnd.dwg", FileType: "CAD_DWG",
	}, time.Minute))
	svc, _ := newTestVersionService(db, sessions, nil, nil)

	_, err := svc.CreateVersion(context.Background(), source.ID, dto.CreateVersionRequest{NewVersion: "2.0", UploadID: "upl_1"}, &models.JWTClaims{UserID: "u2"})
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	doc, err := svc.CreateVersion(context.Background(), source.ID, dto.CreateVersionRequest{NewVersion: "2.0", UploadID: "upl_1"}, &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "document/new.dwg", doc.ObjectKey)
	assert.Equal(t, "CAD_DWG", doc.FileType)
	assert.Equal(t, int64(4096), doc.FileSize)
	assert.Nil(t, doc.ThumbnailKey)

	_, err = sessions.Get(context.Background(), "upl_1")
	require.ErrorIs(t, err, appErrors.ErrUploadSessionNotFound)
}

// versionRaceDocs loses the (file_number, version) race between the
// existence check and the insert.
type versionRaceDocs struct{ memDocs }

func (versionRaceDocs) VersionExists(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestCreateVersionReturnsUploadSessionOnConflict(t *testing.T) {
	db := newMemDB()
	source := db.addDoc(models.Document{FileNumber: "DWG-504", Version: "1.0"})
	db.addDoc(models.Document{FileNumber: "DWG-504", Version: "2.0"})
	sessions := newMemSessions()
	require.NoError(t, sessions.Save(context.Background(), &models.UploadSession{
		UploadID: "upl_2", UserID: "u1", ObjectKey: "document/rev.pdf", FileName: "rev.pdf",
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}, 10*time.Minute))
	svc := NewVersionService(versionRaceDocs{memDocs{db}}, sessions, &stubRestorer{}, nil, nil, nil, nil)

	_, err := svc.CreateVersion(context.Background(), source.ID, dto.CreateVersionRequest{NewVersion: "2.0", UploadID: "upl_2"}, &models.JWTClaims{UserID: "u1"})
	require.ErrorIs(t, err, appErrors.ErrVersionExists)

	session, err := sessions.Get(context.Background(), "upl_2")
	require.NoError(t, err)
	assert.Equal(t, "document/rev.pdf", session.ObjectKey)

	doc, err := svc.CreateVersion(context.Background(), source.ID, dto.CreateVersionRequest{NewVersion: "2.1", UploadID: "upl_2"}, &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "document/rev.pdf", doc.ObjectKey)
}

func TestListVersionsUsesCache(t *testing.T) {
	db := newMemDB()
	first := db.addDoc(models.Document{FileNumber: "DWG-503", Version: "1.0"})
	repo := newStubCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc, _ := newTestVersionService(db, nil, cache, nil)
	ctx := context.Background()

	versions, err := svc.ListVersions(ctx, "DWG-503")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Contains(t, repo.data, VersionListKey("DWG-503"))

	// Served from cache while the entry lives.
	db.addDoc(models.Document{FileNumber: "DWG-503", Version: "9.9"})
	versions, err = svc.ListVersions(ctx, "DWG-503")
	require.NoError(t, err)
	assert.Len(t, versions, 1)

	// Creating a version evicts the entry.
	_, err = svc.CreateVersion(ctx, first.ID, dto.CreateVersionRequest{NewVersion: "2.0"}, &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)
	versions, err = svc.ListVersions(ctx, "DWG-503")
	require.NoError(t, err)
	assert.Len(t, versions, 3)

	_, err = svc.ListVersions(ctx, "DWG-none")
	require.ErrorIs(t, err, appErrors.ErrDocumentNotFound)
	_, err = svc.ListVersions(ctx, "  ")
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLineageIsRootFirst(t *testing.T) {
	db := newMemDB()
	v1 := db.addDoc(models.Document{FileNumber: "DWG-504", Version: "1.0"})
	v2 := db.addDoc(models.Document{FileNumber: "DWG-504", Version: "2.0", ParentVersionID: &v1.ID})
	v3 := db.addDoc(models.Document{FileNumber: "DWG-504", Version: "3.0", ParentVersionID: &v2.ID})
	svc, _ := newTestVersionService(db, nil, nil, nil)

	chain, err := svc.Lineage(context.Background(), v3.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []string{"1.0", "2.0", "3.0"}, []string{chain[0].Version, chain[1].Version, chain[2].Version})

	_, err = svc.Lineage(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrDocumentNotFound)
}

func TestLineageStopsOnCycle(t *testing.T) {
	db := newMemDB()
	a := db.addDoc(models.Document{ID: "doc-a", FileNumber: "DWG-505", Version: "1.0"})
	b := db.addDoc(models.Document{ID: "doc-b", FileNumber: "DWG-505", Version: "2.0", ParentVersionID: &a.ID})
	db.docs[a.ID].ParentVersionID = &b.ID
	svc, _ := newTestVersionService(db, nil, nil, nil)

	chain, err := svc.Lineage(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestRestoreDelegatesToLifecycle(t *testing.T) {
	svc, restorer := newTestVersionService(newMemDB(), nil, nil, nil)
	doc, err := svc.Restore(context.Background(), "doc-7", &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, doc.IsCurrentVersion)
	assert.Equal(t, []string{"doc-7"}, restorer.calls)
}
