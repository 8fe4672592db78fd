package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
	"github.com/noah-isme/doc-control-api/pkg/storage"
)

func newTestUploadService(t *testing.T, db *memDB, sessions *memSessions, oplog operationRecorder) *UploadService {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8080/api/v1/files", storage.NewSignedURLSigner("secret", time.Minute))
	require.NoError(t, err)
	return NewUploadService(local, sessions, memDocs{db}, oplog, UploadPolicy{MaxFileSize: 1 << 20}, nil, nil)
}

func TestFileTypeFromName(t *testing.T) {
	cases := map[string]string{
		"frame.DWG":    "CAD_DWG",
		"frame.dxf":    "CAD_DXF",
		"sheet.pdf":    "PDF",
		"photo.jpeg":   "JPEG",
		"photo.JPG":    "JPEG",
		"scan.png":     "PNG",
		"notes.docx":   "WORD",
		"bom.xls":      "EXCEL",
		"archive.zip":  "OTHER",
		"no-extension": "OTHER",
	}
	for name, want := range cases {
		assert.Equal(t, want, FileTypeFromName(name), name)
	}
}

func TestUploadInitAndComplete(t *testing.T) {
	db := newMemDB()
	sessions := newMemSessions()
	oplog := &recordingOplog{}
	svc := newTestUploadService(t, db, sessions, oplog)
	actor := &models.JWTClaims{UserID: "u1", FullName: "Ann"}
	ctx := context.Background()

	init, err := svc.InitUpload(ctx, dto.UploadInitRequest{FileName: "bracket.pdf", FileSize: 1024, ContentType: "application/pdf"}, actor)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(init.UploadID, "upl_"))
	assert.True(t, strings.HasPrefix(init.ObjectKey, "document/"))
	assert.Equal(t, "PDF", init.FileType)
	assert.Equal(t, "PUT", init.Method)
	assert.Contains(t, init.UploadURL, "http://localhost:8080/api/v1/files/")

	doc, err := svc.CompleteUpload(ctx, init.UploadID, dto.CompleteUploadRequest{FileNumber: "DWG-200", Version: "A", Importance: "HIGH"}, actor)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusDraft, doc.Status)
	assert.True(t, doc.IsCurrentVersion)
	assert.Equal(t, "bracket", doc.FileName)
	assert.Equal(t, "bracket.pdf", doc.OriginalName)
	assert.Equal(t, init.ObjectKey, doc.ObjectKey)
	assert.Equal(t, "Ann", doc.CompilerName)
	assert.Equal(t, []models.OperationType{models.OperationUpload}, oplog.ops())

	// The session is single use.
	_, err = svc.CompleteUpload(ctx, init.UploadID, dto.CompleteUploadRequest{FileNumber: "DWG-201", Version: "A"}, actor)
	require.ErrorIs(t, err, appErrors.ErrUploadSessionNotFound)
}

func TestUploadInitPolicy(t *testing.T) {
	svc := newTestUploadService(t, newMemDB(), newMemSessions(), nil)
	actor := &models.JWTClaims{UserID: "u1"}

	_, err := svc.InitUpload(context.Background(), dto.UploadInitRequest{FileName: "virus.exe", FileSize: 10}, actor)
	require.ErrorIs(t, err, appErrors.ErrFileTypeNotAllowed)

	_, err = svc.InitUpload(context.Background(), dto.UploadInitRequest{FileName: "big.pdf", FileSize: 2 << 20}, actor)
	require.ErrorIs(t, err, appErrors.ErrFileTooLarge)

	_, err = svc.InitUpload(context.Background(), dto.UploadInitRequest{FileName: "", FileSize: 10}, actor)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.InitUpload(context.Background(), dto.UploadInitRequest{FileName: "a.pdf", FileSize: 10}, nil)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestUploadPolicyAllowedTypes(t *testing.T) {
	p := UploadPolicy{AllowedTypes: []string{"pdf", "CAD_DWG"}}
	assert.True(t, p.allows("PDF"))
	assert.True(t, p.allows("CAD_DWG"))
	assert.False(t, p.allows("PNG"))
	assert.False(t, UploadPolicy{}.allows("OTHER"))
}

func TestCompleteUploadRejectsExistingFileNumber(t *testing.T) {
	db := newMemDB()
	db.addDoc(models.Document{FileNumber: "DWG-300", Version: "A", IsCurrentVersion: true})
	sessions := newMemSessions()
	svc := newTestUploadService(t, db, sessions, nil)
	actor := &models.JWTClaims{UserID: "u1"}

	init, err := svc.InitUpload(context.Background(), dto.UploadInitRequest{FileName: "x.pdf", FileSize: 1}, actor)
	require.NoError(t, err)

	_, err = svc.CompleteUpload(context.Background(), init.UploadID, dto.CompleteUploadRequest{FileNumber: "DWG-300", Version: "B"}, actor)
	require.ErrorIs(t, err, appErrors.ErrFileNumberExists)

	// The session survives the rejection.
	_, err = sessions.Get(context.Background(), init.UploadID)
	require.NoError(t, err)
}

func TestCompleteUploadRequiresOwner(t *testing.T) {
	sessions := newMemSessions()
	svc := newTestUploadService(t, newMemDB(), sessions, nil)

	init, err := svc.InitUpload(context.Background(), dto.UploadInitRequest{FileName: "x.pdf", FileSize: 1}, &models.JWTClaims{UserID: "u1"})
	require.NoError(t, err)

	_, err = svc.CompleteUpload(context.Background(), init.UploadID, dto.CompleteUploadRequest{FileNumber: "DWG-301", Version: "A"}, &models.JWTClaims{UserID: "u2"})
	require.ErrorIs(t, err, appErrors.ErrForbidden)
	_, err = sessions.Get(context.Background(), init.UploadID)
	require.NoError(t, err)
}
