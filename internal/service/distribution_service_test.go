package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/doc-control-api/internal/dto"
	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
	"github.com/noah-isme/doc-control-api/pkg/storage"
)

type stubPresigner struct {
	keys []string
	err  error
}

func (s *stubPresigner) PresignDownload(ctx context.Context, key string, ttl time.Duration) (*storage.PresignedURL, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.keys = append(s.keys, key)
	return &storage.PresignedURL{URL: "https://files.example.com/" + key, Method: "GET", ObjectKey: key, ExpiresAt: time.Now().Add(ttl)}, nil
}

type distributionFixture struct {
	db       *memDB
	tx       *fakeTx
	notifier *recordingNotifier
	oplog    *recordingOplog
	files    *stubPresigner
	metrics  *MetricsService
	svc      *DistributionService
	actor    *models.JWTClaims
}

func newDistributionFixture(t *testing.T) *distributionFixture {
	t.Helper()
	db := newMemDB()
	eng := "dept-eng"
	qa := "dept-qa"
	db.addUser("u1", "Ann", true).DepartmentID = &eng
	db.addUser("u2", "Ben", true).DepartmentID = &eng
	db.addUser("u3", "Cal", false).DepartmentID = &eng
	db.addUser("u4", "Dee", true).DepartmentID = &qa
	db.departments[eng] = "Engineering"
	db.departments[qa] = "Quality"
	db.groups["g1"] = "Line Leads"
	db.groupMembers["g1"] = []string{"u1", "u4"}

	f := &distributionFixture{
		db:       db,
		tx:       &fakeTx{db: db},
		notifier: &recordingNotifier{},
		oplog:    &recordingOplog{},
		files:    &stubPresigner{},
		metrics:  NewMetricsService(),
		actor:    &models.JWTClaims{UserID: "dist", FullName: "Dana Distributor", Roles: []string{models.RoleDistributor}},
	}
	f.svc = NewDistributionService(DistributionDeps{
		Tx:           f.tx,
		Documents:    memDocs{db},
		Store:        memDistributions{db},
		Directory:    memDirectory{db},
		Files:        f.files,
		DownloadTTL:  time.Minute,
		Notifier:     f.notifier,
		OperationLog: f.oplog,
		Metrics:      f.metrics,
		Logger:       zap.NewNop(),
	})
	return f
}

func (f *distributionFixture) approved(fileNumber string) *models.Document {
	return f.db.addDoc(models.Document{
		FileNumber:       fileNumber,
		FileName:         "Housing",
		Version:          "1.0",
		Status:           models.DocumentStatusApproved,
		IsCurrentVersion: true,
		ObjectKey:        "document/2026/10/" + fileNumber + ".pdf",
	})
}

func TestDistributeDepartmentDedupesAndSkipsDisabled(t *testing.T) {
	f := newDistributionFixture(t)
	doc := f.approved("DWG-100")

	dists, err := f.svc.Distribute(context.Background(), dto.DistributeRequest{
		DocumentIDs: []string{doc.ID},
		TargetType:  models.TargetTypeDepartment,
		TargetIDs:   []string{"dept-eng", "dept-eng"},
		Note:        "use from Monday",
	}, f.actor)
	require.NoError(t, err)
	require.Len(t, dists, 1)
	assert.Equal(t, models.StringList{"dept-eng"}, dists[0].TargetIDs)
	assert.Equal(t, models.StringList{"Engineering"}, dists[0].TargetNames)
	assert.Equal(t, "Dana Distributor", dists[0].DistributorName)

	receivers, err := f.svc.ListReceivers(context.Background(), dists[0].ID)
	require.NoError(t, err)
	ids := []string{}
	for _, r := range receivers {
		ids = append(ids, r.ReceiverID)
		assert.False(t, r.Viewed)
	}
	assert.ElementsMatch(t, []string{"u1", "u2"}, ids)

	notes := f.notifier.all()
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotifyDistribution, notes[0].Kind)
	assert.Equal(t, "use from Monday", notes[0].Payload["note"])
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.receivers))
	assert.Equal(t, []models.OperationType{models.OperationDistribute}, f.oplog.ops())
}

func TestDistributeGroupsAcrossDocuments(t *testing.T) {
	f := newDistributionFixture(t)
	first := f.approved("DWG-101")
	second := f.approved("DWG-102")

	dists, err := f.svc.Distribute(context.Background(), dto.DistributeRequest{
		DocumentIDs: []string{first.ID, second.ID},
		TargetType:  models.TargetTypeUserGroup,
		TargetIDs:   []string{"g1"},
	}, f.actor)
	require.NoError(t, err)
	require.Len(t, dists, 2)
	assert.Len(t, f.notifier.batches, 2, "one batch per document")
	assert.Len(t, f.notifier.all(), 4)
}

func TestDistributeRejectsUnapprovedAndStale(t *testing.T) {
	f := newDistributionFixture(t)
	ok := f.approved("DWG-103")
	draft := f.db.addDoc(models.Document{FileNumber: "DWG-104", Version: "1.0", Status: models.DocumentStatusDraft, IsCurrentVersion: true})
	stale := f.db.addDoc(models.Document{FileNumber: "DWG-103", Version: "0.9", Status: models.DocumentStatusApproved})

	req := dto.DistributeRequest{TargetType: models.TargetTypeUser, TargetIDs: []string{"u1"}}

	req.DocumentIDs = []string{ok.ID, draft.ID}
	_, err := f.svc.Distribute(context.Background(), req, f.actor)
	require.ErrorIs(t, err, appErrors.ErrDocumentNotApproved)

	req.DocumentIDs = []string{stale.ID}
	_, err = f.svc.Distribute(context.Background(), req, f.actor)
	require.ErrorIs(t, err, appErrors.ErrNotCurrentVersion)

	// Nothing from the failed batches survives.
	assert.Empty(t, f.db.distributions)
	assert.Empty(t, f.db.receivers)
	assert.Empty(t, f.notifier.all())
}

func TestDistributeTargetErrors(t *testing.T) {
	f := newDistributionFixture(t)
	doc := f.approved("DWG-105")
	ctx := context.Background()

	_, err := f.svc.Distribute(ctx, dto.DistributeRequest{DocumentIDs: []string{doc.ID}, TargetType: "TEAM", TargetIDs: []string{"x"}}, f.actor)
	require.ErrorIs(t, err, appErrors.ErrDistributionTarget)

	_, err = f.svc.Distribute(ctx, dto.DistributeRequest{DocumentIDs: []string{doc.ID}, TargetType: models.TargetTypeUser}, f.actor)
	require.ErrorIs(t, err, appErrors.ErrDistributionTarget)

	_, err = f.svc.Distribute(ctx, dto.DistributeRequest{DocumentIDs: []string{doc.ID}, TargetType: models.TargetTypeUser, TargetIDs: []string{"u1", "ghost"}}, f.actor)
	require.ErrorIs(t, err, appErrors.ErrUserNotFound)

	_, err = f.svc.Distribute(ctx, dto.DistributeRequest{DocumentIDs: []string{doc.ID, "missing"}, TargetType: models.TargetTypeUser, TargetIDs: []string{"u1"}}, f.actor)
	require.ErrorIs(t, err, appErrors.ErrDocumentNotFound)
}

func TestDistributePositionCreatesNoReceivers(t *testing.T) {
	f := newDistributionFixture(t)
	doc := f.approved("DWG-106")

	dists, err := f.svc.Distribute(context.Background(), dto.DistributeRequest{
		DocumentIDs: []string{doc.ID},
		TargetType:  models.TargetTypePosition,
		TargetIDs:   []string{"pos-1"},
		TargetNames: []string{"Shift Supervisor"},
	}, f.actor)
	require.NoError(t, err)
	require.Len(t, dists, 1)
	assert.Equal(t, models.StringList{"Shift Supervisor"}, dists[0].TargetNames)
	assert.Empty(t, f.db.receivers)
	assert.Empty(t, f.notifier.all())
}

func TestRecordViewIsIdempotent(t *testing.T) {
	f := newDistributionFixture(t)
	doc := f.approved("DWG-107")
	dists, err := f.svc.Distribute(context.Background(), dto.DistributeRequest{
		DocumentIDs: []string{doc.ID}, TargetType: models.TargetTypeUser, TargetIDs: []string{"u1"},
	}, f.actor)
	require.NoError(t, err)
	distID := dists[0].ID

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.svc.now = func() time.Time { return first }
	receipt, err := f.svc.RecordView(context.Background(), distID, actorFor("u1"))
	require.NoError(t, err)
	require.NotNil(t, receipt.ViewTime)
	assert.True(t, receipt.ViewTime.Equal(first))

	f.svc.now = func() time.Time { return first.Add(time.Hour) }
	receipt, err = f.svc.RecordView(context.Background(), distID, actorFor("u1"))
	require.NoError(t, err)
	assert.True(t, receipt.ViewTime.Equal(first))

	views := 0
	for _, op := range f.oplog.ops() {
		if op == models.OperationView {
			views++
		}
	}
	assert.Equal(t, 1, views)

	_, err = f.svc.RecordView(context.Background(), distID, actorFor("u2"))
	require.ErrorIs(t, err, appErrors.ErrDistributionReceiverNotFound)
}

func TestRecordDownload(t *testing.T) {
	f := newDistributionFixture(t)
	doc := f.approved("DWG-108")
	dists, err := f.svc.Distribute(context.Background(), dto.DistributeRequest{
		DocumentIDs: []string{doc.ID}, TargetType: models.TargetTypeUser, TargetIDs: []string{"u1"},
	}, f.actor)
	require.NoError(t, err)
	distID := dists[0].ID

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.svc.now = func() time.Time { return first }
	ticket, err := f.svc.RecordDownload(context.Background(), distID, actorFor("u1"))
	require.NoError(t, err)
	require.NotNil(t, ticket.DownloadURL)
	assert.Equal(t, doc.ObjectKey, ticket.DownloadURL.ObjectKey)
	assert.True(t, ticket.Receipt.Downloaded)

	f.svc.now = func() time.Time { return first.Add(time.Hour) }
	ticket, err = f.svc.RecordDownload(context.Background(), distID, actorFor("u1"))
	require.NoError(t, err)
	assert.True(t, ticket.Receipt.DownloadTime.Equal(first))

	// Recalled documents stay viewable but not downloadable.
	f.db.docs[doc.ID].Status = models.DocumentStatusRecalled
	_, err = f.svc.RecordDownload(context.Background(), distID, actorFor("u1"))
	require.ErrorIs(t, err, appErrors.ErrDocumentStatusInvalid)
	_, err = f.svc.RecordView(context.Background(), distID, actorFor("u1"))
	require.NoError(t, err)

	_, err = f.svc.RecordDownload(context.Background(), "missing", actorFor("u1"))
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestRecordDownloadPresignFailure(t *testing.T) {
	f := newDistributionFixture(t)
	doc := f.approved("DWG-109")
	dists, err := f.svc.Distribute(context.Background(), dto.DistributeRequest{
		DocumentIDs: []string{doc.ID}, TargetType: models.TargetTypeUser, TargetIDs: []string{"u1"},
	}, f.actor)
	require.NoError(t, err)

	f.files.err = errors.New("s3 unavailable")
	_, err = f.svc.RecordDownload(context.Background(), dists[0].ID, actorFor("u1"))
	require.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestListInboxAndByDocument(t *testing.T) {
	f := newDistributionFixture(t)
	doc := f.approved("DWG-110")
	_, err := f.svc.Distribute(context.Background(), dto.DistributeRequest{
		DocumentIDs: []string{doc.ID}, TargetType: models.TargetTypeUser, TargetIDs: []string{"u1", "u2"},
	}, f.actor)
	require.NoError(t, err)

	items, page, err := f.svc.ListInbox(context.Background(), actorFor("u1"), 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, doc.ID, items[0].Document.ID)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)

	dists, err := f.svc.ListByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, dists, 1)

	_, err = f.svc.ListByDocument(context.Background(), "missing")
	require.ErrorIs(t, err, appErrors.ErrDocumentNotFound)
}
