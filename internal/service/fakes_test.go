package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/internal/repository"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

// memDB is an in-memory stand-in for the postgres schema. fakeTx snapshots it
// so a failed transaction leaves no trace.
type memDB struct {
	mu sync.Mutex

	docs          map[string]*models.Document
	records       []*models.ApprovalRecord
	flows         []models.ApprovalFlow
	users         map[string]*models.User
	roleMembers   map[string][]string
	departments   map[string]string
	groups        map[string]string
	groupMembers  map[string][]string
	distributions []*models.DocumentDistribution
	receivers     []*models.DistributionReceiver
	seq           int

	failPromote error
}

func newMemDB() *memDB {
	return &memDB{
		docs:         map[string]*models.Document{},
		users:        map[string]*models.User{},
		roleMembers:  map[string][]string{},
		departments:  map[string]string{},
		groups:       map[string]string{},
		groupMembers: map[string][]string{},
	}
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *memDB) addUser(id, name string, enabled bool, roles ...string) *models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := &models.User{ID: id, Username: id, FullName: name, Email: id + "@example.com", Enabled: enabled}
	db.users[id] = u
	for _, r := range roles {
		db.roleMembers[r] = append(db.roleMembers[r], id)
	}
	return u
}

func (db *memDB) addDoc(doc models.Document) *models.Document {
	db.mu.Lock()
	defer db.mu.Unlock()
	if doc.ID == "" {
		doc.ID = db.nextID("doc")
	}
	if doc.Status == "" {
		doc.Status = models.DocumentStatusDraft
	}
	d := doc
	db.docs[d.ID] = &d
	return &d
}

func (db *memDB) doc(id string) models.Document {
	db.mu.Lock()
	defer db.mu.Unlock()
	return *db.docs[id]
}

func (db *memDB) roundRecords(docID string, round int) []models.ApprovalRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []models.ApprovalRecord
	for _, r := range db.records {
		if r.DocumentID == docID && r.Round == round {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out
}

type memSnapshot struct {
	docs          map[string]models.Document
	records       []models.ApprovalRecord
	distributions []models.DocumentDistribution
	receivers     []models.DistributionReceiver
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := memSnapshot{docs: make(map[string]models.Document, len(db.docs))}
	for id, d := range db.docs {
		s.docs[id] = *d
	}
	for _, r := range db.records {
		s.records = append(s.records, *r)
	}
	for _, d := range db.distributions {
		s.distributions = append(s.distributions, *d)
	}
	for _, r := range db.receivers {
		s.receivers = append(s.receivers, *r)
	}
	return s
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.docs = make(map[string]*models.Document, len(s.docs))
	for id, d := range s.docs {
		doc := d
		db.docs[id] = &doc
	}
	db.records = nil
	for i := range s.records {
		r := s.records[i]
		db.records = append(db.records, &r)
	}
	db.distributions = nil
	for i := range s.distributions {
		d := s.distributions[i]
		db.distributions = append(db.distributions, &d)
	}
	db.receivers = nil
	for i := range s.receivers {
		r := s.receivers[i]
		db.receivers = append(db.receivers, &r)
	}
}

// fakeTx serializes transactions the way row locks on one document would.
type fakeTx struct {
	mu       sync.Mutex
	db       *memDB
	commits  int
	rollback int
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.db.snapshot()
	if err := fn(ctx); err != nil {
		t.db.restore(snap)
		t.rollback++
		return err
	}
	t.commits++
	return nil
}

type memDocs struct{ db *memDB }

func (m memDocs) GetByID(ctx context.Context, id string) (*models.Document, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	d, ok := m.db.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *d
	return &out, nil
}

func (m memDocs) GetForUpdate(ctx context.Context, id string) (*models.Document, error) {
	return m.GetByID(ctx, id)
}

func (m memDocs) ListForUpdate(ctx context.Context, ids []string) ([]models.Document, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	var out []models.Document
	for _, id := range sorted {
		if d, ok := m.db.docs[id]; ok {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m memDocs) GetCurrentByFileNumber(ctx context.Context, fileNumber string) (*models.Document, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, d := range m.db.docs {
		if d.FileNumber == fileNumber && d.IsCurrentVersion {
			out := *d
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memDocs) ListByFileNumber(ctx context.Context, fileNumber string) ([]models.Document, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Document
	for _, d := range m.db.docs {
		if d.FileNumber == fileNumber {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memDocs) VersionExists(ctx context.Context, fileNumber, version string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, d := range m.db.docs {
		if d.FileNumber == fileNumber && d.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (m memDocs) Create(ctx context.Context, doc *models.Document) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, d := range m.db.docs {
		if d.FileNumber == doc.FileNumber && d.Version == doc.Version {
			return &pq.Error{Code: "23505", Constraint: repository.VersionConstraint}
		}
		if doc.IsCurrentVersion && d.FileNumber == doc.FileNumber && d.IsCurrentVersion {
			return &pq.Error{Code: "23505", Constraint: repository.CurrentVersionConstraint}
		}
	}
	doc.ID = m.db.nextID("doc")
	stored := *doc
	m.db.docs[doc.ID] = &stored
	return nil
}

func (m memDocs) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, updatedBy string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	d, ok := m.db.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.Status = status
	d.UpdatedBy = updatedBy
	return nil
}

func (m memDocs) StartApproval(ctx context.Context, id, flowID string, round int, updatedBy string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	d, ok := m.db.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.Status = models.DocumentStatusPendingApproval
	d.CurrentApprovalFlowID = &flowID
	d.ApprovalRound = round
	d.UpdatedBy = updatedBy
	return nil
}

func (m memDocs) DemoteCurrent(ctx context.Context, fileNumber, updatedBy string) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var n int64
	for _, d := range m.db.docs {
		if d.FileNumber == fileNumber && d.IsCurrentVersion {
			d.IsCurrentVersion = false
			d.UpdatedBy = updatedBy
			n++
		}
	}
	return n, nil
}

func (m memDocs) Promote(ctx context.Context, id, updatedBy string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if m.db.failPromote != nil {
		return m.db.failPromote
	}
	d, ok := m.db.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	for _, other := range m.db.docs {
		if other.ID != id && other.FileNumber == d.FileNumber && other.IsCurrentVersion {
			return &pq.Error{Code: "23505", Constraint: repository.CurrentVersionConstraint}
		}
	}
	d.IsCurrentVersion = true
	d.Status = models.DocumentStatusDraft
	d.UpdatedBy = updatedBy
	return nil
}

func (m memDocs) Search(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Document
	for _, d := range m.db.docs {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.FileNumber != "" && !strings.Contains(d.FileNumber, filter.FileNumber) {
			continue
		}
		if filter.CurrentOnly && !d.IsCurrentVersion {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

type memRecords struct{ db *memDB }

func (m memRecords) CreateBatch(ctx context.Context, records []*models.ApprovalRecord) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range records {
		r.ID = m.db.nextID("rec")
		r.CreatedAt = time.Now().UTC()
		stored := *r
		m.db.records = append(m.db.records, &stored)
	}
	return nil
}

func (m memRecords) NextPending(ctx context.Context, documentID string, round, afterStep int) (*models.ApprovalRecord, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var best *models.ApprovalRecord
	for _, r := range m.db.records {
		if r.DocumentID != documentID || r.Round != round || r.Status != models.ApprovalStatusPending || r.StepOrder <= afterStep {
			continue
		}
		if best == nil || r.StepOrder < best.StepOrder {
			best = r
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	out := *best
	return &out, nil
}

func (m memRecords) AssignApprover(ctx context.Context, id, approverID, approverName string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.records {
		if r.ID == id && r.Status == models.ApprovalStatusPending {
			r.ApproverID = &approverID
			r.ApproverName = &approverName
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m memRecords) FindPendingForApprover(ctx context.Context, documentID string, round int, approverID string) (*models.ApprovalRecord, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.records {
		if r.DocumentID == documentID && r.Round == round && r.Status == models.ApprovalStatusPending &&
			r.ApproverID != nil && *r.ApproverID == approverID {
			out := *r
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memRecords) Decide(ctx context.Context, id string, status models.ApprovalStatus, comment *string, at time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.records {
		if r.ID == id && r.Status == models.ApprovalStatusPending {
			r.Status = status
			r.Comment = comment
			r.ApproveTime = &at
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m memRecords) ListByRound(ctx context.Context, documentID string, round int) ([]models.ApprovalRecord, error) {
	return m.db.roundRecords(documentID, round), nil
}

func (m memRecords) ListByDocument(ctx context.Context, documentID string) ([]models.ApprovalRecord, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.ApprovalRecord
	for _, r := range m.db.records {
		if r.DocumentID == documentID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].StepOrder < out[j].StepOrder
	})
	return out, nil
}

func (m memRecords) ListPendingForApprover(ctx context.Context, approverID string) ([]models.ApprovalRecord, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.ApprovalRecord
	for _, r := range m.db.records {
		d := m.db.docs[r.DocumentID]
		if r.Status != models.ApprovalStatusPending || r.ApproverID == nil || *r.ApproverID != approverID {
			continue
		}
		if d == nil || d.ApprovalRound != r.Round || !d.Status.InApproval() {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

type memFlows struct{ db *memDB }

func (m memFlows) ListEnabled(ctx context.Context) ([]models.ApprovalFlow, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.ApprovalFlow
	for _, f := range m.db.flows {
		if f.Enabled {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m memFlows) Upsert(ctx context.Context, flow *models.ApprovalFlow) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for i := range m.db.flows {
		if m.db.flows[i].Code == flow.Code {
			flow.ID = m.db.flows[i].ID
			m.db.flows[i] = *flow
			return nil
		}
	}
	flow.ID = m.db.nextID("flow")
	m.db.flows = append(m.db.flows, *flow)
	return nil
}

func (m memFlows) DisableExcept(ctx context.Context, codes []string) (int64, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	keep := make(map[string]bool, len(codes))
	for _, c := range codes {
		keep[c] = true
	}
	var n int64
	for i := range m.db.flows {
		if !keep[m.db.flows[i].Code] && m.db.flows[i].Enabled {
			m.db.flows[i].Enabled = false
			n++
		}
	}
	return n, nil
}

type memDirectory struct{ db *memDB }

func (m memDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	u, ok := m.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := *u
	return &out, nil
}

func (m memDirectory) UsersWithRole(ctx context.Context, roleID string) ([]models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	ids := append([]string(nil), m.db.roleMembers[roleID]...)
	sort.Strings(ids)
	var out []models.User
	for _, id := range ids {
		out = append(out, *m.db.users[id])
	}
	return out, nil
}

func (m memDirectory) UsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := m.db.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m memDirectory) UsersInDepartments(ctx context.Context, departmentIDs []string) ([]models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	want := make(map[string]bool, len(departmentIDs))
	for _, id := range departmentIDs {
		want[id] = true
	}
	var out []models.User
	for _, u := range m.db.users {
		if u.DepartmentID != nil && want[*u.DepartmentID] {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memDirectory) UsersInGroups(ctx context.Context, groupIDs []string) ([]models.User, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.User
	for _, g := range groupIDs {
		for _, id := range m.db.groupMembers[g] {
			out = append(out, *m.db.users[id])
		}
	}
	return out, nil
}

func (m memDirectory) DepartmentNames(ctx context.Context, ids []string) (map[string]string, error) {
	return m.names(m.db.departments, ids), nil
}

func (m memDirectory) GroupNames(ctx context.Context, ids []string) (map[string]string, error) {
	return m.names(m.db.groups, ids), nil
}

func (m memDirectory) names(src map[string]string, ids []string) map[string]string {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	out := make(map[string]string)
	for _, id := range ids {
		if name, ok := src[id]; ok {
			out[id] = name
		}
	}
	return out
}

type memDistributions struct{ db *memDB }

func (m memDistributions) Create(ctx context.Context, dist *models.DocumentDistribution) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	dist.ID = m.db.nextID("dist")
	stored := *dist
	m.db.distributions = append(m.db.distributions, &stored)
	return nil
}

func (m memDistributions) CreateReceivers(ctx context.Context, receivers []*models.DistributionReceiver) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range receivers {
		for _, existing := range m.db.receivers {
			if existing.DistributionID == r.DistributionID && existing.ReceiverID == r.ReceiverID {
				return &pq.Error{Code: "23505", Constraint: "distribution_receivers_uniq"}
			}
		}
		r.ID = m.db.nextID("rcv")
		stored := *r
		m.db.receivers = append(m.db.receivers, &stored)
	}
	return nil
}

func (m memDistributions) GetByID(ctx context.Context, id string) (*models.DocumentDistribution, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, d := range m.db.distributions {
		if d.ID == id {
			out := *d
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memDistributions) ListByDocument(ctx context.Context, documentID string) ([]models.DocumentDistribution, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.DocumentDistribution
	for _, d := range m.db.distributions {
		if d.DocumentID == documentID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m memDistributions) ListReceivers(ctx context.Context, distributionID string) ([]models.DistributionReceiver, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.DistributionReceiver
	for _, r := range m.db.receivers {
		if r.DistributionID == distributionID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m memDistributions) GetReceiver(ctx context.Context, distributionID, receiverID string) (*models.DistributionReceiver, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	if r := m.findReceiver(distributionID, receiverID); r != nil {
		out := *r
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (m memDistributions) MarkViewed(ctx context.Context, distributionID, receiverID string, at time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r := m.findReceiver(distributionID, receiverID)
	if r == nil || r.Viewed {
		return false, nil
	}
	r.Viewed = true
	r.ViewTime = &at
	return true, nil
}

func (m memDistributions) MarkDownloaded(ctx context.Context, distributionID, receiverID string, at time.Time) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r := m.findReceiver(distributionID, receiverID)
	if r == nil || r.Downloaded {
		return false, nil
	}
	r.Downloaded = true
	r.DownloadTime = &at
	return true, nil
}

func (m memDistributions) ListInbox(ctx context.Context, receiverID string, page, size int) ([]models.InboxItem, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.InboxItem
	for _, r := range m.db.receivers {
		if r.ReceiverID != receiverID {
			continue
		}
		for _, d := range m.db.distributions {
			if d.ID == r.DistributionID {
				item := models.InboxItem{Distribution: *d, Receipt: *r}
				if doc := m.db.docs[d.DocumentID]; doc != nil {
					item.Document = *doc
				}
				out = append(out, item)
			}
		}
	}
	return out, len(out), nil
}

func (m memDistributions) findReceiver(distributionID, receiverID string) *models.DistributionReceiver {
	for _, r := range m.db.receivers {
		if r.DistributionID == distributionID && r.ReceiverID == receiverID {
			return r
		}
	}
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]models.UploadSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]models.UploadSession{}}
}

func (m *memSessions) Save(ctx context.Context, session *models.UploadSession, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.UploadID] = *session
	return nil
}

func (m *memSessions) Get(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uploadID]
	if !ok {
		return nil, appErrors.ErrUploadSessionNotFound
	}
	return &s, nil
}

func (m *memSessions) Consume(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uploadID]
	if !ok {
		return nil, appErrors.ErrUploadSessionNotFound
	}
	delete(m.sessions, uploadID)
	return &s, nil
}

type recordingOplog struct {
	mu      sync.Mutex
	entries []*models.OperationLog
}

func (r *recordingOplog) Record(ctx context.Context, entry *models.OperationLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingOplog) ops() []models.OperationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.OperationType, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.OperationType)
	}
	return out
}

type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]models.Notification
}

func (r *recordingNotifier) Dispatch(ctx context.Context, notes []models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, notes)
}

func (r *recordingNotifier) all() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = nil
}
