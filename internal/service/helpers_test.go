package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reviewdesk/internal/database"
	"reviewdesk/internal/featureflags"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingSender struct {
	mu        sync.Mutex
	sent      []models.NotificationIntent
	broadcast []models.NotificationIntent
	err       error
}

func (s *recordingSender) Send(_ context.Context, intent models.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, intent)
	return s.err
}

func (s *recordingSender) Broadcast(_ context.Context, intent models.NotificationIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcast = append(s.broadcast, intent)
	return s.err
}

func (s *recordingSender) Sent() []models.NotificationIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NotificationIntent(nil), s.sent...)
}

func (s *recordingSender) Broadcasts() []models.NotificationIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NotificationIntent(nil), s.broadcast...)
}

type harness struct {
	db      *gorm.DB
	apps    repository.ApplicationRepository
	audits  repository.AuditRepository
	sender  *recordingSender
	emitter *Emitter
	review  *ReviewService
	status  *StatusService
	submit  *ApplicationService
}

func newHarness(t *testing.T, flags string) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	h := &harness{
		db:     db,
		apps:   repository.NewApplicationRepository(db),
		audits: repository.NewAuditRepository(db),
		sender: &recordingSender{},
	}
	ff := featureflags.NewManager(flags)
	h.emitter = NewEmitter(h.sender, time.Second)
	h.review = NewReviewService(h.apps, h.emitter)
	h.status = NewStatusService(h.apps, h.audits, ff, time.Minute)
	h.submit = NewApplicationService(h.apps, h.emitter, ff)
	return h
}

// flush waits for background dispatches.
func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, h.emitter.Wait(ctx))
}

func (h *harness) submitApp(t *testing.T, applicantID string, docs models.RequiredDocuments, years int, specs ...string) *models.Application {
	t.Helper()
	app, err := h.submit.Submit(context.Background(), SubmitInput{
		ApplicantID:     applicantID,
		Documents:       docs,
		Experience:      models.TeachingExperience{Years: years},
		Specializations: specs,
	})
	require.NoError(t, err)
	return app
}

func (h *harness) history(t *testing.T, id string) []models.AuditEntry {
	t.Helper()
	entries, err := h.audits.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	return entries
}

func (h *harness) reload(t *testing.T, id string) *models.Application {
	t.Helper()
	app, err := h.apps.GetByID(context.Background(), id)
	require.NoError(t, err)
	return app
}

// appRepoStub lets tests script individual repository calls.
type appRepoStub struct {
	repository.ApplicationRepository
	withLockedFn func(context.Context, string, func(repository.ApplicationTx, *models.Application) error) error
	listFn       func(context.Context, repository.ListFilter) ([]models.Application, int64, error)
}

func (s *appRepoStub) WithLockedApplication(ctx context.Context, id string, fn func(repository.ApplicationTx, *models.Application) error) error {
	return s.withLockedFn(ctx, id, fn)
}

func (s *appRepoStub) List(ctx context.Context, f repository.ListFilter) ([]models.Application, int64, error) {
	return s.listFn(ctx, f)
}

type txStub struct {
	saved    []models.Application
	appended []models.AuditEntry
	latest   time.Time
	saveErr  error
	auditErr error
}

func (s *txStub) Save(_ context.Context, app *models.Application) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, *app)
	return nil
}

func (s *txStub) AppendAudit(_ context.Context, entry *models.AuditEntry) error {
	if s.auditErr != nil {
		return s.auditErr
	}
	s.appended = append(s.appended, *entry)
	return nil
}

func (s *txStub) LatestAuditTimestamp(context.Context, string) (time.Time, error) {
	return s.latest, nil
}

var errStorageDown = errors.New("storage unavailable")
