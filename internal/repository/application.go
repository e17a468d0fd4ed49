// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"reviewdesk/internal/models"
	"reviewdesk/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const applicationsTable = "applications"

// ListFilter narrows and orders a reviewer listing.
type ListFilter struct {
	Status        *models.ApplicationStatus
	Limit         int
	Offset        int
	SortAscending bool
}

// ApplicationTx is the write surface available while an application row is
// locked.
type ApplicationTx interface {
	Save(ctx context.Context, app *models.Application) error
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error
	LatestAuditTimestamp(ctx context.Context, applicationID string) (time.Time, error)
}

// ApplicationRepository defines the interface for application data operations
type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	GetLatestForApplicant(ctx context.Context, applicantID string) (*models.Application, error)
	HasOpenApplication(ctx context.Context, applicantID string) (bool, error)
	List(ctx context.Context, filter ListFilter) ([]models.Application, int64, error)
	CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error)
	UpdateBackgroundCheck(ctx context.Context, id string, status models.BackgroundCheckStatus) (*models.Application, error)
	SoftDelete(ctx context.Context, id string) (*models.Application, error)
	WithLockedApplication(ctx context.Context, id string, fn func(tx ApplicationTx, app *models.Application) error) error
}

// applicationRepository implements ApplicationRepository
type applicationRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db, log: observability.NewRepoLogger(applicationsTable)}
}

func (r *applicationRepository) fail(ctx context.Context, op string, err error) error {
	r.log.LogError(ctx, err, op)
	return models.NewInternalError(err)
}

func (r *applicationRepository) Create(ctx context.Context, app *models.Application) (err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "create", applicationsTable)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("create", applicationsTable)()

	if err := r.db.WithContext(ctx).Create(app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.NewValidationError("applicant already has an open application")
		}
		return r.fail(ctx, "create", err)
	}
	r.log.LogWrite(ctx, "create", map[string]any{"application_id": app.ID, "applicant_id": app.ApplicantID})
	return nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id string) (_ *models.Application, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "get_by_id", applicationsTable)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("get_by_id", applicationsTable)()

	var app models.Application
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Application", id)
		}
		return nil, r.fail(ctx, "get_by_id", err)
	}
	return &app, nil
}

func (r *applicationRepository) GetLatestForApplicant(ctx context.Context, applicantID string) (_ *models.Application, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "get_latest_for_applicant", applicationsTable)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("get_latest_for_applicant", applicationsTable)()

	var app models.Application
	if err := r.db.WithContext(ctx).
		Where("applicant_id = ?", applicantID).
		Order("submitted_at DESC").
		Order("id DESC").
		First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Application for applicant", applicantID)
		}
		return nil, r.fail(ctx, "get_latest_for_applicant", err)
	}
	return &app, nil
}

func (r *applicationRepository) HasOpenApplication(ctx context.Context, applicantID string) (bool, error) {
	defer observability.TrackQuery("has_open", applicationsTable)()

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("applicant_id = ?", applicantID).
		Where("status NOT IN ?", []models.ApplicationStatus{models.StatusApproved, models.StatusRejected}).
		Count(&count).Error; err != nil {
		return false, r.fail(ctx, "has_open", err)
	}
	return count > 0, nil
}

func (r *applicationRepository) List(ctx context.Context, filter ListFilter) (_ []models.Application, _ int64, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "list", applicationsTable)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("list", applicationsTable)()

	base := r.db.WithContext(ctx).Model(&models.Application{})
	if filter.Status != nil {
		base = base.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, r.fail(ctx, "list_count", err)
	}

	dir := "DESC"
	if filter.SortAscending {
		dir = "ASC"
	}
	var apps []models.Application
	if err := base.Session(&gorm.Session{}).
		Order("submitted_at " + dir).
		Order("id " + dir).
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&apps).Error; err != nil {
		return nil, 0, r.fail(ctx, "list", err)
	}
	return apps, total, nil
}

type statusCount struct {
	Status models.ApplicationStatus
	Total  int64
}

func (r *applicationRepository) CountByStatus(ctx context.Context) (map[models.ApplicationStatus]int64, error) {
	defer observability.TrackQuery("count_by_status", applicationsTable)()

	var rows []statusCount
	if err := r.db.WithContext(ctx).Model(&models.Application{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, r.fail(ctx, "count_by_status", err)
	}

	out := make(map[models.ApplicationStatus]int64, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		out[st] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *applicationRepository) UpdateBackgroundCheck(ctx context.Context, id string, status models.BackgroundCheckStatus) (*models.Application, error) {
	var updated *models.Application
	err := r.WithLockedApplication(ctx, id, func(tx ApplicationTx, app *models.Application) error {
		app.BackgroundCheckStatus = status
		if err := tx.Save(ctx, app); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.log.LogWrite(ctx, "update_background_check", map[string]any{"application_id": id, "background_check_status": status})
	return updated, nil
}

func (r *applicationRepository) SoftDelete(ctx context.Context, id string) (_ *models.Application, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "soft_delete", applicationsTable)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("soft_delete", applicationsTable)()

	app, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(app).Error; err != nil {
		return nil, r.fail(ctx, "soft_delete", err)
	}
	r.log.LogWrite(ctx, "soft_delete", map[string]any{"application_id": id})
	return app, nil
}

// WithLockedApplication loads the application with SELECT ... FOR UPDATE and
// runs fn inside the same transaction. An error from fn rolls everything back.
func (r *applicationRepository) WithLockedApplication(ctx context.Context, id string, fn func(tx ApplicationTx, app *models.Application) error) (err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "lock", applicationsTable)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("locked_tx", applicationsTable)()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var app models.Application
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Application", id)
			}
			return r.fail(ctx, "lock", err)
		}
		return fn(&txStore{db: tx, repo: r}, &app)
	})
}

type txStore struct {
	db   *gorm.DB
	repo *applicationRepository
}

func (s *txStore) Save(ctx context.Context, app *models.Application) error {
	if err := s.db.WithContext(ctx).Save(app).Error; err != nil {
		return s.repo.fail(ctx, "save", err)
	}
	s.repo.log.LogWrite(ctx, "save", map[string]any{"application_id": app.ID, "status": app.Status})
	return nil
}

func (s *txStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return s.repo.fail(ctx, "append_audit", err)
	}
	return nil
}

func (s *txStore) LatestAuditTimestamp(ctx context.Context, applicationID string) (time.Time, error) {
	var latest []models.AuditEntry
	if err := s.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).
		Order("id DESC").
		Limit(1).
		Find(&latest).Error; err != nil {
		return time.Time{}, s.repo.fail(ctx, "latest_audit", err)
	}
	if len(latest) == 0 {
		return time.Time{}, nil
	}
	return latest[0].Timestamp, nil
}
