package repository

import (
	"context"

	"reviewdesk/internal/models"
	"reviewdesk/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const auditTable = "application_audit_entries"

// AuditRepository reads the append-only audit trail. Entries are written only
// through ApplicationTx.AppendAudit.
type AuditRepository interface {
	ListByApplication(ctx context.Context, applicationID string) ([]models.AuditEntry, error)
}

type auditRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db, log: observability.NewRepoLogger(auditTable)}
}

// ListByApplication returns the history of one application, oldest first.
func (r *auditRepository) ListByApplication(ctx context.Context, applicationID string) (_ []models.AuditEntry, err error) {
	ctx, span := observability.StartRepositorySpan(ctx, "list_by_application", auditTable)
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackQuery("list_by_application", auditTable)()

	entries := []models.AuditEntry{}
	if err := r.db.WithContext(ctx).
		Where("application_id = ?", applicationID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Order("id ASC").
		Find(&entries).Error; err != nil {
		r.log.LogError(ctx, err, "list_by_application")
		return nil, models.NewInternalError(err)
	}
	return entries, nil
}
