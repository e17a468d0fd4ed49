package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"reviewdesk/internal/featureflags"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/repository"
	"reviewdesk/internal/service"

	"gorm.io/gorm"
)

// SeedReviewerID is the reviewer recorded on seeded decisions.
const SeedReviewerID = "seed-reviewer"

// Options configures the seeder.
type Options struct {
	Applications int
	Seed         int64
}

// Seeder populates the database through the workflow services.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
	emitter *service.Emitter
	submit  *service.ApplicationService
	review  *service.ReviewService
}

// NewSeeder returns a Seeder bound to db. Seeded activity sends no
// notifications.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	apps := repository.NewApplicationRepository(db)
	emitter := service.NewEmitter(nil, time.Second)
	return &Seeder{
		db:      db,
		opts:    opts,
		factory: NewFactory(opts.Seed),
		emitter: emitter,
		submit:  service.NewApplicationService(apps, emitter, featureflags.NewManager("")),
		review:  service.NewReviewService(apps, emitter),
	}
}

// outcome returns the lifecycle position of the i-th seeded application.
// Applications rotate through every status so dashboards have something
// in each column.
func outcome(i int) models.ApplicationStatus {
	switch i % 5 {
	case 1:
		return models.StatusUnderReview
	case 2:
		return models.StatusApproved
	case 3:
		return models.StatusRejected
	case 4:
		return models.StatusResubmissionRequired
	default:
		return models.StatusPending
	}
}

// SeedApplications submits opts.Applications applications and drives each to
// its rotating outcome.
func (s *Seeder) SeedApplications(ctx context.Context) ([]models.Application, error) {
	out := make([]models.Application, 0, s.opts.Applications)
	for i := 0; i < s.opts.Applications; i++ {
		app, err := s.submit.Submit(ctx, s.factory.Submission())
		if err != nil {
			return out, fmt.Errorf("submit application %d: %w", i, err)
		}
		if app, err = s.advance(ctx, app, outcome(i)); err != nil {
			return out, fmt.Errorf("review application %d: %w", i, err)
		}
		out = append(out, *app)
	}
	middleware.Logger.InfoContext(ctx, "seeded applications", slog.Int("count", len(out)))
	return out, nil
}

func (s *Seeder) advance(ctx context.Context, app *models.Application, target models.ApplicationStatus) (*models.Application, error) {
	in := service.ReviewInput{ApplicationID: app.ID, ActorID: SeedReviewerID}
	switch target {
	case models.StatusPending:
		return app, nil
	case models.StatusUnderReview:
		in.Action = service.ActionStartReview
	case models.StatusApproved:
		in.Action = service.ActionApprove
	case models.StatusRejected:
		in.Action = service.ActionReject
		in.RejectionReason = s.factory.RejectionReason()
	case models.StatusResubmissionRequired:
		in.Action = service.ActionRequestResubmission
		in.Notes = s.factory.Feedback()
	}
	updated, _, err := s.review.Review(ctx, in)
	return updated, err
}

// SeedIfEmpty seeds only when no application exists yet.
func (s *Seeder) SeedIfEmpty(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Application{}).Unscoped().Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := s.SeedApplications(ctx)
	return err
}

// ClearAll removes all applications and their audit history.
func (s *Seeder) ClearAll(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	// Row triggers keep audit entries append-only; TRUNCATE is not a row operation.
	if db.Dialector.Name() == "postgres" {
		return db.Exec("TRUNCATE application_audit_entries, applications").Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.AuditEntry{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Application{}).Error
	})
}

// Wait blocks until background work started by the seeder finishes.
func (s *Seeder) Wait(ctx context.Context) error {
	return s.emitter.Wait(ctx)
}
