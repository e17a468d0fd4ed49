package service

import (
	"context"
	"log/slog"
	"time"

	"reviewdesk/internal/cache"
	"reviewdesk/internal/featureflags"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/observability"
	"reviewdesk/internal/repository"
	"reviewdesk/internal/validation"
)

// SubmitInput is a new application from an applicant.
type SubmitInput struct {
	ApplicantID     string
	Documents       models.RequiredDocuments
	Experience      models.TeachingExperience
	Specializations []string
}

// ResubmitInput updates an application sent back for changes. Nil fields are
// left as they were.
type ResubmitInput struct {
	ApplicationID   string
	ApplicantID     string
	Documents       *models.RequiredDocuments
	Experience      *models.TeachingExperience
	Specializations *[]string
}

// ApplicationService handles applicant submissions and reviewer housekeeping.
type ApplicationService struct {
	apps    repository.ApplicationRepository
	emitter *Emitter
	flags   *featureflags.Manager
	now     func() time.Time
}

// NewApplicationService returns a new ApplicationService.
func NewApplicationService(apps repository.ApplicationRepository, emitter *Emitter, flags *featureflags.Manager) *ApplicationService {
	return &ApplicationService{apps: apps, emitter: emitter, flags: flags, now: time.Now}
}

// Submit creates a pending application for the applicant.
func (s *ApplicationService) Submit(ctx context.Context, in SubmitInput) (_ *models.Application, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ApplicationService", "Submit")
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.ValidateSubjectID(in.ApplicantID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validateFields(&in.Experience, &in.Specializations); err != nil {
		return nil, err
	}

	open, err := s.apps.HasOpenApplication(ctx, in.ApplicantID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, models.NewValidationError("applicant already has an open application")
	}

	app := &models.Application{
		ApplicantID:           in.ApplicantID,
		Status:                models.StatusPending,
		SubmittedAt:           s.now().UTC().Truncate(time.Microsecond),
		BackgroundCheckStatus: models.BackgroundCheckNotStarted,
		ReviewCycle:           1,
	}
	app.SetDocuments(in.Documents)
	app.SetExperience(in.Experience)
	app.SetSpecializations(in.Specializations)

	if err := s.apps.Create(ctx, app); err != nil {
		return nil, err
	}

	cache.InvalidateApplication(ctx, app.ApplicantID)
	middleware.Logger.InfoContext(ctx, "application submitted",
		slog.String("application_id", app.ID),
		slog.String("applicant_id", app.ApplicantID),
		slog.Int("completeness", models.ComputeCompleteness(app)),
	)

	if s.flags.Enabled(featureflags.ReviewerBroadcast, app.ApplicantID) {
		intent := s.emitter.Notify(app, models.NotificationStatusChanged)
		intent.RecipientID = ReviewersRecipient
		intent.Payload["applicant_id"] = app.ApplicantID
		s.emitter.DispatchReviewers(ctx, intent)
	}
	return app, nil
}

// Resubmit applies the applicant's changes and returns the application to
// pending for a new review cycle.
func (s *ApplicationService) Resubmit(ctx context.Context, in ResubmitInput) (_ *models.Application, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ApplicationService", "Resubmit")
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.ValidateSubjectID(in.ApplicantID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validateFields(in.Experience, in.Specializations); err != nil {
		return nil, err
	}

	var (
		result *models.Application
		from   models.ApplicationStatus
	)
	err = s.apps.WithLockedApplication(ctx, in.ApplicationID, func(tx repository.ApplicationTx, app *models.Application) error {
		if app.ApplicantID != in.ApplicantID {
			return models.NewUnauthorizedError("only the applicant may resubmit this application")
		}
		if app.Status.IsTerminal() {
			return models.NewAlreadyDecidedError(app.Status)
		}
		if err := models.ValidateTransition(app.Status, models.StatusPending, models.TransitionInput{Role: models.ActorApplicant}); err != nil {
			return err
		}

		if in.Documents != nil {
			app.SetDocuments(*in.Documents)
		}
		if in.Experience != nil {
			app.SetExperience(*in.Experience)
		}
		if in.Specializations != nil {
			app.SetSpecializations(*in.Specializations)
		}

		from = app.Status
		app.ApplyResubmission()
		if err := tx.Save(ctx, app); err != nil {
			return err
		}
		if _, err := s.emitter.Record(ctx, tx, app, from, models.StatusPending, in.ApplicantID, models.ActorApplicant, "resubmitted"); err != nil {
			return err
		}
		result = app
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.RecordTransition(string(from), string(models.StatusPending), string(models.ActorApplicant))
	cache.InvalidateApplication(ctx, result.ApplicantID)
	middleware.Logger.InfoContext(ctx, "application resubmitted",
		slog.String("application_id", result.ID),
		slog.Int("review_cycle", result.ReviewCycle),
	)

	s.emitter.Dispatch(ctx, s.emitter.Notify(result, models.NotificationStatusChanged))
	return result, nil
}

// UpdateBackgroundCheck records background check progress. It never changes
// the application status and writes no audit entry.
func (s *ApplicationService) UpdateBackgroundCheck(ctx context.Context, id string, status models.BackgroundCheckStatus) (*models.Application, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("unknown background check status " + string(status))
	}
	app, err := s.apps.UpdateBackgroundCheck(ctx, id, status)
	if err != nil {
		return nil, err
	}
	cache.InvalidateApplication(ctx, app.ApplicantID)
	return app, nil
}

// Purge soft-deletes an application. Its audit history is kept.
func (s *ApplicationService) Purge(ctx context.Context, id string, actorID string) error {
	app, err := s.apps.SoftDelete(ctx, id)
	if err != nil {
		return err
	}
	cache.InvalidateApplication(ctx, app.ApplicantID)
	middleware.Logger.InfoContext(ctx, "application purged",
		slog.String("application_id", id),
		slog.String("actor_id", actorID),
	)
	return nil
}

func validateFields(exp *models.TeachingExperience, specs *[]string) error {
	if exp != nil {
		if err := validation.ValidateExperience(exp.Years, exp.PreviousInstitutions, exp.Description); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	if specs != nil {
		if err := validation.ValidateSpecializations(*specs); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	return nil
}
