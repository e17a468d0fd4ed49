package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"reviewdesk/internal/cache"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/observability"
	"reviewdesk/internal/repository"
	"reviewdesk/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// ReviewAction is a reviewer decision on an application.
type ReviewAction string

const (
	ActionStartReview         ReviewAction = "start_review"
	ActionApprove             ReviewAction = "approve"
	ActionReject              ReviewAction = "reject"
	ActionRequestResubmission ReviewAction = "request_resubmission"
)

// Target returns the status the action moves an application to.
func (a ReviewAction) Target() (models.ApplicationStatus, bool) {
	switch a {
	case ActionStartReview:
		return models.StatusUnderReview, true
	case ActionApprove:
		return models.StatusApproved, true
	case ActionReject:
		return models.StatusRejected, true
	case ActionRequestResubmission:
		return models.StatusResubmissionRequired, true
	}
	return "", false
}

// ReviewInput is one reviewer action.
type ReviewInput struct {
	ApplicationID   string
	Action          ReviewAction
	ActorID         string
	Notes           string
	RejectionReason string
}

// ReviewService applies reviewer decisions.
type ReviewService struct {
	apps    repository.ApplicationRepository
	emitter *Emitter
	now     func() time.Time
}

// NewReviewService returns a new ReviewService.
func NewReviewService(apps repository.ApplicationRepository, emitter *Emitter) *ReviewService {
	return &ReviewService{apps: apps, emitter: emitter, now: time.Now}
}

// Review validates and applies one action. The application change and its
// audit entry commit together; the returned intent has already been handed
// to the dispatcher.
func (s *ReviewService) Review(ctx context.Context, in ReviewInput) (_ *models.Application, _ *models.NotificationIntent, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ReviewService", "Review",
		attribute.String("application.id", in.ApplicationID),
		attribute.String("review.action", string(in.Action)),
	)
	defer func() { observability.EndSpan(span, err) }()
	defer func() {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			observability.ReviewRejections.WithLabelValues(appErr.Code).Inc()
		}
	}()

	target, input, err := s.validate(in)
	if err != nil {
		return nil, nil, err
	}

	var (
		result *models.Application
		from   models.ApplicationStatus
	)
	err = s.apps.WithLockedApplication(ctx, in.ApplicationID, func(tx repository.ApplicationTx, app *models.Application) error {
		if app.Status.IsTerminal() {
			return models.NewAlreadyDecidedError(app.Status)
		}
		if err := models.ValidateTransition(app.Status, target, input); err != nil {
			return err
		}

		from = app.Status
		app.ApplyReview(target, in.ActorID, in.Notes, in.RejectionReason, s.now().UTC())
		if err := tx.Save(ctx, app); err != nil {
			return err
		}
		if _, err := s.emitter.Record(ctx, tx, app, from, target, in.ActorID, models.ActorReviewer, auditNotes(in)); err != nil {
			return err
		}
		result = app
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	observability.RecordTransition(string(from), string(target), string(models.ActorReviewer))
	cache.InvalidateApplication(ctx, result.ApplicantID)
	middleware.Logger.InfoContext(ctx, "application reviewed",
		slog.String("application_id", result.ID),
		slog.String("from", string(from)),
		slog.String("to", string(target)),
		slog.String("reviewer_id", in.ActorID),
	)

	intent := s.emitter.Notify(result, KindForStatus(target))
	s.emitter.Dispatch(ctx, intent)
	return result, &intent, nil
}

// validate rejects bad input before anything is read.
func (s *ReviewService) validate(in ReviewInput) (models.ApplicationStatus, models.TransitionInput, error) {
	target, ok := in.Action.Target()
	if !ok {
		return "", models.TransitionInput{}, models.NewValidationError("unknown review action " + string(in.Action))
	}
	if strings.TrimSpace(in.ApplicationID) == "" {
		return "", models.TransitionInput{}, models.NewValidationError("application id is required")
	}
	if err := validation.ValidateSubjectID(in.ActorID); err != nil {
		return "", models.TransitionInput{}, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateNotes("notes", in.Notes); err != nil {
		return "", models.TransitionInput{}, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateNotes("rejection reason", in.RejectionReason); err != nil {
		return "", models.TransitionInput{}, models.NewValidationError(err.Error())
	}

	input := models.TransitionInput{
		Role:            models.ActorReviewer,
		RejectionReason: in.RejectionReason,
		Feedback:        in.Notes,
	}
	// Every reviewer target is reachable from pending, so this checks the
	// action's precondition without loading the application.
	if err := models.ValidateTransition(models.StatusPending, target, input); err != nil {
		return "", models.TransitionInput{}, err
	}
	return target, input, nil
}

func auditNotes(in ReviewInput) string {
	notes := strings.TrimSpace(in.Notes)
	reason := strings.TrimSpace(in.RejectionReason)
	if in.Action != ActionReject || reason == "" {
		return notes
	}
	if notes == "" {
		return reason
	}
	return reason + "\n\n" + notes
}
