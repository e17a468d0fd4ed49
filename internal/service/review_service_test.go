package service

import (
	"context"
	"sync"
	"testing"

	"reviewdesk/internal/models"
	"reviewdesk/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var twoOfSix = models.RequiredDocuments{Resume: true, Identification: true}

func TestReview_ApprovePending(t *testing.T) {
	h := newHarness(t, "")
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)

	updated, intent, err := h.review.Review(context.Background(), ReviewInput{
		ApplicationID: app.ID,
		Action:        ActionApprove,
		ActorID:       "reviewer-1",
		Notes:         "Welcome aboard",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
	require.NotNil(t, updated.ReviewedAt)
	require.NotNil(t, updated.ReviewedBy)
	assert.Equal(t, "reviewer-1", *updated.ReviewedBy)
	assert.Nil(t, updated.RejectionReason)

	require.NotNil(t, intent)
	assert.Equal(t, models.NotificationApproved, intent.Kind)
	assert.Equal(t, "applicant-1", intent.RecipientID)
	assert.Equal(t, "Welcome aboard", intent.Payload["feedback"])

	stored := h.reload(t, app.ID)
	assert.Equal(t, models.StatusApproved, stored.Status)
	require.NotNil(t, stored.ReviewFeedback)
	assert.Equal(t, "Welcome aboard", *stored.ReviewFeedback)

	history := h.history(t, app.ID)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusPending, history[0].FromStatus)
	assert.Equal(t, models.StatusApproved, history[0].ToStatus)
	assert.Equal(t, models.ActorReviewer, history[0].ActorRole)

	h.flush(t)
	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationApproved, sent[0].Kind)
}

func TestReview_SecondDecisionIsAlreadyDecided(t *testing.T) {
	h := newHarness(t, "")
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)
	ctx := context.Background()

	_, _, err := h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionApprove, ActorID: "reviewer-1"})
	require.NoError(t, err)

	_, _, err = h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionApprove, ActorID: "reviewer-2"})
	assert.True(t, models.IsCode(err, models.CodeAlreadyDecided))

	_, _, err = h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionReject, ActorID: "reviewer-2", RejectionReason: "late"})
	assert.True(t, models.IsCode(err, models.CodeAlreadyDecided))

	stored := h.reload(t, app.ID)
	assert.Equal(t, "reviewer-1", *stored.ReviewedBy, "terminal state is untouched")
	assert.Len(t, h.history(t, app.ID), 1)
}

func TestReview_RejectRequiresReasonWithoutSideEffects(t *testing.T) {
	h := newHarness(t, "")
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)

	for _, reason := range []string{"", "   "} {
		_, _, err := h.review.Review(context.Background(), ReviewInput{
			ApplicationID: app.ID, Action: ActionReject, ActorID: "reviewer-1", RejectionReason: reason,
		})
		assert.True(t, models.IsCode(err, models.CodeValidation))
	}

	stored := h.reload(t, app.ID)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.ReviewedAt)
	assert.Empty(t, h.history(t, app.ID))
	h.flush(t)
	assert.Empty(t, h.sender.Sent())
}

func TestReview_RejectStoresReason(t *testing.T) {
	h := newHarness(t, "")
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)

	updated, intent, err := h.review.Review(context.Background(), ReviewInput{
		ApplicationID: app.ID, Action: ActionReject, ActorID: "reviewer-1",
		RejectionReason: "Certification not recognised", Notes: "Contact the state board",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.RejectionReason)
	assert.Equal(t, "Certification not recognised", *updated.RejectionReason)
	assert.Equal(t, models.NotificationRejected, intent.Kind)

	history := h.history(t, app.ID)
	require.Len(t, history, 1)
	assert.Contains(t, history[0].Notes, "Certification not recognised")
	assert.Contains(t, history[0].Notes, "Contact the state board")
}

func TestReview_RequestResubmissionRequiresFeedback(t *testing.T) {
	h := newHarness(t, "")
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)

	_, _, err := h.review.Review(context.Background(), ReviewInput{
		ApplicationID: app.ID, Action: ActionRequestResubmission, ActorID: "reviewer-1",
	})
	assert.True(t, models.IsCode(err, models.CodeValidation))
	assert.Empty(t, h.history(t, app.ID))
}

func TestReview_InputValidation(t *testing.T) {
	h := newHarness(t, "")
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)

	tests := []struct {
		name string
		in   ReviewInput
		code string
	}{
		{name: "unknown action", in: ReviewInput{ApplicationID: app.ID, Action: "escalate", ActorID: "reviewer-1"}, code: models.CodeValidation},
		{name: "missing actor", in: ReviewInput{ApplicationID: app.ID, Action: ActionApprove}, code: models.CodeValidation},
		{name: "missing application id", in: ReviewInput{Action: ActionApprove, ActorID: "reviewer-1"}, code: models.CodeValidation},
		{name: "unknown application", in: ReviewInput{ApplicationID: "nope", Action: ActionApprove, ActorID: "reviewer-1"}, code: models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.review.Review(context.Background(), tt.in)
			assert.True(t, models.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestReview_IllegalEdgesAreInvalidTransition(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	t.Run("start review twice", func(t *testing.T) {
		app := h.submitApp(t, "applicant-a", twoOfSix, 0)
		_, intent, err := h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionStartReview, ActorID: "reviewer-1"})
		require.NoError(t, err)
		assert.Equal(t, models.NotificationStatusChanged, intent.Kind)

		_, _, err = h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionStartReview, ActorID: "reviewer-1"})
		assert.True(t, models.IsCode(err, models.CodeInvalidTransition))
	})

	t.Run("approve while awaiting resubmission", func(t *testing.T) {
		app := h.submitApp(t, "applicant-b", twoOfSix, 0)
		_, _, err := h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionRequestResubmission, ActorID: "reviewer-1", Notes: "add degree"})
		require.NoError(t, err)

		_, _, err = h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionApprove, ActorID: "reviewer-1"})
		assert.True(t, models.IsCode(err, models.CodeInvalidTransition))
		assert.Len(t, h.history(t, app.ID), 1)
	})
}

func TestReview_UnderReviewPathRecordsEachStep(t *testing.T) {
	h := newHarness(t, "")
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)
	ctx := context.Background()

	_, _, err := h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionStartReview, ActorID: "reviewer-1"})
	require.NoError(t, err)
	_, _, err = h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionApprove, ActorID: "reviewer-2"})
	require.NoError(t, err)

	history := h.history(t, app.ID)
	require.Len(t, history, 2)
	assert.Equal(t, history[0].ToStatus, history[1].FromStatus, "entries chain")
	assert.True(t, history[1].Timestamp.After(history[0].Timestamp))
	assert.Equal(t, "reviewer-2", *h.reload(t, app.ID).ReviewedBy)
}

func TestReview_DispatchFailureDoesNotRollBack(t *testing.T) {
	h := newHarness(t, "")
	h.sender.err = errStorageDown
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)

	_, intent, err := h.review.Review(context.Background(), ReviewInput{ApplicationID: app.ID, Action: ActionApprove, ActorID: "reviewer-1"})
	require.NoError(t, err)
	require.NotNil(t, intent)
	h.flush(t)

	assert.Equal(t, models.StatusApproved, h.reload(t, app.ID).Status)
	assert.Len(t, h.history(t, app.ID), 1)
}

func TestReview_ConcurrentDecisionsHaveOneWinner(t *testing.T) {
	h := newHarness(t, "")
	app := h.submitApp(t, "applicant-1", twoOfSix, 0)

	inputs := []ReviewInput{
		{ApplicationID: app.ID, Action: ActionApprove, ActorID: "reviewer-1"},
		{ApplicationID: app.ID, Action: ActionReject, ActorID: "reviewer-2", RejectionReason: "duplicate"},
	}
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in ReviewInput) {
			defer wg.Done()
			_, _, errs[i] = h.review.Review(context.Background(), in)
		}(i, in)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, models.IsCode(err, models.CodeAlreadyDecided), "loser sees ALREADY_DECIDED, got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.history(t, app.ID), 1)
}

func TestReview_AuditFailureAbortsTransition(t *testing.T) {
	tx := &txStub{auditErr: errStorageDown}
	repo := &appRepoStub{
		withLockedFn: func(_ context.Context, id string, fn func(repository.ApplicationTx, *models.Application) error) error {
			return fn(tx, &models.Application{ID: id, ApplicantID: "applicant-1", Status: models.StatusPending, ReviewCycle: 1})
		},
	}
	sender := &recordingSender{}
	emitter := NewEmitter(sender, 0)
	svc := NewReviewService(repo, emitter)

	_, intent, err := svc.Review(context.Background(), ReviewInput{ApplicationID: "app-1", Action: ActionApprove, ActorID: "reviewer-1"})
	assert.ErrorIs(t, err, errStorageDown)
	assert.Nil(t, intent)
	require.NoError(t, emitter.Wait(context.Background()))
	assert.Empty(t, sender.Sent(), "no intent is emitted for a failed transition")
}

// Submission with two of six signals, a resubmission round that adds the
// degree, approval, then a late rejection attempt.
func TestReview_EndToEndResubmissionScenario(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	app := h.submitApp(t, "applicant-1", twoOfSix, 0)
	view, err := h.status.GetForApplicant(ctx, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, 33, view.Completeness)
	assert.Equal(t, models.StatusPending, view.Status)

	_, intent, err := h.review.Review(ctx, ReviewInput{
		ApplicationID: app.ID, Action: ActionRequestResubmission, ActorID: "reviewer-1", Notes: "add degree certificate",
	})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationResubmissionRequested, intent.Kind)
	assert.Equal(t, models.StatusResubmissionRequired, h.reload(t, app.ID).Status)
	require.Len(t, h.history(t, app.ID), 1)

	docs := twoOfSix
	docs.Degree = true
	resubmitted, err := h.submit.Resubmit(ctx, ResubmitInput{ApplicationID: app.ID, ApplicantID: "applicant-1", Documents: &docs})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, resubmitted.Status)
	assert.Equal(t, 2, resubmitted.ReviewCycle)

	view, err = h.status.GetForApplicant(ctx, "applicant-1")
	require.NoError(t, err)
	assert.Equal(t, 50, view.Completeness)

	approved, _, err := h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionApprove, ActorID: "reviewer-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)
	assert.NotNil(t, approved.ReviewedAt)

	_, _, err = h.review.Review(ctx, ReviewInput{ApplicationID: app.ID, Action: ActionReject, ActorID: "reviewer-1", RejectionReason: "x"})
	assert.True(t, models.IsCode(err, models.CodeAlreadyDecided))

	history := h.history(t, app.ID)
	require.Len(t, history, 3)
	assert.Equal(t, []models.ApplicationStatus{models.StatusResubmissionRequired, models.StatusPending, models.StatusApproved},
		[]models.ApplicationStatus{history[0].ToStatus, history[1].ToStatus, history[2].ToStatus})
	assert.Equal(t, models.ActorApplicant, history[1].ActorRole)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].ToStatus, history[i].FromStatus)
		assert.True(t, history[i].Timestamp.After(history[i-1].Timestamp))
	}

	h.flush(t)
	kinds := []models.NotificationKind{}
	for _, sent := range h.sender.Sent() {
		kinds = append(kinds, sent.Kind)
	}
	assert.ElementsMatch(t, []models.NotificationKind{
		models.NotificationResubmissionRequested,
		models.NotificationStatusChanged,
		models.NotificationApproved,
	}, kinds)
}
