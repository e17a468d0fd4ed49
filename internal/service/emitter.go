package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"reviewdesk/internal/ids"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/observability"
	"reviewdesk/internal/repository"
)

// ReviewersRecipient addresses intents broadcast to every reviewer.
const ReviewersRecipient = "reviewers"

// Sender delivers a notification intent to its recipient.
type Sender interface {
	Send(ctx context.Context, intent models.NotificationIntent) error
}

// Broadcaster delivers an intent to all reviewers.
type Broadcaster interface {
	Broadcast(ctx context.Context, intent models.NotificationIntent) error
}

// Emitter appends audit entries and hands notification intents to the
// delivery collaborator.
type Emitter struct {
	sender  Sender
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	last time.Time

	inflight sync.WaitGroup
}

// NewEmitter returns an Emitter dispatching through sender. A nil sender
// drops intents.
func NewEmitter(sender Sender, timeout time.Duration) *Emitter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Emitter{sender: sender, timeout: timeout, now: time.Now}
}

// tick returns a timestamp strictly after every one issued by this process
// and strictly after floor. Microsecond resolution matches Postgres.
func (e *Emitter) tick(floor time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := e.now().UTC().Truncate(time.Microsecond)
	if !ts.After(e.last) {
		ts = e.last.Add(time.Microsecond)
	}
	if !floor.IsZero() && !ts.After(floor) {
		ts = floor.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	e.last = ts
	return ts
}

// Record appends the audit entry for one transition inside the caller's
// transaction. Storage errors propagate.
func (e *Emitter) Record(
	ctx context.Context,
	tx repository.ApplicationTx,
	app *models.Application,
	from, to models.ApplicationStatus,
	actorID string,
	role models.ActorRole,
	notes string,
) (*models.AuditEntry, error) {
	floor, err := tx.LatestAuditTimestamp(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	ts := e.tick(floor)

	entry := &models.AuditEntry{
		ID:            ids.NewAt(ts),
		ApplicationID: app.ID,
		FromStatus:    from,
		ToStatus:      to,
		ActorID:       actorID,
		ActorRole:     role,
		Notes:         strings.TrimSpace(notes),
		ReviewCycle:   app.ReviewCycle,
		Timestamp:     ts,
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// KindForStatus maps the status an application just entered to the intent kind.
func KindForStatus(to models.ApplicationStatus) models.NotificationKind {
	switch to {
	case models.StatusApproved:
		return models.NotificationApproved
	case models.StatusRejected:
		return models.NotificationRejected
	case models.StatusResubmissionRequired:
		return models.NotificationResubmissionRequested
	default:
		return models.NotificationStatusChanged
	}
}

// Notify builds the intent for app addressed to its applicant.
func (e *Emitter) Notify(app *models.Application, kind models.NotificationKind) models.NotificationIntent {
	payload := map[string]interface{}{
		"application_id": app.ID,
		"status":         string(app.Status),
		"review_cycle":   app.ReviewCycle,
	}
	if app.ReviewFeedback != nil {
		payload["feedback"] = *app.ReviewFeedback
	}
	if app.RejectionReason != nil {
		payload["rejection_reason"] = *app.RejectionReason
	}
	return models.NotificationIntent{
		RecipientID: app.ApplicantID,
		Kind:        kind,
		Payload:     payload,
	}
}

// Dispatch sends intent in the background with a bounded timeout. Failures
// are logged and counted, never returned.
func (e *Emitter) Dispatch(ctx context.Context, intent models.NotificationIntent) {
	if e.sender == nil {
		return
	}
	e.dispatch(ctx, intent, e.sender.Send)
}

// DispatchReviewers broadcasts intent when the sender supports it.
func (e *Emitter) DispatchReviewers(ctx context.Context, intent models.NotificationIntent) {
	b, ok := e.sender.(Broadcaster)
	if !ok {
		return
	}
	e.dispatch(ctx, intent, b.Broadcast)
}

func (e *Emitter) dispatch(ctx context.Context, intent models.NotificationIntent, send func(context.Context, models.NotificationIntent) error) {
	ctx = context.WithoutCancel(ctx)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		err := func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic in sender: %v", r)
					middleware.Logger.ErrorContext(ctx, "notification sender panicked", slog.String("stack", string(debug.Stack())))
				}
			}()
			return send(ctx, intent)
		}()

		observability.RecordDispatch(string(intent.Kind), err)
		if err != nil {
			observability.LogAsyncOperationError(ctx, "notification_dispatch", err, map[string]any{
				"recipient_id": intent.RecipientID,
				"kind":         string(intent.Kind),
			})
		}
	}()
}

// Wait blocks until every dispatched intent has finished or ctx is done.
func (e *Emitter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
