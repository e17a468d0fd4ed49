package server

import (
	"errors"
	"net/http"
	"testing"

	"reviewdesk/internal/models"
	"reviewdesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewNotFoundError("Application", "x"), fiber.StatusNotFound},
		{models.NewUnauthorizedError("no"), fiber.StatusForbidden},
		{models.NewValidationError("bad"), fiber.StatusBadRequest},
		{models.NewInvalidTransitionError(models.StatusPending, models.StatusPending), fiber.StatusConflict},
		{models.NewAlreadyDecidedError(models.StatusApproved), fiber.StatusConflict},
		{models.NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), "%v", tt.err)
	}
}

func (e *testEnv) review(t *testing.T, id string, req ReviewRequest) (int, ReviewResponse, models.ErrorResponse) {
	t.Helper()
	var raw map[string]any
	status := e.do(t, http.MethodPost, "/api/admin/applications/"+id+"/review", "reviewer-1", true, req, &raw)

	var ok ReviewResponse
	var fail models.ErrorResponse
	if status == http.StatusOK {
		remarshal(t, raw, &ok)
	} else {
		remarshal(t, raw, &fail)
	}
	return status, ok, fail
}

func TestReviewApplication_Approve(t *testing.T) {
	e := newTestEnv(t, "", nil)
	app := e.submit(t, "applicant-1", submitBody(models.RequiredDocuments{Resume: true}, 1))

	status, resp, _ := e.review(t, app.ID, ReviewRequest{Action: "approve", Notes: "welcome aboard"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.StatusApproved, resp.Application.Status)
	require.NotNil(t, resp.Application.ReviewedBy)
	assert.Equal(t, "reviewer-1", *resp.Application.ReviewedBy, "the reviewer comes from the token")
	require.NotNil(t, resp.Notification)
	assert.Equal(t, models.NotificationApproved, resp.Notification.Kind)
	assert.Equal(t, "applicant-1", resp.Notification.RecipientID)

	status, _, fail := e.review(t, app.ID, ReviewRequest{Action: "approve"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeAlreadyDecided, fail.Code)
}

func TestReviewApplication_Errors(t *testing.T) {
	e := newTestEnv(t, "", nil)
	app := e.submit(t, "applicant-1", submitBody(models.RequiredDocuments{Resume: true}, 1))

	tests := []struct {
		name   string
		id     string
		req    ReviewRequest
		status int
		code   string
	}{
		{name: "unknown action", id: app.ID, req: ReviewRequest{Action: "escalate"}, status: http.StatusBadRequest, code: models.CodeValidation},
		{name: "reject without reason", id: app.ID, req: ReviewRequest{Action: "reject"}, status: http.StatusBadRequest, code: models.CodeValidation},
		{name: "resubmission without feedback", id: app.ID, req: ReviewRequest{Action: "request_resubmission"}, status: http.StatusBadRequest, code: models.CodeValidation},
		{name: "missing application", id: "does-not-exist", req: ReviewRequest{Action: "approve"}, status: http.StatusNotFound, code: models.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, fail := e.review(t, tt.id, tt.req)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, fail.Code)
		})
	}

	var view service.ApplicationDetail
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/admin/applications/"+app.ID, "reviewer-1", true, nil, &view))
	assert.Equal(t, models.StatusPending, view.Application.Status, "rejected requests change nothing")
	assert.Empty(t, view.AuditHistory)
}

func TestListApplicationsAndStats(t *testing.T) {
	e := newTestEnv(t, "", nil)
	a := e.submit(t, "applicant-1", submitBody(models.RequiredDocuments{Resume: true}, 1))
	e.submit(t, "applicant-2", submitBody(models.RequiredDocuments{}, 0))
	e.submit(t, "applicant-3", submitBody(models.RequiredDocuments{}, 0))

	status, _, _ := e.review(t, a.ID, ReviewRequest{Action: "start_review"})
	require.Equal(t, http.StatusOK, status)

	var page service.Page
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/admin/applications?status=pending&page_size=1&sort=submitted_at_asc", "reviewer-1", true, nil, &page))
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, 1, page.PageSize)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "applicant-2", page.Items[0].ApplicantID)

	var errBody models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/admin/applications?status=archived", "reviewer-1", true, nil, &errBody))
	assert.Equal(t, models.CodeValidation, errBody.Code)

	var stats struct {
		Counts map[string]int64 `json:"counts"`
	}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/admin/applications/stats", "reviewer-1", true, nil, &stats))
	assert.EqualValues(t, 2, stats.Counts["pending"])
	assert.EqualValues(t, 1, stats.Counts["under_review"])
	assert.EqualValues(t, 0, stats.Counts["approved"])
}

func TestUpdateBackgroundCheck(t *testing.T) {
	e := newTestEnv(t, "", nil)
	app := e.submit(t, "applicant-1", submitBody(models.RequiredDocuments{}, 0))
	path := "/api/admin/applications/" + app.ID + "/background-check"

	var updated models.Application
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPatch, path, "reviewer-1", true, BackgroundCheckRequest{Status: "in_progress"}, &updated))
	assert.Equal(t, models.BackgroundCheckInProgress, updated.BackgroundCheckStatus)
	assert.Equal(t, models.StatusPending, updated.Status)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPatch, path, "reviewer-1", true, BackgroundCheckRequest{Status: "lost"}, nil))
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPatch, path, "applicant-1", false, BackgroundCheckRequest{Status: "completed"}, nil))
}

func TestPurgeApplication(t *testing.T) {
	e := newTestEnv(t, "", nil)
	app := e.submit(t, "applicant-1", submitBody(models.RequiredDocuments{}, 0))

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/admin/applications/"+app.ID, "reviewer-1", true, nil, nil))
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/admin/applications/"+app.ID, "reviewer-1", true, nil, nil))
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/admin/applications/"+app.ID, "reviewer-1", true, nil, nil))
}

// Two of six signals, sent back, resubmitted with a third, approved, then a
// late rejection is refused.
func TestReviewWorkflow_EndToEnd(t *testing.T) {
	e := newTestEnv(t, "", nil)
	app := e.submit(t, "applicant-1", submitBody(models.RequiredDocuments{Resume: true, Identification: true}, 0))

	var view service.ApplicantStatus
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/applications/me", "applicant-1", false, nil, &view))
	assert.Equal(t, 33, view.Completeness)

	status, _, _ := e.review(t, app.ID, ReviewRequest{Action: "request_resubmission", Notes: "Please add your degree"})
	require.Equal(t, http.StatusOK, status)

	view = service.ApplicantStatus{}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/applications/me", "applicant-1", false, nil, &view))
	assert.Equal(t, models.StatusResubmissionRequired, view.Status)
	require.NotNil(t, view.ReviewFeedback)
	assert.Equal(t, "Please add your degree", *view.ReviewFeedback)

	docs := models.RequiredDocuments{Resume: true, Identification: true, Degree: true}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/applications/"+app.ID+"/resubmit", "applicant-1", false,
		ResubmitApplicationRequest{RequiredDocuments: &docs}, nil))

	view = service.ApplicantStatus{}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/applications/me", "applicant-1", false, nil, &view))
	assert.Equal(t, 50, view.Completeness)
	assert.Equal(t, 2, view.ReviewCycle)

	status, _, _ = e.review(t, app.ID, ReviewRequest{Action: "approve"})
	require.Equal(t, http.StatusOK, status)

	status, _, fail := e.review(t, app.ID, ReviewRequest{Action: "reject", RejectionReason: "changed my mind"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeAlreadyDecided, fail.Code)

	var detail service.ApplicationDetail
	require.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/admin/applications/"+app.ID, "reviewer-1", true, nil, &detail))
	require.Len(t, detail.AuditHistory, 3)
	assert.Equal(t, models.StatusResubmissionRequired, detail.AuditHistory[0].ToStatus)
	assert.Equal(t, models.StatusPending, detail.AuditHistory[1].ToStatus)
	assert.Equal(t, models.StatusApproved, detail.AuditHistory[2].ToStatus)
	for i := 1; i < len(detail.AuditHistory); i++ {
		assert.True(t, detail.AuditHistory[i].Timestamp.After(detail.AuditHistory[i-1].Timestamp))
	}
	e.flush(t)
}
