package server

import (
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ReviewRequest is the body of POST /api/admin/applications/:id/review.
type ReviewRequest struct {
	Action          string `json:"action"`
	Notes           string `json:"notes"`
	RejectionReason string `json:"rejection_reason"`
}

// ReviewResponse carries the updated application and the notification
// handed to delivery.
type ReviewResponse struct {
	Application  *models.Application        `json:"application"`
	Notification *models.NotificationIntent `json:"notification"`
}

// BackgroundCheckRequest is the body of PATCH .../background-check.
type BackgroundCheckRequest struct {
	Status string `json:"status"`
}

// ListApplications handles GET /api/admin/applications.
func (s *Server) ListApplications(c *fiber.Ctx) error {
	page, err := s.statusService.ListForReviewers(c.UserContext(), service.ListQuery{
		Status:   c.Query("status"),
		Sort:     c.Query("sort"),
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", service.DefaultPageSize),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetApplicationStats handles GET /api/admin/applications/stats.
func (s *Server) GetApplicationStats(c *fiber.Ctx) error {
	counts, err := s.statusService.StatusCounts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"counts": counts})
}

// GetApplication handles GET /api/admin/applications/:id.
func (s *Server) GetApplication(c *fiber.Ctx) error {
	id, err := applicationID(c)
	if err != nil {
		return respondError(c, err)
	}
	detail, err := s.statusService.GetDetailForReviewer(c.UserContext(), middleware.CanReview(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// ReviewApplication handles POST /api/admin/applications/:id/review.
func (s *Server) ReviewApplication(c *fiber.Ctx) error {
	id, err := applicationID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req ReviewRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	app, intent, err := s.reviewService.Review(c.UserContext(), service.ReviewInput{
		ApplicationID:   id,
		Action:          service.ReviewAction(req.Action),
		ActorID:         middleware.UserID(c),
		Notes:           req.Notes,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(ReviewResponse{Application: app, Notification: intent})
}

// UpdateBackgroundCheck handles PATCH /api/admin/applications/:id/background-check.
func (s *Server) UpdateBackgroundCheck(c *fiber.Ctx) error {
	id, err := applicationID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req BackgroundCheckRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	app, err := s.appService.UpdateBackgroundCheck(c.UserContext(), id, models.BackgroundCheckStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}

// PurgeApplication handles DELETE /api/admin/applications/:id.
func (s *Server) PurgeApplication(c *fiber.Ctx) error {
	id, err := applicationID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.appService.Purge(c.UserContext(), id, middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
