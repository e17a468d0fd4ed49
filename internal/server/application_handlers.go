package server

import (
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/models"
	"reviewdesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitApplicationRequest is the body of POST /api/applications.
type SubmitApplicationRequest struct {
	RequiredDocuments  models.RequiredDocuments  `json:"required_documents"`
	TeachingExperience models.TeachingExperience `json:"teaching_experience"`
	Specializations    []string                  `json:"specializations"`
}

// ResubmitApplicationRequest is the body of PUT /api/applications/:id/resubmit.
// Omitted fields keep their stored values.
type ResubmitApplicationRequest struct {
	RequiredDocuments  *models.RequiredDocuments  `json:"required_documents"`
	TeachingExperience *models.TeachingExperience `json:"teaching_experience"`
	Specializations    *[]string                  `json:"specializations"`
}

// SubmitApplication handles POST /api/applications.
func (s *Server) SubmitApplication(c *fiber.Ctx) error {
	var req SubmitApplicationRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	app, err := s.appService.Submit(c.UserContext(), service.SubmitInput{
		ApplicantID:     middleware.UserID(c),
		Documents:       req.RequiredDocuments,
		Experience:      req.TeachingExperience,
		Specializations: req.Specializations,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(app)
}

// GetMyApplication handles GET /api/applications/me.
func (s *Server) GetMyApplication(c *fiber.Ctx) error {
	view, err := s.statusService.GetForApplicant(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// ResubmitApplication handles PUT /api/applications/:id/resubmit.
func (s *Server) ResubmitApplication(c *fiber.Ctx) error {
	id, err := applicationID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req ResubmitApplicationRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	app, err := s.appService.Resubmit(c.UserContext(), service.ResubmitInput{
		ApplicationID:   id,
		ApplicantID:     middleware.UserID(c),
		Documents:       req.RequiredDocuments,
		Experience:      req.TeachingExperience,
		Specializations: req.Specializations,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(app)
}
