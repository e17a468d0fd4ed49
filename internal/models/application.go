package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RequiredDocuments records which artifacts the applicant has supplied,
// independent of whether they have been verified.
type RequiredDocuments struct {
	Resume         bool `json:"resume"`
	Degree         bool `json:"degree"`
	Certification  bool `json:"certification"`
	Identification bool `json:"identification"`
}

// TeachingExperience summarises the applicant's classroom history.
type TeachingExperience struct {
	Years                int      `json:"years"`
	PreviousInstitutions []string `json:"previous_institutions"`
	Description          string   `json:"description"`
}

// Application is the onboarding package under review.
type Application struct {
	ID                    string                                 `gorm:"primaryKey;size:36" json:"id"`
	ApplicantID           string                                 `gorm:"size:64;not null;index" json:"applicant_id"`
	Status                ApplicationStatus                      `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	SubmittedAt           time.Time                              `gorm:"not null;index" json:"submitted_at"`
	ReviewedAt            *time.Time                             `json:"reviewed_at,omitempty"`
	ReviewedBy            *string                                `gorm:"size:64" json:"reviewed_by,omitempty"`
	RejectionReason       *string                                `gorm:"type:text" json:"rejection_reason,omitempty"`
	ReviewFeedback        *string                                `gorm:"type:text" json:"review_feedback,omitempty"`
	RequiredDocuments     datatypes.JSONType[RequiredDocuments]  `json:"required_documents"`
	TeachingExperience    datatypes.JSONType[TeachingExperience] `json:"teaching_experience"`
	Specializations       datatypes.JSONType[[]string]           `json:"specializations"`
	BackgroundCheckStatus BackgroundCheckStatus                  `gorm:"type:varchar(32);not null;default:'not_started'" json:"background_check_status"`
	ReviewCycle           int                                    `gorm:"not null;default:1" json:"review_cycle"`
	CreatedAt             time.Time                              `json:"created_at"`
	UpdatedAt             time.Time                              `json:"updated_at"`
	DeletedAt             gorm.DeletedAt                         `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM.
func (Application) TableName() string {
	return "applications"
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (a *Application) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// Documents returns the supplied-document flags.
func (a *Application) Documents() RequiredDocuments {
	return a.RequiredDocuments.Data()
}

// Experience returns the teaching experience record.
func (a *Application) Experience() TeachingExperience {
	return a.TeachingExperience.Data()
}

// SpecializationList returns the applicant's specializations.
func (a *Application) SpecializationList() []string {
	return a.Specializations.Data()
}

// SetDocuments replaces the supplied-document flags.
func (a *Application) SetDocuments(d RequiredDocuments) {
	a.RequiredDocuments = datatypes.NewJSONType(d)
}

// SetExperience replaces the teaching experience after normalising it.
func (a *Application) SetExperience(e TeachingExperience) {
	e.PreviousInstitutions = cleanList(e.PreviousInstitutions, false)
	e.Description = strings.TrimSpace(e.Description)
	a.TeachingExperience = datatypes.NewJSONType(e)
}

// SetSpecializations stores a de-duplicated, trimmed specialization set.
func (a *Application) SetSpecializations(s []string) {
	a.Specializations = datatypes.NewJSONType(cleanList(s, true))
}

// cleanList trims entries and drops blanks, keeping first-seen order.
func cleanList(in []string, dedupe bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if dedupe {
			key := strings.ToLower(v)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, v)
	}
	return out
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// ApplyReview stamps a reviewer decision onto the aggregate. The caller must
// have validated the transition first.
func (a *Application) ApplyReview(to ApplicationStatus, reviewerID, notes, rejectionReason string, now time.Time) {
	a.Status = to
	a.ReviewedAt = &now
	a.ReviewedBy = &reviewerID
	a.ReviewFeedback = optionalText(notes)
	if to == StatusRejected {
		a.RejectionReason = optionalText(rejectionReason)
	} else {
		a.RejectionReason = nil
	}
}

// ApplyResubmission reopens the application for a new review cycle. The
// reviewer stamp and feedback of the previous cycle are kept.
func (a *Application) ApplyResubmission() {
	a.Status = StatusPending
	a.RejectionReason = nil
	a.ReviewCycle++
}
