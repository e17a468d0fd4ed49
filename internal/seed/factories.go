// Package seed creates demo applications for development and tests. Every
// record goes through the workflow services so audit history stays consistent.
package seed

import (
	"fmt"

	"reviewdesk/internal/models"
	"reviewdesk/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

var subjects = []string{
	"Mathematics", "Physics", "Chemistry", "Biology", "English Literature",
	"History", "Geography", "Computer Science", "Music", "Art",
	"Physical Education", "Spanish", "French", "Economics", "Civics",
}

// Factory builds randomised submissions. A fixed seed gives repeatable data.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a Factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// ApplicantID returns a fresh external user id.
func (f *Factory) ApplicantID() string {
	return "applicant-" + f.faker.UUID()
}

// Documents marks each artifact present with even odds.
func (f *Factory) Documents() models.RequiredDocuments {
	return models.RequiredDocuments{
		Resume:         f.faker.Bool(),
		Degree:         f.faker.Bool(),
		Certification:  f.faker.Bool(),
		Identification: f.faker.Bool(),
	}
}

// Experience returns 0..25 years with a matching list of schools.
func (f *Factory) Experience() models.TeachingExperience {
	years := f.faker.Number(0, 25)
	var schools []string
	for i := 0; i < years/5; i++ {
		schools = append(schools, fmt.Sprintf("%s %s", f.faker.LastName(), f.faker.RandomString([]string{"High School", "Middle School", "Academy", "Elementary"})))
	}
	exp := models.TeachingExperience{Years: years, PreviousInstitutions: schools}
	if years > 0 {
		exp.Description = f.faker.Sentence(12)
	}
	return exp
}

// Specializations picks up to three subjects.
func (f *Factory) Specializations() []string {
	n := f.faker.Number(0, 3)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.faker.RandomString(subjects))
	}
	return out
}

// Submission builds a complete submission for a new applicant.
func (f *Factory) Submission() service.SubmitInput {
	return service.SubmitInput{
		ApplicantID:     f.ApplicantID(),
		Documents:       f.Documents(),
		Experience:      f.Experience(),
		Specializations: f.Specializations(),
	}
}

// Feedback is reviewer prose for a resubmission request.
func (f *Factory) Feedback() string {
	return f.faker.RandomString([]string{
		"Please upload your degree certificate.",
		"Your teaching certification has expired.",
		"Add at least one reference from a previous school.",
		"Identification document is unreadable.",
	})
}

// RejectionReason is reviewer prose for a rejection.
func (f *Factory) RejectionReason() string {
	return f.faker.RandomString([]string{
		"Certification not recognised in this region.",
		"Insufficient classroom experience.",
		"Background check failed.",
	})
}
