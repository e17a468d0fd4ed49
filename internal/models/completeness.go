package models

import "math"

// Completeness signal names, reported back to applicants when missing.
const (
	SignalResume             = "resume"
	SignalDegree             = "degree"
	SignalCertification      = "certification"
	SignalIdentification     = "identification"
	SignalTeachingExperience = "teaching_experience"
	SignalSpecializations    = "specializations"
)

type completenessSignal struct {
	name      string
	satisfied func(*Application) bool
}

// completenessSignals is the fixed checklist. Each entry carries equal weight.
var completenessSignals = []completenessSignal{
	{SignalResume, func(a *Application) bool { return a.Documents().Resume }},
	{SignalDegree, func(a *Application) bool { return a.Documents().Degree }},
	{SignalCertification, func(a *Application) bool { return a.Documents().Certification }},
	{SignalIdentification, func(a *Application) bool { return a.Documents().Identification }},
	{SignalTeachingExperience, func(a *Application) bool { return a.Experience().Years > 0 }},
	{SignalSpecializations, func(a *Application) bool { return len(a.SpecializationList()) > 0 }},
}

// ComputeCompleteness scores the application 0..100 over the checklist.
func ComputeCompleteness(app *Application) int {
	return scoreSignals(app, completenessSignals)
}

func scoreSignals(app *Application, signals []completenessSignal) int {
	if app == nil || len(signals) == 0 {
		return 0
	}
	satisfied := 0
	for _, s := range signals {
		if s.satisfied(app) {
			satisfied++
		}
	}
	return int(math.Round(100 * float64(satisfied) / float64(len(signals))))
}

// MissingSignals lists checklist items the applicant has not yet satisfied.
func MissingSignals(app *Application) []string {
	missing := make([]string, 0, len(completenessSignals))
	if app == nil {
		for _, s := range completenessSignals {
			missing = append(missing, s.name)
		}
		return missing
	}
	for _, s := range completenessSignals {
		if !s.satisfied(app) {
			missing = append(missing, s.name)
		}
	}
	return missing
}
