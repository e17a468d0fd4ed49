package models

// ApplicationStatus defines lifecycle states for onboarding applications.
type ApplicationStatus string

const (
	// StatusPending indicates the application awaits a reviewer.
	StatusPending ApplicationStatus = "pending"
	// StatusUnderReview indicates a reviewer has opened the application for decision.
	StatusUnderReview ApplicationStatus = "under_review"
	// StatusApproved is terminal.
	StatusApproved ApplicationStatus = "approved"
	// StatusRejected is terminal.
	StatusRejected ApplicationStatus = "rejected"
	// StatusResubmissionRequired waits for the applicant to resubmit.
	StatusResubmissionRequired ApplicationStatus = "resubmission_required"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []ApplicationStatus{
	StatusPending,
	StatusUnderReview,
	StatusApproved,
	StatusRejected,
	StatusResubmissionRequired,
}

// ParseStatus returns the status named by s, if it is known.
func ParseStatus(s string) (ApplicationStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further reviewer transition is legal.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// BackgroundCheckStatus is informational and never gates transitions.
type BackgroundCheckStatus string

const (
	BackgroundCheckNotStarted BackgroundCheckStatus = "not_started"
	BackgroundCheckInProgress BackgroundCheckStatus = "in_progress"
	BackgroundCheckCompleted  BackgroundCheckStatus = "completed"
	BackgroundCheckFailed     BackgroundCheckStatus = "failed"
)

// Valid reports whether s is a known background check status.
func (s BackgroundCheckStatus) Valid() bool {
	switch s {
	case BackgroundCheckNotStarted, BackgroundCheckInProgress, BackgroundCheckCompleted, BackgroundCheckFailed:
		return true
	}
	return false
}

// ActorRole identifies who caused a transition.
type ActorRole string

const (
	ActorApplicant ActorRole = "applicant"
	ActorReviewer  ActorRole = "reviewer"
	ActorSystem    ActorRole = "system"
)
