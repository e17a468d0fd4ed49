package models

import "strings"

// TransitionInput carries the facts a transition precondition may inspect.
type TransitionInput struct {
	Role            ActorRole
	RejectionReason string
	Feedback        string
}

// edge describes one legal transition and who may trigger it.
type edge struct {
	trigger ActorRole
	check   func(TransitionInput) error
}

func requireRejectionReason(in TransitionInput) error {
	if strings.TrimSpace(in.RejectionReason) == "" {
		return NewValidationError("rejection reason is required")
	}
	return nil
}

func requireFeedback(in TransitionInput) error {
	if strings.TrimSpace(in.Feedback) == "" {
		return NewValidationError("feedback is required when requesting resubmission")
	}
	return nil
}

// lookupEdge is the single source of truth for the lifecycle. Adding a status
// without extending this switch leaves every edge out of it illegal.
func lookupEdge(from, to ApplicationStatus) (edge, bool) {
	switch from {
	case StatusPending, StatusUnderReview:
		switch to {
		case StatusUnderReview:
			if from == StatusPending {
				return edge{trigger: ActorReviewer}, true
			}
		case StatusApproved:
			return edge{trigger: ActorReviewer}, true
		case StatusRejected:
			return edge{trigger: ActorReviewer, check: requireRejectionReason}, true
		case StatusResubmissionRequired:
			return edge{trigger: ActorReviewer, check: requireFeedback}, true
		}
	case StatusResubmissionRequired:
		if to == StatusPending {
			return edge{trigger: ActorApplicant}, true
		}
	case StatusApproved, StatusRejected:
		// terminal
	}
	return edge{}, false
}

// IsLegalTransition reports whether from->to appears in the lifecycle table,
// ignoring preconditions.
func IsLegalTransition(from, to ApplicationStatus) bool {
	_, ok := lookupEdge(from, to)
	return ok
}

// ValidateTransition checks that from->to is a legal edge, that the actor role
// may trigger it and that its precondition holds.
func ValidateTransition(from, to ApplicationStatus, in TransitionInput) error {
	e, ok := lookupEdge(from, to)
	if !ok {
		return NewInvalidTransitionError(from, to)
	}
	if in.Role != e.trigger {
		return NewUnauthorizedError("only the " + string(e.trigger) + " may move an application from " + string(from) + " to " + string(to))
	}
	if e.check != nil {
		return e.check(in)
	}
	return nil
}
