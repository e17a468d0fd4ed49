// Package validation checks inbound application fields before any write.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxExperienceYears   = 80
	MaxDescriptionLength = 4000
	MaxNotesLength       = 4000
	MaxListEntries       = 50
	MaxListEntryLength   = 200
)

var subjectIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:@-]{0,63}$`)

// ValidateSubjectID checks an external user id taken from a token or path.
func ValidateSubjectID(id string) error {
	if !subjectIDRegex.MatchString(id) {
		return fmt.Errorf("user id must be 1-64 characters of letters, digits, or _.:@-")
	}
	return nil
}

// ValidateExperience checks the teaching experience fields.
func ValidateExperience(years int, institutions []string, description string) error {
	if years < 0 {
		return fmt.Errorf("teaching experience years cannot be negative")
	}
	if years > MaxExperienceYears {
		return fmt.Errorf("teaching experience years cannot exceed %d", MaxExperienceYears)
	}
	if utf8.RuneCountInString(strings.TrimSpace(description)) > MaxDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLength)
	}
	return validateList("previous institutions", institutions)
}

// ValidateSpecializations checks the specialization list.
func ValidateSpecializations(values []string) error {
	return validateList("specializations", values)
}

// ValidateNotes checks free text attached to a review action.
func ValidateNotes(field, text string) error {
	if utf8.RuneCountInString(text) > MaxNotesLength {
		return fmt.Errorf("%s cannot exceed %d characters", field, MaxNotesLength)
	}
	return nil
}

func validateList(field string, values []string) error {
	if len(values) > MaxListEntries {
		return fmt.Errorf("%s cannot have more than %d entries", field, MaxListEntries)
	}
	for _, v := range values {
		if utf8.RuneCountInString(strings.TrimSpace(v)) > MaxListEntryLength {
			return fmt.Errorf("%s entries cannot exceed %d characters", field, MaxListEntryLength)
		}
	}
	return nil
}
