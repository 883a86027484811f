package matching

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/uniportal/internship-portal/internal/apperr"
)

const (
	MaxNotesBytes = 8192
	MaxNotesChars = 4000
)

// ValidateNotes checks free-text notes attached to a match. Empty notes are
// allowed and clear the stored value.
func ValidateNotes(notes string) error {
	var problem string
	switch {
	case !utf8.ValidString(notes):
		problem = "contains invalid UTF-8"
	case len(notes) > MaxNotesBytes:
		problem = fmt.Sprintf("exceeds %d byte limit", MaxNotesBytes)
	case utf8.RuneCountInString(notes) > MaxNotesChars:
		problem = fmt.Sprintf("exceeds %d character limit", MaxNotesChars)
	case strings.ContainsRune(notes, 0):
		problem = "contains a NUL byte"
	default:
		return nil
	}
	return apperr.Validation("invalid notes", map[string]string{"notes": problem})
}
