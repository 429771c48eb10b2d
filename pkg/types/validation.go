package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is the sentinel wrapped by all input validation failures so
// callers can map them with errors.Is.
var ErrValidation = errors.New("validation failed")

const (
	// DefaultImportance is used when neither the caller nor the annotator
	// supplies an importance score.
	DefaultImportance = 5

	// MinImportance and MaxImportance bound the 1-10 importance scale.
	MinImportance = 1
	MaxImportance = 10
)

// ValidRole reports whether r is one of the two allowed roles.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleDopple
}

// Validate checks the fields a caller controls on a new memory. The store
// performs its own structural checks; this catches malformed input before it
// reaches a transaction.
func (m *Memory) Validate() error {
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: memory text is required", ErrValidation)
	}
	if m.DoppleID == "" {
		return fmt.Errorf("%w: dopple_id is required", ErrValidation)
	}
	if m.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if !ValidRole(m.Role) {
		return fmt.Errorf("%w: role must be %q or %q, got %q", ErrValidation, RoleUser, RoleDopple, m.Role)
	}
	if m.Importance != 0 && (m.Importance < MinImportance || m.Importance > MaxImportance) {
		return fmt.Errorf("%w: importance must be between %d and %d, got %d",
			ErrValidation, MinImportance, MaxImportance, m.Importance)
	}
	return nil
}

// ClampImportance forces an annotator-produced score into the valid range.
// Zero (unset) maps to the default. Caller-supplied scores go through
// Validate instead, which rejects rather than clamps.
func ClampImportance(v int) int {
	if v == 0 {
		return DefaultImportance
	}
	if v < MinImportance {
		return MinImportance
	}
	if v > MaxImportance {
		return MaxImportance
	}
	return v
}
