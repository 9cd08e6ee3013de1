// Package lifecycle holds the CP material review state machine: which states
// exist, which actions move between them and which fields must be present
// before a save. Everything here is pure; persistence and notification are
// the caller's job.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

// Action is a request to move a material to another state.
type Action string

const (
	ActionSaveDraft    Action = "save_draft"
	ActionSubmitReview Action = "submit_review"
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
)

// ParseAction converts the wire value of a submit mode or review decision.
func ParseAction(v string) (Action, error) {
	switch a := Action(strings.TrimSpace(strings.ToLower(v))); a {
	case ActionSaveDraft, ActionSubmitReview, ActionApprove, ActionReject:
		return a, nil
	default:
		return "", fmt.Errorf("unknown material action %q", v)
	}
}

// ReviewerOnly reports whether only an administrator may perform a.
func (a Action) ReviewerOnly() bool {
	return a == ActionApprove || a == ActionReject
}

// SaveMode reports whether a is one of the provider save modes.
func (a Action) SaveMode() bool {
	return a == ActionSaveDraft || a == ActionSubmitReview
}

// Validation errors. ValidateForSave returns exactly one of these.
var (
	ErrMissingName               = errors.New("cp name is required")
	ErrMissingLicense            = errors.New("business license is required")
	ErrMissingVerificationImages = errors.New("at least one verification image is required")
	ErrMissingReviewComment      = errors.New("review comment is required when rejecting")
)

// Transition error kinds. A *TransitionError matches its kind with errors.Is.
var (
	ErrInvalidTransition = errors.New("invalid material status transition")
	ErrNotEditable       = errors.New("material is not editable in its current status")
	ErrValidationFailed  = errors.New("material validation failed")
)

// IsValidationError reports whether err is one of the field validation errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingName) ||
		errors.Is(err, ErrMissingLicense) ||
		errors.Is(err, ErrMissingVerificationImages) ||
		errors.Is(err, ErrMissingReviewComment)
}

// TransitionError explains why Transition refused an action.
type TransitionError struct {
	From   Status
	Action Action
	Kind   error // ErrInvalidTransition, ErrNotEditable or ErrValidationFailed
	Reason error // validation error when Kind is ErrValidationFailed
}

func (e *TransitionError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("%s -> %s: %v: %v", e.From, e.Action, e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s -> %s: %v", e.From, e.Action, e.Kind)
}

func (e *TransitionError) Is(target error) bool {
	return target == e.Kind
}

func (e *TransitionError) Unwrap() error {
	return e.Reason
}

// Candidate carries the fields the guards look at.
type Candidate struct {
	CpName             string
	BusinessLicense    string
	VerificationImages []string
	// ReviewComment is the reviewer's comment for the action being performed.
	// Provider actions never consult it.
	ReviewComment string
}

// ValidateForSave checks the candidate fields for a provider save in the given
// mode. Rules run in order and the first failure is returned.
func ValidateForSave(c Candidate, mode Action) error {
	if strings.TrimSpace(c.CpName) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(c.BusinessLicense) == "" {
		return ErrMissingLicense
	}
	if mode == ActionSubmitReview && !hasImage(c.VerificationImages) {
		return ErrMissingVerificationImages
	}
	return nil
}

func hasImage(images []string) bool {
	for _, img := range images {
		if strings.TrimSpace(img) != "" {
			return true
		}
	}
	return false
}

// Transition returns the status a material in current moves to when action is
// applied with the candidate fields. It never mutates anything.
//
// Provider saves (SaveDraft, SubmitReview) on Reviewing or Online fail with
// ErrNotEditable, which the API reports as 409 MATERIAL_NOT_EDITABLE; every
// other pair outside the table fails with ErrInvalidTransition.
func Transition(current Status, action Action, c Candidate) (Status, error) {
	fail := func(kind, reason error) (Status, error) {
		return current, &TransitionError{From: current, Action: action, Kind: kind, Reason: reason}
	}

	if !current.Valid() {
		return fail(ErrInvalidTransition, nil)
	}

	switch action {
	case ActionSaveDraft, ActionSubmitReview:
		if !IsEditable(current) {
			return fail(ErrNotEditable, nil)
		}
		if err := ValidateForSave(c, action); err != nil {
			return fail(ErrValidationFailed, err)
		}
		if action == ActionSaveDraft {
			return StatusDraft, nil
		}
		return StatusReviewing, nil

	case ActionApprove:
		if current != StatusReviewing {
			return fail(ErrInvalidTransition, nil)
		}
		return StatusOnline, nil

	case ActionReject:
		if current != StatusReviewing {
			return fail(ErrInvalidTransition, nil)
		}
		if strings.TrimSpace(c.ReviewComment) == "" {
			return fail(ErrValidationFailed, ErrMissingReviewComment)
		}
		return StatusRejected, nil

	default:
		return fail(ErrInvalidTransition, nil)
	}
}
