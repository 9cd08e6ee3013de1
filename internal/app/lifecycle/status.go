package lifecycle

import (
	"fmt"
	"strings"
)

// Status is the review state of a CP material.
type Status int

const (
	StatusUnset     Status = 0 // 미제출 (no record yet)
	StatusDraft     Status = 1 // 임시 저장
	StatusReviewing Status = 2 // 검토 중
	StatusOnline    Status = 3 // 승인 (게시됨)
	StatusRejected  Status = 4 // 반려

	numStatuses = 5
)

// Statuses lists every valid status in ascending order.
func Statuses() []Status {
	return []Status{StatusUnset, StatusDraft, StatusReviewing, StatusOnline, StatusRejected}
}

// Valid reports whether s is one of the five known states.
func (s Status) Valid() bool {
	return s >= StatusUnset && s < numStatuses
}

func (s Status) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusDraft:
		return "draft"
	case StatusReviewing:
		return "reviewing"
	case StatusOnline:
		return "online"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus accepts either the numeric code or the lower-case name.
func ParseStatus(v string) (Status, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	for _, s := range Statuses() {
		if v == s.String() || v == fmt.Sprintf("%d", int(s)) {
			return s, nil
		}
	}
	return StatusUnset, fmt.Errorf("unknown material status %q", v)
}

// IsEditable reports whether the owning provider may change fields,
// upload files or remove images while the material is in status s.
func IsEditable(s Status) bool {
	switch s {
	case StatusUnset, StatusDraft, StatusRejected:
		return true
	default:
		return false
	}
}

// Badge describes how a status is rendered by the dashboard.
type Badge struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
	Color  string `json:"color"`
}

// badges must have exactly one entry per status; the typed declaration below
// stops compiling if a status is added without a badge.
var badges = [...]Badge{
	StatusUnset:     {Status: StatusUnset, Label: "Not submitted", Color: "default"},
	StatusDraft:     {Status: StatusDraft, Label: "Draft", Color: "blue"},
	StatusReviewing: {Status: StatusReviewing, Label: "Under review", Color: "orange"},
	StatusOnline:    {Status: StatusOnline, Label: "Online", Color: "green"},
	StatusRejected:  {Status: StatusRejected, Label: "Rejected", Color: "red"},
}

var _ [numStatuses]Badge = badges

// Badge returns the display descriptor for s. Invalid values render as unknown.
func (s Status) Badge() Badge {
	if !s.Valid() {
		return Badge{Status: s, Label: "Unknown", Color: "default"}
	}
	return badges[s]
}

// Badges returns the descriptor of every status, in status order.
func Badges() []Badge {
	out := make([]Badge, len(badges))
	copy(out, badges[:])
	return out
}
