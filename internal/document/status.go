package document

import (
	"errors"
	"fmt"
)

// Status is the lifecycle tag of a Record. It is the only thing that decides
// which stage may act on a record.
type Status string

const (
	StatusRead           Status = "read"
	StatusOptimized      Status = "optimized"
	StatusEnhanced       Status = "enhanced"
	StatusReviewed       Status = "reviewed"
	StatusPrivacyChecked Status = "privacy_checked"
	StatusFormatChecked  Status = "format_checked"
	StatusPublished      Status = "published"

	StatusReadFailed         Status = "read_failed"
	StatusOptimizationFailed Status = "optimization_failed"
	StatusEnhancementFailed  Status = "enhancement_failed"
	StatusReviewFailed       Status = "review_failed"
	StatusPrivacyCheckFailed Status = "privacy_check_failed"
	StatusFormatCheckFailed  Status = "format_check_failed"
	StatusPublishFailed      Status = "publish_failed"
)

// ErrTransition is returned when a status change would move a record
// backwards or out of a failed state.
var ErrTransition = errors.New("invalid status transition")

var statusRank = map[Status]int{
	StatusRead:           1,
	StatusOptimized:      2,
	StatusEnhanced:       3,
	StatusReviewed:       4,
	StatusPrivacyChecked: 5,
	StatusFormatChecked:  6,
	StatusPublished:      7,

	StatusReadFailed:         1,
	StatusOptimizationFailed: 2,
	StatusEnhancementFailed:  3,
	StatusReviewFailed:       4,
	StatusPrivacyCheckFailed: 5,
	StatusFormatCheckFailed:  6,
	StatusPublishFailed:      7,
}

var failureOf = map[Status]Status{
	StatusRead:           StatusReadFailed,
	StatusOptimized:      StatusOptimizationFailed,
	StatusEnhanced:       StatusEnhancementFailed,
	StatusReviewed:       StatusReviewFailed,
	StatusPrivacyChecked: StatusPrivacyCheckFailed,
	StatusFormatChecked:  StatusFormatCheckFailed,
	StatusPublished:      StatusPublishFailed,
}

// Statuses returns the success statuses in pipeline order.
func Statuses() []Status {
	return []Status{
		StatusRead, StatusOptimized, StatusEnhanced, StatusReviewed,
		StatusPrivacyChecked, StatusFormatChecked, StatusPublished,
	}
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown status: %q", s)
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank is the position of s in the pipeline, 1 for read through 7 for
// published. A failure status has the rank of the stage that produced it.
func (s Status) Rank() int { return statusRank[s] }

// Failed reports whether s is a terminal failure status.
func (s Status) Failed() bool {
	for _, f := range failureOf {
		if f == s {
			return true
		}
	}
	return false
}

// Failure returns the failure variant for a success status.
func (s Status) Failure() Status {
	if f, ok := failureOf[s]; ok {
		return f
	}
	return s
}

// PublishEligible reports whether the publisher may act on a record in s.
func (s Status) PublishEligible() bool {
	switch s {
	case StatusEnhanced, StatusReviewed, StatusPrivacyChecked, StatusFormatChecked:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown status: %q", string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names are
// rejected so a corrupt checkpoint cannot smuggle in an unchecked state.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}
