package monitor

import (
	"errors"
	"fmt"
	"time"
)

// ErrJobUnsuccessful matches every *JobError.
var ErrJobUnsuccessful = errors.New("job did not complete successfully")

// Kind tells apart the ways a job can end without success.
type Kind string

const (
	KindFailed        Kind = "failed"
	KindCanceled      Kind = "canceled"
	KindNotResponding Kind = "not_responding"
	KindTimedOut      Kind = "timed_out"
	KindUnknown       Kind = "unknown_status"
)

// JobError is returned when polling ends in anything but success.
type JobError struct {
	Job     string
	Status  Status
	Kind    Kind
	Elapsed time.Duration
}

func (e *JobError) Error() string {
	if e.Kind == KindTimedOut {
		return fmt.Sprintf("job %s did not finish within %s (last status %s)", e.Job, e.Elapsed, e.Status)
	}
	return fmt.Sprintf("job %s did not complete successfully: %s (status %s)", e.Job, e.Kind, e.Status)
}

// Is makes errors.Is(err, ErrJobUnsuccessful) true for any *JobError.
func (e *JobError) Is(target error) bool {
	return target == ErrJobUnsuccessful
}

// kindOf maps a failed terminal status to its kind.
func kindOf(s Status) Kind {
	switch s {
	case StatusFailed:
		return KindFailed
	case StatusCanceled, StatusCancelRequested:
		return KindCanceled
	case StatusNotResponding:
		return KindNotResponding
	default:
		return KindUnknown
	}
}
