package monitor

import "strings"

// Status is a job status as reported by the remote service.
type Status string

const (
	StatusNotStarted      Status = "NotStarted"
	StatusQueued          Status = "Queued"
	StatusStarting        Status = "Starting"
	StatusPreparing       Status = "Preparing"
	StatusRunning         Status = "Running"
	StatusFinalizing      Status = "Finalizing"
	StatusProvisioning    Status = "Provisioning"
	StatusCancelRequested Status = "CancelRequested"
	StatusFailed          Status = "Failed"
	StatusCanceled        Status = "Canceled"
	StatusNotResponding   Status = "NotResponding"
	StatusCompleted       Status = "Completed"
	StatusFinished        Status = "Finished"
)

// Outcome is what a status means for the poll loop.
type Outcome int

const (
	// Continue means the job is still in progress.
	Continue Outcome = iota
	// Succeeded means the job reached an accepted terminal state.
	Succeeded
	// Failed means the job reached any other terminal state.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

var outcomes = map[Status]Outcome{
	StatusNotStarted:      Continue,
	StatusQueued:          Continue,
	StatusStarting:        Continue,
	StatusPreparing:       Continue,
	StatusRunning:         Continue,
	StatusFinalizing:      Continue,
	StatusProvisioning:    Continue,
	StatusCancelRequested: Failed,
	StatusFailed:          Failed,
	StatusCanceled:        Failed,
	StatusNotResponding:   Failed,
	StatusCompleted:       Succeeded,
	StatusFinished:        Succeeded,
}

// ParseStatus maps s onto a known status, ignoring case. Unrecognized values
// are returned unchanged.
func ParseStatus(s string) Status {
	for known := range outcomes {
		if strings.EqualFold(string(known), s) {
			return known
		}
	}
	return Status(s)
}

// Known reports whether s is one of the declared statuses.
func (s Status) Known() bool {
	_, ok := outcomes[s]
	return ok
}

// Outcome classifies s. Unknown statuses are failures.
func (s Status) Outcome() Outcome {
	if o, ok := outcomes[s]; ok {
		return o
	}
	return Failed
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s.Outcome() != Continue
}
