package dispatch

import (
	"fmt"
	"time"
)

// Outcome names the state a cycle ended in.
type Outcome string

const (
	OutcomeCompleted            Outcome = "completed"
	OutcomeSkippedWeekend       Outcome = "skipped_weekend"
	OutcomeSkippedSchedule      Outcome = "skipped_schedule"
	OutcomeNoCandidates         Outcome = "no_candidates"
	OutcomeNoNewFiles           Outcome = "no_new_files"
	OutcomeDirectoryUnavailable Outcome = "directory_unavailable"
	OutcomeTransportUnavailable Outcome = "transport_unavailable"
	OutcomeInternalError        Outcome = "internal_error"
)

// Step identifies a stage of the cycle state machine.
type Step string

const (
	StepWeekendCheck   Step = "weekend_check"
	StepLoadConfig     Step = "load_config"
	StepResolveTargets Step = "resolve_targets"
	StepScan           Step = "scan"
	StepDiff           Step = "diff"
	StepConnect        Step = "connect"
	StepSendBatches    Step = "send_batches"
	StepCommit         Step = "commit"
)

// StepError tags an error with the step that produced it.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return string(e.Step) + " failed"
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// BatchFailure describes one warehouse batch that was not delivered.
type BatchFailure struct {
	Code      string
	Recipient string
	Files     []string
	Err       error
}

// CycleReport summarizes one cycle.
type CycleReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    Outcome
	// Folder is the folder scanned in this cycle, empty if the cycle ended
	// before the warehouse snapshot was read.
	Folder string

	WarehousesAttempted int
	WarehousesSucceeded int
	FilesSent           int
	CandidatesFound     int
	NewFiles            int

	Failures    []BatchFailure
	LedgerSaved bool
	// Err carries the error that ended the cycle or failed the commit.
	Err error
}

// Duration is the wall time the cycle took.
func (r CycleReport) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary is a one-line description suitable for status output.
func (r CycleReport) Summary() string {
	switch r.Outcome {
	case OutcomeCompleted:
		return fmt.Sprintf("sent %d file(s), %d/%d warehouse(s) succeeded",
			r.FilesSent, r.WarehousesSucceeded, r.WarehousesAttempted)
	case OutcomeNoCandidates:
		return "no matching report files"
	case OutcomeNoNewFiles:
		return fmt.Sprintf("%d candidate file(s), all already sent", r.CandidatesFound)
	case OutcomeSkippedWeekend:
		return "weekend, nothing sent"
	case OutcomeSkippedSchedule:
		return "before scheduled send time"
	default:
		if r.Err != nil {
			return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
		}
		return string(r.Outcome)
	}
}
