package daemonrun

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"courier/internal/dispatch"
	"courier/internal/fileutil"
)

// Status is the health file the daemon rewrites after every cycle.
type Status struct {
	PID        int          `json:"pid"`
	StartedAt  time.Time    `json:"started_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Interval   string       `json:"interval"`
	ConfigPath string       `json:"config_path,omitempty"`
	LogPath    string       `json:"log_path,omitempty"`
	Ledger     string       `json:"ledger,omitempty"`
	Folder     string       `json:"folder,omitempty"`
	Watching   bool         `json:"watching"`
	LastCycle  *CycleStatus `json:"last_cycle,omitempty"`
}

// CycleStatus is the persisted form of a dispatch.CycleReport.
type CycleStatus struct {
	ID                  string    `json:"id"`
	StartedAt           time.Time `json:"started_at"`
	FinishedAt          time.Time `json:"finished_at"`
	Outcome             string    `json:"outcome"`
	Summary             string    `json:"summary"`
	WarehousesAttempted int       `json:"warehouses_attempted"`
	WarehousesSucceeded int       `json:"warehouses_succeeded"`
	FilesSent           int       `json:"files_sent"`
	FailedWarehouses    []string  `json:"failed_warehouses,omitempty"`
	Error               string    `json:"error,omitempty"`
}

// NewCycleStatus converts a cycle report for the status file.
func NewCycleStatus(report dispatch.CycleReport) *CycleStatus {
	status := &CycleStatus{
		ID:                  report.ID,
		StartedAt:           report.StartedAt,
		FinishedAt:          report.FinishedAt,
		Outcome:             string(report.Outcome),
		Summary:             report.Summary(),
		WarehousesAttempted: report.WarehousesAttempted,
		WarehousesSucceeded: report.WarehousesSucceeded,
		FilesSent:           report.FilesSent,
	}
	for _, failure := range report.Failures {
		status.FailedWarehouses = append(status.FailedWarehouses, failure.Code)
	}
	if report.Err != nil {
		status.Error = report.Err.Error()
	}
	return status
}

// WriteStatus replaces the status file atomically.
func WriteStatus(path string, status Status) error {
	if err := fileutil.WriteJSONAtomic(path, status, 0o644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}
	return nil
}

// ReadStatus loads the status file written by a running daemon.
func ReadStatus(path string) (Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Status{}, err
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return Status{}, fmt.Errorf("parse status file %s: %w", path, err)
	}
	return status, nil
}
