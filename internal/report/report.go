// Package report renders a FleetReport to its two artefacts: a
// stable-field-order JSON file, and a human-readable summary printed to
// standard output. The text layout is grounded on
// upgrader.py's _print_report.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/erayguner/wbi-fleet-upgrade/internal/domain/entity"
	"github.com/erayguner/wbi-fleet-upgrade/internal/infrastructure/console"
)

// wireConfig mirrors the run config's wire schema, with json tags fixing
// field order and name independent of the Go struct's internal layout.
type wireConfig struct {
	Operation          entity.Operation `json:"operation"`
	Project            string           `json:"project"`
	Locations          []string         `json:"locations"`
	Instance           *string          `json:"instance"`
	DryRun             bool             `json:"dryRun"`
	MaxParallel        int              `json:"maxParallel"`
	OperationTimeout   float64          `json:"operationTimeout"`
	PollInterval       float64          `json:"pollInterval"`
	HealthCheckTimeout float64          `json:"healthCheckTimeout"`
	StaggerDelay       float64          `json:"staggerDelay"`
	RollbackOnFailure  bool             `json:"rollbackOnFailure"`
}

type wireStatistics struct {
	Total       int `json:"total"`
	Eligible    int `json:"eligible"`
	UpToDate    int `json:"upToDate"`
	Started     int `json:"started"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Compensated int `json:"compensated"`
}

type wirePreCheck struct {
	Name    string              `json:"name"`
	Verdict entity.CheckVerdict `json:"verdict"`
	Message string              `json:"message"`
}

type wireResult struct {
	Instance        string              `json:"instance"`
	Location        string              `json:"location"`
	Operation       entity.Operation    `json:"operation"`
	Status          entity.ResultStatus `json:"status"`
	TargetVersion   string              `json:"targetVersion,omitempty"`
	StartedAt       *time.Time          `json:"startedAt"`
	FinishedAt      *time.Time          `json:"finishedAt"`
	DurationSeconds *float64            `json:"durationSeconds"`
	ErrorKind       entity.ErrorKind    `json:"errorKind,omitempty"`
	ErrorMessage    string              `json:"errorMessage,omitempty"`
	Compensated     bool                `json:"compensated"`
	PreChecks       []wirePreCheck      `json:"preChecks,omitempty"`
}

type wireReport struct {
	StartedAt       time.Time      `json:"startedAt"`
	FinishedAt      time.Time      `json:"finishedAt"`
	DurationSeconds float64        `json:"durationSeconds"`
	Config          wireConfig     `json:"config"`
	Statistics      wireStatistics `json:"statistics"`
	Results         []wireResult   `json:"results"`
	Message         string         `json:"message,omitempty"`
}

func toWire(r entity.FleetReport) wireReport {
	var instance *string
	if r.Config.Instance != "" {
		instance = &r.Config.Instance
	}

	results := make([]wireResult, 0, len(r.Results))
	for _, res := range r.Results {
		var checks []wirePreCheck
		for _, c := range res.PreChecks {
			checks = append(checks, wirePreCheck{Name: c.Name, Verdict: c.Verdict, Message: c.Message})
		}
		results = append(results, wireResult{
			Instance:        res.Instance,
			Location:        res.Location,
			Operation:       res.Operation,
			Status:          res.Status,
			TargetVersion:   res.TargetVersion,
			StartedAt:       res.StartedAt,
			FinishedAt:      res.FinishedAt,
			DurationSeconds: res.DurationSeconds,
			ErrorKind:       res.ErrorKind,
			ErrorMessage:    res.ErrorMessage,
			Compensated:     res.Compensated,
			PreChecks:       checks,
		})
	}

	return wireReport{
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		DurationSeconds: r.DurationSeconds,
		Config: wireConfig{
			Operation:          r.Config.Operation,
			Project:            r.Config.Project,
			Locations:          r.Config.Locations,
			Instance:           instance,
			DryRun:             r.Config.DryRun,
			MaxParallel:        r.Config.MaxParallel,
			OperationTimeout:   r.Config.OperationTimeout.Seconds(),
			PollInterval:       r.Config.PollInterval.Seconds(),
			HealthCheckTimeout: r.Config.HealthCheckTimeout.Seconds(),
			StaggerDelay:       r.Config.StaggerDelay.Seconds(),
			RollbackOnFailure:  r.Config.RollbackOnFailure,
		},
		Statistics: wireStatistics{
			Total:       r.Statistics.Total,
			Eligible:    r.Statistics.Eligible,
			UpToDate:    r.Statistics.UpToDate,
			Started:     r.Statistics.Started,
			Succeeded:   r.Statistics.Succeeded,
			Failed:      r.Statistics.Failed,
			Skipped:     r.Statistics.Skipped,
			Compensated: r.Statistics.Compensated,
		},
		Results: results,
		Message: r.Message,
	}
}

// WriteJSON marshals report to <operation>-report-<ISO8601Z>.json under dir
// and returns the full path written.
func WriteJSON(report entity.FleetReport, dir string) (string, error) {
	payload, err := json.MarshalIndent(toWire(report), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	name := fmt.Sprintf("%s-report-%s.json",
		strings.ToLower(string(report.Config.Operation)),
		report.FinishedAt.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// PrintSummary prints the human-readable timing, statistics, failures, and
// dry-run sections to standard output.
func PrintSummary(report entity.FleetReport) {
	console.Println(strings.Repeat("=", 70))
	console.Println("FLEET", string(report.Config.Operation), "REPORT")
	console.Println(strings.Repeat("=", 70))

	if report.Message != "" {
		console.Println()
		console.Println(report.Message)
	}

	console.Println()
	console.Println("TIMING SUMMARY")
	console.Println(strings.Repeat("-", 40))
	console.Printf("Start time:      %s\n", report.StartedAt.Format(time.RFC3339))
	console.Printf("End time:        %s\n", report.FinishedAt.Format(time.RFC3339))
	console.Printf("Total duration:  %s\n", formatDuration(report.DurationSeconds))

	console.Println()
	console.Println("STATISTICS")
	console.Println(strings.Repeat("-", 40))
	s := report.Statistics
	console.Printf("%-20s: %d\n", "total", s.Total)
	console.Printf("%-20s: %d\n", "eligible", s.Eligible)
	console.Printf("%-20s: %d\n", "upToDate", s.UpToDate)
	console.Printf("%-20s: %d\n", "started", s.Started)
	console.Printf("%-20s: %d\n", "succeeded", s.Succeeded)
	console.Printf("%-20s: %d\n", "failed", s.Failed)
	console.Printf("%-20s: %d\n", "skipped", s.Skipped)
	console.Printf("%-20s: %d\n", "compensated", s.Compensated)

	printFailures(report.Results)
	printDryRuns(report.Results)
}

func printFailures(results []entity.OperationResult) {
	var failed []entity.OperationResult
	for _, r := range results {
		if r.Status == entity.StatusFailed {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return
	}

	console.Println()
	console.Println("FAILURES")
	console.Println(strings.Repeat("-", 40))
	console.Printf("%-25s %-20s %-14s %s\n", "Instance", "Location", "Compensated", "Error")
	for _, r := range failed {
		errMsg := r.ErrorMessage
		if len(errMsg) > 60 {
			errMsg = errMsg[:60] + "..."
		}
		compensated := "No"
		if r.Compensated {
			compensated = "Yes"
		}
		console.Printf("%-25s %-20s %-14s %s: %s\n", r.Instance, r.Location, compensated, r.ErrorKind, errMsg)
	}
}

func printDryRuns(results []entity.OperationResult) {
	var dryRun []entity.OperationResult
	for _, r := range results {
		if r.Status == entity.StatusDryRun {
			dryRun = append(dryRun, r)
		}
	}
	if len(dryRun) == 0 {
		return
	}

	console.Println()
	console.Println("DRY-RUN CANDIDATES")
	console.Println(strings.Repeat("-", 40))
	console.Printf("%-25s %-20s %s\n", "Instance", "Location", "Target version")
	for _, r := range dryRun {
		target := r.TargetVersion
		if target == "" {
			target = "N/A"
		}
		console.Printf("%-25s %-20s %s\n", r.Instance, r.Location, target)
	}
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second))
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d.Seconds()
	if h > 0 {
		return fmt.Sprintf("%dh%dm%.0fs", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%.0fs", m, sec)
	}
	return fmt.Sprintf("%.1fs", sec)
}
