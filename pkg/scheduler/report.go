package scheduler

import (
	"time"
)

// RunReport summarizes one scheduler batch.
// Processed always equals Succeeded + Skipped + len(Failed).
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Processed  int
	Succeeded  int
	// Skipped counts plans another run advanced first.
	Skipped int
	// Failed is listed in due-set order.
	Failed []PlanFailure
}

type PlanFailure struct {
	PlanId string
	Error  string
}

func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeSkipped
	outcomeFailed
)

// unitResult is written by exactly one worker, at the index of its plan in the due set.
type unitResult struct {
	planId  string
	outcome outcome
	err     error
}

func buildReport(startedAt time.Time, finishedAt time.Time, results []unitResult) RunReport {
	report := RunReport{
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Processed:  len(results),
		Failed:     make([]PlanFailure, 0),
	}
	for _, r := range results {
		switch r.outcome {
		case outcomeSucceeded:
			report.Succeeded++
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed = append(report.Failed, PlanFailure{PlanId: r.planId, Error: r.err.Error()})
		}
	}
	return report
}
