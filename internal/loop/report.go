package loop

import (
	"encoding/json"
	"io"
	"time"

	"github.com/leanworks/mend/internal/diag"
)

// Report is the JSON summary written at the end of a session.
type Report struct {
	Session    string             `json:"session"`
	Status     Status             `json:"status"`
	Iterations int                `json:"iterations"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Failure    string             `json:"failure,omitempty"`
	Remaining  []diag.Diagnostic  `json:"remaining_diagnostics,omitempty"`
	History    []*IterationRecord `json:"history,omitempty"`
}

// NewReport summarizes a finished session.
func NewReport(session string, state *SessionState, started, finished time.Time) *Report {
	r := &Report{
		Session:    session,
		Status:     state.Status,
		Iterations: state.Iteration,
		StartedAt:  started,
		FinishedAt: finished,
		Failure:    state.FailureReason,
		History:    state.History,
	}
	if state.Final != nil {
		r.Remaining = state.Final.Diagnostics
	}
	return r
}

// Write encodes the report as indented JSON.
func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
