package harness

import (
	"fmt"
	"strings"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int            `json:"step"`
	Action  string         `json:"action"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome"`
}

// String renders the event as one golden-file line.
func (e TraceEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02d %s", e.Step, e.Action)
	if args := formatArgs(e.Args); args != "" {
		b.WriteString(" ")
		b.WriteString(args)
	}
	b.WriteString(" -> ")
	b.WriteString(e.Outcome)
	return b.String()
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step expectation held.
	Pass bool `json:"pass"`

	// Trace contains every step in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final summarizes the engine state after the last step.
	Final string `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(step int, action string, args map[string]any, outcome string) {
	r.Trace = append(r.Trace, TraceEvent{Step: step, Action: action, Args: args, Outcome: outcome})
}

// Render returns the trace and the final summary as golden-file text.
func (r *Result) Render() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	b.WriteString("final ")
	b.WriteString(r.Final)
	b.WriteString("\n")
	return b.String()
}
