package harness

// OutcomeOK is the trace outcome of a step that succeeded.
const OutcomeOK = "ok"

// ActionAdvance is the trace action recorded for clock-only steps.
const ActionAdvance = "advance"

// TraceEvent records one executed step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Action  string `json:"action"`
	Caller  string `json:"caller,omitempty"`
	Op      string `json:"op,omitempty"`
	Role    string `json:"role,omitempty"`
	Account string `json:"account,omitempty"`
	// Outcome is "ok" or the rejection code.
	Outcome string `json:"outcome"`
	// State is the operation's state after the step, when the step names one.
	State string `json:"state,omitempty"`
	Time  uint64 `json:"time"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors is empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final state of the timelock after the last step.
	MinDelay  uint64            `json:"min_delay"`
	States    map[string]string `json:"states"`
	HostState map[string]string `json:"host_state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		States:    make(map[string]string),
		HostState: make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
