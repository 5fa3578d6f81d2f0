package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
)

// DefaultStartTime is the clock value a scenario starts at when start_time
// is omitted.
const DefaultStartTime uint64 = 1_700_000_000

// Scenario is a scripted run against a fresh timelock.
type Scenario struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Self        string               `yaml:"self,omitempty"`
	MinDelay    uint64               `yaml:"min_delay"`
	StartTime   uint64               `yaml:"start_time,omitempty"`
	Proposers   []string             `yaml:"proposers"`
	Executors   []string             `yaml:"executors"`
	Admin       string               `yaml:"admin,omitempty"`
	Operations  map[string]Operation `yaml:"operations"`
	Steps       []Step               `yaml:"steps"`
	Assertions  []Assertion          `yaml:"assertions"`
}

// Operation is a labeled operation definition. Steps refer to it by label so
// the scenario never spells out content-addressed ids.
type Operation struct {
	Calls       []CallSpec `yaml:"calls"`
	Batch       bool       `yaml:"batch,omitempty"`
	Predecessor string     `yaml:"predecessor,omitempty"`
	Salt        string     `yaml:"salt,omitempty"`
}

// CallSpec is one call of an operation. Args are converted with
// ir.ToIRValue, so floats and nulls are rejected.
type CallSpec struct {
	Target   string `yaml:"target"`
	Selector string `yaml:"selector"`
	Args     []any  `yaml:"args,omitempty"`
}

// Step is a single scenario step. A step either moves the clock (At or
// Advance) or performs an action; both may be combined, in which case the
// clock moves first.
type Step struct {
	At      uint64 `yaml:"at,omitempty"`
	Advance uint64 `yaml:"advance,omitempty"`

	Action  string  `yaml:"action,omitempty"`
	Caller  string  `yaml:"caller,omitempty"`
	Op      string  `yaml:"op,omitempty"`
	Delay   *uint64 `yaml:"delay,omitempty"`
	Role    string  `yaml:"role,omitempty"`
	Account string  `yaml:"account,omitempty"`

	// Expect is "ok" or an error code. Empty means the outcome is recorded
	// but not checked.
	Expect string `yaml:"expect,omitempty"`
	// Then is the operation state expected after the step.
	Then string `yaml:"then,omitempty"`
}

// Assertion is a check on the final state of a run.
type Assertion struct {
	Type string `yaml:"type"`

	// operation_state
	Op    string `yaml:"op,omitempty"`
	State string `yaml:"state,omitempty"`

	// min_delay
	Value *uint64 `yaml:"value,omitempty"`

	// host_state
	Key    string `yaml:"key,omitempty"`
	Equals string `yaml:"equals,omitempty"`
	Absent bool   `yaml:"absent,omitempty"`

	// has_role
	Role    string `yaml:"role,omitempty"`
	Account string `yaml:"account,omitempty"`
	Holds   *bool  `yaml:"holds,omitempty"`

	// event_count
	Kind  string `yaml:"kind,omitempty"`
	Count *int   `yaml:"count,omitempty"`
}

// Step actions.
const (
	ActionSchedule     = "schedule"
	ActionCancel       = "cancel"
	ActionExecute      = "execute"
	ActionUpdateDelay  = "update_delay"
	ActionGrantRole    = "grant_role"
	ActionRevokeRole   = "revoke_role"
	ActionRenounceRole = "renounce_role"
)

// Assertion types.
const (
	AssertOperationState = "operation_state"
	AssertMinDelay       = "min_delay"
	AssertHostState      = "host_state"
	AssertHasRole        = "has_role"
	AssertEventCount     = "event_count"
	AssertReplay         = "replay"
)

var validActions = map[string]bool{
	ActionSchedule:     true,
	ActionCancel:       true,
	ActionExecute:      true,
	ActionUpdateDelay:  true,
	ActionGrantRole:    true,
	ActionRevokeRole:   true,
	ActionRenounceRole: true,
}

var validAssertions = map[string]bool{
	AssertOperationState: true,
	AssertMinDelay:       true,
	AssertHostState:      true,
	AssertHasRole:        true,
	AssertEventCount:     true,
	AssertReplay:         true,
}

var validCodes = map[string]bool{
	OutcomeOK:                                 true,
	string(engine.CodeUnauthorized):           true,
	string(engine.CodeAlreadyScheduled):       true,
	string(engine.CodeInsufficientDelay):      true,
	string(engine.CodeOperationNotCancelable): true,
	string(engine.CodeNotReady):               true,
	string(engine.CodePredecessorNotDone):     true,
	string(engine.CodeCallFailed):             true,
	string(engine.CodeUnauthorizedCaller):     true,
	string(engine.CodeAlreadyInitialized):     true,
	string(engine.CodeNotInitialized):         true,
	string(engine.CodeDelayOverflow):          true,
	string(engine.CodeEmptyBatch):             true,
	string(engine.CodeInvalidCall):            true,
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, err
	}
	if s.StartTime == 0 {
		s.StartTime = DefaultStartTime
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("scenario %s: description is required", s.Name)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: at least one step is required", s.Name)
	}

	for label, op := range s.Operations {
		if len(op.Calls) == 0 {
			return fmt.Errorf("scenario %s: operation %q has no calls", s.Name, label)
		}
		if op.Predecessor != "" {
			if _, ok := s.Operations[op.Predecessor]; !ok {
				return fmt.Errorf("scenario %s: operation %q: unknown predecessor %q", s.Name, label, op.Predecessor)
			}
			if op.Predecessor == label {
				return fmt.Errorf("scenario %s: operation %q is its own predecessor", s.Name, label)
			}
		}
		if !op.Batch && len(op.Calls) > 1 {
			return fmt.Errorf("scenario %s: operation %q has %d calls but is not a batch", s.Name, label, len(op.Calls))
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(s, step); err != nil {
			return fmt.Errorf("scenario %s: step %d: %w", s.Name, i+1, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(s, a); err != nil {
			return fmt.Errorf("scenario %s: assertion %d: %w", s.Name, i+1, err)
		}
	}
	return nil
}

func validateStep(s *Scenario, step Step) error {
	if step.At != 0 && step.Advance != 0 {
		return fmt.Errorf("at and advance are mutually exclusive")
	}
	if step.Action == "" {
		if step.At == 0 && step.Advance == 0 {
			return fmt.Errorf("step has neither an action nor a clock move")
		}
		if step.Expect != "" || step.Then != "" {
			return fmt.Errorf("clock-only step cannot carry expect or then")
		}
		return nil
	}
	if !validActions[step.Action] {
		return fmt.Errorf("unknown action %q", step.Action)
	}
	if step.Expect != "" && !validCodes[step.Expect] {
		return fmt.Errorf("unknown expected outcome %q", step.Expect)
	}
	if step.Then != "" {
		if _, err := ir.ParseOperationState(step.Then); err != nil {
			return err
		}
		if step.Op == "" {
			return fmt.Errorf("then requires op")
		}
	}

	switch step.Action {
	case ActionSchedule, ActionCancel, ActionExecute:
		if step.Caller == "" {
			return fmt.Errorf("%s requires caller", step.Action)
		}
		if _, ok := s.Operations[step.Op]; !ok {
			return fmt.Errorf("%s: unknown operation %q", step.Action, step.Op)
		}
		if step.Action == ActionSchedule && step.Delay == nil {
			return fmt.Errorf("schedule requires delay")
		}
	case ActionUpdateDelay:
		if step.Delay == nil {
			return fmt.Errorf("update_delay requires delay")
		}
	case ActionGrantRole, ActionRevokeRole, ActionRenounceRole:
		if step.Caller == "" || step.Account == "" {
			return fmt.Errorf("%s requires caller and account", step.Action)
		}
		if _, err := ir.ParseRole(step.Role); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(s *Scenario, a Assertion) error {
	if !validAssertions[a.Type] {
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	switch a.Type {
	case AssertOperationState:
		if _, ok := s.Operations[a.Op]; !ok {
			return fmt.Errorf("operation_state: unknown operation %q", a.Op)
		}
		if _, err := ir.ParseOperationState(a.State); err != nil {
			return err
		}
	case AssertMinDelay:
		if a.Value == nil {
			return fmt.Errorf("min_delay requires value")
		}
	case AssertHostState:
		if a.Key == "" {
			return fmt.Errorf("host_state requires key")
		}
		if a.Absent && a.Equals != "" {
			return fmt.Errorf("host_state: absent and equals are mutually exclusive")
		}
	case AssertHasRole:
		if _, err := ir.ParseRole(a.Role); err != nil {
			return err
		}
		if a.Account == "" || a.Holds == nil {
			return fmt.Errorf("has_role requires account and holds")
		}
	case AssertEventCount:
		if a.Kind == "" || a.Count == nil {
			return fmt.Errorf("event_count requires kind and count")
		}
		if strings.TrimSpace(a.Kind) != a.Kind {
			return fmt.Errorf("event_count: malformed kind %q", a.Kind)
		}
	}
	return nil
}

// calls converts the operation's call specs.
func (op Operation) calls() ([]ir.Call, error) {
	out := make([]ir.Call, len(op.Calls))
	for i, c := range op.Calls {
		args := make([]ir.IRValue, len(c.Args))
		for j, raw := range c.Args {
			v, err := ir.ToIRValue(raw)
			if err != nil {
				return nil, fmt.Errorf("call %d arg %d: %w", i, j, err)
			}
			args[j] = v
		}
		out[i] = ir.NewCall(ir.Principal(c.Target), c.Selector, args...)
	}
	return out, nil
}
