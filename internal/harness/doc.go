// Package harness runs scripted scenarios against a real timelock.
//
// Each scenario gets a fresh in-memory store, a manual clock starting at
// start_time and sequential correlation ids, so a run is fully
// deterministic and its trace can be compared against a golden file.
//
// # Scenario Format
//
//	name: basic_lifecycle
//	description: "Schedule, wait, execute"
//	min_delay: 3600
//	start_time: 1700000000
//	proposers: [alice]
//	executors: [bob]
//	operations:
//	  greet:
//	    calls:
//	      - {target: state, selector: set, args: [greeting, hello]}
//	    salt: s1
//	steps:
//	  - {action: schedule, caller: alice, op: greet, delay: 3600, expect: ok, then: Waiting}
//	  - {advance: 3600}
//	  - {action: execute, caller: bob, op: greet, expect: ok, then: Done}
//	assertions:
//	  - {type: host_state, key: greeting, equals: hello}
//
// Operations are referenced by label; the harness computes their ids,
// including predecessor ids, from the calls and salt label. A step's expect
// is "ok" or a rejection code such as NOT_READY. Any error that is not a
// rejection aborts the run.
//
// # Assertions
//
//   - operation_state: final state of a labeled operation
//   - min_delay: final min_delay
//   - host_state: a state host key equals a value, or is absent
//   - has_role: whether an account holds a role
//   - event_count: number of events of a kind, optionally for one op
//   - replay: the event log replays to the live state
package harness
