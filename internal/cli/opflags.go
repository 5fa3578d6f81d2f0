package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/ir"
)

// opFlags are the flags that identify an operation: its calls, predecessor
// and salt. hash, schedule and execute share them so that the same flags
// always produce the same id.
type opFlags struct {
	Calls       string
	CallsFile   string
	Batch       bool
	Predecessor string
	Salt        string
	SaltLabel   string
	RandomSalt  bool
}

// opSpec is a parsed operation.
type opSpec struct {
	Calls       []ir.Call
	Batch       bool
	Predecessor ir.OperationID
	Salt        ir.Salt
}

func (f *opFlags) bind(cmd *cobra.Command, allowRandomSalt bool) {
	cmd.Flags().StringVar(&f.Calls, "calls", "", `calls as JSON, e.g. '[{"target":"state","selector":"set","args":["k","v"]}]'`)
	cmd.Flags().StringVar(&f.CallsFile, "calls-file", "", "read calls JSON from a file")
	cmd.Flags().BoolVar(&f.Batch, "batch", false, "hash as a batch even with a single call")
	cmd.Flags().StringVar(&f.Predecessor, "predecessor", "", "id of the operation that must be Done first")
	cmd.Flags().StringVar(&f.Salt, "salt", "", "salt as hex (up to 32 bytes)")
	cmd.Flags().StringVar(&f.SaltLabel, "salt-label", "", "derive the salt from a label")
	if allowRandomSalt {
		cmd.Flags().BoolVar(&f.RandomSalt, "random-salt", false, "use a random salt and print it")
	}
}

func (f *opFlags) parse() (opSpec, error) {
	var spec opSpec

	data := []byte(f.Calls)
	switch {
	case f.Calls != "" && f.CallsFile != "":
		return spec, NewExitError(ExitCommandError, "--calls and --calls-file are mutually exclusive")
	case f.CallsFile != "":
		var err error
		if data, err = os.ReadFile(f.CallsFile); err != nil {
			return spec, WrapExitError(ExitCommandError, "failed to read calls file", err)
		}
	case f.Calls == "":
		return spec, NewExitError(ExitCommandError, "one of --calls or --calls-file is required")
	}

	calls, err := ir.ParseCalls(data)
	if err != nil {
		return spec, WrapExitError(ExitCommandError, "invalid calls", err)
	}
	if len(calls) == 0 {
		return spec, NewExitError(ExitCommandError, "at least one call is required")
	}
	spec.Calls = calls
	spec.Batch = f.Batch || len(calls) > 1

	if f.Predecessor != "" {
		if spec.Predecessor, err = ir.ParseOperationID(f.Predecessor); err != nil {
			return spec, WrapExitError(ExitCommandError, "invalid predecessor", err)
		}
	}

	set := 0
	for _, on := range []bool{f.Salt != "", f.SaltLabel != "", f.RandomSalt} {
		if on {
			set++
		}
	}
	if set > 1 {
		return spec, NewExitError(ExitCommandError, "--salt, --salt-label and --random-salt are mutually exclusive")
	}
	switch {
	case f.Salt != "":
		if spec.Salt, err = ir.ParseSalt(f.Salt); err != nil {
			return spec, WrapExitError(ExitCommandError, "invalid salt", err)
		}
	case f.SaltLabel != "":
		spec.Salt = ir.SaltFromString(f.SaltLabel)
	case f.RandomSalt:
		u := uuid.New()
		spec.Salt = ir.SaltFromBytes(u[:])
	}
	return spec, nil
}

// id computes the operation id.
func (s opSpec) id() (ir.OperationID, error) {
	if s.Batch {
		return ir.HashOperationBatch(s.Calls, s.Predecessor, s.Salt)
	}
	return ir.HashOperation(s.Calls[0], s.Predecessor, s.Salt)
}

// operationResult describes one operation in command output.
type operationResult struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	Timestamp uint64 `json:"timestamp"`
	Salt      string `json:"salt,omitempty"`
}

func (r operationResult) String() string {
	s := fmt.Sprintf("%s %s", r.ID, r.State)
	if r.Timestamp > ir.DoneTimestamp {
		s += fmt.Sprintf(" ready_at=%d", r.Timestamp)
	}
	if r.Salt != "" {
		s += " salt=" + r.Salt
	}
	return s
}
