package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/timelock/internal/ir"
)

// ErrorCode categorizes errors returned by Timelock entry points.
type ErrorCode string

const (
	// CodeUnauthorized means the caller lacks the role an entry point needs.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeAlreadyScheduled means schedule hit an id that is not Unset.
	CodeAlreadyScheduled ErrorCode = "ALREADY_SCHEDULED"

	// CodeInsufficientDelay means the requested delay is below min_delay.
	CodeInsufficientDelay ErrorCode = "INSUFFICIENT_DELAY"

	// CodeOperationNotCancelable means cancel hit an Unset or Done id.
	CodeOperationNotCancelable ErrorCode = "OPERATION_NOT_CANCELABLE"

	// CodeNotReady means execute hit an id that is not Ready.
	CodeNotReady ErrorCode = "NOT_READY"

	// CodePredecessorNotDone means the predecessor has not executed.
	CodePredecessorNotDone ErrorCode = "PREDECESSOR_NOT_DONE"

	// CodeCallFailed means a dispatched call failed and execute rolled back.
	CodeCallFailed ErrorCode = "CALL_FAILED"

	// CodeUnauthorizedCaller means update_delay ran outside a self-call.
	CodeUnauthorizedCaller ErrorCode = "UNAUTHORIZED_CALLER"

	// CodeAlreadyInitialized means Initialize ran twice.
	CodeAlreadyInitialized ErrorCode = "ALREADY_INITIALIZED"

	// CodeNotInitialized means a state-changing entry point ran before
	// Initialize.
	CodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// CodeDelayOverflow means a delay or ready timestamp is not storable.
	CodeDelayOverflow ErrorCode = "DELAY_OVERFLOW"

	// CodeEmptyBatch means a batch entry point got zero calls.
	CodeEmptyBatch ErrorCode = "EMPTY_BATCH"

	// CodeInvalidCall means a call failed structural validation.
	CodeInvalidCall ErrorCode = "INVALID_CALL"
)

// TimelockError is returned for every rejected entry point call.
//
// Fields other than Code and Message are set only when relevant.
// errors.Is matches any two TimelockErrors with the same Code, so callers
// compare against the Err* sentinels below.
type TimelockError struct {
	Code    ErrorCode
	Message string

	// OperationID is the operation the call was about, if any.
	OperationID ir.OperationID

	// Role and Account identify a failed role check.
	Role    ir.Role
	Account ir.Principal

	// CallIndex is the failing call of a batch for CodeCallFailed, else -1.
	CallIndex int

	// Err is the underlying cause (dispatch error, role gate error).
	Err error
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized           = &TimelockError{Code: CodeUnauthorized, Message: "caller lacks required role", CallIndex: -1}
	ErrAlreadyScheduled       = &TimelockError{Code: CodeAlreadyScheduled, Message: "operation already scheduled", CallIndex: -1}
	ErrInsufficientDelay      = &TimelockError{Code: CodeInsufficientDelay, Message: "insufficient delay", CallIndex: -1}
	ErrOperationNotCancelable = &TimelockError{Code: CodeOperationNotCancelable, Message: "operation cannot be cancelled", CallIndex: -1}
	ErrNotReady               = &TimelockError{Code: CodeNotReady, Message: "operation not ready", CallIndex: -1}
	ErrPredecessorNotDone     = &TimelockError{Code: CodePredecessorNotDone, Message: "predecessor not done", CallIndex: -1}
	ErrCallFailed             = &TimelockError{Code: CodeCallFailed, Message: "call failed", CallIndex: -1}
	ErrUnauthorizedCaller     = &TimelockError{Code: CodeUnauthorizedCaller, Message: "caller is not the timelock", CallIndex: -1}
	ErrAlreadyInitialized     = &TimelockError{Code: CodeAlreadyInitialized, Message: "timelock already initialized", CallIndex: -1}
	ErrNotInitialized         = &TimelockError{Code: CodeNotInitialized, Message: "timelock not initialized", CallIndex: -1}
	ErrDelayOverflow          = &TimelockError{Code: CodeDelayOverflow, Message: "delay out of range", CallIndex: -1}
	ErrEmptyBatch             = &TimelockError{Code: CodeEmptyBatch, Message: "batch has no calls", CallIndex: -1}
	ErrInvalidCall            = &TimelockError{Code: CodeInvalidCall, Message: "invalid call", CallIndex: -1}
)

// Error implements the error interface.
func (e *TimelockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var details []string
	if !e.OperationID.IsZero() {
		details = append(details, "op="+e.OperationID.String())
	}
	if e.Role != "" {
		details = append(details, "role="+string(e.Role))
	}
	if e.Account != "" {
		details = append(details, "account="+string(e.Account))
	}
	if e.CallIndex >= 0 {
		details = append(details, fmt.Sprintf("call=%d", e.CallIndex))
	}
	if len(details) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(details, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *TimelockError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a TimelockError with the same code.
func (e *TimelockError) Is(target error) bool {
	t, ok := target.(*TimelockError)
	return ok && t.Code == e.Code
}

// CodeOf returns the code of the first TimelockError in err's chain, or ""
// if there is none.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var te *TimelockError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// IsRejection returns true if err is a TimelockError, i.e. the entry point
// refused the request rather than failing on storage.
func IsRejection(err error) bool {
	return CodeOf(err) != ""
}

func newError(code ErrorCode, format string, args ...any) *TimelockError {
	return &TimelockError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		CallIndex: -1,
	}
}

func unauthorized(role ir.Role, account ir.Principal) *TimelockError {
	e := newError(CodeUnauthorized, "caller lacks %s", role)
	e.Role = role
	e.Account = account
	return e
}

func withOperation(e *TimelockError, id ir.OperationID) *TimelockError {
	e.OperationID = id
	return e
}
