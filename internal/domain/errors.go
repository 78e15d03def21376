package domain

import (
	"fmt"

	"github.com/veratrail/veratrail"
)

// WorkflowError is the taxonomy surfaced to callers. Two WorkflowErrors match
// under errors.Is when their codes are equal, so sentinels below can be used
// as targets while wrapped instances carry a specific reason.
type WorkflowError struct {
	Code   veratrail.ErrorCode
	Reason string
}

func (e WorkflowError) Error() string {
	if e.Reason == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Is enables errors.Is matching by code.
func (e WorkflowError) Is(target error) bool {
	if t, ok := target.(WorkflowError); ok {
		return t.Code == e.Code
	}
	if t, ok := target.(*WorkflowError); ok {
		return t.Code == e.Code
	}
	return false
}

var (
	ErrUnauthorized         = WorkflowError{Code: veratrail.CodeUnauthorized}
	ErrInvalidState         = WorkflowError{Code: veratrail.CodeInvalidState}
	ErrTerminalState        = WorkflowError{Code: veratrail.CodeTerminalState}
	ErrStageIncomplete      = WorkflowError{Code: veratrail.CodeStageIncomplete}
	ErrReasonTooShort       = WorkflowError{Code: veratrail.CodeReasonTooShort}
	ErrConfirmationRequired = WorkflowError{Code: veratrail.CodeConfirmationRequired}
	ErrOutOfOrder           = WorkflowError{Code: veratrail.CodeOutOfOrder}
	ErrConflict             = WorkflowError{Code: veratrail.CodeConflict}
	ErrTimeout              = WorkflowError{Code: veratrail.CodeTimeout}
	ErrNotFound             = WorkflowError{Code: veratrail.CodeNotFound}
	ErrBadRequest           = WorkflowError{Code: veratrail.CodeBadRequest}
)

// Errf builds a WorkflowError carrying a formatted reason.
func Errf(code veratrail.ErrorCode, format string, args ...any) WorkflowError {
	return WorkflowError{Code: code, Reason: fmt.Sprintf(format, args...)}
}
