package errors

import (
	"fmt"
	"strings"
)

// Stage identifies the orchestration step a failure belongs to
type Stage string

const (
	StageLocate       Stage = "locate"        // runtime library discovery
	StageResolve      Stage = "resolve"       // host interface acquisition
	StageStartup      Stage = "startup"       // startup flag configuration
	StageAuthenticate Stage = "authenticate"  // host authentication
	StageStart        Stage = "start"         // runtime start
	StageCreateDomain Stage = "create-domain" // execution domain creation
	StageExecute      Stage = "execute"       // assembly execution
	StageUnload       Stage = "unload"        // domain unload
	StageStop         Stage = "stop"          // runtime stop
	StagePrecondition Stage = "precondition"  // host invocation contract
)

// Code is the numeric status carried by a host-protocol failure.
// Values follow the original host's convention: the high bit marks failure.
type Code uint32

const (
	CodeOK            Code = 0x00000000
	CodeNotFound      Code = 0x80070002 // file or symbol not found
	CodeBadFormat     Code = 0x8007000b // module exists but is not loadable
	CodeInvalidArg    Code = 0x80070057 // malformed request to the host
	CodeUnauthorized  Code = 0x80070005 // authentication key rejected
	CodeInvalidState  Code = 0x80131506 // call out of lifecycle order
	CodeDomainFailure Code = 0x80131600 // domain create/unload failure
	CodeExecFailure   Code = 0x80131604 // assembly execution failure
)

// Failed reports whether c is a failure status.
func (c Code) Failed() bool {
	return c&0x80000000 != 0
}

func (c Code) String() string {
	return fmt.Sprintf("0x%08x", uint32(c))
}

// Error is the structured error type used throughout the host
type Error struct {
	Cause  error
	Stage  Stage
	Code   Code
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Stage))
	b.WriteString("] ")
	b.WriteString(e.Code.String())

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Stage == t.Stage && e.Code == t.Code
	}
	return false
}

// New creates an error for a stage with an explicit status code.
func New(stage Stage, code Code, detail string, args ...any) *Error {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &Error{Stage: stage, Code: code, Detail: detail}
}

// Wrap attaches a cause to a stage failure.
func Wrap(stage Stage, code Code, cause error, detail string) *Error {
	return &Error{Stage: stage, Code: code, Detail: detail, Cause: cause}
}

// Convenience constructors for the failure families of the host

// NotFound reports a discovery failure: a file or symbol that should exist does not.
func NotFound(stage Stage, what, name string) *Error {
	return &Error{
		Stage:  stage,
		Code:   CodeNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// BadFormat reports a module that exists but cannot be loaded as one.
func BadFormat(stage Stage, path string, cause error) *Error {
	return &Error{
		Stage:  stage,
		Code:   CodeBadFormat,
		Detail: fmt.Sprintf("%s is not a loadable module", path),
		Cause:  cause,
	}
}

// InvalidState reports a host call made outside its lifecycle window.
func InvalidState(stage Stage, detail string) *Error {
	return &Error{Stage: stage, Code: CodeInvalidState, Detail: detail}
}

// Precondition reports a violated invocation contract.
func Precondition(detail string) *Error {
	return &Error{Stage: StagePrecondition, Code: CodeInvalidArg, Detail: detail}
}

// StageOf extracts the stage from err, or "" if err carries none.
func StageOf(err error) Stage {
	if e, ok := err.(*Error); ok {
		return e.Stage
	}
	return ""
}

// CodeOf extracts the status code from err. Errors without one map to
// CodeExecFailure so a numeric status is always reportable.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return CodeExecFailure
}
