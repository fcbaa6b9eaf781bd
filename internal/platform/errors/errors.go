package errors

import (
	stderrors "errors"
	"maps"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain of every arena status.
const Domain = "github.com/louisbranch/arena"

// Error is a coded failure. Message is for logs; users see the localized
// text for Code instead.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so callers can test
// errors.Is(err, errors.New(CodeNotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New returns an error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap codes cause, keeping its text as the message.
func Wrap(code Code, cause error) *Error {
	e := &Error{Code: code, Cause: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// With returns a copy of e carrying one more metadata entry. Empty values
// are skipped.
func (e *Error) With(key, value string) *Error {
	if value == "" {
		return e
	}
	out := *e
	out.Metadata = maps.Clone(e.Metadata)
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	out.Metadata[key] = value
	return &out
}

// ToGRPCStatus builds a status whose message is the internal message, with
// an ErrorInfo for machines and a LocalizedMessage for people.
func (e *Error) ToGRPCStatus(locale, userMessage string) *status.Status {
	st := status.New(e.Code.GRPCCode(), e.Message)
	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{Reason: string(e.Code), Domain: Domain, Metadata: e.Metadata},
		&errdetails.LocalizedMessage{Locale: locale, Message: userMessage},
	)
	if err != nil {
		return st
	}
	return detailed
}

// CodeOf returns the code of the first *Error in err's chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
