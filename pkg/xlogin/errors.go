package xlogin

import "fmt"

// Kind classifies a flow failure. Every failure crossing the flow
// boundary is one of these; the HTTP layer maps them to the wire
// (error, error_description) pair without leaking internals.
type Kind int

const (
	KindNotConfigured Kind = iota
	KindInvalidRequest
	KindInvalidGrant
	KindUnknownUser
	KindServerError
	KindValidation
	KindCrypto
	KindSession
)

var kindCodes = map[Kind]string{
	KindNotConfigured:  "xlogin-not-configured",
	KindInvalidRequest: "invalid_request",
	KindInvalidGrant:   "invalid_grant",
	KindUnknownUser:    "unknown-user",
	KindServerError:    "server_error",
	KindValidation:     "input-invalid",
	KindCrypto:         "crypto-error",
	KindSession:        "session-error",
}

// FlowError is the typed failure of a federation flow step. Message is
// safe to show to the end user; the wrapped error is for logs only.
type FlowError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code(), e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Code returns the wire error code of the failure.
func (e *FlowError) Code() string {
	if code, ok := kindCodes[e.Kind]; ok {
		return code
	}
	return kindCodes[KindServerError]
}

func flowErr(kind Kind, message string, err error) *FlowError {
	return &FlowError{Kind: kind, Message: message, Err: err}
}
