// Package apperrors defines the closed error taxonomy surfaced to UIs and
// other collaborators of the dlnacast core. No other package's error types
// are expected to leak past internal/session and internal/dlna.
package apperrors

import "fmt"

// Kind is one of the closed set of error categories a collaborator must
// understand.
type Kind int

const (
	// FileNotFound means the selected path does not exist or is not a
	// regular file.
	FileNotFound Kind = iota
	// UnsupportedFormat means the file extension isn't in the supported set.
	UnsupportedFormat
	// NoDevicesFound is informational: Discover found nothing.
	NoDevicesFound
	// NetworkError covers SSDP socket/send failures and discovery timeouts
	// with no responses.
	NetworkError
	// ActionTransport covers SOAP HTTP transport failures or unexpected
	// status codes.
	ActionTransport
	// ActionFault covers a UPnP SOAP fault response.
	ActionFault
	// ActionMalformed covers a SOAP response with neither a recognizable
	// action response nor a fault.
	ActionMalformed
	// MediaServerError covers bind failures or fatal accept-loop errors.
	MediaServerError
	// InvalidArgument covers bad device indices or missing prerequisites.
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case FileNotFound:
		return "FileNotFound"
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case NoDevicesFound:
		return "NoDevicesFound"
	case NetworkError:
		return "NetworkError"
	case ActionTransport:
		return "ActionTransport"
	case ActionFault:
		return "ActionFault"
	case ActionMalformed:
		return "ActionMalformed"
	case MediaServerError:
		return "MediaServerError"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carrying a Kind plus optional SOAP fault
// detail and a wrapped cause.
type Error struct {
	Kind    Kind
	Message string

	// Fault detail, populated only for Kind == ActionFault.
	FaultString      string
	FaultErrorCode   string
	FaultDescription string

	Err error
}

func (e *Error) Error() string {
	if e.Kind == ActionFault {
		return fmt.Sprintf("%s: %s (code=%s desc=%s)", e.Kind, e.FaultString, e.FaultErrorCode, e.FaultDescription)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a plain Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Fault builds an ActionFault error carrying UPnP SOAP fault detail.
func Fault(faultString, errorCode, errorDescription string) *Error {
	return &Error{
		Kind:             ActionFault,
		FaultString:      faultString,
		FaultErrorCode:   errorCode,
		FaultDescription: errorDescription,
	}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	ae, ok := err.(*Error)
	return ok && ae.Kind == kind
}
