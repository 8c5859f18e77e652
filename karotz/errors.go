package karotz

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a device call failed.
type ErrorKind int

const (
	KindInvalidConfiguration ErrorKind = iota + 1
	KindTransport
	KindMalformedResponse
	KindDeviceRejected
	KindDeviceOffline
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "invalid configuration"
	case KindTransport:
		return "transport failure"
	case KindMalformedResponse:
		return "malformed response"
	case KindDeviceRejected:
		return "device rejected"
	case KindDeviceOffline:
		return "device offline"
	default:
		return "unknown"
	}
}

// offlineMessage is reported when status returns an empty body.
const offlineMessage = "rabbit is offline"

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrInvalidConfiguration = &Error{Kind: KindInvalidConfiguration, Message: "device address is required"}
	ErrTransport            = &Error{Kind: KindTransport}
	ErrMalformedResponse    = &Error{Kind: KindMalformedResponse}
	ErrDeviceRejected       = &Error{Kind: KindDeviceRejected}
	ErrDeviceOffline        = &Error{Kind: KindDeviceOffline, Message: offlineMessage}
)

// Error is returned by every failed device call.
//
// Message is what the failure continuation receives: the device-supplied msg
// for rejections (possibly empty), a fixed text for an offline rabbit, and a
// descriptive text otherwise.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	var prefix string
	if e.Endpoint != "" {
		prefix = "karotz " + e.Endpoint + ": "
	} else {
		prefix = "karotz: "
	}
	switch {
	case e.Message != "":
		return prefix + e.Message
	case e.Err != nil:
		return prefix + e.Err.Error()
	default:
		return prefix + e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Endpoint == "" && t.Err == nil
}

// Message returns the text a failure callback should see for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Message
	}
	return err.Error()
}

func transportError(endpoint string, err error) *Error {
	return &Error{
		Kind:     KindTransport,
		Endpoint: endpoint,
		Message:  err.Error(),
		Err:      err,
	}
}

func malformedError(endpoint string, err error) *Error {
	return &Error{
		Kind:     KindMalformedResponse,
		Endpoint: endpoint,
		Message:  fmt.Sprintf("decode response: %v", err),
		Err:      err,
	}
}
