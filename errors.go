package ldap

import (
	"errors"
	"fmt"
)

// Sentinel errors. The four kind sentinels (ErrTransport, ErrProtocol,
// ErrAuthentication, ErrOperation) match every error of that kind through
// errors.Is; the others describe a specific cause and are wrapped inside one
// of the kinds.
var (
	ErrTransport      = errors.New("ldap: transport error")
	ErrProtocol       = errors.New("ldap: protocol error")
	ErrAuthentication = errors.New("ldap: authentication failed")
	ErrOperation      = errors.New("ldap: operation failed")

	// ErrSync is returned when a response carries a message ID other than
	// the one of the pending request.
	ErrSync = errors.New("ldap: sync error")
	// ErrUnexpectedEOF is returned when the stream closes before a complete
	// message has been read.
	ErrUnexpectedEOF = errors.New("ldap: unexpected end of stream")
	// ErrTimeout is returned when a read or write exceeds its deadline.
	ErrTimeout = errors.New("ldap: operation timeout")
	// ErrUnexpectedResponse is returned when a response carries a protocolOp
	// other than the one expected.
	ErrUnexpectedResponse = errors.New("ldap: unexpected response")
	// ErrInvalidState is returned when an operation is issued in a
	// connection state that does not allow it.
	ErrInvalidState = errors.New("ldap: invalid connection state")

	ErrInvalidDN        = errors.New("ldap: invalid distinguished name")
	ErrInvalidAttribute = errors.New("ldap: invalid attribute")
	ErrInvalidFilter    = errors.New("ldap: invalid filter")
	ErrContextCancelled = errors.New("ldap: context cancelled")
)

// TransportError reports a failure of the underlying TCP stream: refused or
// timed out connects, read or write timeouts, and premature stream closes.
// The connection that produced it is no longer usable.
type TransportError struct {
	// Op is the operation name (e.g. "Bind", "Search")
	Op string
	// Server is the host:port of the directory server
	Server string
	// Err is the underlying error
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ldap %s failed on server %q: %v", e.Op, e.Server, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError reports malformed or unexpected data on an otherwise working
// stream: bad tags or lengths, message ID mismatches, unexpected operations.
type ProtocolError struct {
	Op     string
	Server string
	// MessageID is the ID of the request being processed, 0 if none.
	MessageID int32
	Err       error
}

func (e *ProtocolError) Error() string {
	if e.MessageID != 0 {
		return fmt.Sprintf("ldap %s failed on server %q (message %d): %v", e.Op, e.Server, e.MessageID, e.Err)
	}
	return fmt.Sprintf("ldap %s failed on server %q: %v", e.Op, e.Server, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Is matches ErrProtocol.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// AuthenticationError reports a Bind that completed with a non-zero
// resultCode. It is never retried.
type AuthenticationError struct {
	Server     string
	DN         string
	Code       ResultCode
	Diagnostic string
}

// Error returns the mapped reason, e.g. "Invalid credentials (49)".
func (e *AuthenticationError) Error() string {
	return e.Code.String()
}

// Reason returns the human readable reason for the result code.
func (e *AuthenticationError) Reason() string { return e.Code.Reason() }

// Is matches ErrAuthentication.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// OperationError reports a Search or Add that completed with a non-zero
// resultCode.
type OperationError struct {
	Op         string
	Server     string
	DN         string
	Code       ResultCode
	MatchedDN  string
	Diagnostic string
}

func (e *OperationError) Error() string {
	if e.DN != "" {
		return fmt.Sprintf("ldap %s failed for DN %q: %s", e.Op, e.DN, e.Code)
	}
	return fmt.Sprintf("ldap %s failed: %s", e.Op, e.Code)
}

// Reason returns the human readable reason for the result code.
func (e *OperationError) Reason() string { return e.Code.Reason() }

// Is matches ErrOperation.
func (e *OperationError) Is(target error) bool { return target == ErrOperation }

// IsTransportError reports whether err is a TransportError.
func IsTransportError(err error) bool { return errors.Is(err, ErrTransport) }

// IsProtocolError reports whether err is a ProtocolError.
func IsProtocolError(err error) bool { return errors.Is(err, ErrProtocol) }

// IsAuthenticationError reports whether err is an AuthenticationError.
func IsAuthenticationError(err error) bool { return errors.Is(err, ErrAuthentication) }

// IsOperationError reports whether err is an OperationError.
func IsOperationError(err error) bool { return errors.Is(err, ErrOperation) }

// IsContextError reports whether err was caused by context cancellation or
// an expired context deadline.
func IsContextError(err error) bool { return errors.Is(err, ErrContextCancelled) }

// IsRetryable reports whether the failed operation may succeed on a fresh
// connection. Only transport failures qualify; a cancelled context does not.
func IsRetryable(err error) bool {
	return IsTransportError(err) && !IsContextError(err)
}

// GetLDAPResultCode extracts the result code from an AuthenticationError or
// OperationError. It returns -1 when err carries none.
func GetLDAPResultCode(err error) int {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return int(authErr.Code)
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return int(opErr.Code)
	}
	return -1
}
