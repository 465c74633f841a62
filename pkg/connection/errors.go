package connection

import (
	"fmt"
)

// ErrorKind classifies transport failures.
type ErrorKind int

const (
	DnsFailure ErrorKind = iota
	ConnectFailure
	Timeout
	TransportFailure
	DecodeFailure
	ConnectionClosed
)

func (k ErrorKind) String() string {
	switch k {
	case DnsFailure:
		return "DNS lookup failed"
	case ConnectFailure:
		return "connect failed"
	case Timeout:
		return "timed out"
	case TransportFailure:
		return "transport failure"
	case DecodeFailure:
		return "response is not valid UTF-8"
	case ConnectionClosed:
		return "connection closed"
	default:
		return fmt.Sprintf("unknown error kind: %d", int(k))
	}
}

// Error is returned by every Connection operation that touches the socket.
type Error struct {
	Kind       ErrorKind
	Op         string
	underlying error
}

func newError(kind ErrorKind, op string, underlying error) *Error {
	return &Error{Kind: kind, Op: op, underlying: underlying}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.underlying != nil {
		return fmt.Sprintf("%s (underlying: %v)", msg, e.underlying)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.underlying
}

// Is reports a match on Kind, so errors.Is(err, ErrTimeout) works for any op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrDNS       = &Error{Kind: DnsFailure}
	ErrConnect   = &Error{Kind: ConnectFailure}
	ErrTimeout   = &Error{Kind: Timeout}
	ErrTransport = &Error{Kind: TransportFailure}
	ErrDecode    = &Error{Kind: DecodeFailure}
	ErrClosed    = &Error{Kind: ConnectionClosed}
)
