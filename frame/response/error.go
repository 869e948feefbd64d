// Package response implements the server-to-client CQL frame bodies:
// ERROR, READY, AUTHENTICATE, SUPPORTED, RESULT, EVENT, AUTH_SUCCESS,
// AUTH_CHALLENGE.
package response

import (
	"fmt"

	"github.com/go-cql/driver/frame"
)

// ErrorCode is the 4-byte error code carried by an ERROR frame.
type ErrorCode frame.Int

const (
	ErrServerError        ErrorCode = 0x0000
	ErrProtocolError      ErrorCode = 0x000A
	ErrAuthenticationError ErrorCode = 0x0100
	ErrUnavailable        ErrorCode = 0x1000
	ErrOverloaded         ErrorCode = 0x1001
	ErrIsBootstrapping    ErrorCode = 0x1002
	ErrTruncateError      ErrorCode = 0x1003
	ErrWriteTimeout       ErrorCode = 0x1100
	ErrReadTimeout        ErrorCode = 0x1200
	ErrReadFailure        ErrorCode = 0x1300
	ErrFunctionFailure    ErrorCode = 0x1400
	ErrWriteFailure       ErrorCode = 0x1500
	ErrSyntaxError        ErrorCode = 0x2000
	ErrUnauthorized       ErrorCode = 0x2100
	ErrInvalid            ErrorCode = 0x2200
	ErrConfigError        ErrorCode = 0x2300
	ErrAlreadyExists      ErrorCode = 0x2400
	ErrUnprepared         ErrorCode = 0x2500
)

// CodedError is implemented by every ERROR frame body, letting callers
// branch on the numeric code without a type switch per code.
type CodedError interface {
	error
	Code() ErrorCode
}

// errorBase is the base ERROR frame shape, embedded (lowercase field name,
// same trick as the standard library's `error` embedding) so the typed
// wrappers below promote Code()/Error() without a name collision against
// their own field.
type errorBase struct {
	frame.BaseResponse
	ErrCode ErrorCode
	Message string
}

func (e *errorBase) Code() ErrorCode { return e.ErrCode }
func (e *errorBase) Error() string {
	return fmt.Sprintf("%s (%#06x): %s", e.codeName(), uint32(e.ErrCode), e.Message)
}

func (e *errorBase) codeName() string {
	switch e.ErrCode {
	case ErrServerError:
		return "server error"
	case ErrProtocolError:
		return "protocol error"
	case ErrAuthenticationError:
		return "authentication error"
	case ErrUnavailable:
		return "unavailable"
	case ErrOverloaded:
		return "overloaded"
	case ErrIsBootstrapping:
		return "is bootstrapping"
	case ErrTruncateError:
		return "truncate error"
	case ErrWriteTimeout:
		return "write timeout"
	case ErrReadTimeout:
		return "read timeout"
	case ErrReadFailure:
		return "read failure"
	case ErrFunctionFailure:
		return "function failure"
	case ErrWriteFailure:
		return "write failure"
	case ErrSyntaxError:
		return "syntax error"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInvalid:
		return "invalid"
	case ErrConfigError:
		return "config error"
	case ErrAlreadyExists:
		return "already exists"
	case ErrUnprepared:
		return "unprepared"
	default:
		return "error"
	}
}

// Unavailable is the UNAVAILABLE error body.
type Unavailable struct {
	errorBase
	Consistency frame.Consistency
	Required    frame.Int
	Alive       frame.Int
}

// WriteTimeout is the WRITE_TIMEOUT error body.
type WriteTimeout struct {
	errorBase
	Consistency frame.Consistency
	Received    frame.Int
	BlockFor    frame.Int
	WriteType   string
}

// ReadTimeout is the READ_TIMEOUT error body.
type ReadTimeout struct {
	errorBase
	Consistency frame.Consistency
	Received    frame.Int
	BlockFor    frame.Int
	DataPresent bool
}

// ReadFailure is the READ_FAILURE error body.
type ReadFailure struct {
	errorBase
	Consistency frame.Consistency
	Received    frame.Int
	BlockFor    frame.Int
	NumFailures frame.Int
	DataPresent bool
}

// WriteFailure is the WRITE_FAILURE error body.
type WriteFailure struct {
	errorBase
	Consistency frame.Consistency
	Received    frame.Int
	BlockFor    frame.Int
	NumFailures frame.Int
	WriteType   string
}

// FunctionFailure is the FUNCTION_FAILURE error body.
type FunctionFailure struct {
	errorBase
	Keyspace string
	Function string
	ArgTypes frame.StringList
}

// AlreadyExists is the ALREADY_EXISTS error body.
type AlreadyExists struct {
	errorBase
	Keyspace string
	Table    string
}

// Unprepared is the UNPREPARED error body: the id the server no longer
// recognizes, driving a single re-prepare-then-retry.
type Unprepared struct {
	errorBase
	ID []byte
}

// ParseError decodes an ERROR frame body into the most specific wrapper
// its code supports.
func ParseError(buf *frame.Buffer) frame.Response {
	base := errorBase{ErrCode: ErrorCode(buf.ReadInt()), Message: buf.ReadString()}

	switch base.ErrCode {
	case ErrUnavailable:
		return &Unavailable{
			errorBase:   base,
			Consistency: buf.ReadConsistency(),
			Required:    buf.ReadInt(),
			Alive:       buf.ReadInt(),
		}
	case ErrWriteTimeout:
		return &WriteTimeout{
			errorBase:   base,
			Consistency: buf.ReadConsistency(),
			Received:    buf.ReadInt(),
			BlockFor:    buf.ReadInt(),
			WriteType:   buf.ReadString(),
		}
	case ErrReadTimeout:
		return &ReadTimeout{
			errorBase:   base,
			Consistency: buf.ReadConsistency(),
			Received:    buf.ReadInt(),
			BlockFor:    buf.ReadInt(),
			DataPresent: buf.ReadBool(),
		}
	case ErrReadFailure:
		return &ReadFailure{
			errorBase:   base,
			Consistency: buf.ReadConsistency(),
			Received:    buf.ReadInt(),
			BlockFor:    buf.ReadInt(),
			NumFailures: buf.ReadInt(),
			DataPresent: buf.ReadBool(),
		}
	case ErrWriteFailure:
		return &WriteFailure{
			errorBase:   base,
			Consistency: buf.ReadConsistency(),
			Received:    buf.ReadInt(),
			BlockFor:    buf.ReadInt(),
			NumFailures: buf.ReadInt(),
			WriteType:   buf.ReadString(),
		}
	case ErrFunctionFailure:
		return &FunctionFailure{
			errorBase: base,
			Keyspace: buf.ReadString(),
			Function: buf.ReadString(),
			ArgTypes: buf.ReadStringList(),
		}
	case ErrAlreadyExists:
		return &AlreadyExists{
			errorBase: base,
			Keyspace: buf.ReadString(),
			Table:    buf.ReadString(),
		}
	case ErrUnprepared:
		return &Unprepared{
			errorBase: base,
			ID:    buf.ReadShortBytes(),
		}
	default:
		return &base
	}
}
