package quantum

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a simulation failure so callers can branch on it
// without parsing the message.
type ErrorKind int

const (
	InvalidRegisterWidth ErrorKind = iota + 1
	ValueOutOfRange
	NonUnitaryMatrix
	EntangledRegisterFree
	InvalidGateTopology
	InvalidParameter
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidRegisterWidth:
		return "invalid register width"
	case ValueOutOfRange:
		return "value out of range"
	case NonUnitaryMatrix:
		return "invalid gate matrix"
	case EntangledRegisterFree:
		return "register is entangled"
	case InvalidGateTopology:
		return "invalid gate topology"
	case InvalidParameter:
		return "invalid parameter"
	}
	return fmt.Sprintf("error kind %d", int(k))
}

// Error is the single failure type raised by the simulator. Op names the
// gate or operation that failed; Params carries the offending values.
type Error struct {
	Kind   ErrorKind
	Op     string
	Detail string
	Params []any
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidRegisterWidth  = &Error{Kind: InvalidRegisterWidth}
	ErrValueOutOfRange       = &Error{Kind: ValueOutOfRange}
	ErrNonUnitaryMatrix      = &Error{Kind: NonUnitaryMatrix}
	ErrEntangledRegisterFree = &Error{Kind: EntangledRegisterFree}
	ErrInvalidGateTopology   = &Error{Kind: InvalidGateTopology}
	ErrInvalidParameter      = &Error{Kind: InvalidParameter}
)

func newError(kind ErrorKind, op, detail string, params ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail, Params: params}
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if len(e.Params) > 0 {
		fmt.Fprintf(&sb, " %v", e.Params)
	}
	return sb.String()
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
