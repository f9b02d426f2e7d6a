package dsl

import (
	"errors"
	"fmt"
)

// ErrorKind classifies markup failures.
type ErrorKind int

const (
	UnknownTag ErrorKind = iota + 1
	UnbalancedTag
	UnclosedTag
	InvalidAttribute
	InvalidNesting
)

var (
	ErrUnknownTag       = errors.New("unknown tag")
	ErrUnbalancedTag    = errors.New("unbalanced tag")
	ErrUnclosedTag      = errors.New("unclosed tag")
	ErrInvalidAttribute = errors.New("invalid attribute")
	ErrInvalidNesting   = errors.New("invalid nesting")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case UnknownTag:
		return ErrUnknownTag
	case UnbalancedTag:
		return ErrUnbalancedTag
	case UnclosedTag:
		return ErrUnclosedTag
	case InvalidAttribute:
		return ErrInvalidAttribute
	case InvalidNesting:
		return ErrInvalidNesting
	default:
		return errors.New("markup error")
	}
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// MarkupError reports a malformed markup document. Offset is the byte offset
// of the offending tag in the input.
type MarkupError struct {
	Kind   ErrorKind
	Tag    string
	Offset int
	Detail string
}

func (e *MarkupError) Error() string {
	msg := fmt.Sprintf("markup: %s %q at offset %d", e.Kind, e.Tag, e.Offset)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap lets errors.Is match the kind sentinels.
func (e *MarkupError) Unwrap() error {
	return e.Kind.sentinel()
}
