package layout

import (
	"errors"
	"fmt"
)

// ErrorKind 标识布局失败的原因。
type ErrorKind int

const (
	NonPositiveUsableWidth ErrorKind = iota + 1
	NonPositiveUsableHeight
	InvalidConfig
	UnknownWord
)

var (
	ErrNonPositiveUsableWidth  = errors.New("non-positive usable width")
	ErrNonPositiveUsableHeight = errors.New("non-positive usable height")
	ErrInvalidConfig           = errors.New("invalid document config")
	ErrUnknownWord             = errors.New("unknown word")
)

// LayoutError 描述无法完成排版的情况。Offset 为触发单元在原始标记中的字节偏移。
type LayoutError struct {
	Kind   ErrorKind
	Page   int
	Offset int
	Detail string
}

func (e *LayoutError) Error() string {
	msg := "layout: " + e.Unwrap().Error()
	if e.Page > 0 {
		msg += fmt.Sprintf(" on page %d", e.Page)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *LayoutError) Unwrap() error {
	switch e.Kind {
	case NonPositiveUsableWidth:
		return ErrNonPositiveUsableWidth
	case NonPositiveUsableHeight:
		return ErrNonPositiveUsableHeight
	case UnknownWord:
		return ErrUnknownWord
	default:
		return ErrInvalidConfig
	}
}
