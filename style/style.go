// Package style resolves the markup tree into flat runs, each carrying one
// fully determined TextStyle.
package style

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ByLCY/scribe/dsl"
)

// DefaultStyleName is the style applied outside any style block.
const DefaultStyleName = "body"

// TextStyle is the complete set of generation and layout parameters of a run.
type TextStyle struct {
	FontSize   float64       `json:"font_size" yaml:"font_size"`
	Bias       float64       `json:"bias" yaml:"bias"`
	Scale      float64       `json:"scale" yaml:"scale"`
	StyleIndex int           `json:"style" yaml:"style"`
	Align      dsl.Alignment `json:"align" yaml:"align"`
}

// Validate rejects non-positive sizes. Values are never clamped.
func (s TextStyle) Validate() error {
	if s.FontSize <= 0 {
		return &StyleError{Kind: InvalidValue, Field: "font_size", Value: s.FontSize}
	}
	if s.Scale <= 0 {
		return &StyleError{Kind: InvalidValue, Field: "scale", Value: s.Scale}
	}
	return nil
}

// Override is a partial TextStyle. Nil fields keep the base value.
type Override struct {
	FontSize   *float64       `json:"font_size,omitempty"`
	Bias       *float64       `json:"bias,omitempty"`
	Scale      *float64       `json:"scale,omitempty"`
	StyleIndex *int           `json:"style,omitempty"`
	Align      *dsl.Alignment `json:"align,omitempty"`
}

// OverrideFromAttrs collects the style-relevant attributes of a tag.
func OverrideFromAttrs(a dsl.Attrs) Override {
	return Override{
		FontSize:   a.FontSize,
		Bias:       a.Bias,
		Scale:      a.Scale,
		StyleIndex: a.StyleIndex,
		Align:      a.Align,
	}
}

// Apply returns base with every set field of o replacing the base value.
func (o Override) Apply(base TextStyle) TextStyle {
	if o.FontSize != nil {
		base.FontSize = *o.FontSize
	}
	if o.Bias != nil {
		base.Bias = *o.Bias
	}
	if o.Scale != nil {
		base.Scale = *o.Scale
	}
	if o.StyleIndex != nil {
		base.StyleIndex = *o.StyleIndex
	}
	if o.Align != nil {
		base.Align = *o.Align
	}
	return base
}

// Merge layers inner on top of o.
func (o Override) Merge(inner Override) Override {
	if inner.FontSize != nil {
		o.FontSize = inner.FontSize
	}
	if inner.Bias != nil {
		o.Bias = inner.Bias
	}
	if inner.Scale != nil {
		o.Scale = inner.Scale
	}
	if inner.StyleIndex != nil {
		o.StyleIndex = inner.StyleIndex
	}
	if inner.Align != nil {
		o.Align = inner.Align
	}
	return o
}

// Clear drops every field of o that other sets.
func (o Override) Clear(other Override) Override {
	if other.FontSize != nil {
		o.FontSize = nil
	}
	if other.Bias != nil {
		o.Bias = nil
	}
	if other.Scale != nil {
		o.Scale = nil
	}
	if other.StyleIndex != nil {
		o.StyleIndex = nil
	}
	if other.Align != nil {
		o.Align = nil
	}
	return o
}

// Empty reports whether no field is set.
func (o Override) Empty() bool {
	return o == Override{}
}

// Sheet maps style names to their parameters.
type Sheet struct {
	styles map[string]TextStyle
}

// DefaultSheet returns the built-in styles.
func DefaultSheet() *Sheet {
	return &Sheet{styles: map[string]TextStyle{
		"title":    {FontSize: 24, Bias: 1.5, Scale: 1.2, StyleIndex: 20, Align: dsl.AlignCenter},
		"heading1": {FontSize: 20, Bias: 1.5, Scale: 1.0, StyleIndex: 20, Align: dsl.AlignLeft},
		"heading2": {FontSize: 18, Bias: 1.5, Scale: 0.9, StyleIndex: 20, Align: dsl.AlignLeft},
		"heading3": {FontSize: 16, Bias: 1.5, Scale: 0.8, StyleIndex: 20, Align: dsl.AlignLeft},
		"body":     {FontSize: 18, Bias: 1.5, Scale: 0.8, StyleIndex: 20, Align: dsl.AlignJustify},
		"quote":    {FontSize: 16, Bias: 1.5, Scale: 0.7, StyleIndex: 20, Align: dsl.AlignCenter},
		"caption":  {FontSize: 14, Bias: 1.5, Scale: 0.6, StyleIndex: 20, Align: dsl.AlignCenter},
	}}
}

// Lookup returns the named style.
func (s *Sheet) Lookup(name string) (TextStyle, bool) {
	ts, ok := s.styles[name]
	return ts, ok
}

// Set adds or replaces a style after validating it.
func (s *Sheet) Set(name string, ts TextStyle) error {
	if err := ts.Validate(); err != nil {
		var serr *StyleError
		if errors.As(err, &serr) {
			serr.Name = name
		}
		return err
	}
	s.styles[name] = ts
	return nil
}

// Names lists the style names in sorted order.
func (s *Sheet) Names() []string {
	names := make([]string, 0, len(s.styles))
	for name := range s.styles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrorKind classifies style failures.
type ErrorKind int

const (
	InvalidValue ErrorKind = iota + 1
	UnknownStyleName
)

var (
	ErrInvalidValue     = errors.New("invalid style value")
	ErrUnknownStyleName = errors.New("unknown style name")
)

// StyleError reports a style that cannot be resolved.
type StyleError struct {
	Kind   ErrorKind
	Name   string
	Field  string
	Value  float64
	Offset int
}

func (e *StyleError) Error() string {
	switch e.Kind {
	case UnknownStyleName:
		return fmt.Sprintf("style: unknown style %q at offset %d", e.Name, e.Offset)
	default:
		msg := fmt.Sprintf("style: %s must be positive, got %g", e.Field, e.Value)
		if e.Name != "" {
			msg += fmt.Sprintf(" (style %q)", e.Name)
		}
		return msg + fmt.Sprintf(" at offset %d", e.Offset)
	}
}

func (e *StyleError) Unwrap() error {
	if e.Kind == UnknownStyleName {
		return ErrUnknownStyleName
	}
	return ErrInvalidValue
}
