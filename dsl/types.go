package dsl

import (
	"fmt"
	"strings"
)

// NodeKind identifies the role of a node in the markup tree.
type NodeKind int

const (
	KindDocument NodeKind = iota
	KindText
	KindStyle
	KindAlign
	KindBias
	KindWord
	KindPageBreak
	KindLineBreak
	KindMargin
)

var kindNames = map[NodeKind]string{
	KindDocument:  "document",
	KindText:      "text",
	KindStyle:     "style",
	KindAlign:     "align",
	KindBias:      "bias",
	KindWord:      "word",
	KindPageBreak: "page-break",
	KindLineBreak: "line-break",
	KindMargin:    "margin",
}

func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText keeps debug dumps readable.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Container reports whether nodes of this kind own children.
func (k NodeKind) Container() bool {
	switch k {
	case KindDocument, KindStyle, KindAlign, KindBias, KindWord, KindMargin:
		return true
	default:
		return false
	}
}

// Block reports whether the kind starts and ends a paragraph.
func (k NodeKind) Block() bool {
	switch k {
	case KindStyle, KindAlign, KindBias, KindMargin:
		return true
	default:
		return false
	}
}

// Alignment is the horizontal placement rule of a line.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
	AlignJustify
)

func (a Alignment) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	case AlignJustify:
		return "justify"
	default:
		return "left"
	}
}

// ParseAlignment maps the markup spelling to an Alignment.
func ParseAlignment(s string) (Alignment, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return AlignLeft, true
	case "center":
		return AlignCenter, true
	case "right":
		return AlignRight, true
	case "justify":
		return AlignJustify, true
	default:
		return AlignLeft, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Alignment) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Alignment) UnmarshalText(b []byte) error {
	v, ok := ParseAlignment(string(b))
	if !ok {
		return fmt.Errorf("unknown alignment %q", string(b))
	}
	*a = v
	return nil
}

// MarginOverride carries the explicit margin fields of a margin block, in
// centimetres. Nil fields are not overridden.
type MarginOverride struct {
	OddLeft    *float64 `json:"odd_left,omitempty"`
	OddRight   *float64 `json:"odd_right,omitempty"`
	OddTop     *float64 `json:"odd_top,omitempty"`
	OddBottom  *float64 `json:"odd_bottom,omitempty"`
	EvenLeft   *float64 `json:"even_left,omitempty"`
	EvenRight  *float64 `json:"even_right,omitempty"`
	EvenTop    *float64 `json:"even_top,omitempty"`
	EvenBottom *float64 `json:"even_bottom,omitempty"`
}

// Merge returns m with every field set in inner replaced by inner's value.
func (m MarginOverride) Merge(inner MarginOverride) MarginOverride {
	pick := func(outer, in *float64) *float64 {
		if in != nil {
			return in
		}
		return outer
	}
	return MarginOverride{
		OddLeft:    pick(m.OddLeft, inner.OddLeft),
		OddRight:   pick(m.OddRight, inner.OddRight),
		OddTop:     pick(m.OddTop, inner.OddTop),
		OddBottom:  pick(m.OddBottom, inner.OddBottom),
		EvenLeft:   pick(m.EvenLeft, inner.EvenLeft),
		EvenRight:  pick(m.EvenRight, inner.EvenRight),
		EvenTop:    pick(m.EvenTop, inner.EvenTop),
		EvenBottom: pick(m.EvenBottom, inner.EvenBottom),
	}
}

// Empty reports whether no field is set.
func (m MarginOverride) Empty() bool {
	return m == MarginOverride{}
}

// Attrs holds the typed attributes declared on a tag.
type Attrs struct {
	StyleName  string          `json:"style_name,omitempty"`
	FontSize   *float64        `json:"font_size,omitempty"`
	Bias       *float64        `json:"bias,omitempty"`
	Scale      *float64        `json:"scale,omitempty"`
	StyleIndex *int            `json:"style,omitempty"`
	Align      *Alignment      `json:"align,omitempty"`
	Margin     *MarginOverride `json:"margin,omitempty"`
}

// Node is one element of the markup tree. Containers refer to their
// children by index into Document.Nodes.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Offset   int      `json:"offset"`
	Text     string   `json:"text,omitempty"`
	Attrs    Attrs    `json:"attrs"`
	Children []int    `json:"children,omitempty"`
}

// RootIndex is the index of the document node.
const RootIndex = 0

// Document is the parsed markup tree stored as an arena.
type Document struct {
	Nodes []Node `json:"nodes"`
}

func newDocument() *Document {
	return &Document{Nodes: []Node{{Kind: KindDocument}}}
}

// Root returns the document node.
func (d *Document) Root() *Node {
	return &d.Nodes[RootIndex]
}

// Node returns the node at idx.
func (d *Document) Node(idx int) *Node {
	return &d.Nodes[idx]
}

// Clone returns a deep copy so callers can mutate text without touching the
// original tree.
func (d *Document) Clone() *Document {
	out := &Document{Nodes: make([]Node, len(d.Nodes))}
	for i, n := range d.Nodes {
		n.Children = append([]int(nil), n.Children...)
		out.Nodes[i] = n
	}
	return out
}

func (d *Document) add(parent int, n Node) int {
	idx := len(d.Nodes)
	d.Nodes = append(d.Nodes, n)
	d.Nodes[parent].Children = append(d.Nodes[parent].Children, idx)
	return idx
}
