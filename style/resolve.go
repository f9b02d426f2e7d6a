package style

import (
	"regexp"
	"strings"

	"github.com/ByLCY/scribe/dsl"
)

// BreakKind marks a run that forces a line or page break.
type BreakKind int

const (
	BreakNone BreakKind = iota
	BreakLine
	BreakPage
)

func (b BreakKind) String() string {
	switch b {
	case BreakLine:
		return "line"
	case BreakPage:
		return "page"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b BreakKind) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Run is a piece of text with one resolved style. Break runs carry no text.
type Run struct {
	Index     int                 `json:"index"`
	Text      string              `json:"text,omitempty"`
	Style     TextStyle           `json:"style"`
	Paragraph int                 `json:"paragraph"`
	Break     BreakKind           `json:"break,omitempty"`
	Margins   *dsl.MarginOverride `json:"margins,omitempty"`
	Word      *Override           `json:"word,omitempty"`
	Offset    int                 `json:"offset"`
}

var blankLine = regexp.MustCompile(`\n[ \t\r]*\n`)

// frame is one level of the override stack. named is the style selected by
// the nearest style block, block accumulates bias/align block attributes and
// word holds the attributes of an enclosing word block.
type frame struct {
	node    int
	next    int
	named   TextStyle
	block   Override
	word    *Override
	margins *dsl.MarginOverride
}

func (f frame) effective() TextStyle {
	ts := f.block.Apply(f.named)
	if f.word != nil {
		ts = f.word.Apply(ts)
	}
	return ts
}

// Resolver turns a markup tree into runs using a style sheet.
type Resolver struct {
	sheet *Sheet
}

// NewResolver creates a resolver over sheet. A nil sheet uses the built-in
// styles.
func NewResolver(sheet *Sheet) *Resolver {
	if sheet == nil {
		sheet = DefaultSheet()
	}
	return &Resolver{sheet: sheet}
}

// Resolve resolves doc with the built-in styles.
func Resolve(doc *dsl.Document) ([]Run, error) {
	return NewResolver(nil).Resolve(doc)
}

type runWriter struct {
	runs      []Run
	paragraph int
	pending   bool
}

// boundary closes the current paragraph; the next run opens a new one.
func (w *runWriter) boundary() {
	w.pending = true
}

func (w *runWriter) emit(r Run) {
	if w.pending && len(w.runs) > 0 {
		w.paragraph++
	}
	w.pending = false
	r.Index = len(w.runs)
	r.Paragraph = w.paragraph
	w.runs = append(w.runs, r)
}

// Resolve walks doc depth-first and emits runs in document order.
func (r *Resolver) Resolve(doc *dsl.Document) ([]Run, error) {
	base, ok := r.sheet.Lookup(DefaultStyleName)
	if !ok {
		return nil, &StyleError{Kind: UnknownStyleName, Name: DefaultStyleName}
	}

	w := &runWriter{}
	stack := []frame{{node: dsl.RootIndex, named: base}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		parent := doc.Node(top.node)
		if top.next >= len(parent.Children) {
			if parent.Kind.Block() {
				w.boundary()
			}
			stack = stack[:len(stack)-1]
			continue
		}
		idx := parent.Children[top.next]
		top.next++
		cur := *top
		node := doc.Node(idx)

		switch node.Kind {
		case dsl.KindText:
			if err := r.emitText(w, cur, node); err != nil {
				return nil, err
			}
		case dsl.KindLineBreak, dsl.KindPageBreak:
			kind := BreakLine
			if node.Kind == dsl.KindPageBreak {
				kind = BreakPage
			}
			ts := cur.effective()
			if err := checkStyle(ts, node.Offset); err != nil {
				return nil, err
			}
			w.emit(Run{Style: ts, Break: kind, Margins: cur.margins, Offset: node.Offset})
			w.boundary()
		default:
			child, err := r.push(cur, idx, node)
			if err != nil {
				return nil, err
			}
			if node.Kind.Block() {
				w.boundary()
			}
			stack = append(stack, child)
		}
	}
	return w.runs, nil
}

func (r *Resolver) push(parent frame, idx int, node *dsl.Node) (frame, error) {
	child := parent
	child.node = idx
	child.next = 0
	attrs := node.Attrs

	switch node.Kind {
	case dsl.KindStyle:
		if attrs.StyleName != "" {
			named, ok := r.sheet.Lookup(attrs.StyleName)
			if !ok {
				return frame{}, &StyleError{Kind: UnknownStyleName, Name: attrs.StyleName, Offset: node.Offset}
			}
			child.named = named
		}
		explicit := OverrideFromAttrs(attrs)
		child.named = explicit.Apply(child.named)
		child.block = parent.block.Clear(explicit)
	case dsl.KindAlign, dsl.KindBias:
		child.block = parent.block.Merge(OverrideFromAttrs(attrs))
	case dsl.KindWord:
		o := OverrideFromAttrs(attrs)
		if parent.word != nil {
			o = parent.word.Merge(o)
		}
		child.word = &o
	case dsl.KindMargin:
		if attrs.Margin != nil {
			merged := *attrs.Margin
			if parent.margins != nil {
				merged = parent.margins.Merge(*attrs.Margin)
			}
			child.margins = &merged
		}
	}

	if err := checkStyle(child.effective(), node.Offset); err != nil {
		return frame{}, err
	}
	return child, nil
}

func (r *Resolver) emitText(w *runWriter, cur frame, node *dsl.Node) error {
	ts := cur.effective()
	segments := blankLine.Split(node.Text, -1)
	for i, seg := range segments {
		if i > 0 {
			w.boundary()
		}
		if strings.TrimSpace(seg) == "" {
			continue
		}
		if err := checkStyle(ts, node.Offset); err != nil {
			return err
		}
		w.emit(Run{
			Text:    seg,
			Style:   ts,
			Margins: cur.margins,
			Word:    cur.word,
			Offset:  node.Offset + segmentOffset(node.Text, segments, i),
		})
	}
	return nil
}

func checkStyle(ts TextStyle, offset int) error {
	if err := ts.Validate(); err != nil {
		if serr, ok := err.(*StyleError); ok {
			serr.Offset = offset
		}
		return err
	}
	return nil
}

// segmentOffset finds the byte position of segments[i] within text.
func segmentOffset(text string, segments []string, i int) int {
	pos := 0
	for j := 0; j < i; j++ {
		pos += len(segments[j])
		loc := blankLine.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		pos += loc[1]
	}
	return pos
}
