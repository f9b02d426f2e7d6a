package dsl

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	markupLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Tag", Pattern: `\[/?[A-Za-z][A-Za-z0-9_-]*(?::[^\[\]\n]*)?\]`},
		{Name: "Text", Pattern: `[^\[]+`},
		{Name: "Bracket", Pattern: `\[`},
	})

	tagLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Number", Pattern: `[-+]?(?:\d+\.\d*|\.\d+|\d+)`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
		{Name: "Symbol", Pattern: `[][/:,=]`},
	})

	tagTokenType = mustTokenType("Tag")

	tagParser = participle.MustBuild[tagHeader](
		participle.Lexer(tagLexer),
		participle.Elide("Whitespace"),
	)
)

// tagHeader is the grammar of a single bracketed tag, eg. [word:bias=2.5,style=3].
type tagHeader struct {
	Pos     lexer.Position `parser:""`
	Closing bool           `parser:"'[' @'/'?"`
	Name    string         `parser:"@Ident"`
	Args    []*tagArg      `parser:"( ':' ( @@ ( ',' @@ )* )? )? ']'"`
}

// tagArg is either a bare value or a key=value pair.
type tagArg struct {
	Key   string  `parser:"@( Ident | Number )"`
	Value *string `parser:"( '=' @( Ident | Number ) )?"`
}

// Parse parses markup content from an io.Reader.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markup: %w", err)
	}
	return ParseString(string(data))
}

// ParseString parses markup content from a string.
func ParseString(input string) (*Document, error) {
	lex, err := markupLexer.LexString("", input)
	if err != nil {
		return nil, fmt.Errorf("tokenize markup: %w", err)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, fmt.Errorf("tokenize markup: %w", err)
	}

	b := newTreeBuilder()
	for _, tok := range tokens {
		if tok.EOF() {
			break
		}
		if tok.Type == tagTokenType {
			if err := b.tag(tok); err != nil {
				return nil, err
			}
			continue
		}
		b.text(tok.Value, tok.Pos.Offset)
	}
	return b.finish()
}

type openTag struct {
	node   int
	name   string
	offset int
}

// treeBuilder turns the flat token stream into the node arena with an
// explicit stack of open containers.
type treeBuilder struct {
	doc      *Document
	stack    []openTag
	lastText int
}

func newTreeBuilder() *treeBuilder {
	return &treeBuilder{doc: newDocument(), lastText: -1}
}

func (b *treeBuilder) top() int {
	if len(b.stack) == 0 {
		return RootIndex
	}
	return b.stack[len(b.stack)-1].node
}

func (b *treeBuilder) text(value string, offset int) {
	if b.lastText >= 0 {
		b.doc.Nodes[b.lastText].Text += value
		return
	}
	b.lastText = b.doc.add(b.top(), Node{Kind: KindText, Offset: offset, Text: value})
}

func (b *treeBuilder) tag(tok lexer.Token) error {
	b.lastText = -1
	offset := tok.Pos.Offset

	header, err := tagParser.ParseString("", tok.Value)
	if err != nil {
		return &MarkupError{Kind: InvalidAttribute, Tag: rawTagName(tok.Value), Offset: offset, Detail: err.Error()}
	}

	def, ok := tagSpecs[header.Name]
	if !ok {
		return &MarkupError{Kind: UnknownTag, Tag: header.Name, Offset: offset}
	}

	if header.Closing {
		if strings.Contains(tok.Value, ":") {
			return &MarkupError{Kind: InvalidAttribute, Tag: header.Name, Offset: offset, Detail: "closing tag takes no attributes"}
		}
		if def.selfClosing {
			return &MarkupError{Kind: UnbalancedTag, Tag: header.Name, Offset: offset, Detail: "tag is self-closing"}
		}
		if len(b.stack) == 0 {
			return &MarkupError{Kind: UnbalancedTag, Tag: header.Name, Offset: offset, Detail: "no open tag"}
		}
		if open := b.stack[len(b.stack)-1]; open.name != header.Name {
			return &MarkupError{Kind: UnbalancedTag, Tag: header.Name, Offset: offset, Detail: fmt.Sprintf("expected [/%s]", open.name)}
		}
		b.stack = b.stack[:len(b.stack)-1]
		return nil
	}

	if err := b.checkNesting(def.kind, header.Name, offset); err != nil {
		return err
	}

	attrs, err := def.parse(header.Args)
	if err != nil {
		return &MarkupError{Kind: InvalidAttribute, Tag: header.Name, Offset: offset, Detail: err.Error()}
	}

	idx := b.doc.add(b.top(), Node{Kind: def.kind, Offset: offset, Attrs: attrs})
	if !def.selfClosing {
		b.stack = append(b.stack, openTag{node: idx, name: header.Name, offset: offset})
	}
	return nil
}

// checkNesting enforces that word blocks sit directly inside a style, align
// or bias block and contain nothing but text.
func (b *treeBuilder) checkNesting(kind NodeKind, name string, offset int) error {
	parent := KindDocument
	if len(b.stack) > 0 {
		parent = b.doc.Nodes[b.top()].Kind
	}
	if parent == KindWord {
		return &MarkupError{Kind: InvalidNesting, Tag: name, Offset: offset, Detail: "word blocks may only contain text"}
	}
	if kind != KindWord {
		return nil
	}
	switch parent {
	case KindStyle, KindAlign, KindBias:
		return nil
	}
	return &MarkupError{Kind: InvalidNesting, Tag: name, Offset: offset, Detail: "word block must sit directly inside a style, align or bias block"}
}

func (b *treeBuilder) finish() (*Document, error) {
	if len(b.stack) > 0 {
		open := b.stack[len(b.stack)-1]
		return nil, &MarkupError{Kind: UnclosedTag, Tag: open.name, Offset: open.offset}
	}
	return b.doc, nil
}

type tagSpec struct {
	kind        NodeKind
	selfClosing bool
	parse       func(args []*tagArg) (Attrs, error)
}

var tagSpecs = map[string]tagSpec{
	"style":      {kind: KindStyle, parse: parseStyleArgs},
	"align":      {kind: KindAlign, parse: parseAlignArgs},
	"bias":       {kind: KindBias, parse: parseBiasArgs},
	"word":       {kind: KindWord, parse: parseWordArgs},
	"margin":     {kind: KindMargin, parse: parseMarginArgs},
	"page-break": {kind: KindPageBreak, selfClosing: true, parse: parseNoArgs},
	"line-break": {kind: KindLineBreak, selfClosing: true, parse: parseNoArgs},
}

func parseNoArgs(args []*tagArg) (Attrs, error) {
	if len(args) > 0 {
		return Attrs{}, fmt.Errorf("tag takes no attributes")
	}
	return Attrs{}, nil
}

func parseStyleArgs(args []*tagArg) (Attrs, error) {
	var attrs Attrs
	seen := map[string]bool{}
	for i, arg := range args {
		if arg.Value == nil {
			if i != 0 {
				return attrs, fmt.Errorf("style name must come first, got %q", arg.Key)
			}
			if !isIdent(arg.Key) {
				return attrs, fmt.Errorf("invalid style name %q", arg.Key)
			}
			attrs.StyleName = arg.Key
			continue
		}
		if seen[arg.Key] {
			return attrs, fmt.Errorf("duplicate attribute %q", arg.Key)
		}
		seen[arg.Key] = true
		var err error
		switch arg.Key {
		case "font_size":
			attrs.FontSize, err = floatValue(arg)
		case "bias":
			attrs.Bias, err = floatValue(arg)
		case "scale":
			attrs.Scale, err = floatValue(arg)
		case "style":
			attrs.StyleIndex, err = intValue(arg)
		case "align":
			attrs.Align, err = alignValue(*arg.Value)
		default:
			err = fmt.Errorf("unknown attribute %q", arg.Key)
		}
		if err != nil {
			return attrs, err
		}
	}
	return attrs, nil
}

func parseAlignArgs(args []*tagArg) (Attrs, error) {
	if len(args) != 1 || args[0].Value != nil {
		return Attrs{}, fmt.Errorf("align expects one of left, center, right, justify")
	}
	align, err := alignValue(args[0].Key)
	if err != nil {
		return Attrs{}, err
	}
	return Attrs{Align: align}, nil
}

func parseBiasArgs(args []*tagArg) (Attrs, error) {
	if len(args) != 1 || args[0].Value != nil {
		return Attrs{}, fmt.Errorf("bias expects a single number")
	}
	v, err := parseFloat(args[0].Key)
	if err != nil {
		return Attrs{}, err
	}
	return Attrs{Bias: &v}, nil
}

func parseWordArgs(args []*tagArg) (Attrs, error) {
	var attrs Attrs
	seen := map[string]bool{}
	for _, arg := range args {
		if arg.Value == nil {
			return attrs, fmt.Errorf("word attribute %q needs a value", arg.Key)
		}
		if seen[arg.Key] {
			return attrs, fmt.Errorf("duplicate attribute %q", arg.Key)
		}
		seen[arg.Key] = true
		var err error
		switch arg.Key {
		case "bias":
			attrs.Bias, err = floatValue(arg)
		case "scale":
			attrs.Scale, err = floatValue(arg)
		case "style":
			attrs.StyleIndex, err = intValue(arg)
		default:
			err = fmt.Errorf("unknown attribute %q", arg.Key)
		}
		if err != nil {
			return attrs, err
		}
	}
	return attrs, nil
}

func parseMarginArgs(args []*tagArg) (Attrs, error) {
	var m MarginOverride
	fields := map[string]**float64{
		"odd_left":    &m.OddLeft,
		"odd_right":   &m.OddRight,
		"odd_top":     &m.OddTop,
		"odd_bottom":  &m.OddBottom,
		"even_left":   &m.EvenLeft,
		"even_right":  &m.EvenRight,
		"even_top":    &m.EvenTop,
		"even_bottom": &m.EvenBottom,
	}
	for _, arg := range args {
		if arg.Value == nil {
			return Attrs{}, fmt.Errorf("margin attribute %q needs a value", arg.Key)
		}
		field, ok := fields[arg.Key]
		if !ok {
			return Attrs{}, fmt.Errorf("unknown attribute %q", arg.Key)
		}
		if *field != nil {
			return Attrs{}, fmt.Errorf("duplicate attribute %q", arg.Key)
		}
		v, err := floatValue(arg)
		if err != nil {
			return Attrs{}, err
		}
		*field = v
	}
	return Attrs{Margin: &m}, nil
}

func floatValue(arg *tagArg) (*float64, error) {
	v, err := parseFloat(*arg.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", arg.Key, err)
	}
	return &v, nil
}

func intValue(arg *tagArg) (*int, error) {
	v, err := strconv.Atoi(*arg.Value)
	if err != nil {
		return nil, fmt.Errorf("%s: expected integer, got %q", arg.Key, *arg.Value)
	}
	return &v, nil
}

func alignValue(raw string) (*Alignment, error) {
	a, ok := ParseAlignment(raw)
	if !ok {
		return nil, fmt.Errorf("unknown alignment %q", raw)
	}
	return &a, nil
}

func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("expected number, got %q", raw)
	}
	return v, nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// rawTagName extracts the tag name for error reporting when the header does
// not parse.
func rawTagName(raw string) string {
	name := strings.TrimPrefix(strings.TrimPrefix(raw, "["), "/")
	if i := strings.IndexAny(name, ":]"); i >= 0 {
		name = name[:i]
	}
	return name
}

func mustTokenType(name string) lexer.TokenType {
	symbols := markupLexer.Symbols()
	tt, ok := symbols[name]
	if !ok {
		panic(fmt.Sprintf("token %s not defined", name))
	}
	return tt
}
