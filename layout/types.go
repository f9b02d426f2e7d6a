package layout

import (
	"github.com/ByLCY/scribe/dsl"
	"github.com/ByLCY/scribe/style"
)

// 该文件定义排版配置与结果结构，供布局计算、重排、渲染与调试 JSON 共用。
// 所有坐标与尺寸均以毫米为单位，边距配置以厘米为单位。

// DocumentConfig 描述页面几何。LineHeight 为 0 时按文本区高度 / NumLines 推导。
type DocumentConfig struct {
	PageWidth  float64     `json:"pageWidth"`
	PageHeight float64     `json:"pageHeight"`
	NumLines   int         `json:"numLines"`
	LineHeight float64     `json:"lineHeight,omitempty"`
	Margins    PageMargins `json:"margins"`
}

// DefaultConfig 返回 A4、32 行、奇数页 4/3/3/3cm 边距的默认配置。
func DefaultConfig() DocumentConfig {
	return DocumentConfig{
		PageWidth:  210,
		PageHeight: 297,
		NumLines:   32,
		Margins:    DefaultMargins(),
	}
}

// PageMargins 保存奇数页边距（cm）；偶数页未显式指定时左右镜像。
type PageMargins struct {
	Left       float64  `json:"left"`
	Right      float64  `json:"right"`
	Top        float64  `json:"top"`
	Bottom     float64  `json:"bottom"`
	EvenLeft   *float64 `json:"evenLeft,omitempty"`
	EvenRight  *float64 `json:"evenRight,omitempty"`
	EvenTop    *float64 `json:"evenTop,omitempty"`
	EvenBottom *float64 `json:"evenBottom,omitempty"`
}

// DefaultMargins 奇数页左 4cm、右/上/下 3cm。
func DefaultMargins() PageMargins {
	return PageMargins{Left: 4, Right: 3, Top: 3, Bottom: 3}
}

// Margin 以毫米为单位。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// UnitKind 区分单词与强制换行/换页。
type UnitKind int

const (
	UnitWord UnitKind = iota
	UnitLineBreak
	UnitPageBreak
)

func (k UnitKind) String() string {
	switch k {
	case UnitLineBreak:
		return "line-break"
	case UnitPageBreak:
		return "page-break"
	default:
		return "word"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k UnitKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// LayoutUnit 是排版的最小输入单位。单词按文档顺序获得连续的 WordID，
// 换行/换页单元的 WordID 为 -1。
type LayoutUnit struct {
	Kind      UnitKind            `json:"kind"`
	WordID    int                 `json:"wordId"`
	Text      string              `json:"text,omitempty"`
	Style     style.TextStyle     `json:"style"`
	Width     float64             `json:"width"`
	Space     float64             `json:"space"`
	Paragraph int                 `json:"paragraph"`
	Run       int                 `json:"run"`
	Offset    int                 `json:"offset"`
	Margins   *dsl.MarginOverride `json:"margins,omitempty"`
	Override  *style.Override     `json:"override,omitempty"`
}

// PlacedWord 是已确定坐标的单词，Y 为基线位置。
type PlacedWord struct {
	WordID int             `json:"wordId"`
	Unit   int             `json:"unit"`
	Text   string          `json:"text"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Width  float64         `json:"width"`
	Style  style.TextStyle `json:"style"`
}

// Line 是一行排版结果。StartUnit/EndUnit 标记该行消费的单元区间 [Start, End)。
type Line struct {
	Page         int           `json:"page"`
	Index        int           `json:"index"`
	Baseline     float64       `json:"baseline"`
	Left         float64       `json:"left"`
	Width        float64       `json:"width"`
	Requested    dsl.Alignment `json:"requested"`
	Applied      dsl.Alignment `json:"applied"`
	Paragraph    int           `json:"paragraph"`
	ParagraphEnd bool          `json:"paragraphEnd"`
	StartUnit    int           `json:"startUnit"`
	EndUnit      int           `json:"endUnit"`
	Words        []PlacedWord  `json:"words"`
}

// Page 记录页码、该页生效的边距与行（Document.Lines 的下标）。
type Page struct {
	Number     int     `json:"number"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Margin     Margin  `json:"margin"`
	LineHeight float64 `json:"lineHeight"`
	Lines      []int   `json:"lines"`
}

// Document 保存完整排版结果。Lines 按文档顺序平铺，是唯一可信来源。
type Document struct {
	Config DocumentConfig `json:"config"`
	Units  []LayoutUnit   `json:"units"`
	Lines  []Line         `json:"lines"`
	Pages  []Page         `json:"pages"`

	wordUnits []int
}

// WordCount 返回单词数量。
func (d *Document) WordCount() int {
	return len(d.wordUnits)
}

// Word 按 WordID 返回单元。
func (d *Document) Word(id int) (LayoutUnit, bool) {
	if id < 0 || id >= len(d.wordUnits) {
		return LayoutUnit{}, false
	}
	return d.Units[d.wordUnits[id]], true
}

// LineOf 返回包含该单词的行下标。
func (d *Document) LineOf(wordID int) (int, bool) {
	if wordID < 0 || wordID >= len(d.wordUnits) {
		return 0, false
	}
	unit := d.wordUnits[wordID]
	for i, ln := range d.Lines {
		if unit >= ln.StartUnit && unit < ln.EndUnit {
			return i, true
		}
	}
	return 0, false
}

// Placement 返回单词当前的坐标。
func (d *Document) Placement(wordID int) (PlacedWord, int, bool) {
	idx, ok := d.LineOf(wordID)
	if !ok {
		return PlacedWord{}, 0, false
	}
	for _, w := range d.Lines[idx].Words {
		if w.WordID == wordID {
			return w, d.Lines[idx].Page, true
		}
	}
	return PlacedWord{}, 0, false
}

// PageLines 返回指定页的行。
func (d *Document) PageLines(number int) []Line {
	if number < 1 || number > len(d.Pages) {
		return nil
	}
	idx := d.Pages[number-1].Lines
	out := make([]Line, 0, len(idx))
	for _, i := range idx {
		out = append(out, d.Lines[i])
	}
	return out
}

// Clone 深拷贝文档，重排时不影响原始结果。
func (d *Document) Clone() *Document {
	out := &Document{
		Config:    d.Config,
		Units:     append([]LayoutUnit(nil), d.Units...),
		Lines:     make([]Line, len(d.Lines)),
		Pages:     make([]Page, len(d.Pages)),
		wordUnits: append([]int(nil), d.wordUnits...),
	}
	for i, ln := range d.Lines {
		ln.Words = append([]PlacedWord(nil), ln.Words...)
		out.Lines[i] = ln
	}
	for i, p := range d.Pages {
		p.Lines = append([]int(nil), p.Lines...)
		out.Pages[i] = p
	}
	return out
}

// reindex 重建 WordID 映射与各页的行下标。
func (d *Document) reindex() {
	d.wordUnits = d.wordUnits[:0]
	for i, u := range d.Units {
		if u.Kind == UnitWord {
			d.wordUnits = append(d.wordUnits, i)
		}
	}
	for i := range d.Pages {
		d.Pages[i].Lines = d.Pages[i].Lines[:0]
	}
	for i, ln := range d.Lines {
		if p := ln.Page - 1; p >= 0 && p < len(d.Pages) {
			d.Pages[p].Lines = append(d.Pages[p].Lines, i)
		}
	}
}
