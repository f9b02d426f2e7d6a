package layout

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/ByLCY/scribe/dsl"
	"github.com/ByLCY/scribe/style"
)

const fitEpsilon = 1e-9

// Engine 将样式化的 run 按贪心算法排成行与页。
type Engine struct {
	cfg      DocumentConfig
	measurer Measurer
}

// NewEngine 创建排版引擎；未提供 Measurer 时使用字符宽度表。
func NewEngine(cfg DocumentConfig, opts BuildOptions) *Engine {
	m := opts.Measurer
	if m == nil {
		m = CharWidthMeasurer{}
	}
	return &Engine{cfg: cfg, measurer: m}
}

// Config 返回引擎使用的页面配置。
func (e *Engine) Config() DocumentConfig {
	return e.cfg
}

// Layout 计算所有单词的位置。
func (e *Engine) Layout(runs []style.Run) (*Document, error) {
	if err := validateConfig(e.cfg); err != nil {
		return nil, err
	}
	doc := &Document{Config: e.cfg, Units: e.units(runs)}
	f := &filler{cfg: e.cfg, units: doc.Units}
	if err := f.run(0); err != nil {
		return nil, err
	}
	doc.Lines = f.lines
	doc.Pages = f.pages
	doc.reindex()
	return doc, nil
}

// units 将 run 拆成单词与断行单元，单词继承 run 的样式。
func (e *Engine) units(runs []style.Run) []LayoutUnit {
	var out []LayoutUnit
	wordID := 0
	for _, run := range runs {
		switch run.Break {
		case style.BreakLine, style.BreakPage:
			kind := UnitLineBreak
			if run.Break == style.BreakPage {
				kind = UnitPageBreak
			}
			out = append(out, LayoutUnit{
				Kind:      kind,
				WordID:    -1,
				Style:     run.Style,
				Paragraph: run.Paragraph,
				Run:       run.Index,
				Offset:    run.Offset,
				Margins:   run.Margins,
			})
			continue
		}
		for _, w := range splitWords(run.Text) {
			out = append(out, LayoutUnit{
				Kind:      UnitWord,
				WordID:    wordID,
				Text:      w.text,
				Style:     run.Style,
				Width:     e.measurer.MeasureWord(w.text, run.Style),
				Space:     e.measurer.SpaceWidth(run.Style),
				Paragraph: run.Paragraph,
				Run:       run.Index,
				Offset:    run.Offset + w.at,
				Margins:   run.Margins,
				Override:  run.Word,
			})
			wordID++
		}
	}
	return out
}

type wordSpan struct {
	text string
	at   int
}

func splitWords(text string) []wordSpan {
	var out []wordSpan
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, wordSpan{text: text[start:i], at: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, wordSpan{text: text[start:], at: start})
	}
	return out
}

func validateConfig(cfg DocumentConfig) error {
	switch {
	case cfg.PageWidth <= 0 || cfg.PageHeight <= 0:
		return &LayoutError{Kind: InvalidConfig, Detail: fmt.Sprintf("page size %gx%g", cfg.PageWidth, cfg.PageHeight)}
	case cfg.NumLines <= 0:
		return &LayoutError{Kind: InvalidConfig, Detail: fmt.Sprintf("num_lines %d", cfg.NumLines)}
	case cfg.LineHeight < 0:
		return &LayoutError{Kind: InvalidConfig, Detail: fmt.Sprintf("line height %g", cfg.LineHeight)}
	}
	m := cfg.Margins
	for _, v := range []float64{m.Left, m.Right, m.Top, m.Bottom} {
		if v < 0 {
			return &LayoutError{Kind: InvalidConfig, Detail: fmt.Sprintf("negative margin %g", v)}
		}
	}
	return nil
}

// Resolve 计算指定页码生效的边距（mm）。偶数页默认左右镜像奇数页；
// 配置或边距块中显式给出的偶数页取值优先于镜像。
func (m PageMargins) Resolve(page int, o *dsl.MarginOverride) Margin {
	left, right, top, bottom := m.Left, m.Right, m.Top, m.Bottom
	if o != nil {
		left = pick(left, o.OddLeft)
		right = pick(right, o.OddRight)
		top = pick(top, o.OddTop)
		bottom = pick(bottom, o.OddBottom)
	}
	if page%2 == 0 {
		left, right = right, left
		left = pick(left, m.EvenLeft)
		right = pick(right, m.EvenRight)
		top = pick(top, m.EvenTop)
		bottom = pick(bottom, m.EvenBottom)
		if o != nil {
			left = pick(left, o.EvenLeft)
			right = pick(right, o.EvenRight)
			top = pick(top, o.EvenTop)
			bottom = pick(bottom, o.EvenBottom)
		}
	}
	return Margin{
		Top:    CM(top).ToMM(),
		Right:  CM(right).ToMM(),
		Bottom: CM(bottom).ToMM(),
		Left:   CM(left).ToMM(),
	}
}

func pick(v float64, p *float64) float64 {
	if p != nil {
		return *p
	}
	return v
}

// draft 是正在填充的行。
type draft struct {
	start     int
	words     []int
	width     float64
	margin    Margin
	usable    float64
	paragraph int
}

// filler 执行贪心填充。stop 用于重排时检测与旧结果重新汇合。
type filler struct {
	cfg       DocumentConfig
	units     []LayoutUnit
	lines     []Line
	pages     []Page
	page      int
	pageLines int
	breakPage bool
	cur       *draft
	stop      func(start, page, index int) bool
}

func (f *filler) run(from int) error {
	for i := from; i < len(f.units); i++ {
		u := f.units[i]
		switch u.Kind {
		case UnitWord:
			if f.cur != nil && f.cur.paragraph != u.Paragraph {
				f.closeLine(i, true)
			}
			if f.cur != nil {
				if f.cur.width+u.Space+u.Width <= f.cur.usable+fitEpsilon {
					f.cur.words = append(f.cur.words, i)
					f.cur.width += u.Space + u.Width
					continue
				}
				f.closeLine(i, false)
			}
			stopped, err := f.openLine(i)
			if err != nil || stopped {
				return err
			}
			// 超宽单词单独成行
			f.cur.words = append(f.cur.words, i)
			f.cur.width = u.Width
		case UnitLineBreak:
			if f.cur != nil {
				f.closeLine(i+1, true)
				continue
			}
			stopped, err := f.openLine(i)
			if err != nil || stopped {
				return err
			}
			f.closeLine(i+1, true)
		case UnitPageBreak:
			if f.cur != nil {
				f.closeLine(i, true)
			}
			if f.pageLines > 0 {
				f.breakPage = true
			}
		}
	}
	if f.cur != nil {
		f.closeLine(len(f.units), true)
	}
	return nil
}

// openLine 为单元 i 开一新行，必要时先开新页；返回 true 表示已与旧排版汇合。
func (f *filler) openLine(i int) (bool, error) {
	u := f.units[i]
	if f.page == 0 || f.breakPage || f.pageLines >= f.cfg.NumLines {
		if f.stop != nil && f.stop(i, f.page+1, 0) {
			return true, nil
		}
		if err := f.openPage(u); err != nil {
			return false, err
		}
	} else if f.stop != nil && f.stop(i, f.page, f.pageLines) {
		return true, nil
	}

	pg := f.pages[f.page-1]
	m := f.cfg.Margins.Resolve(f.page, u.Margins)
	m.Top, m.Bottom = pg.Margin.Top, pg.Margin.Bottom
	usable := f.cfg.PageWidth - m.Left - m.Right
	if usable <= 0 {
		return false, &LayoutError{
			Kind:   NonPositiveUsableWidth,
			Page:   f.page,
			Offset: u.Offset,
			Detail: fmt.Sprintf("page width %gmm, margins %gmm + %gmm", f.cfg.PageWidth, m.Left, m.Right),
		}
	}
	f.cur = &draft{start: i, margin: m, usable: usable, paragraph: u.Paragraph}
	return false, nil
}

func (f *filler) openPage(u LayoutUnit) error {
	number := f.page + 1
	m := f.cfg.Margins.Resolve(number, u.Margins)
	textHeight := f.cfg.PageHeight - m.Top - m.Bottom
	if textHeight <= 0 {
		return &LayoutError{
			Kind:   NonPositiveUsableHeight,
			Page:   number,
			Offset: u.Offset,
			Detail: fmt.Sprintf("page height %gmm, margins %gmm + %gmm", f.cfg.PageHeight, m.Top, m.Bottom),
		}
	}
	lineHeight := f.cfg.LineHeight
	if lineHeight <= 0 {
		lineHeight = textHeight / float64(f.cfg.NumLines)
	}
	f.page = number
	f.pageLines = 0
	f.breakPage = false
	f.pages = append(f.pages, Page{
		Number:     number,
		Width:      f.cfg.PageWidth,
		Height:     f.cfg.PageHeight,
		Margin:     m,
		LineHeight: lineHeight,
	})
	return nil
}

// closeLine 结束当前行，end 为下一待处理单元。
func (f *filler) closeLine(end int, paragraphEnd bool) {
	d := f.cur
	f.cur = nil
	pg := f.pages[f.page-1]
	ln := Line{
		Page:         f.page,
		Index:        f.pageLines,
		Baseline:     pg.Margin.Top + float64(f.pageLines+1)*pg.LineHeight,
		Left:         d.margin.Left,
		Width:        d.usable,
		Requested:    f.units[d.start].Style.Align,
		Paragraph:    d.paragraph,
		ParagraphEnd: paragraphEnd,
		StartUnit:    d.start,
		EndUnit:      end,
	}
	f.place(&ln, d.words)
	f.lines = append(f.lines, ln)
	f.pageLines++
}

// place 按对齐方式计算单词坐标。两端对齐时段落末行与单词行退化为左对齐；
// 右对齐与居中在内容超宽时不越过左边距。
func (f *filler) place(ln *Line, words []int) {
	applied := ln.Requested
	if applied == dsl.AlignJustify && (ln.ParagraphEnd || len(words) < 2) {
		applied = dsl.AlignLeft
	}
	ln.Applied = applied

	var total, spaces float64
	for k, ui := range words {
		total += f.units[ui].Width
		if k > 0 {
			spaces += f.units[ui].Space
		}
	}
	content := total + spaces

	x := ln.Left + alignOffset(ln.Width, content, applied)
	var extra float64
	if applied == dsl.AlignJustify && ln.Width > content {
		extra = (ln.Width - content) / float64(len(words)-1)
	}

	ln.Words = make([]PlacedWord, 0, len(words))
	for k, ui := range words {
		u := f.units[ui]
		if k > 0 {
			x += u.Space + extra
		}
		ln.Words = append(ln.Words, PlacedWord{
			WordID: u.WordID,
			Unit:   ui,
			Text:   u.Text,
			X:      x,
			Y:      ln.Baseline,
			Width:  u.Width,
			Style:  u.Style,
		})
		x += u.Width
	}
}

func alignOffset(container, width float64, align dsl.Alignment) float64 {
	if container <= width {
		return 0
	}
	switch align {
	case dsl.AlignCenter:
		return (container - width) / 2
	case dsl.AlignRight:
		return container - width
	default:
		return 0
	}
}

// CharCount 返回单词的字符数，用于统计元数据。
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}
