package layout

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ByLCY/scribe/dsl"
	"github.com/ByLCY/scribe/style"
)

// fixedMeasurer 每个字符 1mm、空格 1mm，可按单词覆盖宽度。
type fixedMeasurer struct {
	overrides map[string]float64
}

func (m fixedMeasurer) MeasureWord(text string, _ style.TextStyle) float64 {
	if w, ok := m.overrides[text]; ok {
		return w
	}
	return float64(len([]rune(text)))
}

func (fixedMeasurer) SpaceWidth(style.TextStyle) float64 { return 1 }

func testConfig() DocumentConfig {
	return DocumentConfig{
		PageWidth:  50,
		PageHeight: 100,
		NumLines:   10,
		Margins:    PageMargins{Left: 1, Right: 1, Top: 1, Bottom: 1},
	}
}

func layoutMarkup(t *testing.T, cfg DocumentConfig, m Measurer, markup string) *Document {
	t.Helper()
	tree, err := dsl.ParseString(markup)
	if err != nil {
		t.Fatalf("解析标记失败: %v", err)
	}
	runs, err := style.Resolve(tree)
	if err != nil {
		t.Fatalf("样式解析失败: %v", err)
	}
	doc, err := NewEngine(cfg, BuildOptions{Measurer: m}).Layout(runs)
	if err != nil {
		t.Fatalf("排版失败: %v", err)
	}
	return doc
}

func lineTexts(ln Line) string {
	var parts []string
	for _, w := range ln.Words {
		parts = append(parts, w.Text)
	}
	return strings.Join(parts, " ")
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestGreedyFill(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, "[align:left]aaaa bbbb cccc dddd eeee ffff gggg[/align]")
	if len(doc.Lines) != 2 {
		t.Fatalf("期望 2 行，实际 %d", len(doc.Lines))
	}
	if got := lineTexts(doc.Lines[0]); got != "aaaa bbbb cccc dddd eeee ffff" {
		t.Fatalf("第一行内容不符: %q", got)
	}
	if got := lineTexts(doc.Lines[1]); got != "gggg" {
		t.Fatalf("第二行内容不符: %q", got)
	}
	first := doc.Lines[0]
	if !near(first.Left, 10) || !near(first.Width, 30) {
		t.Fatalf("行区域不符: left=%g width=%g", first.Left, first.Width)
	}
	if !near(first.Baseline, 18) || !near(doc.Lines[1].Baseline, 26) {
		t.Fatalf("基线位置不符: %g %g", first.Baseline, doc.Lines[1].Baseline)
	}
	for i, w := range first.Words {
		if w.WordID != i {
			t.Fatalf("WordID 应按文档顺序递增: %+v", first.Words)
		}
		if !near(w.X, 10+float64(i)*5) {
			t.Fatalf("左对齐位置不符: word %d x=%g", i, w.X)
		}
	}
}

func TestOverflowWordPlacedAlone(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, "[align:left]ab "+strings.Repeat("x", 40)+" cd[/align]")
	if len(doc.Lines) != 3 {
		t.Fatalf("期望 3 行，实际 %d", len(doc.Lines))
	}
	if len(doc.Lines[1].Words) != 1 || doc.Lines[1].Words[0].Width != 40 {
		t.Fatalf("超宽单词应单独成行: %+v", doc.Lines[1].Words)
	}
}

func TestJustifyExemptsLastLine(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, "[align:justify]aaa bbb cc dddd eee ffff gg hhhhh[/align]")
	if len(doc.Lines) < 2 {
		t.Fatalf("需要至少两行，实际 %d", len(doc.Lines))
	}
	first := doc.Lines[0]
	if first.Applied != dsl.AlignJustify {
		t.Fatalf("首行应两端对齐，实际 %s", first.Applied)
	}
	lastWord := first.Words[len(first.Words)-1]
	if !near(lastWord.X+lastWord.Width, first.Left+first.Width) {
		t.Fatalf("两端对齐的行应占满宽度: end=%g", lastWord.X+lastWord.Width)
	}
	last := doc.Lines[len(doc.Lines)-1]
	if !last.ParagraphEnd || last.Requested != dsl.AlignJustify || last.Applied != dsl.AlignLeft {
		t.Fatalf("段落末行应退化为左对齐: %+v", last)
	}
	for k := 1; k < len(last.Words); k++ {
		prev := last.Words[k-1]
		if !near(last.Words[k].X, prev.X+prev.Width+1) {
			t.Fatalf("末行单词应紧密排列: %+v", last.Words)
		}
	}
}

func TestSingleLineJustifyScenario(t *testing.T) {
	doc := layoutMarkup(t, DefaultConfig(), nil, "[style:title]Hi[/style]\n[align:justify]a bb ccc[/align]")
	if len(doc.Lines) != 2 {
		t.Fatalf("期望 2 行，实际 %d", len(doc.Lines))
	}
	title := doc.Lines[0]
	if title.Applied != dsl.AlignCenter {
		t.Fatalf("标题应居中，实际 %s", title.Applied)
	}
	body := doc.Lines[1]
	if body.Applied != dsl.AlignLeft {
		t.Fatalf("唯一一行也是段落末行，应左对齐，实际 %s", body.Applied)
	}
	if !near(body.Words[0].X, body.Left) {
		t.Fatalf("首词应从左边距开始: %g", body.Words[0].X)
	}
	space := CharWidthMeasurer{}.SpaceWidth(body.Words[0].Style)
	if !near(body.Words[1].X, body.Words[0].X+body.Words[0].Width+space) {
		t.Fatalf("不应插入额外间距: %+v", body.Words)
	}
}

func TestRightAndCenterClamp(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, "[align:right]abc[/align]\n\n[align:center]"+strings.Repeat("y", 35)+"[/align]")
	right := doc.Lines[0]
	if !near(right.Words[0].X, 10+30-3) {
		t.Fatalf("右对齐位置不符: %g", right.Words[0].X)
	}
	center := doc.Lines[1]
	if !near(center.Words[0].X, center.Left) {
		t.Fatalf("超宽居中行不应越过左边距: %g", center.Words[0].X)
	}
}

func TestMarginMirroring(t *testing.T) {
	cfg := DefaultConfig()
	doc := layoutMarkup(t, cfg, nil, "one[page-break]two")
	if len(doc.Pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(doc.Pages))
	}
	p1, p2 := doc.Pages[0].Margin, doc.Pages[1].Margin
	if !near(p1.Left, 40) || !near(p1.Right, 30) {
		t.Fatalf("奇数页边距不符: %+v", p1)
	}
	if !near(p2.Left, 30) || !near(p2.Right, 40) {
		t.Fatalf("偶数页应镜像: %+v", p2)
	}
	if !near(doc.Lines[1].Left, 30) {
		t.Fatalf("偶数页行应使用镜像后的左边距: %g", doc.Lines[1].Left)
	}
}

func TestExplicitEvenMargins(t *testing.T) {
	even := 2.0
	cfg := DefaultConfig()
	cfg.Margins.EvenLeft = &even
	m := cfg.Margins.Resolve(2, nil)
	if !near(m.Left, 20) || !near(m.Right, 40) {
		t.Fatalf("显式偶数页边距应优先: %+v", m)
	}

	blockEven := 1.5
	oddLeft := 5.0
	o := &dsl.MarginOverride{OddLeft: &oddLeft, EvenRight: &blockEven}
	if got := cfg.Margins.Resolve(1, o); !near(got.Left, 50) {
		t.Fatalf("边距块奇数页取值不符: %+v", got)
	}
	got := cfg.Margins.Resolve(2, o)
	if !near(got.Right, 15) || !near(got.Left, 20) {
		t.Fatalf("边距块偶数页取值不符: %+v", got)
	}
}

func TestMarginBlockScope(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, "[align:left]a[/align]\n\n[margin:odd_left=2][align:left]b[/align][/margin]\n\n[align:left]c[/align]")
	if len(doc.Lines) != 3 {
		t.Fatalf("期望 3 行，实际 %d", len(doc.Lines))
	}
	if !near(doc.Lines[0].Left, 10) || !near(doc.Lines[1].Left, 20) || !near(doc.Lines[2].Left, 10) {
		t.Fatalf("边距块只作用于其范围: %g %g %g", doc.Lines[0].Left, doc.Lines[1].Left, doc.Lines[2].Left)
	}
	if !near(doc.Lines[1].Width, 20) {
		t.Fatalf("边距块内可用宽度不符: %g", doc.Lines[1].Width)
	}
}

func TestAutomaticPageBreakScenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumLines = 1
	doc := layoutMarkup(t, cfg, nil, "first paragraph\n\nsecond paragraph")
	if len(doc.Pages) != 2 {
		t.Fatalf("期望 2 页，实际 %d", len(doc.Pages))
	}
	if doc.Lines[0].Page != 1 || doc.Lines[1].Page != 2 {
		t.Fatalf("段落应分布在两页: %d %d", doc.Lines[0].Page, doc.Lines[1].Page)
	}
	if !near(doc.Pages[1].Margin.Left, 30) || !near(doc.Pages[1].Margin.Right, 40) {
		t.Fatalf("第 2 页应镜像边距: %+v", doc.Pages[1].Margin)
	}
}

func TestBreaks(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, "a[line-break][line-break]b[page-break][page-break]c[page-break]")
	if len(doc.Lines) != 4 {
		t.Fatalf("期望 4 行（含一空行），实际 %d", len(doc.Lines))
	}
	if len(doc.Lines[1].Words) != 0 {
		t.Fatalf("连续换行应产生空行")
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("不应产生空页，实际 %d 页", len(doc.Pages))
	}
	if len(doc.Pages[0].Lines) != 3 || len(doc.Pages[1].Lines) != 1 {
		t.Fatalf("每页行数不符: %v %v", doc.Pages[0].Lines, doc.Pages[1].Lines)
	}
}

func TestPageCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.NumLines = 3
	words := strings.TrimSpace(strings.Repeat("wwwwwwwwwwwwwww ", 7))
	doc := layoutMarkup(t, cfg, fixedMeasurer{}, "[align:left]"+words+"[/align]")
	if len(doc.Lines) != 7 || len(doc.Pages) != 3 {
		t.Fatalf("行/页数量不符: %d 行 %d 页", len(doc.Lines), len(doc.Pages))
	}
	for _, p := range doc.Pages {
		if len(p.Lines) > cfg.NumLines {
			t.Fatalf("第 %d 页超出行数上限: %d", p.Number, len(p.Lines))
		}
	}
	if doc.Lines[3].Index != 0 || doc.Lines[3].Page != 2 {
		t.Fatalf("第 4 行应位于第 2 页首行: %+v", doc.Lines[3])
	}
}

func TestNonPositiveUsableWidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Margins = PageMargins{Left: 11, Right: 11, Top: 3, Bottom: 3}
	tree, _ := dsl.ParseString("hello")
	runs, _ := style.Resolve(tree)
	_, err := NewEngine(cfg, BuildOptions{}).Layout(runs)
	if !errors.Is(err, ErrNonPositiveUsableWidth) {
		t.Fatalf("期望 NonPositiveUsableWidth，实际 %v", err)
	}
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Page != 1 {
		t.Fatalf("错误应包含页码: %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumLines = 0
	if _, err := NewEngine(cfg, BuildOptions{}).Layout(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("期望配置错误，实际 %v", err)
	}
}

func TestCharWidthMeasurer(t *testing.T) {
	ts := style.TextStyle{FontSize: 10, Scale: 1}
	got := CharWidthMeasurer{}.MeasureWord("ai€", ts)
	want := (0.6 + 0.3 + 1.0) * 10 * PxToMm
	if !near(got, want) {
		t.Fatalf("宽度估算不符: got=%g want=%g", got, want)
	}
}

func TestWordOffsets(t *testing.T) {
	input := "[style:body]alpha  beta[/style]"
	doc := layoutMarkup(t, DefaultConfig(), nil, input)
	beta, ok := doc.Word(1)
	if !ok || beta.Offset != strings.Index(input, "beta") {
		t.Fatalf("单词偏移不符: %+v", beta)
	}
}
