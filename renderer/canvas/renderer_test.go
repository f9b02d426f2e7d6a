package canvasrenderer

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/renderer"
	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

var testStyle = style.TextStyle{FontSize: 18, Bias: 1.5, Scale: 1, StyleIndex: 1}

func zigzag() stroke.Sequence {
	return stroke.Sequence{
		{X: 5, Y: 0}, {X: 10, Y: 10}, {X: 15, Y: 0, PenUp: true},
		{X: 20, Y: 0}, {X: 25, Y: 5, PenUp: true},
	}
}

func twoPages() *renderer.Document {
	return &renderer.Document{
		Meta:  renderer.Meta{Title: "test"},
		Pages: []renderer.Page{{Number: 1, Width: 100, Height: 80}, {Number: 2, Width: 100, Height: 80}},
		Placements: []renderer.Placement{
			{Page: 1, Word: layout.PlacedWord{Text: "a", X: 10, Y: 20}, Strokes: zigzag(), Style: testStyle},
			{Page: 2, Word: layout.PlacedWord{Text: "b", X: 30, Y: 20}, Strokes: zigzag(), Style: testStyle},
		},
	}
}

func TestRenderPDF(t *testing.T) {
	out, err := NewRenderer().Render(twoPages())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Fatalf("输出不是 PDF: %q", out[:min(len(out), 16)])
	}
}

func TestRenderSVG(t *testing.T) {
	r := NewRendererWithOptions(Options{Format: FormatSVG})
	out, err := r.Render(twoPages())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(out), "<svg") {
		t.Fatalf("输出不是 SVG")
	}
	if !strings.Contains(string(out), "<path") {
		t.Fatalf("SVG 中缺少笔画路径")
	}

	page, err := r.RenderPage(twoPages(), 2)
	if err != nil {
		t.Fatalf("RenderPage error: %v", err)
	}
	if !strings.Contains(string(page), "<svg") {
		t.Fatalf("单页输出不是 SVG")
	}
	if _, err := r.RenderPage(twoPages(), 3); err == nil {
		t.Fatalf("不存在的页码应报错")
	}
}

func TestRenderRejectsEmpty(t *testing.T) {
	if _, err := NewRenderer().Render(nil); err == nil {
		t.Fatalf("nil 输入应报错")
	}
	if _, err := NewRenderer().Render(&renderer.Document{}); err == nil {
		t.Fatalf("无页面应报错")
	}
}

// TestStrokePathsSplitAtPenUp 验证：每次抬笔开始新路径，横向以最左点为原点，纵向翻转。
func TestStrokePathsSplitAtPenUp(t *testing.T) {
	k := stroke.UnitToMM(testStyle.FontSize, testStyle.Scale)
	paths := strokePaths(zigzag(), k)
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	minX, maxX, minY := math.Inf(1), math.Inf(-1), math.Inf(1)
	for _, pt := range paths[0].Coords() {
		minX = math.Min(minX, pt.X)
		maxX = math.Max(maxX, pt.X)
		minY = math.Min(minY, pt.Y)
	}
	if math.Abs(minX) > 1e-9 {
		t.Fatalf("首笔应从 x=0 开始，got %g", minX)
	}
	if math.Abs(maxX-10*k) > 1e-9 {
		t.Fatalf("首笔宽度错误: got=%g want=%g", maxX, 10*k)
	}
	if math.Abs(minY+10*k) > 1e-9 {
		t.Fatalf("y 轴未翻转: minY=%g", minY)
	}
	if got := strokePaths(nil, k); got != nil {
		t.Fatalf("空序列应返回 nil")
	}
	if got := strokePaths(stroke.Sequence{{X: 1, PenUp: true}}, k); len(got) != 0 {
		t.Fatalf("单点笔画不应生成路径")
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"": FormatPDF, "PDF": FormatPDF, " svg ": FormatSVG}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("png"); err == nil {
		t.Fatalf("png 应报错")
	}
	if FormatSVG.ContentType() != "image/svg+xml" || FormatPDF.Extension() != ".pdf" {
		t.Fatalf("格式元数据错误")
	}
}
