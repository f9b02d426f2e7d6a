package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"strings"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"
	"github.com/tdewolff/canvas/renderers/svg"

	"github.com/ByLCY/scribe/renderer"
	"github.com/ByLCY/scribe/stroke"
)

// Format 选择输出格式。
type Format string

const (
	FormatPDF Format = "pdf"
	FormatSVG Format = "svg"
)

// ParseFormat 识别 pdf/svg（大小写不敏感）。
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatSVG:
		return FormatSVG, nil
	}
	return "", fmt.Errorf("不支持的输出格式 %q", s)
}

// Extension 返回文件扩展名（含点）。
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType 返回对应的 MIME 类型。
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "application/pdf"
}

const (
	defaultStrokeWidth = 0.35
	// SVG 多页输出时页与页之间的间距（mm）。
	svgPageGap = 10.0
)

// Options configures the canvas renderer.
type Options struct {
	Format Format
	// StrokeWidth 为笔迹线宽（mm），0 时使用默认值。
	StrokeWidth float64
	Ink         color.Color
	Paper       color.Color
}

// Renderer draws stroke placements via github.com/tdewolff/canvas.
type Renderer struct {
	format      Format
	strokeWidth float64
	ink         color.Color
	paper       color.Color
}

var _ renderer.Renderer = (*Renderer)(nil)

// NewRenderer creates a PDF renderer with default ink.
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions creates a renderer; zero fields take defaults.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{
		format:      opts.Format,
		strokeWidth: opts.StrokeWidth,
		ink:         opts.Ink,
		paper:       opts.Paper,
	}
	if r.format == "" {
		r.format = FormatPDF
	}
	if r.strokeWidth <= 0 {
		r.strokeWidth = defaultStrokeWidth
	}
	if r.ink == nil {
		r.ink = canvas.Hex("#1e1e28")
	}
	return r
}

// Format 返回渲染器的输出格式。
func (r *Renderer) Format() Format { return r.format }

// Render 将全部页面输出为一个文件。PDF 为多页文档；SVG 将各页纵向排列。
func (r *Renderer) Render(doc *renderer.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("渲染输入为空")
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("缺少可渲染的页面")
	}
	switch r.format {
	case FormatSVG:
		return r.renderSVG(doc)
	default:
		return r.renderPDF(doc)
	}
}

func (r *Renderer) renderPDF(doc *renderer.Document) ([]byte, error) {
	var buf bytes.Buffer
	first := doc.Pages[0]
	writer := pdf.New(&buf, first.Width, first.Height, nil)
	applyMeta(writer, doc.Meta)
	for i, page := range doc.Pages {
		if i > 0 {
			writer.NewPage(page.Width, page.Height)
		}
		c := canvas.New(page.Width, page.Height)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 使坐标与布局保持左上角为原点
		r.drawPage(ctx, page, doc.PagePlacements(page.Number), 0)
		c.RenderTo(writer)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) renderSVG(doc *renderer.Document) ([]byte, error) {
	width, height := 0.0, 0.0
	for i, p := range doc.Pages {
		width = max(width, p.Width)
		if i > 0 {
			height += svgPageGap
		}
		height += p.Height
	}
	c := canvas.New(width, height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)
	offset := 0.0
	for _, page := range doc.Pages {
		r.drawPage(ctx, page, doc.PagePlacements(page.Number), offset)
		offset += page.Height + svgPageGap
	}
	var buf bytes.Buffer
	if err := writeSVG(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderPage 将单页输出为 SVG，用于预览。
func (r *Renderer) RenderPage(doc *renderer.Document, number int) ([]byte, error) {
	if doc == nil || number < 1 || number > len(doc.Pages) {
		return nil, fmt.Errorf("页码 %d 不存在", number)
	}
	page := doc.Pages[number-1]
	c := canvas.New(page.Width, page.Height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)
	r.drawPage(ctx, page, doc.PagePlacements(page.Number), 0)
	var buf bytes.Buffer
	if err := writeSVG(&buf, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSVG(w io.Writer, c *canvas.Canvas) error {
	writer := svg.New(w, c.W, c.H, nil)
	c.RenderTo(writer)
	if err := writer.Close(); err != nil {
		return fmt.Errorf("写入 SVG 失败: %w", err)
	}
	return nil
}

func applyMeta(writer *pdf.PDF, meta renderer.Meta) {
	if writer == nil {
		return
	}
	keywords := strings.Join(meta.Keywords, ", ")
	writer.SetInfo(meta.Title, meta.Subject, keywords, meta.Author, meta.Creator)
}

// drawPage 绘制一页的全部笔画，offsetY 为该页在画布上的纵向偏移（mm）。
func (r *Renderer) drawPage(ctx *canvas.Context, page renderer.Page, placements []renderer.Placement, offsetY float64) {
	if r.paper != nil {
		ctx.SetFillColor(r.paper)
		ctx.SetStrokeColor(color.RGBA{0, 0, 0, 0})
		ctx.DrawPath(0, offsetY, canvas.Rectangle(page.Width, page.Height))
	}

	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeColor(r.ink)
	ctx.SetStrokeWidth(r.strokeWidth)
	ctx.SetStrokeCapper(canvas.RoundCap)
	ctx.SetStrokeJoiner(canvas.RoundJoin)
	for _, pl := range placements {
		k := stroke.UnitToMM(pl.Style.FontSize, pl.Style.Scale)
		for _, p := range strokePaths(pl.Strokes, k) {
			ctx.DrawPath(pl.Word.X, pl.Word.Y+offsetY, p)
		}
	}
}

// strokePaths 将笔画序列转换为以单词左侧基线为原点的路径（mm）。
// 模型坐标 y 向上，画布为 y 向下，因此取反。
func strokePaths(seq stroke.Sequence, k float64) []*canvas.Path {
	if len(seq) == 0 {
		return nil
	}
	minX, _, _, _ := seq.Extent()
	var out []*canvas.Path
	for _, s := range seq.Strokes() {
		if len(s) < 2 {
			continue
		}
		p := &canvas.Path{}
		p.MoveTo((s[0].X-minX)*k, -s[0].Y*k)
		for _, pt := range s[1:] {
			p.LineTo((pt.X-minX)*k, -pt.Y*k)
		}
		out = append(out, p)
	}
	return out
}
