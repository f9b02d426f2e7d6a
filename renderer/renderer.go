package renderer

import (
	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

// Renderer 将笔画放置列表输出为最终文件，例如 PDF 或 SVG。
type Renderer interface {
	Render(doc *Document) ([]byte, error)
}

// Meta 写入输出文件的文档信息。
type Meta struct {
	Title    string
	Subject  string
	Author   string
	Creator  string
	Keywords []string
}

// Page 为页面几何（mm）。
type Page struct {
	Number int     `json:"number"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Placement 是渲染输入的最小单位：页码、排版位置与该单词的笔画。
// Style 为笔画生成时的样式，决定模型单位到毫米的换算。
type Placement struct {
	Page    int               `json:"page"`
	Word    layout.PlacedWord `json:"word"`
	Strokes stroke.Sequence   `json:"strokes"`
	Style   style.TextStyle   `json:"style"`
}

// Document 按页、行、词的顺序保存放置列表。
type Document struct {
	Meta       Meta        `json:"-"`
	Pages      []Page      `json:"pages"`
	Placements []Placement `json:"placements"`
}

// StrokeSource 按 WordID 返回当前生效的笔画及其样式。
type StrokeSource func(wordID int) (stroke.Sequence, style.TextStyle)

// Assemble 将排版结果与笔画合并为渲染输入。
func Assemble(doc *layout.Document, src StrokeSource) *Document {
	out := &Document{Pages: make([]Page, 0, len(doc.Pages))}
	for _, p := range doc.Pages {
		out.Pages = append(out.Pages, Page{Number: p.Number, Width: p.Width, Height: p.Height})
	}
	for _, ln := range doc.Lines {
		for _, w := range ln.Words {
			seq, ts := src(w.WordID)
			out.Placements = append(out.Placements, Placement{
				Page:    ln.Page,
				Word:    w,
				Strokes: seq,
				Style:   ts,
			})
		}
	}
	return out
}

// PagePlacements 返回指定页的放置列表。
func (d *Document) PagePlacements(number int) []Placement {
	var out []Placement
	for _, p := range d.Placements {
		if p.Page == number {
			out = append(out, p)
		}
	}
	return out
}
