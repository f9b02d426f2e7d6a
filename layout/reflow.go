package layout

import (
	"fmt"
	"sort"
)

// ReflowResult 描述一次局部重排的影响范围。
type ReflowResult struct {
	// Lines 为重新计算的行在新 Document.Lines 中的下标。
	Lines []int `json:"lines"`
	// Pages 为受影响的页码（升序）。
	Pages []int `json:"pages"`
	// Converged 表示重排在文档结束前与旧排版汇合。
	Converged bool `json:"converged"`
}

// Reflow 更新单词宽度，并从其所在行的前一行开始重新贪心填充，
// 一旦新行与旧行在同一单元、同一页、同一行号处开始即停止，其余行原样保留。
func (d *Document) Reflow(wordID int, width float64) (ReflowResult, error) {
	if wordID < 0 || wordID >= len(d.wordUnits) {
		return ReflowResult{}, &LayoutError{Kind: UnknownWord, Detail: fmt.Sprintf("word %d", wordID)}
	}
	unitIdx := d.wordUnits[wordID]
	lineIdx, ok := d.LineOf(wordID)
	if !ok {
		return ReflowResult{}, &LayoutError{Kind: UnknownWord, Detail: fmt.Sprintf("word %d is not placed", wordID)}
	}

	from := lineIdx
	if from > 0 {
		from--
	}
	start := d.Lines[from]

	oldWidth := d.Units[unitIdx].Width
	d.Units[unitIdx].Width = width

	oldByStart := make(map[int]int, len(d.Lines)-from)
	for j := from + 1; j < len(d.Lines); j++ {
		oldByStart[d.Lines[j].StartUnit] = j
	}
	converge := -1

	f := &filler{
		cfg:       d.Config,
		units:     d.Units,
		lines:     append([]Line(nil), d.Lines[:from]...),
		pages:     append([]Page(nil), d.Pages[:start.Page]...),
		page:      start.Page,
		pageLines: start.Index,
	}
	f.stop = func(unit, page, index int) bool {
		if unit <= unitIdx {
			return false
		}
		j, ok := oldByStart[unit]
		if !ok {
			return false
		}
		if old := d.Lines[j]; old.Page == page && old.Index == index {
			converge = j
			return true
		}
		return false
	}
	if err := f.run(start.StartUnit); err != nil {
		d.Units[unitIdx].Width = oldWidth
		return ReflowResult{}, err
	}

	res := ReflowResult{Converged: converge >= 0}
	affected := map[int]bool{}
	oldEnd := len(d.Lines)
	if res.Converged {
		oldEnd = converge
	}
	for j := from; j < oldEnd; j++ {
		affected[d.Lines[j].Page] = true
	}
	for j := from; j < len(f.lines); j++ {
		res.Lines = append(res.Lines, j)
		affected[f.lines[j].Page] = true
	}

	if res.Converged {
		f.lines = append(f.lines, d.Lines[converge:]...)
		for _, p := range d.Pages {
			if p.Number > f.page {
				f.pages = append(f.pages, p)
			}
		}
	}

	d.Lines = f.lines
	d.Pages = f.pages
	d.reindex()

	for p := range affected {
		res.Pages = append(res.Pages, p)
	}
	sort.Ints(res.Pages)
	return res, nil
}
