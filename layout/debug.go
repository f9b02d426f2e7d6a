package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ByLCY/scribe/dsl"
)

// debugView 是便于人工检查的排版摘要：每页每行的文本、对齐与剩余宽度。
type debugView struct {
	Config DocumentConfig `json:"config"`
	Words  int            `json:"words"`
	Pages  []debugPage    `json:"pages"`
	Units  []LayoutUnit   `json:"units"`
}

type debugPage struct {
	Number int         `json:"number"`
	Margin Margin      `json:"margin"`
	Lines  []debugLine `json:"lines"`
}

type debugLine struct {
	Index     int           `json:"index"`
	Baseline  float64       `json:"baseline"`
	Text      string        `json:"text"`
	Requested dsl.Alignment `json:"requested"`
	Applied   dsl.Alignment `json:"applied"`
	// Slack 为行宽减去单词与最小间距后的剩余宽度（mm）。
	Slack float64      `json:"slack"`
	Words []PlacedWord `json:"words"`
}

// WriteDebugJSON 将排版结果输出为 JSON，便于调试或可视化。
func WriteDebugJSON(doc *Document, path string) error {
	if doc == nil {
		return nil
	}
	data, err := json.MarshalIndent(newDebugView(doc), "", "  ")
	if err != nil {
		return fmt.Errorf("编码调试 JSON 失败: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func newDebugView(doc *Document) debugView {
	v := debugView{Config: doc.Config, Words: doc.WordCount(), Units: doc.Units}
	for _, p := range doc.Pages {
		dp := debugPage{Number: p.Number, Margin: p.Margin}
		for _, idx := range p.Lines {
			dp.Lines = append(dp.Lines, newDebugLine(doc, doc.Lines[idx]))
		}
		v.Pages = append(v.Pages, dp)
	}
	return v
}

func newDebugLine(doc *Document, ln Line) debugLine {
	texts := make([]string, len(ln.Words))
	used := 0.0
	for i, w := range ln.Words {
		texts[i] = w.Text
		used += w.Width
		if i > 0 {
			used += doc.Units[w.Unit].Space
		}
	}
	return debugLine{
		Index:     ln.Index,
		Baseline:  ln.Baseline,
		Text:      strings.Join(texts, " "),
		Requested: ln.Requested,
		Applied:   ln.Applied,
		Slack:     ln.Width - used,
		Words:     ln.Words,
	}
}
