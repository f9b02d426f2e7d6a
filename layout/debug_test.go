package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteDebugJSON(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, "[align:left]aaaa bbbb[/align]")
	path := filepath.Join(t.TempDir(), "layout.json")
	if err := WriteDebugJSON(doc, path); err != nil {
		t.Fatalf("写入调试 JSON 失败: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取调试 JSON 失败: %v", err)
	}
	var view struct {
		Words int `json:"words"`
		Pages []struct {
			Number int `json:"number"`
			Lines  []struct {
				Text    string  `json:"text"`
				Applied string  `json:"applied"`
				Slack   float64 `json:"slack"`
			} `json:"lines"`
		} `json:"pages"`
	}
	if err := json.Unmarshal(raw, &view); err != nil {
		t.Fatalf("解析调试 JSON 失败: %v", err)
	}
	if view.Words != 2 || len(view.Pages) != 1 || len(view.Pages[0].Lines) != 1 {
		t.Fatalf("调试摘要结构不符: %+v", view)
	}
	ln := view.Pages[0].Lines[0]
	if ln.Text != "aaaa bbbb" || ln.Applied != "left" {
		t.Fatalf("行摘要不符: %+v", ln)
	}
	// 可用宽度 30mm，占用 4+1+4
	if !near(ln.Slack, 21) {
		t.Fatalf("剩余宽度应为 21，实际 %v", ln.Slack)
	}

	if err := WriteDebugJSON(nil, path); err != nil {
		t.Fatalf("nil 文档应直接返回: %v", err)
	}
}
