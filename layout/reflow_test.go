package layout

import (
	"errors"
	"testing"
)

const reflowMarkup = "[align:left]aaaa bbbb cccc dddd eeee ffff gggg[/align]\n\n[align:left]hhhh iiii[/align]"

func sameLines(t *testing.T, got, want []Line) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("行数不符: got %d want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.Page != w.Page || g.Index != w.Index || g.StartUnit != w.StartUnit || g.EndUnit != w.EndUnit || g.Applied != w.Applied {
			t.Fatalf("第 %d 行不符:\n got %+v\nwant %+v", i, g, w)
		}
		if len(g.Words) != len(w.Words) {
			t.Fatalf("第 %d 行单词数不符", i)
		}
		for k := range w.Words {
			if g.Words[k].WordID != w.Words[k].WordID || !near(g.Words[k].X, w.Words[k].X) || !near(g.Words[k].Y, w.Words[k].Y) {
				t.Fatalf("第 %d 行第 %d 个单词位置不符: %+v vs %+v", i, k, g.Words[k], w.Words[k])
			}
		}
	}
}

func TestReflowMatchesFullLayout(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, reflowMarkup)
	if len(doc.Lines) != 3 {
		t.Fatalf("初始应为 3 行，实际 %d", len(doc.Lines))
	}

	res, err := doc.Reflow(1, 10)
	if err != nil {
		t.Fatalf("重排失败: %v", err)
	}
	if !res.Converged {
		t.Fatalf("重排应在第二段处汇合")
	}
	if len(res.Lines) != 2 || res.Lines[0] != 0 || res.Lines[1] != 1 {
		t.Fatalf("只应重算前两行: %v", res.Lines)
	}
	if len(res.Pages) != 1 || res.Pages[0] != 1 {
		t.Fatalf("受影响页不符: %v", res.Pages)
	}
	if got := lineTexts(doc.Lines[1]); got != "ffff gggg" {
		t.Fatalf("重排后第二行不符: %q", got)
	}

	want := layoutMarkup(t, testConfig(), fixedMeasurer{overrides: map[string]float64{"bbbb": 10}}, reflowMarkup)
	sameLines(t, doc.Lines, want.Lines)
}

const pullMarkup = "[align:left]aaaa bbbb cccc dddd eeee ff gggg[/align]\n\n[align:left]hhhh iiii[/align]"

func TestReflowNarrowerWordPullsBack(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, pullMarkup)
	if len(doc.Lines) != 3 {
		t.Fatalf("初始应为 3 行，实际 %d", len(doc.Lines))
	}
	// gggg 是第二行首词，变窄后应回到上一行
	res, err := doc.Reflow(6, 2)
	if err != nil {
		t.Fatalf("重排失败: %v", err)
	}
	want := layoutMarkup(t, testConfig(), fixedMeasurer{overrides: map[string]float64{"gggg": 2}}, pullMarkup)
	sameLines(t, doc.Lines, want.Lines)
	if len(doc.Lines) != 2 {
		t.Fatalf("应减少为 2 行，实际 %d", len(doc.Lines))
	}
	if res.Converged || len(res.Lines) != 2 {
		t.Fatalf("行号整体前移，不应汇合: %+v", res)
	}
}

func TestReflowAcrossPages(t *testing.T) {
	cfg := testConfig()
	cfg.NumLines = 1
	doc := layoutMarkup(t, cfg, fixedMeasurer{}, pullMarkup)
	if len(doc.Pages) != 3 {
		t.Fatalf("初始应为 3 页，实际 %d", len(doc.Pages))
	}
	res, err := doc.Reflow(6, 2)
	if err != nil {
		t.Fatalf("重排失败: %v", err)
	}
	want := layoutMarkup(t, cfg, fixedMeasurer{overrides: map[string]float64{"gggg": 2}}, pullMarkup)
	sameLines(t, doc.Lines, want.Lines)
	if len(doc.Pages) != 2 || len(want.Pages) != 2 {
		t.Fatalf("页数不符: %d vs %d", len(doc.Pages), len(want.Pages))
	}
	for i, p := range doc.Pages {
		if len(p.Lines) != len(want.Pages[i].Lines) {
			t.Fatalf("第 %d 页行下标不符: %v vs %v", p.Number, p.Lines, want.Pages[i].Lines)
		}
	}
	if len(res.Pages) != 3 {
		t.Fatalf("被移除的第 3 页也应计入受影响页: %v", res.Pages)
	}
}

func TestReflowUnknownWord(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, reflowMarkup)
	if _, err := doc.Reflow(99, 1); !errors.Is(err, ErrUnknownWord) {
		t.Fatalf("期望 UnknownWord，实际 %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc := layoutMarkup(t, testConfig(), fixedMeasurer{}, reflowMarkup)
	clone := doc.Clone()
	if _, err := clone.Reflow(1, 10); err != nil {
		t.Fatalf("重排失败: %v", err)
	}
	if got := lineTexts(doc.Lines[1]); got != "gggg" {
		t.Fatalf("原文档不应被修改: %q", got)
	}
}
