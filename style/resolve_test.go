package style_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/ByLCY/scribe/dsl"
	"github.com/ByLCY/scribe/style"
)

func resolveString(t *testing.T, input string) []style.Run {
	t.Helper()
	doc, err := dsl.ParseString(input)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	runs, err := style.Resolve(doc)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	return runs
}

func TestResolveDefaultsToBody(t *testing.T) {
	runs := resolveString(t, "plain words here")
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	body, _ := style.DefaultSheet().Lookup("body")
	if runs[0].Style != body {
		t.Fatalf("expected body style, got %+v", runs[0].Style)
	}
}

func TestResolveNamedStyles(t *testing.T) {
	runs := resolveString(t, "[style:title]Hi[/style]\n[align:justify]a bb ccc[/align]")
	if len(runs) != 2 {
		t.Fatalf("expected two runs, got %d: %+v", len(runs), runs)
	}
	title := runs[0].Style
	if title.FontSize != 24 || title.Scale != 1.2 || title.Align != dsl.AlignCenter {
		t.Fatalf("title style mismatch: %+v", title)
	}
	if runs[1].Style.Align != dsl.AlignJustify {
		t.Fatalf("expected justify, got %s", runs[1].Style.Align)
	}
	if runs[0].Paragraph == runs[1].Paragraph {
		t.Fatalf("blocks should start separate paragraphs")
	}
}

func TestResolvePrecedence(t *testing.T) {
	input := "[bias:2.0][style:heading1]a [word:bias=3.5,style=9]b[/word] c[/style][/bias]"
	runs := resolveString(t, input)
	if len(runs) != 3 {
		t.Fatalf("expected three runs, got %d", len(runs))
	}
	if runs[0].Style.Bias != 2.0 {
		t.Fatalf("bias block should beat named style, got %v", runs[0].Style.Bias)
	}
	if runs[0].Style.FontSize != 20 {
		t.Fatalf("named style font size should apply, got %v", runs[0].Style.FontSize)
	}
	word := runs[1]
	if word.Style.Bias != 3.5 || word.Style.StyleIndex != 9 {
		t.Fatalf("word attributes should win, got %+v", word.Style)
	}
	if word.Word == nil || word.Word.Bias == nil || *word.Word.Bias != 3.5 {
		t.Fatalf("word override not recorded: %+v", word.Word)
	}
	if runs[2].Word != nil || runs[2].Style.Bias != 2.0 {
		t.Fatalf("override must end with the word block: %+v", runs[2])
	}
	for _, r := range runs {
		if r.Paragraph != runs[0].Paragraph {
			t.Fatalf("word blocks must not split paragraphs")
		}
	}
}

func TestResolveAnonymousStyleKeepsEnclosing(t *testing.T) {
	runs := resolveString(t, "[style:quote][style:font_size=30]x[/style][/style]")
	got := runs[0].Style
	if got.FontSize != 30 || got.Scale != 0.7 || got.Align != dsl.AlignCenter {
		t.Fatalf("anonymous style should extend quote: %+v", got)
	}
}

func TestResolveStyleFieldsBeatEnclosingBlocks(t *testing.T) {
	runs := resolveString(t, "[bias:2.0][style:bias=3.0,align=left]x[/style][/bias]")
	if got := runs[0].Style; got.Bias != 3.0 || got.Align != dsl.AlignLeft {
		t.Fatalf("explicit style fields should win over outer blocks: %+v", got)
	}

	runs = resolveString(t, "[align:right][style:heading1,bias=3.0]x[bias:0.5]y[/bias]z[/style][/align]")
	if runs[0].Style.Bias != 3.0 || runs[0].Style.Align != dsl.AlignRight {
		t.Fatalf("unset fields should keep the outer block: %+v", runs[0].Style)
	}
	if runs[1].Style.Bias != 0.5 {
		t.Fatalf("inner bias block should win again, got %v", runs[1].Style.Bias)
	}
	if runs[2].Style.Bias != 3.0 {
		t.Fatalf("style field should return after the inner block, got %v", runs[2].Style.Bias)
	}
}

func TestResolveInnermostBlockWins(t *testing.T) {
	runs := resolveString(t, "[align:right][align:center]x[/align]y[/align]")
	if runs[0].Style.Align != dsl.AlignCenter || runs[1].Style.Align != dsl.AlignRight {
		t.Fatalf("alignment stack mismatch: %s %s", runs[0].Style.Align, runs[1].Style.Align)
	}
}

func TestResolveParagraphsAndBreaks(t *testing.T) {
	runs := resolveString(t, "first para\nstill first\n\nsecond[line-break]third[page-break]fourth")
	var texts []string
	var paras []int
	for _, r := range runs {
		texts = append(texts, strings.TrimSpace(r.Text)+"/"+r.Break.String())
		paras = append(paras, r.Paragraph)
	}
	want := "first para\nstill first/none second/none /line third/none /page fourth/none"
	if got := strings.Join(texts, " "); got != want {
		t.Fatalf("runs mismatch:\n got %q\nwant %q", got, want)
	}
	wantParas := []int{0, 1, 1, 2, 2, 3}
	for i, p := range wantParas {
		if paras[i] != p {
			t.Fatalf("paragraph numbers mismatch: got %v want %v", paras, wantParas)
		}
	}
}

func TestResolveWhitespaceOnlyTextProducesNoRun(t *testing.T) {
	runs := resolveString(t, "[style:body]  \n  [/style]\n\n[style:caption] x [/style]")
	if len(runs) != 1 || strings.TrimSpace(runs[0].Text) != "x" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Index != 0 {
		t.Fatalf("indices must be dense, got %d", runs[0].Index)
	}
}

func TestResolveMarginFrames(t *testing.T) {
	runs := resolveString(t, "a[margin:odd_left=5][margin:odd_right=1]b[/margin]c[/margin]d")
	if len(runs) != 4 {
		t.Fatalf("expected four runs, got %d", len(runs))
	}
	if runs[0].Margins != nil || runs[3].Margins != nil {
		t.Fatalf("margins must only apply inside the block")
	}
	inner := runs[1].Margins
	if inner == nil || inner.OddLeft == nil || *inner.OddLeft != 5 || inner.OddRight == nil || *inner.OddRight != 1 {
		t.Fatalf("nested margins should merge: %+v", inner)
	}
	outer := runs[2].Margins
	if outer == nil || outer.OddRight != nil || *outer.OddLeft != 5 {
		t.Fatalf("inner margin block must pop: %+v", outer)
	}
}

func TestResolveErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		sent  error
	}{
		{"unknown style", "[style:shout]x[/style]", style.ErrUnknownStyleName},
		{"zero font size", "[style:body,font_size=0]x[/style]", style.ErrInvalidValue},
		{"negative scale", "[style:body][word:scale=-1]x[/word][/style]", style.ErrInvalidValue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := dsl.ParseString(tc.input)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			_, err = style.Resolve(doc)
			if !errors.Is(err, tc.sent) {
				t.Fatalf("expected %v, got %v", tc.sent, err)
			}
			var serr *style.StyleError
			if !errors.As(err, &serr) {
				t.Fatalf("expected StyleError, got %T", err)
			}
		})
	}
}
