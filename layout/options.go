package layout

import "github.com/ByLCY/scribe/style"

// BuildOptions 配置布局阶段所需的依赖，例如宽度测量后端。
type BuildOptions struct {
	Measurer Measurer
}

// Measurer 负责估算单词与词间空格的宽度（mm）。
type Measurer interface {
	MeasureWord(text string, ts style.TextStyle) float64
	SpaceWidth(ts style.TextStyle) float64
}

// charWidths 是手写模型每个字符的相对宽度，未收录字符按 1.0 计算。
var charWidths = map[rune]float64{
	'a': 0.6, 'b': 0.6, 'c': 0.6, 'd': 0.6, 'e': 0.6, 'f': 0.4, 'g': 0.6, 'h': 0.6,
	'i': 0.3, 'j': 0.3, 'k': 0.6, 'l': 0.3, 'm': 0.9, 'n': 0.6, 'o': 0.6, 'p': 0.6,
	'q': 0.6, 'r': 0.4, 's': 0.6, 't': 0.4, 'u': 0.6, 'v': 0.6, 'w': 0.9, 'x': 0.6,
	'y': 0.6, 'z': 0.6,
	'A': 0.7, 'B': 0.7, 'C': 0.7, 'D': 0.7, 'E': 0.7, 'F': 0.7, 'G': 0.7, 'H': 0.7,
	'I': 0.4, 'J': 0.4, 'K': 0.7, 'L': 0.7, 'M': 0.9, 'N': 0.7, 'O': 0.7, 'P': 0.7,
	'Q': 0.7, 'R': 0.7, 'S': 0.7, 'T': 0.7, 'U': 0.7, 'V': 0.7, 'W': 0.9, 'X': 0.7,
	'Y': 0.7, 'Z': 0.7,
	'0': 0.6, '1': 0.6, '2': 0.6, '3': 0.6, '4': 0.6, '5': 0.6, '6': 0.6, '7': 0.6,
	'8': 0.6, '9': 0.6,
	' ': 0.3, '.': 0.3, ',': 0.3, '!': 0.3, '?': 0.3, '-': 0.3, '_': 0.3, ':': 0.3,
	';': 0.3, '(': 0.3, ')': 0.3, '[': 0.3, ']': 0.3, '{': 0.3, '}': 0.3, '/': 0.3,
	'\\': 0.3, '|': 0.3, '@': 0.9, '#': 0.9, '$': 0.9, '%': 0.9, '^': 0.9, '&': 0.9,
	'*': 0.9, '+': 0.9, '=': 0.9, '"': 0.3, '\'': 0.3,
}

// CharWidth 返回字符的相对宽度。
func CharWidth(r rune) float64 {
	if w, ok := charWidths[r]; ok {
		return w
	}
	return 1.0
}

// CharWidthMeasurer 按字符宽度表估算：宽度(px) = Σ 字符宽度 × 字号 × 缩放，再换算为 mm。
type CharWidthMeasurer struct{}

func (CharWidthMeasurer) MeasureWord(text string, ts style.TextStyle) float64 {
	var units float64
	for _, r := range text {
		units += CharWidth(r)
	}
	return units * ts.FontSize * ts.Scale * PxToMm
}

func (CharWidthMeasurer) SpaceWidth(ts style.TextStyle) float64 {
	return CharWidth(' ') * ts.FontSize * ts.Scale * PxToMm
}
