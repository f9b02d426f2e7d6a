package binding

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/ByLCY/scribe/dsl"
)

// 占位符形如 ${path.to.value} 或 ${path|默认值}。
var exprPattern = regexp.MustCompile(`\$\{([^}|]*)(?:\|([^}]*))?\}`)

// Interpolate 将文本中的占位符替换为 data 中的值。
// 路径不存在时使用默认值；没有默认值则保留原占位符。
func Interpolate(text string, data any) string {
	return exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		path := strings.TrimSpace(groups[1])
		if path == "" {
			return match
		}
		if data != nil {
			if val, ok := Lookup(data, path); ok {
				return fmt.Sprint(val)
			}
		}
		if strings.Contains(match, "|") {
			return groups[2]
		}
		return match
	})
}

// Apply 返回替换了全部文本节点占位符的文档副本，标签与偏移保持不变。
func Apply(doc *dsl.Document, data any) *dsl.Document {
	out := doc.Clone()
	for i := range out.Nodes {
		if out.Nodes[i].Kind == dsl.KindText {
			out.Nodes[i].Text = Interpolate(out.Nodes[i].Text, data)
		}
	}
	return out
}

// Placeholders 列出文档中出现的占位符路径（去重，按出现顺序）。
func Placeholders(doc *dsl.Document) []string {
	var out []string
	seen := map[string]bool{}
	for _, n := range doc.Nodes {
		if n.Kind != dsl.KindText {
			continue
		}
		for _, m := range exprPattern.FindAllStringSubmatch(n.Text, -1) {
			path := strings.TrimSpace(m[1])
			if path != "" && !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	return out
}

// step 是路径中的一级：字段名或下标。
type step struct {
	key   string
	index int
}

// parsePath 将 a.b[0][1].c 拆成逐级访问步骤。
func parsePath(path string) ([]step, bool) {
	var steps []step
	for _, segment := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(segment, "[")
		if name != "" {
			steps = append(steps, step{key: name, index: -1})
		}
		if rest == "" {
			if name == "" {
				return nil, false
			}
			continue
		}
		for _, part := range strings.Split(rest, "[") {
			raw, ok := strings.CutSuffix(part, "]")
			if !ok {
				return nil, false
			}
			idx, err := strconv.Atoi(raw)
			if err != nil || idx < 0 {
				return nil, false
			}
			steps = append(steps, step{index: idx})
		}
	}
	return steps, len(steps) > 0
}

// Lookup 按路径取值。支持字符串键的 map、结构体（json 标签或字段名）与切片/数组。
func Lookup(data any, path string) (any, bool) {
	steps, ok := parsePath(path)
	if !ok {
		return nil, false
	}
	current := reflect.ValueOf(data)
	for _, s := range steps {
		current = indirect(current)
		if !current.IsValid() {
			return nil, false
		}
		if s.index >= 0 {
			current, ok = descendIndex(current, s.index)
		} else {
			current, ok = descendKey(current, s.key)
		}
		if !ok {
			return nil, false
		}
	}
	current = indirect(current)
	if !current.IsValid() {
		return nil, false
	}
	return current.Interface(), true
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func descendKey(v reflect.Value, key string) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		val := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
		return val, val.IsValid()
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if tag == key || (tag == "" && strings.EqualFold(f.Name, key)) {
				return v.Field(i), true
			}
		}
	}
	return reflect.Value{}, false
}

func descendIndex(v reflect.Value, idx int) (reflect.Value, bool) {
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if idx >= v.Len() {
			return reflect.Value{}, false
		}
		return v.Index(idx), true
	}
	return reflect.Value{}, false
}
