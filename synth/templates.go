package synth

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Template is a built-in markup document.
type Template struct {
	Name   string `json:"name"`
	Markup string `json:"markup"`
}

// Templates returns the built-in templates sorted by name.
func Templates() []Template {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil
	}
	out := make([]Template, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := templateFS.ReadFile("templates/" + e.Name())
		if err != nil {
			continue
		}
		out = append(out, Template{Name: name, Markup: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadTemplate returns the markup of a built-in template.
func LoadTemplate(name string) (string, error) {
	data, err := templateFS.ReadFile("templates/" + path.Base(strings.TrimSpace(name)) + ".txt")
	if err != nil {
		return "", fmt.Errorf("template %q: %w", name, ErrTemplateNotFound)
	}
	return string(data), nil
}
