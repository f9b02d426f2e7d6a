package style

import (
	"fmt"
	"io"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ByLCY/scribe/dsl"
)

// sheetFile is the YAML layout of a style sheet:
//
//	styles:
//	  note:
//	    extends: caption
//	    bias: 2.0
type sheetFile struct {
	Styles map[string]sheetEntry `yaml:"styles"`
}

type sheetEntry struct {
	Extends    string         `yaml:"extends"`
	FontSize   *float64       `yaml:"font_size"`
	Bias       *float64       `yaml:"bias"`
	Scale      *float64       `yaml:"scale"`
	StyleIndex *int           `yaml:"style"`
	Align      *dsl.Alignment `yaml:"align"`
}

func (e sheetEntry) override() Override {
	return Override{FontSize: e.FontSize, Bias: e.Bias, Scale: e.Scale, StyleIndex: e.StyleIndex, Align: e.Align}
}

// LoadSheetFile reads a YAML style sheet from disk.
func LoadSheetFile(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open style sheet: %w", err)
	}
	defer f.Close()
	return LoadSheet(f)
}

// LoadSheet decodes a YAML style sheet on top of the built-in styles. An
// entry starts from its extends target, else the built-in style of the same
// name, else body.
func LoadSheet(r io.Reader) (*Sheet, error) {
	var file sheetFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode style sheet: %w", err)
	}

	sheet := DefaultSheet()
	builtin := DefaultSheet()
	resolved := map[string]bool{}
	visiting := map[string]bool{}

	var resolve func(name string) error
	resolve = func(name string) error {
		if resolved[name] {
			return nil
		}
		entry, ok := file.Styles[name]
		if !ok {
			if _, known := builtin.Lookup(name); known {
				return nil
			}
			return &StyleError{Kind: UnknownStyleName, Name: name}
		}
		if visiting[name] {
			return fmt.Errorf("style %q extends itself", name)
		}
		visiting[name] = true
		defer delete(visiting, name)

		var base TextStyle
		baseName := entry.Extends
		if baseName == "" {
			if builtinStyle, known := builtin.Lookup(name); known {
				base = builtinStyle
			} else {
				baseName = DefaultStyleName
			}
		}
		if baseName != "" {
			if err := resolve(baseName); err != nil {
				return fmt.Errorf("style %q: %w", name, err)
			}
			base, _ = sheet.Lookup(baseName)
		}
		if err := sheet.Set(name, entry.override().Apply(base)); err != nil {
			return err
		}
		resolved[name] = true
		return nil
	}

	for name := range file.Styles {
		if err := resolve(name); err != nil {
			return nil, err
		}
	}
	return sheet, nil
}
