package synth

import (
	"encoding/json"
	"time"

	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/regen"
	"github.com/ByLCY/scribe/style"
	"github.com/ByLCY/scribe/strokecache"
)

// Metadata is written next to every artifact as <name>_metadata.json.
type Metadata struct {
	TaskID      string             `json:"task_id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Format      string             `json:"format"`
	Revision    int                `json:"revision"`
	TotalPages  int                `json:"total_pages"`
	TotalLines  int                `json:"total_lines"`
	TotalWords  int                `json:"total_words"`
	Characters  int                `json:"characters"`
	PageWidth   float64            `json:"page_width"`
	PageHeight  float64            `json:"page_height"`
	NumLines    int                `json:"num_lines"`
	Margins     layout.PageMargins `json:"margins"`
	Overrides   []WordOverride     `json:"word_overrides"`
	Selected    []SelectedVersion  `json:"selected_versions,omitempty"`
	CacheStats  *strokecache.Stats `json:"cache_stats,omitempty"`
	GeneratedBy string             `json:"generated_by"`
}

// WordOverride records a [word:…] customisation found in the markup.
type WordOverride struct {
	WordID   int            `json:"word_id"`
	Text     string         `json:"text"`
	Offset   int            `json:"offset"`
	Override style.Override `json:"override"`
}

// SelectedVersion records a word whose active version is not the original.
type SelectedVersion struct {
	WordID  int     `json:"word_id"`
	Text    string  `json:"text"`
	Version int     `json:"version"`
	Width   float64 `json:"width"`
}

func buildMetadata(t *Task, doc *layout.Document, active []regen.Version, revision int) Metadata {
	m := Metadata{
		TaskID:      t.ID,
		Name:        t.Name,
		Timestamp:   time.Now(),
		Format:      string(t.format),
		Revision:    revision,
		TotalPages:  len(doc.Pages),
		TotalLines:  len(doc.Lines),
		TotalWords:  doc.WordCount(),
		PageWidth:   doc.Config.PageWidth,
		PageHeight:  doc.Config.PageHeight,
		NumLines:    doc.Config.NumLines,
		Margins:     doc.Config.Margins,
		Overrides:   []WordOverride{},
		GeneratedBy: "scribe",
	}
	for id := 0; id < doc.WordCount(); id++ {
		u, _ := doc.Word(id)
		m.Characters += layout.CharCount(u.Text)
		if u.Override != nil && !u.Override.Empty() {
			m.Overrides = append(m.Overrides, WordOverride{
				WordID:   id,
				Text:     u.Text,
				Offset:   u.Offset,
				Override: *u.Override,
			})
		}
	}
	for _, v := range active {
		if v.Number != 0 {
			m.Selected = append(m.Selected, SelectedVersion{
				WordID:  v.WordID,
				Text:    v.Text,
				Version: v.Number,
				Width:   v.Width,
			})
		}
	}
	return m
}

func (m Metadata) encode() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
