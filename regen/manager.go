// Package regen keeps alternative generations per word and applies a
// selected version to the layout with bounded reflow.
package regen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ByLCY/scribe/generator"
	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

// DefaultTolerance is the width change in millimetres below which a selection
// keeps the current line packing.
const DefaultTolerance = 0.1

// Bounds on the candidates produced by one Regenerate call.
const (
	DefaultAttempts = 3
	MaxAttempts     = 10
)

var (
	ErrUnknownWord    = errors.New("unknown word")
	ErrUnknownVersion = errors.New("unknown version")
	ErrInvalidCount   = errors.New("attempt count must be between 1 and 10")
)

// Version is one generation of a word. Number 0 is the original layout.
type Version struct {
	WordID    int             `json:"word_id"`
	Number    int             `json:"version"`
	Text      string          `json:"text"`
	Strokes   stroke.Sequence `json:"strokes"`
	Width     float64         `json:"width"`
	Style     style.TextStyle `json:"style"`
	CreatedAt time.Time       `json:"created_at"`
}

// SelectResult reports what a selection touched.
type SelectResult struct {
	WordID    int               `json:"word_id"`
	Version   int               `json:"version"`
	Placement layout.PlacedWord `json:"placement"`
	Page      int               `json:"page"`
	Reflowed  bool              `json:"reflowed"`
	Converged bool              `json:"converged"`
	// Lines are indexes into the document's lines that were recomputed.
	Lines []int `json:"lines"`
	Pages []int `json:"pages"`
}

type history struct {
	versions []Version
	active   int
}

// Manager owns a laid-out document and the version history of its words.
// It is safe for concurrent use.
type Manager struct {
	gen       generator.Generator
	log       *slog.Logger
	tolerance float64

	mu    sync.Mutex
	doc   *layout.Document
	words []history
}

// Option configures a Manager.
type Option func(*Manager)

func WithTolerance(mm float64) Option {
	return func(m *Manager) { m.tolerance = mm }
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager takes ownership of doc. initial holds the strokes each word was
// first rendered with, indexed by word id; they become version 0.
func NewManager(doc *layout.Document, initial []stroke.Sequence, gen generator.Generator, opts ...Option) (*Manager, error) {
	if len(initial) != doc.WordCount() {
		return nil, fmt.Errorf("initial strokes: got %d, want %d words", len(initial), doc.WordCount())
	}
	m := &Manager{
		gen:       gen,
		log:       slog.Default(),
		tolerance: DefaultTolerance,
		doc:       doc,
		words:     make([]history, len(initial)),
	}
	for _, opt := range opts {
		opt(m)
	}
	now := time.Now()
	for id, seq := range initial {
		u, _ := doc.Word(id)
		m.words[id] = history{versions: []Version{{
			WordID:    id,
			Number:    0,
			Text:      u.Text,
			Strokes:   seq,
			Width:     u.Width,
			Style:     u.Style,
			CreatedAt: now,
		}}}
	}
	return m, nil
}

// Regenerate asks the generator for attempts new candidates of a word,
// bypassing any cache. Each success is stored as the next version. On error
// the candidates produced so far are kept and returned with it.
func (m *Manager) Regenerate(ctx context.Context, wordID int, override *style.Override, attempts int) ([]Version, error) {
	if attempts < 1 || attempts > MaxAttempts {
		return nil, ErrInvalidCount
	}
	m.mu.Lock()
	u, ok := m.doc.Word(wordID)
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("word %d: %w", wordID, ErrUnknownWord)
	}
	ts := u.Style
	if override != nil {
		ts = override.Apply(ts)
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}

	log := m.log.With("word_id", wordID, "text", u.Text)
	var out []Version
	for i := 0; i < attempts; i++ {
		seq, err := m.gen.Generate(ctx, u.Text, ts)
		if err != nil {
			log.Warn("regeneration failed", "attempt", i+1, "error", err)
			return out, fmt.Errorf("regenerate word %d: %w", wordID, err)
		}
		m.mu.Lock()
		h := &m.words[wordID]
		v := Version{
			WordID:    wordID,
			Number:    len(h.versions),
			Text:      u.Text,
			Strokes:   seq,
			Width:     seq.WidthMM(ts.FontSize, ts.Scale),
			Style:     ts,
			CreatedAt: time.Now(),
		}
		h.versions = append(h.versions, v)
		m.mu.Unlock()
		out = append(out, v)
	}
	log.Info("word regenerated", "candidates", len(out))
	return out, nil
}

// Select makes a version active. A width change beyond the tolerance reflows
// from the owning line until the layout converges; otherwise only the word's
// own placement is invalidated.
func (m *Manager) Select(wordID, number int) (SelectResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wordID < 0 || wordID >= len(m.words) {
		return SelectResult{}, fmt.Errorf("word %d: %w", wordID, ErrUnknownWord)
	}
	h := &m.words[wordID]
	if number < 0 || number >= len(h.versions) {
		return SelectResult{}, fmt.Errorf("word %d version %d: %w", wordID, number, ErrUnknownVersion)
	}
	v := h.versions[number]
	u, _ := m.doc.Word(wordID)

	res := SelectResult{WordID: wordID, Version: number}
	if math.Abs(v.Width-u.Width) > m.tolerance {
		rr, err := m.doc.Reflow(wordID, v.Width)
		if err != nil {
			return SelectResult{}, fmt.Errorf("reflow word %d: %w", wordID, err)
		}
		res.Reflowed = true
		res.Converged = rr.Converged
		res.Lines = rr.Lines
		res.Pages = rr.Pages
	}
	h.active = number

	pw, page, _ := m.doc.Placement(wordID)
	res.Placement = pw
	res.Page = page
	if !res.Reflowed {
		line, _ := m.doc.LineOf(wordID)
		res.Lines = []int{line}
		res.Pages = []int{page}
	}
	m.log.Info("version selected", "word_id", wordID, "version", number,
		"reflowed", res.Reflowed, "pages", res.Pages)
	return res, nil
}

// History returns every version of a word in creation order.
func (m *Manager) History(wordID int) ([]Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wordID < 0 || wordID >= len(m.words) {
		return nil, fmt.Errorf("word %d: %w", wordID, ErrUnknownWord)
	}
	return append([]Version(nil), m.words[wordID].versions...), nil
}

// Active returns the selected version of a word.
func (m *Manager) Active(wordID int) (Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wordID < 0 || wordID >= len(m.words) {
		return Version{}, fmt.Errorf("word %d: %w", wordID, ErrUnknownWord)
	}
	h := m.words[wordID]
	return h.versions[h.active], nil
}

// Snapshot returns a copy of the current layout with the active version of
// every word, indexed by word id.
func (m *Manager) Snapshot() (*layout.Document, []Version) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := make([]Version, len(m.words))
	for id, h := range m.words {
		active[id] = h.versions[h.active]
	}
	return m.doc.Clone(), active
}
