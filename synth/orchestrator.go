// Package synth runs synthesis tasks: it parses, lays out and generates a
// document, renders the artifact and reports ordered progress.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ByLCY/scribe/artifact"
	"github.com/ByLCY/scribe/generator"
	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/regen"
	canvasrenderer "github.com/ByLCY/scribe/renderer/canvas"
	"github.com/ByLCY/scribe/strokecache"
	"github.com/ByLCY/scribe/style"
)

// Config bounds the orchestrator.
type Config struct {
	MaxRunning      int
	MaxQueue        int
	WordConcurrency int
	Retention       time.Duration
	CleanupInterval time.Duration
	Layout          layout.DocumentConfig
	Format          canvasrenderer.Format
}

func DefaultConfig() Config {
	return Config{
		MaxRunning:      2,
		MaxQueue:        64,
		WordConcurrency: 4,
		Retention:       time.Hour,
		CleanupInterval: 5 * time.Minute,
		Layout:          layout.DefaultConfig(),
		Format:          canvasrenderer.FormatPDF,
	}
}

// Orchestrator manages the synthesis task lifecycle.
type Orchestrator struct {
	tasks    *TaskStore
	queue    chan *Task
	events   *broker
	cache    *strokecache.Cache
	gen      generator.Generator
	store    artifact.Store
	sheet    *style.Sheet
	measurer layout.Measurer
	log      *slog.Logger
	cfg      Config

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithSheet(s *style.Sheet) Option {
	return func(o *Orchestrator) { o.sheet = s }
}

func WithMeasurer(m layout.Measurer) Option {
	return func(o *Orchestrator) { o.measurer = m }
}

func WithStore(s artifact.Store) Option {
	return func(o *Orchestrator) { o.store = s }
}

func WithCache(c *strokecache.Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// New creates the orchestrator; call Start to launch workers.
func New(cfg Config, gen generator.Generator, log *slog.Logger, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxRunning <= 0 {
		cfg.MaxRunning = def.MaxRunning
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = def.MaxQueue
	}
	if cfg.WordConcurrency <= 0 {
		cfg.WordConcurrency = def.WordConcurrency
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		tasks:  NewTaskStore(cfg.Retention),
		queue:  make(chan *Task, cfg.MaxQueue),
		events: newBroker(),
		gen:    gen,
		log:    log,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = strokecache.New(strokecache.Config{Size: 4096})
	}
	if o.store == nil {
		o.store = artifact.NewMemoryStore()
	}
	if o.sheet == nil {
		o.sheet = style.DefaultSheet()
	}
	return o
}

// Start launches worker goroutines and the retention cleanup.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.MaxRunning {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case t, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, t)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case now := <-ticker.C:
				o.cleanup(now)
			}
		}
	}()
}

// Stop shuts down the workers. Tasks still queued are cancelled.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	for t := range o.queue {
		o.cancelQueued(t)
	}
}

func (o *Orchestrator) cleanup(now time.Time) {
	remover, _ := o.store.(artifact.TaskRemover)
	for _, id := range o.tasks.Cleanup(now) {
		o.events.remove(id)
		if remover != nil {
			if err := remover.DeleteTask(context.Background(), id); err != nil {
				o.log.Warn("drop expired artifacts failed", "task_id", id, "error", err)
			}
		}
		o.log.Debug("task expired", "task_id", id)
	}
}

// Submit queues a new task. A full queue rejects the submission.
func (o *Orchestrator) Submit(req Request) (TaskSnapshot, error) {
	format := req.Format
	if format == "" {
		format = o.cfg.Format
	}
	format, err := canvasrenderer.ParseFormat(string(format))
	if err != nil {
		return TaskSnapshot{}, err
	}
	cfg := o.cfg.Layout
	if req.Config != nil {
		cfg = *req.Config
	}
	t := newTask(uuid.NewString(), req, format, cfg)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return TaskSnapshot{}, ErrStopped
	}
	o.tasks.Put(t)
	o.events.open(t.ID)
	o.events.publish(Event{TaskID: t.ID, Kind: EventQueued})
	select {
	case o.queue <- t:
	default:
		o.tasks.Delete(t.ID)
		o.events.remove(t.ID)
		return TaskSnapshot{}, fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueue)
	}
	o.log.Info("task queued", "task_id", t.ID, "name", t.Name, "format", format)
	return t.Snapshot(), nil
}

func (o *Orchestrator) task(id string) (*Task, error) {
	t := o.tasks.Get(id)
	if t == nil {
		return nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	return t, nil
}

// Get returns a task snapshot.
func (o *Orchestrator) Get(id string) (TaskSnapshot, error) {
	t, err := o.task(id)
	if err != nil {
		return TaskSnapshot{}, err
	}
	return t.Snapshot(), nil
}

// List returns every retained task, newest first.
func (o *Orchestrator) List() []TaskSnapshot {
	return o.tasks.List()
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// CacheStats exposes the shared stroke cache counters.
func (o *Orchestrator) CacheStats() strokecache.Stats {
	return o.cache.Stats()
}

// Cancel requests cancellation. A queued task is cancelled at once; a
// running task stops after its in-flight words; terminal tasks are left as
// they are.
func (o *Orchestrator) Cancel(id string) (TaskSnapshot, error) {
	t, err := o.task(id)
	if err != nil {
		return TaskSnapshot{}, err
	}
	t.mu.Lock()
	status := t.Status
	if !status.Terminal() {
		t.cancelled.Store(true)
	}
	t.mu.Unlock()

	if status == StatusQueued {
		o.cancelQueued(t)
	}
	return t.Snapshot(), nil
}

func (o *Orchestrator) cancelQueued(t *Task) {
	t.cancelled.Store(true)
	t.mu.Lock()
	if t.Status != StatusQueued {
		t.mu.Unlock()
		return
	}
	err := t.transitionLocked(StatusCancelled)
	t.mu.Unlock()
	if err == nil {
		o.events.publish(Event{TaskID: t.ID, Kind: EventCancelled})
		o.log.Info("task cancelled", "task_id", t.ID, "status", StatusQueued)
	}
}

// Subscribe streams a task's events from the first one. The channel closes
// after the terminal event; call cancel to stop early.
func (o *Orchestrator) Subscribe(id string) (<-chan Event, func(), error) {
	ch, cancel, ok := o.events.subscribe(id)
	if !ok {
		return nil, nil, fmt.Errorf("task %s: %w", id, ErrTaskNotFound)
	}
	return ch, cancel, nil
}

// PreviewResult summarises a layout without generation.
type PreviewResult struct {
	Pages      int              `json:"pages"`
	Lines      int              `json:"lines"`
	Words      int              `json:"words"`
	Characters int              `json:"characters"`
	Layout     *layout.Document `json:"layout"`
}

// Preview parses and lays out the markup synchronously. Markup, style and
// layout errors are returned as *TaskError.
func (o *Orchestrator) Preview(req Request) (*PreviewResult, error) {
	cfg := o.cfg.Layout
	if req.Config != nil {
		cfg = *req.Config
	}
	doc, terr := o.compose("", req, cfg, func(string) {})
	if terr != nil {
		return nil, terr
	}
	res := &PreviewResult{
		Pages:  len(doc.Pages),
		Lines:  len(doc.Lines),
		Words:  doc.WordCount(),
		Layout: doc,
	}
	for id := 0; id < doc.WordCount(); id++ {
		u, _ := doc.Word(id)
		res.Characters += layout.CharCount(u.Text)
	}
	return res, nil
}

// Regenerate produces new candidates for a word of a completed task.
func (o *Orchestrator) Regenerate(ctx context.Context, taskID string, wordID int, override *style.Override, attempts int) ([]regen.Version, error) {
	t, err := o.task(taskID)
	if err != nil {
		return nil, err
	}
	mgr, _, err := t.regenManager()
	if err != nil {
		return nil, err
	}
	return mgr.Regenerate(ctx, wordID, override, attempts)
}

// SelectOutcome is the selection effect plus the re-rendered artifact.
type SelectOutcome struct {
	Selection regen.SelectResult `json:"selection"`
	Result    Result             `json:"result"`
}

// Select activates a word version of a completed task and renders a new
// revision of the artifact.
func (o *Orchestrator) Select(ctx context.Context, taskID string, wordID, version int) (SelectOutcome, error) {
	t, err := o.task(taskID)
	if err != nil {
		return SelectOutcome{}, err
	}
	mgr, _, err := t.regenManager()
	if err != nil {
		return SelectOutcome{}, err
	}

	t.renderMu.Lock()
	defer t.renderMu.Unlock()
	sel, err := mgr.Select(wordID, version)
	if err != nil {
		return SelectOutcome{}, err
	}
	_, cur, err := t.regenManager()
	if err != nil {
		return SelectOutcome{}, err
	}
	res, terr := o.renderArtifact(ctx, t, mgr, cur.Revision+1)
	if terr != nil {
		return SelectOutcome{}, terr
	}
	t.setResult(res)
	o.log.Info("task revised", "task_id", t.ID, "word_id", wordID, "version", version,
		"revision", res.Revision, "reflowed", sel.Reflowed)
	return SelectOutcome{Selection: sel, Result: *res}, nil
}

// Versions returns the version history of a word of a completed task.
func (o *Orchestrator) Versions(taskID string, wordID int) ([]regen.Version, error) {
	t, err := o.task(taskID)
	if err != nil {
		return nil, err
	}
	mgr, _, err := t.regenManager()
	if err != nil {
		return nil, err
	}
	return mgr.History(wordID)
}

// Artifacts lists the stored files of a task.
func (o *Orchestrator) Artifacts(ctx context.Context, taskID string) ([]string, error) {
	return o.store.List(ctx, taskID)
}

// Download returns an artifact and its content type.
func (o *Orchestrator) Download(ctx context.Context, taskID, name string) ([]byte, string, error) {
	data, err := o.store.Get(ctx, taskID, name)
	if err != nil {
		return nil, "", err
	}
	return data, artifact.ContentType(name), nil
}
