package synth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/scribe/binding"
	"github.com/ByLCY/scribe/dsl"
	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/regen"
	"github.com/ByLCY/scribe/renderer"
	canvasrenderer "github.com/ByLCY/scribe/renderer/canvas"
	"github.com/ByLCY/scribe/stroke"
	"github.com/ByLCY/scribe/style"
)

// process runs the full synthesis pipeline for a task.
func (o *Orchestrator) process(ctx context.Context, t *Task) {
	log := o.log.With("task_id", t.ID, "name", t.Name)
	if err := t.transition(StatusRunning); err != nil {
		log.Debug("skipping task", "error", err)
		return
	}
	log.Info("task started")

	doc, terr := o.compose(t.ID, t.req, t.config, t.setStage)
	if terr == nil && doc.WordCount() == 0 {
		terr = &TaskError{TaskID: t.ID, Stage: StageLayout, Offset: -1, WordID: -1, Err: ErrEmptyDocument}
	}
	if terr != nil {
		o.failTask(log, t, terr)
		return
	}

	total := doc.WordCount()
	t.setProgress(0, total)
	t.setStage(StageGenerate)
	o.events.publish(Event{TaskID: t.ID, Kind: EventStarted, Total: total})
	log.Info("document laid out", "pages", len(doc.Pages), "lines", len(doc.Lines), "words", total)

	strokes, terr := o.generateAll(ctx, log, t, doc)
	if terr != nil {
		o.failTask(log, t, terr)
		return
	}
	if strokes == nil || t.cancelRequested() {
		o.cancelRunning(log, t)
		return
	}

	mgr, err := regen.NewManager(doc, strokes, o.gen, regen.WithLogger(log))
	if err != nil {
		o.failTask(log, t, newTaskError(t.ID, StageRender, err))
		return
	}
	res, terr := o.renderArtifact(ctx, t, mgr, 0)
	if terr != nil {
		o.failTask(log, t, terr)
		return
	}
	if err := t.complete(res, mgr); err != nil {
		log.Warn("task finished in another state", "error", err)
		return
	}
	o.events.publish(Event{
		TaskID:    t.ID,
		Kind:      EventCompleted,
		Completed: total,
		Total:     total,
		Artifact:  res.Artifact,
		URL:       res.URL,
	})
	log.Info("task completed", "artifact", res.Artifact, "pages", res.Pages)
}

// compose parses, binds, resolves and lays out the markup. stage is told
// each stage as it begins.
func (o *Orchestrator) compose(taskID string, req Request, cfg layout.DocumentConfig, stage func(string)) (*layout.Document, *TaskError) {
	stage(StageParse)
	tree, err := dsl.ParseString(req.Markup)
	if err != nil {
		return nil, newTaskError(taskID, StageParse, err)
	}
	if req.Data != nil {
		stage(StageBind)
		tree = binding.Apply(tree, req.Data)
	}

	stage(StageResolve)
	runs, err := style.NewResolver(o.sheet).Resolve(tree)
	if err != nil {
		return nil, newTaskError(taskID, StageResolve, err)
	}

	stage(StageLayout)
	doc, err := layout.NewEngine(cfg, layout.BuildOptions{Measurer: o.measurer}).Layout(runs)
	if err != nil {
		return nil, newTaskError(taskID, StageLayout, err)
	}
	return doc, nil
}

type wordResult struct {
	id  int
	seq stroke.Sequence
	err error
}

// generateAll fetches strokes for every word through the shared cache with
// bounded concurrency. Results are buffered and drained in word order so
// progress events follow layout order. It returns nil strokes without an
// error when the task was cancelled or the worker is shutting down.
func (o *Orchestrator) generateAll(ctx context.Context, log *slog.Logger, t *Task, doc *layout.Document) ([]stroke.Sequence, *TaskError) {
	n := doc.WordCount()
	results := make(chan wordResult, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.WordConcurrency)

	go func() {
		for id := 0; id < n; id++ {
			if t.cancelRequested() || gctx.Err() != nil {
				break
			}
			u, _ := doc.Word(id)
			g.Go(func() error {
				seq, err := o.generateWord(gctx, log, u.Text, u.Style)
				results <- wordResult{id: id, seq: seq, err: err}
				return err
			})
		}
		g.Wait()
		close(results)
	}()

	strokes := make([]stroke.Sequence, n)
	pending := make(map[int]stroke.Sequence)
	next := 0
	var failed *TaskError
	for r := range results {
		if failed != nil {
			continue
		}
		if r.err != nil {
			u, _ := doc.Word(r.id)
			failed = &TaskError{TaskID: t.ID, Stage: StageGenerate, Offset: u.Offset, WordID: r.id, Err: r.err}
			continue
		}
		pending[r.id] = r.seq
		for {
			seq, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			strokes[next] = seq
			next++
			t.setProgress(next, n)
			o.events.publish(Event{TaskID: t.ID, Kind: EventProgress, Completed: next, Total: n})
		}
	}

	switch {
	case failed != nil && ctx.Err() == nil:
		return nil, failed
	case next == n:
		return strokes, nil
	case ctx.Err() != nil || t.cancelRequested():
		return nil, nil
	}
	err := fmt.Errorf("generated %d of %d words", next, n)
	return nil, &TaskError{TaskID: t.ID, Stage: StageGenerate, Offset: -1, WordID: -1, Err: err}
}

// generateWord retries retryable generator failures with backoff.
func (o *Orchestrator) generateWord(ctx context.Context, log *slog.Logger, text string, ts style.TextStyle) (stroke.Sequence, error) {
	var lastErr error
	for attempt := range MaxRetries {
		entry, err := o.cache.GetOrGenerate(ctx, text, ts, o.gen)
		if err == nil {
			return entry.Strokes, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable generation error", "word", text, "attempt", attempt, "error", err)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// renderArtifact renders the active versions and stores the artifact with
// its metadata.
func (o *Orchestrator) renderArtifact(ctx context.Context, t *Task, mgr *regen.Manager, revision int) (*Result, *TaskError) {
	t.setStage(StageRender)
	doc, active := mgr.Snapshot()
	rdoc := renderer.Assemble(doc, func(id int) (stroke.Sequence, style.TextStyle) {
		return active[id].Strokes, active[id].Style
	})
	title := t.req.Title
	if title == "" {
		title = t.Name
	}
	rdoc.Meta = renderer.Meta{Title: title, Creator: "scribe"}

	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{Format: t.format})
	data, err := r.Render(rdoc)
	if err != nil {
		return nil, newTaskError(t.ID, StageRender, err)
	}

	t.setStage(StageStore)
	name, metaName := artifactNames(t.Name, revision, t.format)
	if err := o.store.Put(ctx, t.ID, name, data); err != nil {
		return nil, newTaskError(t.ID, StageStore, err)
	}
	meta := buildMetadata(t, doc, active, revision)
	stats := o.cache.Stats()
	meta.CacheStats = &stats
	raw, err := meta.encode()
	if err != nil {
		return nil, newTaskError(t.ID, StageStore, err)
	}
	if err := o.store.Put(ctx, t.ID, metaName, raw); err != nil {
		return nil, newTaskError(t.ID, StageStore, err)
	}
	url, err := o.store.GetURL(ctx, t.ID, name)
	if err != nil {
		o.log.Warn("artifact url unavailable", "task_id", t.ID, "error", err)
	}
	return &Result{
		Artifact: name,
		Metadata: metaName,
		URL:      url,
		Revision: revision,
		Pages:    len(doc.Pages),
		Lines:    len(doc.Lines),
		Words:    doc.WordCount(),
	}, nil
}

// artifactNames returns the artifact and metadata names of a revision.
func artifactNames(base string, revision int, format canvasrenderer.Format) (string, string) {
	if revision > 0 {
		base = fmt.Sprintf("%s_r%d", base, revision)
	}
	return base + format.Extension(), base + "_metadata.json"
}

func (o *Orchestrator) failTask(log *slog.Logger, t *Task, terr *TaskError) {
	if err := t.fail(terr); err != nil {
		log.Warn("cannot mark task failed", "error", err)
		return
	}
	p := t.Snapshot().Progress
	o.events.publish(Event{TaskID: t.ID, Kind: EventFailed, Error: terr.Info(), Completed: p.Completed, Total: p.Total})
	log.Error("task failed", "stage", terr.Stage, "offset", terr.Offset, "error", terr.Err)
}

func (o *Orchestrator) cancelRunning(log *slog.Logger, t *Task) {
	if err := t.transition(StatusCancelled); err != nil {
		log.Warn("cannot mark task cancelled", "error", err)
		return
	}
	p := t.Snapshot().Progress
	o.events.publish(Event{TaskID: t.ID, Kind: EventCancelled, Completed: p.Completed, Total: p.Total})
	log.Info("task cancelled", "completed", p.Completed, "total", p.Total)
}
