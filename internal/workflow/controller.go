// Package workflow owns the working state of one pipeline run and the named
// transitions that move it through analysis, render and history.
//
// Only one stage may be in flight at a time. A transition that arrives while
// a stage is running is rejected with types.ErrBusy and leaves the state
// untouched.
package workflow

import (
	"context"
	"strings"
	"sync"
	"time"

	"visualsoal/internal/logging"
	"visualsoal/internal/messages"
	"visualsoal/internal/types"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Generator runs the two generation stages.
type Generator interface {
	AnalyzeAndPrompt(ctx context.Context, input string, style types.Style, ratio types.AspectRatio) (types.PromptResult, error)
	RenderImage(ctx context.Context, prompt string, ratio types.AspectRatio) (string, error)
}

// HistoryStore persists completed runs.
type HistoryStore interface {
	Load() []types.Record
	Insert(rec types.Record) ([]types.Record, error)
	Remove(id string) ([]types.Record, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator replaces the uuid generator for record ids.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// Controller is the state machine. All methods are safe for concurrent use.
type Controller struct {
	gen     Generator
	store   HistoryStore
	catalog *messages.Catalog

	mu      sync.Mutex
	state   types.State
	history []types.Record

	// Held for the whole duration of a stage, including the history write.
	inflight *semaphore.Weighted

	subsMu  sync.Mutex
	subs    map[int]func(types.State)
	nextSub int

	now   func() time.Time
	newID func() string
}

// New creates a controller with an empty working state. Call Load to read
// history.
func New(gen Generator, store HistoryStore, catalog *messages.Catalog, opts ...Option) *Controller {
	if catalog == nil {
		catalog = messages.MustLoad(messages.DefaultLocale)
	}
	c := &Controller{
		gen:      gen,
		store:    store,
		catalog:  catalog,
		state:    types.NewState(),
		inflight: semaphore.NewWeighted(1),
		subs:     make(map[int]func(types.State)),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// OBSERVATION
// =============================================================================

// Snapshot returns a copy of the working state.
func (c *Controller) Snapshot() types.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a copy of the history list, newest first.
func (c *Controller) History() []types.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Record, len(c.history))
	copy(out, c.history)
	return out
}

// Record looks up one history record by id.
func (c *Controller) Record(id string) (types.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.history {
		if r.ID == id {
			return r, true
		}
	}
	return types.Record{}, false
}

// Subscribe registers fn to receive a snapshot after every transition.
// fn is called without controller locks held. The returned func removes it.
func (c *Controller) Subscribe(fn func(types.State)) (cancel func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

func (c *Controller) notify() {
	snap := c.Snapshot()

	c.subsMu.Lock()
	fns := make([]func(types.State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Load reads the persisted history. Unreadable history loads as empty.
func (c *Controller) Load() []types.Record {
	records := c.store.Load()
	c.mu.Lock()
	c.history = records
	c.mu.Unlock()
	logging.Workflow("Loaded %d history records", len(records))
	logging.AuditHistory(logging.AuditHistoryLoad, "", len(records), nil)
	c.notify()
	return c.History()
}

// Analyze sets the editable fields and runs the analysis stage.
func (c *Controller) Analyze(ctx context.Context, input string, style types.Style, ratio types.AspectRatio) error {
	if !c.inflight.TryAcquire(1) {
		return types.ErrBusy
	}
	c.mu.Lock()
	c.state.Input = input
	if style.Valid() {
		c.state.Style = style
	}
	if ratio.Valid() {
		c.state.AspectRatio = ratio
	}
	c.mu.Unlock()
	return c.runAnalysis(ctx)
}

// StartAnalysis runs the analysis stage on the current editable fields.
// Empty input sets an EmptyInput error and makes no call.
func (c *Controller) StartAnalysis(ctx context.Context) error {
	if !c.inflight.TryAcquire(1) {
		logging.WorkflowWarn("StartAnalysis rejected: stage in flight")
		auditBusy("analyze")
		return types.ErrBusy
	}
	return c.runAnalysis(ctx)
}

// runAnalysis expects the inflight slot to be held and releases it.
func (c *Controller) runAnalysis(ctx context.Context) error {
	defer c.inflight.Release(1)

	c.mu.Lock()
	if strings.TrimSpace(c.state.Input) == "" {
		c.setErrorLocked(types.ErrEmptyInput)
		c.mu.Unlock()
		logging.WorkflowDebug("StartAnalysis: empty input")
		c.notify()
		return types.ErrEmptyInput
	}

	c.clearErrorLocked()
	c.state.Analysis = ""
	c.state.VisualPrompt = ""
	c.state.ImageData = ""
	c.state.Analyzing = true
	c.state.Phase = types.PhaseAnalyzing
	input, style, ratio := c.state.Input, c.state.Style, c.state.AspectRatio
	c.mu.Unlock()
	c.notify()

	logging.Workflow("Analysis started: style=%s ratio=%s", style, ratio)
	logging.Audit(logging.AuditEvent{EventType: logging.AuditAnalyzeStart, Success: true,
		Fields: map[string]interface{}{"style": style, "ratio": ratio, "input_len": len(input)}})
	timer := logging.StartTimer(logging.CategoryWorkflow, "analysis")
	result, err := c.gen.AnalyzeAndPrompt(ctx, input, style, ratio)
	elapsed := timer.Stop()

	c.mu.Lock()
	c.state.Analyzing = false
	switch {
	case err != nil:
		c.setErrorLocked(err)
		c.state.Phase = types.PhaseIdle
	case result.VisualPrompt == "":
		err = types.ErrEmptyAnalysisResult
		c.setErrorLocked(err)
		c.state.Phase = types.PhaseIdle
	default:
		c.state.Analysis = result.Analysis
		c.state.VisualPrompt = result.VisualPrompt
		c.state.Phase = types.PhaseAnalyzedReady
	}
	c.mu.Unlock()

	logging.AuditStage("analyze", elapsed, kindString(err), err)
	if err != nil {
		logging.WorkflowWarn("Analysis failed: %v", err)
	} else {
		logging.Workflow("Analysis ready: prompt_len=%d", len(result.VisualPrompt))
	}
	c.notify()
	return err
}

// StartRender runs the render stage on the current prompt. Without a
// prompt it does nothing. A successful render is appended to history as a
// new record.
func (c *Controller) StartRender(ctx context.Context) error {
	if !c.inflight.TryAcquire(1) {
		logging.WorkflowWarn("StartRender rejected: stage in flight")
		auditBusy("render")
		return types.ErrBusy
	}
	defer c.inflight.Release(1)

	c.mu.Lock()
	if !c.state.HasPrompt() {
		c.mu.Unlock()
		logging.WorkflowDebug("StartRender: no prompt, ignoring")
		return nil
	}
	c.clearErrorLocked()
	c.state.Rendering = true
	c.state.Phase = types.PhaseRendering
	prompt, ratio := c.state.VisualPrompt, c.state.AspectRatio
	c.mu.Unlock()
	c.notify()

	logging.Workflow("Render started: ratio=%s", ratio)
	logging.Audit(logging.AuditEvent{EventType: logging.AuditRenderStart, Success: true,
		Fields: map[string]interface{}{"ratio": ratio, "prompt_len": len(prompt)}})
	timer := logging.StartTimer(logging.CategoryWorkflow, "render")
	image, err := c.gen.RenderImage(ctx, prompt, ratio)
	elapsed := timer.Stop()
	logging.AuditStage("render", elapsed, kindString(err), err)

	c.mu.Lock()
	c.state.Rendering = false
	if err != nil {
		c.setErrorLocked(err)
		c.state.Phase = types.PhaseAnalyzedReady
		c.mu.Unlock()
		logging.WorkflowWarn("Render failed: %v", err)
		c.notify()
		return err
	}

	c.state.ImageData = image
	c.state.Phase = types.PhaseComplete
	rec := types.Record{
		ID:           c.newID(),
		CreatedAt:    c.now(),
		SourceText:   c.state.Input,
		Style:        c.state.Style,
		AspectRatio:  c.state.AspectRatio,
		AnalysisText: c.state.Analysis,
		VisualPrompt: c.state.VisualPrompt,
		ImageData:    image,
	}
	c.mu.Unlock()

	records, werr := c.store.Insert(rec)
	logging.AuditHistory(logging.AuditHistoryInsert, rec.ID, len(records), werr)

	c.mu.Lock()
	c.history = records
	if werr != nil {
		c.setErrorLocked(werr)
	}
	c.mu.Unlock()

	if werr != nil {
		logging.WorkflowWarn("Render complete but history write failed: %v", werr)
	} else {
		logging.Workflow("Render complete: record=%s", rec.ID)
	}
	c.notify()
	return werr
}

// Restore copies a history record into the working state and switches to
// the generate view. The store is not touched.
func (c *Controller) Restore(rec types.Record) error {
	if !c.inflight.TryAcquire(1) {
		return types.ErrBusy
	}
	defer c.inflight.Release(1)

	c.mu.Lock()
	c.state.Input = rec.SourceText
	c.state.Style = rec.Style
	c.state.AspectRatio = rec.AspectRatio
	c.state.Analysis = rec.AnalysisText
	c.state.VisualPrompt = rec.VisualPrompt
	c.state.ImageData = rec.ImageData
	c.state.View = types.ViewGenerate
	c.state.Phase = phaseFor(c.state)
	c.clearErrorLocked()
	c.mu.Unlock()

	logging.Workflow("Restored record %s", rec.ID)
	logging.AuditHistory(logging.AuditHistoryRestore, rec.ID, len(c.History()), nil)
	c.notify()
	return nil
}

// RestoreID restores the history record with id.
func (c *Controller) RestoreID(id string) (bool, error) {
	rec, ok := c.Record(id)
	if !ok {
		return false, nil
	}
	return true, c.Restore(rec)
}

// DeleteRecord removes a record from history. The working state is left
// alone even when it was restored from that record.
func (c *Controller) DeleteRecord(id string) error {
	records, err := c.store.Remove(id)
	logging.AuditHistory(logging.AuditHistoryRemove, id, len(records), err)

	c.mu.Lock()
	c.history = records
	if err != nil {
		c.setErrorLocked(err)
	}
	c.mu.Unlock()

	if err != nil {
		logging.WorkflowWarn("Delete %s failed: %v", id, err)
	} else {
		logging.WorkflowDebug("Deleted record %s", id)
	}
	c.notify()
	return err
}

// SetInput replaces the stimulus text.
func (c *Controller) SetInput(input string) error {
	return c.edit(func(s *types.State) { s.Input = input })
}

// SetStyle replaces the style. Invalid styles are ignored.
func (c *Controller) SetStyle(style types.Style) error {
	if !style.Valid() {
		return nil
	}
	return c.edit(func(s *types.State) { s.Style = style })
}

// SetAspectRatio replaces the aspect ratio. Invalid ratios are ignored.
func (c *Controller) SetAspectRatio(ratio types.AspectRatio) error {
	if !ratio.Valid() {
		return nil
	}
	return c.edit(func(s *types.State) { s.AspectRatio = ratio })
}

func (c *Controller) edit(fn func(*types.State)) error {
	if !c.inflight.TryAcquire(1) {
		return types.ErrBusy
	}
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
	c.inflight.Release(1)
	c.notify()
	return nil
}

// SetView switches the active surface.
func (c *Controller) SetView(view types.View) {
	if view != types.ViewGenerate && view != types.ViewHistory {
		return
	}
	c.mu.Lock()
	c.state.View = view
	c.mu.Unlock()
	c.notify()
}

// DismissError clears the visible error.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.clearErrorLocked()
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) setErrorLocked(err error) {
	c.state.Error = c.catalog.Text(err)
	c.state.ErrorKind = types.KindOf(err)
}

func (c *Controller) clearErrorLocked() {
	c.state.Error = ""
	c.state.ErrorKind = ""
}

func phaseFor(s types.State) types.Phase {
	switch {
	case s.ImageData != "":
		return types.PhaseComplete
	case s.VisualPrompt != "":
		return types.PhaseAnalyzedReady
	}
	return types.PhaseIdle
}

func kindString(err error) string {
	if err == nil {
		return ""
	}
	return string(types.KindOf(err))
}

func auditBusy(op string) {
	logging.Audit(logging.AuditEvent{
		EventType: logging.AuditBusyReject,
		Kind:      string(types.KindBusy),
		Fields:    map[string]interface{}{"op": op},
	})
}
