package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"visualsoal/internal/history"
	"visualsoal/internal/messages"
	"visualsoal/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGenerator struct {
	mu sync.Mutex

	result     types.PromptResult
	analyzeErr error
	image      string
	renderErr  error

	// When non-nil, calls block until a value is received.
	gate chan struct{}

	analyzeCalls int
	renderCalls  int
	lastInput    string
	lastPrompt   string
}

func (f *fakeGenerator) AnalyzeAndPrompt(ctx context.Context, input string, style types.Style, ratio types.AspectRatio) (types.PromptResult, error) {
	f.mu.Lock()
	f.analyzeCalls++
	f.lastInput = input
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.result, f.analyzeErr
}

func (f *fakeGenerator) RenderImage(ctx context.Context, prompt string, ratio types.AspectRatio) (string, error) {
	f.mu.Lock()
	f.renderCalls++
	f.lastPrompt = prompt
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return f.image, f.renderErr
}

func newTestController(t *testing.T, gen *fakeGenerator) (*Controller, *history.Store, *history.MemoryKV) {
	t.Helper()
	kv := history.NewMemoryKV()
	store := history.NewStore(kv, "visual_soal_history_v1", 50)
	seq := 0
	c := New(gen, store, messages.MustLoad("en"),
		WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	c.Load()
	return c, store, kv
}

func successGenerator() *fakeGenerator {
	return &fakeGenerator{
		result: types.PromptResult{Analysis: "analisis", VisualPrompt: "a market scene"},
		image:  "data:image/png;base64,AAAA",
	}
}

func TestNewControllerInitialState(t *testing.T) {
	c, _, _ := newTestController(t, successGenerator())
	s := c.Snapshot()
	assert.Equal(t, types.PhaseIdle, s.Phase)
	assert.Equal(t, types.ViewGenerate, s.View)
	assert.Equal(t, types.StyleThreeD, s.Style)
	assert.Equal(t, types.AspectLandscape, s.AspectRatio)
	assert.Empty(t, c.History())
}

func TestStartAnalysisEmptyInput(t *testing.T) {
	gen := successGenerator()
	c, _, _ := newTestController(t, gen)
	require.NoError(t, c.SetInput("   \n\t"))

	err := c.StartAnalysis(context.Background())
	assert.ErrorIs(t, err, types.ErrEmptyInput)

	s := c.Snapshot()
	assert.Equal(t, types.KindEmptyInput, s.ErrorKind)
	assert.NotEmpty(t, s.Error)
	assert.Equal(t, types.PhaseIdle, s.Phase)
	assert.False(t, s.Analyzing)
	assert.Equal(t, 0, gen.analyzeCalls)
}

func TestAnalyzeSuccess(t *testing.T) {
	gen := successGenerator()
	c, _, _ := newTestController(t, gen)

	err := c.Analyze(context.Background(), "Pasar tradisional", types.StyleSketch, types.AspectSquare)
	require.NoError(t, err)

	s := c.Snapshot()
	assert.Equal(t, types.PhaseAnalyzedReady, s.Phase)
	assert.Equal(t, "analisis", s.Analysis)
	assert.Equal(t, "a market scene", s.VisualPrompt)
	assert.Equal(t, types.StyleSketch, s.Style)
	assert.Equal(t, types.AspectSquare, s.AspectRatio)
	assert.False(t, s.Analyzing)
	assert.Empty(t, s.Error)
	assert.Equal(t, "Pasar tradisional", gen.lastInput)
}

func TestAnalysisClearsPreviousRun(t *testing.T) {
	gen := successGenerator()
	c, _, _ := newTestController(t, gen)
	require.NoError(t, c.Analyze(context.Background(), "first", types.StyleFlat, types.AspectSquare))
	require.NoError(t, c.StartRender(context.Background()))
	require.NotEmpty(t, c.Snapshot().ImageData)

	gen.analyzeErr = errors.New("network down")
	err := c.StartAnalysis(context.Background())
	require.Error(t, err)

	s := c.Snapshot()
	assert.Empty(t, s.Analysis)
	assert.Empty(t, s.VisualPrompt)
	assert.Empty(t, s.ImageData)
	assert.Equal(t, types.PhaseIdle, s.Phase)
	assert.Equal(t, types.KindTransport, s.ErrorKind)
	assert.Contains(t, s.Error, "network down")
}

func TestAnalysisEmptyPromptIsFailure(t *testing.T) {
	gen := &fakeGenerator{result: types.PromptResult{Analysis: "something", VisualPrompt: ""}}
	c, _, _ := newTestController(t, gen)

	err := c.Analyze(context.Background(), "x", types.StyleFlat, types.AspectSquare)
	assert.ErrorIs(t, err, types.ErrEmptyAnalysisResult)

	s := c.Snapshot()
	assert.Equal(t, types.KindEmptyAnalysisResult, s.ErrorKind)
	assert.Empty(t, s.Analysis)
	assert.False(t, s.HasPrompt())
	assert.False(t, s.Analyzing)
}

func TestStartRenderWithoutPromptIsNoop(t *testing.T) {
	gen := successGenerator()
	c, store, kv := newTestController(t, gen)
	before := c.Snapshot()

	require.NoError(t, c.StartRender(context.Background()))

	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, 0, gen.renderCalls)
	assert.Empty(t, store.Records())
	assert.Equal(t, 0, kv.Writes())
}

func TestRenderSuccessPersistsRecord(t *testing.T) {
	gen := successGenerator()
	c, store, _ := newTestController(t, gen)
	require.NoError(t, c.Analyze(context.Background(), "stimulus", types.StyleRealistic, types.AspectPortrait))

	require.NoError(t, c.StartRender(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, types.PhaseComplete, s.Phase)
	assert.Equal(t, "data:image/png;base64,AAAA", s.ImageData)
	assert.False(t, s.Rendering)

	records := store.Records()
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, "stimulus", rec.SourceText)
	assert.Equal(t, types.StyleRealistic, rec.Style)
	assert.Equal(t, types.AspectPortrait, rec.AspectRatio)
	assert.Equal(t, "analisis", rec.AnalysisText)
	assert.Equal(t, "a market scene", rec.VisualPrompt)
	assert.Equal(t, s.ImageData, rec.ImageData)
	assert.Equal(t, int64(1_700_000_000_000), rec.CreatedAt.UnixMilli())
	assert.Equal(t, records, c.History())
}

func TestRenderFailureKeepsPrompt(t *testing.T) {
	gen := successGenerator()
	gen.renderErr = types.NewError(types.KindModelUnavailable, errors.New("404"))
	c, store, _ := newTestController(t, gen)
	require.NoError(t, c.Analyze(context.Background(), "stimulus", types.StyleFlat, types.AspectSquare))

	err := c.StartRender(context.Background())
	require.Error(t, err)

	s := c.Snapshot()
	assert.Equal(t, types.PhaseAnalyzedReady, s.Phase)
	assert.Equal(t, "a market scene", s.VisualPrompt)
	assert.Equal(t, "analisis", s.Analysis)
	assert.Equal(t, types.KindModelUnavailable, s.ErrorKind)
	assert.False(t, s.Rendering)
	assert.Empty(t, store.Records())

	// Retry without redoing stage 1.
	gen.renderErr = nil
	require.NoError(t, c.StartRender(context.Background()))
	assert.Equal(t, 1, gen.analyzeCalls)
	assert.Equal(t, types.PhaseComplete, c.Snapshot().Phase)
	assert.Empty(t, c.Snapshot().Error)
}

func TestRenderWriteFailureKeepsImage(t *testing.T) {
	gen := successGenerator()
	c, store, kv := newTestController(t, gen)
	require.NoError(t, c.Analyze(context.Background(), "stimulus", types.StyleFlat, types.AspectSquare))

	kv.FailWrites(history.ErrWriteRejected)
	err := c.StartRender(context.Background())
	assert.True(t, types.IsKind(err, types.KindPersistenceWrite))

	s := c.Snapshot()
	assert.Equal(t, types.PhaseComplete, s.Phase)
	assert.NotEmpty(t, s.ImageData)
	assert.Equal(t, types.KindPersistenceWrite, s.ErrorKind)
	assert.Empty(t, store.Records())
	assert.Empty(t, c.History())
}

func TestRestoreThenRenderCreatesNewRecord(t *testing.T) {
	gen := successGenerator()
	c, store, _ := newTestController(t, gen)
	require.NoError(t, c.Analyze(context.Background(), "stimulus", types.StyleFlat, types.AspectSquare))
	require.NoError(t, c.StartRender(context.Background()))
	original := store.Records()[0]

	c.SetView(types.ViewHistory)
	require.NoError(t, c.Analyze(context.Background(), "other", types.StyleSketch, types.AspectLandscape))

	require.NoError(t, c.Restore(original))
	s := c.Snapshot()
	assert.Equal(t, types.ViewGenerate, s.View)
	assert.Equal(t, original.SourceText, s.Input)
	assert.Equal(t, original.Style, s.Style)
	assert.Equal(t, original.AspectRatio, s.AspectRatio)
	assert.Equal(t, original.VisualPrompt, s.VisualPrompt)
	assert.Equal(t, original.ImageData, s.ImageData)
	assert.Equal(t, types.PhaseComplete, s.Phase)

	require.NoError(t, c.StartRender(context.Background()))
	records := store.Records()
	require.Len(t, records, 2)
	assert.NotEqual(t, original.ID, records[0].ID)
	assert.Equal(t, original, records[1])
	assert.Equal(t, original.VisualPrompt, gen.lastPrompt)
}

func TestRestoreClearsError(t *testing.T) {
	c, _, _ := newTestController(t, successGenerator())
	require.ErrorIs(t, c.StartAnalysis(context.Background()), types.ErrEmptyInput)
	require.NotEmpty(t, c.Snapshot().Error)

	require.NoError(t, c.Restore(types.Record{ID: "r", SourceText: "x", Style: types.StyleFlat, AspectRatio: types.AspectSquare}))
	s := c.Snapshot()
	assert.Empty(t, s.Error)
	assert.Equal(t, types.PhaseIdle, s.Phase)
}

func TestDeleteRecordLeavesWorkingState(t *testing.T) {
	gen := successGenerator()
	c, store, _ := newTestController(t, gen)
	require.NoError(t, c.Analyze(context.Background(), "stimulus", types.StyleFlat, types.AspectSquare))
	require.NoError(t, c.StartRender(context.Background()))
	rec := store.Records()[0]
	require.NoError(t, c.Restore(rec))
	before := c.Snapshot()

	require.NoError(t, c.DeleteRecord(rec.ID))
	assert.Empty(t, store.Records())
	assert.Empty(t, c.History())
	assert.Equal(t, before, c.Snapshot())

	require.NoError(t, c.DeleteRecord("missing"))
}

func TestRestoreID(t *testing.T) {
	c, _, _ := newTestController(t, successGenerator())
	found, err := c.RestoreID("nope")
	assert.False(t, found)
	assert.NoError(t, err)
}

func TestDismissError(t *testing.T) {
	c, _, _ := newTestController(t, successGenerator())
	_ = c.StartAnalysis(context.Background())
	require.NotEmpty(t, c.Snapshot().Error)

	c.DismissError()
	s := c.Snapshot()
	assert.Empty(t, s.Error)
	assert.Empty(t, s.ErrorKind)
}

func TestSetters(t *testing.T) {
	c, _, _ := newTestController(t, successGenerator())
	require.NoError(t, c.SetInput("abc"))
	require.NoError(t, c.SetStyle(types.StyleSketch))
	require.NoError(t, c.SetAspectRatio(types.AspectPortrait))
	require.NoError(t, c.SetStyle(types.Style("WATERCOLOR")))
	c.SetView(types.ViewHistory)
	c.SetView(types.View("settings"))

	s := c.Snapshot()
	assert.Equal(t, "abc", s.Input)
	assert.Equal(t, types.StyleSketch, s.Style)
	assert.Equal(t, types.AspectPortrait, s.AspectRatio)
	assert.Equal(t, types.ViewHistory, s.View)
}

func TestBusyRejectsReentry(t *testing.T) {
	gen := successGenerator()
	gen.gate = make(chan struct{})
	c, _, _ := newTestController(t, gen)
	require.NoError(t, c.SetInput("stimulus"))

	started := make(chan struct{})
	cancel := c.Subscribe(func(s types.State) {
		if s.Analyzing {
			select {
			case <-started:
			default:
				close(started)
			}
		}
	})
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.StartAnalysis(context.Background()) }()
	<-started

	assert.ErrorIs(t, c.StartAnalysis(context.Background()), types.ErrBusy)
	assert.ErrorIs(t, c.StartRender(context.Background()), types.ErrBusy)
	assert.ErrorIs(t, c.Restore(types.Record{ID: "x"}), types.ErrBusy)
	assert.ErrorIs(t, c.SetInput("changed"), types.ErrBusy)

	s := c.Snapshot()
	assert.True(t, s.Analyzing)
	assert.True(t, s.Busy())
	assert.Equal(t, "stimulus", s.Input)

	gen.gate <- struct{}{}
	require.NoError(t, <-done)

	s = c.Snapshot()
	assert.False(t, s.Busy())
	assert.Equal(t, types.PhaseAnalyzedReady, s.Phase)
	assert.Equal(t, 1, gen.analyzeCalls)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	c, _, _ := newTestController(t, successGenerator())

	var mu sync.Mutex
	var phases []types.Phase
	cancel := c.Subscribe(func(s types.State) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})

	require.NoError(t, c.Analyze(context.Background(), "x", types.StyleFlat, types.AspectSquare))
	require.NoError(t, c.StartRender(context.Background()))
	cancel()
	cancel()
	c.DismissError()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.Phase{
		types.PhaseAnalyzing,
		types.PhaseAnalyzedReady,
		types.PhaseRendering,
		types.PhaseComplete,
	}, phases)
}

func TestLoadReadsPersistedHistory(t *testing.T) {
	kv := history.NewMemoryKV()
	store := history.NewStore(kv, "k", 50)
	store.Load()
	_, err := store.Insert(types.Record{ID: "persisted", Style: types.StyleFlat, AspectRatio: types.AspectSquare})
	require.NoError(t, err)

	c := New(successGenerator(), history.NewStore(kv, "k", 50), nil)
	records := c.Load()
	require.Len(t, records, 1)
	assert.Equal(t, "persisted", records[0].ID)

	rec, ok := c.Record("persisted")
	assert.True(t, ok)
	assert.Equal(t, "persisted", rec.ID)
}
