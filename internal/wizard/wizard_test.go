package wizard_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slabworks/visualizer/internal/domain"
	"github.com/slabworks/visualizer/internal/wizard"
)

func slab(id string) domain.SlabOption {
	return domain.SlabOption{ID: id, Name: "Slab " + id, ImageURL: "https://cdn.example.com/" + id + ".jpg"}
}

// scriptedRun resolves slabs according to a per-id script and records calls.
type scriptedRun struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
}

func newScriptedRun() *scriptedRun {
	return &scriptedRun{fail: map[string]bool{}, calls: map[string]int{}}
}

func (f *scriptedRun) run(_ context.Context, _ string, s domain.SlabOption) wizard.Result {
	f.mu.Lock()
	f.calls[s.ID]++
	n := f.calls[s.ID]
	failed := f.fail[s.ID]
	f.mu.Unlock()
	if failed {
		return wizard.Result{SlabID: s.ID, SlabName: s.Name, Error: "server returned 500"}
	}
	return wizard.Result{SlabID: s.ID, SlabName: s.Name, ImageData: fmt.Sprintf("img-%s-%d", s.ID, n)}
}

func TestToggleSlab_CapAndDedupe(t *testing.T) {
	sess := wizard.NewSession(newScriptedRun().run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))

	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.ToggleSlab(slab("b")))
	require.NoError(t, sess.ToggleSlab(slab("c")))
	assert.ErrorIs(t, sess.ToggleSlab(slab("d")), wizard.ErrSelectionLimit)

	// toggling off then on again never duplicates
	require.NoError(t, sess.ToggleSlab(slab("b")))
	require.NoError(t, sess.ToggleSlab(slab("b")))
	st := sess.State()
	require.Len(t, st.Selected, 3)
	seen := map[string]bool{}
	for _, s := range st.Selected {
		assert.False(t, seen[s.ID])
		seen[s.ID] = true
	}
}

func TestGenerate_PerSlabIsolation(t *testing.T) {
	run := newScriptedRun()
	run.fail["b"] = true
	sess := wizard.NewSession(run.run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.ToggleSlab(slab("b")))

	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()

	results := sess.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "img-a-1", results["a"].ImageData)
	assert.Empty(t, results["a"].Error)
	assert.Empty(t, results["b"].ImageData)
	assert.Equal(t, "server returned 500", results["b"].Error)
	assert.False(t, results["a"].Loading)
	assert.False(t, results["b"].Loading)
}

func TestGenerate_RequiresKitchenAndSelection(t *testing.T) {
	sess := wizard.NewSession(newScriptedRun().run)
	assert.ErrorIs(t, sess.Generate(context.Background()), wizard.ErrNoKitchenImage)

	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	assert.ErrorIs(t, sess.Generate(context.Background()), wizard.ErrNoSelection)
}

func TestGenerate_FallsThroughToExistingResults(t *testing.T) {
	run := newScriptedRun()
	sess := wizard.NewSession(run.run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()

	sess.Back()
	// nothing newly selected: generate shows the cached results again
	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()
	assert.Equal(t, wizard.StepResults, sess.State().Step)
	assert.Equal(t, 1, run.calls["a"])
}

func TestPersistedResults_SurviveNavigationAndMerge(t *testing.T) {
	run := newScriptedRun()
	sess := wizard.NewSession(run.run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()

	sess.Reset()
	require.NoError(t, sess.ToggleSlab(slab("b")))
	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()

	results := sess.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "img-a-1", results["a"].ImageData)
	assert.Equal(t, "img-b-1", results["b"].ImageData)
}

func TestToggleSlab_RejectsAlreadyGenerated(t *testing.T) {
	run := newScriptedRun()
	sess := wizard.NewSession(run.run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()

	sess.Reset()
	assert.ErrorIs(t, sess.ToggleSlab(slab("a")), wizard.ErrAlreadyGenerated)
}

func TestSelectKitchen_SameImageKeepsResults(t *testing.T) {
	run := newScriptedRun()
	sess := wizard.NewSession(run.run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()

	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	assert.Len(t, sess.Results(), 1)

	require.NoError(t, sess.SelectKitchen("kitchen-b"))
	assert.Empty(t, sess.Results())
}

func TestRetry_ReplacesOnlyThatSlab(t *testing.T) {
	run := newScriptedRun()
	run.fail["b"] = true
	sess := wizard.NewSession(run.run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.ToggleSlab(slab("b")))
	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()

	run.mu.Lock()
	run.fail["b"] = false
	run.mu.Unlock()

	require.NoError(t, sess.Retry(context.Background(), "b"))
	sess.Wait()

	results := sess.Results()
	assert.Equal(t, "img-a-1", results["a"].ImageData, "sibling untouched")
	assert.Equal(t, "img-b-2", results["b"].ImageData)
	assert.Empty(t, results["b"].Error)
}

func TestRetry_IsIdempotentLastWriteWins(t *testing.T) {
	run := newScriptedRun()
	sess := wizard.NewSession(run.run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.Generate(context.Background()))
	sess.Wait()

	require.NoError(t, sess.Retry(context.Background(), "a"))
	sess.Wait()
	require.NoError(t, sess.Retry(context.Background(), "a"))
	sess.Wait()

	results := sess.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "img-a-3", results["a"].ImageData)
}

func TestRetry_UnknownSlab(t *testing.T) {
	sess := wizard.NewSession(newScriptedRun().run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	assert.ErrorIs(t, sess.Retry(context.Background(), "nope"), wizard.ErrUnknownSlab)
}

func TestGenerate_SeedsLoadingPlaceholders(t *testing.T) {
	release := make(chan struct{})
	run := func(_ context.Context, _ string, s domain.SlabOption) wizard.Result {
		<-release
		return wizard.Result{SlabID: s.ID, SlabName: s.Name, ImageData: "done"}
	}
	sess := wizard.NewSession(run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.ToggleSlab(slab("b")))
	require.NoError(t, sess.Generate(context.Background()))

	st := sess.State()
	assert.Equal(t, wizard.StepResults, st.Step)
	assert.True(t, st.Generating)
	require.Len(t, st.Results, 2)
	for _, r := range st.Results {
		assert.True(t, r.Loading)
		assert.Empty(t, r.ImageData)
	}

	close(release)
	sess.Wait()
	st = sess.State()
	assert.False(t, st.Generating)
	for _, r := range st.Results {
		assert.False(t, r.Loading)
		assert.Equal(t, "done", r.ImageData)
	}
}

func TestClose_DropsLateCompletions(t *testing.T) {
	release := make(chan struct{})
	run := func(_ context.Context, _ string, s domain.SlabOption) wizard.Result {
		<-release
		return wizard.Result{SlabID: s.ID, ImageData: "late"}
	}
	sess := wizard.NewSession(run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.Generate(context.Background()))

	sess.Close()
	close(release)
	sess.Wait()
	assert.Empty(t, sess.Results())
}

func TestKitchenChangeMidFlight_DropsStaleCompletion(t *testing.T) {
	release := make(chan struct{})
	run := func(_ context.Context, kitchen string, s domain.SlabOption) wizard.Result {
		<-release
		return wizard.Result{SlabID: s.ID, ImageData: "from-" + kitchen}
	}
	sess := wizard.NewSession(run)
	require.NoError(t, sess.SelectKitchen("kitchen-a"))
	require.NoError(t, sess.ToggleSlab(slab("a")))
	require.NoError(t, sess.Generate(context.Background()))

	require.NoError(t, sess.SelectKitchen("kitchen-b"))
	close(release)
	sess.Wait()
	assert.Empty(t, sess.Results(), "composite for the old photo must not surface")
}
