package testplan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyaki-up/testplan/internal/workitems"
)

type recorder struct {
	mu     sync.Mutex
	phases []Phase
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, s.Phase)
}

func (r *recorder) get() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Phase(nil), r.phases...)
}

func staticHost(start Start) Host {
	return HostFunc(func(context.Context) (Start, error) { return start, nil })
}

func TestControllerPopulated(t *testing.T) {
	svc := featureFixture()
	ctrl := NewController(newTestResolver(t, svc), staticHost(Start{ID: 1, Type: workitems.TypeFeature, Project: testProject}), zerolog.Nop())
	rec := &recorder{}
	ctrl.Subscribe(rec.record)

	assert.Equal(t, PhaseIdle, ctrl.State().Phase)

	state := ctrl.OnLoaded(context.Background(), LoadedArgs{ID: 1})
	assert.Equal(t, PhasePopulated, state.Phase)
	require.NotNil(t, state.Tree)
	assert.Len(t, state.Tree.Requirements, 2)
	assert.Equal(t, []Phase{PhaseResolving, PhasePopulated}, rec.get())
	assert.Equal(t, state.Generation, ctrl.State().Generation)

	// Saving re-enters resolving from the terminal state.
	state = ctrl.OnSaved(context.Background())
	assert.Equal(t, PhasePopulated, state.Phase)
	assert.Equal(t, uint64(2), state.Generation)
	assert.Equal(t, []Phase{PhaseResolving, PhasePopulated, PhaseResolving, PhasePopulated}, rec.get())
}

func TestControllerEmpty(t *testing.T) {
	svc := newFakeService()
	svc.add(20, "Task", "Orphan", 0)
	ctrl := NewController(newTestResolver(t, svc), staticHost(Start{ID: 20, Type: "Task", Project: testProject}), zerolog.Nop())

	state := ctrl.OnRefreshed(context.Background())
	assert.Equal(t, PhaseEmpty, state.Phase)
	assert.True(t, state.Tree.IsEmpty())
	assert.NoError(t, state.Err)
}

func TestControllerFailed(t *testing.T) {
	boom := errors.New("host unavailable")
	host := HostFunc(func(context.Context) (Start, error) { return Start{}, boom })
	ctrl := NewController(newTestResolver(t, newFakeService()), host, zerolog.Nop())

	state := ctrl.Refresh(context.Background())
	assert.Equal(t, PhaseFailed, state.Phase)
	assert.ErrorIs(t, state.Err, boom)
	assert.Equal(t, PhaseFailed, ctrl.State().Phase)
}

func TestControllerUnsavedItem(t *testing.T) {
	svc := newFakeService()
	ctrl := NewController(newTestResolver(t, svc), staticHost(Start{}), zerolog.Nop())

	state := ctrl.OnLoaded(context.Background(), LoadedArgs{IsNew: true})
	assert.Equal(t, PhaseUnsaved, state.Phase)
	assert.Zero(t, svc.totalItemCalls())

	ctrl.Reset()
	assert.Equal(t, PhaseIdle, ctrl.State().Phase)
}

// blockingResolver returns the tree of the call only once released.
type blockingResolver struct {
	calls   chan Start
	release chan *Tree
}

func (b *blockingResolver) Resolve(ctx context.Context, start Start) (*Tree, error) {
	b.calls <- start
	select {
	case tree := <-b.release:
		return tree, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestControllerDiscardsSupersededRefresh(t *testing.T) {
	res := &blockingResolver{calls: make(chan Start, 2), release: make(chan *Tree)}
	ctrl := NewController(res, staticHost(Start{ID: 1, Type: workitems.TypeFeature}), zerolog.Nop())

	firstDone := make(chan State, 1)
	go func() { firstDone <- ctrl.Refresh(context.Background()) }()
	<-res.calls

	secondDone := make(chan State, 1)
	go func() { secondDone <- ctrl.Refresh(context.Background()) }()
	<-res.calls

	// The first cycle was cancelled when the second began.
	var first State
	select {
	case first = <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("first refresh was not cancelled")
	}
	assert.Equal(t, PhaseFailed, first.Phase)
	assert.ErrorIs(t, first.Err, context.Canceled)
	assert.Equal(t, PhaseResolving, ctrl.State().Phase, "stale result must not be applied")

	tree := &Tree{RefreshID: "second", Root: RootRequirement, Requirements: []RequirementNode{{Item: &workitems.WorkItem{ID: 10}}}}
	res.release <- tree
	second := <-secondDone

	assert.Equal(t, PhasePopulated, second.Phase)
	current := ctrl.State()
	assert.Equal(t, PhasePopulated, current.Phase)
	assert.Equal(t, "second", current.Tree.RefreshID)
	assert.Equal(t, uint64(2), current.Generation)
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(PhaseIdle, PhaseResolving))
	assert.NoError(t, ValidateTransition(PhaseResolving, PhaseResolving))
	assert.NoError(t, ValidateTransition(PhaseEmpty, PhaseResolving))
	assert.NoError(t, ValidateTransition(PhasePopulated, PhaseIdle))

	err := ValidateTransition(PhaseIdle, PhasePopulated)
	assert.ErrorIs(t, err, ErrInvalidPhaseTransition)
	assert.ErrorIs(t, ValidateTransition(Phase("bogus"), PhaseIdle), ErrInvalidPhaseTransition)

	assert.True(t, IsValidPhase(PhaseUnsaved))
	assert.False(t, IsValidPhase(Phase("bogus")))
	assert.True(t, PhaseEmpty.IsTerminal())
	assert.False(t, PhaseResolving.IsTerminal())
}
