package testplan

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// TreeResolver is satisfied by *Resolver.
type TreeResolver interface {
	Resolve(ctx context.Context, start Start) (*Tree, error)
}

// State is what the rendering consumer sees.
type State struct {
	Phase      Phase
	Generation uint64
	Tree       *Tree
	Err        error
}

type LoadedArgs struct {
	ID    int
	IsNew bool
}

// Controller drives refresh cycles for one work item view. Every refresh
// supersedes the one in progress: its context is cancelled and whatever it
// returns late is dropped.
type Controller struct {
	resolver TreeResolver
	host     Host
	log      zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
	subs   []func(State)
}

func NewController(resolver TreeResolver, host Host, log zerolog.Logger) *Controller {
	return &Controller{
		resolver: resolver,
		host:     host,
		log:      log,
		state:    State{Phase: PhaseIdle},
	}
}

// Subscribe registers fn to receive every published state. fn is called
// outside the controller lock.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) OnLoaded(ctx context.Context, args LoadedArgs) State {
	if args.IsNew {
		return c.settle(c.begin(ctx), func(gen uint64) State {
			return State{Phase: PhaseUnsaved, Generation: gen}
		})
	}
	return c.Refresh(ctx)
}

func (c *Controller) OnSaved(ctx context.Context) State {
	return c.Refresh(ctx)
}

func (c *Controller) OnRefreshed(ctx context.Context) State {
	return c.Refresh(ctx)
}

// Reset cancels any refresh in flight and returns to idle.
func (c *Controller) Reset() {
	c.settle(c.begin(context.Background()), func(gen uint64) State {
		return State{Phase: PhaseIdle, Generation: gen}
	})
}

// Refresh runs a new cycle and returns the state it ended in. When a newer
// cycle started meanwhile, the returned state is the one this cycle would
// have published; it is not applied.
func (c *Controller) Refresh(ctx context.Context) State {
	cycle := c.begin(ctx)
	c.publish(c.transition(cycle.gen, State{Phase: PhaseResolving, Generation: cycle.gen}))

	return c.settle(cycle, func(gen uint64) State {
		start, err := c.host.Context(cycle.ctx)
		if err != nil {
			return State{Phase: PhaseFailed, Generation: gen, Err: err}
		}
		tree, err := c.resolver.Resolve(cycle.ctx, start)
		if err != nil {
			return State{Phase: PhaseFailed, Generation: gen, Err: err}
		}
		if tree.IsEmpty() {
			return State{Phase: PhaseEmpty, Generation: gen, Tree: tree}
		}
		return State{Phase: PhasePopulated, Generation: gen, Tree: tree}
	})
}

type cycle struct {
	ctx    context.Context
	cancel context.CancelFunc
	gen    uint64
}

func (c *Controller) begin(ctx context.Context) cycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	cctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return cycle{ctx: cctx, cancel: cancel, gen: c.gen}
}

func (c *Controller) settle(cy cycle, work func(gen uint64) State) State {
	defer cy.cancel()
	next := work(cy.gen)
	c.publish(c.transition(cy.gen, next))
	return next
}

// transition applies next if gen is still current and returns the subscribers
// to notify.
func (c *Controller) transition(gen uint64, next State) (State, []func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.log.Debug().
			Uint64("generation", gen).
			Uint64("current", c.gen).
			Str("phase", string(next.Phase)).
			Msg("discarding superseded refresh")
		return next, nil
	}
	if err := ValidateTransition(c.state.Phase, next.Phase); err != nil {
		c.log.Error().Err(err).Msg("refresh state machine")
		return next, nil
	}
	if next.Phase.IsTerminal() || next.Phase == PhaseIdle {
		c.cancel = nil
	}
	c.state = next
	return next, slices.Clone(c.subs)
}

func (c *Controller) publish(s State, subs []func(State)) {
	for _, fn := range subs {
		fn(s)
	}
}
