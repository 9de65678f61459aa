// Package testplan resolves the requirement / test case / test step tree shown
// for a work item.
package testplan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/satyaki-up/testplan/internal/workitems"
)

const (
	DefaultMaxParentDepth = 50
	DefaultConcurrency    = 8
	DefaultLocale         = "en"
)

type Options struct {
	// MaxParentDepth bounds the number of parent hops taken by ResolveRoot.
	MaxParentDepth int
	// Concurrency bounds the in-flight requests of each fan-out.
	Concurrency int
	// Locale drives the numeric collation of requirement titles.
	Locale string
	// UserAcceptanceField is read from requirements as their status.
	UserAcceptanceField string
}

// Start is the host context a refresh begins from.
type Start struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	ParentID int    `json:"parent_id,omitempty"`
	Project  string `json:"project"`
}

type Resolver struct {
	items  workitems.ItemReader
	tests  workitems.TestReader
	log    zerolog.Logger
	opts   Options
	locale language.Tag
}

func NewResolver(items workitems.ItemReader, tests workitems.TestReader, log zerolog.Logger, opts Options) *Resolver {
	if opts.MaxParentDepth <= 0 {
		opts.MaxParentDepth = DefaultMaxParentDepth
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.UserAcceptanceField == "" {
		opts.UserAcceptanceField = workitems.DefaultUserAcceptanceField
	}
	tag, err := language.Parse(opts.Locale)
	if err != nil {
		tag = language.English
	}
	return &Resolver{
		items:  items,
		tests:  tests,
		log:    log,
		opts:   opts,
		locale: tag,
	}
}

// Resolve runs one full refresh cycle with fresh caches. A tree without
// requirements means there is no test plan for the item. Transport failures
// are returned; absent data never is.
func (r *Resolver) Resolve(ctx context.Context, start Start) (*Tree, error) {
	run := NewRun(start.Project)
	log := r.log.With().Str("refresh_id", run.ID).Int("work_item", start.ID).Logger()
	began := time.Now()

	root, err := r.ResolveRoot(ctx, run, start)
	if err != nil {
		return nil, err
	}

	tree := &Tree{RefreshID: run.ID, Root: root.Kind, RootItem: root.Item}

	var requirements []*workitems.WorkItem
	switch root.Kind {
	case RootRequirement:
		requirements = []*workitems.WorkItem{root.Item}
	case RootFeature:
		requirements, err = r.ResolveRequirements(ctx, run, root.Item)
		if err != nil {
			return nil, err
		}
	default:
		log.Debug().Msg("no requirement or feature above work item")
		return tree, nil
	}

	nodes := make([]RequirementNode, len(requirements))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, req := range requirements {
		g.Go(func() error {
			node, err := r.buildRequirement(gctx, run, req)
			if err != nil {
				return err
			}
			nodes[i] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	tree.Requirements = nodes

	log.Info().
		Str("root", string(root.Kind)).
		Int("root_id", root.Item.ID).
		Int("requirements", len(nodes)).
		Int("test_cases", tree.TestCaseCount()).
		Int("types_fetched", run.types.len()).
		Int("suites_fetched", run.points.len()).
		Dur("elapsed", time.Since(began)).
		Msg("test plan resolved")
	return tree, nil
}

func (r *Resolver) buildRequirement(ctx context.Context, run *Run, req *workitems.WorkItem) (RequirementNode, error) {
	node := RequirementNode{
		Item:       req,
		Acceptance: workitems.ParseOutcome(req.FieldString(r.opts.UserAcceptanceField)),
	}

	typ, err := r.lookupType(ctx, run, req.Type())
	if err != nil {
		return node, err
	}
	node.Type = typ

	testCases, err := r.ResolveTestCases(ctx, run, req)
	if err != nil {
		return node, err
	}

	node.TestCases = make([]TestCaseNode, len(testCases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, tc := range testCases {
		g.Go(func() error {
			tcNode, err := r.buildTestCase(gctx, run, tc)
			if err != nil {
				return err
			}
			node.TestCases[i] = tcNode
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return node, err
	}
	return node, nil
}

func (r *Resolver) buildTestCase(ctx context.Context, run *Run, tc *workitems.WorkItem) (TestCaseNode, error) {
	node := TestCaseNode{
		Item:  tc,
		Steps: ParseSteps(tc.StepScript()),
	}

	typ, err := r.lookupType(ctx, run, tc.Type())
	if err != nil {
		return node, err
	}
	node.Type = typ

	outcome, err := r.ResolveOutcome(ctx, run, tc)
	if err != nil {
		return node, err
	}
	node.Outcome = outcome
	return node, nil
}

// lookupType fetches type metadata at most once per type name per run. A
// missing type is remembered as nil.
func (r *Resolver) lookupType(ctx context.Context, run *Run, name string) (*workitems.WorkItemType, error) {
	if name == "" {
		return nil, nil
	}
	typ, err := run.types.get(ctx, name, func(ctx context.Context) (*workitems.WorkItemType, error) {
		t, err := r.items.GetWorkItemType(ctx, run.Project, name)
		if errors.Is(err, workitems.ErrNotFound) {
			return nil, nil
		}
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("get work item type %q: %w", name, err)
	}
	return typ, nil
}

// fetchAll reads the given ids concurrently and returns the items that exist,
// in input order, skipping duplicates.
func (r *Resolver) fetchAll(ctx context.Context, run *Run, ids []int, opts workitems.GetOptions) ([]*workitems.WorkItem, error) {
	fetched := make([]*workitems.WorkItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			item, err := r.items.GetWorkItem(gctx, run.Project, id, opts)
			if err != nil {
				if errors.Is(err, workitems.ErrNotFound) {
					r.log.Debug().Int("work_item", id).Msg("linked work item not found")
					return nil
				}
				return fmt.Errorf("get work item %d: %w", id, err)
			}
			fetched[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*workitems.WorkItem, 0, len(fetched))
	seen := make(map[int]bool, len(fetched))
	for _, item := range fetched {
		if item == nil || seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		out = append(out, item)
	}
	return out, nil
}
