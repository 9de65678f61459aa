package testplan

import (
	"context"
	"errors"
	"fmt"

	"github.com/satyaki-up/testplan/internal/workitems"
)

type RootKind string

const (
	RootNone        RootKind = "none"
	RootRequirement RootKind = "requirement"
	RootFeature     RootKind = "feature"
)

type Root struct {
	Kind RootKind
	Item *workitems.WorkItem
}

// ResolveRoot climbs parent links from start until it reaches a Requirement
// or a Feature. The chain ends with RootNone when a parent is missing, when a
// parent has no parent of its own, or after MaxParentDepth hops.
func (r *Resolver) ResolveRoot(ctx context.Context, run *Run, start Start) (Root, error) {
	id, typ, parent := start.ID, start.Type, start.ParentID

	for hop := 0; ; hop++ {
		switch typ {
		case workitems.TypeRequirement, workitems.TypeFeature:
			item, err := r.items.GetWorkItem(ctx, run.Project, id, workitems.GetOptions{Expand: workitems.ExpandRelations})
			if err != nil {
				if errors.Is(err, workitems.ErrNotFound) {
					return Root{Kind: RootNone}, nil
				}
				return Root{}, fmt.Errorf("get %s %d: %w", typ, id, err)
			}
			kind := RootRequirement
			if typ == workitems.TypeFeature {
				kind = RootFeature
			}
			return Root{Kind: kind, Item: item}, nil
		}

		if hop >= r.opts.MaxParentDepth {
			r.log.Warn().
				Int("work_item", start.ID).
				Int("max_depth", r.opts.MaxParentDepth).
				Msg("parent chain too deep, giving up")
			return Root{Kind: RootNone}, nil
		}
		if parent <= 0 {
			return Root{Kind: RootNone}, nil
		}

		item, err := r.items.GetWorkItem(ctx, run.Project, parent, workitems.GetOptions{Fields: workitems.ParentProjection})
		if err != nil {
			if errors.Is(err, workitems.ErrNotFound) {
				return Root{Kind: RootNone}, nil
			}
			return Root{}, fmt.Errorf("get parent %d: %w", parent, err)
		}

		next := item.ParentID()
		if next <= 0 {
			return Root{Kind: RootNone}, nil
		}
		id, typ, parent = item.ID, item.Type(), next
	}
}
