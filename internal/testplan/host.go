package testplan

import (
	"context"
	"fmt"

	"github.com/satyaki-up/testplan/internal/workitems"
)

// Host supplies the context of the work item currently shown.
type Host interface {
	Context(ctx context.Context) (Start, error)
}

type HostFunc func(ctx context.Context) (Start, error)

func (f HostFunc) Context(ctx context.Context) (Start, error) {
	return f(ctx)
}

var hostFields = []string{
	workitems.FieldID,
	workitems.FieldTeamProject,
	workitems.FieldParent,
	workitems.FieldWorkItemType,
}

// ItemHost reads the host context of a fixed work item from an ItemReader,
// re-reading it on every refresh so a saved parent change is picked up.
type ItemHost struct {
	Items   workitems.ItemReader
	Project string
	ID      int
}

func (h ItemHost) Context(ctx context.Context) (Start, error) {
	if h.ID <= 0 {
		return Start{}, fmt.Errorf("%w: work item id is required", workitems.ErrInvalidInput)
	}
	item, err := h.Items.GetWorkItem(ctx, h.Project, h.ID, workitems.GetOptions{Fields: hostFields})
	if err != nil {
		return Start{}, fmt.Errorf("read host work item %d: %w", h.ID, err)
	}

	project := item.Project()
	if project == "" {
		project = h.Project
	}
	return Start{
		ID:       item.ID,
		Type:     item.Type(),
		ParentID: item.ParentID(),
		Project:  project,
	}, nil
}
